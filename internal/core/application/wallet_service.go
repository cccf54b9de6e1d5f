package application

import (
	"context"
	"strings"

	"github.com/transferd-network/transferd/internal/core/domain"
	"github.com/transferd-network/transferd/internal/core/ports"
	"github.com/transferd-network/transferd/pkg/wallet"
)

// WalletServiceOpts is the struct given to the NewWalletService factory.
type WalletServiceOpts struct {
	Repo ports.RepoManager
	// PBKDF2Iterations defaults to wallet.DefaultPBKDF2Iterations.
	PBKDF2Iterations int
	// BaseDerivationPath defaults to wallet.DefaultBaseDerivationPath.
	BaseDerivationPath string
}

// WalletService owns mnemonic at-rest encryption and the account index
// bookkeeping that prevents address reuse.
type WalletService struct {
	repo               ports.RepoManager
	iterations         int
	baseDerivationPath string
}

// NewWalletService returns a wallet service over the given repositories.
func NewWalletService(opts WalletServiceOpts) *WalletService {
	return &WalletService{
		repo:               opts.Repo,
		iterations:         opts.PBKDF2Iterations,
		baseDerivationPath: opts.BaseDerivationPath,
	}
}

// EncryptMnemonic encrypts a mnemonic under a password-derived key with a
// salt bound to the account identity.
func (s *WalletService) EncryptMnemonic(
	mnemonic []string, password, email, username string,
) (*domain.EncryptedMnemonic, error) {
	salt, err := wallet.NewSalt(wallet.NewSaltOpts{
		Email:    email,
		Username: username,
	})
	if err != nil {
		return nil, err
	}

	key, err := wallet.EncryptionKey(wallet.EncryptionKeyOpts{
		Password:   password,
		Salt:       salt,
		Iterations: s.iterations,
	})
	if err != nil {
		return nil, err
	}

	record, err := wallet.Encrypt(wallet.EncryptOpts{
		PlainText: strings.Join(mnemonic, " "),
		Key:       key,
	})
	if err != nil {
		return nil, err
	}

	return &domain.EncryptedMnemonic{
		CypherText: record.CypherText,
		IV:         record.IV,
		Salt:       salt,
	}, nil
}

// DecryptMnemonic reverses EncryptMnemonic given the same password. A wrong
// password fails closed with wallet.ErrBadDecrypt.
func (s *WalletService) DecryptMnemonic(
	encrypted *domain.EncryptedMnemonic, password string,
) ([]string, error) {
	key, err := wallet.EncryptionKey(wallet.EncryptionKeyOpts{
		Password:   password,
		Salt:       encrypted.Salt,
		Iterations: s.iterations,
	})
	if err != nil {
		return nil, err
	}

	plaintext, err := wallet.Decrypt(wallet.DecryptOpts{
		CypherText: encrypted.CypherText,
		Key:        key,
		IV:         encrypted.IV,
	})
	if err != nil {
		return nil, err
	}

	return strings.Fields(plaintext), nil
}

// NextDerivationPath returns the derivation path of the user's next account.
// The index is the count of accounts already derived, never random.
func (s *WalletService) NextDerivationPath(
	ctx context.Context, userID string,
) (string, error) {
	count, err := s.repo.AccountRepository().CountDerivedAccounts(ctx, userID)
	if err != nil {
		return "", err
	}
	return wallet.DerivePath(wallet.DerivePathOpts{
		BaseDerivationPath: s.baseDerivationPath,
		AccountIndex:       count,
	})
}
