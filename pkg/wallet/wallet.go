package wallet

import (
	"errors"
)

var (
	// ErrNullMnemonic ...
	ErrNullMnemonic = errors.New("mnemonic is null")
	// ErrInvalidMnemonic ...
	ErrInvalidMnemonic = errors.New("mnemonic is invalid")
	// ErrInvalidEntropySize ...
	ErrInvalidEntropySize = errors.New(
		"entropy size must be a multiple of 32 in the range [128,256]",
	)

	// ErrNullPassword ...
	ErrNullPassword = errors.New("password must not be null")
	// ErrNullSalt ...
	ErrNullSalt = errors.New("salt must not be null")
	// ErrNullPlainText ...
	ErrNullPlainText = errors.New("text to encrypt must not be null")
	// ErrNullCypherText ...
	ErrNullCypherText = errors.New("cypher to decrypt must not be null")
	// ErrNullEncryptionKey ...
	ErrNullEncryptionKey = errors.New("encryption key must be 32 bytes long")
	// ErrInvalidCypherText ...
	ErrInvalidCypherText = errors.New("cypher must be base64 of whole cipher blocks")
	// ErrInvalidIV ...
	ErrInvalidIV = errors.New("iv must be one cipher block long")
	// ErrBadDecrypt is returned when the decrypted plaintext fails padding
	// validation, which is what a wrong key or iv looks like from the
	// outside. CBC mode does not authenticate: a successful decrypt proves
	// nothing about ciphertext integrity, only that padding lined up.
	ErrBadDecrypt = errors.New("bad decrypt")

	// ErrNullDerivationPath ...
	ErrNullDerivationPath = errors.New("derivation path must not be null")
	// ErrMalformedDerivationPath ...
	ErrMalformedDerivationPath = errors.New(
		"path must not start or end with a '/' and " +
			"can optionally start with 'm/' for absolute paths",
	)
	// ErrInvalidDerivationPathLength ...
	ErrInvalidDerivationPathLength = errors.New(
		"derivation path must have 5 segments in the form \"m/purpose'/coin'/account'/change/index\"",
	)
	// ErrInvalidDerivationPathAccount ...
	ErrInvalidDerivationPathAccount = errors.New(
		"derivation path's first three segments must be hardened (suffix \"'\")",
	)
	// ErrNegativeAccountIndex ...
	ErrNegativeAccountIndex = errors.New("account index must not be negative")

	// ErrAddressNotFound ...
	ErrAddressNotFound = errors.New("no derived account matches the given address")
)

// DefaultHRP is the human readable part used for bech32 addresses when no
// explicit one is provided.
const DefaultHRP = "tn"

// Wallet reconstructs an HD key tree from a BIP-39 mnemonic and keeps track
// of the accounts derived from it. Instances are meant to be created
// transiently per signing operation and dropped right after; the mnemonic is
// never persisted in clear through this type.
type Wallet struct {
	mnemonic []string
	seed     []byte
	hrp      string
	accounts map[string]*Account
}

// NewWalletFromMnemonicOpts is the struct given to the NewWalletFromMnemonic
// factory.
type NewWalletFromMnemonicOpts struct {
	Mnemonic []string
	// HRP is the bech32 prefix of derived addresses. Defaults to DefaultHRP.
	HRP string
}

func (o NewWalletFromMnemonicOpts) validate() error {
	if len(o.Mnemonic) <= 0 {
		return ErrNullMnemonic
	}
	if !isMnemonicValid(o.Mnemonic) {
		return ErrInvalidMnemonic
	}
	return nil
}

// NewWalletFromMnemonic generates the wallet seed from the given mnemonic.
func NewWalletFromMnemonic(opts NewWalletFromMnemonicOpts) (*Wallet, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	hrp := opts.HRP
	if hrp == "" {
		hrp = DefaultHRP
	}

	return &Wallet{
		mnemonic: opts.Mnemonic,
		seed:     generateSeedFromMnemonic(opts.Mnemonic),
		hrp:      hrp,
		accounts: make(map[string]*Account),
	}, nil
}

// Mnemonic returns the wallet's mnemonic word list.
func (w *Wallet) Mnemonic() []string {
	mnemonic := make([]string, len(w.mnemonic))
	copy(mnemonic, w.mnemonic)
	return mnemonic
}

// Account returns the already derived account matching the given address.
func (w *Wallet) Account(address string) (*Account, error) {
	account, ok := w.accounts[address]
	if !ok {
		return nil, ErrAddressNotFound
	}
	return account, nil
}
