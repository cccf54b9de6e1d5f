package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"

	"github.com/transferd-network/transferd/internal/core/domain"
	"github.com/transferd-network/transferd/internal/core/ports"
	"github.com/transferd-network/transferd/pkg/ledger"
	"github.com/transferd-network/transferd/pkg/nodepool"
	"github.com/transferd-network/transferd/pkg/wallet"
)

const (
	defaultMaxBroadcastAttempts = 3
	defaultConfirmTimeout       = 60 * time.Second
	defaultPollInterval         = 2 * time.Second
)

// PasswordVerifier compares a stored hash with a candidate password.
type PasswordVerifier func(hash, password string) error

func bcryptVerifier(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// TransferServiceOpts is the struct given to the NewTransferService factory.
type TransferServiceOpts struct {
	Repo       ports.RepoManager
	Queue      ports.QueueService
	Wallets    *WalletService
	LedgerHTTP *nodepool.Registry
	// LedgerWS is optional: without it confirmation falls back to polling.
	LedgerWS *nodepool.WSPool
	Selector nodepool.Selector

	ChainID string
	// HRP is the bech32 prefix of the network's addresses.
	HRP                string
	BaseDerivationPath string

	// ConfirmTimeout bounds the wait for a terminal status.
	ConfirmTimeout time.Duration
	// MaxBroadcastAttempts bounds how many node selections are tried when
	// submission fails on network errors.
	MaxBroadcastAttempts int
	PollInterval         time.Duration

	// VerifyPassword defaults to bcrypt comparison.
	VerifyPassword PasswordVerifier
}

// TransferService drives a transfer from broadcast to its terminal status
// and queues the outcome for persistence.
type TransferService struct {
	repo       ports.RepoManager
	queue      ports.QueueService
	wallets    *WalletService
	ledgerHTTP *nodepool.Registry
	ledgerWS   *nodepool.WSPool
	selector   nodepool.Selector

	chainID            string
	hrp                string
	baseDerivationPath string

	confirmTimeout       time.Duration
	maxBroadcastAttempts int
	pollInterval         time.Duration

	verifyPassword PasswordVerifier

	clientsMtx *sync.Mutex
	clients    map[string]*ledger.HTTPClient
}

// NewTransferService returns a transfer service wired to the given pools,
// queue and storage.
func NewTransferService(opts TransferServiceOpts) *TransferService {
	confirmTimeout := opts.ConfirmTimeout
	if confirmTimeout <= 0 {
		confirmTimeout = defaultConfirmTimeout
	}
	maxAttempts := opts.MaxBroadcastAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxBroadcastAttempts
	}
	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	verify := opts.VerifyPassword
	if verify == nil {
		verify = bcryptVerifier
	}
	selector := opts.Selector
	if selector == nil {
		selector = nodepool.NewRandomSelector()
	}

	return &TransferService{
		repo:                 opts.Repo,
		queue:                opts.Queue,
		wallets:              opts.Wallets,
		ledgerHTTP:           opts.LedgerHTTP,
		ledgerWS:             opts.LedgerWS,
		selector:             selector,
		chainID:              opts.ChainID,
		hrp:                  opts.HRP,
		baseDerivationPath:   opts.BaseDerivationPath,
		confirmTimeout:       confirmTimeout,
		maxBroadcastAttempts: maxAttempts,
		pollInterval:         pollInterval,
		verifyPassword:       verify,
		clientsMtx:           &sync.Mutex{},
		clients:              make(map[string]*ledger.HTTPClient),
	}
}

// SendTransferRequest is the input of one transfer submission.
type SendTransferRequest struct {
	UserID      string
	Password    string
	FromAddress string
	ToAddress   string
	Coin        wallet.Coin
}

// SendTransferResult is the outcome handed back to the caller. Status is
// pending only when the confirmation wait timed out; the caller is then
// responsible for retrying later.
type SendTransferResult struct {
	TxHash string
	Status domain.TxStatus
}

// SendTransfer verifies the caller's password, signs the transfer with the
// matching derived account, broadcasts it, waits for its terminal status and
// queues the confirmed outcome for persistence.
func (s *TransferService) SendTransfer(
	ctx context.Context, req SendTransferRequest,
) (*SendTransferResult, error) {
	accountRepo := s.repo.AccountRepository()

	hash, err := accountRepo.GetPasswordHash(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if err := s.verifyPassword(hash, req.Password); err != nil {
		return nil, domain.ErrInvalidPassword
	}

	signed, err := s.signTransfer(ctx, req)
	if err != nil {
		return nil, err
	}

	txHash, err := s.broadcast(ctx, signed)
	if err != nil {
		return nil, err
	}
	tx := domain.NewPendingTransaction(txHash)
	log.Debugf("transfer broadcast with hash %s", txHash)

	res, err := s.trackConfirmation(ctx, txHash, req.ToAddress)
	if err != nil {
		if errors.Is(err, ledger.ErrRequestTimedOut) {
			// outcome unknown: hand the hash back so the caller can retry
			return &SendTransferResult{
				TxHash: txHash,
				Status: domain.TxStatusPending,
			}, ledger.ErrRequestTimedOut
		}
		return nil, err
	}

	if err := tx.Confirm(res); err != nil {
		return nil, err
	}

	outcome := &domain.TransferOutcome{
		Tx:              tx,
		SenderAddress:   req.FromAddress,
		ReceiverAddress: req.ToAddress,
		UserID:          req.UserID,
	}
	if err := s.queue.PushToStream(ctx, outcome); err != nil {
		return nil, fmt.Errorf("pushing outcome to stream: %w", err)
	}

	return &SendTransferResult{TxHash: txHash, Status: tx.Status}, nil
}

// signTransfer decrypts the user's mnemonic, rebuilds the wallet with every
// account derived so far and signs the transfer doc with the sender account.
// The wallet instance never outlives this call.
func (s *TransferService) signTransfer(
	ctx context.Context, req SendTransferRequest,
) (*wallet.SignedTx, error) {
	accountRepo := s.repo.AccountRepository()

	encrypted, err := accountRepo.GetEncryptedMnemonic(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	mnemonic, err := s.wallets.DecryptMnemonic(encrypted, req.Password)
	if err != nil {
		return nil, err
	}

	w, err := wallet.NewWalletFromMnemonic(wallet.NewWalletFromMnemonicOpts{
		Mnemonic: mnemonic,
		HRP:      s.hrp,
	})
	if err != nil {
		return nil, err
	}

	count, err := accountRepo.CountDerivedAccounts(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	for i := 0; i < count; i++ {
		path, err := wallet.DerivePath(wallet.DerivePathOpts{
			BaseDerivationPath: s.baseDerivationPath,
			AccountIndex:       i,
		})
		if err != nil {
			return nil, err
		}
		if _, err := w.DeriveAccount(wallet.DeriveAccountOpts{
			DerivationPath: path,
		}); err != nil {
			return nil, err
		}
	}

	return w.SignDirect(wallet.SignDirectOpts{
		SignerAddress: req.FromAddress,
		Doc: wallet.TransferDoc{
			ChainID:     s.chainID,
			FromAddress: req.FromAddress,
			ToAddress:   req.ToAddress,
			Amount:      []wallet.Coin{req.Coin},
		},
	})
}

// broadcast submits the signed transfer, retrying with a different node
// selection on network failure up to the configured bound. A rejection by
// the ledger itself is final and not retried.
func (s *TransferService) broadcast(
	ctx context.Context, signed *wallet.SignedTx,
) (string, error) {
	var lastErr error
	for attempt := 0; attempt < s.maxBroadcastAttempts; attempt++ {
		endpoint, err := s.ledgerHTTP.Get(s.selector)
		if err != nil {
			return "", err
		}

		client := s.clientFor(endpoint)
		txHash, err := client.BroadcastTx(
			ctx, signed.DocBytes, signed.Signature, signed.PubKey,
		)
		if err == nil {
			return txHash, nil
		}
		if errors.Is(err, ledger.ErrBroadcastRejected) {
			return "", err
		}

		lastErr = err
		log.WithError(err).Warnf(
			"broadcast attempt %d against %s failed, retrying with another node",
			attempt+1, endpoint,
		)
	}
	return "", fmt.Errorf("%w: %v", ErrBroadcastFailed, lastErr)
}

// trackConfirmation resolves the terminal status of the transaction, by
// live event subscription when a websocket node is available and by status
// polling otherwise. Both paths are bounded by the confirmation timeout.
func (s *TransferService) trackConfirmation(
	ctx context.Context, txHash, recipient string,
) (*ledger.TxResult, error) {
	endpoint, err := s.ledgerHTTP.Get(s.selector)
	if err != nil {
		return nil, err
	}
	client := s.clientFor(endpoint)

	ctx, cancel := context.WithTimeout(ctx, s.confirmTimeout)
	defer cancel()

	if s.ledgerWS != nil {
		conn, err := s.ledgerWS.Get(s.selector)
		if err == nil {
			return ledger.TrackLive(ctx, ledger.TrackLiveOpts{
				Conn:      conn,
				Client:    client,
				TxHash:    txHash,
				Recipient: recipient,
			})
		}
		log.WithError(err).Warn(
			"no live websocket connection available, falling back to polling",
		)
	}

	limiter := rate.NewLimiter(rate.Every(s.pollInterval), 1)
	return ledger.WaitForTx(ctx, client, txHash, limiter)
}

func (s *TransferService) clientFor(endpoint string) *ledger.HTTPClient {
	s.clientsMtx.Lock()
	defer s.clientsMtx.Unlock()

	client, ok := s.clients[endpoint]
	if !ok {
		client = ledger.NewHTTPClient(endpoint)
		s.clients[endpoint] = client
	}
	return client
}
