package domain

import (
	"context"
	"time"
)

// TransactionRecord groups everything the persistence writer needs to store
// one confirmed outcome.
type TransactionRecord struct {
	Tx              *Transaction
	Timestamp       time.Time
	SenderAddress   string
	ReceiverAddress string
	UserID          string
}

// TransactionRepository is the storage interface of confirmed outcomes.
type TransactionRepository interface {
	// SaveTransaction performs one atomic unit of work: upsert of the
	// receiver account, insert of the transaction header keyed by its
	// unique hash, and bulk insert of the parsed fee rows. The whole unit
	// is bounded by the given timeout; exceeding it forces a rollback and
	// returns ErrPersistenceTimeout. Re-running for an already persisted
	// hash returns ErrTxAlreadyPersisted.
	SaveTransaction(
		ctx context.Context, record TransactionRecord, timeout time.Duration,
	) error
}
