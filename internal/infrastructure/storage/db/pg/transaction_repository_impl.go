package postgresdb

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"

	"github.com/transferd-network/transferd/internal/core/domain"
)

const (
	upsertReceiverAccountQuery = `
		INSERT INTO accounts (address, anonymous)
		VALUES ($1, true)
		ON CONFLICT (address) DO NOTHING`
	insertTransactionQuery = `
		INSERT INTO transactions (
			tx_hash, height, gas_wanted, gas_used, status,
			sender_address, receiver_address, user_id, block_time
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
)

type transactionRepositoryImpl struct {
	execTx func(ctx context.Context, txBody func(pgx.Tx) error) error
}

func NewTransactionRepositoryImpl(
	execTx func(ctx context.Context, txBody func(pgx.Tx) error) error,
) domain.TransactionRepository {
	return &transactionRepositoryImpl{execTx}
}

// SaveTransaction writes one confirmed outcome as a single unit: receiver
// account upsert, transaction header, fee rows. The unit is bounded by the
// given timeout, exceeding it rolls everything back. The header's unique
// hash makes a second delivery of the same outcome fail with
// domain.ErrTxAlreadyPersisted instead of storing a duplicate.
func (t *transactionRepositoryImpl) SaveTransaction(
	ctx context.Context, record domain.TransactionRecord, timeout time.Duration,
) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	txBody := func(tx pgx.Tx) error {
		if _, err := tx.Exec(
			ctx, upsertReceiverAccountQuery, record.ReceiverAddress,
		); err != nil {
			return err
		}

		if _, err := tx.Exec(
			ctx, insertTransactionQuery,
			record.Tx.TxHash,
			record.Tx.Height,
			record.Tx.GasWanted,
			record.Tx.GasUsed,
			string(record.Tx.Status),
			record.SenderAddress,
			record.ReceiverAddress,
			record.UserID,
			record.Timestamp,
		); err != nil {
			return err
		}

		fees := domain.ParseFees(record.Tx.Events)
		if len(fees) == 0 {
			return nil
		}

		rows := make([][]interface{}, 0, len(fees))
		for _, fee := range fees {
			rows = append(rows, []interface{}{
				record.Tx.TxHash, fee.Denom, fee.Amount.String(),
			})
		}
		inserted, err := tx.CopyFrom(
			ctx,
			pgx.Identifier{"transaction_fees"},
			[]string{"tx_hash", "denom", "amount"},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return err
		}
		if inserted != int64(len(fees)) {
			return domain.ErrFeeCountMismatch
		}
		return nil
	}

	if err := t.execTx(ctx, txBody); err != nil {
		if pgErr, ok := err.(*pgconn.PgError); ok &&
			pgErr.Code == uniqueViolation {
			return domain.ErrTxAlreadyPersisted
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return domain.ErrPersistenceTimeout
		}
		return err
	}
	return nil
}
