package ledger

import (
	"context"
	"errors"

	"golang.org/x/time/rate"
)

// PollStatus queries the ledger for a transaction by hash once. A hash the
// ledger does not know yet is a pending transaction, not an error: in that
// case both return values are nil. Any other lookup failure propagates.
func PollStatus(ctx context.Context, client *HTTPClient, hash string) (*TxResult, error) {
	res, err := client.GetTx(ctx, hash)
	if err != nil {
		if errors.Is(err, ErrTxNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return res, nil
}

// WaitForTx polls the ledger until the transaction reaches the chain or the
// context expires. Polling frequency is capped by the given rate limiter.
func WaitForTx(
	ctx context.Context, client *HTTPClient, hash string, limiter *rate.Limiter,
) (*TxResult, error) {
	for {
		if err := limiter.Wait(ctx); err != nil {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, ErrRequestTimedOut
			}
			return nil, err
		}

		res, err := PollStatus(ctx, client, hash)
		if err != nil {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, ErrRequestTimedOut
			}
			return nil, err
		}
		if res != nil {
			return res, nil
		}
	}
}
