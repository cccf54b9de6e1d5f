package ledger

import "errors"

var (
	// ErrTxNotFound is returned when the ledger does not know the requested
	// transaction hash yet. Callers map it to a pending status, it is not a
	// hard failure.
	ErrTxNotFound = errors.New("transaction not found")
	// ErrBroadcastRejected is returned when a node accepted the request but
	// refused the transaction itself.
	ErrBroadcastRejected = errors.New("broadcast rejected by node")
	// ErrRequestTimedOut means the terminal outcome of the operation is
	// unknown: the caller should retry later, not treat it as failed.
	ErrRequestTimedOut = errors.New("request timed out")
)

// EventAttribute is one key/value pair of a ledger event.
type EventAttribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Event is one event emitted during transaction execution.
type Event struct {
	Type       string           `json:"type"`
	Attributes []EventAttribute `json:"attributes"`
}

// TxResult is the on-chain outcome of a transaction, as reported by a
// ledger-query node. Code 0 means success, any other value failure.
type TxResult struct {
	Hash      string
	Height    int64
	Code      uint32
	GasWanted int64
	GasUsed   int64
	RawLog    string
	Events    []Event
}

// Succeeded returns whether the transaction executed successfully.
func (r *TxResult) Succeeded() bool {
	return r.Code == 0
}
