package domain

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/transferd-network/transferd/pkg/ledger"
)

// TxStatus is the lifecycle state of one broadcast attempt.
type TxStatus string

const (
	// TxStatusPending is the status of a broadcast transaction whose
	// on-chain outcome is not known yet.
	TxStatusPending TxStatus = "pending"
	// TxStatusSucceed is terminal: the transaction executed with code 0.
	TxStatusSucceed TxStatus = "succeed"
	// TxStatusFailed is terminal: the transaction executed with a non-zero
	// code.
	TxStatusFailed TxStatus = "failed"
)

// IsFinal returns whether the status will not change further.
func (s TxStatus) IsFinal() bool {
	return s == TxStatusSucceed || s == TxStatusFailed
}

// Transaction is the envelope produced by one broadcast attempt. It is
// created pending, moved exactly once to a terminal status by the
// confirmation tracker and handed immutable to the queue afterwards.
type Transaction struct {
	TxHash    string         `json:"tx_hash"`
	Height    int64          `json:"height"`
	GasWanted int64          `json:"gas_wanted"`
	GasUsed   int64          `json:"gas_used"`
	Status    TxStatus       `json:"status"`
	Events    []ledger.Event `json:"events"`
}

// NewPendingTransaction returns the envelope of a freshly broadcast transfer.
func NewPendingTransaction(txHash string) *Transaction {
	return &Transaction{
		TxHash: txHash,
		Status: TxStatusPending,
	}
}

// Confirm applies the on-chain outcome to the envelope. It can be called
// only once per transaction.
func (t *Transaction) Confirm(res *ledger.TxResult) error {
	if t.Status.IsFinal() {
		return ErrTxAlreadyFinal
	}

	t.Height = res.Height
	t.GasWanted = res.GasWanted
	t.GasUsed = res.GasUsed
	t.Events = res.Events
	if res.Succeeded() {
		t.Status = TxStatusSucceed
	} else {
		t.Status = TxStatusFailed
	}
	return nil
}

// Fee is one parsed fee entry of a transaction.
type Fee struct {
	Denom  string
	Amount decimal.Decimal
}

var coinExpr = regexp.MustCompile(`^(\d+)([a-z][a-z0-9/]*)$`)

// ParseFees extracts the fee entries out of a transaction's event log. The
// fee attribute carries a comma-separated list of coins like "2500utn,10uatom".
func ParseFees(events []ledger.Event) []Fee {
	fees := make([]Fee, 0)
	for _, event := range events {
		if event.Type != "tx" {
			continue
		}
		for _, attr := range event.Attributes {
			if attr.Key != "fee" || attr.Value == "" {
				continue
			}
			for _, coin := range strings.Split(attr.Value, ",") {
				matches := coinExpr.FindStringSubmatch(strings.TrimSpace(coin))
				if matches == nil {
					continue
				}
				amount, err := decimal.NewFromString(matches[1])
				if err != nil {
					continue
				}
				fees = append(fees, Fee{Denom: matches[2], Amount: amount})
			}
		}
	}
	return fees
}
