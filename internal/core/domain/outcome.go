package domain

// TransferOutcome is the unit queued for persistence once a transaction
// reached a terminal status.
type TransferOutcome struct {
	Tx              *Transaction `json:"tx"`
	SenderAddress   string       `json:"sender_address"`
	ReceiverAddress string       `json:"receiver_address"`
	UserID          string       `json:"user_id"`
}
