package models

import "time"

// Transaction types
const (
	TxSend    = "send"
	TxReceive = "receive"
)

// Transaction is one leg of a transfer as recorded against a single account.
// The send and receive legs of the same logical transfer share TransactionID.
type Transaction struct {
	ID            int64
	TransactionID string
	AccountID     int64
	Type          string // TxSend or TxReceive
	Amount        int64
	Counterparty  string // username of the other side
	Note          string
	CreatedAt     time.Time
}
