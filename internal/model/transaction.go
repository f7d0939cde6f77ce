package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TypeTransfer TransactionType = "transfer"
	TypeDeposit  TransactionType = "deposit"
)

type TransactionStatus string

const (
	StatusCompleted TransactionStatus = "completed"
	StatusFailed    TransactionStatus = "failed"
	StatusReversed  TransactionStatus = "reversed"
)

// Transaction is an immutable ledger record. Completed rows carry the paired
// debit/credit effect of a transfer; failed rows have zero net effect and
// exist for audit; reversed rows are compensating entries that reference the
// original via ReversalOf. Rows are never updated after insert.
type Transaction struct {
	ID            int64
	Type          TransactionType
	Status        TransactionStatus
	Amount        decimal.Decimal
	Description   string // ciphertext at rest, decrypted for the owner
	FromAccountID *int64
	ToAccountID   *int64
	UserID        int64
	ReversalOf    *int64
	IPAddress     string
	CreatedAt     time.Time
}
