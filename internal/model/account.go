package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type AccountType string

const (
	AccountChecking AccountType = "checking"
	AccountSavings  AccountType = "savings"
)

type AccountStatus string

const (
	AccountActive   AccountStatus = "active"
	AccountDisabled AccountStatus = "disabled"
)

// Account belongs to exactly one user. The balance is only ever mutated by
// the transfer engine inside its atomic boundary and never goes negative.
type Account struct {
	ID        int64
	UserID    int64
	Number    string // 10 digits, globally unique, unpredictable
	Type      AccountType
	Balance   decimal.Decimal
	Status    AccountStatus
	CreatedAt time.Time
}

// MaskedNumber returns the account number with everything but the last four
// digits hidden, the form shown for any account the viewer does not own.
func (a *Account) MaskedNumber() string {
	if len(a.Number) <= 4 {
		return a.Number
	}
	masked := make([]byte, len(a.Number))
	for i := range masked {
		if i < len(a.Number)-4 {
			masked[i] = '*'
		} else {
			masked[i] = a.Number[i]
		}
	}
	return string(masked)
}
