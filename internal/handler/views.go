package handler

import (
	"time"

	"github.com/securebank/securebank/internal/model"
)

// Response shapes. The owner sees their full account number (they need it
// to receive transfers); the masked form rides alongside for display.
// Balances travel as strings so clients are never tempted into float
// arithmetic.

type userView struct {
	ID        int64      `json:"id"`
	Username  string     `json:"username"`
	Email     string     `json:"email"`
	Role      model.Role `json:"role"`
	LastLogin *time.Time `json:"last_login,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func newUserView(u *model.User) userView {
	return userView{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Role:      u.Role,
		LastLogin: u.LastLogin,
		CreatedAt: u.CreatedAt,
	}
}

type accountView struct {
	ID            int64               `json:"id"`
	AccountNumber string              `json:"account_number"`
	MaskedNumber  string              `json:"account_number_masked"`
	Type          model.AccountType   `json:"account_type"`
	Balance       string              `json:"balance"`
	Status        model.AccountStatus `json:"status"`
	CreatedAt     time.Time           `json:"created_at"`
}

// newAccountView renders an account for its owner (or an admin). Never use
// it for accounts belonging to someone other than the caller.
func newAccountView(a *model.Account) accountView {
	return accountView{
		ID:            a.ID,
		AccountNumber: a.Number,
		MaskedNumber:  a.MaskedNumber(),
		Type:          a.Type,
		Balance:       a.Balance.StringFixed(2),
		Status:        a.Status,
		CreatedAt:     a.CreatedAt,
	}
}

func newAccountViews(accounts []*model.Account) []accountView {
	views := make([]accountView, 0, len(accounts))
	for _, a := range accounts {
		views = append(views, newAccountView(a))
	}
	return views
}

type transactionView struct {
	ID            int64                   `json:"id"`
	Type          model.TransactionType   `json:"transaction_type"`
	Status        model.TransactionStatus `json:"status"`
	Amount        string                  `json:"amount"`
	Description   string                  `json:"description,omitempty"`
	FromAccountID *int64                  `json:"from_account_id,omitempty"`
	ToAccountID   *int64                  `json:"to_account_id,omitempty"`
	ReversalOf    *int64                  `json:"reversal_of,omitempty"`
	CreatedAt     time.Time               `json:"created_at"`
}

func newTransactionView(t *model.Transaction) transactionView {
	return transactionView{
		ID:            t.ID,
		Type:          t.Type,
		Status:        t.Status,
		Amount:        t.Amount.StringFixed(2),
		Description:   t.Description,
		FromAccountID: t.FromAccountID,
		ToAccountID:   t.ToAccountID,
		ReversalOf:    t.ReversalOf,
		CreatedAt:     t.CreatedAt,
	}
}

func newTransactionViews(records []*model.Transaction) []transactionView {
	views := make([]transactionView, 0, len(records))
	for _, t := range records {
		views = append(views, newTransactionView(t))
	}
	return views
}
