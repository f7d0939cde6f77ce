package interfaces

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/securebank/securebank/internal/model"
)

// UserRepository defines user-related database operations.
type UserRepository interface {
	Create(ctx context.Context, username, email, passwordHash string, role model.Role) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	GetByID(ctx context.Context, id int64) (*model.User, error)
	// UpdateLastLogin stamps a successful login and clears the failure columns.
	UpdateLastLogin(ctx context.Context, id int64) error
	// SetLockState updates the advisory failure columns shown to operators.
	// Lock decisions are derived from the attempt log, not from these.
	SetLockState(ctx context.Context, id int64, failedAttempts int, lockedUntil *time.Time) error
	// ListLocked returns users whose advisory locked-until column is still
	// in the future.
	ListLocked(ctx context.Context, now time.Time) ([]*model.User, error)
	SetActive(ctx context.Context, id int64, active bool) error
	UpdatePasswordHash(ctx context.Context, id int64, passwordHash string) error
}

// AccountRepository defines account CRUD. Balance mutation happens only in
// TransactionRepository's atomic operations.
type AccountRepository interface {
	Create(ctx context.Context, userID int64, number string, accType model.AccountType) (*model.Account, error)
	GetByID(ctx context.Context, id int64) (*model.Account, error)
	ListByUser(ctx context.Context, userID int64) ([]*model.Account, error)
	HasActiveOfType(ctx context.Context, userID int64, accType model.AccountType) (bool, error)
	NumberExists(ctx context.Context, number string) (bool, error)
	FirstActiveForUser(ctx context.Context, userID int64) (*model.Account, error)
	SetStatus(ctx context.Context, id int64, status model.AccountStatus) error
}

// TransactionRepository owns the ledger. Transfer and Reverse are atomic:
// both balance effects and the transaction row commit together or not at all.
type TransactionRepository interface {
	Transfer(ctx context.Context, userID, sourceAccountID int64, destNumber string, amount decimal.Decimal, encDescription, clientIP string) (*model.Transaction, error)
	Reverse(ctx context.Context, adminUserID, transactionID int64, encDescription, clientIP string) (*model.Transaction, error)
	// Deposit atomically credits the account and appends the deposit row;
	// the balance never moves without its ledger record.
	Deposit(ctx context.Context, adminUserID, accountID int64, amount decimal.Decimal, encDescription, clientIP string) (*model.Transaction, error)
	// Record appends a standalone ledger row with no balance effect of its
	// own: failed-transfer audit rows.
	Record(ctx context.Context, t *model.Transaction) error
	GetByID(ctx context.Context, id int64) (*model.Transaction, error)
	ListByAccount(ctx context.Context, accountID int64, limit int) ([]*model.Transaction, error)
	ListByUser(ctx context.Context, userID int64, limit int) ([]*model.Transaction, error)
}

// LoginAttemptRepository is append-only; rows are pruned only by the
// retention job.
type LoginAttemptRepository interface {
	Record(ctx context.Context, attempt *model.LoginAttempt) error
	// FailureRun reports the number of failures inside the window that are
	// more recent than the identity's latest success, and when the most
	// recent of them happened.
	FailureRun(ctx context.Context, username string, window time.Duration) (count int, lastFailure time.Time, err error)
	CountFailuresSince(ctx context.Context, since time.Time) (int, error)
	ListFailuresSince(ctx context.Context, since time.Time, limit int) ([]*model.LoginAttempt, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// SessionRepository stores the authoritative session rows.
type SessionRepository interface {
	Create(ctx context.Context, session *model.Session) error
	GetByTokenID(ctx context.Context, tokenID string) (*model.Session, error)
	Touch(ctx context.Context, tokenID string, at time.Time) error
	Revoke(ctx context.Context, tokenID string) error
	RevokeAll(ctx context.Context, userID int64) error
	// DeleteExpired removes rows past their absolute expiry or idle for
	// longer than the idle timeout, and reports how many were removed.
	DeleteExpired(ctx context.Context, now time.Time, idle time.Duration) (int64, error)
}
