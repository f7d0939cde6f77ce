package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"

	"github.com/securebank/securebank/internal/database"
	"github.com/securebank/securebank/internal/interfaces"
	"github.com/securebank/securebank/internal/model"
)

// Common errors that can be returned by the repositories
var (
	ErrUserNotFound        = errors.New("user not found")
	ErrDuplicateUsername   = errors.New("username already exists")
	ErrDuplicateEmail      = errors.New("email already exists")
	ErrAccountNotFound     = errors.New("account not found")
	ErrDuplicateNumber     = errors.New("account number already exists")
	ErrSessionNotFound     = errors.New("session not found")
	ErrTransactionNotFound = errors.New("transaction not found")
)

const uniqueViolation = "23505"

// UserRepositoryImpl implements the UserRepository interface
type UserRepositoryImpl struct {
	db *database.DB
}

var _ interfaces.UserRepository = (*UserRepositoryImpl)(nil)

func NewUserRepository(db *database.DB) interfaces.UserRepository {
	return &UserRepositoryImpl{db: db}
}

const userColumns = `id, username, email, password_hash, role, failed_login_attempts,
	 account_locked_until, last_login, is_active, created_at`

func scanUser(row pgx.Row) (*model.User, error) {
	var user model.User
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.Role,
		&user.FailedAttempts, &user.LockedUntil, &user.LastLogin, &user.IsActive, &user.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Create inserts a new user. Uniqueness failures are mapped to the violated
// constraint so registration can name the conflicting field.
func (r *UserRepositoryImpl) Create(ctx context.Context, username, email, passwordHash string, role model.Role) (*model.User, error) {
	row := r.db.Pool.QueryRow(ctx,
		`INSERT INTO users (username, email, password_hash, role)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+userColumns,
		username, email, passwordHash, role)

	user, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			if pgErr.ConstraintName == "users_email_key" {
				return nil, ErrDuplicateEmail
			}
			return nil, ErrDuplicateUsername
		}
		return nil, err
	}
	return user, nil
}

func (r *UserRepositoryImpl) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return scanUser(r.db.Pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1`, username))
}

func (r *UserRepositoryImpl) GetByID(ctx context.Context, id int64) (*model.User, error) {
	return scanUser(r.db.Pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// UpdateLastLogin stamps a successful login and clears the failure columns.
func (r *UserRepositoryImpl) UpdateLastLogin(ctx context.Context, id int64) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE users
		 SET last_login = CURRENT_TIMESTAMP,
		     failed_login_attempts = 0,
		     account_locked_until = NULL
		 WHERE id = $1`,
		id)
	return err
}

func (r *UserRepositoryImpl) SetLockState(ctx context.Context, id int64, failedAttempts int, lockedUntil *time.Time) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE users
		 SET failed_login_attempts = $2, account_locked_until = $3
		 WHERE id = $1`,
		id, failedAttempts, lockedUntil)
	return err
}

// ListLocked returns users whose advisory lock column is still in the
// future, for the operator security overview.
func (r *UserRepositoryImpl) ListLocked(ctx context.Context, now time.Time) ([]*model.User, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE account_locked_until > $1
		 ORDER BY account_locked_until`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, user)
	}
	return out, rows.Err()
}

func (r *UserRepositoryImpl) SetActive(ctx context.Context, id int64, active bool) error {
	result, err := r.db.Pool.Exec(ctx,
		`UPDATE users SET is_active = $2 WHERE id = $1`, id, active)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *UserRepositoryImpl) UpdatePasswordHash(ctx context.Context, id int64, passwordHash string) error {
	result, err := r.db.Pool.Exec(ctx,
		`UPDATE users SET password_hash = $2 WHERE id = $1`, id, passwordHash)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}
