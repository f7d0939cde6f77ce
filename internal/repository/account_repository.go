package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"

	"github.com/securebank/securebank/internal/database"
	"github.com/securebank/securebank/internal/interfaces"
	"github.com/securebank/securebank/internal/model"
)

// AccountRepositoryImpl implements the AccountRepository interface
type AccountRepositoryImpl struct {
	db *database.DB
}

var _ interfaces.AccountRepository = (*AccountRepositoryImpl)(nil)

func NewAccountRepository(db *database.DB) interfaces.AccountRepository {
	return &AccountRepositoryImpl{db: db}
}

const accountColumns = `id, user_id, account_number, account_type, balance, status, created_at`

func scanAccount(row pgx.Row) (*model.Account, error) {
	var account model.Account
	err := row.Scan(&account.ID, &account.UserID, &account.Number, &account.Type,
		&account.Balance, &account.Status, &account.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *AccountRepositoryImpl) Create(ctx context.Context, userID int64, number string, accType model.AccountType) (*model.Account, error) {
	row := r.db.Pool.QueryRow(ctx,
		`INSERT INTO accounts (user_id, account_number, account_type, balance, status)
		 VALUES ($1, $2, $3, 0.00, $4)
		 RETURNING `+accountColumns,
		userID, number, accType, model.AccountActive)

	account, err := scanAccount(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, ErrDuplicateNumber
		}
		return nil, err
	}
	return account, nil
}

func (r *AccountRepositoryImpl) GetByID(ctx context.Context, id int64) (*model.Account, error) {
	return scanAccount(r.db.Pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
}

func (r *AccountRepositoryImpl) ListByUser(ctx context.Context, userID int64) ([]*model.Account, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []*model.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

func (r *AccountRepositoryImpl) HasActiveOfType(ctx context.Context, userID int64, accType model.AccountType) (bool, error) {
	var exists bool
	err := r.db.Pool.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM accounts
		   WHERE user_id = $1 AND account_type = $2 AND status = $3
		 )`,
		userID, accType, model.AccountActive).Scan(&exists)
	return exists, err
}

func (r *AccountRepositoryImpl) NumberExists(ctx context.Context, number string) (bool, error) {
	var exists bool
	err := r.db.Pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM accounts WHERE account_number = $1)`, number).Scan(&exists)
	return exists, err
}

func (r *AccountRepositoryImpl) FirstActiveForUser(ctx context.Context, userID int64) (*model.Account, error) {
	return scanAccount(r.db.Pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts
		 WHERE user_id = $1 AND status = $2
		 ORDER BY created_at LIMIT 1`,
		userID, model.AccountActive))
}

func (r *AccountRepositoryImpl) SetStatus(ctx context.Context, id int64, status model.AccountStatus) error {
	result, err := r.db.Pool.Exec(ctx,
		`UPDATE accounts SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}
