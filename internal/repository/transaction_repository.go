package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/shopspring/decimal"

	"github.com/securebank/securebank/internal/database"
	"github.com/securebank/securebank/internal/interfaces"
	"github.com/securebank/securebank/internal/model"
)

// Typed transfer failures. The engine returns exactly one of these when a
// precondition fails; in every such case no balance was touched.
var (
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrAccountInactive    = errors.New("account is not active")
	ErrSelfTransfer       = errors.New("cannot transfer to the same account")
	ErrInvalidDestination = errors.New("destination account not found")
	ErrNotReversible      = errors.New("transaction cannot be reversed")
	ErrAlreadyReversed    = errors.New("transaction already reversed")
)

// TransactionRepositoryImpl implements the TransactionRepository interface.
//
// Transfer and Reverse serialize on the involved account rows with
// SELECT ... FOR UPDATE, locking in ascending id order so two transfers
// touching the same pair of accounts cannot deadlock. Balance checks run
// against the locked rows, which is what makes the sufficient-funds check
// safe under concurrency.
type TransactionRepositoryImpl struct {
	db *database.DB
}

var _ interfaces.TransactionRepository = (*TransactionRepositoryImpl)(nil)

func NewTransactionRepository(db *database.DB) interfaces.TransactionRepository {
	return &TransactionRepositoryImpl{db: db}
}

const transactionColumns = `id, transaction_type, status, amount, description,
	 from_account_id, to_account_id, user_id, reversal_of, ip_address, created_at`

func scanTransaction(row pgx.Row) (*model.Transaction, error) {
	var t model.Transaction
	err := row.Scan(&t.ID, &t.Type, &t.Status, &t.Amount, &t.Description,
		&t.FromAccountID, &t.ToAccountID, &t.UserID, &t.ReversalOf, &t.IPAddress, &t.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

type lockedAccount struct {
	id      int64
	userID  int64
	balance decimal.Decimal
	status  model.AccountStatus
}

// lockAccounts locks both account rows in ascending id order and returns
// them keyed by id.
func lockAccounts(ctx context.Context, tx pgx.Tx, firstID, secondID int64) (map[int64]*lockedAccount, error) {
	rows, err := tx.Query(ctx,
		`SELECT id, user_id, balance, status FROM accounts
		 WHERE id IN ($1, $2)
		 ORDER BY id
		 FOR UPDATE`,
		firstID, secondID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	locked := make(map[int64]*lockedAccount, 2)
	for rows.Next() {
		var a lockedAccount
		if err := rows.Scan(&a.id, &a.userID, &a.balance, &a.status); err != nil {
			return nil, err
		}
		locked[a.id] = &a
	}
	return locked, rows.Err()
}

// Transfer moves amount from the caller's source account to the account
// with destNumber. Either the paired debit/credit and the completed
// transaction row all commit, or nothing does.
func (r *TransactionRepositoryImpl) Transfer(ctx context.Context, userID, sourceAccountID int64, destNumber string, amount decimal.Decimal, encDescription, clientIP string) (*model.Transaction, error) {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var destID int64
	err = tx.QueryRow(ctx,
		`SELECT id FROM accounts WHERE account_number = $1`, destNumber).Scan(&destID)
	if err == pgx.ErrNoRows {
		return nil, ErrInvalidDestination
	}
	if err != nil {
		return nil, err
	}

	if destID == sourceAccountID {
		return nil, ErrSelfTransfer
	}

	locked, err := lockAccounts(ctx, tx, sourceAccountID, destID)
	if err != nil {
		return nil, err
	}

	source, ok := locked[sourceAccountID]
	if !ok || source.userID != userID {
		return nil, ErrAccountNotFound
	}
	dest, ok := locked[destID]
	if !ok {
		return nil, ErrInvalidDestination
	}

	if source.status != model.AccountActive || dest.status != model.AccountActive {
		return nil, ErrAccountInactive
	}
	if source.balance.LessThan(amount) {
		return nil, ErrInsufficientFunds
	}

	if _, err := tx.Exec(ctx,
		`UPDATE accounts SET balance = balance - $2 WHERE id = $1`, sourceAccountID, amount); err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx,
		`UPDATE accounts SET balance = balance + $2 WHERE id = $1`, destID, amount); err != nil {
		return nil, err
	}

	record, err := scanTransaction(tx.QueryRow(ctx,
		`INSERT INTO transactions
		   (transaction_type, status, amount, description, from_account_id, to_account_id, user_id, ip_address)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING `+transactionColumns,
		model.TypeTransfer, model.StatusCompleted, amount, encDescription,
		sourceAccountID, destID, userID, clientIP))
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return record, nil
}

// Reverse appends a compensating transaction crediting the original source
// and debiting the original destination. The original row is never mutated;
// a partial unique index on reversal_of guarantees at most one reversal.
func (r *TransactionRepositoryImpl) Reverse(ctx context.Context, adminUserID, transactionID int64, encDescription, clientIP string) (*model.Transaction, error) {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	original, err := scanTransaction(tx.QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = $1 FOR UPDATE`,
		transactionID))
	if err != nil {
		return nil, err
	}

	if original.Type != model.TypeTransfer || original.Status != model.StatusCompleted ||
		original.FromAccountID == nil || original.ToAccountID == nil {
		return nil, ErrNotReversible
	}

	var alreadyReversed bool
	err = tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM transactions WHERE reversal_of = $1)`,
		transactionID).Scan(&alreadyReversed)
	if err != nil {
		return nil, err
	}
	if alreadyReversed {
		return nil, ErrAlreadyReversed
	}

	// Funds flow back dest -> source, so the original destination is the
	// debited side here.
	debitID, creditID := *original.ToAccountID, *original.FromAccountID

	locked, err := lockAccounts(ctx, tx, debitID, creditID)
	if err != nil {
		return nil, err
	}
	debit, ok := locked[debitID]
	if !ok {
		return nil, ErrAccountNotFound
	}
	if _, ok := locked[creditID]; !ok {
		return nil, ErrAccountNotFound
	}

	if debit.balance.LessThan(original.Amount) {
		return nil, ErrInsufficientFunds
	}

	if _, err := tx.Exec(ctx,
		`UPDATE accounts SET balance = balance - $2 WHERE id = $1`, debitID, original.Amount); err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx,
		`UPDATE accounts SET balance = balance + $2 WHERE id = $1`, creditID, original.Amount); err != nil {
		return nil, err
	}

	record, err := scanTransaction(tx.QueryRow(ctx,
		`INSERT INTO transactions
		   (transaction_type, status, amount, description, from_account_id, to_account_id, user_id, reversal_of, ip_address)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING `+transactionColumns,
		model.TypeTransfer, model.StatusReversed, original.Amount, encDescription,
		debitID, creditID, adminUserID, transactionID, clientIP))
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return record, nil
}

// Deposit credits the account and appends the deposit row inside one
// transaction, so the balance cannot move without its ledger record.
func (r *TransactionRepositoryImpl) Deposit(ctx context.Context, adminUserID, accountID int64, amount decimal.Decimal, encDescription, clientIP string) (*model.Transaction, error) {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var id int64
	err = tx.QueryRow(ctx,
		`UPDATE accounts SET balance = balance + $2 WHERE id = $1 RETURNING id`,
		accountID, amount).Scan(&id)
	if err == pgx.ErrNoRows {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}

	record, err := scanTransaction(tx.QueryRow(ctx,
		`INSERT INTO transactions
		   (transaction_type, status, amount, description, to_account_id, user_id, ip_address)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING `+transactionColumns,
		model.TypeDeposit, model.StatusCompleted, amount, encDescription,
		accountID, adminUserID, clientIP))
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return record, nil
}

// Record appends a standalone ledger row: failed-transfer audit entries,
// rejected before any balance mutation.
func (r *TransactionRepositoryImpl) Record(ctx context.Context, t *model.Transaction) error {
	return r.db.Pool.QueryRow(ctx,
		`INSERT INTO transactions
		   (transaction_type, status, amount, description, from_account_id, to_account_id, user_id, ip_address)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, created_at`,
		t.Type, t.Status, t.Amount, t.Description,
		t.FromAccountID, t.ToAccountID, t.UserID, t.IPAddress).
		Scan(&t.ID, &t.CreatedAt)
}

func (r *TransactionRepositoryImpl) GetByID(ctx context.Context, id int64) (*model.Transaction, error) {
	return scanTransaction(r.db.Pool.QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id))
}

func (r *TransactionRepositoryImpl) ListByAccount(ctx context.Context, accountID int64, limit int) ([]*model.Transaction, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		 WHERE from_account_id = $1 OR to_account_id = $1
		 ORDER BY created_at DESC LIMIT $2`,
		accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTransactions(rows)
}

func (r *TransactionRepositoryImpl) ListByUser(ctx context.Context, userID int64, limit int) ([]*model.Transaction, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		 WHERE user_id = $1
		 ORDER BY created_at DESC LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTransactions(rows)
}

func collectTransactions(rows pgx.Rows) ([]*model.Transaction, error) {
	var out []*model.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
