package test

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/securebank/securebank/internal/interfaces"
	"github.com/securebank/securebank/internal/model"
	"github.com/securebank/securebank/internal/repository"
)

// Store is an in-memory database for tests. One mutex guards everything, so
// the repository views it exposes give the same atomicity the SQL
// implementations get from transactions and row locks.
type Store struct {
	mu sync.Mutex

	users        map[int64]*model.User
	accounts     map[int64]*model.Account
	transactions map[int64]*model.Transaction
	attempts     []*model.LoginAttempt
	sessions     map[string]*model.Session

	nextUserID        int64
	nextAccountID     int64
	nextTransactionID int64
	nextAttemptID     int64

	// Now is the clock rows are stamped with; tests override it to drive
	// window and expiry logic.
	Now func() time.Time
}

func NewStore() *Store {
	return &Store{
		users:        make(map[int64]*model.User),
		accounts:     make(map[int64]*model.Account),
		transactions: make(map[int64]*model.Transaction),
		sessions:     make(map[string]*model.Session),
		Now:          time.Now,
	}
}

func (s *Store) Users() interfaces.UserRepository               { return (*userRepo)(s) }
func (s *Store) Accounts() interfaces.AccountRepository         { return (*accountRepo)(s) }
func (s *Store) Transactions() interfaces.TransactionRepository { return (*transactionRepo)(s) }
func (s *Store) Attempts() interfaces.LoginAttemptRepository    { return (*attemptRepo)(s) }
func (s *Store) Sessions() interfaces.SessionRepository         { return (*sessionRepo)(s) }

// SeedAccount inserts an account directly, bypassing the service-level
// uniqueness rules, for test fixtures.
func (s *Store) SeedAccount(userID int64, number string, accType model.AccountType, balance decimal.Decimal) *model.Account {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextAccountID++
	a := &model.Account{
		ID:        s.nextAccountID,
		UserID:    userID,
		Number:    number,
		Type:      accType,
		Balance:   balance,
		Status:    model.AccountActive,
		CreatedAt: s.Now(),
	}
	s.accounts[a.ID] = a
	return a
}

// Account returns a copy of the stored account for assertions.
func (s *Store) Account(id int64) *model.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := *s.accounts[id]
	return &a
}

type userRepo Store

var _ interfaces.UserRepository = (*userRepo)(nil)

func (r *userRepo) Create(ctx context.Context, username, email, passwordHash string, role model.Role) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.Username == username {
			return nil, repository.ErrDuplicateUsername
		}
		if u.Email == email {
			return nil, repository.ErrDuplicateEmail
		}
	}

	r.nextUserID++
	u := &model.User{
		ID:           r.nextUserID,
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         role,
		IsActive:     true,
		CreatedAt:    r.Now(),
	}
	r.users[u.ID] = u
	copied := *u
	return &copied, nil
}

func (r *userRepo) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.Username == username {
			copied := *u
			return &copied, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (r *userRepo) GetByID(ctx context.Context, id int64) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

func (r *userRepo) UpdateLastLogin(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	now := r.Now()
	u.LastLogin = &now
	u.FailedAttempts = 0
	u.LockedUntil = nil
	return nil
}

func (r *userRepo) SetLockState(ctx context.Context, id int64, failedAttempts int, lockedUntil *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.FailedAttempts = failedAttempts
	u.LockedUntil = lockedUntil
	return nil
}

func (r *userRepo) ListLocked(ctx context.Context, now time.Time) ([]*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*model.User
	for _, u := range r.users {
		if u.LockedUntil != nil && u.LockedUntil.After(now) {
			copied := *u
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *userRepo) SetActive(ctx context.Context, id int64, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.IsActive = active
	return nil
}

func (r *userRepo) UpdatePasswordHash(ctx context.Context, id int64, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.PasswordHash = passwordHash
	return nil
}

type accountRepo Store

var _ interfaces.AccountRepository = (*accountRepo)(nil)

func (r *accountRepo) Create(ctx context.Context, userID int64, number string, accType model.AccountType) (*model.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, a := range r.accounts {
		if a.Number == number {
			return nil, repository.ErrDuplicateNumber
		}
	}

	r.nextAccountID++
	a := &model.Account{
		ID:        r.nextAccountID,
		UserID:    userID,
		Number:    number,
		Type:      accType,
		Balance:   decimal.Zero,
		Status:    model.AccountActive,
		CreatedAt: r.Now(),
	}
	r.accounts[a.ID] = a
	copied := *a
	return &copied, nil
}

func (r *accountRepo) GetByID(ctx context.Context, id int64) (*model.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.accounts[id]
	if !ok {
		return nil, repository.ErrAccountNotFound
	}
	copied := *a
	return &copied, nil
}

func (r *accountRepo) ListByUser(ctx context.Context, userID int64) ([]*model.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*model.Account
	for _, a := range r.accounts {
		if a.UserID == userID {
			copied := *a
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *accountRepo) HasActiveOfType(ctx context.Context, userID int64, accType model.AccountType) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, a := range r.accounts {
		if a.UserID == userID && a.Type == accType && a.Status == model.AccountActive {
			return true, nil
		}
	}
	return false, nil
}

func (r *accountRepo) NumberExists(ctx context.Context, number string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, a := range r.accounts {
		if a.Number == number {
			return true, nil
		}
	}
	return false, nil
}

func (r *accountRepo) FirstActiveForUser(ctx context.Context, userID int64) (*model.Account, error) {
	accounts, err := r.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, a := range accounts {
		if a.Status == model.AccountActive {
			return a, nil
		}
	}
	return nil, repository.ErrAccountNotFound
}

func (r *accountRepo) SetStatus(ctx context.Context, id int64, status model.AccountStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.accounts[id]
	if !ok {
		return repository.ErrAccountNotFound
	}
	a.Status = status
	return nil
}

type transactionRepo Store

var _ interfaces.TransactionRepository = (*transactionRepo)(nil)

func (r *transactionRepo) Transfer(ctx context.Context, userID, sourceAccountID int64, destNumber string, amount decimal.Decimal, encDescription, clientIP string) (*model.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var dest *model.Account
	for _, a := range r.accounts {
		if a.Number == destNumber {
			dest = a
			break
		}
	}
	if dest == nil {
		return nil, repository.ErrInvalidDestination
	}
	if dest.ID == sourceAccountID {
		return nil, repository.ErrSelfTransfer
	}

	source, ok := r.accounts[sourceAccountID]
	if !ok || source.UserID != userID {
		return nil, repository.ErrAccountNotFound
	}
	if source.Status != model.AccountActive || dest.Status != model.AccountActive {
		return nil, repository.ErrAccountInactive
	}
	if source.Balance.LessThan(amount) {
		return nil, repository.ErrInsufficientFunds
	}

	source.Balance = source.Balance.Sub(amount)
	dest.Balance = dest.Balance.Add(amount)

	srcID, dstID := source.ID, dest.ID
	return r.insert(&model.Transaction{
		Type:          model.TypeTransfer,
		Status:        model.StatusCompleted,
		Amount:        amount,
		Description:   encDescription,
		FromAccountID: &srcID,
		ToAccountID:   &dstID,
		UserID:        userID,
		IPAddress:     clientIP,
	}), nil
}

func (r *transactionRepo) Reverse(ctx context.Context, adminUserID, transactionID int64, encDescription, clientIP string) (*model.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	original, ok := r.transactions[transactionID]
	if !ok {
		return nil, repository.ErrTransactionNotFound
	}
	if original.Type != model.TypeTransfer || original.Status != model.StatusCompleted ||
		original.FromAccountID == nil || original.ToAccountID == nil {
		return nil, repository.ErrNotReversible
	}
	for _, t := range r.transactions {
		if t.ReversalOf != nil && *t.ReversalOf == transactionID {
			return nil, repository.ErrAlreadyReversed
		}
	}

	debit, ok := r.accounts[*original.ToAccountID]
	if !ok {
		return nil, repository.ErrAccountNotFound
	}
	credit, ok := r.accounts[*original.FromAccountID]
	if !ok {
		return nil, repository.ErrAccountNotFound
	}
	if debit.Balance.LessThan(original.Amount) {
		return nil, repository.ErrInsufficientFunds
	}

	debit.Balance = debit.Balance.Sub(original.Amount)
	credit.Balance = credit.Balance.Add(original.Amount)

	debitID, creditID, origID := debit.ID, credit.ID, transactionID
	return r.insert(&model.Transaction{
		Type:          model.TypeTransfer,
		Status:        model.StatusReversed,
		Amount:        original.Amount,
		Description:   encDescription,
		FromAccountID: &debitID,
		ToAccountID:   &creditID,
		UserID:        adminUserID,
		ReversalOf:    &origID,
		IPAddress:     clientIP,
	}), nil
}

func (r *transactionRepo) Deposit(ctx context.Context, adminUserID, accountID int64, amount decimal.Decimal, encDescription, clientIP string) (*model.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.accounts[accountID]
	if !ok {
		return nil, repository.ErrAccountNotFound
	}
	a.Balance = a.Balance.Add(amount)

	toID := a.ID
	return r.insert(&model.Transaction{
		Type:        model.TypeDeposit,
		Status:      model.StatusCompleted,
		Amount:      amount,
		Description: encDescription,
		ToAccountID: &toID,
		UserID:      adminUserID,
		IPAddress:   clientIP,
	}), nil
}

func (r *transactionRepo) Record(ctx context.Context, t *model.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := r.insert(t)
	t.ID = stored.ID
	t.CreatedAt = stored.CreatedAt
	return nil
}

// insert assumes the caller holds the mutex.
func (r *transactionRepo) insert(t *model.Transaction) *model.Transaction {
	r.nextTransactionID++
	copied := *t
	copied.ID = r.nextTransactionID
	copied.CreatedAt = r.Now()
	r.transactions[copied.ID] = &copied
	returned := copied
	return &returned
}

func (r *transactionRepo) GetByID(ctx context.Context, id int64) (*model.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.transactions[id]
	if !ok {
		return nil, repository.ErrTransactionNotFound
	}
	copied := *t
	return &copied, nil
}

func (r *transactionRepo) ListByAccount(ctx context.Context, accountID int64, limit int) ([]*model.Transaction, error) {
	return r.list(limit, func(t *model.Transaction) bool {
		return (t.FromAccountID != nil && *t.FromAccountID == accountID) ||
			(t.ToAccountID != nil && *t.ToAccountID == accountID)
	})
}

func (r *transactionRepo) ListByUser(ctx context.Context, userID int64, limit int) ([]*model.Transaction, error) {
	return r.list(limit, func(t *model.Transaction) bool { return t.UserID == userID })
}

func (r *transactionRepo) list(limit int, match func(*model.Transaction) bool) ([]*model.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*model.Transaction
	for _, t := range r.transactions {
		if match(t) {
			copied := *t
			out = append(out, &copied)
		}
	}
	// Newest first, matching the SQL ordering.
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type attemptRepo Store

var _ interfaces.LoginAttemptRepository = (*attemptRepo)(nil)

func (r *attemptRepo) Record(ctx context.Context, attempt *model.LoginAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextAttemptID++
	attempt.ID = r.nextAttemptID
	if attempt.AttemptedAt.IsZero() {
		attempt.AttemptedAt = r.Now()
	}
	copied := *attempt
	r.attempts = append(r.attempts, &copied)
	return nil
}

func (r *attemptRepo) FailureRun(ctx context.Context, username string, window time.Duration) (int, time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var lastSuccess time.Time
	for _, a := range r.attempts {
		if a.Username == username && a.Success && a.AttemptedAt.After(lastSuccess) {
			lastSuccess = a.AttemptedAt
		}
	}

	cutoff := r.Now().Add(-window)
	count := 0
	var lastFailure time.Time
	for _, a := range r.attempts {
		if a.Username != username || a.Success {
			continue
		}
		if a.AttemptedAt.Before(cutoff) || !a.AttemptedAt.After(lastSuccess) {
			continue
		}
		count++
		if a.AttemptedAt.After(lastFailure) {
			lastFailure = a.AttemptedAt
		}
	}
	return count, lastFailure, nil
}

func (r *attemptRepo) CountFailuresSince(ctx context.Context, since time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, a := range r.attempts {
		if !a.Success && !a.AttemptedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (r *attemptRepo) ListFailuresSince(ctx context.Context, since time.Time, limit int) ([]*model.LoginAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*model.LoginAttempt
	for _, a := range r.attempts {
		if !a.Success && !a.AttemptedAt.Before(since) {
			copied := *a
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AttemptedAt.After(out[j].AttemptedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *attemptRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.attempts[:0]
	var removed int64
	for _, a := range r.attempts {
		if a.AttemptedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, a)
	}
	r.attempts = kept
	return removed, nil
}

type sessionRepo Store

var _ interfaces.SessionRepository = (*sessionRepo)(nil)

func (r *sessionRepo) Create(ctx context.Context, session *model.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *session
	r.sessions[session.TokenID] = &copied
	return nil
}

func (r *sessionRepo) GetByTokenID(ctx context.Context, tokenID string) (*model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[tokenID]
	if !ok {
		return nil, repository.ErrSessionNotFound
	}
	copied := *s
	return &copied, nil
}

func (r *sessionRepo) Touch(ctx context.Context, tokenID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[tokenID]
	if !ok {
		return repository.ErrSessionNotFound
	}
	s.LastActivity = at
	return nil
}

func (r *sessionRepo) Revoke(ctx context.Context, tokenID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[tokenID]; !ok {
		return repository.ErrSessionNotFound
	}
	delete(r.sessions, tokenID)
	return nil
}

func (r *sessionRepo) RevokeAll(ctx context.Context, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, s := range r.sessions {
		if s.UserID == userID {
			delete(r.sessions, id)
		}
	}
	return nil
}

func (r *sessionRepo) DeleteExpired(ctx context.Context, now time.Time, idle time.Duration) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed int64
	for id, s := range r.sessions {
		if s.ExpiresAt.Before(now) || s.LastActivity.Before(now.Add(-idle)) {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed, nil
}
