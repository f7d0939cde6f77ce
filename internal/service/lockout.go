package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/securebank/securebank/internal/interfaces"
	"github.com/securebank/securebank/internal/metrics"
	"github.com/securebank/securebank/internal/model"
)

// LockoutTracker decides lock state strictly from the login_attempts log:
// an identity is locked while it has at least threshold failures inside the
// window since its last success, and the most recent of those failures is
// less than lockDuration old. Resetting an in-memory counter cannot bypass
// a lock because there is no in-memory counter.
type LockoutTracker struct {
	attempts  interfaces.LoginAttemptRepository
	users     interfaces.UserRepository
	collector *metrics.Collector

	threshold    int
	window       time.Duration
	lockDuration time.Duration

	mu    sync.Mutex
	locks map[string]*userLock

	now func() time.Time
}

// userLock is a keyed mutex entry. refs counts holders and waiters; the
// entry is dropped from the map when the last one releases, so the map only
// holds identities with an attempt in flight.
type userLock struct {
	mu   sync.Mutex
	refs int
}

func NewLockoutTracker(attempts interfaces.LoginAttemptRepository, users interfaces.UserRepository, collector *metrics.Collector, threshold int, window, lockDuration time.Duration) *LockoutTracker {
	return &LockoutTracker{
		attempts:     attempts,
		users:        users,
		collector:    collector,
		threshold:    threshold,
		window:       window,
		lockDuration: lockDuration,
		locks:        make(map[string]*userLock),
		now:          time.Now,
	}
}

// Acquire serializes attempt handling per identity so two concurrent
// failures against the same account are both counted. The returned func
// releases the critical section.
func (t *LockoutTracker) Acquire(username string) func() {
	t.mu.Lock()
	l, ok := t.locks[username]
	if !ok {
		l = &userLock{}
		t.locks[username] = l
	}
	l.refs++
	t.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		t.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(t.locks, username)
		}
		t.mu.Unlock()
	}
}

// Status reports whether the identity is currently locked and for how much
// longer. Callers that need record-then-decide consistency must hold
// Acquire around Status and the subsequent Record call.
func (t *LockoutTracker) Status(ctx context.Context, username string) (bool, time.Duration, error) {
	count, lastFailure, err := t.attempts.FailureRun(ctx, username, t.window)
	if err != nil {
		return false, 0, fmt.Errorf("reading attempt history: %w", err)
	}
	if count < t.threshold {
		return false, 0, nil
	}

	until := lastFailure.Add(t.lockDuration)
	remaining := until.Sub(t.now())
	if remaining <= 0 {
		return false, 0, nil
	}
	return true, remaining, nil
}

// Record durably appends the attempt before any decision is returned to the
// caller, then refreshes the user's advisory lock columns.
func (t *LockoutTracker) Record(ctx context.Context, username, ip, userAgent string, success bool) error {
	attempt := &model.LoginAttempt{
		Username:  username,
		Success:   success,
		IPAddress: ip,
		UserAgent: userAgent,
	}
	if err := t.attempts.Record(ctx, attempt); err != nil {
		return fmt.Errorf("recording login attempt: %w", err)
	}
	t.collector.ObserveLogin(success)

	if success {
		return nil
	}
	return t.refreshAdvisoryState(ctx, username)
}

// refreshAdvisoryState mirrors the log-derived state onto the user row for
// operator visibility. Failures here are logged, not surfaced: the log
// already holds the truth.
func (t *LockoutTracker) refreshAdvisoryState(ctx context.Context, username string) error {
	count, lastFailure, err := t.attempts.FailureRun(ctx, username, t.window)
	if err != nil {
		return fmt.Errorf("reading attempt history: %w", err)
	}

	user, err := t.users.GetByUsername(ctx, username)
	if err != nil {
		// Unknown usernames still get their attempts logged.
		return nil
	}

	var until *time.Time
	if count >= t.threshold {
		u := lastFailure.Add(t.lockDuration)
		until = &u
		t.collector.IncLockout()
		log.Warn().Str("username", username).Int("failures", count).
			Time("locked_until", u).Msg("account locked after repeated failures")
	}
	if err := t.users.SetLockState(ctx, user.ID, count, until); err != nil {
		log.Error().Err(err).Str("username", username).Msg("failed to update advisory lock state")
	}
	return nil
}

// Overview summarizes the security posture for the operator dashboard:
// recent failed attempts, the total over the window, and the users whose
// advisory lock is still in force.
type Overview struct {
	FailedTotal    int
	RecentFailures []*model.LoginAttempt
	LockedUsers    []*model.User
}

func (t *LockoutTracker) Overview(ctx context.Context, since time.Time, limit int) (*Overview, error) {
	total, err := t.attempts.CountFailuresSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("counting failed attempts: %w", err)
	}
	recent, err := t.attempts.ListFailuresSince(ctx, since, limit)
	if err != nil {
		return nil, fmt.Errorf("listing failed attempts: %w", err)
	}
	locked, err := t.users.ListLocked(ctx, t.now())
	if err != nil {
		return nil, fmt.Errorf("listing locked users: %w", err)
	}
	return &Overview{FailedTotal: total, RecentFailures: recent, LockedUsers: locked}, nil
}

// Unlock resets the failure run by appending an audited synthetic success
// attempt. The log stays append-only and the reset itself is visible in it.
func (t *LockoutTracker) Unlock(ctx context.Context, username, adminIP string) error {
	release := t.Acquire(username)
	defer release()

	attempt := &model.LoginAttempt{
		Username:  username,
		Success:   true,
		IPAddress: adminIP,
		UserAgent: "administrative unlock",
	}
	if err := t.attempts.Record(ctx, attempt); err != nil {
		return fmt.Errorf("recording unlock: %w", err)
	}

	user, err := t.users.GetByUsername(ctx, username)
	if err != nil {
		return err
	}
	return t.users.SetLockState(ctx, user.ID, 0, nil)
}
