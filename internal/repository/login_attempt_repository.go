package repository

import (
	"context"
	"time"

	"github.com/securebank/securebank/internal/database"
	"github.com/securebank/securebank/internal/interfaces"
	"github.com/securebank/securebank/internal/model"
)

// LoginAttemptRepositoryImpl implements the LoginAttemptRepository
// interface. The table is append-only: rows are inserted and pruned by the
// retention job, never updated.
type LoginAttemptRepositoryImpl struct {
	db *database.DB
}

var _ interfaces.LoginAttemptRepository = (*LoginAttemptRepositoryImpl)(nil)

func NewLoginAttemptRepository(db *database.DB) interfaces.LoginAttemptRepository {
	return &LoginAttemptRepositoryImpl{db: db}
}

func (r *LoginAttemptRepositoryImpl) Record(ctx context.Context, attempt *model.LoginAttempt) error {
	return r.db.Pool.QueryRow(ctx,
		`INSERT INTO login_attempts (username, success, ip_address, user_agent)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, attempted_at`,
		attempt.Username, attempt.Success, attempt.IPAddress, attempt.UserAgent).
		Scan(&attempt.ID, &attempt.AttemptedAt)
}

// FailureRun counts failures inside the window that happened after the
// identity's most recent success. A success therefore resets the run
// without any row ever being rewritten.
func (r *LoginAttemptRepositoryImpl) FailureRun(ctx context.Context, username string, window time.Duration) (int, time.Time, error) {
	cutoff := time.Now().Add(-window)

	var count int
	var lastFailure *time.Time
	err := r.db.Pool.QueryRow(ctx,
		`SELECT COUNT(*), MAX(attempted_at)
		 FROM login_attempts
		 WHERE username = $1
		   AND success = FALSE
		   AND attempted_at > $2
		   AND attempted_at > COALESCE(
		     (SELECT MAX(attempted_at) FROM login_attempts
		      WHERE username = $1 AND success = TRUE),
		     'epoch'::timestamptz)`,
		username, cutoff).Scan(&count, &lastFailure)
	if err != nil {
		return 0, time.Time{}, err
	}
	if lastFailure == nil {
		return count, time.Time{}, nil
	}
	return count, *lastFailure, nil
}

func (r *LoginAttemptRepositoryImpl) CountFailuresSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := r.db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM login_attempts WHERE success = FALSE AND attempted_at >= $1`,
		since).Scan(&count)
	return count, err
}

func (r *LoginAttemptRepositoryImpl) ListFailuresSince(ctx context.Context, since time.Time, limit int) ([]*model.LoginAttempt, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT id, username, success, ip_address, user_agent, attempted_at
		 FROM login_attempts
		 WHERE success = FALSE AND attempted_at >= $1
		 ORDER BY attempted_at DESC LIMIT $2`,
		since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.LoginAttempt
	for rows.Next() {
		var a model.LoginAttempt
		if err := rows.Scan(&a.ID, &a.Username, &a.Success, &a.IPAddress, &a.UserAgent, &a.AttemptedAt); err != nil {
			return nil, err
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

func (r *LoginAttemptRepositoryImpl) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.Pool.Exec(ctx,
		`DELETE FROM login_attempts WHERE attempted_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
