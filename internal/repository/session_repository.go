package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"

	"github.com/securebank/securebank/internal/database"
	"github.com/securebank/securebank/internal/interfaces"
	"github.com/securebank/securebank/internal/model"
)

// SessionRepositoryImpl implements the SessionRepository interface
type SessionRepositoryImpl struct {
	db *database.DB
}

var _ interfaces.SessionRepository = (*SessionRepositoryImpl)(nil)

func NewSessionRepository(db *database.DB) interfaces.SessionRepository {
	return &SessionRepositoryImpl{db: db}
}

func (r *SessionRepositoryImpl) Create(ctx context.Context, session *model.Session) error {
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO sessions (token_id, user_id, csrf_secret, created_at, last_activity, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		session.TokenID, session.UserID, session.CSRFSecret,
		session.CreatedAt, session.LastActivity, session.ExpiresAt)
	return err
}

func (r *SessionRepositoryImpl) GetByTokenID(ctx context.Context, tokenID string) (*model.Session, error) {
	var s model.Session
	err := r.db.Pool.QueryRow(ctx,
		`SELECT token_id, user_id, csrf_secret, created_at, last_activity, expires_at
		 FROM sessions WHERE token_id = $1`,
		tokenID).Scan(&s.TokenID, &s.UserID, &s.CSRFSecret, &s.CreatedAt, &s.LastActivity, &s.ExpiresAt)
	if err == pgx.ErrNoRows {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SessionRepositoryImpl) Touch(ctx context.Context, tokenID string, at time.Time) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE sessions SET last_activity = $2 WHERE token_id = $1`, tokenID, at)
	return err
}

// Revoke deletes the session row. A deleted row makes the signed token
// worthless immediately.
func (r *SessionRepositoryImpl) Revoke(ctx context.Context, tokenID string) error {
	result, err := r.db.Pool.Exec(ctx,
		`DELETE FROM sessions WHERE token_id = $1`, tokenID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (r *SessionRepositoryImpl) RevokeAll(ctx context.Context, userID int64) error {
	_, err := r.db.Pool.Exec(ctx,
		`DELETE FROM sessions WHERE user_id = $1`, userID)
	return err
}

func (r *SessionRepositoryImpl) DeleteExpired(ctx context.Context, now time.Time, idle time.Duration) (int64, error) {
	result, err := r.db.Pool.Exec(ctx,
		`DELETE FROM sessions WHERE expires_at < $1 OR last_activity < $2`,
		now, now.Add(-idle))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
