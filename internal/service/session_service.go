package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/securebank/securebank/internal/interfaces"
	"github.com/securebank/securebank/internal/model"
	"github.com/securebank/securebank/internal/repository"
)

// SessionService issues signed tokens backed by authoritative server-side
// session rows. The token's jti claim keys the row; the row decides
// revocation, idle expiry and the bound CSRF secret. Expiry is sliding:
// each validated access extends last-activity up to an absolute cap.
type SessionService struct {
	sessions interfaces.SessionRepository
	users    interfaces.UserRepository

	secret      []byte
	idleTimeout time.Duration
	maxLifetime time.Duration

	now func() time.Time
}

func NewSessionService(sessions interfaces.SessionRepository, users interfaces.UserRepository, secret string, idleTimeout, maxLifetime time.Duration) *SessionService {
	return &SessionService{
		sessions:    sessions,
		users:       users,
		secret:      []byte(secret),
		idleTimeout: idleTimeout,
		maxLifetime: maxLifetime,
		now:         time.Now,
	}
}

// Create opens a session for the user and returns the signed token. A fresh
// unguessable CSRF secret is bound to the session at creation.
func (s *SessionService) Create(ctx context.Context, user *model.User) (*model.Session, string, error) {
	csrfSecret, err := generateCSRFSecret()
	if err != nil {
		return nil, "", err
	}

	now := s.now()
	session := &model.Session{
		TokenID:      uuid.New().String(),
		UserID:       user.ID,
		CSRFSecret:   csrfSecret,
		CreatedAt:    now,
		LastActivity: now,
		ExpiresAt:    now.Add(s.maxLifetime),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, "", err
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   user.Username,
		ID:        session.TokenID,
		ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
		IssuedAt:  jwt.NewNumericDate(now),
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return nil, "", err
	}
	return session, signed, nil
}

// Validate checks the token signature, resolves the session row and the
// user behind it, enforces idle and absolute expiry, and slides the
// last-activity time forward. Any unresolvable state fails closed.
func (s *SessionService) Validate(ctx context.Context, tokenString string) (*model.Session, *model.User, error) {
	tokenID, err := s.parseTokenID(tokenString)
	if err != nil {
		return nil, nil, err
	}

	session, err := s.sessions.GetByTokenID(ctx, tokenID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, nil, ErrSessionNotFound
		}
		return nil, nil, err
	}

	now := s.now()
	if now.After(session.ExpiresAt) || now.Sub(session.LastActivity) > s.idleTimeout {
		// Expired rows are dropped eagerly; the maintenance job catches
		// whatever validation never touches.
		_ = s.sessions.Revoke(ctx, session.TokenID)
		return nil, nil, ErrSessionExpired
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil || !user.IsActive {
		_ = s.sessions.Revoke(ctx, session.TokenID)
		return nil, nil, ErrSessionNotFound
	}

	session.LastActivity = now
	if err := s.sessions.Touch(ctx, session.TokenID, now); err != nil {
		return nil, nil, err
	}
	return session, user, nil
}

// ValidateCSRF compares the supplied token against the session's bound
// secret in constant time.
func (s *SessionService) ValidateCSRF(session *model.Session, supplied string) bool {
	if session == nil || supplied == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(session.CSRFSecret), []byte(supplied)) == 1
}

// Revoke destroys the session behind the token. Used by logout.
func (s *SessionService) Revoke(ctx context.Context, tokenString string) error {
	tokenID, err := s.parseTokenID(tokenString)
	if err != nil {
		return err
	}
	if err := s.sessions.Revoke(ctx, tokenID); err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return ErrSessionNotFound
		}
		return err
	}
	return nil
}

// RevokeAll destroys every session of a user, for administrative action or
// password change.
func (s *SessionService) RevokeAll(ctx context.Context, userID int64) error {
	return s.sessions.RevokeAll(ctx, userID)
}

func (s *SessionService) parseTokenID(tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrSessionNotFound
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrSessionExpired
		}
		return "", ErrSessionNotFound
	}
	if !token.Valid || claims.ID == "" {
		return "", ErrSessionNotFound
	}
	return claims.ID, nil
}

func generateCSRFSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
