package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/securebank/securebank/internal/interfaces"
	"github.com/securebank/securebank/internal/model"
	"github.com/securebank/securebank/internal/repository"
)

// bcrypt cost factor of 12 (recommended minimum)
const bcryptCost = 12

var (
	usernameRe = regexp.MustCompile(`^[a-zA-Z0-9_]{3,80}$`)
	emailRe    = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

	// Compared against when the username is unknown so the two failure
	// paths cost roughly the same.
	dummyHash, _ = bcrypt.GenerateFromPassword([]byte("uniform-timing-placeholder"), bcryptCost)
)

// AuthService is the credential store: registration with the password
// policy, verification with a uniform failure mode, and re-hash operations.
type AuthService struct {
	users   interfaces.UserRepository
	lockout *LockoutTracker
}

func NewAuthService(users interfaces.UserRepository, lockout *LockoutTracker) *AuthService {
	return &AuthService{users: users, lockout: lockout}
}

// ValidatePassword enforces the registration password policy. The returned
// error wraps ErrWeakPassword and names the first unmet rule.
func ValidatePassword(password string) error {
	switch {
	case len(password) < 8:
		return fmt.Errorf("%w: must be at least 8 characters", ErrWeakPassword)
	case !strings.ContainsFunc(password, func(r rune) bool { return r >= 'A' && r <= 'Z' }):
		return fmt.Errorf("%w: must contain an uppercase letter", ErrWeakPassword)
	case !strings.ContainsFunc(password, func(r rune) bool { return r >= 'a' && r <= 'z' }):
		return fmt.Errorf("%w: must contain a lowercase letter", ErrWeakPassword)
	case !strings.ContainsFunc(password, func(r rune) bool { return r >= '0' && r <= '9' }):
		return fmt.Errorf("%w: must contain a digit", ErrWeakPassword)
	case !strings.ContainsAny(password, "!@#$%^&*"):
		return fmt.Errorf("%w: must contain a symbol (!@#$%%^&*)", ErrWeakPassword)
	}
	return nil
}

// Register creates a new user with a hashed password. The raw password is
// hashed immediately and never stored or logged.
func (s *AuthService) Register(ctx context.Context, username, email, password string) (*model.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(strings.ToLower(email))

	if !usernameRe.MatchString(username) {
		return nil, ErrInvalidUsername
	}
	if !emailRe.MatchString(email) {
		return nil, ErrInvalidEmail
	}
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, err
	}

	user, err := s.users.Create(ctx, username, email, string(hash), model.RoleUser)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicateUsername):
			return nil, fmt.Errorf("%w: username taken", ErrDuplicateIdentity)
		case errors.Is(err, repository.ErrDuplicateEmail):
			return nil, fmt.Errorf("%w: email taken", ErrDuplicateIdentity)
		}
		return nil, err
	}

	log.Info().Str("username", user.Username).Int64("user_id", user.ID).Msg("user registered")
	return user, nil
}

// Login verifies credentials under the lockout policy. The attempt is
// durably recorded before the outcome is returned, inside a per-identity
// critical section so concurrent failures all count. Unknown username,
// wrong password and deactivated user are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, username, password, clientIP, userAgent string) (*model.User, error) {
	release := s.lockout.Acquire(username)
	defer release()

	locked, remaining, err := s.lockout.Status(ctx, username)
	if err != nil {
		return nil, err
	}
	if locked {
		if err := s.lockout.Record(ctx, username, clientIP, userAgent, false); err != nil {
			return nil, err
		}
		return nil, &LockedError{Remaining: remaining}
	}

	user, lookupErr := s.users.GetByUsername(ctx, username)

	ok := false
	if lookupErr == nil && user.IsActive {
		ok = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) == nil
	} else {
		// Burn comparable work for unknown or inactive identities.
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
	}

	if err := s.lockout.Record(ctx, username, clientIP, userAgent, ok); err != nil {
		return nil, err
	}

	if !ok {
		return nil, ErrInvalidCredentials
	}

	if err := s.users.UpdateLastLogin(ctx, user.ID); err != nil {
		return nil, err
	}
	return user, nil
}

// ResetPassword re-hashes the password after verifying the current one. It
// runs under the same lockout accounting as login so it cannot be used as
// an unthrottled credential oracle.
func (s *AuthService) ResetPassword(ctx context.Context, username, currentPassword, newPassword, clientIP, userAgent string) error {
	user, err := s.Login(ctx, username, currentPassword, clientIP, userAgent)
	if err != nil {
		return err
	}
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcryptCost)
	if err != nil {
		return err
	}
	return s.users.UpdatePasswordHash(ctx, user.ID, string(hash))
}

// AdminResetPassword re-hashes without the current password and clears any
// lock, for operator use only. Authorization is enforced at the boundary.
func (s *AuthService) AdminResetPassword(ctx context.Context, userID int64, newPassword, adminIP string) error {
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcryptCost)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePasswordHash(ctx, user.ID, string(hash)); err != nil {
		return err
	}
	return s.lockout.Unlock(ctx, user.Username, adminIP)
}

// UnlockUser clears an active lock for operator use. The reset is audited
// through the attempt log.
func (s *AuthService) UnlockUser(ctx context.Context, userID int64, adminIP string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	return s.lockout.Unlock(ctx, user.Username, adminIP)
}

// SetUserActive deactivates or reactivates a user. Users are never deleted.
func (s *AuthService) SetUserActive(ctx context.Context, userID int64, active bool) error {
	return s.users.SetActive(ctx, userID, active)
}

// SeedAdmin creates the initial administrator on first boot when no user
// with the admin username exists yet.
func (s *AuthService) SeedAdmin(ctx context.Context, password string) error {
	_, err := s.users.GetByUsername(ctx, "admin")
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return err
	}
	if err := ValidatePassword(password); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return err
	}
	if _, err := s.users.Create(ctx, "admin", "admin@securebank.com", string(hash), model.RoleAdmin); err != nil {
		return err
	}
	log.Info().Msg("default admin user created")
	return nil
}
