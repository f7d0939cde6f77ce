package service

import (
	"errors"
	"fmt"
	"time"
)

// Service-level errors. Security failures are deliberately coarse: callers
// learn that credentials were bad, never which part was wrong.
var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrAccountLocked      = errors.New("account is temporarily locked")
	ErrWeakPassword       = errors.New("password does not meet the security policy")
	ErrInvalidUsername    = errors.New("username must be at least 3 characters of letters, digits or underscore")
	ErrInvalidEmail       = errors.New("email address is not valid")
	ErrDuplicateIdentity  = errors.New("username or email already registered")
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionExpired     = errors.New("session has expired")
	ErrInvalidAmount      = errors.New("amount must be a positive value with at most two decimal places")
	ErrInvalidAccountType = errors.New("account type must be checking or savings")
	ErrAccountTypeExists  = errors.New("an active account of this type already exists")
)

// LockedError reports how long a lock has left. It matches ErrAccountLocked
// under errors.Is so handlers can branch on the sentinel and still surface
// the remaining duration.
type LockedError struct {
	Remaining time.Duration
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("account is temporarily locked, retry in %s", e.Remaining.Round(time.Second))
}

func (e *LockedError) Is(target error) bool {
	return target == ErrAccountLocked
}
