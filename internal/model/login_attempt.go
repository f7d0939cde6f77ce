package model

import "time"

// LoginAttempt is an append-only audit record. The lockout tracker derives
// lock state from these rows, never from a separately mutable flag.
type LoginAttempt struct {
	ID          int64
	Username    string
	Success     bool
	IPAddress   string
	UserAgent   string
	AttemptedAt time.Time
}
