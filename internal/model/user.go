package model

import "time"

// Role enumerates the access levels a user can hold. Checks against it fail
// closed: anything that is not RoleAdmin is treated as a standard user.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

type User struct {
	ID             int64
	Username       string
	Email          string
	PasswordHash   string // hashed, never the raw password
	Role           Role
	FailedAttempts int
	LockedUntil    *time.Time
	LastLogin      *time.Time
	IsActive       bool
	CreatedAt      time.Time
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
