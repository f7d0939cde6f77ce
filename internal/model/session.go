package model

import "time"

// Session is the authoritative server-side record behind a signed token.
// The token's jti claim keys this row; revocation, idle expiry and the CSRF
// secret all live here, so a token proves nothing once the row is gone.
type Session struct {
	TokenID      string // jti
	UserID       int64
	CSRFSecret   string
	CreatedAt    time.Time
	LastActivity time.Time
	ExpiresAt    time.Time // absolute cap, independent of activity
}
