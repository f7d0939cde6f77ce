package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/securebank/securebank/internal/model"
	"github.com/securebank/securebank/internal/service"
)

type contextKey string

const (
	sessionKey = contextKey("session")
	userKey    = contextKey("user")
)

// SessionCookie is the name of the cookie carrying the session token. The
// login handler sets it HttpOnly and Secure; this core assumes scripts
// cannot read it and it only travels over encrypted transport.
const SessionCookie = "session_token"

// SessionFrom returns the validated session placed in the context by
// Authenticate, if any.
func SessionFrom(ctx context.Context) (*model.Session, bool) {
	s, ok := ctx.Value(sessionKey).(*model.Session)
	return s, ok
}

// UserFrom returns the authenticated user placed in the context by
// Authenticate, if any.
func UserFrom(ctx context.Context) (*model.User, bool) {
	u, ok := ctx.Value(userKey).(*model.User)
	return u, ok
}

// WithIdentity returns a context carrying the session and user, exported
// for handler tests.
func WithIdentity(ctx context.Context, session *model.Session, user *model.User) context.Context {
	ctx = context.WithValue(ctx, sessionKey, session)
	return context.WithValue(ctx, userKey, user)
}

// Authenticate resolves the session token, when present, into a session and
// user on the request context. It never rejects: enforcement belongs to
// RequireAuth and RequireRole. Running it first lets the rate limiter key
// by user and recognize administrators.
func Authenticate(sessions *service.SessionService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFrom(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			session, user, err := sessions.Validate(r.Context(), token)
			if err != nil {
				// Invalid tokens degrade to anonymous.
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), session, user)))
		})
	}
}

// RequireAuth rejects requests that did not resolve to a session.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := SessionFrom(r.Context()); !ok {
			writeJSONError(w, "authentication required", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole gates a subtree on a role. It fails closed: no session, no
// user, or any role other than the required one is denied.
func RequireRole(role model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFrom(r.Context())
			if !ok {
				writeJSONError(w, "authentication required", http.StatusUnauthorized)
				return
			}
			if user.Role != role {
				writeJSONError(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// TokenFrom extracts the raw session token, preferring the Authorization
// header over the session cookie.
func TokenFrom(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1]
		}
	}
	if cookie, err := r.Cookie(SessionCookie); err == nil {
		return cookie.Value
	}
	return ""
}
