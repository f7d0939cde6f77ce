package middleware

import (
	"net/http"

	"github.com/securebank/securebank/internal/service"
)

// CSRFHeader carries the anti-forgery token. It travels out-of-band from
// cookies: a cross-site request can make the browser attach cookies but
// cannot read the token to put it in this header.
const CSRFHeader = "X-CSRFToken"

// RequireCSRF rejects state-changing requests whose header token does not
// match the secret bound to the session, before any business logic runs.
// Safe methods pass through.
func RequireCSRF(sessions *service.SessionService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}

			session, ok := SessionFrom(r.Context())
			if !ok {
				writeJSONError(w, "authentication required", http.StatusUnauthorized)
				return
			}
			if !sessions.ValidateCSRF(session, r.Header.Get(CSRFHeader)) {
				writeJSONError(w, "CSRF token validation failed", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
