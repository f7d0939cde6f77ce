package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"

	"github.com/securebank/securebank/internal/metrics"
)

// Route-class tiers for rate limiting.
const (
	TierGlobal = "global"
	TierAuth   = "auth"
)

// RateLimit builds a tiered rate-limit middleware over httprate's sliding
// window counters. Requests are keyed by the authenticated user id when a
// session was resolved, by client IP otherwise. A request from a session
// already recognized as an administrator bypasses the limiter entirely;
// the check fails closed to "not an admin".
//
// Counters live in process memory, which is a single-instance deployment
// assumption made explicit by RATE_LIMIT_STORE in the configuration.
// Shared-store deployments pass httprate.WithLimitCounter through opts.
func RateLimit(limit int, window time.Duration, tier string, collector *metrics.Collector, opts ...httprate.Option) func(http.Handler) http.Handler {
	options := append([]httprate.Option{
		httprate.WithKeyFuncs(identityKey),
		httprate.WithLimitHandler(limitExceededHandler(window, tier, collector)),
	}, opts...)
	limiter := httprate.Limit(limit, window, options...)

	return func(next http.Handler) http.Handler {
		limited := limiter(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if user, ok := UserFrom(r.Context()); ok && user.IsAdmin() {
				next.ServeHTTP(w, r)
				return
			}
			limited.ServeHTTP(w, r)
		})
	}
}

func identityKey(r *http.Request) (string, error) {
	if session, ok := SessionFrom(r.Context()); ok {
		return "user:" + strconv.FormatInt(session.UserID, 10), nil
	}
	return httprate.KeyByIP(r)
}

// limitExceededHandler sends the uniform too-many-requests response with a
// retry-after hint taken from the window reset time httprate reports.
func limitExceededHandler(window time.Duration, tier string, collector *metrics.Collector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		collector.IncRateLimited(tier)

		retryAfter := int(window.Seconds())
		if reset := w.Header().Get("X-RateLimit-Reset"); reset != "" {
			if epoch, err := strconv.ParseInt(reset, 10, 64); err == nil {
				if secs := epoch - time.Now().Unix(); secs > 0 {
					retryAfter = int(secs)
				}
			}
		}
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		writeJSONError(w, "too many requests", http.StatusTooManyRequests)
	}
}
