package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/securebank/securebank/internal/metrics"
	"github.com/securebank/securebank/internal/model"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimitBlocksAfterLimit(t *testing.T) {
	handler := RateLimit(5, time.Minute, TierAuth, metrics.NewCollector())(okHandler())

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.RemoteAddr = "10.0.0.1:50000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, "request %d should pass", i+1)
	}

	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req.RemoteAddr = "10.0.0.1:50000"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "too many requests")
}

func TestRateLimitKeysByClientIP(t *testing.T) {
	handler := RateLimit(1, time.Minute, TierAuth, metrics.NewCollector())(okHandler())

	first := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	first.RemoteAddr = "10.0.0.1:50000"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, first)
	assert.Equal(t, http.StatusOK, rec.Code)

	blocked := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	blocked.RemoteAddr = "10.0.0.1:50001"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, blocked)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code, "same IP, different port shares the budget")

	other := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	other.RemoteAddr = "10.0.0.2:50000"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, other)
	assert.Equal(t, http.StatusOK, rec.Code, "another IP has its own budget")
}

func TestRateLimitKeysByUserWhenAuthenticated(t *testing.T) {
	handler := RateLimit(1, time.Minute, TierGlobal, metrics.NewCollector())(okHandler())

	session := &model.Session{TokenID: "t1", UserID: 7}
	user := &model.User{ID: 7, Role: model.RoleUser}

	// Same user from two addresses shares one budget.
	first := httptest.NewRequest(http.MethodGet, "/api/v1/accounts", nil)
	first.RemoteAddr = "10.0.0.1:50000"
	first = first.WithContext(WithIdentity(first.Context(), session, user))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, first)
	assert.Equal(t, http.StatusOK, rec.Code)

	second := httptest.NewRequest(http.MethodGet, "/api/v1/accounts", nil)
	second.RemoteAddr = "10.0.0.2:50000"
	second = second.WithContext(WithIdentity(second.Context(), session, user))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, second)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestRateLimitExemptsAdmins(t *testing.T) {
	handler := RateLimit(1, time.Minute, TierGlobal, metrics.NewCollector())(okHandler())

	session := &model.Session{TokenID: "t1", UserID: 1}
	admin := &model.User{ID: 1, Role: model.RoleAdmin}

	for i := 0; i < 20; i++ {
		req := httptest.NewRequest(http.MethodGet, "/admin/security", nil)
		req.RemoteAddr = "10.0.0.1:50000"
		req = req.WithContext(WithIdentity(req.Context(), session, admin))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, "admin request %d must not be limited", i+1)
	}
}
