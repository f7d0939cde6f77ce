package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/securebank/securebank/internal/model"
	"github.com/securebank/securebank/internal/repository"
	"github.com/securebank/securebank/internal/service"
	"github.com/securebank/securebank/internal/test"
)

func newCSRFFixture(t *testing.T) (*test.Store, *service.SessionService, *model.Session, *model.User) {
	t.Helper()

	store := test.NewStore()
	user, err := store.Users().Create(context.Background(), "alice", "alice@example.com", "hash", model.RoleUser)
	require.NoError(t, err)

	sessions := service.NewSessionService(store.Sessions(), store.Users(), "test-secret", 30*time.Minute, 24*time.Hour)
	session, _, err := sessions.Create(context.Background(), user)
	require.NoError(t, err)

	return store, sessions, session, user
}

func TestRequireCSRF(t *testing.T) {
	_, sessions, session, user := newCSRFFixture(t)

	handler := RequireCSRF(sessions)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name       string
		method     string
		token      string
		anonymous  bool
		wantStatus int
	}{
		{"post with valid token", http.MethodPost, session.CSRFSecret, false, http.StatusNoContent},
		{"post without token", http.MethodPost, "", false, http.StatusForbidden},
		{"post with wrong token", http.MethodPost, "attacker-guess", false, http.StatusForbidden},
		{"delete with wrong token", http.MethodDelete, "attacker-guess", false, http.StatusForbidden},
		{"get passes without token", http.MethodGet, "", false, http.StatusNoContent},
		{"post without session", http.MethodPost, session.CSRFSecret, true, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/v1/transfers", nil)
			if tt.token != "" {
				req.Header.Set(CSRFHeader, tt.token)
			}
			if !tt.anonymous {
				req = req.WithContext(WithIdentity(req.Context(), session, user))
			}

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestRejectedRequestDoesNotReachHandler(t *testing.T) {
	store, sessions, session, user := newCSRFFixture(t)

	// The protected handler writes to the store; a rejected request must
	// leave no trace of it.
	handler := RequireCSRF(sessions)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, err := store.Users().Create(r.Context(), "created-by-handler", "h@example.com", "hash", model.RoleUser)
		require.NoError(t, err)
		w.WriteHeader(http.StatusCreated)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/transfers", nil)
	req.Header.Set(CSRFHeader, "attacker-guess")
	req = req.WithContext(WithIdentity(req.Context(), session, user))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	_, err := store.Users().GetByUsername(context.Background(), "created-by-handler")
	assert.ErrorIs(t, err, repository.ErrUserNotFound)
}

func TestRequireRole(t *testing.T) {
	admin := &model.User{ID: 1, Role: model.RoleAdmin}
	regular := &model.User{ID: 2, Role: model.RoleUser}
	session := &model.Session{TokenID: "t", UserID: 1}

	handler := RequireRole(model.RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name       string
		user       *model.User
		wantStatus int
	}{
		{"admin allowed", admin, http.StatusNoContent},
		{"regular user forbidden", regular, http.StatusForbidden},
		{"anonymous unauthorized", nil, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin/security", nil)
			if tt.user != nil {
				req = req.WithContext(WithIdentity(req.Context(), session, tt.user))
			}

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}
