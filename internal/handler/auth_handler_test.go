package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/securebank/securebank/internal/metrics"
	"github.com/securebank/securebank/internal/middleware"
	"github.com/securebank/securebank/internal/service"
	"github.com/securebank/securebank/internal/test"
)

func newAuthHandlerFixture(t *testing.T) (*AuthHandler, *service.SessionService) {
	t.Helper()

	store := test.NewStore()
	collector := metrics.NewCollector()
	lockout := service.NewLockoutTracker(store.Attempts(), store.Users(), collector, 3, 30*time.Minute, 30*time.Minute)
	auth := service.NewAuthService(store.Users(), lockout)
	sessions := service.NewSessionService(store.Sessions(), store.Users(), "test-secret", 30*time.Minute, 24*time.Hour)

	return NewAuthHandler(auth, sessions, 24*time.Hour), sessions
}

func postJSON(t *testing.T, handler http.HandlerFunc, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "10.0.0.1:50000"
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestRegisterEndpoint(t *testing.T) {
	h, _ := newAuthHandlerFixture(t)

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"valid", `{"username":"alice","email":"alice@example.com","password":"Str0ng!pass"}`, http.StatusCreated},
		{"duplicate", `{"username":"alice","email":"alice@example.com","password":"Str0ng!pass"}`, http.StatusConflict},
		{"weak password", `{"username":"bob","email":"bob@example.com","password":"short"}`, http.StatusBadRequest},
		{"bad email", `{"username":"bob","email":"nope","password":"Str0ng!pass"}`, http.StatusBadRequest},
		{"malformed body", `{"username":`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(t, h.Register, "/auth/register", tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}

	// The password hash never appears in a response.
	rec := postJSON(t, h.Register, "/auth/register", `{"username":"carol","email":"carol@example.com","password":"Str0ng!pass"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestLoginEndpoint(t *testing.T) {
	h, _ := newAuthHandlerFixture(t)

	rec := postJSON(t, h.Register, "/auth/register", `{"username":"alice","email":"alice@example.com","password":"Str0ng!pass"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = postJSON(t, h.Login, "/auth/login", `{"username":"alice","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = postJSON(t, h.Login, "/auth/login", `{"username":"alice","password":"Str0ng!pass"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Token     string `json:"token"`
		CSRFToken string `json:"csrf_token"`
		User      struct {
			Username string `json:"username"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Token)
	assert.NotEmpty(t, resp.CSRFToken)
	assert.Equal(t, "alice", resp.User.Username)

	// The session cookie is HttpOnly and never carries the CSRF token.
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	cookie := cookies[0]
	assert.Equal(t, middleware.SessionCookie, cookie.Name)
	assert.Equal(t, resp.Token, cookie.Value)
	assert.True(t, cookie.HttpOnly)
	assert.True(t, cookie.Secure)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	assert.NotContains(t, cookie.Value, resp.CSRFToken)
}

func TestLoginLockoutEndpoint(t *testing.T) {
	h, _ := newAuthHandlerFixture(t)

	rec := postJSON(t, h.Register, "/auth/register", `{"username":"alice","email":"alice@example.com","password":"Str0ng!pass"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	for i := 0; i < 3; i++ {
		rec = postJSON(t, h.Login, "/auth/login", `{"username":"alice","password":"wrong"}`)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	// Even the correct password is refused while the lock holds.
	rec = postJSON(t, h.Login, "/auth/login", `{"username":"alice","password":"Str0ng!pass"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "locked")
}

func TestLogoutEndpoint(t *testing.T) {
	h, sessions := newAuthHandlerFixture(t)

	rec := postJSON(t, h.Register, "/auth/register", `{"username":"alice","email":"alice@example.com","password":"Str0ng!pass"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = postJSON(t, h.Login, "/auth/login", `{"username":"alice","password":"Str0ng!pass"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+resp.Token)
	logoutRec := httptest.NewRecorder()
	h.Logout(logoutRec, req)
	require.Equal(t, http.StatusOK, logoutRec.Code)

	// The cookie is cleared and the session row is gone.
	cookies := logoutRec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Empty(t, cookies[0].Value)
	assert.Negative(t, cookies[0].MaxAge)

	_, _, err := sessions.Validate(req.Context(), resp.Token)
	assert.ErrorIs(t, err, service.ErrSessionNotFound)

	// Logging out again is still a 200.
	again := httptest.NewRecorder()
	h.Logout(again, req)
	assert.Equal(t, http.StatusOK, again.Code)
}

func TestPasswordResetEndpoint(t *testing.T) {
	h, _ := newAuthHandlerFixture(t)

	rec := postJSON(t, h.Register, "/auth/register", `{"username":"alice","email":"alice@example.com","password":"Str0ng!pass"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = postJSON(t, h.PasswordReset, "/auth/password-reset",
		`{"username":"alice","current_password":"wrong","new_password":"N3w!password"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = postJSON(t, h.PasswordReset, "/auth/password-reset",
		`{"username":"alice","current_password":"Str0ng!pass","new_password":"weak"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(t, h.PasswordReset, "/auth/password-reset",
		`{"username":"alice","current_password":"Str0ng!pass","new_password":"N3w!password"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = postJSON(t, h.Login, "/auth/login", `{"username":"alice","password":"N3w!password"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}
