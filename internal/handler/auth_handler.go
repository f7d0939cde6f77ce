package handler

import (
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/securebank/securebank/internal/middleware"
	"github.com/securebank/securebank/internal/service"
)

// AuthHandler serves registration, login, logout and password reset.
type AuthHandler struct {
	auth       *service.AuthService
	sessions   *service.SessionService
	sessionTTL time.Duration
}

func NewAuthHandler(auth *service.AuthService, sessions *service.SessionService, sessionTTL time.Duration) *AuthHandler {
	return &AuthHandler{auth: auth, sessions: sessions, sessionTTL: sessionTTL}
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.auth.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		sendServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, newUserView(user))
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string   `json:"token"`
	CSRFToken string   `json:"csrf_token"`
	User      userView `json:"user"`
}

// Login verifies credentials and establishes a session. The token is
// returned in the body for API clients and set as an HttpOnly cookie for
// browsers; the CSRF token only ever travels in the body.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.auth.Login(r.Context(), req.Username, req.Password, clientIP(r), r.UserAgent())
	if err != nil {
		sendServiceError(w, err)
		return
	}

	session, token, err := h.sessions.Create(r.Context(), user)
	if err != nil {
		sendServiceError(w, err)
		return
	}

	http.SetCookie(w, h.sessionCookie(token, h.sessionTTL))
	writeJSON(w, http.StatusOK, loginResponse{
		Token:     token,
		CSRFToken: session.CSRFSecret,
		User:      newUserView(user),
	})
}

// Logout revokes the presented session. Revoking an already-dead token is
// not an error; the outcome the client asked for holds either way.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := middleware.TokenFrom(r); token != "" {
		if err := h.sessions.Revoke(r.Context(), token); err != nil {
			log.Debug().Err(err).Msg("logout for inactive session")
		}
	}

	http.SetCookie(w, h.sessionCookie("", -time.Second))
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

type passwordResetRequest struct {
	Username        string `json:"username"`
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// PasswordReset re-hashes the password after proving the current one. It
// shares the login rate tier and lockout accounting, so it cannot be used
// to probe credentials faster than login itself.
func (h *AuthHandler) PasswordReset(w http.ResponseWriter, r *http.Request) {
	var req passwordResetRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	err := h.auth.ResetPassword(r.Context(), req.Username, req.CurrentPassword, req.NewPassword, clientIP(r), r.UserAgent())
	if err != nil {
		sendServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "password updated"})
}

// CSRFToken hands the session's anti-forgery secret to an authenticated
// client that lost it, e.g. after a page reload.
func (h *AuthHandler) CSRFToken(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.SessionFrom(r.Context())
	if !ok {
		sendError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"csrf_token": session.CSRFSecret})
}

func (h *AuthHandler) sessionCookie(token string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	}
}
