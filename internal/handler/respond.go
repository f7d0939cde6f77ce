package handler

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/securebank/securebank/internal/repository"
	"github.com/securebank/securebank/internal/service"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func sendError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"error": message})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		sendError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// sendServiceError maps domain errors onto HTTP statuses. Anything
// unrecognized is logged and reported as an opaque 500.
func sendServiceError(w http.ResponseWriter, err error) {
	var locked *service.LockedError
	if errors.As(err, &locked) {
		sendError(w, http.StatusForbidden, locked.Error())
		return
	}

	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		sendError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, service.ErrSessionNotFound),
		errors.Is(err, service.ErrSessionExpired):
		sendError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, service.ErrWeakPassword),
		errors.Is(err, service.ErrInvalidUsername),
		errors.Is(err, service.ErrInvalidEmail),
		errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrInvalidAccountType):
		sendError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrDuplicateIdentity),
		errors.Is(err, service.ErrAccountTypeExists):
		sendError(w, http.StatusConflict, err.Error())
	case errors.Is(err, repository.ErrInsufficientFunds),
		errors.Is(err, repository.ErrSelfTransfer),
		errors.Is(err, repository.ErrInvalidDestination),
		errors.Is(err, repository.ErrAccountInactive):
		sendError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, repository.ErrNotReversible),
		errors.Is(err, repository.ErrAlreadyReversed):
		sendError(w, http.StatusConflict, err.Error())
	case errors.Is(err, repository.ErrUserNotFound),
		errors.Is(err, repository.ErrAccountNotFound),
		errors.Is(err, repository.ErrTransactionNotFound):
		sendError(w, http.StatusNotFound, err.Error())
	default:
		log.Error().Err(err).Msg("unhandled service error")
		sendError(w, http.StatusInternalServerError, "internal server error")
	}
}

// clientIP assumes chi's RealIP middleware already rewrote RemoteAddr when a
// trusted proxy header was present.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
