package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/securebank/securebank/internal/middleware"
	"github.com/securebank/securebank/internal/model"
	"github.com/securebank/securebank/internal/service"
)

const (
	securityOverviewWindow = 24 * time.Hour
	securityOverviewLimit  = 100
)

// AdminHandler serves the operator surface. Every route here sits behind
// RequireRole(admin); the handlers only deal with the operation itself.
type AdminHandler struct {
	auth      *service.AuthService
	sessions  *service.SessionService
	transfers *service.TransferService
	lockout   *service.LockoutTracker
}

func NewAdminHandler(auth *service.AuthService, sessions *service.SessionService, transfers *service.TransferService, lockout *service.LockoutTracker) *AdminHandler {
	return &AdminHandler{auth: auth, sessions: sessions, transfers: transfers, lockout: lockout}
}

// UnlockUser clears an active lockout. The reset is recorded in the attempt
// log with the operator's address.
func (h *AdminHandler) UnlockUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.auth.UnlockUser(r.Context(), userID, clientIP(r)); err != nil {
		sendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "account unlocked"})
}

// DeactivateUser disables the user and revokes every live session they
// hold, so the deactivation takes effect on their next request.
func (h *AdminHandler) DeactivateUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.auth.SetUserActive(r.Context(), userID, false); err != nil {
		sendServiceError(w, err)
		return
	}
	if err := h.sessions.RevokeAll(r.Context(), userID); err != nil {
		sendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "user deactivated"})
}

type resetPasswordRequest struct {
	NewPassword string `json:"new_password"`
}

func (h *AdminHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r)
	if !ok {
		return
	}

	var req resetPasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.auth.AdminResetPassword(r.Context(), userID, req.NewPassword, clientIP(r)); err != nil {
		sendServiceError(w, err)
		return
	}
	if err := h.sessions.RevokeAll(r.Context(), userID); err != nil {
		sendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "password reset"})
}

type depositRequest struct {
	Amount      string `json:"amount"`
	Description string `json:"description"`
}

// Deposit credits external funds to the user's primary account.
func (h *AdminHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	admin, ok := middleware.UserFrom(r.Context())
	if !ok {
		sendError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	userID, ok := pathID(w, r)
	if !ok {
		return
	}

	var req depositRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	amount, err := service.ParseAmount(req.Amount)
	if err != nil {
		sendServiceError(w, err)
		return
	}

	record, err := h.transfers.Deposit(r.Context(), admin.ID, userID, amount, req.Description, clientIP(r))
	if err != nil {
		sendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newTransactionView(record))
}

type accountStatusRequest struct {
	Status string `json:"status"`
}

// SetAccountStatus freezes or reactivates an account. A disabled account can
// neither send nor receive transfers until it is set active again.
func (h *AdminHandler) SetAccountStatus(w http.ResponseWriter, r *http.Request) {
	accountID, ok := pathID(w, r)
	if !ok {
		return
	}

	var req accountStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	status := model.AccountStatus(req.Status)
	if status != model.AccountActive && status != model.AccountDisabled {
		sendError(w, http.StatusBadRequest, "status must be active or disabled")
		return
	}

	if err := h.transfers.SetAccountStatus(r.Context(), accountID, status); err != nil {
		sendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "account status updated"})
}

// ReverseTransaction books a compensating entry against a completed
// transfer. The original row is never modified.
func (h *AdminHandler) ReverseTransaction(w http.ResponseWriter, r *http.Request) {
	admin, ok := middleware.UserFrom(r.Context())
	if !ok {
		sendError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	transactionID, ok := pathID(w, r)
	if !ok {
		return
	}

	record, err := h.transfers.Reverse(r.Context(), admin.ID, transactionID, clientIP(r))
	if err != nil {
		sendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newTransactionView(record))
}

type failedAttemptView struct {
	Username    string    `json:"username"`
	IPAddress   string    `json:"ip_address"`
	UserAgent   string    `json:"user_agent,omitempty"`
	AttemptedAt time.Time `json:"attempted_at"`
}

type lockedUserView struct {
	ID          int64      `json:"id"`
	Username    string     `json:"username"`
	LockedUntil *time.Time `json:"locked_until"`
}

// SecurityOverview summarizes recent failed logins and active lockouts for
// the operator.
func (h *AdminHandler) SecurityOverview(w http.ResponseWriter, r *http.Request) {
	since := time.Now().Add(-securityOverviewWindow)

	overview, err := h.lockout.Overview(r.Context(), since, securityOverviewLimit)
	if err != nil {
		sendServiceError(w, err)
		return
	}

	failures := make([]failedAttemptView, 0, len(overview.RecentFailures))
	for _, a := range overview.RecentFailures {
		failures = append(failures, failedAttemptView{
			Username:    a.Username,
			IPAddress:   a.IPAddress,
			UserAgent:   a.UserAgent,
			AttemptedAt: a.AttemptedAt,
		})
	}

	locked := make([]lockedUserView, 0, len(overview.LockedUsers))
	for _, u := range overview.LockedUsers {
		locked = append(locked, lockedUserView{ID: u.ID, Username: u.Username, LockedUntil: u.LockedUntil})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"window_hours":    int(securityOverviewWindow.Hours()),
		"failed_attempts": overview.FailedTotal,
		"recent_failures": failures,
		"locked_users":    locked,
	})
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		sendError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}
