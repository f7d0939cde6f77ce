package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/securebank/securebank/internal/middleware"
	"github.com/securebank/securebank/internal/model"
	"github.com/securebank/securebank/internal/service"
)

// AccountHandler serves the authenticated user's accounts and their
// statements. Ownership is checked in the service layer on every id the
// client supplies.
type AccountHandler struct {
	transfers *service.TransferService
}

func NewAccountHandler(transfers *service.TransferService) *AccountHandler {
	return &AccountHandler{transfers: transfers}
}

type createAccountRequest struct {
	Type string `json:"account_type"`
}

func (h *AccountHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFrom(r.Context())
	if !ok {
		sendError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req createAccountRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	account, err := h.transfers.CreateAccount(r.Context(), user.ID, model.AccountType(req.Type))
	if err != nil {
		sendServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, newAccountView(account))
}

func (h *AccountHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFrom(r.Context())
	if !ok {
		sendError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	accounts, err := h.transfers.ListAccounts(r.Context(), user.ID)
	if err != nil {
		sendServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"accounts": newAccountViews(accounts)})
}

// Transactions returns the statement for one of the caller's accounts.
func (h *AccountHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFrom(r.Context())
	if !ok {
		sendError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	accountID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		sendError(w, http.StatusBadRequest, "invalid account id")
		return
	}

	records, err := h.transfers.AccountTransactions(r.Context(), user.ID, accountID)
	if err != nil {
		sendServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"transactions": newTransactionViews(records)})
}
