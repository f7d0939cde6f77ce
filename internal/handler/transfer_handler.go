package handler

import (
	"net/http"

	"github.com/securebank/securebank/internal/middleware"
	"github.com/securebank/securebank/internal/service"
)

// TransferHandler serves money movement for the authenticated user.
type TransferHandler struct {
	transfers *service.TransferService
}

func NewTransferHandler(transfers *service.TransferService) *TransferHandler {
	return &TransferHandler{transfers: transfers}
}

type transferRequest struct {
	FromAccountID   int64  `json:"from_account_id"`
	ToAccountNumber string `json:"to_account_number"`
	Amount          string `json:"amount"`
	Description     string `json:"description"`
}

func (h *TransferHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFrom(r.Context())
	if !ok {
		sendError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req transferRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	amount, err := service.ParseAmount(req.Amount)
	if err != nil {
		sendServiceError(w, err)
		return
	}

	record, err := h.transfers.Transfer(r.Context(), user.ID, req.FromAccountID, req.ToAccountNumber, amount, req.Description, clientIP(r))
	if err != nil {
		sendServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, newTransactionView(record))
}

// History returns the caller's transactions across all their accounts.
func (h *TransferHandler) History(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFrom(r.Context())
	if !ok {
		sendError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	records, err := h.transfers.ListTransactions(r.Context(), user.ID)
	if err != nil {
		sendServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"transactions": newTransactionViews(records)})
}
