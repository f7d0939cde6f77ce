package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/securebank/securebank/internal/cryptox"
	"github.com/securebank/securebank/internal/metrics"
	"github.com/securebank/securebank/internal/middleware"
	"github.com/securebank/securebank/internal/model"
	"github.com/securebank/securebank/internal/service"
	"github.com/securebank/securebank/internal/test"
)

func newAccountHandlerFixture(t *testing.T) (*test.Store, *AccountHandler, *model.User) {
	t.Helper()

	store := test.NewStore()
	user, err := store.Users().Create(context.Background(), "alice", "alice@example.com", "hash", model.RoleUser)
	require.NoError(t, err)

	cipher, err := cryptox.NewFieldCipher("test-passphrase", "test-salt")
	require.NoError(t, err)
	transfers := service.NewTransferService(store.Accounts(), store.Transactions(), cipher, metrics.NewCollector())

	return store, NewAccountHandler(transfers), user
}

func asUser(req *http.Request, user *model.User) *http.Request {
	session := &model.Session{TokenID: "test-token", UserID: user.ID}
	return req.WithContext(middleware.WithIdentity(req.Context(), session, user))
}

// The owner gets their full account number back; they need it to receive
// transfers. Only the masked form is safe to show anyone else.
func TestCreateAccountReturnsFullNumberToOwner(t *testing.T) {
	_, h, user := newAccountHandlerFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/accounts", strings.NewReader(`{"account_type":"checking"}`))
	req.Header.Set("Content-Type", "application/json")
	req = asUser(req, user)
	rec := httptest.NewRecorder()
	h.Create(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created struct {
		AccountNumber string `json:"account_number"`
		MaskedNumber  string `json:"account_number_masked"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Regexp(t, `^\d{10}$`, created.AccountNumber)
	assert.NotEqual(t, created.AccountNumber, created.MaskedNumber)
	assert.Equal(t, created.AccountNumber[6:], created.MaskedNumber[len(created.MaskedNumber)-4:])
}

func TestListAccountsReturnsFullNumberToOwner(t *testing.T) {
	store, h, user := newAccountHandlerFixture(t)
	store.SeedAccount(user.ID, "1234567890", model.AccountChecking, decimal.RequireFromString("10.00"))

	req := asUser(httptest.NewRequest(http.MethodGet, "/api/v1/accounts", nil), user)
	rec := httptest.NewRecorder()
	h.List(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Accounts []struct {
			AccountNumber string `json:"account_number"`
			MaskedNumber  string `json:"account_number_masked"`
		} `json:"accounts"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Accounts, 1)
	assert.Equal(t, "1234567890", resp.Accounts[0].AccountNumber)
	assert.Equal(t, "******7890", resp.Accounts[0].MaskedNumber)
}
