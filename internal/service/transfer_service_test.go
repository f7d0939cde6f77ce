package service

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/securebank/securebank/internal/cryptox"
	"github.com/securebank/securebank/internal/metrics"
	"github.com/securebank/securebank/internal/model"
	"github.com/securebank/securebank/internal/repository"
	"github.com/securebank/securebank/internal/test"
)

func newTransferFixture(t *testing.T) (*test.Store, *TransferService) {
	t.Helper()

	store := test.NewStore()
	cipher, err := cryptox.NewFieldCipher("test-passphrase", "test-salt")
	require.NoError(t, err)

	svc := NewTransferService(store.Accounts(), store.Transactions(), cipher, metrics.NewCollector())
	return store, svc
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"integer", "100", false},
		{"two decimals", "99.99", false},
		{"one decimal", "0.5", false},
		{"zero", "0", true},
		{"negative", "-5", true},
		{"three decimals", "1.001", true},
		{"not a number", "ten", true},
		{"above ceiling", "1000000.01", true},
		{"at ceiling", "1000000", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseAmount(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidAmount)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestCreateAccount(t *testing.T) {
	_, svc := newTransferFixture(t)
	ctx := context.Background()

	account, err := svc.CreateAccount(ctx, 1, model.AccountChecking)
	require.NoError(t, err)
	assert.Regexp(t, `^\d{10}$`, account.Number)
	assert.True(t, account.Balance.IsZero())
	assert.Equal(t, model.AccountActive, account.Status)

	_, err = svc.CreateAccount(ctx, 1, model.AccountChecking)
	assert.ErrorIs(t, err, ErrAccountTypeExists)

	// A different type is fine, and so is the same type for another user.
	_, err = svc.CreateAccount(ctx, 1, model.AccountSavings)
	assert.NoError(t, err)
	_, err = svc.CreateAccount(ctx, 2, model.AccountChecking)
	assert.NoError(t, err)

	_, err = svc.CreateAccount(ctx, 1, model.AccountType("bitcoin"))
	assert.ErrorIs(t, err, ErrInvalidAccountType)
}

func TestTransfer(t *testing.T) {
	store, svc := newTransferFixture(t)
	ctx := context.Background()

	src := store.SeedAccount(1, "1111111111", model.AccountChecking, money("100.00"))
	dst := store.SeedAccount(2, "2222222222", model.AccountChecking, money("10.00"))

	record, err := svc.Transfer(ctx, 1, src.ID, dst.Number, money("25.50"), "rent", "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, record.Status)
	assert.True(t, record.Amount.Equal(money("25.50")))

	assert.True(t, store.Account(src.ID).Balance.Equal(money("74.50")), "source balance")
	assert.True(t, store.Account(dst.ID).Balance.Equal(money("35.50")), "destination balance")

	// The stored description is ciphertext; listing decrypts it.
	records, err := svc.ListTransactions(ctx, 1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "rent", records[0].Description)
}

func TestTransferRejections(t *testing.T) {
	store, svc := newTransferFixture(t)
	ctx := context.Background()

	src := store.SeedAccount(1, "1111111111", model.AccountChecking, money("100.00"))
	dst := store.SeedAccount(2, "2222222222", model.AccountChecking, money("10.00"))
	disabled := store.SeedAccount(3, "3333333333", model.AccountChecking, money("10.00"))
	require.NoError(t, svc.SetAccountStatus(ctx, disabled.ID, model.AccountDisabled))

	tests := []struct {
		name    string
		userID  int64
		srcID   int64
		dest    string
		amount  decimal.Decimal
		wantErr error
	}{
		{"insufficient funds", 1, src.ID, dst.Number, money("100.01"), repository.ErrInsufficientFunds},
		{"self transfer", 1, src.ID, src.Number, money("10.00"), repository.ErrSelfTransfer},
		{"unknown destination", 1, src.ID, "9999999999", money("10.00"), repository.ErrInvalidDestination},
		{"malformed destination", 1, src.ID, "12345", money("10.00"), repository.ErrInvalidDestination},
		{"disabled destination", 1, src.ID, disabled.Number, money("10.00"), repository.ErrAccountInactive},
		{"not the owner", 2, src.ID, dst.Number, money("10.00"), repository.ErrAccountNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Transfer(ctx, tt.userID, tt.srcID, tt.dest, tt.amount, "", "10.0.0.1")
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	// No rejection moved any money.
	assert.True(t, store.Account(src.ID).Balance.Equal(money("100.00")))
	assert.True(t, store.Account(dst.ID).Balance.Equal(money("10.00")))

	// Rejections left zero-effect audit rows behind.
	records, err := svc.ListTransactions(ctx, 1)
	require.NoError(t, err)
	failed := 0
	for _, r := range records {
		if r.Status == model.StatusFailed {
			failed++
		}
	}
	assert.Equal(t, 4, failed, "insufficient funds, self, unknown dest and disabled dest are audited")
}

func TestReverse(t *testing.T) {
	store, svc := newTransferFixture(t)
	ctx := context.Background()

	src := store.SeedAccount(1, "1111111111", model.AccountChecking, money("100.00"))
	dst := store.SeedAccount(2, "2222222222", model.AccountChecking, money("10.00"))

	original, err := svc.Transfer(ctx, 1, src.ID, dst.Number, money("40.00"), "oops", "10.0.0.1")
	require.NoError(t, err)

	reversal, err := svc.Reverse(ctx, 99, original.ID, "10.0.0.99")
	require.NoError(t, err)
	assert.Equal(t, model.StatusReversed, reversal.Status)
	require.NotNil(t, reversal.ReversalOf)
	assert.Equal(t, original.ID, *reversal.ReversalOf)

	assert.True(t, store.Account(src.ID).Balance.Equal(money("100.00")))
	assert.True(t, store.Account(dst.ID).Balance.Equal(money("10.00")))

	// Only one reversal per transaction.
	_, err = svc.Reverse(ctx, 99, original.ID, "10.0.0.99")
	assert.ErrorIs(t, err, repository.ErrAlreadyReversed)

	// A reversal row itself is not reversible.
	_, err = svc.Reverse(ctx, 99, reversal.ID, "10.0.0.99")
	assert.ErrorIs(t, err, repository.ErrNotReversible)
}

func TestReverseRequiresDestinationFunds(t *testing.T) {
	store, svc := newTransferFixture(t)
	ctx := context.Background()

	src := store.SeedAccount(1, "1111111111", model.AccountChecking, money("100.00"))
	dst := store.SeedAccount(2, "2222222222", model.AccountChecking, money("0.00"))
	drain := store.SeedAccount(3, "3333333333", model.AccountChecking, money("0.00"))

	original, err := svc.Transfer(ctx, 1, src.ID, dst.Number, money("40.00"), "", "10.0.0.1")
	require.NoError(t, err)

	// The recipient spends the money before the reversal lands.
	_, err = svc.Transfer(ctx, 2, dst.ID, drain.Number, money("40.00"), "", "10.0.0.2")
	require.NoError(t, err)

	_, err = svc.Reverse(ctx, 99, original.ID, "10.0.0.99")
	assert.ErrorIs(t, err, repository.ErrInsufficientFunds)
}

func TestDeposit(t *testing.T) {
	store, svc := newTransferFixture(t)
	ctx := context.Background()

	account := store.SeedAccount(5, "5555555555", model.AccountChecking, money("1.00"))

	record, err := svc.Deposit(ctx, 99, 5, money("250.00"), "initial funding", "10.0.0.99")
	require.NoError(t, err)
	assert.Equal(t, model.TypeDeposit, record.Type)
	assert.True(t, store.Account(account.ID).Balance.Equal(money("251.00")))

	// The credit and its ledger row commit together: the returned record is
	// already persisted and points at the credited account.
	stored, err := store.Transactions().GetByID(ctx, record.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.ToAccountID)
	assert.Equal(t, account.ID, *stored.ToAccountID)
	assert.Equal(t, model.StatusCompleted, stored.Status)
	assert.True(t, stored.Amount.Equal(money("250.00")))

	// A user without accounts gets a checking account opened for the funds.
	_, err = svc.Deposit(ctx, 99, 6, money("50.00"), "", "10.0.0.99")
	require.NoError(t, err)
	accounts, err := svc.ListAccounts(ctx, 6)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, model.AccountChecking, accounts[0].Type)
	assert.True(t, accounts[0].Balance.Equal(money("50.00")))
}

func TestConcurrentTransfersNeverOverdraw(t *testing.T) {
	store, svc := newTransferFixture(t)
	ctx := context.Background()

	src := store.SeedAccount(1, "1111111111", model.AccountChecking, money("100.00"))
	dst := store.SeedAccount(2, "2222222222", model.AccountChecking, money("0.00"))

	const workers = 10
	var wg sync.WaitGroup
	results := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Transfer(ctx, 1, src.ID, dst.Number, money("30.00"), "", "10.0.0.1")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, repository.ErrInsufficientFunds)
		}
	}
	assert.Equal(t, 3, succeeded, "only three 30.00 transfers fit in 100.00")

	srcBalance := store.Account(src.ID).Balance
	dstBalance := store.Account(dst.ID).Balance
	assert.True(t, srcBalance.Equal(money("10.00")), "source ends at 10.00, got %s", srcBalance)
	assert.True(t, dstBalance.Equal(money("90.00")), "destination ends at 90.00, got %s", dstBalance)
	assert.False(t, srcBalance.IsNegative())
}

func TestAccountTransactionsOwnership(t *testing.T) {
	store, svc := newTransferFixture(t)
	ctx := context.Background()

	src := store.SeedAccount(1, "1111111111", model.AccountChecking, money("100.00"))
	dst := store.SeedAccount(2, "2222222222", model.AccountChecking, money("0.00"))

	_, err := svc.Transfer(ctx, 1, src.ID, dst.Number, money("5.00"), "", "10.0.0.1")
	require.NoError(t, err)

	records, err := svc.AccountTransactions(ctx, 1, src.ID)
	require.NoError(t, err)
	assert.Len(t, records, 1)

	// Another user's account id reads as not found, not as forbidden.
	_, err = svc.AccountTransactions(ctx, 1, dst.ID)
	assert.ErrorIs(t, err, repository.ErrAccountNotFound)
}
