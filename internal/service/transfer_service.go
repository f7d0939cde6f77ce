package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/securebank/securebank/internal/cryptox"
	"github.com/securebank/securebank/internal/interfaces"
	"github.com/securebank/securebank/internal/metrics"
	"github.com/securebank/securebank/internal/model"
	"github.com/securebank/securebank/internal/repository"
)

const (
	accountNumberLen    = 10
	numberGenAttempts   = 10
	maxTransferAmount   = 1_000_000
	transactionPageSize = 50
)

var accountNumberRe = regexp.MustCompile(`^\d{10}$`)

// TransferService is the transaction engine plus account lifecycle. All
// balance mutation goes through the repository's atomic operations;
// descriptions are encrypted before they reach storage.
type TransferService struct {
	accounts     interfaces.AccountRepository
	transactions interfaces.TransactionRepository
	cipher       *cryptox.FieldCipher
	collector    *metrics.Collector
}

func NewTransferService(accounts interfaces.AccountRepository, transactions interfaces.TransactionRepository, cipher *cryptox.FieldCipher, collector *metrics.Collector) *TransferService {
	return &TransferService{
		accounts:     accounts,
		transactions: transactions,
		cipher:       cipher,
		collector:    collector,
	}
}

// ParseAmount validates a monetary amount: positive, at most two decimal
// places, within the per-transaction ceiling.
func ParseAmount(raw string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if !amount.IsPositive() || !amount.Equal(amount.Round(2)) {
		return decimal.Zero, ErrInvalidAmount
	}
	if amount.GreaterThan(decimal.NewFromInt(maxTransferAmount)) {
		return decimal.Zero, ErrInvalidAmount
	}
	return amount, nil
}

// CreateAccount opens an account with an unpredictable, globally unique
// 10-digit number. A user keeps at most one active account per type.
func (s *TransferService) CreateAccount(ctx context.Context, userID int64, accType model.AccountType) (*model.Account, error) {
	if accType != model.AccountChecking && accType != model.AccountSavings {
		return nil, ErrInvalidAccountType
	}

	exists, err := s.accounts.HasActiveOfType(ctx, userID, accType)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrAccountTypeExists
	}

	for attempt := 0; attempt < numberGenAttempts; attempt++ {
		number, err := generateAccountNumber()
		if err != nil {
			return nil, err
		}
		taken, err := s.accounts.NumberExists(ctx, number)
		if err != nil {
			return nil, err
		}
		if taken {
			continue
		}

		account, err := s.accounts.Create(ctx, userID, number, accType)
		if errors.Is(err, repository.ErrDuplicateNumber) {
			// Lost a race on the unique index; draw again.
			continue
		}
		if err != nil {
			return nil, err
		}
		log.Info().Int64("user_id", userID).Str("type", string(accType)).Msg("account created")
		return account, nil
	}
	return nil, errors.New("could not allocate a unique account number")
}

func (s *TransferService) ListAccounts(ctx context.Context, userID int64) ([]*model.Account, error) {
	return s.accounts.ListByUser(ctx, userID)
}

func (s *TransferService) SetAccountStatus(ctx context.Context, accountID int64, status model.AccountStatus) error {
	return s.accounts.SetStatus(ctx, accountID, status)
}

// Transfer executes an atomic funds movement. On a typed precondition
// failure nothing is applied and a zero-effect failed row is appended for
// audit, so the caller can always distinguish "failed" from "never seen".
func (s *TransferService) Transfer(ctx context.Context, userID, sourceAccountID int64, destNumber string, amount decimal.Decimal, description, clientIP string) (*model.Transaction, error) {
	start := time.Now()

	if !amount.IsPositive() || !amount.Equal(amount.Round(2)) {
		return nil, ErrInvalidAmount
	}
	if !accountNumberRe.MatchString(destNumber) {
		return nil, repository.ErrInvalidDestination
	}

	encDescription, err := s.cipher.Encrypt(description)
	if err != nil {
		return nil, fmt.Errorf("encrypting description: %w", err)
	}

	record, err := s.transactions.Transfer(ctx, userID, sourceAccountID, destNumber, amount, encDescription, clientIP)
	if err != nil {
		if isTransferRejection(err) {
			s.recordFailedTransfer(ctx, userID, sourceAccountID, amount, encDescription, clientIP)
			s.collector.ObserveTransfer(string(model.StatusFailed), time.Since(start))
		}
		return nil, err
	}

	s.collector.ObserveTransfer(string(model.StatusCompleted), time.Since(start))
	log.Info().Int64("transaction_id", record.ID).Int64("source_account", sourceAccountID).
		Str("amount", amount.StringFixed(2)).Msg("transfer completed")
	return record, nil
}

// Reverse creates a compensating transaction for a completed transfer. The
// original record is never edited.
func (s *TransferService) Reverse(ctx context.Context, adminUserID, transactionID int64, clientIP string) (*model.Transaction, error) {
	encDescription, err := s.cipher.Encrypt(fmt.Sprintf("reversal of transaction %d", transactionID))
	if err != nil {
		return nil, fmt.Errorf("encrypting description: %w", err)
	}

	record, err := s.transactions.Reverse(ctx, adminUserID, transactionID, encDescription, clientIP)
	if err != nil {
		return nil, err
	}
	log.Info().Int64("transaction_id", transactionID).Int64("reversal_id", record.ID).
		Int64("admin_id", adminUserID).Msg("transfer reversed")
	return record, nil
}

// Deposit credits a user's first active account, creating a checking
// account when none exists. Administrative operation.
func (s *TransferService) Deposit(ctx context.Context, adminUserID, targetUserID int64, amount decimal.Decimal, description, clientIP string) (*model.Transaction, error) {
	if !amount.IsPositive() || !amount.Equal(amount.Round(2)) {
		return nil, ErrInvalidAmount
	}

	account, err := s.accounts.FirstActiveForUser(ctx, targetUserID)
	if errors.Is(err, repository.ErrAccountNotFound) {
		account, err = s.CreateAccount(ctx, targetUserID, model.AccountChecking)
	}
	if err != nil {
		return nil, err
	}

	encDescription, err := s.cipher.Encrypt(description)
	if err != nil {
		return nil, fmt.Errorf("encrypting description: %w", err)
	}

	record, err := s.transactions.Deposit(ctx, adminUserID, account.ID, amount, encDescription, clientIP)
	if err != nil {
		return nil, err
	}
	log.Info().Int64("transaction_id", record.ID).Int64("account_id", account.ID).
		Str("amount", amount.StringFixed(2)).Msg("deposit completed")
	return record, nil
}

// ListTransactions returns the user's ledger rows with descriptions
// decrypted. A row that fails decryption is surfaced with an empty
// description and logged as a data-integrity fault.
func (s *TransferService) ListTransactions(ctx context.Context, userID int64) ([]*model.Transaction, error) {
	records, err := s.transactions.ListByUser(ctx, userID, transactionPageSize)
	if err != nil {
		return nil, err
	}
	s.decryptDescriptions(records)
	return records, nil
}

// AccountTransactions returns rows touching the account, owner-checked.
func (s *TransferService) AccountTransactions(ctx context.Context, userID, accountID int64) ([]*model.Transaction, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.UserID != userID {
		return nil, repository.ErrAccountNotFound
	}

	records, err := s.transactions.ListByAccount(ctx, accountID, transactionPageSize)
	if err != nil {
		return nil, err
	}
	s.decryptDescriptions(records)
	return records, nil
}

func (s *TransferService) decryptDescriptions(records []*model.Transaction) {
	for _, t := range records {
		plain, err := s.cipher.Decrypt(t.Description)
		if err != nil {
			log.Error().Err(err).Int64("transaction_id", t.ID).Msg("description failed to decrypt")
			t.Description = ""
			continue
		}
		t.Description = plain
	}
}

func (s *TransferService) recordFailedTransfer(ctx context.Context, userID, sourceAccountID int64, amount decimal.Decimal, encDescription, clientIP string) {
	failed := &model.Transaction{
		Type:          model.TypeTransfer,
		Status:        model.StatusFailed,
		Amount:        amount,
		Description:   encDescription,
		FromAccountID: &sourceAccountID,
		UserID:        userID,
		IPAddress:     clientIP,
	}
	if err := s.transactions.Record(ctx, failed); err != nil {
		log.Error().Err(err).Msg("failed to record rejected transfer")
	}
}

func isTransferRejection(err error) bool {
	return errors.Is(err, repository.ErrInsufficientFunds) ||
		errors.Is(err, repository.ErrAccountInactive) ||
		errors.Is(err, repository.ErrSelfTransfer) ||
		errors.Is(err, repository.ErrInvalidDestination)
}

func generateAccountNumber() (string, error) {
	digits := make([]byte, accountNumberLen)
	for i := range digits {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		digits[i] = byte('0' + n.Int64())
	}
	return string(digits), nil
}
