package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/calloway/cadence/internal/model"
)

// Validation errors.
var (
	ErrNilContext         = errors.New("context cannot be nil")
	ErrEmptyString        = errors.New("string parameter cannot be empty")
	ErrNilParameter       = errors.New("parameter cannot be nil")
	ErrEmptySlice         = errors.New("slice cannot be empty")
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrInvalidPattern     = errors.New("invalid recurring pattern")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateTransactions validates a slice of transactions.
func validateTransactions(transactions []model.Transaction) error {
	if transactions == nil {
		return fmt.Errorf("%w: transactions", ErrNilParameter)
	}
	if len(transactions) == 0 {
		return fmt.Errorf("%w: transactions", ErrEmptySlice)
	}

	for i, txn := range transactions {
		if err := validateTransaction(&txn); err != nil {
			return fmt.Errorf("transaction at index %d: %w", i, err)
		}
	}
	return nil
}

// validateTransaction validates a single transaction.
func validateTransaction(txn *model.Transaction) error {
	if txn == nil {
		return fmt.Errorf("%w: transaction", ErrNilParameter)
	}
	if txn.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidTransaction)
	}
	if txn.Date.IsZero() {
		return fmt.Errorf("%w: missing date", ErrInvalidTransaction)
	}
	if txn.Direction != model.DirectionIncome && txn.Direction != model.DirectionExpense {
		return fmt.Errorf("%w: unknown direction %q", ErrInvalidTransaction, txn.Direction)
	}
	if txn.AccountID != "" && txn.CreditCardID != "" {
		// A transaction settles against exactly one account in practice.
		return fmt.Errorf("%w: both account and credit card set", ErrInvalidTransaction)
	}
	return nil
}

// validateRecurring validates a persisted recurring transaction record.
func validateRecurring(record *model.RecurringTransaction) error {
	if record == nil {
		return fmt.Errorf("%w: record", ErrNilParameter)
	}
	if record.MerchantGroupID == "" {
		return fmt.Errorf("%w: missing merchant group", ErrInvalidPattern)
	}
	if record.MerchantName == "" {
		return fmt.Errorf("%w: missing merchant name", ErrInvalidPattern)
	}
	if record.Frequency == "" {
		return fmt.Errorf("%w: missing frequency", ErrInvalidPattern)
	}
	if record.ExpectedAmount < 0 {
		return fmt.Errorf("%w: negative expected amount", ErrInvalidPattern)
	}
	if record.OccurrenceCount < 0 {
		return fmt.Errorf("%w: negative occurrence count", ErrInvalidPattern)
	}
	if record.MissedStreak < 0 {
		return fmt.Errorf("%w: negative missed streak", ErrInvalidPattern)
	}
	return nil
}
