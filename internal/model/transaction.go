// Package model defines the core domain types shared across the application.
package model

import (
	"crypto/sha256"
	"fmt"
	"time"
)

// TransactionDirection indicates whether money flowed in or out.
type TransactionDirection string

const (
	// DirectionIncome represents money flowing into an account.
	DirectionIncome TransactionDirection = "income"
	// DirectionExpense represents money flowing out of an account.
	DirectionExpense TransactionDirection = "expense"
)

// CategoryAssignment links a transaction to a budget category.
// System and buffer categories represent internal bookkeeping (transfers,
// envelope buffers) rather than real spend.
type CategoryAssignment struct {
	CategoryID string
	IsSystem   bool
	IsBuffer   bool
}

// Transaction represents a single financial transaction as supplied by the
// storage layer. The detection core treats it as read-only input.
type Transaction struct {
	Date            time.Time
	ID              string
	Name            string // Raw transaction description
	MerchantName    string // Display name via merchant group
	MerchantGroupID string // Empty means ineligible for detection
	AccountID       string
	CreditCardID    string
	Hash            string
	Categories      []CategoryAssignment
	Amount          float64 // Magnitude; direction carried separately
	Direction       TransactionDirection
}

// SettlementID returns the identifier of the settling account, preferring
// the budget account over the credit card.
func (t *Transaction) SettlementID() string {
	if t.AccountID != "" {
		return t.AccountID
	}
	return t.CreditCardID
}

// HasRealCategory reports whether the transaction is linked to at least one
// non-system, non-buffer category. Transactions with assignments but no real
// category are internal transfers and never part of a recurring pattern.
func (t *Transaction) HasRealCategory() bool {
	if len(t.Categories) == 0 {
		return true // No assignments at all: nothing disqualifies it
	}
	for _, c := range t.Categories {
		if !c.IsSystem && !c.IsBuffer {
			return true
		}
	}
	return false
}

// GenerateHash creates a unique hash for duplicate detection on import.
func (t *Transaction) GenerateHash() string {
	data := fmt.Sprintf("%s:%.2f:%s:%s",
		t.Date.Format("2006-01-02"),
		t.Amount,
		t.MerchantName,
		t.SettlementID())
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}
