// Package service defines the interfaces the recurrence core consumes from
// its collaborators: transaction supply, pattern persistence, balances,
// notifications, and user preferences.
package service

import (
	"context"
	"time"

	"github.com/calloway/cadence/internal/model"
)

// TransactionSource supplies the flat transaction snapshot detection runs on.
type TransactionSource interface {
	// GetTransactions returns all transactions for the account scope within
	// the lookback window, in no particular order.
	GetTransactions(ctx context.Context, accountScope string, lookbackMonths int, now time.Time) ([]model.Transaction, error)

	// FindMatchingTransaction searches for a transaction matching the given
	// merchant, direction, and settlement account with a date within
	// windowDays of around and an amount within amountTolerance of amount.
	// Returns nil when no such transaction exists.
	FindMatchingTransaction(ctx context.Context, merchantGroupID string, direction model.TransactionDirection, settlementID string, around time.Time, windowDays int, amount, amountTolerance float64) (*model.Transaction, error)

	// SaveTransactions persists imported transactions, ignoring duplicates.
	SaveTransactions(ctx context.Context, transactions []model.Transaction) error
}

// PatternStore persists detected recurring patterns and their lifecycle state.
type PatternStore interface {
	SaveOrUpdatePattern(ctx context.Context, pattern *model.RecurringTransaction) error
	ListActivePatterns(ctx context.Context, accountScope string) ([]model.RecurringTransaction, error)
	ListAllPatterns(ctx context.Context, accountScope string) ([]model.RecurringTransaction, error)
	GetPattern(ctx context.Context, id string) (*model.RecurringTransaction, error)
	UpdatePattern(ctx context.Context, pattern *model.RecurringTransaction) error

	// UpdatePatternIfStreak applies the update only if the stored record
	// still carries expectedStreak, guarding against overlapping job runs.
	// Returns false without error when the guard fails.
	UpdatePatternIfStreak(ctx context.Context, pattern *model.RecurringTransaction, expectedStreak int) (bool, error)

	SetReminderEnabled(ctx context.Context, id string, enabled bool) error
}

// BalanceProvider exposes current account balances for the
// insufficient-funds reminder check.
type BalanceProvider interface {
	GetAccountBalance(ctx context.Context, accountID string) (float64, error)
}

// NotificationKind distinguishes the notifications the tracker emits.
type NotificationKind string

const (
	// NotificationUpcoming warns that a recurring charge is due soon.
	NotificationUpcoming NotificationKind = "upcoming"
	// NotificationMissed reports an expected occurrence that never appeared.
	NotificationMissed NotificationKind = "missed"
	// NotificationInsufficientFunds warns the settling account cannot cover
	// an upcoming charge.
	NotificationInsufficientFunds NotificationKind = "insufficient_funds"
)

// Notification is the payload handed to the notification collaborator.
type Notification struct {
	DueDate      time.Time
	UserID       string
	PatternID    string
	AccountScope string
	MerchantName string
	Kind         NotificationKind
	Amount       float64
	DaysUntilDue int
}

// Notifier delivers notifications. Fire-and-forget from the core's
// perspective; delivery guarantees belong to the implementation.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Preferences exposes per-user tracker settings.
type Preferences interface {
	// GetReminderDaysBefore returns how many days ahead of the due date the
	// user wants upcoming reminders. Implementations return their default
	// when the user has no explicit setting.
	GetReminderDaysBefore(ctx context.Context, userID string) (int, error)
}

// RetryOptions configures retry behavior for storage and notification calls.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
