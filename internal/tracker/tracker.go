// Package tracker implements the scheduled job that follows up on persisted
// recurring patterns: confirming expected occurrences, counting misses,
// deactivating dead patterns, and emitting reminder notifications.
package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/calloway/cadence/internal/common"
	"github.com/calloway/cadence/internal/model"
	"github.com/calloway/cadence/internal/service"
)

// Config holds the tracker's tunable thresholds.
type Config struct {
	// GraceWindowDays is how far past the expected date a record must be
	// before it is checked for a miss.
	GraceWindowDays int
	// MatchWindowDays bounds the search for a confirming transaction around
	// the expected date.
	MatchWindowDays int
	// AmountToleranceFloor and AmountTolerancePct define the matching amount
	// tolerance: max(floor, pct * expected).
	AmountToleranceFloor float64
	AmountTolerancePct   float64
	// DeactivateAfterMisses is the missed streak that deactivates a record.
	DeactivateAfterMisses int
	// UpcomingWindowDays is how far ahead reminder evaluation looks.
	UpcomingWindowDays int
	// DefaultReminderDays is used when the user has no explicit preference.
	DefaultReminderDays int
	// MaxRecords caps records processed per invocation; 0 means unlimited.
	// Overflow simply waits for the next scheduled run.
	MaxRecords int
	// Retry configures storage write retries.
	Retry service.RetryOptions
}

// DefaultConfig returns the default tracker configuration.
func DefaultConfig() Config {
	return Config{
		GraceWindowDays:       3,
		MatchWindowDays:       3,
		AmountToleranceFloor:  5,
		AmountTolerancePct:    0.05,
		DeactivateAfterMisses: 2,
		UpcomingWindowDays:    7,
		DefaultReminderDays:   2,
		Retry: service.RetryOptions{
			MaxAttempts:  3,
			InitialDelay: 100 * time.Millisecond,
		},
	}
}

// Summary reports what one tracker run did.
type Summary struct {
	Processed         int
	Deactivated       int
	NotificationsSent int
	Errors            int
}

// Tracker wires the collaborators the job needs.
type Tracker struct {
	transactions service.TransactionSource
	patterns     service.PatternStore
	balances     service.BalanceProvider
	notifier     service.Notifier
	preferences  service.Preferences
	cfg          Config
}

// NewTracker creates a tracker with the given configuration and collaborators.
func NewTracker(cfg Config, transactions service.TransactionSource, patterns service.PatternStore, balances service.BalanceProvider, notifier service.Notifier, preferences service.Preferences) *Tracker {
	return &Tracker{
		cfg:          cfg,
		transactions: transactions,
		patterns:     patterns,
		balances:     balances,
		notifier:     notifier,
		preferences:  preferences,
	}
}

// Run executes one pass over all active records. Failures on a single
// record are logged and counted without aborting the rest of the batch.
func (t *Tracker) Run(ctx context.Context, now time.Time) (Summary, error) {
	var summary Summary

	records, err := t.patterns.ListActivePatterns(ctx, "")
	if err != nil {
		return summary, fmt.Errorf("failed to list active patterns: %w", err)
	}

	if t.cfg.MaxRecords > 0 && len(records) > t.cfg.MaxRecords {
		slog.Info("Deferring records past per-run cap",
			"total", len(records),
			"cap", t.cfg.MaxRecords)
		records = records[:t.cfg.MaxRecords]
	}

	for i := range records {
		if ctx.Err() != nil {
			break
		}

		record := records[i]
		deactivated, notified, err := t.processRecord(ctx, &record, now)
		summary.Processed++
		summary.NotificationsSent += notified
		if deactivated {
			summary.Deactivated++
		}
		if err != nil {
			summary.Errors++
			common.LogError(err, "Failed to process recurring record", common.Fields{
				"record_id": record.ID,
				"merchant":  record.MerchantName,
			})
		}
	}

	slog.Info("Missed-occurrence check complete",
		"processed", summary.Processed,
		"deactivated", summary.Deactivated,
		"notifications", summary.NotificationsSent,
		"errors", summary.Errors)

	return summary, nil
}

// processRecord handles a single record: either the overdue branch (match
// search, streak bookkeeping) or the upcoming-reminder branch.
func (t *Tracker) processRecord(ctx context.Context, record *model.RecurringTransaction, now time.Time) (deactivated bool, notified int, err error) {
	if !record.IsActive {
		return false, 0, common.ErrPatternInactive
	}
	if record.OccurrenceCount < 0 {
		return false, 0, fmt.Errorf("record %s: negative occurrence count %d", record.ID, record.OccurrenceCount)
	}

	overdueDays := wholeDaysBetween(record.NextExpectedDate, now)
	if overdueDays >= t.cfg.GraceWindowDays {
		return t.processOverdue(ctx, record, now)
	}

	daysUntilDue := wholeDaysBetween(now, record.NextExpectedDate)
	if daysUntilDue >= 0 && daysUntilDue <= t.cfg.UpcomingWindowDays {
		notified, err = t.processUpcoming(ctx, record, daysUntilDue)
		return false, notified, err
	}

	return false, 0, nil
}

// processOverdue searches for a confirming transaction and updates streak
// state. The write is guarded on the streak value read, so overlapping job
// runs cannot double-count a miss.
func (t *Tracker) processOverdue(ctx context.Context, record *model.RecurringTransaction, now time.Time) (bool, int, error) {
	priorStreak := record.MissedStreak

	tolerance := t.cfg.AmountToleranceFloor
	if pct := t.cfg.AmountTolerancePct * record.ExpectedAmount; pct > tolerance {
		tolerance = pct
	}

	match, err := t.transactions.FindMatchingTransaction(ctx,
		record.MerchantGroupID, record.Direction, record.SettlementID(),
		record.NextExpectedDate, t.cfg.MatchWindowDays,
		record.ExpectedAmount, tolerance)
	if err != nil {
		return false, 0, fmt.Errorf("match search failed: %w", err)
	}

	notifications := 0

	if match != nil {
		record.MissedStreak = 0
		record.LastMissedDate = nil
		record.LastOccurrenceDate = match.Date
		record.OccurrenceCount++
		record.NextExpectedDate = model.NextExpectedDate(match.Date,
			record.Frequency, record.Interval, record.DayOfMonth, record.DayOfWeek)
	} else {
		record.MissedStreak++
		missed := dateOnly(now)
		record.LastMissedDate = &missed
		if record.MissedStreak >= t.cfg.DeactivateAfterMisses {
			record.IsActive = false
			record.StatusReason = model.StatusReasonMissedTwice
		}
		// NextExpectedDate stays put while the occurrence is unconfirmed.
	}

	if err := t.updateGuarded(ctx, record, priorStreak); err != nil {
		return false, 0, err
	}

	// One "missed" notification per streak, on the first miss only.
	if match == nil && priorStreak == 0 {
		if err := t.notify(ctx, record, service.NotificationMissed, 0); err != nil {
			return !record.IsActive, 0, err
		}
		notifications++
	}

	return !record.IsActive, notifications, nil
}

// processUpcoming evaluates reminders for a record due within the window,
// then advances the expected date one cadence step. The record is not due
// yet, so pre-advancing cannot lose an occurrence.
func (t *Tracker) processUpcoming(ctx context.Context, record *model.RecurringTransaction, daysUntilDue int) (int, error) {
	notifications := 0

	reminderDays, err := t.preferences.GetReminderDaysBefore(ctx, record.UserID)
	if err != nil {
		slog.Warn("Falling back to default reminder preference",
			"user_id", record.UserID,
			"error", err)
		reminderDays = t.cfg.DefaultReminderDays
	}

	if record.ReminderEnabled && daysUntilDue == reminderDays {
		if err := t.notify(ctx, record, service.NotificationUpcoming, daysUntilDue); err != nil {
			return notifications, err
		}
		notifications++

		balance, err := t.balances.GetAccountBalance(ctx, record.SettlementID())
		if err != nil {
			return notifications, fmt.Errorf("balance lookup failed: %w", err)
		}
		if balance < record.ExpectedAmount {
			if err := t.notify(ctx, record, service.NotificationInsufficientFunds, daysUntilDue); err != nil {
				return notifications, err
			}
			notifications++
		}
	}

	record.NextExpectedDate = model.NextExpectedDate(record.NextExpectedDate,
		record.Frequency, record.Interval, record.DayOfMonth, record.DayOfWeek)

	if err := t.updateGuarded(ctx, record, record.MissedStreak); err != nil {
		return notifications, err
	}

	return notifications, nil
}

func (t *Tracker) updateGuarded(ctx context.Context, record *model.RecurringTransaction, expectedStreak int) error {
	return common.WithRetry(ctx, func() error {
		ok, err := t.patterns.UpdatePatternIfStreak(ctx, record, expectedStreak)
		if err != nil {
			return err
		}
		if !ok {
			// Another run got here first; not retryable, not fatal.
			return &common.RetryableError{Err: common.ErrStaleRecord, Retryable: false}
		}
		return nil
	}, t.cfg.Retry)
}

func (t *Tracker) notify(ctx context.Context, record *model.RecurringTransaction, kind service.NotificationKind, daysUntilDue int) error {
	n := service.Notification{
		UserID:       record.UserID,
		PatternID:    record.ID,
		AccountScope: record.SettlementID(),
		MerchantName: record.MerchantName,
		Kind:         kind,
		Amount:       record.ExpectedAmount,
		DueDate:      record.NextExpectedDate,
		DaysUntilDue: daysUntilDue,
	}
	if err := t.notifier.Notify(ctx, n); err != nil {
		return fmt.Errorf("notification %s failed: %w", kind, err)
	}
	return nil
}

// wholeDaysBetween returns b - a in whole days, ignoring time components.
func wholeDaysBetween(a, b time.Time) int {
	return int(dateOnly(b).Sub(dateOnly(a)).Hours() / 24)
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
