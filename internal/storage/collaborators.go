package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/calloway/cadence/internal/common"
	"github.com/calloway/cadence/internal/service"
)

// GetAccountBalance returns the current balance for an account.
func (s *SQLiteStorage) GetAccountBalance(ctx context.Context, accountID string) (float64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateString(accountID, "accountID"); err != nil {
		return 0, err
	}

	var balance float64
	err := s.db.QueryRowContext(ctx,
		`SELECT balance FROM account_balances WHERE account_id = ?`, accountID).Scan(&balance)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, fmt.Errorf("balance for account %s: %w", accountID, common.ErrNotFound)
		}
		return 0, fmt.Errorf("failed to get account balance: %w", err)
	}
	return balance, nil
}

// UpsertAccountBalance records the latest known balance for an account.
// The OFX importer feeds this from statement ledger balances.
func (s *SQLiteStorage) UpsertAccountBalance(ctx context.Context, accountID string, balance float64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(accountID, "accountID"); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO account_balances (account_id, balance, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (account_id) DO UPDATE SET
			balance = excluded.balance,
			updated_at = CURRENT_TIMESTAMP
	`, accountID, balance)
	if err != nil {
		return fmt.Errorf("failed to upsert account balance: %w", err)
	}
	return nil
}

// GetReminderDaysBefore returns the user's reminder lead time, falling back
// to the storage default when the user has no explicit preference.
func (s *SQLiteStorage) GetReminderDaysBefore(ctx context.Context, userID string) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	var days int
	err := s.db.QueryRowContext(ctx,
		`SELECT reminder_days_before FROM user_preferences WHERE user_id = ?`, userID).Scan(&days)
	if err != nil {
		if err == sql.ErrNoRows {
			return s.defaultReminderDays, nil
		}
		return 0, fmt.Errorf("failed to get reminder preference: %w", err)
	}
	return days, nil
}

// SetReminderDaysBefore stores the user's reminder lead time.
func (s *SQLiteStorage) SetReminderDaysBefore(ctx context.Context, userID string, days int) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(userID, "userID"); err != nil {
		return err
	}
	if days < 0 {
		return fmt.Errorf("%w: reminder days must be non-negative", common.ErrInvalidConfig)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_preferences (user_id, reminder_days_before, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (user_id) DO UPDATE SET
			reminder_days_before = excluded.reminder_days_before,
			updated_at = CURRENT_TIMESTAMP
	`, userID, days)
	if err != nil {
		return fmt.Errorf("failed to set reminder preference: %w", err)
	}
	return nil
}

// Notify appends the notification to the outbox table. An external delivery
// process drains the outbox; the core only records intent.
func (s *SQLiteStorage) Notify(ctx context.Context, n service.Notification) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(n.PatternID, "notification.PatternID"); err != nil {
		return err
	}
	if n.Kind == "" {
		return fmt.Errorf("%w: notification kind", ErrEmptyString)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (
			user_id, pattern_id, account_scope, merchant_name,
			kind, amount, due_date, days_until_due
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, n.UserID, n.PatternID, n.AccountScope, n.MerchantName,
		string(n.Kind), n.Amount, n.DueDate, n.DaysUntilDue)
	if err != nil {
		return fmt.Errorf("failed to record notification: %w", err)
	}
	return nil
}

// CountNotifications returns how many notifications of the given kind have
// been recorded for a pattern. Used by job summaries and tests.
func (s *SQLiteStorage) CountNotifications(ctx context.Context, patternID string, kind service.NotificationKind) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE pattern_id = ? AND kind = ?`,
		patternID, string(kind)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count notifications: %w", err)
	}
	return count, nil
}
