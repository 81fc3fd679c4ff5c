package storage

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"fmt"

	"github.com/calloway/cadence/internal/model"
)

// patternID derives a stable identifier from the pattern's dedup key, so
// repeated detection runs address the same row.
func patternID(record *model.RecurringTransaction) string {
	data := fmt.Sprintf("%s:%s:%s:%s:%.2f",
		record.MerchantGroupID, record.Direction,
		record.AccountID, record.CreditCardID, record.ExpectedAmount)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash[:12])
}

// SaveOrUpdatePattern inserts a detected pattern or refreshes the detection
// metadata of an existing row with the same merchant/direction/account/amount
// key. Lifecycle fields owned by the tracker (missed streak, cumulative
// occurrence count, active flag) are left untouched on update.
func (s *SQLiteStorage) SaveOrUpdatePattern(ctx context.Context, record *model.RecurringTransaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRecurring(record); err != nil {
		return err
	}

	if record.ID == "" {
		record.ID = patternID(record)
	}
	if record.Interval < 1 {
		record.Interval = 1
	}

	query := `
		INSERT INTO recurring_transactions (
			id, user_id, merchant_group_id, merchant_name, frequency, direction,
			expected_amount, amount_variance, confidence_score, category_id,
			account_id, credit_card_id, occurrence_count, interval,
			day_of_month, day_of_week, last_occurrence_date, next_expected_date,
			missed_streak, is_active, reminder_enabled
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, 1, ?)
		ON CONFLICT (merchant_group_id, direction, account_id, credit_card_id, expected_amount)
		DO UPDATE SET
			merchant_name = excluded.merchant_name,
			frequency = excluded.frequency,
			amount_variance = excluded.amount_variance,
			confidence_score = excluded.confidence_score,
			category_id = excluded.category_id,
			day_of_month = excluded.day_of_month,
			day_of_week = excluded.day_of_week,
			last_occurrence_date = excluded.last_occurrence_date,
			next_expected_date = excluded.next_expected_date,
			updated_at = CURRENT_TIMESTAMP
	`

	_, err := s.db.ExecContext(ctx, query,
		record.ID, record.UserID, record.MerchantGroupID, record.MerchantName,
		string(record.Frequency), string(record.Direction),
		record.ExpectedAmount, record.AmountVariance, record.ConfidenceScore,
		record.CategoryID, record.AccountID, record.CreditCardID,
		record.OccurrenceCount, record.Interval,
		record.DayOfMonth, record.DayOfWeek,
		record.LastOccurrenceDate, record.NextExpectedDate,
		record.ReminderEnabled,
	)
	if err != nil {
		return fmt.Errorf("failed to save recurring pattern: %w", err)
	}

	return nil
}

const recurringColumns = `
	id, user_id, merchant_group_id, merchant_name, frequency, direction,
	expected_amount, amount_variance, confidence_score, category_id,
	account_id, credit_card_id, occurrence_count, interval,
	day_of_month, day_of_week, last_occurrence_date, next_expected_date,
	last_missed_date, missed_streak, is_active, reminder_enabled,
	status_reason, created_at, updated_at
`

func scanRecurring(scan func(...any) error) (model.RecurringTransaction, error) {
	var record model.RecurringTransaction
	var userID, categoryID, accountID, creditCardID, statusReason sql.NullString
	var frequency, direction string
	var lastOccurrence, nextExpected, lastMissed sql.NullTime

	err := scan(
		&record.ID, &userID, &record.MerchantGroupID, &record.MerchantName,
		&frequency, &direction,
		&record.ExpectedAmount, &record.AmountVariance, &record.ConfidenceScore,
		&categoryID, &accountID, &creditCardID,
		&record.OccurrenceCount, &record.Interval,
		&record.DayOfMonth, &record.DayOfWeek,
		&lastOccurrence, &nextExpected, &lastMissed,
		&record.MissedStreak, &record.IsActive, &record.ReminderEnabled,
		&statusReason, &record.CreatedAt, &record.UpdatedAt,
	)
	if err != nil {
		return record, err
	}

	record.UserID = userID.String
	record.CategoryID = categoryID.String
	record.AccountID = accountID.String
	record.CreditCardID = creditCardID.String
	record.Frequency = model.Frequency(frequency)
	record.Direction = model.TransactionDirection(direction)
	record.StatusReason = model.StatusReason(statusReason.String)
	if lastOccurrence.Valid {
		record.LastOccurrenceDate = lastOccurrence.Time
	}
	if nextExpected.Valid {
		record.NextExpectedDate = nextExpected.Time
	}
	if lastMissed.Valid {
		missed := lastMissed.Time
		record.LastMissedDate = &missed
	}

	return record, nil
}

// GetPattern retrieves one record by ID.
func (s *SQLiteStorage) GetPattern(ctx context.Context, id string) (*model.RecurringTransaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+recurringColumns+` FROM recurring_transactions WHERE id = ?`, id)

	record, err := scanRecurring(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("recurring pattern %s not found", id)
		}
		return nil, fmt.Errorf("failed to get recurring pattern: %w", err)
	}

	return &record, nil
}

// ListActivePatterns returns all active records in the account scope,
// ordered by next expected date. An empty scope matches every account.
func (s *SQLiteStorage) ListActivePatterns(ctx context.Context, accountScope string) ([]model.RecurringTransaction, error) {
	return s.listPatterns(ctx, accountScope, true)
}

// ListAllPatterns returns every record in the scope, active or not.
func (s *SQLiteStorage) ListAllPatterns(ctx context.Context, accountScope string) ([]model.RecurringTransaction, error) {
	return s.listPatterns(ctx, accountScope, false)
}

func (s *SQLiteStorage) listPatterns(ctx context.Context, accountScope string, activeOnly bool) ([]model.RecurringTransaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := `SELECT ` + recurringColumns + `
		FROM recurring_transactions
		WHERE (? = '' OR account_id = ? OR credit_card_id = ?)
	`
	if activeOnly {
		query += ` AND is_active = 1`
	}
	query += ` ORDER BY next_expected_date ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, accountScope, accountScope, accountScope)
	if err != nil {
		return nil, fmt.Errorf("failed to list recurring patterns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []model.RecurringTransaction
	for rows.Next() {
		record, err := scanRecurring(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recurring pattern: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating recurring patterns: %w", err)
	}

	return records, nil
}

// UpdatePattern writes the full mutable state of a record.
func (s *SQLiteStorage) UpdatePattern(ctx context.Context, record *model.RecurringTransaction) error {
	return s.updatePattern(ctx, record, nil)
}

// UpdatePatternIfStreak writes the record only if the stored missed_streak
// still equals expectedStreak. Returns false when the guard fails, which
// means another job run already advanced this record.
func (s *SQLiteStorage) UpdatePatternIfStreak(ctx context.Context, record *model.RecurringTransaction, expectedStreak int) (bool, error) {
	affected, err := s.updatePatternGuarded(ctx, record, &expectedStreak)
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (s *SQLiteStorage) updatePattern(ctx context.Context, record *model.RecurringTransaction, guard *int) error {
	affected, err := s.updatePatternGuarded(ctx, record, guard)
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("recurring pattern %s not found", record.ID)
	}
	return nil
}

func (s *SQLiteStorage) updatePatternGuarded(ctx context.Context, record *model.RecurringTransaction, guard *int) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateRecurring(record); err != nil {
		return 0, err
	}
	if err := validateString(record.ID, "record.ID"); err != nil {
		return 0, err
	}

	query := `
		UPDATE recurring_transactions SET
			merchant_name = ?, frequency = ?, expected_amount = ?,
			amount_variance = ?, confidence_score = ?, category_id = ?,
			occurrence_count = ?, interval = ?, day_of_month = ?, day_of_week = ?,
			last_occurrence_date = ?, next_expected_date = ?, last_missed_date = ?,
			missed_streak = ?, is_active = ?, reminder_enabled = ?,
			status_reason = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`
	args := []any{
		record.MerchantName, string(record.Frequency), record.ExpectedAmount,
		record.AmountVariance, record.ConfidenceScore, record.CategoryID,
		record.OccurrenceCount, record.Interval, record.DayOfMonth, record.DayOfWeek,
		record.LastOccurrenceDate, record.NextExpectedDate, record.LastMissedDate,
		record.MissedStreak, record.IsActive, record.ReminderEnabled,
		string(record.StatusReason), record.ID,
	}

	if guard != nil {
		query += ` AND missed_streak = ?`
		args = append(args, *guard)
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to update recurring pattern: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected, nil
}

// SetReminderEnabled toggles upcoming reminders for one record.
func (s *SQLiteStorage) SetReminderEnabled(ctx context.Context, id string, enabled bool) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE recurring_transactions SET reminder_enabled = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		enabled, id)
	if err != nil {
		return fmt.Errorf("failed to set reminder flag: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("recurring pattern %s not found", id)
	}
	return nil
}
