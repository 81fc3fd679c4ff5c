package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version the application expects.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS transactions (
					id TEXT PRIMARY KEY,
					hash TEXT UNIQUE NOT NULL,
					date DATETIME NOT NULL,
					name TEXT NOT NULL,
					merchant_name TEXT,
					merchant_group_id TEXT,
					account_id TEXT,
					credit_card_id TEXT,
					amount REAL NOT NULL,
					direction TEXT NOT NULL,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_transactions_date ON transactions(date)`,
				`CREATE INDEX idx_transactions_merchant_group ON transactions(merchant_group_id)`,

				`CREATE TABLE IF NOT EXISTS transaction_categories (
					transaction_id TEXT NOT NULL,
					category_id TEXT NOT NULL,
					is_system BOOLEAN DEFAULT 0,
					is_buffer BOOLEAN DEFAULT 0,
					PRIMARY KEY (transaction_id, category_id),
					FOREIGN KEY (transaction_id) REFERENCES transactions(id)
				)`,

				`CREATE TABLE IF NOT EXISTS recurring_transactions (
					id TEXT PRIMARY KEY,
					user_id TEXT,
					merchant_group_id TEXT NOT NULL,
					merchant_name TEXT NOT NULL,
					frequency TEXT NOT NULL,
					direction TEXT NOT NULL,
					expected_amount REAL NOT NULL,
					amount_variance REAL DEFAULT 0,
					confidence_score REAL DEFAULT 0,
					category_id TEXT,
					account_id TEXT,
					credit_card_id TEXT,
					occurrence_count INTEGER DEFAULT 0,
					interval INTEGER DEFAULT 1,
					day_of_month INTEGER DEFAULT 0,
					day_of_week INTEGER DEFAULT -1,
					last_occurrence_date DATETIME,
					next_expected_date DATETIME,
					last_missed_date DATETIME,
					missed_streak INTEGER DEFAULT 0,
					is_active BOOLEAN DEFAULT 1,
					reminder_enabled BOOLEAN DEFAULT 1,
					status_reason TEXT,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					UNIQUE (merchant_group_id, direction, account_id, credit_card_id, expected_amount)
				)`,
				`CREATE INDEX idx_recurring_active ON recurring_transactions(is_active)`,
				`CREATE INDEX idx_recurring_next_expected ON recurring_transactions(next_expected_date)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Add account balances and user preferences",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS account_balances (
					account_id TEXT PRIMARY KEY,
					balance REAL NOT NULL,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE TABLE IF NOT EXISTS user_preferences (
					user_id TEXT PRIMARY KEY,
					reminder_days_before INTEGER NOT NULL DEFAULT 2,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     3,
		Description: "Add notification outbox",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS notifications (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					user_id TEXT,
					pattern_id TEXT NOT NULL,
					account_scope TEXT,
					merchant_name TEXT,
					kind TEXT NOT NULL,
					amount REAL DEFAULT 0,
					due_date DATETIME,
					days_until_due INTEGER DEFAULT 0,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_notifications_pattern ON notifications(pattern_id)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
}

// Migrate applies any pending schema migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion); err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		slog.Info("Applying migration",
			"version", migration.Version,
			"description", migration.Description)

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin migration %d: %w", migration.Version, err)
		}

		if err := migration.Up(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, err)
		}

		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to set schema version %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}
