package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/calloway/cadence/internal/model"
)

// SaveTransactions persists transactions, silently skipping duplicates by
// hash. Category assignments ride along in the same database transaction.
func (s *SQLiteStorage) SaveTransactions(ctx context.Context, transactions []model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTransactions(transactions); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	txnStmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO transactions (
			id, hash, date, name, merchant_name, merchant_group_id,
			account_id, credit_card_id, amount, direction
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = txnStmt.Close() }()

	catStmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO transaction_categories (
			transaction_id, category_id, is_system, is_buffer
		) VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare category statement: %w", err)
	}
	defer func() { _ = catStmt.Close() }()

	for _, txn := range transactions {
		hash := txn.Hash
		if hash == "" {
			hash = txn.GenerateHash()
		}

		if _, err := txnStmt.ExecContext(ctx,
			txn.ID, hash, txn.Date, txn.Name, txn.MerchantName, txn.MerchantGroupID,
			txn.AccountID, txn.CreditCardID, txn.Amount, string(txn.Direction),
		); err != nil {
			return fmt.Errorf("failed to save transaction %s: %w", txn.ID, err)
		}

		for _, cat := range txn.Categories {
			if _, err := catStmt.ExecContext(ctx,
				txn.ID, cat.CategoryID, cat.IsSystem, cat.IsBuffer,
			); err != nil {
				return fmt.Errorf("failed to save category for %s: %w", txn.ID, err)
			}
		}
	}

	return tx.Commit()
}

// GetTransactions returns all transactions in the account scope within the
// lookback window. An empty scope matches every account.
func (s *SQLiteStorage) GetTransactions(ctx context.Context, accountScope string, lookbackMonths int, now time.Time) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if lookbackMonths <= 0 {
		lookbackMonths = 12
	}
	cutoff := now.AddDate(0, -lookbackMonths, 0)

	query := `
		SELECT id, date, name, merchant_name, merchant_group_id,
			account_id, credit_card_id, amount, direction, hash
		FROM transactions
		WHERE date >= ? AND date <= ?
			AND (? = '' OR account_id = ? OR credit_card_id = ?)
		ORDER BY date ASC, id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, cutoff, now, accountScope, accountScope, accountScope)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var transactions []model.Transaction
	index := make(map[string]int)

	for rows.Next() {
		var txn model.Transaction
		var merchantName, merchantGroupID, accountID, creditCardID sql.NullString
		var direction string

		if err := rows.Scan(&txn.ID, &txn.Date, &txn.Name, &merchantName, &merchantGroupID,
			&accountID, &creditCardID, &txn.Amount, &direction, &txn.Hash); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}

		txn.MerchantName = merchantName.String
		txn.MerchantGroupID = merchantGroupID.String
		txn.AccountID = accountID.String
		txn.CreditCardID = creditCardID.String
		txn.Direction = model.TransactionDirection(direction)

		index[txn.ID] = len(transactions)
		transactions = append(transactions, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	if len(transactions) == 0 {
		return transactions, nil
	}

	catQuery := `
		SELECT tc.transaction_id, tc.category_id, tc.is_system, tc.is_buffer
		FROM transaction_categories tc
		JOIN transactions t ON t.id = tc.transaction_id
		WHERE t.date >= ? AND t.date <= ?
			AND (? = '' OR t.account_id = ? OR t.credit_card_id = ?)
	`
	catRows, err := s.db.QueryContext(ctx, catQuery, cutoff, now, accountScope, accountScope, accountScope)
	if err != nil {
		return nil, fmt.Errorf("failed to query category assignments: %w", err)
	}
	defer func() { _ = catRows.Close() }()

	for catRows.Next() {
		var txnID string
		var cat model.CategoryAssignment
		if err := catRows.Scan(&txnID, &cat.CategoryID, &cat.IsSystem, &cat.IsBuffer); err != nil {
			return nil, fmt.Errorf("failed to scan category assignment: %w", err)
		}
		if i, ok := index[txnID]; ok {
			transactions[i].Categories = append(transactions[i].Categories, cat)
		}
	}
	if err := catRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating category assignments: %w", err)
	}

	return transactions, nil
}

// FindMatchingTransaction looks for a transaction confirming an expected
// occurrence: same merchant, direction, and settlement account, posted
// within windowDays of around and within amountTolerance of amount.
// Returns nil when nothing matches.
func (s *SQLiteStorage) FindMatchingTransaction(ctx context.Context, merchantGroupID string, direction model.TransactionDirection, settlementID string, around time.Time, windowDays int, amount, amountTolerance float64) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(merchantGroupID, "merchantGroupID"); err != nil {
		return nil, err
	}

	start := around.AddDate(0, 0, -windowDays)
	end := around.AddDate(0, 0, windowDays)

	query := `
		SELECT id, date, name, merchant_name, merchant_group_id,
			account_id, credit_card_id, amount, direction, hash
		FROM transactions
		WHERE merchant_group_id = ?
			AND direction = ?
			AND (account_id = ? OR credit_card_id = ?)
			AND date >= ? AND date <= ?
			AND ABS(amount - ?) <= ?
		ORDER BY ABS(julianday(date) - julianday(?)) ASC
		LIMIT 1
	`

	var txn model.Transaction
	var merchantName, merchantGroup, accountID, creditCardID sql.NullString
	var dir string

	err := s.db.QueryRowContext(ctx, query,
		merchantGroupID, string(direction), settlementID, settlementID,
		start, end, amount, amountTolerance, around,
	).Scan(&txn.ID, &txn.Date, &txn.Name, &merchantName, &merchantGroup,
		&accountID, &creditCardID, &txn.Amount, &dir, &txn.Hash)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find matching transaction: %w", err)
	}

	txn.MerchantName = merchantName.String
	txn.MerchantGroupID = merchantGroup.String
	txn.AccountID = accountID.String
	txn.CreditCardID = creditCardID.String
	txn.Direction = model.TransactionDirection(dir)

	return &txn, nil
}
