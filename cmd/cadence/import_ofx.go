package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/calloway/cadence/internal/cli"
	"github.com/calloway/cadence/internal/model"
	"github.com/calloway/cadence/internal/ofx"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

func importOFXCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import-ofx [files...]",
		Short: "Import transactions from OFX/QFX files",
		Long: `Import financial transactions from OFX or QFX (Quicken) files exported
from your bank. Statement ledger balances are recorded alongside so the
tracker can warn when an upcoming charge exceeds the account balance.

Examples:
  # Import single file
  cadence import-ofx ~/Downloads/chase_jan_2024.qfx

  # Import all QFX files in a directory
  cadence import-ofx ~/Downloads/*.qfx`,
		Args: cobra.MinimumNArgs(1),
		RunE: runImportOFX,
	}

	cmd.Flags().BoolP("dry-run", "d", false, "Preview import without saving")

	return cmd
}

func runImportOFX(cmd *cobra.Command, args []string) error {
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	// Expand globs and collect all files
	var allFiles []string
	for _, pattern := range args {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return fmt.Errorf("invalid pattern %s: %w", pattern, err)
		}
		if len(matches) == 0 {
			// If no glob matches, check if it's a direct file
			if _, err := os.Stat(pattern); err == nil {
				allFiles = append(allFiles, pattern)
			} else {
				slog.Warn("No files found matching pattern", "pattern", pattern)
			}
		} else {
			allFiles = append(allFiles, matches...)
		}
	}

	if len(allFiles) == 0 {
		return fmt.Errorf("no files found to import")
	}

	slog.Info("Importing OFX files",
		"file_count", len(allFiles),
		"dry_run", dryRun)

	var allTransactions []model.Transaction
	var allBalances []ofx.AccountBalance
	seen := make(map[string]bool) // dedupe across files by hash

	parser := ofx.NewParser()
	ctx := cmd.Context()

	bar := progressbar.Default(int64(len(allFiles)), "parsing")

	for _, filePath := range allFiles {
		f, err := os.Open(filePath)
		if err != nil {
			slog.Error("Failed to open file", "file", filePath, "error", err)
			_ = bar.Add(1)
			continue
		}

		result, err := parser.ParseFile(ctx, f)
		_ = f.Close()
		_ = bar.Add(1)

		if err != nil {
			slog.Error("Failed to parse OFX file", "file", filePath, "error", err)
			continue
		}

		added := 0
		for _, tx := range result.Transactions {
			if seen[tx.Hash] {
				continue
			}
			seen[tx.Hash] = true
			allTransactions = append(allTransactions, tx)
			added++
		}
		allBalances = append(allBalances, result.Balances...)

		slog.Info("Processed file",
			"file", filepath.Base(filePath),
			"transactions_found", len(result.Transactions),
			"added", added,
			"duplicates", len(result.Transactions)-added)
	}

	if len(allTransactions) == 0 {
		slog.Warn("No transactions found in any file")
		return nil
	}

	if dryRun {
		fmt.Println(cli.FormatInfo(fmt.Sprintf(
			"Dry run: would import %d transactions and %d balances",
			len(allTransactions), len(allBalances))))
		return nil
	}

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	if err := store.SaveTransactions(ctx, allTransactions); err != nil {
		return fmt.Errorf("failed to save transactions: %w", err)
	}

	for _, balance := range allBalances {
		if err := store.UpsertAccountBalance(ctx, balance.AccountID, balance.Balance); err != nil {
			return fmt.Errorf("failed to save balance for %s: %w", balance.AccountID, err)
		}
	}

	fmt.Println(cli.FormatSuccess(fmt.Sprintf(
		"Imported %d transactions and %d account balances",
		len(allTransactions), len(allBalances))))

	return nil
}
