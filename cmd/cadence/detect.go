package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/calloway/cadence/internal/cli"
	"github.com/calloway/cadence/internal/detect"
	"github.com/calloway/cadence/internal/model"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func detectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Detect recurring patterns in imported transactions",
		Long: `Scan the transaction history for subscriptions, bills, and paychecks
that recur on a stable cadence, and persist them for tracking.

Examples:
  # Detect across all accounts over the last 12 months
  cadence detect

  # Detect for one account with a shorter lookback
  cadence detect --account chk-1234 --lookback 6

  # Preview without persisting anything
  cadence detect --dry-run`,
		RunE: runDetect,
	}

	cmd.Flags().String("account", "", "Limit detection to one account or credit card")
	cmd.Flags().Int("lookback", 12, "Months of history to analyze")
	cmd.Flags().String("as-of", "", "Reference date (YYYY-MM-DD, default today)")
	cmd.Flags().BoolP("dry-run", "d", false, "Preview detected patterns without saving")

	return cmd
}

func runDetect(cmd *cobra.Command, _ []string) error {
	account, _ := cmd.Flags().GetString("account")
	lookback, _ := cmd.Flags().GetInt("lookback")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	now, err := resolveAsOf(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	transactions, err := store.GetTransactions(ctx, account, lookback, now)
	if err != nil {
		return fmt.Errorf("failed to load transactions: %w", err)
	}
	if len(transactions) == 0 {
		fmt.Println(cli.FormatWarning("No transactions in the lookback window; import some first"))
		return nil
	}

	detector := detect.NewDetector(detectConfigFromViper())
	patterns := detector.Detect(ctx, transactions, lookback, now)

	renderPatternTable(patterns)

	if dryRun {
		fmt.Println(cli.FormatInfo("Dry run complete, nothing saved"))
		return nil
	}

	userID := viper.GetString("user.id")
	for i := range patterns {
		record := patternToRecord(&patterns[i], userID)
		if err := store.SaveOrUpdatePattern(ctx, record); err != nil {
			return fmt.Errorf("failed to save pattern for %s: %w", record.MerchantName, err)
		}
	}

	fmt.Println(cli.FormatSuccess(fmt.Sprintf("Saved %d recurring patterns", len(patterns))))
	return nil
}

// detectConfigFromViper starts from defaults and applies any overrides the
// user configured.
func detectConfigFromViper() detect.Config {
	cfg := detect.DefaultConfig()

	if viper.IsSet("detect.workers") {
		cfg.Workers = viper.GetInt("detect.workers")
	}
	if viper.IsSet("detect.min_confidence") {
		cfg.MinConfidence = viper.GetFloat64("detect.min_confidence")
	}
	if viper.IsSet("detect.retail_keywords") {
		cfg.RetailKeywords = viper.GetStringSlice("detect.retail_keywords")
	}

	return cfg
}

// patternToRecord converts a detection result to its persisted form. New
// records start active with reminders on; the upsert preserves lifecycle
// state on records that already exist.
func patternToRecord(p *model.RecurringPattern, userID string) *model.RecurringTransaction {
	return &model.RecurringTransaction{
		UserID:             userID,
		MerchantGroupID:    p.MerchantGroupID,
		MerchantName:       p.MerchantName,
		CategoryID:         p.CategoryID,
		AccountID:          p.AccountID,
		CreditCardID:       p.CreditCardID,
		Frequency:          p.Frequency,
		Direction:          p.Direction,
		ExpectedAmount:     p.ExpectedAmount,
		AmountVariance:     p.AmountVariance,
		ConfidenceScore:    p.ConfidenceScore,
		OccurrenceCount:    p.OccurrenceCount,
		Interval:           p.Interval,
		DayOfMonth:         p.DayOfMonth,
		DayOfWeek:          p.DayOfWeek,
		LastOccurrenceDate: p.LastOccurrenceDate,
		NextExpectedDate:   p.NextExpectedDate,
		IsActive:           true,
		ReminderEnabled:    true,
	}
}

func renderPatternTable(patterns []model.RecurringPattern) {
	fmt.Println(cli.FormatTitle("Recurring patterns"))

	if len(patterns) == 0 {
		fmt.Println(cli.StyleSubtle("  none detected"))
		return
	}

	header := fmt.Sprintf("%-28s %-10s %-10s %10s %6s %6s",
		"MERCHANT", "FREQ", "DIRECTION", "AMOUNT", "OCC", "CONF")
	fmt.Println(cli.TableHeaderStyle.Render(header))

	for _, p := range patterns {
		name := p.MerchantName
		if len(name) > 28 {
			name = name[:25] + "..."
		}
		row := fmt.Sprintf("%-28s %-10s %-10s %10.2f %6d %5.0f%%",
			name, p.Frequency, p.Direction, p.ExpectedAmount,
			p.OccurrenceCount, p.ConfidenceScore*100)
		fmt.Println(cli.TableCellStyle.Render(row))
	}
}

// resolveAsOf parses the --as-of flag, defaulting to the current time.
func resolveAsOf(cmd *cobra.Command) (time.Time, error) {
	asOf, _ := cmd.Flags().GetString("as-of")
	if strings.TrimSpace(asOf) == "" {
		return time.Now().UTC(), nil
	}
	t, err := time.Parse("2006-01-02", asOf)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --as-of date %q: %w", asOf, err)
	}
	return t, nil
}
