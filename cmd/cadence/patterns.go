package main

import (
	"fmt"

	"github.com/calloway/cadence/internal/cli"
	"github.com/calloway/cadence/internal/model"
	"github.com/spf13/cobra"
)

func patternsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patterns",
		Short: "Inspect and manage tracked recurring patterns",
	}

	cmd.AddCommand(patternsListCmd())
	cmd.AddCommand(patternsRemindersCmd())

	return cmd
}

func patternsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tracked recurring patterns",
		RunE:  runPatternsList,
	}

	cmd.Flags().String("account", "", "Limit to one account or credit card")
	cmd.Flags().BoolP("all", "a", false, "Include deactivated patterns")

	return cmd
}

func runPatternsList(cmd *cobra.Command, _ []string) error {
	account, _ := cmd.Flags().GetString("account")
	includeInactive, _ := cmd.Flags().GetBool("all")

	ctx := cmd.Context()
	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	var records []model.RecurringTransaction
	if includeInactive {
		records, err = store.ListAllPatterns(ctx, account)
	} else {
		records, err = store.ListActivePatterns(ctx, account)
	}
	if err != nil {
		return fmt.Errorf("failed to list patterns: %w", err)
	}

	fmt.Println(cli.FormatTitle("Tracked patterns"))
	if len(records) == 0 {
		fmt.Println(cli.StyleSubtle("  none tracked; run `cadence detect` first"))
		return nil
	}

	header := fmt.Sprintf("%-14s %-24s %-10s %10s %-12s %-8s",
		"ID", "MERCHANT", "FREQ", "AMOUNT", "NEXT DUE", "STATUS")
	fmt.Println(cli.TableHeaderStyle.Render(header))

	for _, r := range records {
		status := cli.StyleSuccess("active")
		if !r.IsActive {
			status = cli.StyleError(string(r.StatusReason))
		} else if r.MissedStreak > 0 {
			status = cli.StyleWarning(fmt.Sprintf("missed x%d", r.MissedStreak))
		}

		name := r.MerchantName
		if len(name) > 24 {
			name = name[:21] + "..."
		}

		row := fmt.Sprintf("%-14s %-24s %-10s %10.2f %-12s %s",
			r.ID, name, r.Frequency, r.ExpectedAmount,
			r.NextExpectedDate.Format("2006-01-02"), status)
		fmt.Println(cli.TableCellStyle.Render(row))
	}

	return nil
}

func patternsRemindersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reminders <pattern-id>",
		Short: "Toggle upcoming reminders for one pattern",
		Args:  cobra.ExactArgs(1),
		RunE:  runPatternsReminders,
	}

	cmd.Flags().Bool("enable", false, "Enable reminders")
	cmd.Flags().Bool("disable", false, "Disable reminders")

	return cmd
}

func runPatternsReminders(cmd *cobra.Command, args []string) error {
	enable, _ := cmd.Flags().GetBool("enable")
	disable, _ := cmd.Flags().GetBool("disable")
	if enable == disable {
		return fmt.Errorf("specify exactly one of --enable or --disable")
	}

	ctx := cmd.Context()
	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	if err := store.SetReminderEnabled(ctx, args[0], enable); err != nil {
		return fmt.Errorf("failed to update reminder flag: %w", err)
	}

	state := "disabled"
	if enable {
		state = "enabled"
	}
	fmt.Println(cli.FormatSuccess(fmt.Sprintf("Reminders %s for pattern %s", state, args[0])))
	return nil
}
