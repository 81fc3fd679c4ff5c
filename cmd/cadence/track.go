package main

import (
	"fmt"

	"github.com/calloway/cadence/internal/cli"
	"github.com/calloway/cadence/internal/tracker"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func trackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "track",
		Short: "Run the missed-occurrence check over active patterns",
		Long: `Walk every active recurring pattern: confirm occurrences that posted,
count misses, deactivate patterns missed twice in a row, and queue upcoming
and insufficient-funds reminders.

Intended to run daily from cron or a systemd timer.`,
		RunE: runTrack,
	}

	cmd.Flags().String("as-of", "", "Reference date (YYYY-MM-DD, default today)")
	cmd.Flags().Int("max-records", 0, "Cap records processed this run (0 = unlimited)")

	return cmd
}

func runTrack(cmd *cobra.Command, _ []string) error {
	maxRecords, _ := cmd.Flags().GetInt("max-records")

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

	cfg := tracker.DefaultConfig()
	cfg.MaxRecords = maxRecords
	if viper.IsSet("tracker.grace_window_days") {
		cfg.GraceWindowDays = viper.GetInt("tracker.grace_window_days")
	}
	if viper.IsSet("tracker.upcoming_window_days") {
		cfg.UpcomingWindowDays = viper.GetInt("tracker.upcoming_window_days")
	}

	// Storage fills every collaborator role for the local setup.
	job := tracker.NewTracker(cfg, store, store, store, store, store)

	summary, err := job.Run(ctx, now)
	if err != nil {
		return fmt.Errorf("tracker run failed: %w", err)
	}

	fmt.Println(cli.FormatSuccess(fmt.Sprintf(
		"Processed %d records: %d deactivated, %d notifications, %d errors",
		summary.Processed, summary.Deactivated, summary.NotificationsSent, summary.Errors)))

	if summary.Errors > 0 {
		fmt.Println(cli.FormatWarning("Some records failed; see the log for details"))
	}

	return nil
}
