package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/studio1767/s3smartsync/internal/archive"
	"github.com/studio1767/s3smartsync/internal/config"
	"github.com/studio1767/s3smartsync/internal/s3io"
)

var restoreCmd = &cobra.Command{
	Use:   "restore <source> <bucket>",
	Short: "Request restores for objects logged as needing one",
	Args:  cobra.ExactArgs(2),
	RunE:  runRestore,
}

var restoreStatusCmd = &cobra.Command{
	Use:   "restore-status <source> <bucket>",
	Short: "Check on requested restores, clearing the log once all have completed",
	Args:  cobra.ExactArgs(2),
	RunE:  runRestoreStatus,
}

func init() {
	addS3Flags(restoreCmd)
	restoreCmd.Flags().StringP("tier", "t", string(s3io.TierBulk), "retrieval tier: expedited, standard or bulk")
	restoreCmd.Flags().Int("days", s3io.DefaultRestoreDays, "days the restored copy stays available")

	addS3Flags(restoreStatusCmd)
}

// newRestorer sets up the logger, client and restorer shared by the
// restore commands.
func newRestorer(ctx context.Context, cmd *cobra.Command, args []string) (*archive.Restorer, *archive.Tracker, *config.Config, func(), error) {
	cfg := configFromViper()
	cfg.Source = args[0]
	cfg.Bucket = args[1]
	if err := cfg.Validate(); err != nil {
		return nil, nil, nil, nil, err
	}
	cmd.SilenceUsage = true

	root, err := filepath.Abs(cfg.Source)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	logger, closer, err := newLogger(cfg, root, cmd.Name())
	if err != nil {
		return nil, nil, nil, nil, err
	}

	client, err := s3io.NewClient(ctx, cfg.S3Options())
	if err != nil {
		closer.Close()
		return nil, nil, nil, nil, err
	}

	tracker := archive.NewTracker(config.RecoveryLogPath(root))
	restorer := archive.NewRestorer(client, tracker, cfg.Workers, logger)

	return restorer, tracker, cfg, func() { closer.Close() }, nil
}

func runRestore(cmd *cobra.Command, args []string) error {
	restorer, tracker, cfg, done, err := newRestorer(cmd.Context(), cmd, args)
	if err != nil {
		return err
	}
	defer done()

	tier := cfg.RestoreTier()
	results, err := restorer.Request(cmd.Context(), tier, int32(cfg.Days))
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Printf("Nothing to restore: %s is empty or missing\n", tracker.Path())
		return nil
	}

	counts := make(map[s3io.RestoreRequest]int)
	failed := 0
	for _, res := range results {
		if res.Err != nil {
			fmt.Printf("-   failed: %s: %s\n", res.Key, res.Err)
			failed++
			continue
		}
		counts[res.Request]++
		fmt.Printf("- %s: %s\n", res.Request, res.Key)
	}

	fmt.Println()
	fmt.Printf("Restore Summary\n")
	fmt.Printf("    initiated: %d\n", counts[s3io.RestoreInitiated])
	fmt.Printf("  in progress: %d\n", counts[s3io.RestoreAlreadyInProgress])
	fmt.Printf(" not required: %d\n", counts[s3io.RestoreNotRequired])
	fmt.Printf("       failed: %d\n", failed)
	fmt.Println()
	fmt.Printf("Tier %s usually completes in %s; restored copies stay available for %d days.\n",
		tier, tier.ExpectedLatency(), cfg.Days)
	fmt.Printf("Check progress with 'restore-status'.\n")

	if failed > 0 {
		return fmt.Errorf("%d restore requests failed", failed)
	}
	return nil
}

func runRestoreStatus(cmd *cobra.Command, args []string) error {
	restorer, tracker, _, done, err := newRestorer(cmd.Context(), cmd, args)
	if err != nil {
		return err
	}
	defer done()

	report, err := restorer.Check(cmd.Context())
	if err != nil {
		return err
	}
	if len(report.Infos) == 0 {
		fmt.Printf("Nothing pending: %s is empty or missing\n", tracker.Path())
		return nil
	}

	for _, info := range report.Infos {
		line := fmt.Sprintf("- %-11s %s (%s)", info.State, info.Key, info.StorageClass)
		if !info.Expiry.IsZero() {
			line += fmt.Sprintf(" until %s", info.Expiry.Format("2006-01-02 15:04 MST"))
		}
		if info.Err != nil {
			line += fmt.Sprintf(": %s", info.Err)
		}
		fmt.Println(line)
	}

	fmt.Println()
	fmt.Printf("Restore Status\n")
	fmt.Printf("  not started: %d\n", report.Counts[s3io.RestoreNotStarted])
	fmt.Printf("  in progress: %d\n", report.Counts[s3io.RestoreInProgress])
	fmt.Printf("    completed: %d\n", report.Counts[s3io.RestoreCompleted])
	fmt.Printf("      unknown: %d\n", report.Counts[s3io.RestoreUnknown])
	fmt.Printf("        error: %d\n", report.Counts[s3io.RestoreError])
	fmt.Println()

	if report.Cleared {
		fmt.Printf("All restores completed and the log was cleared. Run sync again to finish the moves.\n")
	}
	slog.Debug("restore status checked", "keys", len(report.Infos), "cleared", report.Cleared)

	return nil
}
