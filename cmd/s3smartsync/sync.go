package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	humanize "github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/studio1767/s3smartsync/internal/config"
	"github.com/studio1767/s3smartsync/internal/engine"
	"github.com/studio1767/s3smartsync/internal/ops"
	"github.com/studio1767/s3smartsync/internal/s3io"
	"github.com/studio1767/s3smartsync/internal/target"
)

var syncCmd = &cobra.Command{
	Use:   "sync <source> <bucket> | sync --targets <file> [--label <label>]",
	Short: "Sync a directory to a bucket",
	RunE:  runSync,
}

func init() {
	addS3Flags(syncCmd)
	syncCmd.Flags().BoolP("delete", "d", false, "delete remote objects with no local file")
	syncCmd.Flags().BoolP("dry-run", "n", false, "show what would be done without doing it")
	syncCmd.Flags().IntP("workers", "w", ops.DefaultWorkers, "concurrent actions per category")
	syncCmd.Flags().StringSlice("exclude", nil, "doublestar pattern of files to skip (repeatable)")
	syncCmd.Flags().BoolP("compress", "c", false, "gzip files before uploading")
	syncCmd.Flags().BoolP("encrypt", "e", false, "encrypt files with age before uploading")
	syncCmd.Flags().StringP("recipients", "r", "", "age recipients file for encryption")
	syncCmd.Flags().String("targets", "", "yaml file listing several targets to sync")
	syncCmd.Flags().String("label", "", "only sync the target with this label")
}

func runSync(cmd *cobra.Command, args []string) error {
	targetsFile, _ := cmd.Flags().GetString("targets")
	if targetsFile != "" {
		if len(args) != 0 {
			return errors.New("no positional arguments allowed with --targets")
		}
		label, _ := cmd.Flags().GetString("label")
		return syncTargets(cmd.Context(), targetsFile, label)
	}

	if len(args) != 2 {
		return fmt.Errorf("expected <source> <bucket>, got %d arguments", len(args))
	}

	cfg := configFromViper()
	cfg.Source = args[0]
	cfg.Bucket = args[1]

	cmd.SilenceUsage = true
	return syncOne(cmd.Context(), cfg)
}

func syncTargets(ctx context.Context, path, label string) error {
	file, err := target.Load(path)
	if err != nil {
		return err
	}
	targets, err := file.Select(label)
	if err != nil {
		return err
	}

	failed := 0
	for _, t := range targets {
		fmt.Printf("--------------------------------------------------------------\n")
		fmt.Printf("Target %s: %s -> s3://%s/%s\n", t.Label, t.Path, t.Bucket, t.Prefix)

		cfg := configFromViper()
		cfg.Source = t.Path
		cfg.Bucket = t.Bucket
		cfg.Prefix = t.Prefix
		cfg.DeleteOrphans = cfg.DeleteOrphans || t.Delete
		cfg.Excludes = append(cfg.Excludes, t.Excludes...)

		if err := syncOne(ctx, cfg); err != nil {
			fmt.Printf("Error: %s: %s\n", t.Label, err)
			failed++
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d targets failed", failed, len(targets))
	}
	return nil
}

func syncOne(ctx context.Context, cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	root, err := filepath.Abs(cfg.Source)
	if err != nil {
		return err
	}

	// a dry run leaves no trace in the tree
	logRoot := root
	if cfg.DryRun {
		logRoot = ""
	}
	logger, closer, err := newLogger(cfg, logRoot, "sync")
	if err != nil {
		return err
	}
	defer closer.Close()

	client, err := s3io.NewClient(ctx, cfg.S3Options())
	if err != nil {
		return err
	}

	tally := ops.NewTally()
	summary, err := engine.Sync(ctx, client, engine.Options{
		Root:          root,
		Excludes:      cfg.Excludes,
		DeleteOrphans: cfg.DeleteOrphans,
		DryRun:        cfg.DryRun,
		Workers:       cfg.Workers,
		Reporter:      ops.Reporters(&ops.LogReporter{Logger: logger}, tally),
		Logger:        logger,
	})
	if summary != nil {
		printSyncSummary(summary, tally)
	}
	if err != nil {
		return err
	}

	if n := summary.Result.Failures(); n > 0 {
		logger.Error("sync finished with failures", "failed", n)
		return fmt.Errorf("%d actions failed", n)
	}

	return nil
}

func printSyncSummary(summary *engine.Summary, tally *ops.Tally) {
	fmt.Println()

	if summary.InSync {
		fmt.Printf("Already in sync: %d files, nothing to do\n", summary.Scanned)
		fmt.Println()
		return
	}

	if summary.Result.DryRun {
		fmt.Printf("Dry Run\n")
		fmt.Printf("        moves: %d\n", len(summary.Plan.Moves))
		fmt.Printf("      deletes: %d\n", len(summary.Plan.Deletes))
		fmt.Printf("      uploads: %d (%s)\n", len(summary.Plan.Uploads), humanize.Bytes(uint64(summary.Plan.UploadBytes())))
		fmt.Printf("    unchanged: %d\n", summary.Plan.Unchanged)
		fmt.Println()
		return
	}

	fmt.Printf("Sync Summary\n")
	fmt.Printf(" files:\n")
	fmt.Printf("      scanned: %d\n", summary.Scanned)
	fmt.Printf("    unchanged: %d\n", summary.Plan.Unchanged)
	fmt.Printf(" actions:\n")
	fmt.Printf("        moved: %d\n", tally.Count(ops.CategoryMove, ops.OutcomeSucceeded))
	fmt.Printf("     archived: %d\n", tally.Count(ops.CategoryMove, ops.OutcomeArchived))
	fmt.Printf("      deleted: %d\n", tally.Count(ops.CategoryDelete, ops.OutcomeSucceeded))
	fmt.Printf("     uploaded: %d (%s bytes)\n", tally.Count(ops.CategoryUpload, ops.OutcomeSucceeded), humanize.Comma(tally.Bytes()))
	fmt.Printf("       failed: %d\n", tally.Total(ops.OutcomeFailed))
	fmt.Printf(" index:\n")
	fmt.Printf("      updated: %d\n", summary.Indexed)
	fmt.Printf("       pruned: %d\n", len(summary.Pruned))

	if len(summary.Archived) > 0 {
		fmt.Println()
		fmt.Printf("%d objects are in archive storage and need a restore before they can be moved.\n", len(summary.Archived))
		fmt.Printf("Run 'restore' for this source, then sync again once 'restore-status' reports completion.\n")
		for _, entry := range summary.Archived {
			slog.Debug("archived", "key", entry.Key, "message", entry.Message)
		}
	}
	fmt.Println()
}
