// Package engine runs a complete sync pass over one tree: scan, plan,
// execute, then record what happened in the index and recovery log.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/studio1767/s3smartsync/internal/archive"
	"github.com/studio1767/s3smartsync/internal/config"
	"github.com/studio1767/s3smartsync/internal/index"
	"github.com/studio1767/s3smartsync/internal/ops"
	"github.com/studio1767/s3smartsync/internal/s3io"
)

type Options struct {
	Root          string
	Excludes      []string
	DeleteOrphans bool
	DryRun        bool
	Workers       int

	Reporter ops.Reporter
	Logger   *slog.Logger
}

type Summary struct {
	Scanned int
	Plan    *ops.Plan
	Result  *ops.Result

	// InSync is set when the plan was empty.
	InSync bool

	// Archived are the move sources added to the recovery log.
	Archived []archive.Entry

	Indexed int
	Pruned  []string
}

// Sync reconciles the bucket behind client with the tree at opts.Root.
// Problems with the tree, the index or the listing abort the pass before
// anything is changed; failures of individual actions are reported and
// left for the next run.
func Sync(ctx context.Context, client s3io.Client, opts Options) (*Summary, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	snap, err := ops.OpenSnapshot(opts.Root, opts.Excludes, logger)
	if err != nil {
		return nil, err
	}
	root := snap.Root()

	// load what we knew last time
	ix, previous, err := loadIndex(root, opts.DryRun, logger)
	if err != nil {
		return nil, err
	}
	if ix != nil {
		defer ix.Close()
	}

	// and what is there now
	current, err := snap.ByID(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}

	remote, err := client.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list bucket: %w", err)
	}

	logger.Info("scanned", "root", root, "local", len(current), "indexed", len(previous), "remote", len(remote))

	plan := ops.NewPlanner(opts.DeleteOrphans).Plan(current, previous, remote)
	logger.Info("planned",
		"moves", len(plan.Moves), "deletes", len(plan.Deletes), "uploads", len(plan.Uploads), "unchanged", plan.Unchanged)

	summary := &Summary{
		Scanned: len(current),
		Plan:    plan,
		InSync:  plan.Empty(),
	}

	tracker := archive.NewTracker(config.RecoveryLogPath(root))
	ex := ops.NewExecutor(client, ops.ExecutorOptions{
		Workers:  opts.Workers,
		DryRun:   opts.DryRun,
		Reporter: opts.Reporter,
		Archive:  tracker,
		Logger:   logger,
	})
	summary.Result = ex.Run(ctx, plan)

	if opts.DryRun {
		return summary, nil
	}

	if err := updateIndex(ix, current, summary); err != nil {
		return summary, err
	}

	if tracker.HasPending() {
		summary.Archived = tracker.Pending()
		if err := tracker.Save(); err != nil {
			return summary, err
		}
		logger.Warn("objects need a restore before they can be moved",
			"count", len(summary.Archived), "log", tracker.Path())
	}

	return summary, nil
}

// loadIndex opens the index and reads its records. A dry run never creates
// an index that isn't there yet.
func loadIndex(root string, dryRun bool, logger *slog.Logger) (*index.Index, map[ops.FileID]*index.Record, error) {
	path := config.IndexPath(root)

	if dryRun {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return nil, map[ops.FileID]*index.Record{}, nil
		}
	}

	ix, err := index.Open(path, logger)
	if err != nil {
		return nil, nil, err
	}

	previous, err := ix.GetAll()
	if err != nil {
		ix.Close()
		return nil, nil, fmt.Errorf("read index: %w", err)
	}

	return ix, previous, nil
}

// updateIndex records the outcome: every file whose remote copy now matches
// is upserted, and records are pruned except for current paths and keys
// whose remote action didn't happen, so the next run sees them again.
func updateIndex(ix *index.Index, current map[ops.FileID]*ops.LocalFile, summary *Summary) error {
	res := summary.Result
	unsettled := res.UnsettledPaths()
	synced := time.Now().Unix()

	keep := res.RetainedKeys()
	records := make([]*index.Record, 0, len(current))
	for _, file := range current {
		keep.Add(file.RelPath)
		if unsettled.Contains(file.RelPath) {
			continue
		}
		records = append(records, file.Record(synced))
	}

	if err := ix.UpsertBatch(records); err != nil {
		return fmt.Errorf("update index: %w", err)
	}
	summary.Indexed = len(records)

	pruned, err := ix.DeleteMissing(keep)
	if err != nil {
		return fmt.Errorf("prune index: %w", err)
	}
	summary.Pruned = pruned

	return nil
}
