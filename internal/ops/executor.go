package ops

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"golang.org/x/sync/errgroup"

	"github.com/studio1767/s3smartsync/internal/s3io"
)

// ArchiveRecorder collects move sources that have to be restored from an
// archive storage class before they can be moved.
type ArchiveRecorder interface {
	Record(key, message string)
}

type ExecutorOptions struct {
	// Workers bounds the concurrent actions per category. 1 runs every
	// action in sequence.
	Workers int

	// DryRun reports every action as planned and touches nothing.
	DryRun bool

	Reporter Reporter
	Archive  ArchiveRecorder
	Logger   *slog.Logger
}

const DefaultWorkers = 4

// Executor applies a Plan against the remote client.
type Executor struct {
	client   s3io.Client
	workers  int
	dryRun   bool
	reporter Reporter
	archive  ArchiveRecorder
	logger   *slog.Logger
}

func NewExecutor(client s3io.Client, opts ExecutorOptions) *Executor {
	ex := &Executor{
		client:   client,
		workers:  opts.Workers,
		dryRun:   opts.DryRun,
		reporter: opts.Reporter,
		archive:  opts.Archive,
		logger:   opts.Logger,
	}
	if ex.workers < 1 {
		ex.workers = DefaultWorkers
	}
	if ex.reporter == nil {
		ex.reporter = ReporterFunc(func(Event) {})
	}
	if ex.logger == nil {
		ex.logger = slog.Default()
	}
	return ex
}

// Result records what actually happened to each action of a plan.
type Result struct {
	mu sync.Mutex

	DryRun bool

	Moved         []Move
	ArchivedMoves []Move
	FailedMoves   []Move

	Deleted       []string
	FailedDeletes []string

	Uploaded      []Upload
	FailedUploads []Upload
	BytesSent     int64
}

func (r *Result) Failures() int {
	return len(r.FailedMoves) + len(r.FailedDeletes) + len(r.FailedUploads)
}

// UnsettledPaths are the local paths whose remote state is not known to
// match the file: destinations of moves that didn't happen and uploads
// that failed.
func (r *Result) UnsettledPaths() mapset.Set[string] {
	paths := mapset.NewThreadUnsafeSet[string]()
	for _, mv := range r.FailedMoves {
		paths.Add(mv.To)
	}
	for _, mv := range r.ArchivedMoves {
		paths.Add(mv.To)
	}
	for _, up := range r.FailedUploads {
		paths.Add(up.Key)
	}
	return paths
}

// RetainedKeys are index paths that must survive pruning even though no
// local file has them any more, so the next run tries again: sources of
// moves that didn't happen and deletes the store didn't confirm.
func (r *Result) RetainedKeys() mapset.Set[string] {
	keys := mapset.NewThreadUnsafeSet[string]()
	for _, mv := range r.FailedMoves {
		keys.Add(mv.From)
	}
	for _, mv := range r.ArchivedMoves {
		keys.Add(mv.From)
	}
	keys.Append(r.FailedDeletes...)
	return keys
}

// Run executes the plan, moves first, then deletes, then uploads. A
// failed action never stops the others; everything is reported and
// collected in the result.
func (ex *Executor) Run(ctx context.Context, plan *Plan) *Result {
	res := &Result{DryRun: ex.dryRun}

	if ex.dryRun {
		ex.planned(plan)
		return res
	}

	ex.runMoves(ctx, plan.Moves, res)
	ex.runDeletes(ctx, plan.Deletes, res)
	ex.runUploads(ctx, plan.Uploads, res)

	return res
}

func (ex *Executor) planned(plan *Plan) {
	for _, mv := range plan.Moves {
		ex.reporter.Report(Event{Category: CategoryMove, Key: mv.To, Source: mv.From, Outcome: OutcomePlanned})
	}
	for _, key := range plan.Deletes {
		ex.reporter.Report(Event{Category: CategoryDelete, Key: key, Outcome: OutcomePlanned})
	}
	for _, up := range plan.Uploads {
		ex.reporter.Report(Event{Category: CategoryUpload, Key: up.Key, Outcome: OutcomePlanned, Bytes: up.Size})
	}
}

func (ex *Executor) group(ctx context.Context) (*errgroup.Group, context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ex.workers)
	return g, gctx
}

func (ex *Executor) runMoves(ctx context.Context, moves []Move, res *Result) {
	g, gctx := ex.group(ctx)
	for _, mv := range moves {
		mv := mv
		g.Go(func() error {
			ex.move(gctx, mv, res)
			return nil
		})
	}
	g.Wait()
}

func (ex *Executor) move(ctx context.Context, mv Move, res *Result) {
	err := ex.client.Move(ctx, mv.From, mv.To)

	ev := Event{Category: CategoryMove, Key: mv.To, Source: mv.From, Err: err}

	res.mu.Lock()
	switch {
	case err == nil:
		ev.Outcome = OutcomeSucceeded
		res.Moved = append(res.Moved, mv)
	case s3io.IsRequiresRestore(err):
		ev.Outcome = OutcomeArchived
		res.ArchivedMoves = append(res.ArchivedMoves, mv)
	default:
		ev.Outcome = OutcomeFailed
		res.FailedMoves = append(res.FailedMoves, mv)
	}
	res.mu.Unlock()

	if ev.Outcome == OutcomeArchived && ex.archive != nil {
		ex.archive.Record(mv.From, err.Error())
	}

	ex.reporter.Report(ev)
}

func (ex *Executor) runDeletes(ctx context.Context, keys []string, res *Result) {
	size := ex.client.MaxDeleteBatch()
	if size < 1 {
		size = 1
	}

	g, gctx := ex.group(ctx)
	for start := 0; start < len(keys); start += size {
		chunk := keys[start:min(start+size, len(keys))]
		g.Go(func() error {
			ex.delete(gctx, chunk, res)
			return nil
		})
	}
	g.Wait()
}

func (ex *Executor) delete(ctx context.Context, keys []string, res *Result) {
	deleted, err := ex.client.DeleteBatch(ctx, keys)

	confirmed := mapset.NewThreadUnsafeSet(deleted...)
	if err == nil && confirmed.Cardinality() < len(keys) {
		err = errors.New("delete not confirmed")
	}

	for _, key := range keys {
		ev := Event{Category: CategoryDelete, Key: key}

		res.mu.Lock()
		if confirmed.Contains(key) {
			ev.Outcome = OutcomeSucceeded
			res.Deleted = append(res.Deleted, key)
		} else {
			ev.Outcome = OutcomeFailed
			ev.Err = err
			res.FailedDeletes = append(res.FailedDeletes, key)
		}
		res.mu.Unlock()

		ex.reporter.Report(ev)
	}
}

func (ex *Executor) runUploads(ctx context.Context, uploads []Upload, res *Result) {
	g, gctx := ex.group(ctx)
	for _, up := range uploads {
		up := up
		g.Go(func() error {
			ex.upload(gctx, up, res)
			return nil
		})
	}
	g.Wait()
}

func (ex *Executor) upload(ctx context.Context, up Upload, res *Result) {
	nbytes, err := ex.client.Upload(ctx, up.LocalPath, up.Key)
	if err != nil {
		err = fmt.Errorf("failed to upload %s: %w", up.Key, err)
	}

	ev := Event{Category: CategoryUpload, Key: up.Key, Bytes: nbytes, Err: err}

	res.mu.Lock()
	if err == nil {
		ev.Outcome = OutcomeSucceeded
		res.Uploaded = append(res.Uploaded, up)
		res.BytesSent += nbytes
	} else {
		ev.Outcome = OutcomeFailed
		res.FailedUploads = append(res.FailedUploads, up)
	}
	res.mu.Unlock()

	ex.reporter.Report(ev)
}
