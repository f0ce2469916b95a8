package archive

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/studio1767/s3smartsync/internal/s3io"
)

// Restorer requests and polls restores for the keys in a Tracker's
// recovery log. Each key moves through
//
//	NotStarted -> InProgress -> Completed
//
// as observed by polling; an Error or Unknown poll is simply asked again
// next time.
type Restorer struct {
	client  s3io.Client
	tracker *Tracker
	workers int
	logger  *slog.Logger
}

func NewRestorer(client s3io.Client, tracker *Tracker, workers int, logger *slog.Logger) *Restorer {
	if workers < 1 {
		workers = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Restorer{
		client:  client,
		tracker: tracker,
		workers: workers,
		logger:  logger,
	}
}

type RequestResult struct {
	Key     string
	Request s3io.RestoreRequest
	Err     error
}

// Request asks for a restore of every logged key. Keys no longer in the
// bucket are not requested and come back as failed with
// *s3io.ErrNoSuchObject. Per-key failures are in the results; the error is
// only for an unreadable log.
func (r *Restorer) Request(ctx context.Context, tier s3io.RestoreTier, days int32) ([]RequestResult, error) {
	keys, err := r.tracker.Load()
	if err != nil {
		return nil, err
	}

	results := make([]RequestResult, len(keys))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i, key := range keys {
		i, key := i, key
		g.Go(func() error {
			req, err := r.request(gctx, key, tier, days)
			results[i] = RequestResult{Key: key, Request: req, Err: err}

			if err != nil {
				r.logger.Error("restore request", "key", key, "error", err)
			} else {
				r.logger.Info("restore request", "key", key, "tier", tier, "days", days, "result", req)
			}
			return nil
		})
	}
	g.Wait()

	return results, nil
}

func (r *Restorer) request(ctx context.Context, key string, tier s3io.RestoreTier, days int32) (s3io.RestoreRequest, error) {
	exists, err := r.client.Exists(ctx, key)
	if err != nil {
		return s3io.RestoreFailed, err
	}
	if !exists {
		return s3io.RestoreFailed, &s3io.ErrNoSuchObject{Key: key}
	}
	return r.client.RequestRestore(ctx, key, tier, days)
}

// StatusReport is the outcome of one poll over the recovery log.
type StatusReport struct {
	Infos   []*s3io.RestoreInfo
	Counts  map[s3io.RestoreState]int
	Cleared bool
}

func (rep *StatusReport) AllCompleted() bool {
	return len(rep.Infos) > 0 && rep.Counts[s3io.RestoreCompleted] == len(rep.Infos)
}

// Check polls the restore state of every logged key. When all of them
// have completed the recovery log is cleared, since a sync can now move
// them.
func (r *Restorer) Check(ctx context.Context) (*StatusReport, error) {
	keys, err := r.tracker.Load()
	if err != nil {
		return nil, err
	}

	report := &StatusReport{
		Infos:  make([]*s3io.RestoreInfo, 0, len(keys)),
		Counts: make(map[s3io.RestoreState]int),
	}
	if len(keys) == 0 {
		return report, nil
	}

	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for _, key := range keys {
		key := key
		g.Go(func() error {
			info, err := r.client.RestoreStatus(gctx, key)
			if info == nil {
				info = &s3io.RestoreInfo{Key: key, State: s3io.RestoreError, Err: err}
			}
			if err != nil {
				r.logger.Warn("restore status", "key", key, "error", err)
			}

			mu.Lock()
			report.Infos = append(report.Infos, info)
			report.Counts[info.State]++
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	sort.Slice(report.Infos, func(i, j int) bool {
		return report.Infos[i].Key < report.Infos[j].Key
	})

	if report.AllCompleted() {
		if err := r.tracker.Clear(); err != nil {
			return report, err
		}
		report.Cleared = true
		r.logger.Info("all restores completed, recovery log cleared", "keys", len(keys))
	}

	return report, nil
}
