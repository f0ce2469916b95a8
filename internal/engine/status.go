package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/studio1767/s3smartsync/internal/config"
	"github.com/studio1767/s3smartsync/internal/index"
	"github.com/studio1767/s3smartsync/internal/ops"
)

// Status describes local changes since the last sync. Renamed entries read
// "old -> new".
type Status struct {
	NeverSynced bool

	New       []string
	Renamed   []string
	Modified  []string
	Deleted   []string
	Unchanged int
}

func (st *Status) Changes() int {
	return len(st.New) + len(st.Renamed) + len(st.Modified) + len(st.Deleted)
}

// CheckStatus compares the tree with its index without touching the
// bucket. It never creates an index.
func CheckStatus(ctx context.Context, root string, excludes []string, logger *slog.Logger) (*Status, error) {
	if logger == nil {
		logger = slog.Default()
	}

	snap, err := ops.OpenSnapshot(root, excludes, logger)
	if err != nil {
		return nil, err
	}

	current, err := snap.ByID(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", snap.Root(), err)
	}

	status := &Status{}

	previous := map[ops.FileID]*index.Record{}
	path := config.IndexPath(snap.Root())
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		status.NeverSynced = true
	} else {
		ix, err := index.Open(path, logger)
		if err != nil {
			return nil, err
		}
		defer ix.Close()

		previous, err = ix.GetAll()
		if err != nil {
			return nil, fmt.Errorf("read index: %w", err)
		}
	}

	for id, file := range current {
		prev, found := previous[id]
		switch {
		case !found:
			status.New = append(status.New, file.RelPath)
		case prev.Path != file.RelPath:
			status.Renamed = append(status.Renamed, prev.Path+" -> "+file.RelPath)
		case file.Size != prev.Size || file.ModTime > prev.ModTime:
			status.Modified = append(status.Modified, file.RelPath)
		default:
			status.Unchanged++
		}
	}
	for id, prev := range previous {
		if _, ok := current[id]; !ok {
			status.Deleted = append(status.Deleted, prev.Path)
		}
	}

	sort.Strings(status.New)
	sort.Strings(status.Renamed)
	sort.Strings(status.Modified)
	sort.Strings(status.Deleted)

	return status, nil
}
