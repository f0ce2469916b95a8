package ops

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
)

// Snapshot produces point-in-time views of a local directory tree.
type Snapshot struct {
	root     string
	excludes []string
	logger   *slog.Logger
}

// OpenSnapshot checks that root is a readable directory and that the
// exclude patterns parse.
func OpenSnapshot(root string, excludes []string, logger *slog.Logger) (*Snapshot, error) {
	if logger == nil {
		logger = slog.Default()
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, &ErrNotDirectory{path: root}
	}

	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return nil, &ErrNotDirectory{path: root}
	}
	if _, err := os.ReadDir(abs); err != nil {
		return nil, &ErrNotDirectory{path: root}
	}

	if err := ValidatePatterns(excludes); err != nil {
		return nil, err
	}

	return &Snapshot{
		root:     abs,
		excludes: excludes,
		logger:   logger,
	}, nil
}

func (s *Snapshot) Root() string {
	return s.root
}

// Scan streams the files under the root. The channel closes when the walk
// finishes or ctx is done.
func (s *Snapshot) Scan(ctx context.Context) <-chan *LocalFile {
	files := NewFsScanner(ctx, s.root)
	if len(s.excludes) > 0 {
		files = NewExcludeFilter(ctx, files, s.excludes)
	}
	return files
}

// ByID collects a scan keyed by identity. Hard links share an identity;
// only the first path in sort order is kept.
func (s *Snapshot) ByID(ctx context.Context) (map[FileID]*LocalFile, error) {
	byPath, err := s.ByPath(ctx)
	if err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(byPath))
	for path := range byPath {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	files := make(map[FileID]*LocalFile, len(byPath))
	for _, path := range paths {
		file := byPath[path]
		if kept, ok := files[file.ID]; ok {
			s.logger.Warn("files share an identity, tracking one", "kept", kept.RelPath, "skipped", file.RelPath)
			continue
		}
		files[file.ID] = file
	}

	return files, nil
}

// ByPath collects a scan keyed by relative path.
func (s *Snapshot) ByPath(ctx context.Context) (map[string]*LocalFile, error) {
	files := make(map[string]*LocalFile)
	for file := range s.Scan(ctx) {
		files[file.RelPath] = file
	}

	// a cancelled walk is incomplete, don't pretend otherwise
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return files, nil
}
