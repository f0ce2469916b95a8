// Package index persists the last successfully synced state of each local
// file, keyed by path and looked up by file identity.
package index

import (
	"fmt"
	"log/slog"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/jmoiron/sqlx"
)

// FileID is the filesystem identity of a file: the inode on unix, the
// file index on windows. It survives renames within a filesystem.
type FileID uint64

const schema = `
CREATE TABLE IF NOT EXISTS files (
    path TEXT PRIMARY KEY,
    identity INTEGER NOT NULL,
    size INTEGER NOT NULL,
    mtime INTEGER NOT NULL,
    synced INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_files_identity ON files(identity);
`

// Record is what was known about a file the last time it was synced.
// ModTime is in unix nanoseconds, Synced in unix seconds.
type Record struct {
	Path    string
	ID      FileID
	Size    int64
	ModTime int64
	Synced  int64
}

// sqlite integers are signed, so identities are stored bit-for-bit as int64
type dbRecord struct {
	Path     string `db:"path"`
	Identity int64  `db:"identity"`
	Size     int64  `db:"size"`
	ModTime  int64  `db:"mtime"`
	Synced   int64  `db:"synced"`
}

type Index struct {
	db     *sqlx.DB
	path   string
	logger *slog.Logger
}

// Open opens the index at path, creating the database and schema when they
// don't exist yet.
func Open(path string, logger *slog.Logger) (*Index, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := openSqlite(path)
	if err != nil {
		return nil, &ErrIndexUnavailable{path: path, err: err}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, &ErrIndexUnavailable{path: path, err: fmt.Errorf("initialize schema: %w", err)}
	}

	return &Index{
		db:     db,
		path:   path,
		logger: logger,
	}, nil
}

func (ix *Index) Close() error {
	return ix.db.Close()
}

func (ix *Index) Path() string {
	return ix.path
}

// GetAll returns every record keyed by identity. Hard links and recycled
// identities can put the same identity on several paths; the first path
// in sort order wins.
func (ix *Index) GetAll() (map[FileID]*Record, error) {
	var rows []dbRecord
	err := ix.db.Select(&rows, "SELECT path, identity, size, mtime, synced FROM files ORDER BY path")
	if err != nil {
		return nil, fmt.Errorf("failed to query index: %w", err)
	}

	records := make(map[FileID]*Record, len(rows))
	for _, row := range rows {
		id := FileID(uint64(row.Identity))
		if first, ok := records[id]; ok {
			ix.logger.Debug("duplicate identity in index", "identity", id, "kept", first.Path, "ignored", row.Path)
			continue
		}
		records[id] = &Record{
			Path:    row.Path,
			ID:      id,
			Size:    row.Size,
			ModTime: row.ModTime,
			Synced:  row.Synced,
		}
	}

	return records, nil
}

// UpsertBatch inserts or replaces the records, keyed by path, in one
// transaction.
func (ix *Index) UpsertBatch(records []*Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := ix.db.Beginx()
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareNamed(`INSERT OR REPLACE INTO files (path, identity, size, mtime, synced)
	          VALUES (:path, :identity, :size, :mtime, :synced)`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		row := dbRecord{
			Path:     rec.Path,
			Identity: int64(uint64(rec.ID)),
			Size:     rec.Size,
			ModTime:  rec.ModTime,
			Synced:   rec.Synced,
		}
		if _, err := stmt.Exec(row); err != nil {
			return fmt.Errorf("upsert %s: %w", rec.Path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert: %w", err)
	}

	return nil
}

// DeleteMissing removes every record whose path is not in keep and
// returns the removed paths.
func (ix *Index) DeleteMissing(keep mapset.Set[string]) ([]string, error) {
	tx, err := ix.db.Beginx()
	if err != nil {
		return nil, fmt.Errorf("begin prune: %w", err)
	}
	defer tx.Rollback()

	var paths []string
	if err := tx.Select(&paths, "SELECT path FROM files ORDER BY path"); err != nil {
		return nil, fmt.Errorf("failed to query paths: %w", err)
	}

	var removed []string
	for _, path := range paths {
		if keep.Contains(path) {
			continue
		}
		if _, err := tx.Exec("DELETE FROM files WHERE path = ?", path); err != nil {
			return nil, fmt.Errorf("delete %s: %w", path, err)
		}
		removed = append(removed, path)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit prune: %w", err)
	}

	return removed, nil
}

// Count returns the number of tracked paths.
func (ix *Index) Count() (int, error) {
	var count int
	if err := ix.db.Get(&count, "SELECT COUNT(*) FROM files"); err != nil {
		return 0, fmt.Errorf("failed to count index: %w", err)
	}
	return count, nil
}
