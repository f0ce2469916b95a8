package ops

import "github.com/studio1767/s3smartsync/internal/index"

// FileID is the filesystem identity of a file. It is the same type the
// index persists so identities compare directly across runs.
type FileID = index.FileID

// LocalFile is one regular file seen by a scan. RelPath is relative to
// the scan root, uses '/' separators and is NFC normalized; it doubles as
// the file's remote key. ModTime is in unix nanoseconds.
type LocalFile struct {
	RelPath string
	AbsPath string
	ID      FileID
	Size    int64
	ModTime int64
}

// Record converts the file to the index record written after a
// successful sync.
func (lf *LocalFile) Record(synced int64) *index.Record {
	return &index.Record{
		Path:    lf.RelPath,
		ID:      lf.ID,
		Size:    lf.Size,
		ModTime: lf.ModTime,
		Synced:  synced,
	}
}
