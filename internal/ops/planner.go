package ops

import (
	"sort"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/studio1767/s3smartsync/internal/index"
	"github.com/studio1767/s3smartsync/internal/s3io"
)

type Move struct {
	From string
	To   string
}

type Upload struct {
	LocalPath string
	Key       string
	Size      int64
}

// Plan is the set of remote actions that brings the bucket in line with
// the local tree. The lists are disjoint: a key appears in at most one
// action. They run in field order: moves, deletes, uploads.
type Plan struct {
	Moves   []Move
	Deletes []string
	Uploads []Upload

	// Unchanged counts files that need nothing.
	Unchanged int
}

func (p *Plan) Len() int {
	return len(p.Moves) + len(p.Deletes) + len(p.Uploads)
}

func (p *Plan) Empty() bool {
	return p.Len() == 0
}

// UploadBytes is the local size of everything queued for upload.
func (p *Plan) UploadBytes() int64 {
	var total int64
	for _, up := range p.Uploads {
		total += up.Size
	}
	return total
}

type Planner struct {
	deleteOrphans bool
}

func NewPlanner(deleteOrphans bool) *Planner {
	return &Planner{deleteOrphans: deleteOrphans}
}

// Plan is the core of the system. It compares the current scan with the
// index of the last sync and the remote listing, keyed by file identity
// rather than by path or content:
//
//   - a known identity at a new path is a rename, and becomes a server side
//     move when the old key is still in the bucket, otherwise an upload
//   - a known identity at the same path is uploaded when its size changed or
//     its modification time moved forward
//   - an unknown identity is uploaded unless its key already exists
//
// Every key touched is marked accounted. With delete-orphans, remote keys
// nobody accounted for are deleted.
//
// Files are visited in path order so the same inputs always give the
// same plan.
func (pl *Planner) Plan(current map[FileID]*LocalFile, previous map[FileID]*index.Record, remote map[string]*s3io.Object) *Plan {
	plan := &Plan{}

	files := make([]*LocalFile, 0, len(current))
	currentPaths := mapset.NewThreadUnsafeSetWithSize[string](len(current))
	for _, file := range current {
		files = append(files, file)
		currentPaths.Add(file.RelPath)
	}
	sort.Slice(files, func(i, j int) bool {
		return files[i].RelPath < files[j].RelPath
	})

	accounted := mapset.NewThreadUnsafeSet[string]()

	for _, file := range files {
		key := file.RelPath
		prev, found := previous[file.ID]

		switch {
		case found && prev.Path != key:
			if pl.canMove(prev.Path, remote, currentPaths, accounted) {
				plan.Moves = append(plan.Moves, Move{From: prev.Path, To: key})
				accounted.Append(prev.Path, key)
			} else {
				plan.Uploads = append(plan.Uploads, uploadFor(file))
				accounted.Add(key)
			}

		case found:
			if file.Size != prev.Size || file.ModTime > prev.ModTime {
				plan.Uploads = append(plan.Uploads, uploadFor(file))
			} else {
				plan.Unchanged++
			}
			accounted.Add(key)

		default:
			if _, ok := remote[key]; !ok {
				plan.Uploads = append(plan.Uploads, uploadFor(file))
			} else {
				plan.Unchanged++
			}
			accounted.Add(key)
		}
	}

	if pl.deleteOrphans {
		for key := range remote {
			if !accounted.Contains(key) {
				plan.Deletes = append(plan.Deletes, key)
			}
		}
		sort.Strings(plan.Deletes)
	}

	return plan
}

// canMove reports whether the old key can be the source of a move. It has
// to exist remotely, and must not be claimed by another action or be the
// current path of another file, which would make the move race with the
// other file's action.
func (pl *Planner) canMove(from string, remote map[string]*s3io.Object, currentPaths, accounted mapset.Set[string]) bool {
	if _, ok := remote[from]; !ok {
		return false
	}
	return !accounted.Contains(from) && !currentPaths.Contains(from)
}

func uploadFor(file *LocalFile) Upload {
	return Upload{
		LocalPath: file.AbsPath,
		Key:       file.RelPath,
		Size:      file.Size,
	}
}
