package ops_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studio1767/s3smartsync/internal/ops"
	"github.com/studio1767/s3smartsync/internal/s3io/s3iotest"
)

type recordedEvents struct {
	mu     sync.Mutex
	events []ops.Event
}

func (r *recordedEvents) Report(ev ops.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordedEvents) outcomes(c ops.Category) map[string]ops.Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()

	m := make(map[string]ops.Outcome)
	for _, ev := range r.events {
		if ev.Category == c {
			m[ev.Key] = ev.Outcome
		}
	}
	return m
}

type archiveLog struct {
	mu   sync.Mutex
	keys []string
}

func (a *archiveLog) Record(key, message string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.keys = append(a.keys, key)
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestExecutorAppliesPlan(t *testing.T) {
	dir := t.TempDir()
	mem := s3iotest.NewMemory()
	mem.Put("old.txt", []byte("moved content"), "")
	mem.Put("orphan.txt", []byte("x"), "")

	plan := &ops.Plan{
		Moves:   []ops.Move{{From: "old.txt", To: "new.txt"}},
		Deletes: []string{"orphan.txt"},
		Uploads: []ops.Upload{{LocalPath: writeFile(t, dir, "up.txt", "hello"), Key: "up.txt", Size: 5}},
	}

	events := &recordedEvents{}
	tally := ops.NewTally()
	ex := ops.NewExecutor(mem, ops.ExecutorOptions{Workers: 2, Reporter: ops.Reporters(events, tally)})

	res := ex.Run(context.Background(), plan)

	require.Zero(t, res.Failures())
	require.Equal(t, []string{"new.txt", "up.txt"}, mem.Keys())
	require.Equal(t, int64(5), res.BytesSent)

	data, _ := mem.Data("new.txt")
	require.Equal(t, "moved content", string(data))

	require.Equal(t, 1, tally.Count(ops.CategoryMove, ops.OutcomeSucceeded))
	require.Equal(t, 1, tally.Count(ops.CategoryDelete, ops.OutcomeSucceeded))
	require.Equal(t, 1, tally.Count(ops.CategoryUpload, ops.OutcomeSucceeded))
	require.Equal(t, int64(5), tally.Bytes())
	require.Len(t, events.events, 3)
}

func TestExecutorRunsCategoriesInOrder(t *testing.T) {
	dir := t.TempDir()
	mem := s3iotest.NewMemory()
	mem.Put("a", []byte("a"), "")
	mem.Put("b", []byte("b"), "")

	plan := &ops.Plan{
		Moves:   []ops.Move{{From: "a", To: "a2"}},
		Deletes: []string{"b"},
		Uploads: []ops.Upload{{LocalPath: writeFile(t, dir, "c", "c"), Key: "c"}},
	}

	ops.NewExecutor(mem, ops.ExecutorOptions{Workers: 1}).Run(context.Background(), plan)

	require.Equal(t, []string{"move a", "delete b", "upload c"}, mem.Calls())
}

func TestArchivedMoveIsRecorded(t *testing.T) {
	mem := s3iotest.NewMemory()
	mem.Put("cold.bin", []byte("frozen"), "DEEP_ARCHIVE")
	mem.Put("warm.bin", []byte("ok"), "STANDARD")

	archive := &archiveLog{}
	events := &recordedEvents{}
	ex := ops.NewExecutor(mem, ops.ExecutorOptions{Archive: archive, Reporter: events})

	res := ex.Run(context.Background(), &ops.Plan{
		Moves: []ops.Move{
			{From: "cold.bin", To: "moved/cold.bin"},
			{From: "warm.bin", To: "moved/warm.bin"},
		},
	})

	require.Equal(t, []ops.Move{{From: "cold.bin", To: "moved/cold.bin"}}, res.ArchivedMoves)
	require.Equal(t, []ops.Move{{From: "warm.bin", To: "moved/warm.bin"}}, res.Moved)
	require.Empty(t, res.FailedMoves)
	require.Equal(t, []string{"cold.bin"}, archive.keys)

	outcomes := events.outcomes(ops.CategoryMove)
	require.Equal(t, ops.OutcomeArchived, outcomes["moved/cold.bin"])
	require.Equal(t, ops.OutcomeSucceeded, outcomes["moved/warm.bin"])

	require.True(t, res.RetainedKeys().Contains("cold.bin"))
	require.True(t, res.UnsettledPaths().Contains("moved/cold.bin"))
}

func TestFailuresDoNotStopSiblings(t *testing.T) {
	dir := t.TempDir()
	mem := s3iotest.NewMemory()
	mem.Put("d1", nil, "")
	mem.Put("d2", nil, "")
	mem.Fail("upload", "bad", errors.New("network down"))
	mem.Fail("delete", "d2", errors.New("access denied"))

	var uploads []ops.Upload
	for _, name := range []string{"u1", "bad", "u2"} {
		uploads = append(uploads, ops.Upload{LocalPath: writeFile(t, dir, name, name), Key: name})
	}

	res := ops.NewExecutor(mem, ops.ExecutorOptions{Workers: 3}).Run(context.Background(), &ops.Plan{
		Deletes: []string{"d1", "d2"},
		Uploads: uploads,
	})

	require.Equal(t, 2, res.Failures())
	require.Equal(t, []string{"d1"}, res.Deleted)
	require.Equal(t, []string{"d2"}, res.FailedDeletes)
	require.Equal(t, []ops.Upload{uploads[1]}, res.FailedUploads)

	var uploaded []string
	for _, up := range res.Uploaded {
		uploaded = append(uploaded, up.Key)
	}
	sort.Strings(uploaded)
	require.Equal(t, []string{"u1", "u2"}, uploaded)

	require.True(t, res.RetainedKeys().Contains("d2"))
	require.True(t, res.UnsettledPaths().Contains("bad"))
}

func TestDeletesAreChunked(t *testing.T) {
	mem := s3iotest.NewMemory()
	mem.BatchSize = 2

	var keys []string
	for _, k := range []string{"a", "b", "c", "d", "e"} {
		mem.Put(k, nil, "")
		keys = append(keys, k)
	}

	res := ops.NewExecutor(mem, ops.ExecutorOptions{Workers: 1}).Run(context.Background(), &ops.Plan{Deletes: keys})

	require.Zero(t, res.Failures())
	require.Len(t, res.Deleted, 5)
	require.Empty(t, mem.Keys())
}

func TestDryRunTouchesNothing(t *testing.T) {
	mem := s3iotest.NewMemory()
	mem.Put("a", []byte("a"), "")

	events := &recordedEvents{}
	res := ops.NewExecutor(mem, ops.ExecutorOptions{DryRun: true, Reporter: events}).Run(context.Background(), &ops.Plan{
		Moves:   []ops.Move{{From: "a", To: "b"}},
		Deletes: []string{"a"},
		Uploads: []ops.Upload{{LocalPath: "/nowhere", Key: "c"}},
	})

	assert.True(t, res.DryRun)
	assert.Empty(t, mem.Calls())
	assert.Equal(t, []string{"a"}, mem.Keys())
	require.Len(t, events.events, 3)
	for _, ev := range events.events {
		assert.Equal(t, ops.OutcomePlanned, ev.Outcome)
	}
}
