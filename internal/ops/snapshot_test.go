package ops_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/studio1767/s3smartsync/internal/ops"
)

func TestOpenSnapshotRejectsNonDirectories(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "plain.txt", "x")

	var notDir *ops.ErrNotDirectory

	_, err := ops.OpenSnapshot(file, nil, nil)
	require.ErrorAs(t, err, &notDir)

	_, err = ops.OpenSnapshot(filepath.Join(dir, "missing"), nil, nil)
	require.ErrorAs(t, err, &notDir)
}

func TestOpenSnapshotRejectsBadPatterns(t *testing.T) {
	_, err := ops.OpenSnapshot(t.TempDir(), []string{"[unclosed"}, nil)
	var bad *ops.ErrBadPattern
	require.ErrorAs(t, err, &bad)
}

func TestScanSkipsHiddenEntries(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "a")
	writeFile(t, dir, "sub/b.txt", "bb")
	writeFile(t, dir, ".hidden", "h")
	writeFile(t, dir, ".git/config", "c")
	writeFile(t, dir, "sub/.cache/x", "x")
	writeFile(t, dir, ".s3smartsync/index.db", "db")

	snap, err := ops.OpenSnapshot(dir, nil, nil)
	require.NoError(t, err)

	files, err := snap.ByPath(context.Background())
	require.NoError(t, err)
	require.Len(t, files, 2)
	require.Contains(t, files, "a.txt")
	require.Contains(t, files, "sub/b.txt")

	b := files["sub/b.txt"]
	require.Equal(t, int64(2), b.Size)
	require.Equal(t, filepath.Join(snap.Root(), "sub", "b.txt"), b.AbsPath)
	require.NotZero(t, b.ID)
	require.NotZero(t, b.ModTime)
}

func TestIdentitySurvivesRename(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "before.txt", "content")

	snap, err := ops.OpenSnapshot(dir, nil, nil)
	require.NoError(t, err)

	first, err := snap.ByPath(context.Background())
	require.NoError(t, err)

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "moved"), 0o755))
	require.NoError(t, os.Rename(filepath.Join(dir, "before.txt"), filepath.Join(dir, "moved", "after.txt")))

	second, err := snap.ByID(context.Background())
	require.NoError(t, err)

	moved, ok := second[first["before.txt"].ID]
	require.True(t, ok)
	require.Equal(t, "moved/after.txt", moved.RelPath)
}

func TestScanNormalizesToNFC(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "cafe\u0301.txt", "x")

	snap, err := ops.OpenSnapshot(dir, nil, nil)
	require.NoError(t, err)

	files, err := snap.ByPath(context.Background())
	require.NoError(t, err)
	require.Contains(t, files, "caf\u00e9.txt")
}

func TestExcludePatterns(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "keep.txt", "k")
	writeFile(t, dir, "deep/down/scratch.tmp", "t")
	writeFile(t, dir, "build/out.o", "o")
	writeFile(t, dir, "src/main.go", "m")

	snap, err := ops.OpenSnapshot(dir, []string{"*.tmp", "build/**"}, nil)
	require.NoError(t, err)

	files, err := snap.ByPath(context.Background())
	require.NoError(t, err)
	require.Len(t, files, 2)
	require.Contains(t, files, "keep.txt")
	require.Contains(t, files, "src/main.go")
}

func TestCancelledScanReportsError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "a")

	snap, err := ops.OpenSnapshot(dir, nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = snap.ByID(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestHardLinksKeepFirstPath(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b/photo.jpg", "pixels")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "a"), 0o755))
	if err := os.Link(filepath.Join(dir, "b", "photo.jpg"), filepath.Join(dir, "a", "photo.jpg")); err != nil {
		t.Skipf("hard links not supported: %v", err)
	}

	snap, err := ops.OpenSnapshot(dir, nil, nil)
	require.NoError(t, err)

	byPath, err := snap.ByPath(context.Background())
	require.NoError(t, err)
	require.Len(t, byPath, 2)
	require.Equal(t, byPath["a/photo.jpg"].ID, byPath["b/photo.jpg"].ID)

	byID, err := snap.ByID(context.Background())
	require.NoError(t, err)
	require.Len(t, byID, 1)
	require.Equal(t, "a/photo.jpg", byID[byPath["a/photo.jpg"].ID].RelPath)
}
