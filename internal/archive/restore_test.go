package archive_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/studio1767/s3smartsync/internal/archive"
	"github.com/studio1767/s3smartsync/internal/s3io"
	"github.com/studio1767/s3smartsync/internal/s3io/s3iotest"
)

func trackedBucket(t *testing.T) (*s3iotest.Memory, *archive.Tracker) {
	t.Helper()

	mem := s3iotest.NewMemory()
	mem.Put("cold/a", []byte("a"), "GLACIER")
	mem.Put("cold/b", []byte("b"), "DEEP_ARCHIVE")

	tr := newTracker(t)
	tr.Record("cold/a", "")
	tr.Record("cold/b", "")
	require.NoError(t, tr.Save())

	return mem, tr
}

func TestRestoreLifecycle(t *testing.T) {
	ctx := context.Background()
	mem, tr := trackedBucket(t)
	rs := archive.NewRestorer(mem, tr, 2, nil)

	// nothing requested yet
	report, err := rs.Check(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, report.Counts[s3io.RestoreNotStarted])
	require.False(t, report.Cleared)

	results, err := rs.Request(ctx, s3io.TierBulk, 0)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, res := range results {
		require.NoError(t, res.Err)
		require.Equal(t, s3io.RestoreInitiated, res.Request)
	}

	// asking again is not a failure
	results, err = rs.Request(ctx, s3io.TierBulk, 0)
	require.NoError(t, err)
	require.Equal(t, s3io.RestoreAlreadyInProgress, results[0].Request)

	report, err = rs.Check(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, report.Counts[s3io.RestoreInProgress])

	// one done, log stays
	mem.CompleteRestore("cold/a")
	report, err = rs.Check(ctx)
	require.NoError(t, err)
	require.Equal(t, "cold/a", report.Infos[0].Key)
	require.Equal(t, s3io.RestoreCompleted, report.Infos[0].State)
	require.False(t, report.Cleared)
	require.FileExists(t, tr.Path())

	// all done, log cleared
	mem.CompleteRestore("cold/b")
	report, err = rs.Check(ctx)
	require.NoError(t, err)
	require.True(t, report.AllCompleted())
	require.True(t, report.Cleared)
	require.NoFileExists(t, tr.Path())

	// and a restored object can now be moved
	require.NoError(t, mem.Move(ctx, "cold/a", "warm/a"))
}

func TestStatusErrorIsNotTerminal(t *testing.T) {
	ctx := context.Background()
	mem, tr := trackedBucket(t)
	mem.CompleteRestore("cold/a")
	mem.CompleteRestore("cold/b")
	mem.Fail("status", "cold/b", errors.New("throttled"))

	rs := archive.NewRestorer(mem, tr, 1, nil)

	report, err := rs.Check(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, report.Counts[s3io.RestoreCompleted])
	require.Equal(t, 1, report.Counts[s3io.RestoreError])
	require.False(t, report.Cleared)

	keys, err := tr.Load()
	require.NoError(t, err)
	require.Len(t, keys, 2)
}

func TestRequestFailuresAreReportedPerKey(t *testing.T) {
	mem, tr := trackedBucket(t)
	mem.Fail("restore", "cold/a", errors.New("access denied"))

	results, err := archive.NewRestorer(mem, tr, 1, nil).Request(context.Background(), s3io.TierExpedited, 1)
	require.NoError(t, err)
	require.Error(t, results[0].Err)
	require.Equal(t, s3io.RestoreFailed, results[0].Request)
	require.NoError(t, results[1].Err)
	require.Equal(t, s3io.RestoreInitiated, results[1].Request)
}

func TestRequestSkipsKeysNoLongerInBucket(t *testing.T) {
	mem, tr := trackedBucket(t)
	_, err := mem.DeleteBatch(context.Background(), []string{"cold/b"})
	require.NoError(t, err)

	results, err := archive.NewRestorer(mem, tr, 1, nil).Request(context.Background(), s3io.TierBulk, 0)
	require.NoError(t, err)
	require.Len(t, results, 2)

	require.NoError(t, results[0].Err)
	require.Equal(t, s3io.RestoreInitiated, results[0].Request)

	var missing *s3io.ErrNoSuchObject
	require.ErrorAs(t, results[1].Err, &missing)
	require.Equal(t, "cold/b", missing.Key)
	require.Equal(t, s3io.RestoreFailed, results[1].Request)

	// no restore was asked for the missing key
	require.NotContains(t, mem.Calls(), "restore cold/b")
	require.Contains(t, mem.Calls(), "exists cold/b")
}

func TestRequestExistsFailureIsReported(t *testing.T) {
	mem, tr := trackedBucket(t)
	mem.Fail("exists", "cold/a", errors.New("access denied"))

	results, err := archive.NewRestorer(mem, tr, 1, nil).Request(context.Background(), s3io.TierBulk, 0)
	require.NoError(t, err)
	require.EqualError(t, results[0].Err, "access denied")
	require.Equal(t, s3io.RestoreFailed, results[0].Request)
	require.NotContains(t, mem.Calls(), "restore cold/a")
}

func TestCheckWithEmptyLog(t *testing.T) {
	report, err := archive.NewRestorer(s3iotest.NewMemory(), newTracker(t), 1, nil).Check(context.Background())
	require.NoError(t, err)
	require.Empty(t, report.Infos)
	require.False(t, report.AllCompleted())
}
