package s3io_test

import (
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"

	"github.com/studio1767/s3smartsync/internal/s3io"
)

func TestParseRestoreHeader(t *testing.T) {
	tests := []struct {
		name   string
		header string
		state  s3io.RestoreState
	}{
		{"absent", "", s3io.RestoreNotStarted},
		{"blank", "   ", s3io.RestoreNotStarted},
		{"ongoing", `ongoing-request="true"`, s3io.RestoreInProgress},
		{"done", `ongoing-request="false", expiry-date="Fri, 21 Dec 2012 00:00:00 GMT"`, s3io.RestoreCompleted},
		{"done no expiry", `ongoing-request="false"`, s3io.RestoreCompleted},
		{"garbage", `something-else="maybe"`, s3io.RestoreUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state, _ := s3io.ParseRestoreHeader(tt.header)
			assert.Equal(t, tt.state, state)
		})
	}
}

func TestParseRestoreHeaderExpiry(t *testing.T) {
	_, expiry := s3io.ParseRestoreHeader(`ongoing-request="false", expiry-date="Fri, 21 Dec 2012 00:00:00 GMT"`)
	require.False(t, expiry.IsZero())
	require.Equal(t, time.Date(2012, 12, 21, 0, 0, 0, 0, time.UTC), expiry.UTC())
}

func TestParseRestoreTier(t *testing.T) {
	for in, want := range map[string]s3io.RestoreTier{
		"bulk":      s3io.TierBulk,
		"":          s3io.TierBulk,
		"Standard":  s3io.TierStandard,
		"EXPEDITED": s3io.TierExpedited,
	} {
		tier, err := s3io.ParseRestoreTier(in)
		require.NoError(t, err, in)
		require.Equal(t, want, tier)
	}

	_, err := s3io.ParseRestoreTier("instant")
	var invalid *s3io.ErrInvalidTier
	require.ErrorAs(t, err, &invalid)
}

func TestRestoreTierLatencyOrdering(t *testing.T) {
	assert.Equal(t, "1-5 minutes", s3io.TierExpedited.ExpectedLatency())
	assert.Equal(t, "3-5 hours", s3io.TierStandard.ExpectedLatency())
	assert.Equal(t, "12-48 hours", s3io.TierBulk.ExpectedLatency())
}

func TestNormalizePrefix(t *testing.T) {
	assert.Equal(t, "", s3io.NormalizePrefix(""))
	assert.Equal(t, "", s3io.NormalizePrefix("/"))
	assert.Equal(t, "music/", s3io.NormalizePrefix("music"))
	assert.Equal(t, "a/b/", s3io.NormalizePrefix("/a/b/"))
}

func TestIsArchiveClass(t *testing.T) {
	assert.True(t, s3io.IsArchiveClass("GLACIER"))
	assert.True(t, s3io.IsArchiveClass("DEEP_ARCHIVE"))
	assert.False(t, s3io.IsArchiveClass("STANDARD"))
	assert.False(t, s3io.IsArchiveClass(""))
}

func TestRestoreRequestStrings(t *testing.T) {
	assert.Equal(t, "initiated", s3io.RestoreInitiated.String())
	assert.Equal(t, "already in progress", s3io.RestoreAlreadyInProgress.String())
	assert.Equal(t, "not required", s3io.RestoreNotRequired.String())
	assert.Equal(t, "failed", s3io.RestoreFailed.String())
}
