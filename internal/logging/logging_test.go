package logging_test

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studio1767/s3smartsync/internal/logging"
)

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"":        slog.LevelInfo,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	} {
		level, err := logging.ParseLevel(in)
		require.NoError(t, err)
		assert.Equal(t, want, level, in)
	}

	_, err := logging.ParseLevel("chatty")
	require.Error(t, err)
}

func TestConsoleOnly(t *testing.T) {
	var console bytes.Buffer
	logger, closer, err := logging.New(logging.Options{Level: "warn", Console: &console})
	require.NoError(t, err)
	defer closer.Close()

	logger.Info("quiet")
	logger.Warn("loud", "key", "a.txt")

	out := console.String()
	assert.NotContains(t, out, "quiet")
	assert.Contains(t, out, "loud")
	assert.Contains(t, out, "key=a.txt")
	// not a terminal, so no escape codes
	assert.NotContains(t, out, "\x1b[")
}

func TestRunLogGetsDebugDetail(t *testing.T) {
	var console bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "run.log")

	logger, closer, err := logging.New(logging.Options{Level: "info", Console: &console, RunLog: path})
	require.NoError(t, err)

	logger.Debug("detail", "identity", 42)
	logger.Info("summary")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "msg=detail identity=42")
	assert.Contains(t, string(data), "msg=summary")

	assert.NotContains(t, console.String(), "detail")
	assert.Contains(t, console.String(), "summary")
}
