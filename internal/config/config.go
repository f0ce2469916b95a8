// Package config holds the settings of a sync run and the layout of the
// state directory kept inside each synced tree.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/studio1767/s3smartsync/internal/ops"
	"github.com/studio1767/s3smartsync/internal/s3io"
)

// StateDirName is the hidden directory under the sync root holding the
// index, the recovery log and run logs. The scanner skips dot entries so
// it is never uploaded.
const StateDirName = ".s3smartsync"

type ErrInvalidConfig struct {
	field string
	msg   string
}

func (e *ErrInvalidConfig) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.field, e.msg)
}

type Config struct {
	Source string
	Bucket string
	Prefix string

	// aws
	Profile   string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	Timeout   time.Duration

	DeleteOrphans bool
	DryRun        bool
	Workers       int
	Excludes      []string

	Compress       bool
	Encrypt        bool
	RecipientsFile string
	IdentitiesFile string

	// restore
	Tier string
	Days int

	LogLevel string
}

func Default() *Config {
	return &Config{
		Workers:        ops.DefaultWorkers,
		Tier:           string(s3io.TierBulk),
		Days:           s3io.DefaultRestoreDays,
		LogLevel:       "info",
		IdentitiesFile: "default",
	}
}

// Validate checks the settings needed to talk to a bucket. Source is
// checked separately by the snapshot when it opens the tree.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Source) == "" {
		return &ErrInvalidConfig{field: "source", msg: "no source directory given"}
	}
	if strings.TrimSpace(c.Bucket) == "" {
		return &ErrInvalidConfig{field: "bucket", msg: "no bucket given"}
	}
	if c.Workers < 1 {
		return &ErrInvalidConfig{field: "workers", msg: fmt.Sprintf("must be at least 1, got %d", c.Workers)}
	}
	if c.Days < 1 || c.Days > s3io.MaxRestoreDays {
		return &ErrInvalidConfig{field: "days", msg: fmt.Sprintf("must be between 1 and %d, got %d", s3io.MaxRestoreDays, c.Days)}
	}
	if _, err := s3io.ParseRestoreTier(c.Tier); err != nil {
		return &ErrInvalidConfig{field: "tier", msg: err.Error()}
	}
	if c.Encrypt && c.RecipientsFile == "" {
		return &ErrInvalidConfig{field: "recipients", msg: "encryption needs a recipients file"}
	}
	if (c.AccessKey == "") != (c.SecretKey == "") {
		return &ErrInvalidConfig{field: "access-key", msg: "access key and secret key must be given together"}
	}
	if err := ops.ValidatePatterns(c.Excludes); err != nil {
		return &ErrInvalidConfig{field: "exclude", msg: err.Error()}
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return &ErrInvalidConfig{field: "log-level", msg: fmt.Sprintf("unknown level '%s'", c.LogLevel)}
	}
	return nil
}

func (c *Config) S3Options() s3io.Options {
	return s3io.Options{
		Profile:        c.Profile,
		Region:         c.Region,
		Endpoint:       c.Endpoint,
		AccessKey:      c.AccessKey,
		SecretKey:      c.SecretKey,
		Bucket:         c.Bucket,
		Prefix:         c.Prefix,
		Compress:       c.Compress,
		Encrypt:        c.Encrypt,
		RecipientsFile: c.RecipientsFile,
		IdentitiesFile: c.IdentitiesFile,
		Timeout:        c.Timeout,
	}
}

// RestoreTier returns the parsed tier; Validate has already vetted it.
func (c *Config) RestoreTier() s3io.RestoreTier {
	tier, err := s3io.ParseRestoreTier(c.Tier)
	if err != nil {
		return s3io.TierBulk
	}
	return tier
}

func StateDir(root string) string {
	return filepath.Join(root, StateDirName)
}

func IndexPath(root string) string {
	return filepath.Join(StateDir(root), "index.db")
}

func RecoveryLogPath(root string) string {
	return filepath.Join(StateDir(root), "restore-needed.log")
}

// RunLogPath is the log file for one invocation of command.
func RunLogPath(root, command string, now time.Time) string {
	name := fmt.Sprintf("s3smartsync-%s-%s.log", command, now.Format("20060102-150405"))
	return filepath.Join(StateDir(root), "logs", name)
}
