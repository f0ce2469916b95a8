package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/studio1767/s3smartsync/internal/config"
	"github.com/studio1767/s3smartsync/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:           "s3smartsync",
	Short:         "Sync a directory to S3, moving renamed files server side",
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd)
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "console log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("profile", "", "aws profile for credentials and configuration")
	rootCmd.PersistentFlags().String("region", "", "aws region")
	rootCmd.PersistentFlags().String("endpoint", "", "endpoint of an S3 compatible store")
	rootCmd.PersistentFlags().Duration("timeout", 0, "timeout for each S3 request")

	rootCmd.AddCommand(syncCmd, statusCmd, restoreCmd, restoreStatusCmd, downloadCmd)
}

func main() {
	// settings in a local .env file act like environment variables
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Error: failed to load .env: %s\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) error {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		viper.SetConfigFile(path)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("config read '%s': %w", path, err)
		}
	}

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// S3SMARTSYNC_DRY_RUN and friends
	viper.SetEnvPrefix("S3SMARTSYNC")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	return nil
}

// configFromViper collects every setting; commands fill in the positional
// arguments.
func configFromViper() *config.Config {
	cfg := config.Default()

	cfg.Prefix = viper.GetString("prefix")
	cfg.Profile = viper.GetString("profile")
	cfg.Region = viper.GetString("region")
	cfg.Endpoint = viper.GetString("endpoint")
	cfg.AccessKey = viper.GetString("access-key")
	cfg.SecretKey = viper.GetString("secret-key")
	cfg.Timeout = viper.GetDuration("timeout")

	cfg.DeleteOrphans = viper.GetBool("delete")
	cfg.DryRun = viper.GetBool("dry-run")
	if viper.IsSet("workers") {
		cfg.Workers = viper.GetInt("workers")
	}
	cfg.Excludes = viper.GetStringSlice("exclude")

	cfg.Compress = viper.GetBool("compress")
	cfg.Encrypt = viper.GetBool("encrypt")
	cfg.RecipientsFile = viper.GetString("recipients")
	if viper.IsSet("identities") {
		cfg.IdentitiesFile = viper.GetString("identities")
	}

	if viper.IsSet("tier") {
		cfg.Tier = viper.GetString("tier")
	}
	if viper.IsSet("days") {
		cfg.Days = viper.GetInt("days")
	}
	cfg.LogLevel = viper.GetString("log-level")

	return cfg
}

// newLogger logs to the console and, when root is set, to a run log in
// the tree's state directory.
func newLogger(cfg *config.Config, root, command string) (*slog.Logger, io.Closer, error) {
	opts := logging.Options{Level: cfg.LogLevel}
	if root != "" {
		opts.RunLog = config.RunLogPath(root, command, time.Now())
	}

	logger, closer, err := logging.New(opts)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)

	return logger, closer, nil
}

func addS3Flags(cmd *cobra.Command) {
	cmd.Flags().StringP("prefix", "p", "", "key prefix in the bucket")
	cmd.Flags().String("access-key", "", "static aws access key id")
	cmd.Flags().String("secret-key", "", "static aws secret access key")
}
