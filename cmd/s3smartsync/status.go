package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/studio1767/s3smartsync/internal/engine"
)

var statusCmd = &cobra.Command{
	Use:   "status <source>",
	Short: "Show local changes since the last sync",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		cfg := configFromViper()
		logger, closer, err := newLogger(cfg, "", "status")
		if err != nil {
			return err
		}
		defer closer.Close()

		status, err := engine.CheckStatus(cmd.Context(), args[0], cfg.Excludes, logger)
		if err != nil {
			return err
		}

		verbose, _ := cmd.Flags().GetBool("verbose")
		printStatus(status, verbose)
		return nil
	},
}

func init() {
	statusCmd.Flags().StringSlice("exclude", nil, "doublestar pattern of files to skip (repeatable)")
	statusCmd.Flags().BoolP("verbose", "v", false, "list every changed file")
}

func printStatus(status *engine.Status, verbose bool) {
	if status.NeverSynced {
		fmt.Printf("Never synced: %d files would be uploaded\n", len(status.New))
		return
	}

	if status.Changes() == 0 {
		fmt.Printf("No changes since the last sync (%d files)\n", status.Unchanged)
		return
	}

	fmt.Printf("Changes since the last sync\n")
	fmt.Printf("          new: %d\n", len(status.New))
	fmt.Printf("      renamed: %d\n", len(status.Renamed))
	fmt.Printf("     modified: %d\n", len(status.Modified))
	fmt.Printf("      deleted: %d\n", len(status.Deleted))
	fmt.Printf("    unchanged: %d\n", status.Unchanged)

	if !verbose {
		return
	}

	fmt.Println()
	for _, path := range status.New {
		fmt.Printf("-      new: %s\n", path)
	}
	for _, path := range status.Renamed {
		fmt.Printf("-  renamed: %s\n", path)
	}
	for _, path := range status.Modified {
		fmt.Printf("- modified: %s\n", path)
	}
	for _, path := range status.Deleted {
		fmt.Printf("-  deleted: %s\n", path)
	}
}
