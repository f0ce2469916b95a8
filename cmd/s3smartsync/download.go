package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	humanize "github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/studio1767/s3smartsync/internal/s3io"
)

var downloadCmd = &cobra.Command{
	Use:   "download <bucket> <key> <dest>",
	Short: "Download one object, decrypting and decompressing as needed",
	Args:  cobra.ExactArgs(3),
	RunE:  runDownload,
}

func init() {
	addS3Flags(downloadCmd)
	downloadCmd.Flags().StringP("identities", "i", "default", "age identities file for decryption")
}

func runDownload(cmd *cobra.Command, args []string) error {
	cfg := configFromViper()
	cfg.Bucket = args[0]
	key := args[1]
	dest := args[2]
	cmd.SilenceUsage = true

	logger, closer, err := newLogger(cfg, "", "download")
	if err != nil {
		return err
	}
	defer closer.Close()

	client, err := s3io.NewClient(cmd.Context(), cfg.S3Options())
	if err != nil {
		return err
	}

	// downloading into a directory keeps the key's base name
	if info, err := os.Stat(dest); err == nil && info.IsDir() {
		dest = filepath.Join(dest, filepath.Base(filepath.FromSlash(key)))
	}

	// nothing to do if the key is gone, and no stray .part file
	exists, err := client.Exists(cmd.Context(), key)
	if err != nil {
		return err
	}
	if !exists {
		return &s3io.ErrNoSuchObject{Key: key}
	}

	tmp := dest + ".part"
	file, err := os.Create(tmp)
	if err != nil {
		return err
	}

	nbytes, err := client.Download(cmd.Context(), key, file)
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)

		var notDownloadable *s3io.ErrNotDownloadable
		if errors.As(err, &notDownloadable) {
			return fmt.Errorf("%w: request a restore first", err)
		}
		var noIdentities *s3io.ErrIdentitiesNotFound
		if errors.As(err, &noIdentities) {
			return fmt.Errorf("%w: pass --identities", err)
		}
		return err
	}

	if err := os.Rename(tmp, dest); err != nil {
		return err
	}

	logger.Info("downloaded", "key", key, "dest", dest, "bytes", nbytes)
	fmt.Printf("downloaded: %s -> %s (%s)\n", key, dest, humanize.Bytes(uint64(nbytes)))
	return nil
}
