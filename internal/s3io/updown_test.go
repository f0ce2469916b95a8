package s3io_test

import (
	"bytes"
	"context"
	crand "crypto/rand"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/stretchr/testify/require"
	"testing"
)

func TestUploadMoveDelete(t *testing.T) {
	ctx := context.Background()

	// generate a prefix to test with
	now := time.Now()
	prefix := fmt.Sprintf("test-%s/", now.Format("20060102150405"))

	client := liveClient(t, prefix)

	// create some files to upload
	dir := t.TempDir()
	buffers := make(map[string][]byte)
	for i := 0; i < 3; i++ {
		buffer := make([]byte, 256*1024+i)
		_, err := crand.Read(buffer)
		require.NoError(t, err)

		key := fmt.Sprintf("dir/%09d", i)
		fpath := filepath.Join(dir, fmt.Sprintf("%09d", i))
		require.NoError(t, os.WriteFile(fpath, buffer, 0644))

		size, err := client.Upload(ctx, fpath, key)
		require.NoError(t, err)
		require.Equal(t, len(buffer), int(size))

		buffers[key] = buffer
	}

	objects, err := client.List(ctx)
	require.NoError(t, err)
	require.Len(t, objects, 3)

	// move one and check it downloads under the new name
	require.NoError(t, client.Move(ctx, "dir/000000000", "moved/000000000"))

	dbuffer := bytes.NewBuffer(nil)
	_, err = client.Download(ctx, "moved/000000000", dbuffer)
	require.NoError(t, err)
	require.Equal(t, buffers["dir/000000000"], dbuffer.Bytes())

	exists, err := client.Exists(ctx, "dir/000000000")
	require.NoError(t, err)
	require.False(t, exists)

	// clean up
	keys := []string{"moved/000000000", "dir/000000001", "dir/000000002"}
	deleted, err := client.DeleteBatch(ctx, keys)
	require.NoError(t, err)
	sort.Strings(deleted)
	sort.Strings(keys)
	require.Equal(t, keys, deleted)
}
