//go:build !windows

package ops

import (
	"fmt"
	"os"
	"syscall"
)

// fileID returns the inode. The device number is left out because it
// changes when removable volumes are remounted.
func fileID(path string, info os.FileInfo) (FileID, error) {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, fmt.Errorf("no inode available for %s", path)
	}
	return FileID(stat.Ino), nil
}
