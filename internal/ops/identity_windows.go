//go:build windows

package ops

import (
	"os"

	"golang.org/x/sys/windows"
)

// fileID returns the NTFS file index, which like an inode is stable
// across renames on the same volume.
func fileID(path string, _ os.FileInfo) (FileID, error) {
	name, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return 0, err
	}

	handle, err := windows.CreateFile(
		name,
		0,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE|windows.FILE_SHARE_DELETE,
		nil,
		windows.OPEN_EXISTING,
		windows.FILE_FLAG_BACKUP_SEMANTICS,
		0,
	)
	if err != nil {
		return 0, err
	}
	defer windows.CloseHandle(handle)

	var info windows.ByHandleFileInformation
	if err := windows.GetFileInformationByHandle(handle, &info); err != nil {
		return 0, err
	}

	return FileID(uint64(info.FileIndexHigh)<<32 | uint64(info.FileIndexLow)), nil
}
