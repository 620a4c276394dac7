package system

import (
	"io"
	"os"
)

// BlockDeviceSize returns the size in bytes of the device or file open as
// file. It prefers an OS-specific ioctl (BLKGETSIZE64 on Linux), which works
// on block device nodes where Stat's reported size is unreliable or zero.
// When the ioctl fails, a regular file's size comes from Stat, and anything
// else falls back to a universal seek-to-end.
func BlockDeviceSize(file *os.File) (int64, error) {
	if size, err := blockDeviceSizeBytes(file); err == nil {
		return size, nil
	}

	info, err := file.Stat()
	if err == nil && info.Mode().IsRegular() {
		return info.Size(), nil
	}

	return file.Seek(0, io.SeekEnd)
}
