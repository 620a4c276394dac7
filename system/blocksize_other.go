//go:build !linux

package system

import (
	"errors"
	"os"
)

// blockDeviceSizeBytes has no portable ioctl outside Linux; BlockDeviceSize
// always falls back to Stat (for regular files) or seek-to-end on these
// platforms.
func blockDeviceSizeBytes(file *os.File) (int64, error) {
	return 0, errors.New("block device size ioctl not implemented on this platform")
}
