//go:build linux

package system

import (
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// blkGetSize64 is the Linux BLKGETSIZE64 ioctl request number: returns the
// device size in bytes as a uint64.
const blkGetSize64 = 0x80081272

// blockDeviceSizeBytes queries the kernel for a block device's size via the
// BLKGETSIZE64 ioctl. BlockDeviceSize falls back to Stat or seek-to-end if
// this fails, e.g. because file is a regular file rather than a device node.
func blockDeviceSizeBytes(file *os.File) (int64, error) {
	var size uint64
	_, _, errno := unix.Syscall(
		unix.SYS_IOCTL,
		file.Fd(),
		uintptr(blkGetSize64),
		uintptr(unsafe.Pointer(&size)),
	)
	if errno != 0 {
		return 0, errno
	}
	return int64(size), nil
}
