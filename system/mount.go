package system

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/dargueta/fat32resize/errors"
)

// CheckNotMounted fails with errors.ErrDeviceMounted if devicePath appears as
// the source of an active mount in /proc/mounts. Symlinks such as
// /dev/disk/by-uuid/... are resolved to their canonical form before
// comparison, matching how the kernel records the mount source.
func CheckNotMounted(devicePath string) error {
	canonicalPath := resolveDevicePath(devicePath)

	mounts, err := os.Open("/proc/mounts")
	if err != nil {
		return errors.ErrIO.Wrap(err)
	}
	defer mounts.Close()

	scanner := bufio.NewScanner(mounts)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}

		mountSource, mountPoint := fields[0], fields[1]
		if resolveDevicePath(mountSource) == canonicalPath {
			return errors.ErrDeviceMounted.WithMessage(
				devicePath + " is mounted at " + mountPoint,
			)
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.ErrIO.Wrap(err)
	}

	return nil
}

// resolveDevicePath canonicalizes path, resolving symlinks. If that fails
// (e.g. the path doesn't exist), the original path is returned unchanged so
// comparison can still proceed.
func resolveDevicePath(path string) string {
	canonical, err := filepath.EvalSymlinks(path)
	if err != nil {
		return path
	}
	return canonical
}
