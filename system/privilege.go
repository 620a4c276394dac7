package system

import "os"

// IsRoot reports whether the process's effective user ID is 0. On platforms
// without the POSIX UID model, os.Geteuid returns -1 and this is always
// false.
func IsRoot() bool {
	return os.Geteuid() == 0
}
