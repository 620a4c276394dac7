//go:build crashtest

package resize

import "os"

// crashAt exits the process immediately, without flushing or cleanup, if the
// FAT32_CRASH_AT environment variable names this point in the protocol. It
// exists to let integration tests verify the resume logic actually recovers
// from a process that died mid-phase, rather than only from hand-constructed
// on-disk state. Only compiled in with -tags crashtest; never linked into a
// release binary.
func crashAt(point string) {
	if os.Getenv("FAT32_CRASH_AT") == point {
		os.Exit(1)
	}
}
