//go:build !crashtest

package resize

// crashAt is a no-op in ordinary builds; see crashtest.go for the
// crashtest-tagged implementation.
func crashAt(point string) {}
