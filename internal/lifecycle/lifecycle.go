// Package lifecycle holds the process-wide drain flag. The signal handler in
// main flips it before the HTTP server stops accepting connections; the
// health endpoint reads it to fail readiness while requests finish.
package lifecycle

import "sync/atomic"

var draining atomic.Bool

// SetShuttingDown flips the drain flag. Set on SIGINT/SIGTERM, cleared only
// in tests.
func SetShuttingDown(v bool) {
	draining.Store(v)
}

// IsShuttingDown reports whether the process is draining and should not
// receive new traffic.
func IsShuttingDown() bool {
	return draining.Load()
}
