// Package recovery detects and cleans up state left behind when Hydra
// exits unexpectedly: runs whose manifest is still "running" with no
// process actually alive, and the worktrees and branches that belonged
// to them. It also hands out the single-flight lease a long-running
// supervisor (the race and merge commands) holds for the lifetime of
// one run, so two invocations never operate on the same repo at once.
package recovery

import "errors"

var (
	// ErrLeaseHeld is returned when a lease file is already locked by
	// another process.
	ErrLeaseHeld = errors.New("recovery: lease already held by another process")
)
