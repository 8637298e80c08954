// Package orchestrator composes a full race: it resolves adapters, creates
// the artifact layout and per-agent worktrees, drives the parallel
// supervisor, streams supervisor events into the run's event log, and —
// once every agent reaches a terminal state — captures diffs, runs the
// baseline, scores each agent, and writes the ranking.
package orchestrator

import "errors"

var (
	ErrNoAgents         = errors.New("orchestrator: at least one agent key is required")
	ErrAdapterNotReady  = errors.New("orchestrator: adapter is not available (probe did not succeed)")
	ErrSandboxViolation = errors.New("orchestrator: command working directory is not sandbox-allowed")
)
