package orchestrator

import (
	"context"
	"log/slog"

	"github.com/phstella/hydra/internal/artifact"
)

// applyRetention removes each agent's worktree unless the configured
// retention policy says to keep it. Best-effort: a removal failure is
// logged, not returned, since the race itself has already completed.
func (o *Orchestrator) applyRetention(ctx context.Context, trackers map[string]*agentTracker) {
	for key, tr := range trackers {
		if !shouldRemoveWorktree(o.config.Worktree.Retention, tr.status) {
			continue
		}
		if err := o.worktrees.Remove(ctx, tr.worktreePath, true); err != nil {
			slog.Warn("worktree retention cleanup failed", "agent", key, "path", tr.worktreePath, "err", err)
		}
	}
}

// cleanupTrackedWorktrees force-removes every worktree created so far,
// used when a race must abort before every agent has been spawned.
func (o *Orchestrator) cleanupTrackedWorktrees(ctx context.Context, trackers map[string]*agentTracker) {
	for key, tr := range trackers {
		if err := o.worktrees.Remove(ctx, tr.worktreePath, true); err != nil {
			slog.Warn("worktree cleanup after aborted race failed", "agent", key, "path", tr.worktreePath, "err", err)
		}
	}
}

// shouldRemoveWorktree applies the worktree.retention policy
// ("none"|"failed"|"all") to one agent's terminal status.
//
//   - "none":   never keep — always remove.
//   - "all":    always keep — never remove.
//   - "failed": keep only non-completed worktrees (failed/timed_out/
//     cancelled), so a losing or broken attempt stays around to debug;
//     remove completed ones since their diff already lives in the
//     winning branch or was scored and archived.
func shouldRemoveWorktree(retention string, status artifact.AgentStatus) bool {
	switch retention {
	case "none":
		return true
	case "all":
		return false
	default: // "failed", and any unrecognized value, defaults to the safe choice
		return status == artifact.AgentStatusCompleted
	}
}
