package worktree

import (
	"context"
	"os/exec"
)

// runGit runs a git subcommand in repoRoot and returns its combined
// stdout/stderr. The caller's ctx governs cancellation/deadline.
func runGit(ctx context.Context, repoRoot string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = repoRoot
	out, err := cmd.CombinedOutput()
	return string(out), err
}
