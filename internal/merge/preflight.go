package merge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/phstella/hydra/internal/refname"
)

// Preflight runs the checks a merge (dry-run or real) requires before it
// touches the working tree: no merge already in progress, a clean working
// tree, and the requested (source) branch actually exists. It preserves any
// in-progress merge state rather than disturbing it — callers must resolve
// that by hand.
func Preflight(ctx context.Context, repoRoot, requestedBranch string) error {
	if err := refname.ValidateBranchName(requestedBranch); err != nil {
		return err
	}

	inProgress, err := mergeInProgress(ctx, repoRoot)
	if err != nil {
		return fmt.Errorf("merge: checking merge state: %w", err)
	}
	if inProgress {
		return ErrMergeInProgress
	}

	status, err := gitCommand(ctx, repoRoot, "status", "--porcelain")
	if err != nil {
		return fmt.Errorf("merge: checking working tree status: %w", err)
	}
	if strings.TrimSpace(status) != "" {
		return ErrWorkingTreeDirty
	}

	if _, err := gitCommand(ctx, repoRoot, "rev-parse", "--verify", requestedBranch); err != nil {
		return fmt.Errorf("%w: %s", ErrBranchNotFound, requestedBranch)
	}

	return nil
}

// mergeInProgress resolves MERGE_HEAD's actual path via `git rev-parse
// --git-path`, which is worktree-aware, rather than assuming a bare
// ".git/MERGE_HEAD" layout.
func mergeInProgress(ctx context.Context, repoRoot string) (bool, error) {
	out, err := gitCommand(ctx, repoRoot, "rev-parse", "--git-path", "MERGE_HEAD")
	if err != nil {
		return false, err
	}
	path := strings.TrimSpace(out)
	if !filepath.IsAbs(path) {
		path = filepath.Join(repoRoot, path)
	}
	_, statErr := os.Stat(path)
	return statErr == nil, nil
}
