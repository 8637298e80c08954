// Package worktree manages the per-agent git worktrees used for isolating
// each racing agent's filesystem changes from the host repository and
// from each other.
package worktree

import "errors"

var (
	// ErrAlreadyExists is returned when a worktree already exists at the
	// target path for a run/agent pair.
	ErrAlreadyExists = errors.New("worktree already exists")

	// ErrNotFound is returned when a worktree does not exist at the given
	// path.
	ErrNotFound = errors.New("worktree not found")

	// ErrNotARepo is returned when repoRoot is not inside a git repository.
	ErrNotARepo = errors.New("not inside a git repository")
)
