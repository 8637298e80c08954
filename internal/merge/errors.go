// Package merge implements Hydra's merge engine: preflight checks, a
// non-destructive dry-run merge, and a confirmed real merge of an agent's
// winning branch into the user's target branch.
package merge

import "errors"

var (
	// ErrMergeInProgress is returned when the repository already has
	// .git/MERGE_HEAD set; preflight refuses rather than disturbing it.
	ErrMergeInProgress = errors.New("merge: repository has a merge already in progress")

	// ErrWorkingTreeDirty is returned when `git status --porcelain` is
	// non-empty.
	ErrWorkingTreeDirty = errors.New("merge: working tree is not clean")

	// ErrBranchNotFound is returned when the requested branch does not
	// exist in the repository.
	ErrBranchNotFound = errors.New("merge: branch not found")

	// ErrNoMergeableAgent is returned by SelectWinner when no candidate
	// agent is mergeable.
	ErrNoMergeableAgent = errors.New("merge: no mergeable agent in this run")

	// ErrConfirmationRequired is returned by Merge when Confirmed is
	// false; callers must pass the explicit confirmation token/flag.
	ErrConfirmationRequired = errors.New("merge: real merge requires explicit confirmation")

	// ErrGatesFailed is returned by Merge when the winning agent failed
	// its mergeability gates and Force was not set.
	ErrGatesFailed = errors.New("merge: agent failed mergeability gates; use force to override")
)
