// Package scoring captures baseline build/test/lint results, scores each
// agent's worktree across the build/tests/lint/diff-scope/speed dimensions,
// and ranks agents by a renormalized weighted composite subject to
// mergeability gates.
package scoring

import (
	"errors"
	"fmt"
)

// ErrNoCommand is returned by RunCommand when given an empty command string.
var ErrNoCommand = errors.New("scoring: empty command")

// TimeoutError is returned by RunCommand when the command exceeds its
// allotted timeout. By the time this error is returned the shell process
// running the command has been killed; processes it started are not
// signalled.
type TimeoutError struct {
	Command string
	Seconds int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("scoring: command timed out after %ds: %s", e.Seconds, e.Command)
}
