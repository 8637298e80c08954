// Package sandbox decides whether a filesystem path is writable by an
// agent process before the supervisor is allowed to spawn it there.
package sandbox

import (
	"log/slog"
	"path/filepath"
	"strings"
)

// Mode is the sandbox enforcement mode.
type Mode string

const (
	// ModeStrict confines an agent to its assigned worktree root.
	ModeStrict Mode = "strict"
	// ModeUnsafe grants unrestricted filesystem access.
	ModeUnsafe Mode = "unsafe"
)

// Policy enforces a Mode against an allowed root.
type Policy struct {
	mode        Mode
	allowedRoot string
}

// Strict returns a policy confining writes to allowedRoot.
func Strict(allowedRoot string) *Policy {
	return &Policy{mode: ModeStrict, allowedRoot: allowedRoot}
}

// Unsafe returns a policy that allows any path. Construction logs a warning
// since this disables the sandbox entirely.
func Unsafe(allowedRoot string) *Policy {
	slog.Warn("unsafe sandbox mode enabled: agent can write outside worktree", "worktree", allowedRoot)
	return &Policy{mode: ModeUnsafe, allowedRoot: allowedRoot}
}

// Mode reports the policy's enforcement mode.
func (p *Policy) Mode() Mode { return p.mode }

// AllowedRoot reports the root this policy was constructed with.
func (p *Policy) AllowedRoot() string { return p.allowedRoot }

// Result is the outcome of a CheckPath call.
type Result struct {
	Allowed     bool
	Path        string
	AllowedRoot string
}

// CheckPath reports whether target is writable under this policy. In strict
// mode, both paths are canonicalized (symlinks resolved) when the target
// exists; when it does not yet exist, a raw string-prefix comparison is
// used instead, matching the behavior a just-about-to-be-created file needs.
func (p *Policy) CheckPath(target string) Result {
	if p.mode == ModeUnsafe {
		return Result{Allowed: true, Path: target, AllowedRoot: p.allowedRoot}
	}

	canonTarget, errTarget := filepath.EvalSymlinks(target)
	canonRoot, errRoot := filepath.EvalSymlinks(p.allowedRoot)

	if errTarget == nil && errRoot == nil {
		if isDescendant(canonRoot, canonTarget) {
			return Result{Allowed: true, Path: target, AllowedRoot: p.allowedRoot}
		}
		return Result{Allowed: false, Path: target, AllowedRoot: p.allowedRoot}
	}

	// Target doesn't exist yet (or root doesn't): fall back to a raw prefix
	// comparison on cleaned, absolute paths.
	absTarget, errAbsTarget := filepath.Abs(target)
	absRoot, errAbsRoot := filepath.Abs(p.allowedRoot)
	if errAbsTarget != nil || errAbsRoot != nil {
		return Result{Allowed: false, Path: target, AllowedRoot: p.allowedRoot}
	}
	if isDescendant(absRoot, absTarget) {
		return Result{Allowed: true, Path: target, AllowedRoot: p.allowedRoot}
	}
	return Result{Allowed: false, Path: target, AllowedRoot: p.allowedRoot}
}

func isDescendant(root, target string) bool {
	root = filepath.Clean(root)
	target = filepath.Clean(target)
	if target == root {
		return true
	}
	return strings.HasPrefix(target, root+string(filepath.Separator))
}
