package worktree

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/phstella/hydra/internal/refname"
)

// Info describes a created worktree.
type Info struct {
	Path     string
	Branch   string
	RunID    uuid.UUID
	AgentKey string
}

// Entry describes one worktree as reported by `git worktree list`.
type Entry struct {
	Path       string
	Branch     string
	HeadCommit string
}

// Service creates, lists, and removes the per-agent git worktrees used
// to isolate a race's concurrent agent attempts.
type Service struct {
	repoRoot string
	baseDir  string
}

// New returns a Service rooted at repoRoot, placing worktrees under baseDir.
func New(repoRoot, baseDir string) *Service {
	return &Service{repoRoot: repoRoot, baseDir: baseDir}
}

// Create creates a new worktree for one agent of a run.
//
// Branch: hydra/<run_id>/agent/<agent_key>
// Path:   <base_dir>/<run_id>/<agent_key>/
func (s *Service) Create(ctx context.Context, runID uuid.UUID, agentKey, baseRef string) (Info, error) {
	if err := refname.ValidateAgentKey(agentKey); err != nil {
		return Info{}, fmt.Errorf("invalid agent key: %w", err)
	}
	branch := fmt.Sprintf("hydra/%s/agent/%s", runID, agentKey)
	if err := refname.ValidateBranchName(branch); err != nil {
		return Info{}, fmt.Errorf("invalid branch name: %w", err)
	}

	wtPath := filepath.Join(s.baseDir, runID.String(), agentKey)

	if _, err := os.Stat(wtPath); err == nil {
		return Info{}, fmt.Errorf("%w: %s", ErrAlreadyExists, wtPath)
	}

	if err := os.MkdirAll(filepath.Dir(wtPath), 0o755); err != nil {
		return Info{}, err
	}

	out, err := s.git(ctx, "worktree", "add", "-b", branch, wtPath, baseRef)
	if err != nil {
		return Info{}, fmt.Errorf("git worktree add failed: %w (output: %s)", err, strings.TrimSpace(out))
	}

	return Info{Path: wtPath, Branch: branch, RunID: runID, AgentKey: agentKey}, nil
}

// List enumerates every worktree git knows about in this repo.
func (s *Service) List(ctx context.Context) ([]Entry, error) {
	out, err := s.git(ctx, "worktree", "list", "--porcelain")
	if err != nil {
		return nil, fmt.Errorf("git worktree list failed: %w (output: %s)", err, strings.TrimSpace(out))
	}
	return parsePorcelain(out), nil
}

// Remove removes a worktree by path, optionally forcing removal of
// uncommitted changes.
func (s *Service) Remove(ctx context.Context, wtPath string, force bool) error {
	if _, err := os.Stat(wtPath); err != nil {
		return fmt.Errorf("%w: %s", ErrNotFound, wtPath)
	}

	args := []string{"worktree", "remove"}
	if force {
		args = append(args, "--force")
	}
	args = append(args, wtPath)

	out, err := s.git(ctx, args...)
	if err != nil {
		return fmt.Errorf("git worktree remove failed: %w (output: %s)", err, strings.TrimSpace(out))
	}
	return nil
}

// ForceCleanup removes a worktree's directory and branch unconditionally,
// for use after interrupt or failure. Best-effort: individual git command
// failures fall back to manual directory removal and are not fatal.
func (s *Service) ForceCleanup(ctx context.Context, info Info) error {
	if _, err := os.Stat(info.Path); err == nil {
		if _, err := s.git(ctx, "worktree", "remove", "--force", info.Path); err != nil {
			_ = os.RemoveAll(info.Path)
			_, _ = s.git(ctx, "worktree", "prune")
		}
	}

	_, _ = s.git(ctx, "branch", "-D", info.Branch)
	return nil
}

func (s *Service) git(ctx context.Context, args ...string) (string, error) {
	return runGit(ctx, s.repoRoot, args...)
}

// parsePorcelain parses `git worktree list --porcelain` output.
func parsePorcelain(output string) []Entry {
	var entries []Entry
	var path, head, branch string
	hasPath := false

	flush := func() {
		if hasPath {
			entries = append(entries, Entry{Path: path, Branch: branch, HeadCommit: head})
			path, head, branch = "", "", ""
			hasPath = false
		}
	}

	for _, line := range strings.Split(output, "\n") {
		switch {
		case strings.HasPrefix(line, "worktree "):
			path = strings.TrimPrefix(line, "worktree ")
			hasPath = true
		case strings.HasPrefix(line, "HEAD "):
			head = strings.TrimPrefix(line, "HEAD ")
		case strings.HasPrefix(line, "branch "):
			branch = strings.TrimPrefix(strings.TrimPrefix(line, "branch "), "refs/heads/")
		case line == "":
			flush()
		}
	}
	flush()

	return entries
}
