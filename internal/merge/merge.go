package merge

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// MergeReport is produced by a dry-run or a real merge.
type MergeReport struct {
	SourceBranch string         `json:"source_branch"`
	TargetBranch string         `json:"target_branch"`
	DryRun       bool           `json:"dry_run"`
	CanMerge     bool           `json:"can_merge"`
	Conflicts    []ConflictFile `json:"conflicts"`
	FilesChanged uint32         `json:"files_changed"`
	Insertions   uint32         `json:"insertions"`
	Deletions    uint32         `json:"deletions"`
}

// ConflictFile is a single path with a merge conflict.
type ConflictFile struct {
	Path string `json:"path"`
	// Type is one of "content", "rename", "delete".
	Type string `json:"conflict_type"`
}

// Service performs merges against a single repository's working tree.
type Service struct {
	repoRoot string
}

// New returns a Service operating on repoRoot.
func New(repoRoot string) *Service {
	return &Service{repoRoot: repoRoot}
}

// DryRun previews merging sourceBranch into targetBranch: it attempts a
// non-fast-forward merge without committing, records any conflicts, then
// always aborts so the working tree is left exactly as it was.
func (s *Service) DryRun(ctx context.Context, sourceBranch, targetBranch string) (MergeReport, error) {
	if err := Preflight(ctx, s.repoRoot, sourceBranch); err != nil {
		return MergeReport{}, err
	}

	slog.Info("performing merge dry-run", "source", sourceBranch, "target", targetBranch)

	filesChanged, insertions, deletions, err := s.diffStats(ctx, sourceBranch, targetBranch)
	if err != nil {
		return MergeReport{}, err
	}

	stdout, stderr, mergeErr := s.attemptMerge(ctx, "merge", "--no-commit", "--no-ff", sourceBranch)
	merged := mergeErr == nil

	var conflicts []ConflictFile
	if !merged {
		conflicts = s.parseConflicts(ctx, stdout, stderr)
	}

	_ = s.abortMerge(ctx)

	return MergeReport{
		SourceBranch: sourceBranch,
		TargetBranch: targetBranch,
		DryRun:       true,
		CanMerge:     merged,
		Conflicts:    conflicts,
		FilesChanged: filesChanged,
		Insertions:   insertions,
		Deletions:    deletions,
	}, nil
}

// MergeRequest describes a confirmed, real merge.
type MergeRequest struct {
	SourceBranch string
	TargetBranch string
	RunID        uuid.UUID
	AgentKey     string

	// Confirmed must be true — callers must have an explicit confirmation
	// token/flag before a real merge is allowed to run.
	Confirmed bool

	// Mergeable/GateFailures come from the agent's score. A non-mergeable
	// agent is rejected unless Force is set.
	Mergeable    bool
	GateFailures []string
	Force        bool
}

// Merge performs a real, committed non-fast-forward merge of
// req.SourceBranch into req.TargetBranch, with a commit message of the form
// "hydra: merge <agent> from run <run_id>".
func (s *Service) Merge(ctx context.Context, req MergeRequest) (MergeReport, error) {
	if !req.Confirmed {
		return MergeReport{}, ErrConfirmationRequired
	}
	if !req.Mergeable && !req.Force {
		return MergeReport{}, fmt.Errorf("%w: %s", ErrGatesFailed, strings.Join(req.GateFailures, "; "))
	}
	if err := Preflight(ctx, s.repoRoot, req.SourceBranch); err != nil {
		return MergeReport{}, err
	}

	slog.Info("performing merge", "source", req.SourceBranch, "target", req.TargetBranch, "agent", req.AgentKey)

	filesChanged, insertions, deletions, err := s.diffStats(ctx, req.SourceBranch, req.TargetBranch)
	if err != nil {
		return MergeReport{}, err
	}

	message := fmt.Sprintf("hydra: merge %s from run %s", req.AgentKey, req.RunID)
	stdout, stderr, mergeErr := s.attemptMerge(ctx, "merge", "--no-ff", "-m", message, req.SourceBranch)
	merged := mergeErr == nil

	var conflicts []ConflictFile
	if !merged {
		conflicts = s.parseConflicts(ctx, stdout, stderr)
		_ = s.abortMerge(ctx)
	}

	return MergeReport{
		SourceBranch: req.SourceBranch,
		TargetBranch: req.TargetBranch,
		DryRun:       false,
		CanMerge:     merged,
		Conflicts:    conflicts,
		FilesChanged: filesChanged,
		Insertions:   insertions,
		Deletions:    deletions,
	}, nil
}

// attemptMerge runs `git <args...>` and returns its stdout/stderr
// separately (needed to parse CONFLICT markers out of either stream)
// without treating a non-zero exit as a Go error beyond signaling it.
func (s *Service) attemptMerge(ctx context.Context, args ...string) (stdout, stderr string, err error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = s.repoRoot
	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf
	err = cmd.Run()
	return outBuf.String(), errBuf.String(), err
}

func (s *Service) abortMerge(ctx context.Context) error {
	_, err := gitCommand(ctx, s.repoRoot, "merge", "--abort")
	return err
}

// diffStats returns (files_changed, insertions, deletions) between
// targetBranch and sourceBranch. If the diff fails (e.g. unrelated
// histories), it returns zeros rather than an error.
func (s *Service) diffStats(ctx context.Context, sourceBranch, targetBranch string) (uint32, uint32, uint32, error) {
	out, err := gitCommand(ctx, s.repoRoot, "diff", "--stat", fmt.Sprintf("%s...%s", targetBranch, sourceBranch))
	if err != nil {
		slog.Warn("diff --stat failed, returning zeros", "source", sourceBranch, "target", targetBranch, "err", err)
		return 0, 0, 0, nil
	}
	files, ins, del := parseDiffStat(out)
	return files, ins, del, nil
}

// parseConflicts extracts conflict file paths from git merge's stdout and
// stderr. If no CONFLICT markers are found but the merge still failed, it
// falls back to asking git directly for unmerged paths.
func (s *Service) parseConflicts(ctx context.Context, stdout, stderr string) []ConflictFile {
	var conflicts []ConflictFile
	combined := stdout + "\n" + stderr

	for _, line := range strings.Split(combined, "\n") {
		switch {
		case strings.HasPrefix(line, "CONFLICT (content): Merge conflict in "):
			path := strings.TrimSpace(strings.TrimPrefix(line, "CONFLICT (content): Merge conflict in "))
			conflicts = append(conflicts, ConflictFile{Path: path, Type: "content"})
		case strings.HasPrefix(line, "CONFLICT (rename/delete)"):
			conflicts = append(conflicts, ConflictFile{Path: lastField(line), Type: "rename"})
		case strings.HasPrefix(line, "CONFLICT (modify/delete)"):
			conflicts = append(conflicts, ConflictFile{Path: lastField(line), Type: "delete"})
		}
	}

	if len(conflicts) == 0 {
		if out, err := gitCommand(ctx, s.repoRoot, "diff", "--name-only", "--diff-filter=U"); err == nil {
			for _, path := range strings.Split(out, "\n") {
				path = strings.TrimSpace(path)
				if path != "" {
					conflicts = append(conflicts, ConflictFile{Path: path, Type: "content"})
				}
			}
		}
	}

	return conflicts
}

func lastField(line string) string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "unknown"
	}
	return fields[len(fields)-1]
}

// gitCommand runs git in repoRoot and returns stdout on success, or an
// error embedding stderr on failure.
func gitCommand(ctx context.Context, repoRoot string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = repoRoot
	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("merge: git %v failed: %s", args, strings.TrimSpace(errBuf.String()))
	}
	return outBuf.String(), nil
}

// parseDiffStat parses the trailing summary line of `git diff --stat`
// output, e.g. " 2 files changed, 7 insertions(+), 8 deletions(-)".
func parseDiffStat(output string) (filesChanged, insertions, deletions uint32) {
	lines := strings.Split(output, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}

		for _, part := range strings.Split(line, ",") {
			part = strings.TrimSpace(part)
			switch {
			case strings.Contains(part, "changed"):
				if n, ok := firstUint(part); ok {
					filesChanged = n
				}
			case strings.Contains(part, "insertion"):
				if n, ok := firstUint(part); ok {
					insertions = n
				}
			case strings.Contains(part, "deletion"):
				if n, ok := firstUint(part); ok {
					deletions = n
				}
			}
		}

		if filesChanged > 0 || insertions > 0 || deletions > 0 {
			break
		}
	}
	return
}

func firstUint(s string) (uint32, bool) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0, false
	}
	n, err := strconv.ParseUint(fields[0], 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(n), true
}
