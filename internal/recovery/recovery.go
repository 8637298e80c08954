package recovery

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/renameio/v2"
	"github.com/google/uuid"

	"github.com/phstella/hydra/internal/artifact"
	"github.com/phstella/hydra/internal/worktree"
)

// State is a run's status from the recovery perspective.
type State string

const (
	StateInProgress    State = "in_progress"
	StateInterrupted   State = "interrupted"
	StateCleanupNeeded State = "cleanup_needed"
	StateRecovered     State = "recovered"
)

// WorktreeRecord is one worktree that belonged to a run under recovery.
type WorktreeRecord struct {
	Path     string `json:"path"`
	Branch   string `json:"branch"`
	AgentKey string `json:"agent_key"`
}

// Metadata describes a run that may need recovery, either read back from
// its recovery checkpoint or derived from a stale "running" manifest.
type Metadata struct {
	RunID          uuid.UUID        `json:"run_id"`
	State          State            `json:"state"`
	Worktrees      []WorktreeRecord `json:"worktrees"`
	LastCheckpoint time.Time        `json:"last_checkpoint"`
}

// CleanupReport summarizes one cleanup pass over every stale run found.
type CleanupReport struct {
	RunsCleaned      int      `json:"runs_cleaned"`
	WorktreesRemoved int      `json:"worktrees_removed"`
	BranchesDeleted  int      `json:"branches_deleted"`
	Errors           []string `json:"errors"`
}

// Service detects and cleans up stale Hydra state left behind by a crash
// or an interrupted race.
type Service struct {
	hydraRoot string
	repoRoot  string
	worktrees *worktree.Service
}

// New returns a Service rooted at repoRoot, with its artifacts under
// hydraRoot (typically "<repoRoot>/.hydra").
func New(repoRoot, hydraRoot string) *Service {
	return &Service{
		hydraRoot: hydraRoot,
		repoRoot:  repoRoot,
		worktrees: worktree.New(repoRoot, filepath.Join(hydraRoot, "worktrees")),
	}
}

// ScanStaleRuns looks at every run under "<hydraRoot>/runs" and reports
// the ones that look stale: a recovery checkpoint that hasn't reached
// StateRecovered, or a manifest still claiming StatusRunning with no
// checkpoint at all (the process that owned it died without ever writing
// one).
func (s *Service) ScanStaleRuns() ([]Metadata, error) {
	runIDs, err := artifact.ListRuns(s.hydraRoot)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	var stale []Metadata
	for _, runID := range runIDs {
		layout := artifact.NewRunLayout(s.hydraRoot, runID)

		if meta, err := readCheckpoint(layout.RecoveryPath()); err == nil {
			if meta.State != StateRecovered {
				stale = append(stale, meta)
				continue
			}
			continue
		}

		store := artifact.NewStore(layout, nil)
		manifest, err := store.ReadManifest()
		if err != nil {
			continue
		}
		if manifest.Status != artifact.StatusRunning {
			continue
		}

		worktrees := make([]WorktreeRecord, 0, len(manifest.Agents))
		for _, a := range manifest.Agents {
			worktrees = append(worktrees, WorktreeRecord{
				Path:     a.WorktreePath,
				Branch:   a.Branch,
				AgentKey: a.AgentKey,
			})
		}
		stale = append(stale, Metadata{
			RunID:          runID,
			State:          StateInterrupted,
			Worktrees:      worktrees,
			LastCheckpoint: manifest.StartedAt,
		})
	}

	slog.Info("scanned for stale runs", "count", len(stale))
	return stale, nil
}

// CleanupRun force-removes every worktree and branch recorded for one
// stale run, marks its manifest failed, and writes a recovered checkpoint
// so a later scan doesn't pick it up again.
func (s *Service) CleanupRun(ctx context.Context, meta Metadata) error {
	slog.Info("cleaning up stale run", "run_id", meta.RunID)

	var cleanupErrs []error
	for _, wt := range meta.Worktrees {
		info := worktree.Info{Path: wt.Path, Branch: wt.Branch, RunID: meta.RunID, AgentKey: wt.AgentKey}
		if err := s.worktrees.ForceCleanup(ctx, info); err != nil {
			cleanupErrs = append(cleanupErrs, err)
		}
	}
	if len(cleanupErrs) > 0 {
		slog.Warn("worktree cleanup encountered errors", "run_id", meta.RunID, "errors", cleanupErrs)
	}

	layout := artifact.NewRunLayout(s.hydraRoot, meta.RunID)
	store := artifact.NewStore(layout, nil)
	if manifest, err := store.ReadManifest(); err == nil {
		manifest.Finish(artifact.StatusFailed)
		if err := store.WriteManifest(manifest); err != nil {
			slog.Warn("failed to update manifest during cleanup", "run_id", meta.RunID, "err", err)
		}
	}

	recovered := Metadata{
		RunID:          meta.RunID,
		State:          StateRecovered,
		Worktrees:      nil,
		LastCheckpoint: time.Now().UTC(),
	}
	return writeCheckpoint(layout.RecoveryPath(), recovered)
}

// CleanupAll scans for every stale run and cleans each one up, returning a
// summary report. A single run's cleanup failure is recorded in the
// report rather than aborting the sweep.
func (s *Service) CleanupAll(ctx context.Context) (CleanupReport, error) {
	stale, err := s.ScanStaleRuns()
	if err != nil {
		return CleanupReport{}, err
	}

	report := CleanupReport{}
	for _, meta := range stale {
		report.WorktreesRemoved += len(meta.Worktrees)
		report.BranchesDeleted += len(meta.Worktrees)

		if err := s.CleanupRun(ctx, meta); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("run %s: %v", meta.RunID, err))
			continue
		}
		report.RunsCleaned++
	}

	slog.Info("cleanup complete",
		"runs_cleaned", report.RunsCleaned,
		"worktrees_removed", report.WorktreesRemoved,
		"errors", len(report.Errors))
	return report, nil
}

// WriteCheckpoint persists a recovery checkpoint during an active run, so
// a crash mid-race still leaves a record of which worktrees belong to it
// even if the manifest itself was never finalized.
func (s *Service) WriteCheckpoint(meta Metadata) error {
	layout := artifact.NewRunLayout(s.hydraRoot, meta.RunID)
	if err := os.MkdirAll(layout.BaseDir(), 0o755); err != nil {
		return fmt.Errorf("create run directory: %w", err)
	}
	return writeCheckpoint(layout.RecoveryPath(), meta)
}

func writeCheckpoint(path string, meta Metadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal recovery checkpoint: %w", err)
	}
	data = append(data, '\n')
	if err := renameio.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write recovery checkpoint: %w", err)
	}
	return nil
}

func readCheckpoint(path string) (Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Metadata{}, err
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return Metadata{}, fmt.Errorf("parse recovery checkpoint: %w", err)
	}
	return meta, nil
}
