// Package artifact implements Hydra's on-disk, append-only store of
// per-run state: the deterministic directory layout, the event log, the
// manifest, health metrics, and retention sweeps.
package artifact

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// RunLayout is a deterministic function of (hydraRoot, runID): every path a
// run's artifacts live at is derived, never stored.
//
//	<hydra_root>/runs/<run_id>/
//	  manifest.json
//	  events.jsonl
//	  agents/<agent_key>/{stdout.log, stderr.log, diff.patch, score.json}
//	  baseline/{build.log, test.log, lint.log, baseline.json}
//	  merge_report.json
//	  recovery.json
type RunLayout struct {
	runID     uuid.UUID
	baseDir   string
}

// NewRunLayout returns the layout for runID under hydraRoot.
func NewRunLayout(hydraRoot string, runID uuid.UUID) *RunLayout {
	return &RunLayout{
		runID:   runID,
		baseDir: filepath.Join(hydraRoot, "runs", runID.String()),
	}
}

func (l *RunLayout) RunID() uuid.UUID { return l.runID }
func (l *RunLayout) BaseDir() string  { return l.baseDir }

func (l *RunLayout) ManifestPath() string     { return filepath.Join(l.baseDir, "manifest.json") }
func (l *RunLayout) EventsPath() string       { return filepath.Join(l.baseDir, "events.jsonl") }
func (l *RunLayout) MergeReportPath() string  { return filepath.Join(l.baseDir, "merge_report.json") }
func (l *RunLayout) RecoveryPath() string     { return filepath.Join(l.baseDir, "recovery.json") }

func (l *RunLayout) AgentDir(agentKey string) string {
	return filepath.Join(l.baseDir, "agents", agentKey)
}
func (l *RunLayout) AgentStdout(agentKey string) string {
	return filepath.Join(l.AgentDir(agentKey), "stdout.log")
}
func (l *RunLayout) AgentStderr(agentKey string) string {
	return filepath.Join(l.AgentDir(agentKey), "stderr.log")
}
func (l *RunLayout) AgentDiff(agentKey string) string {
	return filepath.Join(l.AgentDir(agentKey), "diff.patch")
}
func (l *RunLayout) AgentScore(agentKey string) string {
	return filepath.Join(l.AgentDir(agentKey), "score.json")
}

func (l *RunLayout) BaselineDir() string       { return filepath.Join(l.baseDir, "baseline") }
func (l *RunLayout) BaselineBuildLog() string  { return filepath.Join(l.BaselineDir(), "build.log") }
func (l *RunLayout) BaselineTestLog() string   { return filepath.Join(l.BaselineDir(), "test.log") }
func (l *RunLayout) BaselineLintLog() string   { return filepath.Join(l.BaselineDir(), "lint.log") }
func (l *RunLayout) BaselineResult() string    { return filepath.Join(l.BaselineDir(), "baseline.json") }

// CreateDirs materializes the full directory tree for this run, failing if
// the run directory already exists.
func (l *RunLayout) CreateDirs(agentKeys []string) error {
	if _, err := os.Stat(l.baseDir); err == nil {
		return ErrRunAlreadyExists
	}

	if err := os.MkdirAll(l.baseDir, 0o755); err != nil {
		return err
	}
	if err := os.MkdirAll(l.BaselineDir(), 0o755); err != nil {
		return err
	}
	for _, key := range agentKeys {
		if err := os.MkdirAll(l.AgentDir(key), 0o755); err != nil {
			return err
		}
	}
	return nil
}

// Cleanup removes this run's entire directory tree.
func (l *RunLayout) Cleanup() error {
	if _, err := os.Stat(l.baseDir); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return os.RemoveAll(l.baseDir)
}

// ListRuns enumerates all run IDs that exist under hydraRoot.
func ListRuns(hydraRoot string) ([]uuid.UUID, error) {
	runsDir := filepath.Join(hydraRoot, "runs")
	entries, err := os.ReadDir(runsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var ids []uuid.UUID
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if id, err := uuid.Parse(entry.Name()); err == nil {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
