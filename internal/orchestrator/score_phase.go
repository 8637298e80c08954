package orchestrator

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"os/exec"

	"github.com/google/uuid"

	"github.com/phstella/hydra/internal/artifact"
	"github.com/phstella/hydra/internal/scoring"
)

// scorePhase runs once every agent has reached a terminal state: it
// captures each agent's diff, runs the baseline build/test/lint commands
// once against the repository, runs the same commands again inside each
// agent's worktree, scores every agent across the five dimensions, and
// writes the ranking. A baseline or scoring failure is logged and
// downgrades to a best-effort partial ranking rather than failing the run
// outright — the race itself already completed.
func (o *Orchestrator) scorePhase(ctx context.Context, store *artifact.Store, layout *artifact.RunLayout, runID uuid.UUID, agentKeys []string, baseRef string, trackers map[string]*agentTracker) *scoring.RankingResult {
	for _, key := range agentKeys {
		captureDiff(ctx, trackers[key].worktreePath, baseRef, layout.AgentDiff(key))
	}

	if err := appendEvent(store, artifact.EventScoreStarted, "", map[string]any{"agents": agentKeys}); err != nil {
		slog.Warn("append score_started failed", "run_id", runID, "err", err)
	}

	baseline, err := scoring.CaptureBaseline(ctx, o.repoRoot, o.config.Scoring)
	if err != nil {
		slog.Warn("baseline capture failed, scoring without a baseline", "run_id", runID, "err", err)
	} else {
		if err := scoring.PersistBaseline(baseline, layout.BaselineResult()); err != nil {
			slog.Warn("failed to persist baseline", "run_id", runID, "err", err)
		}
		writeBaselineLogs(layout, baseline)
	}

	inputs := make([]scoring.AgentInput, 0, len(agentKeys))
	for _, key := range agentKeys {
		tr := trackers[key]
		input := scoring.AgentInput{AgentKey: key, Duration: tr.duration}

		capture, err := scoring.CaptureBaseline(ctx, tr.worktreePath, o.config.Scoring)
		if err != nil {
			slog.Warn("agent check capture failed", "run_id", runID, "agent", key, "err", err)
			inputs = append(inputs, input)
			continue
		}

		if capture.Build != nil {
			dim := scoring.ScoreBuild(*capture.Build)
			input.Build = &dim
			input.BuildPassed = capture.Build.Success
		}
		if capture.Test != nil {
			var baselineTest *scoring.TestResult
			if baseline.Test != nil {
				baselineTest = baseline.Test
			}
			dim := scoring.ScoreTests(baselineTest, *capture.Test)
			input.Tests = &dim
			input.TestRegressionPercent = testRegressionPercent(baselineTest, capture.Test)
		}
		if capture.Lint != nil {
			dim := scoring.ScoreLint(baseline.Lint, *capture.Lint)
			input.Lint = &dim
		}

		diffStats, err := scoring.ComputeDiffStats(ctx, tr.worktreePath, baseRef)
		if err != nil {
			slog.Warn("diff stats capture failed", "run_id", runID, "agent", key, "err", err)
		} else {
			dim := scoring.ScoreDiffScope(diffStats, o.config.Scoring)
			input.DiffScope = &dim
		}

		inputs = append(inputs, input)
	}

	ranking := scoring.RankAgents(runID, inputs, o.config.Scoring.Weights, o.config.Scoring.Gates)

	for i := range ranking.Rankings {
		agentScore := ranking.Rankings[i]
		if err := artifact.WriteJSON(layout.AgentScore(agentScore.AgentKey), agentScore); err != nil {
			slog.Warn("failed to write agent score", "run_id", runID, "agent", agentScore.AgentKey, "err", err)
		}
	}

	if err := appendEvent(store, artifact.EventScoreFinished, "", ranking); err != nil {
		slog.Warn("append score_finished failed", "run_id", runID, "err", err)
	}

	return &ranking
}

// testRegressionPercent mirrors scoring.ScoreTests' regression math to
// produce the percentage the mergeability gate compares against the
// configured threshold.
func testRegressionPercent(baseline *scoring.TestResult, agent *scoring.TestResult) float64 {
	if baseline == nil || agent == nil || baseline.Passed == 0 {
		return 0
	}
	regression := 0
	if baseline.Passed > agent.Passed {
		regression = int(baseline.Passed) - int(agent.Passed)
	}
	return float64(regression) / float64(baseline.Passed) * 100
}

// writeBaselineLogs dumps each captured command's combined stdout/stderr to
// its dedicated log path under the run's baseline directory.
func writeBaselineLogs(layout *artifact.RunLayout, baseline scoring.BaselineResult) {
	if baseline.Build != nil {
		writeLog(layout.BaselineBuildLog(), baseline.Build.Stdout, baseline.Build.Stderr)
	}
	if baseline.Test != nil {
		writeLog(layout.BaselineTestLog(), baseline.Test.Stdout, baseline.Test.Stderr)
	}
	if baseline.Lint != nil {
		writeLog(layout.BaselineLintLog(), baseline.Lint.Stdout, baseline.Lint.Stderr)
	}
}

func writeLog(path, stdout, stderr string) {
	content := stdout
	if stderr != "" {
		content += "\n--- stderr ---\n" + stderr
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		slog.Warn("failed to write baseline log", "path", path, "err", err)
	}
}

// captureDiff writes the textual diff between baseRef and the agent's
// working tree (tracked files, uncommitted edits included) to outPath. Best-effort: failures are logged, not fatal.
func captureDiff(ctx context.Context, worktreePath, baseRef, outPath string) {
	cmd := exec.CommandContext(ctx, "git", "diff", baseRef)
	cmd.Dir = worktreePath
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		slog.Warn("failed to capture agent diff", "worktree", worktreePath, "err", err)
		return
	}
	if err := os.WriteFile(outPath, out.Bytes(), 0o644); err != nil {
		slog.Warn("failed to write diff patch", "path", outPath, "err", err)
	}
}
