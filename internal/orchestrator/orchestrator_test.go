package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/phstella/hydra/internal/adapter"
	"github.com/phstella/hydra/internal/artifact"
	"github.com/phstella/hydra/internal/config"
	"github.com/phstella/hydra/internal/scoring"
)

// allReadyRunner implements adapter.CommandRunner with scripted responses so
// a registry can report the claude adapter as ready without a real binary.
type allReadyRunner struct{}

func newAllReadyRunner() *allReadyRunner { return &allReadyRunner{} }

func (r *allReadyRunner) Run(program string, args ...string) (string, string, bool, error) {
	cmd := program
	for _, a := range args {
		cmd += " " + a
	}
	switch cmd {
	case "which claude":
		return "/usr/bin/claude\n", "", true, nil
	case "claude --version":
		return "claude 1.0.0\n", "", true, nil
	case "claude --help":
		return "Usage: claude\n  -p, --print\n  --output-format\n  --resume\n", "", true, nil
	default:
		return "", "", false, fmt.Errorf("no mock for: %s", cmd)
	}
}

func scoringTestResult(passed uint32) scoring.TestResult {
	return scoring.TestResult{Passed: passed, Total: passed}
}

func TestHashPromptDeterministic(t *testing.T) {
	a := hashPrompt("fix the bug in the parser")
	b := hashPrompt("fix the bug in the parser")
	if a != b {
		t.Fatalf("expected identical hashes, got %q and %q", a, b)
	}
	if len(a) != 16 {
		t.Fatalf("expected a 16-char hex digest, got %q", a)
	}
}

func TestHashPromptDiffersOnInput(t *testing.T) {
	if hashPrompt("one task") == hashPrompt("a different task") {
		t.Fatal("expected different prompts to hash differently")
	}
}

func TestToHex16PadsLeadingZeroes(t *testing.T) {
	got := toHex16(0x1f)
	if got != "000000000000001f" {
		t.Fatalf("got %q", got)
	}
}

func TestAggregateRunStatusAllCompleted(t *testing.T) {
	trackers := map[string]*agentTracker{
		"claude": {status: artifact.AgentStatusCompleted},
		"codex":  {status: artifact.AgentStatusCompleted},
	}
	if got := aggregateRunStatus(trackers); got != artifact.StatusCompleted {
		t.Fatalf("got %v", got)
	}
}

func TestAggregateRunStatusFailurePriority(t *testing.T) {
	cases := []struct {
		name     string
		statuses []artifact.AgentStatus
		want     artifact.RunStatus
	}{
		{"failed beats completed", []artifact.AgentStatus{artifact.AgentStatusCompleted, artifact.AgentStatusFailed}, artifact.StatusFailed},
		{"cancelled beats failed", []artifact.AgentStatus{artifact.AgentStatusFailed, artifact.AgentStatusCancelled}, artifact.StatusInterrupted},
		{"timed_out beats everything", []artifact.AgentStatus{artifact.AgentStatusTimedOut, artifact.AgentStatusCancelled, artifact.AgentStatusFailed}, artifact.StatusTimedOut},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			trackers := map[string]*agentTracker{}
			for i, s := range tc.statuses {
				trackers[fmt.Sprintf("agent-%d", i)] = &agentTracker{status: s}
			}
			if got := aggregateRunStatus(trackers); got != tc.want {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestShouldRemoveWorktreeRetentionNone(t *testing.T) {
	if !shouldRemoveWorktree("none", artifact.AgentStatusCompleted) {
		t.Fatal("expected removal under retention=none")
	}
	if !shouldRemoveWorktree("none", artifact.AgentStatusFailed) {
		t.Fatal("expected removal under retention=none")
	}
}

func TestShouldRemoveWorktreeRetentionAll(t *testing.T) {
	if shouldRemoveWorktree("all", artifact.AgentStatusCompleted) {
		t.Fatal("expected no removal under retention=all")
	}
	if shouldRemoveWorktree("all", artifact.AgentStatusFailed) {
		t.Fatal("expected no removal under retention=all")
	}
}

func TestShouldRemoveWorktreeRetentionFailed(t *testing.T) {
	if !shouldRemoveWorktree("failed", artifact.AgentStatusCompleted) {
		t.Fatal("expected completed worktrees removed under retention=failed")
	}
	if shouldRemoveWorktree("failed", artifact.AgentStatusFailed) {
		t.Fatal("expected failed worktrees kept under retention=failed")
	}
	if shouldRemoveWorktree("failed", artifact.AgentStatusTimedOut) {
		t.Fatal("expected timed_out worktrees kept under retention=failed")
	}
}

func TestShouldRemoveWorktreeUnrecognizedDefaultsToFailedPolicy(t *testing.T) {
	if shouldRemoveWorktree("bogus", artifact.AgentStatusFailed) {
		t.Fatal("expected unrecognized retention to behave like 'failed'")
	}
}

func TestTestRegressionPercentNoBaseline(t *testing.T) {
	agent := scoringTestResult(10)
	if got := testRegressionPercent(nil, &agent); got != 0 {
		t.Fatalf("got %v", got)
	}
}

func TestTestRegressionPercentRegressed(t *testing.T) {
	baseline := scoringTestResult(10)
	agent := scoringTestResult(8)
	got := testRegressionPercent(&baseline, &agent)
	if got != 20 {
		t.Fatalf("got %v, want 20", got)
	}
}

func TestTestRegressionPercentImproved(t *testing.T) {
	baseline := scoringTestResult(8)
	agent := scoringTestResult(10)
	if got := testRegressionPercent(&baseline, &agent); got != 0 {
		t.Fatalf("got %v, want 0 (no regression when agent passes more)", got)
	}
}

func TestScoreForAgentNilRanking(t *testing.T) {
	if got := scoreForAgent(nil, "claude"); got != nil {
		t.Fatalf("got %v", got)
	}
}

func TestAdapterTierUnregisteredDefaultsToExperimental(t *testing.T) {
	registry := adapter.NewRegistryWithRunner(true, newAllReadyRunner())
	if got := adapterTier(registry, "nonexistent"); got != artifact.TierExperimental {
		t.Fatalf("got %v", got)
	}
}

func TestSandboxPolicyUnsafeVsStrict(t *testing.T) {
	dir := t.TempDir()
	strict := sandboxPolicy(false, dir)
	if strict.CheckPath(filepath.Join(dir, "..", "outside")).Allowed {
		t.Fatal("expected strict policy to reject paths outside the worktree")
	}
	unsafePolicy := sandboxPolicy(true, dir)
	if !unsafePolicy.CheckPath(filepath.Join(dir, "..", "outside")).Allowed {
		t.Fatal("expected unsafe policy to allow any path")
	}
}

func TestRaceRequiresAtLeastOneAgent(t *testing.T) {
	o := New(config.Default(), t.TempDir(), t.TempDir(), adapter.NewRegistryWithRunner(false, newAllReadyRunner()))
	_, err := o.Race(context.Background(), RaceRequest{})
	if !errors.Is(err, ErrNoAgents) {
		t.Fatalf("got %v", err)
	}
}

func TestRaceFailsForUnknownAgent(t *testing.T) {
	root := t.TempDir()
	initBareGitRepo(t, root)
	o := New(config.Default(), root, filepath.Join(root, ".hydra"), adapter.NewRegistryWithRunner(false, newAllReadyRunner()))
	_, err := o.Race(context.Background(), RaceRequest{AgentKeys: []string{"nonexistent"}, TaskPrompt: "do the thing"})
	if !errors.Is(err, ErrAdapterNotReady) {
		t.Fatalf("got %v", err)
	}
}

// TestRaceFailsWhenAgentBinaryCannotBeSpawned exercises the full setup path
// (worktree creation, sandbox check, manifest/event writes) against a real
// temporary git repository, using a mocked probe so the claude adapter
// reports itself ready. The claude binary itself is never actually on the
// test machine, so the parallel supervisor's spawn step fails — and the run
// is expected to finalize as failed rather than panic or hang.
func TestRaceFailsWhenAgentBinaryCannotBeSpawned(t *testing.T) {
	requireGit(t)
	root := t.TempDir()
	initBareGitRepo(t, root)

	registry := adapter.NewRegistryWithRunner(false, newAllReadyRunner())
	o := New(config.Default(), root, filepath.Join(root, ".hydra"), registry)

	result, err := o.Race(context.Background(), RaceRequest{
		AgentKeys:  []string{"claude"},
		TaskPrompt: "add a README",
	})
	if err == nil {
		t.Fatalf("expected an error since the claude binary does not exist, got result=%+v", result)
	}
}

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
}

func initBareGitRepo(t *testing.T, dir string) {
	t.Helper()
	runGit(t, dir, "init")
	runGit(t, dir, "config", "user.email", "test@hydra.dev")
	runGit(t, dir, "config", "user.name", "Hydra Test")
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("hello\n"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	runGit(t, dir, "add", ".")
	runGit(t, dir, "commit", "-m", "initial")
}

func runGit(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git %v: %v (%s)", args, err, out)
	}
}
