package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/phstella/hydra/internal/adapter"
	"github.com/phstella/hydra/internal/artifact"
	"github.com/phstella/hydra/internal/config"
	"github.com/phstella/hydra/internal/sandbox"
	"github.com/phstella/hydra/internal/scoring"
	"github.com/phstella/hydra/internal/supervisor"
	"github.com/phstella/hydra/internal/worktree"
)

// Orchestrator composes a complete run lifecycle over one or more agents
// racing the same task prompt in isolated worktrees.
type Orchestrator struct {
	config    *config.Config
	repoRoot  string
	hydraRoot string
	registry  *adapter.Registry
	worktrees *worktree.Service
}

// New returns an Orchestrator rooted at repoRoot, persisting run artifacts
// under hydraRoot (typically "<repoRoot>/.hydra") and placing worktrees
// under "<hydraRoot>/worktrees".
func New(cfg *config.Config, repoRoot, hydraRoot string, registry *adapter.Registry) *Orchestrator {
	return &Orchestrator{
		config:    cfg,
		repoRoot:  repoRoot,
		hydraRoot: hydraRoot,
		registry:  registry,
		worktrees: worktree.New(repoRoot, filepath.Join(hydraRoot, "worktrees")),
	}
}

// RaceRequest describes one race: a task prompt run against one or more
// agent keys, each in its own worktree branched from BaseRef.
type RaceRequest struct {
	AgentKeys  []string
	TaskPrompt string
	BaseRef    string
	// Unsafe disables the sandbox confinement to each agent's worktree.
	// Defaults to the configured Adapters.Unsafe when false.
	Unsafe bool
}

// AgentRunResult is one agent's outcome from a completed race.
type AgentRunResult struct {
	AgentKey     string
	Branch       string
	WorktreePath string
	Status       artifact.AgentStatus
	ExitCode     *int
	Score        *scoring.AgentScore
}

// RaceResult is the outcome of a completed race.
type RaceResult struct {
	RunID       uuid.UUID
	ArtifactDir string
	Status      artifact.RunStatus
	Agents      []AgentRunResult
	Ranking     *scoring.RankingResult
}

// agentTracker accumulates per-agent state while supervisor events stream
// in, and is consulted again during the scoring phase.
type agentTracker struct {
	branch        string
	worktreePath  string
	startedAt     time.Time
	completedAt   *time.Time
	status        artifact.AgentStatus
	exitCode      *int
	duration      time.Duration
	pendingParsed *adapter.AgentEvent
}

// Race composes and runs a complete race: worktree creation, adapter
// command construction, sandboxed parallel supervision, baseline capture,
// per-agent scoring, and worktree retention.
func (o *Orchestrator) Race(ctx context.Context, req RaceRequest) (*RaceResult, error) {
	if len(req.AgentKeys) == 0 {
		return nil, ErrNoAgents
	}
	baseRef := req.BaseRef
	if baseRef == "" {
		baseRef = "HEAD"
	}

	runID := uuid.New()
	startedAt := time.Now().UTC()
	slog.Info("starting race", "run_id", runID, "agents", req.AgentKeys)

	runtimes := make(map[string]adapter.Runtime, len(req.AgentKeys))
	for _, key := range req.AgentKeys {
		registered, ok := o.registry.Get(key)
		if !ok || !registered.IsAvailable() {
			return nil, fmt.Errorf("%w: %s", ErrAdapterNotReady, key)
		}
		runtime, err := o.registry.GetRuntime(key)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrAdapterNotReady, key, err)
		}
		runtimes[key] = runtime
	}

	layout := artifact.NewRunLayout(o.hydraRoot, runID)
	store := artifact.NewStore(layout, nil)
	if err := store.Create(req.AgentKeys); err != nil {
		return nil, fmt.Errorf("create run artifacts: %w", err)
	}

	promptHash := hashPrompt(req.TaskPrompt)
	manifest := artifact.NewManifest(runID, o.repoRoot, baseRef, promptHash)
	if err := store.WriteManifest(manifest); err != nil {
		return nil, fmt.Errorf("write initial manifest: %w", err)
	}

	if err := appendEvent(store, artifact.EventRunStarted, "", map[string]any{
		"task_prompt": req.TaskPrompt,
		"agents":      req.AgentKeys,
	}); err != nil {
		slog.Warn("failed to append run_started event", "run_id", runID, "err", err)
	}

	trackers := make(map[string]*agentTracker, len(req.AgentKeys))
	commands := make(map[string]adapter.AgentCommand, len(req.AgentKeys))

	unsafeMode := req.Unsafe || o.config.Adapters.Unsafe

	for _, key := range req.AgentKeys {
		wt, err := o.worktrees.Create(ctx, runID, key, baseRef)
		if err != nil {
			o.cleanupTrackedWorktrees(ctx, trackers)
			o.finalizeRunFailed(store, manifest, fmt.Sprintf("create worktree for %s: %v", key, err))
			return nil, fmt.Errorf("create worktree for %s: %w", key, err)
		}

		spawnReq := adapter.SpawnRequest{
			TaskPrompt:       req.TaskPrompt,
			WorktreePath:     wt.Path,
			TimeoutSeconds:   o.config.Supervisor.HardTimeoutSeconds,
			ForceEdit:        false,
			OutputJSONStream: true,
		}
		cmd := runtimes[key].BuildCommand(spawnReq)

		policy := sandboxPolicy(unsafeMode, wt.Path)
		check := policy.CheckPath(cmd.Cwd)
		if !check.Allowed {
			trackers[key] = &agentTracker{branch: wt.Branch, worktreePath: wt.Path}
			o.cleanupTrackedWorktrees(ctx, trackers)
			o.finalizeRunFailed(store, manifest, fmt.Sprintf("%s: %s is outside sandboxed root %s", ErrSandboxViolation, cmd.Cwd, wt.Path))
			return nil, fmt.Errorf("%w: %s is outside sandboxed root %s", ErrSandboxViolation, cmd.Cwd, wt.Path)
		}

		commands[key] = cmd
		trackers[key] = &agentTracker{
			branch:       wt.Branch,
			worktreePath: wt.Path,
			startedAt:    time.Now().UTC(),
			status:       artifact.AgentStatusRunning,
		}

		if err := appendEvent(store, artifact.EventAgentStarted, key, map[string]any{
			"program":  cmd.Program,
			"worktree": wt.Path,
			"branch":   wt.Branch,
		}); err != nil {
			slog.Warn("failed to append agent_started event", "run_id", runID, "agent", key, "err", err)
		}
	}

	ps := supervisor.NewParallelSupervisor()
	for _, key := range req.AgentKeys {
		ps.AddAgent(key, supervisor.PolicyFromConfig(o.config.Supervisor))
	}

	events, _, err := ps.SpawnAllWithParsers(ctx, commands, func(agentKey string) supervisor.LineParser {
		rt := runtimes[agentKey]
		return rt.ParseLine
	})
	if err != nil {
		o.cleanupTrackedWorktrees(ctx, trackers)
		o.finalizeRunFailed(store, manifest, fmt.Sprintf("spawn agents: %v", err))
		return nil, fmt.Errorf("spawn agents: %w", err)
	}

	for tagged := range events {
		o.handleSupervisorEvent(store, runID, tagged, trackers[tagged.AgentKey])
	}

	completedAt := time.Now().UTC()
	runStatus := aggregateRunStatus(trackers)

	agentEntries := make([]artifact.AgentEntry, 0, len(req.AgentKeys))
	for _, key := range req.AgentKeys {
		tr := trackers[key]
		agentEntries = append(agentEntries, artifact.AgentEntry{
			AgentKey:     key,
			Tier:         adapterTier(o.registry, key),
			Branch:       tr.branch,
			WorktreePath: tr.worktreePath,
			StartedAt:    tr.startedAt,
			CompletedAt:  tr.completedAt,
			Status:       tr.status,
		})
	}
	manifest.Agents = agentEntries
	manifest.Finish(runStatus)
	if err := store.WriteManifest(manifest); err != nil {
		slog.Warn("failed to write finalized manifest", "run_id", runID, "err", err)
	}

	ranking := o.scorePhase(ctx, store, layout, runID, req.AgentKeys, baseRef, trackers)

	terminalKind := artifact.EventRunCompleted
	if runStatus != artifact.StatusCompleted {
		terminalKind = artifact.EventRunFailed
	}
	if err := appendEvent(store, terminalKind, "", map[string]any{
		"status":   runStatus,
		"duration": completedAt.Sub(startedAt).String(),
	}); err != nil {
		slog.Warn("failed to append terminal event", "run_id", runID, "err", err)
	}

	result := &RaceResult{
		RunID:       runID,
		ArtifactDir: layout.BaseDir(),
		Status:      runStatus,
		Ranking:     ranking,
	}
	for _, key := range req.AgentKeys {
		tr := trackers[key]
		result.Agents = append(result.Agents, AgentRunResult{
			AgentKey:     key,
			Branch:       tr.branch,
			WorktreePath: tr.worktreePath,
			Status:       tr.status,
			ExitCode:     tr.exitCode,
			Score:        scoreForAgent(ranking, key),
		})
	}

	o.applyRetention(ctx, trackers)

	slog.Info("race finished", "run_id", runID, "status", runStatus)
	return result, nil
}

// finalizeRunFailed writes a failed manifest and a terminal event when a
// run cannot even start properly (worktree creation, sandbox check, spawn).
func (o *Orchestrator) finalizeRunFailed(store *artifact.Store, manifest *artifact.Manifest, errMsg string) {
	manifest.Finish(artifact.StatusFailed)
	if err := store.WriteManifest(manifest); err != nil {
		slog.Warn("failed to write failed manifest", "run_id", manifest.RunID, "err", err)
	}
	if err := appendEvent(store, artifact.EventRunFailed, "", map[string]any{"error": errMsg}); err != nil {
		slog.Warn("failed to append run_failed event", "run_id", manifest.RunID, "err", err)
	}
}

func sandboxPolicy(unsafeMode bool, worktreePath string) *sandbox.Policy {
	if unsafeMode {
		return sandbox.Unsafe(worktreePath)
	}
	return sandbox.Strict(worktreePath)
}

func adapterTier(registry *adapter.Registry, key string) artifact.Tier {
	registered, ok := registry.Get(key)
	if !ok {
		return artifact.TierExperimental
	}
	if registered.Tier == adapter.TierOne {
		return artifact.TierOne
	}
	return artifact.TierExperimental
}

func scoreForAgent(ranking *scoring.RankingResult, agentKey string) *scoring.AgentScore {
	if ranking == nil {
		return nil
	}
	for i := range ranking.Rankings {
		if ranking.Rankings[i].AgentKey == agentKey {
			return &ranking.Rankings[i]
		}
	}
	return nil
}

// aggregateRunStatus reduces every agent's terminal status to a single run
// status. Priority order (highest wins): timed_out, interrupted, failed,
// completed — so that a single stuck or cancelled agent in a multi-agent
// race is reflected even when its peers completed cleanly.
func aggregateRunStatus(trackers map[string]*agentTracker) artifact.RunStatus {
	sawTimedOut, sawCancelled, sawFailed := false, false, false
	for _, tr := range trackers {
		switch tr.status {
		case artifact.AgentStatusTimedOut:
			sawTimedOut = true
		case artifact.AgentStatusCancelled:
			sawCancelled = true
		case artifact.AgentStatusFailed:
			sawFailed = true
		}
	}
	switch {
	case sawTimedOut:
		return artifact.StatusTimedOut
	case sawCancelled:
		return artifact.StatusInterrupted
	case sawFailed:
		return artifact.StatusFailed
	default:
		return artifact.StatusCompleted
	}
}
