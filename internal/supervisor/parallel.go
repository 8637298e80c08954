package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/phstella/hydra/internal/adapter"
)

// TaggedEvent is an Event attributed to one agent in a parallel race.
type TaggedEvent struct {
	AgentKey string
	Event    Event
}

// Result is the terminal outcome of one agent's supervised run.
type Result struct {
	Status      EventKind // EventCompleted, EventFailed, or EventTimedOut
	ExitCode    int
	StdoutLines []string
	Error       string
}

// ParallelResult aggregates the outcome of racing every agent to completion.
type ParallelResult struct {
	Results      map[string]Result
	AllCompleted bool
	FailedAgents []string
}

// ParallelHandle lets a caller cancel one or all agents mid-race.
type ParallelHandle struct {
	mu      sync.Mutex
	handles map[string]*Handle
}

// CancelAgent cancels a single agent by key. A no-op if the agent already
// finished or was already cancelled.
func (h *ParallelHandle) CancelAgent(agentKey string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	handle, ok := h.handles[agentKey]
	if !ok {
		slog.Warn("no handle found for agent (already cancelled or completed)", "agent", agentKey)
		return
	}
	delete(h.handles, agentKey)
	handle.Cancel()
}

// CancelAll cancels every still-running agent.
func (h *ParallelHandle) CancelAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for key, handle := range h.handles {
		slog.Debug("cancelling agent", "agent", key)
		handle.Cancel()
	}
	h.handles = map[string]*Handle{}
}

// ParallelSupervisor races a set of agent commands against the same task,
// each under its own Policy.
type ParallelSupervisor struct {
	policies map[string]Policy
}

// NewParallelSupervisor returns an empty ParallelSupervisor.
func NewParallelSupervisor() *ParallelSupervisor {
	return &ParallelSupervisor{policies: map[string]Policy{}}
}

// AddAgent registers an agent key with the policy it should run under.
func (p *ParallelSupervisor) AddAgent(agentKey string, policy Policy) {
	p.policies[agentKey] = policy
}

// SpawnAll spawns every registered agent concurrently and returns a merged,
// agent-tagged event stream plus a handle for cancellation. The returned
// channel is closed once every agent has terminated. Every agent's output is
// parsed with the same parse func; use SpawnAllWithParsers when different
// agents need different line parsers (e.g. distinct adapters in a race).
func (p *ParallelSupervisor) SpawnAll(ctx context.Context, commands map[string]adapter.AgentCommand, parse LineParser) (<-chan TaggedEvent, *ParallelHandle, error) {
	return p.spawnAll(ctx, commands, func(string) LineParser { return parse })
}

// SpawnAllWithParsers is SpawnAll, but resolves each agent's LineParser via
// parserFor(agentKey) — used when agents are built from different adapters
// whose output formats differ.
func (p *ParallelSupervisor) SpawnAllWithParsers(ctx context.Context, commands map[string]adapter.AgentCommand, parserFor func(agentKey string) LineParser) (<-chan TaggedEvent, *ParallelHandle, error) {
	return p.spawnAll(ctx, commands, parserFor)
}

func (p *ParallelSupervisor) spawnAll(ctx context.Context, commands map[string]adapter.AgentCommand, parserFor func(string) LineParser) (<-chan TaggedEvent, *ParallelHandle, error) {
	if len(p.policies) == 0 {
		return nil, nil, ErrNoAgentsConfigured
	}

	merged := make(chan TaggedEvent, 256)
	handles := &ParallelHandle{handles: map[string]*Handle{}}

	var wg sync.WaitGroup
	for key, policy := range p.policies {
		cmd, ok := commands[key]
		if !ok {
			return nil, nil, fmt.Errorf("no command provided for agent %q", key)
		}

		events, handle, err := Supervise(ctx, cmd, policy, parserFor(key))
		if err != nil {
			return nil, nil, fmt.Errorf("spawn agent %q: %w", key, err)
		}
		handles.handles[key] = handle

		wg.Add(1)
		go func(agentKey string, events <-chan Event) {
			defer wg.Done()
			for evt := range events {
				merged <- TaggedEvent{AgentKey: agentKey, Event: evt}
			}
		}(key, events)
	}

	go func() {
		wg.Wait()
		close(merged)
	}()

	slog.Info("spawned all agents in parallel", "agent_count", len(p.policies))
	return merged, handles, nil
}

// RunAllToCompletion runs every registered agent to completion and returns
// the aggregated result set. One agent's failure or timeout never prevents
// the others from running to completion.
func (p *ParallelSupervisor) RunAllToCompletion(ctx context.Context, commands map[string]adapter.AgentCommand, parse LineParser) (ParallelResult, error) {
	return p.runAllToCompletion(ctx, commands, func(string) LineParser { return parse })
}

// RunAllToCompletionWithParsers is RunAllToCompletion, resolving each
// agent's LineParser via parserFor(agentKey).
func (p *ParallelSupervisor) RunAllToCompletionWithParsers(ctx context.Context, commands map[string]adapter.AgentCommand, parserFor func(agentKey string) LineParser) (ParallelResult, error) {
	return p.runAllToCompletion(ctx, commands, parserFor)
}

func (p *ParallelSupervisor) runAllToCompletion(ctx context.Context, commands map[string]adapter.AgentCommand, parserFor func(string) LineParser) (ParallelResult, error) {
	if len(p.policies) == 0 {
		return ParallelResult{}, ErrNoAgentsConfigured
	}

	type outcome struct {
		key    string
		result Result
		err    error
	}

	outcomes := make(chan outcome, len(p.policies))
	var wg sync.WaitGroup

	for key, policy := range p.policies {
		cmd, ok := commands[key]
		if !ok {
			return ParallelResult{}, fmt.Errorf("no command provided for agent %q", key)
		}

		wg.Add(1)
		go func(agentKey string, cmd adapter.AgentCommand, policy Policy) {
			defer wg.Done()
			result, err := runToCompletion(ctx, cmd, policy, parserFor(agentKey))
			outcomes <- outcome{key: agentKey, result: result, err: err}
		}(key, cmd, policy)
	}

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	results := make(map[string]Result)
	var failed []string

	for o := range outcomes {
		if o.err != nil {
			slog.Warn("agent failed to execute", "agent", o.key, "err", o.err)
			failed = append(failed, o.key)
			continue
		}
		if o.result.Status != EventCompleted {
			failed = append(failed, o.key)
		}
		results[o.key] = o.result
	}

	allCompleted := len(failed) == 0 && len(results) == len(p.policies)

	slog.Info("parallel execution finished", "total", len(p.policies), "completed", len(results), "failed", len(failed))

	return ParallelResult{Results: results, AllCompleted: allCompleted, FailedAgents: failed}, nil
}

func runToCompletion(ctx context.Context, cmd adapter.AgentCommand, policy Policy, parse LineParser) (Result, error) {
	events, _, err := Supervise(ctx, cmd, policy, parse)
	if err != nil {
		return Result{}, err
	}

	var result Result
	for evt := range events {
		switch evt.Kind {
		case EventStdout:
			result.StdoutLines = append(result.StdoutLines, evt.Line)
		case EventCompleted:
			result.Status = EventCompleted
			result.ExitCode = evt.ExitCode
		case EventFailed:
			result.Status = EventFailed
			result.Error = evt.Error
		case EventTimedOut:
			result.Status = EventTimedOut
			result.Error = fmt.Sprintf("%s timeout", evt.TimeoutKind)
		}
	}
	return result, nil
}
