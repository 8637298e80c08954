package adapter

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/phstella/hydra/internal/worker"
)

// ErrAdapterNotFound is returned when a key has no registered adapter.
var ErrAdapterNotFound = errors.New("adapter not found")

// Registered is one adapter's registry entry: its tier, its probe
// result, and (if the probe succeeded) its runtime.
type Registered struct {
	Key         string
	Tier        Tier
	ProbeResult ProbeResult
	runtime     Runtime
}

// IsAvailable reports whether this adapter can be used in a run.
func (r Registered) IsAvailable() bool {
	return r.ProbeResult.Status == StatusReady || r.ProbeResult.Status == StatusExperimentalReady
}

// Registry is the central adapter discovery and tier-policy gate.
type Registry struct {
	adapters          []Registered
	allowExperimental bool
}

// NewRegistry probes every known adapter using real command execution.
func NewRegistry(allowExperimental bool) *Registry {
	return NewRegistryWithRunner(allowExperimental, RealCommandRunner{})
}

// NewRegistryWithRunner probes every known adapter using runner — used in
// tests to avoid invoking real binaries. The three probes shell out to
// independent binaries, so they run concurrently through a worker pool
// rather than blocking on each other in sequence.
func NewRegistryWithRunner(allowExperimental bool, runner CommandRunner) *Registry {
	keys := []string{"claude", "codex", "cursor-agent"}

	pool := worker.NewPool[Registered](len(keys))
	results := pool.Process(keys, func(key string) (Registered, error) {
		return probeAdapter(key, runner), nil
	})

	// Process preserves input order, so results line up with keys.
	adapters := make([]Registered, len(results))
	for i, r := range results {
		adapters[i] = r.Value
		slog.Info("probed adapter", "adapter", adapters[i].Key, "status", adapters[i].ProbeResult.Status)
	}

	return &Registry{adapters: adapters, allowExperimental: allowExperimental}
}

// probeAdapter runs the probe for one adapter key and builds its registry
// entry, including the runtime if the probe came back usable.
func probeAdapter(key string, runner CommandRunner) Registered {
	switch key {
	case "claude":
		result := NewClaudeProbe(runner).Probe()
		var rt Runtime
		if result.Status == StatusReady {
			rt = ClaudeAdapter{}
		}
		return Registered{Key: "claude", Tier: TierOne, ProbeResult: result, runtime: rt}
	case "codex":
		result := NewCodexProbe(runner).Probe()
		var rt Runtime
		if result.Status == StatusReady {
			rt = CodexAdapter{}
		}
		return Registered{Key: "codex", Tier: TierOne, ProbeResult: result, runtime: rt}
	case "cursor-agent":
		result := NewCursorProbe(runner).Probe()
		var rt Runtime
		if result.Status == StatusExperimentalReady {
			rt = CursorAdapter{}
		}
		return Registered{Key: "cursor-agent", Tier: TierExperimental, ProbeResult: result, runtime: rt}
	default:
		return Registered{Key: key, Tier: TierExperimental, ProbeResult: MissingResult(key, TierExperimental)}
	}
}

// Available returns adapters usable for a run, respecting tier policy:
// Tier-1 adapters must be Ready; Experimental adapters must be
// ExperimentalReady AND allowExperimental must be set.
func (r *Registry) Available() []Registered {
	var out []Registered
	for _, a := range r.adapters {
		switch a.Tier {
		case TierOne:
			if a.ProbeResult.Status == StatusReady {
				out = append(out, a)
			}
		case TierExperimental:
			if r.allowExperimental && a.ProbeResult.Status == StatusExperimentalReady {
				out = append(out, a)
			}
		}
	}
	return out
}

// Get returns the registered entry for key, if any.
func (r *Registry) Get(key string) (Registered, bool) {
	for _, a := range r.adapters {
		if a.Key == key {
			return a, true
		}
	}
	return Registered{}, false
}

// GetRuntime returns the runtime for key, enforcing tier policy.
func (r *Registry) GetRuntime(key string) (Runtime, error) {
	a, ok := r.Get(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAdapterNotFound, key)
	}
	if a.Tier == TierExperimental && !r.allowExperimental {
		return nil, fmt.Errorf("adapter %q is experimental and experimental adapters are not enabled", key)
	}
	if a.runtime == nil {
		return nil, fmt.Errorf("adapter %q is not available", key)
	}
	return a.runtime, nil
}

// All returns every registered adapter, including unavailable ones.
func (r *Registry) All() []Registered {
	return r.adapters
}

// Tier1Ready reports whether every Tier-1 adapter is Ready.
func (r *Registry) Tier1Ready() bool {
	for _, a := range r.adapters {
		if a.Tier == TierOne && a.ProbeResult.Status != StatusReady {
			return false
		}
	}
	return true
}
