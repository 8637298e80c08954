// Package supervisor spawns and monitors agent CLI subprocesses: it enforces
// hard and idle timeouts, isolates each child in its own process group so a
// timeout or cancellation kills the whole subtree, and streams lifecycle and
// output events back to the caller.
package supervisor

import (
	"time"

	"github.com/phstella/hydra/internal/config"
)

// TimeoutKind distinguishes which timeout fired.
type TimeoutKind int

const (
	TimeoutHard TimeoutKind = iota
	TimeoutIdle
)

func (k TimeoutKind) String() string {
	switch k {
	case TimeoutHard:
		return "hard"
	case TimeoutIdle:
		return "idle"
	default:
		return "unknown"
	}
}

// Policy governs how long a supervised process may run and how much of its
// output is retained. Distinct from config.SupervisorConfig, which is the
// TOML-deserialized schema type.
type Policy struct {
	HardTimeout       time.Duration
	IdleTimeout       time.Duration
	OutputBufferBytes int
}

// DefaultPolicy matches the defaults a race falls back to when a run's
// config doesn't override them.
func DefaultPolicy() Policy {
	return Policy{
		HardTimeout:       1800 * time.Second,
		IdleTimeout:       300 * time.Second,
		OutputBufferBytes: 10 * 1024 * 1024,
	}
}

// PolicyFromConfig builds a Policy from the loaded Hydra configuration.
func PolicyFromConfig(cfg config.SupervisorConfig) Policy {
	return Policy{
		HardTimeout:       time.Duration(cfg.HardTimeoutSeconds) * time.Second,
		IdleTimeout:       time.Duration(cfg.IdleTimeoutSeconds) * time.Second,
		OutputBufferBytes: cfg.MaxOutputBytes,
	}
}
