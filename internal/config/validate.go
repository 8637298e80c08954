package config

import "errors"

// Validation errors, per spec.md §7's Configuration taxonomy.
var (
	ErrWeightsAllZero          = errors.New("config: scoring weights must not all be zero")
	ErrRegressionOutOfRange    = errors.New("config: max_test_regression_percent must be in [0, 100]")
	ErrHardTimeoutNotPositive  = errors.New("config: supervisor.hard_timeout_seconds must be > 0")
	ErrIdleTimeoutNotPositive  = errors.New("config: supervisor.idle_timeout_seconds must be > 0")
	ErrHardNotGreaterThanIdle  = errors.New("config: supervisor.hard_timeout_seconds must exceed idle_timeout_seconds")
	ErrInvalidRetention        = errors.New("config: worktree.retention must be one of none, failed, all")
	ErrBudgetCapNotPositive    = errors.New("config: budget caps must be positive when present")
)

// Validate checks a Config against spec.md §6's validation rules.
func Validate(cfg *Config) error {
	w := cfg.Scoring.Weights
	if w.Build == 0 && w.Tests == 0 && w.Lint == 0 && w.DiffScope == 0 && w.Speed == 0 {
		return ErrWeightsAllZero
	}

	if cfg.Scoring.Gates.MaxTestRegressionPercent < 0 || cfg.Scoring.Gates.MaxTestRegressionPercent > 100 {
		return ErrRegressionOutOfRange
	}

	if cfg.Supervisor.HardTimeoutSeconds <= 0 {
		return ErrHardTimeoutNotPositive
	}
	if cfg.Supervisor.IdleTimeoutSeconds <= 0 {
		return ErrIdleTimeoutNotPositive
	}
	if cfg.Supervisor.HardTimeoutSeconds <= cfg.Supervisor.IdleTimeoutSeconds {
		return ErrHardNotGreaterThanIdle
	}

	switch cfg.Worktree.Retention {
	case "none", "failed", "all":
	default:
		return ErrInvalidRetention
	}

	if cfg.Budget.MaxTokens < 0 || cfg.Budget.MaxCostUSD < 0 {
		return ErrBudgetCapNotPositive
	}

	return nil
}
