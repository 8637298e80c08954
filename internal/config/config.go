// Package config provides configuration management for Hydra.
// Configuration is loaded from (highest to lowest priority):
//  1. Command-line flags
//  2. Environment variables (HYDRA_*)
//  3. Project config (.hydra.toml in the repository root)
//  4. Home config (~/.hydra/config.toml)
//  5. Defaults
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config holds all Hydra configuration.
type Config struct {
	Scoring   ScoringConfig   `toml:"scoring"`
	Worktree  WorktreeConfig  `toml:"worktree"`
	Supervisor SupervisorConfig `toml:"supervisor"`
	Budget    BudgetConfig    `toml:"budget"`
	Adapters  AdaptersConfig  `toml:"adapters"`
}

// ScoringConfig controls baseline command resolution and the ranking engine.
type ScoringConfig struct {
	// Profile selects default build/test/lint commands ("rust", "js-node", "python").
	Profile string `toml:"profile"`

	// BuildCmd/TestCmd/LintCmd override the profile defaults when non-empty.
	BuildCmd string `toml:"build_cmd"`
	TestCmd  string `toml:"test_cmd"`
	LintCmd  string `toml:"lint_cmd"`

	Weights ScoringWeights `toml:"weights"`
	Gates   ScoringGates   `toml:"gates"`

	// DiffScope soft caps, in files and total line churn.
	MaxFilesSoft int      `toml:"max_files_soft"`
	MaxChurnSoft int      `toml:"max_churn_soft"`
	ProtectedPaths []string `toml:"protected_paths"`

	// TimeoutPerCheckSeconds bounds each baseline build/test/lint command.
	TimeoutPerCheckSeconds int `toml:"timeout_per_check_seconds"`
}

// ScoringWeights are the per-dimension weights used for the composite score.
// Dimensions with no value present for an agent are excluded from both the
// numerator and the denominator (renormalization) rather than counted as zero.
type ScoringWeights struct {
	Build     int `toml:"build"`
	Tests     int `toml:"tests"`
	Lint      int `toml:"lint"`
	DiffScope int `toml:"diff_scope"`
	Speed     int `toml:"speed"`
}

// ScoringGates are mergeability gates applied independently of composite score.
type ScoringGates struct {
	RequireBuildPass        bool    `toml:"require_build_pass"`
	MaxTestRegressionPercent float64 `toml:"max_test_regression_percent"`
}

// WorktreeConfig controls the worktree service's retention behavior.
type WorktreeConfig struct {
	// Retention is one of "none", "failed", "all".
	Retention string `toml:"retention"`
	// MaxAgeDays is loaded and merged like the other fields, but worktree
	// retention does not consult it; only Retention decides what is kept.
	MaxAgeDays int `toml:"max_age_days"`
}

// SupervisorConfig controls per-agent process supervision.
type SupervisorConfig struct {
	HardTimeoutSeconds int `toml:"hard_timeout_seconds"`
	IdleTimeoutSeconds int `toml:"idle_timeout_seconds"`
	MaxOutputBytes     int `toml:"max_output_bytes"`
}

// BudgetConfig carries optional cost/token caps (peripheral capability).
// The caps are loaded and merged; the orchestrator neither reads, logs nor
// enforces them.
type BudgetConfig struct {
	MaxTokens    int     `toml:"max_tokens"`
	MaxCostUSD   float64 `toml:"max_cost_usd"`
}

// AdaptersConfig controls adapter opt-in policy.
type AdaptersConfig struct {
	AllowExperimental bool `toml:"allow_experimental"`
	Unsafe            bool `toml:"unsafe"`
}

const (
	defaultProfile            = "rust"
	defaultRetention          = "failed"
	defaultHardTimeoutSeconds = 1800
	defaultIdleTimeoutSeconds = 300
	defaultMaxOutputBytes     = 10 * 1024 * 1024
	defaultMaxFilesSoft       = 20
	defaultMaxChurnSoft       = 800
	defaultTimeoutPerCheckSeconds = 600
)

// Default returns Hydra's default configuration.
func Default() *Config {
	return &Config{
		Scoring: ScoringConfig{
			Profile: defaultProfile,
			Weights: ScoringWeights{Build: 30, Tests: 30, Lint: 15, DiffScope: 15, Speed: 10},
			Gates: ScoringGates{
				RequireBuildPass:         true,
				MaxTestRegressionPercent: 10,
			},
			MaxFilesSoft: defaultMaxFilesSoft,
			MaxChurnSoft: defaultMaxChurnSoft,
			TimeoutPerCheckSeconds: defaultTimeoutPerCheckSeconds,
		},
		Worktree: WorktreeConfig{
			Retention: defaultRetention,
		},
		Supervisor: SupervisorConfig{
			HardTimeoutSeconds: defaultHardTimeoutSeconds,
			IdleTimeoutSeconds: defaultIdleTimeoutSeconds,
			MaxOutputBytes:     defaultMaxOutputBytes,
		},
	}
}

// Load loads configuration with proper precedence: flags > env > project > home > defaults.
func Load(repoRoot string, flagOverrides *Config) (*Config, error) {
	cfg := Default()

	if homeCfg, err := loadFromPath(homeConfigPath()); err != nil {
		return nil, fmt.Errorf("loading home config: %w", err)
	} else if homeCfg != nil {
		cfg = merge(cfg, homeCfg)
	}

	if projectCfg, err := loadFromPath(projectConfigPath(repoRoot)); err != nil {
		return nil, fmt.Errorf("loading project config: %w", err)
	} else if projectCfg != nil {
		cfg = merge(cfg, projectCfg)
	}

	cfg = applyEnv(cfg)

	if flagOverrides != nil {
		cfg = merge(cfg, flagOverrides)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func homeConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".hydra", "config.toml")
}

func projectConfigPath(repoRoot string) string {
	if override := strings.TrimSpace(os.Getenv("HYDRA_CONFIG")); override != "" {
		return override
	}
	if repoRoot == "" {
		var err error
		repoRoot, err = os.Getwd()
		if err != nil {
			return ""
		}
	}
	return filepath.Join(repoRoot, ".hydra.toml")
}

func loadFromPath(path string) (*Config, error) {
	if path == "" {
		return nil, nil
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) *Config {
	if v := os.Getenv("HYDRA_SCORING_PROFILE"); v != "" {
		cfg.Scoring.Profile = v
	}
	if v := os.Getenv("HYDRA_WORKTREE_RETENTION"); v != "" {
		cfg.Worktree.Retention = v
	}
	if v := os.Getenv("HYDRA_SUPERVISOR_HARD_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Supervisor.HardTimeoutSeconds = n
		}
	}
	if v := os.Getenv("HYDRA_SUPERVISOR_IDLE_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Supervisor.IdleTimeoutSeconds = n
		}
	}
	if v := os.Getenv("HYDRA_ADAPTERS_ALLOW_EXPERIMENTAL"); v == "true" || v == "1" {
		cfg.Adapters.AllowExperimental = true
	}
	if v := os.Getenv("HYDRA_ADAPTERS_UNSAFE"); v == "true" || v == "1" {
		cfg.Adapters.Unsafe = true
	}
	return cfg
}

// merge merges src into dst, with non-zero src values taking precedence.
func merge(dst, src *Config) *Config {
	if src.Scoring.Profile != "" {
		dst.Scoring.Profile = src.Scoring.Profile
	}
	if src.Scoring.BuildCmd != "" {
		dst.Scoring.BuildCmd = src.Scoring.BuildCmd
	}
	if src.Scoring.TestCmd != "" {
		dst.Scoring.TestCmd = src.Scoring.TestCmd
	}
	if src.Scoring.LintCmd != "" {
		dst.Scoring.LintCmd = src.Scoring.LintCmd
	}
	if w := src.Scoring.Weights; w != (ScoringWeights{}) {
		dst.Scoring.Weights = w
	}
	if src.Scoring.Gates.MaxTestRegressionPercent != 0 {
		dst.Scoring.Gates.MaxTestRegressionPercent = src.Scoring.Gates.MaxTestRegressionPercent
	}
	dst.Scoring.Gates.RequireBuildPass = src.Scoring.Gates.RequireBuildPass || dst.Scoring.Gates.RequireBuildPass
	if src.Scoring.MaxFilesSoft != 0 {
		dst.Scoring.MaxFilesSoft = src.Scoring.MaxFilesSoft
	}
	if src.Scoring.MaxChurnSoft != 0 {
		dst.Scoring.MaxChurnSoft = src.Scoring.MaxChurnSoft
	}
	if len(src.Scoring.ProtectedPaths) > 0 {
		dst.Scoring.ProtectedPaths = src.Scoring.ProtectedPaths
	}
	if src.Scoring.TimeoutPerCheckSeconds != 0 {
		dst.Scoring.TimeoutPerCheckSeconds = src.Scoring.TimeoutPerCheckSeconds
	}

	if src.Worktree.Retention != "" {
		dst.Worktree.Retention = src.Worktree.Retention
	}
	if src.Worktree.MaxAgeDays != 0 {
		dst.Worktree.MaxAgeDays = src.Worktree.MaxAgeDays
	}

	if src.Supervisor.HardTimeoutSeconds != 0 {
		dst.Supervisor.HardTimeoutSeconds = src.Supervisor.HardTimeoutSeconds
	}
	if src.Supervisor.IdleTimeoutSeconds != 0 {
		dst.Supervisor.IdleTimeoutSeconds = src.Supervisor.IdleTimeoutSeconds
	}
	if src.Supervisor.MaxOutputBytes != 0 {
		dst.Supervisor.MaxOutputBytes = src.Supervisor.MaxOutputBytes
	}

	if src.Budget.MaxTokens != 0 {
		dst.Budget.MaxTokens = src.Budget.MaxTokens
	}
	if src.Budget.MaxCostUSD != 0 {
		dst.Budget.MaxCostUSD = src.Budget.MaxCostUSD
	}

	dst.Adapters.AllowExperimental = src.Adapters.AllowExperimental || dst.Adapters.AllowExperimental
	dst.Adapters.Unsafe = src.Adapters.Unsafe || dst.Adapters.Unsafe

	return dst
}

// Source represents where a config value came from.
type Source string

const (
	SourceDefault Source = "default"
	SourceHome    Source = "~/.hydra/config.toml"
	SourceProject Source = ".hydra.toml"
	SourceEnv     Source = "environment"
	SourceFlag    Source = "flag"
)

// FieldSource pairs a resolved value with the layer that won it.
type FieldSource struct {
	Value  interface{} `json:"value"`
	Source Source      `json:"source"`
}

// ResolvedConfig reports the effective configuration alongside, for a few
// operator-visible fields, which precedence layer supplied the value.
type ResolvedConfig struct {
	Config           *Config
	ScoringProfile   FieldSource `json:"scoring_profile"`
	WorktreeRetention FieldSource `json:"worktree_retention"`
	HardTimeoutSeconds FieldSource `json:"supervisor_hard_timeout_seconds"`
}

// Resolve loads configuration the same way Load does, but also returns the
// precedence layer that won for a handful of operator-visible fields —
// enough to explain "why is my timeout 1800s?".
func Resolve(repoRoot string, flagOverrides *Config) (*ResolvedConfig, error) {
	home, err := loadFromPath(homeConfigPath())
	if err != nil {
		return nil, err
	}
	project, err := loadFromPath(projectConfigPath(repoRoot))
	if err != nil {
		return nil, err
	}

	cfg, err := Load(repoRoot, flagOverrides)
	if err != nil {
		return nil, err
	}

	rc := &ResolvedConfig{Config: cfg}
	rc.ScoringProfile = resolveField(
		fieldOrEmpty(home, func(c *Config) string { return c.Scoring.Profile }),
		fieldOrEmpty(project, func(c *Config) string { return c.Scoring.Profile }),
		os.Getenv("HYDRA_SCORING_PROFILE"),
		fieldOrEmpty(flagOverrides, func(c *Config) string { return c.Scoring.Profile }),
		defaultProfile,
	)
	rc.WorktreeRetention = resolveField(
		fieldOrEmpty(home, func(c *Config) string { return c.Worktree.Retention }),
		fieldOrEmpty(project, func(c *Config) string { return c.Worktree.Retention }),
		os.Getenv("HYDRA_WORKTREE_RETENTION"),
		fieldOrEmpty(flagOverrides, func(c *Config) string { return c.Worktree.Retention }),
		defaultRetention,
	)
	rc.HardTimeoutSeconds = FieldSource{Value: cfg.Supervisor.HardTimeoutSeconds, Source: SourceDefault}
	if home != nil && home.Supervisor.HardTimeoutSeconds != 0 {
		rc.HardTimeoutSeconds = FieldSource{Value: cfg.Supervisor.HardTimeoutSeconds, Source: SourceHome}
	}
	if project != nil && project.Supervisor.HardTimeoutSeconds != 0 {
		rc.HardTimeoutSeconds = FieldSource{Value: cfg.Supervisor.HardTimeoutSeconds, Source: SourceProject}
	}
	if v := os.Getenv("HYDRA_SUPERVISOR_HARD_TIMEOUT_SECONDS"); v != "" {
		rc.HardTimeoutSeconds = FieldSource{Value: cfg.Supervisor.HardTimeoutSeconds, Source: SourceEnv}
	}
	if flagOverrides != nil && flagOverrides.Supervisor.HardTimeoutSeconds != 0 {
		rc.HardTimeoutSeconds = FieldSource{Value: cfg.Supervisor.HardTimeoutSeconds, Source: SourceFlag}
	}

	return rc, nil
}

func fieldOrEmpty(cfg *Config, get func(*Config) string) string {
	if cfg == nil {
		return ""
	}
	return get(cfg)
}

func resolveField(home, project, env, flag, def string) FieldSource {
	result := FieldSource{Value: def, Source: SourceDefault}
	if home != "" {
		result = FieldSource{Value: home, Source: SourceHome}
	}
	if project != "" {
		result = FieldSource{Value: project, Source: SourceProject}
	}
	if env != "" {
		result = FieldSource{Value: env, Source: SourceEnv}
	}
	if flag != "" {
		result = FieldSource{Value: flag, Source: SourceFlag}
	}
	return result
}
