package scoring

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"regexp"
	"strconv"
	"time"

	"github.com/phstella/hydra/internal/artifact"
	"github.com/phstella/hydra/internal/config"
)

// CommandResult is the outcome of running a single shell command.
type CommandResult struct {
	Command    string        `json:"command"`
	Success    bool          `json:"success"`
	ExitCode   int           `json:"exit_code"`
	Stdout     string        `json:"stdout"`
	Stderr     string        `json:"stderr"`
	DurationMs int64         `json:"duration_ms"`
}

// TestResult is a CommandResult with pass/fail/total counts extracted from
// its output.
type TestResult struct {
	CommandResult CommandResult `json:"command_result"`
	Passed        uint32        `json:"passed"`
	Failed        uint32        `json:"failed"`
	Total         uint32        `json:"total"`
}

// LintResult is a CommandResult with error/warning counts extracted from its
// output.
type LintResult struct {
	CommandResult CommandResult `json:"command_result"`
	Errors        uint32        `json:"errors"`
	Warnings      uint32        `json:"warnings"`
}

// BaselineResult aggregates the build/test/lint commands captured against
// the repository's base ref, before any agent has touched it.
type BaselineResult struct {
	Build *CommandResult `json:"build"`
	Test  *TestResult    `json:"test"`
	Lint  *LintResult    `json:"lint"`
}

// ResolvedCommands is the build/test/lint shell command for each dimension,
// after resolving profile defaults against explicit overrides.
type ResolvedCommands struct {
	Build string
	Test  string
	Lint  string // empty means "no lint command"
}

type profileCommands struct {
	build string
	test  string
	lint  string
}

func profileDefaults(profile string) (profileCommands, bool) {
	switch profile {
	case "rust":
		return profileCommands{
			build: "cargo build --all-targets",
			test:  "cargo test",
			lint:  "cargo clippy --all-targets -- -D warnings",
		}, true
	case "js-node":
		return profileCommands{
			build: "npm run build",
			test:  "npm test",
			lint:  "npm run lint",
		}, true
	case "python":
		return profileCommands{
			build: "true",
			test:  "pytest -q",
			lint:  "ruff check .",
		}, true
	default:
		return profileCommands{}, false
	}
}

// ResolveCommands resolves the effective build/test/lint commands from the
// configured profile, with explicit BuildCmd/TestCmd/LintCmd overrides
// taking precedence over the profile's defaults.
func ResolveCommands(cfg config.ScoringConfig) ResolvedCommands {
	defaults, hasProfile := profileDefaults(cfg.Profile)

	resolved := ResolvedCommands{
		Build: cfg.BuildCmd,
		Test:  cfg.TestCmd,
		Lint:  cfg.LintCmd,
	}
	if resolved.Build == "" && hasProfile {
		resolved.Build = defaults.build
	}
	if resolved.Test == "" && hasProfile {
		resolved.Test = defaults.test
	}
	if resolved.Lint == "" && hasProfile {
		resolved.Lint = defaults.lint
	}
	return resolved
}

// RunCommand runs command through a shell in cwd, killing it if it exceeds
// timeoutSeconds. A non-zero exit code is reported in the result, not
// returned as an error; only spawn failures and timeouts are errors.
func RunCommand(ctx context.Context, command string, cwd string, timeoutSeconds int) (CommandResult, error) {
	if command == "" {
		return CommandResult{}, ErrNoCommand
	}

	timeout := time.Duration(timeoutSeconds) * time.Second
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	cmd := exec.CommandContext(runCtx, "sh", "-c", command)
	cmd.Dir = cwd

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	duration := time.Since(start)

	if runCtx.Err() == context.DeadlineExceeded {
		return CommandResult{}, &TimeoutError{Command: command, Seconds: timeoutSeconds}
	}

	exitCode := 0
	success := true
	if err != nil {
		success = false
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			return CommandResult{}, err
		}
	}

	return CommandResult{
		Command:    command,
		Success:    success,
		ExitCode:   exitCode,
		Stdout:     stdout.String(),
		Stderr:     stderr.String(),
		DurationMs: duration.Milliseconds(),
	}, nil
}

var (
	cargoTestRe = regexp.MustCompile(`test result:.*?(\d+)\s+passed;\s+(\d+)\s+failed`)
	pytestRe    = regexp.MustCompile(`(\d+)\s+passed(?:,\s+(\d+)\s+failed)?`)
	jestRe      = regexp.MustCompile(`Tests:\s+(\d+)\s+passed(?:,\s+(\d+)\s+failed)?,\s+(\d+)\s+total`)

	lintErrorLineRe   = regexp.MustCompile(`(?m)^error`)
	lintWarningLineRe = regexp.MustCompile(`(?m)^warning`)
	eslintSummaryRe   = regexp.MustCompile(`(\d+)\s+errors?,\s+(\d+)\s+warnings?`)
)

// ParseTestOutput extracts pass/fail/total counts from a test command's
// combined stdout+stderr, supporting cargo test, pytest, and jest output
// formats; mocha's "N passing"/"N failing" summary is not recognized. Unrecognized output falls back to exit-code-derived
// counts: one passed test on success, one failed test otherwise.
func ParseTestOutput(result CommandResult) TestResult {
	combined := result.Stdout + "\n" + result.Stderr
	passed, failed, total, ok := parseTestCounts(combined)
	if !ok {
		if result.Success {
			passed, failed, total = 1, 0, 1
		} else {
			passed, failed, total = 0, 1, 1
		}
	}
	return TestResult{CommandResult: result, Passed: passed, Failed: failed, Total: total}
}

func parseTestCounts(output string) (passed, failed, total uint32, ok bool) {
	if caps := cargoTestRe.FindStringSubmatch(output); caps != nil {
		p, _ := strconv.ParseUint(caps[1], 10, 32)
		f, _ := strconv.ParseUint(caps[2], 10, 32)
		return uint32(p), uint32(f), uint32(p) + uint32(f), true
	}
	if caps := pytestRe.FindStringSubmatch(output); caps != nil {
		p, _ := strconv.ParseUint(caps[1], 10, 32)
		var f uint64
		if caps[2] != "" {
			f, _ = strconv.ParseUint(caps[2], 10, 32)
		}
		return uint32(p), uint32(f), uint32(p) + uint32(f), true
	}
	if caps := jestRe.FindStringSubmatch(output); caps != nil {
		p, _ := strconv.ParseUint(caps[1], 10, 32)
		var f uint64
		if caps[2] != "" {
			f, _ = strconv.ParseUint(caps[2], 10, 32)
		}
		t, _ := strconv.ParseUint(caps[3], 10, 32)
		return uint32(p), uint32(f), uint32(t), true
	}
	return 0, 0, 0, false
}

// ParseLintOutput extracts error/warning counts from a lint command's
// combined stdout+stderr, supporting clippy-style per-line markers and the
// eslint "X problems (Y errors, Z warnings)" summary line.
func ParseLintOutput(result CommandResult) LintResult {
	combined := result.Stdout + "\n" + result.Stderr
	errs, warnings, ok := parseLintCounts(combined)
	if !ok {
		if !result.Success {
			errs, warnings = 1, 0
		}
	}
	return LintResult{CommandResult: result, Errors: errs, Warnings: warnings}
}

func parseLintCounts(output string) (errs, warnings uint32, ok bool) {
	if caps := eslintSummaryRe.FindStringSubmatch(output); caps != nil {
		e, _ := strconv.ParseUint(caps[1], 10, 32)
		w, _ := strconv.ParseUint(caps[2], 10, 32)
		return uint32(e), uint32(w), true
	}

	errorCount := uint32(len(lintErrorLineRe.FindAllStringIndex(output, -1)))
	warningCount := uint32(len(lintWarningLineRe.FindAllStringIndex(output, -1)))
	if errorCount > 0 || warningCount > 0 {
		return errorCount, warningCount, true
	}
	return 0, 0, false
}

// CaptureBaseline runs the resolved build/test/lint commands against cwd,
// skipping any dimension with no resolved command.
func CaptureBaseline(ctx context.Context, cwd string, cfg config.ScoringConfig) (BaselineResult, error) {
	commands := ResolveCommands(cfg)
	timeout := cfg.TimeoutPerCheckSeconds

	var result BaselineResult

	if commands.Build != "" {
		build, err := RunCommand(ctx, commands.Build, cwd, timeout)
		if err != nil {
			return BaselineResult{}, err
		}
		result.Build = &build
	}

	if commands.Test != "" {
		raw, err := RunCommand(ctx, commands.Test, cwd, timeout)
		if err != nil {
			return BaselineResult{}, err
		}
		test := ParseTestOutput(raw)
		result.Test = &test
	}

	if commands.Lint != "" {
		raw, err := RunCommand(ctx, commands.Lint, cwd, timeout)
		if err != nil {
			return BaselineResult{}, err
		}
		lint := ParseLintOutput(raw)
		result.Lint = &lint
	}

	return result, nil
}

// PersistBaseline writes result as pretty-printed JSON to path, creating
// parent directories as needed.
func PersistBaseline(result BaselineResult, path string) error {
	return artifact.WriteJSON(path, result)
}
