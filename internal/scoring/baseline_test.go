package scoring

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/phstella/hydra/internal/config"
)

func TestResolveCommandsFromRustProfile(t *testing.T) {
	cfg := config.ScoringConfig{Profile: "rust"}
	cmds := ResolveCommands(cfg)
	if cmds.Build != "cargo build --all-targets" {
		t.Fatalf("build = %q", cmds.Build)
	}
	if cmds.Test != "cargo test" {
		t.Fatalf("test = %q", cmds.Test)
	}
	if want := "cargo clippy"; !strings.Contains(cmds.Lint, want) {
		t.Fatalf("lint = %q, want substring %q", cmds.Lint, want)
	}
}

func TestResolveCommandsFromJsNodeProfile(t *testing.T) {
	cfg := config.ScoringConfig{Profile: "js-node"}
	cmds := ResolveCommands(cfg)
	if cmds.Build != "npm run build" || cmds.Test != "npm test" || cmds.Lint != "npm run lint" {
		t.Fatalf("unexpected commands: %+v", cmds)
	}
}

func TestResolveCommandsFromPythonProfile(t *testing.T) {
	cfg := config.ScoringConfig{Profile: "python"}
	cmds := ResolveCommands(cfg)
	if cmds.Build != "true" || cmds.Test != "pytest -q" || cmds.Lint != "ruff check ." {
		t.Fatalf("unexpected commands: %+v", cmds)
	}
}

func TestExplicitCommandsOverrideProfile(t *testing.T) {
	cfg := config.ScoringConfig{Profile: "rust", BuildCmd: "make build"}
	cmds := ResolveCommands(cfg)
	if cmds.Build != "make build" {
		t.Fatalf("build = %q, want override", cmds.Build)
	}
	if cmds.Test != "cargo test" {
		t.Fatalf("test = %q, want profile default", cmds.Test)
	}
}

func TestResolveCommandsNoProfileReturnsEmpty(t *testing.T) {
	cfg := config.ScoringConfig{}
	cmds := ResolveCommands(cfg)
	if cmds.Build != "" || cmds.Test != "" || cmds.Lint != "" {
		t.Fatalf("expected all empty, got %+v", cmds)
	}
}

func TestParseCargoTestOutput(t *testing.T) {
	result := CommandResult{
		Success: true,
		Stdout:  "test result: ok. 42 passed; 3 failed; 0 ignored; 0 measured; 0 filtered out\n",
	}
	tr := ParseTestOutput(result)
	if tr.Passed != 42 || tr.Failed != 3 || tr.Total != 45 {
		t.Fatalf("got %+v", tr)
	}
}

func TestParsePytestOutput(t *testing.T) {
	result := CommandResult{
		Success: true,
		Stdout:  "===== 15 passed, 2 failed in 1.23s =====\n",
	}
	tr := ParseTestOutput(result)
	if tr.Passed != 15 || tr.Failed != 2 || tr.Total != 17 {
		t.Fatalf("got %+v", tr)
	}
}

func TestParseJestOutput(t *testing.T) {
	result := CommandResult{
		Success: true,
		Stdout:  "Tests:       18 passed, 2 failed, 20 total\n",
	}
	tr := ParseTestOutput(result)
	if tr.Passed != 18 || tr.Failed != 2 || tr.Total != 20 {
		t.Fatalf("got %+v", tr)
	}
}

func TestParseTestOutputFallsBackToExitCode(t *testing.T) {
	result := CommandResult{Success: false, ExitCode: 1, Stdout: "some random output"}
	tr := ParseTestOutput(result)
	if tr.Passed != 0 || tr.Failed != 1 || tr.Total != 1 {
		t.Fatalf("got %+v", tr)
	}
}

func TestParseLintCountsClippyFormat(t *testing.T) {
	out := "warning: unused variable\nwarning: unused import\nerror: mismatched types\n"
	result := CommandResult{Success: false, Stdout: out}
	lr := ParseLintOutput(result)
	if lr.Errors != 1 || lr.Warnings != 2 {
		t.Fatalf("got %+v", lr)
	}
}

func TestParseLintCountsEslintFormat(t *testing.T) {
	out := "15 problems (3 errors, 12 warnings)\n"
	result := CommandResult{Success: false, Stdout: out}
	lr := ParseLintOutput(result)
	if lr.Errors != 3 || lr.Warnings != 12 {
		t.Fatalf("got %+v", lr)
	}
}

func TestParseLintCountsCleanReturnsZero(t *testing.T) {
	result := CommandResult{Success: true, Stdout: "All checks passed!\n"}
	lr := ParseLintOutput(result)
	if lr.Errors != 0 || lr.Warnings != 0 {
		t.Fatalf("got %+v", lr)
	}
}

func TestRunCommandEchoSucceeds(t *testing.T) {
	requireUnix(t)
	result, err := RunCommand(context.Background(), "echo hello", os.TempDir(), 10)
	if err != nil {
		t.Fatalf("RunCommand: %v", err)
	}
	if !result.Success || result.ExitCode != 0 {
		t.Fatalf("got %+v", result)
	}
	if !strings.Contains(result.Stdout, "hello") {
		t.Fatalf("stdout = %q", result.Stdout)
	}
}

func TestRunCommandFailureCaptured(t *testing.T) {
	requireUnix(t)
	result, err := RunCommand(context.Background(), "exit 42", os.TempDir(), 10)
	if err != nil {
		t.Fatalf("RunCommand: %v", err)
	}
	if result.Success || result.ExitCode != 42 {
		t.Fatalf("got %+v", result)
	}
}

func TestRunCommandTimeout(t *testing.T) {
	requireUnix(t)
	_, err := RunCommand(context.Background(), "sleep 60", os.TempDir(), 1)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	var timeoutErr *TimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("expected *TimeoutError, got %T: %v", err, err)
	}
}

func TestCaptureBaselineWithNoCommandsReturnsAllNil(t *testing.T) {
	requireUnix(t)
	cfg := config.ScoringConfig{TimeoutPerCheckSeconds: 10}
	result, err := CaptureBaseline(context.Background(), os.TempDir(), cfg)
	if err != nil {
		t.Fatalf("CaptureBaseline: %v", err)
	}
	if result.Build != nil || result.Test != nil || result.Lint != nil {
		t.Fatalf("expected all nil, got %+v", result)
	}
}

func TestCaptureBaselineWithCommands(t *testing.T) {
	requireUnix(t)
	cfg := config.ScoringConfig{
		BuildCmd:               "echo build-ok",
		TestCmd:                "echo 'test result: ok. 5 passed; 0 failed; 0 ignored'",
		LintCmd:                "echo lint-clean",
		TimeoutPerCheckSeconds: 10,
	}
	result, err := CaptureBaseline(context.Background(), os.TempDir(), cfg)
	if err != nil {
		t.Fatalf("CaptureBaseline: %v", err)
	}
	if !result.Build.Success {
		t.Fatalf("build = %+v", result.Build)
	}
	if result.Test.Passed != 5 {
		t.Fatalf("test = %+v", result.Test)
	}
	if result.Lint.Errors != 0 {
		t.Fatalf("lint = %+v", result.Lint)
	}
}

func TestPersistAndReadBaseline(t *testing.T) {
	result := BaselineResult{
		Build: &CommandResult{Command: "echo ok", Success: true, Stdout: "ok\n"},
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "baseline.json")
	if err := PersistBaseline(result, path); err != nil {
		t.Fatalf("PersistBaseline: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), `"success": true`) {
		t.Fatalf("persisted data missing expected content: %s", data)
	}
}

func requireUnix(t *testing.T) {
	t.Helper()
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("requires a unix shell")
	}
}
