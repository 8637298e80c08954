package main

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	jsonOutput bool
	unsafeMode bool
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "hydra",
	Short: "Race coding agents against the same task and merge the winner",
	Long: `hydra races external coding-agent CLIs (claude, codex, cursor-agent)
against the same task prompt, each confined to its own git worktree, scores
every agent's output across build/tests/lint/diff-scope/speed, and merges
the winning branch back into your repository.

Core Commands:
  doctor   Check that git and the configured agents are ready
  race     Run one or more agents against a task prompt
  run      Inspect stored runs
  merge    Merge a run's winning (or chosen) agent branch
  worktree Manage leftover race worktrees`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// errSilentExit lets a command signal a non-zero exit code whose reasons
// were already printed to stdout/stderr, so Execute doesn't print a
// redundant "Error: ..." line on top.
type errSilentExit struct{ code int }

func (e errSilentExit) Error() string { return "" }

// Execute adds all child commands to the root command and runs it.
func Execute() {
	err := rootCmd.Execute()
	if err == nil {
		return
	}
	if silent, ok := err.(errSilentExit); ok {
		os.Exit(silent.code)
	}
	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(1)
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output machine-readable JSON")
	rootCmd.PersistentFlags().BoolVar(&unsafeMode, "unsafe", false, "Disable sandbox path confinement for agent worktrees")
}

// discoverRepoRoot shells out to `git rev-parse --show-toplevel`, matching
// every command's expectation that hydra always runs from inside a git
// working tree.
func discoverRepoRoot() (string, error) {
	out, err := exec.Command("git", "rev-parse", "--show-toplevel").Output()
	if err != nil {
		return "", fmt.Errorf("not inside a git repository: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}
