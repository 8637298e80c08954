package main

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/phstella/hydra/internal/recovery"
	"github.com/phstella/hydra/internal/worktree"
)

var worktreeGCForce bool

var worktreeCmd = &cobra.Command{
	Use:   "worktree",
	Short: "Manage leftover race worktrees",
}

var worktreeGCCmd = &cobra.Command{
	Use:   "gc",
	Short: "Remove worktrees and branches left behind by interrupted runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWorktreeGC()
	},
}

func init() {
	worktreeGCCmd.Flags().BoolVar(&worktreeGCForce, "force", false, "Force-remove worktrees with uncommitted changes")
	worktreeCmd.AddCommand(worktreeGCCmd)
	rootCmd.AddCommand(worktreeCmd)
}

func runWorktreeGC() error {
	repoRoot, err := discoverRepoRoot()
	if err != nil {
		return err
	}
	hydraRoot := filepath.Join(repoRoot, ".hydra")

	ctx := context.Background()

	recoverySvc := recovery.New(repoRoot, hydraRoot)
	report, err := recoverySvc.CleanupAll(ctx)
	if err != nil {
		return fmt.Errorf("recover stale runs: %w", err)
	}

	wtSvc := worktree.New(repoRoot, filepath.Join(hydraRoot, "worktrees"))
	entries, err := wtSvc.List(ctx)
	if err != nil {
		return fmt.Errorf("list worktrees: %w", err)
	}

	var orphansRemoved int
	var orphanErrors []string
	for _, entry := range entries {
		if !strings.HasPrefix(entry.Branch, "hydra/") {
			continue
		}
		if err := wtSvc.Remove(ctx, entry.Path, worktreeGCForce); err != nil {
			orphanErrors = append(orphanErrors, fmt.Sprintf("%s: %v", entry.Path, err))
			continue
		}
		orphansRemoved++
	}
	report.WorktreesRemoved += orphansRemoved
	report.Errors = append(report.Errors, orphanErrors...)

	if jsonOutput {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
	} else {
		fmt.Println("Worktree GC")
		fmt.Println("===========")
		fmt.Printf("  Stale runs cleaned:  %d\n", report.RunsCleaned)
		fmt.Printf("  Worktrees removed:   %d\n", report.WorktreesRemoved)
		fmt.Printf("  Branches deleted:    %d\n", report.BranchesDeleted)
		if len(report.Errors) > 0 {
			fmt.Println("  Errors:")
			for _, e := range report.Errors {
				fmt.Printf("    - %s\n", e)
			}
		}
	}

	if len(report.Errors) > 0 {
		return errSilentExit{code: 1}
	}
	return nil
}
