package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/phstella/hydra/internal/adapter"
	"github.com/phstella/hydra/internal/artifact"
	"github.com/phstella/hydra/internal/config"
	"github.com/phstella/hydra/internal/orchestrator"
	"github.com/phstella/hydra/internal/recovery"
)

var raceAgents []string
var raceBaseRef string

var raceCmd = &cobra.Command{
	Use:   "race <prompt>",
	Short: "Run one or more agents against a task prompt in isolated worktrees",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRace(args[0])
	},
}

func init() {
	raceCmd.Flags().StringSliceVar(&raceAgents, "agent", nil, "Agent key to race (repeatable): claude, codex, cursor-agent")
	raceCmd.Flags().StringVar(&raceBaseRef, "base-ref", "HEAD", "Git ref each agent's worktree is branched from")
	rootCmd.AddCommand(raceCmd)
}

func runRace(prompt string) error {
	if len(raceAgents) == 0 {
		return fmt.Errorf("at least one --agent is required")
	}

	repoRoot, err := discoverRepoRoot()
	if err != nil {
		return err
	}
	hydraRoot := filepath.Join(repoRoot, ".hydra")

	cfg, err := config.Load(repoRoot, nil)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if unsafeMode {
		cfg.Adapters.Unsafe = true
	}

	leasePath := filepath.Join(hydraRoot, "race.lock")
	lease, err := recovery.AcquireLease(leasePath, repoRoot, "", 0)
	if err != nil {
		return fmt.Errorf("another hydra race or merge appears to be running: %w", err)
	}
	defer lease.Release()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := adapter.NewRegistry(cfg.Adapters.AllowExperimental)
	orch := orchestrator.New(cfg, repoRoot, hydraRoot, registry)

	result, err := orch.Race(ctx, orchestrator.RaceRequest{
		AgentKeys:  raceAgents,
		TaskPrompt: prompt,
		BaseRef:    raceBaseRef,
		Unsafe:     unsafeMode,
	})
	if err != nil {
		if ctx.Err() != nil {
			return errSilentExit{code: 130}
		}
		return fmt.Errorf("race failed: %w", err)
	}

	if jsonOutput {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
	} else {
		printRaceResult(result)
	}

	// Interrupted by SIGINT/SIGTERM: the orchestrator has already cleaned up.
	if ctx.Err() != nil {
		return errSilentExit{code: 130}
	}
	if result.Status != artifact.StatusCompleted {
		return errSilentExit{code: 1}
	}
	return nil
}

func printRaceResult(result *orchestrator.RaceResult) {
	fmt.Println()
	fmt.Println("Run Summary")
	fmt.Println("===========")
	fmt.Printf("  Run ID:    %s\n", result.RunID)
	fmt.Printf("  Status:    %s\n", result.Status)
	fmt.Printf("  Artifacts: %s\n", result.ArtifactDir)
	fmt.Println()

	for _, agent := range result.Agents {
		fmt.Printf("  Agent:     %s\n", agent.AgentKey)
		fmt.Printf("    Branch:    %s\n", agent.Branch)
		fmt.Printf("    Worktree:  %s\n", agent.WorktreePath)
		fmt.Printf("    Status:    %s\n", agent.Status)
		if agent.Score != nil {
			mergeable := "not mergeable"
			if agent.Score.Mergeable {
				mergeable = "mergeable"
			}
			fmt.Printf("    Score:     %.1f (%s)\n", agent.Score.Total, mergeable)
		} else {
			fmt.Println("    Score:     unavailable")
		}
		fmt.Println()
	}

	if result.Ranking != nil && len(result.Ranking.Rankings) > 0 {
		fmt.Println("  Rankings:")
		for i, score := range result.Ranking.Rankings {
			mergeable := "(not mergeable)"
			if score.Mergeable {
				mergeable = "(mergeable)"
			}
			fmt.Printf("    %d. %s %.1f %s\n", i+1, score.AgentKey, score.Total, mergeable)
		}
	}
}
