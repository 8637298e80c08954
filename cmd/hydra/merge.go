package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/phstella/hydra/internal/artifact"
	"github.com/phstella/hydra/internal/merge"
	"github.com/phstella/hydra/internal/scoring"
)

var (
	mergeRunID   string
	mergeAgent   string
	mergeDryRun  bool
	mergeConfirm bool
	mergeForce   bool
)

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Merge a run's winning (or chosen) agent branch into the current branch",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMerge()
	},
}

func init() {
	mergeCmd.Flags().StringVar(&mergeRunID, "run-id", "", "Run ID to merge from (required)")
	mergeCmd.Flags().StringVar(&mergeAgent, "agent", "", "Agent to merge (defaults to the ranked winner)")
	mergeCmd.Flags().BoolVar(&mergeDryRun, "dry-run", false, "Preview the merge without committing, always aborted afterward")
	mergeCmd.Flags().BoolVar(&mergeConfirm, "confirm", false, "Perform the real merge (required unless --dry-run)")
	mergeCmd.Flags().BoolVar(&mergeForce, "force", false, "Merge even if the agent failed its mergeability gates")
	_ = mergeCmd.MarkFlagRequired("run-id")
	rootCmd.AddCommand(mergeCmd)
}

func runMerge() error {
	runID, err := uuid.Parse(mergeRunID)
	if err != nil {
		return fmt.Errorf("invalid --run-id: %w", err)
	}

	repoRoot, err := discoverRepoRoot()
	if err != nil {
		return err
	}
	hydraRoot := filepath.Join(repoRoot, ".hydra")
	layout := artifact.NewRunLayout(hydraRoot, runID)

	if _, err := os.Stat(layout.BaseDir()); err != nil {
		return fmt.Errorf("run %s not found at %s", runID, layout.BaseDir())
	}

	store := artifact.NewStore(layout, nil)
	manifest, err := store.ReadManifest()
	if err != nil {
		return fmt.Errorf("read manifest: %w", err)
	}
	if manifest.Status != artifact.StatusCompleted {
		return fmt.Errorf("run %s has status %s, not completed", runID, manifest.Status)
	}

	agentKey := mergeAgent
	score, hasScore := scoring.AgentScore{}, false
	if agentKey == "" {
		agentKey, score, hasScore = pickWinner(layout, manifest)
		if agentKey == "" {
			return fmt.Errorf("no mergeable agent found in run. Use --agent to specify explicitly")
		}
	} else {
		score, hasScore = loadAgentScore(layout, agentKey)
	}

	var entry *artifact.AgentEntry
	for i := range manifest.Agents {
		if manifest.Agents[i].AgentKey == agentKey {
			entry = &manifest.Agents[i]
			break
		}
	}
	if entry == nil {
		return fmt.Errorf("agent '%s' not found in run %s", agentKey, runID)
	}
	if !hasScore {
		score = scoring.AgentScore{AgentKey: agentKey, Mergeable: false, GateFailures: []string{"no score recorded"}}
	}

	svc := merge.New(repoRoot)
	ctx := context.Background()

	if mergeDryRun {
		report, err := svc.DryRun(ctx, entry.Branch, "HEAD")
		if err != nil {
			return fmt.Errorf("dry-run merge: %w", err)
		}
		if writeErr := artifact.WriteJSON(layout.MergeReportPath(), report); writeErr != nil {
			return fmt.Errorf("write merge report: %w", writeErr)
		}
		return printMergeReport(report, agentKey, layout.MergeReportPath())
	}

	if !mergeConfirm {
		return fmt.Errorf("merge requires --confirm flag (or use --dry-run to preview)")
	}

	report, err := svc.Merge(ctx, merge.MergeRequest{
		SourceBranch: entry.Branch,
		TargetBranch: "HEAD",
		RunID:        runID,
		AgentKey:     agentKey,
		Confirmed:    true,
		Mergeable:    score.Mergeable,
		GateFailures: score.GateFailures,
		Force:        mergeForce,
	})
	if err != nil {
		return fmt.Errorf("merge failed: %w", err)
	}
	if writeErr := artifact.WriteJSON(layout.MergeReportPath(), report); writeErr != nil {
		return fmt.Errorf("write merge report: %w", writeErr)
	}

	return printMergeReport(report, agentKey, layout.MergeReportPath())
}

// pickWinner selects the highest-composite mergeable agent in manifest,
// returning ("", zero-score, false) when none is mergeable.
func pickWinner(layout *artifact.RunLayout, manifest *artifact.Manifest) (string, scoring.AgentScore, bool) {
	var bestKey string
	var best scoring.AgentScore
	found := false
	for _, a := range manifest.Agents {
		score, ok := loadAgentScore(layout, a.AgentKey)
		if !ok || !score.Mergeable {
			continue
		}
		if !found || score.Total > best.Total {
			bestKey, best, found = a.AgentKey, score, true
		}
	}
	return bestKey, best, found
}

func printMergeReport(report merge.MergeReport, agentKey, reportPath string) error {
	if jsonOutput {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
	} else if report.CanMerge {
		verb := "Dry-run merge"
		if !report.DryRun {
			verb = "Merged"
		}
		fmt.Printf("%s of '%s' branch '%s': clean (no conflicts)\n", verb, agentKey, report.SourceBranch)
		fmt.Printf("Report saved to: %s\n", reportPath)
	} else {
		fmt.Printf("Merge of '%s' branch '%s': CONFLICTS DETECTED\n", agentKey, report.SourceBranch)
		for _, c := range report.Conflicts {
			fmt.Printf("  %s (%s)\n", c.Path, c.Type)
		}
		fmt.Printf("Report saved to: %s\n", reportPath)
	}

	if !report.CanMerge {
		return errSilentExit{code: 1}
	}
	return nil
}
