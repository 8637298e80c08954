package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/phstella/hydra/internal/artifact"
	"github.com/phstella/hydra/internal/formatter"
	"github.com/phstella/hydra/internal/scoring"
)

var (
	runShowRunID string
	runShowLatest bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Inspect stored runs",
}

var runShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show summary details for a stored run",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runShow()
	},
}

var runListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every stored run",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runList()
	},
}

func init() {
	runShowCmd.Flags().StringVar(&runShowRunID, "run-id", "", "Explicit run ID to inspect")
	runShowCmd.Flags().BoolVar(&runShowLatest, "latest", false, "Inspect the most recently modified run")
	runCmd.AddCommand(runShowCmd)
	runCmd.AddCommand(runListCmd)
	rootCmd.AddCommand(runCmd)
}

func runShow() error {
	repoRoot, err := discoverRepoRoot()
	if err != nil {
		return err
	}
	hydraRoot := filepath.Join(repoRoot, ".hydra")

	runID, err := resolveRunID(hydraRoot, runShowRunID, runShowLatest)
	if err != nil {
		return err
	}

	layout := artifact.NewRunLayout(hydraRoot, runID)
	if _, err := os.Stat(layout.BaseDir()); err != nil {
		return fmt.Errorf("run %s not found at %s", runID, layout.BaseDir())
	}

	store := artifact.NewStore(layout, nil)
	manifest, err := store.ReadManifest()
	if err != nil {
		return fmt.Errorf("read run manifest: %w", err)
	}

	scoresByAgent := make(map[string]scoring.AgentScore)
	for _, agent := range manifest.Agents {
		if score, ok := loadAgentScore(layout, agent.AgentKey); ok {
			scoresByAgent[agent.AgentKey] = score
		}
	}

	var rankings []scoring.AgentScore
	for _, score := range scoresByAgent {
		rankings = append(rankings, score)
	}
	sort.Slice(rankings, func(i, j int) bool { return rankings[i].Total > rankings[j].Total })

	if jsonOutput {
		return printRunShowJSON(manifest, layout, rankings, scoresByAgent)
	}

	printRunShowText(manifest, layout, rankings, scoresByAgent)
	return nil
}

func printRunShowJSON(manifest *artifact.Manifest, layout *artifact.RunLayout, rankings []scoring.AgentScore, scoresByAgent map[string]scoring.AgentScore) error {
	var winner *string
	for _, score := range rankings {
		if score.Mergeable {
			w := score.AgentKey
			winner = &w
			break
		}
	}

	type agentOut struct {
		AgentKey     string              `json:"agent_key"`
		Tier         artifact.Tier       `json:"tier"`
		Branch       string              `json:"branch"`
		WorktreePath string              `json:"worktree_path,omitempty"`
		Score        *scoring.AgentScore `json:"score"`
	}

	agents := make([]agentOut, 0, len(manifest.Agents))
	for _, a := range manifest.Agents {
		var score *scoring.AgentScore
		if s, ok := scoresByAgent[a.AgentKey]; ok {
			score = &s
		}
		agents = append(agents, agentOut{
			AgentKey:     a.AgentKey,
			Tier:         a.Tier,
			Branch:       a.Branch,
			WorktreePath: a.WorktreePath,
			Score:        score,
		})
	}

	output := map[string]any{
		"run_id":         manifest.RunID,
		"status":         manifest.Status,
		"started_at":     manifest.StartedAt,
		"completed_at":   manifest.CompletedAt,
		"manifest_path":  layout.ManifestPath(),
		"artifacts_path": layout.BaseDir(),
		"winner":         winner,
		"rankings":       rankings,
		"agents":         agents,
	}

	data, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func printRunShowText(manifest *artifact.Manifest, layout *artifact.RunLayout, rankings []scoring.AgentScore, scoresByAgent map[string]scoring.AgentScore) {
	fmt.Println("Run Summary")
	fmt.Println("===========")
	fmt.Printf("  Run ID:    %s\n", manifest.RunID)
	fmt.Printf("  Status:    %s\n", manifest.Status)
	fmt.Printf("  Started:   %s\n", manifest.StartedAt)
	if manifest.CompletedAt != nil {
		fmt.Printf("  Completed: %s\n", *manifest.CompletedAt)
	}
	fmt.Printf("  Artifacts: %s\n", layout.BaseDir())
	fmt.Printf("  Manifest:  %s\n", layout.ManifestPath())
	fmt.Println()

	for _, agent := range manifest.Agents {
		fmt.Printf("  Agent:     %s\n", agent.AgentKey)
		fmt.Printf("    Tier:      %s\n", agent.Tier)
		fmt.Printf("    Branch:    %s\n", agent.Branch)
		if score, ok := scoresByAgent[agent.AgentKey]; ok {
			mergeable := "not mergeable"
			if score.Mergeable {
				mergeable = "mergeable"
			}
			fmt.Printf("    Score:     %.1f (%s)\n", score.Total, mergeable)
			if len(score.GateFailures) > 0 {
				fmt.Printf("    Gates:     %v\n", score.GateFailures)
			}
		} else {
			fmt.Println("    Score:     unavailable")
		}
		fmt.Println()
	}

	fmt.Println("  Rankings:")
	if len(rankings) == 0 {
		fmt.Println("    (none)")
		return
	}
	for i, score := range rankings {
		mergeable := "(not mergeable)"
		if score.Mergeable {
			mergeable = "(mergeable)"
		}
		fmt.Printf("    %d. %s %.1f %s\n", i+1, score.AgentKey, score.Total, mergeable)
	}
}

func runList() error {
	repoRoot, err := discoverRepoRoot()
	if err != nil {
		return err
	}
	hydraRoot := filepath.Join(repoRoot, ".hydra")

	ids, err := artifact.ListRuns(hydraRoot)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}

	type runSummary struct {
		RunID     uuid.UUID        `json:"run_id"`
		Status    artifact.RunStatus `json:"status"`
		StartedAt string           `json:"started_at"`
	}

	var summaries []runSummary
	for _, id := range ids {
		layout := artifact.NewRunLayout(hydraRoot, id)
		store := artifact.NewStore(layout, nil)
		manifest, err := store.ReadManifest()
		if err != nil {
			continue
		}
		summaries = append(summaries, runSummary{
			RunID:     id,
			Status:    manifest.Status,
			StartedAt: manifest.StartedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].StartedAt > summaries[j].StartedAt })

	if jsonOutput {
		data, err := json.MarshalIndent(summaries, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	if len(summaries) == 0 {
		fmt.Println("No runs found.")
		return nil
	}
	tbl := formatter.NewTable(os.Stdout, "RUN ID", "STATUS", "STARTED")
	for _, s := range summaries {
		tbl.AddRow(s.RunID.String(), string(s.Status), s.StartedAt)
	}
	return tbl.Render()
}

func loadAgentScore(layout *artifact.RunLayout, agentKey string) (scoring.AgentScore, bool) {
	path := layout.AgentScore(agentKey)
	data, err := os.ReadFile(path)
	if err != nil {
		return scoring.AgentScore{}, false
	}
	var score scoring.AgentScore
	if err := json.Unmarshal(data, &score); err != nil {
		return scoring.AgentScore{}, false
	}
	return score, true
}

func resolveRunID(hydraRoot, explicit string, latest bool) (uuid.UUID, error) {
	if explicit != "" && latest {
		return uuid.UUID{}, fmt.Errorf("use either --run-id or --latest, not both")
	}
	if explicit != "" {
		return uuid.Parse(explicit)
	}
	return latestRunID(hydraRoot)
}

func latestRunID(hydraRoot string) (uuid.UUID, error) {
	runsDir := filepath.Join(hydraRoot, "runs")
	entries, err := os.ReadDir(runsDir)
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("no runs found at %s", runsDir)
	}

	var bestID uuid.UUID
	var bestModTime int64
	found := false
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		id, err := uuid.Parse(entry.Name())
		if err != nil {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		modNs := info.ModTime().UnixNano()
		if !found || modNs > bestModTime {
			bestID = id
			bestModTime = modNs
			found = true
		}
	}
	if !found {
		return uuid.UUID{}, fmt.Errorf("no valid run directories found at %s", runsDir)
	}
	return bestID, nil
}
