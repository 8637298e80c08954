package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"

	"github.com/phstella/hydra/internal/adapter"
	"github.com/phstella/hydra/internal/config"
	"github.com/phstella/hydra/internal/formatter"
)

// gitCheck reports whether git is usable and whether the current directory
// is inside a working tree.
type gitCheck struct {
	GitAvailable bool   `json:"git_available"`
	GitVersion   string `json:"git_version,omitempty"`
	InGitRepo    bool   `json:"in_git_repo"`
	RepoRoot     string `json:"repo_root,omitempty"`
}

// doctorReport is the full readiness report `hydra doctor` prints.
type doctorReport struct {
	Git          gitCheck      `json:"git"`
	Adapters     adapter.Report `json:"adapters"`
	OverallReady bool          `json:"overall_ready"`
}

func (r doctorReport) notReadyReasons() []string {
	var reasons []string
	if !r.Git.GitAvailable {
		reasons = append(reasons, "git is not available on PATH")
	}
	if r.Git.GitAvailable && !r.Git.InGitRepo {
		reasons = append(reasons, "not inside a git repository")
	}
	for _, a := range r.Adapters.Adapters {
		if a.Tier != adapter.TierOne {
			continue
		}
		switch a.Status {
		case adapter.StatusMissing:
			reasons = append(reasons, fmt.Sprintf("%s: missing (%s)", a.AdapterKey, a.Message))
		case adapter.StatusBlocked:
			reasons = append(reasons, fmt.Sprintf("%s: blocked (%s)", a.AdapterKey, a.Message))
		case adapter.StatusReady:
			// ready, no reason to report
		default:
			reasons = append(reasons, fmt.Sprintf("%s: not ready (%s)", a.AdapterKey, a.Message))
		}
	}
	return reasons
}

func runDoctor(cfg *config.Config, repoRoot string) doctorReport {
	git := checkGit()
	registry := adapter.NewRegistry(cfg.Adapters.AllowExperimental)

	var results []adapter.ProbeResult
	for _, a := range registry.All() {
		results = append(results, a.ProbeResult)
	}

	return doctorReport{
		Git:          git,
		Adapters:     adapter.ReportFromResults(results),
		OverallReady: git.GitAvailable && git.InGitRepo && registry.Tier1Ready(),
	}
}

func checkGit() gitCheck {
	var check gitCheck

	versionOut, err := exec.Command("git", "--version").Output()
	if err != nil {
		return check
	}
	check.GitAvailable = true
	check.GitVersion = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(string(versionOut)), "git version "))

	if root, err := discoverRepoRoot(); err == nil {
		check.InGitRepo = true
		check.RepoRoot = root
	}

	return check
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that git and the configured agent adapters are ready",
	RunE: func(cmd *cobra.Command, args []string) error {
		repoRoot, _ := discoverRepoRoot()
		cfg, err := config.Load(repoRoot, nil)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		report := runDoctor(cfg, repoRoot)

		if jsonOutput {
			data, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
		} else {
			printDoctorReport(report)
		}

		if !report.OverallReady {
			return errSilentExit{code: 1}
		}
		return nil
	},
}

func printDoctorReport(report doctorReport) {
	fmt.Println("Hydra Doctor")
	fmt.Println("============")
	fmt.Println()
	fmt.Println("Git:")
	fmt.Printf("  Available:  %v\n", report.Git.GitAvailable)
	if report.Git.GitVersion != "" {
		fmt.Printf("  Version:    %s\n", report.Git.GitVersion)
	}
	fmt.Printf("  In repo:    %v\n", report.Git.InGitRepo)
	if report.Git.RepoRoot != "" {
		fmt.Printf("  Repo root:  %s\n", report.Git.RepoRoot)
	}
	fmt.Println()
	fmt.Println("Adapters:")
	tbl := formatter.NewTable(os.Stdout, "ADAPTER", "TIER", "STATUS", "MESSAGE")
	for _, a := range report.Adapters.Adapters {
		tbl.AddRow(a.AdapterKey, string(a.Tier), string(a.Status), a.Message)
	}
	//nolint:errcheck // stdout table render
	tbl.Render()
	fmt.Println()
	if report.OverallReady {
		fmt.Println("Overall: ready")
		return
	}
	fmt.Println("Overall: not ready")
	for _, reason := range report.notReadyReasons() {
		fmt.Printf("  - %s\n", reason)
	}
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}
