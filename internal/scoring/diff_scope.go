package scoring

import (
	"context"
	"os/exec"
	"strconv"
	"strings"

	"github.com/phstella/hydra/internal/config"
)

// DiffStats summarizes a `git diff --numstat` between an agent's worktree
// and the base ref.
type DiffStats struct {
	FilesChanged uint32   `json:"files_changed"`
	LinesAdded   uint32   `json:"lines_added"`
	LinesRemoved uint32   `json:"lines_removed"`
	Paths        []string `json:"paths"`
}

// TotalChurn is the sum of added and removed lines.
func (s DiffStats) TotalChurn() uint32 {
	return s.LinesAdded + s.LinesRemoved
}

// ParseNumstat parses `git diff --numstat` output into DiffStats. Binary
// files (numstat reports "-\t-\tpath" for them) count toward
// FilesChanged and Paths with zero added and deleted lines.
func ParseNumstat(output string) DiffStats {
	var stats DiffStats
	for _, line := range strings.Split(output, "\n") {
		parts := strings.SplitN(line, "\t", 3)
		if len(parts) < 3 {
			continue
		}
		added, errA := strconv.ParseUint(parts[0], 10, 32)
		removed, errR := strconv.ParseUint(parts[1], 10, 32)
		if errA != nil {
			added = 0
		}
		if errR != nil {
			removed = 0
		}
		stats.LinesAdded += uint32(added)
		stats.LinesRemoved += uint32(removed)
		stats.FilesChanged++
		stats.Paths = append(stats.Paths, parts[2])
	}
	return stats
}

// ScoreDiffScope scores how focused an agent's change is.
//
// Churn and file count each score 100 up to their configured soft cap, then
// decay linearly (50 points per 100% over the cap). An edit touching any
// protected path caps the overall score at 30, regardless of how modest the
// rest of the change is.
func ScoreDiffScope(stats DiffStats, cfg config.ScoringConfig) DimensionScore {
	churn := float64(stats.TotalChurn())
	files := float64(stats.FilesChanged)

	maxChurn := float64(cfg.MaxChurnSoft)
	maxFiles := float64(cfg.MaxFilesSoft)

	churnScore := softCapScore(churn, maxChurn)
	filesScore := softCapScore(files, maxFiles)

	protectedViolation := len(cfg.ProtectedPaths) > 0 && pathsHitProtected(stats.Paths, cfg.ProtectedPaths)

	rawScore := churnScore*0.5 + filesScore*0.5
	if rawScore > 100.0 {
		rawScore = 100.0
	}

	score := rawScore
	if protectedViolation {
		score = minFloat(rawScore, 30.0)
	}

	return DimensionScore{
		Name:  "diff_scope",
		Score: score,
		Evidence: map[string]any{
			"files_changed":       stats.FilesChanged,
			"lines_added":         stats.LinesAdded,
			"lines_removed":       stats.LinesRemoved,
			"total_churn":         stats.TotalChurn(),
			"churn_score":         churnScore,
			"files_score":         filesScore,
			"protected_violation": protectedViolation,
		},
	}
}

func softCapScore(value, softCap float64) float64 {
	if softCap <= 0.0 || value <= softCap {
		return 100.0
	}
	excessRatio := (value - softCap) / softCap
	score := 100.0 - excessRatio*50.0
	if score < 0.0 {
		return 0.0
	}
	return score
}

func pathsHitProtected(paths, protected []string) bool {
	for _, p := range paths {
		for _, pp := range protected {
			if strings.HasPrefix(p, pp) {
				return true
			}
		}
	}
	return false
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// ComputeDiffStats runs `git diff --numstat baseRef` in worktreePath and
// parses the result.
func ComputeDiffStats(ctx context.Context, worktreePath, baseRef string) (DiffStats, error) {
	cmd := exec.CommandContext(ctx, "git", "diff", "--numstat", baseRef)
	cmd.Dir = worktreePath

	out, err := cmd.Output()
	if err != nil {
		return DiffStats{}, err
	}
	return ParseNumstat(string(out)), nil
}
