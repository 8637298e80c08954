package scoring

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/phstella/hydra/internal/config"
)

// ScoreBreakdown is the per-dimension score for an agent, as a fixed shape
// for convenient typed access. A nil field means that dimension was not
// evaluated for this agent and was excluded from the composite.
type ScoreBreakdown struct {
	Build     *float64 `json:"build"`
	Tests     *float64 `json:"tests"`
	Lint      *float64 `json:"lint"`
	DiffScope *float64 `json:"diff_scope"`
	Speed     *float64 `json:"speed"`
}

// AgentScore is the complete score for a single agent.
type AgentScore struct {
	AgentKey     string           `json:"agent_key"`
	Total        float64          `json:"total"`
	Breakdown    ScoreBreakdown   `json:"breakdown"`
	Dimensions   []DimensionScore `json:"dimensions"`
	Mergeable    bool             `json:"mergeable"`
	GateFailures []string         `json:"gate_failures"`
}

// RankingResult is the full ranking for one run.
type RankingResult struct {
	RunID    uuid.UUID    `json:"run_id"`
	Rankings []AgentScore `json:"rankings"`
}

// AgentInput is one agent's evaluated dimensions, ready for ranking. Any of
// Build/Tests/Lint/DiffScope may be nil when that dimension wasn't run; the
// composite renormalizes around whichever dimensions are present.
type AgentInput struct {
	AgentKey string

	Build     *DimensionScore
	Tests     *DimensionScore
	Lint      *DimensionScore
	DiffScope *DimensionScore

	BuildPassed           bool
	TestRegressionPercent float64

	// Duration is this agent's wall-clock run time, used to derive the
	// speed dimension relative to the fastest agent in the batch. Zero
	// means unknown and excludes this agent from speed scoring.
	Duration time.Duration
}

// RankAgents scores every agent's composite and mergeability, then sorts by
// total score descending. Ties preserve input order (stable sort).
func RankAgents(runID uuid.UUID, agents []AgentInput, weights config.ScoringWeights, gates config.ScoringGates) RankingResult {
	fastestMs := fastestDurationMs(agents)

	rankings := make([]AgentScore, 0, len(agents))
	for _, agent := range agents {
		rankings = append(rankings, scoreAgent(agent, weights, gates, fastestMs))
	}

	sort.SliceStable(rankings, func(i, j int) bool {
		return rankings[i].Total > rankings[j].Total
	})

	return RankingResult{RunID: runID, Rankings: rankings}
}

func fastestDurationMs(agents []AgentInput) float64 {
	fastest := 0.0
	found := false
	for _, agent := range agents {
		ms := float64(agent.Duration.Milliseconds())
		if ms <= 0 {
			continue
		}
		if !found || ms < fastest {
			fastest = ms
			found = true
		}
	}
	if !found {
		return 0
	}
	return fastest
}

func scoreAgent(input AgentInput, weights config.ScoringWeights, gates config.ScoringGates, fastestMs float64) AgentScore {
	dims := make([]DimensionScore, 0, 5)
	breakdown := ScoreBreakdown{}

	if input.Build != nil {
		dims = append(dims, *input.Build)
		breakdown.Build = &input.Build.Score
	}
	if input.Tests != nil {
		dims = append(dims, *input.Tests)
		breakdown.Tests = &input.Tests.Score
	}
	if input.Lint != nil {
		dims = append(dims, *input.Lint)
		breakdown.Lint = &input.Lint.Score
	}
	if input.DiffScope != nil {
		dims = append(dims, *input.DiffScope)
		breakdown.DiffScope = &input.DiffScope.Score
	}

	agentMs := float64(input.Duration.Milliseconds())
	if agentMs > 0 && fastestMs > 0 {
		speedScore := (fastestMs / agentMs) * 100.0
		if speedScore > 100.0 {
			speedScore = 100.0
		}
		speed := DimensionScore{
			Name:  "speed",
			Score: speedScore,
			Evidence: map[string]any{
				"agent_duration_ms": int64(agentMs),
				"fastest_ms":        int64(fastestMs),
			},
		}
		dims = append(dims, speed)
		breakdown.Speed = &speed.Score
	}

	total := computeComposite(dims, weights)
	mergeable, gateFailures := checkGates(input, gates)

	return AgentScore{
		AgentKey:     input.AgentKey,
		Total:        total,
		Breakdown:    breakdown,
		Dimensions:   dims,
		Mergeable:    mergeable,
		GateFailures: gateFailures,
	}
}

func weightForDimension(name string, weights config.ScoringWeights) float64 {
	switch name {
	case "build":
		return float64(weights.Build)
	case "tests":
		return float64(weights.Tests)
	case "lint":
		return float64(weights.Lint)
	case "diff_scope":
		return float64(weights.DiffScope)
	case "speed":
		return float64(weights.Speed)
	default:
		return 0
	}
}

// computeComposite is the weighted average of dims, renormalized so that
// dimensions absent from an agent are excluded from both the numerator and
// the denominator rather than counted as zero.
func computeComposite(dims []DimensionScore, weights config.ScoringWeights) float64 {
	weightedSum := 0.0
	totalWeight := 0.0

	for _, dim := range dims {
		w := weightForDimension(dim.Name, weights)
		if w <= 0 {
			continue
		}
		weightedSum += dim.Score * w
		totalWeight += w
	}

	if totalWeight == 0 {
		return 0
	}
	return weightedSum / totalWeight
}

// checkGates applies mergeability gates independently of the composite
// score: a build failure (when required) or a test regression beyond the
// configured threshold makes an agent unmergeable, however high it scores.
func checkGates(input AgentInput, gates config.ScoringGates) (bool, []string) {
	var failures []string

	if gates.RequireBuildPass && input.Build != nil && !input.BuildPassed {
		failures = append(failures, "build failed")
	}

	if gates.MaxTestRegressionPercent >= 0 && input.TestRegressionPercent > gates.MaxTestRegressionPercent {
		failures = append(failures, formatRegressionFailure(input.TestRegressionPercent, gates.MaxTestRegressionPercent))
	}

	return len(failures) == 0, failures
}

func formatRegressionFailure(regressionPercent, maxPercent float64) string {
	return fmt.Sprintf("test regression %.1f%% exceeds max %.1f%%", regressionPercent, maxPercent)
}
