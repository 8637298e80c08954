package scoring

// DimensionScore is one dimension's score (0-100) plus the evidence that
// explains how it was computed, for inclusion in the run's artifacts.
type DimensionScore struct {
	Name     string         `json:"name"`
	Score    float64        `json:"score"`
	Evidence map[string]any `json:"evidence"`
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ScoreBuild scores the build dimension: 100 on success, 0 on failure.
func ScoreBuild(result CommandResult) DimensionScore {
	score := 0.0
	if result.Success {
		score = 100.0
	}
	return DimensionScore{
		Name:  "build",
		Score: score,
		Evidence: map[string]any{
			"success":   result.Success,
			"exit_code": result.ExitCode,
		},
	}
}

// ScoreTests scores the tests dimension using a regression-aware formula:
//
//	pass_rate   = agent_passed / agent_total
//	regression  = max(0, baseline_passed - agent_passed)
//	reg_penalty = 0 if baseline_passed == 0, else (regression / baseline_passed) * 60
//	new_bonus   = min(10, new_tests * 0.5), where new_tests = max(0, agent_total - baseline_total)
//	score       = clamp(pass_rate*100 - reg_penalty + new_bonus, 0, 100)
//
// baseline may be nil when no baseline test run was captured.
func ScoreTests(baseline *TestResult, agent TestResult) DimensionScore {
	aPass := float64(agent.Passed)
	aTotal := float64(agent.Total)

	passRate := 0.0
	if aTotal != 0 {
		passRate = aPass / aTotal
	}

	var bPass, bTotal float64
	if baseline != nil {
		bPass = float64(baseline.Passed)
		bTotal = float64(baseline.Total)
	}

	regression := bPass - aPass
	if regression < 0 {
		regression = 0
	}
	regPenalty := 0.0
	if bPass != 0 {
		regPenalty = (regression / bPass) * 60.0
	}

	newTests := aTotal - bTotal
	if newTests < 0 {
		newTests = 0
	}
	newTestBonus := newTests * 0.5
	if newTestBonus > 10.0 {
		newTestBonus = 10.0
	}

	score := clamp(passRate*100.0-regPenalty+newTestBonus, 0.0, 100.0)

	var testDrop any
	if bTotal > 0 {
		testDrop = aTotal < bTotal*0.8
	}

	var baselinePassed, baselineTotal any
	if baseline != nil {
		baselinePassed = baseline.Passed
		baselineTotal = baseline.Total
	}

	return DimensionScore{
		Name:  "tests",
		Score: score,
		Evidence: map[string]any{
			"agent_passed":      agent.Passed,
			"agent_failed":      agent.Failed,
			"agent_total":       agent.Total,
			"baseline_passed":   baselinePassed,
			"baseline_total":    baselineTotal,
			"pass_rate":         passRate,
			"regression":        uint32(regression),
			"reg_penalty":       regPenalty,
			"new_test_bonus":    newTestBonus,
			"test_drop_detected": testDrop,
		},
	}
}

// ScoreLint scores the lint dimension with a regression-aware, symmetric
// formula: only errors/warnings introduced beyond the baseline are
// penalized, with errors costing more than warnings (10 points vs 2).
// baseline may be nil, in which case it is treated as a zero baseline (every
// agent error or warning counts as new).
func ScoreLint(baseline *LintResult, result LintResult) DimensionScore {
	var bErrors, bWarnings int64
	if baseline != nil {
		bErrors = int64(baseline.Errors)
		bWarnings = int64(baseline.Warnings)
	}

	newErrors := int64(result.Errors) - bErrors
	if newErrors < 0 {
		newErrors = 0
	}
	newWarnings := int64(result.Warnings) - bWarnings
	if newWarnings < 0 {
		newWarnings = 0
	}

	score := clamp(100.0-float64(newErrors)*10.0-float64(newWarnings)*2.0, 0.0, 100.0)

	var baselineErrors, baselineWarnings any
	if baseline != nil {
		baselineErrors = baseline.Errors
		baselineWarnings = baseline.Warnings
	}

	return DimensionScore{
		Name:  "lint",
		Score: score,
		Evidence: map[string]any{
			"errors":             result.Errors,
			"warnings":           result.Warnings,
			"baseline_errors":    baselineErrors,
			"baseline_warnings":  baselineWarnings,
			"new_errors":         newErrors,
			"new_warnings":       newWarnings,
		},
	}
}
