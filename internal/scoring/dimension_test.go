package scoring

import "testing"

func makeTestResult(passed, failed uint32) TestResult {
	return TestResult{
		CommandResult: CommandResult{Command: "test", Success: failed == 0},
		Passed:        passed,
		Failed:        failed,
		Total:         passed + failed,
	}
}

func TestScoreTestsPerfectScoreNoBaseline(t *testing.T) {
	score := ScoreTests(nil, makeTestResult(10, 0))
	if diff := score.Score - 100.0; diff < -0.01 || diff > 0.01 {
		t.Fatalf("score = %v", score.Score)
	}
}

func TestScoreTestsPerfectScoreMatchingBaseline(t *testing.T) {
	baseline := makeTestResult(10, 0)
	score := ScoreTests(&baseline, makeTestResult(10, 0))
	if diff := score.Score - 100.0; diff < -0.01 || diff > 0.01 {
		t.Fatalf("score = %v", score.Score)
	}
}

func TestScoreTestsRegressionPenaltyApplied(t *testing.T) {
	baseline := makeTestResult(10, 0)
	score := ScoreTests(&baseline, makeTestResult(8, 2))
	// pass_rate = 0.8, reg_penalty = (2/10)*60 = 12, score = 80 - 12 = 68
	if diff := score.Score - 68.0; diff < -0.01 || diff > 0.01 {
		t.Fatalf("score = %v", score.Score)
	}
}

func TestScoreTestsNewTestBonusApplied(t *testing.T) {
	baseline := makeTestResult(10, 0)
	score := ScoreTests(&baseline, makeTestResult(14, 0))
	// pass_rate=1.0, new_tests=4, bonus=min(10,2.0)=2.0, clamped to 100
	if diff := score.Score - 100.0; diff < -0.01 || diff > 0.01 {
		t.Fatalf("score = %v", score.Score)
	}
}

func TestScoreTestsNewTestBonusCappedAt10(t *testing.T) {
	baseline := makeTestResult(10, 0)
	score := ScoreTests(&baseline, makeTestResult(40, 0))
	if diff := score.Score - 100.0; diff < -0.01 || diff > 0.01 {
		t.Fatalf("score = %v", score.Score)
	}
}

func TestScoreTestsZeroTotalScoresZero(t *testing.T) {
	score := ScoreTests(nil, makeTestResult(0, 0))
	if diff := score.Score - 0.0; diff < -0.01 || diff > 0.01 {
		t.Fatalf("score = %v", score.Score)
	}
}

func TestScoreTestsFullRegressionHeavilyPenalized(t *testing.T) {
	baseline := makeTestResult(10, 0)
	score := ScoreTests(&baseline, makeTestResult(0, 10))
	if diff := score.Score - 0.0; diff < -0.01 || diff > 0.01 {
		t.Fatalf("score = %v", score.Score)
	}
}

func TestScoreTestsDropDetected(t *testing.T) {
	baseline := makeTestResult(10, 0)
	score := ScoreTests(&baseline, makeTestResult(5, 0))
	if score.Evidence["test_drop_detected"] != true {
		t.Fatalf("evidence = %+v", score.Evidence)
	}
}

func TestScoreTestsNoDropWhenMaintained(t *testing.T) {
	baseline := makeTestResult(10, 0)
	score := ScoreTests(&baseline, makeTestResult(9, 0))
	if score.Evidence["test_drop_detected"] != false {
		t.Fatalf("evidence = %+v", score.Evidence)
	}
}

func TestScoreTestsZeroBaselineNoRegressionPenalty(t *testing.T) {
	baseline := makeTestResult(0, 0)
	score := ScoreTests(&baseline, makeTestResult(5, 0))
	if diff := score.Score - 100.0; diff < -1.0 || diff > 1.0 {
		t.Fatalf("score = %v", score.Score)
	}
}

func TestScoreBuildSuccessScores100(t *testing.T) {
	score := ScoreBuild(CommandResult{Success: true})
	if score.Score != 100.0 {
		t.Fatalf("score = %v", score.Score)
	}
}

func TestScoreBuildFailureScoresZero(t *testing.T) {
	score := ScoreBuild(CommandResult{Success: false})
	if score.Score != 0.0 {
		t.Fatalf("score = %v", score.Score)
	}
}

func TestScoreLintCleanScores100(t *testing.T) {
	score := ScoreLint(nil, LintResult{Errors: 0, Warnings: 0})
	if score.Score != 100.0 {
		t.Fatalf("score = %v", score.Score)
	}
}

func TestScoreLintErrorsPenalizedMoreThanWarnings(t *testing.T) {
	errScore := ScoreLint(nil, LintResult{Errors: 1, Warnings: 0})
	warnScore := ScoreLint(nil, LintResult{Errors: 0, Warnings: 1})
	if errScore.Score >= warnScore.Score {
		t.Fatalf("errors should be penalized more: err=%v warn=%v", errScore.Score, warnScore.Score)
	}
}

func TestScoreLintNoBaselineTreatsItAsZero(t *testing.T) {
	withNilBaseline := ScoreLint(nil, LintResult{Errors: 1, Warnings: 1})
	withZeroBaseline := ScoreLint(&LintResult{Errors: 0, Warnings: 0}, LintResult{Errors: 1, Warnings: 1})
	if withNilBaseline.Score != withZeroBaseline.Score {
		t.Fatalf("absence of baseline should behave like a zero baseline: nil=%v zero=%v", withNilBaseline.Score, withZeroBaseline.Score)
	}
}

func TestScoreLintPreexistingIssuesAreNotPenalized(t *testing.T) {
	baseline := &LintResult{Errors: 2, Warnings: 3}
	// Agent reports the exact same issues the baseline already had.
	score := ScoreLint(baseline, LintResult{Errors: 2, Warnings: 3})
	if score.Score != 100.0 {
		t.Fatalf("pre-existing lint issues should not penalize the agent, got %v", score.Score)
	}
}

func TestScoreLintOnlyNewIssuesArePenalized(t *testing.T) {
	baseline := &LintResult{Errors: 2, Warnings: 3}
	// Agent fixes nothing and introduces one new error and one new warning.
	score := ScoreLint(baseline, LintResult{Errors: 3, Warnings: 4})
	want := clamp(100.0-1*10.0-1*2.0, 0.0, 100.0)
	if score.Score != want {
		t.Fatalf("score = %v, want %v", score.Score, want)
	}
	if score.Evidence["new_errors"] != int64(1) || score.Evidence["new_warnings"] != int64(1) {
		t.Fatalf("evidence = %+v, want new_errors=1 new_warnings=1", score.Evidence)
	}
}

func TestScoreLintImprovingOverBaselineDoesNotGoNegative(t *testing.T) {
	baseline := &LintResult{Errors: 5, Warnings: 5}
	// Agent fixes every pre-existing issue.
	score := ScoreLint(baseline, LintResult{Errors: 0, Warnings: 0})
	if score.Score != 100.0 {
		t.Fatalf("fixing pre-existing issues should score 100, got %v", score.Score)
	}
}
