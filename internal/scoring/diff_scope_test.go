package scoring

import (
	"testing"

	"github.com/phstella/hydra/internal/config"
)

func defaultDiffScopeConfig() config.ScoringConfig {
	return config.ScoringConfig{MaxFilesSoft: 20, MaxChurnSoft: 800}
}

func TestParseNumstatBasic(t *testing.T) {
	output := "10\t5\tsrc/main.go\n20\t3\tsrc/lib.go\n"
	stats := ParseNumstat(output)
	if stats.FilesChanged != 2 || stats.LinesAdded != 30 || stats.LinesRemoved != 8 {
		t.Fatalf("got %+v", stats)
	}
	if len(stats.Paths) != 2 || stats.Paths[0] != "src/main.go" || stats.Paths[1] != "src/lib.go" {
		t.Fatalf("paths = %+v", stats.Paths)
	}
}

func TestParseNumstatEmpty(t *testing.T) {
	stats := ParseNumstat("")
	if stats.FilesChanged != 0 || stats.TotalChurn() != 0 {
		t.Fatalf("got %+v", stats)
	}
}

func TestModestChangeScoresHigh(t *testing.T) {
	cfg := defaultDiffScopeConfig()
	stats := DiffStats{FilesChanged: 3, LinesAdded: 50, LinesRemoved: 10, Paths: []string{"a.go", "b.go", "c.go"}}
	score := ScoreDiffScope(stats, cfg)
	if diff := score.Score - 100.0; diff < -0.01 || diff > 0.01 {
		t.Fatalf("score = %v", score.Score)
	}
}

func TestExcessiveChurnPenalized(t *testing.T) {
	cfg := defaultDiffScopeConfig()
	paths := make([]string, 5)
	for i := range paths {
		paths[i] = "src/x.go"
	}
	stats := DiffStats{FilesChanged: 5, LinesAdded: 1200, LinesRemoved: 400, Paths: paths}
	score := ScoreDiffScope(stats, cfg)
	if score.Score >= 100.0 {
		t.Fatalf("score = %v, want < 100", score.Score)
	}
}

func TestExcessiveFilesPenalized(t *testing.T) {
	cfg := defaultDiffScopeConfig()
	paths := make([]string, 50)
	for i := range paths {
		paths[i] = "src/x.go"
	}
	stats := DiffStats{FilesChanged: 50, LinesAdded: 100, LinesRemoved: 50, Paths: paths}
	score := ScoreDiffScope(stats, cfg)
	if score.Score >= 100.0 {
		t.Fatalf("score = %v, want < 100", score.Score)
	}
}

func TestProtectedPathCapsAt30(t *testing.T) {
	cfg := defaultDiffScopeConfig()
	cfg.ProtectedPaths = []string{"infra/"}
	stats := DiffStats{FilesChanged: 2, LinesAdded: 10, LinesRemoved: 5, Paths: []string{"src/main.go", "infra/deploy.sh"}}
	score := ScoreDiffScope(stats, cfg)
	if score.Score > 30.0 {
		t.Fatalf("score = %v, want <= 30", score.Score)
	}
}

func TestNoProtectedPathsNoCap(t *testing.T) {
	cfg := defaultDiffScopeConfig()
	stats := DiffStats{FilesChanged: 2, LinesAdded: 10, LinesRemoved: 5, Paths: []string{"src/main.go", "infra/deploy.sh"}}
	score := ScoreDiffScope(stats, cfg)
	if diff := score.Score - 100.0; diff < -0.01 || diff > 0.01 {
		t.Fatalf("score = %v", score.Score)
	}
}

func TestEmptyDiffScores100(t *testing.T) {
	cfg := defaultDiffScopeConfig()
	score := ScoreDiffScope(DiffStats{}, cfg)
	if diff := score.Score - 100.0; diff < -0.01 || diff > 0.01 {
		t.Fatalf("score = %v", score.Score)
	}
}
