package merge

import (
	"testing"

	"github.com/phstella/hydra/internal/scoring"
)

func TestSelectWinnerPicksHighestMergeable(t *testing.T) {
	ranking := scoring.RankingResult{
		Rankings: []scoring.AgentScore{
			{AgentKey: "claude", Total: 95, Mergeable: true},
			{AgentKey: "codex", Total: 80, Mergeable: true},
		},
	}
	winner, err := SelectWinner(ranking)
	if err != nil {
		t.Fatalf("SelectWinner: %v", err)
	}
	if winner != "claude" {
		t.Fatalf("winner = %q", winner)
	}
}

func TestSelectWinnerSkipsUnmergeableHigherScore(t *testing.T) {
	ranking := scoring.RankingResult{
		Rankings: []scoring.AgentScore{
			{AgentKey: "claude", Total: 95, Mergeable: false},
			{AgentKey: "codex", Total: 80, Mergeable: true},
		},
	}
	winner, err := SelectWinner(ranking)
	if err != nil {
		t.Fatalf("SelectWinner: %v", err)
	}
	if winner != "codex" {
		t.Fatalf("winner = %q", winner)
	}
}

func TestSelectWinnerNoMergeableAgentReturnsError(t *testing.T) {
	ranking := scoring.RankingResult{
		Rankings: []scoring.AgentScore{
			{AgentKey: "claude", Total: 95, Mergeable: false},
		},
	}
	_, err := SelectWinner(ranking)
	if err != ErrNoMergeableAgent {
		t.Fatalf("err = %v, want ErrNoMergeableAgent", err)
	}
}
