package merge

import "github.com/phstella/hydra/internal/scoring"

// SelectWinner picks the mergeable agent with the highest composite score.
// ranking.Rankings is assumed already sorted descending by total (as
// scoring.RankAgents returns it), so this returns the first mergeable entry.
func SelectWinner(ranking scoring.RankingResult) (string, error) {
	for _, agent := range ranking.Rankings {
		if agent.Mergeable {
			return agent.AgentKey, nil
		}
	}
	return "", ErrNoMergeableAgent
}
