package dispatch

import "github.com/dennisdiepolder/monti/orchestrator/internal/types"

// MatchScore rates how well an agent fits a ticket:
// skill × (current/max) × (1 + 0.5 × urgency).
// Agents with more free capacity score higher, and urgent tickets amplify
// differences between agents.
func MatchScore(agent types.Agent, category types.Category, urgency float64) float64 {
	if agent.MaxCapacity <= 0 {
		return 0
	}
	capacityFactor := float64(agent.CurrentCapacity) / float64(agent.MaxCapacity)
	urgencyWeight := 1 + 0.5*urgency
	return agent.Skill(category) * capacityFactor * urgencyWeight
}

// selectBest returns the index of the highest scoring agent. Ties go to the
// earliest agent, so callers must pass agents in registry order.
func selectBest(agents []types.Agent, category types.Category, urgency float64) (int, float64) {
	best := -1
	bestScore := -1.0
	for i, agent := range agents {
		score := MatchScore(agent, category, urgency)
		if score > bestScore {
			best = i
			bestScore = score
		}
	}
	return best, bestScore
}
