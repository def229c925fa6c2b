package alerts

import (
	"fmt"

	"github.com/dennisdiepolder/monti/orchestrator/internal/types"
)

// HighLoadThreshold is the utilization at which an agent is flagged as busy
const HighLoadThreshold = 0.8

// CheckAgentAlerts evaluates alert rules for a slice of agents,
// mutating each agent's Alerts field in place.
func CheckAgentAlerts(agents []types.AgentStatus) {
	for i := range agents {
		agents[i].Alerts = nil

		switch {
		case agents[i].CurrentCapacity <= 0:
			agents[i].Alerts = append(agents[i].Alerts, types.AgentAlert{
				Rule:     "at_capacity",
				Severity: types.SeverityCritical,
				Message:  fmt.Sprintf("No free slots (%d/%d)", agents[i].MaxCapacity, agents[i].MaxCapacity),
			})
		case agents[i].Utilization >= HighLoadThreshold:
			agents[i].Alerts = append(agents[i].Alerts, types.AgentAlert{
				Rule:     "high_load",
				Severity: types.SeverityWarning,
				Message:  fmt.Sprintf("Load at %s", formatPercent(agents[i].Utilization)),
			})
		}
	}
}

func formatPercent(u float64) string {
	return fmt.Sprintf("%.0f%%", u*100)
}
