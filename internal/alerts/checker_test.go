package alerts

import (
	"testing"

	"github.com/dennisdiepolder/monti/orchestrator/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func status(current, max int) types.AgentStatus {
	return types.AgentStatus{
		AgentID:         "agent",
		CurrentCapacity: current,
		MaxCapacity:     max,
		Utilization:     1 - float64(current)/float64(max),
	}
}

func TestCheckAgentAlerts(t *testing.T) {
	tests := []struct {
		name     string
		agent    types.AgentStatus
		rule     string
		severity types.AlertSeverity
	}{
		{"idle agent", status(5, 5), "", ""},
		{"moderate load", status(2, 5), "", ""},
		{"high load", status(1, 5), "high_load", types.SeverityWarning},
		{"at capacity", status(0, 5), "at_capacity", types.SeverityCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agents := []types.AgentStatus{tt.agent}
			CheckAgentAlerts(agents)

			if tt.rule == "" {
				assert.Empty(t, agents[0].Alerts)
				return
			}
			require.Len(t, agents[0].Alerts, 1)
			assert.Equal(t, tt.rule, agents[0].Alerts[0].Rule)
			assert.Equal(t, tt.severity, agents[0].Alerts[0].Severity)
		})
	}
}

func TestCheckAgentAlertsClearsStaleAlerts(t *testing.T) {
	agents := []types.AgentStatus{status(0, 4)}
	CheckAgentAlerts(agents)
	require.Len(t, agents[0].Alerts, 1)

	agents[0] = status(4, 4)
	agents[0].Alerts = []types.AgentAlert{{Rule: "at_capacity"}}
	CheckAgentAlerts(agents)
	assert.Empty(t, agents[0].Alerts)
}

func TestHighLoadMessage(t *testing.T) {
	agents := []types.AgentStatus{status(1, 10)}
	CheckAgentAlerts(agents)

	require.Len(t, agents[0].Alerts, 1)
	assert.Equal(t, "Load at 90%", agents[0].Alerts[0].Message)
}
