package types

import "time"

// DecisionEvent is broadcast to dashboard clients for every pipeline decision
type DecisionEvent struct {
	Type      string    `json:"type"` // "decision"
	Decision  Decision  `json:"decision"`
	Timestamp time.Time `json:"timestamp"`
}

// CircuitEvent is broadcast when the failover controller changes state
type CircuitEvent struct {
	Type      string       `json:"type"` // "circuit_state"
	From      CircuitState `json:"from"`
	To        CircuitState `json:"to"`
	Timestamp time.Time    `json:"timestamp"`
}

// Snapshot is the payload sent to dashboard clients every tick
type Snapshot struct {
	Type            string        `json:"type"` // always "snapshot"
	Timestamp       time.Time     `json:"timestamp"`
	Circuit         CircuitStatus `json:"circuit"`
	Agents          []AgentStatus `json:"agents"`
	MasterIncidents int           `json:"masterIncidents"`
	RecentTickets   int           `json:"recentTickets"`
}
