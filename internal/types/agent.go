package types

// AlertSeverity represents the severity of an agent alert
type AlertSeverity string

const (
	SeverityWarning  AlertSeverity = "warning"
	SeverityCritical AlertSeverity = "critical"
)

// AgentAlert represents an alert condition for an agent
type AgentAlert struct {
	Rule     string        `json:"rule"`
	Severity AlertSeverity `json:"severity"`
	Message  string        `json:"message"`
}

// Agent is a human agent that can receive tickets.
// CurrentCapacity is the number of free slots, not the number of open tickets.
type Agent struct {
	ID              string               `json:"agentId" yaml:"id"`
	Name            string               `json:"name" yaml:"name"`
	Skills          map[Category]float64 `json:"skills" yaml:"skills"` // proficiency 0-1 per category
	CurrentCapacity int                  `json:"currentCapacity" yaml:"current_capacity"`
	MaxCapacity     int                  `json:"maxCapacity" yaml:"max_capacity"`
}

// Skill returns the agent's proficiency for a category, 0 when unknown
func (a Agent) Skill(c Category) float64 {
	return a.Skills[c]
}

// AgentStatus is the reporting view of an agent
type AgentStatus struct {
	AgentID         string               `json:"agentId"`
	Name            string               `json:"name"`
	Skills          map[Category]float64 `json:"skills"`
	CurrentCapacity int                  `json:"currentCapacity"`
	MaxCapacity     int                  `json:"maxCapacity"`
	Utilization     float64              `json:"utilization"` // 1 - current/max
	AssignedTotal   int                  `json:"assignedTotal"`
	Alerts          []AgentAlert         `json:"alerts,omitempty"`
}

// Assignment records a ticket routed to an agent
type Assignment struct {
	TicketID               string  `json:"ticketId"`
	AgentID                string  `json:"agentId"`
	AgentName              string  `json:"agentName"`
	MatchScore             float64 `json:"matchScore"`
	AgentRemainingCapacity int     `json:"agentRemainingCapacity"`
}

// RouteRequest is a pre-classified ticket waiting for an agent
type RouteRequest struct {
	TicketID     string   `json:"ticketId"`
	Category     Category `json:"category"`
	UrgencyScore float64  `json:"urgencyScore"`
}
