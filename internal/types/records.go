package types

// DecisionRecord represents a pipeline decision for DynamoDB persistence
type DecisionRecord struct {
	DateKey          string  `json:"dateKey" dynamodbav:"DateKey"`   // YYYY-MM-DD (partition key)
	TicketID         string  `json:"ticketId" dynamodbav:"TicketID"` // sort key
	UserID           string  `json:"userId" dynamodbav:"UserID"`
	Category         string  `json:"category" dynamodbav:"Category"`
	UrgencyScore     float64 `json:"urgencyScore" dynamodbav:"UrgencyScore"`
	Source           string  `json:"source" dynamodbav:"Source"`
	Status           string  `json:"status" dynamodbav:"Status"`
	MasterIncidentID string  `json:"masterIncidentId,omitempty" dynamodbav:"MasterIncidentID,omitempty"`
	AgentID          string  `json:"agentId,omitempty" dynamodbav:"AgentID,omitempty"`
	MatchScore       float64 `json:"matchScore" dynamodbav:"MatchScore"`
	DecidedAt        string  `json:"decidedAt" dynamodbav:"DecidedAt"` // RFC3339
}

// AgentDailyStats is a point-in-time load snapshot of an agent for DynamoDB
type AgentDailyStats struct {
	AgentID         string  `json:"agentId" dynamodbav:"AgentID"` // partition key
	Date            string  `json:"date" dynamodbav:"Date"`       // RFC3339 snapshot time (sort key)
	Name            string  `json:"name" dynamodbav:"Name"`
	CurrentCapacity int     `json:"currentCapacity" dynamodbav:"CurrentCapacity"`
	MaxCapacity     int     `json:"maxCapacity" dynamodbav:"MaxCapacity"`
	Utilization     float64 `json:"utilization" dynamodbav:"Utilization"`
	AssignedTotal   int     `json:"assignedTotal" dynamodbav:"AssignedTotal"`
}
