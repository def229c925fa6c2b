package types

import "time"

// Category is the business category a ticket is classified into
type Category string

const (
	CategoryTechnical Category = "Technical"
	CategoryBilling   Category = "Billing"
	CategoryLegal     Category = "Legal"
)

// AllCategories lists every known category in display order
var AllCategories = []Category{CategoryTechnical, CategoryBilling, CategoryLegal}

// Valid reports whether c is one of the known categories
func (c Category) Valid() bool {
	for _, known := range AllCategories {
		if c == known {
			return true
		}
	}
	return false
}

// Source identifies which classifier produced a result
type Source string

const (
	SourcePrimary  Source = "primary"
	SourceFallback Source = "fallback"
	SourceNone     Source = "none" // ticket was suppressed before classification
)

// Ticket is a transient support request as it enters the pipeline
type Ticket struct {
	ID          string    `json:"ticketId"`
	Text        string    `json:"text"`
	UserID      string    `json:"userId"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// Classification is the output of either classifier
type Classification struct {
	Category     Category `json:"category"`
	UrgencyScore float64  `json:"urgencyScore"` // 0-1
}

// StormCheck is the result of running a ticket through the storm detector
type StormCheck struct {
	IsDuplicate      bool   `json:"isDuplicate"`
	MasterIncidentID string `json:"masterIncidentId,omitempty"`
	SimilarCount     int    `json:"similarCount"`
}

// IncidentSnapshot is a read-only view of the storm detector state
type IncidentSnapshot struct {
	MasterIncidents map[string]string `json:"masterIncidents"` // ticketId -> incidentId
	RecentTickets   int               `json:"recentTickets"`
}

// DecisionStatus is the terminal state of a ticket after the pipeline ran
type DecisionStatus string

const (
	StatusSuppressed DecisionStatus = "suppressed"
	StatusAssigned   DecisionStatus = "assigned"
	StatusQueued     DecisionStatus = "queued"
)

// Decision is the full pipeline result for a single ticket
type Decision struct {
	TicketID         string         `json:"ticketId"`
	Category         Category       `json:"category,omitempty"`
	UrgencyScore     float64        `json:"urgencyScore"`
	IsDuplicate      bool           `json:"isDuplicate"`
	MasterIncidentID string         `json:"masterIncidentId,omitempty"`
	SimilarCount     int            `json:"similarCount"`
	Source           Source         `json:"source"`
	Assignment       *Assignment    `json:"assignment,omitempty"`
	Status           DecisionStatus `json:"status"`
	DecidedAt        time.Time      `json:"decidedAt"`
}
