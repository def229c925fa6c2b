package types

import "time"

// QueuedTicket is a classified ticket waiting for free agent capacity
type QueuedTicket struct {
	TicketID     string    `json:"ticketId"`
	Category     Category  `json:"category"`
	UrgencyScore float64   `json:"urgencyScore"`
	EnqueuedAt   time.Time `json:"enqueuedAt"`
}

// ServiceLevel is the share of backlog tickets assigned within the threshold
type ServiceLevel struct {
	Target        int     `json:"target"`        // percentage, e.g. 80
	ThresholdSecs int     `json:"thresholdSecs"` // e.g. 60
	AnsweredInSL  int     `json:"answeredInSL"`
	TotalAnswered int     `json:"totalAnswered"`
	CurrentSL     float64 `json:"currentSL"`
}

// BacklogSnapshot describes one category queue
type BacklogSnapshot struct {
	Category        Category     `json:"category"`
	WaitingCount    int          `json:"waitingCount"`
	AssignedCount   int          `json:"assignedCount"`
	LongestWaitSecs float64      `json:"longestWaitSecs"`
	ServiceLevel    ServiceLevel `json:"serviceLevel"`
}

// BacklogAssignEvent is broadcast when a queued ticket is finally assigned
type BacklogAssignEvent struct {
	Type       string     `json:"type"` // "backlog_assign"
	Assignment Assignment `json:"assignment"`
	WaitSecs   float64    `json:"waitSecs"`
	Timestamp  time.Time  `json:"timestamp"`
}
