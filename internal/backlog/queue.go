package backlog

import (
	"time"

	"github.com/dennisdiepolder/monti/orchestrator/internal/types"
)

// CategoryQueue is the FIFO of tickets of one category waiting for capacity
type CategoryQueue struct {
	Category types.Category
	Waiting  []types.QueuedTicket
	Assigned int
	SL       *SLTracker
}

// NewCategoryQueue creates an empty queue
func NewCategoryQueue(config QueueConfig) *CategoryQueue {
	return &CategoryQueue{
		Category: config.Category,
		Waiting:  make([]types.QueuedTicket, 0),
		SL:       NewSLTracker(config.SLTarget, config.SLSeconds),
	}
}

// Enqueue appends a ticket unless it is already waiting
func (q *CategoryQueue) Enqueue(t types.QueuedTicket) bool {
	if q.index(t.TicketID) >= 0 {
		return false
	}
	q.Waiting = append(q.Waiting, t)
	return true
}

// Remove takes a waiting ticket out of the queue
func (q *CategoryQueue) Remove(ticketID string) (types.QueuedTicket, bool) {
	i := q.index(ticketID)
	if i < 0 {
		return types.QueuedTicket{}, false
	}
	t := q.Waiting[i]
	q.Waiting = append(q.Waiting[:i], q.Waiting[i+1:]...)
	return t, true
}

// Assign removes a ticket that found an agent and records its wait
func (q *CategoryQueue) Assign(ticketID string, now time.Time) (float64, bool) {
	t, ok := q.Remove(ticketID)
	if !ok {
		return 0, false
	}
	wait := now.Sub(t.EnqueuedAt).Seconds()
	q.Assigned++
	q.SL.RecordAnswer(wait)
	return wait, true
}

// LongestWaitSecs returns the wait time of the oldest waiting ticket
func (q *CategoryQueue) LongestWaitSecs(now time.Time) float64 {
	if len(q.Waiting) == 0 {
		return 0
	}
	return now.Sub(q.Waiting[0].EnqueuedAt).Seconds()
}

// Wipe clears all waiting tickets and returns how many were dropped
func (q *CategoryQueue) Wipe() int {
	count := len(q.Waiting)
	q.Waiting = nil
	return count
}

// Snapshot returns a BacklogSnapshot of the current queue state
func (q *CategoryQueue) Snapshot(now time.Time) types.BacklogSnapshot {
	return types.BacklogSnapshot{
		Category:        q.Category,
		WaitingCount:    len(q.Waiting),
		AssignedCount:   q.Assigned,
		LongestWaitSecs: q.LongestWaitSecs(now),
		ServiceLevel:    q.SL.Snapshot(),
	}
}

func (q *CategoryQueue) index(ticketID string) int {
	for i, t := range q.Waiting {
		if t.TicketID == ticketID {
			return i
		}
	}
	return -1
}
