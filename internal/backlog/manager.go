// Package backlog holds classified tickets that found no free agent and
// retries them as capacity comes back.
package backlog

import (
	"sort"
	"sync"
	"time"

	"github.com/dennisdiepolder/monti/orchestrator/internal/types"
	"github.com/rs/zerolog"
)

// DefaultMaxBatch bounds how many waiting tickets one routing pass considers
const DefaultMaxBatch = 50

// Router assigns tickets jointly
type Router interface {
	RouteBatch(reqs []types.RouteRequest) []types.Assignment
}

// Match is a queued ticket that was assigned during a routing pass
type Match struct {
	Assignment types.Assignment
	WaitSecs   float64
}

// Manager owns the per-category queues
type Manager struct {
	queues   map[types.Category]*CategoryQueue
	router   Router
	maxBatch int
	now      func() time.Time
	mu       sync.Mutex
	logger   zerolog.Logger
}

// NewManager creates a manager with one queue per category
func NewManager(router Router, logger zerolog.Logger) *Manager {
	configs := DefaultQueueConfigs()
	queues := make(map[types.Category]*CategoryQueue, len(configs))
	for c, cfg := range configs {
		queues[c] = NewCategoryQueue(cfg)
	}
	return &Manager{
		queues:   queues,
		router:   router,
		maxBatch: DefaultMaxBatch,
		now:      time.Now,
		logger:   logger.With().Str("component", "backlog").Logger(),
	}
}

// Enqueue parks a ticket until an agent has capacity
func (m *Manager) Enqueue(req types.RouteRequest) {
	m.mu.Lock()
	defer m.mu.Unlock()

	queue, ok := m.queues[req.Category]
	if !ok {
		m.logger.Warn().Str("ticket_id", req.TicketID).Str("category", string(req.Category)).Msg("unknown category, ticket not queued")
		return
	}

	added := queue.Enqueue(types.QueuedTicket{
		TicketID:     req.TicketID,
		Category:     req.Category,
		UrgencyScore: req.UrgencyScore,
		EnqueuedAt:   m.now(),
	})
	if !added {
		return
	}

	m.logger.Debug().
		Str("ticket_id", req.TicketID).
		Str("category", string(req.Category)).
		Int("queue_depth", len(queue.Waiting)).
		Msg("ticket queued")
}

// Cancel drops a waiting ticket
func (m *Manager) Cancel(ticketID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, queue := range m.queues {
		if _, ok := queue.Remove(ticketID); ok {
			return true
		}
	}
	return false
}

// Depth returns the number of waiting tickets across all queues
func (m *Manager) Depth() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := 0
	for _, queue := range m.queues {
		total += len(queue.Waiting)
	}
	return total
}

// TickRouting offers the oldest waiting tickets to the router in one batch,
// most urgent first within equal age, and removes those that were assigned.
func (m *Manager) TickRouting() []Match {
	m.mu.Lock()
	defer m.mu.Unlock()

	var waiting []types.QueuedTicket
	for _, c := range types.AllCategories {
		waiting = append(waiting, m.queues[c].Waiting...)
	}
	if len(waiting) == 0 {
		return nil
	}

	sort.SliceStable(waiting, func(i, j int) bool {
		if !waiting[i].EnqueuedAt.Equal(waiting[j].EnqueuedAt) {
			return waiting[i].EnqueuedAt.Before(waiting[j].EnqueuedAt)
		}
		return waiting[i].UrgencyScore > waiting[j].UrgencyScore
	})
	if len(waiting) > m.maxBatch {
		waiting = waiting[:m.maxBatch]
	}

	reqs := make([]types.RouteRequest, len(waiting))
	categoryOf := make(map[string]types.Category, len(waiting))
	for i, t := range waiting {
		reqs[i] = types.RouteRequest{TicketID: t.TicketID, Category: t.Category, UrgencyScore: t.UrgencyScore}
		categoryOf[t.TicketID] = t.Category
	}

	assignments := m.router.RouteBatch(reqs)
	now := m.now()
	matches := make([]Match, 0, len(assignments))
	for _, a := range assignments {
		queue := m.queues[categoryOf[a.TicketID]]
		wait, ok := queue.Assign(a.TicketID, now)
		if !ok {
			continue
		}
		matches = append(matches, Match{Assignment: a, WaitSecs: wait})

		m.logger.Debug().
			Str("ticket_id", a.TicketID).
			Str("agent_id", a.AgentID).
			Float64("wait_time", wait).
			Msg("queued ticket routed to agent")
	}
	return matches
}

// Snapshots returns one snapshot per category in display order
func (m *Manager) Snapshots() []types.BacklogSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	result := make([]types.BacklogSnapshot, 0, len(m.queues))
	for _, c := range types.AllCategories {
		result = append(result, m.queues[c].Snapshot(now))
	}
	return result
}

// WipeAll clears every queue
func (m *Manager) WipeAll() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := 0
	for _, queue := range m.queues {
		total += queue.Wipe()
	}

	m.logger.Info().Int("cleared", total).Msg("wiped all queued tickets")
	return total
}
