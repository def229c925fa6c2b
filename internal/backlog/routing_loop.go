package backlog

import (
	"context"
	"time"

	"github.com/dennisdiepolder/monti/orchestrator/internal/metrics"
	"github.com/dennisdiepolder/monti/orchestrator/internal/types"
	"github.com/rs/zerolog"
)

// Publisher fans events out to live subscribers
type Publisher interface {
	Publish(v interface{}) error
}

// RoutingLoop periodically matches waiting tickets to agents with free capacity
type RoutingLoop struct {
	mgr      *Manager
	pub      Publisher
	metrics  *metrics.Metrics
	interval time.Duration
	logger   zerolog.Logger
}

// NewRoutingLoop creates a new RoutingLoop
func NewRoutingLoop(mgr *Manager, pub Publisher, m *metrics.Metrics, logger zerolog.Logger) *RoutingLoop {
	return &RoutingLoop{
		mgr:      mgr,
		pub:      pub,
		metrics:  m,
		interval: 1 * time.Second,
		logger:   logger.With().Str("component", "backlog_routing").Logger(),
	}
}

// Start begins the routing loop, ticking every interval until the context is cancelled
func (rl *RoutingLoop) Start(ctx context.Context) {
	ticker := time.NewTicker(rl.interval)
	defer ticker.Stop()

	rl.logger.Info().Msg("routing loop started")

	for {
		select {
		case <-ctx.Done():
			rl.logger.Info().Msg("routing loop stopped")
			return
		case <-ticker.C:
			rl.tick()
		}
	}
}

// tick performs a single routing pass
func (rl *RoutingLoop) tick() {
	matches := rl.mgr.TickRouting()

	if rl.metrics != nil {
		rl.metrics.RecordBacklogAssigned(len(matches))
		rl.metrics.UpdateBacklogDepth(rl.mgr.Depth())
	}

	for _, match := range matches {
		if rl.pub == nil {
			break
		}
		ev := types.BacklogAssignEvent{
			Type:       "backlog_assign",
			Assignment: match.Assignment,
			WaitSecs:   match.WaitSecs,
			Timestamp:  time.Now(),
		}
		if err := rl.pub.Publish(ev); err != nil {
			rl.logger.Warn().Err(err).
				Str("ticket_id", match.Assignment.TicketID).
				Str("agent_id", match.Assignment.AgentID).
				Msg("failed to publish backlog assignment")
		}
	}
}
