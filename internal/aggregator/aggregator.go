package aggregator

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dennisdiepolder/monti/orchestrator/internal/alerts"
	"github.com/dennisdiepolder/monti/orchestrator/internal/metrics"
	"github.com/dennisdiepolder/monti/orchestrator/internal/types"
	"github.com/rs/zerolog"
)

// Source exposes the live state of the orchestration core
type Source interface {
	AgentStatus() []types.AgentStatus
	CircuitStatus() types.CircuitStatus
	MasterIncidents() types.IncidentSnapshot
}

// Broadcaster delivers snapshots to dashboard clients
type Broadcaster interface {
	Broadcast(message []byte)
	ClientCount() int
}

// Aggregator periodically builds a dashboard snapshot and broadcasts it
type Aggregator struct {
	source   Source
	hub      Broadcaster
	metrics  *metrics.Metrics
	interval time.Duration
	logger   zerolog.Logger
}

// NewAggregator creates a new aggregator
func NewAggregator(source Source, hub Broadcaster, m *metrics.Metrics, logger zerolog.Logger) *Aggregator {
	return &Aggregator{
		source:   source,
		hub:      hub,
		metrics:  m,
		interval: 1 * time.Second,
		logger:   logger.With().Str("component", "aggregator").Logger(),
	}
}

// Start broadcasts a snapshot every interval until ctx is done
func (a *Aggregator) Start(ctx context.Context) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	a.logger.Info().Msg("aggregator started")

	for {
		select {
		case <-ctx.Done():
			a.logger.Info().Msg("aggregator stopped")
			return

		case <-ticker.C:
			a.cycle()
		}
	}
}

func (a *Aggregator) cycle() {
	cycleStart := time.Now()

	snapshot := a.Snapshot(cycleStart)
	if a.metrics != nil {
		a.metrics.UpdateAgentStats(snapshot.Agents)
		a.metrics.UpdateStormStats(snapshot.MasterIncidents, snapshot.RecentTickets)
	}

	// Nobody is listening
	if a.hub.ClientCount() == 0 {
		return
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		a.logger.Error().Err(err).Msg("failed to marshal snapshot")
		if a.metrics != nil {
			a.metrics.RecordAggregationError()
		}
		return
	}
	a.hub.Broadcast(data)

	if a.metrics != nil {
		a.metrics.RecordAggregationCycle(time.Since(cycleStart), 1)
	}

	a.logger.Debug().
		Int("agents", len(snapshot.Agents)).
		Int("master_incidents", snapshot.MasterIncidents).
		Str("circuit", string(snapshot.Circuit.State)).
		Int("clients", a.hub.ClientCount()).
		Msg("snapshot broadcasted")
}

// Snapshot collects the current state with agent alerts evaluated
func (a *Aggregator) Snapshot(now time.Time) types.Snapshot {
	agents := a.source.AgentStatus()
	alerts.CheckAgentAlerts(agents)

	incidents := a.source.MasterIncidents()
	distinct := make(map[string]struct{}, len(incidents.MasterIncidents))
	for _, id := range incidents.MasterIncidents {
		distinct[id] = struct{}{}
	}

	return types.Snapshot{
		Type:            "snapshot",
		Timestamp:       now,
		Circuit:         a.source.CircuitStatus(),
		Agents:          agents,
		MasterIncidents: len(distinct),
		RecentTickets:   incidents.RecentTickets,
	}
}
