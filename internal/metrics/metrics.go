package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/dennisdiepolder/monti/orchestrator/internal/types"
)

// Metrics holds all application metrics
type Metrics struct {
	mu sync.RWMutex

	// Pipeline metrics
	TicketsReceivedTotal   int64
	TicketsSuppressedTotal int64
	TicketsAssignedTotal   int64
	TicketsQueuedTotal     int64
	TicketsConflictTotal   int64
	BatchAssignmentsTotal  int64
	BacklogAssignedTotal   int64
	backlogDepth           int
	decisionsBySource      map[types.Source]int64
	decisionsByCategory    map[types.Category]int64

	// Failover controller metrics
	circuitTransitions map[types.CircuitState]int64
	circuitState       types.CircuitState

	// WebSocket metrics
	WebSocketConnectionsTotal    int64
	WebSocketDisconnectionsTotal int64
	WebSocketMessagesTotal       int64
	WebSocketErrorsTotal         int64
	activeConnections            int64

	// Aggregation metrics
	AggregationCyclesTotal  int64
	SnapshotsBroadcastTotal int64
	AggregationErrorsTotal  int64
	lastAggregationDuration time.Duration

	// Agent metrics
	agents            []types.AgentStatus
	masterIncidents   int
	recentTicketCount int

	// HTTP metrics
	httpRequestsTotal    map[string]map[int]int64 // endpoint -> status -> count
	httpRequestDurations map[string][]float64     // endpoint -> durations

	// Timing
	startTime time.Time
}

// New creates an empty metrics registry
func New() *Metrics {
	return &Metrics{
		decisionsBySource:    make(map[types.Source]int64),
		decisionsByCategory:  make(map[types.Category]int64),
		circuitTransitions:   make(map[types.CircuitState]int64),
		circuitState:         types.CircuitClosed,
		httpRequestsTotal:    make(map[string]map[int]int64),
		httpRequestDurations: make(map[string][]float64),
		startTime:            time.Now(),
	}
}

// RecordTicketReceived increments the tickets received counter
func (m *Metrics) RecordTicketReceived() {
	m.mu.Lock()
	m.TicketsReceivedTotal++
	m.mu.Unlock()
}

// RecordConflict counts submissions rejected by the idempotency lock
func (m *Metrics) RecordConflict() {
	m.mu.Lock()
	m.TicketsConflictTotal++
	m.mu.Unlock()
}

// RecordDecision counts a finished pipeline decision
func (m *Metrics) RecordDecision(d types.Decision) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch d.Status {
	case types.StatusSuppressed:
		m.TicketsSuppressedTotal++
	case types.StatusAssigned:
		m.TicketsAssignedTotal++
	case types.StatusQueued:
		m.TicketsQueuedTotal++
	}
	m.decisionsBySource[d.Source]++
	if d.Category != "" {
		m.decisionsByCategory[d.Category]++
	}
}

// RecordBatch counts assignments produced by a batch solve
func (m *Metrics) RecordBatch(assigned int) {
	m.mu.Lock()
	m.BatchAssignmentsTotal += int64(assigned)
	m.mu.Unlock()
}

// RecordBacklogAssigned counts queued tickets that later found an agent
func (m *Metrics) RecordBacklogAssigned(n int) {
	m.mu.Lock()
	m.BacklogAssignedTotal += int64(n)
	m.mu.Unlock()
}

// UpdateBacklogDepth replaces the waiting tickets gauge
func (m *Metrics) UpdateBacklogDepth(depth int) {
	m.mu.Lock()
	m.backlogDepth = depth
	m.mu.Unlock()
}

// RecordCircuitTransition records a failover controller state change
func (m *Metrics) RecordCircuitTransition(to types.CircuitState) {
	m.mu.Lock()
	m.circuitTransitions[to]++
	m.circuitState = to
	m.mu.Unlock()
}

// RecordWebSocketConnect increments connection counters
func (m *Metrics) RecordWebSocketConnect() {
	m.mu.Lock()
	m.WebSocketConnectionsTotal++
	m.activeConnections++
	m.mu.Unlock()
}

// RecordWebSocketDisconnect increments disconnection counter
func (m *Metrics) RecordWebSocketDisconnect() {
	m.mu.Lock()
	m.WebSocketDisconnectionsTotal++
	m.activeConnections--
	m.mu.Unlock()
}

// RecordWebSocketMessage increments message counter
func (m *Metrics) RecordWebSocketMessage() {
	m.mu.Lock()
	m.WebSocketMessagesTotal++
	m.mu.Unlock()
}

// RecordWebSocketError increments WebSocket error counter
func (m *Metrics) RecordWebSocketError() {
	m.mu.Lock()
	m.WebSocketErrorsTotal++
	m.mu.Unlock()
}

// RecordAggregationCycle records an aggregation cycle
func (m *Metrics) RecordAggregationCycle(duration time.Duration, snapshots int) {
	m.mu.Lock()
	m.AggregationCyclesTotal++
	m.SnapshotsBroadcastTotal += int64(snapshots)
	m.lastAggregationDuration = duration
	m.mu.Unlock()
}

// RecordAggregationError increments aggregation error counter
func (m *Metrics) RecordAggregationError() {
	m.mu.Lock()
	m.AggregationErrorsTotal++
	m.mu.Unlock()
}

// UpdateAgentStats replaces the agent load gauges
func (m *Metrics) UpdateAgentStats(agents []types.AgentStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.agents = make([]types.AgentStatus, len(agents))
	copy(m.agents, agents)
}

// UpdateStormStats replaces the storm detector gauges
func (m *Metrics) UpdateStormStats(masterIncidents, recentTickets int) {
	m.mu.Lock()
	m.masterIncidents = masterIncidents
	m.recentTicketCount = recentTickets
	m.mu.Unlock()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(endpoint string, statusCode int, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.httpRequestsTotal[endpoint] == nil {
		m.httpRequestsTotal[endpoint] = make(map[int]int64)
	}
	m.httpRequestsTotal[endpoint][statusCode]++

	// Keep last 100 durations for percentile calculation
	if len(m.httpRequestDurations[endpoint]) >= 100 {
		m.httpRequestDurations[endpoint] = m.httpRequestDurations[endpoint][1:]
	}
	m.httpRequestDurations[endpoint] = append(m.httpRequestDurations[endpoint], duration.Seconds())
}

// GetActiveConnections returns current WebSocket connections
func (m *Metrics) GetActiveConnections() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeConnections
}

// Handler returns an HTTP handler for the /metrics endpoint
func (m *Metrics) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m.mu.RLock()
		defer m.mu.RUnlock()

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		// Helper to write metric
		write := func(name string, value interface{}, labels ...string) {
			labelStr := ""
			if len(labels) > 0 {
				labelStr = "{"
				for i := 0; i < len(labels); i += 2 {
					if i > 0 {
						labelStr += ","
					}
					labelStr += labels[i] + "=\"" + labels[i+1] + "\""
				}
				labelStr += "}"
			}

			switch v := value.(type) {
			case int:
				w.Write([]byte(name + labelStr + " " + strconv.Itoa(v) + "\n"))
			case int64:
				w.Write([]byte(name + labelStr + " " + strconv.FormatInt(v, 10) + "\n"))
			case float64:
				w.Write([]byte(name + labelStr + " " + strconv.FormatFloat(v, 'f', 6, 64) + "\n"))
			}
		}

		write("orchestrator_uptime_seconds", time.Since(m.startTime).Seconds())

		// Pipeline metrics
		write("orchestrator_tickets_received_total", m.TicketsReceivedTotal)
		write("orchestrator_tickets_suppressed_total", m.TicketsSuppressedTotal)
		write("orchestrator_tickets_assigned_total", m.TicketsAssignedTotal)
		write("orchestrator_tickets_queued_total", m.TicketsQueuedTotal)
		write("orchestrator_tickets_conflict_total", m.TicketsConflictTotal)
		write("orchestrator_batch_assignments_total", m.BatchAssignmentsTotal)
		write("orchestrator_backlog_assigned_total", m.BacklogAssignedTotal)
		write("orchestrator_backlog_depth", m.backlogDepth)
		for source, count := range m.decisionsBySource {
			write("orchestrator_decisions_total", count, "source", string(source))
		}
		for category, count := range m.decisionsByCategory {
			write("orchestrator_decisions_by_category_total", count, "category", string(category))
		}

		// Failover controller
		for _, state := range []types.CircuitState{types.CircuitClosed, types.CircuitOpen, types.CircuitHalfOpen} {
			open := 0
			if m.circuitState == state {
				open = 1
			}
			write("orchestrator_circuit_state", open, "state", string(state))
			write("orchestrator_circuit_transitions_total", m.circuitTransitions[state], "to", string(state))
		}

		// Storm detector
		write("orchestrator_master_incidents", m.masterIncidents)
		write("orchestrator_recent_tickets", m.recentTicketCount)

		// WebSocket metrics
		write("orchestrator_websocket_connections_total", m.WebSocketConnectionsTotal)
		write("orchestrator_websocket_disconnections_total", m.WebSocketDisconnectionsTotal)
		write("orchestrator_websocket_active_connections", m.activeConnections)
		write("orchestrator_websocket_messages_total", m.WebSocketMessagesTotal)
		write("orchestrator_websocket_errors_total", m.WebSocketErrorsTotal)

		// Aggregation metrics
		write("orchestrator_aggregation_cycles_total", m.AggregationCyclesTotal)
		write("orchestrator_snapshots_broadcast_total", m.SnapshotsBroadcastTotal)
		write("orchestrator_aggregation_errors_total", m.AggregationErrorsTotal)
		write("orchestrator_aggregation_duration_seconds", m.lastAggregationDuration.Seconds())

		// Agent metrics
		write("orchestrator_agents_total", len(m.agents))
		for _, a := range m.agents {
			write("orchestrator_agent_free_capacity", a.CurrentCapacity, "agent", a.AgentID)
			write("orchestrator_agent_utilization", a.Utilization, "agent", a.AgentID)
			write("orchestrator_agent_assigned_total", a.AssignedTotal, "agent", a.AgentID)
		}

		// HTTP metrics
		for endpoint, statusCodes := range m.httpRequestsTotal {
			for status, count := range statusCodes {
				write("orchestrator_http_requests_total", count, "endpoint", endpoint, "status", strconv.Itoa(status))
			}
		}
	}
}
