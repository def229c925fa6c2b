// Package dispatch assigns classified tickets to agents by skill and free
// capacity.
package dispatch

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dennisdiepolder/monti/orchestrator/internal/types"
	"github.com/rs/zerolog"
)

// ErrInvalidAgent is returned when an agent record violates capacity or skill bounds
var ErrInvalidAgent = errors.New("invalid agent")

type agentRecord struct {
	agent    types.Agent
	assigned int // tickets assigned since the agent was registered
}

// Dispatcher owns the agent registry. Agents are kept in registration order,
// which decides ties between equally scored agents.
type Dispatcher struct {
	mu     sync.Mutex
	order  []string
	agents map[string]*agentRecord
	logger zerolog.Logger
}

// NewDispatcher creates a dispatcher seeded with agents
func NewDispatcher(agents []types.Agent, logger zerolog.Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		agents: make(map[string]*agentRecord),
		logger: logger.With().Str("component", "dispatch").Logger(),
	}
	for _, a := range agents {
		if err := d.AddAgent(a); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// ValidateAgent checks capacity and skill bounds
func ValidateAgent(a types.Agent) error {
	if a.ID == "" {
		return fmt.Errorf("%w: agent id is required", ErrInvalidAgent)
	}
	if a.MaxCapacity <= 0 {
		return fmt.Errorf("%w: %s: max capacity must be positive, got %d", ErrInvalidAgent, a.ID, a.MaxCapacity)
	}
	if a.CurrentCapacity < 0 || a.CurrentCapacity > a.MaxCapacity {
		return fmt.Errorf("%w: %s: current capacity %d outside [0, %d]", ErrInvalidAgent, a.ID, a.CurrentCapacity, a.MaxCapacity)
	}
	for category, skill := range a.Skills {
		if skill < 0 || skill > 1 {
			return fmt.Errorf("%w: %s: skill %s=%v outside [0, 1]", ErrInvalidAgent, a.ID, category, skill)
		}
	}
	return nil
}

// AddAgent registers an agent, or replaces an existing one in place
func (d *Dispatcher) AddAgent(a types.Agent) error {
	if err := ValidateAgent(a); err != nil {
		return err
	}

	a.Skills = copySkills(a.Skills)

	d.mu.Lock()
	defer d.mu.Unlock()

	if rec, ok := d.agents[a.ID]; ok {
		rec.agent = a
		d.logger.Info().Str("agent_id", a.ID).Msg("agent updated")
		return nil
	}
	d.agents[a.ID] = &agentRecord{agent: a}
	d.order = append(d.order, a.ID)
	d.logger.Info().
		Str("agent_id", a.ID).
		Str("name", a.Name).
		Int("max_capacity", a.MaxCapacity).
		Msg("agent registered")
	return nil
}

// Route assigns a single ticket to the best scoring agent with free capacity.
// It returns nil when every agent is at capacity.
func (d *Dispatcher) Route(ticketID string, category types.Category, urgency float64) *types.Assignment {
	d.mu.Lock()
	defer d.mu.Unlock()

	eligible := d.eligibleLocked()
	if len(eligible) == 0 {
		d.logger.Debug().Str("ticket_id", ticketID).Msg("no agent capacity, ticket queued")
		return nil
	}

	agents := make([]types.Agent, len(eligible))
	for i, rec := range eligible {
		agents[i] = rec.agent
	}
	idx, score := selectBest(agents, category, urgency)
	if idx < 0 {
		return nil
	}

	assignment := d.assignLocked(eligible[idx], ticketID, score)
	d.logger.Debug().
		Str("ticket_id", ticketID).
		Str("agent_id", assignment.AgentID).
		Float64("score", score).
		Msg("ticket routed")
	return &assignment
}

// RouteBatch assigns tickets jointly so the total match score is maximal.
// Each agent receives at most one ticket per batch; tickets left over when
// agents run out are omitted from the result.
func (d *Dispatcher) RouteBatch(requests []types.RouteRequest) []types.Assignment {
	d.mu.Lock()
	defer d.mu.Unlock()

	eligible := d.eligibleLocked()
	if len(eligible) == 0 || len(requests) == 0 {
		return nil
	}

	scores := make([][]float64, len(requests))
	cost := make([][]float64, len(requests))
	for i, req := range requests {
		scores[i] = make([]float64, len(eligible))
		cost[i] = make([]float64, len(eligible))
		for j, rec := range eligible {
			s := MatchScore(rec.agent, req.Category, req.UrgencyScore)
			scores[i][j] = s
			cost[i][j] = -s
		}
	}

	rowToCol := solveAssignment(cost)

	var assignments []types.Assignment
	for i, j := range rowToCol {
		if j < 0 {
			continue
		}
		rec := eligible[j]
		if rec.agent.CurrentCapacity <= 0 {
			continue
		}
		assignments = append(assignments, d.assignLocked(rec, requests[i].TicketID, scores[i][j]))
	}

	d.logger.Debug().
		Int("tickets", len(requests)).
		Int("agents", len(eligible)).
		Int("assigned", len(assignments)).
		Msg("batch routed")
	return assignments
}

// Release returns capacity to an agent, capped at its maximum. It reports
// whether the agent is known; unknown agents are ignored.
func (d *Dispatcher) Release(agentID string, count int) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	rec, ok := d.agents[agentID]
	if !ok {
		d.logger.Debug().Str("agent_id", agentID).Msg("release for unknown agent ignored")
		return false
	}
	if count < 1 {
		return true
	}
	rec.agent.CurrentCapacity += count
	if rec.agent.CurrentCapacity > rec.agent.MaxCapacity {
		rec.agent.CurrentCapacity = rec.agent.MaxCapacity
	}
	return true
}

// Status reports every agent in registration order
func (d *Dispatcher) Status() []types.AgentStatus {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]types.AgentStatus, 0, len(d.order))
	for _, id := range d.order {
		rec := d.agents[id]
		out = append(out, types.AgentStatus{
			AgentID:         rec.agent.ID,
			Name:            rec.agent.Name,
			Skills:          copySkills(rec.agent.Skills),
			CurrentCapacity: rec.agent.CurrentCapacity,
			MaxCapacity:     rec.agent.MaxCapacity,
			Utilization:     1 - float64(rec.agent.CurrentCapacity)/float64(rec.agent.MaxCapacity),
			AssignedTotal:   rec.assigned,
		})
	}
	return out
}

// Agent returns a copy of a registered agent
func (d *Dispatcher) Agent(agentID string) (types.Agent, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	rec, ok := d.agents[agentID]
	if !ok {
		return types.Agent{}, false
	}
	a := rec.agent
	a.Skills = copySkills(rec.agent.Skills)
	return a, true
}

func copySkills(skills map[types.Category]float64) map[types.Category]float64 {
	out := make(map[types.Category]float64, len(skills))
	for k, v := range skills {
		out[k] = v
	}
	return out
}

func (d *Dispatcher) eligibleLocked() []*agentRecord {
	var out []*agentRecord
	for _, id := range d.order {
		rec := d.agents[id]
		if rec.agent.CurrentCapacity > 0 {
			out = append(out, rec)
		}
	}
	return out
}

func (d *Dispatcher) assignLocked(rec *agentRecord, ticketID string, score float64) types.Assignment {
	rec.agent.CurrentCapacity--
	rec.assigned++
	return types.Assignment{
		TicketID:               ticketID,
		AgentID:                rec.agent.ID,
		AgentName:              rec.agent.Name,
		MatchScore:             score,
		AgentRemainingCapacity: rec.agent.CurrentCapacity,
	}
}
