package dispatch

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/dennisdiepolder/monti/orchestrator/internal/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func agent(id string, tech, billing float64, capacity int) types.Agent {
	return types.Agent{
		ID:   id,
		Name: "Agent " + id,
		Skills: map[types.Category]float64{
			types.CategoryTechnical: tech,
			types.CategoryBilling:   billing,
		},
		CurrentCapacity: capacity,
		MaxCapacity:     capacity,
	}
}

func newTestDispatcher(t *testing.T, agents ...types.Agent) *Dispatcher {
	t.Helper()
	d, err := NewDispatcher(agents, zerolog.Nop())
	require.NoError(t, err)
	return d
}

func TestMatchScore(t *testing.T) {
	a := agent("a", 0.8, 0.2, 4)
	a.CurrentCapacity = 2

	assert.InDelta(t, 0.8*0.5*1.25, MatchScore(a, types.CategoryTechnical, 0.5), 1e-9)
	assert.Zero(t, MatchScore(a, types.CategoryLegal, 1))
}

func TestValidateAgent(t *testing.T) {
	tests := []struct {
		name  string
		agent types.Agent
	}{
		{"missing id", types.Agent{MaxCapacity: 1}},
		{"zero max capacity", types.Agent{ID: "a", MaxCapacity: 0}},
		{"negative current", types.Agent{ID: "a", MaxCapacity: 2, CurrentCapacity: -1}},
		{"current above max", types.Agent{ID: "a", MaxCapacity: 2, CurrentCapacity: 3}},
		{"skill above one", types.Agent{ID: "a", MaxCapacity: 2, Skills: map[types.Category]float64{types.CategoryLegal: 1.2}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAgent(tt.agent)
			assert.True(t, errors.Is(err, ErrInvalidAgent), "got %v", err)
		})
	}

	_, err := NewDispatcher([]types.Agent{{ID: "bad"}}, zerolog.Nop())
	assert.Error(t, err)
}

func TestRoutePicksHighestScore(t *testing.T) {
	d := newTestDispatcher(t,
		agent("alice", 0.9, 0.1, 5),
		agent("carol", 0.1, 0.9, 5),
	)

	got := d.Route("T-1", types.CategoryBilling, 0.9)
	require.NotNil(t, got)
	assert.Equal(t, "carol", got.AgentID)
	assert.Equal(t, "Agent carol", got.AgentName)
	assert.Equal(t, 4, got.AgentRemainingCapacity)
	assert.InDelta(t, 0.9*1.45, got.MatchScore, 1e-9)
}

func TestRouteTieGoesToFirstRegistered(t *testing.T) {
	d := newTestDispatcher(t,
		agent("first", 0.5, 0, 3),
		agent("second", 0.5, 0, 3),
	)

	got := d.Route("T-1", types.CategoryTechnical, 0)
	require.NotNil(t, got)
	assert.Equal(t, "first", got.AgentID)
}

func TestRouteZeroScoreStillAssigns(t *testing.T) {
	d := newTestDispatcher(t, agent("only", 0, 0, 1))

	got := d.Route("T-1", types.CategoryLegal, 0.5)
	require.NotNil(t, got)
	assert.Equal(t, "only", got.AgentID)
	assert.Zero(t, got.MatchScore)
}

func TestRouteDecrementsAndQueuesWhenFull(t *testing.T) {
	d := newTestDispatcher(t, agent("a", 1, 0, 2))

	first := d.Route("T-1", types.CategoryTechnical, 0)
	second := d.Route("T-2", types.CategoryTechnical, 0)
	third := d.Route("T-3", types.CategoryTechnical, 0)

	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.Equal(t, 1, first.AgentRemainingCapacity)
	assert.Equal(t, 0, second.AgentRemainingCapacity)
	assert.Nil(t, third)

	status := d.Status()
	require.Len(t, status, 1)
	assert.Equal(t, 0, status[0].CurrentCapacity)
	assert.Equal(t, 1.0, status[0].Utilization)
	assert.Equal(t, 2, status[0].AssignedTotal)
}

func TestRouteNeverPicksExhaustedAgent(t *testing.T) {
	expert := agent("expert", 1, 0, 1)
	expert.CurrentCapacity = 0
	d := newTestDispatcher(t, expert, agent("novice", 0.1, 0, 1))

	got := d.Route("T-1", types.CategoryTechnical, 1)
	require.NotNil(t, got)
	assert.Equal(t, "novice", got.AgentID)
}

func TestCapacityFactorShiftsLoad(t *testing.T) {
	d := newTestDispatcher(t,
		agent("alice", 0.9, 0, 5),
		agent("bob", 0.8, 0, 5),
	)

	// Alice wins until her free-capacity ratio drops enough for Bob to lead.
	assert.Equal(t, "alice", d.Route("T-1", types.CategoryTechnical, 0).AgentID)
	assert.Equal(t, "bob", d.Route("T-2", types.CategoryTechnical, 0).AgentID)
}

func TestRouteBatchOptimalExample(t *testing.T) {
	d := newTestDispatcher(t,
		agent("agent1", 0.9, 0.1, 5),
		agent("agent2", 0.1, 0.9, 5),
	)

	got := d.RouteBatch([]types.RouteRequest{
		{TicketID: "t1", Category: types.CategoryTechnical, UrgencyScore: 0.2},
		{TicketID: "t2", Category: types.CategoryBilling, UrgencyScore: 0.2},
	})

	require.Len(t, got, 2)
	assert.Equal(t, "t1", got[0].TicketID)
	assert.Equal(t, "agent1", got[0].AgentID)
	assert.Equal(t, "t2", got[1].TicketID)
	assert.Equal(t, "agent2", got[1].AgentID)
	assert.InDelta(t, 0.99, got[0].MatchScore, 1e-9)
	assert.Equal(t, 4, got[0].AgentRemainingCapacity)
}

func TestRouteBatchBeatsGreedy(t *testing.T) {
	d := newTestDispatcher(t,
		agent("A", 0.9, 0.8, 1),
		agent("B", 0.8, 0.1, 1),
	)

	got := d.RouteBatch([]types.RouteRequest{
		{TicketID: "t1", Category: types.CategoryTechnical},
		{TicketID: "t2", Category: types.CategoryBilling},
	})

	require.Len(t, got, 2)
	byTicket := map[string]types.Assignment{}
	total := 0.0
	for _, a := range got {
		byTicket[a.TicketID] = a
		total += a.MatchScore
	}
	assert.Equal(t, "B", byTicket["t1"].AgentID)
	assert.Equal(t, "A", byTicket["t2"].AgentID)
	assert.InDelta(t, 1.6, total, 1e-9)
}

func TestRouteBatchMoreTicketsThanAgents(t *testing.T) {
	d := newTestDispatcher(t,
		agent("tech", 1, 0, 5),
		agent("billing", 0, 1, 5),
	)

	got := d.RouteBatch([]types.RouteRequest{
		{TicketID: "t1", Category: types.CategoryTechnical, UrgencyScore: 0.1},
		{TicketID: "t2", Category: types.CategoryTechnical, UrgencyScore: 0.9},
		{TicketID: "t3", Category: types.CategoryBilling, UrgencyScore: 0.5},
	})

	require.Len(t, got, 2)
	assert.Equal(t, "t2", got[0].TicketID)
	assert.Equal(t, "tech", got[0].AgentID)
	assert.Equal(t, "t3", got[1].TicketID)
	assert.Equal(t, "billing", got[1].AgentID)
}

func TestRouteBatchSkipsExhaustedAgents(t *testing.T) {
	full := agent("full", 1, 1, 2)
	full.CurrentCapacity = 0
	d := newTestDispatcher(t, full, agent("free", 0.2, 0.2, 2))

	got := d.RouteBatch([]types.RouteRequest{
		{TicketID: "t1", Category: types.CategoryTechnical},
		{TicketID: "t2", Category: types.CategoryBilling},
	})

	require.Len(t, got, 1)
	assert.Equal(t, "free", got[0].AgentID)
}

func TestRouteBatchEmpty(t *testing.T) {
	d := newTestDispatcher(t, agent("a", 1, 1, 1))
	assert.Empty(t, d.RouteBatch(nil))

	empty := newTestDispatcher(t)
	assert.Empty(t, empty.RouteBatch([]types.RouteRequest{{TicketID: "t1", Category: types.CategoryTechnical}}))
}

func TestReleaseCapsAtMax(t *testing.T) {
	d := newTestDispatcher(t, agent("a", 1, 0, 3))
	d.Route("T-1", types.CategoryTechnical, 0)
	d.Route("T-2", types.CategoryTechnical, 0)

	assert.True(t, d.Release("a", 1))
	a, ok := d.Agent("a")
	require.True(t, ok)
	assert.Equal(t, 2, a.CurrentCapacity)

	assert.True(t, d.Release("a", 10))
	a, _ = d.Agent("a")
	assert.Equal(t, 3, a.CurrentCapacity)
}

func TestReleaseUnknownAgentIsNoop(t *testing.T) {
	d := newTestDispatcher(t, agent("a", 1, 0, 3))

	assert.False(t, d.Release("ghost", 1))
	assert.Len(t, d.Status(), 1)
}

func TestAddAgentReplacesInPlace(t *testing.T) {
	d := newTestDispatcher(t, agent("a", 1, 0, 3), agent("b", 0, 1, 3))

	require.NoError(t, d.AddAgent(agent("a", 0.2, 0.2, 7)))

	status := d.Status()
	require.Len(t, status, 2)
	assert.Equal(t, "a", status[0].AgentID)
	assert.Equal(t, 7, status[0].MaxCapacity)
}

func TestStatusSkillsAreCopies(t *testing.T) {
	d := newTestDispatcher(t, agent("a", 1, 0, 3))

	status := d.Status()
	status[0].Skills[types.CategoryTechnical] = 0

	a, _ := d.Agent("a")
	assert.Equal(t, 1.0, a.Skill(types.CategoryTechnical))
}

func TestRouteConcurrentNeverOversubscribes(t *testing.T) {
	d := newTestDispatcher(t, agent("a", 1, 0, 10), agent("b", 0.5, 0, 10))

	var wg sync.WaitGroup
	var mu sync.Mutex
	assigned := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if d.Route(fmt.Sprintf("T-%d", i), types.CategoryTechnical, 0.5) != nil {
				mu.Lock()
				assigned++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 20, assigned)
	for _, s := range d.Status() {
		assert.Equal(t, 0, s.CurrentCapacity)
		assert.Equal(t, 10, s.AssignedTotal)
	}
}
