package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dennisdiepolder/monti/orchestrator/internal/breaker"
	"github.com/dennisdiepolder/monti/orchestrator/internal/classifier"
	"github.com/dennisdiepolder/monti/orchestrator/internal/dispatch"
	"github.com/dennisdiepolder/monti/orchestrator/internal/embedding"
	"github.com/dennisdiepolder/monti/orchestrator/internal/idempotency"
	"github.com/dennisdiepolder/monti/orchestrator/internal/metrics"
	"github.com/dennisdiepolder/monti/orchestrator/internal/roster"
	"github.com/dennisdiepolder/monti/orchestrator/internal/storage"
	"github.com/dennisdiepolder/monti/orchestrator/internal/storm"
	"github.com/dennisdiepolder/monti/orchestrator/internal/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []interface{}
}

func (p *recordingPublisher) Publish(v interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, v)
	return nil
}

func (p *recordingPublisher) decisions() []types.Decision {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []types.Decision
	for _, e := range p.events {
		if ev, ok := e.(types.DecisionEvent); ok {
			out = append(out, ev.Decision)
		}
	}
	return out
}

type recordingStore struct {
	storage.NoopStore
	mu      sync.Mutex
	records []types.DecisionRecord
}

func (s *recordingStore) SaveDecisionRecord(_ context.Context, r types.DecisionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, r)
	return nil
}

type fixture struct {
	deps      Deps
	publisher *recordingPublisher
	store     *recordingStore
}

func newFixture(t *testing.T, agents []types.Agent) *fixture {
	t.Helper()
	logger := zerolog.Nop()

	embedder, err := embedding.NewHashingEmbedder(embedding.DefaultDimensions)
	require.NoError(t, err)
	detector, err := storm.NewDetector(storm.DefaultConfig(), embedder, logger)
	require.NoError(t, err)
	cb, err := breaker.New(breaker.DefaultConfig(), logger)
	require.NoError(t, err)
	dispatcher, err := dispatch.NewDispatcher(agents, logger)
	require.NoError(t, err)

	baseline := classifier.NewBaseline()
	f := &fixture{publisher: &recordingPublisher{}, store: &recordingStore{}}
	f.deps = Deps{
		Detector:   detector,
		Breaker:    cb,
		Primary:    baseline.Primary,
		Fallback:   baseline.Classify,
		Dispatcher: dispatcher,
		Store:      f.store,
		Publisher:  f.publisher,
		Metrics:    metrics.New(),
	}
	return f
}

func (f *fixture) pipeline(t *testing.T) *Pipeline {
	t.Helper()
	p, err := New(f.deps, zerolog.Nop())
	require.NoError(t, err)
	return p
}

func TestNewRequiresCoreComponents(t *testing.T) {
	f := newFixture(t, roster.Default(5))

	deps := f.deps
	deps.Detector = nil
	_, err := New(deps, zerolog.Nop())
	assert.Error(t, err)

	deps = f.deps
	deps.Fallback = nil
	_, err = New(deps, zerolog.Nop())
	assert.Error(t, err)

	deps = f.deps
	deps.Store, deps.Publisher, deps.Metrics = nil, nil, nil
	_, err = New(deps, zerolog.Nop())
	assert.NoError(t, err, "store, publisher and metrics are optional")
}

func TestSubmitAssignsTicket(t *testing.T) {
	f := newFixture(t, roster.Default(5))
	p := f.pipeline(t)

	d, err := p.Submit(context.Background(), types.Ticket{Text: "The server is down and the API returns 500 errors", UserID: "u1"})
	require.NoError(t, err)

	assert.NotEmpty(t, d.TicketID, "an id is generated when none is supplied")
	assert.Equal(t, types.StatusAssigned, d.Status)
	assert.Equal(t, types.CategoryTechnical, d.Category)
	assert.Equal(t, 0.9, d.UrgencyScore)
	assert.Equal(t, types.SourcePrimary, d.Source)
	assert.False(t, d.IsDuplicate)
	require.NotNil(t, d.Assignment)
	assert.Equal(t, d.TicketID, d.Assignment.TicketID)

	p.Wait()
	require.Len(t, f.store.records, 1)
	assert.Equal(t, "u1", f.store.records[0].UserID)
	assert.Equal(t, d.Assignment.AgentID, f.store.records[0].AgentID)
	assert.Len(t, f.publisher.decisions(), 1)
}

func TestSubmitRejectsEmptyText(t *testing.T) {
	p := newFixture(t, roster.Default(5)).pipeline(t)

	_, err := p.Submit(context.Background(), types.Ticket{Text: "   "})
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestSubmitStormSuppressesDuplicates(t *testing.T) {
	f := newFixture(t, roster.Default(5))
	p := f.pipeline(t)
	ctx := context.Background()

	var decisions []types.Decision
	for i := 1; i <= 15; i++ {
		d, err := p.Submit(ctx, types.Ticket{ID: fmt.Sprintf("storm-%d", i), Text: "Payment page shows error 502 at checkout"})
		require.NoError(t, err)
		decisions = append(decisions, d)
	}

	incident := ""
	suppressed := 0
	for i, d := range decisions {
		if i < 10 {
			assert.False(t, d.IsDuplicate, "ticket %d", i+1)
			assert.Equal(t, types.StatusAssigned, d.Status, "ticket %d", i+1)
			continue
		}
		assert.True(t, d.IsDuplicate, "ticket %d", i+1)
		assert.Equal(t, types.StatusSuppressed, d.Status)
		assert.Equal(t, types.SourceNone, d.Source)
		assert.Nil(t, d.Assignment)
		assert.Empty(t, d.Category, "suppressed tickets are never classified")
		if incident == "" {
			incident = d.MasterIncidentID
		}
		assert.Equal(t, incident, d.MasterIncidentID)
		suppressed++
	}
	assert.Equal(t, 5, suppressed)
	assert.Equal(t, 1, p.IncidentCount())

	snap := p.MasterIncidents()
	assert.Equal(t, 15, snap.RecentTickets)
	assert.Equal(t, incident, snap.MasterIncidents["storm-15"])
}

func TestSubmitQueuesWithoutCapacity(t *testing.T) {
	agents := []types.Agent{{
		ID:              "solo",
		Name:            "Solo",
		Skills:          map[types.Category]float64{types.CategoryBilling: 1},
		CurrentCapacity: 1,
		MaxCapacity:     1,
	}}
	p := newFixture(t, agents).pipeline(t)
	ctx := context.Background()

	first, err := p.Submit(ctx, types.Ticket{Text: "I was charged twice on my invoice"})
	require.NoError(t, err)
	assert.Equal(t, types.StatusAssigned, first.Status)

	second, err := p.Submit(ctx, types.Ticket{Text: "Our lawyer wants to review the contract"})
	require.NoError(t, err)
	assert.Equal(t, types.StatusQueued, second.Status)
	assert.Nil(t, second.Assignment)
	assert.Equal(t, types.CategoryLegal, second.Category)

	assert.True(t, p.ReleaseCapacity("solo", 1))
	third, err := p.Submit(ctx, types.Ticket{Text: "Please send a refund for the subscription"})
	require.NoError(t, err)
	assert.Equal(t, types.StatusAssigned, third.Status)
}

type recordingBacklog struct {
	reqs []types.RouteRequest
}

func (b *recordingBacklog) Enqueue(req types.RouteRequest) {
	b.reqs = append(b.reqs, req)
}

func TestSubmitParksQueuedTicketsInBacklog(t *testing.T) {
	agents := []types.Agent{{
		ID:              "solo",
		Name:            "Solo",
		Skills:          map[types.Category]float64{types.CategoryBilling: 1},
		CurrentCapacity: 0,
		MaxCapacity:     1,
	}}
	f := newFixture(t, agents)
	backlog := &recordingBacklog{}
	f.deps.Backlog = backlog
	p := f.pipeline(t)

	d, err := p.Submit(context.Background(), types.Ticket{ID: "t-1", Text: "Please send a refund for the subscription"})
	require.NoError(t, err)
	assert.Equal(t, types.StatusQueued, d.Status)

	require.Len(t, backlog.reqs, 1)
	assert.Equal(t, "t-1", backlog.reqs[0].TicketID)
	assert.Equal(t, types.CategoryBilling, backlog.reqs[0].Category)
	assert.Equal(t, d.UrgencyScore, backlog.reqs[0].UrgencyScore)
}

func TestSubmitFallsBackWhenPrimaryFails(t *testing.T) {
	f := newFixture(t, roster.Default(5))
	f.deps.Primary = func(ctx context.Context, text string) (types.Classification, error) {
		return types.Classification{}, errors.New("model unavailable")
	}
	p := f.pipeline(t)

	for i := 0; i < 3; i++ {
		d, err := p.Submit(context.Background(), types.Ticket{Text: fmt.Sprintf("invoice question number %d", i)})
		require.NoError(t, err)
		assert.Equal(t, types.SourceFallback, d.Source)
		assert.Equal(t, types.CategoryBilling, d.Category)
	}
	assert.Equal(t, types.CircuitOpen, p.CircuitStatus().State)
}

func TestSubmitAppliesPrimaryTimeout(t *testing.T) {
	f := newFixture(t, roster.Default(5))
	f.deps.PrimaryTimeout = 20 * time.Millisecond
	f.deps.Primary = func(ctx context.Context, text string) (types.Classification, error) {
		<-ctx.Done()
		return types.Classification{}, ctx.Err()
	}
	p := f.pipeline(t)

	done := make(chan types.Decision, 1)
	go func() {
		d, _ := p.Submit(context.Background(), types.Ticket{Text: "Login is broken"})
		done <- d
	}()

	select {
	case d := <-done:
		assert.Equal(t, types.SourceFallback, d.Source)
		assert.Equal(t, 1, p.CircuitStatus().FailureCount)
	case <-time.After(2 * time.Second):
		t.Fatal("primary deadline was not applied")
	}
}

func TestSubmitRejectsConcurrentDuplicateID(t *testing.T) {
	f := newFixture(t, roster.Default(5))
	f.deps.Locker = idempotency.NewMemoryLocker(time.Minute)
	p := f.pipeline(t)
	ctx := context.Background()

	_, err := p.Submit(ctx, types.Ticket{ID: "ticket-42", Text: "My card was charged twice"})
	require.NoError(t, err)

	_, err = p.Submit(ctx, types.Ticket{ID: "ticket-42", Text: "My card was charged twice"})
	assert.ErrorIs(t, err, ErrDuplicateSubmission)

	_, err = p.Submit(ctx, types.Ticket{ID: "ticket-43", Text: "My card was charged twice"})
	assert.NoError(t, err)
}

func TestRouteBatchThroughPipeline(t *testing.T) {
	agents := []types.Agent{
		{ID: "agent1", Name: "Agent 1", Skills: map[types.Category]float64{types.CategoryTechnical: 0.9, types.CategoryBilling: 0.1}, CurrentCapacity: 5, MaxCapacity: 5},
		{ID: "agent2", Name: "Agent 2", Skills: map[types.Category]float64{types.CategoryTechnical: 0.1, types.CategoryBilling: 0.9}, CurrentCapacity: 5, MaxCapacity: 5},
	}
	f := newFixture(t, agents)
	p := f.pipeline(t)

	assignments := p.RouteBatch([]types.RouteRequest{
		{TicketID: "t1", Category: types.CategoryTechnical, UrgencyScore: 0.2},
		{TicketID: "t2", Category: types.CategoryBilling, UrgencyScore: 0.2},
	})

	require.Len(t, assignments, 2)
	byTicket := map[string]string{}
	for _, a := range assignments {
		byTicket[a.TicketID] = a.AgentID
	}
	assert.Equal(t, "agent1", byTicket["t1"])
	assert.Equal(t, "agent2", byTicket["t2"])
	assert.Equal(t, int64(2), f.deps.Metrics.BatchAssignmentsTotal)
}

func TestCircuitObserverPublishes(t *testing.T) {
	pub := &recordingPublisher{}
	m := metrics.New()
	observe := CircuitObserver(pub, m, zerolog.Nop())

	observe(types.CircuitClosed, types.CircuitOpen)

	require.Len(t, pub.events, 1)
	ev, ok := pub.events[0].(types.CircuitEvent)
	require.True(t, ok)
	assert.Equal(t, "circuit_state", ev.Type)
	assert.Equal(t, types.CircuitClosed, ev.From)
	assert.Equal(t, types.CircuitOpen, ev.To)
}
