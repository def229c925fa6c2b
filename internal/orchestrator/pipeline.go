// Package orchestrator runs a ticket through storm detection, classification
// and routing, and owns the instances of the three core components.
package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/dennisdiepolder/monti/orchestrator/internal/breaker"
	"github.com/dennisdiepolder/monti/orchestrator/internal/dispatch"
	"github.com/dennisdiepolder/monti/orchestrator/internal/idempotency"
	"github.com/dennisdiepolder/monti/orchestrator/internal/metrics"
	"github.com/dennisdiepolder/monti/orchestrator/internal/storage"
	"github.com/dennisdiepolder/monti/orchestrator/internal/storm"
	"github.com/dennisdiepolder/monti/orchestrator/internal/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	// ErrDuplicateSubmission is returned when a ticket id is already being processed
	ErrDuplicateSubmission = errors.New("ticket already submitted")
	// ErrEmptyText is returned for tickets without text
	ErrEmptyText = errors.New("ticket text is required")
)

// Publisher fans events out to live subscribers
type Publisher interface {
	Publish(v interface{}) error
}

// Backlog parks classified tickets that found no agent
type Backlog interface {
	Enqueue(req types.RouteRequest)
}

// Deps are the collaborators a Pipeline coordinates
type Deps struct {
	Detector   *storm.Detector
	Breaker    *breaker.Breaker
	Primary    breaker.PrimaryFunc
	Fallback   breaker.FallbackFunc
	Dispatcher *dispatch.Dispatcher

	// Optional
	Locker    idempotency.Locker
	Backlog   Backlog
	Store     storage.Store
	Publisher Publisher
	Metrics   *metrics.Metrics

	// PrimaryTimeout bounds a single primary call; zero means no deadline
	PrimaryTimeout time.Duration
}

// Pipeline coordinates the core components for each incoming ticket
type Pipeline struct {
	detector   *storm.Detector
	breaker    *breaker.Breaker
	primary    breaker.PrimaryFunc
	fallback   breaker.FallbackFunc
	dispatcher *dispatch.Dispatcher

	locker         idempotency.Locker
	backlog        Backlog
	store          storage.Store
	publisher      Publisher
	metrics        *metrics.Metrics
	primaryTimeout time.Duration

	saves  sync.WaitGroup
	now    func() time.Time
	logger zerolog.Logger
}

// New creates a pipeline. Detector, breaker, classifiers and dispatcher are required.
func New(deps Deps, logger zerolog.Logger) (*Pipeline, error) {
	switch {
	case deps.Detector == nil:
		return nil, errors.New("orchestrator: storm detector is required")
	case deps.Breaker == nil:
		return nil, errors.New("orchestrator: breaker is required")
	case deps.Primary == nil || deps.Fallback == nil:
		return nil, errors.New("orchestrator: primary and fallback classifiers are required")
	case deps.Dispatcher == nil:
		return nil, errors.New("orchestrator: dispatcher is required")
	}

	p := &Pipeline{
		detector:       deps.Detector,
		breaker:        deps.Breaker,
		primary:        deps.Primary,
		fallback:       deps.Fallback,
		dispatcher:     deps.Dispatcher,
		locker:         deps.Locker,
		backlog:        deps.Backlog,
		store:          deps.Store,
		publisher:      deps.Publisher,
		metrics:        deps.Metrics,
		primaryTimeout: deps.PrimaryTimeout,
		now:            time.Now,
		logger:         logger.With().Str("component", "orchestrator").Logger(),
	}
	if p.store == nil {
		p.store = storage.NewNoopStore()
	}
	if p.metrics == nil {
		p.metrics = metrics.New()
	}
	return p, nil
}

// Submit runs one ticket through the pipeline. A duplicate of an active storm
// is suppressed before classification; every other ticket is classified and
// then assigned, or queued when no agent has free capacity.
func (p *Pipeline) Submit(ctx context.Context, ticket types.Ticket) (types.Decision, error) {
	if strings.TrimSpace(ticket.Text) == "" {
		return types.Decision{}, ErrEmptyText
	}

	if ticket.ID == "" {
		ticket.ID = uuid.NewString()
	} else if p.locker != nil {
		acquired, err := p.locker.Acquire(ctx, ticket.ID)
		if err != nil {
			// A broken lock backend must not stop intake.
			p.logger.Warn().Err(err).Str("ticket_id", ticket.ID).Msg("idempotency lock unavailable")
		} else if !acquired {
			p.metrics.RecordConflict()
			return types.Decision{}, ErrDuplicateSubmission
		}
	}
	if ticket.SubmittedAt.IsZero() {
		ticket.SubmittedAt = p.now()
	}

	p.metrics.RecordTicketReceived()

	check := p.detector.CheckTicket(ticket.ID, ticket.Text)
	decision := types.Decision{
		TicketID:         ticket.ID,
		IsDuplicate:      check.IsDuplicate,
		MasterIncidentID: check.MasterIncidentID,
		SimilarCount:     check.SimilarCount,
	}

	if check.IsDuplicate {
		decision.Source = types.SourceNone
		decision.Status = types.StatusSuppressed
	} else {
		result, source := p.breaker.Evaluate(ctx, p.boundedPrimary, p.fallback, ticket.Text)
		decision.Category = result.Category
		decision.UrgencyScore = result.UrgencyScore
		decision.Source = source

		decision.Assignment = p.dispatcher.Route(ticket.ID, result.Category, result.UrgencyScore)
		if decision.Assignment != nil {
			decision.Status = types.StatusAssigned
		} else {
			decision.Status = types.StatusQueued
			if p.backlog != nil {
				p.backlog.Enqueue(types.RouteRequest{TicketID: ticket.ID, Category: result.Category, UrgencyScore: result.UrgencyScore})
			}
		}
	}
	decision.DecidedAt = p.now()

	p.logger.Info().
		Str("ticket_id", ticket.ID).
		Str("status", string(decision.Status)).
		Str("category", string(decision.Category)).
		Str("source", string(decision.Source)).
		Str("master_incident_id", decision.MasterIncidentID).
		Msg("ticket decided")

	p.metrics.RecordDecision(decision)
	p.publish(types.DecisionEvent{Type: "decision", Decision: decision, Timestamp: decision.DecidedAt})
	p.persist(storage.RecordFromDecision(decision, ticket.UserID))

	return decision, nil
}

// boundedPrimary applies the per-call deadline to the primary classifier
func (p *Pipeline) boundedPrimary(ctx context.Context, text string) (types.Classification, error) {
	if p.primaryTimeout <= 0 {
		return p.primary(ctx, text)
	}
	ctx, cancel := context.WithTimeout(ctx, p.primaryTimeout)
	defer cancel()
	return p.primary(ctx, text)
}

// RouteTicket assigns a pre-classified ticket
func (p *Pipeline) RouteTicket(req types.RouteRequest) *types.Assignment {
	return p.dispatcher.Route(req.TicketID, req.Category, req.UrgencyScore)
}

// RouteBatch assigns pre-classified tickets jointly
func (p *Pipeline) RouteBatch(reqs []types.RouteRequest) []types.Assignment {
	assignments := p.dispatcher.RouteBatch(reqs)
	p.metrics.RecordBatch(len(assignments))
	return assignments
}

// ReleaseCapacity returns capacity to an agent and reports whether it is known
func (p *Pipeline) ReleaseCapacity(agentID string, count int) bool {
	return p.dispatcher.Release(agentID, count)
}

// AddAgent registers or replaces an agent
func (p *Pipeline) AddAgent(agent types.Agent) error {
	return p.dispatcher.AddAgent(agent)
}

// AgentStatus reports every agent
func (p *Pipeline) AgentStatus() []types.AgentStatus {
	return p.dispatcher.Status()
}

// CircuitStatus reports the failover controller state
func (p *Pipeline) CircuitStatus() types.CircuitStatus {
	return p.breaker.Status()
}

// MasterIncidents reports the storm detector registry
func (p *Pipeline) MasterIncidents() types.IncidentSnapshot {
	return p.detector.Snapshot()
}

// IncidentCount reports the number of distinct master incidents
func (p *Pipeline) IncidentCount() int {
	return p.detector.IncidentCount()
}

// Wait blocks until pending record writes are done
func (p *Pipeline) Wait() {
	p.saves.Wait()
}

func (p *Pipeline) publish(v interface{}) {
	if p.publisher == nil {
		return
	}
	if err := p.publisher.Publish(v); err != nil {
		p.logger.Warn().Err(err).Msg("failed to publish event")
	}
}

func (p *Pipeline) persist(record types.DecisionRecord) {
	p.saves.Add(1)
	go func() {
		defer p.saves.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := p.store.SaveDecisionRecord(ctx, record); err != nil {
			p.logger.Error().Err(err).Str("ticket_id", record.TicketID).Msg("failed to save decision record")
		}
	}()
}

// CircuitObserver returns a breaker state-change hook that records the
// transition and forwards it to live subscribers.
func CircuitObserver(pub Publisher, m *metrics.Metrics, logger zerolog.Logger) func(from, to types.CircuitState) {
	return func(from, to types.CircuitState) {
		if m != nil {
			m.RecordCircuitTransition(to)
		}
		logger.Info().
			Str("from", string(from)).
			Str("to", string(to)).
			Msg("circuit state transition")
		if pub == nil {
			return
		}
		event := types.CircuitEvent{Type: "circuit_state", From: from, To: to, Timestamp: time.Now()}
		if err := pub.Publish(event); err != nil {
			logger.Warn().Err(err).Msg("failed to publish circuit event")
		}
	}
}
