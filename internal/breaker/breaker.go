package breaker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dennisdiepolder/monti/orchestrator/internal/types"
	"github.com/rs/zerolog"
)

// PrimaryFunc is the slow, unreliable classifier guarded by the breaker
type PrimaryFunc func(ctx context.Context, text string) (types.Classification, error)

// FallbackFunc is the fast classifier that always produces an answer
type FallbackFunc func(ctx context.Context, text string) types.Classification

// Config holds failover controller configuration
type Config struct {
	LatencyThreshold  time.Duration
	FailureThreshold  int
	RecoveryTimeout   time.Duration
	HalfOpenSuccesses int
	OnStateChange     func(from, to types.CircuitState)
}

// DefaultConfig returns the stock thresholds
func DefaultConfig() Config {
	return Config{
		LatencyThreshold:  500 * time.Millisecond,
		FailureThreshold:  3,
		RecoveryTimeout:   60 * time.Second,
		HalfOpenSuccesses: 2,
	}
}

// Option customizes a Breaker
type Option func(*Breaker)

// WithClock replaces time.Now, mostly for tests
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) {
		b.now = now
	}
}

// Breaker arbitrates between a primary and a fallback classifier based on
// observed errors and latency.
type Breaker struct {
	cfg Config

	mu                sync.Mutex
	state             types.CircuitState
	failureCount      int
	lastFailureAt     time.Time
	halfOpenSuccesses int
	// generation advances on every state change; outcomes admitted under an
	// older generation are discarded
	generation uint64

	now    func() time.Time
	logger zerolog.Logger
}

// New creates a breaker in the Closed state
func New(cfg Config, logger zerolog.Logger, opts ...Option) (*Breaker, error) {
	if cfg.LatencyThreshold <= 0 {
		return nil, fmt.Errorf("latency threshold must be positive, got %v", cfg.LatencyThreshold)
	}
	if cfg.FailureThreshold < 1 {
		return nil, fmt.Errorf("failure threshold must be at least 1, got %d", cfg.FailureThreshold)
	}
	if cfg.RecoveryTimeout < 0 {
		return nil, fmt.Errorf("recovery timeout must not be negative, got %v", cfg.RecoveryTimeout)
	}
	if cfg.HalfOpenSuccesses < 1 {
		return nil, fmt.Errorf("half-open successes must be at least 1, got %d", cfg.HalfOpenSuccesses)
	}

	b := &Breaker{
		cfg:    cfg,
		state:  types.CircuitClosed,
		now:    time.Now,
		logger: logger.With().Str("component", "breaker").Logger(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Evaluate answers text through primary when the circuit allows it and through
// fallback otherwise. It never fails: primary errors and slow primary answers
// are recorded and replaced by the fallback result.
//
// The primary call runs outside the lock, so the latency observed for one call
// is never inflated by callers queued behind it. Its outcome only counts if the
// circuit has not changed state while it was in flight.
func (b *Breaker) Evaluate(ctx context.Context, primary PrimaryFunc, fallback FallbackFunc, text string) (types.Classification, types.Source) {
	gen, ok := b.admit()
	if !ok {
		return fallback(ctx, text), types.SourceFallback
	}

	start := b.now()
	result, err := primary(ctx, text)
	latency := b.now().Sub(start)

	if err != nil {
		b.logger.Warn().Err(err).Msg("primary classifier failed")
		b.recordFailure(gen)
		return fallback(ctx, text), types.SourceFallback
	}
	if latency > b.cfg.LatencyThreshold {
		b.logger.Warn().
			Dur("latency", latency).
			Dur("threshold", b.cfg.LatencyThreshold).
			Msg("primary classifier too slow")
		b.recordFailure(gen)
		return fallback(ctx, text), types.SourceFallback
	}

	b.recordSuccess(gen)
	return result, types.SourcePrimary
}

// Status returns the current state without side effects. An Open circuit
// whose recovery timeout already elapsed is still reported as Open until the
// next Evaluate call.
func (b *Breaker) Status() types.CircuitStatus {
	b.mu.Lock()
	defer b.mu.Unlock()

	status := types.CircuitStatus{
		State:        b.state,
		FailureCount: b.failureCount,
	}
	if !b.lastFailureAt.IsZero() {
		t := b.lastFailureAt
		status.LastFailureAt = &t
	}
	return status
}

// admit reports whether the primary may be attempted, moving an expired Open
// circuit to HalfOpen. The returned generation identifies the state the
// attempt was admitted under.
func (b *Breaker) admit() (uint64, bool) {
	b.mu.Lock()
	if b.state != types.CircuitOpen {
		gen := b.generation
		b.mu.Unlock()
		return gen, true
	}
	if b.now().Sub(b.lastFailureAt) <= b.cfg.RecoveryTimeout {
		b.mu.Unlock()
		return 0, false
	}
	b.halfOpenSuccesses = 0
	from := b.transition(types.CircuitHalfOpen)
	gen := b.generation
	b.mu.Unlock()

	b.notify(from, types.CircuitHalfOpen)
	return gen, true
}

// stale must be called with mu held
func (b *Breaker) stale(gen uint64) bool {
	if gen == b.generation {
		return false
	}
	b.logger.Debug().
		Uint64("admitted", gen).
		Uint64("current", b.generation).
		Str("state", string(b.state)).
		Msg("discarding primary outcome from an earlier circuit state")
	return true
}

func (b *Breaker) recordFailure(gen uint64) {
	b.mu.Lock()
	if b.stale(gen) {
		b.mu.Unlock()
		return
	}
	b.failureCount++
	b.lastFailureAt = b.now()
	if b.failureCount < b.cfg.FailureThreshold {
		b.mu.Unlock()
		return
	}
	from := b.transition(types.CircuitOpen)
	failures := b.failureCount
	b.mu.Unlock()

	b.logger.Warn().Int("failure_count", failures).Msg("circuit opened")
	b.notify(from, types.CircuitOpen)
}

func (b *Breaker) recordSuccess(gen uint64) {
	b.mu.Lock()
	if b.stale(gen) {
		b.mu.Unlock()
		return
	}
	b.failureCount = 0
	if b.state != types.CircuitHalfOpen {
		b.mu.Unlock()
		return
	}
	b.halfOpenSuccesses++
	if b.halfOpenSuccesses < b.cfg.HalfOpenSuccesses {
		b.mu.Unlock()
		return
	}
	b.halfOpenSuccesses = 0
	from := b.transition(types.CircuitClosed)
	b.mu.Unlock()

	b.logger.Info().Msg("circuit closed")
	b.notify(from, types.CircuitClosed)
}

// transition must be called with mu held; it returns the previous state
func (b *Breaker) transition(to types.CircuitState) types.CircuitState {
	from := b.state
	b.state = to
	b.generation++
	b.logger.Debug().
		Str("from", string(from)).
		Str("to", string(to)).
		Msg("circuit state changed")
	return from
}

func (b *Breaker) notify(from, to types.CircuitState) {
	if b.cfg.OnStateChange != nil && from != to {
		b.cfg.OnStateChange(from, to)
	}
}
