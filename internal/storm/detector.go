// Package storm detects bursts of near-identical tickets and groups them
// under a shared master incident.
package storm

import (
	"fmt"
	"sync"
	"time"

	"github.com/dennisdiepolder/monti/orchestrator/internal/embedding"
	"github.com/dennisdiepolder/monti/orchestrator/internal/types"
	"github.com/rs/zerolog"
)

// Embedder converts text to a fixed-length vector
type Embedder interface {
	Embed(text string) []float64
}

// Config holds storm detection thresholds
type Config struct {
	SimilarityThreshold float64       // strictly greater counts as similar
	TicketThreshold     int           // similar tickets needed to call a storm
	TimeWindow          time.Duration // entries older than this are forgotten
	BufferCapacity      int           // max remembered tickets
}

// DefaultConfig returns the stock thresholds
func DefaultConfig() Config {
	return Config{
		SimilarityThreshold: 0.9,
		TicketThreshold:     10,
		TimeWindow:          300 * time.Second,
		BufferCapacity:      100,
	}
}

// Option customizes a Detector
type Option func(*Detector)

// WithClock replaces time.Now, mostly for tests
func WithClock(now func() time.Time) Option {
	return func(d *Detector) {
		d.now = now
	}
}

// Detector keeps a sliding window of recent tickets and flags storms
type Detector struct {
	cfg      Config
	embedder Embedder

	mu        sync.Mutex
	recent    *window
	incidents map[string]string // ticketId -> incidentId
	minted    map[string]int    // incidentId -> tickets registered

	now    func() time.Time
	logger zerolog.Logger
}

// NewDetector creates a detector
func NewDetector(cfg Config, embedder Embedder, logger zerolog.Logger, opts ...Option) (*Detector, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if cfg.SimilarityThreshold < -1 || cfg.SimilarityThreshold > 1 {
		return nil, fmt.Errorf("similarity threshold must be within [-1, 1], got %v", cfg.SimilarityThreshold)
	}
	if cfg.TicketThreshold < 1 {
		return nil, fmt.Errorf("ticket threshold must be at least 1, got %d", cfg.TicketThreshold)
	}
	if cfg.TimeWindow <= 0 {
		return nil, fmt.Errorf("time window must be positive, got %v", cfg.TimeWindow)
	}
	if cfg.BufferCapacity < 1 {
		return nil, fmt.Errorf("buffer capacity must be at least 1, got %d", cfg.BufferCapacity)
	}

	d := &Detector{
		cfg:       cfg,
		embedder:  embedder,
		recent:    newWindow(cfg.BufferCapacity),
		incidents: make(map[string]string),
		minted:    make(map[string]int),
		now:       time.Now,
		logger:    logger.With().Str("component", "storm").Logger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// CheckTicket compares the ticket against the recent window, records it, and
// reports whether it belongs to a storm.
func (d *Detector) CheckTicket(ticketID, text string) types.StormCheck {
	vec := d.embedder.Embed(text)

	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if n := d.recent.evictOlderThan(now, d.cfg.TimeWindow); n > 0 {
		d.logger.Debug().Int("evicted", n).Msg("expired tickets evicted")
	}

	// Candidates come from the window as it was before this ticket arrived,
	// so a ticket never matches itself.
	var candidates []string
	for i := 0; i < d.recent.len(); i++ {
		e := d.recent.at(i)
		if embedding.CosineSimilarity(vec, e.embedding) > d.cfg.SimilarityThreshold {
			candidates = append(candidates, e.ticketID)
		}
	}

	d.recent.push(entry{
		ticketID:  ticketID,
		text:      text,
		embedding: vec,
		timestamp: now,
	})

	if len(candidates) < d.cfg.TicketThreshold {
		return types.StormCheck{SimilarCount: len(candidates)}
	}

	incidentID := ""
	for _, id := range candidates {
		if existing, ok := d.incidents[id]; ok {
			incidentID = existing
			break
		}
	}
	if incidentID == "" {
		incidentID = d.mintIncidentID(now)
		d.logger.Warn().
			Str("incident_id", incidentID).
			Str("ticket_id", ticketID).
			Int("similar_count", len(candidates)).
			Msg("ticket storm detected")
	}
	if _, ok := d.incidents[ticketID]; !ok {
		d.incidents[ticketID] = incidentID
		d.minted[incidentID]++
	}

	return types.StormCheck{
		IsDuplicate:      true,
		MasterIncidentID: d.incidents[ticketID],
		SimilarCount:     len(candidates),
	}
}

// Snapshot returns a copy of the incident registry and the window size
func (d *Detector) Snapshot() types.IncidentSnapshot {
	d.mu.Lock()
	defer d.mu.Unlock()

	incidents := make(map[string]string, len(d.incidents))
	for k, v := range d.incidents {
		incidents[k] = v
	}
	return types.IncidentSnapshot{
		MasterIncidents: incidents,
		RecentTickets:   d.recent.len(),
	}
}

// IncidentCount returns the number of distinct master incidents
func (d *Detector) IncidentCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.minted)
}

// mintIncidentID derives an id from the current second. Two storms starting
// within the same second get a numeric suffix so ids stay unique.
func (d *Detector) mintIncidentID(now time.Time) string {
	base := fmt.Sprintf("MASTER-%d", now.Unix())
	id := base
	for n := 2; ; n++ {
		if _, taken := d.minted[id]; !taken {
			return id
		}
		id = fmt.Sprintf("%s-%d", base, n)
	}
}
