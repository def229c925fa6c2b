// Package reporting snapshots agent load into storage on a cron schedule.
package reporting

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dennisdiepolder/monti/orchestrator/internal/storage"
	"github.com/dennisdiepolder/monti/orchestrator/internal/types"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// StatusSource reports the current agent load
type StatusSource interface {
	AgentStatus() []types.AgentStatus
}

// Scheduler writes one AgentDailyStats row per agent on every tick
type Scheduler struct {
	source   StatusSource
	store    storage.Store
	schedule cron.Schedule
	expr     string
	now      func() time.Time
	logger   zerolog.Logger
}

// ParseSchedule accepts a 5-field cron expression or a descriptor such as "@every 5m"
func ParseSchedule(expr string) (cron.Schedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	sched, err := parser.Parse(strings.TrimSpace(expr))
	if err != nil {
		return nil, fmt.Errorf("invalid stats schedule %q: %w", expr, err)
	}
	return sched, nil
}

// NewScheduler creates a scheduler for the cron expression expr
func NewScheduler(expr string, source StatusSource, store storage.Store, logger zerolog.Logger) (*Scheduler, error) {
	sched, err := ParseSchedule(expr)
	if err != nil {
		return nil, err
	}
	return &Scheduler{
		source:   source,
		store:    store,
		schedule: sched,
		expr:     expr,
		now:      time.Now,
		logger:   logger.With().Str("component", "reporting").Logger(),
	}, nil
}

// Start runs snapshots on schedule until ctx is done
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info().Str("schedule", s.expr).Msg("agent stats scheduler started")

	for {
		now := s.now()
		next := s.schedule.Next(now)
		timer := time.NewTimer(next.Sub(now))

		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info().Msg("agent stats scheduler stopped")
			return
		case <-timer.C:
			written, err := s.Snapshot(ctx)
			if err != nil {
				s.logger.Error().Err(err).Int("written", written).Msg("agent stats snapshot incomplete")
				continue
			}
			s.logger.Debug().Int("agents", written).Time("next", s.schedule.Next(s.now())).Msg("agent stats snapshot saved")
		}
	}
}

// Snapshot saves the current load of every agent and returns how many rows were written.
// A failed row does not stop the others.
func (s *Scheduler) Snapshot(ctx context.Context) (int, error) {
	date := s.now().UTC().Format(time.RFC3339)

	var firstErr error
	written := 0
	for _, a := range s.source.AgentStatus() {
		stats := types.AgentDailyStats{
			AgentID:         a.AgentID,
			Date:            date,
			Name:            a.Name,
			CurrentCapacity: a.CurrentCapacity,
			MaxCapacity:     a.MaxCapacity,
			Utilization:     a.Utilization,
			AssignedTotal:   a.AssignedTotal,
		}
		if err := s.store.SaveAgentDailyStats(ctx, stats); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("failed to save stats for agent %s: %w", a.AgentID, err)
			}
			continue
		}
		written++
	}
	return written, firstErr
}
