package storage

import (
	"context"
	"time"

	"github.com/dennisdiepolder/monti/orchestrator/internal/types"
)

// Store defines the storage interface
type Store interface {
	SaveDecisionRecord(ctx context.Context, record types.DecisionRecord) error
	SaveAgentDailyStats(ctx context.Context, stats types.AgentDailyStats) error
	GetDecisionRecords(ctx context.Context, dateKey string) ([]types.DecisionRecord, error)
	GetAgentDailyStats(ctx context.Context, agentID string) ([]types.AgentDailyStats, error)
	TruncateAll(ctx context.Context) error
}

// DateKeyLayout is the partition key format of the decisions table
const DateKeyLayout = "2006-01-02"

// RecordFromDecision flattens a pipeline decision into its persisted form
func RecordFromDecision(d types.Decision, userID string) types.DecisionRecord {
	decided := d.DecidedAt.UTC()
	rec := types.DecisionRecord{
		DateKey:          decided.Format(DateKeyLayout),
		TicketID:         d.TicketID,
		UserID:           userID,
		Category:         string(d.Category),
		UrgencyScore:     d.UrgencyScore,
		Source:           string(d.Source),
		Status:           string(d.Status),
		MasterIncidentID: d.MasterIncidentID,
		DecidedAt:        decided.Format(time.RFC3339),
	}
	if d.Assignment != nil {
		rec.AgentID = d.Assignment.AgentID
		rec.MatchScore = d.Assignment.MatchScore
	}
	return rec
}

// NoopStore is a no-op implementation when DynamoDB is disabled
type NoopStore struct{}

func NewNoopStore() *NoopStore { return &NoopStore{} }

func (s *NoopStore) SaveDecisionRecord(_ context.Context, _ types.DecisionRecord) error { return nil }
func (s *NoopStore) SaveAgentDailyStats(_ context.Context, _ types.AgentDailyStats) error {
	return nil
}
func (s *NoopStore) GetDecisionRecords(_ context.Context, _ string) ([]types.DecisionRecord, error) {
	return nil, nil
}
func (s *NoopStore) GetAgentDailyStats(_ context.Context, _ string) ([]types.AgentDailyStats, error) {
	return nil, nil
}
func (s *NoopStore) TruncateAll(_ context.Context) error { return nil }
