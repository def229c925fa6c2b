package backlog

import "github.com/dennisdiepolder/monti/orchestrator/internal/types"

// SLTracker tracks service level for a category queue
type SLTracker struct {
	Target        int
	ThresholdSecs int
	AnsweredInSL  int
	TotalAnswered int
}

// NewSLTracker creates a new SL tracker with the given target
func NewSLTracker(target, thresholdSecs int) *SLTracker {
	return &SLTracker{
		Target:        target,
		ThresholdSecs: thresholdSecs,
	}
}

// RecordAnswer records a ticket leaving the queue for an agent
func (s *SLTracker) RecordAnswer(waitTimeSecs float64) {
	s.TotalAnswered++
	if waitTimeSecs <= float64(s.ThresholdSecs) {
		s.AnsweredInSL++
	}
}

// CurrentSL returns the current service level percentage
func (s *SLTracker) CurrentSL() float64 {
	if s.TotalAnswered == 0 {
		return 100.0
	}
	return float64(s.AnsweredInSL) / float64(s.TotalAnswered) * 100.0
}

// Snapshot returns a ServiceLevel snapshot
func (s *SLTracker) Snapshot() types.ServiceLevel {
	return types.ServiceLevel{
		Target:        s.Target,
		ThresholdSecs: s.ThresholdSecs,
		AnsweredInSL:  s.AnsweredInSL,
		TotalAnswered: s.TotalAnswered,
		CurrentSL:     s.CurrentSL(),
	}
}
