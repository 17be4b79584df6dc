package domain

import "time"

// RunStats accumulates counters for one curation run. Owned by the
// orchestrator; returned at run end, not persisted.
type RunStats struct {
	StartedAt         time.Time
	CompletedAt       time.Time
	Fetched           int
	New               int
	SkippedDuplicates int
	SkippedRetweets   int
	Scored            int
	Passed            int
	Sent              int
	TierBreakdown     map[Tier]int
	Errors            []string
}

// NewRunStats returns an empty accumulator stamped with the start time.
func NewRunStats(now time.Time) *RunStats {
	return &RunStats{
		StartedAt:     now,
		TierBreakdown: map[Tier]int{},
	}
}

// AddError records a non-fatal error string.
func (s *RunStats) AddError(msg string) {
	s.Errors = append(s.Errors, msg)
}
