package model

import "time"

// Record is the persisted summary of a completed identifier. Duration is set
// only for successful runs; timeouts and failures are stored as completed
// without a duration.
type Record struct {
	Key        string         `json:"key"`
	Name       string         `json:"name"`
	Outcome    string         `json:"outcome"`
	Duration   *time.Duration `json:"duration_ns,omitempty"`
	RunID      string         `json:"run_id"`
	RecordedAt time.Time      `json:"recorded_at"`
}

// RecordFor projects a result onto the record stored for id.
func RecordFor(id Identifier, result Result, runID string, now time.Time) Record {
	rec := Record{
		Key:        Key(id),
		Name:       id.Name,
		RunID:      runID,
		RecordedAt: now,
	}
	if result != nil {
		rec.Outcome = result.Outcome()
	}
	if s, ok := result.(Success); ok {
		d := s.Duration
		rec.Duration = &d
	}
	return rec
}
