package store

import (
	"context"
	"errors"

	"github.com/seantiz/benchkit/internal/model"
)

// ErrNotFound is returned when no committed record exists for a key.
var ErrNotFound = errors.New("record not found")

// RecordStats holds aggregate statistics over committed records.
type RecordStats struct {
	Total          int            `json:"total"`
	CountByOutcome map[string]int `json:"count_by_outcome"`
	AvgDurationS   float64        `json:"avg_duration_s"`
}

// Store records which identifiers have completed. Writes are staged until
// Save commits them; a process that exits before Save loses staged records.
type Store interface {
	// HasRecordFor reports whether a record exists for id's canonical key,
	// staged or committed. It has no side effects.
	HasRecordFor(ctx context.Context, id model.Identifier) (bool, error)

	// StoreRecord stages rec under id's canonical key, replacing any record
	// already held for that key.
	StoreRecord(ctx context.Context, id model.Identifier, rec model.Record) error

	// Save durably persists all staged records. It is idempotent.
	Save(ctx context.Context) error

	GetRecord(ctx context.Context, key string) (*model.Record, error)
	ListRecords(ctx context.Context, limit, offset int) ([]*model.Record, int, error)
	Stats(ctx context.Context) (*RecordStats, error)
	Close() error
}
