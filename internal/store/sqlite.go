package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/seantiz/benchkit/internal/model"

	_ "modernc.org/sqlite"
)

const createRecordsTable = `
CREATE TABLE IF NOT EXISTS records (
    key         TEXT PRIMARY KEY,
    name        TEXT NOT NULL,
    outcome     TEXT NOT NULL,
    duration_ns INTEGER,
    run_id      TEXT NOT NULL,
    recorded_at DATETIME NOT NULL
)`

const upsertRecord = `
INSERT INTO records (key, name, outcome, duration_ns, run_id, recorded_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(key) DO UPDATE SET
    name = excluded.name,
    outcome = excluded.outcome,
    duration_ns = excluded.duration_ns,
    run_id = excluded.run_id,
    recorded_at = excluded.recorded_at`

const selectRecordColumns = `SELECT key, name, outcome, duration_ns, run_id, recorded_at FROM records`

// Compile-time interface satisfaction check.
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore implements Store using SQLite. Records are staged in memory and
// written in a single transaction by Save.
type SQLiteStore struct {
	db *sql.DB

	mu     sync.Mutex
	staged map[string]model.Record
}

// NewSQLiteStore opens the SQLite database at dbPath and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// A single connection keeps ":memory:" databases from splitting per
	// connection and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if _, err := db.Exec(createRecordsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("create records table: %w", err)
	}

	return &SQLiteStore{db: db, staged: make(map[string]model.Record)}, nil
}

// Close closes the underlying database connection. Staged records that were
// never saved are discarded.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// HasRecordFor reports whether id has a staged or committed record.
func (s *SQLiteStore) HasRecordFor(ctx context.Context, id model.Identifier) (bool, error) {
	key := model.Key(id)

	s.mu.Lock()
	_, ok := s.staged[key]
	s.mu.Unlock()
	if ok {
		return true, nil
	}

	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM records WHERE key = ?", key).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check record: %w", err)
	}
	return n > 0, nil
}

// StoreRecord stages rec under id's key. The key is always derived from id.
func (s *SQLiteStore) StoreRecord(_ context.Context, id model.Identifier, rec model.Record) error {
	rec.Key = model.Key(id)
	if rec.Name == "" {
		rec.Name = id.Name
	}
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.staged[rec.Key] = rec
	return nil
}

// Save commits staged records. Nothing is cleared from the staging area unless
// the transaction commits, so a failed Save can be retried.
func (s *SQLiteStore) Save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.staged) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertRecord)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for key, rec := range s.staged {
		var duration sql.NullInt64
		if rec.Duration != nil {
			duration = sql.NullInt64{Int64: int64(*rec.Duration), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx,
			key, rec.Name, rec.Outcome, duration, rec.RunID, rec.RecordedAt,
		); err != nil {
			return fmt.Errorf("upsert record %s: %w", rec.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save tx: %w", err)
	}

	clear(s.staged)
	return nil
}

// GetRecord retrieves a committed record by canonical key.
func (s *SQLiteStore) GetRecord(ctx context.Context, key string) (*model.Record, error) {
	rec, err := scanRecord(s.db.QueryRowContext(ctx, selectRecordColumns+" WHERE key = ?", key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	return rec, nil
}

// ListRecords returns a page of committed records ordered by recorded_at DESC,
// along with the total count of committed records.
func (s *SQLiteStore) ListRecords(ctx context.Context, limit, offset int) ([]*model.Record, int, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, 0, fmt.Errorf("begin read tx: %w", err)
	}
	defer tx.Rollback()

	var total int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM records").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count records: %w", err)
	}

	rows, err := tx.QueryContext(ctx,
		selectRecordColumns+" ORDER BY recorded_at DESC, key LIMIT ? OFFSET ?", limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var records []*model.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate records: %w", err)
	}

	return records, total, nil
}

// Stats aggregates committed records by outcome.
func (s *SQLiteStore) Stats(ctx context.Context) (*RecordStats, error) {
	stats := &RecordStats{CountByOutcome: make(map[string]int)}

	rows, err := s.db.QueryContext(ctx, "SELECT outcome, COUNT(*) FROM records GROUP BY outcome")
	if err != nil {
		return nil, fmt.Errorf("count by outcome: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("scan outcome count: %w", err)
		}
		stats.CountByOutcome[outcome] = n
		stats.Total += n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcome counts: %w", err)
	}

	var avg sql.NullFloat64
	if err := s.db.QueryRowContext(ctx,
		"SELECT AVG(duration_ns) FROM records WHERE duration_ns IS NOT NULL",
	).Scan(&avg); err != nil {
		return nil, fmt.Errorf("average duration: %w", err)
	}
	if avg.Valid {
		stats.AvgDurationS = avg.Float64 / float64(time.Second)
	}

	return stats, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*model.Record, error) {
	rec := &model.Record{}
	var duration sql.NullInt64
	if err := row.Scan(&rec.Key, &rec.Name, &rec.Outcome, &duration, &rec.RunID, &rec.RecordedAt); err != nil {
		return nil, err
	}
	if duration.Valid {
		d := time.Duration(duration.Int64)
		rec.Duration = &d
	}
	return rec, nil
}
