package collector

// SQLite-backed sample store for polled PLC values.

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Sample is one polled value for one target.
type Sample struct {
	ID        int64
	Target    string
	Area      string
	DBNumber  uint16
	Start     uint32
	DataType  string
	Count     uint32
	Value     []byte
	Timestamp time.Time
}

// Store persists samples to a SQLite database.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS samples (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	target     TEXT NOT NULL,
	area       TEXT NOT NULL,
	db_number  INTEGER NOT NULL,
	start      INTEGER NOT NULL,
	data_type  TEXT NOT NULL,
	count      INTEGER NOT NULL,
	value      BLOB NOT NULL,
	timestamp  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_samples_target_ts ON samples(target, timestamp DESC);
`

// OpenStore opens or creates the sample database at path.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// InsertSample stores one sample.
func (s *Store) InsertSample(ctx context.Context, sample Sample) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO samples (target, area, db_number, start, data_type, count, value, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sample.Target, sample.Area, sample.DBNumber, sample.Start,
		sample.DataType, sample.Count, sample.Value,
		sample.Timestamp.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert sample: %w", err)
	}
	return nil
}

// History returns samples for a target ordered newest first. limit <= 0
// returns all rows.
func (s *Store) History(ctx context.Context, target string, limit int) ([]Sample, error) {
	query := `SELECT id, target, area, db_number, start, data_type, count, value, timestamp
		 FROM samples WHERE target = ? ORDER BY timestamp DESC, id DESC`
	args := []any{target}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	return scanSamples(rows)
}

// Latest returns the most recent sample per target.
func (s *Store) Latest(ctx context.Context) ([]Sample, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, target, area, db_number, start, data_type, count, value, timestamp
		 FROM samples
		 WHERE id IN (SELECT MAX(id) FROM samples GROUP BY target)
		 ORDER BY target`)
	if err != nil {
		return nil, fmt.Errorf("query latest: %w", err)
	}
	defer rows.Close()

	return scanSamples(rows)
}

// Count returns the total number of stored samples.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM samples`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count samples: %w", err)
	}
	return n, nil
}

func scanSamples(rows *sql.Rows) ([]Sample, error) {
	var out []Sample
	for rows.Next() {
		var sm Sample
		var ts string
		if err := rows.Scan(&sm.ID, &sm.Target, &sm.Area, &sm.DBNumber, &sm.Start,
			&sm.DataType, &sm.Count, &sm.Value, &ts); err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		parsed, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("parse timestamp %q: %w", ts, err)
		}
		sm.Timestamp = parsed
		out = append(out, sm)
	}
	return out, rows.Err()
}
