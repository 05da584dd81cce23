// Package store persists the canonical long-format reading table in SQLite.
// The table is the pipeline's source of truth between the reshaper and the
// aggregators; its primary key enforces the one-reading-per-slot invariant.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/soccerwave/barcelona-air-quality-schools/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS readings (
	station_id     TEXT    NOT NULL,
	pollutant_code TEXT    NOT NULL,
	ts             TEXT    NOT NULL,
	date           TEXT    NOT NULL,
	hour           INTEGER NOT NULL,
	value          REAL    NOT NULL CHECK (value >= 0),
	validity       INTEGER NOT NULL,
	PRIMARY KEY (station_id, pollutant_code, date, hour)
);`

// ReadingStore is a SQLite-backed store of valid observations.
type ReadingStore struct {
	db *sql.DB
}

// Open creates or opens the store at path and ensures the schema exists.
func Open(path string) (*ReadingStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store: mkdir %s: %w", dir, err)
		}
	}

	dsn := path
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	dsn += "?_busy_timeout=5000&_journal_mode=WAL"

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	// Single-writer batch workload; a second connection only risks
	// "database is locked" churn.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: init schema: %w", err)
	}
	return &ReadingStore{db: db}, nil
}

// Close releases the database handle.
func (s *ReadingStore) Close() error {
	return s.db.Close()
}

// Reset clears the reading table. Each pipeline run owns the store
// exclusively and rebuilds it from scratch.
func (s *ReadingStore) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM readings`); err != nil {
		return fmt.Errorf("store: reset: %w", err)
	}
	return nil
}

// InsertReadings writes a batch of readings in one transaction. Inserts use
// OR IGNORE so a key collision cannot corrupt the table; the reshaper is
// expected to have deduplicated already, and the returned count lets the
// caller verify that nothing was silently ignored.
func (s *ReadingStore) InsertReadings(ctx context.Context, readings []domain.Reading) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO readings (station_id, pollutant_code, ts, date, hour, value, validity)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("store: prepare insert: %w", err)
	}
	defer stmt.Close()

	var inserted int64
	for _, rd := range readings {
		res, err := stmt.ExecContext(ctx,
			rd.StationID,
			rd.PollutantCode,
			rd.Timestamp.Format(time.RFC3339),
			rd.Date(),
			rd.Hour(),
			rd.Value,
			boolToInt(rd.Validity),
		)
		if err != nil {
			return 0, fmt.Errorf("store: insert reading %s/%s %s: %w",
				rd.StationID, rd.PollutantCode, rd.Timestamp.Format(time.RFC3339), err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("store: rows affected: %w", err)
		}
		inserted += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: commit: %w", err)
	}
	return inserted, nil
}

// Readings returns every stored reading in canonical (station, pollutant,
// timestamp) order, so downstream folds see a deterministic sequence.
func (s *ReadingStore) Readings(ctx context.Context) ([]domain.Reading, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT station_id, pollutant_code, ts, value, validity
		FROM readings
		ORDER BY station_id, pollutant_code, ts`)
	if err != nil {
		return nil, fmt.Errorf("store: query readings: %w", err)
	}
	defer rows.Close()

	var out []domain.Reading
	for rows.Next() {
		var rd domain.Reading
		var ts string
		var validity int
		if err := rows.Scan(&rd.StationID, &rd.PollutantCode, &ts, &rd.Value, &validity); err != nil {
			return nil, fmt.Errorf("store: scan reading: %w", err)
		}
		rd.Timestamp, err = time.Parse(time.RFC3339, ts)
		if err != nil {
			return nil, fmt.Errorf("store: parse timestamp %q: %w", ts, err)
		}
		rd.Validity = validity == 1
		out = append(out, rd)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate readings: %w", err)
	}
	return out, nil
}

// Count returns the number of stored readings.
func (s *ReadingStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM readings`).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count: %w", err)
	}
	return n, nil
}

// DuplicateSlots returns how many (station, pollutant, date, hour) slots hold
// more than one row. The primary key makes a non-zero result impossible; the
// pipeline still re-checks it as an acceptance condition.
func (s *ReadingStore) DuplicateSlots(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM (
			SELECT 1 FROM readings
			GROUP BY station_id, pollutant_code, date, hour
			HAVING COUNT(*) > 1
		)`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("store: duplicate slots: %w", err)
	}
	return n, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
