// Package runlog keeps an append-only audit trail of batch ingestion
// runs in its own SQLite database.
package runlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Record is one completed load-all invocation.
type Record struct {
	RunID        string    `json:"run_id"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	Granularity  string    `json:"granularity"`
	Total        int       `json:"total"`
	Successful   int       `json:"successful"`
	Failed       int       `json:"failed"`
	TotalRecords int       `json:"total_records"`
	Errors       []string  `json:"errors,omitempty"`
	Delisted     []string  `json:"delisted,omitempty"`
}

// Store persists run records. Safe for concurrent use.
type Store struct {
	mu sync.Mutex
	db *sql.DB
}

// Open initializes the run log database.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("run log path is required")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	const ddl = `CREATE TABLE IF NOT EXISTS ingestion_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		finished_at INTEGER NOT NULL,
		granularity TEXT NOT NULL,
		total INTEGER NOT NULL,
		successful INTEGER NOT NULL,
		failed INTEGER NOT NULL,
		total_records INTEGER NOT NULL,
		errors_json TEXT,
		delisted_json TEXT
	)`
	_, err := s.db.ExecContext(context.Background(), ddl)
	return err
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Append stores one run record, assigning a run id if absent.
func (s *Store) Append(ctx context.Context, rec Record) (string, error) {
	if rec.RunID == "" {
		rec.RunID = uuid.NewString()
	}
	errorsJSON, err := json.Marshal(rec.Errors)
	if err != nil {
		return "", err
	}
	delistedJSON, err := json.Marshal(rec.Delisted)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return "", fmt.Errorf("run log store is closed")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO ingestion_runs
		 (run_id, started_at, finished_at, granularity, total, successful, failed, total_records, errors_json, delisted_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID,
		rec.StartedAt.Unix(),
		rec.FinishedAt.Unix(),
		rec.Granularity,
		rec.Total,
		rec.Successful,
		rec.Failed,
		rec.TotalRecords,
		string(errorsJSON),
		string(delistedJSON),
	)
	if err != nil {
		return "", err
	}
	return rec.RunID, nil
}

// Recent returns the newest runs, most recent first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, fmt.Errorf("run log store is closed")
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, started_at, finished_at, granularity, total, successful, failed, total_records, errors_json, delisted_json
		 FROM ingestion_runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var startedAt, finishedAt int64
		var errorsJSON, delistedJSON sql.NullString
		if err := rows.Scan(&rec.RunID, &startedAt, &finishedAt, &rec.Granularity,
			&rec.Total, &rec.Successful, &rec.Failed, &rec.TotalRecords,
			&errorsJSON, &delistedJSON); err != nil {
			return nil, err
		}
		rec.StartedAt = time.Unix(startedAt, 0).UTC()
		rec.FinishedAt = time.Unix(finishedAt, 0).UTC()
		if errorsJSON.Valid && errorsJSON.String != "" {
			_ = json.Unmarshal([]byte(errorsJSON.String), &rec.Errors)
		}
		if delistedJSON.Valid && delistedJSON.String != "" {
			_ = json.Unmarshal([]byte(delistedJSON.String), &rec.Delisted)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
