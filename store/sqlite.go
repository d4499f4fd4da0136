// ABOUTME: SQLite-backed history of research runs and their engine events.
// ABOUTME: Runs are keyed by ULIDs so listing by id is also listing by creation time.
package store

import (
	"crypto/rand"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"
)

const timeLayout = time.RFC3339Nano

// ErrNotFound is returned when a run id has no row.
var ErrNotFound = errors.New("run not found")

// RunStatus is the lifecycle state of a stored run.
type RunStatus string

const (
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
	StatusFailed    RunStatus = "failed"
)

// Run is a row of the runs table.
type Run struct {
	ID          string          `json:"id"`
	Topic       string          `json:"topic"`
	Status      RunStatus       `json:"status"`
	Termination string          `json:"termination,omitempty"`
	Iterations  int             `json:"iterations"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// EventRow is a row of the events table.
type EventRow struct {
	Seq          int64           `json:"seq"`
	RunID        string          `json:"run_id"`
	Type         string          `json:"type"`
	StepID       string          `json:"step_id,omitempty"`
	InvocationID string          `json:"invocation_id,omitempty"`
	Iteration    int             `json:"iteration"`
	Data         json.RawMessage `json:"data,omitempty"`
	Timestamp    time.Time       `json:"timestamp"`
}

// SqliteStore persists runs and events.
type SqliteStore struct {
	db *sql.DB
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewRunID returns a fresh run id. Ids sort by creation time, including ids made within
// the same millisecond.
func NewRunID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Now(), entropy).String()
}

// OpenSqlite opens or creates the history database at path and applies the schema.
func OpenSqlite(path string) (*SqliteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// sqlite allows a single writer.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	schema := `
		CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			topic TEXT NOT NULL,
			status TEXT NOT NULL,
			termination TEXT NOT NULL DEFAULT '',
			iterations INTEGER NOT NULL DEFAULT 0,
			result TEXT,
			error TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS events (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			type TEXT NOT NULL,
			step_id TEXT NOT NULL DEFAULT '',
			invocation_id TEXT NOT NULL DEFAULT '',
			iteration INTEGER NOT NULL DEFAULT 0,
			data TEXT,
			ts TEXT NOT NULL,
			FOREIGN KEY (run_id) REFERENCES runs(run_id) ON DELETE CASCADE
		);

		CREATE INDEX IF NOT EXISTS events_run ON events(run_id, seq);`

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SqliteStore{db: db}, nil
}

// Close closes the database.
func (s *SqliteStore) Close() error {
	return s.db.Close()
}

// CreateRun inserts a running row for topic and returns it.
func (s *SqliteStore) CreateRun(id, topic string) (*Run, error) {
	if id == "" {
		id = NewRunID()
	}
	now := time.Now().UTC()
	_, err := s.db.Exec(
		`INSERT INTO runs (run_id, topic, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, topic, StatusRunning, now.Format(timeLayout), now.Format(timeLayout))
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return &Run{ID: id, Topic: topic, Status: StatusRunning, CreatedAt: now, UpdatedAt: now}, nil
}

// FinishRun marks a run completed with its termination reason and JSON-encoded result.
func (s *SqliteStore) FinishRun(id, termination string, iterations int, result any) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return s.update(id,
		`UPDATE runs SET status = ?, termination = ?, iterations = ?, result = ?, updated_at = ? WHERE run_id = ?`,
		StatusCompleted, termination, iterations, string(raw), time.Now().UTC().Format(timeLayout), id)
}

// FailRun marks a run failed with the error message.
func (s *SqliteStore) FailRun(id string, runErr error) error {
	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}
	return s.update(id,
		`UPDATE runs SET status = ?, error = ?, updated_at = ? WHERE run_id = ?`,
		StatusFailed, msg, time.Now().UTC().Format(timeLayout), id)
}

func (s *SqliteStore) update(id, query string, args ...any) error {
	res, err := s.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("update run %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update run %s: %w", id, ErrNotFound)
	}
	return nil
}

// AppendEvent stores one event and returns its sequence number.
func (s *SqliteStore) AppendEvent(e EventRow) (int64, error) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	var data any
	if len(e.Data) > 0 {
		data = string(e.Data)
	}
	res, err := s.db.Exec(
		`INSERT INTO events (run_id, type, step_id, invocation_id, iteration, data, ts) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.RunID, e.Type, e.StepID, e.InvocationID, e.Iteration, data, e.Timestamp.UTC().Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("insert event: %w", err)
	}
	return res.LastInsertId()
}

// GetRun loads one run.
func (s *SqliteStore) GetRun(id string) (*Run, error) {
	row := s.db.QueryRow(
		`SELECT run_id, topic, status, termination, iterations, result, error, created_at, updated_at
		 FROM runs WHERE run_id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return r, err
}

// ListRuns returns up to limit runs, newest first. A non-positive limit means 50.
func (s *SqliteStore) ListRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		`SELECT run_id, topic, status, termination, iterations, result, error, created_at, updated_at
		 FROM runs ORDER BY run_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	runs := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

// Events returns the events of a run in the order they were recorded.
func (s *SqliteStore) Events(runID string) ([]EventRow, error) {
	rows, err := s.db.Query(
		`SELECT seq, run_id, type, step_id, invocation_id, iteration, data, ts
		 FROM events WHERE run_id = ? ORDER BY seq ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	events := []EventRow{}
	for rows.Next() {
		var (
			e    EventRow
			data sql.NullString
			ts   string
		)
		if err := rows.Scan(&e.Seq, &e.RunID, &e.Type, &e.StepID, &e.InvocationID, &e.Iteration, &data, &ts); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		if data.Valid {
			e.Data = json.RawMessage(data.String)
		}
		if e.Timestamp, err = time.Parse(timeLayout, ts); err != nil {
			return nil, fmt.Errorf("parse event time: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(sc rowScanner) (*Run, error) {
	var (
		r                Run
		result           sql.NullString
		created, updated string
	)
	if err := sc.Scan(&r.ID, &r.Topic, &r.Status, &r.Termination, &r.Iterations, &result, &r.Error, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan run row: %w", err)
	}
	if result.Valid {
		r.Result = json.RawMessage(result.String)
	}
	var err error
	if r.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if r.UpdatedAt, err = time.Parse(timeLayout, updated); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &r, nil
}
