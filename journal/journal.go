// Package journal records completed program runs in a SQL database.
package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrNotFound indicates the requested run doesn't exist
var ErrNotFound = errors.New("run not found")

// Run outcomes. A run either reaches HALT, runs off the end of the
// program, or faults.
const (
	OutcomeHalted    = "halted"
	OutcomeCompleted = "completed"
	OutcomeFault     = "fault"
)

// startedAtLayout is RFC 3339 with fixed-width nanoseconds. Zero padding
// keeps lexicographic ORDER BY on started_at chronological.
const startedAtLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Entry is one journaled run
type Entry struct {
	ID        string
	Program   string
	Outcome   string
	PC        int
	Fault     string
	Output    string
	StartedAt time.Time
	Duration  time.Duration
}

// Journal handles SQL storage for run records
type Journal struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens a journal on the given driver ("sqlite" or "duckdb") and
// creates the schema if needed. The parent directory of a file DSN is
// created on demand.
func Open(driver, dsn string) (*Journal, error) {
	switch driver {
	case "sqlite", "duckdb":
	default:
		return nil, fmt.Errorf("journal: unsupported driver %q", driver)
	}

	if dir := filepath.Dir(dsn); dsn != "" && dsn != ":memory:" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating journal dir: %w", err)
		}
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	j := &Journal{db: db}

	// Set busy timeout for concurrent access
	if driver == "sqlite" {
		if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting busy timeout: %w", err)
		}
	}

	// Create table if needed
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		program TEXT NOT NULL,
		outcome TEXT NOT NULL,
		pc INTEGER NOT NULL,
		fault TEXT NOT NULL,
		output TEXT NOT NULL,
		started_at TEXT NOT NULL,
		duration_ms INTEGER NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	return j, nil
}

// Close closes the database connection
func (j *Journal) Close() error {
	if j.db != nil {
		return j.db.Close()
	}
	return nil
}

// Append records a run. A missing ID or start time is filled in.
func (j *Journal) Append(e *Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.StartedAt.IsZero() {
		e.StartedAt = time.Now()
	}

	_, err := j.db.Exec(
		"INSERT INTO runs (id, program, outcome, pc, fault, output, started_at, duration_ms) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		e.ID, e.Program, e.Outcome, e.PC, e.Fault, e.Output,
		e.StartedAt.UTC().Format(startedAtLayout), e.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("saving run: %w", err)
	}
	return nil
}

// Get retrieves a single run by ID
func (j *Journal) Get(id string) (*Entry, error) {
	row := j.db.QueryRow(
		"SELECT id, program, outcome, pc, fault, output, started_at, duration_ms FROM runs WHERE id = ?",
		id,
	)
	e, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying run: %w", err)
	}
	return e, nil
}

// Recent returns the n most recently started runs, newest first
func (j *Journal) Recent(n int) ([]Entry, error) {
	rows, err := j.db.Query(
		"SELECT id, program, outcome, pc, fault, output, started_at, duration_ms FROM runs ORDER BY started_at DESC LIMIT ?",
		n,
	)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// Summary returns run counts grouped by outcome
func (j *Journal) Summary() (map[string]int, error) {
	rows, err := j.db.Query("SELECT outcome, COUNT(*) FROM runs GROUP BY outcome")
	if err != nil {
		return nil, fmt.Errorf("querying summary: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("scanning summary: %w", err)
		}
		counts[outcome] = n
	}
	return counts, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(s scanner) (*Entry, error) {
	var e Entry
	var started string
	var durationMS int64
	if err := s.Scan(&e.ID, &e.Program, &e.Outcome, &e.PC, &e.Fault, &e.Output, &started, &durationMS); err != nil {
		return nil, err
	}
	t, err := time.Parse(time.RFC3339Nano, started)
	if err != nil {
		return nil, fmt.Errorf("parsing started_at: %w", err)
	}
	e.StartedAt = t
	e.Duration = time.Duration(durationMS) * time.Millisecond
	return &e, nil
}
