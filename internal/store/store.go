// Package store persists the generation catalog: one row per run and
// one row per processed member, kept in a local SQLite database so
// successive runs can be compared and skipped members audited.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Catalog is the on-disk run catalog. Safe for concurrent use; writes
// serialize on the mutex so the WAL never sees interleaved transactions
// from one process.
type Catalog struct {
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// Run is one generation pass over a package.
type Run struct {
	ID         string
	Package    string
	StartedAt  time.Time
	FinishedAt time.Time
	Files      int
	Tests      int
}

// Member records the outcome for one method: how many argument
// combinations were emitted, or why it was skipped.
type Member struct {
	RunID        string
	Receiver     string
	Method       string
	Combinations int
	Skipped      bool
	Reason       string
}

// Open initializes the catalog database at the given path, creating
// parent directories and tables as needed.
func Open(path string) (*Catalog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create catalog directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	c := &Catalog{db: db, path: path}
	if err := c.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

func (c *Catalog) initialize() error {
	pragmas := `
	PRAGMA journal_mode=WAL;
	PRAGMA busy_timeout=5000;
	`
	// Timestamps are stored as unix nanoseconds so round-tripping does
	// not depend on the driver's text time format.
	runsTable := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		package TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		finished_at INTEGER DEFAULT 0,
		files INTEGER DEFAULT 0,
		tests INTEGER DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_runs_package ON runs(package);
	`
	membersTable := `
	CREATE TABLE IF NOT EXISTS members (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		receiver TEXT NOT NULL,
		method TEXT NOT NULL,
		combinations INTEGER DEFAULT 0,
		skipped INTEGER DEFAULT 0,
		reason TEXT DEFAULT '',
		FOREIGN KEY(run_id) REFERENCES runs(id)
	);
	CREATE INDEX IF NOT EXISTS idx_members_run ON members(run_id);
	`
	for _, stmt := range []string{pragmas, runsTable, membersTable} {
		if _, err := c.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to initialize catalog schema: %w", err)
		}
	}
	return nil
}

// BeginRun opens a new run row and returns its descriptor.
func (c *Catalog) BeginRun(pkg string) (*Run, error) {
	run := &Run{
		ID:        uuid.NewString(),
		Package:   pkg,
		StartedAt: time.Now().UTC(),
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.db.Exec(
		`INSERT INTO runs (id, package, started_at) VALUES (?, ?, ?)`,
		run.ID, run.Package, run.StartedAt.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("failed to record run start: %w", err)
	}
	return run, nil
}

// FinishRun stamps the run's completion time and emission totals.
func (c *Catalog) FinishRun(run *Run) error {
	run.FinishedAt = time.Now().UTC()
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.db.Exec(
		`UPDATE runs SET finished_at = ?, files = ?, tests = ? WHERE id = ?`,
		run.FinishedAt.UnixNano(), run.Files, run.Tests, run.ID)
	if err != nil {
		return fmt.Errorf("failed to record run completion: %w", err)
	}
	return nil
}

// RecordMember appends one member outcome to the run.
func (c *Catalog) RecordMember(m Member) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.db.Exec(
		`INSERT INTO members (run_id, receiver, method, combinations, skipped, reason)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		m.RunID, m.Receiver, m.Method, m.Combinations, boolToInt(m.Skipped), m.Reason)
	if err != nil {
		return fmt.Errorf("failed to record member %s.%s: %w", m.Receiver, m.Method, err)
	}
	return nil
}

// Runs lists the recorded runs for a package, most recent first.
func (c *Catalog) Runs(pkg string) ([]Run, error) {
	rows, err := c.db.Query(
		`SELECT id, package, started_at, finished_at, files, tests
		 FROM runs WHERE package = ? ORDER BY started_at DESC`, pkg)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var started, finished int64
		if err := rows.Scan(&r.ID, &r.Package, &started, &finished, &r.Files, &r.Tests); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.StartedAt = time.Unix(0, started).UTC()
		if finished != 0 {
			r.FinishedAt = time.Unix(0, finished).UTC()
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// MembersOf lists the member outcomes recorded for a run, in insertion
// order.
func (c *Catalog) MembersOf(runID string) ([]Member, error) {
	rows, err := c.db.Query(
		`SELECT run_id, receiver, method, combinations, skipped, reason
		 FROM members WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query members: %w", err)
	}
	defer rows.Close()

	var out []Member
	for rows.Next() {
		var m Member
		var skipped int
		if err := rows.Scan(&m.RunID, &m.Receiver, &m.Method, &m.Combinations, &skipped, &m.Reason); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		m.Skipped = skipped != 0
		out = append(out, m)
	}
	return out, rows.Err()
}

// Close releases the underlying database handle.
func (c *Catalog) Close() error {
	return c.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
