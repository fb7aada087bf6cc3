// Package history persists a record of past gathering runs in SQLite.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"sternmux/internal/stats"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id              TEXT PRIMARY KEY,
    started_at      TEXT NOT NULL,
    finished_at     TEXT,
    command_line    TEXT NOT NULL,
    contexts        TEXT NOT NULL,
    lines_total     INTEGER NOT NULL DEFAULT 0,
    lines_printed   INTEGER NOT NULL DEFAULT 0,
    lines_invalid   INTEGER NOT NULL DEFAULT 0,
    lines_filtered  INTEGER NOT NULL DEFAULT 0,
    failed_contexts TEXT NOT NULL DEFAULT '',
    exit_status     INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
`

// Run is one row of gathering history.
type Run struct {
	ID             string
	StartedAt      time.Time
	FinishedAt     time.Time
	CommandLine    string
	Contexts       []string
	Lines          stats.Snapshot
	FailedContexts []string
	ExitStatus     int
}

// Store wraps the history database.
type Store struct {
	db *sql.DB
}

// Open creates or opens the history database at path, creating parent
// directories as needed.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create history schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Begin records the start of a run and returns its id.
func (s *Store) Begin(ctx context.Context, commandLine string, contexts []string) (string, error) {
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, command_line, contexts) VALUES (?, ?, ?, ?)`,
		id, time.Now().UTC().Format(time.RFC3339), commandLine, strings.Join(contexts, ","))
	if err != nil {
		return "", fmt.Errorf("record run start: %w", err)
	}
	return id, nil
}

// Finish fills in the outcome of a run started with Begin.
func (s *Store) Finish(ctx context.Context, id string, lines stats.Snapshot, failedContexts []string, exitStatus int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, lines_total = ?, lines_printed = ?,
		        lines_invalid = ?, lines_filtered = ?, failed_contexts = ?, exit_status = ?
		 WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339),
		lines.Total, lines.Printed, lines.Invalid, lines.FilteredOut,
		strings.Join(failedContexts, ","), exitStatus, id)
	if err != nil {
		return fmt.Errorf("record run outcome: %w", err)
	}
	return nil
}

// Recent returns the most recent runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, command_line, contexts,
		        lines_total, lines_printed, lines_invalid, lines_filtered,
		        failed_contexts, exit_status
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run              Run
			started          string
			finished         sql.NullString
			contexts, failed string
		)
		err := rows.Scan(&run.ID, &started, &finished, &run.CommandLine, &contexts,
			&run.Lines.Total, &run.Lines.Printed, &run.Lines.Invalid, &run.Lines.FilteredOut,
			&failed, &run.ExitStatus)
		if err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		run.StartedAt, _ = time.Parse(time.RFC3339, started)
		if finished.Valid {
			run.FinishedAt, _ = time.Parse(time.RFC3339, finished.String)
		}
		run.Contexts = splitList(contexts)
		run.FailedContexts = splitList(failed)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func splitList(joined string) []string {
	if joined == "" {
		return nil
	}
	return strings.Split(joined, ",")
}
