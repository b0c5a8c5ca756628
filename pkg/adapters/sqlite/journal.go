// Package sqlite records cell executions in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aretw0/mnb/pkg/domain"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS executions (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	notebook      TEXT    NOT NULL,
	cell_index    INTEGER NOT NULL,
	exec_order    INTEGER NOT NULL,
	status        TEXT    NOT NULL,
	response_kind TEXT,
	output        TEXT,
	duration_ns   INTEGER NOT NULL,
	recorded_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS executions_notebook ON executions (notebook, id);
`

// Journal implements ports.ExecutionJournal.
type Journal struct {
	db *sql.DB
}

// Open opens (or creates) the journal database at path.
// Use ":memory:" for a throwaway journal.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serialises writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal ping failed: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create journal schema: %w", err)
	}
	return &Journal{db: db}, nil
}

// Record appends one execution.
func (j *Journal) Record(ctx context.Context, e domain.JournalEntry) error {
	recorded := e.RecordedAt
	if recorded.IsZero() {
		recorded = time.Now()
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO executions (notebook, cell_index, exec_order, status, response_kind, output, duration_ns, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Notebook, e.Index, e.Order, string(e.Status), e.ResponseKind, e.Output,
		int64(e.Duration), recorded.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to record execution: %w", err)
	}
	return nil
}

// List returns the most recent executions of a notebook, newest first.
// A non-positive limit returns everything.
func (j *Journal) List(ctx context.Context, notebook string, limit int) ([]domain.JournalEntry, error) {
	query := `SELECT notebook, cell_index, exec_order, status, response_kind, output, duration_ns, recorded_at
		FROM executions WHERE notebook = ? ORDER BY id DESC`
	args := []any{notebook}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	entries := []domain.JournalEntry{}
	for rows.Next() {
		var (
			e        domain.JournalEntry
			status   string
			kind     sql.NullString
			output   sql.NullString
			duration int64
			recorded int64
		)
		if err := rows.Scan(&e.Notebook, &e.Index, &e.Order, &status, &kind, &output, &duration, &recorded); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		e.Status = domain.ExecutionStatus(status)
		e.ResponseKind = kind.String
		e.Output = output.String
		e.Duration = time.Duration(duration)
		e.RecordedAt = time.Unix(0, recorded)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return entries, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}
