package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/loykin/chronicle/internal/history"
)

// Sink appends job history events to a SQLite table job_history.
type Sink struct {
	db *sql.DB
}

// New creates a new SQLite history sink.
// DSN format:
//   - "sqlite:///path/to/file.db"
//   - "sqlite://:memory:"
//   - "/path/to/file.db" (without prefix)
//   - ":memory:" (in-memory database)
func New(dsn string) (*Sink, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("empty SQLite DSN")
	}

	if strings.HasPrefix(strings.ToLower(dsn), "sqlite://") {
		dsn = dsn[len("sqlite://"):]
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	sink := &Sink{db: db}
	if err := sink.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return sink, nil
}

func (s *Sink) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS job_history(
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			occurred_at TIMESTAMP NOT NULL DEFAULT (CURRENT_TIMESTAMP),
			event TEXT NOT NULL,
			job_id TEXT NOT NULL,
			source TEXT NOT NULL,
			status TEXT NOT NULL,
			total_lines INTEGER NOT NULL,
			processed_lines INTEGER NOT NULL,
			error_lines INTEGER NOT NULL,
			error_count INTEGER NOT NULL,
			last_error TEXT NULL,
			started_at TIMESTAMP NOT NULL,
			ended_at TIMESTAMP NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_job_history_job_id ON job_history(job_id);`,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sink) Send(ctx context.Context, e history.Event) error {
	rec := e.Record
	var lastErr any
	if rec.LastError != "" {
		lastErr = rec.LastError
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO job_history(occurred_at, event, job_id, source, status, total_lines, processed_lines, error_lines, error_count, last_error, started_at, ended_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`,
		e.OccurredAt.UTC(), string(e.Type), rec.JobID, rec.Source, rec.Status,
		rec.TotalLines, rec.ProcessedLines, rec.ErrorLines, rec.ErrorCount, lastErr,
		rec.StartedAt.UTC(), history.EndedAtValue(rec))
	return err
}

func (s *Sink) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
