package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/loykin/chronicle/internal/event"
	"github.com/loykin/chronicle/internal/store"
)

// DB implements store.Store on PostgreSQL through the pgx stdlib driver.
// Duration, the subtree closure and overlap intervals are computed server side.
type DB struct {
	db *sql.DB
}

// Config holds PostgreSQL connection settings.
type Config struct {
	DSN string
	// MaxOpenConns bounds the pool; 0 selects DefaultMaxOpenConns.
	MaxOpenConns int
}

// DefaultMaxOpenConns is the pool size used when Config leaves it unset.
const DefaultMaxOpenConns = 25

func New(dsn string) (*DB, error) { return NewWithConfig(Config{DSN: dsn}) }

func NewWithConfig(c Config) (*DB, error) {
	d, err := sql.Open("pgx", c.DSN)
	if err != nil {
		return nil, err
	}
	n := c.MaxOpenConns
	if n <= 0 {
		n = DefaultMaxOpenConns
	}
	d.SetMaxOpenConns(n)
	d.SetMaxIdleConns(5)
	d.SetConnMaxLifetime(5 * time.Minute)
	return &DB{db: d}, nil
}

func (p *DB) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS historical_events(
			event_id UUID PRIMARY KEY,
			event_name VARCHAR(255) NOT NULL,
			start_date TIMESTAMPTZ NOT NULL,
			end_date TIMESTAMPTZ NOT NULL,
			duration_minutes INTEGER GENERATED ALWAYS AS (
				EXTRACT(EPOCH FROM (end_date - start_date)) / 60
			) STORED,
			parent_id UUID NULL REFERENCES historical_events(event_id) ON DELETE SET NULL,
			research_value INTEGER NULL,
			description TEXT NULL,
			metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			CONSTRAINT historical_events_interval CHECK (end_date > start_date)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_historical_events_start_date ON historical_events(start_date);`,
		`CREATE INDEX IF NOT EXISTS idx_historical_events_end_date ON historical_events(end_date);`,
		`CREATE INDEX IF NOT EXISTS idx_historical_events_parent_id ON historical_events(parent_id);`,
		`CREATE INDEX IF NOT EXISTS idx_historical_events_metadata ON historical_events USING GIN (metadata);`,
	}
	for _, q := range stmts {
		if _, err := p.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (p *DB) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func (p *DB) Close() error { return p.db.Close() }

func (p *DB) BeginTx(ctx context.Context) (store.Tx, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &Tx{tx: tx}, nil
}

const eventColumns = `event_id::text, event_name, start_date, end_date, duration_minutes,
	parent_id::text, research_value, description, metadata::text, created_at, updated_at`

func (p *DB) Get(ctx context.Context, id string) (event.Event, error) {
	if !event.IsID(id) {
		return event.Event{}, store.ErrNotFound
	}
	row := p.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM historical_events WHERE event_id=$1;`, id)
	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return event.Event{}, store.ErrNotFound
	}
	return e, err
}

func (p *DB) Search(ctx context.Context, q store.Query) (store.Page, error) {
	q.Normalize()
	where, args := store.SearchClause(q, store.DollarPlaceholder, "ILIKE", func(t time.Time) any { return t.UTC() })
	page := store.Page{Page: q.Page, Limit: q.Limit, Items: []event.Event{}}
	if err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM historical_events `+where, args...).Scan(&page.Total); err != nil {
		return store.Page{}, err
	}
	n := len(args)
	query := fmt.Sprintf(`SELECT %s FROM historical_events %s %s LIMIT $%d OFFSET $%d;`,
		eventColumns, where, store.OrderClause(q), n+1, n+2)
	rows, err := p.db.QueryContext(ctx, query, append(args, q.Limit, q.Offset())...)
	if err != nil {
		return store.Page{}, err
	}
	defer rows.Close()
	items, err := scanEvents(rows)
	if err != nil {
		return store.Page{}, err
	}
	page.Items = items
	return page, nil
}

func (p *DB) Subtree(ctx context.Context, rootID string) ([]event.Event, error) {
	if !event.IsID(rootID) {
		return []event.Event{}, nil
	}
	rows, err := p.db.QueryContext(ctx, `
		WITH RECURSIVE event_tree AS (
			SELECT * FROM historical_events WHERE event_id = $1
			UNION
			SELECT e.* FROM historical_events e
			INNER JOIN event_tree et ON e.parent_id = et.event_id
		)
		SELECT `+eventColumns+` FROM event_tree;`, rootID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (p *DB) InWindow(ctx context.Context, start, end time.Time) ([]event.Event, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+eventColumns+`
		FROM historical_events
		WHERE start_date >= $1 AND end_date <= $2
		ORDER BY start_date ASC, event_id ASC;`, start.UTC(), end.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (p *DB) Overlaps(ctx context.Context) ([]store.OverlapRow, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT a_id, a_name, a_start, a_end, b_id, b_name, b_start, b_end,
			date_part('year', iv)::int, date_part('month', iv)::int, date_part('day', iv)::int,
			date_part('hour', iv)::int, date_part('minute', iv)::int, date_part('second', iv)::float8
		FROM (
			SELECT
				e1.event_id::text AS a_id, e1.event_name AS a_name, e1.start_date AS a_start, e1.end_date AS a_end,
				e2.event_id::text AS b_id, e2.event_name AS b_name, e2.start_date AS b_start, e2.end_date AS b_end,
				LEAST(e1.end_date, e2.end_date) - GREATEST(e1.start_date, e2.start_date) AS iv
			FROM historical_events e1
			JOIN historical_events e2 ON
				e1.event_id < e2.event_id AND
				e1.start_date < e2.end_date AND
				e1.end_date > e2.start_date
		) pairs
		ORDER BY a_id, b_id;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]store.OverlapRow, 0)
	for rows.Next() {
		var r store.OverlapRow
		if err := rows.Scan(
			&r.First.ID, &r.First.Name, &r.First.Start, &r.First.End,
			&r.Second.ID, &r.Second.Name, &r.Second.Start, &r.Second.End,
			&r.Interval.Years, &r.Interval.Months, &r.Interval.Days,
			&r.Interval.Hours, &r.Interval.Minutes, &r.Interval.Seconds,
		); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *DB) GraphNodes(ctx context.Context) ([]event.Event, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT event_id::text, event_name, duration_minutes, parent_id::text
		FROM historical_events;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]event.Event, 0)
	for rows.Next() {
		var (
			e      event.Event
			parent sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.Name, &e.DurationMinutes, &parent); err != nil {
			return nil, err
		}
		if parent.Valid {
			e.ParentID = &parent.String
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Tx is a PostgreSQL transaction used by the ingestion loader.
type Tx struct {
	tx *sql.Tx
}

func (t *Tx) Savepoint(ctx context.Context, name string) error {
	_, err := t.tx.ExecContext(ctx, "SAVEPOINT "+name)
	return err
}

func (t *Tx) RollbackToSavepoint(ctx context.Context, name string) error {
	_, err := t.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name)
	return err
}

func (t *Tx) ReleaseSavepoint(ctx context.Context, name string) error {
	_, err := t.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name)
	return err
}

func (t *Tx) InsertEvent(ctx context.Context, e event.Event) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO historical_events(event_id, event_name, start_date, end_date, parent_id, research_value, description)
		VALUES($1,$2,$3,$4,NULL,$5,$6);`,
		e.ID, e.Name, e.Start.UTC(), e.End.UTC(), nullInt(e.ResearchValue), nullString(e.Description))
	return classify(err)
}

func (t *Tx) SetParent(ctx context.Context, id, parentID string) (int64, error) {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE historical_events SET parent_id=$1, updated_at=now() WHERE event_id=$2;`, parentID, id)
	if err != nil {
		return 0, classify(err)
	}
	return res.RowsAffected()
}

func (t *Tx) Commit() error { return t.tx.Commit() }

func (t *Tx) Rollback() error { return t.tx.Rollback() }

// classify maps integrity violations onto store sentinels and keeps the
// server message readable.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	msg := pgErr.Message
	if pgErr.Detail != "" {
		msg += " (" + pgErr.Detail + ")"
	}
	switch pgErr.Code {
	case "23505":
		return fmt.Errorf("%w: %s", store.ErrConflict, msg)
	case "23502", "23503", "23514", "22P02", "22001":
		return fmt.Errorf("%w: %s", store.ErrConstraint, msg)
	}
	return errors.New(msg)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(s scanner) (event.Event, error) {
	var (
		e        event.Event
		parent   sql.NullString
		research sql.NullInt64
		desc     sql.NullString
		meta     sql.NullString
	)
	if err := s.Scan(&e.ID, &e.Name, &e.Start, &e.End, &e.DurationMinutes,
		&parent, &research, &desc, &meta, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return event.Event{}, err
	}
	if parent.Valid {
		e.ParentID = &parent.String
	}
	if research.Valid {
		e.ResearchValue = &research.Int64
	}
	if desc.Valid {
		e.Description = &desc.String
	}
	if meta.Valid && meta.String != "" && meta.String != "{}" {
		e.Metadata = []byte(meta.String)
	}
	e.Start, e.End = e.Start.UTC(), e.End.UTC()
	return e, nil
}

func scanEvents(rows *sql.Rows) ([]event.Event, error) {
	out := make([]event.Event, 0)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func nullInt(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullString(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}
