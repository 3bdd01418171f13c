package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/loykin/chronicle/internal/event"
	"github.com/loykin/chronicle/internal/store"
)

// DB implements store.Store for SQLite (modernc.org/sqlite driver, CGO-free).
// DSN is a filesystem path to the SQLite database file. Use ":memory:" for in-memory.
//
// Timestamps are stored as fixed width UTC text so that lexical comparison
// matches chronological order and julianday() can derive durations.
//
// File databases run in WAL mode with a connection pool so reads proceed
// while an ingestion transaction is open. Writers are serialized by the
// store itself.
type DB struct {
	db     *sql.DB
	writer *semaphore.Weighted
}

// Config holds SQLite connection settings.
type Config struct {
	Path string
	// MaxOpenConns bounds the pool for file databases; 0 selects DefaultMaxOpenConns.
	// In-memory databases always use a single connection.
	MaxOpenConns int
}

// DefaultMaxOpenConns is the pool size used for file databases.
const DefaultMaxOpenConns = 4

// busyTimeoutMillis is how long a connection waits on a locked database.
const busyTimeoutMillis = 5000

// timeLayout is the on-disk encoding of timestamps.
const timeLayout = "2006-01-02 15:04:05.000"

// New opens a SQLite database at path with default settings.
func New(path string) (*DB, error) { return NewWithConfig(Config{Path: path}) }

// NewWithConfig opens a SQLite database. Pragmas are part of the DSN so
// every pooled connection gets them.
func NewWithConfig(c Config) (*DB, error) {
	p := strings.TrimSpace(c.Path)
	if p == "" {
		return nil, errors.New("empty sqlite path")
	}
	memory := isMemory(p)
	d, err := sql.Open("sqlite", dsn(p, memory))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	switch {
	case memory:
		// every connection to ":memory:" is a separate database
		d.SetMaxOpenConns(1)
	case c.MaxOpenConns > 0:
		d.SetMaxOpenConns(c.MaxOpenConns)
	default:
		d.SetMaxOpenConns(DefaultMaxOpenConns)
	}
	if err := d.PingContext(context.Background()); err != nil {
		_ = d.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}
	return &DB{db: d, writer: semaphore.NewWeighted(1)}, nil
}

func isMemory(p string) bool {
	lp := strings.ToLower(p)
	return lp == ":memory:" || strings.HasPrefix(lp, "file::memory:") || strings.Contains(lp, "mode=memory")
}

func dsn(p string, memory bool) string {
	sep := "?"
	if strings.Contains(p, "?") {
		sep = "&"
	}
	q := fmt.Sprintf("_pragma=foreign_keys(1)&_pragma=busy_timeout(%d)", busyTimeoutMillis)
	if !memory {
		q += "&_pragma=journal_mode(WAL)"
	}
	return p + sep + q
}

func (s *DB) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS historical_events(
			event_id TEXT PRIMARY KEY,
			event_name TEXT NOT NULL,
			start_date TEXT NOT NULL,
			end_date TEXT NOT NULL,
			duration_minutes INTEGER GENERATED ALWAYS AS (
				CAST(ROUND((julianday(end_date) - julianday(start_date)) * 1440) AS INTEGER)
			) STORED,
			parent_id TEXT NULL REFERENCES historical_events(event_id) ON DELETE SET NULL,
			research_value INTEGER NULL,
			description TEXT NULL,
			metadata TEXT NOT NULL DEFAULT '{}',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			CHECK (end_date > start_date)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_historical_events_start_date ON historical_events(start_date);`,
		`CREATE INDEX IF NOT EXISTS idx_historical_events_end_date ON historical_events(end_date);`,
		`CREATE INDEX IF NOT EXISTS idx_historical_events_parent_id ON historical_events(parent_id);`,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (s *DB) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *DB) Close() error { return s.db.Close() }

// BeginTx waits for any other write transaction of this store to finish.
// Readers are not blocked.
func (s *DB) BeginTx(ctx context.Context) (store.Tx, error) {
	if err := s.writer.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.writer.Release(1)
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	t := &Tx{tx: tx}
	t.release = func() { s.writer.Release(1) }
	return t, nil
}

const eventColumns = `event_id, event_name, start_date, end_date, duration_minutes,
	parent_id, research_value, description, metadata, created_at, updated_at`

func (s *DB) Get(ctx context.Context, id string) (event.Event, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM historical_events WHERE event_id=?;`, id)
	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return event.Event{}, store.ErrNotFound
	}
	return e, err
}

func (s *DB) Search(ctx context.Context, q store.Query) (store.Page, error) {
	q.Normalize()
	where, args := store.SearchClause(q, store.QuestionPlaceholder, "LIKE", func(t time.Time) any { return encodeTime(t) })
	page := store.Page{Page: q.Page, Limit: q.Limit, Items: []event.Event{}}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM historical_events `+where, args...).Scan(&page.Total); err != nil {
		return store.Page{}, err
	}
	query := fmt.Sprintf(`SELECT %s FROM historical_events %s %s LIMIT ? OFFSET ?;`, eventColumns, where, store.OrderClause(q))
	rows, err := s.db.QueryContext(ctx, query, append(args, q.Limit, q.Offset())...)
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

func (s *DB) Subtree(ctx context.Context, rootID string) ([]event.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		WITH RECURSIVE event_tree(id) AS (
			SELECT event_id FROM historical_events WHERE event_id = ?
			UNION
			SELECT e.event_id FROM historical_events e
			INNER JOIN event_tree et ON e.parent_id = et.id
		)
		SELECT `+eventColumns+` FROM historical_events
		WHERE event_id IN (SELECT id FROM event_tree);`, rootID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (s *DB) InWindow(ctx context.Context, start, end time.Time) ([]event.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+eventColumns+`
		FROM historical_events
		WHERE start_date >= ? AND end_date <= ?
		ORDER BY start_date ASC, event_id ASC;`, encodeTime(start), encodeTime(end))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (s *DB) Overlaps(ctx context.Context) ([]store.OverlapRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT
			e1.event_id, e1.event_name, e1.start_date, e1.end_date,
			e2.event_id, e2.event_name, e2.start_date, e2.end_date,
			ROUND((julianday(MIN(e1.end_date, e2.end_date)) - julianday(MAX(e1.start_date, e2.start_date))) * 86400, 3)
		FROM historical_events e1
		JOIN historical_events e2 ON
			e1.event_id < e2.event_id AND
			e1.start_date < e2.end_date AND
			e1.end_date > e2.start_date
		ORDER BY e1.event_id, e2.event_id;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]store.OverlapRow, 0)
	for rows.Next() {
		var (
			r                          store.OverlapRow
			aStart, aEnd, bStart, bEnd string
			seconds                    float64
		)
		if err := rows.Scan(&r.First.ID, &r.First.Name, &aStart, &aEnd,
			&r.Second.ID, &r.Second.Name, &bStart, &bEnd, &seconds); err != nil {
			return nil, err
		}
		if r.First.Start, err = decodeTime(aStart); err != nil {
			return nil, err
		}
		if r.First.End, err = decodeTime(aEnd); err != nil {
			return nil, err
		}
		if r.Second.Start, err = decodeTime(bStart); err != nil {
			return nil, err
		}
		if r.Second.End, err = decodeTime(bEnd); err != nil {
			return nil, err
		}
		r.Interval = store.IntervalFromSeconds(seconds)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *DB) GraphNodes(ctx context.Context) ([]event.Event, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT event_id, event_name, duration_minutes, parent_id FROM historical_events;`)
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

// Tx is a SQLite transaction used by the ingestion loader.
type Tx struct {
	tx      *sql.Tx
	release func()
	done    sync.Once
}

func (t *Tx) finish() {
	t.done.Do(func() {
		if t.release != nil {
			t.release()
		}
	})
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
	now := encodeTime(time.Now())
	var research, desc any
	if e.ResearchValue != nil {
		research = *e.ResearchValue
	}
	if e.Description != nil {
		desc = *e.Description
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO historical_events(event_id, event_name, start_date, end_date, parent_id, research_value, description, created_at, updated_at)
		VALUES(?, ?, ?, ?, NULL, ?, ?, ?, ?);`,
		e.ID, e.Name, encodeTime(e.Start), encodeTime(e.End), research, desc, now, now)
	return classify(err)
}

func (t *Tx) SetParent(ctx context.Context, id, parentID string) (int64, error) {
	res, err := t.tx.ExecContext(ctx, `UPDATE historical_events SET parent_id=?, updated_at=? WHERE event_id=?;`,
		parentID, encodeTime(time.Now()), id)
	if err != nil {
		return 0, classify(err)
	}
	return res.RowsAffected()
}

func (t *Tx) Commit() error {
	defer t.finish()
	return t.tx.Commit()
}

func (t *Tx) Rollback() error {
	defer t.finish()
	return t.tx.Rollback()
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return err
	}
	code := se.Code()
	switch {
	case code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, code == sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return fmt.Errorf("%w: %s", store.ErrConflict, se.Error())
	case code&0xff == sqlite3.SQLITE_CONSTRAINT:
		// the base code is reported when extended codes are off
		if strings.Contains(se.Error(), "UNIQUE") {
			return fmt.Errorf("%w: %s", store.ErrConflict, se.Error())
		}
		return fmt.Errorf("%w: %s", store.ErrConstraint, se.Error())
	}
	return err
}

func encodeTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func decodeTime(s string) (time.Time, error) {
	t, err := time.ParseInLocation(timeLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("decode timestamp %q: %w", s, err)
	}
	return t, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(sc scanner) (event.Event, error) {
	var (
		e                                  event.Event
		start, end, created, updated, meta string
		parent, desc                       sql.NullString
		research                           sql.NullInt64
	)
	if err := sc.Scan(&e.ID, &e.Name, &start, &end, &e.DurationMinutes,
		&parent, &research, &desc, &meta, &created, &updated); err != nil {
		return event.Event{}, err
	}
	var err error
	if e.Start, err = decodeTime(start); err != nil {
		return event.Event{}, err
	}
	if e.End, err = decodeTime(end); err != nil {
		return event.Event{}, err
	}
	// bookkeeping columns are informational; tolerate foreign encodings
	e.CreatedAt, _ = decodeTime(created)
	e.UpdatedAt, _ = decodeTime(updated)
	if parent.Valid {
		e.ParentID = &parent.String
	}
	if research.Valid {
		e.ResearchValue = &research.Int64
	}
	if desc.Valid {
		e.Description = &desc.String
	}
	if meta != "" && meta != "{}" {
		e.Metadata = []byte(meta)
	}
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
