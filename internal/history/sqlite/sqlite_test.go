package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/loykin/chronicle/internal/history"
)

func TestSQLiteSink_Lifecycle(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history.db")
	sink, err := New("sqlite://" + dbPath)
	if err != nil {
		t.Fatalf("Failed to create sink: %v", err)
	}
	defer func() {
		if err := sink.Close(); err != nil {
			t.Errorf("Failed to close sink: %v", err)
		}
	}()

	ctx := context.Background()
	rec := history.Record{
		JobID:     "ingest-job-sqlite",
		Source:    "/tmp/events.txt",
		Status:    "PROCESSING",
		StartedAt: time.Now().Add(-time.Minute).UTC(),
	}
	if err := sink.Send(ctx, history.Event{Type: history.EventJobStarted, OccurredAt: time.Now().UTC(), Record: rec}); err != nil {
		t.Fatalf("Failed to send start event: %v", err)
	}

	end := time.Now().UTC()
	rec.Status = "FAILED"
	rec.ErrorCount = 1
	rec.LastError = "Fatal error: boom"
	rec.EndedAt = &end
	if err := sink.Send(ctx, history.Event{Type: history.EventJobFailed, OccurredAt: end, Record: rec}); err != nil {
		t.Fatalf("Failed to send failure event: %v", err)
	}

	var (
		count   int
		lastErr string
	)
	if err := sink.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM job_history WHERE job_id=?`, rec.JobID).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 rows, got %d", count)
	}
	if err := sink.db.QueryRowContext(ctx, `SELECT last_error FROM job_history WHERE event=?`, string(history.EventJobFailed)).Scan(&lastErr); err != nil {
		t.Fatalf("last error: %v", err)
	}
	if lastErr != "Fatal error: boom" {
		t.Fatalf("unexpected last_error %q", lastErr)
	}
}

func TestSQLiteSink_InMemory(t *testing.T) {
	sink, err := New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create in-memory sink: %v", err)
	}
	defer func() { _ = sink.Close() }()

	e := history.Event{
		Type:       history.EventJobStarted,
		OccurredAt: time.Now().UTC(),
		Record:     history.Record{JobID: "ingest-job-mem", Source: "x", Status: "PROCESSING", StartedAt: time.Now().UTC()},
	}
	if err := sink.Send(context.Background(), e); err != nil {
		t.Fatalf("Failed to send event: %v", err)
	}
}

func TestSQLiteSink_EmptyDSN(t *testing.T) {
	if _, err := New("   "); err == nil {
		t.Fatalf("expected error for empty DSN")
	}
}

func TestSQLiteSink_ContextCancellation(t *testing.T) {
	sink, err := New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create sink: %v", err)
	}
	defer func() { _ = sink.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e := history.Event{Type: history.EventJobStarted, OccurredAt: time.Now().UTC(), Record: history.Record{JobID: "c"}}
	if err := sink.Send(ctx, e); err == nil {
		t.Fatalf("expected error with cancelled context")
	}
}
