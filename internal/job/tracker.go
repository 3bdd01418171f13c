package job

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/loykin/chronicle/internal/history"
	"github.com/loykin/chronicle/internal/metrics"
)

// Tracker is the registry of ingestion jobs.
// Callers must not write the same job id from two goroutines at once; reads
// are always safe and return copies.
type Tracker struct {
	mu        sync.RWMutex
	jobs      map[string]*Job
	ttl       time.Duration
	histSinks []history.Sink
}

// NewTracker creates a tracker. Finished jobs older than ttl are dropped by
// CleanupFinished; ttl <= 0 keeps them forever.
func NewTracker(ttl time.Duration) *Tracker {
	return &Tracker{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

// SetHistorySinks configures external history sinks that receive job
// lifecycle events. Passing no sinks clears the list.
func (t *Tracker) SetHistorySinks(sinks ...history.Sink) {
	t.mu.Lock()
	t.histSinks = append([]history.Sink(nil), sinks...)
	t.mu.Unlock()
}

// Create registers a new PROCESSING job.
func (t *Tracker) Create(id, source string) (Job, error) {
	t.mu.Lock()
	if _, exists := t.jobs[id]; exists {
		t.mu.Unlock()
		return Job{}, fmt.Errorf("job %q already exists", id)
	}
	j := &Job{
		ID:        id,
		Source:    source,
		Status:    StatusProcessing,
		Errors:    []string{},
		StartTime: time.Now().UTC(),
	}
	t.jobs[id] = j
	snap := j.clone()
	sinks := append([]history.Sink(nil), t.histSinks...)
	t.mu.Unlock()

	metrics.IncActiveJobs()
	slog.Info("Ingestion job created", "job", id, "source", source)
	t.emit(sinks, history.EventJobStarted, &snap)
	return snap, nil
}

// Update applies fn to the job under the registry lock. It reports false
// when the job does not exist. Transition into a terminal status emits a
// history event.
func (t *Tracker) Update(id string, fn func(*Job)) bool {
	t.mu.Lock()
	j, ok := t.jobs[id]
	if !ok {
		t.mu.Unlock()
		return false
	}
	wasFinished := j.Status.Finished()
	fn(j)
	finished := !wasFinished && j.Status.Finished()
	snap := j.clone()
	sinks := append([]history.Sink(nil), t.histSinks...)
	t.mu.Unlock()

	if finished {
		t.finish(sinks, &snap)
	}
	return true
}

func (t *Tracker) finish(sinks []history.Sink, j *Job) {
	metrics.DecActiveJobs()
	metrics.IncIngestJob(string(j.Status))
	if j.EndTime != nil {
		metrics.ObserveIngestDuration(j.EndTime.Sub(j.StartTime))
	}
	typ := history.EventJobCompleted
	if j.Status == StatusFailed {
		typ = history.EventJobFailed
		slog.Warn("Ingestion job failed", "job", j.ID, "errors", len(j.Errors))
	} else {
		slog.Info("Ingestion job completed", "job", j.ID,
			"total_lines", j.TotalLines, "processed_lines", j.ProcessedLines, "error_lines", j.ErrorLines)
	}
	t.emit(sinks, typ, j)
}

func (t *Tracker) emit(sinks []history.Sink, typ history.EventType, j *Job) {
	if len(sinks) == 0 {
		return
	}
	evt := history.Event{Type: typ, OccurredAt: time.Now().UTC(), Record: j.record()}
	for _, s := range sinks {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.Send(ctx, evt); err != nil {
			slog.Warn("Failed to send job history event", "job", j.ID, "type", typ, "error", err)
		}
		cancel()
	}
}

// Get returns a snapshot of the job.
func (t *Tracker) Get(id string) (Job, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	j, ok := t.jobs[id]
	if !ok {
		return Job{}, false
	}
	return j.clone(), true
}

// List returns snapshots of all jobs, oldest first.
func (t *Tracker) List() []Job {
	t.mu.RLock()
	out := make([]Job, 0, len(t.jobs))
	for _, j := range t.jobs {
		out = append(out, j.clone())
	}
	t.mu.RUnlock()
	sort.Slice(out, func(a, b int) bool {
		if out[a].StartTime.Equal(out[b].StartTime) {
			return out[a].ID < out[b].ID
		}
		return out[a].StartTime.Before(out[b].StartTime)
	})
	return out
}

// CleanupFinished removes finished jobs whose end time is older than the TTL
// and returns how many were removed.
func (t *Tracker) CleanupFinished() int {
	if t.ttl <= 0 {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	var toDelete []string
	for id, j := range t.jobs {
		if !j.Status.Finished() || j.EndTime == nil {
			continue
		}
		if time.Since(*j.EndTime) > t.ttl {
			toDelete = append(toDelete, id)
		}
	}
	for _, id := range toDelete {
		delete(t.jobs, id)
		slog.Info("Cleaned up expired job", "job", id)
	}
	return len(toDelete)
}

// StartCleanupWorker runs CleanupFinished every interval until ctx is done.
func (t *Tracker) StartCleanupWorker(ctx context.Context, interval time.Duration) {
	if interval <= 0 || t.ttl <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				t.CleanupFinished()
			}
		}
	}()
}
