package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// IDPrefix prefixes every generated job id.
const IDPrefix = "ingest-job-"

// ErrShuttingDown is returned by Submit after Shutdown was called.
var ErrShuttingDown = errors.New("ingestion runner is shutting down")

// Pipeline processes one ingestion file and records its outcome in the tracker.
type Pipeline interface {
	Run(ctx context.Context, jobID, path string) error
}

// RunnerConfig bounds background ingestion.
type RunnerConfig struct {
	// MaxConcurrent is the number of pipelines allowed to run at once (min 1).
	MaxConcurrent int
	// Timeout bounds one pipeline run; 0 disables it.
	Timeout time.Duration
}

// Runner executes submitted ingestion jobs in the background.
type Runner struct {
	tracker  *Tracker
	pipeline Pipeline
	sem      *semaphore.Weighted
	timeout  time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
	wg     sync.WaitGroup
	closed bool
}

func NewRunner(tracker *Tracker, pipeline Pipeline, cfg RunnerConfig) *Runner {
	n := cfg.MaxConcurrent
	if n < 1 {
		n = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		tracker:  tracker,
		pipeline: pipeline,
		sem:      semaphore.NewWeighted(int64(n)),
		timeout:  cfg.Timeout,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Submit registers a job for path and starts it in the background. The job
// is visible in the tracker as PROCESSING when Submit returns.
func (r *Runner) Submit(path string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return "", ErrShuttingDown
	}
	id := IDPrefix + uuid.NewString()
	if _, err := r.tracker.Create(id, path); err != nil {
		return "", err
	}
	r.wg.Add(1)
	go r.run(id, path)
	return id, nil
}

func (r *Runner) run(id, path string) {
	defer r.wg.Done()

	if err := r.sem.Acquire(r.ctx, 1); err != nil {
		r.failIfRunning(id, fmt.Errorf("job cancelled before start: %w", err))
		return
	}
	defer r.sem.Release(1)

	ctx := r.ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	if err := r.pipeline.Run(ctx, id, path); err != nil {
		slog.Error("Ingestion job failed", "job", id, "path", path, "error", err)
		r.failIfRunning(id, err)
		return
	}
	r.failIfRunning(id, errors.New("pipeline returned without a result"))
}

// failIfRunning marks the job FAILED unless the pipeline already finished it.
func (r *Runner) failIfRunning(id string, err error) {
	r.tracker.Update(id, func(j *Job) {
		if j.Status.Finished() {
			return
		}
		j.Fail(err, time.Now().UTC())
	})
}

// Shutdown stops accepting jobs, cancels the running ones and waits for them
// to unwind or for ctx to expire. Cancelled jobs roll back their transaction
// and end up FAILED.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		slog.Info("Ingestion runner shutdown completed")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
