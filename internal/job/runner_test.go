package job

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pipelineFunc adapts a function to Pipeline.
type pipelineFunc func(ctx context.Context, jobID, path string) error

func (f pipelineFunc) Run(ctx context.Context, jobID, path string) error { return f(ctx, jobID, path) }

func waitFinished(t *testing.T, tr *Tracker, id string) Job {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if j, ok := tr.Get(id); ok && j.Status.Finished() {
			return j
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("job %s did not finish", id)
	return Job{}
}

func TestRunnerSubmitCompletes(t *testing.T) {
	tr := NewTracker(0)
	release := make(chan struct{})
	p := pipelineFunc(func(ctx context.Context, id, path string) error {
		<-release
		tr.Update(id, func(j *Job) {
			j.TotalLines = 2
			j.Complete(Summary{TotalRecords: 2}, time.Now().UTC())
		})
		return nil
	})
	r := NewRunner(tr, p, RunnerConfig{MaxConcurrent: 2})

	id, err := r.Submit("/tmp/events.txt")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, IDPrefix))

	j, ok := tr.Get(id)
	require.True(t, ok)
	assert.Equal(t, StatusProcessing, j.Status, "job must be visible before the pipeline finishes")
	assert.Equal(t, "/tmp/events.txt", j.Source)

	close(release)
	j = waitFinished(t, tr, id)
	assert.Equal(t, StatusCompleted, j.Status)
	require.NotNil(t, j.Summary)
	assert.Equal(t, 2, j.Summary.TotalRecords)
	require.NoError(t, r.Shutdown(context.Background()))
}

func TestRunnerPipelineErrorMarksFailed(t *testing.T) {
	tr := NewTracker(0)
	p := pipelineFunc(func(ctx context.Context, id, path string) error {
		return errors.New("File not found: " + path)
	})
	r := NewRunner(tr, p, RunnerConfig{})
	id, err := r.Submit("/nope")
	require.NoError(t, err)

	j := waitFinished(t, tr, id)
	assert.Equal(t, StatusFailed, j.Status)
	require.NotEmpty(t, j.Errors)
	assert.Equal(t, "Fatal error: File not found: /nope", j.Errors[len(j.Errors)-1])
	assert.NotNil(t, j.EndTime)
}

func TestRunnerPipelineWithoutResultMarksFailed(t *testing.T) {
	tr := NewTracker(0)
	r := NewRunner(tr, pipelineFunc(func(context.Context, string, string) error { return nil }), RunnerConfig{})
	id, err := r.Submit("f")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, waitFinished(t, tr, id).Status)
}

func TestRunnerLimitsConcurrency(t *testing.T) {
	tr := NewTracker(0)
	var running, peak atomic.Int32
	p := pipelineFunc(func(ctx context.Context, id, path string) error {
		n := running.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		running.Add(-1)
		tr.Update(id, func(j *Job) { j.Complete(Summary{}, time.Now().UTC()) })
		return nil
	})
	r := NewRunner(tr, p, RunnerConfig{MaxConcurrent: 2})

	ids := make([]string, 0, 6)
	for i := 0; i < 6; i++ {
		id, err := r.Submit("f")
		require.NoError(t, err)
		ids = append(ids, id)
	}
	for _, id := range ids {
		waitFinished(t, tr, id)
	}
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestRunnerTimeout(t *testing.T) {
	tr := NewTracker(0)
	p := pipelineFunc(func(ctx context.Context, id, path string) error {
		<-ctx.Done()
		return ctx.Err()
	})
	r := NewRunner(tr, p, RunnerConfig{Timeout: 20 * time.Millisecond})
	id, err := r.Submit("f")
	require.NoError(t, err)

	j := waitFinished(t, tr, id)
	assert.Equal(t, StatusFailed, j.Status)
	assert.Contains(t, j.Errors[len(j.Errors)-1], context.DeadlineExceeded.Error())
}

func TestRunnerShutdownCancelsJobs(t *testing.T) {
	tr := NewTracker(0)
	started := make(chan struct{})
	p := pipelineFunc(func(ctx context.Context, id, path string) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})
	r := NewRunner(tr, p, RunnerConfig{})
	id, err := r.Submit("f")
	require.NoError(t, err)
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, r.Shutdown(ctx))

	j, ok := tr.Get(id)
	require.True(t, ok)
	assert.Equal(t, StatusFailed, j.Status)

	_, err = r.Submit("g")
	assert.ErrorIs(t, err, ErrShuttingDown)
}
