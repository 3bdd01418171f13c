package ingest

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/loykin/chronicle/internal/event"
	"github.com/loykin/chronicle/internal/job"
	"github.com/loykin/chronicle/internal/metrics"
	"github.com/loykin/chronicle/internal/store"
)

// DefaultMaxLineBytes bounds a single input line.
const DefaultMaxLineBytes = 1 << 20

// Pipeline ingests one file per job: parse and validate every line, filter
// the batch, order it and load it in a single transaction. Progress and the
// final outcome are written to the tracker.
type Pipeline struct {
	store        store.Store
	tracker      *job.Tracker
	maxLineBytes int
}

// NewPipeline creates a pipeline. maxLineBytes <= 0 selects DefaultMaxLineBytes.
func NewPipeline(st store.Store, tracker *job.Tracker, maxLineBytes int) *Pipeline {
	if maxLineBytes <= 0 {
		maxLineBytes = DefaultMaxLineBytes
	}
	return &Pipeline{store: st, tracker: tracker, maxLineBytes: maxLineBytes}
}

// Run executes the job. The job must already exist in the tracker. On
// return the job is COMPLETED, or FAILED when the returned error is non-nil.
func (p *Pipeline) Run(ctx context.Context, jobID, path string) error {
	log := slog.With("job", jobID)
	started := time.Now()

	summary, err := p.run(ctx, log, jobID, path)
	now := time.Now().UTC()
	if err != nil {
		p.tracker.Update(jobID, func(j *job.Job) { j.Fail(err, now) })
		log.Error("Ingestion failed", "path", path, "error", err)
		return err
	}
	p.tracker.Update(jobID, func(j *job.Job) { j.Complete(summary, now) })
	log.Info("Ingestion finished", "path", path, "duration", time.Since(started),
		"inserted", summary.SuccessfulInsertions, "failed", summary.FailedInsertions)
	return nil
}

func (p *Pipeline) run(ctx context.Context, log *slog.Logger, jobID, path string) (job.Summary, error) {
	records, err := p.parse(ctx, jobID, path)
	if err != nil {
		return job.Summary{}, err
	}
	log.Debug("Parsed ingestion file", "valid_lines", len(records))

	filtered := Filter(records)
	if len(filtered.Errors) > 0 {
		p.tracker.Update(jobID, func(j *job.Job) {
			for _, msg := range filtered.Errors {
				j.AddError(msg)
			}
		})
	}
	metrics.AddIngestLines("missing_parent", len(filtered.MissingParent))
	metrics.AddIngestLines("duplicate", len(filtered.Duplicates))

	seq := Sequence(filtered.Kept)
	if len(seq.Cycles) > 0 {
		log.Warn("Circular parent references detected", "events", seq.Cycles)
	}

	tx, err := p.store.BeginTx(ctx)
	if err != nil {
		return job.Summary{}, err
	}
	loader := &Loader{
		OnInsert: func(event.Record) {
			p.tracker.Update(jobID, func(j *job.Job) { j.ProcessedLines++ })
		},
		OnError: func(msgs ...string) {
			p.tracker.Update(jobID, func(j *job.Job) {
				j.ErrorLines++
				j.Errors = append(j.Errors, msgs...)
			})
		},
	}
	res, loadErr := loader.Load(ctx, tx, seq.Records)
	if len(res.Notes) > 0 {
		p.tracker.Update(jobID, func(j *job.Job) { j.Errors = append(j.Errors, res.Notes...) })
	}
	metrics.AddIngestLines("inserted", res.Inserted)
	metrics.AddIngestLines("insert_failed", res.InsertFailed)
	metrics.AddIngestLines("parent_updated", res.ParentUpdated)
	metrics.AddIngestLines("parent_update_failed", res.ParentFailed)
	if loadErr != nil {
		return job.Summary{}, loadErr
	}
	if !res.Committed {
		log.Warn("Ingestion batch rolled back", "reason", NothingInserted)
	}

	return job.Summary{
		TotalRecords:            len(records),
		ValidRecords:            filtered.ValidCount(),
		DuplicateRecords:        len(filtered.Duplicates),
		SuccessfulInsertions:    res.Inserted,
		FailedInsertions:        res.InsertFailed,
		SuccessfulParentUpdates: res.ParentUpdated,
		FailedParentUpdates:     res.ParentFailed,
		InvalidParentRecords:    len(filtered.MissingParent),
	}, nil
}

// parse streams the file and returns the records that passed validation.
// Blank lines are counted but otherwise ignored.
func (p *Pipeline) parse(ctx context.Context, jobID, path string) ([]event.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("File not found: %s", path)
		}
		return nil, err
	}
	defer func() { _ = f.Close() }()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), p.maxLineBytes)

	var (
		records []event.Record
		line    int
		invalid int
	)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line++
		raw := sc.Text()
		if strings.TrimSpace(raw) == "" {
			p.tracker.Update(jobID, func(j *job.Job) { j.TotalLines++ })
			continue
		}
		rec, violations := Validate(line, raw)
		if len(violations) > 0 {
			invalid++
			msg := fmt.Sprintf("Line %d: %s: '%s'", line, strings.Join(violations, ViolationSeparator), raw)
			p.tracker.Update(jobID, func(j *job.Job) {
				j.TotalLines++
				j.AddError(msg)
			})
			continue
		}
		p.tracker.Update(jobID, func(j *job.Job) { j.TotalLines++ })
		records = append(records, rec)
	}
	metrics.AddIngestLines("invalid", invalid)
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s at line %d: %w", path, line+1, err)
	}
	return records, nil
}
