package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/loykin/chronicle/internal/event"
	"github.com/loykin/chronicle/internal/store"
)

// NothingInserted is recorded when every insert of a batch failed and the
// transaction was rolled back.
const NothingInserted = "No records were inserted successfully - all insertions failed"

const savepoint = "ingest_record"

// LoadResult tallies one Load call.
type LoadResult struct {
	Inserted      int
	InsertFailed  int
	ParentUpdated int
	ParentFailed  int
	Committed     bool
	// Errors holds per-record failures, one entry per failed record.
	Errors []string
	// Notes holds batch level messages such as a rollback reason.
	Notes []string
}

// Loader writes a sequenced batch inside one transaction: every record is
// first inserted without a parent, then parents are set for records whose
// parent was inserted in the same batch.
type Loader struct {
	// OnInsert, when set, is called after each successful insert.
	OnInsert func(event.Record)
	// OnError, when set, receives the messages of each failed record as it is
	// recorded. One call corresponds to one failed record.
	OnError func(msgs ...string)
}

// Load runs both passes on tx and commits it when at least one record was
// inserted, rolling back otherwise. Per-record store failures are recorded
// in the result and never abort the batch. A transaction level failure rolls
// tx back and is returned.
func (l *Loader) Load(ctx context.Context, tx store.Tx, records []event.Record) (LoadResult, error) {
	var res LoadResult
	record := func(msgs ...string) {
		res.Errors = append(res.Errors, msgs...)
		if l.OnError != nil {
			l.OnError(msgs...)
		}
	}
	fail := func(err error) (LoadResult, error) {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.Warn("Rollback after transaction error failed", "error", rbErr)
		}
		res.Committed = false
		res.Notes = append(res.Notes, "Transaction error: "+err.Error())
		return res, err
	}

	inserted := make(map[string]bool, len(records))
	for _, r := range records {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		err, txErr := l.guarded(ctx, tx, func() error { return tx.InsertEvent(ctx, r.Event()) })
		if txErr != nil {
			return fail(txErr)
		}
		if err != nil {
			res.InsertFailed++
			record(fmt.Sprintf("Line %d: DB Error (Insert): %s", r.Line, err))
			continue
		}
		inserted[r.ID] = true
		res.Inserted++
		if l.OnInsert != nil {
			l.OnInsert(r)
		}
	}

	for _, r := range records {
		if !r.HasParent() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		self, parent := inserted[r.ID], inserted[r.ParentID]
		if !self || !parent {
			res.ParentFailed++
			var msgs []string
			if !self {
				msgs = append(msgs, fmt.Sprintf("Line %d: Cannot update parent_id - event %s was not inserted", r.Line, r.ID))
			}
			if !parent {
				msgs = append(msgs, fmt.Sprintf("Line %d: Cannot update parent_id - parent event %s was not inserted", r.Line, r.ParentID))
			}
			record(msgs...)
			continue
		}
		var affected int64
		err, txErr := l.guarded(ctx, tx, func() error {
			n, err := tx.SetParent(ctx, r.ID, r.ParentID)
			affected = n
			return err
		})
		if txErr != nil {
			return fail(txErr)
		}
		switch {
		case err != nil:
			res.ParentFailed++
			record(fmt.Sprintf("Line %d: DB Error (Update): %s", r.Line, err))
		case affected == 0:
			res.ParentFailed++
			record(fmt.Sprintf("Line %d: Could not update parent_id for event_id %s", r.Line, r.ID))
		default:
			res.ParentUpdated++
		}
	}

	if res.Inserted == 0 {
		if err := tx.Rollback(); err != nil {
			return res, fmt.Errorf("rollback: %w", err)
		}
		res.Notes = append(res.Notes, NothingInserted)
		return res, nil
	}
	if err := tx.Commit(); err != nil {
		return fail(fmt.Errorf("commit: %w", err))
	}
	res.Committed = true
	return res, nil
}

// guarded runs op inside a savepoint. op's own error is returned first and
// the savepoint is rolled back for it; the second error reports a failure of
// the savepoint bookkeeping itself, which leaves the transaction unusable.
func (l *Loader) guarded(ctx context.Context, tx store.Tx, op func() error) (opErr, txErr error) {
	if err := tx.Savepoint(ctx, savepoint); err != nil {
		return nil, fmt.Errorf("savepoint: %w", err)
	}
	if err := op(); err != nil {
		if rbErr := tx.RollbackToSavepoint(ctx, savepoint); rbErr != nil {
			return err, fmt.Errorf("rollback to savepoint: %w", rbErr)
		}
		if relErr := tx.ReleaseSavepoint(ctx, savepoint); relErr != nil {
			return err, fmt.Errorf("release savepoint: %w", relErr)
		}
		return err, nil
	}
	if err := tx.ReleaseSavepoint(ctx, savepoint); err != nil {
		return nil, fmt.Errorf("release savepoint: %w", err)
	}
	return nil, nil
}
