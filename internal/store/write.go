package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/classweave/internal/enhance"
)

// Record stores a finished run and all its outcomes in one transaction.
// It implements enhance.Recorder.
//
// Recording the same run ID twice replaces the earlier record.
func (s *Store) Record(ctx context.Context, rep *enhance.Report) error {
	run, outcomes := fromReport(rep)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if err := writeRun(ctx, tx, run); err != nil {
		return err
	}
	for _, o := range outcomes {
		if err := writeOutcome(ctx, tx, o); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// WriteRun inserts or replaces a run row without outcomes.
func (s *Store) WriteRun(ctx context.Context, run Run) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if err := writeRun(ctx, tx, run); err != nil {
		return err
	}
	return tx.Commit()
}

func writeRun(ctx context.Context, tx *sql.Tx, run Run) error {
	roots, err := marshalStrings(run.Roots)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	packages, err := marshalStrings(run.Packages)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}

	// Replacing a run drops its old outcomes through the cascade.
	if _, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, run.ID); err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, started_at, finished_at, status, roots, packages, inputs, working, considered,
		 enhanced, unchanged, failed, skipped, fallback_hits, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		toUnixNano(run.Started),
		toUnixNano(run.Finished),
		run.Status,
		roots,
		packages,
		run.Inputs,
		run.Working,
		run.Considered,
		run.Enhanced,
		run.Unchanged,
		run.Failed,
		run.Skipped,
		run.FallbackHits,
		run.Error,
	)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	return nil
}

func writeOutcome(ctx context.Context, tx *sql.Tx, o Outcome) error {
	passes, err := marshalStrings(o.Passes)
	if err != nil {
		return fmt.Errorf("write outcome: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO outcomes
		(run_id, seq, class, file, status, passes, digest_before, digest_after, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		o.RunID,
		o.Seq,
		o.Class,
		o.File,
		o.Status,
		passes,
		o.DigestBefore,
		o.DigestAfter,
		o.Error,
	)
	if err != nil {
		return fmt.Errorf("write outcome %s: %w", o.Class, err)
	}
	return nil
}

// fromReport converts a run report into rows.
func fromReport(rep *enhance.Report) (Run, []Outcome) {
	run := Run{
		ID:           rep.RunID,
		Started:      rep.Started,
		Finished:     rep.Finished,
		Status:       string(rep.Status),
		Roots:        rep.Roots,
		Packages:     rep.Packages,
		Inputs:       rep.Inputs,
		Working:      rep.Working,
		Considered:   rep.Considered,
		Enhanced:     rep.Enhanced,
		Unchanged:    rep.Unchanged,
		Failed:       rep.Failed,
		Skipped:      rep.Skipped,
		FallbackHits: rep.FallbackHits,
	}
	if rep.Err != nil {
		run.Error = rep.Err.Error()
	}

	outcomes := make([]Outcome, 0, len(rep.Outcomes))
	for i, o := range rep.Outcomes {
		out := Outcome{
			RunID:        rep.RunID,
			Seq:          i + 1,
			Class:        o.Name.String(),
			File:         o.File,
			Status:       string(o.Status),
			Passes:       o.Passes,
			DigestBefore: o.Before,
			DigestAfter:  o.After,
		}
		if o.Err != nil {
			out.Error = o.Err.Error()
		}
		outcomes = append(outcomes, out)
	}
	return run, outcomes
}
