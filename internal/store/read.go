package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrRunNotFound is returned by ReadRun for an unknown run ID.
var ErrRunNotFound = errors.New("run not found")

const runColumns = `id, started_at, finished_at, status, roots, packages, inputs, working, considered,
	enhanced, unchanged, failed, skipped, fallback_hits, error`

// ListRuns returns up to limit runs, newest first. A limit of zero or less
// returns every run.
//
// Returns an empty slice (not nil) when there are no runs.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, id COLLATE BINARY DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadRun returns a run and its outcomes in recorded order.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, []Outcome, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return Run{}, nil, err
	}

	outcomes, err := s.queryOutcomes(ctx, `
		SELECT run_id, seq, class, file, status, passes, digest_before, digest_after, error
		FROM outcomes
		WHERE run_id = ?
		ORDER BY seq ASC
	`, id)
	if err != nil {
		return Run{}, nil, err
	}
	return run, outcomes, nil
}

// ClassHistory returns every recorded outcome for class, oldest run first.
// class is the dotted class name.
func (s *Store) ClassHistory(ctx context.Context, class string) ([]Outcome, error) {
	return s.queryOutcomes(ctx, `
		SELECT o.run_id, o.seq, o.class, o.file, o.status, o.passes, o.digest_before, o.digest_after, o.error
		FROM outcomes o
		JOIN runs r ON o.run_id = r.id
		WHERE o.class = ?
		ORDER BY r.started_at ASC, r.id COLLATE BINARY ASC, o.seq ASC
	`, class)
}

func (s *Store) queryOutcomes(ctx context.Context, query string, args ...any) ([]Outcome, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	outcomes := []Outcome{}
	for rows.Next() {
		var o Outcome
		var passes string
		if err := rows.Scan(&o.RunID, &o.Seq, &o.Class, &o.File, &o.Status, &passes,
			&o.DigestBefore, &o.DigestAfter, &o.Error); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		if o.Passes, err = unmarshalStrings(passes); err != nil {
			return nil, err
		}
		outcomes = append(outcomes, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcomes: %w", err)
	}
	return outcomes, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var r Run
	var started, finished int64
	var roots, packages string
	err := row.Scan(&r.ID, &started, &finished, &r.Status, &roots, &packages,
		&r.Inputs, &r.Working, &r.Considered, &r.Enhanced, &r.Unchanged, &r.Failed,
		&r.Skipped, &r.FallbackHits, &r.Error)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, err
	}
	if err != nil {
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	r.Started = fromUnixNano(started)
	r.Finished = fromUnixNano(finished)
	if r.Roots, err = unmarshalStrings(roots); err != nil {
		return Run{}, err
	}
	if r.Packages, err = unmarshalStrings(packages); err != nil {
		return Run{}, err
	}
	return r, nil
}
