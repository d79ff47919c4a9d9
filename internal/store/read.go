package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Divergence is one archived divergent frame of a sync-test run.
type Divergence struct {
	Frame     int
	Checksums []string
}

// ListRuns returns up to limit archived runs, newest first. UUIDv7
// ids are time-ordered, so ordering by id is both deterministic and
// chronological.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunMeta, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, script_fingerprint, console_profile, mode, status,
		       frames_run, assertions_passed, assertions_failed, first_divergence
		FROM runs
		ORDER BY id COLLATE BINARY DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []RunMeta{}
	for rows.Next() {
		meta, err := scanRunMeta(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, meta)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// GetRun returns one archived run's metadata and its report JSON.
func (s *Store) GetRun(ctx context.Context, id string) (RunMeta, []byte, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, created_at, script_fingerprint, console_profile, mode, status,
		       frames_run, assertions_passed, assertions_failed, first_divergence, report
		FROM runs
		WHERE id = ?
	`, id)

	var (
		meta       RunMeta
		createdAt  string
		divergence sql.NullInt64
		reportJSON string
	)
	err := row.Scan(
		&meta.ID,
		&createdAt,
		&meta.ScriptFingerprint,
		&meta.ConsoleProfile,
		&meta.Mode,
		&meta.Status,
		&meta.FramesRun,
		&meta.AssertionsPassed,
		&meta.AssertionsFailed,
		&divergence,
		&reportJSON,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return RunMeta{}, nil, fmt.Errorf("run %q: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return RunMeta{}, nil, fmt.Errorf("scan run: %w", err)
	}
	if err := finishRunMeta(&meta, createdAt, divergence); err != nil {
		return RunMeta{}, nil, err
	}
	return meta, []byte(reportJSON), nil
}

// Divergences returns the archived divergent frames of a run in frame
// order.
func (s *Store) Divergences(ctx context.Context, runID string) ([]Divergence, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT frame, checksums
		FROM run_divergences
		WHERE run_id = ?
		ORDER BY frame ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query divergences: %w", err)
	}
	defer rows.Close()

	divs := []Divergence{}
	for rows.Next() {
		var (
			d   Divergence
			raw string
		)
		if err := rows.Scan(&d.Frame, &raw); err != nil {
			return nil, fmt.Errorf("scan divergence: %w", err)
		}
		if err := json.Unmarshal([]byte(raw), &d.Checksums); err != nil {
			return nil, fmt.Errorf("decode checksums at frame %d: %w", d.Frame, err)
		}
		divs = append(divs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate divergences: %w", err)
	}
	return divs, nil
}

func scanRunMeta(rows *sql.Rows) (RunMeta, error) {
	var (
		meta       RunMeta
		createdAt  string
		divergence sql.NullInt64
	)
	err := rows.Scan(
		&meta.ID,
		&createdAt,
		&meta.ScriptFingerprint,
		&meta.ConsoleProfile,
		&meta.Mode,
		&meta.Status,
		&meta.FramesRun,
		&meta.AssertionsPassed,
		&meta.AssertionsFailed,
		&divergence,
	)
	if err != nil {
		return RunMeta{}, fmt.Errorf("scan run: %w", err)
	}
	if err := finishRunMeta(&meta, createdAt, divergence); err != nil {
		return RunMeta{}, err
	}
	return meta, nil
}

func finishRunMeta(meta *RunMeta, createdAt string, divergence sql.NullInt64) error {
	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return fmt.Errorf("parse created_at %q: %w", createdAt, err)
	}
	meta.CreatedAt = t
	if divergence.Valid {
		frame := int(divergence.Int64)
		meta.FirstDivergence = &frame
	}
	return nil
}
