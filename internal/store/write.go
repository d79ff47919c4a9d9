package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/framecheck/framecheck/internal/report"
	"github.com/framecheck/framecheck/internal/value"
)

// RunMeta identifies one archived run. CreatedAt is stored as RFC
// 3339 UTC; the id is a UUIDv7, so id order is also time order.
type RunMeta struct {
	ID                string
	CreatedAt         time.Time
	ScriptFingerprint string
	ConsoleProfile    string
	Mode              string
	Status            string
	FramesRun         int
	AssertionsPassed  int
	AssertionsFailed  int
	FirstDivergence   *int
}

// SaveRun archives a finished run: the runs row, one row per
// assertion, and one row per divergent sync frame, atomically.
// Returns the generated run id.
func (s *Store) SaveRun(ctx context.Context, fingerprint, consoleProfile, mode string, rep *report.Report) (string, error) {
	reportJSON, err := rep.EncodeJSON()
	if err != nil {
		return "", fmt.Errorf("save run: %w", err)
	}

	id := uuid.Must(uuid.NewV7()).String()
	createdAt := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("save run: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, created_at, script_fingerprint, console_profile, mode, status,
		 frames_run, assertions_passed, assertions_failed, first_divergence, report)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		id,
		createdAt,
		fingerprint,
		consoleProfile,
		mode,
		rep.Summary.Status,
		rep.Summary.FramesRun,
		rep.Summary.AssertionsPassed,
		rep.Summary.AssertionsFailed,
		rep.Summary.FirstDivergence,
		string(reportJSON),
	)
	if err != nil {
		return "", fmt.Errorf("save run: %w", err)
	}

	for _, a := range rep.Assertions {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO run_assertions (run_id, frame, expression, passed, actual)
			VALUES (?, ?, ?, ?, ?)
		`, id, a.FrameNumber, a.Expression, a.Passed, value.Format(a.Actual))
		if err != nil {
			return "", fmt.Errorf("save assertion at frame %d: %w", a.FrameNumber, err)
		}
	}

	for _, sf := range rep.Sync {
		if !sf.Diverged {
			continue
		}
		checksums, err := json.Marshal(sf.Checksums)
		if err != nil {
			return "", fmt.Errorf("save divergence at frame %d: %w", sf.FrameNumber, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO run_divergences (run_id, frame, checksums)
			VALUES (?, ?, ?)
		`, id, sf.FrameNumber, string(checksums))
		if err != nil {
			return "", fmt.Errorf("save divergence at frame %d: %w", sf.FrameNumber, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("save run: %w", err)
	}
	return id, nil
}
