// Package report folds an execution trace and optional sync-test
// results into the stable report document that downstream diagnostic
// tooling parses. Building a report touches no simulation state and
// is deterministic: the same trace always yields byte-identical JSON.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/framecheck/framecheck/internal/engine"
	"github.com/framecheck/framecheck/internal/lockstep"
	"github.com/framecheck/framecheck/internal/value"
)

// Overall run status.
const (
	StatusPass    = "pass"
	StatusFail    = "fail"
	StatusAborted = "aborted"
)

// Report is the terminal artifact of a run. Field names and nesting
// are a compatibility surface; downstream tooling localizes bugs by
// inspecting per-frame deltas, failed assertions, and divergence
// frames, so nothing here may be renamed casually.
type Report struct {
	Summary    Summary     `json:"summary"`
	Assertions []Assertion `json:"assertions"`
	Snapshots  []Snapshot  `json:"snapshots"`
	Sync       []SyncFrame `json:"sync,omitempty"`
	EvalErrors []EvalError `json:"eval_errors,omitempty"`
	Abort      *Abort      `json:"abort,omitempty"`
}

type Summary struct {
	Status             string `json:"status"`
	FramesRun          int    `json:"frames_run"`
	AssertionsPassed   int    `json:"assertions_passed"`
	AssertionsFailed   int    `json:"assertions_failed"`
	FramesWithSnapshot int    `json:"frames_with_snapshot"`
	FirstDivergence    *int   `json:"first_divergence,omitempty"`
}

type Assertion struct {
	FrameNumber int         `json:"frame_number"`
	Expression  string      `json:"expression"`
	Passed      bool        `json:"passed"`
	Actual      value.Value `json:"actual"`
	Expected    Expected    `json:"expected"`
}

// Expected is the operator/literal pair from the assertion text.
type Expected struct {
	Op    string      `json:"op"`
	Value value.Value `json:"value"`
}

type Snapshot struct {
	FrameNumber int                    `json:"frame_number"`
	Pre         map[string]value.Value `json:"pre"`
	Post        map[string]value.Value `json:"post"`
	Delta       map[string]value.Value `json:"delta"`
}

type SyncFrame struct {
	FrameNumber int      `json:"frame_number"`
	Checksums   []string `json:"checksums"`
	Diverged    bool     `json:"diverged"`
}

type EvalError struct {
	FrameNumber int    `json:"frame_number"`
	Expression  string `json:"expression"`
	Message     string `json:"message"`
}

type Abort struct {
	FrameNumber int    `json:"frame_number"`
	Reason      string `json:"reason"`
}

// Build folds a trace and optional sync results into a Report. Pure:
// calling it twice on the same inputs returns equal reports.
func Build(trace *engine.Trace, sync []lockstep.Result) *Report {
	r := &Report{
		Summary: Summary{
			FramesRun:          trace.FramesRun,
			AssertionsPassed:   trace.AssertionsPassed(),
			AssertionsFailed:   trace.AssertionsFailed(),
			FramesWithSnapshot: len(trace.Snapshots),
		},
		Assertions: make([]Assertion, 0, len(trace.Assertions)),
		Snapshots:  make([]Snapshot, 0, len(trace.Snapshots)),
	}

	for _, a := range trace.Assertions {
		r.Assertions = append(r.Assertions, Assertion{
			FrameNumber: a.Frame,
			Expression:  a.Expr,
			Passed:      a.Passed,
			Actual:      a.Actual,
			Expected:    Expected{Op: a.Op, Value: a.Expected},
		})
	}
	for _, s := range trace.Snapshots {
		r.Snapshots = append(r.Snapshots, Snapshot{
			FrameNumber: s.Frame,
			Pre:         s.Pre,
			Post:        s.Post,
			Delta:       s.Delta,
		})
	}
	for _, e := range trace.EvalErrors {
		r.EvalErrors = append(r.EvalErrors, EvalError{
			FrameNumber: e.Frame,
			Expression:  e.Expr,
			Message:     e.Msg,
		})
	}
	for _, sr := range sync {
		r.Sync = append(r.Sync, SyncFrame{
			FrameNumber: sr.Frame,
			Checksums:   sr.Checksums,
			Diverged:    sr.Diverged,
		})
		if sr.Diverged && r.Summary.FirstDivergence == nil {
			frame := sr.Frame
			r.Summary.FirstDivergence = &frame
		}
	}
	if trace.Abort != nil {
		r.Abort = &Abort{FrameNumber: trace.Abort.Frame, Reason: trace.Abort.Reason}
	}

	r.Summary.Status = status(trace, r)
	return r
}

func status(trace *engine.Trace, r *Report) string {
	if trace.Status == engine.StatusAborted {
		return StatusAborted
	}
	if r.Summary.AssertionsFailed > 0 || len(r.EvalErrors) > 0 || r.Summary.FirstDivergence != nil {
		return StatusFail
	}
	return StatusPass
}

// Passed reports whether the run succeeded outright.
func (r *Report) Passed() bool {
	return r.Summary.Status == StatusPass
}

// EncodeJSON renders the report as indented JSON. encoding/json sorts
// map keys and HTML escaping is off, so output is byte-stable and
// expression text like "$x > 3" survives verbatim.
func (r *Report) EncodeJSON() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return nil, fmt.Errorf("encoding report: %w", err)
	}
	return buf.Bytes(), nil
}
