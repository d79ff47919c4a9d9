package engine

import (
	"github.com/framecheck/framecheck/internal/value"
)

// Status is the scheduler lifecycle state.
//
// Assertion failures are data, not control flow: they never produce a
// terminal failure state. Only a host panic or a host Step error
// aborts, and even then the partial trace survives for diagnosis.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusRunning    Status = "running"
	StatusCompleted  Status = "completed"
	StatusAborted    Status = "aborted"
)

// Snapshot records debug-variable values around one frame's tick.
// Pre is captured before the frame's input is applied, Post after the
// tick completes. Values are copies; later simulation mutation never
// changes a recorded snapshot.
type Snapshot struct {
	// Frame is the frame number the snapshot covers.
	Frame int

	// Pre maps variable name to its value before the tick.
	Pre map[string]value.Value

	// Post maps variable name to its value after the tick.
	Post map[string]value.Value

	// Delta is Post minus Pre per variable: an Int difference for
	// numeric variables, a Bool changed flag for everything else.
	Delta map[string]value.Value
}

// AssertionResult records one evaluated assertion.
type AssertionResult struct {
	Frame    int
	Expr     string
	Passed   bool
	Actual   value.Value
	Op       string
	Expected value.Value
}

// EvalError records an assertion that could not be evaluated at all.
// Distinct from a failed assertion: it indicates a script/registry
// mismatch, which is a harness defect rather than a test result.
type EvalError struct {
	Frame int
	Expr  string
	Msg   string
}

// AbortInfo describes why a run aborted mid-timeline.
type AbortInfo struct {
	Frame  int
	Reason string
}

// Trace accumulates everything a run produced, in frame order.
// Entries are appended during execution and never mutated afterwards.
type Trace struct {
	Status     Status
	FramesRun  int
	Snapshots  []Snapshot
	Assertions []AssertionResult
	EvalErrors []EvalError
	Abort      *AbortInfo
}

// AssertionsPassed counts passing assertion results.
func (t *Trace) AssertionsPassed() int {
	n := 0
	for _, a := range t.Assertions {
		if a.Passed {
			n++
		}
	}
	return n
}

// AssertionsFailed counts failing assertion results.
func (t *Trace) AssertionsFailed() int {
	return len(t.Assertions) - t.AssertionsPassed()
}
