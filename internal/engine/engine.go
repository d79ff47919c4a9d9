// Package engine implements the frame scheduler: the single-threaded
// loop that drives a host simulation through a validated replay script
// one fixed tick at a time.
//
// Determinism rules the design:
//
//   - Frames execute strictly in order. Tick n+1 never begins before
//     tick n completes; input carry-forward and snapshot deltas depend
//     on that ordering.
//   - Every integer frame from 0 through the script's highest frame
//     number advances the simulation exactly one tick, scripted or
//     not. Gaps in the script reuse each player's last explicit input.
//   - Nothing here reads wall-clock time, iterates a map on an
//     observable path, or spawns goroutines.
//
// The scheduler exposes both a one-shot Run and a per-frame Runner.
// The sync-test comparator uses Runner to lockstep several instances
// without this package knowing anything about multi-instance runs.
package engine

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/framecheck/framecheck/internal/expr"
	"github.com/framecheck/framecheck/internal/registry"
	"github.com/framecheck/framecheck/internal/script"
	"github.com/framecheck/framecheck/internal/value"
)

// Host is the entire surface the engine requires from a simulation.
// Debug variable and action registration happens against the Instance
// registries when the simulation is constructed, so it is not part of
// the per-tick interface.
type Host interface {
	// Step advances the simulation exactly one deterministic tick.
	// inputs[i] is the effective input for player i+1.
	Step(inputs []script.InputState) error

	// Checksum returns a canonical hash of the complete simulation
	// state, not merely the registered debug variables. Byte-identical
	// state must yield identical checksums across instances; hosts
	// typically build this on value.Checksum.
	Checksum() (string, error)
}

// Instance bundles one simulation with its exclusively-owned debug
// registries. Instances never share mutable state; sync-testing builds
// one Instance per lockstepped simulation.
type Instance struct {
	Host    Host
	Vars    *registry.Variables
	Actions *registry.Actions
}

// Option configures a Runner.
type Option func(*config)

type config struct {
	haltOnFailure bool
	tracked       []string
	logger        *slog.Logger
}

// WithHaltOnFailure stops the timeline after the first failed
// assertion. The default runs every frame so the report carries
// maximum diagnostic context.
func WithHaltOnFailure() Option {
	return func(c *config) { c.haltOnFailure = true }
}

// WithTrackedVariables restricts snapshots to the named variables.
// The default tracks every registered variable.
func WithTrackedVariables(names ...string) Option {
	return func(c *config) { c.tracked = names }
}

// WithLogger sets the structured logger. The default discards.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// Runner executes one script against one instance, one frame per Step
// call. Not safe for concurrent use; a Runner belongs to a single
// goroutine for its whole life.
type Runner struct {
	script *script.Script
	inst   Instance
	cfg    config

	trace     *Trace
	last      []script.InputState // carry-forward input per player
	nextIdx   int                 // next directive in script.Frames
	nextFrame int                 // next frame number to execute
	maxFrame  int
	halted    bool
}

// NewRunner validates options and prepares an execution.
func NewRunner(s *script.Script, inst Instance, opts ...Option) (*Runner, error) {
	if inst.Host == nil {
		return nil, errors.New("instance host must be non-nil")
	}
	if inst.Vars == nil || inst.Actions == nil {
		return nil, errors.New("instance registries must be non-nil")
	}

	cfg := config{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.tracked == nil {
		cfg.tracked = inst.Vars.Names()
	} else {
		for _, name := range cfg.tracked {
			if !inst.Vars.Has(name) {
				return nil, fmt.Errorf("tracked variable %q is not registered", name)
			}
		}
	}

	last := make([]script.InputState, s.Players)
	for i := range last {
		last[i] = script.Neutral()
	}

	return &Runner{
		script:   s,
		inst:     inst,
		cfg:      cfg,
		trace:    &Trace{Status: StatusNotStarted},
		last:     last,
		maxFrame: s.MaxFrame(),
	}, nil
}

// Trace returns the accumulated trace. Valid at any point; after an
// abort it holds everything gathered before the failure.
func (r *Runner) Trace() *Trace {
	return r.trace
}

// Frame returns the next frame number Step would execute.
func (r *Runner) Frame() int {
	return r.nextFrame
}

// Done reports whether the timeline is exhausted, halted, or aborted.
func (r *Runner) Done() bool {
	if r.trace.Status == StatusAborted || r.halted {
		return true
	}
	return r.nextFrame > r.maxFrame
}

// Checksum hashes the instance's full simulation state.
func (r *Runner) Checksum() (string, error) {
	return r.inst.Host.Checksum()
}

// Step executes one frame: resolve effective inputs, apply any debug
// action, capture pre values, tick, capture post values, evaluate any
// assertion. Returns false once the timeline is done.
//
// A host panic is recovered and recorded as an abort; the trace keeps
// everything gathered before the panic.
func (r *Runner) Step() (more bool) {
	if r.Done() {
		r.finish()
		return false
	}
	r.trace.Status = StatusRunning

	frame := r.nextFrame
	directive := r.directiveFor(frame)

	defer func() {
		if p := recover(); p != nil {
			r.abort(frame, fmt.Sprintf("simulation panic: %v", p))
			more = false
		}
	}()

	// Effective inputs: explicit this frame, else carry-forward.
	if directive != nil {
		for player, in := range directive.Inputs {
			r.last[player-1] = in
		}
	}
	inputs := make([]script.InputState, len(r.last))
	copy(inputs, r.last)

	// Debug actions are one-shot admin operations and run before the
	// tick, never as part of gameplay input.
	if directive != nil && directive.Action != nil {
		if err := r.inst.Actions.Invoke(directive.Action.Name, directive.Action.Params); err != nil {
			r.abort(frame, fmt.Sprintf("debug action %q: %v", directive.Action.Name, err))
			return false
		}
	}

	snapshotting := directive != nil && directive.Snapshot
	var pre map[string]value.Value
	if snapshotting {
		pre = capture(r.inst.Vars, r.cfg.tracked)
	}

	// Advance exactly one tick.
	if err := r.inst.Host.Step(inputs); err != nil {
		r.abort(frame, fmt.Sprintf("simulation step: %v", err))
		return false
	}
	r.trace.FramesRun++

	if snapshotting {
		post := capture(r.inst.Vars, r.cfg.tracked)
		r.trace.Snapshots = append(r.trace.Snapshots, Snapshot{
			Frame: frame,
			Pre:   pre,
			Post:  post,
			Delta: computeDelta(pre, post),
		})
	}

	if directive != nil && directive.Assert != nil {
		r.evaluate(frame, directive.Assert)
	}

	r.cfg.logger.Debug("frame executed",
		"frame", frame,
		"snapshot", snapshotting,
	)

	r.nextFrame++
	if r.Done() {
		r.finish()
		return false
	}
	return true
}

// Run drives the runner to completion and returns its trace.
func (r *Runner) Run() *Trace {
	for r.Step() {
	}
	return r.trace
}

// Run executes a script against an instance in one call.
func Run(s *script.Script, inst Instance, opts ...Option) (*Trace, error) {
	runner, err := NewRunner(s, inst, opts...)
	if err != nil {
		return nil, err
	}
	return runner.Run(), nil
}

func (r *Runner) directiveFor(frame int) *script.Frame {
	if r.nextIdx < len(r.script.Frames) && r.script.Frames[r.nextIdx].Number == frame {
		d := &r.script.Frames[r.nextIdx]
		r.nextIdx++
		return d
	}
	return nil
}

// evaluate binds the assertion against post-tick values. An expression
// that cannot be evaluated (script/registry mismatch) is recorded as
// an EvalError, not a failed assertion.
func (r *Runner) evaluate(frame int, e *expr.Expr) {
	bindings := capture(r.inst.Vars, r.inst.Vars.Names())
	res, err := e.Eval(bindings)
	if err != nil {
		r.trace.EvalErrors = append(r.trace.EvalErrors, EvalError{
			Frame: frame,
			Expr:  e.Text,
			Msg:   err.Error(),
		})
		return
	}
	r.trace.Assertions = append(r.trace.Assertions, AssertionResult{
		Frame:    frame,
		Expr:     e.Text,
		Passed:   res.Passed,
		Actual:   res.Actual,
		Op:       string(e.Op),
		Expected: e.Literal,
	})
	if !res.Passed {
		r.cfg.logger.Info("assertion failed",
			"frame", frame,
			"expr", e.Text,
			"actual", value.Format(res.Actual),
		)
		if r.cfg.haltOnFailure {
			r.halted = true
		}
	}
}

func (r *Runner) abort(frame int, reason string) {
	r.trace.Status = StatusAborted
	r.trace.Abort = &AbortInfo{Frame: frame, Reason: reason}
	r.cfg.logger.Error("run aborted", "frame", frame, "reason", reason)
}

func (r *Runner) finish() {
	switch r.trace.Status {
	case StatusAborted, StatusCompleted:
		return
	}
	r.trace.Status = StatusCompleted
	r.cfg.logger.Info("run completed",
		"frames", r.trace.FramesRun,
		"assertions_passed", r.trace.AssertionsPassed(),
		"assertions_failed", r.trace.AssertionsFailed(),
	)
}
