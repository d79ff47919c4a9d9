// Package lockstep implements sync-testing: running several instances
// of the same simulation through one script in frame lockstep and
// comparing full-state checksums after every tick.
//
// Lockstep ordering is the point. All instances finish frame n and
// produce their checksums before any instance begins frame n+1, so a
// divergence is attributable to a specific frame's input or action.
// Running each instance to completion and diffing checksum series
// afterwards would find the same mismatches but could not stop at the
// first one, and the optional per-instance parallelism below would be
// unsound without the barrier.
//
// Checksums come from the host's full simulation state, not just the
// registered debug variables, so divergence detection catches hidden
// state drifting long before any assertion can.
package lockstep

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/framecheck/framecheck/internal/engine"
	"github.com/framecheck/framecheck/internal/script"
)

// Result is the checksum comparison for one frame across all
// instances. Checksums are ordered by instance index.
type Result struct {
	Frame     int
	Checksums []string
	Diverged  bool
}

// Comparison is the outcome of a sync-test run: one trace per
// instance (index 0 is the primary, whose trace feeds the report) and
// one Result per compared frame.
type Comparison struct {
	Traces  []*engine.Trace
	Results []Result
}

// Diverged reports whether any compared frame mismatched.
func (c *Comparison) Diverged() bool {
	return c.FirstDivergence() >= 0
}

// FirstDivergence returns the earliest mismatched frame number, or -1
// when every compared frame agreed.
func (c *Comparison) FirstDivergence() int {
	for _, r := range c.Results {
		if r.Diverged {
			return r.Frame
		}
	}
	return -1
}

// Aborted reports whether any instance aborted before the timeline
// finished.
func (c *Comparison) Aborted() bool {
	for _, t := range c.Traces {
		if t.Status == engine.StatusAborted {
			return true
		}
	}
	return false
}

// Option configures a sync-test run.
type Option func(*config)

type config struct {
	haltOnDivergence bool
	parallel         bool
	logger           *slog.Logger
	engineOpts       []engine.Option
}

// WithHaltOnDivergence stops comparing after the first mismatched
// frame. The default keeps going so the result series shows how the
// divergence evolves, which is what frame-window bisection wants.
func WithHaltOnDivergence() Option {
	return func(c *config) { c.haltOnDivergence = true }
}

// WithParallel runs each instance on its own goroutine with a barrier
// after every frame. Purely a wall-clock optimization; results are
// identical to the sequential driver.
func WithParallel() Option {
	return func(c *config) { c.parallel = true }
}

// WithLogger sets the structured logger. The default discards.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithEngineOptions forwards options to every instance's runner.
func WithEngineOptions(opts ...engine.Option) Option {
	return func(c *config) { c.engineOpts = append(c.engineOpts, opts...) }
}

// Run lockstep-executes the script on every instance and compares
// full-state checksums after each frame. Instances must be freshly
// constructed and mutually independent; they are stepped but never
// shared.
func Run(s *script.Script, instances []engine.Instance, opts ...Option) (*Comparison, error) {
	if len(instances) < 2 {
		return nil, errors.New("sync-testing needs at least 2 instances")
	}

	cfg := config{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&cfg)
	}

	runners := make([]*engine.Runner, len(instances))
	for i, inst := range instances {
		r, err := engine.NewRunner(s, inst, cfg.engineOpts...)
		if err != nil {
			return nil, fmt.Errorf("instance %d: %w", i, err)
		}
		runners[i] = r
	}

	var err error
	cmp := &Comparison{Traces: make([]*engine.Trace, len(runners))}
	for i, r := range runners {
		cmp.Traces[i] = r.Trace()
	}

	if cfg.parallel {
		err = runParallel(runners, cmp, cfg)
	} else {
		err = runSequential(runners, cmp, cfg)
	}
	if err != nil {
		return nil, err
	}
	return cmp, nil
}

func runSequential(runners []*engine.Runner, cmp *Comparison, cfg config) error {
	sums := make([]string, len(runners))
	for !anyDone(runners) {
		frame := runners[0].Frame()
		for i, r := range runners {
			r.Step()
			if r.Trace().Status == engine.StatusAborted {
				cfg.logger.Error("instance aborted, stopping comparison",
					"instance", i, "frame", frame)
				return nil
			}
			sum, err := r.Checksum()
			if err != nil {
				return fmt.Errorf("instance %d checksum at frame %d: %w", i, frame, err)
			}
			sums[i] = sum
		}
		if record(cmp, frame, sums, cfg) {
			return nil
		}
	}
	return nil
}

// runParallel steps every instance on its own goroutine. The
// coordinator releases one frame at a time and collects every
// checksum before releasing the next, which is the barrier the
// lockstep contract requires. Workers only touch their own runner, so
// traces are safe to read between barriers.
func runParallel(runners []*engine.Runner, cmp *Comparison, cfg config) error {
	type outcome struct {
		sum string
		err error
	}

	release := make([]chan struct{}, len(runners))
	collect := make([]chan outcome, len(runners))
	for i, r := range runners {
		release[i] = make(chan struct{})
		// Buffered so a worker's send completes even when the
		// coordinator returns early on a checksum error; the worker
		// then sees the closed release channel and exits.
		collect[i] = make(chan outcome, 1)
		go func(r *engine.Runner, release <-chan struct{}, collect chan<- outcome) {
			for range release {
				r.Step()
				sum, err := r.Checksum()
				collect <- outcome{sum: sum, err: err}
			}
		}(r, release[i], collect[i])
	}
	defer func() {
		for _, ch := range release {
			close(ch)
		}
	}()

	sums := make([]string, len(runners))
	for !anyDone(runners) {
		frame := runners[0].Frame()
		for _, ch := range release {
			ch <- struct{}{}
		}
		for i, ch := range collect {
			out := <-ch
			if out.err != nil {
				return fmt.Errorf("instance %d checksum at frame %d: %w", i, frame, out.err)
			}
			sums[i] = out.sum
		}
		for i, r := range runners {
			if r.Trace().Status == engine.StatusAborted {
				cfg.logger.Error("instance aborted, stopping comparison",
					"instance", i, "frame", frame)
				return nil
			}
		}
		if record(cmp, frame, sums, cfg) {
			return nil
		}
	}
	return nil
}

// record appends the frame's comparison and reports whether the run
// should stop.
func record(cmp *Comparison, frame int, sums []string, cfg config) bool {
	checksums := make([]string, len(sums))
	copy(checksums, sums)

	diverged := false
	for _, s := range checksums[1:] {
		if s != checksums[0] {
			diverged = true
			break
		}
	}
	cmp.Results = append(cmp.Results, Result{
		Frame:     frame,
		Checksums: checksums,
		Diverged:  diverged,
	})
	if diverged {
		cfg.logger.Info("divergence detected", "frame", frame)
		if cfg.haltOnDivergence {
			return true
		}
	}
	return false
}

func anyDone(runners []*engine.Runner) bool {
	for _, r := range runners {
		if r.Done() {
			return true
		}
	}
	return false
}
