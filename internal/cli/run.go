package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/framecheck/framecheck/internal/engine"
	"github.com/framecheck/framecheck/internal/report"
	"github.com/framecheck/framecheck/internal/script"
	"github.com/framecheck/framecheck/internal/sim"
	"github.com/framecheck/framecheck/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	HaltOnFailure bool
	Track         []string
	Inject        []string
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <script.yaml>",
		Short: "Replay a script against the reference simulation",
		Long: `Replay a script frame by frame, recording snapshots and evaluating
assertions, then emit the report.

Exit codes:
  0 - run passed
  1 - assertion failed, script invalid, or run aborted
  2 - command error

Examples:
  framecheck run jump.yaml
  framecheck run jump.yaml --format json
  framecheck run jump.yaml --halt --track player_x,velocity_y
  framecheck run jump.yaml --inject held-jump --archive runs.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.HaltOnFailure, "halt", false, "stop at the first failed assertion")
	cmd.Flags().StringSliceVar(&opts.Track, "track", nil, "restrict snapshots to these variables")
	cmd.Flags().StringSliceVar(&opts.Inject, "inject", nil, "inject a simulation fault (held-jump|wall-clock)")

	return cmd
}

// faultOptions maps --inject names to simulation options.
func faultOptions(names []string) ([]sim.Option, error) {
	var opts []sim.Option
	for _, name := range names {
		switch name {
		case "held-jump":
			opts = append(opts, sim.WithHeldJumpBug())
		case "wall-clock":
			opts = append(opts, sim.WithWallClockFault())
		default:
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("unknown fault %q (held-jump|wall-clock)", name))
		}
	}
	return opts, nil
}

func runReplay(opts *RunOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	faults, err := faultOptions(opts.Inject)
	if err != nil {
		return err
	}

	s, insts, err := loadScript(opts.RootOptions, path, 1, faults)
	if err != nil {
		if GetExitCode(err) == ExitCommandError {
			return err
		}
		if ferr := formatter.Error(ErrCodeParse, err.Error(), parseDetails(err)); ferr != nil {
			return ferr
		}
		return NewExitError(ExitFailure, "script failed validation")
	}

	engineOpts := engineOptions(opts, formatter)
	trace, err := engine.Run(s, insts[0], engineOpts...)
	if err != nil {
		return WrapExitError(ExitCommandError, "starting run", err)
	}

	rep := report.Build(trace, nil)
	if err := archiveRun(opts.RootOptions, s, store.ModeReplay, rep, formatter); err != nil {
		return err
	}
	if err := emitReport(formatter, rep); err != nil {
		return err
	}
	if !rep.Passed() {
		return NewExitError(ExitFailure, "run did not pass")
	}
	return nil
}

func engineOptions(opts *RunOptions, formatter *OutputFormatter) []engine.Option {
	var engineOpts []engine.Option
	if opts.HaltOnFailure {
		engineOpts = append(engineOpts, engine.WithHaltOnFailure())
	}
	if len(opts.Track) > 0 {
		engineOpts = append(engineOpts, engine.WithTrackedVariables(opts.Track...))
	}
	if opts.Verbose {
		logger := slog.New(slog.NewTextHandler(formatter.ErrWriter, &slog.HandlerOptions{Level: slog.LevelDebug}))
		engineOpts = append(engineOpts, engine.WithLogger(logger))
	}
	return engineOpts
}

// archiveRun persists the report when --archive is set.
func archiveRun(opts *RootOptions, s *script.Script, mode string, rep *report.Report, formatter *OutputFormatter) error {
	if opts.ArchivePath == "" {
		return nil
	}
	fingerprint, err := s.Fingerprint()
	if err != nil {
		return WrapExitError(ExitCommandError, "computing fingerprint", err)
	}
	st, err := store.Open(opts.ArchivePath)
	if err != nil {
		return WrapExitError(ExitCommandError, "opening archive", err)
	}
	defer st.Close()

	id, err := st.SaveRun(context.Background(), fingerprint, s.Profile, mode, rep)
	if err != nil {
		return WrapExitError(ExitCommandError, "archiving run", err)
	}
	formatter.VerboseLog("archived run %s", id)
	return nil
}

// emitReport renders a report in the configured format.
func emitReport(formatter *OutputFormatter, rep *report.Report) error {
	if formatter.Format == "json" {
		data, err := rep.EncodeJSON()
		if err != nil {
			return WrapExitError(ExitCommandError, "encoding report", err)
		}
		_, err = formatter.Writer.Write(data)
		return err
	}

	w := formatter.Writer
	fmt.Fprintf(w, "status: %s\n", rep.Summary.Status)
	fmt.Fprintf(w, "frames run: %d\n", rep.Summary.FramesRun)
	fmt.Fprintf(w, "assertions: %d passed, %d failed\n",
		rep.Summary.AssertionsPassed, rep.Summary.AssertionsFailed)
	fmt.Fprintf(w, "snapshots: %d\n", rep.Summary.FramesWithSnapshot)

	for _, a := range rep.Assertions {
		if a.Passed {
			continue
		}
		fmt.Fprintf(w, "  FAIL frame %d: %s (actual %v)\n", a.FrameNumber, a.Expression, a.Actual)
	}
	for _, e := range rep.EvalErrors {
		fmt.Fprintf(w, "  EVAL ERROR frame %d: %s: %s\n", e.FrameNumber, e.Expression, e.Message)
	}
	if rep.Summary.FirstDivergence != nil {
		fmt.Fprintf(w, "first divergence: frame %d\n", *rep.Summary.FirstDivergence)
	}
	if rep.Abort != nil {
		fmt.Fprintf(w, "aborted at frame %d: %s\n", rep.Abort.FrameNumber, rep.Abort.Reason)
	}
	return nil
}
