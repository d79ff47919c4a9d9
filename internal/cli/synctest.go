package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/framecheck/framecheck/internal/lockstep"
	"github.com/framecheck/framecheck/internal/report"
	"github.com/framecheck/framecheck/internal/sim"
	"github.com/framecheck/framecheck/internal/store"
)

// SynctestOptions holds flags for the synctest command.
type SynctestOptions struct {
	*RootOptions
	Instances        int
	HaltOnDivergence bool
	Parallel         bool
	InjectLast       []string
}

// NewSynctestCommand creates the synctest command.
func NewSynctestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SynctestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "synctest <script.yaml>",
		Short: "Run N instances in lockstep and detect state divergence",
		Long: `Run the script on several independent simulation instances in frame
lockstep, comparing full-state checksums after every tick. The first
mismatched frame localizes the divergence.

--inject-last applies a fault only to the final instance, which is the
quickest way to watch a real divergence get caught:

  framecheck synctest jump.yaml --inject-last held-jump

Exit codes:
  0 - no divergence, all assertions passed
  1 - divergence or assertion failure
  2 - command error`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSynctest(opts, args[0], cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Instances, "instances", 2, "number of lockstepped instances")
	cmd.Flags().BoolVar(&opts.HaltOnDivergence, "halt", false, "stop at the first divergent frame")
	cmd.Flags().BoolVar(&opts.Parallel, "parallel", false, "one goroutine per instance with a frame barrier")
	cmd.Flags().StringSliceVar(&opts.InjectLast, "inject-last", nil, "inject a fault into the last instance only (held-jump|wall-clock)")

	return cmd
}

func runSynctest(opts *SynctestOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	if opts.Instances < 2 {
		return NewExitError(ExitCommandError, "synctest needs at least 2 instances")
	}

	faults, err := faultOptions(opts.InjectLast)
	if err != nil {
		return err
	}
	perInstance := make([][]sim.Option, opts.Instances)
	perInstance[opts.Instances-1] = faults

	s, insts, err := loadScript(opts.RootOptions, path, opts.Instances, perInstance...)
	if err != nil {
		if GetExitCode(err) == ExitCommandError {
			return err
		}
		if ferr := formatter.Error(ErrCodeParse, err.Error(), parseDetails(err)); ferr != nil {
			return ferr
		}
		return NewExitError(ExitFailure, "script failed validation")
	}

	lockstepOpts := []lockstep.Option{}
	if opts.HaltOnDivergence {
		lockstepOpts = append(lockstepOpts, lockstep.WithHaltOnDivergence())
	}
	if opts.Parallel {
		lockstepOpts = append(lockstepOpts, lockstep.WithParallel())
	}
	if opts.Verbose {
		logger := slog.New(slog.NewTextHandler(formatter.ErrWriter, nil))
		lockstepOpts = append(lockstepOpts, lockstep.WithLogger(logger))
	}

	cmp, err := lockstep.Run(s, insts, lockstepOpts...)
	if err != nil {
		return WrapExitError(ExitCommandError, "starting sync test", err)
	}

	rep := report.Build(cmp.Traces[0], cmp.Results)
	if err := archiveRun(opts.RootOptions, s, store.ModeSynctest, rep, formatter); err != nil {
		return err
	}
	if err := emitReport(formatter, rep); err != nil {
		return err
	}
	if formatter.Format != "json" && !cmp.Diverged() && !cmp.Aborted() {
		fmt.Fprintf(formatter.Writer, "instances in sync: %d across %d frames\n",
			len(insts), len(cmp.Results))
	}
	if !rep.Passed() {
		return NewExitError(ExitFailure, "sync test did not pass")
	}
	return nil
}
