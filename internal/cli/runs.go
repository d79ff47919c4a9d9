package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/framecheck/framecheck/internal/store"
)

// RunListEntry is one archived run in listing output.
type RunListEntry struct {
	ID               string `json:"id"`
	CreatedAt        string `json:"created_at"`
	Mode             string `json:"mode"`
	ConsoleProfile   string `json:"console_profile"`
	Status           string `json:"status"`
	FramesRun        int    `json:"frames_run"`
	AssertionsFailed int    `json:"assertions_failed"`
	FirstDivergence  *int   `json:"first_divergence,omitempty"`
}

// NewRunsCommand creates the runs command group.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect the run archive",
	}
	cmd.AddCommand(newRunsListCommand(rootOpts))
	cmd.AddCommand(newRunsShowCommand(rootOpts))
	return cmd
}

func openArchive(opts *RootOptions) (*store.Store, error) {
	if opts.ArchivePath == "" {
		return nil, NewExitError(ExitCommandError, "no archive configured (use --archive)")
	}
	if _, err := os.Stat(opts.ArchivePath); os.IsNotExist(err) {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("archive not found: %s", opts.ArchivePath))
	}
	st, err := store.Open(opts.ArchivePath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "opening archive", err)
	}
	return st, nil
}

func newRunsListCommand(rootOpts *RootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List archived runs, newest first",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRunsList(rootOpts, limit, cmd)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum runs to list")
	return cmd
}

func runRunsList(opts *RootOptions, limit int, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	st, err := openArchive(opts)
	if err != nil {
		return err
	}
	defer st.Close()

	metas, err := st.ListRuns(context.Background(), limit)
	if err != nil {
		return WrapExitError(ExitCommandError, "listing runs", err)
	}

	entries := make([]RunListEntry, 0, len(metas))
	for _, m := range metas {
		entries = append(entries, RunListEntry{
			ID:               m.ID,
			CreatedAt:        m.CreatedAt.Format(time.RFC3339),
			Mode:             m.Mode,
			ConsoleProfile:   m.ConsoleProfile,
			Status:           m.Status,
			FramesRun:        m.FramesRun,
			AssertionsFailed: m.AssertionsFailed,
			FirstDivergence:  m.FirstDivergence,
		})
	}

	if opts.Format == "json" {
		return formatter.JSON(entries)
	}
	if len(entries) == 0 {
		fmt.Fprintln(formatter.Writer, "no archived runs")
		return nil
	}
	for _, e := range entries {
		line := fmt.Sprintf("%s  %s  %-8s  %-10s  %s  frames=%d failed=%d",
			e.ID, e.CreatedAt, e.Mode, e.ConsoleProfile, e.Status, e.FramesRun, e.AssertionsFailed)
		if e.FirstDivergence != nil {
			line += fmt.Sprintf(" diverged@%d", *e.FirstDivergence)
		}
		fmt.Fprintln(formatter.Writer, line)
	}
	return nil
}

func newRunsShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "show <run-id>",
		Short:         "Print an archived run's report",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRunsShow(rootOpts, args[0], cmd)
		},
	}
}

func runRunsShow(opts *RootOptions, id string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	st, err := openArchive(opts)
	if err != nil {
		return err
	}
	defer st.Close()

	meta, reportJSON, err := st.GetRun(context.Background(), id)
	if err != nil {
		if errors.Is(err, store.ErrRunNotFound) {
			return NewExitError(ExitCommandError, fmt.Sprintf("run not found: %s", id))
		}
		return WrapExitError(ExitCommandError, "reading run", err)
	}

	// The archived report is already canonical JSON; print it as-is in
	// both formats and prefix a human header in text mode.
	if opts.Format != "json" {
		fmt.Fprintf(formatter.Writer, "run %s (%s, %s, archived %s)\n",
			meta.ID, meta.Mode, meta.ConsoleProfile, meta.CreatedAt.Format(time.RFC3339))
	}
	_, err = formatter.Writer.Write(reportJSON)
	return err
}
