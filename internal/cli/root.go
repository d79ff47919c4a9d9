// Package cli implements the framecheck command line interface. The
// commands drive the bundled reference platformer; embedding the
// engine against another simulation is a library concern, not a CLI
// one.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags shared by all commands.
type RootOptions struct {
	Verbose     bool
	Format      string // "json" | "text"
	ProfileDir  string // extra console profiles, CUE files
	ArchivePath string // SQLite run archive; empty disables archiving
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root framecheck command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "framecheck",
		Short: "Deterministic replay and sync-testing for frame-stepped simulations",
		Long: `framecheck runs declarative replay scripts against a deterministic
simulation, records snapshots and assertions per frame, and sync-tests
multiple instances in lockstep to localize the first frame of state
divergence.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ProfileDir, "profiles", "", "directory of extra console profile CUE files")
	cmd.PersistentFlags().StringVar(&opts.ArchivePath, "archive", "", "SQLite run archive path (enables archiving)")

	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewSynctestCommand(opts))
	cmd.AddCommand(NewRunsCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}
