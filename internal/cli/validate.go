package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// ValidationResult holds validate command output.
type ValidationResult struct {
	Valid       bool   `json:"valid"`
	Profile     string `json:"console_profile,omitempty"`
	Players     int    `json:"players,omitempty"`
	Frames      int    `json:"frames,omitempty"`
	MaxFrame    int    `json:"max_frame,omitempty"`
	Fingerprint string `json:"fingerprint,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <script.yaml>",
		Short: "Validate a replay script without running it",
		Long: `Validate a replay script against the console profile and the
reference simulation's debug registry: frame ordering, button
vocabulary, assertion variables, and debug action signatures.

Exit codes:
  0 - script is valid
  1 - script failed validation
  2 - command error (unreadable file, bad profile dir)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("script not found: %s", path))
	}

	s, _, err := loadScript(opts, path, 1)
	if err != nil {
		if GetExitCode(err) == ExitCommandError {
			return err
		}
		if ferr := formatter.Error(ErrCodeParse, err.Error(), parseDetails(err)); ferr != nil {
			return ferr
		}
		return NewExitError(ExitFailure, "script failed validation")
	}

	fingerprint, err := s.Fingerprint()
	if err != nil {
		return WrapExitError(ExitCommandError, "computing fingerprint", err)
	}

	result := ValidationResult{
		Valid:       true,
		Profile:     s.Profile,
		Players:     s.Players,
		Frames:      len(s.Frames),
		MaxFrame:    s.MaxFrame(),
		Fingerprint: fingerprint,
	}
	if opts.Format == "json" {
		return formatter.JSON(result)
	}
	fmt.Fprintf(formatter.Writer, "valid: %s\n", path)
	fmt.Fprintf(formatter.Writer, "  console profile: %s\n", result.Profile)
	fmt.Fprintf(formatter.Writer, "  players: %d\n", result.Players)
	fmt.Fprintf(formatter.Writer, "  directives: %d (last frame %d)\n", result.Frames, result.MaxFrame)
	fmt.Fprintf(formatter.Writer, "  fingerprint: %s\n", result.Fingerprint)
	return nil
}
