package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/framecheck/framecheck/internal/engine"
	"github.com/framecheck/framecheck/internal/profile"
	"github.com/framecheck/framecheck/internal/script"
	"github.com/framecheck/framecheck/internal/sim"
)

// loadProfiles returns the builtin console profiles, merged with any
// extra profile directory from --profiles.
func loadProfiles(opts *RootOptions) (*profile.Set, error) {
	profiles := profile.Builtin()
	if opts.ProfileDir == "" {
		return profiles, nil
	}
	if _, err := os.Stat(opts.ProfileDir); err != nil {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("profile directory not found: %s", opts.ProfileDir))
	}
	extra, err := profile.LoadDir(opts.ProfileDir)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "loading profiles", err)
	}
	return profiles.Merge(extra), nil
}

// loadScript reads a script file, constructs matching simulation
// instances, and validates the script against the first instance's
// registries. All instances share identical registrations, so one
// validation covers them all.
func loadScript(opts *RootOptions, path string, instances int, faults ...[]sim.Option) (*script.Script, []engine.Instance, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "reading script", err)
	}

	header, err := script.Peek(data)
	if err != nil {
		return nil, nil, WrapExitError(ExitFailure, "invalid script", err)
	}

	insts := make([]engine.Instance, instances)
	for i := range insts {
		var simOpts []sim.Option
		if i < len(faults) {
			simOpts = faults[i]
		}
		inst, err := sim.NewInstance(header.Players, header.Seed, simOpts...)
		if err != nil {
			return nil, nil, WrapExitError(ExitCommandError, "constructing simulation", err)
		}
		insts[i] = inst
	}

	profiles, err := loadProfiles(opts)
	if err != nil {
		return nil, nil, err
	}

	s, err := script.Load(data, profiles, insts[0].Vars, insts[0].Actions)
	if err != nil {
		return nil, nil, WrapExitError(ExitFailure, "invalid script", err)
	}
	return s, insts, nil
}

// parseDetails turns a script.ParseError into structured output.
func parseDetails(err error) any {
	var perr *script.ParseError
	if !errors.As(err, &perr) {
		return nil
	}
	return map[string]any{
		"frame": perr.Frame,
		"field": perr.Field,
		"msg":   perr.Msg,
	}
}
