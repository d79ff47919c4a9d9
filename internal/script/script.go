// Package script parses and validates versioned replay scripts.
//
// A script is a declarative frame timeline in YAML:
//
//	version: 1
//	console_profile: nethercore
//	seed: 7
//	players: 1
//	frames:
//	  - f: 0
//	    p1: ""
//	    snap: true
//	  - f: 1
//	    p1: a
//	    snap: true
//	    assert: "$velocity_y < 0"
//	  - f: 4
//	    action: teleport
//	    action_params: {x: 640, y: 0}
//
// Frame numbers are strictly increasing; gaps are legal and mean each
// player's last explicit input carries forward. Everything a script
// references is validated at load time against the console profile and
// the instance registries: buttons, debug variables, debug actions and
// their parameter shapes. The scheduler never sees a partially valid
// script.
package script

import (
	"fmt"

	"github.com/framecheck/framecheck/internal/expr"
	"github.com/framecheck/framecheck/internal/value"
)

// CurrentVersion is the script format version this loader understands.
const CurrentVersion = 1

// Script is the parsed, validated form of one replay test.
// It is immutable after Load returns.
type Script struct {
	// Version is the script format version.
	Version int

	// Profile names the console profile the script was authored for.
	Profile string

	// Seed seeds any deterministic pseudo-randomness in the simulation.
	Seed int64

	// Players is the number of simulated players.
	Players int

	// Frames is the directive timeline, strictly increasing by Number.
	Frames []Frame
}

// Frame is one scripted instant on the timeline.
type Frame struct {
	// Number is the frame this directive applies to.
	Number int

	// Inputs holds explicit per-player inputs, keyed by 1-based player
	// number. Players absent from the map carry their prior input.
	Inputs map[int]InputState

	// Snapshot marks the frame for pre/post variable capture.
	Snapshot bool

	// Assert is the parsed assertion to evaluate against post-tick
	// values, or nil.
	Assert *expr.Expr

	// Action is the debug action to invoke before the tick, or nil.
	Action *ActionCall
}

// ActionCall names a debug action and its parameters.
type ActionCall struct {
	Name   string
	Params map[string]value.Value
}

// MaxFrame returns the highest scripted frame number, or -1 for an
// empty timeline.
func (s *Script) MaxFrame() int {
	if len(s.Frames) == 0 {
		return -1
	}
	return s.Frames[len(s.Frames)-1].Number
}

// Fingerprint is a stable content hash of the script, used by the run
// archive to tie reports back to the exact script that produced them.
func (s *Script) Fingerprint() (string, error) {
	frames := make([]any, len(s.Frames))
	for i, f := range s.Frames {
		doc := map[string]any{
			"f":    f.Number,
			"snap": f.Snapshot,
		}
		inputs := make(map[string]any, len(f.Inputs))
		for player, in := range f.Inputs {
			inputs[fmt.Sprintf("p%d", player)] = in.Encode()
		}
		if len(inputs) > 0 {
			doc["inputs"] = inputs
		}
		if f.Assert != nil {
			doc["assert"] = f.Assert.Text
		}
		if f.Action != nil {
			params := make(map[string]any, len(f.Action.Params))
			for k, v := range f.Action.Params {
				params[k] = v
			}
			doc["action"] = f.Action.Name
			doc["action_params"] = params
		}
		frames[i] = doc
	}

	return value.Checksum(value.DomainScript, map[string]any{
		"version":         s.Version,
		"console_profile": s.Profile,
		"seed":            s.Seed,
		"players":         s.Players,
		"frames":          frames,
	})
}

// ParseError identifies the exact frame and field that failed to load.
// Frame is -1 for document-level errors.
type ParseError struct {
	Frame int
	Field string
	Msg   string
}

func (e *ParseError) Error() string {
	if e.Frame < 0 {
		if e.Field == "" {
			return fmt.Sprintf("script: %s", e.Msg)
		}
		return fmt.Sprintf("script: field %q: %s", e.Field, e.Msg)
	}
	if e.Field == "" {
		return fmt.Sprintf("frame %d: %s", e.Frame, e.Msg)
	}
	return fmt.Sprintf("frame %d: field %q: %s", e.Frame, e.Field, e.Msg)
}

func docErr(field, format string, args ...any) *ParseError {
	return &ParseError{Frame: -1, Field: field, Msg: fmt.Sprintf(format, args...)}
}

func frameErr(frame int, field, format string, args ...any) *ParseError {
	return &ParseError{Frame: frame, Field: field, Msg: fmt.Sprintf(format, args...)}
}
