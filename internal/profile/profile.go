// Package profile defines console profiles: the fixed tick rate and
// button vocabulary a replay script executes against.
//
// Profiles are declared in CUE rather than Go so that adding a console
// target never requires recompiling the engine. A built-in set ships
// embedded in the binary; additional profiles can be loaded from a
// directory of .cue files.
package profile

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
)

//go:embed profiles.cue
var builtinCUE string

// Profile describes one simulation target.
type Profile struct {
	// Name is the profile identifier scripts reference via console_profile.
	Name string

	// TickHz is the fixed simulation rate. The engine itself never
	// sleeps between ticks; the rate is metadata for the host and for
	// report consumers converting frame numbers to wall time.
	TickHz int

	// MaxPlayers bounds the player_count a script may declare.
	MaxPlayers int

	// Buttons is the legal input token vocabulary for p<N> fields.
	Buttons []string
}

// HasButton reports whether tok is in the profile's vocabulary.
func (p *Profile) HasButton(tok string) bool {
	for _, b := range p.Buttons {
		if b == tok {
			return true
		}
	}
	return false
}

// Set is a named collection of profiles.
type Set struct {
	profiles map[string]*Profile
}

// Find returns the named profile.
func (s *Set) Find(name string) (*Profile, error) {
	p, ok := s.profiles[name]
	if !ok {
		return nil, fmt.Errorf("unknown console profile %q (have %v)", name, s.Names())
	}
	return p, nil
}

// Names returns all profile names in sorted order.
func (s *Set) Names() []string {
	names := make([]string, 0, len(s.profiles))
	for name := range s.profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Builtin returns the embedded profile set. Panics only if the
// embedded CUE is malformed, which is a build defect.
func Builtin() *Set {
	ctx := cuecontext.New()
	v := ctx.CompileString(builtinCUE, cue.Filename("profiles.cue"))
	set, err := fromCUE(v)
	if err != nil {
		panic(fmt.Sprintf("embedded profiles.cue is invalid: %v", err))
	}
	return set
}

// LoadDir loads every .cue file in dir as a single CUE instance and
// extracts its profile declarations. The returned set contains only
// the profiles declared in dir; callers wanting the built-ins as well
// should merge with Builtin via Merge.
func LoadDir(dir string) (*Set, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("profile directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("profile path is not a directory: %s", dir)
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances found in %s", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, fmt.Errorf("loading CUE files: %w", inst.Err)
	}

	v := ctx.BuildInstance(inst)
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("building CUE value: %w", err)
	}

	return fromCUE(v)
}

// Merge returns a set containing both receiver and other's profiles.
// Profiles in other shadow same-named built-ins.
func (s *Set) Merge(other *Set) *Set {
	merged := &Set{profiles: make(map[string]*Profile, len(s.profiles)+len(other.profiles))}
	for name, p := range s.profiles {
		merged.profiles[name] = p
	}
	for name, p := range other.profiles {
		merged.profiles[name] = p
	}
	return merged
}

// fromCUE extracts profiles from a built CUE value. The expected shape
// is a top-level "profile" struct keyed by profile name.
func fromCUE(v cue.Value) (*Set, error) {
	profilesVal := v.LookupPath(cue.ParsePath("profile"))
	if !profilesVal.Exists() {
		return nil, fmt.Errorf("no top-level profile declarations found")
	}

	iter, err := profilesVal.Fields()
	if err != nil {
		return nil, fmt.Errorf("iterating profiles: %w", err)
	}

	set := &Set{profiles: make(map[string]*Profile)}
	for iter.Next() {
		p, err := parseProfile(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		set.profiles[p.Name] = p
	}
	if len(set.profiles) == 0 {
		return nil, fmt.Errorf("profile declarations are empty")
	}
	return set, nil
}

func parseProfile(name string, v cue.Value) (*Profile, error) {
	p := &Profile{Name: name}

	tickVal := v.LookupPath(cue.ParsePath("tick_hz"))
	if !tickVal.Exists() {
		return nil, fmt.Errorf("profile %q: tick_hz is required", name)
	}
	tick, err := tickVal.Int64()
	if err != nil {
		return nil, fmt.Errorf("profile %q: tick_hz: %w", name, err)
	}
	if tick <= 0 {
		return nil, fmt.Errorf("profile %q: tick_hz must be positive, got %d", name, tick)
	}
	p.TickHz = int(tick)

	maxVal := v.LookupPath(cue.ParsePath("max_players"))
	if !maxVal.Exists() {
		return nil, fmt.Errorf("profile %q: max_players is required", name)
	}
	maxPlayers, err := maxVal.Int64()
	if err != nil {
		return nil, fmt.Errorf("profile %q: max_players: %w", name, err)
	}
	if maxPlayers < 1 {
		return nil, fmt.Errorf("profile %q: max_players must be at least 1, got %d", name, maxPlayers)
	}
	p.MaxPlayers = int(maxPlayers)

	buttonsVal := v.LookupPath(cue.ParsePath("buttons"))
	if !buttonsVal.Exists() {
		return nil, fmt.Errorf("profile %q: buttons is required", name)
	}
	bIter, err := buttonsVal.List()
	if err != nil {
		return nil, fmt.Errorf("profile %q: buttons must be a list: %w", name, err)
	}
	seen := make(map[string]bool)
	for bIter.Next() {
		tok, err := bIter.Value().String()
		if err != nil {
			return nil, fmt.Errorf("profile %q: button token: %w", name, err)
		}
		if tok == "" {
			return nil, fmt.Errorf("profile %q: button tokens must be non-empty", name)
		}
		if seen[tok] {
			return nil, fmt.Errorf("profile %q: duplicate button token %q", name, tok)
		}
		seen[tok] = true
		p.Buttons = append(p.Buttons, tok)
	}
	if len(p.Buttons) == 0 {
		return nil, fmt.Errorf("profile %q: buttons list is empty", name)
	}

	return p, nil
}
