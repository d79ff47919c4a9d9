// Package registry holds the debug surface a host simulation exposes
// to the engine: named read-only variable accessors and named one-shot
// admin actions.
//
// A registry is owned by exactly one simulation instance. Nothing here
// is process-global: sync-testing runs several instances side by side,
// and each gets its own registry so identical names never share values
// across instances.
package registry

import (
	"fmt"
	"sort"

	"github.com/framecheck/framecheck/internal/value"
)

// Accessor reads one debug variable from live simulation state.
// Accessors must be cheap and side-effect free; the engine calls every
// accessor twice per snapshot-marked frame.
type Accessor func() value.Value

// Variables maps debug variable names to accessors.
type Variables struct {
	accessors map[string]Accessor
}

// NewVariables creates an empty variable registry.
func NewVariables() *Variables {
	return &Variables{accessors: make(map[string]Accessor)}
}

// Register adds a named accessor. Registering the same name twice is
// an error: it would make snapshots ambiguous.
func (v *Variables) Register(name string, acc Accessor) error {
	if name == "" {
		return fmt.Errorf("debug variable name must be non-empty")
	}
	if acc == nil {
		return fmt.Errorf("debug variable %q: accessor must be non-nil", name)
	}
	if _, exists := v.accessors[name]; exists {
		return fmt.Errorf("debug variable %q already registered", name)
	}
	v.accessors[name] = acc
	return nil
}

// MustRegister is like Register but panics on error. Intended for
// simulation constructors, where a duplicate name is a programming bug.
func (v *Variables) MustRegister(name string, acc Accessor) {
	if err := v.Register(name, acc); err != nil {
		panic(err)
	}
}

// Get reads the current value of a variable.
func (v *Variables) Get(name string) (value.Value, bool) {
	acc, ok := v.accessors[name]
	if !ok {
		return nil, false
	}
	return acc(), true
}

// Has reports whether name is registered, without reading it.
func (v *Variables) Has(name string) bool {
	_, ok := v.accessors[name]
	return ok
}

// Names returns all registered names in sorted order. Sorted so that
// snapshot capture iterates deterministically.
func (v *Variables) Names() []string {
	names := make([]string, 0, len(v.accessors))
	for name := range v.accessors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered variables.
func (v *Variables) Len() int {
	return len(v.accessors)
}

// ActionFunc applies one debug action to simulation state. Params have
// already been validated against the action's declared shape.
type ActionFunc func(params map[string]value.Value) error

// ActionSpec declares an action's name and parameter shape. The shape
// is closed: scripts naming a parameter outside the shape, omitting
// one, or passing the wrong kind fail at load time, before any
// simulation step runs.
type ActionSpec struct {
	Name   string
	Params map[string]value.Kind
}

// Actions maps debug action names to their specs and handlers.
type Actions struct {
	specs    map[string]ActionSpec
	handlers map[string]ActionFunc
}

// NewActions creates an empty action registry.
func NewActions() *Actions {
	return &Actions{
		specs:    make(map[string]ActionSpec),
		handlers: make(map[string]ActionFunc),
	}
}

// Register adds an action with its declared parameter shape.
func (a *Actions) Register(spec ActionSpec, fn ActionFunc) error {
	if spec.Name == "" {
		return fmt.Errorf("debug action name must be non-empty")
	}
	if fn == nil {
		return fmt.Errorf("debug action %q: handler must be non-nil", spec.Name)
	}
	if _, exists := a.specs[spec.Name]; exists {
		return fmt.Errorf("debug action %q already registered", spec.Name)
	}
	a.specs[spec.Name] = spec
	a.handlers[spec.Name] = fn
	return nil
}

// MustRegister is like Register but panics on error.
func (a *Actions) MustRegister(spec ActionSpec, fn ActionFunc) {
	if err := a.Register(spec, fn); err != nil {
		panic(err)
	}
}

// Spec returns the declared shape for an action.
func (a *Actions) Spec(name string) (ActionSpec, bool) {
	spec, ok := a.specs[name]
	return spec, ok
}

// Names returns all registered action names in sorted order.
func (a *Actions) Names() []string {
	names := make([]string, 0, len(a.specs))
	for name := range a.specs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateParams checks params against the action's declared shape.
// Every declared parameter must be present with the declared kind, and
// no undeclared parameter may appear.
func (a *Actions) ValidateParams(name string, params map[string]value.Value) error {
	spec, ok := a.specs[name]
	if !ok {
		return fmt.Errorf("unknown debug action %q", name)
	}
	for pname, kind := range spec.Params {
		val, present := params[pname]
		if !present {
			return fmt.Errorf("debug action %q: missing parameter %q (%s)", name, pname, kind)
		}
		if val.Kind() != kind {
			return fmt.Errorf("debug action %q: parameter %q must be %s, got %s",
				name, pname, kind, val.Kind())
		}
	}
	for pname := range params {
		if _, declared := spec.Params[pname]; !declared {
			return fmt.Errorf("debug action %q: undeclared parameter %q", name, pname)
		}
	}
	return nil
}

// Invoke validates params and applies the action.
func (a *Actions) Invoke(name string, params map[string]value.Value) error {
	if err := a.ValidateParams(name, params); err != nil {
		return err
	}
	return a.handlers[name](params)
}
