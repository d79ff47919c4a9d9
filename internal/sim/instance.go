package sim

import (
	"github.com/framecheck/framecheck/internal/engine"
	"github.com/framecheck/framecheck/internal/registry"
)

// NewInstance constructs a Platformer with fresh, exclusively-owned
// registries and binds its debug surface. This is the factory the CLI
// and the sync-test drivers use; every call yields a fully independent
// instance.
func NewInstance(players int, seed int64, opts ...Option) (engine.Instance, error) {
	p := New(players, seed, opts...)
	vars := registry.NewVariables()
	acts := registry.NewActions()
	if err := p.Bind(vars, acts); err != nil {
		return engine.Instance{}, err
	}
	return engine.Instance{Host: p, Vars: vars, Actions: acts}, nil
}
