package engine

import (
	"github.com/framecheck/framecheck/internal/registry"
	"github.com/framecheck/framecheck/internal/value"
)

// capture reads the named variables from the registry, copying each
// value at call time. One pass over names, O(tracked variables).
func capture(vars *registry.Variables, names []string) map[string]value.Value {
	out := make(map[string]value.Value, len(names))
	for _, name := range names {
		if v, ok := vars.Get(name); ok {
			out[name] = v
		}
	}
	return out
}

// computeDelta derives the per-variable delta between two captures.
// Numeric variables get an Int difference (post - pre); non-numeric
// variables get a Bool flag that is true when the value changed. A
// variable whose kind changed mid-frame counts as changed.
func computeDelta(pre, post map[string]value.Value) map[string]value.Value {
	delta := make(map[string]value.Value, len(post))
	for name, after := range post {
		before, ok := pre[name]
		if !ok {
			delta[name] = value.Bool(true)
			continue
		}
		if value.IsNumeric(before) && value.IsNumeric(after) {
			delta[name] = value.Int(int64(after.(value.Int)) - int64(before.(value.Int)))
			continue
		}
		delta[name] = value.Bool(!value.Equal(before, after))
	}
	return delta
}
