// Package value provides the scalar value domain shared by the whole
// engine: debug-variable readings, snapshot deltas, action parameters,
// and assertion literals are all Values.
//
// The domain is deliberately closed: integers, booleans, and strings.
// There is NO float type. Rollback-style determinism testing depends on
// bit-exact state, and floating point is the classic way to lose it
// (FMA contraction, x87 spill differences, libm divergence across
// platforms). Simulations under test are expected to use fixed-point
// integers, so the engine refuses floats at every boundary: script
// parsing, CUE profiles, and canonical serialization all reject them.
package value

import "fmt"

// Kind tags the scalar type of a Value.
type Kind int

const (
	KindInt Kind = iota
	KindBool
	KindString
)

// String returns the kind name used in error messages and CUE profiles.
func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind parses a kind name as written in profile and action
// parameter declarations.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "int":
		return KindInt, nil
	case "bool":
		return KindBool, nil
	case "string":
		return KindString, nil
	default:
		return 0, fmt.Errorf("unknown scalar kind %q (want int, bool, or string)", s)
	}
}

// Value is a sealed interface over the three scalar types.
// Only Int, Bool, and Str implement it.
type Value interface {
	Kind() Kind
	scalar() // sealed
}

// Int is a 64-bit integer scalar.
type Int int64

func (Int) Kind() Kind { return KindInt }
func (Int) scalar()    {}

// Bool is a boolean scalar.
type Bool bool

func (Bool) Kind() Kind { return KindBool }
func (Bool) scalar()    {}

// Str is a string scalar.
type Str string

func (Str) Kind() Kind { return KindString }
func (Str) scalar()    {}

// Equal reports whether two Values have the same kind and contents.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Kind() != b.Kind() {
		return false
	}
	return a == b
}

// IsNumeric reports whether v supports arithmetic deltas.
func IsNumeric(v Value) bool {
	return v != nil && v.Kind() == KindInt
}

// Format renders v the way reports and error messages show scalars.
func Format(v Value) string {
	switch val := v.(type) {
	case Int:
		return fmt.Sprintf("%d", int64(val))
	case Bool:
		return fmt.Sprintf("%t", bool(val))
	case Str:
		return fmt.Sprintf("%q", string(val))
	default:
		return fmt.Sprintf("<%T>", v)
	}
}

// FromAny converts a decoded YAML/JSON scalar to a Value.
// Floats and nulls are rejected, with one concession: YAML decoders
// hand back float64 for every number, so a float64 with a zero
// fractional part is accepted as an Int.
func FromAny(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return nil, fmt.Errorf("null is not a scalar value")
	case bool:
		return Bool(val), nil
	case string:
		return Str(val), nil
	case int:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case uint64:
		if val > 1<<63-1 {
			return nil, fmt.Errorf("integer out of int64 range: %d", val)
		}
		return Int(val), nil
	case float64:
		if val == float64(int64(val)) {
			return Int(int64(val)), nil
		}
		return nil, fmt.Errorf("floats are not allowed in scripts or state: %v", val)
	default:
		return nil, fmt.Errorf("unsupported scalar type %T", v)
	}
}

// Goify converts a Value back to the plain Go type used when building
// report documents for serialization.
func Goify(v Value) any {
	switch val := v.(type) {
	case Int:
		return int64(val)
	case Bool:
		return bool(val)
	case Str:
		return string(val)
	default:
		return nil
	}
}
