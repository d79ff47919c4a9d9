package script

import (
	"fmt"
	"sort"
	"strings"

	"github.com/framecheck/framecheck/internal/profile"
)

// InputState is the set of buttons a player holds on one frame.
//
// The representation is normalized at construction (sorted, deduped)
// so that equality and Encode are bit-exact regardless of how the
// script author ordered the tokens. Checksum and carry-forward logic
// both depend on that.
type InputState struct {
	tokens []string
}

// Neutral is the idle input: no buttons held. Its zero value is valid.
func Neutral() InputState {
	return InputState{}
}

// ParseInput parses a "+"-joined token list ("right+a") against the
// profile's button vocabulary. The empty string is the explicit
// neutral input, releasing everything a prior frame held.
func ParseInput(raw string, p *profile.Profile) (InputState, error) {
	if raw == "" {
		return Neutral(), nil
	}

	parts := strings.Split(raw, "+")
	seen := make(map[string]bool, len(parts))
	tokens := make([]string, 0, len(parts))
	for _, tok := range parts {
		if tok == "" {
			return InputState{}, fmt.Errorf("empty button token in %q", raw)
		}
		if !p.HasButton(tok) {
			return InputState{}, fmt.Errorf("unknown button token %q for profile %q", tok, p.Name)
		}
		if seen[tok] {
			return InputState{}, fmt.Errorf("duplicate button token %q in %q", tok, raw)
		}
		seen[tok] = true
		tokens = append(tokens, tok)
	}
	sort.Strings(tokens)
	return InputState{tokens: tokens}, nil
}

// Has reports whether the button is held.
func (s InputState) Has(tok string) bool {
	for _, t := range s.tokens {
		if t == tok {
			return true
		}
	}
	return false
}

// IsNeutral reports whether no buttons are held.
func (s InputState) IsNeutral() bool {
	return len(s.tokens) == 0
}

// Encode renders the canonical wire form: sorted tokens joined by "+",
// "" for neutral. Two equal InputStates always encode identically.
func (s InputState) Encode() string {
	return strings.Join(s.tokens, "+")
}

// Equal reports bit-exact equality of two input states.
func (s InputState) Equal(other InputState) bool {
	if len(s.tokens) != len(other.tokens) {
		return false
	}
	for i, t := range s.tokens {
		if other.tokens[i] != t {
			return false
		}
	}
	return true
}

// Tokens returns a copy of the held buttons in sorted order.
func (s InputState) Tokens() []string {
	out := make([]string, len(s.tokens))
	copy(out, s.tokens)
	return out
}
