package script

import (
	"bytes"
	"fmt"
	"os"
	"regexp"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/framecheck/framecheck/internal/expr"
	"github.com/framecheck/framecheck/internal/profile"
	"github.com/framecheck/framecheck/internal/registry"
	"github.com/framecheck/framecheck/internal/value"
)

// scriptDoc is the top-level YAML shape. Frames stay raw nodes because
// their p<N> keys are dynamic; they are parsed field by field below.
type scriptDoc struct {
	Version        int         `yaml:"version"`
	ConsoleProfile string      `yaml:"console_profile"`
	Seed           int64       `yaml:"seed"`
	Players        int         `yaml:"players"`
	Frames         []yaml.Node `yaml:"frames"`
}

var playerKeyRE = regexp.MustCompile(`^p([1-9][0-9]*)$`)

// Load parses and validates script source. The registries are inputs,
// not an afterthought: every assertion variable and every debug action
// the script names must already be registered, so a script/simulation
// mismatch surfaces here and never mid-run.
func Load(data []byte, profiles *profile.Set, vars *registry.Variables, acts *registry.Actions) (*Script, error) {
	var doc scriptDoc
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, docErr("", "malformed YAML: %v", err)
	}

	if doc.Version != CurrentVersion {
		return nil, docErr("version", "unsupported script version %d (loader supports %d)", doc.Version, CurrentVersion)
	}
	if doc.ConsoleProfile == "" {
		return nil, docErr("console_profile", "console_profile is required")
	}
	prof, err := profiles.Find(doc.ConsoleProfile)
	if err != nil {
		return nil, docErr("console_profile", "%v", err)
	}
	if doc.Players < 1 {
		return nil, docErr("players", "players must be at least 1, got %d", doc.Players)
	}
	if doc.Players > prof.MaxPlayers {
		return nil, docErr("players", "players %d exceeds profile %q max of %d",
			doc.Players, prof.Name, prof.MaxPlayers)
	}

	s := &Script{
		Version: doc.Version,
		Profile: doc.ConsoleProfile,
		Seed:    doc.Seed,
		Players: doc.Players,
	}

	lastFrame := -1
	for i := range doc.Frames {
		frame, err := parseFrame(&doc.Frames[i], s, prof, vars, acts)
		if err != nil {
			return nil, err
		}
		if frame.Number <= lastFrame {
			return nil, frameErr(frame.Number, "f",
				"frame numbers must be strictly increasing (previous was %d)", lastFrame)
		}
		lastFrame = frame.Number
		s.Frames = append(s.Frames, *frame)
	}

	return s, nil
}

// LoadFile reads and loads a script from disk.
func LoadFile(path string, profiles *profile.Set, vars *registry.Variables, acts *registry.Actions) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading script: %w", err)
	}
	return Load(data, profiles, vars, acts)
}

func parseFrame(node *yaml.Node, s *Script, prof *profile.Profile, vars *registry.Variables, acts *registry.Actions) (*Frame, error) {
	if node.Kind != yaml.MappingNode {
		return nil, docErr("frames", "frame entry must be a mapping (line %d)", node.Line)
	}

	frame := &Frame{Number: -1, Inputs: make(map[int]InputState)}
	var (
		actionName   string
		actionParams map[string]value.Value
		hasParams    bool
	)

	// Mapping nodes store alternating key/value children.
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode, valNode := node.Content[i], node.Content[i+1]
		key := keyNode.Value

		switch {
		case key == "f":
			var n int
			if err := valNode.Decode(&n); err != nil {
				return nil, docErr("f", "frame number must be an integer (line %d)", valNode.Line)
			}
			if n < 0 {
				return nil, frameErr(n, "f", "frame number must be non-negative")
			}
			frame.Number = n

		case key == "snap":
			if err := valNode.Decode(&frame.Snapshot); err != nil {
				return nil, frameErr(frame.Number, "snap", "must be a boolean")
			}

		case key == "assert":
			var text string
			if err := valNode.Decode(&text); err != nil {
				return nil, frameErr(frame.Number, "assert", "must be a string")
			}
			e, err := expr.Parse(text)
			if err != nil {
				return nil, frameErr(frame.Number, "assert", "%v", err)
			}
			if !vars.Has(e.Var) {
				return nil, frameErr(frame.Number, "assert",
					"assertion references unregistered variable $%s", e.Var)
			}
			frame.Assert = e

		case key == "action":
			if err := valNode.Decode(&actionName); err != nil {
				return nil, frameErr(frame.Number, "action", "must be a string")
			}

		case key == "action_params":
			var raw map[string]any
			if err := valNode.Decode(&raw); err != nil {
				return nil, frameErr(frame.Number, "action_params", "must be a mapping of scalars")
			}
			actionParams = make(map[string]value.Value, len(raw))
			for pname, pval := range raw {
				v, err := value.FromAny(pval)
				if err != nil {
					return nil, frameErr(frame.Number, "action_params", "parameter %q: %v", pname, err)
				}
				actionParams[pname] = v
			}
			hasParams = true

		case playerKeyRE.MatchString(key):
			player, _ := strconv.Atoi(key[1:])
			if player > s.Players {
				return nil, frameErr(frame.Number, key,
					"player %d out of range (script declares %d players)", player, s.Players)
			}
			var raw string
			if err := valNode.Decode(&raw); err != nil {
				return nil, frameErr(frame.Number, key, "input must be a string of +-joined tokens")
			}
			in, err := ParseInput(raw, prof)
			if err != nil {
				return nil, frameErr(frame.Number, key, "%v", err)
			}
			frame.Inputs[player] = in

		default:
			return nil, frameErr(frame.Number, key, "unknown frame field (line %d)", keyNode.Line)
		}
	}

	if frame.Number < 0 {
		return nil, docErr("frames", "frame entry missing required field f (line %d)", node.Line)
	}

	if hasParams && actionName == "" {
		return nil, frameErr(frame.Number, "action_params", "action_params given without action")
	}
	if actionName != "" {
		if _, ok := acts.Spec(actionName); !ok {
			return nil, frameErr(frame.Number, "action", "unregistered debug action %q", actionName)
		}
		if actionParams == nil {
			actionParams = map[string]value.Value{}
		}
		if err := acts.ValidateParams(actionName, actionParams); err != nil {
			return nil, frameErr(frame.Number, "action_params", "%v", err)
		}
		frame.Action = &ActionCall{Name: actionName, Params: actionParams}
	}

	return frame, nil
}
