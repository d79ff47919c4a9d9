package script

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/framecheck/framecheck/internal/profile"
	"github.com/framecheck/framecheck/internal/registry"
	"github.com/framecheck/framecheck/internal/value"
)

// testRegistries builds the registries a minimal platformer-ish host
// would expose.
func testRegistries(t *testing.T) (*registry.Variables, *registry.Actions) {
	t.Helper()

	vars := registry.NewVariables()
	vars.MustRegister("velocity_y", func() value.Value { return value.Int(0) })
	vars.MustRegister("player_x", func() value.Value { return value.Int(0) })
	vars.MustRegister("grounded", func() value.Value { return value.Bool(true) })

	acts := registry.NewActions()
	acts.MustRegister(registry.ActionSpec{
		Name:   "teleport",
		Params: map[string]value.Kind{"x": value.KindInt, "y": value.KindInt},
	}, func(map[string]value.Value) error { return nil })

	return vars, acts
}

const jumpScript = `
version: 1
console_profile: nethercore
seed: 7
players: 1
frames:
  - f: 0
    p1: ""
    snap: true
  - f: 1
    p1: a
    snap: true
    assert: "$velocity_y < 0"
  - f: 5
    action: teleport
    action_params: {x: 640, y: 0}
`

func TestLoad_JumpScript(t *testing.T) {
	vars, acts := testRegistries(t)
	s, err := Load([]byte(jumpScript), profile.Builtin(), vars, acts)
	require.NoError(t, err)

	assert.Equal(t, 1, s.Version)
	assert.Equal(t, "nethercore", s.Profile)
	assert.Equal(t, int64(7), s.Seed)
	assert.Equal(t, 1, s.Players)
	require.Len(t, s.Frames, 3)
	assert.Equal(t, 5, s.MaxFrame())

	f0 := s.Frames[0]
	assert.Equal(t, 0, f0.Number)
	assert.True(t, f0.Snapshot)
	require.Contains(t, f0.Inputs, 1)
	assert.True(t, f0.Inputs[1].IsNeutral())

	f1 := s.Frames[1]
	assert.Equal(t, "a", f1.Inputs[1].Encode())
	require.NotNil(t, f1.Assert)
	assert.Equal(t, "velocity_y", f1.Assert.Var)

	f5 := s.Frames[2]
	require.NotNil(t, f5.Action)
	assert.Equal(t, "teleport", f5.Action.Name)
	assert.Equal(t, value.Int(640), f5.Action.Params["x"])
}

func loadErr(t *testing.T, src string) *ParseError {
	t.Helper()
	vars, acts := testRegistries(t)
	_, err := Load([]byte(src), profile.Builtin(), vars, acts)
	require.Error(t, err)
	perr, ok := err.(*ParseError)
	require.True(t, ok, "want *ParseError, got %T: %v", err, err)
	return perr
}

func TestLoad_NonIncreasingFrames(t *testing.T) {
	perr := loadErr(t, `
version: 1
console_profile: nethercore
seed: 0
players: 1
frames:
  - {f: 3}
  - {f: 3}
`)
	assert.Equal(t, 3, perr.Frame)
	assert.Equal(t, "f", perr.Field)
	assert.Contains(t, perr.Msg, "strictly increasing")
}

func TestLoad_UnknownButton(t *testing.T) {
	perr := loadErr(t, `
version: 1
console_profile: nethercore
seed: 0
players: 1
frames:
  - {f: 0, p1: fire}
`)
	assert.Equal(t, 0, perr.Frame)
	assert.Equal(t, "p1", perr.Field)
}

func TestLoad_UnregisteredAssertVariable(t *testing.T) {
	perr := loadErr(t, `
version: 1
console_profile: nethercore
seed: 0
players: 1
frames:
  - {f: 0, assert: "$mana > 0"}
`)
	assert.Equal(t, "assert", perr.Field)
	assert.Contains(t, perr.Msg, "unregistered variable $mana")
}

func TestLoad_UnregisteredAction(t *testing.T) {
	perr := loadErr(t, `
version: 1
console_profile: nethercore
seed: 0
players: 1
frames:
  - {f: 0, action: warp}
`)
	assert.Equal(t, "action", perr.Field)
	assert.Contains(t, perr.Msg, `unregistered debug action "warp"`)
}

func TestLoad_ActionParamShapeMismatch(t *testing.T) {
	perr := loadErr(t, `
version: 1
console_profile: nethercore
seed: 0
players: 1
frames:
  - f: 0
    action: teleport
    action_params: {x: 1}
`)
	assert.Equal(t, "action_params", perr.Field)
	assert.Contains(t, perr.Msg, `missing parameter "y"`)
}

func TestLoad_FloatParamRejected(t *testing.T) {
	perr := loadErr(t, `
version: 1
console_profile: nethercore
seed: 0
players: 1
frames:
  - f: 0
    action: teleport
    action_params: {x: 1.5, y: 0}
`)
	assert.Contains(t, perr.Msg, "floats are not allowed")
}

func TestLoad_PlayerOutOfRange(t *testing.T) {
	perr := loadErr(t, `
version: 1
console_profile: nethercore
seed: 0
players: 1
frames:
  - {f: 0, p2: a}
`)
	assert.Equal(t, "p2", perr.Field)
	assert.Contains(t, perr.Msg, "out of range")
}

func TestLoad_TooManyPlayersForProfile(t *testing.T) {
	perr := loadErr(t, `
version: 1
console_profile: zx
seed: 0
players: 3
frames: []
`)
	assert.Equal(t, "players", perr.Field)
	assert.Contains(t, perr.Msg, "exceeds profile")
}

func TestLoad_UnknownFrameField(t *testing.T) {
	perr := loadErr(t, `
version: 1
console_profile: nethercore
seed: 0
players: 1
frames:
  - {f: 0, snapshot: true}
`)
	assert.Equal(t, "snapshot", perr.Field)
	assert.Contains(t, perr.Msg, "unknown frame field")
}

func TestLoad_UnknownTopLevelField(t *testing.T) {
	vars, acts := testRegistries(t)
	_, err := Load([]byte(`
version: 1
console_profile: nethercore
seed: 0
players: 1
speed: fast
frames: []
`), profile.Builtin(), vars, acts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed YAML")
}

func TestLoad_UnsupportedVersion(t *testing.T) {
	perr := loadErr(t, `
version: 2
console_profile: nethercore
seed: 0
players: 1
frames: []
`)
	assert.Equal(t, "version", perr.Field)
}

func TestLoad_MissingFrameNumber(t *testing.T) {
	perr := loadErr(t, `
version: 1
console_profile: nethercore
seed: 0
players: 1
frames:
  - {snap: true}
`)
	assert.Contains(t, perr.Msg, "missing required field f")
}

func TestLoad_CompoundAssertionRejected(t *testing.T) {
	perr := loadErr(t, `
version: 1
console_profile: nethercore
seed: 0
players: 1
frames:
  - {f: 0, assert: "$player_x > 0 && $velocity_y < 0"}
`)
	assert.Contains(t, perr.Msg, "boolean connectives are not supported")
}

func TestFingerprint_StableAndInputSensitive(t *testing.T) {
	vars, acts := testRegistries(t)
	s1, err := Load([]byte(jumpScript), profile.Builtin(), vars, acts)
	require.NoError(t, err)
	s2, err := Load([]byte(jumpScript), profile.Builtin(), vars, acts)
	require.NoError(t, err)

	fp1, err := s1.Fingerprint()
	require.NoError(t, err)
	fp2, err := s2.Fingerprint()
	require.NoError(t, err)
	assert.Equal(t, fp1, fp2)

	s2.Seed = 8
	fp3, err := s2.Fingerprint()
	require.NoError(t, err)
	assert.NotEqual(t, fp1, fp3)
}
