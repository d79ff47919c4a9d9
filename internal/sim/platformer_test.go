package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/framecheck/framecheck/internal/profile"
	"github.com/framecheck/framecheck/internal/registry"
	"github.com/framecheck/framecheck/internal/script"
	"github.com/framecheck/framecheck/internal/value"
)

func inputs(t *testing.T, raws ...string) []script.InputState {
	t.Helper()
	prof, err := profile.Builtin().Find("nethercore")
	require.NoError(t, err)

	out := make([]script.InputState, len(raws))
	for i, raw := range raws {
		in, err := script.ParseInput(raw, prof)
		require.NoError(t, err)
		out[i] = in
	}
	return out
}

func TestJump_NewlyPressedOnly(t *testing.T) {
	p := New(1, 0)

	require.NoError(t, p.Step(inputs(t, "a")))
	assert.Equal(t, int64(-JumpImpulse+Gravity), p.players[0].velY)
	assert.False(t, p.players[0].grounded)

	// Holding the button after landing must not re-jump.
	for i := 0; i < 40; i++ {
		require.NoError(t, p.Step(inputs(t, "a")))
	}
	assert.True(t, p.players[0].grounded)
	assert.Equal(t, int64(0), p.players[0].velY)
}

func TestJump_HeldBugLosesPressEdge(t *testing.T) {
	p := New(1, 0, WithHeldJumpBug())

	// The faulty gate reads last tick's held flag, so the press frame
	// itself does nothing and velocity stays at zero.
	require.NoError(t, p.Step(inputs(t, "a")))
	assert.True(t, p.players[0].grounded)
	assert.Equal(t, int64(0), p.players[0].velY)

	// Still held one tick later: now it fires.
	require.NoError(t, p.Step(inputs(t, "a")))
	assert.False(t, p.players[0].grounded)
	assert.Equal(t, int64(-JumpImpulse+Gravity), p.players[0].velY)
}

func TestJump_HeldBugRejumpsOnLanding(t *testing.T) {
	p := New(1, 0, WithHeldJumpBug())

	require.NoError(t, p.Step(inputs(t, "a")))
	require.NoError(t, p.Step(inputs(t, "a")))
	require.False(t, p.players[0].grounded)

	// Land again, button still held: the bug re-jumps.
	for i := 0; i < 60 && !p.players[0].grounded; i++ {
		require.NoError(t, p.Step(inputs(t, "a")))
	}
	require.True(t, p.players[0].grounded)
	require.NoError(t, p.Step(inputs(t, "a")))
	assert.False(t, p.players[0].grounded)
}

func TestWallClockFault_AlwaysMovesPlayer(t *testing.T) {
	clean := New(1, 0)
	noisy := New(1, 0, WithWallClockFault())

	require.NoError(t, clean.Step(inputs(t, "")))
	require.NoError(t, noisy.Step(inputs(t, "")))

	// The nudge is at least one unit per tick, so the very first tick
	// separates a faulty instance from a clean one.
	assert.Equal(t, int64(0), clean.players[0].x)
	assert.Greater(t, noisy.players[0].x, int64(0))
}

func TestWalk_WallStopsPosition(t *testing.T) {
	p := New(1, 0)
	for i := 0; i < WallMaxX/WalkSpeed+10; i++ {
		require.NoError(t, p.Step(inputs(t, "right")))
	}
	assert.Equal(t, int64(WallMaxX), p.players[0].x)

	// Continued input keeps position pinned at the wall.
	require.NoError(t, p.Step(inputs(t, "right")))
	assert.Equal(t, int64(WallMaxX), p.players[0].x)
}

func TestStep_WrongInputCount(t *testing.T) {
	p := New(2, 0)
	err := p.Step(inputs(t, "right"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "simulation has 2")
}

func TestChecksum_DeterministicAcrossInstances(t *testing.T) {
	a := New(2, 42)
	b := New(2, 42)

	seq := [][]script.InputState{
		inputs(t, "right", "a"),
		inputs(t, "right+a", ""),
		inputs(t, "", "left"),
	}
	for _, in := range seq {
		require.NoError(t, a.Step(in))
		require.NoError(t, b.Step(in))
	}

	sumA, err := a.Checksum()
	require.NoError(t, err)
	sumB, err := b.Checksum()
	require.NoError(t, err)
	assert.Equal(t, sumA, sumB)
}

func TestChecksum_SeedChangesState(t *testing.T) {
	a := New(1, 1)
	b := New(1, 2)
	require.NoError(t, a.Step(inputs(t, "")))
	require.NoError(t, b.Step(inputs(t, "")))

	sumA, err := a.Checksum()
	require.NoError(t, err)
	sumB, err := b.Checksum()
	require.NoError(t, err)
	assert.NotEqual(t, sumA, sumB)
}

func TestChecksum_CoversHiddenState(t *testing.T) {
	// jumpHeld is not a registered debug variable but is part of the
	// checksum. Both players jump, then one keeps the button down while
	// airborne: every visible variable matches, only the hidden
	// edge-trigger state differs.
	a := New(1, 0)
	b := New(1, 0)

	require.NoError(t, a.Step(inputs(t, "a")))
	require.NoError(t, b.Step(inputs(t, "a")))
	require.NoError(t, a.Step(inputs(t, "a")))
	require.NoError(t, b.Step(inputs(t, "")))

	assert.Equal(t, a.players[0].x, b.players[0].x)
	assert.Equal(t, a.players[0].y, b.players[0].y)
	assert.Equal(t, a.players[0].velY, b.players[0].velY)

	sumA, err := a.Checksum()
	require.NoError(t, err)
	sumB, err := b.Checksum()
	require.NoError(t, err)
	assert.NotEqual(t, sumA, sumB)
}

func TestBind_RegistersDebugSurface(t *testing.T) {
	p := New(2, 0)
	vars := registry.NewVariables()
	acts := registry.NewActions()
	require.NoError(t, p.Bind(vars, acts))

	assert.True(t, vars.Has("player_x"))
	assert.True(t, vars.Has("velocity_y"))
	assert.True(t, vars.Has("grounded"))
	assert.True(t, vars.Has("p2_player_x"))
	assert.True(t, vars.Has("tick"))

	v, ok := vars.Get("grounded")
	require.True(t, ok)
	assert.Equal(t, value.Bool(true), v)

	require.NoError(t, acts.Invoke("teleport", map[string]value.Value{
		"player": value.Int(2),
		"x":      value.Int(100),
		"y":      value.Int(-50),
	}))
	v, _ = vars.Get("p2_player_x")
	assert.Equal(t, value.Int(100), v)
	v, _ = vars.Get("p2_grounded")
	assert.Equal(t, value.Bool(false), v)
}

func TestTeleport_PlayerOutOfRange(t *testing.T) {
	p := New(1, 0)
	vars := registry.NewVariables()
	acts := registry.NewActions()
	require.NoError(t, p.Bind(vars, acts))

	err := acts.Invoke("teleport", map[string]value.Value{
		"player": value.Int(3),
		"x":      value.Int(0),
		"y":      value.Int(0),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}
