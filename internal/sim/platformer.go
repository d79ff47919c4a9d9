// Package sim provides a reference host simulation: a miniature
// fixed-point platformer with gravity, edge-triggered jumping, walking,
// and wall collision.
//
// It exists for three reasons: the CLI needs a target to demo against,
// the engine's scenario tests need real physics to assert on, and the
// sync-test comparator needs a host whose determinism can be broken on
// purpose. The fault options (WithHeldJumpBug, WithWallClockFault)
// reproduce the two classic bug shapes: jump logic reading the stale
// "button held" flag instead of the fresh press edge, and state fed
// from wall-clock time.
//
// All arithmetic is int64 fixed point. There are no floats anywhere in
// simulation state; that is what makes cross-instance checksums
// byte-exact.
package sim

import (
	"fmt"
	"time"

	"github.com/framecheck/framecheck/internal/registry"
	"github.com/framecheck/framecheck/internal/script"
	"github.com/framecheck/framecheck/internal/value"
)

// Tuning constants, in fixed-point units (256 units = one pixel).
const (
	Gravity     = 32   // downward velocity gained per airborne tick
	JumpImpulse = 512  // upward velocity on a newly pressed jump
	WalkSpeed   = 64   // horizontal velocity while walking
	GroundY     = 0    // floor; positive Y is down
	WallMinX    = 0    // left wall
	WallMaxX    = 4096 // right wall
)

type playerState struct {
	x, y     int64
	velX     int64
	velY     int64
	grounded bool
	jumpHeld bool // previous-tick jump state, for edge triggering
}

// Platformer is a deterministic host simulation.
type Platformer struct {
	tick    int64
	rng     uint64 // splitmix64 stream seeded by the script seed
	players []playerState

	jumpButton string
	heldJump   bool // fault: jump while held instead of newly pressed
	wallClock  bool // fault: mix wall-clock bits into position
}

// Option configures a Platformer.
type Option func(*Platformer)

// WithJumpButton sets the token that triggers a jump. Default "a"
// (the nethercore convention); zx scripts use "fire".
func WithJumpButton(tok string) Option {
	return func(p *Platformer) { p.jumpButton = tok }
}

// WithHeldJumpBug gates jumping on the "button held" flag stored at
// the end of the previous tick instead of the fresh press edge. The
// press frame itself never jumps (velocity stays stuck at zero), a
// held button fires one tick late, and it re-fires on every grounded
// tick the button stays down.
func WithHeldJumpBug() Option {
	return func(p *Platformer) { p.heldJump = true }
}

// WithWallClockFault reads the wall clock every tick and nudges
// player 1's position by at least one unit, so a faulty instance
// splits from a clean one on the first tick and two faulty instances
// drift apart from each other.
func WithWallClockFault() Option {
	return func(p *Platformer) { p.wallClock = true }
}

// New creates a simulation with the given player count and seed.
func New(players int, seed int64, opts ...Option) *Platformer {
	p := &Platformer{
		rng:        splitmix64Seed(uint64(seed)),
		players:    make([]playerState, players),
		jumpButton: "a",
	}
	for i := range p.players {
		p.players[i] = playerState{y: GroundY, grounded: true}
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Bind registers the debug surface on the instance's registries:
// per-player position/velocity/grounded variables plus the teleport
// and set_velocity admin actions. Player 1's variables are unprefixed
// (player_x, velocity_y, ...); later players get a p<N>_ prefix.
func (p *Platformer) Bind(vars *registry.Variables, acts *registry.Actions) error {
	if err := vars.Register("tick", func() value.Value { return value.Int(p.tick) }); err != nil {
		return err
	}
	for i := range p.players {
		idx := i
		prefix := ""
		if i > 0 {
			prefix = fmt.Sprintf("p%d_", i+1)
		}
		regs := []struct {
			name string
			acc  registry.Accessor
		}{
			{prefix + "player_x", func() value.Value { return value.Int(p.players[idx].x) }},
			{prefix + "player_y", func() value.Value { return value.Int(p.players[idx].y) }},
			{prefix + "velocity_x", func() value.Value { return value.Int(p.players[idx].velX) }},
			{prefix + "velocity_y", func() value.Value { return value.Int(p.players[idx].velY) }},
			{prefix + "grounded", func() value.Value { return value.Bool(p.players[idx].grounded) }},
		}
		for _, r := range regs {
			if err := vars.Register(r.name, r.acc); err != nil {
				return err
			}
		}
	}

	if err := acts.Register(registry.ActionSpec{
		Name: "teleport",
		Params: map[string]value.Kind{
			"player": value.KindInt,
			"x":      value.KindInt,
			"y":      value.KindInt,
		},
	}, p.teleport); err != nil {
		return err
	}
	return acts.Register(registry.ActionSpec{
		Name: "set_velocity",
		Params: map[string]value.Kind{
			"player": value.KindInt,
			"vx":     value.KindInt,
			"vy":     value.KindInt,
		},
	}, p.setVelocity)
}

func (p *Platformer) playerParam(params map[string]value.Value) (*playerState, error) {
	n := int64(params["player"].(value.Int))
	if n < 1 || int(n) > len(p.players) {
		return nil, fmt.Errorf("player %d out of range (simulation has %d)", n, len(p.players))
	}
	return &p.players[n-1], nil
}

func (p *Platformer) teleport(params map[string]value.Value) error {
	st, err := p.playerParam(params)
	if err != nil {
		return err
	}
	st.x = int64(params["x"].(value.Int))
	st.y = int64(params["y"].(value.Int))
	st.grounded = st.y >= GroundY
	return nil
}

func (p *Platformer) setVelocity(params map[string]value.Value) error {
	st, err := p.playerParam(params)
	if err != nil {
		return err
	}
	st.velX = int64(params["vx"].(value.Int))
	st.velY = int64(params["vy"].(value.Int))
	if st.velY < 0 {
		st.grounded = false
	}
	return nil
}

// Step advances one tick. Implements engine.Host.
func (p *Platformer) Step(inputs []script.InputState) error {
	if len(inputs) != len(p.players) {
		return fmt.Errorf("got inputs for %d players, simulation has %d", len(inputs), len(p.players))
	}

	p.tick++
	p.rng = splitmix64(p.rng)

	for i := range p.players {
		st := &p.players[i]
		in := inputs[i]

		switch {
		case in.Has("left") && !in.Has("right"):
			st.velX = -WalkSpeed
		case in.Has("right") && !in.Has("left"):
			st.velX = WalkSpeed
		default:
			st.velX = 0
		}

		held := in.Has(p.jumpButton)
		trigger := held && !st.jumpHeld
		if p.heldJump {
			// Faulty gate: last tick's held state, press edge lost.
			trigger = st.jumpHeld
		}
		if trigger && st.grounded {
			st.velY = -JumpImpulse
			st.grounded = false
		}
		st.jumpHeld = held

		if !st.grounded {
			st.velY += Gravity
		}

		st.x += st.velX
		if st.x < WallMinX {
			st.x = WallMinX
		}
		if st.x > WallMaxX {
			st.x = WallMaxX
		}

		st.y += st.velY
		if st.y >= GroundY {
			st.y = GroundY
			st.velY = 0
			st.grounded = true
		}
	}

	if p.wallClock {
		// Nondeterminism on purpose; see WithWallClockFault.
		p.players[0].x += 1 + time.Now().UnixNano()&1
	}

	return nil
}

// Checksum hashes the complete simulation state: tick counter, PRNG
// stream, and every per-player field including ones not exposed as
// debug variables (jumpHeld). Implements engine.Host.
func (p *Platformer) Checksum() (string, error) {
	players := make([]any, len(p.players))
	for i, st := range p.players {
		players[i] = map[string]any{
			"x":         st.x,
			"y":         st.y,
			"vel_x":     st.velX,
			"vel_y":     st.velY,
			"grounded":  st.grounded,
			"jump_held": st.jumpHeld,
		}
	}
	return value.Checksum(value.DomainState, map[string]any{
		"tick":    p.tick,
		"rng":     int64(p.rng),
		"players": players,
	})
}

// splitmix64 is the PRNG stream used for any simulation randomness.
// Deterministic given the seed, and part of the checksummed state.
func splitmix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	z := x
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

func splitmix64Seed(seed uint64) uint64 {
	return splitmix64(seed)
}
