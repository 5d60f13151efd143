// Package demoworld is a minimal deterministic platformer used to exercise
// pkg/netcode end to end: one flat ground plane, gravity, and horizontal
// movement, enough to drive the server loop, prediction/reconciliation, the
// tick smoother, interpolation, and lag compensation against a real (if
// small) simulation rather than a mock.
package demoworld

import (
	"math"

	"github.com/opd-ai/netplay/pkg/charcontroller"
	"github.com/opd-ai/netplay/pkg/collision"
	"github.com/opd-ai/netplay/pkg/netcode"
)

// Input is one tick's captured player command.
type Input struct {
	MoveX     float64
	Jump      bool
	TimestampMs int64
}

// InputTimestamp implements netcode.TimestampedInput.
func (i Input) InputTimestamp() int64 { return i.TimestampMs }

// PlayerState is one player's simulated kinematic state.
type PlayerState struct {
	charcontroller.State
}

// World holds every connected player's state plus the static level geometry
// every player collides against.
type World struct {
	Players   map[netcode.ClientID]PlayerState
	Platforms []charcontroller.Platform
}

// NewWorld builds a world with a single flat ground platform spanning
// [-1000, 1000] at y=0, wide enough for every scenario the package's tests
// drive.
func NewWorld() World {
	ground := collision.NewAABBCollider(-1000, 0, 2000, 32, collision.LayerTerrain, collision.LayerAll)
	return World{
		Players:   make(map[netcode.ClientID]PlayerState),
		Platforms: []charcontroller.Platform{{Collider: ground}},
	}
}

const (
	moveSpeed = 200.0 // units/sec
	jumpSpeed = 400.0 // units/sec
)

// Game adapts World/Input to netcode.Game. Its Simulate, AddPlayer,
// RemovePlayer, CreateIdleInput, and MergeInputs are pure functions of their
// arguments, the determinism invariant the whole pipeline depends on.
type Game struct {
	controller *charcontroller.Controller
}

// NewGame constructs a Game with the package's default controller feel.
func NewGame() *Game {
	return &Game{controller: charcontroller.New(charcontroller.DefaultConfig())}
}

// Simulate advances every player by one fixed tick.
func (g *Game) Simulate(world World, inputs map[netcode.ClientID]Input, tickIntervalMs float64) (World, error) {
	dtSeconds := tickIntervalMs / 1000.0

	next := World{
		Players:   make(map[netcode.ClientID]PlayerState, len(world.Players)),
		Platforms: world.Platforms,
	}
	for id, p := range world.Players {
		input, ok := inputs[id]
		if !ok {
			input = g.CreateIdleInput()
		}
		moved := g.controller.Move(p.State, input.MoveX, moveSpeed, input.Jump, jumpSpeed, world.Platforms, dtSeconds)
		next.Players[id] = PlayerState{State: moved}
	}
	return next, nil
}

// AddPlayer spawns a new player standing on the ground at x=0.
func (g *Game) AddPlayer(world World, id netcode.ClientID) World {
	next := World{
		Players:   make(map[netcode.ClientID]PlayerState, len(world.Players)+1),
		Platforms: world.Platforms,
	}
	for k, v := range world.Players {
		next.Players[k] = v
	}
	next.Players[id] = PlayerState{State: charcontroller.State{X: 0, Y: -0.5, Grounded: true, GroundNormalY: -1}}
	return next
}

// RemovePlayer deletes a player's state.
func (g *Game) RemovePlayer(world World, id netcode.ClientID) World {
	next := World{
		Players:   make(map[netcode.ClientID]PlayerState, len(world.Players)),
		Platforms: world.Platforms,
	}
	for k, v := range world.Players {
		if k == id {
			continue
		}
		next.Players[k] = v
	}
	return next
}

// CreateIdleInput returns the no-op input applied when a client sends
// nothing for a tick.
func (g *Game) CreateIdleInput() Input {
	return Input{}
}

// MergeInputs folds every input captured by one client within a tick into
// one effective input: last-wins for MoveX, OR-accumulated for Jump. Must be
// idempotent on a single-element slice, since the client predictor always
// applies one input at a time.
func (g *Game) MergeInputs(inputs []Input) Input {
	if len(inputs) == 0 {
		return g.CreateIdleInput()
	}
	merged := inputs[0]
	for _, in := range inputs[1:] {
		merged.MoveX = in.MoveX
		merged.Jump = merged.Jump || in.Jump
		merged.TimestampMs = in.TimestampMs
	}
	return merged
}

// PredictableState is the portion of World a client predicts locally: just
// its own player, not the whole roster. Decided this way since this demo
// game has no player-vs-player collision to account for.
type PredictableState struct {
	Self charcontroller.State
}

// Scope adapts World/Input/PredictableState to netcode.PredictionScope.
type Scope struct {
	controller *charcontroller.Controller
	platforms  []charcontroller.Platform
}

// NewScope constructs a Scope sharing the same controller feel as Game, and
// a fixed copy of the level geometry (static for this demo, so it can be
// captured once rather than threaded through every call).
func NewScope(platforms []charcontroller.Platform) *Scope {
	return &Scope{controller: charcontroller.New(charcontroller.DefaultConfig()), platforms: platforms}
}

// ExtractPredictable pulls the local player's state out of the world.
func (s *Scope) ExtractPredictable(world World, localID netcode.ClientID) PredictableState {
	return PredictableState{Self: world.Players[localID].State}
}

// SimulatePredicted advances the local player by one input, identically to
// how Game.Simulate treats that client's effective input.
func (s *Scope) SimulatePredicted(partial PredictableState, input Input, tickIntervalMs float64, localID netcode.ClientID) PredictableState {
	dtSeconds := tickIntervalMs / 1000.0
	moved := s.controller.Move(partial.Self, input.MoveX, moveSpeed, input.Jump, jumpSpeed, s.platforms, dtSeconds)
	return PredictableState{Self: moved}
}

// MergePrediction overlays the locally predicted player on top of the
// authoritative world, leaving every other player as the server reported.
func (s *Scope) MergePrediction(serverWorld World, predicted PredictableState, localID netcode.ClientID) World {
	next := World{
		Players:   make(map[netcode.ClientID]PlayerState, len(serverWorld.Players)),
		Platforms: serverWorld.Platforms,
	}
	for k, v := range serverWorld.Players {
		next.Players[k] = v
	}
	next.Players[localID] = PlayerState{State: predicted.Self}
	return next
}

// CreateIdleInput mirrors Game.CreateIdleInput for the predictor's own use.
func (s *Scope) CreateIdleInput() Input {
	return Input{}
}

// MoveClaim is a client's claimed displacement for one lag-compensated
// action, e.g. a dash or attack lunge resolved against the world as the
// server reconstructs it at the client's estimated time of intent.
type MoveClaim struct {
	DX, DY float64
}

// MoveResult is the outcome of validating a MoveClaim.
type MoveResult struct {
	Accepted bool
}

// ValidateMoveClaim is a lag-compensated action validator suitable for
// passing to netcode.NewServer: it checks a claimed displacement against the
// historical world reconstructed at the client's estimated time of intent,
// rejecting displacements longer than moveSpeed*1.5 units (the speed-hack
// check this package's tests exercise), and rejecting a
// destination that overlaps solid terrain (the no-clip check). Generalizes
// pkg/network/anticheat.go's ValidateMovement check from a hardcoded speed
// constant to the package's moveSpeed and an explicit tolerance.
func ValidateMoveClaim(historical World, clientID netcode.ClientID, claim MoveClaim) (bool, MoveResult) {
	const toleranceFactor = 1.5
	maxDist := moveSpeed * toleranceFactor
	dist := math.Sqrt(claim.DX*claim.DX + claim.DY*claim.DY)
	if dist > maxDist {
		return false, MoveResult{Accepted: false}
	}

	player, ok := historical.Players[clientID]
	if !ok {
		return true, MoveResult{Accepted: true}
	}

	const probeSize = 1.0
	dest := &collision.Collider{
		Layer:   collision.LayerPlayer,
		Mask:    collision.LayerAll,
		X:       player.X + claim.DX - probeSize/2,
		Y:       player.Y + claim.DY - probeSize/2,
		W:       probeSize,
		H:       probeSize,
		Enabled: true,
	}
	for _, p := range historical.Platforms {
		if p.OneWay {
			continue
		}
		if collision.CanCollide(dest, p.Collider) && collision.Overlaps(dest, p.Collider) {
			return false, MoveResult{Accepted: false}
		}
	}
	return true, MoveResult{Accepted: true}
}
