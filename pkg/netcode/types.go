// Package netcode implements a server-authoritative synchronization pipeline for
// deterministic tick-based multiplayer games: a fixed-timestep server loop with
// per-client input queueing, client-side prediction and reconciliation, a
// FishNet-style tick smoother, and a lag compensator for historical action
// validation. The package is game-agnostic: callers supply their own world,
// input, and action types and a pure simulation step through the Game and
// PredictionScope capability sets.
package netcode

// ClientID identifies a connected client. The wire protocol carries it as a
// string (see the "join"/"leave" messages in messages.go); the netcode core
// never interprets its contents.
type ClientID string

// Seq is a per-client monotone input sequence number, assigned at capture
// time by the client's InputBuffer. Treated as a 64-bit value throughout;
// wraparound is not handled.
type Seq = uint64

// Tick is a monotone, non-negative server simulation step counter.
type Tick = uint64

// TimestampedInput is the capability every caller-defined input type must
// implement: a monotone client wall-clock capture time in milliseconds.
// Inputs are immutable after capture.
type TimestampedInput interface {
	InputTimestamp() int64
}

// Game is the capability set a caller implements to plug a world, input, and
// simulation step into the server loop. Simulate must be a pure function of
// its arguments: identical (world, inputs, dt) must yield identical results,
// on every platform the game ships on (the determinism invariant the whole
// pipeline rests on).
type Game[W any, I TimestampedInput] interface {
	// Simulate advances world by exactly one fixed tick given the merged
	// per-client input map. tickIntervalMs is always the server's
	// configured fixed delta; an implementation must never derive dt from
	// wall-clock or message timestamps.
	Simulate(world W, inputs map[ClientID]I, tickIntervalMs float64) (W, error)

	// AddPlayer and RemovePlayer are called by the server loop when a
	// client connects or disconnects.
	AddPlayer(world W, id ClientID) W
	RemovePlayer(world W, id ClientID) W

	// CreateIdleInput returns the input applied for a client that produced
	// no input this tick.
	CreateIdleInput() I

	// MergeInputs reduces all inputs captured by one client within a
	// single tick into the effective input handed to Simulate. The package
	// ships no default merger; the usual policy is last-wins for continuous
	// fields and OR-accumulation for edge triggers. It must be idempotent
	// on a single-element slice so the client predictor (which always
	// applies one input at a time) and the server (which may merge
	// several) agree.
	MergeInputs(inputs []I) I
}

// PredictionScope is the capability set that lets a client predict all, part,
// or none of the world. A game may choose to predict only the local player
// (minimal, cheap, common case) or all players (needed when local prediction
// must account for collision against other entities); both are valid and the
// choice is per-game, not global.
type PredictionScope[W any, I TimestampedInput, P any] interface {
	// ExtractPredictable pulls the portion of world the predictor is
	// responsible for simulating locally.
	ExtractPredictable(world W, localID ClientID) P

	// SimulatePredicted advances the partial world by one input using the
	// same fixed tickIntervalMs the server uses. Must agree bit-for-bit
	// with Game.Simulate's treatment of localID's effective input.
	SimulatePredicted(partial P, input I, tickIntervalMs float64, localID ClientID) P

	// MergePrediction folds predicted partial state back over an
	// authoritative server world, producing the world the game renders.
	MergePrediction(serverWorld W, predicted P, localID ClientID) W

	// CreateIdleInput mirrors Game.CreateIdleInput for the predictor's own
	// use (e.g. replaying a tick with no captured input).
	CreateIdleInput() I
}

// Clock abstracts the wall clock so tests can drive time deterministically;
// only the concrete, long-running server/client entry points should use
// RealClock.
type Clock interface {
	NowMs() int64
}

// RealClock reads the operating system wall clock.
type RealClock struct{}

// NowMs returns the current wall-clock time in milliseconds.
func (RealClock) NowMs() int64 {
	return nowMs()
}
