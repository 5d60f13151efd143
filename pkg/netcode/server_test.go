package netcode

import (
	"errors"
	"testing"
)

// testPlayer is one player's kinematic state in the gravity/movement test
// game used across the netcode package's server-loop tests.
type testPlayer struct {
	X, Y, VelY float64
	Grounded   bool
}

// testWorld is a minimal deterministic world: a flat map of player state,
// no level geometry. Good enough to exercise the tick algorithm, snapshot
// ring, and reconciliation without pulling in pkg/charcontroller.
type testWorld struct {
	Players map[ClientID]testPlayer
}

func cloneTestWorld(w testWorld) testWorld {
	next := testWorld{Players: make(map[ClientID]testPlayer, len(w.Players))}
	for k, v := range w.Players {
		next.Players[k] = v
	}
	return next
}

const (
	testGravity   = 800.0 // units/sec^2
	testMoveSpeed = 100.0 // units/sec
)

// testGame is a pure Simulate implementation: gravity applies to airborne
// players, MoveX scales horizontal velocity directly. Identical arguments
// always yield identical results, the determinism invariant every other
// property in this file rests on.
type testGame struct{}

// stepPlayer advances one player's kinematic state by one fixed tick. Both
// testGame.Simulate (server-side, all players) and testScope.SimulatePredicted
// (client-side, local player only) call this same function, so prediction
// and server simulation agree bit-for-bit given identical input — the
// property TestReconciler_PredictionEquivalence exercises.
func stepPlayer(p testPlayer, in tsInput2, dt float64) testPlayer {
	if !p.Grounded {
		p.VelY += -testGravity * dt
		p.Y += p.VelY * dt
	}
	p.X += in.MoveX * testMoveSpeed * dt
	return p
}

func (testGame) Simulate(world testWorld, inputs map[ClientID]tsInput2, tickIntervalMs float64) (testWorld, error) {
	dt := tickIntervalMs / 1000.0
	next := cloneTestWorld(world)
	for id, p := range next.Players {
		in, ok := inputs[id]
		if !ok {
			in = testGame{}.CreateIdleInput()
		}
		next.Players[id] = stepPlayer(p, in, dt)
	}
	return next, nil
}

func (testGame) AddPlayer(world testWorld, id ClientID) testWorld {
	next := cloneTestWorld(world)
	next.Players[id] = testPlayer{Grounded: false}
	return next
}

func (testGame) RemovePlayer(world testWorld, id ClientID) testWorld {
	next := cloneTestWorld(world)
	delete(next.Players, id)
	return next
}

func (testGame) CreateIdleInput() tsInput2 { return tsInput2{} }

func (testGame) MergeInputs(inputs []tsInput2) tsInput2 {
	if len(inputs) == 0 {
		return tsInput2{}
	}
	merged := inputs[0]
	for _, in := range inputs[1:] {
		merged.MoveX = in.MoveX
		merged.Jump = merged.Jump || in.Jump
		merged.Ts = in.Ts
	}
	return merged
}

// tsInput2 is the test suite's input type (distinct name from tsInput in
// inputqueue_test.go, which lacks a Jump field).
type tsInput2 struct {
	MoveX float64
	Jump  bool
	Ts    int64
}

func (i tsInput2) InputTimestamp() int64 { return i.Ts }

func newTestServerT(t *testing.T, historySize int) *Server[testWorld, tsInput2, struct{}, struct{}] {
	t.Helper()
	cfg := ServerConfig{TickRate: 20, SnapshotHistorySize: historySize, MaxRewindMs: 200}
	srv, err := NewServer[testWorld, tsInput2, struct{}, struct{}](cfg, testGame{}, testWorld{Players: map[ClientID]testPlayer{}}, nil, NewManualClock(0))
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return srv
}

func TestServer_NewServerFailsFastOnNilGame(t *testing.T) {
	_, err := NewServer[testWorld, tsInput2, struct{}, struct{}](DefaultServerConfig(), nil, testWorld{}, nil, nil)
	if !errors.Is(err, ErrNilGame) {
		t.Fatalf("NewServer with nil game = %v, want ErrNilGame", err)
	}
}

func TestServer_NewServerFailsFastOnInvalidConfig(t *testing.T) {
	cfg := DefaultServerConfig()
	cfg.TickRate = 0
	_, err := NewServer[testWorld, tsInput2, struct{}, struct{}](cfg, testGame{}, testWorld{}, nil, nil)
	if !errors.Is(err, ErrInvalidTickRate) {
		t.Fatalf("NewServer with invalid config = %v, want ErrInvalidTickRate", err)
	}
}

// TestServer_Determinism is the paper-worthy invariant: simulating the same
// input sequence from the same base world twice must yield identical state
// every time.
func TestServer_Determinism(t *testing.T) {
	run := func() testWorld {
		srv := newTestServerT(t, 16)
		srv.AddClient("p1")
		for tick := 0; tick < 5; tick++ {
			srv.OnClientInput("p1", tsInput2{MoveX: 1, Ts: int64(1000 + tick*50)}, Seq(tick))
			if _, err := srv.Tick(); err != nil {
				t.Fatalf("Tick: %v", err)
			}
		}
		return srv.World()
	}

	w1, w2 := run(), run()
	p1, p2 := w1.Players["p1"], w2.Players["p1"]
	if p1 != p2 {
		t.Fatalf("two identical runs diverged: %+v vs %+v", p1, p2)
	}
}

// TestServer_MultiClientGravityIsolation mirrors §8 scenario 2: two
// airborne players sending idle input, one tick at dt=50ms, gravity
// -800 u/s^2 → vy=-40, y falls by 2 units (y += vy*dt = -40*0.05 = -2).
// Gravity must apply exactly once per player, independent of how many other
// clients are connected.
func TestServer_MultiClientGravityIsolation(t *testing.T) {
	cfg := ServerConfig{TickRate: 20, SnapshotHistorySize: 4, MaxRewindMs: 200} // tickIntervalMs = 50
	srv, err := NewServer[testWorld, tsInput2, struct{}, struct{}](cfg, testGame{}, testWorld{Players: map[ClientID]testPlayer{}}, nil, NewManualClock(0))
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	srv.AddClient("a")
	srv.AddClient("b")

	snap, err := srv.Tick()
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}

	for _, id := range []ClientID{"a", "b"} {
		p := snap.State.Players[id]
		if p.VelY != -40 {
			t.Errorf("player %s VelY = %v, want -40", id, p.VelY)
		}
		if p.Y != -2 {
			t.Errorf("player %s Y = %v, want -2", id, p.Y)
		}
	}
}

func TestServer_AckMonotonicity(t *testing.T) {
	srv := newTestServerT(t, 16)
	srv.AddClient("p1")

	var lastAck Seq
	for tick := 0; tick < 10; tick++ {
		srv.OnClientInput("p1", tsInput2{Ts: int64(1000 + tick)}, Seq(tick))
		snap, err := srv.Tick()
		if err != nil {
			t.Fatalf("Tick: %v", err)
		}
		ack := snap.InputAcks["p1"]
		if ack < lastAck {
			t.Fatalf("ack regressed at tick %d: %d < %d", tick, ack, lastAck)
		}
		lastAck = ack
	}
}

func TestServer_SnapshotRingBound(t *testing.T) {
	const historySize = 5
	srv := newTestServerT(t, historySize)
	srv.AddClient("p1")
	for i := 0; i < 50; i++ {
		if _, err := srv.Tick(); err != nil {
			t.Fatalf("Tick: %v", err)
		}
		if n := srv.Ring().Len(); n > historySize {
			t.Fatalf("ring length %d exceeds SnapshotHistorySize %d", n, historySize)
		}
	}
}

func TestServer_ReorderToleranceMatchesInOrderArrival(t *testing.T) {
	runWithOrder := func(order []int) testWorld {
		srv := newTestServerT(t, 16)
		srv.AddClient("p1")
		inputs := []tsInput2{
			{MoveX: 1, Ts: 1000},
			{MoveX: -1, Ts: 1016},
			{MoveX: 1, Ts: 1033},
		}
		for _, i := range order {
			srv.OnClientInput("p1", inputs[i], Seq(i))
		}
		if _, err := srv.Tick(); err != nil {
			t.Fatalf("Tick: %v", err)
		}
		return srv.World()
	}

	inOrder := runWithOrder([]int{0, 1, 2})
	outOfOrder := runWithOrder([]int{2, 0, 1})

	if inOrder.Players["p1"] != outOfOrder.Players["p1"] {
		t.Fatalf("out-of-order arrival produced a different world: %+v vs %+v",
			outOfOrder.Players["p1"], inOrder.Players["p1"])
	}
}

func TestServer_DuplicateInputIdempotent(t *testing.T) {
	runDupes := func(sendTwice bool) testWorld {
		srv := newTestServerT(t, 16)
		srv.AddClient("p1")
		srv.OnClientInput("p1", tsInput2{MoveX: 1, Ts: 1000}, Seq(0))
		if sendTwice {
			srv.OnClientInput("p1", tsInput2{MoveX: 1, Ts: 1000}, Seq(0))
		}
		if _, err := srv.Tick(); err != nil {
			t.Fatalf("Tick: %v", err)
		}
		return srv.World()
	}

	once, twice := runDupes(false), runDupes(true)
	if once.Players["p1"] != twice.Players["p1"] {
		t.Fatalf("enqueuing a duplicate seq changed server behavior: %+v vs %+v", twice.Players["p1"], once.Players["p1"])
	}
}

func TestServer_SetWorldBroadcastsImmediately(t *testing.T) {
	srv := newTestServerT(t, 16)
	srv.AddClient("p1")

	var broadcast []Snapshot[testWorld]
	srv.SetWorld(testWorld{Players: map[ClientID]testPlayer{"p1": {X: 42}}}, func(s Snapshot[testWorld]) {
		broadcast = append(broadcast, s)
	})

	if len(broadcast) != 1 {
		t.Fatalf("SetWorld must broadcast exactly once, got %d", len(broadcast))
	}
	if broadcast[0].State.Players["p1"].X != 42 {
		t.Fatalf("broadcast snapshot does not reflect the installed world")
	}
}

func TestServer_UnknownClientInputDoesNotCrashLoop(t *testing.T) {
	srv := newTestServerT(t, 16)
	// Input from a client that never connected (e.g. a late message after
	// a disconnect raced the server) must be a silent drop, never a panic.
	srv.OnClientInput("ghost", tsInput2{Ts: 1000}, Seq(0))

	snap, err := srv.Tick()
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if snap.Tick != 1 {
		t.Fatalf("unknown-client input must not crash or stall the loop, tick = %d", snap.Tick)
	}
}

func TestServer_NonPositiveTimestampInputSilentlyDropped(t *testing.T) {
	srv := newTestServerT(t, 16)
	srv.AddClient("p1")
	srv.OnClientInput("p1", tsInput2{MoveX: 1, Ts: 0}, Seq(0))
	srv.OnClientInput("p1", tsInput2{MoveX: 1, Ts: -5}, Seq(1))

	snap, err := srv.Tick()
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if p := snap.State.Players["p1"]; p.X != 0 {
		t.Fatalf("input with non-positive timestamp was not dropped: X = %v, want 0", p.X)
	}
}

func TestServer_RemoveClientDropsState(t *testing.T) {
	srv := newTestServerT(t, 16)
	srv.AddClient("p1")
	srv.RemoveClient("p1")

	w := srv.World()
	if _, ok := w.Players["p1"]; ok {
		t.Fatal("RemoveClient must remove the player from the world")
	}

	// Input from a removed client must be dropped, not re-add it.
	srv.OnClientInput("p1", tsInput2{Ts: 1000}, Seq(0))
	if _, err := srv.Tick(); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if _, ok := srv.World().Players["p1"]; ok {
		t.Fatal("input from a disconnected client must not resurrect it")
	}
}
