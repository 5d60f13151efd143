package netcode

import "testing"

// testScope adapts testWorld/tsInput2/testPlayer to PredictionScope,
// predicting only the local player — the common case a game chooses when
// it has no local collision to account for.
type testScope struct{}

func (testScope) ExtractPredictable(world testWorld, localID ClientID) testPlayer {
	return world.Players[localID]
}

func (testScope) SimulatePredicted(partial testPlayer, input tsInput2, tickIntervalMs float64, localID ClientID) testPlayer {
	return stepPlayer(partial, input, tickIntervalMs/1000.0)
}

func (testScope) MergePrediction(serverWorld testWorld, predicted testPlayer, localID ClientID) testWorld {
	next := cloneTestWorld(serverWorld)
	next.Players[localID] = predicted
	return next
}

func (testScope) CreateIdleInput() tsInput2 { return tsInput2{} }

const testTickIntervalMs = 50.0 // 20Hz, matches newTestServerT's ServerConfig

// TestReconciler_PartialAckReplaysOnlyUnacked mirrors §8 scenario 3: the
// client buffers inputs seq 0-4, the server acks through seq 2, and
// reconciliation must replay exactly seqs [3,4] in order.
func TestReconciler_PartialAckReplaysOnlyUnacked(t *testing.T) {
	buffer := NewInputBuffer[tsInput2]()
	for seq := 0; seq < 5; seq++ {
		buffer.Add(tsInput2{MoveX: 1, Ts: int64(1000 + seq*16)})
	}

	predictor, err := NewPredictor[testWorld, tsInput2, testPlayer](testScope{}, "local")
	if err != nil {
		t.Fatalf("NewPredictor: %v", err)
	}
	reconciler := NewReconciler[testWorld, tsInput2, testPlayer](buffer, predictor, "local")

	serverWorld := testWorld{Players: map[ClientID]testPlayer{"local": {Grounded: true}}}
	snap := Snapshot[testWorld]{
		Tick:      10,
		State:     serverWorld,
		InputAcks: map[ClientID]Seq{"local": 2},
	}

	var replayedSeqs []Seq
	reconciler.Reconcile(snap, testTickIntervalMs, func(seq Seq, _ testPlayer) {
		replayedSeqs = append(replayedSeqs, seq)
	})

	if len(replayedSeqs) != 2 {
		t.Fatalf("expected exactly 2 replay callbacks, got %d: %v", len(replayedSeqs), replayedSeqs)
	}
	if replayedSeqs[0] != 3 || replayedSeqs[1] != 4 {
		t.Fatalf("replayed seqs = %v, want [3,4] in ascending order", replayedSeqs)
	}
	if buffer.Len() != 2 {
		t.Fatalf("buffer should retain the 2 unacked inputs (3,4), has %d", buffer.Len())
	}
}

// TestReconciler_PredictionEquivalence verifies the central correctness
// property: applying the same input sequence through the predictor and
// through the server's Simulate, from the same base state, produces
// identical local-player state.
func TestReconciler_PredictionEquivalence(t *testing.T) {
	base := testPlayer{Grounded: false}
	inputs := []tsInput2{
		{MoveX: 1, Ts: 1000},
		{MoveX: -1, Ts: 1050},
		{MoveX: 0.5, Ts: 1100},
	}

	// Server-side: merge-per-tick with a single input each tick (an
	// idempotent merge on a singleton, per the Game.MergeInputs contract).
	serverWorld := testWorld{Players: map[ClientID]testPlayer{"local": base}}
	game := testGame{}
	for _, in := range inputs {
		merged := game.MergeInputs([]tsInput2{in})
		next, err := game.Simulate(serverWorld, map[ClientID]tsInput2{"local": merged}, testTickIntervalMs)
		if err != nil {
			t.Fatalf("Simulate: %v", err)
		}
		serverWorld = next
	}

	// Client-side: the predictor applies one input at a time.
	predictor, err := NewPredictor[testWorld, tsInput2, testPlayer](testScope{}, "local")
	if err != nil {
		t.Fatalf("NewPredictor: %v", err)
	}
	predictor.Reset(testWorld{Players: map[ClientID]testPlayer{"local": base}})
	for _, in := range inputs {
		predictor.ApplyInput(in, testTickIntervalMs)
	}

	serverState := serverWorld.Players["local"]
	predictedState := predictor.Current()
	if serverState != predictedState {
		t.Fatalf("prediction diverged from server simulation: server=%+v predicted=%+v", serverState, predictedState)
	}
}

func TestReconciler_NoAckYetReplaysEverything(t *testing.T) {
	buffer := NewInputBuffer[tsInput2]()
	buffer.Add(tsInput2{MoveX: 1, Ts: 1000})
	buffer.Add(tsInput2{MoveX: 1, Ts: 1016})

	predictor, _ := NewPredictor[testWorld, tsInput2, testPlayer](testScope{}, "local")
	reconciler := NewReconciler[testWorld, tsInput2, testPlayer](buffer, predictor, "local")

	snap := Snapshot[testWorld]{
		Tick:      0,
		State:     testWorld{Players: map[ClientID]testPlayer{"local": {}}},
		InputAcks: map[ClientID]Seq{}, // no ack for "local" yet
	}

	var count int
	reconciler.Reconcile(snap, testTickIntervalMs, func(Seq, testPlayer) { count++ })
	if count != 2 {
		t.Fatalf("expected both buffered inputs replayed when no ack exists yet, got %d", count)
	}
}

func TestReconciler_StaleSnapshotNeverCrashes(t *testing.T) {
	buffer := NewInputBuffer[tsInput2]()
	buffer.Add(tsInput2{Ts: 1000})

	predictor, _ := NewPredictor[testWorld, tsInput2, testPlayer](testScope{}, "local")
	reconciler := NewReconciler[testWorld, tsInput2, testPlayer](buffer, predictor, "local")

	fresh := Snapshot[testWorld]{Tick: 10, State: testWorld{Players: map[ClientID]testPlayer{"local": {}}}, InputAcks: map[ClientID]Seq{"local": 0}}
	reconciler.Reconcile(fresh, testTickIntervalMs, nil)

	stale := Snapshot[testWorld]{Tick: 5, State: testWorld{Players: map[ClientID]testPlayer{"local": {}}}, InputAcks: map[ClientID]Seq{"local": 0}}
	// Must not panic, and since no buffered input remains older than the
	// ack, it produces no replay differential.
	var replayed int
	reconciler.Reconcile(stale, testTickIntervalMs, func(Seq, testPlayer) { replayed++ })
	if replayed != 0 {
		t.Fatalf("stale snapshot replayed %d inputs, want 0", replayed)
	}
}

func TestPredictor_NewPredictorRejectsNilScope(t *testing.T) {
	_, err := NewPredictor[testWorld, tsInput2, testPlayer](nil, "local")
	if err == nil {
		t.Fatal("NewPredictor(nil scope) must fail fast")
	}
}
