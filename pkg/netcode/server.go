package netcode

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
)

// clientRecord is the server's per-client bookkeeping: its input queue, last-processed seq, last-input-timestamp
// (to ignore stale input), and clock-sync state.
type clientRecord[I TimestampedInput] struct {
	queue            *ClientInputQueue[I]
	lastProcessedSeq Seq
	lastInputTsMs    int64
	clockOffsetMs    int64
	rttMs            int64
	lastPingSentMs   int64
}

// ServerObservers are the server-side callbacks at the library boundary.
type ServerObservers[A any, R any] struct {
	OnPlayerJoin      func(id ClientID)
	OnPlayerLeave     func(id ClientID)
	OnActionValidated func(id ClientID, action A, result R)
}

// Server is the fixed-timestep authoritative simulation loop.
// It owns the world and snapshot ring exclusively; all mutation happens on
// the goroutine that calls Tick (or that Run drives on its own ticker).
// Re-entrant calls to Tick are a fatal invariant violation, matched here by a
// running flag checked without recursion rather than a re-entrant mutex.
type Server[W any, I TimestampedInput, A any, R any] struct {
	cfg       ServerConfig
	game      Game[W, I]
	validator ActionValidator[W, A, R]
	clock     Clock

	mu        sync.Mutex
	world     W
	tick      Tick
	clients   map[ClientID]*clientRecord[I]
	ring      *SnapshotRing[W]
	actions   map[ClientID]*ActionQueue[A]
	lagComp   *LagCompensator[W]
	observers ServerObservers[A, R]

	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// ActionValidator decides whether a client's action succeeds against a
// reconstructed historical world. Pure with respect to its
// historicalWorld argument.
type ActionValidator[W any, A any, R any] func(historicalWorld W, clientID ClientID, action A) (success bool, result R)

// NewServer constructs a Server. A nil game or invalid config fails fast
// rather than surfacing mid-simulation.
func NewServer[W any, I TimestampedInput, A any, R any](
	cfg ServerConfig,
	game Game[W, I],
	initialWorld W,
	validator ActionValidator[W, A, R],
	clock Clock,
) (*Server[W, I, A, R], error) {
	if game == nil {
		return nil, ErrNilGame
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if clock == nil {
		clock = RealClock{}
	}

	ring := NewSnapshotRing[W](cfg.SnapshotHistorySize)
	s := &Server[W, I, A, R]{
		cfg:     cfg,
		game:    game,
		clock:   clock,
		world:   initialWorld,
		clients: make(map[ClientID]*clientRecord[I]),
		ring:    ring,
		actions: make(map[ClientID]*ActionQueue[A]),
		lagComp: NewLagCompensator[W](ring),
	}
	if validator != nil {
		s.validator = validator
	}
	return s, nil
}

// SetObservers installs the server-side observer callbacks.
func (s *Server[W, I, A, R]) SetObservers(obs ServerObservers[A, R]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = obs
}

// AddClient registers a new client: calls Game.AddPlayer, and creates an
// empty input queue and clock-sync state.
func (s *Server[W, I, A, R]) AddClient(id ClientID) {
	s.mu.Lock()
	s.world = s.game.AddPlayer(s.world, id)
	s.clients[id] = &clientRecord[I]{
		queue: NewClientInputQueue[I](s.cfg.TickRate, s.cfg.TickRate),
	}
	s.actions[id] = NewActionQueue[A]()
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{"system_name": "server", "client_id": id}).Info("client joined")
	if s.observers.OnPlayerJoin != nil {
		s.observers.OnPlayerJoin(id)
	}
}

// RemoveClient drops a client: calls Game.RemovePlayer and discards its
// queue, acks, smoother-irrelevant state, and pending actions.
func (s *Server[W, I, A, R]) RemoveClient(id ClientID) {
	s.mu.Lock()
	if _, ok := s.clients[id]; !ok {
		s.mu.Unlock()
		return
	}
	s.world = s.game.RemovePlayer(s.world, id)
	delete(s.clients, id)
	delete(s.actions, id)
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{"system_name": "server", "client_id": id}).Info("client left")
	if s.observers.OnPlayerLeave != nil {
		s.observers.OnPlayerLeave(id)
	}
}

// OnClientInput enqueues a client-captured input. Malformed input (a
// timestamp that could not have come from a real capture clock) and stale
// input (a timestamp older than the client's last processed input) are
// silent protocol-violation drops; they never reach Simulate or crash the
// loop.
func (s *Server[W, I, A, R]) OnClientInput(id ClientID, input I, seq Seq) {
	ts := input.InputTimestamp()
	if ts <= 0 {
		logrus.WithFields(logrus.Fields{"system_name": "server", "client_id": id, "timestamp": ts}).Warn("dropped input: non-positive timestamp")
		return
	}

	s.mu.Lock()
	rec, ok := s.clients[id]
	stale := ok && ts < rec.lastInputTsMs
	s.mu.Unlock()
	if !ok {
		return
	}
	if stale {
		logrus.WithFields(logrus.Fields{"system_name": "server", "client_id": id, "timestamp": ts}).Warn("dropped input: older than last processed input")
		return
	}
	rec.queue.Enqueue(id, seq, input)
}

// OnClientAction enqueues a client action for validation in the next tick's
// action-validation pass.
func (s *Server[W, I, A, R]) OnClientAction(id ClientID, seq Seq, action A, clientTimestamp int64) {
	s.mu.Lock()
	q, ok := s.actions[id]
	s.mu.Unlock()
	if !ok {
		return
	}
	q.Enqueue(PendingAction[A]{Seq: seq, Action: action, ClientTimestamp: clientTimestamp, ClientID: id})
}

// OnClockSyncResponse folds a client's clock-sync reply into its stored
// offset/RTT.
func (s *Server[W, I, A, R]) OnClockSyncResponse(id ClientID, resp ClockSyncResponseMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.clients[id]
	if !ok {
		return
	}
	now := s.clock.NowMs()
	rtt := now - resp.ServerTimestamp
	if rtt < 0 {
		rtt = 0
	}
	rec.rttMs = rtt
	rec.clockOffsetMs = resp.ServerTimestamp + rtt/2 - resp.ClientTimestamp
}

// SetWorld installs a new authoritative world (level change / reset) and
// immediately broadcasts a snapshot, bypassing the normal tick cadence.
func (s *Server[W, I, A, R]) SetWorld(w W, broadcast func(Snapshot[W])) {
	s.mu.Lock()
	s.world = w
	snap := s.buildSnapshotLocked()
	s.ring.Append(snap)
	s.mu.Unlock()

	if broadcast != nil {
		broadcast(snap)
	}
}

// buildSnapshotLocked assembles the current snapshot. Caller must hold s.mu.
func (s *Server[W, I, A, R]) buildSnapshotLocked() Snapshot[W] {
	acks := make(map[ClientID]Seq, len(s.clients))
	for id, rec := range s.clients {
		// lastInputTsMs is positive only once an input has been processed
		// (OnClientInput drops non-positive timestamps), so a client with no
		// processed input gets no ack rather than a spurious ack of seq 0.
		if rec.lastInputTsMs > 0 {
			acks[id] = rec.lastProcessedSeq
		}
	}
	return Snapshot[W]{
		Tick:          s.tick,
		WallTimestamp: s.clock.NowMs(),
		State:         s.world,
		InputAcks:     acks,
	}
}

// Tick advances the simulation by exactly one fixed step and returns the
// resulting snapshot:
//  1. drain and sort each client's queued inputs, recording the highest seq as its ack
//  2. merge per-tick inputs (or substitute the idle input)
//  3. call Simulate exactly once with the fixed tick interval
//  4. increment the tick counter
//  5. build and append a snapshot
//  6. the caller broadcasts it and runs the action-validation pass (ValidateActions)
//
// A panic or error from Simulate is fatal: Tick returns a *SimulationError
// and the caller must stop driving the loop.
func (s *Server[W, I, A, R]) Tick() (snap Snapshot[W], err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inputs := make(map[ClientID]I, len(s.clients))
	for id, rec := range s.clients {
		drained := rec.queue.DrainSorted()
		if len(drained) == 0 {
			inputs[id] = s.game.CreateIdleInput()
			continue
		}
		sort.Slice(drained, func(i, j int) bool { return drained[i].seq < drained[j].seq })

		perTick := make([]I, len(drained))
		for i, d := range drained {
			perTick[i] = d.input
		}
		inputs[id] = s.game.MergeInputs(perTick)
		rec.lastProcessedSeq = drained[len(drained)-1].seq
		rec.lastInputTsMs = perTick[len(perTick)-1].InputTimestamp()
	}

	defer func() {
		if r := recover(); r != nil {
			err = &SimulationError{Tick: s.tick, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	newWorld, simErr := s.game.Simulate(s.world, inputs, s.cfg.TickIntervalMs())
	if simErr != nil {
		return Snapshot[W]{}, &SimulationError{Tick: s.tick, Err: simErr}
	}
	s.world = newWorld
	s.tick++

	snap = s.buildSnapshotLocked()
	s.ring.Append(snap)
	return snap, nil
}

// ValidateActions drains every client's action queue and runs the
// action-validation pass, firing OnActionValidated for each action and
// returning the results so the caller can send actionResult messages. Must
// be called once per tick, after Tick, so validation sees the freshest
// snapshot ring.
func (s *Server[W, I, A, R]) ValidateActions() []ActionResult[A, R] {
	s.mu.Lock()
	ids := make([]ClientID, 0, len(s.clients))
	for id, rec := range s.clients {
		ids = append(ids, id)
		_ = rec
	}
	validator := s.validator
	s.mu.Unlock()

	if validator == nil {
		return nil
	}

	var results []ActionResult[A, R]
	for _, id := range ids {
		s.mu.Lock()
		rec, recOK := s.clients[id]
		q, qOK := s.actions[id]
		s.mu.Unlock()
		if !recOK || !qOK {
			continue
		}

		for _, pending := range q.DrainAll() {
			historical := s.lagComp.Rewind(pending.ClientTimestamp, rec.clockOffsetMs, s.cfg.InterpolationDelayMs, s.cfg.MaxRewindMs, s.clock.NowMs())
			success, result := validator(historical, id, pending.Action)

			results = append(results, ActionResult[A, R]{
				ClientID:        id,
				Seq:             pending.Seq,
				Success:         success,
				Result:          result,
				ServerTimestamp: s.clock.NowMs(),
			})
			if s.observers.OnActionValidated != nil {
				s.observers.OnActionValidated(id, pending.Action, result)
			}
		}
	}
	return results
}

// ActionResult is the outcome of one validated action, ready to become an
// actionResult wire message.
type ActionResult[A any, R any] struct {
	ClientID        ClientID
	Seq             Seq
	Success         bool
	Result          R
	ServerTimestamp int64
}

// DueClockSyncRequests returns the clients due a clockSyncRequest this call
// (ClockSyncIntervalMs since their last ping), and marks them as pinged.
// ClockSyncIntervalMs == 0 disables clock sync entirely.
func (s *Server[W, I, A, R]) DueClockSyncRequests() map[ClientID]ClockSyncRequestMessage {
	if s.cfg.ClockSyncIntervalMs <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.NowMs()
	due := make(map[ClientID]ClockSyncRequestMessage)
	for id, rec := range s.clients {
		if now-rec.lastPingSentMs >= s.cfg.ClockSyncIntervalMs {
			rec.lastPingSentMs = now
			due[id] = ClockSyncRequestMessage{ServerTimestamp: now}
		}
	}
	return due
}

// ClockState returns the stored offset/RTT for a client, for callers that
// want to surface lag-quality diagnostics.
func (s *Server[W, I, A, R]) ClockState(id ClientID) (clockOffsetMs, rttMs int64, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, exists := s.clients[id]
	if !exists {
		return 0, 0, false
	}
	return rec.clockOffsetMs, rec.rttMs, true
}

// CurrentTick returns the server's current tick counter.
func (s *Server[W, I, A, R]) CurrentTick() Tick {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tick
}

// World returns the current authoritative world (a snapshot by value, safe
// to read without further locking by the caller).
func (s *Server[W, I, A, R]) World() W {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.world
}

// Ring exposes the snapshot ring for direct inspection (tests, metrics).
func (s *Server[W, I, A, R]) Ring() *SnapshotRing[W] {
	return s.ring
}

// Run drives Tick on a fixed-interval scheduler until the context is
// cancelled or Simulate fails fatally, broadcasting each snapshot and
// running the action-validation pass. This is the concrete entry point that
// reads the real wall clock (via s.clock) and is the only goroutine
// permitted to call Tick — re-entrant ticking is a fatal invariant
// violation, and a single driving goroutine rules it out structurally
// rather than by locking.
func (s *Server[W, I, A, R]) Run(ctx context.Context, broadcast func(Snapshot[W]), onActions func([]ActionResult[A, R])) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrServerAlreadyRun
	}
	s.running = true
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	ticker := newFixedTicker(s.cfg.TickInterval())
	defer ticker.Stop()

	s.wg.Add(1)
	defer s.wg.Done()

	for {
		select {
		case <-runCtx.Done():
			s.mu.Lock()
			s.running = false
			s.mu.Unlock()
			return nil
		case <-ticker.C():
			snap, err := s.Tick()
			if err != nil {
				logrus.WithFields(logrus.Fields{"system_name": "server"}).WithError(err).Error("fatal simulation error, stopping loop")
				s.mu.Lock()
				s.running = false
				s.mu.Unlock()
				return err
			}
			if broadcast != nil {
				broadcast(snap)
			}
			if results := s.ValidateActions(); onActions != nil {
				onActions(results)
			}
		}
	}
}

// Stop cancels a running Run loop and waits for it to exit. Pending
// snapshots and actions are discarded.
func (s *Server[W, I, A, R]) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrServerNotRunning
	}
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
	return nil
}
