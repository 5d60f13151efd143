package netcode

// lcg is a deterministic linear congruential generator, used in place of
// math/rand so harness runs are byte-for-byte reproducible across platforms
// given the same seed. Constants are
// Knuth's MMIX 64-bit LCG parameters.
type lcg struct {
	state uint64
}

func newLCG(seed uint64) *lcg {
	if seed == 0 {
		seed = 1
	}
	return &lcg{state: seed}
}

func (g *lcg) next() uint64 {
	g.state = g.state*6364136223846793005 + 1442695040888963407
	return g.state
}

// float64 returns a value in [0, 1).
func (g *lcg) float64() float64 {
	return float64(g.next()>>11) / float64(1<<53)
}

// intn returns a value in [0, n).
func (g *lcg) intn(n int) int {
	if n <= 0 {
		return 0
	}
	return int(g.next() % uint64(n))
}

// HarnessConfig parameterizes a NetworkHarness.
type HarnessConfig struct {
	Seed uint64
	// BaseLatencyMs is the fixed one-way delay applied to every message.
	BaseLatencyMs int64
	// JitterMs is the maximum additional random delay, uniformly distributed
	// in [0, JitterMs].
	JitterMs int64
	// LossRate is the probability, in [0, 1], that a message is dropped.
	LossRate float64
	// ReorderRate is the probability, in [0, 1], that a message is held back
	// and, once due, delivered after the other messages due in the same
	// Deliverable call. Only one message is held at a time.
	ReorderRate float64
	// DuplicateRate is the probability, in [0, 1], that a message is
	// delivered twice.
	DuplicateRate float64
}

// harnessMessage is one in-flight message, queued for delivery at
// deliverAtMs.
type harnessMessage struct {
	deliverAtMs int64
	payload     any
}

// NetworkHarness simulates latency, jitter, loss, reorder, and duplication
// between a test client and server, driven entirely by an injected Clock and
// a seeded LCG rather than real time or math/rand, so a failing test
// reproduces exactly.
type NetworkHarness struct {
	cfg   HarnessConfig
	rng   *lcg
	clock Clock

	inFlight []harnessMessage
	held     *harnessMessage // one slot held back for reorder
}

// NewNetworkHarness constructs a harness. clock must not be nil; tests
// typically pass a *ManualClock so Advance drives both simulated time and
// delivery together.
func NewNetworkHarness(cfg HarnessConfig, clock Clock) *NetworkHarness {
	return &NetworkHarness{
		cfg:   cfg,
		rng:   newLCG(cfg.Seed),
		clock: clock,
	}
}

// Send schedules payload for delivery after the configured latency, jitter,
// loss, reorder, and duplication are applied. A dropped message never
// appears in Deliverable's output.
func (h *NetworkHarness) Send(payload any) {
	if h.rng.float64() < h.cfg.LossRate {
		return
	}

	delay := h.cfg.BaseLatencyMs
	if h.cfg.JitterMs > 0 {
		delay += int64(h.rng.intn(int(h.cfg.JitterMs) + 1))
	}
	msg := harnessMessage{deliverAtMs: h.clock.NowMs() + delay, payload: payload}

	if h.cfg.ReorderRate > 0 && h.rng.float64() < h.cfg.ReorderRate && h.held == nil {
		h.held = &msg
		return
	}
	h.enqueue(msg)

	if h.cfg.DuplicateRate > 0 && h.rng.float64() < h.cfg.DuplicateRate {
		h.enqueue(msg)
	}
}

func (h *NetworkHarness) enqueue(msg harnessMessage) {
	h.inFlight = append(h.inFlight, msg)
}

// Deliverable returns (and removes) every message whose delivery time has
// arrived, in send order. A message held back for reorder is released once
// its own delivery time has arrived, after the other messages due in the
// same call.
func (h *NetworkHarness) Deliverable() []any {
	now := h.clock.NowMs()

	if h.held != nil && h.held.deliverAtMs <= now {
		h.enqueue(*h.held)
		h.held = nil
	}

	var out []any
	remaining := h.inFlight[:0]
	for _, m := range h.inFlight {
		if m.deliverAtMs <= now {
			out = append(out, m.payload)
		} else {
			remaining = append(remaining, m)
		}
	}
	h.inFlight = remaining
	return out
}

// Flush moves any reorder-held message back into the in-flight queue,
// regardless of its delivery time, and then returns what Deliverable
// returns. The released message is still only returned once its delivery
// time has arrived.
func (h *NetworkHarness) Flush() []any {
	if h.held != nil {
		h.enqueue(*h.held)
		h.held = nil
	}
	return h.Deliverable()
}

// Pending returns the number of messages still in flight (including one held
// for reorder, if any).
func (h *NetworkHarness) Pending() int {
	n := len(h.inFlight)
	if h.held != nil {
		n++
	}
	return n
}
