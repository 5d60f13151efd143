package netcode

import "sync"

// PendingAction is one client action awaiting lag-compensated validation.
type PendingAction[A any] struct {
	ClientID        ClientID
	Seq             Seq
	Action          A
	ClientTimestamp int64
}

// ActionQueue is a per-client FIFO of actions awaiting validation. Unlike
// ClientInputQueue it is not seq-sorted: actions validate in arrival order,
// each independently rewinding history to its own estimated time of intent.
type ActionQueue[A any] struct {
	mu      sync.Mutex
	pending []PendingAction[A]
}

// NewActionQueue creates an empty action queue.
func NewActionQueue[A any]() *ActionQueue[A] {
	return &ActionQueue[A]{}
}

// Enqueue appends a pending action.
func (q *ActionQueue[A]) Enqueue(a PendingAction[A]) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, a)
}

// DrainAll removes and returns every pending action, oldest first.
func (q *ActionQueue[A]) DrainAll() []PendingAction[A] {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return nil
	}
	drained := q.pending
	q.pending = nil
	return drained
}

// LagCompensator reconstructs a historical world for action validation.
// It reads the server's live snapshot ring rather than keeping its own
// copy; rewinding never mutates the ring or the live world, so lag
// compensation only ever affects the *validation* of an action, never the
// tick at which its effects land.
type LagCompensator[W any] struct {
	ring *SnapshotRing[W]
}

// NewLagCompensator wraps the server's snapshot ring for rewind lookups.
func NewLagCompensator[W any](ring *SnapshotRing[W]) *LagCompensator[W] {
	return &LagCompensator[W]{ring: ring}
}

// Rewind estimates the client's intended time of action as
// clientTimestamp + clockOffsetMs - interpolationDelayMs (the client aimed at
// an interpolated past state, not the live world), clamps it to
// [nowMs-maxRewindMs, nowMs], and returns the bracketing historical world
// closest to that time. With no retained history it falls back to the live
// world via the ring's latest snapshot.
func (c *LagCompensator[W]) Rewind(clientTimestamp, clockOffsetMs, interpolationDelayMs, maxRewindMs, nowMs int64) W {
	target := clientTimestamp + clockOffsetMs - interpolationDelayMs
	lowerBound := nowMs - maxRewindMs
	if target < lowerBound {
		target = lowerBound
	}
	if target > nowMs {
		target = nowMs
	}

	before, haveBefore, after, haveAfter := c.ring.Bracket(target)
	switch {
	case haveBefore && haveAfter:
		// Choose whichever bracket is temporally closer to target; no
		// interpolation of world state, since most games cannot linearly
		// blend arbitrary world fields (only positions, which belong to the
		// interpolation buffer, not here).
		if target-before.WallTimestamp <= after.WallTimestamp-target {
			return before.State
		}
		return after.State
	case haveBefore:
		return before.State
	case haveAfter:
		return after.State
	default:
		var zero W
		if latest, ok := c.ring.Latest(); ok {
			return latest.State
		}
		return zero
	}
}
