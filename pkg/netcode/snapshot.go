package netcode

import "github.com/sirupsen/logrus"

// Snapshot is the authoritative world state at one server tick, plus the
// per-client input acks that tick incorporated. Snapshots form
// a strictly increasing sequence in Tick; they cross the server/client
// boundary by value.
type Snapshot[W any] struct {
	Tick          Tick
	WallTimestamp int64
	State         W
	InputAcks     map[ClientID]Seq
}

// SnapshotRing holds the most recent N contiguous snapshots, evicting the
// oldest beyond capacity. Generalizes pkg/network/lagcomp.go's ring buffer
// to the caller's world type. Lookups (AtTick, Bracket) scan the retained
// snapshots linearly.
type SnapshotRing[W any] struct {
	capacity  int
	snapshots []Snapshot[W]
}

// NewSnapshotRing creates a ring holding at most capacity snapshots.
func NewSnapshotRing[W any](capacity int) *SnapshotRing[W] {
	if capacity < 1 {
		capacity = 1
	}
	return &SnapshotRing[W]{
		capacity:  capacity,
		snapshots: make([]Snapshot[W], 0, capacity),
	}
}

// Append adds a new snapshot, evicting the oldest if the ring is full.
// Snapshots must be appended in strictly increasing tick order; out-of-order
// appends are logged and dropped rather than corrupting the invariant.
func (r *SnapshotRing[W]) Append(s Snapshot[W]) {
	if n := len(r.snapshots); n > 0 && s.Tick <= r.snapshots[n-1].Tick {
		logrus.WithFields(logrus.Fields{
			"system_name": "snapshot_ring",
			"tick":        s.Tick,
			"newest_tick": r.snapshots[n-1].Tick,
		}).Warn("dropped out-of-order snapshot append")
		return
	}
	if len(r.snapshots) >= r.capacity {
		r.snapshots = r.snapshots[1:]
	}
	r.snapshots = append(r.snapshots, s)
}

// Len returns the number of snapshots currently retained.
func (r *SnapshotRing[W]) Len() int {
	return len(r.snapshots)
}

// Latest returns the most recently appended snapshot, if any.
func (r *SnapshotRing[W]) Latest() (Snapshot[W], bool) {
	if len(r.snapshots) == 0 {
		return Snapshot[W]{}, false
	}
	return r.snapshots[len(r.snapshots)-1], true
}

// Oldest returns the oldest retained snapshot, if any.
func (r *SnapshotRing[W]) Oldest() (Snapshot[W], bool) {
	if len(r.snapshots) == 0 {
		return Snapshot[W]{}, false
	}
	return r.snapshots[0], true
}

// AtTick returns the snapshot with the exact given tick, if retained.
func (r *SnapshotRing[W]) AtTick(tick Tick) (Snapshot[W], bool) {
	for _, s := range r.snapshots {
		if s.Tick == tick {
			return s, true
		}
	}
	return Snapshot[W]{}, false
}

// Bracket returns the two snapshots whose wall timestamps bracket t: before
// has the largest WallTimestamp <= t, after has the smallest WallTimestamp >
// t. Either return may be absent (ok=false) if t is outside the retained
// history on that side.
func (r *SnapshotRing[W]) Bracket(t int64) (before Snapshot[W], haveBefore bool, after Snapshot[W], haveAfter bool) {
	for _, s := range r.snapshots {
		if s.WallTimestamp <= t {
			before, haveBefore = s, true
		} else if !haveAfter {
			after, haveAfter = s, true
		}
	}
	return
}

// All returns the retained snapshots oldest-first. Callers must not mutate
// the returned slice.
func (r *SnapshotRing[W]) All() []Snapshot[W] {
	return r.snapshots
}
