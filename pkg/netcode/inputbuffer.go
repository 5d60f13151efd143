package netcode

import "sync"

// bufferedInput is one captured-but-not-yet-acknowledged client input.
type bufferedInput[I TimestampedInput] struct {
	seq   Seq
	input I
}

// InputBuffer is the client-side store of captured inputs awaiting server
// acknowledgement. Seq numbers are assigned here, by capture
// order, and are the sole replay key the Reconciler uses: they must never be
// derived from a server tick, since a client captures many inputs between
// any two snapshots it receives.
type InputBuffer[I TimestampedInput] struct {
	mu      sync.Mutex
	nextSeq Seq
	entries []bufferedInput[I]
}

// NewInputBuffer creates an empty buffer whose first assigned seq is 0.
func NewInputBuffer[I TimestampedInput]() *InputBuffer[I] {
	return &InputBuffer[I]{}
}

// Add stores a newly captured input and returns the seq assigned to it.
func (b *InputBuffer[I]) Add(input I) Seq {
	b.mu.Lock()
	defer b.mu.Unlock()

	seq := b.nextSeq
	b.nextSeq++
	b.entries = append(b.entries, bufferedInput[I]{seq: seq, input: input})
	return seq
}

// Unacked returns every buffered input with seq > throughSeq, oldest first.
// This is what the Reconciler replays after installing a fresh snapshot.
func (b *InputBuffer[I]) Unacked(throughSeq Seq) []bufferedInput[I] {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]bufferedInput[I], 0, len(b.entries))
	for _, e := range b.entries {
		if e.seq > throughSeq {
			out = append(out, e)
		}
	}
	return out
}

// All returns every buffered input, oldest first, regardless of ack state.
func (b *InputBuffer[I]) All() []bufferedInput[I] {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]bufferedInput[I], len(b.entries))
	copy(out, b.entries)
	return out
}

// RemoveThrough discards every buffered input with seq <= throughSeq: the
// server has acknowledged them and they need not be replayed again.
func (b *InputBuffer[I]) RemoveThrough(throughSeq Seq) {
	b.mu.Lock()
	defer b.mu.Unlock()

	i := 0
	for i < len(b.entries) && b.entries[i].seq <= throughSeq {
		i++
	}
	b.entries = b.entries[i:]
}

// Len returns the number of buffered, not-yet-removed inputs.
func (b *InputBuffer[I]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// NextSeq returns the seq that will be assigned to the next Add call,
// without consuming it.
func (b *InputBuffer[I]) NextSeq() Seq {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.nextSeq
}
