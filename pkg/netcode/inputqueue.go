package netcode

import (
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// queuedInput is one pending entry in a ClientInputQueue.
type queuedInput[I TimestampedInput] struct {
	seq   Seq
	input I
}

// ClientInputQueue is a per-client FIFO of received-but-not-yet-simulated
// inputs, kept sorted by sequence number. It is a
// multi-producer (network receive goroutines), single-consumer (tick loop)
// boundary; producers call Enqueue concurrently, the
// tick loop alone calls DrainSorted.
type ClientInputQueue[I TimestampedInput] struct {
	mu      sync.Mutex
	entries []queuedInput[I]
	// limiter rate-limits enqueue attempts per client, a protocol-violation
	// guard against a client flooding the queue faster than the tick loop
	// can drain it. Generalizes pkg/network/anticheat.go's ValidateFireRate
	// check from weapon shots to raw input messages, via
	// golang.org/x/time/rate instead of a hand-rolled timestamp ring.
	limiter *rate.Limiter
}

// NewClientInputQueue creates an empty queue. burstPerTick bounds how many
// input messages a single client may enqueue within one token-bucket burst;
// tickRate is used to set a sustained rate of one input per tick (the
// expected steady-state cadence).
func NewClientInputQueue[I TimestampedInput](tickRate int, burstPerTick int) *ClientInputQueue[I] {
	if burstPerTick < 1 {
		burstPerTick = 1
	}
	return &ClientInputQueue[I]{
		entries: make([]queuedInput[I], 0, burstPerTick),
		limiter: rate.NewLimiter(rate.Limit(tickRate), burstPerTick),
	}
}

// Enqueue inserts an input, keeping entries sorted by seq and silently
// deduplicating equal-seq entries. Returns false if the client's rate limit rejected the
// message (a protocol-violation drop, not an error).
func (q *ClientInputQueue[I]) Enqueue(id ClientID, seq Seq, input I) bool {
	if !q.limiter.Allow() {
		logrus.WithFields(logrus.Fields{
			"system_name": "input_queue",
			"client_id":   id,
			"seq":         seq,
		}).Warn("input rate limit exceeded, dropping message")
		return false
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	i := sort.Search(len(q.entries), func(i int) bool { return q.entries[i].seq >= seq })
	if i < len(q.entries) && q.entries[i].seq == seq {
		return true // duplicate seq: silently ignored, not an error
	}
	q.entries = append(q.entries, queuedInput[I]{})
	copy(q.entries[i+1:], q.entries[i:])
	q.entries[i] = queuedInput[I]{seq: seq, input: input}
	return true
}

// DrainSorted returns all queued entries in ascending seq order and removes
// them from the queue.
func (q *ClientInputQueue[I]) DrainSorted() []queuedInput[I] {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) == 0 {
		return nil
	}
	drained := q.entries
	q.entries = make([]queuedInput[I], 0, cap(drained))
	return drained
}

// Acknowledge discards any straggler entry with seq <= throughSeq. Combined
// with DrainSorted, the queue invariant is: after draining and acking
// throughSeq, no entry with seq <= throughSeq remains.
func (q *ClientInputQueue[I]) Acknowledge(throughSeq Seq) {
	q.mu.Lock()
	defer q.mu.Unlock()

	i := sort.Search(len(q.entries), func(i int) bool { return q.entries[i].seq > throughSeq })
	q.entries = q.entries[i:]
}

// Len returns the number of pending entries.
func (q *ClientInputQueue[I]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
