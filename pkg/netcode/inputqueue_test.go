package netcode

import "testing"

type tsInput struct {
	MoveX float64
	Ts    int64
}

func (i tsInput) InputTimestamp() int64 { return i.Ts }

func TestClientInputQueue_EnqueueKeepsSeqOrder(t *testing.T) {
	q := NewClientInputQueue[tsInput](60, 60)
	q.Enqueue("c1", 2, tsInput{MoveX: 1, Ts: 1002})
	q.Enqueue("c1", 0, tsInput{MoveX: 1, Ts: 1000})
	q.Enqueue("c1", 1, tsInput{MoveX: 1, Ts: 1001})

	drained := q.DrainSorted()
	if len(drained) != 3 {
		t.Fatalf("expected 3 drained entries, got %d", len(drained))
	}
	for i, e := range drained {
		if e.seq != Seq(i) {
			t.Fatalf("drained[%d].seq = %d, want %d (out-of-order arrival must still drain in seq order)", i, e.seq, i)
		}
	}
}

func TestClientInputQueue_DuplicateSeqIdempotent(t *testing.T) {
	q1 := NewClientInputQueue[tsInput](60, 60)
	q1.Enqueue("c1", 0, tsInput{MoveX: 1, Ts: 1000})
	q1.Enqueue("c1", 0, tsInput{MoveX: 1, Ts: 1000})

	q2 := NewClientInputQueue[tsInput](60, 60)
	q2.Enqueue("c1", 0, tsInput{MoveX: 1, Ts: 1000})

	d1, d2 := q1.DrainSorted(), q2.DrainSorted()
	if len(d1) != len(d2) {
		t.Fatalf("enqueuing a duplicate seq changed queue length: %d vs %d", len(d1), len(d2))
	}
	if len(d1) != 1 {
		t.Fatalf("expected exactly 1 entry after duplicate enqueue, got %d", len(d1))
	}
}

func TestClientInputQueue_AcknowledgeDiscardsThroughSeq(t *testing.T) {
	q := NewClientInputQueue[tsInput](60, 60)
	for seq := Seq(0); seq < 5; seq++ {
		q.Enqueue("c1", seq, tsInput{Ts: int64(1000 + seq)})
	}
	q.Acknowledge(2)
	drained := q.DrainSorted()
	if len(drained) != 2 {
		t.Fatalf("expected 2 stragglers after acking through seq 2, got %d", len(drained))
	}
	for _, e := range drained {
		if e.seq <= 2 {
			t.Fatalf("found acked seq %d still in queue after Acknowledge(2)", e.seq)
		}
	}
}

func TestClientInputQueue_DrainSortedThenAckLeavesNoneBelowOrEqual(t *testing.T) {
	q := NewClientInputQueue[tsInput](60, 60)
	for seq := Seq(0); seq < 5; seq++ {
		q.Enqueue("c1", seq, tsInput{Ts: int64(1000 + seq)})
	}
	_ = q.DrainSorted()
	q.Acknowledge(4)
	if q.Len() != 0 {
		t.Fatalf("queue invariant violated: %d entries remain after drain+ack(lastSeq)", q.Len())
	}
}

func TestClientInputQueue_RateLimitDropsExcessBurst(t *testing.T) {
	q := NewClientInputQueue[tsInput](1, 2)
	accepted := 0
	for seq := Seq(0); seq < 10; seq++ {
		if q.Enqueue("c1", seq, tsInput{Ts: int64(seq)}) {
			accepted++
		}
	}
	if accepted >= 10 {
		t.Fatalf("expected the rate limiter to reject some of a 10-message burst against burst=2, accepted all %d", accepted)
	}
}
