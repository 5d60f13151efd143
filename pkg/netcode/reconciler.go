package netcode

import "github.com/sirupsen/logrus"

// ReplayObserver is invoked once per replayed input during reconciliation,
// keyed by the input's own seq number — never by a server tick, since a
// single reconciliation pass can replay several inputs captured between two
// snapshots.
type ReplayObserver[P any] func(seq Seq, predicted P)

// Reconciler ties an InputBuffer and Predictor together: on every
// authoritative snapshot, it discards acknowledged input, rebases the
// predictor on the new server state, and replays whatever input the server
// had not yet seen.
type Reconciler[W any, I TimestampedInput, P any] struct {
	buffer    *InputBuffer[I]
	predictor *Predictor[W, I, P]
	localID   ClientID
}

// NewReconciler constructs a Reconciler over an existing buffer and
// predictor for the same local client.
func NewReconciler[W any, I TimestampedInput, P any](buffer *InputBuffer[I], predictor *Predictor[W, I, P], localID ClientID) *Reconciler[W, I, P] {
	return &Reconciler[W, I, P]{buffer: buffer, predictor: predictor, localID: localID}
}

// Reconcile installs a fresh authoritative snapshot and replays every input
// the snapshot's ack did not cover, in ascending seq order. It returns the
// merged world the caller should render this frame. tickIntervalMs must be
// the server's fixed tick interval, the same value Simulate advances by
// server-side — replay uses the identical per-step delta the server used, so
// floating-point accumulation matches.
func (r *Reconciler[W, I, P]) Reconcile(snap Snapshot[W], tickIntervalMs float64, onReplay ReplayObserver[P]) W {
	var unacked []bufferedInput[I]
	if ack, hasAck := snap.InputAcks[r.localID]; hasAck {
		r.buffer.RemoveThrough(ack)
		unacked = r.buffer.Unacked(ack)
	} else {
		// No ack for this client in the snapshot yet (e.g. it just joined
		// and the server has not processed any of its input): nothing has
		// been acknowledged, so replay everything buffered.
		unacked = r.buffer.All()
	}

	r.predictor.Reset(snap.State)

	if len(unacked) == 0 {
		logrus.WithFields(logrus.Fields{
			"system_name": "reconciler",
			"client_id":   r.localID,
			"tick":        snap.Tick,
		}).Debug("reconcile: no unacked input to replay")
	}

	for _, entry := range unacked {
		predicted := r.predictor.ApplyInput(entry.input, tickIntervalMs)
		if onReplay != nil {
			onReplay(entry.seq, predicted)
		}
	}

	return r.predictor.Render(snap.State)
}
