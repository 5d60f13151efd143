// Command client is a headless demo client for netplay: it connects to a
// server over websocket, captures synthetic input on a fixed tick, predicts
// its own movement locally, and reconciles against authoritative snapshots
// as they arrive. It renders nothing — rendering is explicitly outside this
// module's scope — and instead logs the reconciled position periodically,
// enough to observe prediction and reconciliation working end to end.
package main

import (
	"flag"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/netplay/pkg/demoworld"
	"github.com/opd-ai/netplay/pkg/netcode"
	"github.com/opd-ai/netplay/pkg/transport"
)

var (
	serverURL = flag.String("server", "ws://127.0.0.1:7777/play", "server websocket URL")
	tickRate  = flag.Int("tick-rate", 60, "client input capture rate in Hz, must match the server's TickRate")
	duration  = flag.Duration("duration", 10*time.Second, "how long to run before exiting")
)

func main() {
	flag.Parse()
	logrus.SetFormatter(&logrus.JSONFormatter{})

	conn, err := transport.Dial(*serverURL)
	if err != nil {
		logrus.WithError(err).Fatal("failed to connect to server")
	}
	defer conn.Close()

	buffer := netcode.NewInputBuffer[demoworld.Input]()
	clientCfg := netcode.DefaultClientConfig(*tickRate)
	remotes := make(map[netcode.ClientID]*netcode.Smoother)

	tickIntervalMs := 1000.0 / float64(*tickRate)
	deadline := time.Now().Add(*duration)

	snapshots := make(chan netcode.Snapshot[demoworld.World], 8)
	joined := make(chan netcode.ClientID, 1)
	go readLoop(conn, joined, snapshots)

	var localID netcode.ClientID
	var reconciler *netcode.Reconciler[demoworld.World, demoworld.Input, demoworld.PredictableState]
	var predictor *netcode.Predictor[demoworld.World, demoworld.Input, demoworld.PredictableState]

	select {
	case localID = <-joined:
		logrus.WithField("client_id", localID).Info("assigned client id")
		predictor, err = netcode.NewPredictor[demoworld.World, demoworld.Input, demoworld.PredictableState](
			demoworld.NewScope(demoworld.NewWorld().Platforms), localID,
		)
		if err != nil {
			logrus.WithError(err).Fatal("failed to construct predictor")
		}
		reconciler = netcode.NewReconciler[demoworld.World, demoworld.Input, demoworld.PredictableState](buffer, predictor, localID)
	case <-time.After(5 * time.Second):
		logrus.Fatal("timed out waiting for join message")
	}

	ticker := time.NewTicker(time.Duration(tickIntervalMs * float64(time.Millisecond)))
	defer ticker.Stop()

	for time.Now().Before(deadline) {
		select {
		case <-ticker.C:
			input := demoworld.Input{MoveX: 1, TimestampMs: time.Now().UnixMilli()}
			seq := buffer.Add(input)
			predicted := predictor.ApplyInput(input, tickIntervalMs)

			env, err := transport.EncodeEnvelope(transport.TypeInput, netcode.InputMessage[demoworld.Input]{
				Seq: seq, Input: input, Timestamp: input.TimestampMs,
			})
			if err == nil {
				_ = conn.Send(env)
			}

			logrus.WithFields(logrus.Fields{
				"seq": seq,
				"x":   predicted.Self.X,
				"y":   predicted.Self.Y,
			}).Debug("predicted local state")

		case snap, ok := <-snapshots:
			if !ok {
				return
			}
			if reconciler == nil {
				continue
			}
			rendered := reconciler.Reconcile(snap, tickIntervalMs, func(replaySeq netcode.Seq, predicted demoworld.PredictableState) {
				logrus.WithFields(logrus.Fields{"seq": replaySeq}).Trace("replayed input during reconciliation")
			})
			self := rendered.Players[localID]
			logrus.WithFields(logrus.Fields{
				"tick": snap.Tick,
				"x":    self.X,
				"y":    self.Y,
			}).Info("reconciled render state")

			for id, p := range rendered.Players {
				if id == localID {
					continue
				}
				sm, ok := remotes[id]
				if !ok {
					sm = netcode.NewSmoother(netcode.SmootherSpectator, clientCfg.SpectatorInterpolation, clientCfg.MaxOverBuffer, clientCfg.TeleportThreshold, clientCfg.EnableExtrapolation, clientCfg.MaxExtrapolationMs)
					remotes[id] = sm
				}
				sm.OnPostTick(snap.Tick, netcode.Transform{X: p.X, Y: p.Y})
				smoothed := sm.GetSmoothedTransform(tickIntervalMs)
				logrus.WithFields(logrus.Fields{
					"remote_id": id,
					"x":         smoothed.X,
					"y":         smoothed.Y,
				}).Trace("smoothed remote render state")
			}
		}
	}
}

func readLoop(conn *transport.WSChannel, joined chan<- netcode.ClientID, snapshots chan<- netcode.Snapshot[demoworld.World]) {
	for {
		env, err := conn.Receive()
		if err != nil {
			close(snapshots)
			return
		}
		switch env.Type {
		case transport.TypeJoin:
			var msg netcode.JoinMessage
			if err := transport.DecodePayload(env, &msg); err == nil {
				select {
				case joined <- msg.PlayerID:
				default:
				}
			}
		case transport.TypeSnapshot:
			var msg netcode.SnapshotMessage[demoworld.World]
			if err := transport.DecodePayload(env, &msg); err == nil {
				snapshots <- netcode.Snapshot[demoworld.World]{
					Tick:          msg.Tick,
					WallTimestamp: msg.Timestamp,
					State:         msg.State,
					InputAcks:     msg.InputAcks,
				}
			}
		}
	}
}
