// Command server runs a standalone netplay dedicated server: it loads
// configuration, builds a demoworld.Game behind a netcode.Server, exposes it
// over a websocket listener, and drives the fixed-timestep tick loop until
// interrupted.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/netplay/pkg/config"
	"github.com/opd-ai/netplay/pkg/demoworld"
	"github.com/opd-ai/netplay/pkg/netcode"
	"github.com/opd-ai/netplay/pkg/transport"
)

func main() {
	if err := config.Load(); err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}
	cfg := config.Get()

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.JSONFormatter{})

	serverCfg := netcode.ServerConfig{
		TickRate:             cfg.TickRate,
		SnapshotHistorySize:  cfg.SnapshotHistorySize,
		ClockSyncIntervalMs:  cfg.ClockSyncIntervalMs,
		MaxRewindMs:          cfg.MaxRewindMs,
		InterpolationDelayMs: cfg.InterpolationDelayMs,
	}

	game := demoworld.NewGame()

	srv, err := netcode.NewServer[demoworld.World, demoworld.Input, demoworld.MoveClaim, demoworld.MoveResult](
		serverCfg, game, demoworld.NewWorld(), demoworld.ValidateMoveClaim, netcode.RealClock{},
	)
	if err != nil {
		logrus.WithError(err).Fatal("failed to construct server")
	}

	hub := newConnHub(srv)
	srv.SetObservers(netcode.ServerObservers[demoworld.MoveClaim, demoworld.MoveResult]{
		OnPlayerJoin:  hub.onPlayerJoin,
		OnPlayerLeave: hub.onPlayerLeave,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/play", hub.handleUpgrade)
	httpSrv := &http.Server{Addr: cfg.ListenAddr, Handler: mux}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		err := srv.Run(ctx, hub.broadcastSnapshot, hub.broadcastActionResults)
		if err != nil {
			logrus.WithError(err).Error("tick loop stopped")
		}
	}()

	go func() {
		logrus.WithField("addr", cfg.ListenAddr).Info("listening for websocket connections")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Fatal("http listener failed")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logrus.Info("shutdown signal received")
	cancel()
	_ = srv.Stop()
	_ = httpSrv.Close()
}

// connHub bridges netcode.Server's callback surface to a set of websocket
// transport.Channels, one per connected client.
type connHub struct {
	srv *netcode.Server[demoworld.World, demoworld.Input, demoworld.MoveClaim, demoworld.MoveResult]

	mu      sync.Mutex
	clients map[netcode.ClientID]transport.Channel
	nextID  atomic.Uint64
}

func newConnHub(srv *netcode.Server[demoworld.World, demoworld.Input, demoworld.MoveClaim, demoworld.MoveResult]) *connHub {
	return &connHub{srv: srv, clients: make(map[netcode.ClientID]transport.Channel)}
}

func (h *connHub) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	ch, err := transport.Upgrade(w, r)
	if err != nil {
		return
	}

	clientID := netcode.ClientID(fmt.Sprintf("client-%d", h.nextID.Add(1)))

	h.mu.Lock()
	h.clients[clientID] = ch
	h.mu.Unlock()

	h.srv.AddClient(clientID)
	go h.readLoop(clientID, ch)
}

func (h *connHub) readLoop(id netcode.ClientID, ch transport.Channel) {
	defer func() {
		h.mu.Lock()
		delete(h.clients, id)
		h.mu.Unlock()
		h.srv.RemoveClient(id)
		_ = ch.Close()
	}()

	for {
		env, err := ch.Receive()
		if err != nil {
			return
		}
		switch env.Type {
		case transport.TypeInput:
			var msg netcode.InputMessage[demoworld.Input]
			if err := transport.DecodePayload(env, &msg); err != nil {
				continue
			}
			h.srv.OnClientInput(id, msg.Input, msg.Seq)
		case transport.TypeAction:
			var msg netcode.ActionMessage[demoworld.MoveClaim]
			if err := transport.DecodePayload(env, &msg); err != nil {
				continue
			}
			h.srv.OnClientAction(id, msg.Seq, msg.Action, msg.ClientTimestamp)
		case transport.TypeClockSyncResponse:
			var msg netcode.ClockSyncResponseMessage
			if err := transport.DecodePayload(env, &msg); err != nil {
				continue
			}
			h.srv.OnClockSyncResponse(id, msg)
		}
	}
}

func (h *connHub) onPlayerJoin(id netcode.ClientID) {
	h.sendTo(id, transport.TypeJoin, netcode.JoinMessage{PlayerID: id})
}

func (h *connHub) onPlayerLeave(id netcode.ClientID) {
	h.broadcast(transport.TypeLeave, netcode.LeaveMessage{PlayerID: id})
}

func (h *connHub) broadcastSnapshot(snap netcode.Snapshot[demoworld.World]) {
	h.broadcast(transport.TypeSnapshot, netcode.SnapshotMessage[demoworld.World]{
		Tick:      snap.Tick,
		Timestamp: snap.WallTimestamp,
		State:     snap.State,
		InputAcks: snap.InputAcks,
	})
}

func (h *connHub) broadcastActionResults(results []netcode.ActionResult[demoworld.MoveClaim, demoworld.MoveResult]) {
	for _, r := range results {
		h.sendTo(r.ClientID, transport.TypeActionResult, netcode.ActionResultMessage[demoworld.MoveResult]{
			Seq:             r.Seq,
			Success:         r.Success,
			Result:          r.Result,
			ServerTimestamp: r.ServerTimestamp,
		})
	}
}

func (h *connHub) sendTo(id netcode.ClientID, msgType string, payload any) {
	h.mu.Lock()
	ch, ok := h.clients[id]
	h.mu.Unlock()
	if !ok {
		return
	}
	env, err := transport.EncodeEnvelope(msgType, payload)
	if err != nil {
		return
	}
	_ = ch.Send(env)
}

func (h *connHub) broadcast(msgType string, payload any) {
	env, err := transport.EncodeEnvelope(msgType, payload)
	if err != nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.clients {
		_ = ch.Send(env)
	}
}
