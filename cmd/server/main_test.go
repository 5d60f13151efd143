package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/opd-ai/netplay/pkg/demoworld"
	"github.com/opd-ai/netplay/pkg/netcode"
	"github.com/opd-ai/netplay/pkg/transport"
)

func newTestServer(t *testing.T) *netcode.Server[demoworld.World, demoworld.Input, demoworld.MoveClaim, demoworld.MoveResult] {
	t.Helper()
	cfg := netcode.ServerConfig{
		TickRate:            60,
		SnapshotHistorySize: 16,
		ClockSyncIntervalMs: 0,
		MaxRewindMs:         200,
	}
	srv, err := netcode.NewServer[demoworld.World, demoworld.Input, demoworld.MoveClaim, demoworld.MoveResult](
		cfg, demoworld.NewGame(), demoworld.NewWorld(), demoworld.ValidateMoveClaim, netcode.RealClock{},
	)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return srv
}

func TestConnHub_PlayerJoinLeave(t *testing.T) {
	srv := newTestServer(t)
	hub := newConnHub(srv)

	var joined, left []netcode.ClientID
	srv.SetObservers(netcode.ServerObservers[demoworld.MoveClaim, demoworld.MoveResult]{
		OnPlayerJoin:  func(id netcode.ClientID) { joined = append(joined, id) },
		OnPlayerLeave: func(id netcode.ClientID) { left = append(left, id) },
	})

	ts := httptest.NewServer(http.HandlerFunc(hub.handleUpgrade))
	defer ts.Close()

	wsURL := "ws" + ts.URL[len("http"):] + "/play"
	conn, err := transport.Dial(wsURL)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	if len(joined) != 1 {
		t.Fatalf("expected 1 join observed, got %d", len(joined))
	}

	conn.Close()
	time.Sleep(50 * time.Millisecond)
	if len(left) != 1 {
		t.Fatalf("expected 1 leave observed, got %d", len(left))
	}
}

func TestConnHub_InputRoutesToServer(t *testing.T) {
	srv := newTestServer(t)
	hub := newConnHub(srv)

	ts := httptest.NewServer(http.HandlerFunc(hub.handleUpgrade))
	defer ts.Close()

	wsURL := "ws" + ts.URL[len("http"):] + "/play"
	conn, err := transport.Dial(wsURL)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	time.Sleep(20 * time.Millisecond)

	env, err := transport.EncodeEnvelope(transport.TypeInput, netcode.InputMessage[demoworld.Input]{
		Seq:       0,
		Input:     demoworld.Input{MoveX: 1, TimestampMs: 1000},
		Timestamp: 1000,
	})
	if err != nil {
		t.Fatalf("EncodeEnvelope: %v", err)
	}
	if err := conn.Send(env); err != nil {
		t.Fatalf("Send: %v", err)
	}

	time.Sleep(20 * time.Millisecond)

	if _, err := srv.Tick(); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	snap := srv.World()
	if len(snap.Players) == 0 {
		t.Fatal("expected at least the connected player's state in the world")
	}
}

func TestConnHub_BroadcastSnapshotReachesClient(t *testing.T) {
	srv := newTestServer(t)
	hub := newConnHub(srv)

	ts := httptest.NewServer(http.HandlerFunc(hub.handleUpgrade))
	defer ts.Close()

	wsURL := "ws" + ts.URL[len("http"):] + "/play"
	conn, err := transport.Dial(wsURL)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	time.Sleep(20 * time.Millisecond)

	snap, err := srv.Tick()
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	hub.broadcastSnapshot(snap)

	done := make(chan error, 1)
	go func() {
		_, err := conn.Receive()
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Receive: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for broadcast snapshot")
	}
}
