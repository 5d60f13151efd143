// Package transport provides a reference wire transport for pkg/netcode:
// a gorilla/websocket + JSON Channel, and an in-memory Channel for tests.
// Wire encoding is explicitly an external collaborator's concern (the
// netcode core never imports this package); a caller wires a Channel
// implementation to netcode.Server/Predictor/Reconciler at the application
// boundary.
package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// Envelope multiplexes the netcode wire message taxonomy over a single
// connection: Type names the concrete message (e.g. "input", "snapshot",
// "clockSyncRequest") and Payload carries its JSON encoding.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Message type tags used in Envelope.Type, matching the wire table.
const (
	TypeInput             = "input"
	TypeAction            = "action"
	TypeClockSyncRequest  = "clockSyncRequest"
	TypeClockSyncResponse = "clockSyncResponse"
	TypeSnapshot          = "snapshot"
	TypeActionResult      = "actionResult"
	TypeJoin              = "join"
	TypeLeave             = "leave"
)

// ErrChannelClosed is returned by Send/Receive once a Channel has been
// closed, by either side.
var ErrChannelClosed = errors.New("transport: channel closed")

// Channel is the minimal surface a caller needs to move Envelopes across a
// connection, abstracting over the concrete transport (websocket, in-memory
// pipe, or anything else a test or alternate deployment wants).
type Channel interface {
	Send(env Envelope) error
	Receive() (Envelope, error)
	Close() error
}

// EncodeEnvelope marshals a typed payload into an Envelope ready to Send.
func EncodeEnvelope(msgType string, payload any) (Envelope, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("transport: encode %s payload: %w", msgType, err)
	}
	return Envelope{Type: msgType, Payload: b}, nil
}

// DecodePayload unmarshals an Envelope's payload into dst.
func DecodePayload(env Envelope, dst any) error {
	if err := json.Unmarshal(env.Payload, dst); err != nil {
		return fmt.Errorf("transport: decode %s payload: %w", env.Type, err)
	}
	return nil
}

// InMemoryChannel is a Channel backed by a buffered Go channel, for tests
// and same-process client/server wiring that needs no real network socket.
// Use NewInMemoryPair to get two ends already connected to each other.
type InMemoryChannel struct {
	out       chan<- Envelope
	in        <-chan Envelope
	closeOnce sync.Once
	closed    chan struct{}
	closeOut  func()
}

// NewInMemoryPair builds two connected InMemoryChannels: messages sent on
// one arrive on the other's Receive, and vice versa.
func NewInMemoryPair(bufferSize int) (a, b *InMemoryChannel) {
	ab := make(chan Envelope, bufferSize)
	ba := make(chan Envelope, bufferSize)

	a = &InMemoryChannel{out: ab, in: ba, closed: make(chan struct{})}
	b = &InMemoryChannel{out: ba, in: ab, closed: make(chan struct{})}
	a.closeOut = func() { close(ab) }
	b.closeOut = func() { close(ba) }
	return a, b
}

// Send delivers env to the peer end, or returns ErrChannelClosed if this end
// has been closed.
func (c *InMemoryChannel) Send(env Envelope) error {
	select {
	case <-c.closed:
		return ErrChannelClosed
	default:
	}
	select {
	case c.out <- env:
		return nil
	case <-c.closed:
		return ErrChannelClosed
	}
}

// Receive blocks until a message arrives from the peer or the channel is
// closed.
func (c *InMemoryChannel) Receive() (Envelope, error) {
	select {
	case env, ok := <-c.in:
		if !ok {
			return Envelope{}, ErrChannelClosed
		}
		return env, nil
	case <-c.closed:
		return Envelope{}, ErrChannelClosed
	}
}

// Close marks this end closed and closes its outgoing channel. It does not
// close the peer: the peer can still Receive messages already buffered, after
// which its Receive returns ErrChannelClosed. Send on this end returns
// ErrChannelClosed.
func (c *InMemoryChannel) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.closeOut()
	})
	return nil
}
