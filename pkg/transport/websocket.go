package transport

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// upgrader is shared across accepted connections; origin checking is left
// permissive here since the reference transport has no notion of trusted
// origins of its own (a deployment fronting it with a reverse proxy should
// enforce that).
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// WSChannel is a Channel backed by a gorilla/websocket connection, framing
// every message as one JSON-encoded Envelope per websocket text frame.
// Generalizes pkg/network/gameserver.go's playerClient connection handling
// from raw net.Conn plus a PlayerCommand-specific framing to a
// websocket.Conn carrying the Envelope taxonomy.
type WSChannel struct {
	conn *websocket.Conn

	writeMu   sync.Mutex
	closeOnce sync.Once
}

// NewWSChannel wraps an already-established websocket connection (the
// result of either Upgrade on the server side or websocket.Dial on the
// client side).
func NewWSChannel(conn *websocket.Conn) *WSChannel {
	return &WSChannel{conn: conn}
}

// Send writes one Envelope as a JSON text frame. Safe for concurrent use:
// gorilla/websocket requires writes to be serialized, which writeMu
// enforces.
func (c *WSChannel) Send(env Envelope) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(env)
}

// Receive reads the next Envelope. Not safe for concurrent use from
// multiple goroutines (gorilla/websocket requires a single reader).
func (c *WSChannel) Receive() (Envelope, error) {
	var env Envelope
	if err := c.conn.ReadJSON(&env); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

// Close closes the underlying connection once.
func (c *WSChannel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.conn.Close()
	})
	return err
}

// Upgrade upgrades an incoming HTTP request to a websocket connection and
// returns a Channel wrapping it, for use in an http.HandlerFunc registered
// against the server's listen address.
func Upgrade(w http.ResponseWriter, r *http.Request) (*WSChannel, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"system_name": "transport",
			"remote_addr": r.RemoteAddr,
		}).WithError(err).Error("websocket upgrade failed")
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"system_name": "transport",
		"remote_addr": r.RemoteAddr,
	}).Info("websocket connection accepted")
	return NewWSChannel(conn), nil
}

// Dial opens a client-side websocket connection to url (e.g.
// "ws://host:port/play") and returns a Channel wrapping it.
func Dial(url string) (*WSChannel, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, err
	}
	return NewWSChannel(conn), nil
}
