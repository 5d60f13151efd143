package netcode

// Wire message taxonomy. Encoding is transport-dependent — see
// pkg/transport for a gorilla/websocket + JSON reference implementation —
// but every transport must preserve map structure, numeric precision, and
// nesting exactly as defined here.

// InputMessage carries one client-captured input, client-to-server.
type InputMessage[I TimestampedInput] struct {
	Seq       Seq   `json:"seq"`
	Input     I     `json:"input"`
	Timestamp int64 `json:"timestamp"`
}

// ActionMessage carries one discrete action for lag-compensated validation,
// client-to-server.
type ActionMessage[A any] struct {
	Seq             Seq   `json:"seq"`
	Action          A     `json:"action"`
	ClientTimestamp int64 `json:"clientTimestamp"`
}

// ClockSyncResponseMessage answers a ClockSyncRequestMessage, client-to-server.
type ClockSyncResponseMessage struct {
	ServerTimestamp int64 `json:"serverTimestamp"`
	ClientTimestamp int64 `json:"clientTimestamp"`
}

// SnapshotMessage broadcasts authoritative world state, server-to-client.
type SnapshotMessage[W any] struct {
	Tick      Tick                 `json:"tick"`
	Timestamp int64                `json:"timestamp"`
	State     W                    `json:"state"`
	InputAcks map[ClientID]Seq `json:"inputAcks"`
}

// ActionResultMessage answers an ActionMessage, server-to-client.
type ActionResultMessage[R any] struct {
	Seq             Seq   `json:"seq"`
	Success         bool  `json:"success"`
	Result          R     `json:"result,omitempty"`
	ServerTimestamp int64 `json:"serverTimestamp"`
}

// ClockSyncRequestMessage is emitted by the server at ClockSyncIntervalMs.
type ClockSyncRequestMessage struct {
	ServerTimestamp int64 `json:"serverTimestamp"`
}

// JoinMessage broadcasts a new player, server-to-client.
type JoinMessage struct {
	PlayerID ClientID `json:"playerId"`
}

// LeaveMessage broadcasts a departed player, server-to-client.
type LeaveMessage struct {
	PlayerID ClientID `json:"playerId"`
}
