package netcode

import "time"

// ServerConfig configures a Server.
type ServerConfig struct {
	// TickRate is the fixed simulation rate in Hz. Must be > 0.
	TickRate int
	// SnapshotHistorySize is the number of recent snapshots the ring
	// retains, for broadcast replay and lag compensation lookups. Must be
	// a positive integer.
	SnapshotHistorySize int
	// ClockSyncIntervalMs is how often Server.DueClockSyncRequests reports a
	// client as due a clock-sync ping for offset/RTT estimation; sending the
	// ping is the caller's job. 0 disables clock sync entirely.
	ClockSyncIntervalMs int64
	// MaxRewindMs bounds how far into snapshot history the lag
	// compensator may reach.
	MaxRewindMs int64
	// InterpolationDelayMs is the render delay clients are expected to
	// apply to remote entities (see ClientConfig.InterpolationDelayMs).
	// The lag compensator subtracts it from a client's estimated time of
	// intent, since the client aimed at an interpolated past state, not
	// the live world (§4.7).
	InterpolationDelayMs int64
}

// DefaultServerConfig returns the server defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		TickRate:             60,
		SnapshotHistorySize:  180,
		ClockSyncIntervalMs:  5000,
		MaxRewindMs:          200,
		InterpolationDelayMs: 1000 / 60 * 2,
	}
}

// Validate checks the configuration invariants a Server construction must
// satisfy, failing fast and naming the offending field via the returned
// sentinel error.
func (c ServerConfig) Validate() error {
	if c.TickRate <= 0 {
		return ErrInvalidTickRate
	}
	if c.SnapshotHistorySize <= 0 {
		return ErrInvalidHistorySize
	}
	if c.MaxRewindMs < 0 {
		return ErrInvalidMaxRewind
	}
	return nil
}

// TickInterval is the derived fixed delta, 1000/TickRate milliseconds.
func (c ServerConfig) TickInterval() time.Duration {
	return time.Second / time.Duration(c.TickRate)
}

// TickIntervalMs is TickInterval expressed in milliseconds, the unit
// Simulate/SimulatePredicted receive.
func (c ServerConfig) TickIntervalMs() float64 {
	return 1000.0 / float64(c.TickRate)
}

// AdaptiveInterpolation selects a spectator smoother's buffer-size
// multiplier based on recent measured tick lag.
type AdaptiveInterpolation int

const (
	AdaptiveOff AdaptiveInterpolation = iota
	AdaptiveVeryLow
	AdaptiveLow
	AdaptiveModerate
	AdaptiveHigh
	AdaptiveVeryHigh
)

// Multiplier returns the tick-lag multiplier for the setting, or 0 for Off
// (meaning: do not derive interpolation adaptively).
func (a AdaptiveInterpolation) Multiplier() float64 {
	switch a {
	case AdaptiveVeryLow:
		return 0.45
	case AdaptiveLow:
		return 0.8
	case AdaptiveModerate:
		return 1.05
	case AdaptiveHigh:
		return 1.25
	case AdaptiveVeryHigh:
		return 1.5
	default:
		return 0
	}
}

// ClientConfig configures a client-side Predictor/Reconciler/Smoother set.
type ClientConfig struct {
	TickRate               int
	InterpolationDelayMs   int64
	OwnerInterpolation     int
	SpectatorInterpolation int
	AdaptiveInterpolation  AdaptiveInterpolation
	TeleportThreshold      float64
	MaxOverBuffer          int
	EnableExtrapolation    bool
	MaxExtrapolationMs     int64
}

// DefaultClientConfig returns the client defaults for a given
// server tick rate (InterpolationDelayMs and MaxExtrapolationMs derive from
// it: tickInterval*2).
func DefaultClientConfig(tickRate int) ClientConfig {
	tickIntervalMs := int64(1000 / tickRate)
	return ClientConfig{
		TickRate:               tickRate,
		InterpolationDelayMs:   tickIntervalMs * 2,
		OwnerInterpolation:     1,
		SpectatorInterpolation: 2,
		AdaptiveInterpolation:  AdaptiveOff,
		TeleportThreshold:      100,
		MaxOverBuffer:          3,
		EnableExtrapolation:    true,
		MaxExtrapolationMs:     tickIntervalMs * 2,
	}
}
