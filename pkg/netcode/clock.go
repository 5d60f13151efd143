package netcode

import "time"

// nowMs is the sole point in the package that reads the real wall clock,
// isolated so RealClock stays a one-line adapter and tests never need it.
func nowMs() int64 {
	return time.Now().UnixMilli()
}

// ManualClock is a Clock a test can advance explicitly, used throughout the
// netcode test suite in place of RealClock.
type ManualClock struct {
	ms int64
}

// NewManualClock creates a clock starting at the given millisecond value.
func NewManualClock(startMs int64) *ManualClock {
	return &ManualClock{ms: startMs}
}

// NowMs returns the current simulated time.
func (c *ManualClock) NowMs() int64 {
	return c.ms
}

// Advance moves the simulated clock forward by deltaMs.
func (c *ManualClock) Advance(deltaMs int64) {
	c.ms += deltaMs
}

// Set pins the simulated clock to an absolute value.
func (c *ManualClock) Set(ms int64) {
	c.ms = ms
}
