package netcode

import (
	"errors"
	"fmt"
)

// Sentinel errors for the "missing collaborator" and "configuration invalid"
// taxonomy: both classes are fail-fast at construction, never
// surfaced mid-simulation.
var (
	ErrNilGame             = errors.New("netcode: game implementation must not be nil")
	ErrInvalidTickRate     = errors.New("netcode: tickRate must be > 0")
	ErrInvalidHistorySize  = errors.New("netcode: snapshotHistorySize must be a positive integer")
	ErrInvalidMaxRewind    = errors.New("netcode: maxRewindMs must be >= 0")
	ErrMissingPredictScope = errors.New("netcode: predictionScope must not be nil")
	ErrServerAlreadyRun    = errors.New("netcode: server already running")
	ErrServerNotRunning    = errors.New("netcode: server not running")
)

// SimulationError wraps a panic or error raised by a caller-supplied Simulate
// call. This is the one fatal class: the tick loop halts and this error is
// the diagnosable reason why, carrying the tick it died on.
type SimulationError struct {
	Tick Tick
	Err  error
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("netcode: simulate failed at tick %d: %v", e.Tick, e.Err)
}

func (e *SimulationError) Unwrap() error {
	return e.Err
}
