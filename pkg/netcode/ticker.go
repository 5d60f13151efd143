package netcode

import "time"

// fixedTicker wraps time.Ticker behind a narrow interface so Run's loop body
// is the only place that reads real elapsed wall time.
type fixedTicker struct {
	t *time.Ticker
}

func newFixedTicker(interval time.Duration) *fixedTicker {
	return &fixedTicker{t: time.NewTicker(interval)}
}

func (f *fixedTicker) C() <-chan time.Time {
	return f.t.C
}

func (f *fixedTicker) Stop() {
	f.t.Stop()
}
