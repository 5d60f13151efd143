package netcode

import "github.com/sirupsen/logrus"

// sample is one received authoritative pose for a remote entity, stamped
// with the wall-clock time it was produced.
type sample struct {
	wallTimestamp int64
	transform     Transform
}

// InterpolationBuffer renders a remote (non-local, non-predicted) entity's
// position by deliberately displaying it InterpolationDelayMs in the past
// and lerping between the two real samples that bracket that delayed time.
// When the delayed time runs ahead of every received sample it holds the
// last known pose, or linearly extrapolates forward for up to
// MaxExtrapolationMs if the caller has enabled it.
type InterpolationBuffer struct {
	delayMs      int64
	maxOverBuf   int
	extrapolate  bool
	maxExtrapMs  int64

	samples []sample
}

// NewInterpolationBuffer constructs a buffer for one remote entity.
func NewInterpolationBuffer(delayMs int64, maxOverBuffer int, enableExtrapolation bool, maxExtrapolationMs int64) *InterpolationBuffer {
	if maxOverBuffer < 1 {
		maxOverBuffer = 1
	}
	return &InterpolationBuffer{
		delayMs:     delayMs,
		maxOverBuf:  maxOverBuffer,
		extrapolate: enableExtrapolation,
		maxExtrapMs: maxExtrapolationMs,
	}
}

// Add records a newly received pose for this entity, stamped with the wall
// time it arrived. Samples must arrive in non-decreasing wallTimestamp
// order; an out-of-order sample is dropped, matching SnapshotRing's policy.
// At most maxOverBuffer+2 samples are retained; beyond that, the oldest are
// evicted.
func (b *InterpolationBuffer) Add(wallTimestamp int64, t Transform) {
	if n := len(b.samples); n > 0 && wallTimestamp < b.samples[n-1].wallTimestamp {
		logrus.WithFields(logrus.Fields{
			"system_name": "interpolation_buffer",
			"timestamp":   wallTimestamp,
		}).Warn("dropped out-of-order interpolation sample")
		return
	}
	b.samples = append(b.samples, sample{wallTimestamp: wallTimestamp, transform: t})

	maxLen := b.maxOverBuf + 2
	if len(b.samples) > maxLen {
		b.samples = b.samples[len(b.samples)-maxLen:]
	}
}

// Sample returns the interpolated (or extrapolated, or held) transform to
// render at wall-clock time now:
//   - render time is now - delayMs
//   - if two samples bracket render time, lerp between them
//   - if render time is older than every sample, hold the oldest
//   - if render time is newer than every sample:
//   - with extrapolation enabled and within maxExtrapolationMs of the
//     newest sample, linearly extrapolate the last known velocity
//   - otherwise hold the newest sample
func (b *InterpolationBuffer) Sample(now int64) (Transform, bool) {
	if len(b.samples) == 0 {
		return Transform{}, false
	}
	renderTime := now - b.delayMs

	if renderTime <= b.samples[0].wallTimestamp {
		return b.samples[0].transform, true
	}

	for i := 0; i < len(b.samples)-1; i++ {
		a, c := b.samples[i], b.samples[i+1]
		if renderTime >= a.wallTimestamp && renderTime <= c.wallTimestamp {
			span := c.wallTimestamp - a.wallTimestamp
			if span <= 0 {
				return c.transform, true
			}
			t := float64(renderTime-a.wallTimestamp) / float64(span)
			return lerpTransform(a.transform, c.transform, t), true
		}
	}

	newest := b.samples[len(b.samples)-1]
	overshootMs := renderTime - newest.wallTimestamp

	if b.extrapolate && len(b.samples) >= 2 && overshootMs <= b.maxExtrapMs {
		prev := b.samples[len(b.samples)-2]
		span := newest.wallTimestamp - prev.wallTimestamp
		if span > 0 {
			velocity := Transform{
				X: (newest.transform.X - prev.transform.X) / float64(span),
				Y: (newest.transform.Y - prev.transform.Y) / float64(span),
				Z: (newest.transform.Z - prev.transform.Z) / float64(span),
			}
			return Transform{
				X: newest.transform.X + velocity.X*float64(overshootMs),
				Y: newest.transform.Y + velocity.Y*float64(overshootMs),
				Z: newest.transform.Z + velocity.Z*float64(overshootMs),
			}, true
		}
	}

	return newest.transform, true
}

// Len returns the number of retained samples.
func (b *InterpolationBuffer) Len() int {
	return len(b.samples)
}
