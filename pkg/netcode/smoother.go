package netcode

import (
	"math"

	"github.com/sirupsen/logrus"
)

// Transform is the minimal renderable pose a smoother operates on. Games
// using richer poses embed this or convert to/from it at the render
// boundary; the smoother itself never needs more than this to interpolate.
type Transform struct {
	X, Y, Z float64
}

func lerpTransform(a, b Transform, t float64) Transform {
	return Transform{
		X: a.X + (b.X-a.X)*t,
		Y: a.Y + (b.Y-a.Y)*t,
		Z: a.Z + (b.Z-a.Z)*t,
	}
}

func distanceSq(a, b Transform) float64 {
	dx, dy, dz := b.X-a.X, b.Y-a.Y, b.Z-a.Z
	return dx*dx + dy*dy + dz*dz
}

// queuedTick is one authoritative pose, keyed by the tick it came from —
// a server tick for a spectator smoother, the local input seq for an owner
// smoother replaying reconciliation. The smoother itself never interprets
// the key beyond ordering and lookup.
type queuedTick struct {
	tick      Tick
	transform Transform
}

// SmootherMode selects how aggressively a Smoother buffers incoming ticks:
// the locally owned entity buffers as little as correctness allows (it is
// also being predicted), while a spectated entity buffers more to absorb
// jitter since it has no local prediction to fall back on.
type SmootherMode int

const (
	// SmootherOwner buffers minimally: one tick of slack.
	SmootherOwner SmootherMode = iota
	// SmootherSpectator buffers per ClientConfig.SpectatorInterpolation
	// (or an adaptively derived value). NewSmoother does not clamp it to
	// [2, 255]; ClampSpectatorInterpolation does.
	SmootherSpectator
)

const (
	minMultiplier             = 0.95
	maxMultiplier             = 1.05
	multiplierStepPerUnit     = 0.015
	minSpectatorInterpolation = 2
	maxSpectatorInterpolation = 255
)

// Smoother decouples the transform a game renders from the snapped,
// tick-quantized transform the simulation (or reconciliation replay)
// produces: it holds a small bounded queue of authoritative poses keyed by
// tick, and advances a rendered pose toward the oldest queued one at a
// per-axis move rate scaled by a movement multiplier clamped to
// [0.95, 1.05], so motion neither stutters nor visibly speeds up.
type Smoother struct {
	mode           SmootherMode
	interpolation  int // target queue depth
	maxOverBuffer  int
	teleportThresh float64

	enableExtrapolation bool
	maxExtrapolationMs  int64

	queue       []queuedTick
	rendered    Transform
	hasRendered bool

	lastProcessedTick Tick
	hasLastProcessed  bool

	multiplier float64

	moveRate        Transform // units per ms, per axis, toward the head target
	timeRemainingMs float64

	teleportedTick    Tick
	hasTeleportedTick bool

	lastVelocity    Transform // units per ms, for extrapolation
	extrapolatedMs  int64
	hasLastVelocity bool
}

// NewSmoother constructs a Smoother. interpolation is the target queue depth
// (typically 1 for owners; for spectators, SpectatorInterpolation or an
// adaptively derived value clamped to [2,255] — see ClampSpectatorInterpolation).
// maxOverBuffer bounds how far the queue may exceed interpolation before the
// oldest entries are discarded. teleportThreshold is the distance beyond
// which GetSmoothedTransform snaps instead of easing.
func NewSmoother(mode SmootherMode, interpolation int, maxOverBuffer int, teleportThreshold float64, enableExtrapolation bool, maxExtrapolationMs int64) *Smoother {
	if interpolation < 1 {
		interpolation = 1
	}
	if maxOverBuffer < 0 {
		maxOverBuffer = 0
	}
	return &Smoother{
		mode:                mode,
		interpolation:       interpolation,
		maxOverBuffer:       maxOverBuffer,
		teleportThresh:      teleportThreshold,
		enableExtrapolation: enableExtrapolation,
		maxExtrapolationMs:  maxExtrapolationMs,
		multiplier:          1.0,
	}
}

// ClampSpectatorInterpolation bounds an adaptively derived spectator
// interpolation target to [2, 255] per §4.5.
func ClampSpectatorInterpolation(v int) int {
	if v < minSpectatorInterpolation {
		return minSpectatorInterpolation
	}
	if v > maxSpectatorInterpolation {
		return maxSpectatorInterpolation
	}
	return v
}

// OnPostTick inserts a newly produced authoritative pose for the given tick:
// duplicates and ticks at-or-before the last processed one are ignored, as
// are entries at-or-before a still-pending Teleport's tick. When the queue
// would exceed interpolation+maxOverBuffer, the oldest entries are dropped.
// The movement multiplier is adjusted by 0.015*(queueLength-interpolation)
// each call and reset to 1.0 exactly when the queue is at its target depth,
// then clamped to [0.95, 1.05]. If the smoother was idle (no rates computed
// yet), move rates for the new head are calculated.
func (s *Smoother) OnPostTick(tick Tick, t Transform) {
	if s.hasLastProcessed && tick <= s.lastProcessedTick {
		logrus.WithFields(logrus.Fields{
			"system_name": "smoother",
			"tick":        tick,
			"last_tick":   s.lastProcessedTick,
		}).Warn("dropped duplicate or stale smoother tick")
		return
	}
	if s.hasTeleportedTick && tick <= s.teleportedTick {
		logrus.WithFields(logrus.Fields{
			"system_name":     "smoother",
			"tick":            tick,
			"teleported_tick": s.teleportedTick,
		}).Debug("ignored in-flight tick preceding teleport")
		return
	}
	s.lastProcessedTick = tick
	s.hasLastProcessed = true

	wasEmpty := len(s.queue) == 0
	s.queue = append(s.queue, queuedTick{tick: tick, transform: t})

	limit := s.interpolation + s.maxOverBuffer
	for len(s.queue) > limit && len(s.queue) > 0 {
		s.queue = s.queue[1:]
	}

	depth := len(s.queue)
	if depth == s.interpolation {
		s.multiplier = 1.0
	} else {
		s.multiplier += multiplierStepPerUnit * float64(depth-s.interpolation)
	}
	s.multiplier = clampMultiplier(s.multiplier)

	if wasEmpty && len(s.queue) > 0 {
		s.recalculateRates()
	}
}

func clampMultiplier(m float64) float64 {
	if m < minMultiplier {
		return minMultiplier
	}
	if m > maxMultiplier {
		return maxMultiplier
	}
	return m
}

// recalculateRates computes the per-axis move rate and remaining time to
// close the gap between the rendered transform and the head-of-queue
// target, called whenever the smoother starts advancing toward a new
// target (after initialization, or after reaching the previous target).
func (s *Smoother) recalculateRates() {
	if len(s.queue) == 0 {
		return
	}
	if !s.hasRendered {
		s.rendered = s.queue[0].transform
		s.hasRendered = true
	}
	target := s.queue[0].transform
	const assumedStepMs = 16.0 // one render frame at ~60Hz, the FishNet-pattern default step assumption
	s.timeRemainingMs = assumedStepMs
	s.moveRate = Transform{
		X: (target.X - s.rendered.X) / assumedStepMs,
		Y: (target.Y - s.rendered.Y) / assumedStepMs,
		Z: (target.Z - s.rendered.Z) / assumedStepMs,
	}
}

// GetSmoothedTransform advances the rendered transform by deltaMs of
// simulated time at moveRate*multiplier, snapping exactly and dequeuing on
// reaching the head target (carrying overshoot into the next advance). When
// the queue runs dry, spectators with extrapolation enabled continue moving
// at the last computed rate for up to maxExtrapolationMs before holding.
func (s *Smoother) GetSmoothedTransform(deltaMs float64) Transform {
	if len(s.queue) == 0 {
		return s.advanceDry(deltaMs)
	}
	if !s.hasRendered {
		s.rendered = s.queue[0].transform
		s.hasRendered = true
		s.recalculateRates()
	}

	target := s.queue[0].transform
	if s.teleportThresh > 0 && distanceSq(s.rendered, target) > s.teleportThresh*s.teleportThresh {
		s.rendered = target
		s.dequeueHead()
		return s.rendered
	}

	remaining := deltaMs
	for remaining > 0 && len(s.queue) > 0 {
		target = s.queue[0].transform
		step := remaining
		if s.timeRemainingMs > 0 && step > s.timeRemainingMs {
			step = s.timeRemainingMs
		}

		s.rendered.X += s.moveRate.X * step * s.multiplier
		s.rendered.Y += s.moveRate.Y * step * s.multiplier
		s.rendered.Z += s.moveRate.Z * step * s.multiplier
		s.timeRemainingMs -= step
		remaining -= step

		if s.timeRemainingMs <= 0 || distanceSq(s.rendered, target) < 1e-8 {
			s.rendered = target
			s.dequeueHead()
			if len(s.queue) > 0 {
				s.recalculateRates()
				// carry any leftover frame time into the new target
				continue
			}
		}
		if s.timeRemainingMs > 0 {
			break
		}
	}
	return s.rendered
}

func (s *Smoother) dequeueHead() {
	if len(s.queue) == 0 {
		return
	}
	s.lastVelocity = s.moveRate
	s.hasLastVelocity = true
	s.extrapolatedMs = 0
	s.queue = s.queue[1:]
}

// advanceDry handles GetSmoothedTransform when the queue has drained: either
// extrapolate from the last known rate (spectators only, bounded by
// maxExtrapolationMs) or hold the current rendered pose.
func (s *Smoother) advanceDry(deltaMs float64) Transform {
	if !s.enableExtrapolation || s.mode != SmootherSpectator || !s.hasLastVelocity {
		return s.rendered
	}
	if s.extrapolatedMs >= s.maxExtrapolationMs {
		return s.rendered
	}
	budget := s.maxExtrapolationMs - s.extrapolatedMs
	step := deltaMs
	if int64(step) > budget {
		step = float64(budget)
	}
	s.rendered.X += s.lastVelocity.X * step
	s.rendered.Y += s.lastVelocity.Y * step
	s.rendered.Z += s.lastVelocity.Z * step
	s.extrapolatedMs += int64(math.Round(step))
	return s.rendered
}

// EaseCorrection finds the queued entry keyed by tick and replaces it with a
// lerp between its current queued value and correctedTransform, weighted by
// an exponential ease curve so late (far-future) entries absorb most of the
// correction and near-term entries absorb little:
//
//	p = (index / (queueLen - 2)) ^ (queueLen - index)
//
// With more than two entries queued, p exceeds 1 for the newest entry, so
// that entry is moved past correctedTransform rather than onto it.
//
// Owners call this during reconciliation replay keyed by input seq; spectators
// key it by server tick. Returns whether the tick was found; a tick not
// present in the queue is a silent no-op (smoother tick misalignment, §7),
// physics is unaffected either way.
func (s *Smoother) EaseCorrection(tick Tick, correctedTransform Transform) bool {
	queueLen := len(s.queue)
	for index, entry := range s.queue {
		if entry.tick != tick {
			continue
		}
		var p float64
		if queueLen > 2 {
			p = math.Pow(float64(index)/float64(queueLen-2), float64(queueLen-index))
		} else {
			// Too few entries for the curve's denominator to be meaningful;
			// apply the full correction rather than divide by a
			// non-positive queueLen-2.
			p = 1.0
		}
		s.queue[index].transform = lerpTransform(entry.transform, correctedTransform, p)
		return true
	}
	return false
}

// Teleport snaps the rendered transform instantly to the given pose, clears
// the queue, and records tick so any still-in-flight OnPostTick entries with
// tick <= this one are ignored — eliminating the "slide back" artifact a
// respawn or level change would otherwise cause.
func (s *Smoother) Teleport(tick Tick, t Transform) {
	s.rendered = t
	s.hasRendered = true
	s.queue = nil
	s.teleportedTick = tick
	s.hasTeleportedTick = true
	s.lastProcessedTick = tick
	s.hasLastProcessed = true
	s.moveRate = Transform{}
	s.timeRemainingMs = 0
	s.hasLastVelocity = false
	s.extrapolatedMs = 0
	s.multiplier = 1.0
}

// QueueLen returns the number of poses currently queued.
func (s *Smoother) QueueLen() int {
	return len(s.queue)
}

// Rendered returns the smoother's current rendered transform.
func (s *Smoother) Rendered() Transform {
	return s.rendered
}

// Multiplier returns the smoother's current movement-rate multiplier,
// always within [0.95, 1.05].
func (s *Smoother) Multiplier() float64 {
	return s.multiplier
}
