// Package charcontroller implements a deterministic 2D platformer character
// controller: raycast ground detection against flat AABB platforms and
// one-way platforms. Move does not limit slopes; NormalWithinSlope is the only
// check against the maximum slope angle. It is a collaborator a Game implementation can call
// from inside Simulate, not a netcode component itself — the same
// controller code must run identically on the server and inside a client
// Predictor for prediction to agree with the authoritative simulation.
package charcontroller

import (
	"math"

	"github.com/opd-ai/netplay/pkg/collision"
)

// Platform is static level geometry the controller casts rays against.
// OneWay platforms only collide when the character is moving downward onto
// their top surface, letting a character jump up through them.
type Platform struct {
	Collider *collision.Collider
	OneWay   bool
}

// Config parameterizes a Controller's movement feel.
type Config struct {
	// MaxSlopeDegrees is the steepest ground angle NormalWithinSlope
	// accepts. Move does not consult it: it neither slides the character nor
	// treats steeper surfaces as walls.
	MaxSlopeDegrees float64
	// SkinWidth is the small buffer kept between the character's collider
	// and any surface, avoiding getting stuck exactly on a boundary.
	SkinWidth float64
	// GravityUnitsPerSec2 is the downward acceleration applied every step.
	GravityUnitsPerSec2 float64
	// MaxFallSpeed caps downward velocity.
	MaxFallSpeed float64
	// Layer is the character's own collision layer. A platform is raycast
	// against only if collision.CanCollide admits the pair: either side's
	// mask includes the other's layer, and neither collider is disabled.
	Layer collision.Layer
	// Mask is the set of platform layers this character can collide with.
	Mask collision.Layer
}

// DefaultConfig returns reasonable platformer defaults: a player-layer
// character that collides with everything.
func DefaultConfig() Config {
	return Config{
		MaxSlopeDegrees:     50,
		SkinWidth:           0.5,
		GravityUnitsPerSec2: 800,
		MaxFallSpeed:        1200,
		Layer:               collision.LayerPlayer,
		Mask:                collision.LayerAll,
	}
}

// State is the controller's per-tick kinematic state. Games embed this in
// their own player struct.
type State struct {
	X, Y         float64
	VelX, VelY   float64
	Grounded     bool
	GroundNormalX, GroundNormalY float64
}

// Controller advances a State by one fixed step against a set of static
// platforms. Stateless itself; all mutable state lives in the State value
// the caller passes in and gets back, so a client Predictor and the server
// Simulate loop can both call Move on the same world slice without sharing
// a Controller instance.
type Controller struct {
	cfg  Config
	self *collision.Collider
}

// New constructs a Controller with the given config.
func New(cfg Config) *Controller {
	return &Controller{
		cfg:  cfg,
		self: &collision.Collider{Layer: cfg.Layer, Mask: cfg.Mask, Enabled: true},
	}
}

// Move advances state by one fixed step of dtSeconds, applying gravity,
// horizontal input (moveX in [-1, 1]), a jump impulse when jump is true and
// the character is grounded, and resolving collisions against platforms via
// raycasting. The result is deterministic given identical inputs, the
// property client prediction and server simulation both depend on.
func (c *Controller) Move(s State, moveX float64, speed float64, jump bool, jumpSpeed float64, platforms []Platform, dtSeconds float64) State {
	s.VelX = moveX * speed

	if jump && s.Grounded {
		s.VelY = -jumpSpeed
		s.Grounded = false
	} else if !s.Grounded {
		s.VelY += c.cfg.GravityUnitsPerSec2 * dtSeconds
		if s.VelY > c.cfg.MaxFallSpeed {
			s.VelY = c.cfg.MaxFallSpeed
		}
	}

	dx := s.VelX * dtSeconds
	dy := s.VelY * dtSeconds

	s.X, dx = c.resolveAxis(s.X, s.Y, dx, true, platforms)
	s.Y, dy = c.resolveAxis(s.X, s.Y, dy, false, platforms)

	s = c.groundCheck(s, platforms)
	return s
}

// resolveAxis moves along one axis (horizontal when horizontal is true,
// vertical otherwise) by delta, casting a ray along the direction of travel
// from the character's position and clamping delta to stop at the first hit
// within SkinWidth. Returns the new coordinate and the (possibly clamped)
// delta actually applied.
func (c *Controller) resolveAxis(x, y, delta float64, horizontal bool, platforms []Platform) (float64, float64) {
	if delta == 0 {
		if horizontal {
			return x, delta
		}
		return y, delta
	}

	var dirX, dirY float64
	if horizontal {
		dirX = sign(delta)
	} else {
		dirY = sign(delta)
	}

	dist := math.Abs(delta)
	hitDist, hit := c.castRay(x, y, dirX, dirY, dist+c.cfg.SkinWidth, platforms, !horizontal && dirY > 0)
	if hit && hitDist < dist+c.cfg.SkinWidth {
		dist = math.Max(0, hitDist-c.cfg.SkinWidth)
	}

	if horizontal {
		return x + dist*dirX, dist * dirX
	}
	return y + dist*dirY, dist * dirY
}

// castRay finds the nearest platform the ray from (x,y) in direction
// (dirX,dirY) hits within maxDist, treating each platform's AABB as a
// simple slab. downward indicates a vertical ray moving down, the case
// one-way platforms filter on. A platform is skipped entirely when
// collision.CanCollide rejects the pair: neither side's mask includes the
// other's layer, or either collider is disabled.
func (c *Controller) castRay(x, y, dirX, dirY, maxDist float64, platforms []Platform, downward bool) (float64, bool) {
	best := maxDist
	found := false

	for _, p := range platforms {
		if !collision.CanCollide(c.self, p.Collider) {
			continue
		}
		if p.OneWay && !downward {
			continue
		}

		d, ok := raySlabAABB(x, y, dirX, dirY, p.Collider)
		if ok && d < best {
			best = d
			found = true
		}
	}
	return best, found
}

// raySlabAABB intersects a ray with an axis-aligned box using the slab
// method, returning the entry distance along the ray if it hits within
// [0, +inf).
func raySlabAABB(ox, oy, dx, dy float64, box *collision.Collider) (float64, bool) {
	if dx == 0 && dy == 0 {
		return 0, false
	}

	tmin, tmax := math.Inf(-1), math.Inf(1)

	if dx != 0 {
		tx1 := (box.X - ox) / dx
		tx2 := (box.X + box.W - ox) / dx
		if tx1 > tx2 {
			tx1, tx2 = tx2, tx1
		}
		tmin = math.Max(tmin, tx1)
		tmax = math.Min(tmax, tx2)
	} else if ox < box.X || ox > box.X+box.W {
		return 0, false
	}

	if dy != 0 {
		ty1 := (box.Y - oy) / dy
		ty2 := (box.Y + box.H - oy) / dy
		if ty1 > ty2 {
			ty1, ty2 = ty2, ty1
		}
		tmin = math.Max(tmin, ty1)
		tmax = math.Min(tmax, ty2)
	} else if oy < box.Y || oy > box.Y+box.H {
		return 0, false
	}

	if tmax < tmin || tmax < 0 {
		return 0, false
	}
	if tmin < 0 {
		tmin = 0
	}
	return tmin, true
}

// groundCheck casts a short ray straight down to decide Grounded and the
// ground normal. A platform AABB top surface is always flat in this model,
// so a grounded character always gets the normal (0, -1); no slope angle is
// computed or compared against MaxSlopeDegrees here.
func (c *Controller) groundCheck(s State, platforms []Platform) State {
	const probeDist = 2.0
	d, hit := c.castRay(s.X, s.Y, 0, 1, probeDist, platforms, true)
	if !hit || s.VelY < 0 {
		s.Grounded = false
		s.GroundNormalX, s.GroundNormalY = 0, 0
		return s
	}

	s.Grounded = d <= probeDist
	if s.Grounded {
		s.Y += d - c.cfg.SkinWidth
		s.VelY = 0
		s.GroundNormalX, s.GroundNormalY = 0, -1
	}
	return s
}

// maxSlopeRadians is MaxSlopeDegrees converted once per call; kept as a
// method for callers that want to validate a normal against the configured
// limit directly (e.g. a game's own slope-specific terrain).
func (c *Controller) maxSlopeRadians() float64 {
	return c.cfg.MaxSlopeDegrees * math.Pi / 180
}

// NormalWithinSlope reports whether a surface normal (nx, ny) is within the
// controller's configured maximum walkable slope, where (0,-1) is flat
// ground.
func (c *Controller) NormalWithinSlope(nx, ny float64) bool {
	// angle between normal and straight up (0,-1)
	dot := -ny
	angle := math.Acos(clampUnit(dot))
	return angle <= c.maxSlopeRadians()
}

func clampUnit(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}

func sign(v float64) float64 {
	if v > 0 {
		return 1
	}
	if v < 0 {
		return -1
	}
	return 0
}
