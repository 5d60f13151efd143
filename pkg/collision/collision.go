// Package collision provides the axis-aligned bounding box geometry and
// layer masking that charcontroller's raycasting and demoworld's static
// level platforms need. It is deliberately narrower than a general physics
// engine's shape matrix (circles, capsules, polygons): the controller only
// ever raycasts against boxes, so that is all this package implements.
package collision

// Layer defines collision layer bitflags, letting a Collider opt in or out
// of interacting with particular categories of geometry (e.g. a player
// passing through an ethereal trigger zone that still blocks enemies).
type Layer uint32

const (
	LayerNone    Layer = 0
	LayerPlayer  Layer = 1 << 0 // Player-controlled characters
	LayerTerrain Layer = 1 << 1 // Static level geometry
	LayerAll     Layer = 0xFFFFFFFF
)

// Collider is an axis-aligned bounding box gated by layer masking: two
// colliders only interact when CanCollide reports true for their
// Layer/Mask pair.
type Collider struct {
	Layer   Layer   // Which layer this collider belongs to
	Mask    Layer   // Which layers this collider can interact with
	X, Y    float64 // Top-left corner
	W, H    float64 // Dimensions
	Enabled bool    // Whether collision is active
}

// NewAABBCollider creates an axis-aligned bounding box collider.
func NewAABBCollider(x, y, w, h float64, layer, mask Layer) *Collider {
	return &Collider{
		Layer:   layer,
		Mask:    mask,
		X:       x,
		Y:       y,
		W:       w,
		H:       h,
		Enabled: true,
	}
}

// CanCollide checks if two colliders can interact based on layer masks: at
// least one side's mask must include the other's layer, and both must be
// enabled.
func CanCollide(a, b *Collider) bool {
	if !a.Enabled || !b.Enabled {
		return false
	}
	return (a.Layer&b.Mask) != 0 || (b.Layer&a.Mask) != 0
}

// Overlaps reports whether two AABB colliders intersect, ignoring layer
// masking (callers that care about masking should check CanCollide first).
func Overlaps(a, b *Collider) bool {
	return a.X < b.X+b.W &&
		a.X+a.W > b.X &&
		a.Y < b.Y+b.H &&
		a.Y+a.H > b.Y
}
