// Package phys implements the collision queries the character simulation is
// built on: downward ground probes, horizontal push-out, ceiling checks,
// ledge detection and hit-scan rays against a static set of colliders.
//
// The world is a flat list of colliders. Static colliders never change
// after construction; movable colliders are translated by their owner
// between queries on the simulating goroutine, so sharing across queries
// needs no synchronization.
package phys

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Kind classifies how a collider participates in collision resolution.
type Kind uint8

const (
	// KindStatic blocks the character and receives no forces.
	KindStatic Kind = iota
	// KindNonCollidable is skipped by every query (decor, triggers).
	KindNonCollidable
	// KindMovable never blocks the character; contact instead produces a
	// mass-scaled push impulse reported on the query result.
	KindMovable
)

// Triangle is one face of a mesh collider. Normal is unit length and
// precomputed at construction so per-probe work stays allocation free.
type Triangle struct {
	A, B, C mgl32.Vec3
	Normal  mgl32.Vec3
}

// Box is an axis-aligned collider volume.
type Box struct {
	Min, Max mgl32.Vec3
}

// Collider is one static world shape. Exactly one of Box or Mesh is set.
type Collider struct {
	Name string
	Kind Kind
	Mass float32 // only meaningful for KindMovable

	Box  *Box
	Mesh []Triangle
}

// NewBox builds a static box collider spanning min..max.
func NewBox(name string, min, max mgl32.Vec3) *Collider {
	return &Collider{Name: name, Kind: KindStatic, Box: &Box{Min: min, Max: max}}
}

// NewMesh builds a static triangle-mesh collider. Degenerate triangles
// (zero-area) are dropped rather than carried with a garbage normal.
func NewMesh(name string, verts [][3]mgl32.Vec3) *Collider {
	tris := make([]Triangle, 0, len(verts))
	for _, v := range verts {
		n := v[1].Sub(v[0]).Cross(v[2].Sub(v[0]))
		if n.LenSqr() < 1e-12 {
			continue
		}
		tris = append(tris, Triangle{A: v[0], B: v[1], C: v[2], Normal: n.Normalize()})
	}
	return &Collider{Name: name, Kind: KindStatic, Mesh: tris}
}

// Translate shifts the collider by delta. Call only between queries on the
// goroutine that owns the world.
func (c *Collider) Translate(delta mgl32.Vec3) {
	if c.Box != nil {
		c.Box.Min = c.Box.Min.Add(delta)
		c.Box.Max = c.Box.Max.Add(delta)
	}
	for i := range c.Mesh {
		c.Mesh[i].A = c.Mesh[i].A.Add(delta)
		c.Mesh[i].B = c.Mesh[i].B.Add(delta)
		c.Mesh[i].C = c.Mesh[i].C.Add(delta)
	}
}

// Capsule is the character's implicit collision shape, origin at the feet.
type Capsule struct {
	Height float32
	Radius float32
}

// Contact reports which detection path produced a horizontal correction.
type Contact uint8

const (
	ContactNone Contact = iota
	ContactHorizontal
	ContactSweep
	ContactPenetration
)

// Push is a capped impulse owed to a movable collider that the character
// ran into this query.
type Push struct {
	Collider *Collider
	Impulse  mgl32.Vec3
}

// Result is the outcome of one collision query. Adjusted is always a
// position that does not interpenetrate any non-movable collider beyond the
// configured epsilon.
type Result struct {
	OnGround     bool
	GroundHeight float32
	SlopeAngle   float32 // degrees from world-up
	SlopeNormal  mgl32.Vec3
	OnSlope      bool
	SteppedUp    bool

	Contact    Contact
	WallNormal mgl32.Vec3
	HasWall    bool

	HitCeiling bool

	CanGrabLedge bool
	LedgePoint   mgl32.Vec3
	LedgeNormal  mgl32.Vec3 // horizontal, pointing out of the wall face

	Adjusted mgl32.Vec3
	Pushes   []Push
}

// up is world-up; the simulation uses a Y-up right-handed space in meters.
var up = mgl32.Vec3{0, 1, 0}

// horizontal returns v with its vertical component removed.
func horizontal(v mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{v.X(), 0, v.Z()}
}

// safeNormalize returns the unit vector of v, or (zero, false) when v is too
// short to normalize without blowing up.
func safeNormalize(v mgl32.Vec3) (mgl32.Vec3, bool) {
	l := v.Len()
	if l < 1e-6 || math32.IsNaN(l) {
		return mgl32.Vec3{}, false
	}
	return v.Mul(1 / l), true
}
