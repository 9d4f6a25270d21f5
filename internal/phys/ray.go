package phys

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Hit is one ray intersection. Normal always faces back toward the ray
// origin so callers can use it directly as a push-out direction.
type Hit struct {
	Point    mgl32.Vec3
	Normal   mgl32.Vec3
	Distance float32
	Collider *Collider
}

// rayBox is the slab test against an axis-aligned box. dir must be unit
// length. Returns the entry distance and entry-face normal.
func rayBox(origin, dir mgl32.Vec3, b *Box, maxDist float32) (float32, mgl32.Vec3, bool) {
	tMin := float32(0)
	tMax := maxDist
	axis := -1
	sign := float32(0)

	for i := 0; i < 3; i++ {
		if math32.Abs(dir[i]) < 1e-8 {
			if origin[i] < b.Min[i] || origin[i] > b.Max[i] {
				return 0, mgl32.Vec3{}, false
			}
			continue
		}
		inv := 1 / dir[i]
		t1 := (b.Min[i] - origin[i]) * inv
		t2 := (b.Max[i] - origin[i]) * inv
		s := float32(-1)
		if t1 > t2 {
			t1, t2 = t2, t1
			s = 1
		}
		if t1 > tMin {
			tMin = t1
			axis = i
			sign = s
		}
		if t2 < tMax {
			tMax = t2
		}
		if tMin > tMax {
			return 0, mgl32.Vec3{}, false
		}
	}
	if axis < 0 {
		// Origin inside the box; report a zero-distance hit facing back
		// along the ray so penetration resolution can take over.
		n, ok := safeNormalize(dir.Mul(-1))
		if !ok {
			return 0, mgl32.Vec3{}, false
		}
		return 0, n, true
	}
	var n mgl32.Vec3
	n[axis] = sign
	return tMin, n, true
}

// rayTriangle is the Möller–Trumbore intersection test. dir must be unit
// length. Backfaces count; the returned normal is flipped to face the ray.
func rayTriangle(origin, dir mgl32.Vec3, tri *Triangle, maxDist float32) (float32, mgl32.Vec3, bool) {
	e1 := tri.B.Sub(tri.A)
	e2 := tri.C.Sub(tri.A)
	p := dir.Cross(e2)
	det := e1.Dot(p)
	if math32.Abs(det) < 1e-8 {
		return 0, mgl32.Vec3{}, false
	}
	inv := 1 / det
	s := origin.Sub(tri.A)
	u := s.Dot(p) * inv
	if u < 0 || u > 1 {
		return 0, mgl32.Vec3{}, false
	}
	q := s.Cross(e1)
	v := dir.Dot(q) * inv
	if v < 0 || u+v > 1 {
		return 0, mgl32.Vec3{}, false
	}
	t := e2.Dot(q) * inv
	if t < 0 || t > maxDist {
		return 0, mgl32.Vec3{}, false
	}
	n := tri.Normal
	if n.Dot(dir) > 0 {
		n = n.Mul(-1)
	}
	return t, n, true
}

// castCollider intersects a ray with one collider and returns the nearest
// hit. NonCollidable shapes never hit.
func castCollider(origin, dir mgl32.Vec3, c *Collider, maxDist float32) (Hit, bool) {
	if c.Kind == KindNonCollidable {
		return Hit{}, false
	}
	best := Hit{Distance: maxDist + 1}
	found := false
	if c.Box != nil {
		if t, n, ok := rayBox(origin, dir, c.Box, maxDist); ok && t < best.Distance {
			best = Hit{Point: origin.Add(dir.Mul(t)), Normal: n, Distance: t, Collider: c}
			found = true
		}
	}
	for i := range c.Mesh {
		if t, n, ok := rayTriangle(origin, dir, &c.Mesh[i], maxDist); ok && t < best.Distance {
			best = Hit{Point: origin.Add(dir.Mul(t)), Normal: n, Distance: t, Collider: c}
			found = true
		}
	}
	return best, found
}

// Raycast returns the nearest intersection of the ray with any collidable
// shape in world, or false when nothing is hit within maxDist.
func Raycast(origin, dir mgl32.Vec3, world []*Collider, maxDist float32) (Hit, bool) {
	d, ok := safeNormalize(dir)
	if !ok {
		return Hit{}, false
	}
	best := Hit{Distance: maxDist + 1}
	found := false
	for _, c := range world {
		if h, ok := castCollider(origin, d, c, maxDist); ok && h.Distance < best.Distance {
			best = h
			found = true
		}
	}
	return best, found
}

// RayCapsule intersects a ray with a vertical capsule whose feet sit at
// base. Used for hit-scan shots against other players. Returns the hit
// distance along the ray.
func RayCapsule(origin, dir, base mgl32.Vec3, capsule Capsule) (float32, bool) {
	d, ok := safeNormalize(dir)
	if !ok {
		return 0, false
	}
	r := capsule.Radius
	// Core segment of the capsule, sphere centers at both ends.
	a := base.Add(up.Mul(r))
	b := base.Add(up.Mul(math32.Max(capsule.Height-r, r)))

	best := float32(math32.MaxFloat32)
	found := false

	// Infinite cylinder around segment ab, then clamp to the segment span.
	axis := b.Sub(a)
	axisLen := axis.Len()
	if axisLen > 1e-6 {
		an := axis.Mul(1 / axisLen)
		ao := origin.Sub(a)
		dPerp := d.Sub(an.Mul(d.Dot(an)))
		oPerp := ao.Sub(an.Mul(ao.Dot(an)))
		qa := dPerp.Dot(dPerp)
		qb := 2 * dPerp.Dot(oPerp)
		qc := oPerp.Dot(oPerp) - r*r
		if qa > 1e-8 {
			disc := qb*qb - 4*qa*qc
			if disc >= 0 {
				t := (-qb - math32.Sqrt(disc)) / (2 * qa)
				if t >= 0 {
					along := origin.Add(d.Mul(t)).Sub(a).Dot(an)
					if along >= 0 && along <= axisLen {
						best = t
						found = true
					}
				}
			}
		}
	}

	// Sphere caps.
	for _, center := range [2]mgl32.Vec3{a, b} {
		oc := origin.Sub(center)
		qb := 2 * oc.Dot(d)
		qc := oc.Dot(oc) - r*r
		disc := qb*qb - 4*qc
		if disc < 0 {
			continue
		}
		t := (-qb - math32.Sqrt(disc)) / 2
		if t >= 0 && t < best {
			best = t
			found = true
		}
	}
	return best, found
}
