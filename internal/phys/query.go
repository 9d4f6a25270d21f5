package phys

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Geometry tolerances shared by the authoritative server and the predicting
// client. Both sides must agree on these or reconciliation rubber-bands.
const (
	// GroundTolerance is how far below the feet a walkable surface still
	// counts as ground contact.
	GroundTolerance = 0.25
	// GroundClearance is the resting gap kept between feet and ground.
	GroundClearance = 0.03
	// StepHeight is the tallest ledge walked up without jumping.
	StepHeight = 0.5
	// WalkableSlopeDeg is the steepest slope that still grounds the
	// character; beyond it only a slide force applies.
	WalkableSlopeDeg = 50

	// LedgeMinAbove and LedgeMaxAbove bound how far above the feet a
	// grabbable ledge surface may sit.
	LedgeMinAbove = 0.3
	LedgeMaxAbove = 3.0

	groundSnapTol  = 0.08 // beyond this the contact is a step, not ground
	stepMinSpeed   = 0.5  // horizontal m/s required to step up
	stepBoost      = 1.03 // forward nudge applied on a step so stairs don't stutter
	wallMargin     = 0.05
	wallDamping    = 0.98
	ceilingProbe   = 0.3
	slideAccel     = 12.0 // m/s^2 down a too-steep slope
	ledgeReach     = 0.65
	ledgeTopInset  = 0.35
	ledgeFlatMinY  = 0.85
	resolvePasses  = 4
	characterMass  = 80.0
	pushImpulseCap = 6.0
	groundRings    = 8
	wallRays       = 8
)

// Query is a reusable collision query context for one character. It owns
// scratch buffers so per-tick probing does not allocate; it never mutates
// the world it was built over.
type Query struct {
	world []*Collider
}

// NewQuery builds a query context over a static collider set.
func NewQuery(world []*Collider) *Query {
	return &Query{world: world}
}

// World returns the collider set the query was built over.
func (q *Query) World() []*Collider { return q.world }

// Check resolves a candidate position against the world and reports ground,
// wall, ceiling and ledge contact. vel is mutated in place to apply sliding,
// wall and step-up responses; that side effect is part of the contract.
// facing steers the ledge probe and may be zero. With an empty world or
// degenerate inputs the result is simply "no contact".
func (q *Query) Check(pos mgl32.Vec3, vel *mgl32.Vec3, dt float32, capsule Capsule, facing mgl32.Vec3, airborne bool) Result {
	res := Result{Adjusted: pos, GroundHeight: pos.Y()}
	if len(q.world) == 0 {
		return res
	}

	q.sweep(&res, pos, vel, dt, capsule)
	q.resolveWalls(&res, vel, capsule)
	q.probeGround(&res, vel, dt, capsule)
	q.probeCeiling(&res, vel, capsule)
	if airborne && !res.OnGround {
		q.probeLedge(&res, facing, vel, capsule)
	}
	return res
}

// sweep casts along the full per-tick displacement to stop fast movers from
// tunneling through thin walls before the discrete probes run.
func (q *Query) sweep(res *Result, pos mgl32.Vec3, vel *mgl32.Vec3, dt float32, capsule Capsule) {
	disp := horizontal(vel.Mul(dt))
	dist := disp.Len()
	if dist <= capsule.Radius {
		return
	}
	dir, ok := safeNormalize(disp)
	if !ok {
		return
	}
	from := pos.Sub(disp).Add(up.Mul(capsule.Height * 0.5))
	hit, found := Raycast(from, dir, q.world, dist+capsule.Radius)
	if !found || hit.Collider.Kind != KindStatic {
		return
	}
	stop := hit.Point.Sub(dir.Mul(capsule.Radius + wallMargin))
	res.Adjusted[0] = stop.X()
	res.Adjusted[2] = stop.Z()
	res.Contact = ContactSweep
	res.HasWall = true
	res.WallNormal = hit.Normal
	removeInward(vel, hit.Normal)
}

// resolveWalls pushes the capsule out of horizontal penetrations. Bounded
// passes so a character wedged between two colliders converges instead of
// oscillating.
func (q *Query) resolveWalls(res *Result, vel *mgl32.Vec3, capsule Capsule) {
	// Lowest ring sits above step height so stair faces read as ground for
	// the step-up path instead of walls.
	heights := [3]float32{StepHeight + 0.05, capsule.Height * 0.5, capsule.Height - 0.15}
	reach := capsule.Radius + wallMargin

	for pass := 0; pass < resolvePasses; pass++ {
		corrected := false
		for _, h := range heights {
			origin := res.Adjusted.Add(up.Mul(h))
			for i := 0; i < wallRays; i++ {
				ang := float32(i) * (2 * math32.Pi / wallRays)
				dir := mgl32.Vec3{math32.Cos(ang), 0, math32.Sin(ang)}
				hit, found := Raycast(origin, dir, q.world, reach)
				if !found {
					continue
				}
				if hit.Collider.Kind == KindMovable {
					q.pushMovable(res, *vel, hit.Collider)
					continue
				}
				n, ok := safeNormalize(horizontal(hit.Normal))
				if !ok {
					continue
				}
				depth := reach - hit.Distance
				res.Adjusted = res.Adjusted.Add(n.Mul(depth))
				res.HasWall = true
				res.WallNormal = n
				if res.Contact == ContactNone {
					res.Contact = ContactHorizontal
				} else if pass > 0 {
					res.Contact = ContactPenetration
				}
				removeInward(vel, n)
				vel[0] *= wallDamping
				vel[2] *= wallDamping
				corrected = true
			}
		}
		if !corrected {
			return
		}
	}
}

// pushMovable records a capped, mass-scaled impulse for a movable collider
// instead of blocking on it.
func (q *Query) pushMovable(res *Result, vel mgl32.Vec3, c *Collider) {
	for i := range res.Pushes {
		if res.Pushes[i].Collider == c {
			return
		}
	}
	mass := c.Mass
	if mass <= 0 {
		mass = 1
	}
	imp := horizontal(vel).Mul(characterMass / (characterMass + mass))
	if l := imp.Len(); l > pushImpulseCap {
		imp = imp.Mul(pushImpulseCap / l)
	}
	res.Pushes = append(res.Pushes, Push{Collider: c, Impulse: imp})
}

// probeGround casts the ring of downward probes under the capsule footprint
// and classifies the highest qualifying hit.
func (q *Query) probeGround(res *Result, vel *mgl32.Vec3, dt float32, capsule Capsule) {
	feetY := res.Adjusted.Y()
	// Extend the probe window by the distance fallen this tick so terminal
	// velocity cannot carry the feet past the window between queries.
	fall := float32(0)
	if vel.Y() < 0 {
		fall = -vel.Y() * dt
	}
	startUp := StepHeight + 0.05 + fall
	maxDist := startUp + GroundTolerance

	bestWalkable := float32(-math32.MaxFloat32)
	var bestNormal mgl32.Vec3
	haveWalkable := false
	bestCenter := float32(-math32.MaxFloat32)
	var centerNormal mgl32.Vec3
	haveCenter := false
	bestSteep := float32(-math32.MaxFloat32)
	var steepNormal mgl32.Vec3
	haveSteep := false

	ringR := capsule.Radius * 0.7
	for i := 0; i <= groundRings; i++ {
		origin := res.Adjusted.Add(up.Mul(startUp))
		if i > 0 {
			ang := float32(i-1) * (2 * math32.Pi / groundRings)
			origin = origin.Add(mgl32.Vec3{ringR * math32.Cos(ang), 0, ringR * math32.Sin(ang)})
		}
		hit, found := Raycast(origin, up.Mul(-1), q.world, maxDist)
		if !found || hit.Collider.Kind != KindStatic {
			continue
		}
		angle := slopeDegrees(hit.Normal)
		if angle < WalkableSlopeDeg {
			if i == 0 && hit.Point.Y() > bestCenter {
				bestCenter = hit.Point.Y()
				centerNormal = hit.Normal
				haveCenter = true
			}
			if hit.Point.Y() > bestWalkable {
				bestWalkable = hit.Point.Y()
				bestNormal = hit.Normal
				haveWalkable = true
			}
		} else if hit.Point.Y() > bestSteep {
			bestSteep = hit.Point.Y()
			steepNormal = hit.Normal
			haveSteep = true
		}
	}

	// A surface above the feet under the capsule center means this tick's
	// fall carried the feet into it; ground there no matter the horizontal
	// speed. The bound keeps overhangs above the character from matching.
	if haveCenter && vel.Y() <= 0.01 {
		if dy := bestCenter - feetY; dy > groundSnapTol && dy <= fall+groundSnapTol {
			q.ground(res, vel, bestCenter, centerNormal)
		}
	}

	if !res.OnGround && haveWalkable && vel.Y() <= 0.01 {
		dy := bestWalkable - feetY
		switch {
		case dy <= groundSnapTol:
			q.ground(res, vel, bestWalkable, bestNormal)
		case dy <= StepHeight:
			// Stairs and curbs: lift onto the higher surface and nudge
			// forward so the climb doesn't bleed speed into a stutter.
			if horizontal(*vel).Len() >= stepMinSpeed {
				q.ground(res, vel, bestWalkable, bestNormal)
				res.SteppedUp = true
				vel[0] *= stepBoost
				vel[2] *= stepBoost
			}
		}
	}

	if !res.OnGround && haveSteep && bestSteep-feetY >= -GroundTolerance {
		// Too steep to stand on: no ground lock, only a slide force.
		res.OnSlope = true
		res.SlopeAngle = slopeDegrees(steepNormal)
		res.SlopeNormal = steepNormal
		down := up.Mul(-1)
		slide := down.Sub(steepNormal.Mul(down.Dot(steepNormal)))
		if dir, ok := safeNormalize(slide); ok {
			*vel = vel.Add(dir.Mul(slideAccel * dt))
		}
	}
}

// ground snaps the capsule onto a walkable surface and zeroes any downward
// velocity.
func (q *Query) ground(res *Result, vel *mgl32.Vec3, surfaceY float32, normal mgl32.Vec3) {
	res.OnGround = true
	res.GroundHeight = surfaceY
	res.SlopeNormal = normal
	res.SlopeAngle = slopeDegrees(normal)
	res.OnSlope = res.SlopeAngle > 1
	res.Adjusted[1] = surfaceY + GroundClearance
	if vel.Y() < 0 {
		vel[1] = 0
	}
}

// probeCeiling caps upward motion with a single head-height probe.
func (q *Query) probeCeiling(res *Result, vel *mgl32.Vec3, capsule Capsule) {
	origin := res.Adjusted.Add(up.Mul(capsule.Height - 0.1))
	hit, found := Raycast(origin, up, q.world, ceilingProbe)
	if !found || hit.Collider.Kind != KindStatic {
		return
	}
	res.HitCeiling = true
	if vel.Y() > 0 {
		vel[1] = 0
	}
	limit := hit.Point.Y() - capsule.Height - GroundClearance
	if res.Adjusted.Y() > limit {
		res.Adjusted[1] = limit
	}
}

// probeLedge looks for a grabbable edge: a near-vertical wall in the facing
// direction with a near-flat surface just past its lip, within the grab
// height band above the feet.
func (q *Query) probeLedge(res *Result, facing mgl32.Vec3, vel *mgl32.Vec3, capsule Capsule) {
	dir, ok := safeNormalize(horizontal(facing))
	if !ok {
		dir, ok = safeNormalize(horizontal(*vel))
		if !ok {
			return
		}
	}

	feetY := res.Adjusted.Y()
	for _, frac := range [3]float32{0.6, 0.8, 0.95} {
		origin := res.Adjusted.Add(up.Mul(capsule.Height * frac))
		wallHit, found := Raycast(origin, dir, q.world, capsule.Radius+ledgeReach)
		if !found || wallHit.Collider.Kind != KindStatic {
			continue
		}
		if math32.Abs(wallHit.Normal.Y()) > 0.35 {
			continue // not a wall face
		}
		wallN, ok := safeNormalize(horizontal(wallHit.Normal))
		if !ok {
			continue
		}
		probe := wallHit.Point.Add(wallN.Mul(-ledgeTopInset))
		probe[1] = feetY + LedgeMaxAbove + 0.1
		top, found := Raycast(probe, up.Mul(-1), q.world, LedgeMaxAbove-LedgeMinAbove+0.2)
		if !found || top.Collider.Kind != KindStatic {
			continue
		}
		if top.Normal.Y() < ledgeFlatMinY {
			continue
		}
		above := top.Point.Y() - feetY
		if above < LedgeMinAbove || above > LedgeMaxAbove {
			continue
		}
		res.CanGrabLedge = true
		res.LedgePoint = top.Point
		res.LedgeNormal = wallN
		return
	}
}

// removeInward strips the velocity component pointing into a contact
// normal, leaving the tangential slide.
func removeInward(vel *mgl32.Vec3, n mgl32.Vec3) {
	vn := vel.Dot(n)
	if vn < 0 {
		*vel = vel.Sub(n.Mul(vn))
	}
}

// slopeDegrees is the angle between a surface normal and world-up.
func slopeDegrees(n mgl32.Vec3) float32 {
	d := n.Dot(up)
	if d > 1 {
		d = 1
	} else if d < -1 {
		d = -1
	}
	return mgl32.RadToDeg(math32.Acos(math32.Abs(d)))
}
