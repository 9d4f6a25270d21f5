package combat

import (
	"math/rand"
	"time"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"freerun/server/internal/phys"
)

// Spread applied at Accuracy 0, in degrees, plus the hip-fire penalty when
// the shooter is not aiming down sights.
const (
	maxSpreadDeg = 5.0
	hipSpreadDeg = 2.0
)

// Target is a shootable player capsule. Base is the feet position.
type Target struct {
	ID      string
	Base    mgl32.Vec3
	Capsule phys.Capsule
}

// HitResult describes where a fired shot landed. TargetID is empty for
// world geometry hits, and Hit is false when the shot flew its full range
// without touching anything.
type HitResult struct {
	Hit      bool
	Point    mgl32.Vec3
	Normal   mgl32.Vec3
	TargetID string
	Damage   float32
}

// Resolver performs hit-scan resolution against a static world plus the
// current set of player targets.
type Resolver struct {
	world []*phys.Collider
	rng   *rand.Rand
}

// NewResolver builds a resolver over the world geometry. The seed controls
// spread jitter; fixed seeds make shot patterns reproducible in tests.
func NewResolver(world []*phys.Collider, seed int64) *Resolver {
	return &Resolver{world: world, rng: rand.New(rand.NewSource(seed))}
}

// Fire attempts one shot from the weapon. fired is false when the fire-rate
// gate, empty magazine or an in-progress reload rejected the trigger pull;
// a rejected shot changes nothing except a possible auto-reload start.
// First intersection wins between world geometry and targets; the shooter
// must be excluded from targets by the caller.
func (r *Resolver) Fire(now time.Time, origin, dir mgl32.Vec3, w *Weapon, targets []Target, aiming bool) (res HitResult, fired bool) {
	d := dir
	if l := d.Len(); l < 1e-6 {
		return HitResult{}, false
	} else {
		d = d.Mul(1 / l)
	}
	if !w.TryFire(now) {
		return HitResult{}, false
	}

	d = r.jitter(d, w.Profile.Accuracy, aiming)
	maxDist := w.Profile.Range

	worldDist := maxDist
	var worldHit phys.Hit
	haveWorld := false
	if h, ok := phys.Raycast(origin, d, r.world, maxDist); ok {
		worldDist = h.Distance
		worldHit = h
		haveWorld = true
	}

	bestDist := worldDist
	bestTarget := -1
	for i, t := range targets {
		dist, ok := phys.RayCapsule(origin, d, t.Base, t.Capsule)
		if ok && dist < bestDist {
			bestDist = dist
			bestTarget = i
		}
	}

	if bestTarget >= 0 {
		t := targets[bestTarget]
		point := origin.Add(d.Mul(bestDist))
		normal := mgl32.Vec3{point.X() - t.Base.X(), 0, point.Z() - t.Base.Z()}
		if l := normal.Len(); l > 1e-6 {
			normal = normal.Mul(1 / l)
		} else {
			normal = d.Mul(-1)
		}
		return HitResult{
			Hit:      true,
			Point:    point,
			Normal:   normal,
			TargetID: t.ID,
			Damage:   w.Profile.Damage,
		}, true
	}

	if haveWorld {
		return HitResult{Hit: true, Point: worldHit.Point, Normal: worldHit.Normal}, true
	}
	return HitResult{}, true
}

// jitter perturbs the fire direction within a cone whose angle shrinks with
// weapon accuracy; hip fire widens it further.
func (r *Resolver) jitter(dir mgl32.Vec3, accuracy float32, aiming bool) mgl32.Vec3 {
	spread := maxSpreadDeg * (1 - accuracy)
	if !aiming {
		spread += hipSpreadDeg
	}
	if spread <= 0 {
		return dir
	}
	dev := mgl32.DegToRad(spread) * math32.Sqrt(float32(r.rng.Float64()))
	az := 2 * math32.Pi * float32(r.rng.Float64())

	// Orthonormal basis around the fire direction.
	ref := mgl32.Vec3{0, 1, 0}
	if math32.Abs(dir.Y()) > 0.99 {
		ref = mgl32.Vec3{1, 0, 0}
	}
	e1 := dir.Cross(ref).Normalize()
	e2 := dir.Cross(e1)

	offset := e1.Mul(math32.Cos(az)).Add(e2.Mul(math32.Sin(az)))
	return dir.Mul(math32.Cos(dev)).Add(offset.Mul(math32.Sin(dev))).Normalize()
}
