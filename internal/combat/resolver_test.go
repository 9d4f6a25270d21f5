package combat

import (
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"freerun/server/internal/phys"
)

var targetCapsule = phys.Capsule{Height: 1.8, Radius: 0.4}

func TestFireHitsTarget(t *testing.T) {
	r := NewResolver(nil, 1)
	w := NewWeapon(testProfile())

	res, fired := r.Fire(time.Unix(1000, 0),
		mgl32.Vec3{0, 1.6, 0}, mgl32.Vec3{1, 0, 0}, w,
		[]Target{{ID: "victim", Base: mgl32.Vec3{10, 0, 0}, Capsule: targetCapsule}}, true)

	if !fired {
		t.Fatal("shot rejected")
	}
	if !res.Hit || res.TargetID != "victim" {
		t.Fatalf("expected target hit, got %+v", res)
	}
	if res.Damage != 25 {
		t.Fatalf("damage = %v, want 25", res.Damage)
	}
	if w.CurrentAmmo() != 2 {
		t.Fatalf("ammo after shot = %d, want 2", w.CurrentAmmo())
	}
}

func TestFireBlockedByWall(t *testing.T) {
	world := []*phys.Collider{phys.NewBox("cover", mgl32.Vec3{5, 0, -2}, mgl32.Vec3{6, 3, 2})}
	r := NewResolver(world, 1)
	w := NewWeapon(testProfile())

	res, fired := r.Fire(time.Unix(1000, 0),
		mgl32.Vec3{0, 1.6, 0}, mgl32.Vec3{1, 0, 0}, w,
		[]Target{{ID: "victim", Base: mgl32.Vec3{10, 0, 0}, Capsule: targetCapsule}}, true)

	if !fired || !res.Hit {
		t.Fatalf("expected world hit, got %+v fired=%v", res, fired)
	}
	if res.TargetID != "" {
		t.Fatal("cover did not block the shot")
	}
	if res.Damage != 0 {
		t.Fatalf("world hit carried damage %v", res.Damage)
	}
	if res.Point.X() < 4.9 || res.Point.X() > 5.1 {
		t.Fatalf("impact point %v not on the cover face", res.Point)
	}
}

func TestFireNearestTargetWins(t *testing.T) {
	r := NewResolver(nil, 1)
	w := NewWeapon(testProfile())

	res, fired := r.Fire(time.Unix(1000, 0),
		mgl32.Vec3{0, 1.6, 0}, mgl32.Vec3{1, 0, 0}, w,
		[]Target{
			{ID: "far", Base: mgl32.Vec3{20, 0, 0}, Capsule: targetCapsule},
			{ID: "near", Base: mgl32.Vec3{8, 0, 0}, Capsule: targetCapsule},
		}, true)

	if !fired || res.TargetID != "near" {
		t.Fatalf("expected nearest target, got %+v", res)
	}
}

func TestFireBeyondRangeMisses(t *testing.T) {
	r := NewResolver(nil, 1)
	w := NewWeapon(testProfile()) // range 100

	res, fired := r.Fire(time.Unix(1000, 0),
		mgl32.Vec3{0, 1.6, 0}, mgl32.Vec3{1, 0, 0}, w,
		[]Target{{ID: "victim", Base: mgl32.Vec3{150, 0, 0}, Capsule: targetCapsule}}, true)

	if !fired {
		t.Fatal("trigger pull should still consume the round")
	}
	if res.Hit {
		t.Fatalf("target beyond range was hit: %+v", res)
	}
}

func TestFireRespectsWeaponGate(t *testing.T) {
	r := NewResolver(nil, 1)
	w := NewWeapon(testProfile())
	t0 := time.Unix(1000, 0)
	targets := []Target{{ID: "victim", Base: mgl32.Vec3{10, 0, 0}, Capsule: targetCapsule}}

	if _, fired := r.Fire(t0, mgl32.Vec3{0, 1.6, 0}, mgl32.Vec3{1, 0, 0}, w, targets, true); !fired {
		t.Fatal("first shot rejected")
	}
	if _, fired := r.Fire(t0.Add(10*time.Millisecond), mgl32.Vec3{0, 1.6, 0}, mgl32.Vec3{1, 0, 0}, w, targets, true); fired {
		t.Fatal("second shot beat the fire-rate gate")
	}
}

func TestFireDegenerateDirection(t *testing.T) {
	r := NewResolver(nil, 1)
	w := NewWeapon(testProfile())

	if _, fired := r.Fire(time.Unix(1000, 0), mgl32.Vec3{0, 1.6, 0}, mgl32.Vec3{}, w, nil, true); fired {
		t.Fatal("zero direction should not fire")
	}
	if w.CurrentAmmo() != 3 {
		t.Fatalf("degenerate shot consumed ammo: %d", w.CurrentAmmo())
	}
}

func TestHipFireSpreads(t *testing.T) {
	// With accuracy 1 and aiming, every shot flies dead straight; hip fire
	// adds a cone, so over many shots at a distant small target some miss.
	r := NewResolver(nil, 42)
	profile := testProfile()
	profile.MagazineSize = 200
	profile.FireRateRPM = 60000
	w := NewWeapon(profile)

	target := []Target{{ID: "victim", Base: mgl32.Vec3{40, -0.9, 0}, Capsule: targetCapsule}}
	now := time.Unix(1000, 0)
	hits := 0
	for i := 0; i < 100; i++ {
		now = now.Add(10 * time.Millisecond)
		res, fired := r.Fire(now, mgl32.Vec3{0, 0, 0}, mgl32.Vec3{1, 0, 0}, w, target, false)
		if !fired {
			t.Fatalf("shot %d rejected", i)
		}
		if res.Hit {
			hits++
		}
	}
	if hits == 0 || hits == 100 {
		t.Fatalf("hip fire at long range should partially miss, hit %d/100", hits)
	}
}
