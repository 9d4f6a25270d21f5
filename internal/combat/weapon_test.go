package combat

import (
	"testing"
	"time"
)

func testProfile() Profile {
	return Profile{
		Type:         "test-rifle",
		Damage:       25,
		Range:        100,
		FireRateRPM:  600, // 100ms between shots
		MagazineSize: 3,
		ReloadTime:   2,
		Accuracy:     1,
	}
}

func TestFireRateBound(t *testing.T) {
	w := NewWeapon(testProfile())
	t0 := time.Unix(1000, 0)

	if !w.TryFire(t0) {
		t.Fatal("first shot rejected")
	}
	if w.TryFire(t0.Add(50 * time.Millisecond)) {
		t.Fatal("shot accepted inside the fire interval")
	}
	if w.CurrentAmmo() != 2 {
		t.Fatalf("rejected shot consumed ammo: %d", w.CurrentAmmo())
	}
	if !w.TryFire(t0.Add(100 * time.Millisecond)) {
		t.Fatal("shot rejected at exactly the fire interval")
	}
}

func TestFireIntervalKeepsFraction(t *testing.T) {
	p := testProfile()
	p.FireRateRPM = 700 // 85.714ms between shots; must not truncate to 85ms
	w := NewWeapon(p)
	t0 := time.Unix(1000, 0)

	if !w.TryFire(t0) {
		t.Fatal("first shot rejected")
	}
	if w.TryFire(t0.Add(85 * time.Millisecond)) {
		t.Fatal("shot accepted inside the 60000/700ms interval")
	}
	if !w.TryFire(t0.Add(86 * time.Millisecond)) {
		t.Fatal("shot rejected past the fire interval")
	}
}

func TestAmmoBoundAndAutoReload(t *testing.T) {
	w := NewWeapon(testProfile())
	now := time.Unix(1000, 0)

	for i := 0; i < 3; i++ {
		if !w.TryFire(now) {
			t.Fatalf("shot %d rejected", i)
		}
		if w.CurrentAmmo() < 0 || w.CurrentAmmo() > 3 {
			t.Fatalf("ammo out of bounds: %d", w.CurrentAmmo())
		}
		now = now.Add(200 * time.Millisecond)
	}
	if w.CurrentAmmo() != 0 {
		t.Fatalf("magazine not empty after three shots: %d", w.CurrentAmmo())
	}
	if !w.Reloading() {
		t.Fatal("emptying the magazine should start an automatic reload")
	}

	// Dry while the reload runs.
	if w.TryFire(now) {
		t.Fatal("fired while reloading")
	}
	if w.TryFire(now.Add(time.Second)) {
		t.Fatal("fired mid-reload")
	}

	// After reloadTime the magazine refills and firing resumes.
	now = now.Add(2100 * time.Millisecond)
	w.Update(now)
	if w.Reloading() {
		t.Fatal("reload never completed")
	}
	if w.CurrentAmmo() != 3 {
		t.Fatalf("ammo after reload = %d, want 3", w.CurrentAmmo())
	}
	if !w.TryFire(now) {
		t.Fatal("shot rejected after reload completed")
	}
}

func TestReloadIdempotent(t *testing.T) {
	w := NewWeapon(testProfile())
	t0 := time.Unix(1000, 0)
	w.TryFire(t0)

	w.StartReload(t0.Add(time.Second))
	started := w.ReloadStartedAt()
	if started.IsZero() {
		t.Fatal("reload did not record its start time")
	}

	w.StartReload(t0.Add(2 * time.Second))
	if !w.ReloadStartedAt().Equal(started) {
		t.Fatalf("second StartReload moved the start time: %v -> %v", started, w.ReloadStartedAt())
	}
}

func TestReloadFullMagazineNoop(t *testing.T) {
	w := NewWeapon(testProfile())
	w.StartReload(time.Unix(1000, 0))
	if w.Reloading() {
		t.Fatal("reload started with a full magazine")
	}
}

func TestCatalogLookup(t *testing.T) {
	c := DefaultCatalog()
	types := c.Types()
	if len(types) == 0 {
		t.Fatal("default catalog is empty")
	}
	for _, typ := range types {
		p, ok := c.Profile(typ)
		if !ok {
			t.Fatalf("listed type %q has no profile", typ)
		}
		if p.MagazineSize <= 0 || p.FireRateRPM <= 0 {
			t.Fatalf("profile %q has non-positive tuning: %+v", typ, p)
		}
	}
	if _, ok := c.Profile("bazooka"); ok {
		t.Fatal("unknown weapon type resolved")
	}
}
