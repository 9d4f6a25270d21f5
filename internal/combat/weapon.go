package combat

import "time"

// Weapon is the per-player state of one equipped weapon type. Methods take
// the current time explicitly so the simulation clock stays testable.
type Weapon struct {
	Profile Profile

	ammo      int
	reloading bool

	lastFire    time.Time
	reloadStart time.Time
}

// NewWeapon returns a weapon with a full magazine.
func NewWeapon(p Profile) *Weapon {
	return &Weapon{Profile: p, ammo: p.MagazineSize}
}

// CurrentAmmo reports rounds left in the magazine, always within
// [0, MagazineSize].
func (w *Weapon) CurrentAmmo() int { return w.ammo }

// Reloading reports whether a reload is in progress as of the last Update.
func (w *Weapon) Reloading() bool { return w.reloading }

// ReloadStartedAt returns when the in-progress reload began; zero when no
// reload is running.
func (w *Weapon) ReloadStartedAt() time.Time { return w.reloadStart }

// fireInterval is the minimum spacing between accepted shots. Computed in
// nanoseconds so non-divisor fire rates keep their fractional millisecond.
func (w *Weapon) fireInterval() time.Duration {
	return time.Duration(float64(time.Minute) / float64(w.Profile.FireRateRPM))
}

// Update completes a due reload. Safe to call every tick.
func (w *Weapon) Update(now time.Time) {
	if !w.reloading {
		return
	}
	elapsed := now.Sub(w.reloadStart)
	if elapsed >= time.Duration(float64(w.Profile.ReloadTime)*float64(time.Second)) {
		w.ammo = w.Profile.MagazineSize
		w.reloading = false
		w.reloadStart = time.Time{}
	}
}

// StartReload begins refilling the magazine. Idempotent: a reload already
// in progress or a full magazine leaves the state untouched.
func (w *Weapon) StartReload(now time.Time) {
	if w.reloading || w.ammo == w.Profile.MagazineSize {
		return
	}
	w.reloading = true
	w.reloadStart = now
}

// TryFire consumes one round if the fire-rate gate, ammo and reload state
// allow it. An empty magazine automatically starts a reload instead.
func (w *Weapon) TryFire(now time.Time) bool {
	w.Update(now)
	if w.reloading {
		return false
	}
	if w.ammo <= 0 {
		w.StartReload(now)
		return false
	}
	if !w.lastFire.IsZero() && now.Sub(w.lastFire) < w.fireInterval() {
		return false
	}
	w.ammo--
	w.lastFire = now
	if w.ammo == 0 {
		w.StartReload(now)
	}
	return true
}
