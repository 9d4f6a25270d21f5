// Package client mirrors the server simulation for latency hiding: the
// local player is predicted with the same character controller the server
// runs, then reconciled against authoritative snapshots; remote players
// are smoothed toward their snapshot targets.
package client

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"freerun/server/internal/phys"
	"freerun/server/internal/sim"
)

const (
	// Divergence below this is rendering noise and left alone.
	reconcileDeadzone = 0.05
	// Divergence above this means prediction went badly wrong (missed
	// collision, dropped input); hard-set rather than drag the player
	// through geometry while correcting.
	reconcileSnap = 2.0
	// Fraction-per-second pull toward the authoritative position for
	// mid-range divergence.
	reconcileRate = 12.0

	// Remote players chase their snapshot target at this rate. High enough
	// to track sprinting players, low enough to hide tick quantization.
	remoteLerpRate = 14.0
	// A remote target further than this is a teleport (respawn); snap.
	remoteSnap = 5.0
)

// Predictor runs the local player's simulation ahead of the server.
type Predictor struct {
	ctrl   *sim.Controller
	primed bool
}

// NewPredictor simulates against the same collider set the server uses.
// The position is provisional until the init snapshot arrives.
func NewPredictor(world []*phys.Collider, pos mgl32.Vec3) *Predictor {
	return &Predictor{ctrl: sim.NewController(world, pos)}
}

// Frame advances local prediction by one rendered frame.
func (p *Predictor) Frame(dt float32, in sim.Input) {
	p.ctrl.Step(dt, in)
}

// Character exposes the predicted state for rendering and for building
// outbound state reports.
func (p *Predictor) Character() *sim.Character { return &p.ctrl.Char }

// Reconcile merges one authoritative position/velocity sample into the
// predicted state. The first sample hard-sets the spawn; afterwards small
// divergence is ignored, moderate divergence is pulled back smoothly and
// large divergence snaps.
func (p *Predictor) Reconcile(dt float32, serverPos, serverVel mgl32.Vec3) {
	ch := &p.ctrl.Char
	if !p.primed {
		p.primed = true
		ch.Pos = serverPos
		ch.Vel = serverVel
		return
	}

	diff := serverPos.Sub(ch.Pos)
	dist := diff.Len()
	switch {
	case dist <= reconcileDeadzone:
	case dist >= reconcileSnap:
		ch.Pos = serverPos
		ch.Vel = serverVel
	default:
		t := 1 - math32.Exp(-reconcileRate*dt)
		ch.Pos = ch.Pos.Add(diff.Mul(t))
	}
}

// RemotePlayer is the render-side view of another player, eased toward the
// latest snapshot instead of snapped.
type RemotePlayer struct {
	ID string

	Pos mgl32.Vec3
	Yaw float32

	targetPos mgl32.Vec3
	targetYaw float32

	Mode      string
	Crouching bool
	Weapon    string
	Health    float32

	primed bool
}

// SetTarget records the latest authoritative snapshot for this player.
func (r *RemotePlayer) SetTarget(pos mgl32.Vec3, yaw float32) {
	if !r.primed || pos.Sub(r.Pos).Len() >= remoteSnap {
		r.primed = true
		r.Pos = pos
		r.Yaw = yaw
	}
	r.targetPos = pos
	r.targetYaw = yaw
}

// Update eases the rendered transform toward the snapshot target.
func (r *RemotePlayer) Update(dt float32) {
	t := 1 - math32.Exp(-remoteLerpRate*dt)
	r.Pos = r.Pos.Add(r.targetPos.Sub(r.Pos).Mul(t))
	r.Yaw += shortestAngle(r.targetYaw-r.Yaw) * t
}

// shortestAngle wraps a degree delta into [-180, 180) so yaw easing takes
// the short way around.
func shortestAngle(deg float32) float32 {
	deg = math32.Mod(deg, 360)
	if deg >= 180 {
		deg -= 360
	}
	if deg < -180 {
		deg += 360
	}
	return deg
}
