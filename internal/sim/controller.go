package sim

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"freerun/server/internal/phys"
)

// ledgeHangSetback is how far back from the grabbed ledge face the capsule
// center hangs.
const ledgeHangSetback = Radius + 0.35

// Controller advances one Character against a static collision world. It is
// not safe for concurrent use; server and client each drive their own
// instances from a single goroutine.
type Controller struct {
	Char   Character
	query  *phys.Query
	events Events

	jumpHeld   bool
	crouchHeld bool
	lastResult phys.Result
}

// NewController creates a controller for a character spawned at pos. The
// character starts airborne and settles onto whatever is below it.
func NewController(world []*phys.Collider, pos mgl32.Vec3) *Controller {
	return &Controller{
		Char: Character{
			Pos:         pos,
			Mode:        ModeAirborne,
			sinceGround: CoyoteTime * 100,
		},
		query:  phys.NewQuery(world),
		events: NopEvents{},
	}
}

// SetEvents installs the contextual-action listener. Passing nil restores
// the no-op listener.
func (c *Controller) SetEvents(ev Events) {
	if ev == nil {
		ev = NopEvents{}
	}
	c.events = ev
}

// LastResult returns the collision result of the most recent Step.
func (c *Controller) LastResult() phys.Result { return c.lastResult }

// Query exposes the collision query context (shared world access for the
// combat resolver).
func (c *Controller) Query() *phys.Query { return c.query }

// Step advances the character by dt seconds under one input snapshot.
func (c *Controller) Step(dt float32, in Input) {
	if dt <= 0 {
		return
	}
	ch := &c.Char

	if ch.JumpCooldown > 0 {
		ch.JumpCooldown -= dt
	}

	jumpPressed := in.Jump && !c.jumpHeld
	c.jumpHeld = in.Jump
	crouchPressed := in.Crouch && !c.crouchHeld
	c.crouchHeld = in.Crouch

	if look, ok := normalized(flat(in.Look)); ok {
		ch.Yaw = yawDegrees(look)
	}

	switch ch.Mode {
	case ModeMantling:
		c.stepMantle(dt)
		return
	case ModeLedgeHanging:
		c.stepLedge(dt, in, jumpPressed, crouchPressed)
		return
	}

	moveDir, moving := normalized(flat(in.Direction))

	// Crouching while sprinting on the ground converts into a slide boost.
	if ch.Mode == ModeGrounded && crouchPressed && ch.Sprinting {
		ch.Mode = ModeSliding
		ch.slideRemaining = SlideDuration
		ch.Vel[0] *= SlideBoost
		ch.Vel[2] *= SlideBoost
	}
	ch.Crouching = in.Crouch || ch.Mode == ModeSliding
	ch.Sprinting = in.Sprint && moving && !ch.Crouching

	c.shapeVelocity(dt, moveDir, moving)
	c.handleJump(jumpPressed)

	candidate := ch.Pos.Add(ch.Vel.Mul(dt))
	facing := in.Look
	if _, ok := normalized(flat(facing)); !ok {
		facing = moveDir
	}
	res := c.query.Check(candidate, &ch.Vel, dt, ch.Capsule(), facing, ch.Mode == ModeAirborne)
	ch.Pos = res.Adjusted
	c.lastResult = res

	if ch.Mode == ModeAirborne && res.CanGrabLedge && ch.Vel.Y() <= 1.0 {
		c.enterLedgeHang(res)
		return
	}

	c.updateWallRun(res, moveDir, moving)

	if res.OnGround {
		c.land()
	} else {
		ch.sinceGround += dt
		switch ch.Mode {
		case ModeGrounded:
			ch.Mode = ModeAirborne // walked off an edge; coyote window runs
		case ModeSliding:
			ch.Mode = ModeAirborne // slid off an edge; gravity takes over
		}
	}
}

// shapeVelocity applies the mode-appropriate acceleration and gravity.
func (c *Controller) shapeVelocity(dt float32, moveDir mgl32.Vec3, moving bool) {
	ch := &c.Char
	switch ch.Mode {
	case ModeSliding:
		ch.slideRemaining -= dt
		decay := math32.Exp(-SlideFriction * dt)
		ch.Vel[0] *= decay
		ch.Vel[2] *= decay
		if ch.slideRemaining <= 0 || flat(ch.Vel).Len() < CrouchSpeed {
			ch.Mode = ModeGrounded
		}

	case ModeWallRunning:
		ch.WallRunRemaining -= dt
		tangent := c.wallTangent()
		cur := flat(ch.Vel)
		blend := 1 - math32.Exp(-WallRunAccel*dt)
		next := cur.Add(tangent.Mul(WallRunSpeed).Sub(cur).Mul(blend))
		ch.Vel[0] = next.X()
		ch.Vel[2] = next.Z()
		ch.Vel[1] -= WallRunGravity * dt
		if ch.Vel[1] < -WallRunMaxFall {
			ch.Vel[1] = -WallRunMaxFall
		}
		// Lean into the wall so contact survives small surface noise.
		ch.Vel = ch.Vel.Sub(ch.WallNormal.Mul(WallRunLean * dt))

	default:
		speed := float32(WalkSpeed)
		if ch.Sprinting {
			speed = SprintSpeed
		} else if ch.Crouching {
			speed = CrouchSpeed
		}
		desired := mgl32.Vec3{}
		if moving {
			desired = moveDir.Mul(speed)
		}
		rate := float32(GroundAccel)
		if ch.Mode == ModeAirborne {
			rate = AirAccel
		}
		blend := 1 - math32.Exp(-rate*dt)
		cur := flat(ch.Vel)
		next := cur.Add(desired.Sub(cur).Mul(blend))
		ch.Vel[0] = next.X()
		ch.Vel[2] = next.Z()

		if ch.Mode == ModeAirborne {
			ch.Vel[1] -= Gravity * dt
			if ch.Vel[1] < -TerminalFall {
				ch.Vel[1] = -TerminalFall
			}
		}
	}
}

// handleJump resolves a jump press for the current mode. The upward
// velocity is an overwrite, never additive, so repeated applications cannot
// stack into a fly exploit.
func (c *Controller) handleJump(pressed bool) {
	if !pressed {
		return
	}
	ch := &c.Char
	switch {
	case ch.Mode == ModeWallRunning:
		c.wallJump(ch.WallNormal)

	case ch.CanJump && ch.JumpCooldown <= 0 && ch.sinceGround <= CoyoteTime:
		ch.Vel[1] = JumpSpeed
		ch.JumpCooldown = JumpCooldown
		ch.CanJump = false
		ch.Mode = ModeAirborne

	case ch.Mode == ModeAirborne && c.lastResult.HasWall && !c.lastResult.CanGrabLedge:
		c.wallJump(c.lastResult.WallNormal)
	}
}

// wallJump kicks the character away from a wall face and upward, keeping
// half of the tangential speed.
func (c *Controller) wallJump(wallNormal mgl32.Vec3) {
	ch := &c.Char
	n, ok := normalized(flat(wallNormal))
	if !ok {
		return
	}
	tangential := flat(ch.Vel).Sub(n.Mul(flat(ch.Vel).Dot(n)))
	ch.Vel = tangential.Mul(0.5).Add(n.Mul(WallJumpPush))
	ch.Vel[1] = WallJumpUp
	ch.JumpCooldown = JumpCooldown
	ch.Mode = ModeAirborne
	ch.WallRunRemaining = 0
	ch.wallRunSpent = false
}

// updateWallRun enters, sustains or exits the wall-run state based on the
// latest collision result.
func (c *Controller) updateWallRun(res phys.Result, moveDir mgl32.Vec3, moving bool) {
	ch := &c.Char
	if ch.Mode == ModeWallRunning {
		if ch.WallRunRemaining <= 0 {
			// A run that exhausted its timer cannot restart on the same
			// approach; the flag clears on ground contact or a wall jump.
			ch.wallRunSpent = true
		}
		if ch.WallRunRemaining <= 0 || !res.HasWall || res.OnGround || !moving {
			if !res.OnGround {
				ch.Mode = ModeAirborne
			}
			// Landing is finished by the caller's ground bookkeeping.
			return
		}
		ch.WallNormal = res.WallNormal
		return
	}

	if ch.Mode != ModeAirborne || ch.wallRunSpent || !res.HasWall || res.OnGround || !moving {
		return
	}
	if moveDir.Dot(res.WallNormal) > -0.3 {
		return // not moving into the wall
	}
	if flat(ch.Vel).Len() < WallRunMinSpeed {
		return
	}
	ch.Mode = ModeWallRunning
	ch.WallNormal = res.WallNormal
	ch.WallRunRemaining = WallRunMaxTime
	ch.Vel[1] = 0
	if c.wallTangent().Cross(res.WallNormal).Y() > 0 {
		ch.WallSide = 1
	} else {
		ch.WallSide = -1
	}
}

// wallTangent is the along-wall direction closest to the current travel.
func (c *Controller) wallTangent() mgl32.Vec3 {
	ch := &c.Char
	t := up().Cross(ch.WallNormal)
	if t.Dot(flat(ch.Vel)) < 0 {
		t = t.Mul(-1)
	}
	if n, ok := normalized(t); ok {
		return n
	}
	return mgl32.Vec3{}
}

// enterLedgeHang snaps the character into the hanging pose below the
// grabbed edge and surfaces the climb prompt.
func (c *Controller) enterLedgeHang(res phys.Result) {
	ch := &c.Char
	ch.Mode = ModeLedgeHanging
	ch.LedgePoint = res.LedgePoint
	ch.LedgeNormal = res.LedgeNormal
	hang := res.LedgePoint.Add(res.LedgeNormal.Mul(ledgeHangSetback))
	hang[1] = res.LedgePoint.Y() - LedgeHangDepth
	ch.Pos = hang
	ch.Vel = mgl32.Vec3{}
	ch.wallRunSpent = false
	c.events.ActionAvailable(ActionClimb)
}

// stepLedge handles input while hanging: jump mantles, crouch drops, and
// lateral input shimmies along the edge while the wall is still there.
func (c *Controller) stepLedge(dt float32, in Input, jumpPressed, crouchPressed bool) {
	ch := &c.Char
	switch {
	case jumpPressed:
		c.events.ActionCleared()
		ch.Mode = ModeMantling
		ch.mantleFrom = ch.Pos
		ch.mantleTo = ch.LedgePoint.Add(mgl32.Vec3{0, phys.GroundClearance, 0})
		ch.mantleProgress = 0
		return
	case crouchPressed:
		c.events.ActionCleared()
		ch.Mode = ModeAirborne
		ch.Vel = ch.LedgeNormal.Mul(1.0) // slight push clear of the wall
		ch.sinceGround = CoyoteTime * 100
		ch.CanJump = false
		return
	}

	tangent := up().Cross(ch.LedgeNormal)
	amount := flat(in.Direction).Dot(tangent)
	if math32.Abs(amount) < 0.3 {
		return
	}
	dir := tangent
	if amount < 0 {
		dir = dir.Mul(-1)
	}
	next := ch.Pos.Add(dir.Mul(ShimmySpeed * dt))
	// Only move while the grabbed wall continues under the hands.
	probe := next.Add(mgl32.Vec3{0, StandHeight * 0.8, 0})
	if _, ok := phys.Raycast(probe, ch.LedgeNormal.Mul(-1), c.query.World(), ledgeHangSetback+0.2); ok {
		ch.Pos = next
	}
}

// stepMantle drives the scripted climb from the hang pose to standing atop
// the ledge. Position follows a smooth-step curve; velocity is derived from
// the position delta so the motion is deterministic.
func (c *Controller) stepMantle(dt float32) {
	ch := &c.Char
	ch.mantleProgress += dt / MantleDuration
	if ch.mantleProgress > 1 {
		ch.mantleProgress = 1
	}
	s := ch.mantleProgress * ch.mantleProgress * (3 - 2*ch.mantleProgress)
	next := ch.mantleFrom.Add(ch.mantleTo.Sub(ch.mantleFrom).Mul(s))
	ch.Vel = next.Sub(ch.Pos).Mul(1 / dt)
	ch.Pos = next
	if ch.mantleProgress >= 1 {
		ch.Mode = ModeGrounded
		ch.Vel = mgl32.Vec3{}
		c.land()
	}
}

// land resets the grounded bookkeeping after any ground contact.
func (c *Controller) land() {
	ch := &c.Char
	ch.sinceGround = 0
	ch.CanJump = true
	ch.wallRunSpent = false
	if ch.Mode == ModeAirborne || ch.Mode == ModeWallRunning {
		ch.Mode = ModeGrounded
		ch.WallRunRemaining = 0
	}
	if ch.Vel[1] < 0 {
		ch.Vel[1] = 0
	}
}

// MantleProgress reports the scripted climb completion in [0, 1].
func (c *Controller) MantleProgress() float32 { return c.Char.mantleProgress }

func up() mgl32.Vec3 { return mgl32.Vec3{0, 1, 0} }

func flat(v mgl32.Vec3) mgl32.Vec3 { return mgl32.Vec3{v.X(), 0, v.Z()} }

func normalized(v mgl32.Vec3) (mgl32.Vec3, bool) {
	l := v.Len()
	if l < 1e-6 || math32.IsNaN(l) {
		return mgl32.Vec3{}, false
	}
	return v.Mul(1 / l), true
}
