// Package sim owns one character's movement simulation: position, velocity
// and parkour mode, advanced one input snapshot at a time against a static
// collision world. The same code runs authoritatively on the server and
// predictively on the client.
package sim

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"freerun/server/internal/phys"
)

// Mode is the character's mutually exclusive movement state. Crouching and
// sprinting are modifier flags layered on Grounded/Airborne, not modes of
// their own; the parkour modes suspend normal gravity handling entirely.
type Mode uint8

const (
	ModeGrounded Mode = iota
	ModeAirborne
	ModeSliding
	ModeWallRunning
	ModeLedgeHanging
	ModeMantling
)

func (m Mode) String() string {
	switch m {
	case ModeGrounded:
		return "grounded"
	case ModeAirborne:
		return "airborne"
	case ModeSliding:
		return "sliding"
	case ModeWallRunning:
		return "wallRunning"
	case ModeLedgeHanging:
		return "ledgeHanging"
	case ModeMantling:
		return "mantling"
	}
	return "unknown"
}

// Input is one tick's worth of player intent. Direction is a world-space
// horizontal movement direction (not necessarily unit length; it is
// normalized before use). Look steers ledge grabs and firing.
type Input struct {
	Direction mgl32.Vec3
	Look      mgl32.Vec3

	Jump   bool
	Crouch bool
	Sprint bool
	Fire   bool
	Aim    bool
	Reload bool
}

// Character is the simulated state for one player. The server copy is
// authoritative; a client copy of the local player is a disposable
// prediction overwritten whenever the server contradicts it.
type Character struct {
	Pos mgl32.Vec3
	Vel mgl32.Vec3

	Mode      Mode
	Crouching bool
	Sprinting bool
	Yaw       float32 // degrees, derived from the last non-zero look

	// Wall-run state, valid while Mode == ModeWallRunning.
	WallNormal       mgl32.Vec3
	WallSide         int8 // -1 wall on the left, +1 wall on the right
	WallRunRemaining float32

	// Ledge state, valid while hanging or mantling.
	LedgePoint  mgl32.Vec3
	LedgeNormal mgl32.Vec3

	CanJump      bool
	JumpCooldown float32

	sinceGround    float32
	slideRemaining float32
	wallRunSpent   bool
	mantleFrom     mgl32.Vec3
	mantleTo       mgl32.Vec3
	mantleProgress float32
}

// Capsule returns the current collision shape; crouching and sliding use
// the short capsule.
func (c *Character) Capsule() phys.Capsule {
	if c.Crouching || c.Mode == ModeSliding {
		return phys.Capsule{Height: CrouchHeight, Radius: Radius}
	}
	return phys.Capsule{Height: StandHeight, Radius: Radius}
}

// EyeHeight is the camera/muzzle height above the feet.
func (c *Character) EyeHeight() float32 {
	if c.Crouching || c.Mode == ModeSliding {
		return CrouchEye
	}
	return StandEye
}

// EyePos is the world-space eye position.
func (c *Character) EyePos() mgl32.Vec3 {
	return c.Pos.Add(mgl32.Vec3{0, c.EyeHeight(), 0})
}

// Airborne reports whether normal gravity applies this tick.
func (c *Character) Airborne() bool {
	return c.Mode == ModeAirborne
}

func yawDegrees(look mgl32.Vec3) float32 {
	return mgl32.RadToDeg(math32.Atan2(look.X(), look.Z()))
}
