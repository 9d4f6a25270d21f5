package sim

// Movement tuning shared by the authoritative server and the predicting
// client. There is exactly one copy of these numbers; if the two sides ever
// disagree the local player visibly rubber-bands, so additions here must be
// consumed through this table and never duplicated.
const (
	StandHeight  = 1.8
	CrouchHeight = 1.2
	StandEye     = 1.62
	CrouchEye    = 1.0
	Radius       = 0.4

	WalkSpeed   = 6.0
	SprintSpeed = 9.0
	CrouchSpeed = 3.0

	// Acceleration rates for the frame-rate-independent velocity blend:
	// v += (desired - v) * (1 - exp(-rate*dt)). Air control is deliberately
	// weaker than ground control.
	GroundAccel = 10.0
	AirAccel    = 3.0

	Gravity      = 24.0
	TerminalFall = 55.0

	JumpSpeed    = 8.2
	JumpCooldown = 0.3
	CoyoteTime   = 0.15

	WallJumpPush = 6.5
	WallJumpUp   = 7.0

	WallRunMaxTime  = 1.8
	WallRunMinSpeed = 4.0
	WallRunSpeed    = 8.5
	WallRunAccel    = 6.0
	WallRunGravity  = 4.0
	WallRunMaxFall  = 2.0
	WallRunLean     = 15.0 // m/s^2 of into-wall pull while running

	SlideBoost    = 1.4
	SlideDuration = 0.8
	SlideFriction = 1.6

	MantleDuration = 0.45
	LedgeHangDepth = 1.4
	ShimmySpeed    = 1.5
)
