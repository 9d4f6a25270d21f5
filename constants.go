package server

import "time"

const (
	// ProtocolVersion is bumped whenever a wire shape changes meaning.
	ProtocolVersion = 1

	tickRate     = 30 // simulation ticks per second
	writeWait    = 10 * time.Second
	readLimit    = 1 << 16
	sendQueueLen = 64

	heartbeatInterval = 2 * time.Second
	disconnectAfter   = 3 * heartbeatInterval

	maxHealth = 100.0
)

// tickInterval is the fixed re-arm delay between simulation ticks; a slow
// tick lowers the effective rate instead of dropping frames.
const tickInterval = time.Second / tickRate
