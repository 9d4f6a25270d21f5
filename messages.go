package server

import (
	"github.com/go-gl/mathgl/mgl32"

	"freerun/server/internal/sim"
)

// The wire protocol is UTF-8 tagged JSON over one websocket per client.
// This file is the single canonical definition of every shape; the client
// package decodes the same structs.
//
// client -> server: input, weapon_switch, playerState (compat shim),
// resetPosition, heartbeat.
// server -> client: init, gameState, playerConnected, playerDisconnected,
// weaponSwitch, hit, heartbeat.

// Vec is the JSON form of a world-space vector.
type Vec struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
	Z float32 `json:"z"`
}

// V converts to the math type used by the simulation.
func (v Vec) V() mgl32.Vec3 { return mgl32.Vec3{v.X, v.Y, v.Z} }

// ToVec converts a simulation vector to its wire form.
func ToVec(v mgl32.Vec3) Vec { return Vec{X: v.X(), Y: v.Y(), Z: v.Z()} }

// ClientMessage is the union of every client -> server shape, routed by
// Type. Unknown or malformed messages are dropped without affecting the
// tick loop.
type ClientMessage struct {
	Type string `json:"type"`

	// input
	InputDirection  Vec  `json:"inputDirection"`
	LookDirection   Vec  `json:"lookDirection"`
	FireDirection   Vec  `json:"fireDirection"`
	IsJumpPressed   bool `json:"isJumpPressed"`
	IsCrouchPressed bool `json:"isCrouchPressed"`
	IsSprintPressed bool `json:"isSprintPressed"`
	IsFirePressed   bool `json:"isFirePressed"`
	IsAimPressed    bool `json:"isAimPressed"`
	IsReloadPressed bool `json:"isReloadPressed"`

	// weapon_switch
	Weapon string `json:"weapon,omitempty"`

	// playerState compat shim: only Yaw is adopted, the authoritative
	// simulation ignores client-reported positions.
	Position Vec     `json:"position"`
	Yaw      float32 `json:"yaw"`

	// heartbeat
	SentAt int64 `json:"sentAt,omitempty"`
}

// Input converts an input message into the simulation's input snapshot.
func (m *ClientMessage) Input() sim.Input {
	look := m.LookDirection.V()
	return sim.Input{
		Direction: m.InputDirection.V(),
		Look:      look,
		Jump:      m.IsJumpPressed,
		Crouch:    m.IsCrouchPressed,
		Sprint:    m.IsSprintPressed,
		Fire:      m.IsFirePressed,
		Aim:       m.IsAimPressed,
		Reload:    m.IsReloadPressed,
	}
}

// PlayerSnapshot is one player's entry in init and gameState payloads.
type PlayerSnapshot struct {
	ID          string  `json:"id"`
	Position    Vec     `json:"position"`
	Velocity    Vec     `json:"velocity"`
	Yaw         float32 `json:"yaw"`
	Mode        string  `json:"mode"`
	IsCrouching bool    `json:"isCrouching"`
	IsSprinting bool    `json:"isSprinting"`
	Weapon      string  `json:"weapon"`
	Ammo        int     `json:"ammo"`
	Health      float32 `json:"health"`
}

// InitMessage is sent once on connect: the new player's id, spawn roster
// and the weapon types the server will accept in weapon_switch.
type InitMessage struct {
	Ver      int              `json:"ver"`
	Type     string           `json:"type"`
	PlayerID string           `json:"playerId"`
	Players  []PlayerSnapshot `json:"players"`
	Weapons  []string         `json:"weapons"`
	TickRate int              `json:"tickRate"`
}

// StateMessage is the per-tick world snapshot.
type StateMessage struct {
	Ver        int              `json:"ver"`
	Type       string           `json:"type"`
	Tick       uint64           `json:"t"`
	ServerTime int64            `json:"serverTime"`
	Players    []PlayerSnapshot `json:"players"`
}

// PlayerConnectedMessage announces a new arrival to existing clients.
type PlayerConnectedMessage struct {
	Ver    int            `json:"ver"`
	Type   string         `json:"type"`
	Player PlayerSnapshot `json:"player"`
}

// PlayerDisconnectedMessage announces a departure.
type PlayerDisconnectedMessage struct {
	Ver      int    `json:"ver"`
	Type     string `json:"type"`
	PlayerID string `json:"playerId"`
}

// WeaponSwitchMessage rebroadcasts a validated weapon change.
type WeaponSwitchMessage struct {
	Ver      int    `json:"ver"`
	Type     string `json:"type"`
	PlayerID string `json:"playerId"`
	Weapon   string `json:"weapon"`
}

// HitMessage reports a landed shot to every client.
type HitMessage struct {
	Ver      int     `json:"ver"`
	Type     string  `json:"type"`
	HitterID string  `json:"hitterId"`
	TargetID string  `json:"targetId,omitempty"`
	Point    Vec     `json:"hitPoint"`
	Normal   Vec     `json:"hitNormal"`
	Damage   float32 `json:"damage"`
	Killed   bool    `json:"killed,omitempty"`
}

// HeartbeatMessage is the server's reply to a client heartbeat, carrying
// the measured round-trip time.
type HeartbeatMessage struct {
	Ver        int    `json:"ver"`
	Type       string `json:"type"`
	ServerTime int64  `json:"serverTime"`
	ClientTime int64  `json:"clientTime"`
	RTTMillis  int64  `json:"rtt"`
}
