package client

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	server "freerun/server"
	"freerun/server/internal/phys"
	"freerun/server/internal/sim"
)

// HitEvent is handed to the effects collaborator when the server confirms
// a hit anywhere in the match.
type HitEvent struct {
	HitterID string
	TargetID string
	Point    mgl32.Vec3
	Normal   mgl32.Vec3
	Damage   float32
	Killed   bool
}

// Session is the protocol state machine for one connection: it decodes
// server messages, drives local prediction and keeps remote player views
// current. It owns no socket; the transport feeds it payloads.
type Session struct {
	logger *zap.Logger

	playerID string
	tickRate int
	weapons  []string
	ready    bool

	predictor *Predictor
	remotes   map[string]*RemotePlayer

	lastServerTime int64
	rtt            time.Duration

	// OnHit, when set, receives every confirmed hit broadcast.
	OnHit func(HitEvent)
}

// NewSession prepares a session predicting against the given collider set.
func NewSession(world []*phys.Collider, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		logger:    logger,
		predictor: NewPredictor(world, mgl32.Vec3{0, 1, 0}),
		remotes:   make(map[string]*RemotePlayer),
	}
}

// Ready reports whether the init handshake completed.
func (s *Session) Ready() bool { return s.ready }

// PlayerID returns the server-assigned id, empty before init.
func (s *Session) PlayerID() string { return s.playerID }

// Weapons lists the weapon types the server offers.
func (s *Session) Weapons() []string { return s.weapons }

// RTT returns the latest heartbeat round-trip estimate.
func (s *Session) RTT() time.Duration { return s.rtt }

// Predictor exposes the local player's predicted state.
func (s *Session) Predictor() *Predictor { return s.predictor }

// Remotes returns the live remote-player views keyed by id.
func (s *Session) Remotes() map[string]*RemotePlayer { return s.remotes }

// Frame advances one rendered frame: predict the local player, ease the
// remote ones.
func (s *Session) Frame(dt float32, in sim.Input) {
	s.predictor.Frame(dt, in)
	for _, r := range s.remotes {
		r.Update(dt)
	}
}

// Handle decodes and applies one server payload.
func (s *Session) Handle(dt float32, payload []byte) error {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}

	switch envelope.Type {
	case "init":
		var msg server.InitMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			return fmt.Errorf("decode init: %w", err)
		}
		s.applyInit(msg)
	case "gameState", "game_state":
		var msg server.StateMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			return fmt.Errorf("decode gameState: %w", err)
		}
		s.applyState(dt, msg)
	case "playerConnected", "player_connect":
		var msg server.PlayerConnectedMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			return fmt.Errorf("decode playerConnected: %w", err)
		}
		if msg.Player.ID != s.playerID {
			s.upsertRemote(msg.Player)
		}
	case "playerDisconnected", "player_disconnect":
		var msg server.PlayerDisconnectedMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			return fmt.Errorf("decode playerDisconnected: %w", err)
		}
		delete(s.remotes, msg.PlayerID)
	case "hit":
		var msg server.HitMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			return fmt.Errorf("decode hit: %w", err)
		}
		if s.OnHit != nil {
			s.OnHit(HitEvent{
				HitterID: msg.HitterID,
				TargetID: msg.TargetID,
				Point:    msg.Point.V(),
				Normal:   msg.Normal.V(),
				Damage:   msg.Damage,
				Killed:   msg.Killed,
			})
		}
	case "weaponSwitch", "weapon_switch":
		var msg server.WeaponSwitchMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			return fmt.Errorf("decode weaponSwitch: %w", err)
		}
		if r, ok := s.remotes[msg.PlayerID]; ok {
			r.Weapon = msg.Weapon
		}
	case "heartbeat":
		var msg server.HeartbeatMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			return fmt.Errorf("decode heartbeat: %w", err)
		}
		if msg.ClientTime > 0 {
			s.rtt = time.Since(time.UnixMilli(msg.ClientTime))
		}
	default:
		s.logger.Debug("ignoring unknown server message", zap.String("type", envelope.Type))
	}
	return nil
}

// applyInit hard-sets the local player at the server-assigned spawn and
// seeds the remote roster.
func (s *Session) applyInit(msg server.InitMessage) {
	s.playerID = msg.PlayerID
	s.tickRate = msg.TickRate
	s.weapons = msg.Weapons
	s.ready = true
	for _, snap := range msg.Players {
		if snap.ID == msg.PlayerID {
			s.predictor.Reconcile(0, snap.Position.V(), snap.Velocity.V())
			s.predictor.Character().Yaw = snap.Yaw
			continue
		}
		s.upsertRemote(snap)
	}
	s.logger.Info("joined match",
		zap.String("player", msg.PlayerID),
		zap.Int("tickRate", msg.TickRate),
		zap.Int("roster", len(msg.Players)))
}

func (s *Session) applyState(dt float32, msg server.StateMessage) {
	if msg.ServerTime < s.lastServerTime {
		// Out-of-order snapshot; the newer one already applied.
		return
	}
	s.lastServerTime = msg.ServerTime

	seen := make(map[string]bool, len(msg.Players))
	for _, snap := range msg.Players {
		if snap.ID == s.playerID {
			s.predictor.Reconcile(dt, snap.Position.V(), snap.Velocity.V())
			continue
		}
		seen[snap.ID] = true
		s.upsertRemote(snap)
	}
	for id := range s.remotes {
		if !seen[id] {
			delete(s.remotes, id)
		}
	}
}

func (s *Session) upsertRemote(snap server.PlayerSnapshot) {
	r, ok := s.remotes[snap.ID]
	if !ok {
		r = &RemotePlayer{ID: snap.ID}
		s.remotes[snap.ID] = r
	}
	r.SetTarget(snap.Position.V(), snap.Yaw)
	r.Mode = snap.Mode
	r.Crouching = snap.IsCrouching
	r.Weapon = snap.Weapon
	r.Health = snap.Health
}
