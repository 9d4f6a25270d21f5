package server

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"freerun/server/internal/phys"
	"freerun/server/internal/sim"
)

func simInputFiring() sim.Input {
	return sim.Input{Fire: true, Aim: true, Look: mgl32.Vec3{1, 0, 0}}
}

type stubConn struct {
	sent   [][]byte
	closed bool
}

func (s *stubConn) Enqueue(data []byte) bool {
	s.sent = append(s.sent, append([]byte(nil), data...))
	return true
}

func (s *stubConn) Close() { s.closed = true }

// messagesOfType decodes every sent payload whose tag matches.
func messagesOfType(t *testing.T, s *stubConn, typ string) []json.RawMessage {
	t.Helper()
	var out []json.RawMessage
	for _, raw := range s.sent {
		var envelope struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(raw, &envelope); err != nil {
			t.Fatalf("sent payload is not JSON: %v", err)
		}
		if envelope.Type == typ {
			out = append(out, raw)
		}
	}
	return out
}

func newTestHub() *Hub {
	world, spawns := DefaultArena()
	return NewHub(world, spawns, nil, nil)
}

// connect joins a player synchronously by draining the command queue.
func connect(h *Hub, conn *stubConn) string {
	id := h.Connect(conn)
	h.drainCommands()
	return id
}

func TestJoinSendsInitAndAnnounces(t *testing.T) {
	h := newTestHub()

	conn1 := &stubConn{}
	id1 := connect(h, conn1)

	inits := messagesOfType(t, conn1, "init")
	if len(inits) != 1 {
		t.Fatalf("got %d init messages, want 1", len(inits))
	}
	var init InitMessage
	if err := json.Unmarshal(inits[0], &init); err != nil {
		t.Fatalf("decode init: %v", err)
	}
	if init.PlayerID != id1 {
		t.Fatalf("init playerId = %q, want %q", init.PlayerID, id1)
	}
	if init.TickRate != tickRate {
		t.Fatalf("init tickRate = %d, want %d", init.TickRate, tickRate)
	}
	if len(init.Players) != 1 || init.Players[0].ID != id1 {
		t.Fatalf("init roster wrong: %+v", init.Players)
	}
	if len(init.Weapons) == 0 {
		t.Fatal("init lists no weapons")
	}

	conn2 := &stubConn{}
	id2 := connect(h, conn2)

	announced := messagesOfType(t, conn1, "playerConnected")
	if len(announced) != 1 {
		t.Fatalf("existing player got %d playerConnected, want 1", len(announced))
	}
	var msg PlayerConnectedMessage
	if err := json.Unmarshal(announced[0], &msg); err != nil {
		t.Fatalf("decode playerConnected: %v", err)
	}
	if msg.Player.ID != id2 {
		t.Fatalf("announced id = %q, want %q", msg.Player.ID, id2)
	}
	if len(messagesOfType(t, conn2, "playerConnected")) != 0 {
		t.Fatal("newcomer should not be told about itself")
	}

	var init2 InitMessage
	if err := json.Unmarshal(messagesOfType(t, conn2, "init")[0], &init2); err != nil {
		t.Fatalf("decode second init: %v", err)
	}
	if len(init2.Players) != 2 {
		t.Fatalf("second init roster size = %d, want 2", len(init2.Players))
	}
}

func TestRoundRobinSpawns(t *testing.T) {
	h := newTestHub()
	id1 := connect(h, &stubConn{})
	id2 := connect(h, &stubConn{})

	p1, _ := h.players.Get(id1)
	p2, _ := h.players.Get(id2)
	if p1.ctrl.Char.Pos == p2.ctrl.Char.Pos {
		t.Fatalf("both players spawned at %v", p1.ctrl.Char.Pos)
	}
}

func TestInputDrivesSimulation(t *testing.T) {
	h := newTestHub()
	id := connect(h, &stubConn{})

	payload := `{"type":"input","inputDirection":{"x":1,"y":0,"z":0},"lookDirection":{"x":1,"y":0,"z":0},"isSprintPressed":true}`
	h.HandleMessage(id, []byte(payload))
	h.drainCommands()

	p, _ := h.players.Get(id)
	start := p.ctrl.Char.Pos
	now := time.Now()
	for i := 0; i < 120; i++ {
		now = now.Add(tickInterval)
		h.advance(now, float32(tickInterval.Seconds()))
	}
	if p.ctrl.Char.Pos.X() <= start.X() {
		t.Fatalf("latched input did not move the player: %v -> %v", start, p.ctrl.Char.Pos)
	}
}

func TestRunningIntoCrateShovesIt(t *testing.T) {
	crate := &phys.Collider{
		Name: "crate",
		Kind: phys.KindMovable,
		Mass: 40,
		Box:  &phys.Box{Min: mgl32.Vec3{1.2, 0, -0.6}, Max: mgl32.Vec3{2.4, 1.2, 0.6}},
	}
	world := []*phys.Collider{
		phys.NewMesh("floor", [][3]mgl32.Vec3{
			{{-30, 0, -30}, {30, 0, -30}, {30, 0, 30}},
			{{-30, 0, -30}, {30, 0, 30}, {-30, 0, 30}},
		}),
		crate,
	}
	h := NewHub(world, []mgl32.Vec3{{0, 1, 0}}, nil, nil)
	id := connect(h, &stubConn{})

	payload := `{"type":"input","inputDirection":{"x":1,"y":0,"z":0},"lookDirection":{"x":1,"y":0,"z":0},"isSprintPressed":true}`
	h.HandleMessage(id, []byte(payload))
	h.drainCommands()

	startX := crate.Box.Min.X()
	now := time.Now()
	for i := 0; i < 60; i++ {
		now = now.Add(tickInterval)
		h.advance(now, float32(tickInterval.Seconds()))
	}
	if moved := crate.Box.Min.X() - startX; moved < 0.1 {
		t.Fatalf("crate moved %v after a sprint shove, want at least 0.1", moved)
	}
}

func TestMalformedMessagesIgnored(t *testing.T) {
	h := newTestHub()
	id := connect(h, &stubConn{})

	h.HandleMessage(id, []byte(`{not json`))
	h.HandleMessage(id, []byte(`{"type":"warp","x":9999}`))
	h.drainCommands()

	if h.players.Len() != 1 {
		t.Fatalf("roster size = %d after bad messages, want 1", h.players.Len())
	}
	if got := h.telemetry.Snapshot().DroppedMessages; got != 2 {
		t.Fatalf("dropped message count = %d, want 2", got)
	}
	h.advance(time.Now(), float32(tickInterval.Seconds())) // must not panic
}

func TestWeaponSwitchValidation(t *testing.T) {
	h := newTestHub()
	conn1 := &stubConn{}
	id1 := connect(h, conn1)
	conn2 := &stubConn{}
	connect(h, conn2)

	h.HandleMessage(id1, []byte(`{"type":"weapon_switch","weapon":"pistol"}`))
	h.drainCommands()

	p, _ := h.players.Get(id1)
	if p.weaponType != "pistol" {
		t.Fatalf("weapon type = %q, want pistol", p.weaponType)
	}
	broadcasts := messagesOfType(t, conn2, "weaponSwitch")
	if len(broadcasts) != 1 {
		t.Fatalf("got %d weaponSwitch broadcasts, want 1", len(broadcasts))
	}

	// Unknown type: ignored, no state change, no broadcast.
	h.HandleMessage(id1, []byte(`{"type":"weapon_switch","weapon":"bazooka"}`))
	h.drainCommands()
	if p.weaponType != "pistol" {
		t.Fatalf("unknown weapon mutated state to %q", p.weaponType)
	}
	if len(messagesOfType(t, conn2, "weaponSwitch")) != 1 {
		t.Fatal("unknown weapon produced a broadcast")
	}
}

func TestDisconnectBetweenTicks(t *testing.T) {
	h := newTestHub()
	conn1 := &stubConn{}
	id1 := connect(h, conn1)
	conn2 := &stubConn{}
	connect(h, conn2)

	h.Disconnect(id1)
	h.drainCommands()

	if !conn1.closed {
		t.Fatal("departed connection not closed")
	}
	if len(messagesOfType(t, conn2, "playerDisconnected")) != 1 {
		t.Fatal("remaining player not told about the departure")
	}

	now := time.Now()
	h.advance(now, float32(tickInterval.Seconds()))
	h.broadcastSnapshot(now)

	states := messagesOfType(t, conn2, "gameState")
	if len(states) == 0 {
		t.Fatal("no snapshot broadcast")
	}
	var state StateMessage
	if err := json.Unmarshal(states[len(states)-1], &state); err != nil {
		t.Fatalf("decode gameState: %v", err)
	}
	if len(state.Players) != 1 {
		t.Fatalf("snapshot still carries %d players, want 1", len(state.Players))
	}
	if state.Players[0].ID == id1 {
		t.Fatal("snapshot references the departed player")
	}
}

func TestHeartbeatTimeout(t *testing.T) {
	h := newTestHub()
	conn := &stubConn{}
	id := connect(h, conn)

	p, _ := h.players.Get(id)
	p.lastHeartbeat = time.Now().Add(-disconnectAfter - time.Second)

	h.advance(time.Now(), float32(tickInterval.Seconds()))

	if _, ok := h.players.Get(id); ok {
		t.Fatal("stale player survived the heartbeat timeout")
	}
	if !conn.closed {
		t.Fatal("stale connection not closed")
	}
}

func TestHeartbeatReply(t *testing.T) {
	h := newTestHub()
	conn := &stubConn{}
	id := connect(h, conn)

	sentAt := time.Now().Add(-40 * time.Millisecond).UnixMilli()
	h.HandleMessage(id, []byte(`{"type":"heartbeat","sentAt":`+jsonInt(sentAt)+`}`))
	h.drainCommands()

	replies := messagesOfType(t, conn, "heartbeat")
	if len(replies) != 1 {
		t.Fatalf("got %d heartbeat replies, want 1", len(replies))
	}
	var reply HeartbeatMessage
	if err := json.Unmarshal(replies[0], &reply); err != nil {
		t.Fatalf("decode heartbeat: %v", err)
	}
	if reply.ClientTime != sentAt {
		t.Fatalf("reply clientTime = %d, want %d", reply.ClientTime, sentAt)
	}
	if reply.RTTMillis < 40 {
		t.Fatalf("rtt = %dms, want at least 40", reply.RTTMillis)
	}
}

func jsonInt(v int64) string {
	data, _ := json.Marshal(v)
	return string(data)
}

func TestFireDamagesAndRespawns(t *testing.T) {
	// Empty world keeps the shot path clear of geometry.
	spawns := []mgl32.Vec3{{0, 1, 0}, {40, 1, 40}}
	h := NewHub(nil, spawns, nil, nil)

	connShooter := &stubConn{}
	shooterID := connect(h, connShooter)
	connVictim := &stubConn{}
	victimID := connect(h, connVictim)

	shooter, _ := h.players.Get(shooterID)
	victim, _ := h.players.Get(victimID)
	shooter.ctrl.Char.Pos = mgl32.Vec3{0, 1, 0}
	victim.ctrl.Char.Pos = mgl32.Vec3{5, 1, 0}
	victim.health = 30

	h.latchInput(shooterID, simInputFiring(), mgl32.Vec3{1, 0, 0})

	now := time.Now()
	h.advance(now, float32(tickInterval.Seconds()))

	hits := messagesOfType(t, connVictim, "hit")
	if len(hits) != 1 {
		t.Fatalf("got %d hit broadcasts, want 1", len(hits))
	}
	var hit HitMessage
	if err := json.Unmarshal(hits[0], &hit); err != nil {
		t.Fatalf("decode hit: %v", err)
	}
	if hit.HitterID != shooterID || hit.TargetID != victimID {
		t.Fatalf("hit attribution wrong: %+v", hit)
	}
	if hit.Killed {
		t.Fatal("first hit should not kill at 30 health")
	}
	if victim.health != 30-hit.Damage {
		t.Fatalf("victim health = %v, want %v", victim.health, 30-hit.Damage)
	}

	// Second shot after the fire interval kills and respawns with full
	// health at a fresh spawn point.
	victim.ctrl.Char.Pos = mgl32.Vec3{5, 1, 0}
	now = now.Add(250 * time.Millisecond)
	h.advance(now, float32(tickInterval.Seconds()))

	hits = messagesOfType(t, connVictim, "hit")
	if len(hits) != 2 {
		t.Fatalf("got %d hit broadcasts, want 2", len(hits))
	}
	if err := json.Unmarshal(hits[1], &hit); err != nil {
		t.Fatalf("decode second hit: %v", err)
	}
	if !hit.Killed {
		t.Fatal("lethal hit not flagged killed")
	}
	if victim.health != maxHealth {
		t.Fatalf("respawned health = %v, want %v", victim.health, float32(maxHealth))
	}
	if victim.ctrl.Char.Pos.X() == 5 {
		t.Fatal("victim not moved to a spawn point")
	}
}

func TestResetPosition(t *testing.T) {
	h := newTestHub()
	id := connect(h, &stubConn{})

	p, _ := h.players.Get(id)
	p.ctrl.Char.Pos = mgl32.Vec3{0, -50, 0} // fell out of the arena
	p.ctrl.Char.Vel = mgl32.Vec3{0, -55, 0}

	h.HandleMessage(id, []byte(`{"type":"resetPosition"}`))
	h.drainCommands()

	if p.ctrl.Char.Pos.Y() < 0 {
		t.Fatalf("reset left the player at %v", p.ctrl.Char.Pos)
	}
	if p.ctrl.Char.Vel.Len() != 0 {
		t.Fatalf("reset kept velocity %v", p.ctrl.Char.Vel)
	}
}

func TestPlayerStateShimAdoptsYawOnly(t *testing.T) {
	h := newTestHub()
	id := connect(h, &stubConn{})
	p, _ := h.players.Get(id)
	before := p.ctrl.Char.Pos

	h.HandleMessage(id, []byte(`{"type":"playerState","position":{"x":500,"y":500,"z":500},"yaw":135}`))
	h.drainCommands()

	if p.ctrl.Char.Yaw != 135 {
		t.Fatalf("yaw = %v, want 135", p.ctrl.Char.Yaw)
	}
	if p.ctrl.Char.Pos != before {
		t.Fatal("client-reported position must not override the simulation")
	}
}
