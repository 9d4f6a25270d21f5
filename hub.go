// Package server is the authoritative game server: it owns every connected
// player's simulation state, advances the world at a fixed tick rate and
// broadcasts snapshots over per-client websockets.
package server

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/elliotchance/orderedmap/v2"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"freerun/server/internal/combat"
	"freerun/server/internal/phys"
	"freerun/server/internal/sim"
)

// gameConn is the send half of one client connection. enqueue must never
// block the tick loop; implementations drop on a full queue instead.
type gameConn interface {
	Enqueue(data []byte) bool
	Close()
}

// playerState is everything the hub tracks for one connected player. All
// fields are owned by the hub goroutine.
type playerState struct {
	id   string
	conn gameConn

	ctrl    *sim.Controller
	input   sim.Input
	fireDir mgl32.Vec3

	weapons    map[string]*combat.Weapon
	weaponType string
	health     float32

	lastHeartbeat time.Time
	lastRTT       time.Duration
}

// weapon returns the player's active weapon, creating per-type state on
// first use so ammo persists across switches.
func (p *playerState) weapon(catalog *combat.Catalog) *combat.Weapon {
	w, ok := p.weapons[p.weaponType]
	if !ok {
		profile, _ := catalog.Profile(p.weaponType)
		w = combat.NewWeapon(profile)
		p.weapons[p.weaponType] = w
	}
	return w
}

// Hub owns the player roster and the world. Every mutation funnels through
// the commands channel onto the single tick goroutine, so roster changes
// can never interleave with a tick's player iteration.
type Hub struct {
	logger    *zap.Logger
	world     []*phys.Collider
	catalog   *combat.Catalog
	resolver  *combat.Resolver
	telemetry *telemetryCounters

	// players iterates in join order, which makes the simultaneous-damage
	// tie-break deterministic per roster composition.
	players  *orderedmap.OrderedMap[string, *playerState]
	commands chan func()

	spawns    []mgl32.Vec3
	nextSpawn int
	nextID    atomic.Uint64
	tick      uint64

	tickRate     int
	tickInterval time.Duration
}

// NewHub builds a hub simulating against the given collider set.
func NewHub(world []*phys.Collider, spawns []mgl32.Vec3, catalog *combat.Catalog, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	if catalog == nil {
		catalog = combat.DefaultCatalog()
	}
	return &Hub{
		logger:       logger,
		world:        world,
		catalog:      catalog,
		resolver:     combat.NewResolver(world, time.Now().UnixNano()),
		telemetry:    newTelemetryCounters(),
		players:      orderedmap.NewOrderedMap[string, *playerState](),
		commands:     make(chan func(), 256),
		spawns:       spawns,
		tickRate:     tickRate,
		tickInterval: tickInterval,
	}
}

// SetTickRate overrides the default simulation rate. Call before Run.
func (h *Hub) SetTickRate(rate int) {
	if rate <= 0 {
		return
	}
	h.tickRate = rate
	h.tickInterval = time.Second / time.Duration(rate)
}

// post hands a mutation to the tick goroutine. Blocking here applies
// backpressure to the network reader, never to the tick loop.
func (h *Hub) post(fn func()) {
	h.commands <- fn
}

// Run drives the fixed-rate tick loop until stop closes. The timer is
// re-armed after each tick's work, so an overlong tick lowers the
// effective rate rather than bunching frames.
func (h *Hub) Run(stop <-chan struct{}) {
	timer := time.NewTimer(h.tickInterval)
	defer timer.Stop()

	last := time.Now()
	for {
		select {
		case <-stop:
			return
		case fn := <-h.commands:
			fn()
		case now := <-timer.C:
			h.drainCommands()
			dt := float32(now.Sub(last).Seconds())
			if dt <= 0 || dt > 0.25 {
				dt = float32(h.tickInterval.Seconds())
			}
			last = now

			start := time.Now()
			h.advance(now, dt)
			h.broadcastSnapshot(now)
			h.telemetry.RecordTickDuration(time.Since(start))

			timer.Reset(h.tickInterval)
		}
	}
}

// drainCommands applies every queued message atomically before the next
// tick begins; input arriving mid-tick never lands mid-update.
func (h *Hub) drainCommands() {
	for {
		select {
		case fn := <-h.commands:
			fn()
		default:
			return
		}
	}
}

// Connect registers a new connection, allocates its player id and schedules
// the join onto the tick goroutine. The returned id keys every later call.
func (h *Hub) Connect(conn gameConn) string {
	id := fmt.Sprintf("player-%d", h.nextID.Add(1))
	h.post(func() { h.join(id, conn) })
	return id
}

// Disconnect removes the player on the tick goroutine. In-flight effects
// from this tick still broadcast; the next tick stops referencing the id.
func (h *Hub) Disconnect(id string) {
	h.post(func() { h.leave(id) })
}

// HandleMessage routes one raw client payload. Malformed JSON is dropped
// and logged; it never aborts the connection or the tick loop.
func (h *Hub) HandleMessage(id string, payload []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		h.telemetry.RecordDroppedMessage()
		h.logger.Debug("discarding malformed message", zap.String("player", id), zap.Error(err))
		return
	}

	switch msg.Type {
	case "input":
		in := msg.Input()
		fireDir := msg.FireDirection.V()
		h.post(func() { h.latchInput(id, in, fireDir) })
	case "weapon_switch", "weaponSwitch":
		weapon := msg.Weapon
		h.post(func() { h.switchWeapon(id, weapon) })
	case "playerState", "playerStateUpdate":
		// Compat shim for transform-reporting clients: adopt the view yaw,
		// ignore the position. Movement stays input-driven authoritative.
		yaw := msg.Yaw
		h.post(func() {
			if p, ok := h.players.Get(id); ok {
				p.ctrl.Char.Yaw = yaw
			}
		})
	case "resetPosition":
		h.post(func() {
			if p, ok := h.players.Get(id); ok {
				h.respawn(p)
			}
		})
	case "heartbeat":
		sentAt := msg.SentAt
		h.post(func() { h.heartbeat(id, sentAt) })
	default:
		h.telemetry.RecordDroppedMessage()
		h.logger.Debug("unknown message type", zap.String("player", id), zap.String("type", msg.Type))
	}
}

// join runs on the tick goroutine: spawn the character, tell the newcomer
// who is here, tell everyone else who arrived.
func (h *Hub) join(id string, conn gameConn) {
	spawn := h.takeSpawn()
	p := &playerState{
		id:            id,
		conn:          conn,
		ctrl:          sim.NewController(h.world, spawn),
		weapons:       make(map[string]*combat.Weapon),
		weaponType:    h.catalog.Types()[0],
		health:        maxHealth,
		lastHeartbeat: time.Now(),
	}
	h.players.Set(id, p)

	init := InitMessage{
		Ver:      ProtocolVersion,
		Type:     "init",
		PlayerID: id,
		Players:  h.snapshotPlayers(),
		Weapons:  h.catalog.Types(),
		TickRate: h.tickRate,
	}
	h.send(p, init)
	h.broadcastExcept(id, PlayerConnectedMessage{
		Ver:    ProtocolVersion,
		Type:   "playerConnected",
		Player: h.snapshotPlayer(p),
	})
	h.logger.Info("player joined", zap.String("player", id))
}

func (h *Hub) leave(id string) {
	p, ok := h.players.Get(id)
	if !ok {
		return
	}
	h.players.Delete(id)
	p.conn.Close()
	h.broadcastExcept(id, PlayerDisconnectedMessage{
		Ver:      ProtocolVersion,
		Type:     "playerDisconnected",
		PlayerID: id,
	})
	h.logger.Info("player left", zap.String("player", id))
}

func (h *Hub) latchInput(id string, in sim.Input, fireDir mgl32.Vec3) {
	p, ok := h.players.Get(id)
	if !ok {
		return
	}
	p.input = in
	p.fireDir = fireDir
	h.telemetry.RecordInputLatched()
}

// switchWeapon validates the requested type against the catalog; unknown
// types are ignored with no state change and no broadcast.
func (h *Hub) switchWeapon(id, weapon string) {
	p, ok := h.players.Get(id)
	if !ok {
		return
	}
	if _, known := h.catalog.Profile(weapon); !known {
		h.logger.Debug("ignoring unknown weapon", zap.String("player", id), zap.String("weapon", weapon))
		return
	}
	if p.weaponType == weapon {
		return
	}
	p.weaponType = weapon
	h.broadcast(WeaponSwitchMessage{
		Ver:      ProtocolVersion,
		Type:     "weaponSwitch",
		PlayerID: id,
		Weapon:   weapon,
	})
}

func (h *Hub) heartbeat(id string, sentAt int64) {
	p, ok := h.players.Get(id)
	if !ok {
		return
	}
	now := time.Now()
	p.lastHeartbeat = now
	if sentAt > 0 {
		p.lastRTT = now.Sub(time.UnixMilli(sentAt))
		if p.lastRTT < 0 {
			p.lastRTT = 0
		}
	}
	h.send(p, HeartbeatMessage{
		Ver:        ProtocolVersion,
		Type:       "heartbeat",
		ServerTime: now.UnixMilli(),
		ClientTime: sentAt,
		RTTMillis:  p.lastRTT.Milliseconds(),
	})
}

// advance runs one simulation tick for every player: movement first, then
// combat, in join order.
func (h *Hub) advance(now time.Time, dt float32) {
	h.disconnectStale(now)

	for el := h.players.Front(); el != nil; el = el.Next() {
		p := el.Value
		p.ctrl.Step(dt, p.input)
		// A push is a velocity imparted this tick; movables carry no
		// persistent motion state, so it integrates over dt only.
		for _, push := range p.ctrl.LastResult().Pushes {
			push.Collider.Translate(push.Impulse.Mul(dt))
		}
	}
	for el := h.players.Front(); el != nil; el = el.Next() {
		h.advanceCombat(now, el.Value)
	}
	h.tick++
}

func (h *Hub) advanceCombat(now time.Time, p *playerState) {
	w := p.weapon(h.catalog)
	w.Update(now)
	if p.input.Reload {
		w.StartReload(now)
	}
	if !p.input.Fire {
		return
	}

	dir := p.fireDir
	if dir.LenSqr() < 1e-6 {
		dir = p.input.Look
	}
	targets := make([]combat.Target, 0, h.players.Len()-1)
	for el := h.players.Front(); el != nil; el = el.Next() {
		t := el.Value
		if t.id == p.id {
			continue
		}
		targets = append(targets, combat.Target{
			ID:      t.id,
			Base:    t.ctrl.Char.Pos,
			Capsule: t.ctrl.Char.Capsule(),
		})
	}

	res, fired := h.resolver.Fire(now, p.ctrl.Char.EyePos(), dir, w, targets, p.input.Aim)
	if !fired {
		return
	}
	h.telemetry.RecordShot(res.Hit && res.TargetID != "")
	if !res.Hit {
		return
	}

	killed := false
	if res.TargetID != "" {
		if victim, ok := h.players.Get(res.TargetID); ok {
			victim.health -= res.Damage
			if victim.health <= 0 {
				killed = true
				h.respawn(victim)
			}
		}
	}
	h.broadcast(HitMessage{
		Ver:      ProtocolVersion,
		Type:     "hit",
		HitterID: p.id,
		TargetID: res.TargetID,
		Point:    ToVec(res.Point),
		Normal:   ToVec(res.Normal),
		Damage:   res.Damage,
		Killed:   killed,
	})
}

// disconnectStale drops players whose heartbeat went silent.
func (h *Hub) disconnectStale(now time.Time) {
	var stale []string
	for el := h.players.Front(); el != nil; el = el.Next() {
		if now.Sub(el.Value.lastHeartbeat) > disconnectAfter {
			stale = append(stale, el.Key)
		}
	}
	for _, id := range stale {
		h.logger.Info("disconnecting after heartbeat timeout", zap.String("player", id))
		h.leave(id)
	}
}

// respawn moves a player to the next spawn point with full health. Also
// serves the resetPosition request.
func (h *Hub) respawn(p *playerState) {
	spawn := h.takeSpawn()
	p.ctrl.Char.Pos = spawn
	p.ctrl.Char.Vel = mgl32.Vec3{}
	p.ctrl.Char.Mode = sim.ModeAirborne
	p.health = maxHealth
}

func (h *Hub) takeSpawn() mgl32.Vec3 {
	if len(h.spawns) == 0 {
		return mgl32.Vec3{0, 1, 0}
	}
	spawn := h.spawns[h.nextSpawn%len(h.spawns)]
	h.nextSpawn++
	return spawn
}

func (h *Hub) snapshotPlayer(p *playerState) PlayerSnapshot {
	ch := &p.ctrl.Char
	return PlayerSnapshot{
		ID:          p.id,
		Position:    ToVec(ch.Pos),
		Velocity:    ToVec(ch.Vel),
		Yaw:         ch.Yaw,
		Mode:        ch.Mode.String(),
		IsCrouching: ch.Crouching,
		IsSprinting: ch.Sprinting,
		Weapon:      p.weaponType,
		Ammo:        p.weapon(h.catalog).CurrentAmmo(),
		Health:      p.health,
	}
}

func (h *Hub) snapshotPlayers() []PlayerSnapshot {
	out := make([]PlayerSnapshot, 0, h.players.Len())
	for el := h.players.Front(); el != nil; el = el.Next() {
		out = append(out, h.snapshotPlayer(el.Value))
	}
	return out
}

func (h *Hub) broadcastSnapshot(now time.Time) {
	players := h.snapshotPlayers()
	msg := StateMessage{
		Ver:        ProtocolVersion,
		Type:       "gameState",
		Tick:       h.tick,
		ServerTime: now.UnixMilli(),
		Players:    players,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to marshal snapshot", zap.Error(err))
		return
	}
	for el := h.players.Front(); el != nil; el = el.Next() {
		el.Value.conn.Enqueue(data)
	}
	h.telemetry.RecordBroadcast(len(data)*h.players.Len(), len(players))
}

func (h *Hub) broadcast(msg any) {
	h.broadcastExcept("", msg)
}

func (h *Hub) broadcastExcept(skip string, msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to marshal broadcast", zap.Error(err))
		return
	}
	for el := h.players.Front(); el != nil; el = el.Next() {
		if el.Key == skip {
			continue
		}
		el.Value.conn.Enqueue(data)
	}
}

func (h *Hub) send(p *playerState, msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to marshal message", zap.String("player", p.id), zap.Error(err))
		return
	}
	p.conn.Enqueue(data)
}
