package server

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"
)

// telemetryCounters aggregates tick-loop statistics. All counters are
// atomics so HTTP handlers can read them without touching the hub
// goroutine.
type telemetryCounters struct {
	inputsLatched   atomic.Uint64
	droppedMessages atomic.Uint64
	droppedSends    atomic.Uint64
	bytesSent       atomic.Uint64
	broadcasts      atomic.Uint64
	entitiesSent    atomic.Uint64
	shotsFired      atomic.Uint64
	hitsLanded      atomic.Uint64
	tickCount       atomic.Uint64
	tickNanosTotal  atomic.Uint64
	tickNanosMax    atomic.Uint64
	startedAt       time.Time
}

func newTelemetryCounters() *telemetryCounters {
	return &telemetryCounters{startedAt: time.Now()}
}

func (t *telemetryCounters) RecordInputLatched()   { t.inputsLatched.Add(1) }
func (t *telemetryCounters) RecordDroppedMessage() { t.droppedMessages.Add(1) }
func (t *telemetryCounters) RecordDroppedSend()    { t.droppedSends.Add(1) }

func (t *telemetryCounters) RecordShot(hit bool) {
	t.shotsFired.Add(1)
	if hit {
		t.hitsLanded.Add(1)
	}
}

func (t *telemetryCounters) RecordBroadcast(bytes, entities int) {
	t.broadcasts.Add(1)
	t.bytesSent.Add(uint64(bytes))
	t.entitiesSent.Add(uint64(entities))
}

func (t *telemetryCounters) RecordTickDuration(d time.Duration) {
	t.tickCount.Add(1)
	t.tickNanosTotal.Add(uint64(d.Nanoseconds()))
	for {
		max := t.tickNanosMax.Load()
		if uint64(d.Nanoseconds()) <= max {
			return
		}
		if t.tickNanosMax.CompareAndSwap(max, uint64(d.Nanoseconds())) {
			return
		}
	}
}

// TelemetrySnapshot is the JSON shape served by the diagnostics endpoint.
type TelemetrySnapshot struct {
	UptimeSeconds   float64 `json:"uptimeSeconds"`
	Ticks           uint64  `json:"ticks"`
	AvgTickMillis   float64 `json:"avgTickMillis"`
	MaxTickMillis   float64 `json:"maxTickMillis"`
	InputsLatched   uint64  `json:"inputsLatched"`
	DroppedMessages uint64  `json:"droppedMessages"`
	DroppedSends    uint64  `json:"droppedSends"`
	Broadcasts      uint64  `json:"broadcasts"`
	BytesSent       uint64  `json:"bytesSent"`
	EntitiesSent    uint64  `json:"entitiesSent"`
	ShotsFired      uint64  `json:"shotsFired"`
	HitsLanded      uint64  `json:"hitsLanded"`
}

func (t *telemetryCounters) Snapshot() TelemetrySnapshot {
	ticks := t.tickCount.Load()
	total := t.tickNanosTotal.Load()
	avg := 0.0
	if ticks > 0 {
		avg = float64(total) / float64(ticks) / 1e6
	}
	return TelemetrySnapshot{
		UptimeSeconds:   time.Since(t.startedAt).Seconds(),
		Ticks:           ticks,
		AvgTickMillis:   avg,
		MaxTickMillis:   float64(t.tickNanosMax.Load()) / 1e6,
		InputsLatched:   t.inputsLatched.Load(),
		DroppedMessages: t.droppedMessages.Load(),
		DroppedSends:    t.droppedSends.Load(),
		Broadcasts:      t.broadcasts.Load(),
		BytesSent:       t.bytesSent.Load(),
		EntitiesSent:    t.entitiesSent.Load(),
		ShotsFired:      t.shotsFired.Load(),
		HitsLanded:      t.hitsLanded.Load(),
	}
}

// Telemetry exposes the hub's counters for the HTTP layer.
func (h *Hub) Telemetry() TelemetrySnapshot {
	return h.telemetry.Snapshot()
}

// PlayerDiagnostics describes one connected player on the diagnostics
// endpoint.
type PlayerDiagnostics struct {
	ID                 string  `json:"id"`
	Health             float32 `json:"health"`
	Weapon             string  `json:"weapon"`
	Mode               string  `json:"mode"`
	RTTMillis          int64   `json:"rttMillis"`
	HeartbeatAgeMillis int64   `json:"heartbeatAgeMillis"`
}

// PlayerDiagnostics queries the roster on the tick goroutine so the HTTP
// layer never races player state. Returns nil if the loop does not answer
// within the timeout.
func (h *Hub) PlayerDiagnostics(timeout time.Duration) []PlayerDiagnostics {
	reply := make(chan []PlayerDiagnostics, 1)
	h.post(func() {
		now := time.Now()
		list := make([]PlayerDiagnostics, 0, h.players.Len())
		for el := h.players.Front(); el != nil; el = el.Next() {
			p := el.Value
			list = append(list, PlayerDiagnostics{
				ID:                 p.id,
				Health:             p.health,
				Weapon:             p.weaponType,
				Mode:               p.ctrl.Char.Mode.String(),
				RTTMillis:          p.lastRTT.Milliseconds(),
				HeartbeatAgeMillis: now.Sub(p.lastHeartbeat).Milliseconds(),
			})
		}
		reply <- list
	})
	select {
	case list := <-reply:
		return list
	case <-time.After(timeout):
		return nil
	}
}

// DiagnosticsReport is the full JSON shape served by /diagnostics
// and /metrics.
type DiagnosticsReport struct {
	TelemetrySnapshot
	PlayerCount int                 `json:"playerCount"`
	Players     []PlayerDiagnostics `json:"players"`
}

// DiagnosticsHandler serves the telemetry snapshot plus per-player state.
func (h *Hub) DiagnosticsHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		players := h.PlayerDiagnostics(250 * time.Millisecond)
		report := DiagnosticsReport{
			TelemetrySnapshot: h.Telemetry(),
			PlayerCount:       len(players),
			Players:           players,
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(report); err != nil {
			http.Error(w, "encode failed", http.StatusInternalServerError)
		}
	})
}

// HealthHandler reports liveness for load balancers.
func HealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}
