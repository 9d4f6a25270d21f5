package server

import (
	"encoding/json"
	"testing"
)

func TestInputMessageMapsToSimInput(t *testing.T) {
	payload := `{
		"type": "input",
		"inputDirection": {"x": 0.7, "y": 0, "z": 0.7},
		"lookDirection": {"x": 1, "y": -0.2, "z": 0},
		"fireDirection": {"x": 1, "y": 0, "z": 0},
		"isJumpPressed": true,
		"isCrouchPressed": false,
		"isSprintPressed": true,
		"isFirePressed": true,
		"isAimPressed": true,
		"isReloadPressed": false
	}`
	var msg ClientMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		t.Fatalf("decode input: %v", err)
	}
	in := msg.Input()
	if in.Direction.X() != 0.7 || in.Direction.Z() != 0.7 {
		t.Fatalf("direction = %v", in.Direction)
	}
	if in.Look.Y() != -0.2 {
		t.Fatalf("look = %v", in.Look)
	}
	if !in.Jump || !in.Sprint || !in.Fire || !in.Aim {
		t.Fatalf("pressed flags lost: %+v", in)
	}
	if in.Crouch || in.Reload {
		t.Fatalf("unpressed flags set: %+v", in)
	}
}

func TestHitMessageWireNames(t *testing.T) {
	data, err := json.Marshal(HitMessage{
		Ver:      ProtocolVersion,
		Type:     "hit",
		HitterID: "player-1",
		TargetID: "player-2",
		Point:    Vec{X: 1, Y: 2, Z: 3},
		Damage:   22,
	})
	if err != nil {
		t.Fatalf("marshal hit: %v", err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("re-decode hit: %v", err)
	}
	for _, key := range []string{"hitterId", "targetId", "hitPoint", "hitNormal", "damage"} {
		if _, ok := raw[key]; !ok {
			t.Fatalf("hit message missing %q: %s", key, data)
		}
	}
	if _, ok := raw["killed"]; ok {
		t.Fatal("killed=false should be omitted from the wire")
	}
}

func TestVecRoundTrip(t *testing.T) {
	v := Vec{X: 1.5, Y: -2, Z: 3.25}
	if got := ToVec(v.V()); got != v {
		t.Fatalf("vec round trip: %v -> %v", v, got)
	}
}
