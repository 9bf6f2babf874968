package relayproto

import (
	"encoding/json"
	"testing"
)

func TestParseMove(t *testing.T) {
	mv, err := ParseMove("e2e4")
	if err != nil {
		t.Fatalf("ParseMove: %v", err)
	}
	if mv.From != "e2" || mv.To != "e4" || mv.Promotion != "" {
		t.Fatalf("unexpected move: %+v", mv)
	}

	mv, err = ParseMove("E7E8Q")
	if err != nil {
		t.Fatalf("ParseMove promotion: %v", err)
	}
	if mv.UCI() != "e7e8q" {
		t.Fatalf("expected e7e8q, got %s", mv.UCI())
	}

	for _, bad := range []string{"", "e2", "e2e9", "i2e4", "e7e8k", "e2e4e5"} {
		if _, err := ParseMove(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestEnvelopeRoundTrip(t *testing.T) {
	env := MustNew(TypeMove, MovePayload{RoomCode: "ABC123", Move: Move{From: "g1", To: "f3"}})
	var p MovePayload
	if err := env.Decode(&p); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if p.RoomCode != "ABC123" || p.Move.UCI() != "g1f3" {
		t.Fatalf("unexpected payload: %+v", p)
	}

	empty := MustNew(TypeOpponentDisconnected, nil)
	if len(empty.Data) != 0 {
		t.Fatalf("expected no data, got %s", empty.Data)
	}
	if err := empty.Decode(&p); err == nil {
		t.Fatalf("expected error decoding empty payload")
	}
}

func TestErrorEventCarriesPlainMessage(t *testing.T) {
	raw, err := json.Marshal(NewError("RoomNotFound", "Game not found"))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var wire map[string]any
	if err := json.Unmarshal(raw, &wire); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if wire["type"] != TypeError || wire["data"] != "Game not found" || wire["code"] != "RoomNotFound" {
		t.Fatalf("unexpected error frame %s", raw)
	}

	var env Envelope
	if err := json.Unmarshal([]byte(`{"type":"error","data":"Game is already full"}`), &env); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if p := env.AsError(); p.Code != "" || p.Message != "Game is already full" {
		t.Fatalf("unexpected payload %+v", p)
	}
}
