package relay

import (
	"context"
	"testing"
	"time"

	"github.com/park285/chess-arena/pkg/relayproto"
)

func TestMovesUCIJSON(t *testing.T) {
	got, err := movesUCIJSON([]MoveRecord{
		{Move: relayproto.Move{From: "e2", To: "e4"}},
		{Move: relayproto.Move{From: "a7", To: "a8", Promotion: "n"}},
	})
	if err != nil {
		t.Fatalf("movesUCIJSON: %v", err)
	}
	if got != `["e2e4","a7a8n"]` {
		t.Fatalf("unexpected json %s", got)
	}

	empty, _ := movesUCIJSON(nil)
	if empty != "[]" {
		t.Fatalf("expected empty array, got %s", empty)
	}
}

func TestRoomDuration(t *testing.T) {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	if d := roomDuration(RoomSummary{CreatedAt: start, ClosedAt: start.Add(90 * time.Second)}); d != 90*time.Second {
		t.Fatalf("unexpected duration %v", d)
	}
	if d := roomDuration(RoomSummary{CreatedAt: start, ClosedAt: start.Add(-time.Second)}); d != 0 {
		t.Fatalf("negative duration should clamp to 0, got %v", d)
	}
}

func TestOpenPostgresArchiveRequiresURL(t *testing.T) {
	if _, err := OpenPostgresArchive(context.Background(), ""); err == nil {
		t.Fatalf("expected error for empty DATABASE_URL")
	}
	var a *PostgresArchive
	if err := a.SaveRoom(context.Background(), RoomSummary{}); err != nil {
		t.Fatalf("nil archive should be a no-op: %v", err)
	}
}
