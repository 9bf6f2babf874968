package relay

import (
	"context"
	"testing"
	"time"

	"github.com/park285/chess-arena/pkg/relayproto"
)

type testConn struct {
	id  string
	out chan relayproto.Envelope
}

func newTestHub(t *testing.T, codes ...string) (*Hub, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	cfg := Config{Clock: clock}
	if len(codes) > 0 {
		cfg.Codes = sequenceCodes(codes...)
	}
	h := NewHub(context.Background(), cfg)
	t.Cleanup(h.Close)
	return h, clock
}

func connect(t *testing.T, h *Hub, id string) *testConn {
	t.Helper()
	return connectWithOutbox(t, h, id, 16)
}

func connectWithOutbox(t *testing.T, h *Hub, id string, size int) *testConn {
	t.Helper()
	c := &testConn{id: id, out: make(chan relayproto.Envelope, size)}
	h.Connect(id, c.out)
	return c
}

func (c *testConn) send(h *Hub, eventType string, payload any) {
	h.Dispatch(c.id, relayproto.MustNew(eventType, payload))
}

func (c *testConn) recv(t *testing.T) relayproto.Envelope {
	t.Helper()
	select {
	case env := <-c.out:
		return env
	case <-time.After(time.Second):
		t.Fatalf("%s: timed out waiting for event", c.id)
	}
	return relayproto.Envelope{}
}

func (c *testConn) expect(t *testing.T, eventType string) relayproto.Envelope {
	t.Helper()
	env := c.recv(t)
	if env.Type != eventType {
		t.Fatalf("%s: expected %s, got %s (%s)", c.id, eventType, env.Type, env.Data)
	}
	return env
}

func (c *testConn) expectError(t *testing.T, code string) {
	t.Helper()
	env := c.expect(t, relayproto.TypeError)
	var msg string
	if err := env.Decode(&msg); err != nil {
		t.Fatalf("error data is not a string: %v", err)
	}
	p := env.AsError()
	if p.Code != code || p.Message != msg || msg == "" {
		t.Fatalf("%s: expected error %s, got %s (%s)", c.id, code, p.Code, p.Message)
	}
}

// expectNone waits until the hub drained everything queued before it, then
// checks nothing was delivered.
func (c *testConn) expectNone(t *testing.T, h *Hub) {
	t.Helper()
	settle(t, h)
	if n := len(c.out); n != 0 {
		env := <-c.out
		t.Fatalf("%s: expected no events, got %d (first %s)", c.id, n, env.Type)
	}
}

func settle(t *testing.T, h *Hub) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := h.Stats(ctx); err != nil {
		t.Fatalf("Stats: %v", err)
	}
}

func lookup(t *testing.T, h *Hub, code string) (Room, bool) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	room, ok, err := h.Lookup(ctx, code)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	return room, ok
}

func createRoom(t *testing.T, h *Hub, c *testConn) string {
	t.Helper()
	c.send(h, relayproto.TypeCreateGame, nil)
	var ref relayproto.RoomRef
	if err := c.expect(t, relayproto.TypeGameCreated).Decode(&ref); err != nil {
		t.Fatalf("decode gameCreated: %v", err)
	}
	return ref.RoomCode
}

func startGame(t *testing.T, h *Hub, a, b *testConn) string {
	t.Helper()
	code := createRoom(t, h, a)
	b.send(h, relayproto.TypeJoinGame, relayproto.RoomRef{RoomCode: code})
	b.expect(t, relayproto.TypeGameJoined)
	b.expect(t, relayproto.TypeGameStart)
	a.expect(t, relayproto.TypeGameStart)
	return code
}

func TestCreateJoinStartsBothOnce(t *testing.T) {
	h, _ := newTestHub(t, "K7Q2XZ")
	a := connect(t, h, "a")
	b := connect(t, h, "b")

	code := createRoom(t, h, a)
	if code != "K7Q2XZ" {
		t.Fatalf("unexpected code %q", code)
	}

	b.send(h, relayproto.TypeJoinGame, relayproto.RoomRef{RoomCode: "k7q2xz"})
	var joined relayproto.RoomRef
	if err := b.expect(t, relayproto.TypeGameJoined).Decode(&joined); err != nil {
		t.Fatalf("decode gameJoined: %v", err)
	}
	if joined.RoomCode != code {
		t.Fatalf("joined %q, want %q", joined.RoomCode, code)
	}
	b.expect(t, relayproto.TypeGameStart)
	a.expect(t, relayproto.TypeGameStart)
	a.expectNone(t, h)
	b.expectNone(t, h)

	room, ok := lookup(t, h, code)
	if !ok {
		t.Fatalf("room missing")
	}
	if room.White != "a" || room.Black != "b" || room.State() != StateActive {
		t.Fatalf("unexpected room: %+v", room)
	}
}

func TestJoinUnknownRoom(t *testing.T) {
	h, _ := newTestHub(t)
	b := connect(t, h, "b")
	b.send(h, relayproto.TypeJoinGame, relayproto.RoomRef{RoomCode: "NOPE00"})
	b.expectError(t, "RoomNotFound")

	b.send(h, relayproto.TypeJoinGame, relayproto.RoomRef{RoomCode: "abc"})
	b.expectError(t, "RoomNotFound")
}

func TestThirdJoinRejected(t *testing.T) {
	h, _ := newTestHub(t)
	a := connect(t, h, "a")
	b := connect(t, h, "b")
	c := connect(t, h, "c")
	code := startGame(t, h, a, b)

	c.send(h, relayproto.TypeJoinGame, relayproto.RoomRef{RoomCode: code})
	c.expectError(t, "RoomFull")
	a.expectNone(t, h)
	b.expectNone(t, h)
}

func TestJoinOwnRoomRejected(t *testing.T) {
	h, _ := newTestHub(t)
	a := connect(t, h, "a")
	code := createRoom(t, h, a)
	a.send(h, relayproto.TypeJoinGame, relayproto.RoomRef{RoomCode: code})
	a.expectError(t, "BadRequest")
}

func TestMoveRelayedVerbatim(t *testing.T) {
	h, _ := newTestHub(t)
	a := connect(t, h, "a")
	b := connect(t, h, "b")
	code := startGame(t, h, a, b)

	a.send(h, relayproto.TypeMove, relayproto.MovePayload{RoomCode: code, Move: relayproto.Move{From: "e2", To: "e4"}})
	var mv relayproto.Move
	if err := b.expect(t, relayproto.TypeOpponentMove).Decode(&mv); err != nil {
		t.Fatalf("decode opponentMove: %v", err)
	}
	if mv.From != "e2" || mv.To != "e4" || mv.Promotion != "" {
		t.Fatalf("unexpected move %+v", mv)
	}
	a.expectNone(t, h)

	// Out of turn and nonsense moves still pass through untouched.
	a.send(h, relayproto.TypeMove, relayproto.MovePayload{RoomCode: code, Move: relayproto.Move{From: "a1", To: "h8"}})
	b.expect(t, relayproto.TypeOpponentMove)

	room, _ := lookup(t, h, code)
	if len(room.Moves) != 2 || room.Moves[0].Mover != "a" {
		t.Fatalf("unexpected move log %+v", room.Moves)
	}
}

func TestMoveFromNonOccupantNotRelayed(t *testing.T) {
	h, _ := newTestHub(t)
	a := connect(t, h, "a")
	b := connect(t, h, "b")
	c := connect(t, h, "c")
	code := startGame(t, h, a, b)

	c.send(h, relayproto.TypeMove, relayproto.MovePayload{RoomCode: code, Move: relayproto.Move{From: "e7", To: "e5"}})
	c.expectError(t, "NotInGame")
	a.expectNone(t, h)
	b.expectNone(t, h)

	c.send(h, relayproto.TypeMove, relayproto.MovePayload{RoomCode: "ZZZZZZ", Move: relayproto.Move{From: "e7", To: "e5"}})
	c.expectError(t, "RoomNotFound")

	room, _ := lookup(t, h, code)
	if len(room.Moves) != 0 {
		t.Fatalf("rejected move was logged: %+v", room.Moves)
	}
}

func TestMalformedRequest(t *testing.T) {
	h, _ := newTestHub(t)
	a := connect(t, h, "a")
	h.Dispatch("a", relayproto.Envelope{Type: "resign"})
	a.expectError(t, "BadRequest")
	h.Dispatch("a", relayproto.Envelope{Type: relayproto.TypeJoinGame})
	a.expectError(t, "BadRequest")
}

func TestDisconnectGracePeriod(t *testing.T) {
	h, clock := newTestHub(t)
	a := connect(t, h, "a")
	b := connect(t, h, "b")
	code := startGame(t, h, a, b)

	h.Disconnect("a")
	b.expect(t, relayproto.TypeOpponentDisconnected)
	b.expectNone(t, h)

	clock.Advance(29 * time.Second)
	if _, ok := lookup(t, h, code); !ok {
		t.Fatalf("room removed before grace period elapsed")
	}

	clock.Advance(time.Second)
	if _, ok := lookup(t, h, code); ok {
		t.Fatalf("room still present after grace period")
	}
	b.expectNone(t, h)

	// The survivor's index entry went with the room.
	b.send(h, relayproto.TypeMove, relayproto.MovePayload{RoomCode: code, Move: relayproto.Move{From: "e7", To: "e5"}})
	b.expectError(t, "RoomNotFound")
}

func TestSecondDisconnectDoesNotRenotify(t *testing.T) {
	h, clock := newTestHub(t)
	a := connect(t, h, "a")
	b := connect(t, h, "b")
	code := startGame(t, h, a, b)

	h.Disconnect("a")
	b.expect(t, relayproto.TypeOpponentDisconnected)
	clock.Advance(10 * time.Second)
	h.Disconnect("b")
	a.expectNone(t, h)

	// The first timer still governs removal.
	clock.Advance(20 * time.Second)
	if _, ok := lookup(t, h, code); ok {
		t.Fatalf("room should be gone 30s after the first disconnect")
	}
}

func TestJoinAbandonedRoomRejected(t *testing.T) {
	h, _ := newTestHub(t)
	a := connect(t, h, "a")
	b := connect(t, h, "b")
	code := createRoom(t, h, a)

	h.Disconnect("a")
	b.send(h, relayproto.TypeJoinGame, relayproto.RoomRef{RoomCode: code})
	b.expectError(t, "RoomNotFound")
}

func TestSweepRemovesOldRooms(t *testing.T) {
	h, clock := newTestHub(t)
	a := connect(t, h, "a")
	b := connect(t, h, "b")
	code := startGame(t, h, a, b)

	clock.Advance(2*time.Hour - time.Minute)
	if _, ok := lookup(t, h, code); !ok {
		t.Fatalf("room swept before reaching its lifetime")
	}

	clock.Advance(time.Minute)
	if _, ok := lookup(t, h, code); ok {
		t.Fatalf("room older than 2h survived the sweep")
	}
	a.expectNone(t, h)
	b.expectNone(t, h)
}

func TestCreateWhileSeatedReleasesPreviousRoom(t *testing.T) {
	h, clock := newTestHub(t, "ROOM01", "ROOM02")
	a := connect(t, h, "a")
	b := connect(t, h, "b")
	first := startGame(t, h, a, b)

	second := createRoom(t, h, a)
	if second == first {
		t.Fatalf("expected a fresh code")
	}
	b.expect(t, relayproto.TypeOpponentDisconnected)

	// Moves into the old room from the creator are refused.
	a.send(h, relayproto.TypeMove, relayproto.MovePayload{RoomCode: first, Move: relayproto.Move{From: "e2", To: "e4"}})
	a.expectError(t, "NotInGame")
	b.expectNone(t, h)

	clock.Advance(30 * time.Second)
	if _, ok := lookup(t, h, first); ok {
		t.Fatalf("released room not removed")
	}
	if _, ok := lookup(t, h, second); !ok {
		t.Fatalf("new room missing")
	}
}

type recordingArchive struct {
	got chan RoomSummary
}

func (r *recordingArchive) SaveRoom(_ context.Context, s RoomSummary) error {
	r.got <- s
	return nil
}

type recordingJournal struct {
	records chan MoveRecord
	sealed  chan string
}

func (j *recordingJournal) Record(_ string, rec MoveRecord) { j.records <- rec }
func (j *recordingJournal) Seal(code string)                { j.sealed <- code }

func TestRemovedRoomIsArchivedAndSealed(t *testing.T) {
	clock := newFakeClock()
	arch := &recordingArchive{got: make(chan RoomSummary, 1)}
	jr := &recordingJournal{records: make(chan MoveRecord, 4), sealed: make(chan string, 1)}
	h := NewHub(context.Background(), Config{Clock: clock, Archive: arch, Journal: jr})
	t.Cleanup(h.Close)

	a := connect(t, h, "a")
	b := connect(t, h, "b")
	code := startGame(t, h, a, b)
	a.send(h, relayproto.TypeMove, relayproto.MovePayload{RoomCode: code, Move: relayproto.Move{From: "d2", To: "d4"}})
	b.expect(t, relayproto.TypeOpponentMove)

	select {
	case rec := <-jr.records:
		if rec.Move.UCI() != "d2d4" {
			t.Fatalf("journal got %+v", rec)
		}
	case <-time.After(time.Second):
		t.Fatalf("journal not called")
	}

	h.Disconnect("b")
	a.expect(t, relayproto.TypeOpponentDisconnected)
	clock.Advance(DefaultGracePeriod)

	select {
	case s := <-arch.got:
		if s.Code != code || s.Reason != StateAbandoned || len(s.Moves) != 1 {
			t.Fatalf("unexpected summary %+v", s)
		}
	case <-time.After(time.Second):
		t.Fatalf("archive not called")
	}
	select {
	case sealed := <-jr.sealed:
		if sealed != code {
			t.Fatalf("sealed %q", sealed)
		}
	case <-time.After(time.Second):
		t.Fatalf("journal not sealed")
	}
}

func TestStatsCountsRoomsAndConnections(t *testing.T) {
	h, _ := newTestHub(t)
	a := connect(t, h, "a")
	connect(t, h, "b")
	createRoom(t, h, a)

	st, err := h.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	// Only seated connections count; b has not joined anything yet.
	if st.ActiveGames != 1 || st.ConnectedPlayers != 1 {
		t.Fatalf("unexpected stats %+v", st)
	}

	h.Disconnect("b")
	h.Disconnect("a")
	st, _ = h.Stats(context.Background())
	if st.ConnectedPlayers != 0 {
		t.Fatalf("expected 0 connected players, got %d", st.ConnectedPlayers)
	}
}

func TestStatsCountsBothSeats(t *testing.T) {
	h, _ := newTestHub(t)
	a := connect(t, h, "a")
	b := connect(t, h, "b")
	connect(t, h, "idle")
	startGame(t, h, a, b)

	st, err := h.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.ActiveGames != 1 || st.ConnectedPlayers != 2 {
		t.Fatalf("unexpected stats %+v", st)
	}
}

func TestStalledConsumerIsEvicted(t *testing.T) {
	h, _ := newTestHub(t)
	a := connect(t, h, "a")
	b := connectWithOutbox(t, h, "b", 4)
	code := startGame(t, h, a, b)

	// b stops reading: four moves fill its outbox, the fifth cannot be queued.
	for i := 0; i < 6; i++ {
		a.send(h, relayproto.TypeMove, relayproto.MovePayload{RoomCode: code, Move: relayproto.Move{From: "g1", To: "f3"}})
	}
	a.expect(t, relayproto.TypeOpponentDisconnected)
	a.expectNone(t, h)

	for i := 0; i < 4; i++ {
		b.expect(t, relayproto.TypeOpponentMove)
	}
	select {
	case env, ok := <-b.out:
		if ok {
			t.Fatalf("expected closed outbox, got %s", env.Type)
		}
	case <-time.After(time.Second):
		t.Fatalf("outbox of evicted connection not closed")
	}

	// The transport still reports the disconnect afterwards; that must be harmless.
	h.Disconnect("b")
	a.expectNone(t, h)
	st, _ := h.Stats(context.Background())
	if st.ConnectedPlayers != 1 {
		t.Fatalf("evicted connection still counted: %+v", st)
	}
	if _, ok := lookup(t, h, code); !ok {
		t.Fatalf("room should wait out its grace period")
	}
}

func TestReplacedRoomArchivedWithReason(t *testing.T) {
	clock := newFakeClock()
	arch := &recordingArchive{got: make(chan RoomSummary, 1)}
	h := NewHub(context.Background(), Config{Clock: clock, Archive: arch, Codes: sequenceCodes("ROOM01", "ROOM02")})
	t.Cleanup(h.Close)

	a := connect(t, h, "a")
	first := createRoom(t, h, a)
	createRoom(t, h, a)
	clock.Advance(DefaultGracePeriod)

	select {
	case s := <-arch.got:
		if s.Code != first || s.Reason != StateReplaced {
			t.Fatalf("unexpected summary %+v", s)
		}
	case <-time.After(time.Second):
		t.Fatalf("archive not called")
	}
}
