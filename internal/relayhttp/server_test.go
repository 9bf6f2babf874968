package relayhttp

import (
	"context"
	"errors"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	nchess "github.com/corentings/chess/v2"
	"github.com/park285/chess-arena/internal/relay"
	"github.com/park285/chess-arena/internal/relayclient"
	"github.com/park285/chess-arena/pkg/relayproto"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

func newTestServer(t *testing.T) (*httptest.Server, *relay.Hub) {
	t.Helper()
	h := relay.NewHub(context.Background(), relay.Config{})
	srv := httptest.NewServer(SetupRoutes(h, Info{Version: "test"}))
	t.Cleanup(func() {
		srv.Close()
		h.Close()
	})
	return srv, h
}

func dial(t *testing.T, url string) *relayclient.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := relayclient.Dial(ctx, url, relayclient.Options{})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func expect(t *testing.T, c *relayclient.Conn, eventType string) relayproto.Envelope {
	t.Helper()
	select {
	case env, ok := <-c.Events():
		if !ok {
			t.Fatalf("connection closed waiting for %s: %v", eventType, c.Err())
		}
		if env.Type != eventType {
			t.Fatalf("expected %s, got %s (%s)", eventType, env.Type, env.Data)
		}
		return env
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for %s", eventType)
	}
	return relayproto.Envelope{}
}

func TestCreateJoinOverWebSocket(t *testing.T) {
	srv, h := newTestServer(t)
	ctx := context.Background()
	a := dial(t, srv.URL)
	b := dial(t, srv.URL)

	if err := a.CreateGame(ctx); err != nil {
		t.Fatalf("CreateGame: %v", err)
	}
	var created relayproto.RoomRef
	if err := expect(t, a, relayproto.TypeGameCreated).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(created.RoomCode) != relayproto.CodeLength {
		t.Fatalf("unexpected code %q", created.RoomCode)
	}

	// Codes are case-insensitive on join.
	lower := []byte(created.RoomCode)
	for i, ch := range lower {
		if ch >= 'A' && ch <= 'Z' {
			lower[i] = ch + 'a' - 'A'
		}
	}
	if err := b.JoinGame(ctx, string(lower)); err != nil {
		t.Fatalf("JoinGame: %v", err)
	}
	expect(t, b, relayproto.TypeGameJoined)
	expect(t, b, relayproto.TypeGameStart)
	expect(t, a, relayproto.TypeGameStart)

	room, ok, err := h.Lookup(ctx, created.RoomCode)
	if err != nil || !ok {
		t.Fatalf("Lookup: ok=%v err=%v", ok, err)
	}
	if room.White == "" || room.Black == "" || room.White == room.Black {
		t.Fatalf("unexpected seats %+v", room)
	}
}

func TestMoveArrivesAndIsLegalForReceiver(t *testing.T) {
	srv, _ := newTestServer(t)
	ctx := context.Background()
	a := dial(t, srv.URL)
	b := dial(t, srv.URL)

	_ = a.CreateGame(ctx)
	var created relayproto.RoomRef
	_ = expect(t, a, relayproto.TypeGameCreated).Decode(&created)
	_ = b.JoinGame(ctx, created.RoomCode)
	expect(t, b, relayproto.TypeGameJoined)
	expect(t, b, relayproto.TypeGameStart)
	expect(t, a, relayproto.TypeGameStart)

	mv, _ := relayproto.ParseMove("e2e4")
	if err := a.SendMove(ctx, created.RoomCode, mv); err != nil {
		t.Fatalf("SendMove: %v", err)
	}
	var got relayproto.Move
	if err := expect(t, b, relayproto.TypeOpponentMove).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.From != "e2" || got.To != "e4" {
		t.Fatalf("unexpected move %+v", got)
	}

	game := nchess.NewGame()
	if err := game.PushNotationMove(got.UCI(), nchess.UCINotation{}, nil); err != nil {
		t.Fatalf("relayed move not legal in the receiver's game: %v", err)
	}
}

func TestDisconnectNotifiesPeer(t *testing.T) {
	srv, _ := newTestServer(t)
	ctx := context.Background()
	a := dial(t, srv.URL)
	b := dial(t, srv.URL)

	_ = a.CreateGame(ctx)
	var created relayproto.RoomRef
	_ = expect(t, a, relayproto.TypeGameCreated).Decode(&created)
	_ = b.JoinGame(ctx, created.RoomCode)
	expect(t, b, relayproto.TypeGameJoined)
	expect(t, b, relayproto.TypeGameStart)
	expect(t, a, relayproto.TypeGameStart)

	_ = a.Close()
	expect(t, b, relayproto.TypeOpponentDisconnected)
}

func TestRelayErrorsReachClient(t *testing.T) {
	srv, _ := newTestServer(t)
	c := dial(t, srv.URL)
	if err := c.JoinGame(context.Background(), "ZZZZZZ"); err != nil {
		t.Fatalf("JoinGame: %v", err)
	}
	env := expect(t, c, relayproto.TypeError)
	var msg string
	if err := env.Decode(&msg); err != nil {
		t.Fatalf("error data is not a string: %v", err)
	}
	if msg != "Game not found" || env.Code != "RoomNotFound" {
		t.Fatalf("unexpected error %q [%s]", msg, env.Code)
	}
}

func TestOversizedFrameAnsweredNotClosed(t *testing.T) {
	srv, _ := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, srv.URL+"/ws", nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	big := `{"type":"createGame","data":"` + strings.Repeat("x", maxFrameSize) + `"}`
	if err := conn.Write(ctx, websocket.MessageText, []byte(big)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	var env relayproto.Envelope
	if err := wsjson.Read(ctx, conn, &env); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if env.Type != relayproto.TypeError || env.Code != "BadRequest" {
		t.Fatalf("expected BadRequest, got %s [%s]", env.Type, env.Code)
	}

	// The socket stays usable.
	if err := wsjson.Write(ctx, conn, relayproto.MustNew(relayproto.TypeCreateGame, nil)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := wsjson.Read(ctx, conn, &env); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if env.Type != relayproto.TypeGameCreated {
		t.Fatalf("expected gameCreated, got %s", env.Type)
	}
}

func TestStatusEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)
	a := dial(t, srv.URL)
	_ = a.CreateGame(context.Background())
	expect(t, a, relayproto.TypeGameCreated)

	sc, err := relayclient.NewStatusClient(srv.URL, relayclient.WithRetry(1))
	if err != nil {
		t.Fatalf("NewStatusClient: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	st, err := sc.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.Status != relayproto.StatusRunning || st.ActiveGames != 1 || st.ConnectedPlayers != 1 || st.Version != "test" {
		t.Fatalf("unexpected status %+v", st)
	}
	if _, err := time.Parse(time.RFC3339, st.Timestamp); err != nil {
		t.Fatalf("timestamp not RFC3339: %q", st.Timestamp)
	}
	if st.Uptime < 0 {
		t.Fatalf("negative uptime %v", st.Uptime)
	}

	hl, err := sc.Health(ctx)
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if hl.ActiveGames != 1 || hl.ConnectedPlayers != 1 {
		t.Fatalf("unexpected health %+v", hl)
	}
}

func TestDialTimeout(t *testing.T) {
	// A listener that never completes the websocket handshake.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			t.Cleanup(func() { _ = conn.Close() })
		}
	}()

	_, err = relayclient.Dial(context.Background(), "http://"+ln.Addr().String(), relayclient.Options{DialTimeout: 200 * time.Millisecond})
	if !errors.Is(err, relayclient.ErrConnectionTimeout) {
		t.Fatalf("expected ErrConnectionTimeout, got %v", err)
	}
}
