package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/park285/chess-arena/internal/config"
	"github.com/park285/chess-arena/internal/relayclient"
	"github.com/park285/chess-arena/pkg/relayproto"
)

func main() {
	serverURL := os.Getenv("CHESS_SERVER_URL")
	if serverURL == "" {
		serverURL = config.DefaultServerURL
	}

	client, err := relayclient.NewStatusClient(serverURL, relayclient.WithTimeout(5*time.Second))
	if err != nil {
		log.Fatalf("bad server url: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	st, err := client.Status(ctx)
	if err != nil {
		log.Printf("/ error: %v", err)
	} else {
		log.Printf("/ ok: %q version=%s games=%d players=%d uptime=%.0fs", st.Status, st.Version, st.ActiveGames, st.ConnectedPlayers, st.Uptime)
	}
	h, err := client.Health(ctx)
	if err != nil {
		log.Printf("/health error: %v", err)
	} else {
		log.Printf("/health ok: %s games=%d players=%d", h.Status, h.ActiveGames, h.ConnectedPlayers)
	}

	// Create a room and wait for the code to come back
	wctx, wcancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer wcancel()
	conn, err := relayclient.Dial(wctx, serverURL, relayclient.Options{})
	if err != nil {
		log.Printf("WS connect error: %v", err)
		return
	}
	defer func() { _ = conn.Close() }()

	if err := conn.CreateGame(wctx); err != nil {
		log.Printf("createGame error: %v", err)
		return
	}
	for {
		select {
		case <-wctx.Done():
			log.Printf("no gameCreated within timeout")
			return
		case env, ok := <-conn.Events():
			if !ok {
				log.Printf("WS closed: %v", conn.Err())
				return
			}
			if env.Type != relayproto.TypeGameCreated {
				log.Printf("WS event %s %s", env.Type, string(env.Data))
				continue
			}
			var ref relayproto.RoomRef
			if err := env.Decode(&ref); err != nil {
				log.Printf("gameCreated decode error: %v", err)
				return
			}
			log.Printf("WS ok: room %s created", ref.RoomCode)
			return
		}
	}
}
