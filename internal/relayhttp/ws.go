package relayhttp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/park285/chess-arena/internal/obslog"
	"github.com/park285/chess-arena/pkg/relayproto"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const (
	outboxSize   = 32
	writeTimeout = 5 * time.Second
	// Frames above maxFrameSize are discarded and answered with BadRequest.
	// Only frames above maxReadSize make the library close the socket.
	maxFrameSize = 16 << 10
	maxReadSize  = 1 << 20
)

func (s *server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		obslog.L().Warn("ws_accept_error", zap.Error(err))
		return
	}
	conn.SetReadLimit(maxReadSize)

	id := uuid.NewString()
	out := make(chan relayproto.Envelope, outboxSize)
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	s.hub.Connect(id, out)
	obslog.L().Debug("ws_connected", zap.String("conn", id), zap.String("remote", r.RemoteAddr))

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		writeLoop(ctx, conn, out, id)
	}()

	status := s.readLoop(ctx, conn, id)

	s.hub.Disconnect(id)
	cancel()
	<-writerDone
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
	obslog.L().Debug("ws_disconnected", zap.String("conn", id), zap.Int("status", int(status)))
}

// readLoop feeds frames to the hub until the socket fails. A frame that is
// oversized or not a valid envelope is forwarded as an empty one, which the
// hub answers with BadRequest.
func (s *server) readLoop(ctx context.Context, conn *websocket.Conn, id string) websocket.StatusCode {
	for {
		typ, data, err := readFrame(ctx, conn)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == -1 && !errors.Is(err, context.Canceled) {
				obslog.L().Debug("ws_read_error", zap.String("conn", id), zap.Error(err))
			}
			return status
		}
		var env relayproto.Envelope
		if data == nil {
			obslog.L().Debug("ws_frame_too_large", zap.String("conn", id))
		} else if typ != websocket.MessageText || json.Unmarshal(data, &env) != nil {
			env = relayproto.Envelope{}
		}
		s.hub.Dispatch(id, env)
	}
}

// readFrame returns nil data for a frame longer than maxFrameSize, after
// draining the rest of it.
func readFrame(ctx context.Context, conn *websocket.Conn) (websocket.MessageType, []byte, error) {
	typ, r, err := conn.Reader(ctx)
	if err != nil {
		return 0, nil, err
	}
	data, err := io.ReadAll(io.LimitReader(r, maxFrameSize+1))
	if err != nil {
		return 0, nil, err
	}
	if len(data) <= maxFrameSize {
		return typ, data, nil
	}
	if _, err := io.Copy(io.Discard, r); err != nil {
		return 0, nil, err
	}
	return typ, nil, nil
}

func writeLoop(ctx context.Context, conn *websocket.Conn, out <-chan relayproto.Envelope, id string) {
	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-out:
			if !ok {
				obslog.L().Warn("ws_evicted", zap.String("conn", id))
				_ = conn.Close(websocket.StatusTryAgainLater, "outbox full")
				return
			}
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(wctx, conn, env)
			cancel()
			if err != nil {
				obslog.L().Warn("ws_write_error", zap.String("conn", id), zap.String("type", env.Type), zap.Error(err))
				_ = conn.Close(websocket.StatusGoingAway, "write failed")
				return
			}
		}
	}
}
