// Package relayclient is the player side of the relay websocket plus a small
// HTTP probe for the relay's status endpoints.
package relayclient

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/park285/chess-arena/internal/obslog"
	"github.com/park285/chess-arena/pkg/relayproto"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const (
	DefaultDialTimeout = 10 * time.Second

	eventBuffer       = 32
	writeTimeout      = 5 * time.Second
	defaultPingPeriod = 30 * time.Second
	pingTimeout       = 3 * time.Second
	maxPingFailures   = 2
)

var (
	ErrConnectionTimeout = errors.New("connection to relay timed out")
	ErrClosed            = errors.New("relay connection closed")
)

type Options struct {
	DialTimeout time.Duration
	PingPeriod  time.Duration
}

// Conn is one player's websocket to the relay. Incoming frames are delivered
// on Events in arrival order; the channel is closed when the socket ends.
type Conn struct {
	conn   *websocket.Conn
	events chan relayproto.Envelope

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	errMu sync.Mutex
	err   error

	closeOnce sync.Once
}

// Dial connects to the relay at serverURL (http, https, ws or wss). Failing to
// connect within the dial timeout yields ErrConnectionTimeout.
func Dial(ctx context.Context, serverURL string, opts Options) (*Conn, error) {
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = DefaultDialTimeout
	}
	if opts.PingPeriod <= 0 {
		opts.PingPeriod = defaultPingPeriod
	}
	wsURL, err := WebSocketURL(serverURL)
	if err != nil {
		return nil, err
	}

	dialCtx, cancel := context.WithTimeout(ctx, opts.DialTimeout)
	defer cancel()
	conn, _, err := websocket.Dial(dialCtx, wsURL, &websocket.DialOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		if errors.Is(dialCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s", ErrConnectionTimeout, wsURL)
		}
		return nil, fmt.Errorf("dial relay: %w", err)
	}

	c := &Conn{conn: conn, events: make(chan relayproto.Envelope, eventBuffer)}
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.wg.Add(2)
	go c.listen()
	go c.pingLoop(opts.PingPeriod)
	obslog.L().Info("relay_connected", zap.String("url", wsURL))
	return c, nil
}

// WebSocketURL maps a relay base URL to its /ws endpoint.
func WebSocketURL(serverURL string) (string, error) {
	raw := strings.TrimSpace(serverURL)
	if raw == "" {
		return "", errors.New("relay url is empty")
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse relay url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported relay url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("relay url %q has no host", serverURL)
	}
	path := strings.TrimRight(u.Path, "/")
	if !strings.HasSuffix(path, "/ws") {
		path += "/ws"
	}
	u.Path = path
	return u.String(), nil
}

func (c *Conn) Events() <-chan relayproto.Envelope { return c.events }

// Err reports why the connection ended, once Events is closed.
func (c *Conn) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

func (c *Conn) CreateGame(ctx context.Context) error {
	return c.send(ctx, relayproto.TypeCreateGame, nil)
}

func (c *Conn) JoinGame(ctx context.Context, code string) error {
	return c.send(ctx, relayproto.TypeJoinGame, relayproto.RoomRef{RoomCode: strings.TrimSpace(code)})
}

func (c *Conn) SendMove(ctx context.Context, code string, mv relayproto.Move) error {
	return c.send(ctx, relayproto.TypeMove, relayproto.MovePayload{RoomCode: code, Move: mv})
}

func (c *Conn) send(ctx context.Context, eventType string, payload any) error {
	if c.ctx.Err() != nil {
		return ErrClosed
	}
	env, err := relayproto.New(eventType, payload)
	if err != nil {
		return err
	}
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := wsjson.Write(wctx, c.conn, env); err != nil {
		return fmt.Errorf("send %s: %w", eventType, err)
	}
	return nil
}

// Close ends the session; the relay treats it as a disconnect.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.setErr(ErrClosed)
		err = c.conn.Close(websocket.StatusNormalClosure, "bye")
		c.cancel()
		c.wg.Wait()
	})
	return err
}

func (c *Conn) listen() {
	defer c.wg.Done()
	defer close(c.events)
	for {
		var env relayproto.Envelope
		if err := wsjson.Read(c.ctx, c.conn, &env); err != nil {
			if c.ctx.Err() == nil {
				obslog.L().Warn("relay_read_error", zap.Error(err))
			}
			c.setErr(fmt.Errorf("%w: %v", ErrClosed, err))
			c.cancel()
			return
		}
		select {
		case c.events <- env:
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Conn) pingLoop(period time.Duration) {
	defer c.wg.Done()
	t := time.NewTicker(period)
	defer t.Stop()
	failures := 0
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-t.C:
			ctx, cancel := context.WithTimeout(c.ctx, pingTimeout)
			err := c.conn.Ping(ctx)
			cancel()
			if err == nil {
				failures = 0
				continue
			}
			failures++
			if failures >= maxPingFailures {
				obslog.L().Warn("relay_ping_failed", zap.Error(err))
				_ = c.conn.Close(websocket.StatusGoingAway, "ping failure")
				return
			}
		}
	}
}

func (c *Conn) setErr(err error) {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	if c.err == nil {
		c.err = err
	}
}
