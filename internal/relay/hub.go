package relay

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/park285/chess-arena/internal/obslog"
	"github.com/park285/chess-arena/pkg/relayproto"
	"go.uber.org/zap"
)

const (
	DefaultGracePeriod   = 30 * time.Second
	DefaultSweepInterval = 60 * time.Second
	DefaultRoomTTL       = 2 * time.Hour

	inboxSize      = 64
	archiveTimeout = 5 * time.Second
)

var ErrHubClosed = errors.New("relay hub closed")

type Config struct {
	GracePeriod   time.Duration
	SweepInterval time.Duration
	RoomTTL       time.Duration

	Clock   Clock
	Codes   CodeFunc
	Journal Journal
	Archive Archive
}

func (c Config) withDefaults() Config {
	if c.GracePeriod <= 0 {
		c.GracePeriod = DefaultGracePeriod
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = DefaultSweepInterval
	}
	if c.RoomTTL <= 0 {
		c.RoomTTL = DefaultRoomTTL
	}
	if c.Clock == nil {
		c.Clock = SystemClock()
	}
	if c.Journal == nil {
		c.Journal = NopJournal()
	}
	return c
}

type hubMsg interface{ isHubMsg() }

type connectMsg struct {
	id  string
	out chan<- relayproto.Envelope
}

type requestMsg struct {
	id  string
	env relayproto.Envelope
}

type disconnectMsg struct{ id string }

type graceMsg struct {
	code   string
	room   *Room
	reason RoomState
}

type sweepMsg struct{}

type statsMsg struct{ reply chan Stats }

type lookupMsg struct {
	code  string
	reply chan lookupResult
}

type lookupResult struct {
	room Room
	ok   bool
}

func (connectMsg) isHubMsg()    {}
func (requestMsg) isHubMsg()    {}
func (disconnectMsg) isHubMsg() {}
func (graceMsg) isHubMsg()      {}
func (sweepMsg) isHubMsg()      {}
func (statsMsg) isHubMsg()      {}
func (lookupMsg) isHubMsg()     {}

// Hub is the relay event loop. Every registry and index mutation happens on
// its single goroutine; the public methods only enqueue messages.
type Hub struct {
	cfg      Config
	inbox    chan hubMsg
	registry *Registry
	index    map[string]string
	conns    map[string]chan<- relayproto.Envelope
	grace    map[string]Timer
	sweep    Timer

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	bg     sync.WaitGroup
}

func NewHub(parent context.Context, cfg Config) *Hub {
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		cfg:      cfg,
		inbox:    make(chan hubMsg, inboxSize),
		registry: NewRegistry(cfg.Clock, cfg.Codes),
		index:    make(map[string]string),
		conns:    make(map[string]chan<- relayproto.Envelope),
		grace:    make(map[string]Timer),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	h.armSweep()
	go h.loop()
	return h
}

// Connect registers a connection and the channel its frames are written to.
// The hub closes out only when it evicts a connection whose outbox stayed
// full; the writer must then shut the socket.
func (h *Hub) Connect(id string, out chan<- relayproto.Envelope) {
	h.post(connectMsg{id: id, out: out})
}

func (h *Hub) Dispatch(id string, env relayproto.Envelope) {
	h.post(requestMsg{id: id, env: env})
}

func (h *Hub) Disconnect(id string) {
	h.post(disconnectMsg{id: id})
}

func (h *Hub) Stats(ctx context.Context) (Stats, error) {
	reply := make(chan Stats, 1)
	if !h.post(statsMsg{reply: reply}) {
		return Stats{}, ErrHubClosed
	}
	select {
	case s := <-reply:
		return s, nil
	case <-ctx.Done():
		return Stats{}, ctx.Err()
	case <-h.done:
		return Stats{}, ErrHubClosed
	}
}

// Lookup returns a copy of the room registered under code.
func (h *Hub) Lookup(ctx context.Context, code string) (Room, bool, error) {
	reply := make(chan lookupResult, 1)
	if !h.post(lookupMsg{code: relayproto.NormalizeCode(code), reply: reply}) {
		return Room{}, false, ErrHubClosed
	}
	select {
	case res := <-reply:
		return res.room, res.ok, nil
	case <-ctx.Done():
		return Room{}, false, ctx.Err()
	case <-h.done:
		return Room{}, false, ErrHubClosed
	}
}

// Close stops the loop and waits for pending archive writes.
func (h *Hub) Close() {
	h.cancel()
	<-h.done
	h.bg.Wait()
}

func (h *Hub) post(m hubMsg) bool {
	select {
	case h.inbox <- m:
		return true
	case <-h.ctx.Done():
		return false
	}
}

func (h *Hub) loop() {
	defer close(h.done)
	defer h.stopTimers()
	for {
		select {
		case <-h.ctx.Done():
			return
		case m := <-h.inbox:
			h.handle(m)
		}
	}
}

func (h *Hub) handle(m hubMsg) {
	switch msg := m.(type) {
	case connectMsg:
		h.conns[msg.id] = msg.out
	case requestMsg:
		h.handleRequest(msg.id, msg.env)
	case disconnectMsg:
		h.handleDisconnect(msg.id)
	case graceMsg:
		h.handleGraceExpired(msg.code, msg.room, msg.reason)
	case sweepMsg:
		h.handleSweep()
	case statsMsg:
		msg.reply <- Stats{ActiveGames: h.registry.Len(), ConnectedPlayers: len(h.index)}
	case lookupMsg:
		room, ok := h.registry.Get(msg.code)
		if !ok {
			msg.reply <- lookupResult{}
			break
		}
		msg.reply <- lookupResult{room: room.snapshot(), ok: true}
	}
}

func (h *Hub) handleRequest(id string, env relayproto.Envelope) {
	var err error
	switch env.Type {
	case relayproto.TypeCreateGame:
		err = h.create(id)
	case relayproto.TypeJoinGame:
		var p relayproto.RoomRef
		if derr := env.Decode(&p); derr != nil {
			err = ErrBadRequest
			break
		}
		err = h.join(id, p.RoomCode)
	case relayproto.TypeMove:
		var p relayproto.MovePayload
		if derr := env.Decode(&p); derr != nil {
			err = ErrBadRequest
			break
		}
		err = h.move(id, p)
	default:
		err = ErrBadRequest
	}
	if err != nil {
		obslog.L().Warn("relay_request_rejected",
			zap.String("conn", id),
			zap.String("type", env.Type),
			zap.Error(err),
		)
		h.deliver(id, ErrorEvent(err))
	}
}

func (h *Hub) create(id string) error {
	// A connection that already sits in a room leaves it first, so it can
	// never own more than one live room at a time.
	h.leave(id, StateReplaced)

	room, err := h.registry.Create(id)
	if err != nil {
		return err
	}
	h.index[id] = room.Code
	h.send(id, relayproto.TypeGameCreated, relayproto.RoomRef{RoomCode: room.Code})
	obslog.L().Info("relay_room_create", zap.String("code", room.Code), zap.String("white", id))
	return nil
}

func (h *Hub) join(id, rawCode string) error {
	code := relayproto.NormalizeCode(rawCode)
	if len(code) != relayproto.CodeLength {
		return ErrRoomNotFound
	}
	room, ok := h.registry.Get(code)
	if !ok {
		return ErrRoomNotFound
	}
	if _, dying := h.grace[code]; dying {
		return ErrRoomNotFound
	}
	if room.Occupies(id) {
		return ErrOwnRoom
	}
	if room.Black != "" {
		return ErrRoomFull
	}

	h.leave(id, StateReplaced)
	room.Black = id
	h.index[id] = code

	h.send(id, relayproto.TypeGameJoined, relayproto.RoomRef{RoomCode: code})
	start := relayproto.RoomRef{RoomCode: code}
	h.send(room.White, relayproto.TypeGameStart, start)
	h.send(room.Black, relayproto.TypeGameStart, start)
	obslog.L().Info("relay_room_start",
		zap.String("code", code),
		zap.String("white", room.White),
		zap.String("black", room.Black),
	)
	return nil
}

func (h *Hub) move(id string, p relayproto.MovePayload) error {
	code := relayproto.NormalizeCode(p.RoomCode)
	room, ok := h.registry.Get(code)
	if !ok {
		return ErrRoomNotFound
	}
	if !room.Occupies(id) || h.index[id] != code {
		return ErrNotInGame
	}

	rec := MoveRecord{Mover: id, Move: p.Move, At: h.cfg.Clock.Now()}
	room.Moves = append(room.Moves, rec)
	h.cfg.Journal.Record(code, rec)

	// Forwarded as received: no legality or turn checks here.
	if peer := room.Peer(id); peer != "" {
		h.send(peer, relayproto.TypeOpponentMove, p.Move)
	}
	return nil
}

func (h *Hub) handleDisconnect(id string) {
	delete(h.conns, id)
	h.leave(id, StateAbandoned)
	obslog.L().Debug("relay_conn_closed", zap.String("conn", id))
}

// evict drops a connection that stopped draining its outbox. Its room is
// released the same way as on a disconnect.
func (h *Hub) evict(id string) {
	out, ok := h.conns[id]
	if !ok {
		return
	}
	delete(h.conns, id)
	close(out)
	obslog.L().Warn("relay_conn_evicted", zap.String("conn", id))
	h.leave(id, StateAbandoned)
}

// leave drops the connection's index entry, tells the other occupant and
// schedules the room for removal after the grace period. The first reason
// recorded for a room is the one archived.
func (h *Hub) leave(id string, reason RoomState) {
	code, ok := h.index[id]
	if !ok {
		return
	}
	delete(h.index, id)

	room, ok := h.registry.Get(code)
	if !ok {
		return
	}
	if peer := room.Peer(id); peer != "" && h.index[peer] == code {
		h.send(peer, relayproto.TypeOpponentDisconnected, nil)
	}
	h.scheduleRemoval(room, reason)
}

func (h *Hub) scheduleRemoval(room *Room, reason RoomState) {
	if _, pending := h.grace[room.Code]; pending {
		return
	}
	code := room.Code
	h.grace[code] = h.cfg.Clock.AfterFunc(h.cfg.GracePeriod, func() {
		h.post(graceMsg{code: code, room: room, reason: reason})
	})
	obslog.L().Info("relay_room_grace", zap.String("code", code), zap.Duration("grace", h.cfg.GracePeriod))
}

func (h *Hub) handleGraceExpired(code string, room *Room, reason RoomState) {
	// The code may have been swept and reissued since the timer was armed.
	if cur, ok := h.registry.Get(code); !ok || cur != room {
		return
	}
	h.removeRoom(code, reason)
}

func (h *Hub) armSweep() {
	h.sweep = h.cfg.Clock.AfterFunc(h.cfg.SweepInterval, func() {
		h.post(sweepMsg{})
	})
}

func (h *Hub) handleSweep() {
	now := h.cfg.Clock.Now()
	expired := h.registry.Expired(now, h.cfg.RoomTTL)
	for _, code := range expired {
		h.removeRoom(code, StateExpired)
	}
	if len(expired) > 0 {
		obslog.L().Info("relay_sweep", zap.Int("expired", len(expired)), zap.Int("remaining", h.registry.Len()))
	}
	h.armSweep()
}

func (h *Hub) removeRoom(code string, reason RoomState) {
	room, ok := h.registry.Remove(code)
	if !ok {
		return
	}
	if t, ok := h.grace[code]; ok {
		t.Stop()
		delete(h.grace, code)
	}
	for _, id := range []string{room.White, room.Black} {
		if id != "" && h.index[id] == code {
			delete(h.index, id)
		}
	}
	h.cfg.Journal.Seal(code)

	summary := RoomSummary{
		Code:      room.Code,
		White:     room.White,
		Black:     room.Black,
		Moves:     append([]MoveRecord(nil), room.Moves...),
		CreatedAt: room.CreatedAt,
		ClosedAt:  h.cfg.Clock.Now(),
		Reason:    reason,
	}
	h.archiveRoom(summary)
	obslog.L().Info("relay_room_remove",
		zap.String("code", code),
		zap.String("reason", string(reason)),
		zap.Int("moves", len(room.Moves)),
	)
}

func (h *Hub) archiveRoom(s RoomSummary) {
	if h.cfg.Archive == nil {
		return
	}
	h.bg.Add(1)
	go func() {
		defer h.bg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
		defer cancel()
		if err := h.cfg.Archive.SaveRoom(ctx, s); err != nil {
			obslog.L().Error("relay_archive_error", zap.String("code", s.Code), zap.Error(err))
		}
	}()
}

func (h *Hub) send(id, eventType string, payload any) {
	env, err := relayproto.New(eventType, payload)
	if err != nil {
		obslog.L().Error("relay_encode_error", zap.String("type", eventType), zap.Error(err))
		return
	}
	h.deliver(id, env)
}

// deliver never blocks the loop. A full outbox means the consumer is gone
// or hopelessly behind, so it is evicted instead of silently losing frames.
func (h *Hub) deliver(id string, env relayproto.Envelope) {
	out, ok := h.conns[id]
	if !ok {
		return
	}
	select {
	case out <- env:
	default:
		obslog.L().Warn("relay_outbox_full", zap.String("conn", id), zap.String("type", env.Type))
		h.evict(id)
	}
}

func (h *Hub) stopTimers() {
	if h.sweep != nil {
		h.sweep.Stop()
	}
	for code, t := range h.grace {
		t.Stop()
		delete(h.grace, code)
	}
}
