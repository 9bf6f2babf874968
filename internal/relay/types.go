// Package relay pairs two websocket connections per room and forwards moves
// between them.
//
// The relay is deliberately NOT a referee. It keeps no board, never checks
// move legality and never enforces turn order: a move from either occupant is
// logged and forwarded verbatim to the other one. Clients own all chess rules.
// Do not build anti-cheat assumptions on top of this package.
package relay

import (
	"time"

	"github.com/park285/chess-arena/pkg/relayproto"
)

// RoomState is the lifecycle of a room as seen by the relay.
type RoomState string

const (
	StateWaiting   RoomState = "WAITING_FOR_OPPONENT"
	StateActive    RoomState = "ACTIVE"
	StateAbandoned RoomState = "ABANDONED"
	StateExpired   RoomState = "EXPIRED"
	StateReplaced  RoomState = "REPLACED" // an occupant moved on to another room
)

// MoveRecord is one entry of a room's diagnostic move log.
type MoveRecord struct {
	Mover string          `json:"mover"`
	Move  relayproto.Move `json:"move"`
	At    time.Time       `json:"at"`
}

// Room is owned by the hub loop; callers outside it only ever see copies.
type Room struct {
	Code      string
	White     string
	Black     string
	Moves     []MoveRecord
	CreatedAt time.Time
}

func (r *Room) State() RoomState {
	if r.Black == "" {
		return StateWaiting
	}
	return StateActive
}

func (r *Room) Full() bool { return r.White != "" && r.Black != "" }

func (r *Room) Occupies(connID string) bool {
	return connID != "" && (r.White == connID || r.Black == connID)
}

// Peer returns the other occupant, or "" when there is none.
func (r *Room) Peer(connID string) string {
	switch connID {
	case r.White:
		return r.Black
	case r.Black:
		return r.White
	}
	return ""
}

func (r *Room) snapshot() Room {
	cp := *r
	cp.Moves = append([]MoveRecord(nil), r.Moves...)
	return cp
}

// RoomSummary is handed to the archive when a room leaves the registry.
type RoomSummary struct {
	Code      string
	White     string
	Black     string
	Moves     []MoveRecord
	CreatedAt time.Time
	ClosedAt  time.Time
	Reason    RoomState
}

// Stats feeds the HTTP status endpoints.
type Stats struct {
	ActiveGames      int `json:"activeGames"`
	ConnectedPlayers int `json:"connectedPlayers"`
}

// Protocol errors are returned to the requesting connection only.
var (
	ErrRoomNotFound = errf("RoomNotFound", "Game not found")
	ErrRoomFull     = errf("RoomFull", "Game is already full")
	ErrNotInGame    = errf("NotInGame", "You are not in this game")
	ErrBadRequest   = errf("BadRequest", "Malformed request")
	ErrOwnRoom      = errf("BadRequest", "You cannot join your own game")
)

type protocolErr struct {
	code string
	msg  string
}

func (e *protocolErr) Error() string { return e.msg }
func (e *protocolErr) Code() string  { return e.code }

func errf(code, msg string) error { return &protocolErr{code: code, msg: msg} }

// ErrorEvent converts a protocol error into its wire form.
func ErrorEvent(err error) relayproto.Envelope {
	if pe, ok := err.(*protocolErr); ok {
		return relayproto.NewError(pe.code, pe.msg)
	}
	return relayproto.NewError("Internal", err.Error())
}
