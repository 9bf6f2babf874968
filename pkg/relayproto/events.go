// Package relayproto defines the JSON frames exchanged between chess-arena
// clients and the relay server.
package relayproto

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Event type names on the wire.
const (
	TypeCreateGame = "createGame"
	TypeJoinGame   = "joinGame"
	TypeMove       = "move"

	TypeGameCreated          = "gameCreated"
	TypeGameJoined           = "gameJoined"
	TypeGameStart            = "gameStart"
	TypeOpponentMove         = "opponentMove"
	TypeOpponentDisconnected = "opponentDisconnected"
	TypeError                = "error"
)

// CodeLength is the fixed length of a room code.
const CodeLength = 6

// Envelope is a single websocket frame. Code is only set on error events,
// whose data is the message string.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
	Code string          `json:"code,omitempty"`
}

type RoomRef struct {
	RoomCode string `json:"roomCode"`
}

// Move is a coordinate move. Promotion is one of q, r, b, n when present.
type Move struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion,omitempty"`
}

func (m Move) UCI() string {
	return strings.ToLower(m.From + m.To + m.Promotion)
}

// ParseMove splits a 4 or 5 character coordinate token such as e7e8q.
func ParseMove(token string) (Move, error) {
	t := strings.ToLower(strings.TrimSpace(token))
	if len(t) != 4 && len(t) != 5 {
		return Move{}, fmt.Errorf("invalid move token %q", token)
	}
	mv := Move{From: t[0:2], To: t[2:4]}
	if !ValidSquare(mv.From) || !ValidSquare(mv.To) {
		return Move{}, fmt.Errorf("invalid move token %q", token)
	}
	if len(t) == 5 {
		switch t[4] {
		case 'q', 'r', 'b', 'n':
			mv.Promotion = t[4:5]
		default:
			return Move{}, fmt.Errorf("invalid promotion in %q", token)
		}
	}
	return mv, nil
}

// ValidSquare reports whether s names a board square (a1..h8).
func ValidSquare(s string) bool {
	if len(s) != 2 {
		return false
	}
	return s[0] >= 'a' && s[0] <= 'h' && s[1] >= '1' && s[1] <= '8'
}

type MovePayload struct {
	RoomCode string `json:"roomCode"`
	Move     Move   `json:"move"`
}

// ErrorPayload is the decoded form of an error event.
type ErrorPayload struct {
	Code    string
	Message string
}

func (e ErrorPayload) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Code
}

// NewError builds an error event carrying message as its data.
func NewError(code, message string) Envelope {
	env := MustNew(TypeError, message)
	env.Code = code
	return env
}

// AsError reads an error event back. Data that is not a JSON string is
// returned raw as the message.
func (e Envelope) AsError() ErrorPayload {
	p := ErrorPayload{Code: e.Code}
	if err := json.Unmarshal(e.Data, &p.Message); err != nil {
		p.Message = string(e.Data)
	}
	return p
}

// NormalizeCode upper-cases and trims a user supplied room code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// New builds an envelope with a JSON encoded payload. A nil payload produces a frame without data.
func New(eventType string, payload any) (Envelope, error) {
	env := Envelope{Type: eventType}
	if payload == nil {
		return env, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s: %w", eventType, err)
	}
	env.Data = raw
	return env, nil
}

// MustNew is New for payload types that always marshal.
func MustNew(eventType string, payload any) Envelope {
	env, err := New(eventType, payload)
	if err != nil {
		panic(err)
	}
	return env
}

// Decode unmarshals the envelope data into out.
func (e Envelope) Decode(out any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("%s: empty payload", e.Type)
	}
	if err := json.Unmarshal(e.Data, out); err != nil {
		return fmt.Errorf("%s: decode payload: %w", e.Type, err)
	}
	return nil
}
