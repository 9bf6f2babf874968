package relay

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/park285/chess-arena/pkg/relayproto"
)

const (
	codeAlphabet    = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	maxCodeAttempts = 64
)

// CodeFunc produces candidate room codes.
type CodeFunc func() (string, error)

// GenerateCode draws a 6 character code from [A-Z0-9] using crypto/rand.
func GenerateCode() (string, error) {
	b := make([]byte, relayproto.CodeLength)
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate room code: %w", err)
		}
		b[i] = codeAlphabet[n.Int64()]
	}
	return string(b), nil
}

// Registry maps room codes to rooms. It is not safe for concurrent use; the
// hub loop is its only caller.
type Registry struct {
	rooms map[string]*Room
	clock Clock
	codes CodeFunc
}

func NewRegistry(clock Clock, codes CodeFunc) *Registry {
	if clock == nil {
		clock = SystemClock()
	}
	if codes == nil {
		codes = GenerateCode
	}
	return &Registry{rooms: make(map[string]*Room), clock: clock, codes: codes}
}

// Create allocates a room with white as its first occupant. Codes already in
// use are rejected and redrawn.
func (r *Registry) Create(white string) (*Room, error) {
	for i := 0; i < maxCodeAttempts; i++ {
		code, err := r.codes()
		if err != nil {
			return nil, err
		}
		if _, taken := r.rooms[code]; taken {
			continue
		}
		room := &Room{Code: code, White: white, CreatedAt: r.clock.Now()}
		r.rooms[code] = room
		return room, nil
	}
	return nil, fmt.Errorf("failed to allocate room code after %d attempts", maxCodeAttempts)
}

func (r *Registry) Get(code string) (*Room, bool) {
	room, ok := r.rooms[code]
	return room, ok
}

func (r *Registry) Remove(code string) (*Room, bool) {
	room, ok := r.rooms[code]
	if ok {
		delete(r.rooms, code)
	}
	return room, ok
}

func (r *Registry) Len() int { return len(r.rooms) }

// Expired lists codes of rooms whose age has reached ttl, oldest first.
func (r *Registry) Expired(now time.Time, ttl time.Duration) []string {
	var out []string
	for code, room := range r.rooms {
		if now.Sub(room.CreatedAt) >= ttl {
			out = append(out, code)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return r.rooms[out[i]].CreatedAt.Before(r.rooms[out[j]].CreatedAt)
	})
	return out
}
