package arena

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	nchess "github.com/corentings/chess/v2"
	"github.com/park285/chess-arena/pkg/relayproto"
)

var (
	ErrIllegalMove       = errors.New("illegal move")
	ErrNotYourTurn       = errors.New("not your turn")
	ErrPromotionRequired = errors.New("promotion piece required")
	ErrDesync            = errors.New("opponent move is illegal on the local board")
	ErrNoMatch           = errors.New("no match in progress")
	ErrGameOver          = errors.New("game is over")
)

// MoveRecord is a move that was applied to the local board.
type MoveRecord struct {
	Move    relayproto.Move
	SAN     string
	Mover   nchess.Color
	Capture bool
	Check   bool
	// FENBefore is the position the move was played from.
	FENBefore string
}

// GameSession is the client's view of one match. The local rules engine is
// authoritative for legality and game end; the relay never checks either.
type GameSession struct {
	game     *nchess.Game
	color    nchess.Color
	roomCode string
	myTurn   bool
	active   bool
	history  []string
	last     *MoveRecord
	started  time.Time
	now      func() time.Time
}

func NewGameSession() *GameSession {
	return &GameSession{game: nchess.NewGame(), color: nchess.NoColor, now: time.Now}
}

// Start begins a match on a fresh board. roomCode is empty offline.
func (s *GameSession) Start(color nchess.Color, roomCode string) {
	s.Reset()
	s.color = color
	s.roomCode = roomCode
	s.myTurn = color == nchess.White
	s.active = true
	s.started = s.now()
}

// Reset discards the board and all match state.
func (s *GameSession) Reset() {
	s.game = nchess.NewGame()
	s.color = nchess.NoColor
	s.roomCode = ""
	s.myTurn = false
	s.active = false
	s.history = nil
	s.last = nil
	s.started = time.Time{}
}

// EndMatch clears the seat but keeps the board for the summary and PGN.
func (s *GameSession) EndMatch() {
	s.color = nchess.NoColor
	s.roomCode = ""
	s.myTurn = false
	s.active = false
}

func (s *GameSession) Active() bool          { return s.active }
func (s *GameSession) Color() nchess.Color   { return s.color }
func (s *GameSession) RoomCode() string      { return s.roomCode }
func (s *GameSession) MyTurn() bool          { return s.myTurn }
func (s *GameSession) FEN() string           { return s.game.FEN() }
func (s *GameSession) Turn() nchess.Color    { return s.game.Position().Turn() }
func (s *GameSession) Game() *nchess.Game    { return s.game }
func (s *GameSession) StartedAt() time.Time  { return s.started }
func (s *GameSession) LastMove() *MoveRecord { return s.last }

func (s *GameSession) History() []string {
	out := make([]string, len(s.history))
	copy(out, s.history)
	return out
}

// SubmitLocal validates and plays the user's move.
func (s *GameSession) SubmitLocal(mv relayproto.Move) (MoveRecord, error) {
	if !s.active {
		return MoveRecord{}, ErrNoMatch
	}
	if s.Over() {
		return MoveRecord{}, ErrGameOver
	}
	if !s.myTurn {
		return MoveRecord{}, ErrNotYourTurn
	}
	legal, err := s.find(mv)
	if err != nil {
		return MoveRecord{}, err
	}
	rec := s.apply(legal)
	s.myTurn = false
	return rec, nil
}

// ApplyRemote plays the opponent's move. A move the local rules reject means
// the two boards disagree and the match cannot continue.
func (s *GameSession) ApplyRemote(mv relayproto.Move) (MoveRecord, error) {
	if !s.active {
		return MoveRecord{}, ErrNoMatch
	}
	if s.myTurn || s.Over() {
		return MoveRecord{}, fmt.Errorf("%w: %s arrived out of turn", ErrDesync, mv.UCI())
	}
	legal, err := s.find(mv)
	if err != nil {
		return MoveRecord{}, fmt.Errorf("%w: %s: %v", ErrDesync, mv.UCI(), err)
	}
	rec := s.apply(legal)
	s.myTurn = true
	return rec, nil
}

// NeedsPromotion reports whether from-to is a legal pawn promotion that still
// lacks the piece choice.
func (s *GameSession) NeedsPromotion(mv relayproto.Move) bool {
	if mv.Promotion != "" {
		return false
	}
	prefix := strings.ToLower(mv.From + mv.To)
	for _, m := range s.game.ValidMoves() {
		u := m.String()
		if len(u) == 5 && u[:4] == prefix {
			return true
		}
	}
	return false
}

func (s *GameSession) find(mv relayproto.Move) (*nchess.Move, error) {
	want := mv.UCI()
	promo := false
	for _, m := range s.game.ValidMoves() {
		u := m.String()
		if u == want {
			return &m, nil
		}
		if mv.Promotion == "" && len(u) == 5 && u[:4] == want {
			promo = true
		}
	}
	if promo {
		return nil, ErrPromotionRequired
	}
	return nil, ErrIllegalMove
}

func (s *GameSession) apply(m *nchess.Move) MoveRecord {
	pos := s.game.Position()
	mover := pos.Turn()
	rec := MoveRecord{
		Move:      moveFromUCI(m.String()),
		SAN:       nchess.AlgebraicNotation{}.Encode(pos, m),
		Mover:     mover,
		Capture:   m.HasTag(nchess.Capture) || m.HasTag(nchess.EnPassant),
		Check:     m.HasTag(nchess.Check),
		FENBefore: s.game.FEN(),
	}
	// find returned a move generated from this position, so Move cannot fail
	if err := s.game.Move(m, nil); err != nil {
		panic(fmt.Sprintf("apply validated move %s: %v", m.String(), err))
	}
	s.claimRepetition()
	s.history = append(s.history, rec.SAN)
	s.last = &rec
	return rec
}

// claimRepetition ends the game on threefold repetition the way a player
// claiming the draw would.
func (s *GameSession) claimRepetition() {
	if s.game.Outcome() != nchess.NoOutcome {
		return
	}
	for _, m := range s.game.EligibleDraws() {
		if m == nchess.ThreefoldRepetition {
			_ = s.game.Draw(nchess.ThreefoldRepetition)
			return
		}
	}
}

func (s *GameSession) Over() bool { return s.game.Outcome() != nchess.NoOutcome }

func (s *GameSession) Outcome() (nchess.Outcome, nchess.Method) {
	return s.game.Outcome(), s.game.Method()
}

// InCheck reports whether the side to move is in check.
func (s *GameSession) InCheck() bool {
	return s.last != nil && s.last.Check
}

// PieceMoves is the set of legal destinations for one piece.
type PieceMoves struct {
	From  string
	Piece nchess.Piece
	To    []string
}

// LegalMovesByPiece groups the side to move's legal moves by origin square.
func (s *GameSession) LegalMovesByPiece() []PieceMoves {
	board := s.game.Position().Board()
	idx := map[string]int{}
	var out []PieceMoves
	for _, m := range s.game.ValidMoves() {
		u := m.String()
		from, to := u[:2], u[2:4]
		i, ok := idx[from]
		if !ok {
			i = len(out)
			idx[from] = i
			out = append(out, PieceMoves{From: from, Piece: board.Piece(m.S1())})
		}
		// promotions list the square once
		if n := len(out[i].To); n > 0 && out[i].To[n-1] == to {
			continue
		}
		out[i].To = append(out[i].To, to)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].From < out[b].From })
	for i := range out {
		sort.Strings(out[i].To)
	}
	return out
}

// Duration is the time since the match started.
func (s *GameSession) Duration() time.Duration {
	if s.started.IsZero() {
		return 0
	}
	return s.now().Sub(s.started)
}

func moveFromUCI(u string) relayproto.Move {
	mv := relayproto.Move{From: u[:2], To: u[2:4]}
	if len(u) == 5 {
		mv.Promotion = u[4:]
	}
	return mv
}
