package arena

import nchess "github.com/corentings/chess/v2"

var pieceValues = map[nchess.PieceType]int{
	nchess.Pawn:   1,
	nchess.Knight: 3,
	nchess.Bishop: 3,
	nchess.Rook:   5,
	nchess.Queen:  9,
}

// Captured lists pieces taken by each side in capture order.
type Captured struct {
	ByWhite []nchess.Piece
	ByBlack []nchess.Piece
}

func (c Captured) Empty() bool { return len(c.ByWhite) == 0 && len(c.ByBlack) == 0 }

// Advantage is White's material lead in pawns.
func (c Captured) Advantage() int {
	diff := 0
	for _, p := range c.ByWhite {
		diff += pieceValues[p.Type()]
	}
	for _, p := range c.ByBlack {
		diff -= pieceValues[p.Type()]
	}
	return diff
}

// Captured walks the move list; positions[i] is the position moves[i] was
// played from.
func (s *GameSession) Captured() Captured {
	var out Captured
	moves := s.game.Moves()
	positions := s.game.Positions()
	for i, mv := range moves {
		if i >= len(positions) {
			break
		}
		if !mv.HasTag(nchess.Capture) && !mv.HasTag(nchess.EnPassant) {
			continue
		}
		pos := positions[i]
		sq := mv.S2()
		if mv.HasTag(nchess.EnPassant) {
			if pos.Turn() == nchess.White {
				sq = nchess.NewSquare(sq.File(), sq.Rank()-1)
			} else {
				sq = nchess.NewSquare(sq.File(), sq.Rank()+1)
			}
		}
		p := pos.Board().Piece(sq)
		if p == nchess.NoPiece || p.Type() == nchess.King {
			continue
		}
		if pos.Turn() == nchess.White {
			out.ByWhite = append(out.ByWhite, p)
		} else {
			out.ByBlack = append(out.ByBlack, p)
		}
	}
	return out
}
