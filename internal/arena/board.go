package arena

import (
	"fmt"
	"io"
	"strings"

	nchess "github.com/corentings/chess/v2"
	"github.com/fatih/color"
)

var glyphs = map[nchess.Piece]string{
	nchess.WhiteKing: "♔", nchess.WhiteQueen: "♕", nchess.WhiteRook: "♖",
	nchess.WhiteBishop: "♗", nchess.WhiteKnight: "♘", nchess.WhitePawn: "♙",
	nchess.BlackKing: "♚", nchess.BlackQueen: "♛", nchess.BlackRook: "♜",
	nchess.BlackBishop: "♝", nchess.BlackKnight: "♞", nchess.BlackPawn: "♟",
}

func glyph(p nchess.Piece) string {
	if g, ok := glyphs[p]; ok {
		return g
	}
	return " "
}

var pieceNames = map[nchess.PieceType]string{
	nchess.King: "King", nchess.Queen: "Queen", nchess.Rook: "Rook",
	nchess.Bishop: "Bishop", nchess.Knight: "Knight", nchess.Pawn: "Pawn",
}

// BoardView controls how a position is drawn.
type BoardView struct {
	Theme       Theme
	Perspective nchess.Color
	// Marked squares get the highlight background (last move).
	Marked []string
	// Targets get a dot when empty (selected piece destinations).
	Targets []string
}

// RenderBoard writes the board, rank 8 on top unless viewed from Black.
func RenderBoard(w io.Writer, board *nchess.Board, v BoardView) {
	marked := toSet(v.Marked)
	targets := toSet(v.Targets)
	edge := v.Theme.border()

	files := []nchess.File{nchess.FileA, nchess.FileB, nchess.FileC, nchess.FileD, nchess.FileE, nchess.FileF, nchess.FileG, nchess.FileH}
	ranks := []nchess.Rank{nchess.Rank8, nchess.Rank7, nchess.Rank6, nchess.Rank5, nchess.Rank4, nchess.Rank3, nchess.Rank2, nchess.Rank1}
	if v.Perspective == nchess.Black {
		reverseFiles(files)
		reverseRanks(ranks)
	}

	var fileRow strings.Builder
	fileRow.WriteString("    ")
	for _, f := range files {
		fileRow.WriteString(" " + f.String() + " ")
	}
	label := edge.Sprint(fileRow.String())

	fmt.Fprintln(w, label)
	for _, r := range ranks {
		var row strings.Builder
		row.WriteString(edge.Sprintf("  %s ", r.String()))
		for _, f := range files {
			sq := nchess.NewSquare(f, r)
			p := board.Piece(sq)
			bg := v.Theme.square((int(f)+int(r))%2 == 1)
			if marked[sq.String()] {
				bg = color.BgRGB(highlight.r, highlight.g, highlight.b)
			}
			cell := " " + glyph(p) + " "
			if p == nchess.NoPiece && targets[sq.String()] {
				cell = " · "
			}
			fg := v.Theme.WhitePiece
			if p != nchess.NoPiece && p.Color() == nchess.Black {
				fg = v.Theme.BlackPiece
			}
			bg.AddRGB(fg.r, fg.g, fg.b)
			row.WriteString(bg.Sprint(cell))
		}
		row.WriteString(edge.Sprintf(" %s", r.String()))
		fmt.Fprintln(w, row.String())
	}
	fmt.Fprintln(w, label)
}

func toSet(items []string) map[string]bool {
	m := make(map[string]bool, len(items))
	for _, s := range items {
		m[strings.ToLower(s)] = true
	}
	return m
}

func reverseFiles(s []nchess.File) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

func reverseRanks(s []nchess.Rank) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

// CapturedLine renders the pieces one side has taken, e.g. "♟ ♟ ♞".
func CapturedLine(pieces []nchess.Piece) string {
	parts := make([]string, len(pieces))
	for i, p := range pieces {
		parts[i] = glyph(p)
	}
	return strings.Join(parts, " ")
}
