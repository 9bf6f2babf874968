// Package openingbook names the opening being played, using the ECO
// classification bundled with the chess library.
package openingbook

import (
	"fmt"
	"strings"
	"sync"

	chesslib "github.com/corentings/chess/v2"
	"github.com/corentings/chess/v2/opening"
)

// MaxDetectPly stops detection once the game leaves the opening phase.
const MaxDetectPly = 16

var (
	ecoOnce sync.Once
	ecoBook *opening.BookECO
)

func book() *opening.BookECO {
	ecoOnce.Do(func() { ecoBook = opening.NewBookECO() })
	return ecoBook
}

type Opening struct {
	Code  string
	Title string
	// Line is the game so far in SAN, e.g. "1.e4 c5 2.Nf3".
	Line string
	// IsNew is set the first time a given opening is reported.
	IsNew bool
}

// Detector remembers the last opening it reported so callers only announce
// changes.
type Detector struct {
	last *Opening
}

func NewDetector() *Detector { return &Detector{} }

func (d *Detector) Reset() { d.last = nil }

// Current returns the last opening detected, if any.
func (d *Detector) Current() *Opening {
	if d.last == nil {
		return nil
	}
	cp := *d.last
	cp.IsNew = false
	return &cp
}

// Detect classifies the game so far. Past MaxDetectPly it keeps returning
// the last opening found.
func (d *Detector) Detect(game *chesslib.Game) *Opening {
	moves := game.Moves()
	if len(moves) == 0 {
		return nil
	}
	if len(moves) > MaxDetectPly {
		return d.Current()
	}

	eco := book().Find(moves)
	if eco == nil {
		return d.Current()
	}
	found := &Opening{
		Code:  eco.Code(),
		Title: eco.Title(),
		Line:  sanLine(game),
	}
	found.IsNew = d.last == nil || d.last.Title != found.Title
	d.last = found
	return found
}

// sanLine renders the game's moves in numbered SAN.
func sanLine(game *chesslib.Game) string {
	moves := game.Moves()
	positions := game.Positions()
	notation := chesslib.AlgebraicNotation{}
	var sb strings.Builder
	for i, mv := range moves {
		if i >= len(positions) {
			break
		}
		if i%2 == 0 {
			if i > 0 {
				sb.WriteByte(' ')
			}
			fmt.Fprintf(&sb, "%d.", i/2+1)
		} else {
			sb.WriteByte(' ')
		}
		sb.WriteString(notation.Encode(positions[i], mv))
	}
	return sb.String()
}
