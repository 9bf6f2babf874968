package arena

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	nchess "github.com/corentings/chess/v2"
	"github.com/park285/chess-arena/internal/chess/openingbook"
	"github.com/park285/chess-arena/internal/obslog"
	"github.com/park285/chess-arena/internal/savedgames"
	"go.uber.org/zap"
)

// showBoard prints the board and the status lines under it.
func (a *App) showBoard(selected string, targets []string) {
	view := BoardView{Theme: a.theme, Perspective: a.session.Color(), Targets: targets}
	if last := a.session.LastMove(); last != nil {
		view.Marked = []string{last.Move.From, last.Move.To}
	}
	if selected != "" {
		view.Marked = append(view.Marked, selected)
	}
	fmt.Fprintln(a.out)
	RenderBoard(a.out, a.session.Game().Position().Board(), view)

	if a.session.InCheck() && !a.session.Over() {
		a.say("board.check", nil)
	}
	a.say("board.status", map[string]any{
		"Turn":   colorName(a.session.Turn()),
		"You":    colorName(a.session.Color()),
		"MyTurn": a.session.MyTurn(),
	})
	if last := a.session.LastMove(); last != nil {
		a.say("board.last_move", map[string]any{"SAN": last.SAN, "Number": len(a.session.History())})
	}
	if c := a.session.Captured(); !c.Empty() {
		leader, lead := "", c.Advantage()
		switch {
		case lead > 0:
			leader = "White"
		case lead < 0:
			leader, lead = "Black", -lead
		}
		a.say("board.captured", map[string]any{
			"White":  CapturedLine(c.ByWhite),
			"Black":  CapturedLine(c.ByBlack),
			"Leader": leader,
			"Lead":   lead,
		})
	}
}

// noteOpening announces a newly recognised opening.
func (a *App) noteOpening() {
	op := a.detector.Detect(a.session.Game())
	if op == nil || !op.IsNew {
		return
	}
	a.say("game.opening", op)
}

func (a *App) showLegalMoves() {
	groups := a.session.LegalMovesByPiece()
	a.say("help.title", nil)
	for _, g := range groups {
		a.say("help.piece", map[string]any{
			"Glyph": glyph(g.Piece),
			"Name":  pieceNames[g.Piece.Type()],
			"From":  g.From,
			"To":    strings.Join(g.To, ", "),
		})
	}
	a.say("help.commands", nil)
}

// selectSquare lists the destinations of the piece on sq.
func (a *App) selectSquare(sq string) {
	for _, g := range a.session.LegalMovesByPiece() {
		if g.From == sq {
			a.showBoard(sq, g.To)
			a.say("select.piece", map[string]any{"Name": pieceNames[g.Piece.Type()], "From": sq, "To": strings.Join(g.To, ", "), "Count": len(g.To)})
			return
		}
	}
	a.say("select.none", map[string]any{"From": sq})
}

// promoteIfNeeded asks for the piece when from-to is a promotion.
func (a *App) promoteIfNeeded(ctx context.Context, cmd *Command) error {
	if !a.session.NeedsPromotion(cmd.Move) {
		return nil
	}
	for {
		line, err := a.ask(ctx, "move.promotion", nil)
		if err != nil {
			return err
		}
		if p, ok := ParsePromotion(line); ok {
			cmd.Move.Promotion = p
			return nil
		}
	}
}

// reportMoveError explains why a local move was refused.
func (a *App) reportMoveError(err error) {
	switch {
	case errors.Is(err, ErrNotYourTurn):
		a.say("move.not_your_turn", nil)
	case errors.Is(err, ErrPromotionRequired):
		a.say("move.promotion_required", nil)
	default:
		a.say("move.illegal", nil)
	}
}

// Summary describes a finished match.
type Summary struct {
	Result   string
	Reason   string
	Outcome  string
	Moves    int
	Duration time.Duration
	Opening  *openingbook.Opening
}

func (a *App) summary() Summary {
	outcome, method := a.session.Outcome()
	s := Summary{
		Result:   savedgames.ResultFor(outcome),
		Reason:   methodText(method),
		Moves:    len(a.session.History()),
		Duration: a.session.Duration().Round(time.Second),
		Opening:  a.detector.Current(),
	}
	me := a.session.Color()
	switch {
	case outcome == nchess.Draw:
		s.Outcome = "draw"
	case (outcome == nchess.WhiteWon && me == nchess.White) || (outcome == nchess.BlackWon && me == nchess.Black):
		s.Outcome = "win"
	default:
		s.Outcome = "loss"
	}
	return s
}

func methodText(m nchess.Method) string {
	switch m {
	case nchess.Checkmate:
		return "checkmate"
	case nchess.Stalemate:
		return "stalemate"
	case nchess.ThreefoldRepetition:
		return "threefold repetition"
	case nchess.FivefoldRepetition:
		return "fivefold repetition"
	case nchess.FiftyMoveRule:
		return "fifty-move rule"
	case nchess.SeventyFiveMoveRule:
		return "seventy-five-move rule"
	case nchess.InsufficientMaterial:
		return "insufficient material"
	default:
		return strings.ToLower(m.String())
	}
}

// finish runs the game-over screen. mode and opponent feed the PGN headers.
func (a *App) finish(ctx context.Context, mode savedgames.Mode, white, black string) error {
	if err := a.transition(StateGameOver); err != nil {
		return err
	}
	sum := a.summary()
	a.bell()
	a.say("over.summary", sum)
	obslog.L().Info("arena_game_over",
		zap.String("result", sum.Result),
		zap.String("reason", sum.Reason),
		zap.Int("moves", sum.Moves),
		zap.Duration("duration", sum.Duration),
	)

	rec := savedgames.Record{
		White:       white,
		Black:       black,
		Mode:        mode,
		Result:      sum.Result,
		Termination: sum.Reason,
		MovesSAN:    a.session.History(),
	}
	if sum.Opening != nil {
		rec.ECO = sum.Opening.Code
		rec.Opening = sum.Opening.Title
	}
	a.session.EndMatch()

	if a.d.Games != nil {
		save, err := a.confirm(ctx, "over.save_prompt", false)
		if err != nil {
			return err
		}
		if save {
			entry, err := a.d.Games.Save(rec)
			if err != nil {
				a.say("over.save_failed", map[string]any{"Error": err.Error()})
			} else {
				a.say("over.saved", entry)
			}
		}
	}

	again, err := a.confirm(ctx, "over.again_prompt", true)
	if err != nil {
		return err
	}
	if again {
		a.session.Reset()
		return a.transition(StateMenu)
	}
	return a.transition(StateExit)
}
