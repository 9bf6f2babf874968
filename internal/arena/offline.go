package arena

import (
	"context"
	"errors"
	"strconv"
	"strings"

	nchess "github.com/corentings/chess/v2"
	"github.com/park285/chess-arena/internal/chess"
	"github.com/park285/chess-arena/internal/chess/uci"
	"github.com/park285/chess-arena/internal/obslog"
	"github.com/park285/chess-arena/internal/savedgames"
	"go.uber.org/zap"
)

func (a *App) playOffline(ctx context.Context) error {
	if err := a.transition(StateOfflineSetup); err != nil {
		return err
	}
	preset, err := a.askDifficulty(ctx)
	if err != nil {
		return err
	}
	color, err := a.askColor(ctx)
	if err != nil {
		return err
	}
	if err := a.ensureEngine(ctx, preset.Name); err != nil {
		a.reportEngineError(err)
		a.toMenu()
		return nil
	}
	if err := a.engine.NewGame(ctx); err != nil {
		a.reportEngineError(err)
		a.closeEngine()
		a.toMenu()
		return nil
	}

	a.session.Start(color, "")
	a.detector.Reset()
	if err := a.transition(StateOfflineActive); err != nil {
		return err
	}
	a.say("offline.started", map[string]any{"Color": colorName(color), "Preset": preset})

	if err := a.offlineLoop(ctx); err != nil {
		a.session.EndMatch()
		if errors.Is(err, errMatchEnded) {
			a.toMenu()
			return nil
		}
		return err
	}
	engineName := "Stockfish (" + preset.Name + ")"
	white, black := "Player", engineName
	if color == nchess.Black {
		white, black = engineName, "Player"
	}
	return a.finish(ctx, savedgames.ModeComputer, white, black)
}

func (a *App) askDifficulty(ctx context.Context) (chess.DifficultyPreset, error) {
	presets := chess.Presets()
	def := a.settings.Difficulty
	if _, err := chess.GetPreset(def); err != nil {
		def = chess.DefaultPreset
	}
	a.say("offline.difficulty_title", nil)
	for i, p := range presets {
		a.say("offline.difficulty_item", map[string]any{"N": i + 1, "Preset": p, "Default": p.Name == def})
	}
	for {
		line, err := a.ask(ctx, "offline.difficulty_prompt", nil)
		if err != nil {
			return chess.DifficultyPreset{}, err
		}
		choice := strings.TrimSpace(line)
		if choice == "" {
			return chess.GetPreset(def)
		}
		if n, err := strconv.Atoi(choice); err == nil && n >= 1 && n <= len(presets) {
			return presets[n-1], nil
		}
		if p, err := chess.GetPreset(choice); err == nil {
			return p, nil
		}
		a.say("menu.invalid", nil)
	}
}

func (a *App) askColor(ctx context.Context) (nchess.Color, error) {
	for {
		line, err := a.ask(ctx, "offline.color_prompt", nil)
		if err != nil {
			return nchess.NoColor, err
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "", "1", "w", "white":
			return nchess.White, nil
		case "2", "b", "black":
			return nchess.Black, nil
		}
		a.say("menu.invalid", nil)
	}
}

// ensureEngine starts the engine on first use and re-applies the preset
// afterwards; the process is kept between games.
func (a *App) ensureEngine(ctx context.Context, preset string) error {
	if a.engine == nil {
		if a.d.StartEngine == nil {
			return uci.ErrEngineNotFound
		}
		a.say("offline.starting_engine", nil)
		eng, err := a.d.StartEngine(ctx, preset)
		if err != nil {
			return err
		}
		a.engine = eng
		return nil
	}
	if a.engine.Preset().Name == preset {
		return nil
	}
	return a.engine.SetDifficulty(ctx, preset)
}

func (a *App) reportEngineError(err error) {
	obslog.L().Warn("arena_engine_error", zap.Error(err))
	if errors.Is(err, uci.ErrEngineNotFound) {
		a.say("offline.engine_missing", nil)
		return
	}
	a.say("offline.engine_failed", map[string]any{"Error": err.Error()})
}

func (a *App) offlineLoop(ctx context.Context) error {
	a.showBoard("", nil)
	for !a.session.Over() {
		if !a.session.MyTurn() {
			if err := a.engineTurn(ctx); err != nil {
				return err
			}
			continue
		}
		line, err := a.ask(ctx, "move.prompt", nil)
		if err != nil {
			return err
		}
		if err := a.handleOfflineInput(ctx, line); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) engineTurn(ctx context.Context) error {
	a.say("offline.thinking", nil)
	mv, err := a.engine.BestMove(ctx, a.session.FEN())
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		a.reportEngineError(err)
		return errMatchEnded
	}
	rec, err := a.session.ApplyRemote(mv)
	if err != nil {
		obslog.L().Error("arena_engine_illegal_move", zap.String("move", mv.UCI()), zap.String("fen", a.session.FEN()), zap.Error(err))
		a.say("offline.engine_failed", map[string]any{"Error": err.Error()})
		return errMatchEnded
	}
	a.bell()
	a.say("offline.engine_moved", rec)
	a.noteOpening()
	a.showBoard("", nil)
	return nil
}

func (a *App) handleOfflineInput(ctx context.Context, line string) error {
	cmd, err := ParseCommand(line)
	if err != nil {
		a.say("move.bad_input", nil)
		return nil
	}
	switch cmd.Kind {
	case CmdEmpty:
	case CmdHelp:
		a.showLegalMoves()
	case CmdSelect:
		a.selectSquare(cmd.Square)
	case CmdHint:
		a.say("offline.hint_thinking", nil)
		mv, err := a.engine.Hint(ctx, a.session.FEN())
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			a.reportEngineError(err)
			return nil
		}
		a.say("offline.hint", mv)
	case CmdQuit:
		ok, err := a.confirm(ctx, "move.quit_confirm", false)
		if err != nil {
			return err
		}
		if ok {
			a.say("offline.abandoned", nil)
			return errMatchEnded
		}
	case CmdMove:
		if err := a.promoteIfNeeded(ctx, &cmd); err != nil {
			return err
		}
		rec, err := a.session.SubmitLocal(cmd.Move)
		if err != nil {
			a.reportMoveError(err)
			return nil
		}
		a.say("move.played", rec)
		a.gradeMove(ctx, rec)
		a.noteOpening()
		a.showBoard("", nil)
	}
	return nil
}

// gradeMove evaluates the positions around the player's move. An evaluation
// that does not finish in time skips the grade.
func (a *App) gradeMove(ctx context.Context, rec MoveRecord) {
	if a.session.Over() {
		return
	}
	before, err := a.engine.Evaluate(ctx, rec.FENBefore)
	if err != nil {
		obslog.L().Debug("arena_grade_skipped", zap.Error(err))
		return
	}
	after, err := a.engine.Evaluate(ctx, a.session.FEN())
	if err != nil {
		obslog.L().Debug("arena_grade_skipped", zap.Error(err))
		return
	}
	q, swing, ok := chess.Grade(before, after, rec.Mover == nchess.White)
	if !ok {
		return
	}
	a.say("offline.quality", map[string]any{"Quality": string(q), "Swing": swing})
}
