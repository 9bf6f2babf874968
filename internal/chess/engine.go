// Package chess wraps a UCI engine session with difficulty presets, move
// selection and move-quality grading for offline play.
package chess

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/park285/chess-arena/internal/chess/uci"
	"github.com/park285/chess-arena/internal/obslog"
	"github.com/park285/chess-arena/pkg/relayproto"
	"go.uber.org/zap"
)

// DefaultEvalDepth is the search depth used for grading moves.
const DefaultEvalDepth = 12

type Engine struct {
	session *uci.Session

	mu     sync.Mutex
	preset DifficultyPreset

	randMu sync.Mutex
	rand   *rand.Rand

	evalDepth int
	sleep     func(ctx context.Context, d time.Duration) error
}

// StartEngine launches the engine and applies the named preset.
func StartEngine(ctx context.Context, cfg uci.LaunchConfig, presetName string) (*Engine, error) {
	preset, err := GetPreset(presetName)
	if err != nil {
		return nil, err
	}
	session, err := uci.Launch(ctx, cfg)
	if err != nil {
		return nil, err
	}
	e := &Engine{
		session:   session,
		rand:      rand.New(rand.NewSource(time.Now().UnixNano())),
		evalDepth: DefaultEvalDepth,
		sleep:     sleepContext,
	}
	if err := e.apply(ctx, preset); err != nil {
		_ = session.Close()
		return nil, err
	}
	return e, nil
}

func (e *Engine) Preset() DifficultyPreset {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.preset
}

// SetDifficulty switches presets and re-sends every option right away.
func (e *Engine) SetDifficulty(ctx context.Context, name string) error {
	preset, err := GetPreset(name)
	if err != nil {
		return err
	}
	return e.apply(ctx, preset)
}

func (e *Engine) apply(ctx context.Context, p DifficultyPreset) error {
	if err := ValidatePreset(p); err != nil {
		return err
	}
	if err := e.session.SetOptions(ctx, EngineOptions(p)); err != nil {
		return fmt.Errorf("apply preset %s: %w", p.Name, err)
	}
	e.mu.Lock()
	e.preset = p
	e.mu.Unlock()
	obslog.L().Info("engine_preset", zap.String("preset", p.Name), zap.Int("skill", p.SkillLevel), zap.Int("elo", p.Elo))
	return nil
}

func (e *Engine) NewGame(ctx context.Context) error {
	return e.session.NewGame(ctx)
}

// BestMove asks the engine for its move in fen, pausing first for presets
// that simulate a slower opponent.
func (e *Engine) BestMove(ctx context.Context, fen string) (relayproto.Move, error) {
	p := e.Preset()
	if d := ThinkDelay(p, e.random()); d > 0 {
		if err := e.sleep(ctx, d); err != nil {
			return relayproto.Move{}, err
		}
	}
	return e.search(ctx, fen, p)
}

// Hint runs the same search for the player's side without the delay.
func (e *Engine) Hint(ctx context.Context, fen string) (relayproto.Move, error) {
	return e.search(ctx, fen, e.Preset())
}

func (e *Engine) search(ctx context.Context, fen string, p DifficultyPreset) (relayproto.Move, error) {
	start := time.Now()
	token, err := e.session.BestMove(fen, SearchLimits(p)).Wait(ctx)
	if err != nil {
		return relayproto.Move{}, err
	}
	mv, err := relayproto.ParseMove(token)
	if err != nil {
		return relayproto.Move{}, fmt.Errorf("engine move: %w", err)
	}
	obslog.L().Debug("engine_bestmove",
		zap.String("preset", p.Name),
		zap.String("move", mv.UCI()),
		zap.Duration("took", time.Since(start)),
	)
	return mv, nil
}

// Evaluate scores fen from White's point of view. A nil result with a nil
// error means the engine did not reach a usable depth in time.
func (e *Engine) Evaluate(ctx context.Context, fen string) (*uci.Evaluation, error) {
	return e.session.Evaluate(fen, e.evalDepth).Wait(ctx)
}

func (e *Engine) Close() error {
	return e.session.Close()
}

func (e *Engine) random() *rand.Rand {
	e.randMu.Lock()
	defer e.randMu.Unlock()
	return rand.New(rand.NewSource(e.rand.Int63()))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
