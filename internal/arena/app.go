// Package arena is the interactive chess-arena client: the menu, online
// matches through the relay, offline games against a local engine and the
// saved-games library.
package arena

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	nchess "github.com/corentings/chess/v2"
	"github.com/park285/chess-arena/internal/chess"
	"github.com/park285/chess-arena/internal/chess/openingbook"
	"github.com/park285/chess-arena/internal/chess/uci"
	"github.com/park285/chess-arena/internal/msgcat"
	"github.com/park285/chess-arena/internal/obslog"
	"github.com/park285/chess-arena/internal/savedgames"
	"github.com/park285/chess-arena/internal/userconfig"
	"github.com/park285/chess-arena/pkg/relayproto"
	"go.uber.org/zap"
)

// Relay is a connected relay session.
type Relay interface {
	Events() <-chan relayproto.Envelope
	CreateGame(ctx context.Context) error
	JoinGame(ctx context.Context, code string) error
	SendMove(ctx context.Context, code string, mv relayproto.Move) error
	Close() error
}

// Dialer connects to the relay at serverURL. A dial that runs out of time
// reports relayclient.ErrConnectionTimeout.
type Dialer func(ctx context.Context, serverURL string) (Relay, error)

// Engine is the offline opponent.
type Engine interface {
	Preset() chess.DifficultyPreset
	SetDifficulty(ctx context.Context, name string) error
	NewGame(ctx context.Context) error
	BestMove(ctx context.Context, fen string) (relayproto.Move, error)
	Hint(ctx context.Context, fen string) (relayproto.Move, error)
	Evaluate(ctx context.Context, fen string) (*uci.Evaluation, error)
	Close() error
}

type EngineStarter func(ctx context.Context, preset string) (Engine, error)

const DefaultConnectTimeout = 10 * time.Second

var ErrInputClosed = errors.New("input closed")

type Deps struct {
	In          io.Reader
	Out         io.Writer
	Messages    *msgcat.Catalog
	Dial        Dialer
	StartEngine EngineStarter
	Games       *savedgames.Store
	Prefs       *userconfig.Store
	// Settings are the effective preferences after command-line overrides.
	Settings userconfig.Config
	// ConnectTimeout bounds waiting for the relay's reply after dialing.
	ConnectTimeout time.Duration
}

type App struct {
	d        Deps
	out      io.Writer
	lines    <-chan string
	machine  *Machine
	session  *GameSession
	detector *openingbook.Detector
	engine   Engine
	settings userconfig.Config
	theme    Theme
}

func New(d Deps) *App {
	if d.ConnectTimeout <= 0 {
		d.ConnectTimeout = DefaultConnectTimeout
	}
	theme, ok := LookupTheme(d.Settings.Theme)
	if !ok {
		theme, _ = LookupTheme(userconfig.DefaultTheme)
	}
	a := &App{
		d:        d,
		out:      d.Out,
		lines:    readLines(d.In),
		machine:  NewMachine(),
		session:  NewGameSession(),
		detector: openingbook.NewDetector(),
		settings: d.Settings,
		theme:    theme,
	}
	a.machine.onEnter = func(from, to State) {
		obslog.L().Debug("arena_state", zap.Stringer("from", from), zap.Stringer("to", to))
	}
	return a
}

func (a *App) State() State { return a.machine.Current() }

// Run drives the menu until the user exits, input ends or ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	defer a.closeEngine()
	a.say("app.banner", nil)
	for a.machine.Current() != StateExit {
		if err := a.menu(ctx); err != nil {
			if errors.Is(err, ErrInputClosed) || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
	}
	a.say("app.goodbye", nil)
	return nil
}

func (a *App) menu(ctx context.Context) error {
	a.say("menu.title", nil)
	line, err := a.ask(ctx, "menu.prompt", nil)
	if err != nil {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "1", "create":
		return a.playOnline(ctx, "")
	case "2", "join":
		code, err := a.askRoomCode(ctx)
		if err != nil || code == "" {
			return err
		}
		return a.playOnline(ctx, code)
	case "3", "computer", "offline":
		return a.playOffline(ctx)
	case "4", "games", "saved":
		return a.library(ctx)
	case "5", "settings":
		return a.settingsMenu(ctx)
	case "6", "exit", "quit", "q":
		return a.transition(StateExit)
	default:
		a.say("menu.invalid", nil)
		return nil
	}
}

func (a *App) askRoomCode(ctx context.Context) (string, error) {
	for {
		line, err := a.ask(ctx, "join.prompt", nil)
		if err != nil {
			return "", err
		}
		code := relayproto.NormalizeCode(line)
		if code == "" {
			return "", nil
		}
		if len(code) == relayproto.CodeLength {
			return code, nil
		}
		a.say("join.bad_length", map[string]any{"Length": relayproto.CodeLength})
	}
}

func (a *App) transition(to State) error {
	if err := a.machine.Transition(to); err != nil {
		obslog.L().Error("arena_transition", zap.Error(err))
		return err
	}
	return nil
}

// toMenu returns to the menu from wherever the flow stopped.
func (a *App) toMenu() {
	if a.machine.Current() == StateMenu {
		return
	}
	_ = a.transition(StateMenu)
}

// readLines feeds input lines to a channel closed at EOF.
func readLines(r io.Reader) <-chan string {
	ch := make(chan string)
	if r == nil {
		close(ch)
		return ch
	}
	go func() {
		defer close(ch)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			ch <- sc.Text()
		}
	}()
	return ch
}

func (a *App) readLine(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line, ok := <-a.lines:
		if !ok {
			return "", ErrInputClosed
		}
		return line, nil
	}
}

// ask prints a prompt and waits for one line.
func (a *App) ask(ctx context.Context, key string, data any) (string, error) {
	fmt.Fprint(a.out, a.text(key, data)+" ")
	return a.readLine(ctx)
}

func (a *App) confirm(ctx context.Context, key string, def bool) (bool, error) {
	line, err := a.ask(ctx, key, nil)
	if err != nil {
		return false, err
	}
	return ParseYesNo(line, def), nil
}

func (a *App) askChoice(ctx context.Context, key string, data any, n int) (int, error) {
	line, err := a.ask(ctx, key, data)
	if err != nil {
		return 0, err
	}
	i, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil || i < 1 || i > n {
		return 0, nil
	}
	return i, nil
}

func (a *App) say(key string, data any) {
	fmt.Fprintln(a.out, a.text(key, data))
}

func (a *App) text(key string, data any) string {
	if a.d.Messages == nil {
		return key
	}
	s, err := a.d.Messages.Render(key, data)
	if err != nil {
		obslog.L().Warn("arena_message_render", zap.String("key", key), zap.Error(err))
		return key
	}
	return s
}

func (a *App) bell() {
	if a.settings.Sound {
		fmt.Fprint(a.out, "\a")
	}
}

func (a *App) closeEngine() {
	if a.engine == nil {
		return
	}
	if err := a.engine.Close(); err != nil {
		obslog.L().Warn("arena_engine_close", zap.Error(err))
	}
	a.engine = nil
}

func colorName(c nchess.Color) string {
	if c == nchess.Black {
		return "black"
	}
	return "white"
}
