package arena

import (
	"context"
	"errors"
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"
	"github.com/park285/chess-arena/internal/obslog"
	"github.com/park285/chess-arena/internal/relayclient"
	"github.com/park285/chess-arena/internal/savedgames"
	"github.com/park285/chess-arena/pkg/relayproto"
	"go.uber.org/zap"
)

// errMatchEnded stops the online loop after the user has been told why.
var errMatchEnded = errors.New("match ended")

// playOnline creates a room when code is empty, otherwise joins it.
func (a *App) playOnline(ctx context.Context, code string) error {
	if err := a.transition(StateOnlineConnecting); err != nil {
		return err
	}
	a.say("online.connecting", map[string]any{"Server": a.settings.ServerURL})

	dialCtx, cancel := context.WithTimeout(ctx, a.d.ConnectTimeout)
	relay, err := a.d.Dial(dialCtx, a.settings.ServerURL)
	cancel()
	if err != nil {
		a.reportConnectError(err)
		a.toMenu()
		return nil
	}
	defer func() {
		if err := relay.Close(); err != nil {
			obslog.L().Debug("arena_relay_close", zap.Error(err))
		}
	}()

	color, room, err := a.seat(ctx, relay, code)
	if err != nil {
		return a.leaveOnline(err)
	}
	if err := a.awaitStart(ctx, relay, room); err != nil {
		return a.leaveOnline(err)
	}

	a.session.Start(color, room)
	a.detector.Reset()
	if err := a.transition(StateOnlineActive); err != nil {
		return err
	}
	a.bell()
	a.say("online.started", map[string]any{"Color": colorName(color), "Room": room})

	if err := a.onlineLoop(ctx, relay); err != nil {
		return a.leaveOnline(err)
	}
	white, black := "Player", "Opponent"
	if color == nchess.Black {
		white, black = "Opponent", "Player"
	}
	return a.finish(ctx, savedgames.ModeOnline, white, black)
}

// leaveOnline ends the match and returns to the menu. Input ending and
// cancellation propagate; everything else was already shown to the user.
func (a *App) leaveOnline(err error) error {
	a.session.EndMatch()
	if errors.Is(err, ErrInputClosed) || errors.Is(err, context.Canceled) {
		return err
	}
	a.toMenu()
	return nil
}

func (a *App) reportConnectError(err error) {
	obslog.L().Warn("arena_connect_failed", zap.String("server", a.settings.ServerURL), zap.Error(err))
	if errors.Is(err, relayclient.ErrConnectionTimeout) || errors.Is(err, context.DeadlineExceeded) {
		a.say("online.timeout", map[string]any{"Server": a.settings.ServerURL})
		return
	}
	a.say("online.connect_failed", map[string]any{"Error": err.Error()})
}

// seat sends createGame or joinGame and waits for the relay's answer.
func (a *App) seat(ctx context.Context, relay Relay, code string) (nchess.Color, string, error) {
	waitCtx, cancel := context.WithTimeout(ctx, a.d.ConnectTimeout)
	defer cancel()

	var (
		want  string
		color nchess.Color
	)
	if code == "" {
		want, color = relayproto.TypeGameCreated, nchess.White
		if err := relay.CreateGame(waitCtx); err != nil {
			a.say("online.connect_failed", map[string]any{"Error": err.Error()})
			return nchess.NoColor, "", err
		}
	} else {
		want, color = relayproto.TypeGameJoined, nchess.Black
		if err := relay.JoinGame(waitCtx, code); err != nil {
			a.say("online.connect_failed", map[string]any{"Error": err.Error()})
			return nchess.NoColor, "", err
		}
	}

	for {
		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return nchess.NoColor, "", ctx.Err()
			}
			a.say("online.timeout", map[string]any{"Server": a.settings.ServerURL})
			return nchess.NoColor, "", relayclient.ErrConnectionTimeout
		case env, ok := <-relay.Events():
			if !ok {
				a.say("online.lost", nil)
				return nchess.NoColor, "", errMatchEnded
			}
			switch env.Type {
			case want:
				var ref relayproto.RoomRef
				if err := env.Decode(&ref); err != nil {
					obslog.L().Warn("arena_bad_event", zap.String("type", env.Type), zap.Error(err))
					continue
				}
				if err := a.transition(StateOnlineWaiting); err != nil {
					return nchess.NoColor, "", err
				}
				if color == nchess.White {
					a.say("online.created", ref)
				} else {
					a.say("online.joined", ref)
				}
				return color, ref.RoomCode, nil
			case relayproto.TypeError:
				a.showRelayError(env)
				return nchess.NoColor, "", errMatchEnded
			default:
				obslog.L().Debug("arena_event_ignored", zap.String("type", env.Type), zap.Stringer("state", a.machine.Current()))
			}
		}
	}
}

// awaitStart waits for gameStart. Typing quit (or cancel) leaves the room.
func (a *App) awaitStart(ctx context.Context, relay Relay, room string) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-a.lines:
			if !ok {
				return ErrInputClosed
			}
			if isLeave(line) {
				a.say("online.left_room", map[string]any{"RoomCode": room})
				return errMatchEnded
			}
			a.say("online.still_waiting", map[string]any{"RoomCode": room})
		case env, ok := <-relay.Events():
			if !ok {
				a.say("online.lost", nil)
				return errMatchEnded
			}
			switch env.Type {
			case relayproto.TypeGameStart:
				return nil
			case relayproto.TypeError:
				a.showRelayError(env)
				return errMatchEnded
			default:
				obslog.L().Debug("arena_event_ignored", zap.String("type", env.Type), zap.Stringer("state", a.machine.Current()))
			}
		}
	}
}

func isLeave(line string) bool {
	if strings.EqualFold(strings.TrimSpace(line), "cancel") {
		return true
	}
	cmd, err := ParseCommand(line)
	return err == nil && cmd.Kind == CmdQuit
}

// onlineLoop plays until the local board reports game over. It returns nil
// only in that case.
func (a *App) onlineLoop(ctx context.Context, relay Relay) error {
	a.showBoard("", nil)
	a.promptTurn()
	for {
		if a.session.Over() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case env, ok := <-relay.Events():
			if !ok {
				a.say("online.lost", nil)
				return errMatchEnded
			}
			if err := a.handleOnlineEvent(env); err != nil {
				return err
			}
		case line, ok := <-a.lines:
			if !ok {
				return ErrInputClosed
			}
			if err := a.handleOnlineInput(ctx, relay, line); err != nil {
				return err
			}
		}
	}
}

func (a *App) promptTurn() {
	if a.session.Over() {
		return
	}
	if a.session.MyTurn() {
		fmt.Fprint(a.out, a.text("move.prompt", nil)+" ")
		return
	}
	a.say("online.waiting_move", nil)
}

func (a *App) handleOnlineEvent(env relayproto.Envelope) error {
	switch env.Type {
	case relayproto.TypeOpponentMove:
		var mv relayproto.Move
		if err := env.Decode(&mv); err != nil {
			obslog.L().Warn("arena_bad_event", zap.String("type", env.Type), zap.Error(err))
			a.say("online.desync", map[string]any{"Error": err.Error()})
			return fmt.Errorf("%w: %v", ErrDesync, err)
		}
		rec, err := a.session.ApplyRemote(mv)
		if err != nil {
			obslog.L().Warn("arena_desync", zap.String("move", mv.UCI()), zap.String("fen", a.session.FEN()), zap.Error(err))
			a.say("online.desync", map[string]any{"Error": err.Error()})
			return err
		}
		a.bell()
		a.say("online.opponent_moved", rec)
		a.noteOpening()
		a.showBoard("", nil)
		a.promptTurn()
		return nil
	case relayproto.TypeOpponentDisconnected:
		a.bell()
		a.say("online.opponent_left", nil)
		return errMatchEnded
	case relayproto.TypeError:
		a.showRelayError(env)
		return errMatchEnded
	default:
		obslog.L().Debug("arena_event_ignored", zap.String("type", env.Type), zap.Stringer("state", a.machine.Current()))
		return nil
	}
}

func (a *App) handleOnlineInput(ctx context.Context, relay Relay, line string) error {
	cmd, err := ParseCommand(line)
	if err != nil {
		a.say("move.bad_input", nil)
		a.promptTurn()
		return nil
	}
	switch cmd.Kind {
	case CmdEmpty:
	case CmdHelp:
		a.showLegalMoves()
	case CmdHint:
		a.say("move.no_hint_online", nil)
	case CmdSelect:
		a.selectSquare(cmd.Square)
	case CmdQuit:
		ok, err := a.confirm(ctx, "move.quit_confirm", false)
		if err != nil {
			return err
		}
		if ok {
			a.say("online.abandoned", nil)
			return errMatchEnded
		}
	case CmdMove:
		if !a.session.MyTurn() {
			a.say("move.not_your_turn", nil)
			break
		}
		if err := a.promoteIfNeeded(ctx, &cmd); err != nil {
			return err
		}
		rec, err := a.session.SubmitLocal(cmd.Move)
		if err != nil {
			a.reportMoveError(err)
			break
		}
		if err := relay.SendMove(ctx, a.session.RoomCode(), rec.Move); err != nil {
			obslog.L().Warn("arena_send_move", zap.Error(err))
			a.say("online.lost", nil)
			return errMatchEnded
		}
		a.say("move.played", rec)
		a.noteOpening()
		a.showBoard("", nil)
	}
	a.promptTurn()
	return nil
}

func (a *App) showRelayError(env relayproto.Envelope) {
	p := env.AsError()
	if p.Code == "" {
		p.Code = "Unknown"
	}
	obslog.L().Info("arena_relay_error", zap.String("code", p.Code), zap.String("message", p.Message))
	a.say("online.relay_error", p)
}
