// Package ucitest provides a scripted UCI engine for tests. Test binaries
// re-execute themselves as the engine: call MaybeRun first thing in TestMain
// and point a LaunchConfig at Config.
package ucitest

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	nchess "github.com/corentings/chess/v2"
	"github.com/park285/chess-arena/internal/chess/uci"
)

const (
	envFlag = "CHESS_ARENA_FAKE_UCI"
	envMode = "CHESS_ARENA_FAKE_UCI_MODE"
	envLog  = "CHESS_ARENA_FAKE_UCI_LOG"

	// FakeScore is the centipawn score reported for the side to move.
	FakeScore = 35
)

// Modes change how the fake answers.
const (
	ModeNormal   = "normal"
	ModeSilent   = "silent"   // go produces nothing until stop
	ModeNoUCIOK  = "no-uciok" // never completes the handshake
	ModeStubborn = "stubborn" // ignores quit and keeps stdout open
	ModeMate     = "mate"     // reports mate in 2 for the side to move
)

// MaybeRun turns the current process into the fake engine when the test
// harness asked for it. It never returns in that case.
func MaybeRun() {
	if os.Getenv(envFlag) != "1" {
		return
	}
	var log io.Writer = io.Discard
	if p := os.Getenv(envLog); p != "" {
		f, err := os.OpenFile(p, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err == nil {
			defer f.Close()
			log = f
		}
	}
	run(os.Stdin, os.Stdout, os.Getenv(envMode), log)
	os.Exit(0)
}

// Config returns a launch config that starts this test binary as the fake
// engine in the given mode. Received commands are appended to logPath when it
// is not empty.
func Config(mode, logPath string) uci.LaunchConfig {
	env := append(os.Environ(), envFlag+"=1", envMode+"="+mode)
	if logPath != "" {
		env = append(env, envLog+"="+logPath)
	}
	return uci.LaunchConfig{
		Candidates:   []string{os.Args[0]},
		Env:          env,
		ReadyTimeout: 2 * time.Second,
		QuitTimeout:  500 * time.Millisecond,
	}
}

func run(in io.Reader, out io.Writer, mode string, log io.Writer) {
	w := bufio.NewWriter(out)
	say := func(format string, args ...any) {
		fmt.Fprintf(w, format+"\n", args...)
		_ = w.Flush()
	}

	fen := ""
	searching := false
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		fmt.Fprintln(log, line)
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "uci":
			say("id name FakeFish")
			say("option name Skill Level type spin default 20 min 0 max 20")
			if mode != ModeNoUCIOK {
				say("uciok")
			}
		case "isready":
			say("readyok")
		case "position":
			fen = positionFEN(fields[1:])
		case "go":
			depth := 1
			for i := 1; i+1 < len(fields); i++ {
				if fields[i] == "depth" {
					fmt.Sscanf(fields[i+1], "%d", &depth)
				}
			}
			if mode == ModeSilent {
				searching = true
				continue
			}
			best := firstLegalMove(fen)
			for d := 1; d <= depth; d++ {
				if mode == ModeMate {
					say("info depth %d score mate 2 pv %s", d, best)
				} else {
					say("info depth %d seldepth %d score cp %d nodes %d pv %s", d, d+2, FakeScore, d*100, best)
				}
			}
			say("bestmove %s", best)
		case "stop":
			if searching {
				searching = false
				say("bestmove %s", firstLegalMove(fen))
			}
		case "quit":
			if mode == ModeStubborn {
				continue
			}
			return
		}
	}
	if mode == ModeStubborn {
		time.Sleep(time.Hour)
	}
}

func positionFEN(args []string) string {
	if len(args) == 0 || args[0] == "startpos" {
		return ""
	}
	if args[0] == "fen" {
		end := len(args)
		for i, a := range args {
			if a == "moves" {
				end = i
			}
		}
		return strings.Join(args[1:end], " ")
	}
	return ""
}

// firstLegalMove picks the alphabetically first legal move so runs are
// reproducible.
func firstLegalMove(fen string) string {
	game := nchess.NewGame()
	if fen != "" {
		opt, err := nchess.FEN(fen)
		if err != nil {
			return "(none)"
		}
		game = nchess.NewGame(opt)
	}
	moves := game.ValidMoves()
	if len(moves) == 0 {
		return "(none)"
	}
	names := make([]string, 0, len(moves))
	for _, m := range moves {
		names = append(names, m.String())
	}
	sort.Strings(names)
	return names[0]
}
