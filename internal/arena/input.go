package arena

import (
	"errors"
	"strings"

	"github.com/park285/chess-arena/pkg/relayproto"
)

type CommandKind int

const (
	CmdEmpty CommandKind = iota
	CmdMove
	CmdSelect
	CmdHelp
	CmdHint
	CmdQuit
)

// Command is one parsed line of in-game input.
type Command struct {
	Kind   CommandKind
	Move   relayproto.Move
	Square string
}

var ErrBadInput = errors.New("unrecognized input")

// ParseCommand accepts e2-e4, e2e4, e2 e4, an optional promotion suffix
// (e7e8q, e7-e8=q), a lone square, or help/hint/quit.
func ParseCommand(line string) (Command, error) {
	s := strings.ToLower(strings.TrimSpace(line))
	switch s {
	case "":
		return Command{Kind: CmdEmpty}, nil
	case "help", "h", "?", "moves":
		return Command{Kind: CmdHelp}, nil
	case "hint":
		return Command{Kind: CmdHint}, nil
	case "quit", "exit", "resign":
		return Command{Kind: CmdQuit}, nil
	}
	if relayproto.ValidSquare(s) {
		return Command{Kind: CmdSelect, Square: s}, nil
	}

	compact := strings.NewReplacer("-", "", " ", "", "=", "", "x", "").Replace(s)
	mv, err := relayproto.ParseMove(compact)
	if err != nil {
		return Command{}, ErrBadInput
	}
	return Command{Kind: CmdMove, Move: mv}, nil
}

// ParsePromotion maps a promotion answer to q, r, b or n. Empty means queen.
func ParsePromotion(line string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "", "q", "queen", "1":
		return "q", true
	case "r", "rook", "2":
		return "r", true
	case "b", "bishop", "3":
		return "b", true
	case "n", "knight", "4":
		return "n", true
	}
	return "", false
}

// ParseYesNo reads a confirmation answer; anything unrecognised is def.
func ParseYesNo(line string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	case "n", "no":
		return false
	}
	return def
}
