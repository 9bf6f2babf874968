package uci

import (
	"fmt"
	"strconv"
	"strings"
)

type ScoreKind string

const (
	ScoreCP   ScoreKind = "cp"
	ScoreMate ScoreKind = "mate"
)

// Evaluation is a search score. Value is from White's point of view once it
// leaves this package; engines report it for the side to move.
type Evaluation struct {
	Kind  ScoreKind
	Value int
	Depth int
}

type info struct {
	depth    int
	score    Evaluation
	hasScore bool
	pv       []string
}

func parseInfo(line string) (info, bool) {
	parts := strings.Fields(line)
	if len(parts) == 0 || parts[0] != "info" {
		return info{}, false
	}
	var out info
	for i := 1; i < len(parts); i++ {
		switch parts[i] {
		case "depth":
			if i+1 < len(parts) {
				if v, err := strconv.Atoi(parts[i+1]); err == nil {
					out.depth = v
				}
				i++
			}
		case "score":
			if i+2 < len(parts) {
				kind := ScoreKind(parts[i+1])
				v, err := strconv.Atoi(parts[i+2])
				if err == nil && (kind == ScoreCP || kind == ScoreMate) {
					out.score = Evaluation{Kind: kind, Value: v}
					out.hasScore = true
				}
				i += 2
				// lowerbound/upperbound markers trail the value
				if i+1 < len(parts) && (parts[i+1] == "lowerbound" || parts[i+1] == "upperbound") {
					i++
				}
			}
		case "string":
			return out, true
		case "pv":
			out.pv = append([]string(nil), parts[i+1:]...)
			i = len(parts)
		}
	}
	out.score.Depth = out.depth
	return out, true
}

// parseBestMove returns the move token of a bestmove line. "(none)" and
// "0000" mean the side to move has no legal move.
func parseBestMove(line string) (string, error) {
	parts := strings.Fields(line)
	if len(parts) < 2 || parts[0] != "bestmove" {
		return "", fmt.Errorf("malformed bestmove line %q", line)
	}
	switch parts[1] {
	case "(none)", "0000":
		return "", ErrNoMove
	}
	return parts[1], nil
}

func buildPositionCommand(fen string) string {
	if strings.TrimSpace(fen) == "" || fen == "startpos" {
		return "position startpos"
	}
	return "position fen " + strings.TrimSpace(fen)
}

// Limits bound one search. Zero fields are omitted from the go command.
type Limits struct {
	Depth          int
	MoveTimeMillis int
}

func buildGoCommand(l Limits) (string, error) {
	args := []string{"go"}
	if l.Depth > 0 {
		args = append(args, "depth", strconv.Itoa(l.Depth))
	}
	if l.MoveTimeMillis > 0 {
		args = append(args, "movetime", strconv.Itoa(l.MoveTimeMillis))
	}
	if len(args) == 1 {
		return "", fmt.Errorf("no search limits specified")
	}
	return strings.Join(args, " "), nil
}

// blackToMove reads the active color field of a FEN.
func blackToMove(fen string) bool {
	fields := strings.Fields(fen)
	return len(fields) > 1 && fields[1] == "b"
}

func whitePOV(e Evaluation, fen string) Evaluation {
	// mate 0: the side to move is already mated, keep that sign
	if e.Kind == ScoreMate && e.Value == 0 {
		e.Value = -1
	}
	if blackToMove(fen) {
		e.Value = -e.Value
	}
	return e
}
