package savedgames

import (
	"bufio"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	nchess "github.com/corentings/chess/v2"
)

// Mode tags how the game was played.
type Mode string

const (
	ModeComputer Mode = "Computer"
	ModeOnline   Mode = "Online"
)

// Record is a finished (or abandoned) game ready to be written as PGN.
type Record struct {
	White       string
	Black       string
	Mode        Mode
	Result      string
	Termination string
	Opening     string
	ECO         string
	MovesSAN    []string
}

const pgnLineWidth = 80

// ResultFor maps a rules-engine outcome to the PGN result token.
func ResultFor(o nchess.Outcome) string {
	switch o {
	case nchess.WhiteWon:
		return "1-0"
	case nchess.BlackWon:
		return "0-1"
	case nchess.Draw:
		return "1/2-1/2"
	default:
		return "*"
	}
}

func BuildPGN(rec Record, at time.Time) string {
	white := sanitizePGN(rec.White)
	if white == "" {
		white = "Player"
	}
	black := sanitizePGN(rec.Black)
	if black == "" {
		if rec.Mode == ModeComputer {
			black = "Stockfish"
		} else {
			black = "Opponent"
		}
	}
	mode := rec.Mode
	if mode == "" {
		mode = ModeOnline
	}
	result := strings.TrimSpace(rec.Result)
	if result == "" {
		result = "*"
	}

	var b strings.Builder
	writeHeader := func(k, v string) {
		fmt.Fprintf(&b, "[%s \"%s\"]\n", k, v)
	}
	writeHeader("Event", "Chess Arena Game")
	writeHeader("Site", "Chess Arena CLI")
	writeHeader("Date", fmt.Sprintf("%04d.%02d.%02d", at.Year(), int(at.Month()), at.Day()))
	writeHeader("Round", "1")
	writeHeader("White", white)
	writeHeader("Black", black)
	writeHeader("Result", result)
	writeHeader("Time", at.Format("15:04:05"))
	writeHeader("TimeControl", "-")
	writeHeader("Mode", string(mode))
	if v := sanitizePGN(rec.ECO); v != "" {
		writeHeader("ECO", v)
	}
	if v := sanitizePGN(rec.Opening); v != "" {
		writeHeader("Opening", v)
	}
	if v := sanitizePGN(rec.Termination); v != "" {
		writeHeader("Termination", strings.ToLower(v))
	}
	b.WriteString("\n")

	// movetext, wrapped
	tokens := make([]string, 0, len(rec.MovesSAN)+len(rec.MovesSAN)/2+1)
	for i, san := range rec.MovesSAN {
		if i%2 == 0 {
			tokens = append(tokens, fmt.Sprintf("%d.", i/2+1))
		}
		tokens = append(tokens, strings.TrimSpace(san))
	}
	tokens = append(tokens, result)

	line := 0
	for i, tok := range tokens {
		if i > 0 {
			if line+1+len(tok) > pgnLineWidth {
				b.WriteString("\n")
				line = 0
			} else {
				b.WriteString(" ")
				line++
			}
		}
		b.WriteString(tok)
		line += len(tok)
	}
	b.WriteString("\n")
	return b.String()
}

var (
	headerLine   = regexp.MustCompile(`^\[(\w+)\s+"(.*)"\]$`)
	moveNumber   = regexp.MustCompile(`^\d+\.(\.\.)?$`)
	resultTokens = map[string]bool{"1-0": true, "0-1": true, "1/2-1/2": true, "*": true}
)

var ErrMalformedPGN = errors.New("malformed pgn")

// ParsePGN reads headers and SAN moves from a single-game PGN. Comments,
// variations and NAGs are not supported.
func ParsePGN(text string) (map[string]string, []string, error) {
	headers := make(map[string]string)
	var sans []string

	sc := bufio.NewScanner(strings.NewReader(text))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "[") {
			m := headerLine.FindStringSubmatch(line)
			if m == nil {
				return nil, nil, fmt.Errorf("%w: bad header %q", ErrMalformedPGN, line)
			}
			headers[m[1]] = m[2]
			continue
		}
		for _, tok := range strings.Fields(line) {
			if moveNumber.MatchString(tok) || resultTokens[tok] {
				continue
			}
			// "1.e4" style
			if i := strings.LastIndex(tok, "."); i >= 0 {
				tok = tok[i+1:]
				if tok == "" {
					continue
				}
			}
			sans = append(sans, tok)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, nil, err
	}
	return headers, sans, nil
}

// Replay rebuilds the game from SAN moves.
func Replay(sans []string) (*nchess.Game, error) {
	game := nchess.NewGame()
	for i, san := range sans {
		if err := game.PushNotationMove(san, nchess.AlgebraicNotation{}, nil); err != nil {
			return nil, fmt.Errorf("%w: move %d %q: %v", ErrMalformedPGN, i+1, san, err)
		}
	}
	return game, nil
}

func sanitizePGN(s string) string {
	s = strings.ReplaceAll(s, "\\", " ")
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.TrimSpace(s)
}
