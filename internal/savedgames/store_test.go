package savedgames

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	nchess "github.com/corentings/chess/v2"
)

var foolsMate = []string{"f3", "e5", "g4", "Qh4#"}

func newTestStore(t *testing.T, at time.Time) *Store {
	t.Helper()
	s := NewStore(filepath.Join(t.TempDir(), "saved_games"))
	s.now = func() time.Time { return at }
	return s
}

func TestBuildPGNHeadersAndMovetext(t *testing.T) {
	at := time.Date(2026, 3, 7, 9, 5, 2, 0, time.UTC)
	pgn := BuildPGN(Record{White: "Player", Mode: ModeComputer, Result: "0-1", Termination: "Checkmate", MovesSAN: foolsMate}, at)

	for _, want := range []string{
		"[Event \"Chess Arena Game\"]\n",
		"[Site \"Chess Arena CLI\"]\n",
		"[Date \"2026.03.07\"]\n",
		"[Black \"Stockfish\"]\n",
		"[Time \"09:05:02\"]\n",
		"[Mode \"Computer\"]\n",
		"[Termination \"checkmate\"]\n",
		"\n1. f3 e5 2. g4 Qh4# 0-1\n",
	} {
		if !strings.Contains(pgn, want) {
			t.Fatalf("pgn missing %q:\n%s", want, pgn)
		}
	}
	if strings.Index(pgn, "[Event") > strings.Index(pgn, "[Mode") {
		t.Fatalf("headers out of order:\n%s", pgn)
	}
}

func TestBuildPGNWrapsLongGames(t *testing.T) {
	var sans []string
	for i := 0; i < 30; i++ {
		sans = append(sans, "Nf3", "Nf6", "Ng1", "Ng8")
	}
	pgn := BuildPGN(Record{Mode: ModeOnline, MovesSAN: sans}, time.Now())
	for _, line := range strings.Split(pgn, "\n") {
		if len(line) > pgnLineWidth {
			t.Fatalf("line longer than %d: %q", pgnLineWidth, line)
		}
	}
	if !strings.Contains(pgn, "[Black \"Opponent\"]") || !strings.Contains(pgn, "[Result \"*\"]") {
		t.Fatalf("online defaults missing:\n%s", pgn)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := newTestStore(t, time.Date(2026, 1, 2, 15, 4, 5, 0, time.Local))
	entry, err := s.Save(Record{Mode: ModeComputer, Result: "0-1", MovesSAN: foolsMate})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if entry.Name != "chess-game_vs-Stockfish_2026-01-02_15-04-05.pgn" {
		t.Fatalf("unexpected file name %q", entry.Name)
	}

	g, err := s.Load(entry.Name)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(g.MovesSAN) != len(foolsMate) {
		t.Fatalf("moves = %v", g.MovesSAN)
	}
	if g.Headers["Result"] != "0-1" || g.Headers["Mode"] != "Computer" {
		t.Fatalf("headers = %v", g.Headers)
	}
	if g.Final.Outcome() != nchess.BlackWon {
		t.Fatalf("replayed outcome = %v", g.Final.Outcome())
	}
}

func TestSaveSameSecondGetsSuffix(t *testing.T) {
	s := newTestStore(t, time.Date(2026, 1, 2, 15, 4, 5, 0, time.Local))
	first, err := s.Save(Record{Mode: ModeOnline})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	second, err := s.Save(Record{Mode: ModeOnline})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if first.Name == second.Name || !strings.HasSuffix(second.Name, "-2.pgn") {
		t.Fatalf("names %q %q", first.Name, second.Name)
	}
}

func TestListNewestFirst(t *testing.T) {
	s := newTestStore(t, time.Now())
	if err := os.MkdirAll(s.Dir(), 0o755); err != nil {
		t.Fatal(err)
	}
	base := time.Now().Add(-time.Hour)
	for i, name := range []string{"a.pgn", "b.pgn", "c.pgn"} {
		path := filepath.Join(s.Dir(), name)
		if err := os.WriteFile(path, []byte("1. e4 *\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		mt := base.Add(time.Duration([]int{2, 0, 1}[i]) * time.Minute)
		if err := os.Chtimes(path, mt, mt); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(s.Dir(), "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	entries, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name)
	}
	if strings.Join(names, ",") != "a.pgn,c.pgn,b.pgn" {
		t.Fatalf("order = %v", names)
	}
}

func TestListMissingDirIsEmpty(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "nope"))
	entries, err := s.List()
	if err != nil || len(entries) != 0 {
		t.Fatalf("List = %v, %v", entries, err)
	}
}

func TestDelete(t *testing.T) {
	s := newTestStore(t, time.Now())
	entry, err := s.Save(Record{Mode: ModeOnline})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Delete(entry.Name); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(entry.Name); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second Delete err = %v", err)
	}
	if _, err := s.Load(entry.Name); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load after delete err = %v", err)
	}
}

func TestRejectsNamesOutsideStore(t *testing.T) {
	s := newTestStore(t, time.Now())
	for _, name := range []string{"../config.yaml", "../x.pgn", "sub/x.pgn", "", "..", "game.txt"} {
		if err := s.Delete(name); !errors.Is(err, ErrInvalidName) {
			t.Fatalf("Delete(%q) err = %v", name, err)
		}
		if _, err := s.Load(name); !errors.Is(err, ErrInvalidName) {
			t.Fatalf("Load(%q) err = %v", name, err)
		}
	}
}

func TestParsePGNRejectsIllegalMoves(t *testing.T) {
	_, sans, err := ParsePGN("[Event \"x\"]\n\n1.e4 e5 2.Ke3 *\n")
	if err != nil {
		t.Fatalf("ParsePGN: %v", err)
	}
	if strings.Join(sans, " ") != "e4 e5 Ke3" {
		t.Fatalf("sans = %v", sans)
	}
	if _, err := Replay(sans); !errors.Is(err, ErrMalformedPGN) {
		t.Fatalf("Replay err = %v", err)
	}
}

func TestResultFor(t *testing.T) {
	cases := map[nchess.Outcome]string{
		nchess.WhiteWon:  "1-0",
		nchess.BlackWon:  "0-1",
		nchess.Draw:      "1/2-1/2",
		nchess.NoOutcome: "*",
	}
	for o, want := range cases {
		if got := ResultFor(o); got != want {
			t.Fatalf("ResultFor(%v) = %q, want %q", o, got, want)
		}
	}
}
