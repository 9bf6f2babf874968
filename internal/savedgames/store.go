// Package savedgames keeps finished games as PGN files under the user's
// chess-arena directory.
package savedgames

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	nchess "github.com/corentings/chess/v2"
	"github.com/park285/chess-arena/internal/obslog"
	"go.uber.org/zap"
)

var (
	ErrInvalidName = errors.New("invalid saved game name")
	ErrNotFound    = errors.New("saved game not found")
)

const fileExt = ".pgn"

// Entry describes one file in the store.
type Entry struct {
	Name     string
	Path     string
	Modified time.Time
	Size     int64
}

// Game is a loaded saved game.
type Game struct {
	Entry
	PGN      string
	Headers  map[string]string
	MovesSAN []string
	Final    *nchess.Game
}

type Store struct {
	dir string
	now func() time.Time
}

func NewStore(dir string) *Store {
	return &Store{dir: dir, now: time.Now}
}

func (s *Store) Dir() string { return s.dir }

// Save writes rec to a new file and returns its entry. Names never collide:
// a numeric suffix is added when two games finish in the same second.
func (s *Store) Save(rec Record) (Entry, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return Entry{}, fmt.Errorf("create games dir: %w", err)
	}
	at := s.now()
	content := BuildPGN(rec, at)

	opponent := "vs-Online"
	if rec.Mode == ModeComputer {
		opponent = "vs-Stockfish"
	}
	base := fmt.Sprintf("chess-game_%s_%s", opponent, at.Format("2006-01-02_15-04-05"))

	for n := 1; n < 100; n++ {
		name := base + fileExt
		if n > 1 {
			name = fmt.Sprintf("%s-%d%s", base, n, fileExt)
		}
		path := filepath.Join(s.dir, name)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return Entry{}, fmt.Errorf("create %s: %w", name, err)
		}
		if _, err := f.WriteString(content); err != nil {
			_ = f.Close()
			return Entry{}, fmt.Errorf("write %s: %w", name, err)
		}
		if err := f.Close(); err != nil {
			return Entry{}, fmt.Errorf("close %s: %w", name, err)
		}
		obslog.L().Info("game_saved", zap.String("file", name), zap.Int("moves", len(rec.MovesSAN)), zap.String("result", rec.Result))
		return Entry{Name: name, Path: path, Modified: at, Size: int64(len(content))}, nil
	}
	return Entry{}, fmt.Errorf("no free file name for %s", base)
}

// List returns saved games, newest first. A missing directory is an empty list.
func (s *Store) List() ([]Entry, error) {
	dirEntries, err := os.ReadDir(s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read games dir: %w", err)
	}
	out := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		if de.IsDir() || !strings.EqualFold(filepath.Ext(de.Name()), fileExt) {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		out = append(out, Entry{
			Name:     de.Name(),
			Path:     filepath.Join(s.dir, de.Name()),
			Modified: info.ModTime(),
			Size:     info.Size(),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Modified.Equal(out[j].Modified) {
			return out[i].Modified.After(out[j].Modified)
		}
		return out[i].Name > out[j].Name
	})
	return out, nil
}

func (s *Store) Load(name string) (*Game, error) {
	path, err := s.resolve(name)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", name, err)
	}
	headers, sans, err := ParsePGN(string(raw))
	if err != nil {
		return nil, err
	}
	final, err := Replay(sans)
	if err != nil {
		return nil, err
	}
	return &Game{
		Entry:    Entry{Name: name, Path: path, Modified: info.ModTime(), Size: info.Size()},
		PGN:      string(raw),
		Headers:  headers,
		MovesSAN: sans,
		Final:    final,
	}, nil
}

func (s *Store) Delete(name string) error {
	path, err := s.resolve(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return fmt.Errorf("delete %s: %w", name, err)
	}
	obslog.L().Info("game_deleted", zap.String("file", name))
	return nil
}

// resolve keeps names inside the store directory.
func (s *Store) resolve(name string) (string, error) {
	n := strings.TrimSpace(name)
	if n == "" || n != filepath.Base(n) || strings.ContainsAny(n, `/\`) || n == "." || n == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if !strings.EqualFold(filepath.Ext(n), fileExt) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(s.dir, n), nil
}
