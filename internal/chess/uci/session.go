// Package uci drives a chess engine subprocess over the UCI text protocol.
//
// A Session keeps one reader goroutine on the engine's stdout and at most one
// search in flight. Starting a new search while another is pending stops the
// old one; its bestmove line is swallowed and its future resolves with
// ErrSuperseded.
package uci

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/park285/chess-arena/internal/obslog"
	"go.uber.org/zap"
)

const (
	DefaultReadyTimeout = 5 * time.Second
	DefaultQuitTimeout  = 2 * time.Second
	EvaluationTimeout   = 3 * time.Second

	maxLineSize = 64 << 10
)

var (
	ErrEngineNotFound    = errors.New("chess engine not found")
	ErrEngineSpawnFailed = errors.New("chess engine failed to start")
	ErrEngineExited      = errors.New("chess engine exited")
	ErrSuperseded        = errors.New("search superseded by a newer request")
	ErrNoMove            = errors.New("engine reported no legal move")
	ErrClosed            = errors.New("engine session closed")
)

// LaunchConfig says how to find and start the engine.
type LaunchConfig struct {
	// Candidates are tried in order; the first that starts wins.
	Candidates   []string
	Args         []string
	Env          []string
	ReadyTimeout time.Duration
	QuitTimeout  time.Duration
}

// DefaultCandidates lists the usual Stockfish locations, led by
// $STOCKFISH_PATH when set.
func DefaultCandidates() []string {
	var out []string
	if p := strings.TrimSpace(os.Getenv("STOCKFISH_PATH")); p != "" {
		out = append(out, p)
	}
	return append(out,
		"stockfish",
		"stockfish.exe",
		"/usr/games/stockfish",
		"/usr/local/bin/stockfish",
		"/opt/homebrew/bin/stockfish",
	)
}

// Option is one setoption line.
type Option struct {
	Name  string
	Value string
}

type request struct {
	onInfo     func(info) bool
	onBestMove func(token string, err error)
	fail       func(err error)
}

type Session struct {
	path string
	cmd  *exec.Cmd

	writeMu sync.Mutex
	stdin   io.WriteCloser

	// startMu orders search starts so stop/position/go triples never interleave.
	startMu sync.Mutex

	mu       sync.Mutex
	pending  *request
	stale    int
	readyQ   []chan struct{}
	uciok    chan struct{}
	uciOnce  sync.Once
	exitErr  error
	exited   chan struct{}
	closing  bool
	quitWait time.Duration

	closeOnce sync.Once
	closeErr  error
}

// Launch starts the first candidate that spawns and waits for its uciok.
// Nothing spawning yields ErrEngineNotFound; a process that starts but never
// completes the handshake yields ErrEngineSpawnFailed.
func Launch(ctx context.Context, cfg LaunchConfig) (*Session, error) {
	if len(cfg.Candidates) == 0 {
		cfg.Candidates = DefaultCandidates()
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = DefaultReadyTimeout
	}
	if cfg.QuitTimeout <= 0 {
		cfg.QuitTimeout = DefaultQuitTimeout
	}

	var lastErr error
	for _, candidate := range cfg.Candidates {
		s, err := spawn(candidate, cfg)
		if err != nil {
			lastErr = err
			obslog.L().Debug("uci_spawn_skip", zap.String("path", candidate), zap.Error(err))
			continue
		}
		if err := s.handshake(ctx, cfg.ReadyTimeout); err != nil {
			_ = s.kill()
			obslog.L().Warn("uci_handshake_failed", zap.String("path", candidate), zap.Error(err))
			return nil, fmt.Errorf("%w: %s: %v", ErrEngineSpawnFailed, candidate, err)
		}
		obslog.L().Info("uci_spawn", zap.String("path", candidate), zap.Int("pid", s.cmd.Process.Pid))
		return s, nil
	}
	return nil, fmt.Errorf("%w (tried %s): %v", ErrEngineNotFound, strings.Join(cfg.Candidates, ", "), lastErr)
}

func spawn(path string, cfg LaunchConfig) (*Session, error) {
	cmd := exec.Command(path, cfg.Args...)
	if len(cfg.Env) > 0 {
		cmd.Env = cfg.Env
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		_ = stdin.Close()
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		return nil, fmt.Errorf("start engine: %w", err)
	}

	s := &Session{
		path:     path,
		cmd:      cmd,
		stdin:    stdin,
		uciok:    make(chan struct{}),
		exited:   make(chan struct{}),
		quitWait: cfg.QuitTimeout,
	}
	go s.readLoop(stdout)
	return s, nil
}

func (s *Session) Path() string { return s.path }

func (s *Session) handshake(ctx context.Context, timeout time.Duration) error {
	if err := s.send("uci"); err != nil {
		return err
	}
	hctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	select {
	case <-s.uciok:
		return nil
	case <-s.exited:
		return s.exitError()
	case <-hctx.Done():
		return fmt.Errorf("wait uciok: %w", hctx.Err())
	}
}

// SetOptions sends the options and waits for the engine to acknowledge them.
func (s *Session) SetOptions(ctx context.Context, opts []Option) error {
	for _, o := range opts {
		if err := s.send(fmt.Sprintf("setoption name %s value %s", o.Name, o.Value)); err != nil {
			return fmt.Errorf("apply options: %w", err)
		}
	}
	return s.EnsureReady(ctx)
}

func (s *Session) EnsureReady(ctx context.Context) error {
	ch := make(chan struct{})
	s.mu.Lock()
	s.readyQ = append(s.readyQ, ch)
	s.mu.Unlock()
	if err := s.send("isready"); err != nil {
		return fmt.Errorf("send isready: %w", err)
	}
	rctx, cancel := context.WithTimeout(ctx, DefaultReadyTimeout)
	defer cancel()
	select {
	case <-ch:
		return nil
	case <-s.exited:
		return s.exitError()
	case <-rctx.Done():
		return fmt.Errorf("wait readyok: %w", rctx.Err())
	}
}

func (s *Session) NewGame(ctx context.Context) error {
	if err := s.send("ucinewgame"); err != nil {
		return fmt.Errorf("send ucinewgame: %w", err)
	}
	return s.EnsureReady(ctx)
}

// BestMove searches fen within limits. The future carries the raw move token
// (e.g. "e7e8q"). There is no timeout; cancel through Wait's context.
func (s *Session) BestMove(fen string, limits Limits) *Future[string] {
	fut := newFuture[string]()
	goCmd, err := buildGoCommand(limits)
	if err != nil {
		fut.resolve("", err)
		return fut
	}
	req := &request{
		onBestMove: func(token string, err error) { fut.resolve(token, err) },
		fail:       func(err error) { fut.resolve("", err) },
	}
	fut.onCancel = func(err error) { s.abandon(req, err) }
	s.start(req, fen, goCmd)
	return fut
}

// Evaluate runs a depth-limited search on fen. The future resolves with the
// score at the first report reaching depth, or the deepest score seen if the
// engine finishes early. If EvaluationTimeout passes first it resolves with a
// nil Evaluation and no error. Scores are from White's point of view.
func (s *Session) Evaluate(fen string, depth int) *Future[*Evaluation] {
	return s.evaluate(fen, depth, EvaluationTimeout)
}

func (s *Session) evaluate(fen string, depth int, timeout time.Duration) *Future[*Evaluation] {
	fut := newFuture[*Evaluation]()
	goCmd, err := buildGoCommand(Limits{Depth: depth})
	if err != nil {
		fut.resolve(nil, err)
		return fut
	}

	var deepest *Evaluation
	req := &request{}
	req.onInfo = func(in info) bool {
		if !in.hasScore {
			return false
		}
		ev := whitePOV(in.score, fen)
		deepest = &ev
		if in.depth >= depth {
			fut.resolve(deepest, nil)
			return true
		}
		return false
	}
	req.onBestMove = func(string, error) { fut.resolve(deepest, nil) }
	req.fail = func(err error) { fut.resolve(nil, err) }
	fut.onCancel = func(err error) { s.abandon(req, err) }

	s.start(req, fen, goCmd)

	timer := time.AfterFunc(timeout, func() {
		s.abandon(req, nil)
		fut.resolve(nil, nil)
	})
	go func() {
		<-fut.Done()
		timer.Stop()
	}()
	return fut
}

func (s *Session) start(req *request, fen, goCmd string) {
	s.startMu.Lock()
	defer s.startMu.Unlock()

	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		req.fail(ErrClosed)
		return
	}
	select {
	case <-s.exited:
		s.mu.Unlock()
		req.fail(s.exitError())
		return
	default:
	}
	prev := s.pending
	if prev != nil {
		s.stale++
	}
	s.pending = req
	s.mu.Unlock()

	if prev != nil {
		_ = s.send("stop")
		prev.fail(ErrSuperseded)
		obslog.L().Debug("uci_search_superseded")
	}
	if err := s.sendAll(buildPositionCommand(fen), goCmd); err != nil {
		s.abandon(req, err)
	}
}

// abandon detaches req if it is still the pending search and stops the
// engine. A nil err leaves resolving req to the caller.
func (s *Session) abandon(req *request, err error) {
	s.mu.Lock()
	if s.pending != req {
		s.mu.Unlock()
		return
	}
	s.pending = nil
	s.stale++
	s.mu.Unlock()

	_ = s.send("stop")
	if err != nil {
		req.fail(err)
	}
}

func (s *Session) readLoop(stdout io.Reader) {
	sc := bufio.NewScanner(stdout)
	sc.Buffer(make([]byte, 0, 4096), maxLineSize)
	for sc.Scan() {
		s.handleLine(strings.TrimSpace(sc.Text()))
	}

	err := sc.Err()
	if err == nil {
		err = ErrEngineExited
	}
	s.mu.Lock()
	s.exitErr = err
	pending := s.pending
	s.pending = nil
	closing := s.closing
	s.mu.Unlock()
	close(s.exited)

	if pending != nil {
		pending.fail(err)
	}
	if !closing {
		obslog.L().Warn("uci_exit", zap.String("path", s.path), zap.Error(err))
	}
}

func (s *Session) handleLine(line string) {
	switch {
	case line == "":
	case line == "uciok":
		s.uciOnce.Do(func() { close(s.uciok) })
	case line == "readyok":
		s.mu.Lock()
		if len(s.readyQ) > 0 {
			close(s.readyQ[0])
			s.readyQ = s.readyQ[1:]
		}
		s.mu.Unlock()
	case strings.HasPrefix(line, "info "):
		in, ok := parseInfo(line)
		if !ok {
			return
		}
		s.mu.Lock()
		req := s.pending
		if s.stale > 0 {
			req = nil
		}
		s.mu.Unlock()
		if req != nil && req.onInfo != nil && req.onInfo(in) {
			s.abandon(req, nil)
		}
	case strings.HasPrefix(line, "bestmove"):
		s.mu.Lock()
		if s.stale > 0 {
			s.stale--
			s.mu.Unlock()
			obslog.L().Debug("uci_stale_bestmove", zap.String("line", line))
			return
		}
		req := s.pending
		s.pending = nil
		s.mu.Unlock()
		if req != nil {
			req.onBestMove(parseBestMove(line))
		}
	}
}

func (s *Session) exitError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.exitErr != nil {
		return s.exitErr
	}
	return ErrEngineExited
}

func (s *Session) send(line string) error {
	return s.sendAll(line)
}

func (s *Session) sendAll(lines ...string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	for _, line := range lines {
		if _, err := io.WriteString(s.stdin, line+"\n"); err != nil {
			return fmt.Errorf("write %q: %w", strings.Fields(line)[0], err)
		}
	}
	return nil
}

// Close sends quit, gives the engine QuitTimeout to exit and kills it
// otherwise. Safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closing = true
		pending := s.pending
		s.pending = nil
		s.mu.Unlock()
		if pending != nil {
			pending.fail(ErrClosed)
		}

		_ = s.send("quit")
		s.writeMu.Lock()
		_ = s.stdin.Close()
		s.writeMu.Unlock()

		select {
		case <-s.exited:
		case <-time.After(s.quitWait):
			obslog.L().Warn("uci_kill", zap.String("path", s.path), zap.Duration("waited", s.quitWait))
			_ = s.cmd.Process.Kill()
			<-s.exited
		}
		if err := s.cmd.Wait(); err != nil {
			var exitErr *exec.ExitError
			if !errors.As(err, &exitErr) {
				s.closeErr = err
			}
		}
	})
	return s.closeErr
}

func (s *Session) kill() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closing = true
		s.mu.Unlock()
		_ = s.stdin.Close()
		_ = s.cmd.Process.Kill()
		<-s.exited
		_ = s.cmd.Wait()
	})
	return nil
}
