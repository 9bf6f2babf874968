package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// RelayConfig configures cmd/chess-relay.
type RelayConfig struct {
	Port    int
	Version string

	// Optional backends; empty disables them.
	RedisURL    string
	DatabaseURL string

	GracePeriod   time.Duration
	SweepInterval time.Duration
	RoomTTL       time.Duration
	JournalTTL    time.Duration
}

func (c RelayConfig) Addr() string { return ":" + strconv.Itoa(c.Port) }

func LoadRelay() (*RelayConfig, error) {
	cfg := &RelayConfig{
		Port:          3000,
		Version:       "dev",
		GracePeriod:   30 * time.Second,
		SweepInterval: 60 * time.Second,
		RoomTTL:       2 * time.Hour,
		JournalTTL:    2 * time.Hour,
	}

	if v := strings.TrimSpace(os.Getenv("PORT")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 65535 {
			return nil, fmt.Errorf("invalid PORT %q", v)
		}
		cfg.Port = n
	}
	if v := strings.TrimSpace(os.Getenv("VERSION")); v != "" {
		cfg.Version = v
	}
	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))

	for _, d := range []struct {
		key string
		dst *time.Duration
	}{
		{"RELAY_GRACE_PERIOD", &cfg.GracePeriod},
		{"RELAY_SWEEP_INTERVAL", &cfg.SweepInterval},
		{"RELAY_ROOM_TTL", &cfg.RoomTTL},
		{"RELAY_JOURNAL_TTL", &cfg.JournalTTL},
	} {
		if err := durationEnv(d.key, d.dst); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// ArenaConfig configures cmd/chess-arena. Values here are process defaults;
// the user's config file and flags override them.
type ArenaConfig struct {
	ServerURL     string
	StockfishPath string
	HomeDir       string
	MessagesDir   string
}

const DefaultServerURL = "http://localhost:3000"

func LoadArena() (*ArenaConfig, error) {
	cfg := &ArenaConfig{ServerURL: DefaultServerURL}

	if v := strings.TrimSpace(os.Getenv("CHESS_SERVER_URL")); v != "" {
		cfg.ServerURL = v
	}
	cfg.StockfishPath = strings.TrimSpace(os.Getenv("STOCKFISH_PATH"))
	cfg.MessagesDir = strings.TrimSpace(os.Getenv("CHESS_ARENA_MESSAGES_DIR"))

	if v := strings.TrimSpace(os.Getenv("CHESS_ARENA_HOME")); v != "" {
		cfg.HomeDir = v
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		cfg.HomeDir = filepath.Join(home, ".chess-arena")
	}
	return cfg, nil
}

func (c ArenaConfig) ConfigFile() string { return filepath.Join(c.HomeDir, "config.yaml") }
func (c ArenaConfig) GamesDir() string   { return filepath.Join(c.HomeDir, "saved_games") }
func (c ArenaConfig) LogFile() string    { return filepath.Join(c.HomeDir, "logs", "chess-arena.log") }

func durationEnv(key string, dst *time.Duration) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		// plain integers are seconds
		n, nerr := strconv.Atoi(v)
		if nerr != nil || n <= 0 {
			return fmt.Errorf("invalid %s %q", key, v)
		}
		d = time.Duration(n) * time.Second
	}
	if d <= 0 {
		return fmt.Errorf("invalid %s %q", key, v)
	}
	*dst = d
	return nil
}
