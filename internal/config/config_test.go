package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestLoadRelayDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "VERSION", "REDIS_URL", "DATABASE_URL", "RELAY_GRACE_PERIOD", "RELAY_SWEEP_INTERVAL", "RELAY_ROOM_TTL", "RELAY_JOURNAL_TTL"} {
		t.Setenv(k, "")
	}
	cfg, err := LoadRelay()
	if err != nil {
		t.Fatalf("LoadRelay: %v", err)
	}
	if cfg.Port != 3000 || cfg.Addr() != ":3000" {
		t.Fatalf("unexpected port %d", cfg.Port)
	}
	if cfg.GracePeriod != 30*time.Second || cfg.SweepInterval != time.Minute || cfg.RoomTTL != 2*time.Hour {
		t.Fatalf("unexpected timings %+v", cfg)
	}
	if cfg.RedisURL != "" || cfg.DatabaseURL != "" {
		t.Fatalf("backends should be off by default")
	}
}

func TestLoadRelayOverrides(t *testing.T) {
	t.Setenv("PORT", "3456")
	t.Setenv("RELAY_GRACE_PERIOD", "45")
	t.Setenv("RELAY_ROOM_TTL", "90m")
	t.Setenv("REDIS_URL", " redis://localhost:6379/0 ")
	cfg, err := LoadRelay()
	if err != nil {
		t.Fatalf("LoadRelay: %v", err)
	}
	if cfg.Port != 3456 || cfg.GracePeriod != 45*time.Second || cfg.RoomTTL != 90*time.Minute {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.RedisURL != "redis://localhost:6379/0" {
		t.Fatalf("redis url not trimmed: %q", cfg.RedisURL)
	}
}

func TestLoadRelayRejectsBadValues(t *testing.T) {
	t.Setenv("PORT", "http")
	if _, err := LoadRelay(); err == nil {
		t.Fatalf("expected error for bad PORT")
	}
	t.Setenv("PORT", "")
	t.Setenv("RELAY_SWEEP_INTERVAL", "-5s")
	if _, err := LoadRelay(); err == nil {
		t.Fatalf("expected error for negative interval")
	}
}

func TestLoadArena(t *testing.T) {
	home := t.TempDir()
	t.Setenv("CHESS_ARENA_HOME", home)
	t.Setenv("CHESS_SERVER_URL", "")
	cfg, err := LoadArena()
	if err != nil {
		t.Fatalf("LoadArena: %v", err)
	}
	if cfg.ServerURL != DefaultServerURL {
		t.Fatalf("unexpected server url %q", cfg.ServerURL)
	}
	if cfg.ConfigFile() != filepath.Join(home, "config.yaml") || cfg.GamesDir() != filepath.Join(home, "saved_games") {
		t.Fatalf("unexpected paths %q %q", cfg.ConfigFile(), cfg.GamesDir())
	}
}
