package obslog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		" WARN ":  zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"bogus":   zapcore.InfoLevel,
		"":        zapcore.InfoLevel,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNormalizeFormat(t *testing.T) {
	if normalizeFormat("JSON") != "json" {
		t.Fatalf("expected json")
	}
	if normalizeFormat("xml") != "legacy" {
		t.Fatalf("unknown format should fall back to legacy")
	}
}

func TestInitFromEnvWritesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "relay.log")
	t.Setenv("LOG_TO_CONSOLE", "false")
	t.Setenv("LOG_TO_FILE", "true")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_FILE", path)

	if err := InitFromEnv(Defaults{App: "relay"}); err != nil {
		t.Fatalf("InitFromEnv: %v", err)
	}
	t.Cleanup(func() { globalLogger = zap.NewNop() })

	L().Info("obslog_test_line")
	Sync()

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(raw), "obslog_test_line") {
		t.Fatalf("log file missing entry: %s", raw)
	}
}
