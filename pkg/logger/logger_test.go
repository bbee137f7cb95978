package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   DebugLevel,
		"info":    InfoLevel,
		"warn":    WarnLevel,
		"warning": WarnLevel,
		"error":   ErrorLevel,
		"":        InfoLevel,
		"loud":    InfoLevel,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLevelString(t *testing.T) {
	for level, want := range map[Level]string{
		DebugLevel: "debug",
		InfoLevel:  "info",
		WarnLevel:  "warn",
		ErrorLevel: "error",
		Level(42):  "unknown",
	} {
		if got := level.String(); got != want {
			t.Errorf("Level(%d).String() = %q, want %q", level, got, want)
		}
	}
}

func TestNewWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coordinator.log")
	log := New(&Config{Level: InfoLevel, Format: "json", Output: path})

	log.Info("delivery scheduled", "saga_id", "s-1")
	log.Debug("suppressed", "saga_id", "s-1")

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d log lines, want 1 (debug below level)", len(lines))
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if entry["msg"] != "delivery scheduled" {
		t.Errorf("msg = %v", entry["msg"])
	}
	if entry["saga_id"] != "s-1" {
		t.Errorf("saga_id = %v", entry["saga_id"])
	}
}

func TestWithCarriesFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "with.log")
	log := New(&Config{Level: InfoLevel, Format: "json", Output: path})

	log.With("workflow", "pickup-package").Warn("slow step", "step", "load-delivery")

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(raw))), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if entry["workflow"] != "pickup-package" {
		t.Errorf("workflow = %v, want pickup-package", entry["workflow"])
	}
	if entry["step"] != "load-delivery" {
		t.Errorf("step = %v, want load-delivery", entry["step"])
	}
}

func TestNewNilConfigDefaults(t *testing.T) {
	log := New(nil)
	if log == nil {
		t.Fatal("nil logger")
	}
	if log.Slog() == nil {
		t.Fatal("nil slog logger")
	}
}

func TestNewUnwritablePathFallsBack(t *testing.T) {
	log := New(&Config{Level: InfoLevel, Format: "text", Output: "/nonexistent/dir/skylane.log"})
	// Must still produce a usable logger.
	log.Info("started")
}

func TestSetGlobalReplaces(t *testing.T) {
	prev := Global()
	defer SetGlobal(prev)

	path := filepath.Join(t.TempDir(), "global.log")
	SetGlobal(New(&Config{Level: WarnLevel, Format: "json", Output: path}))

	Warn("tracing exporter failed", "error", "dial")
	Info("suppressed")

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1", len(lines))
	}
	if !strings.Contains(lines[0], "tracing exporter failed") {
		t.Errorf("line = %s", lines[0])
	}
}
