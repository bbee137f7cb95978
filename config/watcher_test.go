package config

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func TestNewWatcherRequiresPath(t *testing.T) {
	if _, err := NewWatcher("", NewLoader()); err == nil {
		t.Fatal("expected error for empty config path")
	}
}

func TestWatcherReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeConfigFile(t, path, "server:\n  port: 8080\n")

	w, err := NewWatcher(path, NewLoader(), WithDebounce(20*time.Millisecond))
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	defer w.Stop()

	var reloaded atomic.Int32
	portCh := make(chan int, 4)
	w.OnChange(func(cfg *Config) {
		reloaded.Add(1)
		portCh <- cfg.Server.Port
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Watch(ctx) }()

	// Wait until the watcher is running before touching the file.
	deadline := time.Now().Add(2 * time.Second)
	for !w.IsRunning() {
		if time.Now().After(deadline) {
			t.Fatal("watcher did not start")
		}
		time.Sleep(5 * time.Millisecond)
	}

	writeConfigFile(t, path, "server:\n  port: 8282\n")

	select {
	case port := <-portCh:
		if port != 8282 {
			t.Errorf("reloaded port = %d, want 8282", port)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("config change callback never fired")
	}

	if reloaded.Load() == 0 {
		t.Error("expected at least one reload")
	}
}

func TestWatcherStop(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeConfigFile(t, path, "server:\n  port: 8080\n")

	w, err := NewWatcher(path, NewLoader())
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- w.Watch(context.Background()) }()

	deadline := time.Now().Add(2 * time.Second)
	for !w.IsRunning() {
		if time.Now().After(deadline) {
			t.Fatal("watcher did not start")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := w.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("watch returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not return after stop")
	}
}

func TestHotReloadableChanged(t *testing.T) {
	a := ExtractHotReloadable(DefaultConfig())
	b := a
	if a.Changed(b) {
		t.Error("identical configs should not report a change")
	}

	b.LogLevel = "debug"
	if !a.Changed(b) {
		t.Error("log level change should be detected")
	}

	b = a
	b.RateLimitRPS = 250
	if !a.Changed(b) {
		t.Error("rate limit change should be detected")
	}
}

func TestWatcherConfigPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeConfigFile(t, path, "server:\n  port: 8080\n")

	w, err := NewWatcher(path, NewLoader())
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	defer w.Stop()

	if w.ConfigPath() != path {
		t.Errorf("config path = %s, want %s", w.ConfigPath(), path)
	}
}
