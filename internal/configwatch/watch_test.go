package configwatch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("app: {}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var reloads atomic.Int32
	done := make(chan error, 1)
	go func() { done <- Watch(ctx, path, logger, func() { reloads.Add(1) }) }()

	// Let the watcher register.
	time.Sleep(100 * time.Millisecond)

	// Several writes in a burst collapse into one reload.
	for i := 0; i < 3; i++ {
		if err := os.WriteFile(path, []byte("upstream:\n  media_base_url: https://cdn.test\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	eventually(t, 3*time.Second, 20*time.Millisecond, func() bool { return reloads.Load() >= 1 }, "config change was not noticed")
	time.Sleep(2 * Debounce)
	if n := reloads.Load(); n != 1 {
		t.Errorf("reloads = %d, want 1", n)
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Watch returned %v", err)
	}
}

func TestWatch_IgnoresSiblingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("app: {}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var reloads atomic.Int32
	go Watch(ctx, path, logger, func() { reloads.Add(1) })
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("X=1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(3 * Debounce)
	if reloads.Load() != 0 {
		t.Error("unrelated file triggered a reload")
	}
}

func TestWatch_MissingDir(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	err := Watch(context.Background(), filepath.Join(t.TempDir(), "nope", "config.yaml"), logger, func() {})
	if err == nil {
		t.Fatal("watching a missing directory should fail")
	}
}
