package watcher

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// =============================================================================
// Config file watcher
// =============================================================================

func startWatcher(t *testing.T, cfg *Config) *Watcher {
	t.Helper()
	w, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}
	t.Cleanup(w.Stop)
	if err := w.Start(); err != nil {
		t.Fatalf("failed to start watcher: %v", err)
	}
	return w
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

// TestWatcherDetectsWrite verifies a write to the watched file is reported.
func TestWatcherDetectsWrite(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configFile, []byte("per_page: 12\n"), 0600); err != nil {
		t.Fatalf("failed to create config file: %v", err)
	}

	var mu sync.Mutex
	var changed []string
	startWatcher(t, &Config{
		Files:            []string{configFile},
		DebounceDuration: 50 * time.Millisecond,
		OnChange: func(path string) {
			mu.Lock()
			changed = append(changed, path)
			mu.Unlock()
		},
	})

	if err := os.WriteFile(configFile, []byte("per_page: 20\n"), 0600); err != nil {
		t.Fatalf("failed to modify config file: %v", err)
	}

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(changed) > 0
	})
	mu.Lock()
	defer mu.Unlock()
	if changed[0] != configFile {
		t.Errorf("OnChange path = %q, want %q", changed[0], configFile)
	}
}

// TestWatcherDetectsAtomicSave verifies rename-over-original saves are reported.
func TestWatcherDetectsAtomicSave(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configFile, []byte("a: 1\n"), 0600); err != nil {
		t.Fatalf("failed to create config file: %v", err)
	}

	var count atomic.Int32
	startWatcher(t, &Config{
		Files:            []string{configFile},
		DebounceDuration: 50 * time.Millisecond,
		OnChange:         func(string) { count.Add(1) },
	})

	tmp := filepath.Join(tmpDir, ".config.yaml.swp")
	if err := os.WriteFile(tmp, []byte("a: 2\n"), 0600); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	if err := os.Rename(tmp, configFile); err != nil {
		t.Fatalf("failed to rename: %v", err)
	}

	waitFor(t, func() bool { return count.Load() > 0 })
}

// TestWatcherIgnoresSiblings verifies other files in the directory are ignored.
func TestWatcherIgnoresSiblings(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configFile, []byte("a: 1\n"), 0600); err != nil {
		t.Fatalf("failed to create config file: %v", err)
	}

	var count atomic.Int32
	startWatcher(t, &Config{
		Files:            []string{configFile},
		DebounceDuration: 30 * time.Millisecond,
		OnChange:         func(string) { count.Add(1) },
	})

	if err := os.WriteFile(filepath.Join(tmpDir, "pages.db"), []byte("x"), 0600); err != nil {
		t.Fatalf("failed to write sibling: %v", err)
	}
	time.Sleep(200 * time.Millisecond)

	if got := count.Load(); got != 0 {
		t.Errorf("expected sibling writes to be ignored, got %d changes", got)
	}
}

// TestWatcherDebounce verifies a burst of writes produces one change.
func TestWatcherDebounce(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configFile, []byte("v: 0\n"), 0600); err != nil {
		t.Fatalf("failed to create config file: %v", err)
	}

	var count atomic.Int32
	startWatcher(t, &Config{
		Files:            []string{configFile},
		DebounceDuration: 150 * time.Millisecond,
		OnChange:         func(string) { count.Add(1) },
	})

	for i := 0; i < 10; i++ {
		if err := os.WriteFile(configFile, []byte{'v', ':', ' ', byte('0' + i), '\n'}, 0600); err != nil {
			t.Fatalf("failed to modify config file: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	waitFor(t, func() bool { return count.Load() > 0 })
	time.Sleep(300 * time.Millisecond)
	if got := count.Load(); got != 1 {
		t.Errorf("expected 1 change from a debounced burst, got %d", got)
	}
}

// TestWatcherStopCleanly verifies the watcher stops and refuses restarts.
func TestWatcherStopCleanly(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.yaml")

	w, err := New(DefaultConfig(configFile, func(string) {}))
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("failed to start watcher: %v", err)
	}

	w.Stop()
	w.Stop()

	if err := w.Start(); err == nil {
		t.Errorf("expected error starting a stopped watcher")
	}
}

// TestWatcherMissingDirectory verifies a missing config directory is not fatal.
func TestWatcherMissingDirectory(t *testing.T) {
	w, err := New(DefaultConfig("/nonexistent/notehub/config.yaml", func(string) {}))
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}
	defer w.Stop()

	if err := w.Start(); err != nil {
		t.Fatalf("start should not fail for a missing directory: %v", err)
	}
}

// TestWatcherConfigDefaults verifies default configuration values.
func TestWatcherConfigDefaults(t *testing.T) {
	cfg := DefaultConfig("config.yaml", func(string) {})
	if cfg.DebounceDuration != DefaultDebounceDuration {
		t.Errorf("expected default debounce %v, got %v", DefaultDebounceDuration, cfg.DebounceDuration)
	}
	if len(cfg.Files) != 1 || cfg.Files[0] != "config.yaml" {
		t.Errorf("unexpected files %v", cfg.Files)
	}

	cfg.DebounceDuration = 0
	w, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}
	defer w.Stop()
	if cfg.DebounceDuration != DefaultDebounceDuration {
		t.Errorf("zero debounce should fall back to %v, got %v", DefaultDebounceDuration, cfg.DebounceDuration)
	}
}
