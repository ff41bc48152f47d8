// Package watcher reloads settings while the TUI is running. It watches the
// directory holding the config file so that editors which save by renaming a
// temporary file over the original are still noticed, and batches bursts of
// events into a single OnChange call.
package watcher

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"notehub/internal/utils"
)

// DefaultDebounceDuration is the default window for batching rapid changes.
const DefaultDebounceDuration = 250 * time.Millisecond

// Config holds file watcher configuration.
type Config struct {
	Files            []string      // Files to watch; their parent directories are subscribed
	DebounceDuration time.Duration // Debounce window to batch rapid changes
	OnChange         func(path string)
}

// DefaultConfig returns a Config watching a single file.
func DefaultConfig(file string, onChange func(path string)) *Config {
	return &Config{
		Files:            []string{file},
		DebounceDuration: DefaultDebounceDuration,
		OnChange:         onChange,
	}
}

// Watcher monitors a set of files and reports changes.
type Watcher struct {
	cfg     *Config
	fsw     *fsnotify.Watcher
	files   map[string]bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	started bool
	stopped bool
	mu      sync.Mutex
}

// New creates a new Watcher instance.
func New(cfg *Config) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if cfg.DebounceDuration <= 0 {
		cfg.DebounceDuration = DefaultDebounceDuration
	}

	files := make(map[string]bool, len(cfg.Files))
	for _, f := range cfg.Files {
		if abs, err := filepath.Abs(f); err == nil {
			f = abs
		}
		files[filepath.Clean(f)] = true
	}

	return &Watcher{
		cfg:    cfg,
		fsw:    fsw,
		files:  files,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}, nil
}

// Start subscribes to the parent directory of every configured file.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return fmt.Errorf("watcher has been stopped and cannot be restarted")
	}
	if w.started {
		return nil
	}

	dirs := make(map[string]bool)
	for f := range w.files {
		dirs[filepath.Dir(f)] = true
	}
	for dir := range dirs {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			// The directory may be created later; there is nothing to watch yet
			utils.Debugf("watcher: skipping missing directory %s", dir)
			continue
		}
		if err := w.fsw.Add(dir); err != nil {
			return fmt.Errorf("failed to watch directory %q: %w", dir, err)
		}
	}

	w.started = true
	go w.eventLoop()
	return nil
}

// Stop stops the watcher and waits for the event loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	started := w.started
	close(w.stopCh)
	_ = w.fsw.Close()
	w.mu.Unlock()

	if started {
		<-w.doneCh
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return false
	}
	return w.files[filepath.Clean(event.Name)]
}

// eventLoop debounces events per file.
func (w *Watcher) eventLoop() {
	defer close(w.doneCh)

	pending := make(map[string]bool)
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-w.stopCh:
			if timer != nil {
				timer.Stop()
			}
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			pending[filepath.Clean(event.Name)] = true
			if timer == nil {
				timer = time.NewTimer(w.cfg.DebounceDuration)
			} else {
				timer.Reset(w.cfg.DebounceDuration)
			}
			fire = timer.C

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			utils.Debugf("watcher: %v", err)

		case <-fire:
			fire = nil
			for path := range pending {
				delete(pending, path)
				if w.cfg.OnChange != nil {
					w.cfg.OnChange(path)
				}
			}
		}
	}
}
