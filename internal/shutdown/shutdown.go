// Package shutdown provides graceful shutdown handling for the application.
// It manages signal handling, cleanup function registration, and coordinated shutdown.
package shutdown

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"notehub/internal/utils"
)

// CleanupFunc is a function that performs cleanup on shutdown.
// It receives a context that will be cancelled when the shutdown times out.
type CleanupFunc func(ctx context.Context) error

// cleanupEntry holds a registered cleanup function with its name.
type cleanupEntry struct {
	name string
	fn   CleanupFunc
}

// Manager handles graceful shutdown coordination.
type Manager struct {
	mu         sync.Mutex
	cleanups   []cleanupEntry
	shutdown   bool
	shutdownCh chan struct{}
	ctx        context.Context
	cancel     context.CancelFunc
	once       sync.Once

	cleanupOnce sync.Once
	cleanupDone chan struct{}
	cleanupErr  error
}

// NewManager creates a new shutdown manager.
func NewManager() *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		cleanups:    make([]cleanupEntry, 0),
		shutdownCh:  make(chan struct{}),
		cleanupDone: make(chan struct{}),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// RegisterCleanup registers a cleanup function to be called during shutdown.
// Cleanup functions are called in LIFO order (last registered, first called).
func (m *Manager) RegisterCleanup(name string, fn CleanupFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleanups = append(m.cleanups, cleanupEntry{name: name, fn: fn})
}

// HandleSignals calls Shutdown on the first SIGINT or SIGTERM.
// The returned function stops listening.
func (m *Manager) HandleSignals() (stop func()) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	quit := make(chan struct{})
	go func() {
		select {
		case sig := <-sigCh:
			utils.Debugf("shutdown: received %s", sig)
			m.Shutdown()
		case <-quit:
		}
	}()
	var stopOnce sync.Once
	return func() {
		stopOnce.Do(func() {
			signal.Stop(sigCh)
			close(quit)
		})
	}
}

// Shutdown initiates a graceful shutdown.
// This sets the shutdown flag and cancels Context.
// Safe to call multiple times; only the first call has effect.
func (m *Manager) Shutdown() {
	m.once.Do(func() {
		m.mu.Lock()
		m.shutdown = true
		m.mu.Unlock()

		m.cancel()
		close(m.shutdownCh)
	})
}

// Done returns a channel that is closed when shutdown is initiated.
func (m *Manager) Done() <-chan struct{} {
	return m.shutdownCh
}

// runCleanups executes all cleanup functions in LIFO order. Errors are logged
// and joined; every cleanup runs regardless.
func (m *Manager) runCleanups(ctx context.Context) error {
	m.mu.Lock()
	cleanups := make([]cleanupEntry, len(m.cleanups))
	copy(cleanups, m.cleanups)
	m.mu.Unlock()

	var errs []error
	for i := len(cleanups) - 1; i >= 0; i-- {
		if err := cleanups[i].fn(ctx); err != nil {
			utils.Warnf("shutdown: cleanup %s failed: %v", cleanups[i].name, err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Wait runs the cleanup functions once and waits for them to finish.
// Returns the context error if cleanup outlives ctx, or the joined cleanup errors.
func (m *Manager) Wait(ctx context.Context) error {
	m.cleanupOnce.Do(func() {
		go func() {
			m.cleanupErr = m.runCleanups(ctx)
			close(m.cleanupDone)
		}()
	})

	select {
	case <-m.cleanupDone:
		return m.cleanupErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsShutdown returns true if shutdown has been initiated.
func (m *Manager) IsShutdown() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.shutdown
}

// Context returns a context that is cancelled when shutdown is initiated.
// Use this to make operations interruptible.
func (m *Manager) Context() context.Context {
	return m.ctx
}
