// Package notification reports the outcome of note mutations outside the
// terminal: an append-only log file and OS desktop notifications.
package notification

import (
	"fmt"
	"time"

	"notehub/internal/mutation"
)

// NotificationType identifies the type of notification
type NotificationType string

const (
	NotifyNoteCreated    NotificationType = "note_created"
	NotifyNoteDeleted    NotificationType = "note_deleted"
	NotifyMutationFailed NotificationType = "mutation_failed"
	NotifyTest           NotificationType = "test"
)

// Notification represents a notification to be sent
type Notification struct {
	Type      NotificationType
	Title     string
	Message   string
	Timestamp time.Time
	Metadata  map[string]string
}

// IsFailure reports whether the notification describes a failed operation
func (n Notification) IsFailure() bool {
	return n.Type == NotifyMutationFailed
}

// FromMutation describes a settled mutation. Pending and idle mutations
// produce a failure notification only when they carry an error.
func FromMutation(m mutation.Mutation) Notification {
	n := Notification{
		Timestamp: time.Now(),
		Metadata: map[string]string{
			"mutation_id": m.ID,
			"kind":        m.Kind.String(),
			"state":       m.State.String(),
			"target":      m.Target,
		},
	}

	switch {
	case m.Err != nil:
		n.Type = NotifyMutationFailed
		n.Title = "NoteHub"
		if m.Kind == mutation.KindDelete {
			n.Message = fmt.Sprintf("Could not delete note %s: %v", m.Target, m.Err)
		} else {
			n.Message = fmt.Sprintf("Could not create %q: %v", m.Target, m.Err)
		}
	case m.Kind == mutation.KindDelete:
		n.Type = NotifyNoteDeleted
		n.Title = "Note deleted"
		n.Message = fmt.Sprintf("Deleted note %s", m.Target)
	default:
		n.Type = NotifyNoteCreated
		n.Title = "Note created"
		n.Message = fmt.Sprintf("Created %q", m.Target)
		if m.Note != nil {
			n.Metadata["note_id"] = m.Note.ID
		}
	}
	return n
}

// NotificationManager is the interface for managing notifications
type NotificationManager interface {
	Send(n Notification) error
	SendAsync(n Notification)
	Close() error
	ChannelCount() int
}

// NotificationChannel is the interface for a notification channel
type NotificationChannel interface {
	Send(n Notification) error
	Close() error
}

// Config holds the notification configuration
type Config struct {
	Enabled         bool
	OSNotification  OSNotificationConfig
	LogNotification LogNotificationConfig
}

// OSNotificationConfig holds OS notification configuration
type OSNotificationConfig struct {
	Enabled   bool
	OnSuccess bool
	OnFailure bool
}

// LogNotificationConfig holds log notification configuration
type LogNotificationConfig struct {
	Enabled   bool
	Path      string
	MaxSizeMB int
}

// CommandExecutor is the interface for executing system commands
type CommandExecutor interface {
	Execute(cmd string, args ...string) error
}

// MockCommandExecutor is a mock implementation of CommandExecutor for testing
type MockCommandExecutor struct {
	ExecuteFunc func(cmd string, args ...string) error
}

// Execute implements CommandExecutor
func (m *MockCommandExecutor) Execute(cmd string, args ...string) error {
	if m.ExecuteFunc != nil {
		return m.ExecuteFunc(cmd, args...)
	}
	return nil
}

// Option is a functional option for configuring notification channels
type Option func(interface{})

// WithCommandExecutor sets a custom command executor
func WithCommandExecutor(executor CommandExecutor) Option {
	return func(c interface{}) {
		if ch, ok := c.(*osNotificationChannel); ok {
			ch.executor = executor
		}
		if mgr, ok := c.(*manager); ok {
			mgr.commandExecutor = executor
		}
	}
}

// WithPlatform sets the platform for OS notifications
func WithPlatform(platform string) Option {
	return func(c interface{}) {
		if ch, ok := c.(*osNotificationChannel); ok {
			ch.platform = platform
		}
	}
}
