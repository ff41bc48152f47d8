package notification

import (
	"errors"

	"notehub/internal/utils"
)

// manager implements NotificationManager
type manager struct {
	channels        []NotificationChannel
	enabled         bool
	commandExecutor CommandExecutor
}

// NewManager creates a new NotificationManager based on configuration
func NewManager(cfg *Config, opts ...Option) (NotificationManager, error) {
	m := &manager{
		channels: []NotificationChannel{},
		enabled:  cfg.Enabled,
	}

	// Apply options first to get command executor
	for _, opt := range opts {
		opt(m)
	}

	if !cfg.Enabled {
		return m, nil
	}

	if cfg.OSNotification.Enabled {
		var osOpts []Option
		if m.commandExecutor != nil {
			osOpts = append(osOpts, WithCommandExecutor(m.commandExecutor))
		}
		m.channels = append(m.channels, NewOSNotificationChannel(&cfg.OSNotification, osOpts...))
	}

	if cfg.LogNotification.Enabled {
		if cfg.LogNotification.Path == "" {
			return nil, errors.New("notification log path is required")
		}
		m.channels = append(m.channels, NewLogNotificationChannel(&cfg.LogNotification))
	}

	return m, nil
}

// Send dispatches notification to all enabled channels
func (m *manager) Send(n Notification) error {
	if !m.enabled {
		return nil
	}

	var errs []error
	for _, ch := range m.channels {
		if err := ch.Send(n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SendAsync dispatches notification without blocking
func (m *manager) SendAsync(n Notification) {
	go func() {
		if err := m.Send(n); err != nil {
			utils.Debugf("notification: send failed: %v", err)
		}
	}()
}

// Close cleans up resources
func (m *manager) Close() error {
	var errs []error
	for _, ch := range m.channels {
		if err := ch.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ChannelCount returns the number of active channels
func (m *manager) ChannelCount() int {
	return len(m.channels)
}
