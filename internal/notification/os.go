package notification

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// appName groups NoteHub notifications in the desktop's notification center.
const appName = "NoteHub"

// desktopCommand is one invocation of the platform's notifier.
type desktopCommand struct {
	name string
	args []string
}

// osNotificationChannel shows mutation outcomes as desktop notifications.
type osNotificationChannel struct {
	config   *OSNotificationConfig
	executor CommandExecutor
	platform string
}

// NewOSNotificationChannel creates a desktop notification channel for the
// running platform.
func NewOSNotificationChannel(cfg *OSNotificationConfig, opts ...Option) NotificationChannel {
	ch := &osNotificationChannel{
		config:   cfg,
		platform: runtime.GOOS,
	}
	for _, opt := range opts {
		opt(ch)
	}
	if ch.executor == nil {
		ch.executor = execCommandExecutor{}
	}
	return ch
}

// Send shows n unless its outcome is switched off in the config.
func (c *osNotificationChannel) Send(n Notification) error {
	if !c.wants(n) {
		return nil
	}
	cmd, err := desktopCommandFor(c.platform, n)
	if err != nil {
		return err
	}
	return c.executor.Execute(cmd.name, cmd.args...)
}

// wants filters by outcome. Test notifications always go through.
func (c *osNotificationChannel) wants(n Notification) bool {
	switch {
	case n.Type == NotifyTest:
		return true
	case n.IsFailure():
		return c.config.OnFailure
	default:
		return c.config.OnSuccess
	}
}

func (c *osNotificationChannel) Close() error {
	return nil
}

// desktopCommandFor builds the notifier call for platform. Failed mutations
// are raised with higher urgency so they are not missed.
func desktopCommandFor(platform string, n Notification) (desktopCommand, error) {
	title := n.Title
	if title == "" {
		title = appName
	}
	failed := n.IsFailure()

	switch platform {
	case "linux", "freebsd", "openbsd", "netbsd":
		urgency := "normal"
		if failed {
			urgency = "critical"
		}
		return desktopCommand{
			name: "notify-send",
			args: []string{"--app-name=" + appName, "--urgency=" + urgency, title, n.Message},
		}, nil

	case "darwin":
		script := fmt.Sprintf(`display notification %s with title %s`,
			appleScriptString(n.Message), appleScriptString(title))
		if failed {
			script += ` sound name "Basso"`
		}
		return desktopCommand{name: "osascript", args: []string{"-e", script}}, nil

	case "windows":
		icon := "Information"
		if failed {
			icon = "Error"
		}
		script := strings.Join([]string{
			"Add-Type -AssemblyName System.Windows.Forms",
			"$n = New-Object System.Windows.Forms.NotifyIcon",
			"$n.Icon = [System.Drawing.SystemIcons]::" + icon,
			"$n.Visible = $true",
			fmt.Sprintf("$n.ShowBalloonTip(5000, %s, %s, '%s')",
				powerShellString(title), powerShellString(n.Message), icon),
		}, "; ")
		return desktopCommand{name: "powershell", args: []string{"-NoProfile", "-Command", script}}, nil
	}
	return desktopCommand{}, fmt.Errorf("desktop notifications are not supported on %s", platform)
}

// appleScriptString quotes s as an AppleScript string literal.
func appleScriptString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

// powerShellString quotes s as a single-quoted PowerShell literal, where
// nothing expands and a quote is written twice.
func powerShellString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// execCommandExecutor runs the notifier and reports its output on failure.
type execCommandExecutor struct{}

func (execCommandExecutor) Execute(name string, args ...string) error {
	out, err := exec.Command(name, args...).CombinedOutput()
	if err != nil {
		if msg := strings.TrimSpace(string(out)); msg != "" {
			return fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}
