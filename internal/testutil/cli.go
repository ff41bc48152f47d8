// Package testutil provides shared test utilities for CLI testing across packages.
// Each CLITest runs against its own FakeServer with an isolated config,
// snapshot database and notification log.
package testutil

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"notehub/cmd/notehub/cmd"
	"notehub/internal/config"
	"notehub/internal/credentials"
)

// CLITest provides a test helper for running CLI commands in isolation.
type CLITest struct {
	t          *testing.T
	cfg        *cmd.Config
	tmpDir     string
	configPath string

	Server  *FakeServer
	Keyring *credentials.MockKeyring
}

// NewCLITest creates a CLI test helper with a token in the keyring, a running
// FakeServer, and the page snapshot and notification log under a temp dir.
func NewCLITest(t *testing.T) *CLITest {
	t.Helper()

	c := newCLITest(t)
	if err := c.Keyring.Set(credentials.ServiceName, credentials.DefaultAccount, TestToken); err != nil {
		t.Fatalf("failed to store test token: %v", err)
	}
	return c
}

// NewCLITestWithoutToken creates a CLI test helper with no token anywhere.
func NewCLITestWithoutToken(t *testing.T) *CLITest {
	t.Helper()
	return newCLITest(t)
}

func newCLITest(t *testing.T) *CLITest {
	t.Setenv(config.EnvBaseURL, "")
	tmpDir := t.TempDir()
	c := &CLITest{
		t:          t,
		tmpDir:     tmpDir,
		configPath: filepath.Join(tmpDir, "config.yaml"),
		Server:     NewFakeServer(t),
		Keyring:    credentials.NewMockKeyring(),
	}
	c.SetFullConfig(c.DefaultConfigYAML())

	c.cfg = &cmd.Config{
		NoPrompt:   true,
		ConfigPath: c.configPath,
		Keyring:    c.Keyring,
		Getenv:     func(string) string { return "" },
		Stdin:      strings.NewReader(""),
	}
	return c
}

// DefaultConfigYAML returns the config every CLITest starts with.
func (c *CLITest) DefaultConfigYAML() string {
	return fmt.Sprintf(`api:
  base_url: %q
  per_page: 3
  timeout: "5s"
cache:
  stale_time: "30s"
  snapshot:
    enabled: true
    path: %q
logging:
  background_enabled: false
notifications:
  log:
    enabled: true
    path: %q
`, c.Server.URL, c.SnapshotPath(), c.NotificationLogPath())
}

// Config returns the test configuration.
func (c *CLITest) Config() *cmd.Config {
	return c.cfg
}

// TmpDir returns the temporary directory for the test.
func (c *CLITest) TmpDir() string {
	return c.tmpDir
}

// ConfigPath returns the path to the config file.
func (c *CLITest) ConfigPath() string {
	return c.configPath
}

// SnapshotPath returns the path of the page snapshot database.
func (c *CLITest) SnapshotPath() string {
	return filepath.Join(c.tmpDir, "cache", "pages.db")
}

// NotificationLogPath returns the path of the notification log.
func (c *CLITest) NotificationLogPath() string {
	return filepath.Join(c.tmpDir, "notifications.log")
}

// SetFullConfig replaces the entire config file with the given YAML content.
func (c *CLITest) SetFullConfig(yamlContent string) {
	c.t.Helper()
	if err := os.WriteFile(c.configPath, []byte(yamlContent), 0644); err != nil {
		c.t.Fatalf("failed to write config file: %v", err)
	}
}

// SetStdin sets the input read by interactive prompts and enables them.
func (c *CLITest) SetStdin(input string) {
	c.cfg.Stdin = strings.NewReader(input)
	c.cfg.NoPrompt = false
}

// Execute runs a CLI command with the given arguments and returns stdout, stderr, and exit code.
func (c *CLITest) Execute(args ...string) (stdout, stderr string, exitCode int) {
	c.t.Helper()

	// Each run gets a fresh copy so one command's flags do not leak into the next
	cfg := *c.cfg
	var stdoutBuf, stderrBuf bytes.Buffer
	exitCode = cmd.Execute(args, &stdoutBuf, &stderrBuf, &cfg)
	return stdoutBuf.String(), stderrBuf.String(), exitCode
}

// MustExecute runs a CLI command and fails the test if exit code is non-zero.
func (c *CLITest) MustExecute(args ...string) string {
	c.t.Helper()

	stdout, stderr, exitCode := c.Execute(args...)
	if exitCode != 0 {
		c.t.Fatalf("expected exit code 0, got %d: stdout=%s stderr=%s", exitCode, stdout, stderr)
	}
	return stdout
}

// ExecuteAndFail runs a CLI command and fails the test if exit code is zero.
func (c *CLITest) ExecuteAndFail(args ...string) (stdout, stderr string) {
	c.t.Helper()

	stdout, stderr, exitCode := c.Execute(args...)
	if exitCode == 0 {
		c.t.Fatalf("expected non-zero exit code, got 0: stdout=%s", stdout)
	}
	return stdout, stderr
}

// AssertContains fails the test if output doesn't contain expected string.
func AssertContains(t *testing.T, output, expected string) {
	t.Helper()
	if !strings.Contains(output, expected) {
		t.Errorf("expected output to contain %q, got:\n%s", expected, output)
	}
}

// AssertNotContains fails the test if output contains unexpected string.
func AssertNotContains(t *testing.T, output, unexpected string) {
	t.Helper()
	if strings.Contains(output, unexpected) {
		t.Errorf("expected output NOT to contain %q, got:\n%s", unexpected, output)
	}
}

// AssertExitCode fails the test if exit code doesn't match expected.
func AssertExitCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("expected exit code %d, got %d", want, got)
	}
}

// AssertResultCode verifies that the output ends with the expected result code.
func AssertResultCode(t *testing.T, output, expectedCode string) {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(output), "\n")
	lastLine := strings.TrimSpace(lines[len(lines)-1])
	if lastLine != expectedCode {
		t.Errorf("expected result code %q, got %q\nFull output:\n%s", expectedCode, lastLine, output)
	}
}

// Result code constants for convenience.
const (
	ResultActionCompleted = cmd.ResultActionCompleted
	ResultInfoOnly        = cmd.ResultInfoOnly
	ResultError           = cmd.ResultError
)
