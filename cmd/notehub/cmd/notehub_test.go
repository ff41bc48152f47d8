package cmd

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"notehub/internal/credentials"
)

// =============================================================================
// Core CLI Tests
// These tests verify basic CLI functionality: help, version, flags and error
// output. Note commands are tested in notes_test.go against a fake server.
// =============================================================================

// TestHelpFlagCoreCLI verifies that --help displays usage information
func TestHelpFlagCoreCLI(t *testing.T) {
	var stdout, stderr bytes.Buffer

	exitCode := Execute([]string{"--help"}, &stdout, &stderr, nil)

	if exitCode != 0 {
		t.Fatalf("expected exit code 0, got %d: %s", exitCode, stderr.String())
	}

	output := stdout.String()
	for _, want := range []string{"notehub", "Usage:", "list", "create", "delete", "tui"} {
		if !strings.Contains(output, want) {
			t.Errorf("help output should contain %q, got: %s", want, output)
		}
	}
}

// TestVersionFlagCoreCLI verifies that --version displays version string
func TestVersionFlagCoreCLI(t *testing.T) {
	var stdout, stderr bytes.Buffer

	exitCode := Execute([]string{"--version"}, &stdout, &stderr, nil)

	if exitCode != 0 {
		t.Fatalf("expected exit code 0, got %d: %s", exitCode, stderr.String())
	}
	if !strings.Contains(stdout.String(), "notehub version dev") {
		t.Errorf("unexpected version output: %s", stdout.String())
	}
}

// TestVersionCommand verifies that 'notehub version' shows build information
func TestVersionCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer

	exitCode := Execute([]string{"version"}, &stdout, &stderr, nil)

	if exitCode != 0 {
		t.Fatalf("expected exit code 0, got %d: %s", exitCode, stderr.String())
	}
	output := stdout.String()
	for _, want := range []string{"Version:", "Commit:", "Built:"} {
		if !strings.Contains(output, want) {
			t.Errorf("version output should contain %q, got: %s", want, output)
		}
	}
}

func TestVersionCommandJSON(t *testing.T) {
	var stdout, stderr bytes.Buffer

	exitCode := Execute([]string{"version", "--json"}, &stdout, &stderr, nil)

	if exitCode != 0 {
		t.Fatalf("expected exit code 0, got %d: %s", exitCode, stderr.String())
	}
	var out map[string]string
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, stdout.String())
	}
	if out["version"] != Version {
		t.Errorf("version = %q, want %q", out["version"], Version)
	}
}

// TestUnknownCommand verifies unknown subcommands fail with an error
func TestUnknownCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer

	exitCode := Execute([]string{"frobnicate"}, &stdout, &stderr, &Config{NoPrompt: true})

	if exitCode != 1 {
		t.Fatalf("expected exit code 1, got %d", exitCode)
	}
	if !strings.Contains(stderr.String(), "Error:") {
		t.Errorf("stderr should contain 'Error:', got: %s", stderr.String())
	}
	if strings.TrimSpace(stdout.String()) != ResultError {
		t.Errorf("expected %s result code, got: %s", ResultError, stdout.String())
	}
}

// =============================================================================
// Error output
// =============================================================================

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func noTokenConfig(t *testing.T) *Config {
	t.Setenv("NOTEHUB_BASE_URL", "")
	return &Config{
		ConfigPath: writeConfig(t, "api:\n  base_url: \"http://127.0.0.1:1\"\ncache:\n  snapshot:\n    enabled: false\n"),
		Keyring:    credentials.NewMockKeyring(),
		Getenv:     func(string) string { return "" },
	}
}

// TestMissingTokenSuggestion verifies a missing token explains how to set one
func TestMissingTokenSuggestion(t *testing.T) {
	var stdout, stderr bytes.Buffer

	exitCode := Execute([]string{"list"}, &stdout, &stderr, noTokenConfig(t))

	if exitCode != 1 {
		t.Fatalf("expected exit code 1, got %d", exitCode)
	}
	output := stderr.String()
	if !strings.Contains(output, "no API token found") {
		t.Errorf("expected missing token error, got: %s", output)
	}
	if !strings.Contains(output, "Suggestion: Run 'notehub credentials set'") {
		t.Errorf("expected suggestion, got: %s", output)
	}
}

// TestErrorJSON verifies --json errors are a single JSON object on stdout
func TestErrorJSON(t *testing.T) {
	var stdout, stderr bytes.Buffer

	exitCode := Execute([]string{"list", "--json"}, &stdout, &stderr, noTokenConfig(t))

	if exitCode != 1 {
		t.Fatalf("expected exit code 1, got %d", exitCode)
	}
	var resp errorResponse
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, stdout.String())
	}
	if resp.Result != ResultError || resp.Code != 1 {
		t.Errorf("unexpected response: %+v", resp)
	}
	if !strings.Contains(resp.Error, "no API token found") {
		t.Errorf("unexpected error: %q", resp.Error)
	}
	if resp.Suggestion == "" {
		t.Error("expected a suggestion in the JSON error")
	}
	if stderr.Len() != 0 {
		t.Errorf("stderr should be empty in JSON mode, got: %s", stderr.String())
	}
}

// TestInvalidPage verifies --page below 1 is rejected before any request
func TestInvalidPage(t *testing.T) {
	var stdout, stderr bytes.Buffer

	exitCode := Execute([]string{"list", "--page", "0"}, &stdout, &stderr, noTokenConfig(t))

	if exitCode != 1 {
		t.Fatalf("expected exit code 1, got %d", exitCode)
	}
	if !strings.Contains(stderr.String(), "page must be at least 1") {
		t.Errorf("unexpected error: %s", stderr.String())
	}
}

// =============================================================================
// config
// =============================================================================

func TestConfigValidateRejectsBadValues(t *testing.T) {
	t.Setenv("NOTEHUB_BASE_URL", "")
	cfg := &Config{ConfigPath: writeConfig(t, "search:\n  debounce: \"soon\"\n")}
	var stdout, stderr bytes.Buffer

	exitCode := Execute([]string{"config", "validate"}, &stdout, &stderr, cfg)

	if exitCode != 1 {
		t.Fatalf("expected exit code 1, got %d", exitCode)
	}
	if !strings.Contains(stderr.String(), "search.debounce") {
		t.Errorf("error should name the bad key, got: %s", stderr.String())
	}
}

func TestConfigFlagOverridesPath(t *testing.T) {
	t.Setenv("NOTEHUB_BASE_URL", "")
	path := writeConfig(t, "api:\n  per_page: 7\n")
	var stdout, stderr bytes.Buffer

	exitCode := Execute([]string{"config", "get", "api.per_page", "--config", path}, &stdout, &stderr, &Config{ConfigPath: "/nonexistent/config.yaml"})

	if exitCode != 0 {
		t.Fatalf("expected exit code 0, got %d: %s", exitCode, stderr.String())
	}
	if strings.TrimSpace(stdout.String()) != "7" {
		t.Errorf("expected 7, got %q", stdout.String())
	}
}

func TestConfigGetUnknownKey(t *testing.T) {
	t.Setenv("NOTEHUB_BASE_URL", "")
	cfg := &Config{ConfigPath: writeConfig(t, "api:\n  per_page: 7\n")}
	var stdout, stderr bytes.Buffer

	exitCode := Execute([]string{"config", "get", "api.nope"}, &stdout, &stderr, cfg)

	if exitCode != 1 {
		t.Fatalf("expected exit code 1, got %d", exitCode)
	}
	if !strings.Contains(stderr.String(), "Known keys:") || !strings.Contains(stderr.String(), "api.per_page") {
		t.Errorf("expected the known keys in the suggestion, got: %s", stderr.String())
	}
}

func TestConfigPathCreatesNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	var stdout, stderr bytes.Buffer

	exitCode := Execute([]string{"config", "path"}, &stdout, &stderr, &Config{ConfigPath: path})

	if exitCode != 0 {
		t.Fatalf("expected exit code 0, got %d: %s", exitCode, stderr.String())
	}
	if strings.TrimSpace(stdout.String()) != path {
		t.Errorf("expected %s, got %q", path, stdout.String())
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("config path should not write the sample config")
	}
}

// =============================================================================
// helpers
// =============================================================================

func TestContainsJSONFlag(t *testing.T) {
	if !containsJSONFlag([]string{"list", "--json"}) {
		t.Error("expected --json to be found")
	}
	if containsJSONFlag([]string{"list", "--search", "json"}) {
		t.Error("a search for 'json' is not the --json flag")
	}
}

// TestLineReaderSharesInput verifies two scanners over one lineReader each
// see their own line
func TestLineReaderSharesInput(t *testing.T) {
	r := &lineReader{r: bufio.NewReader(strings.NewReader("first\nsecond\n"))}

	s1 := bufio.NewScanner(r)
	if !s1.Scan() || s1.Text() != "first" {
		t.Fatalf("first scanner got %q", s1.Text())
	}
	s2 := bufio.NewScanner(r)
	if !s2.Scan() || s2.Text() != "second" {
		t.Fatalf("second scanner got %q", s2.Text())
	}

	n, err := r.Read(make([]byte, 8))
	if n != 0 || err != io.EOF {
		t.Errorf("expected EOF, got n=%d err=%v", n, err)
	}
}
