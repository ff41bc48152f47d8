package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// =============================================================================
// Sample Config Tests
// =============================================================================

// TestSampleConfigEmbedded verifies config.sample.yaml is embedded in binary via go:embed
func TestSampleConfigEmbedded(t *testing.T) {
	content := GetSampleConfig()
	if content == "" {
		t.Fatal("expected embedded sample config to have content, got empty string")
	}

	for _, section := range []string{"api:", "cache:", "search:", "logging:", "notifications:"} {
		if !strings.Contains(content, section) {
			t.Errorf("expected sample config to contain %q section", section)
		}
	}
}

// TestSampleConfigParses verifies the sample decodes to the same values as DefaultConfig
func TestSampleConfigParses(t *testing.T) {
	t.Setenv(EnvBaseURL, "")
	t.Setenv("XDG_CACHE_HOME", t.TempDir())

	cfg, err := Parse([]byte(GetSampleConfig()))
	if err != nil {
		t.Fatalf("Parse(sample) error = %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("sample config does not validate: %v", err)
	}

	def := DefaultConfig()
	if cfg.API.BaseURL != def.API.BaseURL {
		t.Errorf("base_url = %q, want %q", cfg.API.BaseURL, def.API.BaseURL)
	}
	if cfg.GetPerPage() != def.GetPerPage() {
		t.Errorf("per_page = %d, want %d", cfg.GetPerPage(), def.GetPerPage())
	}
	if cfg.GetStaleTimeDuration() != def.GetStaleTimeDuration() {
		t.Errorf("stale_time = %v, want %v", cfg.GetStaleTimeDuration(), def.GetStaleTimeDuration())
	}
	if cfg.GetDebounceDuration() != def.GetDebounceDuration() {
		t.Errorf("debounce = %v, want %v", cfg.GetDebounceDuration(), def.GetDebounceDuration())
	}
	if cfg.GetSnapshotPath() != def.GetSnapshotPath() {
		t.Errorf("snapshot path = %q, want %q", cfg.GetSnapshotPath(), def.GetSnapshotPath())
	}
	if cfg.API.RateLimit.Enabled {
		t.Error("rate limit retries should be disabled in the sample")
	}
}

// TestSampleConfigCopyOnFirstRun verifies first run copies sample to ~/.config/notehub/config.yaml
func TestSampleConfigCopyOnFirstRun(t *testing.T) {
	tmpDir := t.TempDir()
	configDir := filepath.Join(tmpDir, "config")

	t.Setenv("XDG_CONFIG_HOME", configDir)
	t.Setenv("XDG_CACHE_HOME", filepath.Join(tmpDir, "cache"))
	t.Setenv("HOME", tmpDir)

	if _, err := Load(""); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	configPath := filepath.Join(configDir, "notehub", "config.yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("failed to read created config file: %v", err)
	}
	if string(data) != GetSampleConfig() {
		t.Error("created config should be a verbatim copy of the sample")
	}
	if !strings.Contains(string(data), "# notehub configuration") {
		t.Error("created config should keep the sample's comments")
	}
}

// TestSampleConfigNotOverwritten verifies an existing config is left alone
func TestSampleConfigNotOverwritten(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	custom := "output_format: json\n"
	if err := os.WriteFile(configPath, []byte(custom), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	if _, err := Load(configPath); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("failed to read config: %v", err)
	}
	if string(data) != custom {
		t.Errorf("existing config was modified: %q", string(data))
	}
}
