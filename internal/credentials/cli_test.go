package credentials

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

// TestCredentialsSetCLI tests the CLI command: notehub credentials set
func TestCredentialsSetCLI(t *testing.T) {
	mockKeyring := NewMockKeyring()
	manager := NewManager(WithKeyring(mockKeyring), WithGetenv(envMap(nil)))

	stdin := bytes.NewBufferString("my-api-token\n")
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}

	handler := NewCLIHandler(manager, stdin, stdout, stderr)
	if err := handler.Set(""); err != nil {
		t.Fatalf("Set command failed: %v", err)
	}

	if !strings.Contains(stdout.String(), "Token stored") {
		t.Errorf("Expected success message, got: %s", stdout.String())
	}

	info, _ := manager.Get(context.TODO(), "")
	if !info.Found || info.Token != "my-api-token" {
		t.Errorf("Token should be stored, got %+v", info)
	}
}

// TestCredentialsSetKeyringUnavailableCLI tests the env var guidance
func TestCredentialsSetKeyringUnavailableCLI(t *testing.T) {
	manager := NewManager(WithoutKeyring())
	handler := NewCLIHandler(manager, bytes.NewBufferString("tok\n"), &bytes.Buffer{}, &bytes.Buffer{})

	err := handler.Set("")
	if err == nil {
		t.Fatal("expected error when keyring is unavailable")
	}
	if !strings.Contains(err.Error(), EnvToken) {
		t.Errorf("expected guidance mentioning %s, got: %v", EnvToken, err)
	}
}

// TestCredentialsGetCLI tests the CLI command: notehub credentials get
func TestCredentialsGetCLI(t *testing.T) {
	mockKeyring := NewMockKeyring()
	_ = mockKeyring.Set(ServiceName, DefaultAccount, "stored-token")
	manager := NewManager(WithKeyring(mockKeyring), WithGetenv(envMap(nil)))

	stdout := &bytes.Buffer{}
	handler := NewCLIHandler(manager, nil, stdout, &bytes.Buffer{})
	if err := handler.Get("", false); err != nil {
		t.Fatalf("Get command failed: %v", err)
	}

	output := stdout.String()
	if !strings.Contains(output, "Source: keyring") {
		t.Errorf("Expected source info, got: %s", output)
	}
	if strings.Contains(output, "stored-token") {
		t.Error("Token should not appear in output")
	}
	if !strings.Contains(output, "********") {
		t.Errorf("Expected masked token in output, got: %s", output)
	}
}

// TestCredentialsGetJSONCLI tests the CLI command: notehub --json credentials get
func TestCredentialsGetJSONCLI(t *testing.T) {
	manager := NewManager(WithKeyring(NewMockKeyring()), WithGetenv(envMap(map[string]string{EnvToken: "env-token"})))

	stdout := &bytes.Buffer{}
	handler := NewCLIHandler(manager, nil, stdout, &bytes.Buffer{})
	if err := handler.Get("", true); err != nil {
		t.Fatalf("Get command failed: %v", err)
	}

	var result map[string]interface{}
	if err := json.Unmarshal(stdout.Bytes(), &result); err != nil {
		t.Fatalf("Invalid JSON output: %v\n%s", err, stdout.String())
	}
	if result["source"] != "environment" || result["found"] != true {
		t.Errorf("unexpected JSON: %v", result)
	}
	if strings.Contains(stdout.String(), "env-token") {
		t.Error("Token should not appear in JSON output")
	}
}

// TestCredentialsGetNotFoundCLI tests the not-found message
func TestCredentialsGetNotFoundCLI(t *testing.T) {
	manager := NewManager(WithKeyring(NewMockKeyring()), WithGetenv(envMap(nil)))

	stdout := &bytes.Buffer{}
	handler := NewCLIHandler(manager, nil, stdout, &bytes.Buffer{})
	if err := handler.Get("", false); err != nil {
		t.Fatalf("Get command failed: %v", err)
	}

	output := stdout.String()
	if !strings.Contains(output, "No token found") {
		t.Errorf("Expected not found message, got: %s", output)
	}
	if !strings.Contains(output, "notehub credentials set") {
		t.Errorf("Expected suggestion, got: %s", output)
	}
}

// TestCredentialsDeleteCLI tests the CLI command: notehub credentials delete
func TestCredentialsDeleteCLI(t *testing.T) {
	mockKeyring := NewMockKeyring()
	_ = mockKeyring.Set(ServiceName, DefaultAccount, "stored-token")
	manager := NewManager(WithKeyring(mockKeyring), WithGetenv(envMap(nil)))

	stdout := &bytes.Buffer{}
	handler := NewCLIHandler(manager, nil, stdout, &bytes.Buffer{})
	if err := handler.Delete(""); err != nil {
		t.Fatalf("Delete command failed: %v", err)
	}
	if !strings.Contains(stdout.String(), "Token removed") {
		t.Errorf("Expected removal message, got: %s", stdout.String())
	}

	info, _ := manager.Get(context.TODO(), "")
	if info.Found {
		t.Error("Token should be deleted")
	}
}
