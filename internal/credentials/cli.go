package credentials

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// CLIHandler handles CLI commands for credential management
type CLIHandler struct {
	manager *Manager
	stdin   io.Reader
	stdout  io.Writer
	stderr  io.Writer
}

// NewCLIHandler creates a new CLI handler for credential commands
func NewCLIHandler(manager *Manager, stdin io.Reader, stdout, stderr io.Writer) *CLIHandler {
	return &CLIHandler{
		manager: manager,
		stdin:   stdin,
		stdout:  stdout,
		stderr:  stderr,
	}
}

// Set prompts for the token and stores it in the keyring
func (h *CLIHandler) Set(account string) error {
	token, err := PromptToken(h.stdin, h.stdout, account)
	if err != nil {
		return fmt.Errorf("failed to read token: %w", err)
	}

	err = h.manager.Set(context.Background(), account, token)
	if err != nil {
		if errors.Is(err, ErrKeyringNotAvailable) {
			return h.keyringNotAvailableError()
		}
		return fmt.Errorf("failed to store token: %w", err)
	}

	_, _ = fmt.Fprintf(h.stdout, "Token stored in system keyring\n")
	return nil
}

// keyringNotAvailableError returns a helpful error message when keyring is not available
func (h *CLIHandler) keyringNotAvailableError() error {
	msg := fmt.Sprintf(`System keyring not available.

Alternative: set the token in the environment instead:
  export %s="your-api-token"

The environment variable is detected automatically.
Run 'notehub credentials get' to verify the token is found.`, EnvToken)

	return errors.New(msg)
}

// Get displays where the token comes from, without printing it
func (h *CLIHandler) Get(account string, jsonOutput bool) error {
	info, err := h.manager.Get(context.Background(), account)
	if err != nil {
		return fmt.Errorf("failed to get token: %w", err)
	}

	if jsonOutput {
		jsonBytes, err := info.JSON()
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(h.stdout, string(jsonBytes))
		return nil
	}

	if !info.Found {
		_, _ = fmt.Fprintf(h.stdout, "No token found for account %s\n", info.Account)
		_, _ = fmt.Fprintf(h.stdout, "Searched:\n")
		_, _ = fmt.Fprintf(h.stdout, "  - System keyring (%s): Not found\n", ServiceName)
		_, _ = fmt.Fprintf(h.stdout, "  - Environment variable %s: Not set\n", EnvToken)
		_, _ = fmt.Fprintf(h.stdout, "\nSuggestion: Run 'notehub credentials set'\n")
		return nil
	}

	_, _ = fmt.Fprintf(h.stdout, "Source: %s\n", info.Source)
	_, _ = fmt.Fprintf(h.stdout, "Account: %s\n", info.Account)
	_, _ = fmt.Fprintf(h.stdout, "Token: ******** (hidden)\n")
	_, _ = fmt.Fprintf(h.stdout, "Status: Available\n")
	return nil
}

// Delete removes the token from the keyring
func (h *CLIHandler) Delete(account string) error {
	if err := h.manager.Delete(context.Background(), account); err != nil {
		if errors.Is(err, ErrKeyringNotAvailable) {
			return h.keyringNotAvailableError()
		}
		return fmt.Errorf("failed to delete token: %w", err)
	}

	_, _ = fmt.Fprintf(h.stdout, "Token removed from system keyring\n")
	return nil
}
