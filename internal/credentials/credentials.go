// Package credentials stores and resolves the NoteHub API token using the
// OS-native keyring with fallback to the NOTEHUB_TOKEN environment variable.
package credentials

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// ServiceName is the keyring service the token is stored under.
const ServiceName = "notehub-api"

// DefaultAccount is the keyring account used when none is given.
const DefaultAccount = "default"

// EnvToken is the environment variable read when the keyring has no token.
const EnvToken = "NOTEHUB_TOKEN"

// Source indicates where credentials were retrieved from
type Source string

const (
	SourceKeyring     Source = "keyring"
	SourceEnvironment Source = "environment"
	SourceNone        Source = "none"
)

// CredentialInfo contains credential information returned by Get()
type CredentialInfo struct {
	Source  Source // Where the token came from
	Account string // Keyring account
	Token   string // Bearer token (never printed)
	Found   bool   // Whether a token was found
}

// JSON serializes the credential info to JSON (token excluded for security)
func (c *CredentialInfo) JSON() ([]byte, error) {
	output := struct {
		Service string `json:"service"`
		Account string `json:"account"`
		Source  string `json:"source"`
		Found   bool   `json:"found"`
	}{
		Service: ServiceName,
		Account: c.Account,
		Source:  string(c.Source),
		Found:   c.Found,
	}
	return json.Marshal(output)
}

// Keyring is the interface for keyring operations
type Keyring interface {
	Set(service, account, secret string) error
	Get(service, account string) (string, error)
	Delete(service, account string) error
}

// Manager handles credential operations
type Manager struct {
	keyring Keyring
	getenv  func(string) string
}

// ManagerOption is a functional option for Manager
type ManagerOption func(*Manager)

// WithKeyring sets a custom keyring implementation
func WithKeyring(k Keyring) ManagerOption {
	return func(m *Manager) {
		m.keyring = k
	}
}

// WithoutKeyring disables the OS keyring; only the environment is consulted
func WithoutKeyring() ManagerOption {
	return func(m *Manager) {
		m.keyring = unavailableKeyring{}
	}
}

// WithGetenv replaces os.Getenv, for tests
func WithGetenv(getenv func(string) string) ManagerOption {
	return func(m *Manager) {
		m.getenv = getenv
	}
}

// NewManager creates a new credential manager
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		keyring: &systemKeyring{},
		getenv:  os.Getenv,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// normalizeAccount trims the account and applies the default
func normalizeAccount(account string) string {
	account = strings.TrimSpace(account)
	if account == "" {
		return DefaultAccount
	}
	return account
}

// Set stores the token in the keyring
func (m *Manager) Set(ctx context.Context, account, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("token must not be empty")
	}
	return m.keyring.Set(ServiceName, normalizeAccount(account), token)
}

// Get retrieves the token from available sources (keyring first, then env vars).
// A missing token is reported through Found, not as an error.
func (m *Manager) Get(ctx context.Context, account string) (*CredentialInfo, error) {
	account = normalizeAccount(account)

	// Priority 1: Try keyring
	token, err := m.keyring.Get(ServiceName, account)
	if err == nil && token != "" {
		return &CredentialInfo{
			Source:  SourceKeyring,
			Account: account,
			Token:   token,
			Found:   true,
		}, nil
	}

	// Priority 2: Try environment variables
	if envToken := strings.TrimSpace(m.getenv(EnvToken)); envToken != "" {
		return &CredentialInfo{
			Source:  SourceEnvironment,
			Account: account,
			Token:   envToken,
			Found:   true,
		}, nil
	}

	return &CredentialInfo{
		Source:  SourceNone,
		Account: account,
		Found:   false,
	}, nil
}

// Delete removes the token from the keyring. Deleting a missing token is not an error.
func (m *Manager) Delete(ctx context.Context, account string) error {
	err := m.keyring.Delete(ServiceName, normalizeAccount(account))
	if errors.Is(err, ErrCredentialNotFound) {
		return nil
	}
	return err
}

// PromptToken prompts for the API token. When reader is a terminal the input
// is hidden; otherwise one line is read.
func PromptToken(reader io.Reader, writer io.Writer, account string) (string, error) {
	_, _ = fmt.Fprintf(writer, "Enter NoteHub API token (account: %s): ", normalizeAccount(account))

	if f, ok := reader.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		secret, err := term.ReadPassword(int(f.Fd()))
		_, _ = fmt.Fprintln(writer)
		if err != nil {
			return "", fmt.Errorf("failed to read token: %w", err)
		}
		return strings.TrimSpace(string(secret)), nil
	}

	scanner := bufio.NewScanner(reader)
	if scanner.Scan() {
		return strings.TrimSpace(scanner.Text()), nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", fmt.Errorf("no input received")
}
