package credentials

import (
	"errors"
	"fmt"
	"sync"

	"github.com/zalando/go-keyring"
)

// ErrKeyringNotAvailable is returned when the OS keyring cannot be reached,
// for example on a headless machine without a Secret Service.
var ErrKeyringNotAvailable = errors.New("system keyring not available")

// ErrCredentialNotFound is returned when the keyring has no entry for the account.
var ErrCredentialNotFound = errors.New("credential not found")

// MockKeyring is a test implementation of the Keyring interface
type MockKeyring struct {
	mu    sync.RWMutex
	store map[string]map[string]string // service -> account -> secret
}

// NewMockKeyring creates a new mock keyring for testing
func NewMockKeyring() *MockKeyring {
	return &MockKeyring{
		store: make(map[string]map[string]string),
	}
}

// Set stores a secret in the mock keyring
func (m *MockKeyring) Set(service, account, secret string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.store[service] == nil {
		m.store[service] = make(map[string]string)
	}
	m.store[service][account] = secret
	return nil
}

// Get retrieves a secret from the mock keyring
func (m *MockKeyring) Get(service, account string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if accounts, ok := m.store[service]; ok {
		if secret, ok := accounts[account]; ok {
			return secret, nil
		}
	}
	return "", fmt.Errorf("%s/%s: %w", service, account, ErrCredentialNotFound)
}

// Delete removes a secret from the mock keyring
func (m *MockKeyring) Delete(service, account string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if accounts, ok := m.store[service]; ok {
		if _, ok := accounts[account]; ok {
			delete(accounts, account)
			return nil
		}
	}
	return fmt.Errorf("%s/%s: %w", service, account, ErrCredentialNotFound)
}

// unavailableKeyring fails every call, standing in for a keyring that cannot be reached
type unavailableKeyring struct{}

func (unavailableKeyring) Set(service, account, secret string) error { return ErrKeyringNotAvailable }
func (unavailableKeyring) Get(service, account string) (string, error) {
	return "", ErrKeyringNotAvailable
}
func (unavailableKeyring) Delete(service, account string) error { return ErrKeyringNotAvailable }

// systemKeyring is the OS keyring (Secret Service, macOS Keychain, Windows Credential Manager)
type systemKeyring struct{}

// Set stores a secret in the system keyring
func (s *systemKeyring) Set(service, account, secret string) error {
	if err := keyring.Set(service, account, secret); err != nil {
		return mapKeyringError(err)
	}
	return nil
}

// Get retrieves a secret from the system keyring
func (s *systemKeyring) Get(service, account string) (string, error) {
	secret, err := keyring.Get(service, account)
	if err != nil {
		return "", mapKeyringError(err)
	}
	return secret, nil
}

// Delete removes a secret from the system keyring
func (s *systemKeyring) Delete(service, account string) error {
	if err := keyring.Delete(service, account); err != nil {
		return mapKeyringError(err)
	}
	return nil
}

// mapKeyringError folds go-keyring errors into ErrCredentialNotFound and ErrKeyringNotAvailable
func mapKeyringError(err error) error {
	if errors.Is(err, keyring.ErrNotFound) {
		return ErrCredentialNotFound
	}
	return fmt.Errorf("%w: %v", ErrKeyringNotAvailable, err)
}
