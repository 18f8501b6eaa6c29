package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Errors returned by token stores
var (
	ErrTokenNotFound    = errors.New("token not found")
	ErrInvalidToken     = errors.New("invalid token")
	ErrStoreUnavailable = errors.New("token store unavailable")
)

// Token is a stored VK access token. Name distinguishes multiple profiles;
// most setups use a single "default" profile.
type Token struct {
	Name         string    `json:"name"`
	Value        string    `json:"value"`
	LastModified time.Time `json:"last_modified"`
}

// TokenStore is the interface for storing and retrieving access tokens
type TokenStore interface {
	// Store saves a token
	Store(token *Token) error

	// Retrieve gets the token for a profile name
	Retrieve(name string) (*Token, error)

	// List returns all stored tokens
	List() ([]*Token, error)

	// Delete removes the token for a profile name
	Delete(name string) error

	// Exists checks if a token exists for a profile name
	Exists(name string) bool
}

// DefaultProfile is the profile name used when none is given
const DefaultProfile = "default"

// Manager handles token storage with fallback mechanisms
type Manager struct {
	stores []TokenStore
}

// NewManager creates a new token manager with appropriate storage backends
func NewManager() (*Manager, error) {
	var stores []TokenStore

	// Try keyring first (system keychain)
	keyringStore, err := NewKeyringStore()
	if err == nil {
		stores = append(stores, keyringStore)
	}

	// Always add encrypted file store as fallback
	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	encryptedStore, err := NewEncryptedFileStore(filepath.Join(configDir, "tokens.enc"))
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, encryptedStore)

	// Add environment store as last resort
	stores = append(stores, NewEnvironmentStore())

	return &Manager{stores: stores}, nil
}

// Store saves a token using the first available store
func (m *Manager) Store(token *Token) error {
	if token == nil || token.Value == "" {
		return ErrInvalidToken
	}
	if token.Name == "" {
		token.Name = DefaultProfile
	}

	token.LastModified = time.Now()

	var lastErr error
	for _, store := range m.stores {
		if err := store.Store(token); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}

	return fmt.Errorf("failed to store token in any backend: %w", lastErr)
}

// Retrieve gets a token, trying each store in order
func (m *Manager) Retrieve(name string) (*Token, error) {
	if name == "" {
		name = DefaultProfile
	}

	for _, store := range m.stores {
		if token, err := store.Retrieve(name); err == nil {
			return token, nil
		}
	}

	return nil, ErrTokenNotFound
}

// List returns tokens from all stores, deduplicated by profile name
func (m *Manager) List() ([]*Token, error) {
	seen := make(map[string]bool)
	var tokens []*Token

	for _, store := range m.stores {
		storeTokens, err := store.List()
		if err != nil {
			continue
		}
		for _, token := range storeTokens {
			if !seen[token.Name] {
				seen[token.Name] = true
				tokens = append(tokens, token)
			}
		}
	}

	return tokens, nil
}

// Delete removes a token from every store that has it
func (m *Manager) Delete(name string) error {
	if name == "" {
		name = DefaultProfile
	}

	deleted := false
	for _, store := range m.stores {
		if err := store.Delete(name); err == nil {
			deleted = true
		}
	}

	if !deleted {
		return ErrTokenNotFound
	}
	return nil
}

// Exists checks whether any store has a token for the profile
func (m *Manager) Exists(name string) bool {
	if name == "" {
		name = DefaultProfile
	}

	for _, store := range m.stores {
		if store.Exists(name) {
			return true
		}
	}
	return false
}

// getConfigDir returns the directory for vkharvest configuration files
func getConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	configDir := filepath.Join(home, ".config", "vkharvest")
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return configDir, nil
}
