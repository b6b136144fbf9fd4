// Copyright (c) 2025 The pgquery Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package keychain stores pgquery secrets in the OS credential store: the
// pgAdmin password used by the login flow and the serialized login state.
// Operations are thread-safe. On macOS the native security command is
// preferred; other platforms go through github.com/99designs/keyring.
package keychain

import (
	"errors"
	"runtime"
	"strings"
	"sync"

	"github.com/99designs/keyring"
)

// ServiceName identifies our keychain/credential store namespace.
const ServiceName = "pgquery"

// Keys used for storing secrets in the OS keychain.
const (
	KeyAuthState      = "auth_state"
	keyPasswordPrefix = "pgadmin_password:"
)

// ErrNotFound is returned when no secret is stored under a key.
var ErrNotFound = errors.New("keychain: key not found")

// store is the minimal secret store both backends implement.
type store interface {
	Set(key, value string) error
	Get(key string) (string, error)
	Delete(key string) error
}

// Manager provides thread-safe access to pgquery secrets.
type Manager struct {
	mu    sync.RWMutex
	store store
}

var (
	globalManager *Manager
	globalMu      sync.Mutex
)

// NewManager opens the OS credential store.
func NewManager() (*Manager, error) {
	if runtime.GOOS == "darwin" {
		if b, err := newSecurityBackend(); err == nil {
			return &Manager{store: b}, nil
		}
	}
	ring, err := openRing()
	if err != nil {
		return nil, err
	}
	return NewWithRing(ring), nil
}

// NewWithRing wraps an already opened keyring.
func NewWithRing(ring keyring.Keyring) *Manager {
	return &Manager{store: ringStore{ring: ring}}
}

// GetManager returns the process-wide manager, creating it on first use.
// A failed initialization is retried on the next call.
func GetManager() (*Manager, error) {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalManager != nil {
		return globalManager, nil
	}
	m, err := NewManager()
	if err != nil {
		return nil, err
	}
	globalManager = m
	return m, nil
}

func allowedBackends() []keyring.BackendType {
	switch runtime.GOOS {
	case "darwin":
		return []keyring.BackendType{keyring.KeychainBackend, keyring.PassBackend}
	case "windows":
		return []keyring.BackendType{keyring.WinCredBackend}
	default:
		return []keyring.BackendType{keyring.SecretServiceBackend, keyring.KWalletBackend, keyring.PassBackend}
	}
}

// openRing opens the OS keyring using native platform backends only, never a file fallback.
func openRing() (keyring.Keyring, error) {
	cfg := keyring.Config{
		ServiceName:     ServiceName,
		AllowedBackends: allowedBackends(),
		PassPrefix:      ServiceName,
		WinCredPrefix:   ServiceName,
	}
	ring, err := keyring.Open(cfg)
	if err != nil {
		if runtime.GOOS == "darwin" {
			return nil, errors.New("macOS Keychain unavailable. Install 'pass': brew install pass gnupg && gpg --generate-key && pass init <gpg-key-id>")
		}
		return nil, err
	}
	return ring, nil
}

// PasswordKey is the key the pgAdmin password for email on server is stored under.
func PasswordKey(server, email string) string {
	return keyPasswordPrefix + strings.TrimRight(server, "/") + "|" + strings.ToLower(email)
}

// SavePassword stores the pgAdmin password for email on server.
func (m *Manager) SavePassword(server, email, password string) error {
	if password == "" {
		return errors.New("keychain: empty password")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Set(PasswordKey(server, email), password)
}

// LoadPassword returns the stored password, ErrNotFound when there is none.
func (m *Manager) LoadPassword(server, email string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pw, err := m.store.Get(PasswordKey(server, email))
	if err != nil {
		return "", err
	}
	if pw == "" {
		return "", ErrNotFound
	}
	return pw, nil
}

// DeletePassword removes the stored password. Missing entries are not an error.
func (m *Manager) DeletePassword(server, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return ignoreNotFound(m.store.Delete(PasswordKey(server, email)))
}

// SaveAuthState stores serialized login state.
func (m *Manager) SaveAuthState(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Set(KeyAuthState, string(data))
}

// LoadAuthState returns serialized login state, ErrNotFound when there is none.
func (m *Manager) LoadAuthState() ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, err := m.store.Get(KeyAuthState)
	if err != nil {
		return nil, err
	}
	return []byte(data), nil
}

// ClearAuthState removes the stored login state.
func (m *Manager) ClearAuthState() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return ignoreNotFound(m.store.Delete(KeyAuthState))
}

func ignoreNotFound(err error) error {
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// ringStore adapts a keyring.Keyring to store.
type ringStore struct {
	ring keyring.Keyring
}

func (r ringStore) Set(key, value string) error {
	return r.ring.Set(keyring.Item{Key: key, Data: []byte(value), Label: ServiceName + " " + key})
}

func (r ringStore) Get(key string) (string, error) {
	it, err := r.ring.Get(key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return string(it.Data), nil
}

func (r ringStore) Delete(key string) error {
	err := r.ring.Remove(key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return ErrNotFound
	}
	return err
}
