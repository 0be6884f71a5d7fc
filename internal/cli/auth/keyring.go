package auth

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// DefaultKeyringService is the keychain service name entries are filed under
const DefaultKeyringService = "appdeck-cli"

// KeyringStorage persists state securely in the OS keychain/credential manager
type KeyringStorage struct {
	service string
	scope   string
}

// NewKeyringStorage stores entries under service. scope (typically the API
// host) keeps sessions for different backends apart; it may be empty.
func NewKeyringStorage(service, scope string) *KeyringStorage {
	if service == "" {
		service = DefaultKeyringService
	}
	return &KeyringStorage{service: service, scope: scope}
}

// keyringKey returns a unique keychain account name for key
func (k *KeyringStorage) keyringKey(key string) string {
	if k.scope == "" {
		return key
	}
	return fmt.Sprintf("%s@%s", key, k.scope)
}

func (k *KeyringStorage) Load(key string) ([]byte, error) {
	value, err := keyring.Get(k.service, k.keyringKey(key))
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load %s from keyring: %w", key, err)
	}
	return []byte(value), nil
}

func (k *KeyringStorage) Save(key string, data []byte) error {
	if err := keyring.Set(k.service, k.keyringKey(key), string(data)); err != nil {
		return fmt.Errorf("failed to save %s to keyring: %w", key, err)
	}
	return nil
}

func (k *KeyringStorage) Delete(key string) error {
	if err := keyring.Delete(k.service, k.keyringKey(key)); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil // Already deleted
		}
		return fmt.Errorf("failed to delete %s from keyring: %w", key, err)
	}
	return nil
}
