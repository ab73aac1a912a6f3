package store

import (
	"context"
	"errors"

	"github.com/zalando/go-keyring"
)

// KeyringBackend persists credential material in the operating system's
// keychain (macOS Keychain, Windows Credential Manager, Secret Service on
// Linux), scoped under a service name so multiple installs don't collide.
type KeyringBackend struct {
	service string
}

var _ Backend = (*KeyringBackend)(nil)

// NewKeyringBackend creates a keychain-backed Backend scoped to service.
func NewKeyringBackend(service string) *KeyringBackend {
	if service == "" {
		service = "authsync"
	}
	return &KeyringBackend{service: service}
}

func (k *KeyringBackend) GetItem(_ context.Context, key string) (string, error) {
	value, err := keyring.Get(k.service, key)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", errNotFound
		}
		return "", err
	}
	return value, nil
}

func (k *KeyringBackend) SetItem(_ context.Context, key, value string) error {
	return keyring.Set(k.service, key, value)
}

func (k *KeyringBackend) RemoveItem(_ context.Context, key string) error {
	if err := keyring.Delete(k.service, key); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return errNotFound
		}
		return err
	}
	return nil
}
