package credential

import (
	"errors"
	"fmt"
	"strings"

	"github.com/99designs/keyring"
)

const (
	serviceName = "campusnotify"
	refPrefix   = "keyring:"
)

// ErrNotFound is returned by Get when no credential is stored under key.
var ErrNotFound = keyring.ErrKeyNotFound

// openKeyring opens the keyring every operation goes through.
var openKeyring = openSystemKeyring

// openSystemKeyring returns a configured keyring instance.
func openSystemKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/campusnotify/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("campusnotify-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Get retrieves a credential value by key from the system keyring.
func Get(key string) (string, error) {
	ring, err := openKeyring()
	if err != nil {
		return "", err
	}

	item, err := ring.Get(key)
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}

	return string(item.Data), nil
}

// Set stores a credential value by key in the system keyring.
func Set(key string, value string) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	err = ring.Set(keyring.Item{
		Key:   key,
		Data:  []byte(value),
		Label: "Campus notifications session",
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}

	return nil
}

// Delete removes a credential by key from the system keyring. Deleting a
// missing key is not an error.
func Delete(key string) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	err = ring.Remove(key)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}

	return nil
}

// Keyring exposes the package functions as a value, for callers that take
// a credential store as a dependency.
type Keyring struct{}

func (Keyring) Get(key string) (string, error) { return Get(key) }
func (Keyring) Set(key, value string) error    { return Set(key, value) }
func (Keyring) Delete(key string) error        { return Delete(key) }

// Ref returns the config value that points at the credential stored
// under key.
func Ref(key string) string {
	return refPrefix + key
}

// IsRef reports whether value is a keyring reference made by Ref.
func IsRef(value string) bool {
	return strings.HasPrefix(value, refPrefix)
}

// Resolve returns value itself, or the referenced credential when value
// is a keyring reference.
func Resolve(value string) (string, error) {
	key, ok := strings.CutPrefix(value, refPrefix)
	if !ok {
		return value, nil
	}
	return Get(key)
}
