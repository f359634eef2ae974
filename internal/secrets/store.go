// Package secrets keeps the HTTP server's bearer token in the OS keyring.
package secrets

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/99designs/keyring"

	"mailbridge/internal/config"
)

var (
	ErrSecretNotFound = errors.New("secret not found")
	errMissingToken   = errors.New("missing token")
)

const tokenKey = "auth:api-token"

func SetToken(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errMissingToken
	}
	ring, err := openKeyringFunc()
	if err != nil {
		return err
	}
	err = ring.Set(keyring.Item{
		Key:   tokenKey,
		Data:  []byte(token),
		Label: config.AppName + " API token",
	})
	return annotate("store token", err)
}

func GetToken() (string, error) {
	ring, err := openKeyringFunc()
	if err != nil {
		return "", err
	}
	item, err := ring.Get(tokenKey)
	if err != nil {
		return "", annotate("read token", err)
	}
	return string(item.Data), nil
}

// DeleteToken removes the stored token. Deleting when nothing is stored is
// ErrSecretNotFound on every backend.
func DeleteToken() error {
	ring, err := openKeyringFunc()
	if err != nil {
		return err
	}
	if _, err := ring.Get(tokenKey); err != nil {
		return annotate("read token", err)
	}
	return annotate("remove token", ring.Remove(tokenKey))
}

// GenerateToken returns 32 random bytes, hex encoded.
func GenerateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// annotate maps a missing entry to ErrSecretNotFound and attaches the unlock
// command to a locked macOS keychain failure.
func annotate(action string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, keyring.ErrKeyNotFound), errors.Is(err, fs.ErrNotExist):
		return ErrSecretNotFound
	case keychainLocked(err.Error()):
		return fmt.Errorf("%s: %w\n\nThe macOS keychain is locked. Unlock it with:\n  security unlock-keychain ~/Library/Keychains/login.keychain-db", action, err)
	}
	return fmt.Errorf("%s: %w", action, err)
}

// keychainLocked matches errSecInteractionNotAllowed (-25308).
func keychainLocked(msg string) bool {
	return strings.Contains(msg, "-25308") ||
		strings.Contains(strings.ToLower(msg), "user interaction is not allowed")
}
