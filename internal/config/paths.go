package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const AppName = "mailbridge"

// DirEnv relocates the config directory, keyring files included.
const DirEnv = "MAILBRIDGE_CONFIG_DIR"

// Dir is $MAILBRIDGE_CONFIG_DIR, or ~/.config/mailbridge.
func Dir() (string, error) {
	if dir := os.Getenv(DirEnv); dir != "" {
		return filepath.Clean(dir), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve user home dir: %w", err)
	}
	return filepath.Join(home, ".config", AppName), nil
}

func EnsureDir() (string, error) {
	return ensure(Dir)
}

// KeyringDir holds the encrypted entries of the keyring "file" backend.
func KeyringDir() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "keyring"), nil
}

func EnsureKeyringDir() (string, error) {
	return ensure(KeyringDir)
}

func ensure(resolve func() (string, error)) (string, error) {
	dir, err := resolve()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}
	return dir, nil
}
