package secrets

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/99designs/keyring"
	"golang.org/x/term"

	"mailbridge/internal/config"
)

const (
	passwordEnv = "MAILBRIDGE_KEYRING_PASSWORD"
	backendEnv  = "MAILBRIDGE_KEYRING_BACKEND"
)

// Values accepted for keyring_backend and MAILBRIDGE_KEYRING_BACKEND.
const (
	BackendAuto     = "auto"
	BackendKeychain = "keychain"
	BackendFile     = "file"
)

const (
	sourceEnv     = "env"
	sourceConfig  = "config"
	sourceDefault = "default"
)

// openDeadline bounds keyring.Open when the Secret Service may be registered
// on D-Bus without anything answering it.
const openDeadline = 5 * time.Second

var (
	errNoTTY          = errors.New("no TTY to prompt for the file keyring password")
	errInvalidBackend = errors.New("invalid keyring backend")
	errOpenTimeout    = errors.New("keyring open timed out")

	openKeyringFunc = openKeyring
	keyringOpenFunc = keyring.Open
)

type KeyringBackendInfo struct {
	Value  string
	Source string
}

// ResolveKeyringBackendInfo reports the backend in effect and where it was
// chosen: the environment, the config file, or the default.
func ResolveKeyringBackendInfo() (KeyringBackendInfo, error) {
	if v := normalizeBackend(os.Getenv(backendEnv)); v != "" {
		return KeyringBackendInfo{Value: v, Source: sourceEnv}, nil
	}
	cfg, err := config.Load()
	if err != nil {
		return KeyringBackendInfo{}, fmt.Errorf("resolve keyring backend: %w", err)
	}
	if v := normalizeBackend(cfg.KeyringBackend); v != "" {
		return KeyringBackendInfo{Value: v, Source: sourceConfig}, nil
	}
	return KeyringBackendInfo{Value: BackendAuto, Source: sourceDefault}, nil
}

func normalizeBackend(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

// openPlan is what keyring.Open is allowed to try, and whether the attempt
// needs a deadline.
type openPlan struct {
	backends []keyring.BackendType
	deadline bool
}

// planOpen picks backends for the platform. Headless Linux without a session
// bus goes straight to the encrypted file store.
func planOpen(goos string, info KeyringBackendInfo, dbusAddr string) (openPlan, error) {
	switch info.Value {
	case "", BackendAuto:
		if goos != "linux" {
			return openPlan{}, nil
		}
		if dbusAddr == "" {
			return openPlan{backends: []keyring.BackendType{keyring.FileBackend}}, nil
		}
		return openPlan{deadline: true}, nil
	case BackendKeychain:
		return openPlan{backends: []keyring.BackendType{keyring.KeychainBackend}}, nil
	case BackendFile:
		return openPlan{backends: []keyring.BackendType{keyring.FileBackend}}, nil
	}
	return openPlan{}, fmt.Errorf("%w: %q (want %s, %s or %s)", errInvalidBackend, info.Value, BackendAuto, BackendKeychain, BackendFile)
}

// passwordPrompt answers the file backend's passphrase request. An empty
// MAILBRIDGE_KEYRING_PASSWORD that is set counts as a passphrase.
func passwordPrompt(password string, set, tty bool) keyring.PromptFunc {
	switch {
	case set:
		return keyring.FixedStringPrompt(password)
	case tty:
		return keyring.TerminalPrompt
	}
	return func(string) (string, error) {
		return "", fmt.Errorf("%w; set %s", errNoTTY, passwordEnv)
	}
}

func openKeyring() (keyring.Keyring, error) {
	dir, err := config.EnsureKeyringDir()
	if err != nil {
		return nil, err
	}
	info, err := ResolveKeyringBackendInfo()
	if err != nil {
		return nil, err
	}
	plan, err := planOpen(runtime.GOOS, info, os.Getenv("DBUS_SESSION_BUS_ADDRESS"))
	if err != nil {
		return nil, err
	}

	password, set := os.LookupEnv(passwordEnv)
	cfg := keyring.Config{
		ServiceName:      config.AppName,
		AllowedBackends:  plan.backends,
		FileDir:          dir,
		FilePasswordFunc: passwordPrompt(password, set, term.IsTerminal(int(os.Stdin.Fd()))),
	}
	if plan.deadline {
		return openWithin(cfg, openDeadline)
	}
	ring, err := keyringOpenFunc(cfg)
	if err != nil {
		return nil, fmt.Errorf("open keyring: %w", err)
	}
	return ring, nil
}

func openWithin(cfg keyring.Config, d time.Duration) (keyring.Keyring, error) {
	type opened struct {
		ring keyring.Keyring
		err  error
	}
	done := make(chan opened, 1)
	go func() {
		ring, err := keyringOpenFunc(cfg)
		done <- opened{ring, err}
	}()

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case res := <-done:
		if res.err != nil {
			return nil, fmt.Errorf("open keyring: %w", res.err)
		}
		return res.ring, nil
	case <-timer.C:
		return nil, fmt.Errorf("%w after %v; set %s=%s and %s to use the encrypted file store",
			errOpenTimeout, d, backendEnv, BackendFile, passwordEnv)
	}
}
