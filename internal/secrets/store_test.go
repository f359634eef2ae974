package secrets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func useArrayKeyring(t *testing.T) {
	t.Helper()
	ring := keyring.NewArrayKeyring(nil)
	prev := openKeyringFunc
	openKeyringFunc = func() (keyring.Keyring, error) { return ring, nil }
	t.Cleanup(func() { openKeyringFunc = prev })
}

func TestTokenRoundTrip(t *testing.T) {
	useArrayKeyring(t)

	_, err := GetToken()
	assert.ErrorIs(t, err, ErrSecretNotFound)

	require.NoError(t, SetToken("  abc123  "))
	got, err := GetToken()
	require.NoError(t, err)
	assert.Equal(t, "abc123", got)

	require.NoError(t, DeleteToken())
	_, err = GetToken()
	assert.ErrorIs(t, err, ErrSecretNotFound)
	assert.ErrorIs(t, DeleteToken(), ErrSecretNotFound)
}

func TestDeleteTokenWhenNothingStored(t *testing.T) {
	useArrayKeyring(t)

	assert.ErrorIs(t, DeleteToken(), ErrSecretNotFound)
}

func TestSetTokenRejectsEmpty(t *testing.T) {
	useArrayKeyring(t)

	assert.ErrorIs(t, SetToken("   "), errMissingToken)
}

func TestGenerateToken(t *testing.T) {
	a, err := GenerateToken()
	require.NoError(t, err)
	b, err := GenerateToken()
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
}

func TestResolveKeyringBackend(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv(backendEnv, "")

	info, err := ResolveKeyringBackendInfo()
	require.NoError(t, err)
	assert.Equal(t, KeyringBackendInfo{Value: BackendAuto, Source: sourceDefault}, info)

	dir := filepath.Join(home, ".config", "mailbridge")
	require.NoError(t, os.MkdirAll(dir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("keyring_backend: File\n"), 0o600))

	info, err = ResolveKeyringBackendInfo()
	require.NoError(t, err)
	assert.Equal(t, KeyringBackendInfo{Value: BackendFile, Source: sourceConfig}, info)

	t.Setenv(backendEnv, "keychain")
	info, err = ResolveKeyringBackendInfo()
	require.NoError(t, err)
	assert.Equal(t, KeyringBackendInfo{Value: BackendKeychain, Source: sourceEnv}, info)
}

func TestPlanOpen(t *testing.T) {
	auto := KeyringBackendInfo{Value: BackendAuto}

	plan, err := planOpen("linux", auto, "")
	require.NoError(t, err)
	assert.Equal(t, []keyring.BackendType{keyring.FileBackend}, plan.backends)
	assert.False(t, plan.deadline)

	plan, err = planOpen("linux", auto, "unix:path=/run/bus")
	require.NoError(t, err)
	assert.Nil(t, plan.backends)
	assert.True(t, plan.deadline)

	plan, err = planOpen("windows", auto, "")
	require.NoError(t, err)
	assert.Equal(t, openPlan{}, plan)

	plan, err = planOpen("linux", KeyringBackendInfo{Value: BackendFile}, "unix:path=/run/bus")
	require.NoError(t, err)
	assert.False(t, plan.deadline)

	_, err = planOpen("darwin", KeyringBackendInfo{Value: "vault"}, "")
	assert.ErrorIs(t, err, errInvalidBackend)
}

func TestPasswordPrompt(t *testing.T) {
	pw, err := passwordPrompt("", true, false)("prompt")
	require.NoError(t, err)
	assert.Empty(t, pw)

	pw, err = passwordPrompt("s3cret", true, true)("prompt")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", pw)

	_, err = passwordPrompt("", false, false)("prompt")
	assert.ErrorIs(t, err, errNoTTY)
}

func TestOpenWithinTimesOut(t *testing.T) {
	prev := keyringOpenFunc
	block := make(chan struct{})
	keyringOpenFunc = func(keyring.Config) (keyring.Keyring, error) {
		<-block
		return nil, errors.New("unreachable")
	}
	t.Cleanup(func() {
		close(block)
		keyringOpenFunc = prev
	})

	_, err := openWithin(keyring.Config{}, 10*time.Millisecond)
	assert.ErrorIs(t, err, errOpenTimeout)
}

func TestAnnotate(t *testing.T) {
	assert.NoError(t, annotate("read token", nil))
	assert.ErrorIs(t, annotate("read token", keyring.ErrKeyNotFound), ErrSecretNotFound)
	assert.ErrorIs(t, annotate("remove token", &os.PathError{Op: "remove", Path: "x", Err: os.ErrNotExist}), ErrSecretNotFound)

	locked := annotate("store token", fmt.Errorf("keychain: -25308"))
	assert.Contains(t, locked.Error(), "security unlock-keychain")

	other := errors.New("boom")
	assert.ErrorIs(t, annotate("store token", other), other)
}

func TestKeychainLocked(t *testing.T) {
	assert.True(t, keychainLocked("failed: -25308"))
	assert.True(t, keychainLocked("User interaction is not allowed."))
	assert.False(t, keychainLocked("item not found"))
}
