package secret

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daddygpt/daddygpt-bot/internal/errs"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	return NewStore("TEST_BOT_TOKEN_KEY", filepath.Join(dir, "token.key"), filepath.Join(dir, "token.enc"))
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Setenv("TEST_BOT_TOKEN_KEY", "")
	s := newTestStore(t)

	require.NoError(t, s.Save("123456:ABC-secret"))

	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, "123456:ABC-secret", got)
}

func TestLoadWithoutSave(t *testing.T) {
	t.Setenv("TEST_BOT_TOKEN_KEY", "")
	s := newTestStore(t)

	_, err := s.Load()
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestLoadWithWrongKeyFails(t *testing.T) {
	t.Setenv("TEST_BOT_TOKEN_KEY", "")
	s := newTestStore(t)
	require.NoError(t, s.Save("tok"))

	// Replace the generated key with a different one.
	other := make([]byte, 32)
	other[0] = 0xFF
	require.NoError(t, os.WriteFile(s.keyFile, []byte(hex.EncodeToString(other)), 0o600))

	got, err := s.Load()
	assert.Empty(t, got)
	assert.True(t, errs.IsKind(err, errs.KindCredential))
}

func TestLoadWithMissingKeyFails(t *testing.T) {
	t.Setenv("TEST_BOT_TOKEN_KEY", "")
	s := newTestStore(t)
	require.NoError(t, s.Save("tok"))
	require.NoError(t, os.Remove(s.keyFile))

	_, err := s.Load()
	assert.True(t, errs.IsKind(err, errs.KindCredential))
}

func TestEnvKeyPreferred(t *testing.T) {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	t.Setenv("TEST_BOT_TOKEN_KEY", hex.EncodeToString(key))

	s := newTestStore(t)
	require.NoError(t, s.Save("env-keyed"))

	// No key file should have been generated in env mode.
	_, err := os.Stat(s.keyFile)
	assert.True(t, os.IsNotExist(err))

	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, "env-keyed", got)
}

func TestPlaintextNeverOnDisk(t *testing.T) {
	t.Setenv("TEST_BOT_TOKEN_KEY", "")
	s := newTestStore(t)
	require.NoError(t, s.Save("super-secret-token"))

	blob, err := os.ReadFile(s.tokenFile)
	require.NoError(t, err)
	assert.NotContains(t, string(blob), "super-secret-token")
}

func TestBadEnvKeyRejected(t *testing.T) {
	t.Setenv("TEST_BOT_TOKEN_KEY", "not-hex")
	s := newTestStore(t)

	err := s.Save("tok")
	assert.True(t, errs.IsKind(err, errs.KindCredential))
}
