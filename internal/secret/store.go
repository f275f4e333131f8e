package secret

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"os"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/daddygpt/daddygpt-bot/internal/errs"
)

// ErrNoToken means no encrypted token has been saved yet (first run).
var ErrNoToken = errors.New("no saved token")

// Store keeps the bot token encrypted at rest with an AEAD cipher.
// The key comes from the environment (hex, preferred) or from a local
// key file generated on first use. The file mode only protects the key
// as well as file permissions do; the env mode is the stronger option.
type Store struct {
	keyEnv    string
	keyFile   string
	tokenFile string
}

func NewStore(keyEnv, keyFile, tokenFile string) *Store {
	return &Store{keyEnv: keyEnv, keyFile: keyFile, tokenFile: tokenFile}
}

// Save encrypts the token and writes it to the token file.
func (s *Store) Save(token string) error {
	key, err := s.key(true)
	if err != nil {
		return err
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return errs.Credential("init cipher", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return errs.Credential("generate nonce", err)
	}
	blob := aead.Seal(nonce, nonce, []byte(token), nil)

	if err := os.WriteFile(s.tokenFile, blob, 0o600); err != nil {
		return errs.Credential("write token file", err)
	}
	return nil
}

// Load decrypts the stored token. Returns ErrNoToken if nothing was
// saved yet; any decryption failure is a credential error, never a
// plaintext fallback.
func (s *Store) Load() (string, error) {
	blob, err := os.ReadFile(s.tokenFile)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNoToken
		}
		return "", errs.Credential("read token file", err)
	}

	key, err := s.key(false)
	if err != nil {
		return "", err
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return "", errs.Credential("init cipher", err)
	}
	if len(blob) < aead.NonceSize() {
		return "", errs.Credential("token file corrupted", nil)
	}

	nonce, ct := blob[:aead.NonceSize()], blob[aead.NonceSize():]
	pt, err := aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", errs.Credential("token decryption failed (wrong or missing key?)", err)
	}
	return string(pt), nil
}

// key resolves the encryption key: env var first, then key file.
// With generate=true a missing key file is created (0600).
func (s *Store) key(generate bool) ([]byte, error) {
	if raw := strings.TrimSpace(os.Getenv(s.keyEnv)); raw != "" {
		key, err := hex.DecodeString(raw)
		if err != nil || len(key) != chacha20poly1305.KeySize {
			return nil, errs.Credential(s.keyEnv+" must be 32 bytes hex-encoded", err)
		}
		return key, nil
	}

	raw, err := os.ReadFile(s.keyFile)
	if err == nil {
		key, derr := hex.DecodeString(strings.TrimSpace(string(raw)))
		if derr != nil || len(key) != chacha20poly1305.KeySize {
			return nil, errs.Credential("key file corrupted", derr)
		}
		return key, nil
	}
	if !os.IsNotExist(err) {
		return nil, errs.Credential("read key file", err)
	}
	if !generate {
		return nil, errs.Credential("encryption key not found", nil)
	}

	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, errs.Credential("generate key", err)
	}
	if err := os.WriteFile(s.keyFile, []byte(hex.EncodeToString(key)), 0o600); err != nil {
		return nil, errs.Credential("write key file", err)
	}
	return key, nil
}
