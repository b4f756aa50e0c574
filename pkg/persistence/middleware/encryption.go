package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/strata/pkg/ports"
)

// EnvelopeContentType marks blobs written by the encryption middleware.
const EnvelopeContentType = "application/vnd.strata.encrypted+json"

// ErrNotEncrypted is returned by Decrypt for a body that is not an envelope.
var ErrNotEncrypted = errors.New("body is missing encrypted data envelope")

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey is the key used for encrypting new data.
	// Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys are tried in order when the active key cannot decrypt,
	// so snapshots written before a key rotation stay readable.
	FallbackKeys [][]byte
}

// ParseKeys decodes base64 keys into an EncryptionConfig.
func ParseKeys(active string, fallback ...string) (EncryptionConfig, error) {
	var cfg EncryptionConfig
	key, err := base64.StdEncoding.DecodeString(active)
	if err != nil {
		return cfg, fmt.Errorf("invalid encryption key: %w", err)
	}
	if len(key) != 32 {
		return cfg, fmt.Errorf("encryption key must be 32 bytes (AES-256), got %d", len(key))
	}
	cfg.ActiveKey = key
	for i, f := range fallback {
		k, err := base64.StdEncoding.DecodeString(f)
		if err != nil {
			return cfg, fmt.Errorf("invalid fallback key %d: %w", i, err)
		}
		cfg.FallbackKeys = append(cfg.FallbackKeys, k)
	}
	return cfg, nil
}

type envelope struct {
	Encrypted   string `json:"__encrypted__"`
	ContentType string `json:"content_type,omitempty"`
}

type encryptionMiddleware struct {
	next   ports.BlobSink
	config EncryptionConfig
}

// NewEncryptionMiddleware creates a middleware that seals every body with
// AES-GCM and writes a JSON envelope in its place.
func NewEncryptionMiddleware(config EncryptionConfig) (Middleware, error) {
	if len(config.ActiveKey) != 32 {
		return nil, errors.New("active key must be 32 bytes (AES-256)")
	}
	return func(next ports.BlobSink) ports.BlobSink {
		return &encryptionMiddleware{next: next, config: config}
	}, nil
}

func (m *encryptionMiddleware) Put(ctx context.Context, key string, body []byte, contentType string) error {
	ciphertext, err := encrypt(body, m.config.ActiveKey)
	if err != nil {
		return fmt.Errorf("failed to encrypt %s: %w", key, err)
	}
	out, err := json.Marshal(envelope{
		Encrypted:   base64.StdEncoding.EncodeToString(ciphertext),
		ContentType: contentType,
	})
	if err != nil {
		return err
	}
	return m.next.Put(ctx, key, out, EnvelopeContentType)
}

// IsEncrypted reports whether body is an envelope written by the encryption middleware.
func IsEncrypted(body []byte) bool {
	var env envelope
	return json.Unmarshal(body, &env) == nil && env.Encrypted != ""
}

// Decrypt opens an envelope, trying the active key and then each fallback key.
func Decrypt(body []byte, config EncryptionConfig) ([]byte, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil || env.Encrypted == "" {
		return nil, ErrNotEncrypted
	}
	ciphertext, err := base64.StdEncoding.DecodeString(env.Encrypted)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ciphertext base64: %w", err)
	}
	return decryptWithRotation(ciphertext, config.ActiveKey, config.FallbackKeys)
}

func encrypt(plaintext []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decryptWithRotation(ciphertext []byte, activeKey []byte, fallbackKeys [][]byte) ([]byte, error) {
	if plain, err := decrypt(ciphertext, activeKey); err == nil {
		return plain, nil
	}
	for _, key := range fallbackKeys {
		if plain, err := decrypt(ciphertext, key); err == nil {
			return plain, nil
		}
	}
	return nil, errors.New("decryption failed with all available keys")
}

func decrypt(ciphertext []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}
	nonce, sealed := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, sealed, nil)
}
