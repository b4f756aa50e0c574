package middleware_test

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
	"testing"

	"github.com/aretw0/strata/pkg/persistence/middleware"
)

func generateKey(t *testing.T) []byte {
	k := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, k); err != nil {
		t.Fatal(err)
	}
	return k
}

func TestEncryptionMiddleware_Roundtrip(t *testing.T) {
	underlying := NewMockSink()
	key := generateKey(t)
	mw, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key})
	if err != nil {
		t.Fatal(err)
	}
	secure := mw(underlying)

	body := []byte(`{"items":[{"title":"Main","facility":{"phone":"555"}}]}`)
	if err := secure.Put(context.Background(), "snap.json", body, "application/json"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	raw, contentType, ok := underlying.Get("snap.json")
	if !ok {
		t.Fatal("blob not written")
	}
	if bytes.Contains(raw, []byte("Main")) {
		t.Fatalf("Expected body to be hidden, found: %s", raw)
	}
	if contentType != middleware.EnvelopeContentType {
		t.Errorf("Expected envelope content type, got %q", contentType)
	}
	if !middleware.IsEncrypted(raw) {
		t.Fatal("Expected __encrypted__ envelope")
	}
	if middleware.IsEncrypted(body) {
		t.Error("Plain JSON reported as encrypted")
	}

	plain, err := middleware.Decrypt(raw, middleware.EncryptionConfig{ActiveKey: key})
	if err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}
	if !bytes.Equal(plain, body) {
		t.Errorf("Expected %s, got %s", body, plain)
	}
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	underlying := NewMockSink()
	oldKey := generateKey(t)
	newKey := generateKey(t)

	mw, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: oldKey})
	if err != nil {
		t.Fatal(err)
	}
	if err := mw(underlying).Put(context.Background(), "old.json", []byte(`{"a":1}`), "application/json"); err != nil {
		t.Fatal(err)
	}
	raw, _, _ := underlying.Get("old.json")

	if _, err := middleware.Decrypt(raw, middleware.EncryptionConfig{ActiveKey: newKey}); err == nil {
		t.Fatal("Expected decryption with the new key alone to fail")
	}

	rotated := middleware.EncryptionConfig{ActiveKey: newKey, FallbackKeys: [][]byte{oldKey}}
	plain, err := middleware.Decrypt(raw, rotated)
	if err != nil {
		t.Fatalf("Decrypt with fallback failed: %v", err)
	}
	if string(plain) != `{"a":1}` {
		t.Errorf("unexpected plaintext %s", plain)
	}
}

func TestEncryptionMiddleware_Errors(t *testing.T) {
	if _, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: []byte("short")}); err == nil {
		t.Error("Expected short key to be rejected")
	}
	if _, err := middleware.Decrypt([]byte(`{"plain":true}`), middleware.EncryptionConfig{ActiveKey: generateKey(t)}); !errors.Is(err, middleware.ErrNotEncrypted) {
		t.Errorf("Expected ErrNotEncrypted, got %v", err)
	}
}

func TestParseKeys(t *testing.T) {
	active := base64.StdEncoding.EncodeToString(generateKey(t))
	old := base64.StdEncoding.EncodeToString(generateKey(t))

	cfg, err := middleware.ParseKeys(active, old)
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.ActiveKey) != 32 || len(cfg.FallbackKeys) != 1 {
		t.Errorf("unexpected config: %d byte key, %d fallbacks", len(cfg.ActiveKey), len(cfg.FallbackKeys))
	}

	if _, err := middleware.ParseKeys(base64.StdEncoding.EncodeToString([]byte("too short"))); err == nil {
		t.Error("Expected short key to be rejected")
	}
	if _, err := middleware.ParseKeys("%%%"); err == nil {
		t.Error("Expected invalid base64 to be rejected")
	}
}
