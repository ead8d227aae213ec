package secret

import (
	"errors"
	"strings"
	"testing"
)

func TestCipherRoundTrip(t *testing.T) {
	c, err := NewCipher("passphrase")
	if err != nil {
		t.Fatalf("new cipher: %v", err)
	}

	sealed, err := c.Encrypt("t.broker-token")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if strings.Contains(sealed, "broker-token") {
		t.Fatalf("token leaked into ciphertext")
	}

	plain, err := c.Decrypt(sealed)
	if err != nil || plain != "t.broker-token" {
		t.Fatalf("decrypt: %q %v", plain, err)
	}
}

func TestCipherKeyIsDeterministic(t *testing.T) {
	a, _ := NewCipher("same")
	b, _ := NewCipher("same")
	if a.EncodedKey() != b.EncodedKey() {
		t.Fatalf("derivation must be deterministic")
	}

	sealed, _ := a.Encrypt("x")
	if got, err := b.Decrypt(sealed); err != nil || got != "x" {
		t.Fatalf("second instance cannot decrypt: %v", err)
	}
}

func TestCipherRejectsForeignTokens(t *testing.T) {
	a, _ := NewCipher("one")
	b, _ := NewCipher("two")
	sealed, _ := a.Encrypt("x")

	if _, err := b.Decrypt(sealed); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token, got %v", err)
	}
	if _, err := a.Decrypt("garbage"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token for garbage, got %v", err)
	}
}

func TestNewCipherRequiresKey(t *testing.T) {
	if _, err := NewCipher(""); !errors.Is(err, ErrNoKey) {
		t.Fatalf("expected ErrNoKey, got %v", err)
	}
}
