// Package secret seals short credentials (broker API tokens) at rest.
package secret

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/fernet/fernet-go"
	"golang.org/x/crypto/pbkdf2"
)

const (
	kdfSalt       = "salt_"
	kdfIterations = 100000
	kdfKeyLen     = 32
)

var (
	ErrNoKey        = errors.New("secret: encryption key is empty")
	ErrInvalidToken = errors.New("secret: token cannot be decrypted")
)

// Cipher is a Fernet cipher whose key is derived from a passphrase with
// PBKDF2-HMAC-SHA256. Tokens written by other Fernet implementations using
// the same derivation decrypt fine.
type Cipher struct {
	key *fernet.Key
}

func NewCipher(passphrase string) (*Cipher, error) {
	if passphrase == "" {
		return nil, ErrNoKey
	}
	derived := pbkdf2.Key([]byte(passphrase), []byte(kdfSalt), kdfIterations, kdfKeyLen, sha256.New)

	var k fernet.Key
	copy(k[:], derived)
	return &Cipher{key: &k}, nil
}

func (c *Cipher) Encrypt(plain string) (string, error) {
	tok, err := fernet.EncryptAndSign([]byte(plain), c.key)
	if err != nil {
		return "", fmt.Errorf("secret: encrypt: %w", err)
	}
	return string(tok), nil
}

// Decrypt verifies and opens a token. Tokens never expire.
func (c *Cipher) Decrypt(sealed string) (string, error) {
	msg := fernet.VerifyAndDecrypt([]byte(sealed), 0, []*fernet.Key{c.key})
	if msg == nil {
		return "", ErrInvalidToken
	}
	return string(msg), nil
}

// EncodedKey is the url-safe base64 form of the derived key, the format
// other Fernet libraries accept.
func (c *Cipher) EncodedKey() string {
	return c.key.Encode()
}
