package service

// TokenCipher encrypts broker credentials at rest.
type TokenCipher interface {
	Encrypt(plain string) (string, error)
	Decrypt(sealed string) (string, error)
}
