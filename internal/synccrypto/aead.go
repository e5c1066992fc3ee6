package synccrypto

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
)

var ErrDecrypt = errors.New("synccrypto: message authentication failed")

// Seal encrypts plaintext under key with a random nonce. The output is
// base64(nonce || ciphertext || tag). additionalData is authenticated but not sent.
func Seal(key, plaintext, additionalData []byte) (string, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}

	out := make([]byte, chacha20poly1305.NonceSizeX, chacha20poly1305.NonceSizeX+len(plaintext)+aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, out); err != nil {
		return "", fmt.Errorf("seal: nonce: %w", err)
	}
	out = aead.Seal(out, out[:chacha20poly1305.NonceSizeX], plaintext, additionalData)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Open reverses Seal. Any tampering with the message, the nonce or the
// additional data yields ErrDecrypt.
func Open(key []byte, sealed string, additionalData []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}

	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return nil, ErrDecrypt
	}
	if len(raw) < chacha20poly1305.NonceSizeX+aead.Overhead() {
		return nil, ErrDecrypt
	}

	nonce, ciphertext := raw[:chacha20poly1305.NonceSizeX], raw[chacha20poly1305.NonceSizeX:]
	plaintext, err := aead.Open(nil, nonce, ciphertext, additionalData)
	if err != nil {
		return nil, ErrDecrypt
	}
	return plaintext, nil
}
