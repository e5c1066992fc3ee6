package synccrypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

const (
	KeySize = 32

	sessionInfo = "ledgersync pairing v1"
	sasInfo     = "ledgersync sas v1"
	sasBytes    = 2
)

var (
	ErrInvalidPublicKey = errors.New("synccrypto: invalid public key")
	ErrInvalidKey       = errors.New("synccrypto: invalid key")
)

// KeyPair is an ephemeral X25519 key pair used for one pairing session.
type KeyPair struct {
	private [KeySize]byte
	Public  []byte
}

func GenerateKeyPair() (*KeyPair, error) {
	kp := &KeyPair{}
	if _, err := io.ReadFull(rand.Reader, kp.private[:]); err != nil {
		return nil, fmt.Errorf("generate key pair: %w", err)
	}
	pub, err := curve25519.X25519(kp.private[:], curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("generate key pair: %w", err)
	}
	kp.Public = pub
	return kp, nil
}

// PublicKeyString is the wire form of the public key.
func (kp *KeyPair) PublicKeyString() string {
	return base64.StdEncoding.EncodeToString(kp.Public)
}

// Wipe zeroes the private scalar.
func (kp *KeyPair) Wipe() {
	for i := range kp.private {
		kp.private[i] = 0
	}
}

// DeriveSessionKey runs X25519 against the peer public key and expands the
// shared secret with HKDF-SHA256, salted with the pairing id so both sides of
// one session, and only that session, land on the same key.
func (kp *KeyPair) DeriveSessionKey(peerPublic string, pairingID string) ([]byte, error) {
	peer, err := DecodePublicKey(peerPublic)
	if err != nil {
		return nil, err
	}

	shared, err := curve25519.X25519(kp.private[:], peer)
	if err != nil {
		// low order points produce an all zero secret
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}

	return expand(shared, []byte(pairingID), sessionInfo, KeySize)
}

func DecodePublicKey(s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil || len(b) != curve25519.PointSize {
		return nil, ErrInvalidPublicKey
	}
	return b, nil
}

// SAS derives the short authentication string both devices display. Four
// upper-case hex characters.
func SAS(sessionKey []byte) (string, error) {
	if len(sessionKey) != KeySize {
		return "", ErrInvalidKey
	}
	out, err := expand(sessionKey, nil, sasInfo, sasBytes)
	if err != nil {
		return "", err
	}
	return strings.ToUpper(hex.EncodeToString(out)), nil
}

// NewSyncKey returns a fresh random symmetric sync key.
func NewSyncKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("generate sync key: %w", err)
	}
	return key, nil
}

// Fingerprint is a short, non-secret identifier for a key, safe to log.
func Fingerprint(key []byte) string {
	sum := sha256.Sum256(key)
	return hex.EncodeToString(sum[:6])
}

func expand(secret, salt []byte, info string, n int) ([]byte, error) {
	out := make([]byte, n)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, salt, []byte(info)), out); err != nil {
		return nil, fmt.Errorf("hkdf: %w", err)
	}
	return out, nil
}
