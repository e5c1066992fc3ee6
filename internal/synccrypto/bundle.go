package synccrypto

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"
)

var ErrInvalidBundle = errors.New("synccrypto: invalid key bundle")

// KeyBundle is the symmetric sync key and its generation, as transferred
// from a trusted device to a newly paired one.
type KeyBundle struct {
	Key        []byte `json:"key"`
	KeyVersion int    `json:"key_version"`
}

func (b *KeyBundle) Validate() error {
	if b == nil || len(b.Key) != KeySize || b.KeyVersion < 1 {
		return ErrInvalidBundle
	}
	return nil
}

// SealBundle encrypts the bundle under the pairing session key, bound to the pairing id.
func SealBundle(sessionKey []byte, pairingID string, bundle *KeyBundle) (string, error) {
	if err := bundle.Validate(); err != nil {
		return "", err
	}
	plain, err := json.Marshal(bundle)
	if err != nil {
		return "", fmt.Errorf("marshal bundle: %w", err)
	}
	return Seal(sessionKey, plain, []byte(pairingID))
}

// OpenBundle authenticates and decrypts a sealed bundle. Authentication
// failures return ErrDecrypt.
func OpenBundle(sessionKey []byte, pairingID string, sealed string) (*KeyBundle, error) {
	plain, err := Open(sessionKey, sealed, []byte(pairingID))
	if err != nil {
		return nil, err
	}

	var bundle KeyBundle
	if err := json.Unmarshal(plain, &bundle); err != nil {
		return nil, ErrInvalidBundle
	}
	if err := bundle.Validate(); err != nil {
		return nil, err
	}
	return &bundle, nil
}
