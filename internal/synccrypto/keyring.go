package synccrypto

import (
	"errors"
	"fmt"
	"sync"
)

var ErrUnknownKeyVersion = errors.New("synccrypto: unknown key version")

// Keyring holds every sync key generation this device knows about. Payloads
// are bound to their entity and event id through the additional data so a
// ciphertext cannot be replayed under another event.
type Keyring struct {
	mu   sync.RWMutex
	keys map[int][]byte
}

func NewKeyring() *Keyring {
	return &Keyring{keys: make(map[int][]byte)}
}

func (k *Keyring) Add(version int, key []byte) error {
	if version < 1 || len(key) != KeySize {
		return ErrInvalidKey
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	k.keys[version] = append([]byte(nil), key...)
	return nil
}

func (k *Keyring) Has(version int) bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	_, ok := k.keys[version]
	return ok
}

// Current returns the highest key version held, or 0 when empty.
func (k *Keyring) Current() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	current := 0
	for v := range k.keys {
		if v > current {
			current = v
		}
	}
	return current
}

// Bundle exports a key generation for transfer to a paired device.
func (k *Keyring) Bundle(version int) (*KeyBundle, error) {
	key, err := k.key(version)
	if err != nil {
		return nil, err
	}
	return &KeyBundle{Key: key, KeyVersion: version}, nil
}

func (k *Keyring) Clear() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.keys = make(map[int][]byte)
}

func (k *Keyring) Encrypt(version int, plaintext []byte, additionalData string) (string, error) {
	key, err := k.key(version)
	if err != nil {
		return "", err
	}
	return Seal(key, plaintext, []byte(additionalData))
}

func (k *Keyring) Decrypt(version int, sealed string, additionalData string) ([]byte, error) {
	key, err := k.key(version)
	if err != nil {
		return nil, err
	}
	return Open(key, sealed, []byte(additionalData))
}

func (k *Keyring) key(version int) ([]byte, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	key, ok := k.keys[version]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKeyVersion, version)
	}
	return append([]byte(nil), key...), nil
}

// PayloadAD is the additional data event payloads are sealed with.
func PayloadAD(eventID, entity, entityID string) string {
	return eventID + "|" + entity + "|" + entityID
}
