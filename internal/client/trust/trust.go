// Package trust answers which sync state this device is in and guards the
// trust transitions of the device registry.
package trust

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ledgersync/ledgersync/internal/client/keystore"
	"github.com/ledgersync/ledgersync/internal/client/syncstore"
	"github.com/ledgersync/ledgersync/internal/synccrypto"
)

type State string

const (
	StateFresh      State = "FRESH"
	StateRegistered State = "REGISTERED"
	StateReady      State = "READY"
	StateStale      State = "STALE"
	StateRecovery   State = "RECOVERY"
)

var (
	ErrDeviceRevoked = errors.New("device revoked")
	ErrNotReady      = errors.New("sync not ready")
	ErrNotEnabled    = errors.New("sync not enabled on this device")
)

// KeyStore is the subset of the on-disk key store trust decisions need.
type KeyStore interface {
	Load() (*synccrypto.Keyring, error)
	Put(bundle *synccrypto.KeyBundle) error
	Clear() error
}

type Store struct {
	db   *syncstore.Store
	keys KeyStore
}

func New(db *syncstore.Store, keys KeyStore) *Store {
	return &Store{db: db, keys: keys}
}

// DetectState recomputes the sync state from persisted data. It only reads.
func (s *Store) DetectState(ctx context.Context) (State, error) {
	local, err := s.db.LocalDevice(ctx)
	if err != nil {
		return "", err
	}
	if local == nil {
		return StateFresh, nil
	}

	switch local.TrustState {
	case syncstore.TrustRevoked:
		return StateRecovery, nil
	case syncstore.TrustUntrusted:
		return StateRegistered, nil
	}

	keyring, err := s.keys.Load()
	if errors.Is(err, keystore.ErrNotFound) || errors.Is(err, keystore.ErrCorrupted) {
		slog.Warn("trusted device lost key material", "device", local.DeviceID, "error", err)
		return StateRecovery, nil
	} else if err != nil {
		return "", err
	}
	if !keyring.Has(local.KeyVersion) {
		return StateRecovery, nil
	}

	if local.LastBootstrapAt.IsZero() {
		return StateStale, nil
	}
	return StateReady, nil
}

// Ready returns the local device and its keys when the device may run sync
// cycles, or an error naming why not.
func (s *Store) Ready(ctx context.Context) (*syncstore.DeviceConfig, *synccrypto.Keyring, error) {
	state, err := s.DetectState(ctx)
	if err != nil {
		return nil, nil, err
	}

	local, err := s.db.LocalDevice(ctx)
	if err != nil {
		return nil, nil, err
	}
	if local != nil && local.TrustState == syncstore.TrustRevoked {
		return nil, nil, ErrDeviceRevoked
	}
	if state != StateReady {
		return nil, nil, fmt.Errorf("%w: %s", ErrNotReady, state)
	}

	keyring, err := s.keys.Load()
	if err != nil {
		return nil, nil, err
	}
	return local, keyring, nil
}

// Trusted returns the local device and keys when it is trusted, bootstrapped or not.
func (s *Store) Trusted(ctx context.Context) (*syncstore.DeviceConfig, *synccrypto.Keyring, error) {
	local, err := s.EnsureNotRevoked(ctx)
	if err != nil {
		return nil, nil, err
	}
	if !local.Trusted() {
		return nil, nil, fmt.Errorf("%w: device not trusted", ErrNotReady)
	}
	keyring, err := s.keys.Load()
	if err != nil {
		return nil, nil, err
	}
	return local, keyring, nil
}

func (s *Store) EnsureNotRevoked(ctx context.Context) (*syncstore.DeviceConfig, error) {
	local, err := s.db.LocalDevice(ctx)
	if err != nil {
		return nil, err
	}
	if local == nil {
		return nil, ErrNotEnabled
	}
	if local.TrustState == syncstore.TrustRevoked {
		return nil, ErrDeviceRevoked
	}
	return local, nil
}

// AcceptBundle stores a delivered key bundle and marks the local device
// trusted at its version. The key file is written before the trust row so a
// crash in between leaves the device REGISTERED, never trusted without keys.
func (s *Store) AcceptBundle(ctx context.Context, bundle *synccrypto.KeyBundle) error {
	if err := bundle.Validate(); err != nil {
		return err
	}
	local, err := s.EnsureNotRevoked(ctx)
	if err != nil {
		return err
	}
	if err := s.keys.Put(bundle); err != nil {
		return fmt.Errorf("store key bundle: %w", err)
	}
	if err := s.db.SetTrust(ctx, local.DeviceID, syncstore.TrustTrusted, bundle.KeyVersion); err != nil {
		return err
	}
	slog.Info("device trusted", "device", local.DeviceID, "keyVersion", bundle.KeyVersion)
	return nil
}

// TrustPeer records a remote device as trusted after a completed pairing.
func (s *Store) TrustPeer(ctx context.Context, deviceID, name string, keyVersion int) error {
	return s.db.UpsertDevice(ctx, &syncstore.DeviceConfig{
		DeviceID:   deviceID,
		DeviceName: name,
		KeyVersion: keyVersion,
		TrustState: syncstore.TrustTrusted,
	})
}

// Revoke marks a device revoked. Revoking the local device also drops its keys.
func (s *Store) Revoke(ctx context.Context, deviceID string) error {
	if err := s.db.Revoke(ctx, deviceID); err != nil {
		return err
	}

	local, err := s.db.LocalDevice(ctx)
	if err != nil {
		return err
	}
	if local != nil && local.DeviceID == deviceID {
		if err := s.keys.Clear(); err != nil {
			return fmt.Errorf("clear keys: %w", err)
		}
	}
	slog.Info("device revoked", "device", deviceID)
	return nil
}

func (s *Store) Rename(ctx context.Context, deviceID, name string) error {
	if name == "" {
		return errors.New("device name is empty")
	}
	return s.db.RenameDevice(ctx, deviceID, name)
}
