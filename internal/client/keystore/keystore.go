// Package keystore persists the device's sync key generations on disk,
// readable only by the current user.
package keystore

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"

	"github.com/goccy/go-json"
	"github.com/ledgersync/ledgersync/internal/synccrypto"
	"github.com/ledgersync/ledgersync/internal/utils"
)

const fileVersion = 1

var (
	ErrNotFound  = errors.New("keystore: no key material")
	ErrCorrupted = errors.New("keystore: key material corrupted")
)

type storedKey struct {
	Version     int    `json:"version"`
	Key         []byte `json:"key"`
	Fingerprint string `json:"fingerprint"`
}

type keyFile struct {
	FileVersion int         `json:"file_version"`
	Keys        []storedKey `json:"keys"`
}

// FileKeyStore keeps key generations in a single 0600 JSON file.
type FileKeyStore struct {
	path string
	mu   sync.Mutex
}

func New(path string) *FileKeyStore {
	return &FileKeyStore{path: path}
}

func (s *FileKeyStore) Path() string {
	return s.path
}

// Load reads every key generation into a keyring. A missing file returns
// ErrNotFound and any integrity problem returns ErrCorrupted.
func (s *FileKeyStore) Load() (*synccrypto.Keyring, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kf, err := s.read()
	if err != nil {
		return nil, err
	}

	ring := synccrypto.NewKeyring()
	for _, k := range kf.Keys {
		if synccrypto.Fingerprint(k.Key) != k.Fingerprint {
			return nil, fmt.Errorf("%w: fingerprint mismatch for version %d", ErrCorrupted, k.Version)
		}
		if err := ring.Add(k.Version, k.Key); err != nil {
			return nil, fmt.Errorf("%w: version %d: %v", ErrCorrupted, k.Version, err)
		}
	}
	if ring.Current() == 0 {
		return nil, ErrNotFound
	}
	return ring, nil
}

// Put stores (or replaces) one key generation.
func (s *FileKeyStore) Put(bundle *synccrypto.KeyBundle) error {
	if err := bundle.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	kf, err := s.read()
	if errors.Is(err, ErrNotFound) {
		kf = &keyFile{FileVersion: fileVersion}
	} else if err != nil {
		return err
	}

	replaced := false
	entry := storedKey{
		Version:     bundle.KeyVersion,
		Key:         append([]byte(nil), bundle.Key...),
		Fingerprint: synccrypto.Fingerprint(bundle.Key),
	}
	for i := range kf.Keys {
		if kf.Keys[i].Version == bundle.KeyVersion {
			kf.Keys[i] = entry
			replaced = true
		}
	}
	if !replaced {
		kf.Keys = append(kf.Keys, entry)
	}
	sort.Slice(kf.Keys, func(i, j int) bool { return kf.Keys[i].Version < kf.Keys[j].Version })

	data, err := json.Marshal(kf)
	if err != nil {
		return fmt.Errorf("keystore: marshal: %w", err)
	}
	if err := utils.WriteFileAtomic(s.path, data, 0o600); err != nil {
		return fmt.Errorf("keystore: write: %w", err)
	}

	slog.Debug("keystore put", "version", bundle.KeyVersion, "fingerprint", entry.Fingerprint)
	return nil
}

// Clear removes all key material.
func (s *FileKeyStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("keystore: clear: %w", err)
	}
	return nil
}

func (s *FileKeyStore) read() (*keyFile, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("keystore: read: %w", err)
	}

	var kf keyFile
	if err := json.Unmarshal(data, &kf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupted, err)
	}
	if kf.FileVersion != fileVersion {
		return nil, fmt.Errorf("%w: unsupported file version %d", ErrCorrupted, kf.FileVersion)
	}
	return &kf, nil
}
