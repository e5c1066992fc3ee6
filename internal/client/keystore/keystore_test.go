package keystore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ledgersync/ledgersync/internal/synccrypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBundle(t *testing.T, version int) *synccrypto.KeyBundle {
	t.Helper()
	key, err := synccrypto.NewSyncKey()
	require.NoError(t, err)
	return &synccrypto.KeyBundle{Key: key, KeyVersion: version}
}

func TestFileKeyStore_PutLoad(t *testing.T) {
	store := New(filepath.Join(t.TempDir(), "keys.json"))

	_, err := store.Load()
	assert.ErrorIs(t, err, ErrNotFound)

	b1 := newBundle(t, 1)
	b2 := newBundle(t, 2)
	require.NoError(t, store.Put(b2))
	require.NoError(t, store.Put(b1))

	ring, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, 2, ring.Current())

	got, err := ring.Bundle(1)
	require.NoError(t, err)
	assert.Equal(t, b1.Key, got.Key)

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestFileKeyStore_ReplaceVersion(t *testing.T) {
	store := New(filepath.Join(t.TempDir(), "keys.json"))
	require.NoError(t, store.Put(newBundle(t, 1)))

	replacement := newBundle(t, 1)
	require.NoError(t, store.Put(replacement))

	ring, err := store.Load()
	require.NoError(t, err)
	got, err := ring.Bundle(1)
	require.NoError(t, err)
	assert.Equal(t, replacement.Key, got.Key)
}

func TestFileKeyStore_DetectsCorruption(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.json")
	store := New(path)
	require.NoError(t, store.Put(newBundle(t, 1)))

	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))
	_, err := store.Load()
	assert.ErrorIs(t, err, ErrCorrupted)

	// valid json, key bytes altered
	data := `{"file_version":1,"keys":[{"version":1,"key":"AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA=","fingerprint":"000000000000"}]}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
	_, err = store.Load()
	assert.ErrorIs(t, err, ErrCorrupted)
}

func TestFileKeyStore_Clear(t *testing.T) {
	store := New(filepath.Join(t.TempDir(), "keys.json"))
	require.NoError(t, store.Put(newBundle(t, 1)))
	require.NoError(t, store.Clear())
	require.NoError(t, store.Clear())

	_, err := store.Load()
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileKeyStore_RejectsInvalidBundle(t *testing.T) {
	store := New(filepath.Join(t.TempDir(), "keys.json"))
	err := store.Put(&synccrypto.KeyBundle{Key: []byte("x"), KeyVersion: 1})
	assert.ErrorIs(t, err, synccrypto.ErrInvalidBundle)
}
