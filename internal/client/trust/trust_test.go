package trust

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/ledgersync/ledgersync/internal/client/keystore"
	"github.com/ledgersync/ledgersync/internal/client/syncstore"
	"github.com/ledgersync/ledgersync/internal/synccrypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	db    *syncstore.Store
	keys  *keystore.FileKeyStore
	trust *Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	db, err := syncstore.Open(context.Background(), filepath.Join(dir, "sync.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	keys := keystore.New(filepath.Join(dir, "keys.json"))
	return &fixture{db: db, keys: keys, trust: New(db, keys)}
}

func newBundle(t *testing.T, version int) *synccrypto.KeyBundle {
	t.Helper()
	key, err := synccrypto.NewSyncKey()
	require.NoError(t, err)
	return &synccrypto.KeyBundle{Key: key, KeyVersion: version}
}

func (f *fixture) state(t *testing.T) State {
	t.Helper()
	st, err := f.trust.DetectState(context.Background())
	require.NoError(t, err)
	return st
}

func TestDetectState_Lifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	assert.Equal(t, StateFresh, f.state(t))

	require.NoError(t, f.db.UpsertDevice(ctx, &syncstore.DeviceConfig{DeviceID: "dev-a", IsLocal: true}))
	assert.Equal(t, StateRegistered, f.state(t))

	require.NoError(t, f.trust.AcceptBundle(ctx, newBundle(t, 1)))
	assert.Equal(t, StateStale, f.state(t))

	require.NoError(t, f.db.WithTx(ctx, func(tx *sqlx.Tx) error { return f.db.MarkBootstrapped(ctx, tx, "dev-a") }))
	assert.Equal(t, StateReady, f.state(t))

	local, keys, err := f.trust.Ready(ctx)
	require.NoError(t, err)
	assert.Equal(t, "dev-a", local.DeviceID)
	assert.Equal(t, 1, keys.Current())
}

func TestDetectState_RecoveryOnLostKeys(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.db.UpsertDevice(ctx, &syncstore.DeviceConfig{DeviceID: "dev-a", IsLocal: true}))
	require.NoError(t, f.trust.AcceptBundle(ctx, newBundle(t, 1)))
	require.NoError(t, f.db.WithTx(ctx, func(tx *sqlx.Tx) error { return f.db.MarkBootstrapped(ctx, tx, "dev-a") }))

	require.NoError(t, os.WriteFile(f.keys.Path(), []byte("{not json"), 0o600))
	assert.Equal(t, StateRecovery, f.state(t))

	require.NoError(t, f.keys.Clear())
	assert.Equal(t, StateRecovery, f.state(t))

	_, _, err := f.trust.Ready(ctx)
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestDetectState_RecoveryOnMissingKeyVersion(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.db.UpsertDevice(ctx, &syncstore.DeviceConfig{DeviceID: "dev-a", IsLocal: true}))
	require.NoError(t, f.keys.Put(newBundle(t, 1)))
	require.NoError(t, f.db.SetTrust(ctx, "dev-a", syncstore.TrustTrusted, 2))

	assert.Equal(t, StateRecovery, f.state(t))
}

func TestRevoke_LocalDevice(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.db.UpsertDevice(ctx, &syncstore.DeviceConfig{DeviceID: "dev-a", IsLocal: true}))
	require.NoError(t, f.trust.AcceptBundle(ctx, newBundle(t, 1)))

	require.NoError(t, f.trust.Revoke(ctx, "dev-a"))
	assert.Equal(t, StateRecovery, f.state(t))
	assert.NoFileExists(t, f.keys.Path())

	_, err := f.trust.EnsureNotRevoked(ctx)
	assert.ErrorIs(t, err, ErrDeviceRevoked)

	_, _, err = f.trust.Ready(ctx)
	assert.ErrorIs(t, err, ErrDeviceRevoked)

	err = f.trust.AcceptBundle(ctx, newBundle(t, 1))
	assert.ErrorIs(t, err, ErrDeviceRevoked)
}

func TestRevoke_PeerKeepsLocalKeys(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.db.UpsertDevice(ctx, &syncstore.DeviceConfig{DeviceID: "dev-a", IsLocal: true}))
	require.NoError(t, f.trust.AcceptBundle(ctx, newBundle(t, 1)))
	require.NoError(t, f.trust.TrustPeer(ctx, "dev-b", "phone", 1))

	require.NoError(t, f.trust.Revoke(ctx, "dev-b"))
	assert.FileExists(t, f.keys.Path())

	peer, err := f.db.Device(ctx, "dev-b")
	require.NoError(t, err)
	assert.Equal(t, syncstore.TrustRevoked, peer.TrustState)
}

func TestRename(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.db.UpsertDevice(ctx, &syncstore.DeviceConfig{DeviceID: "dev-a", IsLocal: true}))
	require.NoError(t, f.trust.Rename(ctx, "dev-a", "desk"))
	assert.Error(t, f.trust.Rename(ctx, "dev-a", ""))
	assert.ErrorIs(t, f.trust.Rename(ctx, "nope", "x"), syncstore.ErrNotFound)
}

func TestAcceptBundle_RequiresEnabledDevice(t *testing.T) {
	f := newFixture(t)
	err := f.trust.AcceptBundle(context.Background(), newBundle(t, 1))
	assert.ErrorIs(t, err, ErrNotEnabled)
	assert.NoFileExists(t, f.keys.Path())
}
