package outbox

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/ledgersync/ledgersync/internal/client/syncstore"
	"github.com/ledgersync/ledgersync/internal/synccrypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*syncstore.Store, *synccrypto.Keyring) {
	t.Helper()
	store, err := syncstore.Open(context.Background(), filepath.Join(t.TempDir(), "sync.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	keys := synccrypto.NewKeyring()
	key, err := synccrypto.NewSyncKey()
	require.NoError(t, err)
	require.NoError(t, keys.Add(2, key))
	return store, keys
}

func TestMutate_WritesEntityAndEvent(t *testing.T) {
	ctx := context.Background()
	store, keys := setup(t)
	rec := NewRecorder(store, keys, "dev-a")

	eventID, err := rec.Mutate(ctx, "accounts", "acct-1", syncstore.OpCreate, map[string]string{"name": "Checking"})
	require.NoError(t, err)
	require.NotEmpty(t, eventID)

	row, err := store.Entity(ctx, "accounts", "acct-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Checking"}`, row.Data)

	ev, err := store.GetOutbox(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, syncstore.StatusPending, ev.Status)
	assert.Equal(t, 2, ev.PayloadKeyVersion)
	assert.Equal(t, "dev-a", ev.DeviceID)
	assert.NotContains(t, ev.Payload, "Checking")

	plain, err := keys.Decrypt(2, ev.Payload, synccrypto.PayloadAD(eventID, "accounts", "acct-1"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Checking"}`, string(plain))
}

func TestRecord_RollsBackWithDomainWrite(t *testing.T) {
	ctx := context.Background()
	store, keys := setup(t)
	rec := NewRecorder(store, keys, "dev-a")

	boom := errors.New("domain write failed")
	err := store.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := rec.Record(ctx, tx, "goals", "g1", syncstore.OpCreate, []byte(`{}`)); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	events, err := store.ListOutbox(ctx)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestMutate_FailedEventRollsBackEntity(t *testing.T) {
	ctx := context.Background()
	store, _ := setup(t)
	rec := NewRecorder(store, synccrypto.NewKeyring(), "dev-a")

	_, err := rec.Mutate(ctx, "accounts", "acct-1", syncstore.OpCreate, map[string]int{"v": 1})
	assert.ErrorIs(t, err, ErrNoSyncKey)

	_, err = store.Entity(ctx, "accounts", "acct-1")
	assert.ErrorIs(t, err, syncstore.ErrNotFound)
}

func TestRecord_Validation(t *testing.T) {
	ctx := context.Background()
	store, keys := setup(t)

	_, err := NewRecorder(store, keys, "").Mutate(ctx, "accounts", "a", syncstore.OpCreate, 1)
	assert.ErrorIs(t, err, ErrNoDevice)

	rec := NewRecorder(store, keys, "dev-a")
	_, err = rec.Mutate(ctx, "widgets", "a", syncstore.OpCreate, 1)
	assert.ErrorIs(t, err, syncstore.ErrUnknownEntity)

	require.NoError(t, store.SetTableEnabled(ctx, "ai_threads", false))
	_, err = rec.Mutate(ctx, "ai_threads", "t1", syncstore.OpCreate, 1)
	assert.ErrorIs(t, err, ErrTableDisabled)
}

func TestMutate_PreservesOrderPerEntity(t *testing.T) {
	ctx := context.Background()
	store, keys := setup(t)
	rec := NewRecorder(store, keys, "dev-a")

	var ids []string
	for i := 0; i < 3; i++ {
		id, err := rec.Mutate(ctx, "accounts", "acct-1", syncstore.OpUpdate, map[string]int{"v": i})
		require.NoError(t, err)
		ids = append(ids, id)
	}
	_, err := rec.Mutate(ctx, "accounts", "acct-1", syncstore.OpDelete, nil)
	require.NoError(t, err)

	ready, err := store.ReadyOutbox(ctx, store.Now(), 10)
	require.NoError(t, err)
	require.Len(t, ready, 4)
	for i, id := range ids {
		assert.Equal(t, id, ready[i].EventID)
	}
	assert.Equal(t, syncstore.OpDelete, ready[3].Op)
}
