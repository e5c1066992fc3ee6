package engine

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/ledgersync/ledgersync/internal/client/syncstore"
	"github.com/ledgersync/ledgersync/internal/client/trust"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBootstrap_RestoresSnapshotThenCycles(t *testing.T) {
	ctx := context.Background()
	relay := newFakeRelay()
	key := newSyncKey(t)
	a := newDevice(t, relay, "dev-a", key, true, Config{})

	_, err := a.rec.Mutate(ctx, "accounts", "acct-1", syncstore.OpCreate, map[string]string{"name": "Checking"})
	require.NoError(t, err)
	_, err = a.rec.Mutate(ctx, "assets", "VTI", syncstore.OpCreate, map[string]string{"symbol": "VTI"})
	require.NoError(t, err)
	_, err = a.engine.TriggerSyncCycle(ctx)
	require.NoError(t, err)

	meta, err := a.engine.UploadSnapshot(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, meta.Seq)
	assert.Equal(t, 1, meta.KeyVersion)

	// written after the snapshot; the follow-up cycle must pick it up
	_, err = a.rec.Mutate(ctx, "goals", "goal-1", syncstore.OpCreate, map[string]int{"target": 5})
	require.NoError(t, err)
	_, err = a.engine.TriggerSyncCycle(ctx)
	require.NoError(t, err)

	b := newDevice(t, relay, "dev-b", key, false, Config{})
	state, err := b.trust.DetectState(ctx)
	require.NoError(t, err)
	assert.Equal(t, trust.StateStale, state)

	res, err := b.engine.BootstrapSnapshotIfNeeded(ctx)
	require.NoError(t, err)
	assert.Equal(t, BootstrapRestored, res.Status)
	assert.Equal(t, meta.SnapshotID, res.SnapshotID)
	assert.ElementsMatch(t, []string{"accounts", "assets", "asset_taxonomy_assignments", "activities",
		"activity_import_profiles", "goals", "goals_allocation", "ai_threads", "ai_messages", "ai_thread_tags",
		"contribution_limits", "platforms", "holdings_snapshots"}, res.Tables)
	require.NotNil(t, res.Cycle)
	assert.Equal(t, StatusOK, res.Cycle.Status)
	assert.Equal(t, 1, res.Cycle.Pulled)

	assert.JSONEq(t, `{"name":"Checking"}`, b.entityData(t, "accounts", "acct-1"))
	assert.JSONEq(t, `{"target":5}`, b.entityData(t, "goals", "goal-1"))
	assert.EqualValues(t, 3, b.cursor(t))

	restored, err := b.store.AnySnapshotRestored(ctx)
	require.NoError(t, err)
	assert.True(t, restored)

	state, err = b.trust.DetectState(ctx)
	require.NoError(t, err)
	assert.Equal(t, trust.StateReady, state)

	res, err = b.engine.BootstrapSnapshotIfNeeded(ctx)
	require.NoError(t, err)
	assert.Equal(t, BootstrapAlreadyDone, res.Status)
}

func TestBootstrap_NoSnapshotMarksDone(t *testing.T) {
	ctx := context.Background()
	relay := newFakeRelay()
	a := newDevice(t, relay, "dev-a", newSyncKey(t), false, Config{})

	res, err := a.engine.BootstrapSnapshotIfNeeded(ctx)
	require.NoError(t, err)
	assert.Equal(t, BootstrapNoSnapshot, res.Status)

	state, err := a.trust.DetectState(ctx)
	require.NoError(t, err)
	assert.Equal(t, trust.StateReady, state)
}

func TestBootstrap_LocalDataGoesIncremental(t *testing.T) {
	ctx := context.Background()
	relay := newFakeRelay()
	key := newSyncKey(t)
	a := newDevice(t, relay, "dev-a", key, true, Config{})
	_, err := a.engine.UploadSnapshot(ctx)
	require.NoError(t, err)

	b := newDevice(t, relay, "dev-b", key, false, Config{})
	require.NoError(t, b.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		return b.store.PutEntity(ctx, tx, "accounts", "local", syncstore.OpCreate, `{"keep":true}`)
	}))

	res, err := b.engine.BootstrapSnapshotIfNeeded(ctx)
	require.NoError(t, err)
	assert.Equal(t, BootstrapIncremental, res.Status)
	assert.JSONEq(t, `{"keep":true}`, b.entityData(t, "accounts", "local"))
}

func TestBootstrap_NeverMovesCursorBack(t *testing.T) {
	ctx := context.Background()
	relay := newFakeRelay()
	key := newSyncKey(t)
	a := newDevice(t, relay, "dev-a", key, true, Config{})
	_, err := a.engine.UploadSnapshot(ctx)
	require.NoError(t, err)

	b := newDevice(t, relay, "dev-b", key, false, Config{})
	require.NoError(t, b.store.WithTx(ctx, func(tx *sqlx.Tx) error { return b.store.AdvanceCursor(ctx, tx, 50) }))

	res, err := b.engine.BootstrapSnapshotIfNeeded(ctx)
	require.NoError(t, err)
	assert.Equal(t, BootstrapUpToDate, res.Status)
	assert.EqualValues(t, 50, b.cursor(t))
}

func TestBootstrap_UnknownKeyVersionFailsInit(t *testing.T) {
	ctx := context.Background()
	relay := newFakeRelay()
	a := newDevice(t, relay, "dev-a", newSyncKey(t), true, Config{})
	_, err := a.rec.Mutate(ctx, "accounts", "acct-1", syncstore.OpCreate, map[string]string{"name": "x"})
	require.NoError(t, err)
	_, err = a.engine.TriggerSyncCycle(ctx)
	require.NoError(t, err)
	_, err = a.engine.UploadSnapshot(ctx)
	require.NoError(t, err)

	// a device holding a different key cannot open the snapshot
	b := newDevice(t, relay, "dev-b", newSyncKey(t), false, Config{})
	_, err = b.engine.BootstrapSnapshotIfNeeded(ctx)
	assert.ErrorIs(t, err, ErrInitFailed)

	n, err := b.store.CountEntities(ctx, "accounts")
	require.NoError(t, err)
	assert.Zero(t, n)
	state, err := b.trust.DetectState(ctx)
	require.NoError(t, err)
	assert.Equal(t, trust.StateStale, state)
}

func TestBootstrap_AfterStaleCursor(t *testing.T) {
	ctx := context.Background()
	relay := newFakeRelay()
	key := newSyncKey(t)
	a := newDevice(t, relay, "dev-a", key, true, Config{})
	b := newDevice(t, relay, "dev-b", key, true, Config{})

	_, err := a.rec.Mutate(ctx, "accounts", "acct-1", syncstore.OpCreate, map[string]string{"v": "1"})
	require.NoError(t, err)
	_, err = a.engine.TriggerSyncCycle(ctx)
	require.NoError(t, err)
	_, err = b.engine.TriggerSyncCycle(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, b.cursor(t))

	for i := range 3 {
		_, err = a.rec.Mutate(ctx, "accounts", "acct-1", syncstore.OpUpdate, map[string]int{"v": i + 2})
		require.NoError(t, err)
	}
	_, err = a.engine.TriggerSyncCycle(ctx)
	require.NoError(t, err)
	_, err = a.engine.UploadSnapshot(ctx)
	require.NoError(t, err)

	require.NoError(t, b.store.ClearBootstrap(ctx, "dev-b"))
	res, err := b.engine.BootstrapSnapshotIfNeeded(ctx)
	require.NoError(t, err)
	assert.Equal(t, BootstrapRestored, res.Status)
	assert.EqualValues(t, 4, b.cursor(t))
	assert.JSONEq(t, `{"v":4}`, b.entityData(t, "accounts", "acct-1"))
}
