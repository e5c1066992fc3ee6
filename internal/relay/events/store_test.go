package events

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgersync/ledgersync/internal/db"
)

const account = "alice@example.com"

func newTestStore(t *testing.T) *Store {
	t.Helper()
	conn, err := db.NewSqliteDB(db.WithPath(filepath.Join(t.TempDir(), "relay.db")))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, db.Migrate(context.Background(), conn, Migrations()))
	return NewStore(conn)
}

func event(id, entityID string) *Event {
	return &Event{
		EventID:           id,
		Entity:            "accounts",
		EntityID:          entityID,
		Op:                "update",
		ClientTimestamp:   "2026-01-02T03:04:05Z",
		Payload:           "ciphertext-" + id,
		PayloadKeyVersion: 1,
	}
}

func TestPushAssignsSequentialSeq(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	results, cursor, err := s.Push(ctx, account, "dev-a", []*Event{event("e1", "a1"), event("e2", "a1")})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.True(t, results[0].Accepted)
	assert.Equal(t, int64(1), results[0].Seq)
	assert.Equal(t, int64(2), results[1].Seq)
	assert.Equal(t, int64(2), cursor)

	c, err := s.Cursor(ctx, account)
	require.NoError(t, err)
	assert.Equal(t, int64(2), c.Cursor)

	// accounts are independent
	_, cursor, err = s.Push(ctx, "bob@example.com", "dev-x", []*Event{event("e1", "b1")})
	require.NoError(t, err)
	assert.Equal(t, int64(1), cursor)
}

func TestPushIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, _, err := s.Push(ctx, account, "dev-a", []*Event{event("e1", "a1")})
	require.NoError(t, err)

	results, cursor, err := s.Push(ctx, account, "dev-a", []*Event{event("e1", "a1"), event("e2", "a1"), event("e2", "a1")})
	require.NoError(t, err)
	assert.Equal(t, int64(2), cursor)
	assert.Equal(t, int64(1), results[0].Seq)
	assert.Equal(t, int64(2), results[1].Seq)
	assert.Equal(t, int64(2), results[2].Seq)
	for _, r := range results {
		assert.True(t, r.Accepted)
	}
}

func TestPushRejectsInvalidEventsIndividually(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	bad := event("e2", "a1")
	bad.Op = "merge"
	foreign := event("e3", "a1")
	foreign.DeviceID = "dev-b"

	results, cursor, err := s.Push(ctx, account, "dev-a", []*Event{event("e1", "a1"), bad, foreign, event("e4", "a1")})
	require.NoError(t, err)
	assert.Equal(t, int64(2), cursor)

	assert.True(t, results[0].Accepted)
	assert.False(t, results[1].Accepted)
	assert.Equal(t, codeEventRejected, results[1].Code)
	assert.False(t, results[2].Accepted)
	assert.True(t, results[3].Accepted)
	assert.Equal(t, int64(2), results[3].Seq)
}

func TestPull(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	batch := make([]*Event, 0, 5)
	for i := range 5 {
		batch = append(batch, event(fmt.Sprintf("e%d", i), "a1"))
	}
	_, _, err := s.Push(ctx, account, "dev-a", batch)
	require.NoError(t, err)

	page, err := s.Pull(ctx, account, 0, 2)
	require.NoError(t, err)
	require.Len(t, page.Events, 2)
	assert.True(t, page.HasMore)
	assert.Equal(t, int64(2), page.NextCursor)
	assert.Equal(t, "e0", page.Events[0].EventID)
	assert.Equal(t, "dev-a", page.Events[0].DeviceID)
	assert.Equal(t, "accounts.update.v1", page.Events[0].EventType)

	page, err = s.Pull(ctx, account, 2, 10)
	require.NoError(t, err)
	assert.Len(t, page.Events, 3)
	assert.False(t, page.HasMore)
	assert.Equal(t, int64(5), page.NextCursor)

	page, err = s.Pull(ctx, account, 5, 10)
	require.NoError(t, err)
	assert.Empty(t, page.Events)
	assert.Equal(t, int64(5), page.NextCursor)
}

func TestGCAndStaleCursor(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	batch := make([]*Event, 0, 10)
	for i := range 10 {
		batch = append(batch, event(fmt.Sprintf("e%d", i), "a1"))
	}
	_, _, err := s.Push(ctx, account, "dev-a", batch)
	require.NoError(t, err)

	// no snapshot yet, nothing may be collected
	removed, err := s.GC(ctx, account, 2, 0)
	require.NoError(t, err)
	assert.Zero(t, removed)

	// bounded by the snapshot seq
	removed, err = s.GC(ctx, account, 2, 6)
	require.NoError(t, err)
	assert.Equal(t, int64(6), removed)

	c, err := s.Cursor(ctx, account)
	require.NoError(t, err)
	assert.Equal(t, int64(6), c.GCWatermark)

	_, err = s.Pull(ctx, account, 3, 10)
	assert.ErrorIs(t, err, ErrCursorStale)

	page, err := s.Pull(ctx, account, 6, 10)
	require.NoError(t, err)
	assert.Len(t, page.Events, 4)

	// bounded by retain
	removed, err = s.GC(ctx, account, 2, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)
}

func TestDeviceRegistry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	d, err := s.RegisterDevice(ctx, &Device{Account: account, DeviceID: "dev-a", Name: "laptop", Platform: "linux"})
	require.NoError(t, err)
	assert.Equal(t, TrustActive, d.TrustState)
	assert.False(t, d.CreatedAt.IsZero())

	// re-register keeps the old name when none is given
	d, err = s.RegisterDevice(ctx, &Device{Account: account, DeviceID: "dev-a"})
	require.NoError(t, err)
	assert.Equal(t, "laptop", d.Name)

	_, err = s.RegisterDevice(ctx, &Device{Account: account, DeviceID: "dev-b", Name: "phone"})
	require.NoError(t, err)

	devices, err := s.ListDevices(ctx, account)
	require.NoError(t, err)
	assert.Len(t, devices, 2)

	other, err := s.ListDevices(ctx, "bob@example.com")
	require.NoError(t, err)
	assert.Empty(t, other)

	d, err = s.RenameDevice(ctx, account, "dev-b", "tablet")
	require.NoError(t, err)
	assert.Equal(t, "tablet", d.Name)

	_, err = s.RenameDevice(ctx, account, "missing", "x")
	assert.ErrorIs(t, err, ErrDeviceNotFound)

	_, err = s.CheckDevice(ctx, account, "dev-b")
	require.NoError(t, err)

	d, err = s.RevokeDevice(ctx, account, "dev-b")
	require.NoError(t, err)
	assert.True(t, d.Revoked())

	_, err = s.CheckDevice(ctx, account, "dev-b")
	assert.ErrorIs(t, err, ErrDeviceRevoked)

	// revocation survives re-registration
	d, err = s.RegisterDevice(ctx, &Device{Account: account, DeviceID: "dev-b"})
	require.NoError(t, err)
	assert.True(t, d.Revoked())

	_, err = s.CheckDevice(ctx, account, "dev-z")
	assert.ErrorIs(t, err, ErrDeviceNotFound)
}

func TestPushRaisesDeviceKeyVersion(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.RegisterDevice(ctx, &Device{Account: account, DeviceID: "dev-a"})
	require.NoError(t, err)

	ev := event("e1", "a1")
	ev.PayloadKeyVersion = 3
	_, _, err = s.Push(ctx, account, "dev-a", []*Event{ev})
	require.NoError(t, err)

	d, err := s.Device(ctx, account, "dev-a")
	require.NoError(t, err)
	assert.Equal(t, 3, d.KeyVersion)
}
