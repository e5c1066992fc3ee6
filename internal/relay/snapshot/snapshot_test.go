package snapshot

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

func newTestStore(t *testing.T, keep int) (*Store, *LocalBackend) {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.NewSqliteDB(db.WithPath(filepath.Join(dir, "relay.db")))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, db.Migrate(context.Background(), conn, Migrations()))

	backend, err := NewLocalBackend(filepath.Join(dir, "blobs"))
	require.NoError(t, err)
	return NewStore(conn, backend, keep), backend
}

func upload(eventID string, seq int64, data string) *Upload {
	return &Upload{
		Account:    account,
		DeviceID:   "dev-a",
		EventID:    eventID,
		Seq:        seq,
		KeyVersion: 1,
		Checksum:   Checksum([]byte(data)),
		Data:       []byte(data),
	}
}

func TestSaveAndGet(t *testing.T) {
	s, _ := newTestStore(t, 3)
	ctx := context.Background()

	meta, err := s.Save(ctx, upload("snap-1", 4, "sealed state"))
	require.NoError(t, err)
	assert.Equal(t, int64(4), meta.Seq)
	assert.Equal(t, int64(len("sealed state")), meta.SizeBytes)
	assert.NotContains(t, meta.BlobKey, "alice")

	latest, err := s.Latest(ctx, account)
	require.NoError(t, err)
	assert.Equal(t, meta.SnapshotID, latest.SnapshotID)

	got, data, err := s.Get(ctx, account, meta.SnapshotID)
	require.NoError(t, err)
	assert.Equal(t, "sealed state", string(data))
	assert.Equal(t, meta.Checksum, got.Checksum)

	_, _, err = s.Get(ctx, "bob@example.com", meta.SnapshotID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveIsIdempotentByEventID(t *testing.T) {
	s, _ := newTestStore(t, 3)
	ctx := context.Background()

	first, err := s.Save(ctx, upload("snap-1", 4, "a"))
	require.NoError(t, err)
	second, err := s.Save(ctx, upload("snap-1", 4, "a"))
	require.NoError(t, err)
	assert.Equal(t, first.SnapshotID, second.SnapshotID)
}

func TestSaveRejectsBadChecksum(t *testing.T) {
	s, _ := newTestStore(t, 3)
	up := upload("snap-1", 4, "a")
	up.Checksum = Checksum([]byte("b"))

	_, err := s.Save(context.Background(), up)
	assert.ErrorIs(t, err, ErrChecksumMismatch)

	_, err = s.Save(context.Background(), &Upload{Account: account, EventID: "x", KeyVersion: 1})
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestLatestWhenEmpty(t *testing.T) {
	s, _ := newTestStore(t, 3)
	_, err := s.Latest(context.Background(), account)
	assert.ErrorIs(t, err, ErrNotFound)

	seq, err := s.LatestSeq(context.Background(), account)
	require.NoError(t, err)
	assert.Zero(t, seq)
}

func TestPruneKeepsNewest(t *testing.T) {
	s, backend := newTestStore(t, 2)
	ctx := context.Background()

	var metas []*Meta
	for i := range 4 {
		m, err := s.Save(ctx, upload(fmt.Sprintf("snap-%d", i), int64(i*10), fmt.Sprintf("state-%d", i)))
		require.NoError(t, err)
		metas = append(metas, m)
	}

	latest, err := s.LatestSeq(ctx, account)
	require.NoError(t, err)
	assert.Equal(t, int64(30), latest)

	_, _, err = s.Get(ctx, account, metas[0].SnapshotID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = backend.Get(ctx, metas[1].BlobKey)
	assert.ErrorIs(t, err, ErrBlobMissing)

	_, _, err = s.Get(ctx, account, metas[2].SnapshotID)
	assert.NoError(t, err)
}

func TestLocalBackendRejectsTraversal(t *testing.T) {
	_, backend := newTestStore(t, 1)
	ctx := context.Background()

	assert.ErrorIs(t, backend.Put(ctx, "../escape", []byte("x")), ErrInvalidKey)
	assert.ErrorIs(t, backend.Put(ctx, "/abs", []byte("x")), ErrInvalidKey)
	assert.ErrorIs(t, backend.Put(ctx, "a//b", []byte("x")), ErrInvalidKey)
	require.NoError(t, backend.Delete(ctx, "snapshots/none.bin"))
}

func TestConfigValidate(t *testing.T) {
	cfg := &Config{Backend: BackendLocal, Dir: "/tmp/snaps", Keep: 3, MaxSizeBytes: 1 << 20}
	require.NoError(t, cfg.Validate())

	cfg.Backend = BackendS3
	assert.Error(t, cfg.Validate())

	cfg.S3 = &S3Config{BucketName: "b", Region: "us-east-1", AccessKey: "k", SecretKey: "s", Endpoint: "http://minio:9000"}
	require.NoError(t, cfg.Validate())

	cfg.Backend = "ftp"
	assert.Error(t, cfg.Validate())
}
