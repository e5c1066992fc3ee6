// Package snapshot stores encrypted full-state snapshots uploaded by devices:
// metadata in the relay database, blobs in a Backend.
package snapshot

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ledgersync/ledgersync/internal/db"
)

var (
	ErrNotFound         = errors.New("snapshot: not found")
	ErrChecksumMismatch = errors.New("snapshot: checksum mismatch")
	ErrInvalid          = errors.New("snapshot: invalid upload")
)

type Meta struct {
	SnapshotID string       `db:"snapshot_id"`
	Account    string       `db:"account"`
	EventID    string       `db:"event_id"`
	Seq        int64        `db:"seq"`
	KeyVersion int          `db:"key_version"`
	Checksum   string       `db:"checksum"`
	SizeBytes  int64        `db:"size_bytes"`
	DeviceID   string       `db:"device_id"`
	BlobKey    string       `db:"blob_key"`
	CreatedAt  db.Timestamp `db:"created_at"`
}

type Upload struct {
	Account    string
	DeviceID   string
	EventID    string
	Seq        int64
	KeyVersion int
	Checksum   string
	Data       []byte
}

const metaColumns = `snapshot_id, account, event_id, seq, key_version, checksum, size_bytes, device_id, blob_key, created_at`

type Store struct {
	db      *sqlx.DB
	backend Backend
	keep    int
	now     func() time.Time
}

func NewStore(conn *sqlx.DB, backend Backend, keep int) *Store {
	return &Store{db: conn, backend: backend, keep: max(keep, 1), now: time.Now}
}

// Checksum is the "sha256:<hex>" digest devices declare on upload.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:])
}

// Save verifies and stores a snapshot. Uploading the same event id again
// returns the stored metadata. Older snapshots beyond the keep count are pruned.
func (s *Store) Save(ctx context.Context, up *Upload) (*Meta, error) {
	if up.EventID == "" || up.Seq < 0 || up.KeyVersion <= 0 || len(up.Data) == 0 {
		return nil, fmt.Errorf("%w: event id, seq, key version and data are required", ErrInvalid)
	}
	if Checksum(up.Data) != up.Checksum {
		return nil, ErrChecksumMismatch
	}

	existing, err := s.byEventID(ctx, up.Account, up.EventID)
	if err == nil {
		return existing, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("snapshot id: %w", err)
	}

	meta := &Meta{
		SnapshotID: id.String(),
		Account:    up.Account,
		EventID:    up.EventID,
		Seq:        up.Seq,
		KeyVersion: up.KeyVersion,
		Checksum:   up.Checksum,
		SizeBytes:  int64(len(up.Data)),
		DeviceID:   up.DeviceID,
		BlobKey:    blobKey(up.Account, id.String()),
		CreatedAt:  db.NewTimestamp(s.now()),
	}

	if err := s.backend.Put(ctx, meta.BlobKey, up.Data); err != nil {
		return nil, fmt.Errorf("store snapshot blob: %w", err)
	}
	if _, err := s.db.NamedExecContext(ctx, `INSERT INTO relay_snapshots (`+metaColumns+`)
		VALUES (:snapshot_id, :account, :event_id, :seq, :key_version, :checksum, :size_bytes, :device_id, :blob_key, :created_at)`, meta); err != nil {
		if delErr := s.backend.Delete(ctx, meta.BlobKey); delErr != nil {
			slog.Warn("snapshot blob cleanup", "key", meta.BlobKey, "error", delErr)
		}
		return nil, fmt.Errorf("insert snapshot: %w", err)
	}

	slog.Info("snapshot stored", "account", up.Account, "snapshotId", meta.SnapshotID, "seq", meta.Seq, "size", meta.SizeBytes)
	s.prune(ctx, up.Account)
	return meta, nil
}

// Latest returns the snapshot with the highest seq.
func (s *Store) Latest(ctx context.Context, account string) (*Meta, error) {
	var m Meta
	err := s.db.GetContext(ctx, &m, `SELECT `+metaColumns+` FROM relay_snapshots
		WHERE account = ? ORDER BY seq DESC, created_at DESC LIMIT 1`, account)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("latest snapshot: %w", err)
	}
	return &m, nil
}

// LatestSeq is 0 when the account has no snapshot.
func (s *Store) LatestSeq(ctx context.Context, account string) (int64, error) {
	m, err := s.Latest(ctx, account)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	} else if err != nil {
		return 0, err
	}
	return m.Seq, nil
}

// Get returns a snapshot's metadata and blob.
func (s *Store) Get(ctx context.Context, account, snapshotID string) (*Meta, []byte, error) {
	var m Meta
	err := s.db.GetContext(ctx, &m, `SELECT `+metaColumns+` FROM relay_snapshots
		WHERE account = ? AND snapshot_id = ?`, account, snapshotID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, ErrNotFound
	} else if err != nil {
		return nil, nil, fmt.Errorf("read snapshot: %w", err)
	}

	data, err := s.backend.Get(ctx, m.BlobKey)
	if errors.Is(err, ErrBlobMissing) {
		return nil, nil, ErrNotFound
	} else if err != nil {
		return nil, nil, fmt.Errorf("read snapshot blob: %w", err)
	}
	return &m, data, nil
}

func (s *Store) byEventID(ctx context.Context, account, eventID string) (*Meta, error) {
	var m Meta
	err := s.db.GetContext(ctx, &m, `SELECT `+metaColumns+` FROM relay_snapshots
		WHERE account = ? AND event_id = ?`, account, eventID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return &m, nil
}

func (s *Store) prune(ctx context.Context, account string) {
	var old []*Meta
	if err := s.db.SelectContext(ctx, &old, `SELECT `+metaColumns+` FROM relay_snapshots
		WHERE account = ? ORDER BY seq DESC, created_at DESC LIMIT -1 OFFSET ?`, account, s.keep); err != nil {
		slog.Warn("snapshot prune", "account", account, "error", err)
		return
	}

	for _, m := range old {
		if err := s.backend.Delete(ctx, m.BlobKey); err != nil {
			slog.Warn("snapshot prune blob", "key", m.BlobKey, "error", err)
			continue
		}
		if _, err := s.db.ExecContext(ctx, `DELETE FROM relay_snapshots WHERE snapshot_id = ?`, m.SnapshotID); err != nil {
			slog.Warn("snapshot prune row", "snapshotId", m.SnapshotID, "error", err)
		}
	}
	if len(old) > 0 {
		slog.Debug("snapshots pruned", "account", account, "count", len(old))
	}
}

// blobKey hashes the account so emails never appear in object keys.
func blobKey(account, id string) string {
	sum := sha256.Sum256([]byte(account))
	return "snapshots/" + hex.EncodeToString(sum[:8]) + "/" + id + ".bin"
}
