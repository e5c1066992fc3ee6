package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/ledgersync/ledgersync/internal/client/syncstore"
	"github.com/ledgersync/ledgersync/internal/relaysdk"
	"github.com/ledgersync/ledgersync/internal/synccrypto"
)

// SnapshotAD is the additional data a snapshot at seq is sealed with.
func SnapshotAD(seq int64) string {
	return "snapshot|" + strconv.FormatInt(seq, 10)
}

// UploadSnapshot seals the enabled tables at the current cursor under the
// current key version and stores them on the relay.
func (e *Engine) UploadSnapshot(ctx context.Context) (*relaysdk.SnapshotMeta, error) {
	local, keyring, err := e.trust.Trusted(ctx)
	if err != nil {
		return nil, err
	}

	tables, err := e.store.EnabledTables(ctx)
	if err != nil {
		return nil, err
	}
	snap, err := e.store.ExportSnapshot(ctx, tables)
	if err != nil {
		return nil, err
	}

	sealed, keyVersion, err := sealSnapshot(keyring, snap)
	if err != nil {
		return nil, err
	}

	eventID, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}
	meta, err := e.snapshots.Upload(ctx, &relaysdk.SnapshotUpload{
		EventID:    eventID.String(),
		Seq:        snap.Seq,
		KeyVersion: keyVersion,
		Data:       sealed,
	})
	if err != nil {
		return nil, fmt.Errorf("upload snapshot: %w", relayErr(err))
	}

	slog.Info("snapshot uploaded", "id", meta.SnapshotID, "seq", meta.Seq, "tables", len(tables),
		"size", len(sealed), "device", local.DeviceID)
	return meta, nil
}

func sealSnapshot(keyring *synccrypto.Keyring, snap *syncstore.SnapshotData) ([]byte, int, error) {
	plain, err := json.Marshal(snap)
	if err != nil {
		return nil, 0, fmt.Errorf("encode snapshot: %w", err)
	}
	version := keyring.Current()
	sealed, err := keyring.Encrypt(version, plain, SnapshotAD(snap.Seq))
	if err != nil {
		return nil, 0, fmt.Errorf("seal snapshot: %w", err)
	}
	return []byte(sealed), version, nil
}

func openSnapshot(keyring *synccrypto.Keyring, meta *relaysdk.SnapshotMeta, data []byte) (*syncstore.SnapshotData, error) {
	if !keyring.Has(meta.KeyVersion) {
		return nil, fmt.Errorf("%w: snapshot %s uses key version %d", ErrKeyVersionMismatch, meta.SnapshotID, meta.KeyVersion)
	}
	plain, err := keyring.Decrypt(meta.KeyVersion, string(data), SnapshotAD(meta.Seq))
	if err != nil {
		return nil, fmt.Errorf("decrypt snapshot %s: %w", meta.SnapshotID, err)
	}
	var snap syncstore.SnapshotData
	if err := json.Unmarshal(plain, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", meta.SnapshotID, err)
	}
	if snap.Seq != meta.Seq {
		return nil, fmt.Errorf("snapshot %s: body seq %d does not match %d", meta.SnapshotID, snap.Seq, meta.Seq)
	}
	return &snap, nil
}
