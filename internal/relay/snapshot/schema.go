package snapshot

import "github.com/ledgersync/ledgersync/internal/db"

const snapshotSchema = `
CREATE TABLE IF NOT EXISTS relay_snapshots (
    snapshot_id TEXT PRIMARY KEY,
    account TEXT NOT NULL,
    event_id TEXT NOT NULL,
    seq INTEGER NOT NULL,
    key_version INTEGER NOT NULL,
    checksum TEXT NOT NULL,
    size_bytes INTEGER NOT NULL,
    device_id TEXT NOT NULL,
    blob_key TEXT NOT NULL,
    created_at TEXT NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_relay_snapshots_event ON relay_snapshots(account, event_id);
CREATE INDEX IF NOT EXISTS idx_relay_snapshots_latest ON relay_snapshots(account, seq DESC, created_at DESC);
`

func Migrations() []db.Migration {
	return []db.Migration{
		{Version: 101, Name: "relay snapshots", SQL: snapshotSchema},
	}
}
