package events

import "github.com/ledgersync/ledgersync/internal/db"

const eventsSchema = `
CREATE TABLE IF NOT EXISTS relay_accounts (
    account TEXT PRIMARY KEY,
    cursor INTEGER NOT NULL DEFAULT 0,
    gc_watermark INTEGER NOT NULL DEFAULT 0,
    updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS relay_events (
    account TEXT NOT NULL,
    seq INTEGER NOT NULL,
    event_id TEXT NOT NULL,
    event_type TEXT NOT NULL,
    entity TEXT NOT NULL,
    entity_id TEXT NOT NULL,
    op TEXT NOT NULL CHECK (op IN ('create', 'update', 'delete')),
    client_timestamp TEXT NOT NULL,
    payload TEXT NOT NULL,
    payload_key_version INTEGER NOT NULL,
    device_id TEXT NOT NULL,
    received_at TEXT NOT NULL,
    PRIMARY KEY (account, seq)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_relay_events_id ON relay_events(account, event_id);
`

const devicesSchema = `
CREATE TABLE IF NOT EXISTS relay_devices (
    account TEXT NOT NULL,
    device_id TEXT NOT NULL,
    name TEXT NOT NULL DEFAULT '',
    platform TEXT NOT NULL DEFAULT '',
    trust_state TEXT NOT NULL DEFAULT 'active' CHECK (trust_state IN ('active', 'revoked')),
    key_version INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL,
    last_seen_at TEXT NOT NULL,
    PRIMARY KEY (account, device_id)
);
`

// Migrations use versions below 100; other relay packages sharing the
// database number theirs above.
func Migrations() []db.Migration {
	return []db.Migration{
		{Version: 1, Name: "relay events", SQL: eventsSchema},
		{Version: 2, Name: "relay devices", SQL: devicesSchema},
		{Version: 3, Name: "relay device machine", SQL: `ALTER TABLE relay_devices ADD COLUMN machine TEXT NOT NULL DEFAULT '';`},
	}
}
