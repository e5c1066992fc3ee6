package syncstore

import "github.com/ledgersync/ledgersync/internal/db"

const syncSchema = `
CREATE TABLE IF NOT EXISTS sync_cursor (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    cursor INTEGER NOT NULL DEFAULT 0,
    updated_at TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS sync_outbox (
    event_id TEXT PRIMARY KEY,
    entity TEXT NOT NULL,
    entity_id TEXT NOT NULL,
    op TEXT NOT NULL CHECK (op IN ('create', 'update', 'delete')),
    client_timestamp TEXT NOT NULL,
    payload TEXT NOT NULL,
    payload_key_version INTEGER NOT NULL,
    sent INTEGER NOT NULL DEFAULT 0,
    status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'sending', 'sent', 'failed')),
    retry_count INTEGER NOT NULL DEFAULT 0,
    next_retry_at TEXT NOT NULL,
    last_error TEXT,
    last_error_code TEXT,
    device_id TEXT NOT NULL,
    created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sync_outbox_ready ON sync_outbox(status, next_retry_at);
CREATE INDEX IF NOT EXISTS idx_sync_outbox_created ON sync_outbox(created_at);

CREATE TABLE IF NOT EXISTS sync_entity_metadata (
    entity TEXT NOT NULL,
    entity_id TEXT NOT NULL,
    last_event_id TEXT NOT NULL,
    last_client_timestamp TEXT NOT NULL,
    last_seq INTEGER NOT NULL,
    PRIMARY KEY (entity, entity_id)
);

CREATE TABLE IF NOT EXISTS sync_device_config (
    device_id TEXT PRIMARY KEY,
    device_name TEXT NOT NULL DEFAULT '',
    platform TEXT NOT NULL DEFAULT '',
    is_local INTEGER NOT NULL DEFAULT 0,
    key_version INTEGER NOT NULL DEFAULT 0,
    trust_state TEXT NOT NULL DEFAULT 'untrusted' CHECK (trust_state IN ('untrusted', 'trusted', 'revoked')),
    last_bootstrap_at TEXT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_sync_device_local ON sync_device_config(is_local) WHERE is_local = 1;

CREATE TABLE IF NOT EXISTS sync_engine_state (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    lock_version INTEGER NOT NULL DEFAULT 0,
    last_push_at TEXT,
    last_pull_at TEXT,
    last_error TEXT,
    consecutive_failures INTEGER NOT NULL DEFAULT 0,
    next_retry_at TEXT,
    last_cycle_status TEXT,
    last_cycle_duration_ms INTEGER
);

CREATE TABLE IF NOT EXISTS sync_table_state (
    table_name TEXT PRIMARY KEY,
    enabled INTEGER NOT NULL DEFAULT 1,
    last_snapshot_restore_at TEXT,
    last_incremental_apply_at TEXT
);

CREATE TABLE IF NOT EXISTS sync_applied_events (
    event_id TEXT PRIMARY KEY,
    seq INTEGER NOT NULL,
    entity TEXT NOT NULL,
    entity_id TEXT NOT NULL,
    applied_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sync_applied_seq ON sync_applied_events(seq);
`

const seedSingletons = `
INSERT OR IGNORE INTO sync_cursor (id, cursor) VALUES (1, 0);
INSERT OR IGNORE INTO sync_engine_state (id) VALUES (1);
`

func migrations() []db.Migration {
	return []db.Migration{
		{Version: 1, Name: "sync tables", SQL: syncSchema + seedSingletons + seedTableStateSQL()},
		{Version: 2, Name: "entity tables", SQL: entityTablesDDL()},
	}
}
