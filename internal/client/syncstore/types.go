package syncstore

import (
	"database/sql"
	"time"
)

type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

func (o Op) Valid() bool {
	return o == OpCreate || o == OpUpdate || o == OpDelete
}

type OutboxStatus string

const (
	StatusPending OutboxStatus = "pending"
	StatusSending OutboxStatus = "sending"
	StatusSent    OutboxStatus = "sent"
	StatusFailed  OutboxStatus = "failed"
)

type TrustState string

const (
	TrustUntrusted TrustState = "untrusted"
	TrustTrusted   TrustState = "trusted"
	TrustRevoked   TrustState = "revoked"
)

// OutboxEvent is one local mutation waiting to be acknowledged by the relay.
type OutboxEvent struct {
	EventID           string         `db:"event_id"`
	Entity            string         `db:"entity"`
	EntityID          string         `db:"entity_id"`
	Op                Op             `db:"op"`
	ClientTimestamp   string         `db:"client_timestamp"`
	Payload           string         `db:"payload"`
	PayloadKeyVersion int            `db:"payload_key_version"`
	Sent              bool           `db:"sent"`
	Status            OutboxStatus   `db:"status"`
	RetryCount        int            `db:"retry_count"`
	NextRetryAt       Timestamp      `db:"next_retry_at"`
	LastError         sql.NullString `db:"last_error"`
	LastErrorCode     sql.NullString `db:"last_error_code"`
	DeviceID          string         `db:"device_id"`
	CreatedAt         Timestamp      `db:"created_at"`
}

// EventType is the wire event type, e.g. "accounts.update.v1".
func (e *OutboxEvent) EventType() string {
	return EventType(e.Entity, e.Op)
}

func EventType(entity string, op Op) string {
	return entity + "." + string(op) + ".v1"
}

// EntityMetadata tracks the last applied write for one entity row.
type EntityMetadata struct {
	Entity              string `db:"entity"`
	EntityID            string `db:"entity_id"`
	LastEventID         string `db:"last_event_id"`
	LastClientTimestamp string `db:"last_client_timestamp"`
	LastSeq             int64  `db:"last_seq"`
}

type DeviceConfig struct {
	DeviceID        string     `db:"device_id"`
	DeviceName      string     `db:"device_name"`
	Platform        string     `db:"platform"`
	IsLocal         bool       `db:"is_local"`
	KeyVersion      int        `db:"key_version"`
	TrustState      TrustState `db:"trust_state"`
	LastBootstrapAt Timestamp  `db:"last_bootstrap_at"`
	CreatedAt       Timestamp  `db:"created_at"`
	UpdatedAt       Timestamp  `db:"updated_at"`
}

func (d *DeviceConfig) Trusted() bool {
	return d != nil && d.TrustState == TrustTrusted
}

type EngineState struct {
	LockVersion         int64          `db:"lock_version"`
	LastPushAt          Timestamp      `db:"last_push_at"`
	LastPullAt          Timestamp      `db:"last_pull_at"`
	LastError           sql.NullString `db:"last_error"`
	ConsecutiveFailures int            `db:"consecutive_failures"`
	NextRetryAt         Timestamp      `db:"next_retry_at"`
	LastCycleStatus     sql.NullString `db:"last_cycle_status"`
	LastCycleDurationMs sql.NullInt64  `db:"last_cycle_duration_ms"`
}

type TableState struct {
	TableName              string    `db:"table_name"`
	Enabled                bool      `db:"enabled"`
	LastSnapshotRestoreAt  Timestamp `db:"last_snapshot_restore_at"`
	LastIncrementalApplyAt Timestamp `db:"last_incremental_apply_at"`
}

type AppliedEvent struct {
	EventID   string    `db:"event_id"`
	Seq       int64     `db:"seq"`
	Entity    string    `db:"entity"`
	EntityID  string    `db:"entity_id"`
	AppliedAt Timestamp `db:"applied_at"`
}

// CycleOutcome is what a finished cycle writes back into EngineState.
type CycleOutcome struct {
	Status     string
	Err        error
	Pushed     bool
	Pulled     bool
	Duration   time.Duration
	RetryDelay time.Duration
	// Benign outcomes record their status but leave the failure counter,
	// last error and retry schedule as they were.
	Benign bool
}

// EntityRow is one document of a synced table.
type EntityRow struct {
	ID        string    `db:"id" json:"id"`
	Data      string    `db:"data" json:"data"`
	UpdatedAt Timestamp `db:"updated_at" json:"-"`
}
