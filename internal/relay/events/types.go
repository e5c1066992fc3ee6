package events

import (
	"errors"

	"github.com/ledgersync/ledgersync/internal/db"
)

var (
	ErrCursorStale    = errors.New("events: cursor below gc watermark")
	ErrDeviceNotFound = errors.New("events: device not found")
	ErrDeviceRevoked  = errors.New("events: device revoked")
	ErrInvalidDevice  = errors.New("events: invalid device")
)

const (
	TrustActive  = "active"
	TrustRevoked = "revoked"
)

const (
	DefaultPullLimit = 500
	MaxPullLimit     = 1000
	MaxPushBatch     = 500
)

// Event is one encrypted mutation as stored by the relay.
type Event struct {
	Account           string `db:"account"`
	Seq               int64  `db:"seq"`
	EventID           string `db:"event_id"`
	EventType         string `db:"event_type"`
	Entity            string `db:"entity"`
	EntityID          string `db:"entity_id"`
	Op                string `db:"op"`
	ClientTimestamp   string `db:"client_timestamp"`
	Payload           string `db:"payload"`
	PayloadKeyVersion int    `db:"payload_key_version"`
	DeviceID          string `db:"device_id"`
	ReceivedAt        string `db:"received_at"`
}

type PushResult struct {
	EventID  string
	Accepted bool
	Seq      int64
	Code     string
	Error    string
}

type PullResult struct {
	Events     []*Event
	NextCursor int64
	HasMore    bool
}

type Cursor struct {
	Cursor      int64 `db:"cursor"`
	GCWatermark int64 `db:"gc_watermark"`
}

type Device struct {
	Account    string       `db:"account"`
	DeviceID   string       `db:"device_id"`
	Name       string       `db:"name"`
	Platform   string       `db:"platform"`
	Machine    string       `db:"machine"`
	TrustState string       `db:"trust_state"`
	KeyVersion int          `db:"key_version"`
	CreatedAt  db.Timestamp `db:"created_at"`
	LastSeenAt db.Timestamp `db:"last_seen_at"`
}

func (d *Device) Revoked() bool {
	return d.TrustState == TrustRevoked
}
