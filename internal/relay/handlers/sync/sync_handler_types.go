package sync

import "time"

const (
	headerSnapshotEventID    = "X-Snapshot-Event-Id"
	headerSnapshotSeq        = "X-Snapshot-Seq"
	headerSnapshotKeyVersion = "X-Snapshot-Key-Version"
	headerSnapshotChecksum   = "X-Snapshot-Checksum"
	headerSnapshotID         = "X-Snapshot-Id"
)

// SyncEvent is the wire form of one encrypted mutation.
type SyncEvent struct {
	Seq               int64  `json:"seq,omitempty"`
	EventID           string `json:"event_id"`
	EventType         string `json:"event_type"`
	Entity            string `json:"entity"`
	EntityID          string `json:"entity_id"`
	Op                string `json:"op"`
	ClientTimestamp   string `json:"client_timestamp"`
	Payload           string `json:"payload"`
	PayloadKeyVersion int    `json:"payload_key_version"`
	DeviceID          string `json:"device_id"`
}

type PushRequest struct {
	Events []SyncEvent `json:"events" binding:"required"`
}

type PushResult struct {
	EventID  string `json:"event_id"`
	Accepted bool   `json:"accepted"`
	Seq      int64  `json:"seq,omitempty"`
	Code     string `json:"code,omitempty"`
	Error    string `json:"error,omitempty"`
}

type PushResponse struct {
	Results []PushResult `json:"results"`
}

type PullRequest struct {
	Since int64 `form:"since" binding:"min=0"`
	Limit int   `form:"limit" binding:"min=0"`
}

type PullResponse struct {
	Events     []SyncEvent `json:"events"`
	NextCursor int64       `json:"nextCursor"`
	HasMore    bool        `json:"hasMore"`
}

type CursorResponse struct {
	Cursor      int64 `json:"cursor"`
	GCWatermark int64 `json:"gcWatermark"`
}

type SnapshotMeta struct {
	SnapshotID string    `json:"snapshotId"`
	Seq        int64     `json:"seq"`
	KeyVersion int       `json:"keyVersion"`
	Checksum   string    `json:"checksum"`
	SizeBytes  int64     `json:"sizeBytes"`
	DeviceID   string    `json:"deviceId"`
	CreatedAt  time.Time `json:"createdAt"`
}
