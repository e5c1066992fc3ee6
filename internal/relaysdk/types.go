package relaysdk

import "time"

const (
	HeaderUserAgent = "User-Agent"
	HeaderDeviceID  = "X-Device-Id"
	HeaderVersion   = "X-LedgerSync-Version"

	HeaderSnapshotSeq        = "X-Snapshot-Seq"
	HeaderSnapshotKeyVersion = "X-Snapshot-Key-Version"
	HeaderSnapshotChecksum   = "X-Snapshot-Checksum"
	HeaderSnapshotEventID    = "X-Snapshot-Event-Id"
	HeaderSnapshotID         = "X-Snapshot-Id"
)

// auth

type OTPRequest struct {
	Email string `json:"email"`
}

type OTPVerifyRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type AuthTokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// pairing

type CreatePairingRequest struct {
	IssuerPublicKey  string `json:"issuerPublicKey"`
	IssuerDeviceID   string `json:"issuerDeviceId"`
	IssuerDeviceName string `json:"issuerDeviceName,omitempty"`
}

type PairingSession struct {
	PairingID       string    `json:"pairingId"`
	Code            string    `json:"code"`
	IssuerPublicKey string    `json:"issuerPublicKey"`
	ExpiresAt       time.Time `json:"expiresAt"`
}

type ResolvePairingRequest struct {
	Code string `json:"code"`
}

type ResolvedPairing struct {
	PairingID        string    `json:"pairingId"`
	IssuerPublicKey  string    `json:"issuerPublicKey"`
	IssuerDeviceID   string    `json:"issuerDeviceId"`
	IssuerDeviceName string    `json:"issuerDeviceName,omitempty"`
	ExpiresAt        time.Time `json:"expiresAt"`
}

type ClaimPairingRequest struct {
	Code              string `json:"code"`
	ClaimerPublicKey  string `json:"claimerPublicKey"`
	ClaimerDeviceID   string `json:"claimerDeviceId"`
	ClaimerDeviceName string `json:"claimerDeviceName,omitempty"`
}

type PairingStatus struct {
	Claimed           bool      `json:"claimed"`
	ClaimerPublicKey  string    `json:"claimerPublicKey,omitempty"`
	ClaimerDeviceID   string    `json:"claimerDeviceId,omitempty"`
	ClaimerDeviceName string    `json:"claimerDeviceName,omitempty"`
	Completed         bool      `json:"completed"`
	ExpiresAt         time.Time `json:"expiresAt"`
}

type CompletePairingRequest struct {
	EncryptedKeyBundle string `json:"encryptedKeyBundle"`
}

// PairingBundle is empty until the issuer completes the pairing.
type PairingBundle struct {
	EncryptedKeyBundle string `json:"encryptedKeyBundle"`
}

// sync

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
	Events []SyncEvent `json:"events"`
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

type PullResponse struct {
	Events     []SyncEvent `json:"events"`
	NextCursor int64       `json:"nextCursor"`
	HasMore    bool        `json:"hasMore"`
}

type CursorResponse struct {
	Cursor      int64 `json:"cursor"`
	GCWatermark int64 `json:"gcWatermark"`
}

// snapshots

type SnapshotMeta struct {
	SnapshotID string    `json:"snapshotId"`
	Seq        int64     `json:"seq"`
	KeyVersion int       `json:"keyVersion"`
	Checksum   string    `json:"checksum"`
	SizeBytes  int64     `json:"sizeBytes"`
	DeviceID   string    `json:"deviceId"`
	CreatedAt  time.Time `json:"createdAt"`
}

type SnapshotUpload struct {
	EventID    string
	Seq        int64
	KeyVersion int
	Data       []byte
}

// devices

type Device struct {
	DeviceID   string    `json:"deviceId"`
	Name       string    `json:"name"`
	Platform   string    `json:"platform"`
	Machine    string    `json:"machine,omitempty"`
	TrustState string    `json:"trustState"`
	KeyVersion int       `json:"keyVersion"`
	CreatedAt  time.Time `json:"createdAt"`
	LastSeenAt time.Time `json:"lastSeenAt"`
}

type RegisterDeviceRequest struct {
	DeviceID string `json:"deviceId"`
	Name     string `json:"name"`
	Platform string `json:"platform"`
	// Machine is a hashed machine fingerprint shared by every enrollment
	// made on the same computer.
	Machine string `json:"machine,omitempty"`
}

type RenameDeviceRequest struct {
	Name string `json:"name"`
}

type DeviceList struct {
	Devices []Device `json:"devices"`
}

// events

const NotificationEventsAvailable = "events.available"

// Notification is a server push telling devices new events exist.
type Notification struct {
	Type string `json:"type"`
	Seq  int64  `json:"seq"`
}
