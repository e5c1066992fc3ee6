package devices

import "time"

type RegisterRequest struct {
	DeviceID string `json:"deviceId" binding:"required"`
	Name     string `json:"name"`
	Platform string `json:"platform"`
	Machine  string `json:"machine"`
}

type RenameRequest struct {
	Name string `json:"name" binding:"required"`
}

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

type DeviceList struct {
	Devices []Device `json:"devices"`
}
