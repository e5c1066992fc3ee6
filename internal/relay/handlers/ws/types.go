package ws

const NotificationEventsAvailable = "events.available"

// Notification tells a device the account log moved. Devices pull to catch up.
type Notification struct {
	Type string `json:"type"`
	Seq  int64  `json:"seq"`
}

type ClientInfo struct {
	User     string
	DeviceID string
	IPAddr   string
	Version  string
}
