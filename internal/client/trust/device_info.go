package trust

// DeviceInfo is a device of the account as shown to the user: the relay's
// registry merged with this device's local view.
type DeviceInfo struct {
	DeviceID   string `json:"deviceId" yaml:"deviceId"`
	Name       string `json:"name" yaml:"name"`
	Platform   string `json:"platform,omitempty" yaml:"platform,omitempty"`
	Machine    string `json:"machine,omitempty" yaml:"machine,omitempty"`
	Local      bool   `json:"local" yaml:"local"`
	TrustState string `json:"trustState" yaml:"trustState"`
	KeyVersion int    `json:"keyVersion,omitempty" yaml:"keyVersion,omitempty"`
	LastSeenAt string `json:"lastSeenAt,omitempty" yaml:"lastSeenAt,omitempty"`
}
