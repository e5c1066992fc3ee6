package handlers

import "github.com/ledgersync/ledgersync/internal/client/trust"

type DevicesResponse struct {
	Devices []trust.DeviceInfo `json:"devices"`
}
