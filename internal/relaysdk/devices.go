package relaysdk

import (
	"context"

	"github.com/imroc/req/v3"
)

const (
	v1Devices      = "/devices"
	v1Device       = "/devices/{id}"
	v1DeviceRevoke = "/devices/{id}/revoke"
)

type DevicesAPI struct {
	client *req.Client
}

func (d *DevicesAPI) Register(ctx context.Context, params *RegisterDeviceRequest) (resp *Device, err error) {
	res, err := d.client.R().
		SetContext(ctx).
		SetBody(params).
		SetSuccessResult(&resp).
		Post(v1Devices)
	if err := handleAPIError(res, err, "device register"); err != nil {
		return nil, err
	}
	return resp, nil
}

func (d *DevicesAPI) List(ctx context.Context) ([]Device, error) {
	var resp DeviceList
	res, err := d.client.R().
		SetContext(ctx).
		SetSuccessResult(&resp).
		Get(v1Devices)
	if err := handleAPIError(res, err, "device list"); err != nil {
		return nil, err
	}
	return resp.Devices, nil
}

func (d *DevicesAPI) Rename(ctx context.Context, deviceID, name string) error {
	res, err := d.client.R().
		SetContext(ctx).
		SetPathParam("id", deviceID).
		SetBody(&RenameDeviceRequest{Name: name}).
		Patch(v1Device)
	return handleAPIError(res, err, "device rename")
}

func (d *DevicesAPI) Revoke(ctx context.Context, deviceID string) error {
	res, err := d.client.R().
		SetContext(ctx).
		SetPathParam("id", deviceID).
		Post(v1DeviceRevoke)
	return handleAPIError(res, err, "device revoke")
}
