package devices

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ledgersync/ledgersync/internal/relay/events"
	"github.com/ledgersync/ledgersync/internal/relay/handlers/api"
	"github.com/ledgersync/ledgersync/internal/relay/middlewares"
)

type DevicesHandler struct {
	store *events.Store
}

func New(store *events.Store) *DevicesHandler {
	return &DevicesHandler{store: store}
}

// Register adds the calling device to the account. Registering a revoked
// device answers 403 so the device learns it was revoked.
func (h *DevicesHandler) Register(ctx *gin.Context) {
	var req RegisterRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, fmt.Errorf("failed to bind json: %w", err))
		return
	}

	d, err := h.store.RegisterDevice(ctx, &events.Device{
		Account:  middlewares.User(ctx),
		DeviceID: req.DeviceID,
		Name:     req.Name,
		Platform: req.Platform,
		Machine:  req.Machine,
	})
	if err != nil {
		abortDeviceError(ctx, err)
		return
	}
	if d.Revoked() {
		api.AbortWithError(ctx, http.StatusForbidden, api.CodeDeviceRevoked, events.ErrDeviceRevoked)
		return
	}

	slog.Info("device registered", "account", d.Account, "device", d.DeviceID, "name", d.Name)
	ctx.PureJSON(http.StatusOK, toDevice(d))
}

func (h *DevicesHandler) List(ctx *gin.Context) {
	devices, err := h.store.ListDevices(ctx, middlewares.User(ctx))
	if err != nil {
		abortDeviceError(ctx, err)
		return
	}

	resp := &DeviceList{Devices: make([]Device, len(devices))}
	for i, d := range devices {
		resp.Devices[i] = toDevice(d)
	}
	ctx.PureJSON(http.StatusOK, resp)
}

func (h *DevicesHandler) Rename(ctx *gin.Context) {
	var req RenameRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, fmt.Errorf("failed to bind json: %w", err))
		return
	}

	d, err := h.store.RenameDevice(ctx, middlewares.User(ctx), ctx.Param("id"), req.Name)
	if err != nil {
		abortDeviceError(ctx, err)
		return
	}
	ctx.PureJSON(http.StatusOK, toDevice(d))
}

func (h *DevicesHandler) Revoke(ctx *gin.Context) {
	d, err := h.store.RevokeDevice(ctx, middlewares.User(ctx), ctx.Param("id"))
	if err != nil {
		abortDeviceError(ctx, err)
		return
	}

	slog.Info("device revoked", "account", d.Account, "device", d.DeviceID, "by", ctx.GetHeader("X-Device-Id"))
	ctx.PureJSON(http.StatusOK, toDevice(d))
}

func toDevice(d *events.Device) Device {
	return Device{
		DeviceID:   d.DeviceID,
		Name:       d.Name,
		Platform:   d.Platform,
		Machine:    d.Machine,
		TrustState: d.TrustState,
		KeyVersion: d.KeyVersion,
		CreatedAt:  d.CreatedAt.Time,
		LastSeenAt: d.LastSeenAt.Time,
	}
}

func abortDeviceError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, events.ErrDeviceNotFound):
		api.AbortWithError(ctx, http.StatusNotFound, api.CodeDeviceNotFound, err)
	case errors.Is(err, events.ErrInvalidDevice):
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, err)
	default:
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeInternalError, err)
	}
}
