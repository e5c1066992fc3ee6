package middlewares

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ledgersync/ledgersync/internal/relay/events"
	"github.com/ledgersync/ledgersync/internal/relay/handlers/api"
)

const (
	deviceHeader     = "X-Device-Id"
	deviceContextKey = "device"
)

type DeviceChecker interface {
	CheckDevice(ctx context.Context, account, deviceID string) (*events.Device, error)
}

// RequireDevice admits requests whose X-Device-Id names a registered, active
// device of the authenticated account. Must run after JWTAuth.
func RequireDevice(checker DeviceChecker) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		deviceID := ctx.GetHeader(deviceHeader)
		if deviceID == "" {
			api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, fmt.Errorf("%s header is missing", deviceHeader))
			return
		}

		device, err := checker.CheckDevice(ctx, User(ctx), deviceID)
		switch {
		case errors.Is(err, events.ErrDeviceRevoked):
			api.AbortWithError(ctx, http.StatusForbidden, api.CodeDeviceRevoked, err)
			return
		case errors.Is(err, events.ErrDeviceNotFound):
			api.AbortWithError(ctx, http.StatusForbidden, api.CodeDeviceNotFound, err)
			return
		case err != nil:
			api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeInternalError, err)
			return
		}

		ctx.Set(deviceContextKey, device)
		ctx.Next()
	}
}

// Device returns the device admitted by RequireDevice.
func Device(ctx *gin.Context) *events.Device {
	if v, ok := ctx.Get(deviceContextKey); ok {
		if d, ok := v.(*events.Device); ok {
			return d
		}
	}
	return nil
}
