package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ledgersync/ledgersync/internal/client/engine"
	"github.com/ledgersync/ledgersync/internal/client/outbox"
	"github.com/ledgersync/ledgersync/internal/client/syncstore"
	"github.com/ledgersync/ledgersync/internal/client/trust"
	"github.com/ledgersync/ledgersync/internal/relaysdk"
)

// abortSyncError maps sync client errors onto control plane responses.
func abortSyncError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, trust.ErrNotEnabled):
		AbortWithError(c, http.StatusPreconditionFailed, ErrCodeSyncNotEnabled, err)
	case errors.Is(err, trust.ErrNotReady), errors.Is(err, outbox.ErrNoSyncKey):
		AbortWithError(c, http.StatusPreconditionFailed, ErrCodeSyncNotReady, err)
	case errors.Is(err, trust.ErrDeviceRevoked):
		AbortWithError(c, http.StatusForbidden, ErrCodeDeviceRevoked, err)
	case errors.Is(err, engine.ErrSyncAlreadyRunning):
		AbortWithError(c, http.StatusConflict, ErrCodeSyncRunning, err)
	case errors.Is(err, syncstore.ErrUnknownEntity), errors.Is(err, syncstore.ErrInvalidOp),
		errors.Is(err, outbox.ErrTableDisabled):
		AbortWithError(c, http.StatusBadRequest, ErrCodeBadRequest, err)
	case errors.Is(err, syncstore.ErrNotFound), relaysdk.HasCode(err, relaysdk.CodeSnapshotNotFound):
		AbortWithError(c, http.StatusNotFound, ErrCodeNotFound, err)
	case errors.Is(err, relaysdk.ErrRelayUnavailable):
		AbortWithError(c, http.StatusBadGateway, ErrCodeRelayUnavailable, err)
	default:
		AbortWithError(c, http.StatusInternalServerError, ErrCodeUnknownError, err)
	}
}
