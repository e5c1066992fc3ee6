package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ledgersync/ledgersync/internal/version"
)

// StatusHandler handles status-related endpoints
type StatusHandler struct {
	svc SyncService
}

func NewStatusHandler(svc SyncService) *StatusHandler {
	return &StatusHandler{svc: svc}
}

// Status returns the client version and the sync engine status. A failure
// to read the engine status is reported in the body, never as an HTTP error.
func (h *StatusHandler) Status(ctx *gin.Context) {
	resp := &StatusResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   version.Version,
		Revision:  version.Revision,
		BuildDate: version.BuildDate,
	}

	st, err := h.svc.GetEngineStatus(ctx.Request.Context())
	if err != nil {
		resp.Error = err.Error()
	} else {
		resp.Sync = st
	}
	ctx.PureJSON(http.StatusOK, resp)
}
