package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type SyncHandler struct {
	svc SyncService
}

func NewSyncHandler(svc SyncService) *SyncHandler {
	return &SyncHandler{svc: svc}
}

// Now runs one sync cycle and returns its result. A cycle that failed still
// answers 200: the failure is in the result status.
func (h *SyncHandler) Now(c *gin.Context) {
	res, err := h.svc.TriggerSyncCycle(c.Request.Context())
	if err != nil && res == nil {
		abortSyncError(c, err)
		return
	}
	c.PureJSON(http.StatusOK, res)
}

func (h *SyncHandler) Bootstrap(c *gin.Context) {
	res, err := h.svc.BootstrapSnapshotIfNeeded(c.Request.Context())
	if err != nil {
		abortSyncError(c, err)
		return
	}
	c.PureJSON(http.StatusOK, res)
}

func (h *SyncHandler) UploadSnapshot(c *gin.Context) {
	meta, err := h.svc.UploadSnapshot(c.Request.Context())
	if err != nil {
		abortSyncError(c, err)
		return
	}
	c.PureJSON(http.StatusCreated, meta)
}

func (h *SyncHandler) Devices(c *gin.Context) {
	devices, err := h.svc.ListDevices(c.Request.Context())
	if err != nil {
		abortSyncError(c, err)
		return
	}
	c.PureJSON(http.StatusOK, &DevicesResponse{Devices: devices})
}
