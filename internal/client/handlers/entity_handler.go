package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ledgersync/ledgersync/internal/client/syncstore"
)

// EntityHandler lets local apps read synced tables and record mutations
// through the outbox.
type EntityHandler struct {
	svc SyncService
}

func NewEntityHandler(svc SyncService) *EntityHandler {
	return &EntityHandler{svc: svc}
}

func (h *EntityHandler) List(c *gin.Context) {
	entity := c.Param("entity")
	rows, err := h.svc.ListEntities(c.Request.Context(), entity)
	if err != nil {
		abortSyncError(c, err)
		return
	}

	items := make([]EntityItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, EntityItem{
			ID:        row.ID,
			Data:      []byte(row.Data),
			UpdatedAt: row.UpdatedAt.UTC().Format(time.RFC3339Nano),
		})
	}
	c.PureJSON(http.StatusOK, &EntityListResponse{Entity: entity, Items: items})
}

func (h *EntityHandler) Put(c *gin.Context) {
	var req MutationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, http.StatusBadRequest, ErrCodeBadRequest, err)
		return
	}
	if req.Op == "" {
		req.Op = syncstore.OpUpdate
	}
	if req.Op == syncstore.OpDelete {
		AbortWithError(c, http.StatusBadRequest, ErrCodeBadRequest, fmt.Errorf("use DELETE to remove an entity"))
		return
	}
	h.mutate(c, req.Op, req.Data)
}

func (h *EntityHandler) Delete(c *gin.Context) {
	h.mutate(c, syncstore.OpDelete, nil)
}

func (h *EntityHandler) mutate(c *gin.Context, op syncstore.Op, data json.RawMessage) {
	var doc any
	if data != nil {
		doc = data
	}
	eventID, err := h.svc.RecordMutation(c.Request.Context(), c.Param("entity"), c.Param("id"), op, doc)
	if err != nil {
		abortSyncError(c, err)
		return
	}
	c.PureJSON(http.StatusAccepted, &MutationResponse{EventID: eventID})
}
