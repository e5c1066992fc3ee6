package sync

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ledgersync/ledgersync/internal/relay/events"
	"github.com/ledgersync/ledgersync/internal/relay/handlers/api"
	"github.com/ledgersync/ledgersync/internal/relay/handlers/ws"
	"github.com/ledgersync/ledgersync/internal/relay/middlewares"
	"github.com/ledgersync/ledgersync/internal/relay/snapshot"
)

// Notifier tells the account's other devices that new events exist.
type Notifier interface {
	Notify(account, excludeDevice string, n *ws.Notification) int
}

type SyncHandler struct {
	events          *events.Store
	snapshots       *snapshot.Store
	notifier        Notifier
	maxSnapshotSize int64
}

func New(events *events.Store, snapshots *snapshot.Store, notifier Notifier, maxSnapshotSize int64) *SyncHandler {
	return &SyncHandler{
		events:          events,
		snapshots:       snapshots,
		notifier:        notifier,
		maxSnapshotSize: maxSnapshotSize,
	}
}

func (h *SyncHandler) Push(ctx *gin.Context) {
	var req PushRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, fmt.Errorf("failed to bind json: %w", err))
		return
	}
	if len(req.Events) > events.MaxPushBatch {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest,
			fmt.Errorf("batch of %d events exceeds %d", len(req.Events), events.MaxPushBatch))
		return
	}

	account := middlewares.User(ctx)
	device := middlewares.Device(ctx)

	batch := make([]*events.Event, len(req.Events))
	for i := range req.Events {
		batch[i] = toEvent(&req.Events[i])
	}

	results, cursor, err := h.events.Push(ctx, account, device.DeviceID, batch)
	if err != nil {
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeInternalError, err)
		return
	}

	resp := &PushResponse{Results: make([]PushResult, len(results))}
	accepted := 0
	for i, r := range results {
		resp.Results[i] = PushResult{EventID: r.EventID, Accepted: r.Accepted, Seq: r.Seq, Code: r.Code, Error: r.Error}
		if r.Accepted {
			accepted++
		}
	}

	if accepted > 0 && h.notifier != nil {
		n := h.notifier.Notify(account, device.DeviceID, &ws.Notification{Type: ws.NotificationEventsAvailable, Seq: cursor})
		slog.Debug("sync push", "device", device.DeviceID, "accepted", accepted, "rejected", len(results)-accepted, "cursor", cursor, "notified", n)
	}

	ctx.PureJSON(http.StatusOK, resp)
}

func (h *SyncHandler) Pull(ctx *gin.Context) {
	var req PullRequest
	if err := ctx.ShouldBindQuery(&req); err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, fmt.Errorf("failed to bind query: %w", err))
		return
	}

	page, err := h.events.Pull(ctx, middlewares.User(ctx), req.Since, req.Limit)
	if errors.Is(err, events.ErrCursorStale) {
		api.AbortWithError(ctx, http.StatusGone, api.CodeCursorStale, err)
		return
	} else if err != nil {
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeInternalError, err)
		return
	}

	resp := &PullResponse{
		Events:     make([]SyncEvent, len(page.Events)),
		NextCursor: page.NextCursor,
		HasMore:    page.HasMore,
	}
	for i, ev := range page.Events {
		resp.Events[i] = fromEvent(ev)
	}

	ctx.PureJSON(http.StatusOK, resp)
}

func (h *SyncHandler) Cursor(ctx *gin.Context) {
	c, err := h.events.Cursor(ctx, middlewares.User(ctx))
	if err != nil {
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeInternalError, err)
		return
	}

	ctx.PureJSON(http.StatusOK, &CursorResponse{Cursor: c.Cursor, GCWatermark: c.GCWatermark})
}

func (h *SyncHandler) UploadSnapshot(ctx *gin.Context) {
	seq, err := strconv.ParseInt(ctx.GetHeader(headerSnapshotSeq), 10, 64)
	if err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, fmt.Errorf("invalid %s: %w", headerSnapshotSeq, err))
		return
	}
	keyVersion, err := strconv.Atoi(ctx.GetHeader(headerSnapshotKeyVersion))
	if err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, fmt.Errorf("invalid %s: %w", headerSnapshotKeyVersion, err))
		return
	}

	account := middlewares.User(ctx)
	cursor, err := h.events.Cursor(ctx, account)
	if err != nil {
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeInternalError, err)
		return
	}
	if seq > cursor.Cursor {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest,
			fmt.Errorf("snapshot seq %d is ahead of the account cursor %d", seq, cursor.Cursor))
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(ctx.Writer, ctx.Request.Body, h.maxSnapshotSize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			api.AbortWithError(ctx, http.StatusRequestEntityTooLarge, api.CodeInvalidRequest, err)
		} else {
			api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, err)
		}
		return
	}

	meta, err := h.snapshots.Save(ctx, &snapshot.Upload{
		Account:    account,
		DeviceID:   middlewares.Device(ctx).DeviceID,
		EventID:    ctx.GetHeader(headerSnapshotEventID),
		Seq:        seq,
		KeyVersion: keyVersion,
		Checksum:   ctx.GetHeader(headerSnapshotChecksum),
		Data:       data,
	})
	switch {
	case errors.Is(err, snapshot.ErrChecksumMismatch):
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeSnapshotChecksum, err)
		return
	case errors.Is(err, snapshot.ErrInvalid):
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, err)
		return
	case err != nil:
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeInternalError, err)
		return
	}

	ctx.PureJSON(http.StatusCreated, toSnapshotMeta(meta))
}

func (h *SyncHandler) LatestSnapshot(ctx *gin.Context) {
	meta, err := h.snapshots.Latest(ctx, middlewares.User(ctx))
	if errors.Is(err, snapshot.ErrNotFound) {
		api.AbortWithError(ctx, http.StatusNotFound, api.CodeSnapshotNotFound, err)
		return
	} else if err != nil {
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeInternalError, err)
		return
	}

	ctx.PureJSON(http.StatusOK, toSnapshotMeta(meta))
}

func (h *SyncHandler) DownloadSnapshot(ctx *gin.Context) {
	meta, data, err := h.snapshots.Get(ctx, middlewares.User(ctx), ctx.Param("id"))
	if errors.Is(err, snapshot.ErrNotFound) {
		api.AbortWithError(ctx, http.StatusNotFound, api.CodeSnapshotNotFound, err)
		return
	} else if err != nil {
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeInternalError, err)
		return
	}

	ctx.Header(headerSnapshotID, meta.SnapshotID)
	ctx.Header(headerSnapshotChecksum, meta.Checksum)
	ctx.Data(http.StatusOK, "application/octet-stream", data)
}

func toEvent(ev *SyncEvent) *events.Event {
	return &events.Event{
		EventID:           ev.EventID,
		EventType:         ev.EventType,
		Entity:            ev.Entity,
		EntityID:          ev.EntityID,
		Op:                ev.Op,
		ClientTimestamp:   ev.ClientTimestamp,
		Payload:           ev.Payload,
		PayloadKeyVersion: ev.PayloadKeyVersion,
		DeviceID:          ev.DeviceID,
	}
}

func fromEvent(ev *events.Event) SyncEvent {
	return SyncEvent{
		Seq:               ev.Seq,
		EventID:           ev.EventID,
		EventType:         ev.EventType,
		Entity:            ev.Entity,
		EntityID:          ev.EntityID,
		Op:                ev.Op,
		ClientTimestamp:   ev.ClientTimestamp,
		Payload:           ev.Payload,
		PayloadKeyVersion: ev.PayloadKeyVersion,
		DeviceID:          ev.DeviceID,
	}
}

func toSnapshotMeta(m *snapshot.Meta) *SnapshotMeta {
	return &SnapshotMeta{
		SnapshotID: m.SnapshotID,
		Seq:        m.Seq,
		KeyVersion: m.KeyVersion,
		Checksum:   m.Checksum,
		SizeBytes:  m.SizeBytes,
		DeviceID:   m.DeviceID,
		CreatedAt:  m.CreatedAt.Time,
	}
}
