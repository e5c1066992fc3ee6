package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/ledgersync/ledgersync/internal/client/engine"
	"github.com/ledgersync/ledgersync/internal/client/syncstore"
	"github.com/ledgersync/ledgersync/internal/client/trust"
	"github.com/ledgersync/ledgersync/internal/relaysdk"
)

const (
	CodeOk                  string = "OK"
	ErrCodeBadRequest       string = "ERR_BAD_REQUEST"
	ErrCodeUnknownError     string = "ERR_UNKNOWN_ERROR"
	ErrCodeSyncNotEnabled   string = "ERR_SYNC_NOT_ENABLED"
	ErrCodeSyncNotReady     string = "ERR_SYNC_NOT_READY"
	ErrCodeSyncRunning      string = "ERR_SYNC_RUNNING"
	ErrCodeDeviceRevoked    string = "ERR_DEVICE_REVOKED"
	ErrCodeRelayUnavailable string = "ERR_RELAY_UNAVAILABLE"
	ErrCodeNotFound         string = "ERR_NOT_FOUND"
)

// SyncService is the part of the sync client the control plane exposes.
type SyncService interface {
	DetectState(ctx context.Context) (trust.State, error)
	GetEngineStatus(ctx context.Context) (*engine.Status, error)
	TriggerSyncCycle(ctx context.Context) (*engine.CycleResult, error)
	BootstrapSnapshotIfNeeded(ctx context.Context) (*engine.BootstrapResult, error)
	UploadSnapshot(ctx context.Context) (*relaysdk.SnapshotMeta, error)
	ListDevices(ctx context.Context) ([]trust.DeviceInfo, error)
	ListEntities(ctx context.Context, entity string) ([]syncstore.EntityRow, error)
	RecordMutation(ctx context.Context, entity, entityID string, op syncstore.Op, doc any) (string, error)
}

type ControlPlaneResponse struct {
	Code string `json:"code"`
}

type ControlPlaneError struct {
	ErrorCode string `json:"code"`
	Error     string `json:"error"`
}

func AbortWithError(c *gin.Context, status int, code string, err error) {
	c.Abort()
	c.Error(err)
	c.PureJSON(status, ControlPlaneError{
		ErrorCode: code,
		Error:     err.Error(),
	})
}
