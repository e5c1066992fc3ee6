package engine

import (
	"context"
	"time"

	"github.com/ledgersync/ledgersync/internal/client/trust"
)

// Status is the engine's view for UIs and the status command. LastError is
// only surfaced once failures reach the configured threshold.
type Status struct {
	State               trust.State   `json:"state" yaml:"state"`
	DeviceID            string        `json:"device_id,omitempty" yaml:"device_id,omitempty"`
	KeyVersion          int           `json:"key_version,omitempty" yaml:"key_version,omitempty"`
	Cursor              int64         `json:"cursor" yaml:"cursor"`
	PendingEvents       int           `json:"pending_events" yaml:"pending_events"`
	Running             bool          `json:"running" yaml:"running"`
	LastPushAt          *time.Time    `json:"last_push_at,omitempty" yaml:"last_push_at,omitempty"`
	LastPullAt          *time.Time    `json:"last_pull_at,omitempty" yaml:"last_pull_at,omitempty"`
	LastCycleStatus     string        `json:"last_cycle_status,omitempty" yaml:"last_cycle_status,omitempty"`
	LastCycleDuration   time.Duration `json:"last_cycle_duration" yaml:"last_cycle_duration"`
	ConsecutiveFailures int           `json:"consecutive_failures" yaml:"consecutive_failures"`
	NextRetryAt         *time.Time    `json:"next_retry_at,omitempty" yaml:"next_retry_at,omitempty"`
	LastError           string        `json:"last_error,omitempty" yaml:"last_error,omitempty"`
}

func (e *Engine) GetEngineStatus(ctx context.Context) (*Status, error) {
	state, err := e.trust.DetectState(ctx)
	if err != nil {
		return nil, err
	}
	st, err := e.store.EngineState(ctx)
	if err != nil {
		return nil, err
	}
	cursor, err := e.store.Cursor(ctx)
	if err != nil {
		return nil, err
	}
	pending, err := e.store.PendingCount(ctx)
	if err != nil {
		return nil, err
	}
	local, err := e.store.LocalDevice(ctx)
	if err != nil {
		return nil, err
	}

	status := &Status{
		State:               state,
		Cursor:              cursor,
		PendingEvents:       pending,
		Running:             e.Running(),
		LastPushAt:          timePtr(st.LastPushAt.Time),
		LastPullAt:          timePtr(st.LastPullAt.Time),
		LastCycleStatus:     st.LastCycleStatus.String,
		LastCycleDuration:   time.Duration(st.LastCycleDurationMs.Int64) * time.Millisecond,
		ConsecutiveFailures: st.ConsecutiveFailures,
		NextRetryAt:         timePtr(st.NextRetryAt.Time),
	}
	if local != nil {
		status.DeviceID = local.DeviceID
		status.KeyVersion = local.KeyVersion
	}
	if st.ConsecutiveFailures >= e.cfg.ErrorThreshold && st.LastError.Valid {
		status.LastError = st.LastError.String
	}
	return status, nil
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
