package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ledgersync/ledgersync/internal/client/syncstore"
	"github.com/ledgersync/ledgersync/internal/client/trust"
	"github.com/ledgersync/ledgersync/internal/relaysdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackoff_Bounds(t *testing.T) {
	tests := []struct {
		attempt  int
		min, max time.Duration
	}{
		{0, 2500 * time.Millisecond, 5 * time.Second},
		{1, 5 * time.Second, 10 * time.Second},
		{3, 20 * time.Second, 40 * time.Second},
		{6, 150 * time.Second, 5 * time.Minute},
		{40, 150 * time.Second, 5 * time.Minute},
		{-1, 2500 * time.Millisecond, 5 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.min, backoffWithJitter(tt.attempt, func() float64 { return 0 }), "attempt %d", tt.attempt)
		assert.Equal(t, tt.max, backoffWithJitter(tt.attempt, func() float64 { return 1 }), "attempt %d", tt.attempt)

		d := Backoff(tt.attempt)
		assert.GreaterOrEqual(t, d, tt.min)
		assert.LessOrEqual(t, d, tt.max)
	}
}

func TestWins(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ts := func(d time.Duration) string { return base.Add(d).Format(time.RFC3339Nano) }
	current := &syncstore.EntityMetadata{LastEventID: "m", LastClientTimestamp: ts(0)}

	assert.True(t, wins("a", ts(0), nil))
	assert.True(t, wins("a", ts(time.Second), current))
	assert.False(t, wins("z", ts(-time.Second), current))
	assert.True(t, wins("n", ts(0), current), "tie goes to greater event id")
	assert.False(t, wins("b", ts(0), current))

	// offsets are compared as instants, not strings
	plusTwo := base.In(time.FixedZone("x", 2*3600)).Add(time.Second).Format(time.RFC3339Nano)
	assert.True(t, wins("a", plusTwo, current))
}

func TestGetEngineStatus_SurfacesErrorAtThreshold(t *testing.T) {
	ctx := context.Background()
	relay := newFakeRelay()
	relay.pushErr = &relaysdk.NetworkError{Op: "push", Err: errors.New("no route to host")}
	a := newDevice(t, relay, "dev-a", newSyncKey(t), true, Config{})

	_, err := a.rec.Mutate(ctx, "accounts", "acct-1", syncstore.OpCreate, map[string]string{"name": "x"})
	require.NoError(t, err)

	now := time.Now()
	for i := 1; i <= 3; i++ {
		// move the clock past every retry so each cycle pushes again
		a.store.SetClock(func() time.Time { return now.Add(time.Duration(i) * time.Hour) })
		_, err := a.engine.TriggerSyncCycle(ctx)
		require.Error(t, err)

		status, err := a.engine.GetEngineStatus(ctx)
		require.NoError(t, err)
		assert.Equal(t, i, status.ConsecutiveFailures)
		if i < 3 {
			assert.Empty(t, status.LastError)
		} else {
			assert.Contains(t, status.LastError, "no route to host")
		}
	}

	status, err := a.engine.GetEngineStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, trust.StateReady, status.State)
	assert.Equal(t, "dev-a", status.DeviceID)
	assert.Equal(t, 1, status.PendingEvents)
	assert.Equal(t, StatusPushError, status.LastCycleStatus)
	assert.NotNil(t, status.NextRetryAt)
	assert.False(t, status.Running)

	relay.mu.Lock()
	relay.pushErr = nil
	relay.mu.Unlock()
	a.store.SetClock(func() time.Time { return now.Add(10 * time.Hour) })
	_, err = a.engine.TriggerSyncCycle(ctx)
	require.NoError(t, err)

	status, err = a.engine.GetEngineStatus(ctx)
	require.NoError(t, err)
	assert.Zero(t, status.ConsecutiveFailures)
	assert.Empty(t, status.LastError)
	assert.Nil(t, status.NextRetryAt)
	assert.Zero(t, status.PendingEvents)
}
