package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ledgersync/ledgersync/internal/client/trust"
	"github.com/ledgersync/ledgersync/internal/relaysdk"
)

// Start runs cycles in the background until ctx is done. Relay notifications
// and Nudge calls wake the loop early. A nil notifications channel is fine.
func (e *Engine) Start(ctx context.Context, notifications <-chan relaysdk.Notification) error {
	slog.Info("sync engine start", "interval", e.cfg.Interval, "pending interval", e.cfg.PendingInterval)

	// using a timer and not a ticker so slow cycles never queue up ticks
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("sync engine stop")
			return nil

		case <-timer.C:

		case n, ok := <-notifications:
			if !ok {
				notifications = nil
				continue
			}
			slog.Debug("relay notification", "type", n.Type, "seq", n.Seq)

		case <-e.nudge:
		}

		e.runScheduled(ctx)
		if ctx.Err() != nil {
			continue
		}
		timer.Reset(e.nextDelay(ctx))
	}
}

// Nudge asks a running scheduler to cycle now. It never blocks.
func (e *Engine) Nudge() {
	select {
	case e.nudge <- struct{}{}:
	default:
	}
}

func (e *Engine) runScheduled(ctx context.Context) {
	state, err := e.trust.DetectState(ctx)
	if err != nil {
		slog.Error("detect sync state", "error", err)
		return
	}

	switch state {
	case trust.StateReady:
		if _, err := e.TriggerSyncCycle(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Warn("scheduled sync cycle", "error", err)
		}
	case trust.StateStale:
		res, err := e.BootstrapSnapshotIfNeeded(ctx)
		if err != nil {
			if !errors.Is(err, ErrSyncAlreadyRunning) {
				slog.Error("scheduled bootstrap", "error", err)
			}
			return
		}
		slog.Info("bootstrap", "status", res.Status, "seq", res.Seq)
	default:
		slog.Debug("sync not ready, skipping", "state", state)
	}
}

// nextDelay honors the engine retry time, and polls faster while local
// changes wait in the outbox.
func (e *Engine) nextDelay(ctx context.Context) time.Duration {
	delay := e.cfg.Interval
	if e.hasPending(ctx) {
		delay = e.cfg.PendingInterval
	}
	st, err := e.store.EngineState(ctx)
	if err != nil || st.NextRetryAt.IsZero() {
		return delay
	}
	if wait := st.NextRetryAt.Sub(e.store.Now()); wait > delay {
		return wait
	}
	return delay
}
