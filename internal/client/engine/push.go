package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ledgersync/ledgersync/internal/client/syncstore"
	"github.com/ledgersync/ledgersync/internal/client/trust"
	"github.com/ledgersync/ledgersync/internal/relaysdk"
)

const (
	maxPushBatches    = 50
	codeNoResult      = "E_NO_RESULT"
	codeNetworkFailed = "E_NETWORK"
)

// push drains due outbox rows in FIFO batches. Rejected events are parked
// with backoff and do not fail the phase; relay or transport failures do.
func (e *Engine) push(ctx context.Context, local *syncstore.DeviceConfig) (pushed, rejected int, err error) {
	if n, err := e.store.RecoverSending(ctx); err != nil {
		return 0, 0, err
	} else if n > 0 {
		slog.Info("recovered in-flight outbox rows", "count", n)
	}

	for range maxPushBatches {
		batch, err := e.store.ReadyOutbox(ctx, e.store.Now(), e.cfg.PushBatchSize)
		if err != nil {
			return pushed, rejected, err
		}
		if len(batch) == 0 {
			return pushed, rejected, nil
		}

		ok, bad, err := e.pushBatch(ctx, local, batch)
		pushed += ok
		rejected += bad
		if err != nil {
			return pushed, rejected, err
		}
		if len(batch) < e.cfg.PushBatchSize {
			return pushed, rejected, nil
		}
	}
	return pushed, rejected, nil
}

func (e *Engine) pushBatch(ctx context.Context, local *syncstore.DeviceConfig, batch []*syncstore.OutboxEvent) (int, int, error) {
	ids := make([]string, len(batch))
	events := make([]relaysdk.SyncEvent, len(batch))
	for i, ev := range batch {
		ids[i] = ev.EventID
		events[i] = relaysdk.SyncEvent{
			EventID:           ev.EventID,
			EventType:         ev.EventType(),
			Entity:            ev.Entity,
			EntityID:          ev.EntityID,
			Op:                string(ev.Op),
			ClientTimestamp:   ev.ClientTimestamp,
			Payload:           ev.Payload,
			PayloadKeyVersion: ev.PayloadKeyVersion,
			DeviceID:          local.DeviceID,
		}
	}

	if err := e.store.MarkSending(ctx, ids); err != nil {
		return 0, 0, err
	}

	resp, err := e.relay.Push(ctx, events)
	if err != nil {
		err = relayErr(err)
		if errors.Is(err, ErrAuth) || signedOut(err) || errors.Is(err, trust.ErrDeviceRevoked) {
			// nothing was delivered and retrying will not help until the
			// credentials change, so the rows go back untouched
			if _, recErr := e.store.RecoverSending(ctx); recErr != nil {
				return 0, 0, errors.Join(err, recErr)
			}
			return 0, 0, err
		}
		code := codeNetworkFailed
		if apiErr := (*relaysdk.APIError)(nil); errors.As(err, &apiErr) {
			code = apiErr.Code
		}
		for _, ev := range batch {
			if failErr := e.failEvent(ctx, ev, err.Error(), code); failErr != nil {
				return 0, 0, errors.Join(err, failErr)
			}
		}
		return 0, 0, fmt.Errorf("push %d events: %w", len(batch), err)
	}

	results := make(map[string]relaysdk.PushResult, len(resp.Results))
	for _, r := range resp.Results {
		results[r.EventID] = r
	}

	var acked []string
	rejected := 0
	for _, ev := range batch {
		r, ok := results[ev.EventID]
		switch {
		case !ok:
			rejected++
			if err := e.failEvent(ctx, ev, "relay returned no result", codeNoResult); err != nil {
				return 0, rejected, err
			}
		case r.Accepted:
			acked = append(acked, ev.EventID)
		default:
			rejected++
			slog.Warn("event rejected", "event", ev.EventID, "entity", ev.Entity, "code", r.Code, "error", r.Error)
			if err := e.failEvent(ctx, ev, r.Error, r.Code); err != nil {
				return 0, rejected, err
			}
		}
	}

	if err := e.store.AckOutbox(ctx, acked); err != nil {
		return 0, rejected, err
	}
	return len(acked), rejected, nil
}

func (e *Engine) failEvent(ctx context.Context, ev *syncstore.OutboxEvent, msg, code string) error {
	next := e.store.Now().Add(Backoff(ev.RetryCount))
	return e.store.FailOutbox(ctx, ev.EventID, next, msg, code)
}

func (e *Engine) hasPending(ctx context.Context) bool {
	n, err := e.store.PendingCount(ctx)
	return err == nil && n > 0
}
