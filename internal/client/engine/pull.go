package engine

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/jmoiron/sqlx"

	"github.com/ledgersync/ledgersync/internal/client/syncstore"
	"github.com/ledgersync/ledgersync/internal/relaysdk"
	"github.com/ledgersync/ledgersync/internal/synccrypto"
)

var errReplay = errors.New("engine: apply pulled event")

const maxPullPages = 100

// pull fetches events past the cursor and applies them in ascending seq,
// one transaction per event. The cursor only moves inside the transaction
// that applied (or skipped) the event it points at.
func (e *Engine) pull(ctx context.Context, local *syncstore.DeviceConfig, keyring *synccrypto.Keyring) (int, error) {
	applied := 0
	for range maxPullPages {
		cursor, err := e.store.Cursor(ctx)
		if err != nil {
			return applied, err
		}

		resp, err := e.relay.Pull(ctx, cursor, e.cfg.PullLimit)
		if err != nil {
			return applied, fmt.Errorf("pull since %d: %w", cursor, relayErr(err))
		}

		events := slices.Clone(resp.Events)
		slices.SortFunc(events, func(a, b relaysdk.SyncEvent) int { return cmp.Compare(a.Seq, b.Seq) })

		for i := range events {
			ok, err := e.applyEvent(ctx, local, keyring, &events[i])
			if err != nil {
				return applied, err
			}
			if ok {
				applied++
			}
		}

		if !resp.HasMore || len(events) == 0 {
			break
		}
	}

	if err := e.prune(ctx); err != nil {
		slog.Warn("prune applied events", "error", err)
	}
	return applied, nil
}

// applyEvent applies one pulled event. It returns false when the event was
// already applied or was recorded without touching entity tables.
func (e *Engine) applyEvent(ctx context.Context, local *syncstore.DeviceConfig, keyring *synccrypto.Keyring, ev *relaysdk.SyncEvent) (bool, error) {
	changed := false
	err := e.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		done, err := e.store.IsApplied(ctx, tx, ev.EventID)
		if err != nil {
			return err
		}
		if done {
			slog.Debug("skip replayed event", "event", ev.EventID, "seq", ev.Seq)
			return e.store.AdvanceCursor(ctx, tx, ev.Seq)
		}

		apply, err := e.shouldApply(ctx, tx, local, ev)
		if err != nil {
			return err
		}
		if apply {
			if changed, err = e.applyPayload(ctx, tx, keyring, ev); err != nil {
				return err
			}
		} else if ev.DeviceID == local.DeviceID && syncstore.IsSyncTable(ev.Entity) {
			if err := e.recordOwn(ctx, tx, ev); err != nil {
				return err
			}
		}

		if err := e.store.InsertApplied(ctx, tx, &syncstore.AppliedEvent{
			EventID:  ev.EventID,
			Seq:      ev.Seq,
			Entity:   ev.Entity,
			EntityID: ev.EntityID,
		}); err != nil {
			return err
		}
		return e.store.AdvanceCursor(ctx, tx, ev.Seq)
	})
	if err != nil {
		if errors.Is(err, ErrKeyVersionMismatch) {
			return false, err
		}
		return false, fmt.Errorf("%w %s (seq %d): %w", errReplay, ev.EventID, ev.Seq, err)
	}
	return changed, nil
}

// shouldApply filters events that are only recorded: our own writes, and
// tables this device does not sync.
func (e *Engine) shouldApply(ctx context.Context, tx *sqlx.Tx, local *syncstore.DeviceConfig, ev *relaysdk.SyncEvent) (bool, error) {
	if ev.DeviceID == local.DeviceID {
		return false, nil
	}
	if !syncstore.IsSyncTable(ev.Entity) {
		slog.Warn("pulled event for unknown table", "event", ev.EventID, "entity", ev.Entity)
		return false, nil
	}
	return e.store.IsTableEnabled(ctx, tx, ev.Entity)
}

// recordOwn tracks our own write in entity metadata so an older remote write
// arriving later loses against it. The row already holds the local value.
func (e *Engine) recordOwn(ctx context.Context, tx *sqlx.Tx, ev *relaysdk.SyncEvent) error {
	current, err := e.store.EntityMetadata(ctx, tx, ev.Entity, ev.EntityID)
	if err != nil {
		return err
	}
	if !wins(ev.EventID, ev.ClientTimestamp, current) {
		return e.store.TouchEntitySeq(ctx, tx, ev.Entity, ev.EntityID, ev.Seq)
	}
	return e.store.UpsertEntityMetadata(ctx, tx, &syncstore.EntityMetadata{
		Entity:              ev.Entity,
		EntityID:            ev.EntityID,
		LastEventID:         ev.EventID,
		LastClientTimestamp: ev.ClientTimestamp,
		LastSeq:             ev.Seq,
	})
}

func (e *Engine) applyPayload(ctx context.Context, tx *sqlx.Tx, keyring *synccrypto.Keyring, ev *relaysdk.SyncEvent) (bool, error) {
	op := syncstore.Op(ev.Op)
	if !op.Valid() {
		return false, fmt.Errorf("%w: %q", syncstore.ErrInvalidOp, ev.Op)
	}
	if !keyring.Has(ev.PayloadKeyVersion) {
		return false, fmt.Errorf("%w: event %s uses key version %d, have %d",
			ErrKeyVersionMismatch, ev.EventID, ev.PayloadKeyVersion, keyring.Current())
	}
	plaintext, err := keyring.Decrypt(ev.PayloadKeyVersion, ev.Payload, synccrypto.PayloadAD(ev.EventID, ev.Entity, ev.EntityID))
	if err != nil {
		return false, fmt.Errorf("%w: decrypt event %s: %w", ErrKeyVersionMismatch, ev.EventID, err)
	}

	current, err := e.store.EntityMetadata(ctx, tx, ev.Entity, ev.EntityID)
	if err != nil {
		return false, err
	}
	if !wins(ev.EventID, ev.ClientTimestamp, current) {
		slog.Debug("event lost last-writer-wins", "event", ev.EventID, "winner", current.LastEventID)
		return false, e.store.TouchEntitySeq(ctx, tx, ev.Entity, ev.EntityID, ev.Seq)
	}

	if err := e.store.PutEntity(ctx, tx, ev.Entity, ev.EntityID, op, string(plaintext)); err != nil {
		return false, err
	}
	if err := e.store.UpsertEntityMetadata(ctx, tx, &syncstore.EntityMetadata{
		Entity:              ev.Entity,
		EntityID:            ev.EntityID,
		LastEventID:         ev.EventID,
		LastClientTimestamp: ev.ClientTimestamp,
		LastSeq:             ev.Seq,
	}); err != nil {
		return false, err
	}
	return true, e.store.MarkIncrementalApplied(ctx, tx, ev.Entity)
}

func (e *Engine) prune(ctx context.Context) error {
	cursor, err := e.store.Cursor(ctx)
	if err != nil {
		return err
	}
	if cursor <= e.cfg.PruneAbove {
		return nil
	}
	n, err := e.store.PruneApplied(ctx, cursor-e.cfg.PruneKeep)
	if err != nil {
		return err
	}
	if n > 0 {
		slog.Info("pruned applied events", "count", n, "below", cursor-e.cfg.PruneKeep)
	}
	return nil
}
