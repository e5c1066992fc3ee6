// Package outbox records local mutations as encrypted pending events in the
// same transaction as the write they describe.
package outbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/ledgersync/ledgersync/internal/client/syncstore"
	"github.com/ledgersync/ledgersync/internal/synccrypto"
)

var (
	ErrNoSyncKey     = errors.New("outbox: no sync key")
	ErrNoDevice      = errors.New("outbox: device id not set")
	ErrTableDisabled = errors.New("outbox: table not enabled for sync")
)

// Recorder turns local mutations into outbox rows. It never touches the network.
type Recorder struct {
	store    *syncstore.Store
	keys     *synccrypto.Keyring
	deviceID string
}

func NewRecorder(store *syncstore.Store, keys *synccrypto.Keyring, deviceID string) *Recorder {
	return &Recorder{store: store, keys: keys, deviceID: deviceID}
}

// Record encrypts plaintext under the current key version and inserts the
// event into tx. Committing or rolling back tx decides the fate of both the
// domain write and its event.
func (r *Recorder) Record(ctx context.Context, tx *sqlx.Tx, entity, entityID string, op syncstore.Op, plaintext []byte) (string, error) {
	if r.deviceID == "" {
		return "", ErrNoDevice
	}
	if !syncstore.IsSyncTable(entity) {
		return "", fmt.Errorf("%w: %q", syncstore.ErrUnknownEntity, entity)
	}
	if !op.Valid() {
		return "", fmt.Errorf("%w: %q", syncstore.ErrInvalidOp, op)
	}

	enabled, err := r.store.IsTableEnabled(ctx, tx, entity)
	if err != nil {
		return "", err
	}
	if !enabled {
		return "", fmt.Errorf("%w: %s", ErrTableDisabled, entity)
	}

	version := r.keys.Current()
	if version == 0 {
		return "", ErrNoSyncKey
	}

	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("event id: %w", err)
	}
	eventID := id.String()

	payload, err := r.keys.Encrypt(version, plaintext, synccrypto.PayloadAD(eventID, entity, entityID))
	if err != nil {
		return "", fmt.Errorf("encrypt payload: %w", err)
	}

	now := r.store.Now()
	ev := &syncstore.OutboxEvent{
		EventID:           eventID,
		Entity:            entity,
		EntityID:          entityID,
		Op:                op,
		ClientTimestamp:   now.Format(time.RFC3339Nano),
		Payload:           payload,
		PayloadKeyVersion: version,
		DeviceID:          r.deviceID,
	}
	if err := r.store.InsertOutbox(ctx, tx, ev); err != nil {
		return "", err
	}

	slog.Debug("outbox record", "event", eventID, "type", ev.EventType(), "entityId", entityID)
	return eventID, nil
}

// Mutate writes doc to the entity table and records the matching event in one
// transaction. For deletes doc may be nil.
func (r *Recorder) Mutate(ctx context.Context, entity, entityID string, op syncstore.Op, doc any) (string, error) {
	var data []byte
	if op != syncstore.OpDelete {
		var err error
		if data, err = json.Marshal(doc); err != nil {
			return "", fmt.Errorf("encode %s/%s: %w", entity, entityID, err)
		}
	}

	var eventID string
	err := r.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := r.store.PutEntity(ctx, tx, entity, entityID, op, string(data)); err != nil {
			return err
		}
		var err error
		eventID, err = r.Record(ctx, tx, entity, entityID, op, data)
		return err
	})
	if err != nil {
		return "", err
	}
	return eventID, nil
}
