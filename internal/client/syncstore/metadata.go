package syncstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// EntityMetadata returns the metadata row for an entity, or nil when the
// entity has never been touched by a pull.
func (s *Store) EntityMetadata(ctx context.Context, q sqlx.QueryerContext, entity, entityID string) (*EntityMetadata, error) {
	var m EntityMetadata
	err := sqlx.GetContext(ctx, q, &m, `SELECT entity, entity_id, last_event_id, last_client_timestamp, last_seq
		FROM sync_entity_metadata WHERE entity = ? AND entity_id = ?`, entity, entityID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("read entity metadata %s/%s: %w", entity, entityID, err)
	}
	return &m, nil
}

func (s *Store) UpsertEntityMetadata(ctx context.Context, tx *sqlx.Tx, m *EntityMetadata) error {
	_, err := sqlx.NamedExecContext(ctx, tx, `INSERT INTO sync_entity_metadata
		(entity, entity_id, last_event_id, last_client_timestamp, last_seq)
		VALUES (:entity, :entity_id, :last_event_id, :last_client_timestamp, :last_seq)
		ON CONFLICT (entity, entity_id) DO UPDATE SET
			last_event_id = excluded.last_event_id,
			last_client_timestamp = excluded.last_client_timestamp,
			last_seq = MAX(sync_entity_metadata.last_seq, excluded.last_seq)`, m)
	if err != nil {
		return fmt.Errorf("upsert entity metadata %s/%s: %w", m.Entity, m.EntityID, err)
	}
	return nil
}

// TouchEntitySeq records that seq was applied for the entity without
// changing the winning write.
func (s *Store) TouchEntitySeq(ctx context.Context, tx *sqlx.Tx, entity, entityID string, seq int64) error {
	_, err := tx.ExecContext(ctx, `UPDATE sync_entity_metadata SET last_seq = MAX(last_seq, ?)
		WHERE entity = ? AND entity_id = ?`, seq, entity, entityID)
	if err != nil {
		return fmt.Errorf("touch entity metadata %s/%s: %w", entity, entityID, err)
	}
	return nil
}
