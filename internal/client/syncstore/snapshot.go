package syncstore

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// SnapshotData is the plaintext body of a full-state snapshot.
type SnapshotData struct {
	Seq    int64                  `json:"seq"`
	Tables map[string][]EntityRow `json:"tables"`
}

// ExportSnapshot reads the listed tables and the cursor in one read transaction.
func (s *Store) ExportSnapshot(ctx context.Context, tables []string) (*SnapshotData, error) {
	snap := &SnapshotData{Tables: make(map[string][]EntityRow, len(tables))}
	err := s.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &snap.Seq, `SELECT cursor FROM sync_cursor WHERE id = 1`); err != nil {
			return fmt.Errorf("read cursor: %w", err)
		}
		for _, table := range tables {
			rows, err := s.listEntities(ctx, tx, table)
			if err != nil {
				return err
			}
			if rows == nil {
				rows = []EntityRow{}
			}
			snap.Tables[table] = rows
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// RestoreSnapshot replaces the contents of every table present in snap inside
// tx, dropping the entity metadata of those tables since it describes rows
// that no longer exist. Tables not listed in enabled are left alone.
func (s *Store) RestoreSnapshot(ctx context.Context, tx *sqlx.Tx, snap *SnapshotData, enabled []string) ([]string, error) {
	restored := make([]string, 0, len(enabled))
	now := FormatTime(s.Now())
	for _, table := range enabled {
		rows, ok := snap.Tables[table]
		if !ok {
			continue
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return nil, fmt.Errorf("clear %s: %w", table, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM sync_entity_metadata WHERE entity = ?`, table); err != nil {
			return nil, fmt.Errorf("clear %s metadata: %w", table, err)
		}
		for _, row := range rows {
			if _, err := tx.ExecContext(ctx, `INSERT INTO `+table+` (id, data, updated_at) VALUES (?, ?, ?)`,
				row.ID, row.Data, now); err != nil {
				return nil, fmt.Errorf("restore %s/%s: %w", table, row.ID, err)
			}
		}
		restored = append(restored, table)
	}
	return restored, nil
}
