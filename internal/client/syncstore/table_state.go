package syncstore

import (
	"context"
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/jmoiron/sqlx"
)

func (s *Store) TableStates(ctx context.Context) ([]*TableState, error) {
	var states []*TableState
	if err := s.db.SelectContext(ctx, &states, `SELECT table_name, enabled, last_snapshot_restore_at, last_incremental_apply_at
		FROM sync_table_state ORDER BY table_name`); err != nil {
		return nil, fmt.Errorf("list table state: %w", err)
	}
	return states, nil
}

// EnabledTables returns the enabled sync tables in dependency order.
func (s *Store) EnabledTables(ctx context.Context) ([]string, error) {
	var names []string
	if err := s.db.SelectContext(ctx, &names, `SELECT table_name FROM sync_table_state WHERE enabled = 1`); err != nil {
		return nil, fmt.Errorf("list enabled tables: %w", err)
	}

	enabled := mapset.NewThreadUnsafeSet(names...)
	ordered := make([]string, 0, len(names))
	for _, name := range SyncTables {
		if enabled.Contains(name) {
			ordered = append(ordered, name)
		}
	}
	return ordered, nil
}

func (s *Store) SetTableEnabled(ctx context.Context, table string, enabled bool) error {
	if err := checkTable(table); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE sync_table_state SET enabled = ? WHERE table_name = ?`, enabled, table)
	if err != nil {
		return fmt.Errorf("set table enabled %s: %w", table, err)
	}
	return requireOneRow(res, "table %s", table)
}

func (s *Store) IsTableEnabled(ctx context.Context, q sqlx.QueryerContext, table string) (bool, error) {
	var enabled bool
	if err := sqlx.GetContext(ctx, q, &enabled, `SELECT enabled FROM sync_table_state WHERE table_name = ?`, table); err != nil {
		return false, notFound(err, "table %s", table)
	}
	return enabled, nil
}

func (s *Store) MarkSnapshotRestored(ctx context.Context, tx *sqlx.Tx, tables []string) error {
	query, args, err := sqlx.In(`UPDATE sync_table_state SET last_snapshot_restore_at = ? WHERE table_name IN (?)`,
		FormatTime(s.Now()), tables)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(query), args...); err != nil {
		return fmt.Errorf("mark snapshot restored: %w", err)
	}
	return nil
}

func (s *Store) MarkIncrementalApplied(ctx context.Context, tx *sqlx.Tx, table string) error {
	if _, err := tx.ExecContext(ctx, `UPDATE sync_table_state SET last_incremental_apply_at = ? WHERE table_name = ?`,
		FormatTime(s.Now()), table); err != nil {
		return fmt.Errorf("mark incremental applied %s: %w", table, err)
	}
	return nil
}

// AnySnapshotRestored reports whether any enabled table was ever restored from a snapshot.
func (s *Store) AnySnapshotRestored(ctx context.Context) (bool, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM sync_table_state
		WHERE enabled = 1 AND last_snapshot_restore_at IS NOT NULL`); err != nil {
		return false, fmt.Errorf("count restored tables: %w", err)
	}
	return n > 0, nil
}
