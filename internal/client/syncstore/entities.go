package syncstore

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// PutEntity upserts or deletes one document according to op.
func (s *Store) PutEntity(ctx context.Context, tx *sqlx.Tx, table, id string, op Op, data string) error {
	if err := checkTable(table); err != nil {
		return err
	}
	if !op.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidOp, op)
	}

	var err error
	if op == OpDelete {
		_, err = tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ?`, id)
	} else {
		_, err = tx.ExecContext(ctx, `INSERT INTO `+table+` (id, data, updated_at) VALUES (?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
			id, data, FormatTime(s.Now()))
	}
	if err != nil {
		return fmt.Errorf("%s %s/%s: %w", op, table, id, err)
	}
	return nil
}

func (s *Store) Entity(ctx context.Context, table, id string) (*EntityRow, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	var row EntityRow
	if err := s.db.GetContext(ctx, &row, `SELECT id, data, updated_at FROM `+table+` WHERE id = ?`, id); err != nil {
		return nil, notFound(err, "%s/%s", table, id)
	}
	return &row, nil
}

func (s *Store) ListEntities(ctx context.Context, table string) ([]EntityRow, error) {
	return s.listEntities(ctx, s.db, table)
}

func (s *Store) listEntities(ctx context.Context, q sqlx.QueryerContext, table string) ([]EntityRow, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	var rows []EntityRow
	if err := sqlx.SelectContext(ctx, q, &rows, `SELECT id, data, updated_at FROM `+table+` ORDER BY id`); err != nil {
		return nil, fmt.Errorf("list %s: %w", table, err)
	}
	return rows, nil
}

func (s *Store) CountEntities(ctx context.Context, table string) (int, error) {
	if err := checkTable(table); err != nil {
		return 0, err
	}
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM `+table); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

// TablesEmpty reports whether every listed table has no rows.
func (s *Store) TablesEmpty(ctx context.Context, tables []string) (bool, error) {
	for _, table := range tables {
		n, err := s.CountEntities(ctx, table)
		if err != nil {
			return false, err
		}
		if n > 0 {
			return false, nil
		}
	}
	return true, nil
}
