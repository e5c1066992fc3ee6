package syncstore

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Cursor returns the last server sequence fully applied locally.
func (s *Store) Cursor(ctx context.Context) (int64, error) {
	return cursor(ctx, s.db)
}

func cursor(ctx context.Context, q sqlx.QueryerContext) (int64, error) {
	var c int64
	if err := sqlx.GetContext(ctx, q, &c, "SELECT cursor FROM sync_cursor WHERE id = 1"); err != nil {
		return 0, fmt.Errorf("read cursor: %w", err)
	}
	return c, nil
}

// AdvanceCursor moves the cursor forward to seq. It never moves backwards.
func (s *Store) AdvanceCursor(ctx context.Context, tx *sqlx.Tx, seq int64) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE sync_cursor SET cursor = MAX(cursor, ?), updated_at = ? WHERE id = 1",
		seq, FormatTime(s.Now()))
	if err != nil {
		return fmt.Errorf("advance cursor: %w", err)
	}
	return nil
}
