package syncstore

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

func (s *Store) IsApplied(ctx context.Context, q sqlx.QueryerContext, eventID string) (bool, error) {
	var n int
	if err := sqlx.GetContext(ctx, q, &n, `SELECT COUNT(*) FROM sync_applied_events WHERE event_id = ?`, eventID); err != nil {
		return false, fmt.Errorf("check applied %s: %w", eventID, err)
	}
	return n > 0, nil
}

func (s *Store) InsertApplied(ctx context.Context, tx *sqlx.Tx, ev *AppliedEvent) error {
	if ev.AppliedAt.IsZero() {
		ev.AppliedAt = NewTimestamp(s.Now())
	}
	_, err := sqlx.NamedExecContext(ctx, tx, `INSERT INTO sync_applied_events (event_id, seq, entity, entity_id, applied_at)
		VALUES (:event_id, :seq, :entity, :entity_id, :applied_at)`, ev)
	if err != nil {
		return fmt.Errorf("insert applied %s: %w", ev.EventID, err)
	}
	return nil
}

// PruneApplied drops applied-log rows at or below seq and returns how many went.
func (s *Store) PruneApplied(ctx context.Context, seq int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sync_applied_events WHERE seq <= ?`, seq)
	if err != nil {
		return 0, fmt.Errorf("prune applied: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) AppliedCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM sync_applied_events`); err != nil {
		return 0, fmt.Errorf("count applied: %w", err)
	}
	return n, nil
}
