package syncstore

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Reset wipes all sync bookkeeping and device rows, keeping entity tables.
// The singleton rows and table state are re-seeded.
func (s *Store) Reset(ctx context.Context) error {
	return s.WithTx(ctx, func(tx *sqlx.Tx) error {
		for _, table := range []string{
			"sync_outbox",
			"sync_entity_metadata",
			"sync_device_config",
			"sync_applied_events",
			"sync_cursor",
			"sync_engine_state",
			"sync_table_state",
		} {
			if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
				return fmt.Errorf("reset %s: %w", table, err)
			}
		}
		if _, err := tx.ExecContext(ctx, seedSingletons+seedTableStateSQL()); err != nil {
			return fmt.Errorf("reseed: %w", err)
		}
		return nil
	})
}
