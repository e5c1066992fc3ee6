package db

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
)

// Migration is a forward-only schema step. Versions must be strictly increasing.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// Migrate applies every migration newer than the database's user_version,
// each one in its own transaction together with the version bump.
func Migrate(ctx context.Context, db *sqlx.DB, migrations []Migration) error {
	var current int
	if err := db.GetContext(ctx, &current, "PRAGMA user_version"); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	last := 0
	for _, m := range migrations {
		if m.Version <= last {
			return fmt.Errorf("migration %q: version %d not increasing", m.Name, m.Version)
		}
		last = m.Version

		if m.Version <= current {
			continue
		}

		tx, err := db.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("migration %q: begin: %w", m.Name, err)
		}
		if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %q: %w", m.Name, err)
		}
		// PRAGMA does not take bind parameters
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", m.Version)); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %q: set version: %w", m.Name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %q: commit: %w", m.Name, err)
		}
		slog.Debug("db migrated", "version", m.Version, "name", m.Name)
	}

	return nil
}
