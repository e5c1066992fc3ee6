// Package syncstore owns the local sync state: the cursor, outbox, entity
// metadata, device trust rows, engine state, table state, applied-event log,
// and the synced entity tables themselves.
package syncstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/ledgersync/ledgersync/internal/db"
)

var (
	ErrUnknownEntity = errors.New("syncstore: unknown entity")
	ErrNotFound      = errors.New("syncstore: not found")
	ErrInvalidOp     = errors.New("syncstore: invalid op")
)

// Store is the sqlite backed sync state. All multi-row changes go through WithTx.
type Store struct {
	db     *sqlx.DB
	dbPath string
	now    func() time.Time
}

// Open creates or opens the store and runs pending migrations.
func Open(ctx context.Context, dbPath string) (*Store, error) {
	conn, err := db.NewSqliteDB(db.WithPath(dbPath), db.WithMaxOpenConns(1))
	if err != nil {
		return nil, fmt.Errorf("open sync store: %w", err)
	}

	if err := db.Migrate(ctx, conn, migrations()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate sync store: %w", err)
	}

	slog.Debug("sync store open", "path", dbPath)
	return &Store{db: conn, dbPath: dbPath, now: time.Now}, nil
}

func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		slog.Error("sync store close", "error", err)
		return err
	}
	return nil
}

// DB exposes the handle for application write paths that join an outbox transaction.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// SetClock overrides the time source. Tests only.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Store) Now() time.Time {
	return s.now().UTC()
}

// WithTx runs fn in a single transaction, committing on nil and rolling back otherwise.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.Warn("rollback failed", "error", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
