package relay

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/ledgersync/ledgersync/internal/db"
	"github.com/ledgersync/ledgersync/internal/relay/auth"
	"github.com/ledgersync/ledgersync/internal/relay/email"
	"github.com/ledgersync/ledgersync/internal/relay/events"
	"github.com/ledgersync/ledgersync/internal/relay/pairing"
	"github.com/ledgersync/ledgersync/internal/relay/snapshot"
)

type Services struct {
	Auth      *auth.AuthService
	Email     email.Sender
	Pairing   *pairing.Registry
	Events    *events.Store
	Snapshots *snapshot.Store
}

// NewServices builds the relay services over an open database. Mailer may be
// nil, in which case it is built from the email config.
func NewServices(config *Config, conn *sqlx.DB, mailer email.Sender) (*Services, error) {
	if mailer == nil {
		mailer = email.New(&config.Email)
	}

	backend, err := snapshot.NewBackend(&config.Snapshot)
	if err != nil {
		return nil, fmt.Errorf("snapshot backend: %w", err)
	}

	return &Services{
		Auth:      auth.NewAuthService(&config.Auth, mailer),
		Email:     mailer,
		Pairing:   pairing.NewRegistry(&config.Pairing),
		Events:    events.NewStore(conn),
		Snapshots: snapshot.NewStore(conn, backend, config.Snapshot.Keep),
	}, nil
}

// Migrations is the relay schema: event log and devices first, snapshots after.
func Migrations() []db.Migration {
	return append(events.Migrations(), snapshot.Migrations()...)
}

// CollectGarbage trims every account's event log, never past its newest snapshot.
func (s *Services) CollectGarbage(ctx context.Context, retain int64) error {
	accounts, err := s.Events.Accounts(ctx)
	if err != nil {
		return err
	}

	for _, account := range accounts {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		limit, err := s.Snapshots.LatestSeq(ctx, account)
		if err != nil {
			slog.Warn("gc snapshot lookup", "account", account, "error", err)
			continue
		}
		removed, err := s.Events.GC(ctx, account, retain, limit)
		if err != nil {
			slog.Warn("gc events", "account", account, "error", err)
			continue
		}
		if removed > 0 {
			slog.Info("gc events", "account", account, "removed", removed, "snapshotSeq", limit)
		}
	}
	return nil
}
