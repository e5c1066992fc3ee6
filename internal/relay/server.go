// Package relay is the sync relay server: it stores each account's encrypted
// event log and snapshots, brokers device pairing, and nudges connected
// devices when new events arrive. It never sees plaintext.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/errgroup"

	"github.com/ledgersync/ledgersync/internal/db"
	"github.com/ledgersync/ledgersync/internal/relay/email"
	"github.com/ledgersync/ledgersync/internal/relay/handlers/ws"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	config *Config
	db     *sqlx.DB
	svc    *Services
	hub    *ws.WebsocketHub
	server *http.Server
}

// New opens the database, runs migrations and builds the HTTP server.
func New(ctx context.Context, config *Config) (*Server, error) {
	return NewWithMailer(ctx, config, nil)
}

// NewWithMailer is New with an explicit mail sender.
func NewWithMailer(ctx context.Context, config *Config, mailer email.Sender) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	conn, err := db.NewSqliteDB(db.WithPath(config.DBPath), db.WithMaxOpenConns(1))
	if err != nil {
		return nil, fmt.Errorf("open relay db: %w", err)
	}
	if err := db.Migrate(ctx, conn, Migrations()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate relay db: %w", err)
	}

	svc, err := NewServices(config, conn, mailer)
	if err != nil {
		conn.Close()
		return nil, err
	}

	hub := ws.NewHub()
	return &Server{
		config: config,
		db:     conn,
		svc:    svc,
		hub:    hub,
		server: &http.Server{
			Addr:              config.HTTP.Addr,
			Handler:           SetupRoutes(config, svc, hub),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// Handler exposes the routes, for in-process tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) Services() *Services {
	return s.svc
}

// Start serves until ctx is canceled, then shuts everything down.
func (s *Server) Start(ctx context.Context) error {
	slog.Info("relay start", "config", s.config)
	defer slog.Info("relay stop")

	listener, err := net.Listen("tcp", s.config.HTTP.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.config.HTTP.Addr, err)
	}

	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		s.hub.Run(egCtx)
		return nil
	})

	eg.Go(func() error {
		s.gcLoop(egCtx)
		return nil
	})

	eg.Go(func() error {
		if err := s.serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egCtx.Done()
		return s.Stop()
	})

	return eg.Wait()
}

func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.hub.Shutdown(ctx)

	var errs []error
	if err := s.server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if err := s.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close db: %w", err))
	}
	return errors.Join(errs...)
}

func (s *Server) serve(listener net.Listener) error {
	if s.config.HTTP.TLS() {
		slog.Info("relay listening tls", "addr", listener.Addr().String(), "cert", s.config.HTTP.CertFile)
		return s.server.ServeTLS(listener, s.config.HTTP.CertFile, s.config.HTTP.KeyFile)
	}
	slog.Info("relay listening", "addr", listener.Addr().String())
	return s.server.Serve(listener)
}

func (s *Server) gcLoop(ctx context.Context) {
	ticker := time.NewTicker(s.config.Events.GCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.svc.CollectGarbage(ctx, s.config.Events.RetainEvents); err != nil && ctx.Err() == nil {
				slog.Warn("relay gc", "error", err)
			}
		}
	}
}
