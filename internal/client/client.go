// Package client is the device side of ledgersync: it wires the local store,
// key store, trust store, relay client, pairing coordinator and sync engine
// behind the entry points the application calls.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ledgersync/ledgersync/internal/client/config"
	"github.com/ledgersync/ledgersync/internal/client/engine"
	"github.com/ledgersync/ledgersync/internal/client/keystore"
	"github.com/ledgersync/ledgersync/internal/client/outbox"
	"github.com/ledgersync/ledgersync/internal/client/pairing"
	"github.com/ledgersync/ledgersync/internal/client/syncstore"
	"github.com/ledgersync/ledgersync/internal/client/trust"
	"github.com/ledgersync/ledgersync/internal/client/workspace"
	"github.com/ledgersync/ledgersync/internal/relaysdk"
)

var ErrSyncNotEnabled = errors.New("sync is not enabled on this device, run `ledgersync enable`")

type Client struct {
	config    *config.Config
	workspace *workspace.Workspace
	store     *syncstore.Store
	keys      *keystore.FileKeyStore
	trust     *trust.Store

	mu      sync.RWMutex
	relay   *relaysdk.Client
	engine  *engine.Engine
	pairing *pairing.Coordinator
}

// New locks the data directory and opens the local stores. The relay side
// is wired once the device has an id.
func New(ctx context.Context, cfg *config.Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ws, err := workspace.NewWorkspace(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	if err := ws.Setup(); err != nil {
		return nil, fmt.Errorf("failed to setup workspace: %w", err)
	}

	store, err := syncstore.Open(ctx, ws.DBPath)
	if err != nil {
		_ = ws.Unlock()
		return nil, err
	}

	keys := keystore.New(ws.KeysPath)
	c := &Client{
		config:    cfg,
		workspace: ws,
		store:     store,
		keys:      keys,
		trust:     trust.New(store, keys),
	}

	local, err := store.LocalDevice(ctx)
	if err != nil {
		c.Close()
		return nil, err
	}
	deviceID := ""
	if local != nil {
		deviceID = local.DeviceID
	}
	if err := c.wire(deviceID); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// wire (re)builds the relay client and everything that talks to it.
func (c *Client) wire(deviceID string) error {
	rc, err := relaysdk.New(&relaysdk.Config{
		BaseURL:           c.config.RelayURL,
		DeviceID:          deviceID,
		AccessToken:       c.config.AccessToken,
		RefreshToken:      c.config.RefreshToken,
		OnTokensRefreshed: c.saveTokens,
	})
	if err != nil {
		return fmt.Errorf("failed to create relay client: %w", err)
	}

	eng := engine.New(c.store, sessionTrust{c.trust, c.config}, rc.Sync, rc.Snapshots, engine.Config{
		Interval:        c.config.SyncInterval,
		PendingInterval: c.config.PendingSyncInterval,
	})
	coord := pairing.NewCoordinator(rc.Pairing, c.trust, pairing.Options{
		PollInterval: c.config.PollInterval,
		OnIssued: func(ctx context.Context) error {
			_, err := eng.UploadSnapshot(ctx)
			return err
		},
	})

	c.mu.Lock()
	old := c.relay
	c.relay, c.engine, c.pairing = rc, eng, coord
	c.mu.Unlock()
	if old != nil {
		old.Close()
	}
	return nil
}

func (c *Client) saveTokens(tokens relaysdk.AuthTokens) {
	c.config.AccessToken = tokens.AccessToken
	c.config.RefreshToken = tokens.RefreshToken
	if err := c.config.Save(); err != nil {
		slog.Warn("failed to persist refreshed tokens", "error", err)
	}
}

func (c *Client) Relay() *relaysdk.Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.relay
}

func (c *Client) Engine() *engine.Engine {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.engine
}

func (c *Client) Pairing() *pairing.Coordinator {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pairing
}

func (c *Client) Store() *syncstore.Store { return c.store }

func (c *Client) Config() *config.Config { return c.config }

func (c *Client) Close() {
	c.mu.Lock()
	if c.relay != nil {
		c.relay.Close()
	}
	c.mu.Unlock()
	if err := c.store.Close(); err != nil {
		slog.Warn("close sync store", "error", err)
	}
	if err := c.workspace.Unlock(); err != nil {
		slog.Warn("unlock workspace", "error", err)
	}
}

// DetectState recomputes the device's sync state from persisted data.
func (c *Client) DetectState(ctx context.Context) (trust.State, error) {
	return sessionTrust{c.trust, c.config}.DetectState(ctx)
}

// sessionTrust reports FRESH while the config holds no relay credentials;
// the persisted trust state only counts once the user is logged in.
type sessionTrust struct {
	*trust.Store
	cfg *config.Config
}

func (t sessionTrust) DetectState(ctx context.Context) (trust.State, error) {
	if !t.cfg.HasCredentials() {
		return trust.StateFresh, nil
	}
	return t.Store.DetectState(ctx)
}

func (c *Client) TriggerSyncCycle(ctx context.Context) (*engine.CycleResult, error) {
	return c.Engine().TriggerSyncCycle(ctx)
}

func (c *Client) BootstrapSnapshotIfNeeded(ctx context.Context) (*engine.BootstrapResult, error) {
	return c.Engine().BootstrapSnapshotIfNeeded(ctx)
}

func (c *Client) UploadSnapshot(ctx context.Context) (*relaysdk.SnapshotMeta, error) {
	return c.Engine().UploadSnapshot(ctx)
}

func (c *Client) GetEngineStatus(ctx context.Context) (*engine.Status, error) {
	return c.Engine().GetEngineStatus(ctx)
}

// RecordMutation writes one entity document and queues its sync event in
// the same transaction.
func (c *Client) RecordMutation(ctx context.Context, entity, entityID string, op syncstore.Op, doc any) (string, error) {
	local, keyring, err := c.trust.Trusted(ctx)
	if err != nil {
		return "", err
	}
	eventID, err := outbox.NewRecorder(c.store, keyring, local.DeviceID).Mutate(ctx, entity, entityID, op, doc)
	if err != nil {
		return "", err
	}
	c.Engine().Nudge()
	return eventID, nil
}

func (c *Client) ListEntities(ctx context.Context, entity string) ([]syncstore.EntityRow, error) {
	return c.store.ListEntities(ctx, entity)
}
