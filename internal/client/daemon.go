package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ledgersync/ledgersync/internal/client/trust"
	"github.com/ledgersync/ledgersync/internal/relaysdk"
)

// ClientDaemon runs the sync scheduler and, when configured, the local
// control plane until its context ends.
type ClientDaemon struct {
	client *Client
	cps    *ControlPlaneServer
}

// NewClientDaemon builds a daemon around c. A nil cpConfig runs without the control plane.
func NewClientDaemon(c *Client, cpConfig *ControlPlaneConfig) (*ClientDaemon, error) {
	d := &ClientDaemon{client: c}
	if cpConfig != nil {
		cps, err := NewControlPlaneServer(cpConfig, c)
		if err != nil {
			return nil, err
		}
		d.cps = cps
	}
	return d, nil
}

func (d *ClientDaemon) Start(ctx context.Context) error {
	state, err := d.client.DetectState(ctx)
	if err != nil {
		return err
	}
	if state == trust.StateFresh {
		return ErrSyncNotEnabled
	}
	slog.Info("client daemon start", "state", state)

	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		relay := d.client.Relay()
		var notifications <-chan relaysdk.Notification
		if ch, err := relay.Events.Subscribe(egCtx); err != nil {
			slog.Warn("relay notifications unavailable, polling only", "error", err)
		} else {
			notifications = ch
		}
		if err := d.client.Engine().Start(egCtx, notifications); err != nil {
			return fmt.Errorf("sync engine: %w", err)
		}
		return nil
	})

	if d.cps != nil {
		eg.Go(func() error {
			if err := d.cps.Start(egCtx); err != nil {
				return fmt.Errorf("failed to start control plane: %w", err)
			}
			return nil
		})
	}

	eg.Go(func() error {
		<-egCtx.Done()
		slog.Info("stopping daemon")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return d.Stop(shutdownCtx)
	})

	if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("client daemon failure", "error", err)
		return err
	}

	slog.Info("client daemon stopped")
	return nil
}

func (d *ClientDaemon) Stop(ctx context.Context) error {
	d.client.Relay().Events.Close()
	if d.cps == nil {
		return nil
	}
	if err := d.cps.Stop(ctx); err != nil {
		return fmt.Errorf("failed to stop control plane: %w", err)
	}
	return nil
}
