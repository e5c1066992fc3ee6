package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ledgersync/ledgersync/internal/client/syncstore"
	"github.com/ledgersync/ledgersync/internal/client/trust"
	"github.com/ledgersync/ledgersync/internal/relaysdk"
)

// ListDevices returns every device of the account. When the relay is
// unreachable only the local registry is returned.
func (c *Client) ListDevices(ctx context.Context) ([]trust.DeviceInfo, error) {
	locals, err := c.store.ListDevices(ctx)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*trust.DeviceInfo, len(locals))
	out := make([]trust.DeviceInfo, 0, len(locals))
	for _, d := range locals {
		out = append(out, trust.DeviceInfo{
			DeviceID:   d.DeviceID,
			Name:       d.DeviceName,
			Platform:   d.Platform,
			Local:      d.IsLocal,
			TrustState: string(d.TrustState),
			KeyVersion: d.KeyVersion,
		})
	}
	for i := range out {
		byID[out[i].DeviceID] = &out[i]
	}

	remote, err := c.Relay().Devices.List(ctx)
	if errors.Is(err, relaysdk.ErrRelayUnavailable) {
		slog.Warn("relay unavailable, listing local devices only", "error", err)
		return out, nil
	} else if err != nil {
		return nil, err
	}

	var extra []trust.DeviceInfo
	for _, r := range remote {
		seen := ""
		if !r.LastSeenAt.IsZero() {
			seen = r.LastSeenAt.Format(time.RFC3339)
		}
		if d, ok := byID[r.DeviceID]; ok {
			d.LastSeenAt = seen
			if r.TrustState == string(syncstore.TrustRevoked) {
				d.TrustState = r.TrustState
			}
			if d.Platform == "" {
				d.Platform = r.Platform
			}
			d.Machine = r.Machine
			continue
		}
		extra = append(extra, trust.DeviceInfo{
			DeviceID:   r.DeviceID,
			Name:       r.Name,
			Platform:   r.Platform,
			Machine:    r.Machine,
			TrustState: r.TrustState,
			KeyVersion: r.KeyVersion,
			LastSeenAt: seen,
		})
	}
	return append(out, extra...), nil
}

// RenameDevice renames a device on the relay and in the local registry.
// Devices this one never paired with only exist on the relay.
func (c *Client) RenameDevice(ctx context.Context, deviceID, name string) error {
	if err := c.Relay().Devices.Rename(ctx, deviceID, name); err != nil {
		return fmt.Errorf("rename device: %w", err)
	}
	if err := c.trust.Rename(ctx, deviceID, name); err != nil && !errors.Is(err, syncstore.ErrNotFound) {
		return err
	}
	return nil
}

// RevokeDevice revokes a device on the relay and locally. A revoked device
// can no longer push or pull and must reset before enabling sync again.
func (c *Client) RevokeDevice(ctx context.Context, deviceID string) error {
	if err := c.Relay().Devices.Revoke(ctx, deviceID); err != nil {
		return fmt.Errorf("revoke device: %w", err)
	}
	if _, err := c.store.Device(ctx, deviceID); errors.Is(err, syncstore.ErrNotFound) {
		return c.store.UpsertDevice(ctx, &syncstore.DeviceConfig{
			DeviceID:   deviceID,
			TrustState: syncstore.TrustRevoked,
		})
	} else if err != nil {
		return err
	}
	return c.trust.Revoke(ctx, deviceID)
}

// ResetSync wipes the sync bookkeeping and local keys so the device starts
// over as FRESH. Entity data is kept. Fails while a cycle runs.
func (c *Client) ResetSync(ctx context.Context) error {
	err := c.Engine().Exclusive(func() error {
		if err := c.store.Reset(ctx); err != nil {
			return err
		}
		return c.keys.Clear()
	})
	if err != nil {
		return err
	}
	if err := c.wire(""); err != nil {
		return err
	}
	slog.Info("sync reset")
	return nil
}
