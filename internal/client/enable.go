package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v4/host"

	"github.com/ledgersync/ledgersync/internal/client/syncstore"
	"github.com/ledgersync/ledgersync/internal/client/trust"
	"github.com/ledgersync/ledgersync/internal/relaysdk"
	"github.com/ledgersync/ledgersync/internal/synccrypto"
	"github.com/ledgersync/ledgersync/internal/utils"
)

var (
	ErrPairingRequired = errors.New("this account already has synced data, pair with an existing device instead")
	ErrAlreadyTrusted  = errors.New("device already holds sync keys")
)

// EnableSync registers this device with the relay and records it locally as
// untrusted. Calling it again returns the existing registration.
func (c *Client) EnableSync(ctx context.Context, name string) (*syncstore.DeviceConfig, error) {
	if err := c.config.RequireLogin(); err != nil {
		return nil, fmt.Errorf("%w: %w", relaysdk.ErrNoAccessToken, err)
	}

	local, err := c.store.LocalDevice(ctx)
	if err != nil {
		return nil, err
	}
	if local != nil {
		if local.TrustState == syncstore.TrustRevoked {
			return nil, trust.ErrDeviceRevoked
		}
		return local, nil
	}

	platform, hostname := hostInfo(ctx)
	if name == "" {
		name = c.config.DeviceName
	}
	if name == "" {
		name = hostname
	}

	id := newDeviceID()
	if err := c.wire(id); err != nil {
		return nil, err
	}
	if _, err := c.Relay().Devices.Register(ctx, &relaysdk.RegisterDeviceRequest{
		DeviceID: id,
		Name:     name,
		Platform: platform,
		Machine:  utils.HWID,
	}); err != nil {
		return nil, fmt.Errorf("register device: %w", err)
	}

	device := &syncstore.DeviceConfig{
		DeviceID:   id,
		DeviceName: name,
		Platform:   platform,
		IsLocal:    true,
		TrustState: syncstore.TrustUntrusted,
	}
	if err := c.store.UpsertDevice(ctx, device); err != nil {
		return nil, err
	}
	slog.Info("sync enabled", "device", id, "name", name, "platform", platform)
	return c.store.LocalDevice(ctx)
}

// InitializeKeys makes this device the first one of the account: it creates
// the sync key at version 1 and trusts itself. Accounts that already have
// events must pair instead.
func (c *Client) InitializeKeys(ctx context.Context) (int, error) {
	local, err := c.trust.EnsureNotRevoked(ctx)
	if errors.Is(err, trust.ErrNotEnabled) {
		return 0, ErrSyncNotEnabled
	} else if err != nil {
		return 0, err
	}
	if local.Trusted() {
		return 0, ErrAlreadyTrusted
	}

	cursor, err := c.Relay().Sync.Cursor(ctx)
	if err != nil {
		return 0, fmt.Errorf("read relay cursor: %w", err)
	}
	if cursor.Cursor > 0 {
		return 0, ErrPairingRequired
	}

	key, err := synccrypto.NewSyncKey()
	if err != nil {
		return 0, err
	}
	defer clear(key)

	bundle := &synccrypto.KeyBundle{Key: key, KeyVersion: 1}
	if err := c.trust.AcceptBundle(ctx, bundle); err != nil {
		return 0, err
	}
	slog.Info("sync keys initialized", "device", local.DeviceID, "keyVersion", bundle.KeyVersion,
		"fingerprint", synccrypto.Fingerprint(key))
	return bundle.KeyVersion, nil
}

// newDeviceID is unique per enrollment. Revocation on the relay is
// permanent, so a device that resets and enables again must come back
// under a new id.
func newDeviceID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func hostInfo(ctx context.Context) (platform, hostname string) {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		slog.Debug("host info", "error", err)
		hostname, _ = os.Hostname()
		return runtime.GOOS, hostname
	}
	platform = strings.TrimSpace(info.Platform + " " + info.PlatformVersion)
	if platform == "" {
		platform = info.OS
	}
	return platform, info.Hostname
}
