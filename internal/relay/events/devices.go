package events

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ledgersync/ledgersync/internal/db"
)

const deviceColumns = `account, device_id, name, platform, machine, trust_state, key_version, created_at, last_seen_at`

// RegisterDevice adds a device to the account or refreshes its name and
// platform. A revoked device stays revoked.
func (s *Store) RegisterDevice(ctx context.Context, d *Device) (*Device, error) {
	if d.Account == "" || d.DeviceID == "" {
		return nil, fmt.Errorf("%w: account and device id are required", ErrInvalidDevice)
	}

	now := db.NewTimestamp(s.now())
	d.CreatedAt, d.LastSeenAt = now, now
	d.TrustState = TrustActive

	if _, err := s.db.NamedExecContext(ctx, `INSERT INTO relay_devices (`+deviceColumns+`)
		VALUES (:account, :device_id, :name, :platform, :machine, :trust_state, :key_version, :created_at, :last_seen_at)
		ON CONFLICT (account, device_id) DO UPDATE SET
			name = CASE WHEN excluded.name = '' THEN relay_devices.name ELSE excluded.name END,
			platform = CASE WHEN excluded.platform = '' THEN relay_devices.platform ELSE excluded.platform END,
			last_seen_at = excluded.last_seen_at`, d); err != nil {
		return nil, fmt.Errorf("register device %s: %w", d.DeviceID, err)
	}
	return s.Device(ctx, d.Account, d.DeviceID)
}

func (s *Store) Device(ctx context.Context, account, deviceID string) (*Device, error) {
	var d Device
	err := s.db.GetContext(ctx, &d, `SELECT `+deviceColumns+` FROM relay_devices WHERE account = ? AND device_id = ?`, account, deviceID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDeviceNotFound
	} else if err != nil {
		return nil, fmt.Errorf("read device %s: %w", deviceID, err)
	}
	return &d, nil
}

func (s *Store) ListDevices(ctx context.Context, account string) ([]*Device, error) {
	devices := []*Device{}
	if err := s.db.SelectContext(ctx, &devices, `SELECT `+deviceColumns+` FROM relay_devices
		WHERE account = ? ORDER BY created_at, device_id`, account); err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	return devices, nil
}

func (s *Store) RenameDevice(ctx context.Context, account, deviceID, name string) (*Device, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidDevice)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE relay_devices SET name = ? WHERE account = ? AND device_id = ?`, name, account, deviceID)
	if err := affectedOne(res, err); err != nil {
		return nil, fmt.Errorf("rename device %s: %w", deviceID, err)
	}
	return s.Device(ctx, account, deviceID)
}

// RevokeDevice is permanent. Revoking a revoked device is a no-op.
func (s *Store) RevokeDevice(ctx context.Context, account, deviceID string) (*Device, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE relay_devices SET trust_state = ? WHERE account = ? AND device_id = ?`,
		TrustRevoked, account, deviceID)
	if err := affectedOne(res, err); err != nil {
		return nil, fmt.Errorf("revoke device %s: %w", deviceID, err)
	}
	return s.Device(ctx, account, deviceID)
}

// CheckDevice returns the device when it is registered and active, and
// records that it was seen.
func (s *Store) CheckDevice(ctx context.Context, account, deviceID string) (*Device, error) {
	d, err := s.Device(ctx, account, deviceID)
	if err != nil {
		return nil, err
	}
	if d.Revoked() {
		return nil, ErrDeviceRevoked
	}

	now := db.NewTimestamp(s.now())
	if _, err := s.db.ExecContext(ctx, `UPDATE relay_devices SET last_seen_at = ? WHERE account = ? AND device_id = ?`,
		now, account, deviceID); err != nil {
		return nil, fmt.Errorf("touch device %s: %w", deviceID, err)
	}
	d.LastSeenAt = now
	return d, nil
}

func affectedOne(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrDeviceNotFound
	}
	return nil
}
