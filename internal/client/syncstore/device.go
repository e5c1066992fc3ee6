package syncstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

const deviceColumns = `device_id, device_name, platform, is_local, key_version, trust_state,
last_bootstrap_at, created_at, updated_at`

func (s *Store) Device(ctx context.Context, deviceID string) (*DeviceConfig, error) {
	var d DeviceConfig
	if err := s.db.GetContext(ctx, &d, `SELECT `+deviceColumns+` FROM sync_device_config WHERE device_id = ?`, deviceID); err != nil {
		return nil, notFound(err, "device %s", deviceID)
	}
	return &d, nil
}

// LocalDevice returns this device's row, or nil when sync was never enabled.
func (s *Store) LocalDevice(ctx context.Context) (*DeviceConfig, error) {
	var d DeviceConfig
	err := s.db.GetContext(ctx, &d, `SELECT `+deviceColumns+` FROM sync_device_config WHERE is_local = 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("read local device: %w", err)
	}
	return &d, nil
}

func (s *Store) ListDevices(ctx context.Context) ([]*DeviceConfig, error) {
	var devices []*DeviceConfig
	if err := s.db.SelectContext(ctx, &devices, `SELECT `+deviceColumns+` FROM sync_device_config
		ORDER BY is_local DESC, created_at`); err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	return devices, nil
}

// UpsertDevice inserts a device or refreshes its name, platform, trust and key version.
// Bootstrap time and the local flag are only written on insert.
func (s *Store) UpsertDevice(ctx context.Context, d *DeviceConfig) error {
	return s.upsertDevice(ctx, s.db, d)
}

func (s *Store) UpsertDeviceTx(ctx context.Context, tx *sqlx.Tx, d *DeviceConfig) error {
	return s.upsertDevice(ctx, tx, d)
}

func (s *Store) upsertDevice(ctx context.Context, e sqlx.ExtContext, d *DeviceConfig) error {
	now := NewTimestamp(s.Now())
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now
	if d.TrustState == "" {
		d.TrustState = TrustUntrusted
	}

	_, err := sqlx.NamedExecContext(ctx, e, `INSERT INTO sync_device_config (`+deviceColumns+`)
		VALUES (:device_id, :device_name, :platform, :is_local, :key_version, :trust_state,
			:last_bootstrap_at, :created_at, :updated_at)
		ON CONFLICT (device_id) DO UPDATE SET
			device_name = excluded.device_name,
			platform = excluded.platform,
			key_version = excluded.key_version,
			trust_state = excluded.trust_state,
			updated_at = excluded.updated_at`, d)
	if err != nil {
		return fmt.Errorf("upsert device %s: %w", d.DeviceID, err)
	}
	return nil
}

// SetTrust moves a device between trust states at the given key version.
func (s *Store) SetTrust(ctx context.Context, deviceID string, state TrustState, keyVersion int) error {
	return s.setTrust(ctx, s.db, deviceID, state, keyVersion)
}

func (s *Store) SetTrustTx(ctx context.Context, tx *sqlx.Tx, deviceID string, state TrustState, keyVersion int) error {
	return s.setTrust(ctx, tx, deviceID, state, keyVersion)
}

func (s *Store) setTrust(ctx context.Context, e sqlx.ExecerContext, deviceID string, state TrustState, keyVersion int) error {
	res, err := e.ExecContext(ctx, `UPDATE sync_device_config SET trust_state = ?, key_version = ?, updated_at = ?
		WHERE device_id = ?`, state, keyVersion, FormatTime(s.Now()), deviceID)
	if err != nil {
		return fmt.Errorf("set trust %s: %w", deviceID, err)
	}
	return requireOneRow(res, "device %s", deviceID)
}

// Revoke marks a device revoked, keeping its key version for the record.
func (s *Store) Revoke(ctx context.Context, deviceID string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE sync_device_config SET trust_state = 'revoked', updated_at = ?
		WHERE device_id = ?`, FormatTime(s.Now()), deviceID)
	if err != nil {
		return fmt.Errorf("revoke %s: %w", deviceID, err)
	}
	return requireOneRow(res, "device %s", deviceID)
}

func (s *Store) RenameDevice(ctx context.Context, deviceID, name string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE sync_device_config SET device_name = ?, updated_at = ?
		WHERE device_id = ?`, name, FormatTime(s.Now()), deviceID)
	if err != nil {
		return fmt.Errorf("rename %s: %w", deviceID, err)
	}
	return requireOneRow(res, "device %s", deviceID)
}

func (s *Store) MarkBootstrapped(ctx context.Context, tx *sqlx.Tx, deviceID string) error {
	_, err := tx.ExecContext(ctx, `UPDATE sync_device_config SET last_bootstrap_at = ?, updated_at = ?
		WHERE device_id = ?`, FormatTime(s.Now()), FormatTime(s.Now()), deviceID)
	if err != nil {
		return fmt.Errorf("mark bootstrapped %s: %w", deviceID, err)
	}
	return nil
}

// ClearBootstrap forgets the bootstrap so the device must restore a snapshot again.
func (s *Store) ClearBootstrap(ctx context.Context, deviceID string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE sync_device_config SET last_bootstrap_at = NULL, updated_at = ?
		WHERE device_id = ?`, FormatTime(s.Now()), deviceID)
	if err != nil {
		return fmt.Errorf("clear bootstrap %s: %w", deviceID, err)
	}
	return nil
}

// MaxTrustedKeyVersion is the newest key generation held by any trusted
// device, or 1 when none is recorded.
func (s *Store) MaxTrustedKeyVersion(ctx context.Context) (int, error) {
	var v sql.NullInt64
	if err := s.db.GetContext(ctx, &v, `SELECT MAX(key_version) FROM sync_device_config
		WHERE trust_state = 'trusted' AND key_version > 0`); err != nil {
		return 0, fmt.Errorf("max key version: %w", err)
	}
	if !v.Valid {
		return 1, nil
	}
	return int(v.Int64), nil
}

func requireOneRow(res sql.Result, format string, args ...any) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: "+format, append([]any{ErrNotFound}, args...)...)
	}
	return nil
}
