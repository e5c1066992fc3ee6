package events

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/ledgersync/ledgersync/internal/db"
)

const codeEventRejected = "E_EVENT_REJECTED"

const eventColumns = `account, seq, event_id, event_type, entity, entity_id, op, client_timestamp,
payload, payload_key_version, device_id, received_at`

// Push appends the batch to the account's log in one transaction. Events
// already stored are acknowledged with their original seq; invalid events are
// rejected individually without failing the batch.
func (s *Store) Push(ctx context.Context, account, deviceID string, batch []*Event) ([]PushResult, int64, error) {
	results := make([]PushResult, 0, len(batch))
	var cursor int64

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		results = results[:0]

		c, err := s.ensureAccount(ctx, tx, account)
		if err != nil {
			return err
		}
		cursor = c.Cursor
		now := db.FormatTime(s.now())
		maxKeyVersion := 0

		for _, ev := range batch {
			if reason := validateEvent(ev, deviceID); reason != "" {
				results = append(results, PushResult{EventID: ev.EventID, Code: codeEventRejected, Error: reason})
				continue
			}

			var existing int64
			err := tx.GetContext(ctx, &existing, `SELECT seq FROM relay_events WHERE account = ? AND event_id = ?`, account, ev.EventID)
			switch {
			case err == nil:
				results = append(results, PushResult{EventID: ev.EventID, Accepted: true, Seq: existing})
				continue
			case !errors.Is(err, sql.ErrNoRows):
				return fmt.Errorf("lookup event %s: %w", ev.EventID, err)
			}

			cursor++
			ev.Account = account
			ev.Seq = cursor
			ev.DeviceID = deviceID
			ev.ReceivedAt = now
			if ev.EventType == "" {
				ev.EventType = ev.Entity + "." + ev.Op + ".v1"
			}
			if _, err := tx.NamedExecContext(ctx, `INSERT INTO relay_events (`+eventColumns+`)
				VALUES (:account, :seq, :event_id, :event_type, :entity, :entity_id, :op, :client_timestamp,
					:payload, :payload_key_version, :device_id, :received_at)`, ev); err != nil {
				return fmt.Errorf("insert event %s: %w", ev.EventID, err)
			}
			maxKeyVersion = max(maxKeyVersion, ev.PayloadKeyVersion)
			results = append(results, PushResult{EventID: ev.EventID, Accepted: true, Seq: cursor})
		}

		if cursor != c.Cursor {
			if _, err := tx.ExecContext(ctx, `UPDATE relay_accounts SET cursor = ?, updated_at = ? WHERE account = ?`,
				cursor, now, account); err != nil {
				return fmt.Errorf("advance cursor: %w", err)
			}
		}
		if maxKeyVersion > 0 {
			if _, err := tx.ExecContext(ctx, `UPDATE relay_devices SET key_version = MAX(key_version, ?)
				WHERE account = ? AND device_id = ?`, maxKeyVersion, account, deviceID); err != nil {
				return fmt.Errorf("update device key version: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return results, cursor, nil
}

// Pull returns up to limit events with seq greater than since, ascending.
func (s *Store) Pull(ctx context.Context, account string, since int64, limit int) (*PullResult, error) {
	if limit <= 0 {
		limit = DefaultPullLimit
	}
	limit = min(limit, MaxPullLimit)

	c, err := s.Cursor(ctx, account)
	if err != nil {
		return nil, err
	}
	if since < c.GCWatermark {
		return nil, fmt.Errorf("%w: since %d, watermark %d", ErrCursorStale, since, c.GCWatermark)
	}

	var rows []*Event
	if err := s.db.SelectContext(ctx, &rows, `SELECT `+eventColumns+` FROM relay_events
		WHERE account = ? AND seq > ? ORDER BY seq LIMIT ?`, account, since, limit+1); err != nil {
		return nil, fmt.Errorf("pull events: %w", err)
	}

	res := &PullResult{NextCursor: since}
	if len(rows) > limit {
		rows = rows[:limit]
		res.HasMore = true
	}
	if len(rows) > 0 {
		res.NextCursor = rows[len(rows)-1].Seq
	}
	res.Events = rows
	return res, nil
}

// Cursor returns the account's latest seq and gc watermark. Unknown accounts are at zero.
func (s *Store) Cursor(ctx context.Context, account string) (*Cursor, error) {
	var c Cursor
	err := s.db.GetContext(ctx, &c, `SELECT cursor, gc_watermark FROM relay_accounts WHERE account = ?`, account)
	if errors.Is(err, sql.ErrNoRows) {
		return &Cursor{}, nil
	} else if err != nil {
		return nil, fmt.Errorf("read cursor: %w", err)
	}
	return &c, nil
}

func (s *Store) Accounts(ctx context.Context) ([]string, error) {
	var accounts []string
	if err := s.db.SelectContext(ctx, &accounts, `SELECT account FROM relay_accounts ORDER BY account`); err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return accounts, nil
}

// GC drops events at or below min(cursor - retain, limit) and raises the
// watermark to match. limit is the newest snapshot seq so a new device can
// always restore a snapshot and pull the rest. It returns the events removed.
func (s *Store) GC(ctx context.Context, account string, retain int64, limit int64) (int64, error) {
	var removed int64
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var c Cursor
		if err := tx.GetContext(ctx, &c, `SELECT cursor, gc_watermark FROM relay_accounts WHERE account = ?`, account); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			return fmt.Errorf("read cursor: %w", err)
		}

		mark := min(c.Cursor-retain, limit)
		if mark <= c.GCWatermark {
			return nil
		}

		res, err := tx.ExecContext(ctx, `DELETE FROM relay_events WHERE account = ? AND seq <= ?`, account, mark)
		if err != nil {
			return fmt.Errorf("delete events: %w", err)
		}
		removed, _ = res.RowsAffected()

		_, err = tx.ExecContext(ctx, `UPDATE relay_accounts SET gc_watermark = ?, updated_at = ? WHERE account = ?`,
			mark, db.FormatTime(s.now()), account)
		return err
	})
	return removed, err
}

func (s *Store) ensureAccount(ctx context.Context, tx *sqlx.Tx, account string) (*Cursor, error) {
	if _, err := tx.ExecContext(ctx, `INSERT INTO relay_accounts (account, updated_at) VALUES (?, ?)
		ON CONFLICT (account) DO NOTHING`, account, db.FormatTime(s.now())); err != nil {
		return nil, fmt.Errorf("ensure account: %w", err)
	}
	var c Cursor
	if err := tx.GetContext(ctx, &c, `SELECT cursor, gc_watermark FROM relay_accounts WHERE account = ?`, account); err != nil {
		return nil, fmt.Errorf("read cursor: %w", err)
	}
	return &c, nil
}

func validateEvent(ev *Event, deviceID string) string {
	switch {
	case ev.EventID == "":
		return "event_id is required"
	case ev.Entity == "" || ev.EntityID == "":
		return "entity and entity_id are required"
	case ev.Op != "create" && ev.Op != "update" && ev.Op != "delete":
		return fmt.Sprintf("invalid op %q", ev.Op)
	case ev.ClientTimestamp == "":
		return "client_timestamp is required"
	case ev.Payload == "":
		return "payload is required"
	case ev.PayloadKeyVersion <= 0:
		return "payload_key_version must be positive"
	case ev.DeviceID != "" && ev.DeviceID != deviceID:
		return "device_id does not match the sending device"
	}
	return ""
}
