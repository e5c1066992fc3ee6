package syncstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

const outboxColumns = `event_id, entity, entity_id, op, client_timestamp, payload, payload_key_version,
sent, status, retry_count, next_retry_at, last_error, last_error_code, device_id, created_at`

// InsertOutbox adds a pending event inside the caller's transaction, the same
// one that carries the domain write it describes.
func (s *Store) InsertOutbox(ctx context.Context, tx *sqlx.Tx, ev *OutboxEvent) error {
	if err := checkTable(ev.Entity); err != nil {
		return err
	}
	if !ev.Op.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidOp, ev.Op)
	}

	now := s.Now()
	if ev.Status == "" {
		ev.Status = StatusPending
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = NewTimestamp(now)
	}
	if ev.NextRetryAt.IsZero() {
		ev.NextRetryAt = ev.CreatedAt
	}

	query := `INSERT INTO sync_outbox (` + outboxColumns + `) VALUES (:event_id, :entity, :entity_id, :op, :client_timestamp,
	:payload, :payload_key_version, :sent, :status, :retry_count, :next_retry_at, :last_error, :last_error_code,
	:device_id, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, tx, query, ev); err != nil {
		return fmt.Errorf("insert outbox %s: %w", ev.EventID, err)
	}
	return nil
}

// ReadyOutbox lists events due for (re)sending, oldest first. Ties on
// created_at keep insertion order. A row whose entity still has an older
// unacknowledged row waiting on its backoff is held back with it, so events
// for one entity never overtake each other.
func (s *Store) ReadyOutbox(ctx context.Context, now time.Time, limit int) ([]*OutboxEvent, error) {
	var events []*OutboxEvent
	at := FormatTime(now)
	err := s.db.SelectContext(ctx, &events, `SELECT `+outboxColumns+` FROM sync_outbox o
		WHERE o.status IN ('pending', 'failed') AND o.next_retry_at <= ?
		AND NOT EXISTS (
			SELECT 1 FROM sync_outbox p
			WHERE p.entity = o.entity AND p.entity_id = o.entity_id
			AND (p.created_at < o.created_at OR (p.created_at = o.created_at AND p.rowid < o.rowid))
			AND p.status != 'sent' AND p.next_retry_at > ?
		)
		ORDER BY o.created_at, o.rowid
		LIMIT ?`, at, at, limit)
	if err != nil {
		return nil, fmt.Errorf("select ready outbox: %w", err)
	}
	return events, nil
}

func (s *Store) GetOutbox(ctx context.Context, eventID string) (*OutboxEvent, error) {
	var ev OutboxEvent
	if err := s.db.GetContext(ctx, &ev, `SELECT `+outboxColumns+` FROM sync_outbox WHERE event_id = ?`, eventID); err != nil {
		return nil, notFound(err, "outbox %s", eventID)
	}
	return &ev, nil
}

// ListOutbox returns every row regardless of status, oldest first.
func (s *Store) ListOutbox(ctx context.Context) ([]*OutboxEvent, error) {
	var events []*OutboxEvent
	if err := s.db.SelectContext(ctx, &events, `SELECT `+outboxColumns+` FROM sync_outbox ORDER BY created_at, rowid`); err != nil {
		return nil, fmt.Errorf("list outbox: %w", err)
	}
	return events, nil
}

// MarkSending flags a batch as in flight.
func (s *Store) MarkSending(ctx context.Context, eventIDs []string) error {
	if len(eventIDs) == 0 {
		return nil
	}
	query, args, err := sqlx.In("UPDATE sync_outbox SET status = 'sending' WHERE event_id IN (?)", eventIDs)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("mark sending: %w", err)
	}
	return nil
}

// AckOutbox removes relay-acknowledged events.
func (s *Store) AckOutbox(ctx context.Context, eventIDs []string) error {
	if len(eventIDs) == 0 {
		return nil
	}
	query, args, err := sqlx.In("DELETE FROM sync_outbox WHERE event_id IN (?)", eventIDs)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("ack outbox: %w", err)
	}
	return nil
}

// FailOutbox records a rejected or undelivered event and schedules its retry.
func (s *Store) FailOutbox(ctx context.Context, eventID string, nextRetryAt time.Time, errMsg, errCode string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE sync_outbox
		SET status = 'failed', retry_count = retry_count + 1, next_retry_at = ?, last_error = ?, last_error_code = ?
		WHERE event_id = ?`, FormatTime(nextRetryAt), errMsg, errCode, eventID)
	if err != nil {
		return fmt.Errorf("fail outbox %s: %w", eventID, err)
	}
	return nil
}

// RecoverSending returns rows stranded in 'sending' by a crash to 'pending'.
func (s *Store) RecoverSending(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, "UPDATE sync_outbox SET status = 'pending' WHERE status = 'sending'")
	if err != nil {
		return 0, fmt.Errorf("recover sending: %w", err)
	}
	return res.RowsAffected()
}

// PendingCount counts events not yet acknowledged.
func (s *Store) PendingCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM sync_outbox WHERE status != 'sent'"); err != nil {
		return 0, fmt.Errorf("count outbox: %w", err)
	}
	return n, nil
}
