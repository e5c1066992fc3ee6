package syncstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrPreempted means the engine lock version moved under a running cycle.
var ErrPreempted = errors.New("syncstore: cycle preempted")

const engineStateColumns = `lock_version, last_push_at, last_pull_at, last_error, consecutive_failures,
next_retry_at, last_cycle_status, last_cycle_duration_ms`

func (s *Store) EngineState(ctx context.Context) (*EngineState, error) {
	var st EngineState
	if err := s.db.GetContext(ctx, &st, `SELECT `+engineStateColumns+` FROM sync_engine_state WHERE id = 1`); err != nil {
		return nil, fmt.Errorf("read engine state: %w", err)
	}
	return &st, nil
}

// AcquireCycle bumps lock_version with a compare-and-swap and returns the new
// version as the cycle token. ErrPreempted is returned when another writer
// won the swap.
func (s *Store) AcquireCycle(ctx context.Context) (int64, error) {
	var current int64
	if err := s.db.GetContext(ctx, &current, `SELECT lock_version FROM sync_engine_state WHERE id = 1`); err != nil {
		return 0, fmt.Errorf("read lock version: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `UPDATE sync_engine_state SET lock_version = ?
		WHERE id = 1 AND lock_version = ?`, current+1, current)
	if err != nil {
		return 0, fmt.Errorf("acquire cycle: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return 0, err
	} else if n == 0 {
		return 0, ErrPreempted
	}
	return current + 1, nil
}

// CommitCycle writes the outcome of the cycle holding token. A failed outcome
// bumps consecutive_failures and schedules next_retry_at; a successful one
// clears them.
func (s *Store) CommitCycle(ctx context.Context, token int64, out CycleOutcome) error {
	now := s.Now()
	nowStr := FormatTime(now)

	var (
		lastErr   sql.NullString
		nextRetry any
		failures  = "0"
		errCol    = "?"
		retryCol  = "?"
	)
	if out.Benign {
		failures, errCol, retryCol = "consecutive_failures", "last_error", "next_retry_at"
	} else if out.Err != nil {
		lastErr = sql.NullString{String: out.Err.Error(), Valid: true}
		failures = "consecutive_failures + 1"
		if out.RetryDelay > 0 {
			nextRetry = FormatTime(now.Add(out.RetryDelay))
		}
	}

	pushAt, pullAt := "last_push_at", "last_pull_at"
	args := []any{}
	if out.Pushed {
		pushAt = "?"
		args = append(args, nowStr)
	}
	if out.Pulled {
		pullAt = "?"
		args = append(args, nowStr)
	}
	if !out.Benign {
		args = append(args, lastErr, nextRetry)
	}
	args = append(args, out.Status, out.Duration.Milliseconds(), token)

	query := fmt.Sprintf(`UPDATE sync_engine_state SET
		last_push_at = %s,
		last_pull_at = %s,
		last_error = %s,
		consecutive_failures = %s,
		next_retry_at = %s,
		last_cycle_status = ?,
		last_cycle_duration_ms = ?
		WHERE id = 1 AND lock_version = ?`, pushAt, pullAt, errCol, failures, retryCol)

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("commit cycle: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return ErrPreempted
	}
	return nil
}

// RecordCycleStatus stores a status for a cycle that never acquired the
// lock, without touching failure counters.
func (s *Store) RecordCycleStatus(ctx context.Context, status string, d time.Duration) error {
	_, err := s.db.ExecContext(ctx, `UPDATE sync_engine_state SET last_cycle_status = ?, last_cycle_duration_ms = ?
		WHERE id = 1`, status, d.Milliseconds())
	if err != nil {
		return fmt.Errorf("record cycle status: %w", err)
	}
	return nil
}
