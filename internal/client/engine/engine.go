// Package engine runs sync cycles: drain the outbox to the relay, pull and
// apply remote events, and restore snapshots for newly trusted devices.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ledgersync/ledgersync/internal/client/syncstore"
	"github.com/ledgersync/ledgersync/internal/client/trust"
	"github.com/ledgersync/ledgersync/internal/relaysdk"
	"github.com/ledgersync/ledgersync/internal/synccrypto"
)

// SyncRelay is the event surface of the relay.
type SyncRelay interface {
	Push(ctx context.Context, events []relaysdk.SyncEvent) (*relaysdk.PushResponse, error)
	Pull(ctx context.Context, since int64, limit int) (*relaysdk.PullResponse, error)
}

// SnapshotRelay is the snapshot surface of the relay.
type SnapshotRelay interface {
	Upload(ctx context.Context, upload *relaysdk.SnapshotUpload) (*relaysdk.SnapshotMeta, error)
	Latest(ctx context.Context) (*relaysdk.SnapshotMeta, error)
	Download(ctx context.Context, meta *relaysdk.SnapshotMeta) ([]byte, error)
}

// Trust is what the engine needs from the device trust store.
type Trust interface {
	DetectState(ctx context.Context) (trust.State, error)
	Ready(ctx context.Context) (*syncstore.DeviceConfig, *synccrypto.Keyring, error)
	Trusted(ctx context.Context) (*syncstore.DeviceConfig, *synccrypto.Keyring, error)
}

type Config struct {
	PushBatchSize   int
	PullLimit       int
	Interval        time.Duration
	PendingInterval time.Duration
	ErrorThreshold  int
	PruneAbove      int64
	PruneKeep       int64
}

func DefaultConfig() Config {
	return Config{
		PushBatchSize:   100,
		PullLimit:       500,
		Interval:        30 * time.Second,
		PendingInterval: 5 * time.Second,
		ErrorThreshold:  3,
		PruneAbove:      20000,
		PruneKeep:       10000,
	}
}

type Engine struct {
	store     *syncstore.Store
	trust     Trust
	relay     SyncRelay
	snapshots SnapshotRelay
	cfg       Config

	running sync.Mutex
	busy    atomic.Bool
	nudge   chan struct{}
}

func New(store *syncstore.Store, trust Trust, relay SyncRelay, snapshots SnapshotRelay, cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.PushBatchSize <= 0 {
		cfg.PushBatchSize = def.PushBatchSize
	}
	if cfg.PullLimit <= 0 {
		cfg.PullLimit = def.PullLimit
	}
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.PendingInterval <= 0 {
		cfg.PendingInterval = def.PendingInterval
	}
	if cfg.ErrorThreshold <= 0 {
		cfg.ErrorThreshold = def.ErrorThreshold
	}
	if cfg.PruneAbove <= 0 {
		cfg.PruneAbove = def.PruneAbove
	}
	if cfg.PruneKeep <= 0 {
		cfg.PruneKeep = def.PruneKeep
	}
	return &Engine{
		store:     store,
		trust:     trust,
		relay:     relay,
		snapshots: snapshots,
		cfg:       cfg,
		nudge:     make(chan struct{}, 1),
	}
}

// CycleResult summarizes one TriggerSyncCycle call.
type CycleResult struct {
	Status   string        `json:"status" yaml:"status"`
	Pushed   int           `json:"pushed" yaml:"pushed"`
	Rejected int           `json:"rejected" yaml:"rejected"`
	Pulled   int           `json:"pulled" yaml:"pulled"`
	Cursor   int64         `json:"cursor" yaml:"cursor"`
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// TriggerSyncCycle runs one push and pull cycle. Concurrent callers that
// lose the single-flight race return StatusSkipped immediately.
func (e *Engine) TriggerSyncCycle(ctx context.Context) (*CycleResult, error) {
	if !e.acquire() {
		return &CycleResult{Status: StatusSkipped}, nil
	}
	defer e.release()
	return e.cycle(ctx)
}

func (e *Engine) acquire() bool {
	if !e.running.TryLock() {
		return false
	}
	e.busy.Store(true)
	return true
}

func (e *Engine) release() {
	e.busy.Store(false)
	e.running.Unlock()
}

// Running reports whether a cycle or bootstrap holds the engine right now.
func (e *Engine) Running() bool {
	return e.busy.Load()
}

func (e *Engine) cycle(ctx context.Context) (*CycleResult, error) {
	start := time.Now()
	res := &CycleResult{}

	local, keyring, err := e.trust.Ready(ctx)
	if err != nil {
		res.Status = StatusNotReady
		if errors.Is(err, trust.ErrDeviceRevoked) {
			res.Status = StatusRevoked
		}
		res.Duration = time.Since(start)
		if recErr := e.store.RecordCycleStatus(ctx, res.Status, res.Duration); recErr != nil {
			slog.Warn("record cycle status", "error", recErr)
		}
		return res, err
	}

	token, err := e.store.AcquireCycle(ctx)
	if errors.Is(err, syncstore.ErrPreempted) {
		res.Status = StatusSkipped
		return res, nil
	} else if err != nil {
		return nil, err
	}

	var cycleErr error
	res.Status = StatusOK

	pushed, rejected, pushErr := e.push(ctx, local)
	res.Pushed, res.Rejected = pushed, rejected
	if pushErr != nil {
		res.Status, cycleErr = e.classify(ctx, local, pushErr, StatusPushError)
	}

	// a dead relay will not answer a pull either
	pulled := false
	if cycleErr == nil || res.Status == StatusPushError && !errors.Is(pushErr, relaysdk.ErrRelayUnavailable) {
		n, pullErr := e.pull(ctx, local, keyring)
		res.Pulled = n
		pulled = pullErr == nil
		if pullErr != nil && cycleErr == nil {
			res.Status, cycleErr = e.classify(ctx, local, pullErr, StatusPullError)
		}
	}

	if c, err := e.store.Cursor(ctx); err == nil {
		res.Cursor = c
	}
	res.Duration = time.Since(start)

	outcome := syncstore.CycleOutcome{
		Status:   res.Status,
		Err:      cycleErr,
		Pushed:   pushErr == nil,
		Pulled:   pulled,
		Duration: res.Duration,
		Benign:   res.Status == StatusNoAccessToken,
	}
	if cycleErr != nil && !outcome.Benign {
		st, err := e.store.EngineState(ctx)
		failures := 0
		if err == nil {
			failures = st.ConsecutiveFailures
		}
		outcome.RetryDelay = Backoff(failures)
	}

	if err := e.store.CommitCycle(ctx, token, outcome); errors.Is(err, syncstore.ErrPreempted) {
		res.Status = StatusPreempted
		slog.Warn("sync cycle preempted", "token", token)
		return res, cycleErr
	} else if err != nil {
		return res, errors.Join(cycleErr, err)
	}

	slog.Info("sync cycle", "status", res.Status, "pushed", res.Pushed, "rejected", res.Rejected,
		"pulled", res.Pulled, "cursor", res.Cursor, "duration", res.Duration)
	return res, cycleErr
}

// classify maps a phase error to a cycle status and applies its side
// effects on local trust state.
func (e *Engine) classify(ctx context.Context, local *syncstore.DeviceConfig, err error, fallback string) (string, error) {
	switch {
	case errors.Is(err, ErrKeyVersionMismatch):
		return StatusKeyVersionMismatch, err
	case errors.Is(err, ErrCursorStale):
		if clearErr := e.store.ClearBootstrap(ctx, local.DeviceID); clearErr != nil {
			slog.Error("clear bootstrap", "error", clearErr)
		}
		return StatusStaleCursor, err
	case errors.Is(err, trust.ErrDeviceRevoked):
		if revErr := e.store.Revoke(ctx, local.DeviceID); revErr != nil {
			slog.Error("mark local device revoked", "error", revErr)
		}
		return StatusRevoked, err
	case signedOut(err):
		return StatusNoAccessToken, err
	case errors.Is(err, ErrAuth):
		return StatusAuthError, err
	case errors.Is(err, errReplay):
		return StatusReplayError, err
	}
	return fallback, err
}

// relayErr turns relay answers that mean something to the engine into its
// sentinels.
func relayErr(err error) error {
	switch {
	case signedOut(err):
		return err
	case relaysdk.HasCode(err, relaysdk.CodeDeviceRevoked):
		return errors.Join(trust.ErrDeviceRevoked, err)
	case relaysdk.HasCode(err, relaysdk.CodeCursorStale):
		return errors.Join(ErrCursorStale, err)
	case relaysdk.Classify(err) == relaysdk.ClassAuth:
		return errors.Join(ErrAuth, err)
	}
	return err
}

// signedOut reports a missing login. It is a precondition of syncing, not a
// cycle failure.
func signedOut(err error) bool {
	return errors.Is(err, relaysdk.ErrNoAccessToken) || errors.Is(err, relaysdk.ErrNoRefreshToken)
}

// Exclusive runs fn while no cycle or bootstrap can start.
func (e *Engine) Exclusive(fn func() error) error {
	if !e.acquire() {
		return ErrSyncAlreadyRunning
	}
	defer e.release()
	return fn()
}
