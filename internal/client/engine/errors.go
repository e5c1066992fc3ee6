package engine

import "errors"

var (
	ErrKeyVersionMismatch = errors.New("engine: key version mismatch")
	ErrInitFailed         = errors.New("engine: snapshot bootstrap failed")
	ErrCursorStale        = errors.New("engine: cursor older than relay history, re-bootstrap required")
	ErrAuth               = errors.New("engine: relay rejected credentials")
)

const (
	StatusOK                 = "ok"
	StatusSkipped            = "skipped"
	StatusNotReady           = "not_ready"
	StatusPushError          = "push_error"
	StatusPullError          = "pull_error"
	StatusReplayError        = "replay_error"
	StatusKeyVersionMismatch = "key_version_mismatch"
	StatusPreempted          = "preempted"
	StatusAuthError          = "auth_error"
	StatusNoAccessToken      = "no_access_token"
	StatusRevoked            = "revoked"
	StatusStaleCursor        = "stale_cursor"
)

// ErrSyncAlreadyRunning is returned by operations that need the engine idle.
var ErrSyncAlreadyRunning = errors.New("engine: sync cycle already running")
