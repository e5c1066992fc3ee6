// Package pairing keeps the short lived pairing sessions the relay brokers
// between an issuing device and a claiming device.
package pairing

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/ledgersync/ledgersync/internal/utils"
)

// sessions outlive their expiry for a while so late polls get ErrExpired
// instead of ErrNotFound
const expiredGrace = 10 * time.Minute

const maxCodeAttempts = 32

type Registry struct {
	config   *Config
	mu       sync.Mutex
	sessions *expirable.LRU[string, *Session]
	codes    *expirable.LRU[string, string] // code -> session id
	now      func() time.Time
}

func NewRegistry(config *Config) *Registry {
	return &Registry{
		config:   config,
		sessions: expirable.NewLRU[string, *Session](0, nil, config.SessionTTL+expiredGrace),
		codes:    expirable.NewLRU[string, string](0, nil, config.SessionTTL),
		now:      time.Now,
	}
}

// Create registers a new session and assigns it a code unique among live sessions.
func (r *Registry) Create(account string, params *CreateParams) (*Session, error) {
	if params.IssuerPublicKey == "" || params.IssuerDeviceID == "" {
		return nil, fmt.Errorf("%w: issuer public key and device id are required", ErrInvalid)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	code, err := r.uniqueCode()
	if err != nil {
		return nil, err
	}

	now := r.now().UTC()
	sess := &Session{
		ID:               uuid.NewString(),
		Account:          account,
		Code:             code,
		IssuerPublicKey:  params.IssuerPublicKey,
		IssuerDeviceID:   params.IssuerDeviceID,
		IssuerDeviceName: params.IssuerDeviceName,
		CreatedAt:        now,
		ExpiresAt:        now.Add(r.config.SessionTTL),
	}
	r.sessions.Add(sess.ID, sess)
	r.codes.Add(code, sess.ID)

	slog.Debug("pairing created", "pairingId", sess.ID, "account", account, "issuer", params.IssuerDeviceID)
	return clone(sess), nil
}

// Resolve maps a human entered code to its live session.
func (r *Registry) Resolve(account, code string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.codes.Get(code)
	if !ok {
		return nil, ErrNotFound
	}
	sess, err := r.live(account, id)
	if err != nil {
		return nil, err
	}
	return clone(sess), nil
}

// Claim attaches the claimer's public key. Repeating a claim from the same
// device is a no-op; a different device gets ErrAlreadyTaken.
func (r *Registry) Claim(account, id string, params *ClaimParams) (*Session, error) {
	if params.ClaimerPublicKey == "" || params.ClaimerDeviceID == "" {
		return nil, fmt.Errorf("%w: claimer public key and device id are required", ErrInvalid)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	sess, err := r.live(account, id)
	if err != nil {
		return nil, err
	}
	if sess.Code != params.Code {
		return nil, ErrNotFound
	}
	if params.ClaimerDeviceID == sess.IssuerDeviceID {
		return nil, fmt.Errorf("%w: a device cannot claim its own pairing", ErrInvalid)
	}

	if sess.Claimed() {
		if sess.ClaimerDeviceID != params.ClaimerDeviceID || sess.ClaimerPublicKey != params.ClaimerPublicKey {
			return nil, ErrAlreadyTaken
		}
		return clone(sess), nil
	}

	sess.ClaimerPublicKey = params.ClaimerPublicKey
	sess.ClaimerDeviceID = params.ClaimerDeviceID
	sess.ClaimerDeviceName = params.ClaimerDeviceName

	// a claimed code cannot be resolved again
	r.codes.Remove(sess.Code)

	slog.Debug("pairing claimed", "pairingId", id, "claimer", params.ClaimerDeviceID)
	return clone(sess), nil
}

func (r *Registry) Status(account, id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, err := r.live(account, id)
	if err != nil {
		return nil, err
	}
	return clone(sess), nil
}

// Complete stores the sealed key bundle for the claimer to fetch.
func (r *Registry) Complete(account, id, bundle string) (*Session, error) {
	if bundle == "" {
		return nil, fmt.Errorf("%w: bundle is empty", ErrInvalid)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	sess, err := r.live(account, id)
	if err != nil {
		return nil, err
	}
	if !sess.Claimed() {
		return nil, ErrNotClaimed
	}

	sess.EncryptedKeyBundle = bundle
	slog.Debug("pairing completed", "pairingId", id)
	return clone(sess), nil
}

// Bundle returns the sealed bundle, empty until the issuer completes.
func (r *Registry) Bundle(account, id string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, err := r.live(account, id)
	if err != nil {
		return "", err
	}
	return sess.EncryptedKeyBundle, nil
}

// Cancel marks the session canceled. Canceling twice is fine.
func (r *Registry) Cancel(account, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions.Get(id)
	if !ok || sess.Account != account {
		return ErrNotFound
	}

	sess.Canceled = true
	r.codes.Remove(sess.Code)
	slog.Debug("pairing canceled", "pairingId", id)
	return nil
}

// SetClock overrides the time source. Tests only.
func (r *Registry) SetClock(now func() time.Time) {
	r.now = now
}

func (r *Registry) live(account, id string) (*Session, error) {
	sess, ok := r.sessions.Get(id)
	if !ok || sess.Account != account {
		return nil, ErrNotFound
	}
	if sess.Canceled {
		return nil, ErrCanceled
	}
	if !r.now().Before(sess.ExpiresAt) {
		r.codes.Remove(sess.Code)
		return nil, ErrExpired
	}
	return sess, nil
}

func (r *Registry) uniqueCode() (string, error) {
	for range maxCodeAttempts {
		code, err := utils.RandDigits(r.config.CodeLength)
		if err != nil {
			return "", fmt.Errorf("generate pairing code: %w", err)
		}
		if id, taken := r.codes.Get(code); taken && r.ownerLive(id) {
			continue
		}
		return code, nil
	}
	return "", fmt.Errorf("generate pairing code: no free code after %d attempts", maxCodeAttempts)
}

func (r *Registry) ownerLive(id string) bool {
	sess, ok := r.sessions.Get(id)
	return ok && !sess.Canceled && r.now().Before(sess.ExpiresAt)
}

func clone(s *Session) *Session {
	c := *s
	return &c
}
