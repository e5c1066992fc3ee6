// Package pairing runs the issuer and claimer sides of device pairing: an
// X25519 exchange through the relay, a short authentication string checked
// by the user, and delivery of the sealed sync key bundle.
package pairing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sync"
	"time"

	"github.com/ledgersync/ledgersync/internal/client/syncstore"
	"github.com/ledgersync/ledgersync/internal/relaysdk"
	"github.com/ledgersync/ledgersync/internal/synccrypto"
)

const (
	DefaultPollInterval = 2 * time.Second
	cancelTimeout       = 5 * time.Second
)

var codePattern = regexp.MustCompile(`^[0-9]{6}$`)

// Relay is the pairing surface of the relay API.
type Relay interface {
	CreateSession(ctx context.Context, params *relaysdk.CreatePairingRequest) (*relaysdk.PairingSession, error)
	Resolve(ctx context.Context, code string) (*relaysdk.ResolvedPairing, error)
	Claim(ctx context.Context, pairingID string, params *relaysdk.ClaimPairingRequest) error
	Status(ctx context.Context, pairingID string) (*relaysdk.PairingStatus, error)
	Complete(ctx context.Context, pairingID, encryptedBundle string) error
	Bundle(ctx context.Context, pairingID string) (string, error)
	Cancel(ctx context.Context, pairingID string) error
}

// Trust is what pairing needs from the device trust store.
type Trust interface {
	Trusted(ctx context.Context) (*syncstore.DeviceConfig, *synccrypto.Keyring, error)
	EnsureNotRevoked(ctx context.Context) (*syncstore.DeviceConfig, error)
	AcceptBundle(ctx context.Context, bundle *synccrypto.KeyBundle) error
	TrustPeer(ctx context.Context, deviceID, name string, keyVersion int) error
}

type Options struct {
	PollInterval time.Duration
	Now          func() time.Time

	// OnIssued runs after the issuer delivered its key bundle, typically to
	// upload a fresh snapshot for the new device. Failures are logged.
	OnIssued func(ctx context.Context) error
}

type Coordinator struct {
	relay Relay
	trust Trust
	opts  Options
}

func NewCoordinator(relay Relay, trust Trust, opts Options) *Coordinator {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Coordinator{relay: relay, trust: trust, opts: opts}
}

// session is the state both roles share.
type session struct {
	mu         sync.Mutex
	pairingID  string
	expiresAt  time.Time
	state      State
	keys       *synccrypto.KeyPair
	sessionKey []byte
	sas        string
}

func (s *session) PairingID() string {
	return s.pairingID
}

func (s *session) ExpiresAt() time.Time {
	return s.expiresAt
}

func (s *session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SAS is the short authentication string, empty until both keys are known.
func (s *session) SAS() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sas
}

// apply runs a transition; callers hold mu.
func (s *session) apply(ev Event) error {
	next, err := Transition(s.state, ev)
	if err != nil {
		return err
	}
	slog.Debug("pairing transition", "pairing", s.pairingID, "from", s.state.Name(), "to", next.Name())
	s.state = next
	if next.Terminal() {
		s.wipe()
	}
	return nil
}

// wipe drops key material; callers hold mu.
func (s *session) wipe() {
	if s.keys != nil {
		s.keys.Wipe()
		s.keys = nil
	}
	clear(s.sessionKey)
	s.sessionKey = nil
}

// terminalErr maps a finished session to the error its next operation reports.
func (s *session) terminalErr() error {
	switch st := s.state.(type) {
	case Canceled:
		if st.Reason == "expired" {
			return ErrSessionExpired
		}
		return ErrCanceled
	case Failed:
		return st.Err
	}
	return nil
}

func (c *Coordinator) expired(s *session) bool {
	return !s.expiresAt.IsZero() && !c.opts.Now().Before(s.expiresAt)
}

// expire moves the session to canceled(expired); callers hold mu.
func (c *Coordinator) expire(s *session) error {
	if !s.state.Terminal() {
		_ = s.apply(EvExpired{})
	}
	return ErrSessionExpired
}

// relayStateErr interprets relay errors that end a session.
func (c *Coordinator) relayStateErr(s *session, err error) error {
	switch {
	case relaysdk.HasCode(err, relaysdk.CodePairingExpired):
		return c.expire(s)
	case relaysdk.HasCode(err, relaysdk.CodePairingCanceled), relaysdk.HasCode(err, relaysdk.CodePairingNotFound):
		_ = s.apply(EvCancel{Reason: "canceled by peer"})
		return ErrCanceled
	}
	return nil
}

// poll calls check every interval until it reports done, the session
// expires, or ctx ends. Canceling ctx cancels the session.
func (c *Coordinator) poll(ctx context.Context, s *session, check func(ctx context.Context) (bool, error)) error {
	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()

	for {
		done, err := check(ctx)
		if err != nil || done {
			return err
		}

		select {
		case <-ctx.Done():
			c.cancel(s, "poll canceled")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Session is either an *IssuerSession or a *ClaimerSession.
type Session interface {
	PairingID() string
	State() State
	SAS() string
	base() *session
}

// Cancel best-effort notifies the relay and always clears local state.
func (c *Coordinator) Cancel(ctx context.Context, s Session) {
	c.cancelWith(ctx, s.base(), "canceled")
}

func (c *Coordinator) cancel(s *session, reason string) {
	c.cancelWith(context.Background(), s, reason)
}

func (c *Coordinator) cancelWith(ctx context.Context, s *session, reason string) {
	s.mu.Lock()
	wasLive := !s.state.Terminal()
	if wasLive {
		_ = s.apply(EvCancel{Reason: reason})
	}
	s.mu.Unlock()

	if !wasLive || s.pairingID == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cancelTimeout)
	defer cancel()
	if err := c.relay.Cancel(ctx, s.pairingID); err != nil {
		slog.Warn("pairing cancel notify failed", "pairing", s.pairingID, "error", err)
	}
}

func isTransient(err error) bool {
	return relaysdk.Classify(err).Retryable()
}

func wrapRelay(sentinel, err error) error {
	if errors.Is(err, relaysdk.ErrNoAccessToken) {
		return err
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}
