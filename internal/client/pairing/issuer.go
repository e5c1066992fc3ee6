package pairing

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ledgersync/ledgersync/internal/relaysdk"
	"github.com/ledgersync/ledgersync/internal/synccrypto"
)

// IssuerSession is the trusted device's side of one pairing attempt.
type IssuerSession struct {
	session
	code              string
	claimerDeviceID   string
	claimerDeviceName string
}

func (s *IssuerSession) base() *session { return &s.session }

// Code is the six digit code the user types on the new device.
func (s *IssuerSession) Code() string { return s.code }

func (s *IssuerSession) ClaimerDeviceID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.claimerDeviceID
}

// CreatePairingSession registers a session with the relay under a fresh
// ephemeral key pair.
func (c *Coordinator) CreatePairingSession(ctx context.Context) (*IssuerSession, error) {
	local, _, err := c.trust.Trusted(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotTrusted, err)
	}

	keys, err := synccrypto.GenerateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSessionCreate, err)
	}

	resp, err := c.relay.CreateSession(ctx, &relaysdk.CreatePairingRequest{
		IssuerPublicKey:  keys.PublicKeyString(),
		IssuerDeviceID:   local.DeviceID,
		IssuerDeviceName: local.DeviceName,
	})
	if err != nil {
		keys.Wipe()
		return nil, wrapRelay(ErrSessionCreate, err)
	}

	s := &IssuerSession{
		session: session{
			pairingID: resp.PairingID,
			expiresAt: resp.ExpiresAt,
			state:     Idle{},
			keys:      keys,
		},
		code: resp.Code,
	}
	if err := s.apply(EvSessionCreated{PairingID: resp.PairingID, Code: resp.Code, ExpiresAt: resp.ExpiresAt}); err != nil {
		return nil, err
	}

	slog.Info("pairing session created", "pairing", resp.PairingID, "expiresAt", resp.ExpiresAt)
	return s, nil
}

// CheckClaimed asks the relay once whether a claimer has connected. Once
// claimed it keeps returning true without calling the relay.
func (c *Coordinator) CheckClaimed(ctx context.Context, s *IssuerSession) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state.(type) {
	case Claimed, Approved, Completed:
		return true, nil
	case SessionCreated:
	default:
		if err := s.terminalErr(); err != nil {
			return false, err
		}
		return false, fmt.Errorf("%w: check claimed in %s", ErrInvalidTransition, s.state.Name())
	}

	if c.expired(&s.session) {
		return false, c.expire(&s.session)
	}

	status, err := c.relay.Status(ctx, s.pairingID)
	if err != nil {
		if stateErr := c.relayStateErr(&s.session, err); stateErr != nil {
			return false, stateErr
		}
		return false, err
	}
	if !status.Claimed || status.ClaimerPublicKey == "" {
		return false, nil
	}

	sessionKey, err := s.keys.DeriveSessionKey(status.ClaimerPublicKey, s.pairingID)
	if err != nil {
		_ = s.apply(EvFailed{Err: err})
		return false, err
	}
	sas, err := synccrypto.SAS(sessionKey)
	if err != nil {
		_ = s.apply(EvFailed{Err: err})
		return false, err
	}

	s.sessionKey = sessionKey
	s.sas = sas
	s.claimerDeviceID = status.ClaimerDeviceID
	s.claimerDeviceName = status.ClaimerDeviceName
	if err := s.apply(EvClaimerConnected{SAS: sas, ClaimerDeviceID: status.ClaimerDeviceID}); err != nil {
		return false, err
	}

	slog.Info("pairing claimed", "pairing", s.pairingID, "claimer", status.ClaimerDeviceID)
	return true, nil
}

// PollForClaimerConnection polls until a claimer connects, the session
// expires, or ctx is canceled. Canceling ctx cancels the session.
func (c *Coordinator) PollForClaimerConnection(ctx context.Context, s *IssuerSession) (bool, error) {
	claimed := false
	err := c.poll(ctx, &s.session, func(ctx context.Context) (bool, error) {
		ok, err := c.CheckClaimed(ctx, s)
		if err != nil && isTransient(err) {
			slog.Warn("pairing status poll", "pairing", s.pairingID, "error", err)
			return false, nil
		}
		claimed = ok
		return ok, err
	})
	return claimed, err
}

// ApprovePairing records that the user compared the SAS on both screens.
func (c *Coordinator) ApprovePairing(s *IssuerSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.state.(Claimed); !ok {
		if err := s.terminalErr(); err != nil {
			return err
		}
		return fmt.Errorf("%w: state %s", ErrNotClaimed, s.state.Name())
	}
	if c.expired(&s.session) {
		return c.expire(&s.session)
	}
	return s.apply(EvApproved{})
}

// CompletePairing seals the current key bundle under the session key,
// publishes it, and records the claimer as a trusted peer.
func (c *Coordinator) CompletePairing(ctx context.Context, s *IssuerSession) error {
	s.mu.Lock()
	if _, ok := s.state.(Approved); !ok {
		defer s.mu.Unlock()
		if err := s.terminalErr(); err != nil {
			return err
		}
		return fmt.Errorf("%w: state %s", ErrNotApproved, s.state.Name())
	}
	if c.expired(&s.session) {
		defer s.mu.Unlock()
		return c.expire(&s.session)
	}

	_, keyring, err := c.trust.Trusted(ctx)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: %w", ErrNotTrusted, err)
	}
	version := keyring.Current()
	bundle, err := keyring.Bundle(version)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	sealed, err := synccrypto.SealBundle(s.sessionKey, s.pairingID, bundle)
	clear(bundle.Key)
	if err != nil {
		s.mu.Unlock()
		return err
	}

	if err := c.relay.Complete(ctx, s.pairingID, sealed); err != nil {
		stateErr := c.relayStateErr(&s.session, err)
		s.mu.Unlock()
		if stateErr != nil {
			return stateErr
		}
		return err
	}

	claimerID, claimerName := s.claimerDeviceID, s.claimerDeviceName
	err = s.apply(EvCompleted{KeyVersion: version})
	s.mu.Unlock()
	if err != nil {
		return err
	}

	if claimerID != "" {
		if err := c.trust.TrustPeer(ctx, claimerID, claimerName, version); err != nil {
			slog.Warn("record paired device", "device", claimerID, "error", err)
		}
	}
	slog.Info("pairing completed", "pairing", s.pairingID, "claimer", claimerID, "keyVersion", version)

	if c.opts.OnIssued != nil {
		if err := c.opts.OnIssued(ctx); err != nil {
			slog.Warn("post pairing hook", "pairing", s.pairingID, "error", err)
		}
	}
	return nil
}
