package pairing

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ledgersync/ledgersync/internal/relaysdk"
	"github.com/ledgersync/ledgersync/internal/synccrypto"
)

// ClaimerSession is the new device's side of one pairing attempt.
type ClaimerSession struct {
	session
	issuerDeviceID string
	bundle         *synccrypto.KeyBundle
	bundleErr      error
}

func (s *ClaimerSession) base() *session { return &s.session }

func (s *ClaimerSession) IssuerDeviceID() string { return s.issuerDeviceID }

// ClaimPairingSession resolves code, publishes this device's ephemeral
// public key, and derives the session key and SAS.
func (c *Coordinator) ClaimPairingSession(ctx context.Context, code string) (*ClaimerSession, error) {
	if !codePattern.MatchString(code) {
		return nil, ErrInvalidOrExpiredCode
	}

	local, err := c.trust.EnsureNotRevoked(ctx)
	if err != nil {
		return nil, err
	}

	resolved, err := c.relay.Resolve(ctx, code)
	if err != nil {
		return nil, claimErr(err)
	}
	if !resolved.ExpiresAt.IsZero() && !c.opts.Now().Before(resolved.ExpiresAt) {
		return nil, ErrInvalidOrExpiredCode
	}

	keys, err := synccrypto.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	sessionKey, err := keys.DeriveSessionKey(resolved.IssuerPublicKey, resolved.PairingID)
	if err != nil {
		keys.Wipe()
		return nil, err
	}
	sas, err := synccrypto.SAS(sessionKey)
	if err != nil {
		keys.Wipe()
		return nil, err
	}

	err = c.relay.Claim(ctx, resolved.PairingID, &relaysdk.ClaimPairingRequest{
		Code:              code,
		ClaimerPublicKey:  keys.PublicKeyString(),
		ClaimerDeviceID:   local.DeviceID,
		ClaimerDeviceName: local.DeviceName,
	})
	if err != nil {
		keys.Wipe()
		return nil, claimErr(err)
	}

	s := &ClaimerSession{
		session: session{
			pairingID:  resolved.PairingID,
			expiresAt:  resolved.ExpiresAt,
			state:      Idle{},
			keys:       keys,
			sessionKey: sessionKey,
			sas:        sas,
		},
		issuerDeviceID: resolved.IssuerDeviceID,
	}
	if err := s.apply(EvSessionStarted{PairingID: resolved.PairingID, SAS: sas, ExpiresAt: resolved.ExpiresAt}); err != nil {
		return nil, err
	}

	slog.Info("pairing claimed", "pairing", resolved.PairingID, "issuer", resolved.IssuerDeviceID)
	return s, nil
}

// claimErr folds the relay's "no such live session" answers into
// ErrInvalidOrExpiredCode.
func claimErr(err error) error {
	switch {
	case relaysdk.HasCode(err, relaysdk.CodePairingNotFound),
		relaysdk.HasCode(err, relaysdk.CodePairingExpired),
		relaysdk.HasCode(err, relaysdk.CodePairingCanceled),
		relaysdk.HasCode(err, relaysdk.CodePairingAlreadyTaken):
		return fmt.Errorf("%w: %w", ErrInvalidOrExpiredCode, err)
	}
	return err
}

// CheckKeyBundle asks the relay once for the sealed bundle. It returns nil
// without error while the issuer has not completed.
func (c *Coordinator) CheckKeyBundle(ctx context.Context, s *ClaimerSession) (*synccrypto.KeyBundle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bundleErr != nil {
		return nil, s.bundleErr
	}
	switch st := s.state.(type) {
	case SessionStarted:
		if err := s.apply(EvWaitingForKey{}); err != nil {
			return nil, err
		}
	case WaitingForKey:
		if st.BundleReady {
			return copyBundle(s.bundle), nil
		}
	default:
		if err := s.terminalErr(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: poll bundle in %s", ErrInvalidTransition, s.state.Name())
	}

	if c.expired(&s.session) {
		return nil, c.expire(&s.session)
	}

	sealed, err := c.relay.Bundle(ctx, s.pairingID)
	if err != nil {
		if stateErr := c.relayStateErr(&s.session, err); stateErr != nil {
			return nil, stateErr
		}
		return nil, err
	}
	if sealed == "" {
		return nil, nil
	}

	bundle, err := synccrypto.OpenBundle(s.sessionKey, s.pairingID, sealed)
	if err != nil {
		s.bundleErr = fmt.Errorf("%w: %w", ErrTamperedBundle, err)
		_ = s.apply(EvFailed{Err: s.bundleErr})
		slog.Error("pairing bundle rejected", "pairing", s.pairingID, "error", err)
		return nil, s.bundleErr
	}

	s.bundle = bundle
	if err := s.apply(EvBundleReceived{}); err != nil {
		return nil, err
	}
	return copyBundle(bundle), nil
}

// PollForKeyBundle polls until the bundle arrives and authenticates, the
// session expires, or ctx is canceled. Canceling ctx cancels the session.
func (c *Coordinator) PollForKeyBundle(ctx context.Context, s *ClaimerSession) (*synccrypto.KeyBundle, error) {
	var bundle *synccrypto.KeyBundle
	err := c.poll(ctx, &s.session, func(ctx context.Context) (bool, error) {
		b, err := c.CheckKeyBundle(ctx, s)
		if err != nil && isTransient(err) {
			slog.Warn("pairing bundle poll", "pairing", s.pairingID, "error", err)
			return false, nil
		}
		bundle = b
		return b != nil, err
	})
	if err != nil {
		return nil, err
	}
	return bundle, nil
}

// ConfirmPairingAsClaimer persists the received bundle and marks this
// device trusted at its key version. A bundle that failed authentication
// is never persisted.
func (c *Coordinator) ConfirmPairingAsClaimer(ctx context.Context, s *ClaimerSession, bundle *synccrypto.KeyBundle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bundleErr != nil {
		return s.bundleErr
	}
	st, ok := s.state.(WaitingForKey)
	if !ok || !st.BundleReady || s.bundle == nil {
		if err := s.terminalErr(); err != nil {
			return err
		}
		return ErrNoBundle
	}
	if bundle == nil {
		bundle = s.bundle
	}
	if bundle.KeyVersion != s.bundle.KeyVersion || !equalKeys(bundle.Key, s.bundle.Key) {
		return ErrTamperedBundle
	}

	if err := c.trust.AcceptBundle(ctx, s.bundle); err != nil {
		return err
	}
	version := s.bundle.KeyVersion
	clear(s.bundle.Key)
	s.bundle = nil
	if err := s.apply(EvConfirmed{KeyVersion: version}); err != nil {
		return err
	}

	slog.Info("pairing confirmed", "pairing", s.pairingID, "keyVersion", version)
	return nil
}

func copyBundle(b *synccrypto.KeyBundle) *synccrypto.KeyBundle {
	if b == nil {
		return nil
	}
	return &synccrypto.KeyBundle{Key: append([]byte(nil), b.Key...), KeyVersion: b.KeyVersion}
}

func equalKeys(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}

// IsSessionEnded reports whether err means the pairing attempt is over and
// must be restarted with a new code.
func IsSessionEnded(err error) bool {
	return errors.Is(err, ErrSessionExpired) ||
		errors.Is(err, ErrCanceled) ||
		errors.Is(err, ErrInvalidOrExpiredCode) ||
		errors.Is(err, ErrTamperedBundle)
}
