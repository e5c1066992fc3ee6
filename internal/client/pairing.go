package client

import (
	"context"
	"fmt"

	"github.com/ledgersync/ledgersync/internal/client/engine"
	"github.com/ledgersync/ledgersync/internal/client/pairing"
	"github.com/ledgersync/ledgersync/internal/synccrypto"
)

// StartPairing opens an issuer session on this trusted device.
func (c *Client) StartPairing(ctx context.Context) (*pairing.IssuerSession, error) {
	return c.Pairing().CreatePairingSession(ctx)
}

// WaitForClaimer blocks until a claimer joined the session. The caller then
// shows the SAS and approves with ApprovePairing.
func (c *Client) WaitForClaimer(ctx context.Context, s *pairing.IssuerSession) error {
	_, err := c.Pairing().PollForClaimerConnection(ctx, s)
	return err
}

// ApprovePairing records the user's SAS confirmation and delivers the key bundle.
func (c *Client) ApprovePairing(ctx context.Context, s *pairing.IssuerSession) error {
	coord := c.Pairing()
	if err := coord.ApprovePairing(s); err != nil {
		return err
	}
	return coord.CompletePairing(ctx, s)
}

// ClaimPairing joins the issuer's session identified by the six digit code.
func (c *Client) ClaimPairing(ctx context.Context, code string) (*pairing.ClaimerSession, error) {
	return c.Pairing().ClaimPairingSession(ctx, code)
}

// WaitForKeyBundle blocks until the issuer delivered the sealed bundle.
func (c *Client) WaitForKeyBundle(ctx context.Context, s *pairing.ClaimerSession) (*synccrypto.KeyBundle, error) {
	return c.Pairing().PollForKeyBundle(ctx, s)
}

// ConfirmPairing stores the received bundle, which makes this device
// trusted, then restores the issuer's snapshot.
func (c *Client) ConfirmPairing(ctx context.Context, s *pairing.ClaimerSession, bundle *synccrypto.KeyBundle) (*engine.BootstrapResult, error) {
	if err := c.Pairing().ConfirmPairingAsClaimer(ctx, s, bundle); err != nil {
		return nil, err
	}
	res, err := c.BootstrapSnapshotIfNeeded(ctx)
	if err != nil {
		return nil, fmt.Errorf("paired, but bootstrap failed: %w", err)
	}
	return res, nil
}

// CancelPairing abandons either side of a pairing.
func (c *Client) CancelPairing(ctx context.Context, s pairing.Session) {
	c.Pairing().Cancel(ctx, s)
}
