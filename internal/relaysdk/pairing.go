package relaysdk

import (
	"context"

	"github.com/imroc/req/v3"
)

const (
	v1PairingSession  = "/pairing/session"
	v1PairingResolve  = "/pairing/resolve"
	v1PairingClaim    = "/pairing/{id}/claim"
	v1PairingStatus   = "/pairing/{id}/status"
	v1PairingComplete = "/pairing/{id}/complete"
	v1PairingBundle   = "/pairing/{id}/bundle"
	v1PairingCancel   = "/pairing/{id}/cancel"
)

type PairingAPI struct {
	client *req.Client
}

// CreateSession registers a new issuer session and returns its code.
func (p *PairingAPI) CreateSession(ctx context.Context, params *CreatePairingRequest) (resp *PairingSession, err error) {
	res, err := p.client.R().
		SetContext(ctx).
		SetBody(params).
		SetSuccessResult(&resp).
		Post(v1PairingSession)
	if err := handleAPIError(res, err, "pairing create"); err != nil {
		return nil, err
	}
	return resp, nil
}

// Resolve maps a human-entered code to its live pairing session.
func (p *PairingAPI) Resolve(ctx context.Context, code string) (resp *ResolvedPairing, err error) {
	res, err := p.client.R().
		SetContext(ctx).
		SetBody(&ResolvePairingRequest{Code: code}).
		SetSuccessResult(&resp).
		Post(v1PairingResolve)
	if err := handleAPIError(res, err, "pairing resolve"); err != nil {
		return nil, err
	}
	return resp, nil
}

func (p *PairingAPI) Claim(ctx context.Context, pairingID string, params *ClaimPairingRequest) error {
	res, err := p.client.R().
		SetContext(ctx).
		SetPathParam("id", pairingID).
		SetBody(params).
		Post(v1PairingClaim)
	return handleAPIError(res, err, "pairing claim")
}

func (p *PairingAPI) Status(ctx context.Context, pairingID string) (resp *PairingStatus, err error) {
	res, err := p.client.R().
		SetContext(ctx).
		SetPathParam("id", pairingID).
		SetSuccessResult(&resp).
		Get(v1PairingStatus)
	if err := handleAPIError(res, err, "pairing status"); err != nil {
		return nil, err
	}
	return resp, nil
}

func (p *PairingAPI) Complete(ctx context.Context, pairingID, encryptedBundle string) error {
	res, err := p.client.R().
		SetContext(ctx).
		SetPathParam("id", pairingID).
		SetBody(&CompletePairingRequest{EncryptedKeyBundle: encryptedBundle}).
		Post(v1PairingComplete)
	return handleAPIError(res, err, "pairing complete")
}

// Bundle returns the sealed key bundle, empty while the issuer has not completed.
func (p *PairingAPI) Bundle(ctx context.Context, pairingID string) (string, error) {
	var resp PairingBundle
	res, err := p.client.R().
		SetContext(ctx).
		SetPathParam("id", pairingID).
		SetSuccessResult(&resp).
		Get(v1PairingBundle)
	if err := handleAPIError(res, err, "pairing bundle"); err != nil {
		return "", err
	}
	return resp.EncryptedKeyBundle, nil
}

func (p *PairingAPI) Cancel(ctx context.Context, pairingID string) error {
	res, err := p.client.R().
		SetContext(ctx).
		SetPathParam("id", pairingID).
		SetRetryCount(0).
		Post(v1PairingCancel)
	return handleAPIError(res, err, "pairing cancel")
}
