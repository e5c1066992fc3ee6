package pairing

import (
	"errors"
	"time"
)

var (
	ErrNotFound     = errors.New("pairing: not found")
	ErrExpired      = errors.New("pairing: expired")
	ErrCanceled     = errors.New("pairing: canceled")
	ErrAlreadyTaken = errors.New("pairing: already claimed by another device")
	ErrNotClaimed   = errors.New("pairing: not claimed")
	ErrInvalid      = errors.New("pairing: invalid request")
)

// Session is one pairing between an issuer device and a claimer device of the
// same account. The relay only stores public keys and the sealed bundle.
type Session struct {
	ID      string
	Account string
	Code    string

	IssuerPublicKey  string
	IssuerDeviceID   string
	IssuerDeviceName string

	ClaimerPublicKey  string
	ClaimerDeviceID   string
	ClaimerDeviceName string

	EncryptedKeyBundle string
	Canceled           bool

	CreatedAt time.Time
	ExpiresAt time.Time
}

func (s *Session) Claimed() bool {
	return s.ClaimerPublicKey != ""
}

func (s *Session) Completed() bool {
	return s.EncryptedKeyBundle != ""
}

type CreateParams struct {
	IssuerPublicKey  string
	IssuerDeviceID   string
	IssuerDeviceName string
}

type ClaimParams struct {
	Code              string
	ClaimerPublicKey  string
	ClaimerDeviceID   string
	ClaimerDeviceName string
}
