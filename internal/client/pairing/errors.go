package pairing

import "errors"

var (
	ErrSessionCreate        = errors.New("pairing: could not create session")
	ErrSessionExpired       = errors.New("pairing: session expired")
	ErrInvalidOrExpiredCode = errors.New("pairing: invalid or expired code")
	ErrTamperedBundle       = errors.New("pairing: key bundle failed authentication")
	ErrCanceled             = errors.New("pairing: canceled")
	ErrNotTrusted           = errors.New("pairing: this device is not trusted and cannot issue pairings")
	ErrNotClaimed           = errors.New("pairing: no claimer connected")
	ErrNotApproved          = errors.New("pairing: not approved")
	ErrNoBundle             = errors.New("pairing: key bundle not received")
)
