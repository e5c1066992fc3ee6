package api

const (
	// Generic request/server errors
	CodeInvalidRequest = "E_INVALID_REQUEST" // bad or invalid request
	CodeRateLimited    = "E_RATE_LIMITED"    // rate limit exceeded
	CodeInternalError  = "E_INTERNAL_ERROR"  // internal server error
	CodeAccessDenied   = "E_ACCESS_DENIED"   // access denied
	CodeNotFound       = "E_NOT_FOUND"       // unknown resource

	// Auth errors
	CodeAuthInvalidCredentials    = "E_AUTH_INVALID_CREDENTIALS"     // token invalid, expired or malformed
	CodeAuthTokenGenerationFailed = "E_AUTH_TOKEN_GENERATION_FAILED" // could not mint tokens
	CodeAuthOTPVerificationFailed = "E_AUTH_OTP_VERIFICATION_FAILED" // wrong or expired email code
	CodeAuthTokenRefreshFailed    = "E_AUTH_TOKEN_REFRESH_FAILED"    // refresh token rejected
	CodeAuthNotificationFailed    = "E_AUTH_NOTIFICATION_FAILED"     // the code email could not be sent

	// Pairing errors
	CodePairingNotFound     = "E_PAIRING_NOT_FOUND"     // unknown code or pairing id
	CodePairingExpired      = "E_PAIRING_EXPIRED"       // session passed its expiry
	CodePairingCanceled     = "E_PAIRING_CANCELED"      // issuer or claimer canceled
	CodePairingAlreadyTaken = "E_PAIRING_ALREADY_TAKEN" // a different claimer got there first
	CodePairingNotClaimed   = "E_PAIRING_NOT_CLAIMED"   // complete before claim

	// Device and sync errors
	CodeDeviceRevoked  = "E_DEVICE_REVOKED"   // device was revoked by the account
	CodeDeviceNotFound = "E_DEVICE_NOT_FOUND" // device never registered
	CodeCursorStale    = "E_CURSOR_STALE"     // since is below the gc watermark
	CodeEventRejected  = "E_EVENT_REJECTED"   // event failed validation

	// Snapshot errors
	CodeSnapshotNotFound = "E_SNAPSHOT_NOT_FOUND" // no snapshot for the account or id
	CodeSnapshotChecksum = "E_SNAPSHOT_CHECKSUM"  // body does not match the declared checksum
)
