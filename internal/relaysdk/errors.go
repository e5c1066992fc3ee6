package relaysdk

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/imroc/req/v3"
)

var (
	ErrNoServerURL      = errors.New("relaysdk: server url missing")
	ErrNoAccessToken    = errors.New("relaysdk: no access token")
	ErrNoRefreshToken   = errors.New("relaysdk: refresh token missing")
	ErrRelayUnavailable = errors.New("relaysdk: relay unavailable")
	ErrInvalidEmail     = errors.New("relaysdk: invalid email")
)

const (
	CodeInvalidRequest = "E_INVALID_REQUEST"
	CodeRateLimited    = "E_RATE_LIMITED"
	CodeInternalError  = "E_INTERNAL_ERROR"
	CodeAccessDenied   = "E_ACCESS_DENIED"
	CodeNotFound       = "E_NOT_FOUND"

	CodeAuthInvalidCredentials    = "E_AUTH_INVALID_CREDENTIALS"
	CodeAuthTokenGenerationFailed = "E_AUTH_TOKEN_GENERATION_FAILED"
	CodeAuthOTPVerificationFailed = "E_AUTH_OTP_VERIFICATION_FAILED"
	CodeAuthTokenRefreshFailed    = "E_AUTH_TOKEN_REFRESH_FAILED"
	CodeAuthNotificationFailed    = "E_AUTH_NOTIFICATION_FAILED"

	CodePairingNotFound     = "E_PAIRING_NOT_FOUND"     // unknown code or pairing id
	CodePairingExpired      = "E_PAIRING_EXPIRED"       // session passed its expiry
	CodePairingCanceled     = "E_PAIRING_CANCELED"      // issuer or claimer canceled
	CodePairingAlreadyTaken = "E_PAIRING_ALREADY_TAKEN" // a different claimer got there first
	CodePairingNotClaimed   = "E_PAIRING_NOT_CLAIMED"   // complete before claim

	CodeDeviceRevoked  = "E_DEVICE_REVOKED"
	CodeDeviceNotFound = "E_DEVICE_NOT_FOUND"
	CodeCursorStale    = "E_CURSOR_STALE"
	CodeEventRejected  = "E_EVENT_REJECTED"

	CodeSnapshotNotFound = "E_SNAPSHOT_NOT_FOUND"
	CodeSnapshotChecksum = "E_SNAPSHOT_CHECKSUM"
)

// APIError is the relay error envelope {"code": ..., "error": ...}.
type APIError struct {
	Code       string `json:"code"`
	Message    string `json:"error"`
	StatusCode int    `json:"-"`
}

func NewAPIError(status int, code, message string) *APIError {
	return &APIError{Code: code, Message: message, StatusCode: status}
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: %d %s - %s", e.StatusCode, e.Code, e.Message)
}

// NetworkError wraps a transport failure. It matches ErrRelayUnavailable.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("http request error: %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

func (e *NetworkError) Is(target error) bool { return target == ErrRelayUnavailable }

// ErrorClass tells callers whether and how to retry a failed call.
type ErrorClass int

const (
	ClassNone ErrorClass = iota
	ClassNetwork
	ClassRetryable
	ClassPermanent
	ClassAuth
)

func (c ErrorClass) String() string {
	switch c {
	case ClassNone:
		return "none"
	case ClassNetwork:
		return "network"
	case ClassRetryable:
		return "retryable"
	case ClassPermanent:
		return "permanent"
	case ClassAuth:
		return "auth"
	default:
		return "unknown"
	}
}

// Retryable reports whether the call may succeed if repeated later.
func (c ErrorClass) Retryable() bool {
	return c == ClassNetwork || c == ClassRetryable
}

func Classify(err error) ErrorClass {
	if err == nil {
		return ClassNone
	}
	if errors.Is(err, ErrRelayUnavailable) {
		return ClassNetwork
	}
	if errors.Is(err, ErrNoAccessToken) || errors.Is(err, ErrNoRefreshToken) {
		return ClassAuth
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return ClassPermanent
	}
	return classifyStatus(apiErr.StatusCode)
}

func classifyStatus(status int) ErrorClass {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ClassAuth
	case status == http.StatusRequestTimeout,
		status == http.StatusConflict,
		status == http.StatusLocked,
		status == http.StatusTooEarly,
		status == http.StatusTooManyRequests,
		status >= 500:
		return ClassRetryable
	default:
		return ClassPermanent
	}
}

// HasCode reports whether err carries the relay error code.
func HasCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// StatusOf returns the HTTP status of an API error, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

func handleAPIError(resp *req.Response, requestErr error, operation string) error {
	if requestErr != nil {
		if isAuthSetupError(requestErr) {
			return fmt.Errorf("%s: %w", operation, requestErr)
		}
		// a response arrived but its body could not be decoded
		if resp != nil && resp.Response != nil && resp.StatusCode >= 400 {
			return fmt.Errorf("%s: %w", operation, NewAPIError(resp.StatusCode, "", requestErr.Error()))
		}
		return &NetworkError{Op: operation, Err: requestErr}
	}

	if resp.IsErrorState() {
		if apiErr, ok := resp.ErrorResult().(*APIError); ok && apiErr.Code != "" {
			apiErr.StatusCode = resp.StatusCode
			return fmt.Errorf("%s: %w", operation, apiErr)
		}
		return fmt.Errorf("%s: %w", operation, NewAPIError(resp.StatusCode, "", resp.String()))
	}

	return nil
}

// isAuthSetupError matches failures raised before a request left the process
// while obtaining an access token.
func isAuthSetupError(err error) bool {
	var apiErr *APIError
	return errors.Is(err, ErrNoAccessToken) || errors.Is(err, ErrNoRefreshToken) || errors.As(err, &apiErr)
}
