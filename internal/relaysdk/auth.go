package relaysdk

import (
	"context"

	"github.com/ledgersync/ledgersync/internal/utils"
)

const (
	authOTPRequest = "/auth/otp/request"
	authOTPVerify  = "/auth/otp/verify"
	authRefresh    = "/auth/refresh"
)

// RequestEmailOTP asks the relay to mail a one-time code to email.
func RequestEmailOTP(ctx context.Context, serverURL, email string) error {
	if !utils.IsValidEmail(email) {
		return ErrInvalidEmail
	}
	res, err := newHTTPClient(serverURL).R().
		SetContext(ctx).
		SetBody(&OTPRequest{Email: email}).
		Post(authOTPRequest)
	return handleAPIError(res, err, "otp request")
}

func VerifyEmailOTP(ctx context.Context, serverURL, email, code string) (*AuthTokens, error) {
	var tokens AuthTokens
	res, err := newHTTPClient(serverURL).R().
		SetContext(ctx).
		SetBody(&OTPVerifyRequest{Email: email, Code: code}).
		SetSuccessResult(&tokens).
		Post(authOTPVerify)
	if err := handleAPIError(res, err, "otp verify"); err != nil {
		return nil, err
	}
	return &tokens, nil
}

func RefreshTokens(ctx context.Context, serverURL, refreshToken string) (*AuthTokens, error) {
	if refreshToken == "" {
		return nil, ErrNoRefreshToken
	}
	var tokens AuthTokens
	res, err := newHTTPClient(serverURL).R().
		SetContext(ctx).
		SetBody(&RefreshRequest{RefreshToken: refreshToken}).
		SetSuccessResult(&tokens).
		Post(authRefresh)
	if err := handleAPIError(res, err, "token refresh"); err != nil {
		return nil, err
	}
	return &tokens, nil
}
