package auth

import (
	_ "embed"
	"errors"

	"github.com/ledgersync/ledgersync/internal/utils"
)

//go:embed authmail.txt.tmpl
var emailTemplate string

var (
	ErrInvalidEmail        = utils.ErrEmailInvalid
	ErrInvalidOTP          = errors.New("invalid otp")
	ErrInvalidRequestToken = errors.New("invalid request token")
	ErrInvalidAccessToken  = errors.New("invalid access token")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
)
