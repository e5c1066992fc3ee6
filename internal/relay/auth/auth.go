// Package auth signs users in with an emailed one-time code and issues the
// JWT access and refresh tokens devices call the relay with.
package auth

import (
	"bytes"
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"strings"
	"text/template"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/ledgersync/ledgersync/internal/relay/email"
	"github.com/ledgersync/ledgersync/internal/utils"
)

// devUser is the subject every request runs as when auth is disabled.
const devUser = "dev@ledgersync.local"

// devTokens signs the non-expiring placeholder tokens handed out while auth is disabled.
var devTokens = &Config{
	TokenIssuer:        "ledgersync-dev",
	AccessTokenSecret:  "ledgersync-dev-access",
	RefreshTokenSecret: "ledgersync-dev-refresh",
}

type AuthService struct {
	config        *Config
	mailer        email.Sender
	codes         *expirable.LRU[string, string]
	emailTemplate *template.Template
	now           func() time.Time
}

func NewAuthService(config *Config, mailer email.Sender) *AuthService {
	return &AuthService{
		config:        config,
		mailer:        mailer,
		codes:         expirable.NewLRU[string, string](0, nil, config.EmailOTPExpiry), // 0 = no size limit
		emailTemplate: template.Must(template.New("emailTemplate").Parse(emailTemplate)),
		now:           time.Now,
	}
}

func (s *AuthService) IsEnabled() bool {
	return s.config.Enabled
}

// DevUser is the account used for every request while auth is disabled.
func (s *AuthService) DevUser() string {
	return devUser
}

func (s *AuthService) SendOTP(ctx context.Context, userEmail string) error {
	userEmail = utils.NormalizeEmail(userEmail)
	if !s.IsEnabled() {
		return nil
	}

	otp, err := s.generateOTP(userEmail)
	if err != nil {
		return err
	}
	return s.sendOTPEmail(ctx, userEmail, otp)
}

func (s *AuthService) GenerateTokens(ctx context.Context, userEmail string, otp string) (string, string, error) {
	userEmail = utils.NormalizeEmail(userEmail)
	if !s.IsEnabled() {
		slog.Debug("auth is disabled, issuing dev tokens")
		return generateTokenPair(devUser, devTokens, s.now())
	}

	if err := s.verifyOTP(userEmail, strings.ToUpper(strings.TrimSpace(otp))); err != nil {
		return "", "", err
	}

	accessToken, refreshToken, err := generateTokenPair(userEmail, s.config, s.now())
	if err != nil {
		return "", "", err
	}
	slog.Info("user signed in", "user", userEmail)
	return accessToken, refreshToken, nil
}

func (s *AuthService) RefreshToken(ctx context.Context, oldRefreshToken string) (string, string, error) {
	if oldRefreshToken == "" {
		return "", "", ErrInvalidRequestToken
	}
	if !s.IsEnabled() {
		return generateTokenPair(devUser, devTokens, s.now())
	}

	claims, err := s.ValidateRefreshToken(ctx, oldRefreshToken)
	if err != nil {
		return "", "", err
	}

	return generateTokenPair(claims.Subject, s.config, s.now())
}

func (s *AuthService) ValidateAccessToken(ctx context.Context, accessToken string) (*Claims, error) {
	if accessToken == "" {
		return nil, ErrInvalidAccessToken
	}

	claims, err := ParseClaims(accessToken, s.config.AccessTokenSecret, s.config.TokenIssuer)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAccessToken, err)
	}
	if claims.Type != AccessToken {
		return nil, fmt.Errorf("%w: wrong token type %q", ErrInvalidAccessToken, claims.Type)
	}
	return claims, nil
}

func (s *AuthService) ValidateRefreshToken(ctx context.Context, refreshToken string) (*Claims, error) {
	if refreshToken == "" {
		return nil, ErrInvalidRefreshToken
	}

	claims, err := ParseClaims(refreshToken, s.config.RefreshTokenSecret, s.config.TokenIssuer)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRefreshToken, err)
	}
	if claims.Type != RefreshToken {
		return nil, fmt.Errorf("%w: wrong token type %q", ErrInvalidRefreshToken, claims.Type)
	}
	return claims, nil
}

func (s *AuthService) generateOTP(userEmail string) (string, error) {
	if !utils.IsValidEmail(userEmail) {
		return "", ErrInvalidEmail
	}

	otp, err := utils.RandBase34(s.config.EmailOTPLength)
	if err != nil {
		return "", fmt.Errorf("failed to generate OTP: %w", err)
	}

	s.codes.Add(userEmail, otp)
	return otp, nil
}

func (s *AuthService) verifyOTP(userEmail string, otp string) error {
	if !utils.IsValidEmail(userEmail) {
		return ErrInvalidEmail
	}

	if len(otp) != s.config.EmailOTPLength {
		return ErrInvalidOTP
	}

	storedOTP, ok := s.codes.Get(userEmail)
	if !ok || subtle.ConstantTimeCompare([]byte(storedOTP), []byte(otp)) != 1 {
		return ErrInvalidOTP
	}

	s.codes.Remove(userEmail)
	return nil
}

func (s *AuthService) sendOTPEmail(ctx context.Context, to, code string) error {
	var buf bytes.Buffer
	if err := s.emailTemplate.Execute(&buf, map[string]any{
		"Email":        to,
		"Code":         code,
		"Year":         s.now().Year(),
		"ValidityMins": int(s.config.EmailOTPExpiry.Minutes()),
	}); err != nil {
		return fmt.Errorf("failed to generate email: %w", err)
	}

	return s.mailer.Send(ctx, &email.EmailInfo{
		Subject:  "LedgerSync verification code",
		ToEmail:  to,
		TextBody: buf.String(),
	})
}
