package auth

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/ledgersync/ledgersync/internal/utils"
)

type Config struct {
	Enabled            bool          `mapstructure:"enabled"`
	TokenIssuer        string        `mapstructure:"token_issuer"`
	RefreshTokenSecret string        `mapstructure:"refresh_token_secret"`
	RefreshTokenExpiry time.Duration `mapstructure:"refresh_token_expiry"`
	AccessTokenSecret  string        `mapstructure:"access_token_secret"`
	AccessTokenExpiry  time.Duration `mapstructure:"access_token_expiry"`
	EmailOTPLength     int           `mapstructure:"email_otp_length"`
	EmailOTPExpiry     time.Duration `mapstructure:"email_otp_expiry"`
}

func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if err := utils.ValidateURL(c.TokenIssuer); err != nil {
		return fmt.Errorf("invalid token_issuer: %w", err)
	}
	if c.RefreshTokenSecret == "" {
		return fmt.Errorf("auth `refresh_token_secret` is required when auth is enabled")
	}
	if c.AccessTokenSecret == "" {
		return fmt.Errorf("auth `access_token_secret` is required when auth is enabled")
	}
	if c.AccessTokenSecret == c.RefreshTokenSecret {
		return fmt.Errorf("auth `access_token_secret` and `refresh_token_secret` must differ")
	}
	if c.EmailOTPLength < 6 {
		return fmt.Errorf("auth `email_otp_length` must be at least 6")
	}
	return nil
}

func (c *Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Bool("enabled", c.Enabled),
		slog.String("token_issuer", c.TokenIssuer),
		slog.String("refresh_token_secret", utils.MaskSecret(c.RefreshTokenSecret)),
		slog.Duration("refresh_token_expiry", c.RefreshTokenExpiry),
		slog.String("access_token_secret", utils.MaskSecret(c.AccessTokenSecret)),
		slog.Duration("access_token_expiry", c.AccessTokenExpiry),
		slog.Int("email_otp_length", c.EmailOTPLength),
		slog.Duration("email_otp_expiry", c.EmailOTPExpiry),
	)
}
