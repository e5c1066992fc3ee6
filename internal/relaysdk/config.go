package relaysdk

import (
	"log/slog"

	"github.com/ledgersync/ledgersync/internal/utils"
)

const DefaultBaseURL = "https://relay.ledgersync.app"

// Config configures a relay client. BaseURL is required; tokens are optional
// for the unauthenticated auth endpoints.
type Config struct {
	BaseURL      string
	DeviceID     string
	AccessToken  string
	RefreshToken string

	// OnTokensRefreshed is called after a transparent token refresh so the
	// caller can persist the new pair.
	OnTokensRefreshed func(tokens AuthTokens)
}

func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return ErrNoServerURL
	}
	return utils.ValidateURL(c.BaseURL)
}

func (c *Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("baseUrl", c.BaseURL),
		slog.String("deviceId", c.DeviceID),
		slog.String("accessToken", utils.MaskSecret(c.AccessToken)),
		slog.String("refreshToken", utils.MaskSecret(c.RefreshToken)),
	)
}
