// Package relaysdk is the HTTP and websocket client for the sync relay.
package relaysdk

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/imroc/req/v3"
	"github.com/ledgersync/ledgersync/internal/version"
)

const (
	apiPrefix          = "/api/v1"
	tokenRefreshMargin = 30 * time.Second
	requestTimeout     = 30 * time.Second
)

// Client bundles the relay APIs over one shared HTTP client.
type Client struct {
	client   *req.Client
	config   *Config
	tokensMu sync.Mutex

	Pairing   *PairingAPI
	Sync      *SyncAPI
	Snapshots *SnapshotAPI
	Devices   *DevicesAPI
	Events    *EventsAPI
}

func New(config *Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	c := &Client{config: config}
	c.client = newHTTPClient(config.BaseURL).
		SetCommonHeader(HeaderDeviceID, config.DeviceID).
		OnBeforeRequest(func(_ *req.Client, r *req.Request) error {
			token, err := c.accessToken(r.Context())
			if err != nil {
				return err
			}
			r.SetBearerAuthToken(token)
			return nil
		})

	c.Pairing = &PairingAPI{client: c.client}
	c.Sync = &SyncAPI{client: c.client}
	c.Snapshots = &SnapshotAPI{client: c.client}
	c.Devices = &DevicesAPI{client: c.client}
	c.Events = newEventsAPI(config.BaseURL, c.accessToken, config.DeviceID)

	slog.Debug("relay client", "config", config)
	return c, nil
}

func newHTTPClient(baseURL string) *req.Client {
	return req.C().
		SetBaseURL(baseURL+apiPrefix).
		SetTimeout(requestTimeout).
		SetUserAgent(version.UserAgent()).
		SetCommonHeader(HeaderVersion, version.Version).
		SetCommonErrorResult(&APIError{}).
		SetCommonRetryCount(2).
		SetCommonRetryBackoffInterval(500*time.Millisecond, 3*time.Second).
		SetCommonRetryCondition(func(resp *req.Response, err error) bool {
			// only retry transport failures and gateway hiccups
			if err != nil && isAuthSetupError(err) {
				return false
			}
			return err != nil && (resp == nil || resp.Response == nil) ||
				resp != nil && resp.Response != nil && (resp.StatusCode == 502 || resp.StatusCode == 503 || resp.StatusCode == 504)
		}).
		SetJsonMarshal(jsonMarshal).
		SetJsonUnmarshal(jsonUnmarshal)
}

func (c *Client) Close() {
	c.Events.Close()
	c.client.CloseIdleConnections()
}

// Tokens returns the current token pair.
func (c *Client) Tokens() AuthTokens {
	c.tokensMu.Lock()
	defer c.tokensMu.Unlock()
	return AuthTokens{AccessToken: c.config.AccessToken, RefreshToken: c.config.RefreshToken}
}

func (c *Client) SetTokens(tokens AuthTokens) {
	c.tokensMu.Lock()
	defer c.tokensMu.Unlock()
	c.config.AccessToken = tokens.AccessToken
	c.config.RefreshToken = tokens.RefreshToken
}

// accessToken returns a usable access token, refreshing it first when it
// is about to expire.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.tokensMu.Lock()
	defer c.tokensMu.Unlock()

	if c.config.AccessToken == "" && c.config.RefreshToken == "" {
		return "", ErrNoAccessToken
	}
	if c.config.AccessToken != "" && !tokenExpiring(c.config.AccessToken, time.Now()) {
		return c.config.AccessToken, nil
	}
	if c.config.RefreshToken == "" {
		return "", ErrNoRefreshToken
	}

	tokens, err := RefreshTokens(ctx, c.config.BaseURL, c.config.RefreshToken)
	if err != nil {
		return "", fmt.Errorf("refresh access token: %w", err)
	}
	c.config.AccessToken = tokens.AccessToken
	c.config.RefreshToken = tokens.RefreshToken
	if c.config.OnTokensRefreshed != nil {
		c.config.OnTokensRefreshed(*tokens)
	}
	slog.Debug("access token refreshed")
	return tokens.AccessToken, nil
}

// tokenExpiring reads the exp claim without verifying the signature; the
// relay does the verification.
func tokenExpiring(token string, now time.Time) bool {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return true
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return claims.ExpiresAt.Time.Before(now.Add(tokenRefreshMargin))
}
