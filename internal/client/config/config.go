package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"

	"github.com/ledgersync/ledgersync/internal/relaysdk"
	"github.com/ledgersync/ledgersync/internal/utils"
)

var (
	home, _            = os.UserHomeDir()
	DefaultConfigPath  = filepath.Join(home, ".ledgersync", "config.json")
	DefaultDataDir     = filepath.Join(home, ".ledgersync", "data")
	DefaultLogFilePath = filepath.Join(home, ".ledgersync", "logs", "ledgersync.log")
	DefaultRelayURL    = relaysdk.DefaultBaseURL
)

const (
	DefaultSyncInterval        = 30 * time.Second
	DefaultPendingSyncInterval = 5 * time.Second
	DefaultPollInterval        = 2 * time.Second
)

var ErrNotLoggedIn = errors.New("not logged in, run `ledgersync login`")

type Config struct {
	DataDir             string        `json:"data_dir" mapstructure:"data_dir"`
	RelayURL            string        `json:"relay_url" mapstructure:"relay_url"`
	Email               string        `json:"email" mapstructure:"email"`
	DeviceName          string        `json:"device_name,omitempty" mapstructure:"device_name"`
	AccessToken         string        `json:"access_token,omitempty" mapstructure:"access_token"`
	RefreshToken        string        `json:"refresh_token,omitempty" mapstructure:"refresh_token"`
	SyncInterval        time.Duration `json:"sync_interval,omitempty" mapstructure:"sync_interval"`
	PendingSyncInterval time.Duration `json:"pending_sync_interval,omitempty" mapstructure:"pending_sync_interval"`
	PollInterval        time.Duration `json:"poll_interval,omitempty" mapstructure:"poll_interval"`
	Path                string        `json:"-" mapstructure:"-"`
}

// Validate normalizes paths and the email, fills interval defaults and
// rejects anything the client cannot run with.
func (c *Config) Validate() error {
	var err error

	if c.DataDir == "" {
		c.DataDir = DefaultDataDir
	}
	if c.DataDir, err = utils.ResolvePath(c.DataDir); err != nil {
		return fmt.Errorf("data dir: %w", err)
	}

	if c.Path == "" {
		c.Path = DefaultConfigPath
	}
	if c.Path, err = utils.ResolvePath(c.Path); err != nil {
		return fmt.Errorf("config path: %w", err)
	}

	if c.RelayURL == "" {
		c.RelayURL = DefaultRelayURL
	}
	if err := utils.ValidateURL(c.RelayURL); err != nil {
		return fmt.Errorf("relay url: %w", err)
	}

	if c.Email != "" {
		c.Email = utils.NormalizeEmail(c.Email)
		if err := utils.ValidateEmail(c.Email); err != nil {
			return err
		}
	}

	if c.SyncInterval <= 0 {
		c.SyncInterval = DefaultSyncInterval
	}
	if c.PendingSyncInterval <= 0 {
		c.PendingSyncInterval = DefaultPendingSyncInterval
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	return nil
}

// RequireLogin fails when the config holds no relay credentials.
func (c *Config) RequireLogin() error {
	if c.Email == "" || c.RefreshToken == "" {
		return ErrNotLoggedIn
	}
	return nil
}

// HasCredentials reports whether any relay token is present.
func (c *Config) HasCredentials() bool {
	return c.AccessToken != "" || c.RefreshToken != ""
}

func (c *Config) Save() error {
	if c.Path == "" {
		return errors.New("config path is empty")
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	if err := utils.EnsureParent(c.Path); err != nil {
		return err
	}
	// holds tokens
	return utils.WriteFileAtomic(c.Path, data, 0o600)
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.Path = path
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("path", c.Path),
		slog.String("data_dir", c.DataDir),
		slog.String("relay_url", c.RelayURL),
		slog.String("email", c.Email),
		slog.String("device_name", c.DeviceName),
		slog.String("refresh_token", utils.MaskSecret(c.RefreshToken)),
		slog.Duration("sync_interval", c.SyncInterval),
	)
}
