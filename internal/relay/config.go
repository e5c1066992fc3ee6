package relay

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/ledgersync/ledgersync/internal/relay/auth"
	"github.com/ledgersync/ledgersync/internal/relay/email"
	"github.com/ledgersync/ledgersync/internal/relay/pairing"
	"github.com/ledgersync/ledgersync/internal/relay/snapshot"
)

const DefaultAddr = "127.0.0.1:8080"

type Config struct {
	HTTP     HTTPConfig      `mapstructure:"http"`
	Auth     auth.Config     `mapstructure:"auth"`
	Email    email.Config    `mapstructure:"email"`
	Pairing  pairing.Config  `mapstructure:"pairing"`
	Snapshot snapshot.Config `mapstructure:"snapshot"`
	Events   EventsConfig    `mapstructure:"events"`
	DBPath   string          `mapstructure:"db_path"`
	LogDir   string          `mapstructure:"log_dir"`
}

func (c *Config) Validate() error {
	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http: %w", err)
	}
	if err := c.Auth.Validate(); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	if err := c.Email.Validate(); err != nil {
		return fmt.Errorf("email: %w", err)
	}
	if err := c.Pairing.Validate(); err != nil {
		return fmt.Errorf("pairing: %w", err)
	}
	if err := c.Snapshot.Validate(); err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	if err := c.Events.Validate(); err != nil {
		return fmt.Errorf("events: %w", err)
	}
	if c.DBPath == "" {
		return fmt.Errorf("`db_path` is required")
	}
	return nil
}

func (c *Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Any("http", &c.HTTP),
		slog.Any("auth", &c.Auth),
		slog.Any("email", c.Email),
		slog.Any("pairing", &c.Pairing),
		slog.Any("snapshot", &c.Snapshot),
		slog.Any("events", &c.Events),
		slog.String("db_path", c.DBPath),
		slog.String("log_dir", c.LogDir),
	)
}

type HTTPConfig struct {
	Addr     string `mapstructure:"addr"`
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
	// OTPRate limits code requests per client IP, ulule format
	OTPRate string `mapstructure:"otp_rate"`
}

func (c *HTTPConfig) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("`addr` is required")
	}
	if (c.CertFile == "") != (c.KeyFile == "") {
		return fmt.Errorf("`cert_file` and `key_file` must be set together")
	}
	if c.OTPRate == "" {
		return fmt.Errorf("`otp_rate` is required")
	}
	return nil
}

func (c *HTTPConfig) TLS() bool {
	return c.CertFile != "" && c.KeyFile != ""
}

func (c *HTTPConfig) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("addr", c.Addr),
		slog.String("cert_file", c.CertFile),
		slog.String("key_file", c.KeyFile),
		slog.String("otp_rate", c.OTPRate),
	)
}

type EventsConfig struct {
	// RetainEvents is how many recent events GC always keeps per account.
	RetainEvents int64         `mapstructure:"retain_events"`
	GCInterval   time.Duration `mapstructure:"gc_interval"`
}

func (c *EventsConfig) Validate() error {
	if c.RetainEvents < 0 {
		return fmt.Errorf("`retain_events` must not be negative")
	}
	if c.GCInterval <= 0 {
		return fmt.Errorf("`gc_interval` must be positive")
	}
	return nil
}

func (c *EventsConfig) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("retain_events", c.RetainEvents),
		slog.Duration("gc_interval", c.GCInterval),
	)
}
