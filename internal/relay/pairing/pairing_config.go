package pairing

import (
	"fmt"
	"log/slog"
	"time"
)

type Config struct {
	SessionTTL time.Duration `mapstructure:"session_ttl"`
	CodeLength int           `mapstructure:"code_length"`
	// ClaimRate is a ulule formatted rate, e.g. "10-M"
	ClaimRate string `mapstructure:"claim_rate"`
}

func (c *Config) Validate() error {
	if c.SessionTTL <= 0 {
		return fmt.Errorf("pairing `session_ttl` must be positive")
	}
	if c.CodeLength < 6 {
		return fmt.Errorf("pairing `code_length` must be at least 6")
	}
	if c.ClaimRate == "" {
		return fmt.Errorf("pairing `claim_rate` is required")
	}
	return nil
}

func (c *Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Duration("session_ttl", c.SessionTTL),
		slog.Int("code_length", c.CodeLength),
		slog.String("claim_rate", c.ClaimRate),
	)
}
