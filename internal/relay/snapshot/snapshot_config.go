package snapshot

import (
	"fmt"
	"log/slog"

	"github.com/ledgersync/ledgersync/internal/utils"
)

const (
	BackendLocal = "local"
	BackendS3    = "s3"
)

type Config struct {
	Backend      string    `mapstructure:"backend"`
	Dir          string    `mapstructure:"dir"`
	Keep         int       `mapstructure:"keep"`
	MaxSizeBytes int64     `mapstructure:"max_size_bytes"`
	S3           *S3Config `mapstructure:"s3"`
}

func (c *Config) Validate() error {
	switch c.Backend {
	case BackendLocal:
		if c.Dir == "" {
			return fmt.Errorf("snapshot `dir` is required for the local backend")
		}
	case BackendS3:
		if c.S3 == nil {
			return fmt.Errorf("snapshot `s3` section is required for the s3 backend")
		}
		if err := c.S3.Validate(); err != nil {
			return fmt.Errorf("snapshot s3: %w", err)
		}
	default:
		return fmt.Errorf("unknown snapshot backend %q", c.Backend)
	}
	if c.Keep < 1 {
		return fmt.Errorf("snapshot `keep` must be at least 1")
	}
	if c.MaxSizeBytes <= 0 {
		return fmt.Errorf("snapshot `max_size_bytes` must be positive")
	}
	return nil
}

func (c *Config) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("backend", c.Backend),
		slog.String("dir", c.Dir),
		slog.Int("keep", c.Keep),
		slog.Int64("max_size_bytes", c.MaxSizeBytes),
	}
	if c.S3 != nil {
		attrs = append(attrs, slog.Any("s3", c.S3))
	}
	return slog.GroupValue(attrs...)
}

type S3Config struct {
	BucketName    string `mapstructure:"bucket_name"`
	Region        string `mapstructure:"region"`
	AccessKey     string `mapstructure:"access_key"`
	SecretKey     string `mapstructure:"secret_key"`
	Endpoint      string `mapstructure:"endpoint"`
	UseAccelerate bool   `mapstructure:"use_accelerate"`
}

func (c *S3Config) Validate() error {
	if c.BucketName == "" {
		return fmt.Errorf("bucket_name required")
	}
	if c.Region == "" {
		return fmt.Errorf("region required")
	}
	if c.AccessKey == "" {
		return fmt.Errorf("access_key required")
	}
	if c.SecretKey == "" {
		return fmt.Errorf("secret_key required")
	}
	if c.Endpoint != "" && !utils.IsValidURL(c.Endpoint) {
		return fmt.Errorf("invalid endpoint URL %q", c.Endpoint)
	}
	return nil
}

func (c *S3Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("bucket_name", c.BucketName),
		slog.String("region", c.Region),
		slog.String("access_key", utils.MaskSecret(c.AccessKey)),
		slog.String("secret_key", utils.MaskSecret(c.SecretKey)),
		slog.String("endpoint", c.Endpoint),
		slog.Bool("use_accelerate", c.UseAccelerate),
	)
}
