package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ledgersync/ledgersync/internal/relay"
	"github.com/ledgersync/ledgersync/internal/relay/snapshot"
	"github.com/ledgersync/ledgersync/internal/utils"
	"github.com/ledgersync/ledgersync/internal/version"
)

const envPrefix = "LEDGERSYNC_RELAY"

var rootCmd = &cobra.Command{
	Use:     "relay",
	Short:   "LedgerSync relay server",
	Version: version.Detailed(),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		cmd.SilenceUsage = true

		closeLog, err := setupLogger(cfg.LogDir)
		if err != nil {
			return err
		}
		defer closeLog()

		slog.Info("ledgersync relay", "version", version.Version, "revision", version.Revision, "build", version.BuildDate)
		slog.Info("relay config", "config", cfg)

		srv, err := relay.New(cmd.Context(), cfg)
		if err != nil {
			return err
		}

		defer slog.Info("Bye!")
		if err := srv.Start(cmd.Context()); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	addFlags(rootCmd)
}

func addFlags(cmd *cobra.Command) {
	cmd.Flags().SortFlags = false
	cmd.Flags().StringP("config", "f", "", "Path to the relay config file (yaml or json)")
	cmd.Flags().StringP("bind", "b", relay.DefaultAddr, "Address to bind the server")
	cmd.Flags().StringP("cert", "c", "", "Path to the TLS certificate file")
	cmd.Flags().StringP("key", "k", "", "Path to the TLS key file")
	cmd.Flags().StringP("db", "d", "", "Path to the relay database")
}

func main() {
	// a missing .env is fine
	_ = godotenv.Load()

	slog.SetDefault(slog.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level:      slog.LevelDebug,
		TimeFormat: time.RFC3339,
		NoColor:    !isatty.IsTerminal(os.Stdout.Fd()),
	})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// loadConfig merges defaults, the config file, LEDGERSYNC_RELAY_* env vars
// and flags, in increasing precedence.
func loadConfig(cmd *cobra.Command) (*relay.Config, error) {
	v := viper.New()
	setDefaults(v)

	if path, _ := cmd.Flags().GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config read %q: %w", path, err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, flag := range map[string]string{
		"http.addr":      "bind",
		"http.cert_file": "cert",
		"http.key_file":  "key",
		"db_path":        "db",
	} {
		if f := cmd.Flags().Lookup(flag); f != nil && f.Changed {
			v.Set(key, f.Value.String())
		}
	}

	cfg := &relay.Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config decode: %w", err)
	}
	if cfg.Snapshot.Backend != snapshot.BackendS3 {
		cfg.Snapshot.S3 = nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	home, _ := os.UserHomeDir()
	dataDir := filepath.Join(home, ".ledgersync-relay")

	v.SetDefault("http.addr", relay.DefaultAddr)
	v.SetDefault("http.cert_file", "")
	v.SetDefault("http.key_file", "")
	v.SetDefault("http.otp_rate", "5-M")

	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.token_issuer", "")
	v.SetDefault("auth.refresh_token_secret", "")
	v.SetDefault("auth.refresh_token_expiry", 30*24*time.Hour)
	v.SetDefault("auth.access_token_secret", "")
	v.SetDefault("auth.access_token_expiry", time.Hour)
	v.SetDefault("auth.email_otp_length", 8)
	v.SetDefault("auth.email_otp_expiry", 5*time.Minute)

	v.SetDefault("email.enabled", false)
	v.SetDefault("email.sendgrid_api_key", "")
	v.SetDefault("email.from_email", "")
	v.SetDefault("email.from_name", "LedgerSync")

	v.SetDefault("pairing.session_ttl", 10*time.Minute)
	v.SetDefault("pairing.code_length", 6)
	v.SetDefault("pairing.claim_rate", "10-M")

	v.SetDefault("snapshot.backend", "local")
	v.SetDefault("snapshot.dir", filepath.Join(dataDir, "snapshots"))
	v.SetDefault("snapshot.keep", 3)
	v.SetDefault("snapshot.max_size_bytes", 64<<20)

	// declared so LEDGERSYNC_RELAY_SNAPSHOT_S3_* env vars bind
	v.SetDefault("snapshot.s3.bucket_name", "")
	v.SetDefault("snapshot.s3.region", "")
	v.SetDefault("snapshot.s3.access_key", "")
	v.SetDefault("snapshot.s3.secret_key", "")
	v.SetDefault("snapshot.s3.endpoint", "")
	v.SetDefault("snapshot.s3.use_accelerate", false)

	v.SetDefault("events.retain_events", 10000)
	v.SetDefault("events.gc_interval", time.Hour)

	v.SetDefault("db_path", filepath.Join(dataDir, "relay.db"))
	v.SetDefault("log_dir", "")
}

// setupLogger adds a file sink next to stdout when logDir is set.
func setupLogger(logDir string) (func(), error) {
	if logDir == "" {
		return func() {}, nil
	}
	if err := utils.EnsureDir(logDir); err != nil {
		return nil, fmt.Errorf("log dir: %w", err)
	}
	file, err := os.OpenFile(filepath.Join(logDir, "relay.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	interceptor := utils.NewLogInterceptor(file)
	fileHandler := slog.NewTextHandler(interceptor, &slog.HandlerOptions{
		Level: slog.LevelDebug,
		// the interceptor stamps the time
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			return a
		},
	})
	slog.SetDefault(slog.New(utils.NewMultiLogHandler(slog.Default().Handler(), fileHandler)))

	return func() {
		interceptor.Close()
		file.Close()
	}, nil
}
