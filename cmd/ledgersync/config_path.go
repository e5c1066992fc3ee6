package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ledgersync/ledgersync/internal/client"
	"github.com/ledgersync/ledgersync/internal/client/config"
	"github.com/ledgersync/ledgersync/internal/utils"
)

const envPrefix = "LEDGERSYNC"

// resolveConfigPath determines which config file path to use, honoring (in order):
// 1) An explicitly set --config flag
// 2) LEDGERSYNC_CONFIG_PATH environment variable
// 3) Existing config files in common locations
// 4) The default path
func resolveConfigPath(cmd *cobra.Command) string {
	if cfgFlag := cmd.Flag("config"); cfgFlag != nil && cfgFlag.Changed {
		return cfgFlag.Value.String()
	}

	if envPath := os.Getenv(envPrefix + "_CONFIG_PATH"); envPath != "" {
		return envPath
	}

	home, _ := os.UserHomeDir()
	candidates := []string{
		config.DefaultConfigPath,
		filepath.Join(home, ".config", "ledgersync", "config.json"),
	}
	for _, candidate := range candidates {
		if utils.FileExists(candidate) {
			return candidate
		}
	}

	return config.DefaultConfigPath
}

// loadConfig reads the config file, then applies LEDGERSYNC_* env vars and
// the --relay flag where the command has one. A missing file is not an error.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := resolveConfigPath(cmd)

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.Is(err, os.ErrNotExist) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config read '%s': %w", path, err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	for _, key := range []string{"data_dir", "relay_url", "email", "device_name", "refresh_token",
		"sync_interval", "pending_sync_interval", "poll_interval"} {
		_ = v.BindEnv(key)
	}

	if f := cmd.Flags().Lookup("relay"); f != nil && f.Changed {
		v.Set("relay_url", f.Value.String())
	}
	if f := cmd.Flags().Lookup("datadir"); f != nil && f.Changed {
		v.Set("data_dir", f.Value.String())
	}

	cfg := &config.Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config decode: %w", err)
	}
	cfg.Path = path
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newClient opens the local client for a logged-in user.
func newClient(cmd *cobra.Command) (*client.Client, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if err := cfg.RequireLogin(); err != nil {
		return nil, err
	}
	cmd.SilenceUsage = true
	return client.New(cmd.Context(), cfg)
}
