package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate_NormalizesAndDefaults(t *testing.T) {
	tmp := t.TempDir()
	cfg := &Config{
		DataDir:  tmp,
		Email:    " Alice@Example.com ",
		RelayURL: "http://127.0.0.1:8080",
		Path:     filepath.Join(tmp, "config.json"),
	}

	require.NoError(t, cfg.Validate())
	assert.True(t, filepath.IsAbs(cfg.DataDir))
	assert.True(t, filepath.IsAbs(cfg.Path))
	assert.Equal(t, "alice@example.com", cfg.Email)
	assert.Equal(t, DefaultSyncInterval, cfg.SyncInterval)
	assert.Equal(t, DefaultPendingSyncInterval, cfg.PendingSyncInterval)
	assert.Equal(t, DefaultPollInterval, cfg.PollInterval)
}

func TestConfig_Validate_ErrorsOnInvalidInputs(t *testing.T) {
	tmp := t.TempDir()

	t.Run("bad email", func(t *testing.T) {
		cfg := &Config{DataDir: tmp, Email: "not-an-email", RelayURL: "http://127.0.0.1:8080"}
		assert.Error(t, cfg.Validate())
	})

	t.Run("bad relay url", func(t *testing.T) {
		cfg := &Config{DataDir: tmp, Email: "alice@example.com", RelayURL: "ftp://bad.example.com"}
		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "relay url")
	})
}

func TestConfig_SaveLoad(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "nested", "config.json")
	cfg := &Config{
		DataDir:      filepath.Join(tmp, "data"),
		Email:        "alice@example.com",
		RelayURL:     "http://127.0.0.1:8080",
		RefreshToken: "refresh-abcdef",
		SyncInterval: time.Minute,
		Path:         path,
	}
	require.NoError(t, cfg.Validate())
	require.NoError(t, cfg.Save())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Email, loaded.Email)
	assert.Equal(t, cfg.RefreshToken, loaded.RefreshToken)
	assert.Equal(t, time.Minute, loaded.SyncInterval)
	assert.Equal(t, path, loaded.Path)
	assert.NoError(t, loaded.RequireLogin())
}

func TestConfig_RequireLogin(t *testing.T) {
	cfg := &Config{Email: "alice@example.com"}
	assert.ErrorIs(t, cfg.RequireLogin(), ErrNotLoggedIn)
}

func TestConfig_LogValueMasksTokens(t *testing.T) {
	cfg := &Config{RefreshToken: "supersecretvalue"}
	assert.NotContains(t, cfg.LogValue().String(), "supersecretvalue")
}
