package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "relay"}
	addFlags(cmd)
	require.NoError(t, cmd.Flags().Parse(args))
	return cmd
}

func TestLoadConfigDefaults(t *testing.T) {
	cmd := newTestCmd(t, "--db", filepath.Join(t.TempDir(), "relay.db"))

	cfg, err := loadConfig(cmd)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8080", cfg.HTTP.Addr)
	assert.Equal(t, "5-M", cfg.HTTP.OTPRate)
	assert.False(t, cfg.Auth.Enabled)
	assert.Equal(t, 8, cfg.Auth.EmailOTPLength)
	assert.Equal(t, 10*time.Minute, cfg.Pairing.SessionTTL)
	assert.Equal(t, 6, cfg.Pairing.CodeLength)
	assert.Equal(t, "local", cfg.Snapshot.Backend)
	assert.Equal(t, 3, cfg.Snapshot.Keep)
	assert.Nil(t, cfg.Snapshot.S3)
	assert.Equal(t, int64(10000), cfg.Events.RetainEvents)
	assert.Equal(t, time.Hour, cfg.Events.GCInterval)
}

func TestLoadConfigEnv(t *testing.T) {
	t.Setenv("LEDGERSYNC_RELAY_HTTP_ADDR", ":9090")
	t.Setenv("LEDGERSYNC_RELAY_AUTH_ENABLED", "true")
	t.Setenv("LEDGERSYNC_RELAY_AUTH_TOKEN_ISSUER", "https://relay.example.com")
	t.Setenv("LEDGERSYNC_RELAY_AUTH_REFRESH_TOKEN_SECRET", "refresh")
	t.Setenv("LEDGERSYNC_RELAY_AUTH_ACCESS_TOKEN_SECRET", "access")
	t.Setenv("LEDGERSYNC_RELAY_AUTH_ACCESS_TOKEN_EXPIRY", "15m")
	t.Setenv("LEDGERSYNC_RELAY_SNAPSHOT_BACKEND", "s3")
	t.Setenv("LEDGERSYNC_RELAY_SNAPSHOT_S3_BUCKET_NAME", "ledgers")
	t.Setenv("LEDGERSYNC_RELAY_SNAPSHOT_S3_REGION", "eu-west-1")
	t.Setenv("LEDGERSYNC_RELAY_SNAPSHOT_S3_ACCESS_KEY", "ak")
	t.Setenv("LEDGERSYNC_RELAY_SNAPSHOT_S3_SECRET_KEY", "sk")
	t.Setenv("LEDGERSYNC_RELAY_DB_PATH", filepath.Join(t.TempDir(), "relay.db"))

	cfg, err := loadConfig(newTestCmd(t))
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.True(t, cfg.Auth.Enabled)
	assert.Equal(t, "https://relay.example.com", cfg.Auth.TokenIssuer)
	assert.Equal(t, 15*time.Minute, cfg.Auth.AccessTokenExpiry)
	require.NotNil(t, cfg.Snapshot.S3)
	assert.Equal(t, "ledgers", cfg.Snapshot.S3.BucketName)
	assert.Equal(t, "eu-west-1", cfg.Snapshot.S3.Region)
}

func TestLoadConfigYAMLWithFlagOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "relay.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http:
  addr: 0.0.0.0:8443
  otp_rate: 20-M
pairing:
  session_ttl: 2m
  code_length: 8
snapshot:
  keep: 5
events:
  retain_events: 50
db_path: `+filepath.Join(dir, "relay.db")+`
`), 0o644))

	cfg, err := loadConfig(newTestCmd(t, "--config", path, "--bind", "127.0.0.1:9999"))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9999", cfg.HTTP.Addr)
	assert.Equal(t, "20-M", cfg.HTTP.OTPRate)
	assert.Equal(t, 2*time.Minute, cfg.Pairing.SessionTTL)
	assert.Equal(t, 8, cfg.Pairing.CodeLength)
	assert.Equal(t, 5, cfg.Snapshot.Keep)
	assert.Equal(t, int64(50), cfg.Events.RetainEvents)
}

func TestLoadConfigRejectsBrokenAuth(t *testing.T) {
	t.Setenv("LEDGERSYNC_RELAY_AUTH_ENABLED", "true")
	t.Setenv("LEDGERSYNC_RELAY_AUTH_TOKEN_ISSUER", "https://relay.example.com")
	t.Setenv("LEDGERSYNC_RELAY_AUTH_REFRESH_TOKEN_SECRET", "same")
	t.Setenv("LEDGERSYNC_RELAY_AUTH_ACCESS_TOKEN_SECRET", "same")

	_, err := loadConfig(newTestCmd(t))
	assert.Error(t, err)
}
