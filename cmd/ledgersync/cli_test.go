package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgersync/ledgersync/internal/client/config"
	"github.com/ledgersync/ledgersync/internal/client/engine"
	"github.com/ledgersync/ledgersync/internal/client/trust"
	"github.com/ledgersync/ledgersync/internal/version"
)

var ansiRE = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func stripANSI(s string) string {
	return ansiRE.ReplaceAllString(s, "")
}

func newTestCmd() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.PersistentFlags().StringP("config", "c", config.DefaultConfigPath, "path to config file")
	cmd.Flags().StringP("relay", "r", config.DefaultRelayURL, "relay url")
	return cmd
}

func TestResolveConfigPathFlagBeatsEnv(t *testing.T) {
	cmd := newTestCmd()
	t.Setenv("LEDGERSYNC_CONFIG_PATH", "/tmp/env/config.json")
	require.NoError(t, cmd.PersistentFlags().Set("config", "/tmp/flag/config.json"))

	assert.Equal(t, "/tmp/flag/config.json", resolveConfigPath(cmd))
}

func TestResolveConfigPathUsesEnvWhenNoFlag(t *testing.T) {
	cmd := newTestCmd()
	t.Setenv("LEDGERSYNC_CONFIG_PATH", "/tmp/env/config.json")

	assert.Equal(t, "/tmp/env/config.json", resolveConfigPath(cmd))
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("LEDGERSYNC_CONFIG_PATH", filepath.Join(dir, "config.json"))
	t.Setenv("LEDGERSYNC_DATA_DIR", filepath.Join(dir, "data"))

	cfg, err := loadConfig(newTestCmd())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "config.json"), cfg.Path)
	assert.Equal(t, filepath.Join(dir, "data"), cfg.DataDir)
	assert.Equal(t, config.DefaultRelayURL, cfg.RelayURL)
	assert.ErrorIs(t, cfg.RequireLogin(), config.ErrNotLoggedIn)
}

func TestLoadConfigFileEnvAndFlag(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"data_dir": "`+filepath.Join(dir, "data")+`",
		"relay_url": "https://relay.one.example",
		"email": "Alice@Example.com",
		"refresh_token": "rt"
	}`), 0o600))
	t.Setenv("LEDGERSYNC_CONFIG_PATH", path)
	t.Setenv("LEDGERSYNC_DEVICE_NAME", "work laptop")

	cfg, err := loadConfig(newTestCmd())
	require.NoError(t, err)
	assert.Equal(t, "https://relay.one.example", cfg.RelayURL)
	assert.Equal(t, "alice@example.com", cfg.Email)
	assert.Equal(t, "work laptop", cfg.DeviceName)
	assert.NoError(t, cfg.RequireLogin())

	cmd := newTestCmd()
	require.NoError(t, cmd.Flags().Set("relay", "https://relay.two.example"))
	cfg, err = loadConfig(cmd)
	require.NoError(t, err)
	assert.Equal(t, "https://relay.two.example", cfg.RelayURL)
}

func TestVersionCommand(t *testing.T) {
	cmd := &cobra.Command{Use: "ledgersync"}
	cmd.AddCommand(newVersionCmd())

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	require.NoError(t, cmd.Execute())

	assert.Equal(t, version.DetailedWithApp(), strings.TrimSpace(out.String()))
}

func TestResetRequiresForce(t *testing.T) {
	cmd := &cobra.Command{Use: "ledgersync"}
	cmd.AddCommand(newResetCmd())
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"reset"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--force")
}

func TestIsValidLoginCode(t *testing.T) {
	assert.True(t, isValidLoginCode("AB12CD34"))
	assert.True(t, isValidLoginCode("123456"))
	assert.False(t, isValidLoginCode("12345"))
	assert.False(t, isValidLoginCode("ab12cd34"))
	assert.False(t, isValidLoginCode("AB12-CD34"))
}

func TestConfirm(t *testing.T) {
	var out bytes.Buffer

	ok, err := confirm(strings.NewReader("y\n"), &out, "Match?")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Contains(t, out.String(), "Match? [y/N]")

	ok, err = confirm(strings.NewReader("\n"), &out, "Match?")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, _ = confirm(strings.NewReader(""), &out, "Match?")
	assert.False(t, ok)
}

func TestPrintStatus(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	pushed := now.Add(-3 * time.Minute)

	var out bytes.Buffer
	printStatus(&out, &engine.Status{
		State:           trust.StateReady,
		DeviceID:        "dev-1",
		KeyVersion:      2,
		Cursor:          12345,
		PendingEvents:   4,
		LastPushAt:      &pushed,
		LastCycleStatus: engine.StatusOK,
		LastError:       "relay unavailable",
	}, now)

	got := stripANSI(out.String())
	assert.Contains(t, got, "READY")
	assert.Contains(t, got, "12,345")
	assert.Contains(t, got, "4 events")
	assert.Contains(t, got, "3 minutes ago")
	assert.Contains(t, got, "never")
	assert.Contains(t, got, "relay unavailable")
}

func testPairOpts(confirmSAS bool, canceled *bool) *PairTUIOpts {
	return &PairTUIOpts{
		Title:      "pair",
		SAS:        func() string { return "123456" },
		ConfirmSAS: confirmSAS,
		Wait:       func() error { return nil },
		Finish:     func() error { return nil },
		Cancel:     func() { *canceled = true },
	}
}

func TestPairTUIIssuerConfirmsSAS(t *testing.T) {
	var canceled bool
	var m tea.Model = newPairTUI(testPairOpts(true, &canceled))

	m, _ = m.Update(pairWaitedMsg{})
	assert.Equal(t, phaseConfirm, m.(pairTUI).phase)
	assert.Contains(t, stripANSI(m.View()), "123456")

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("y")})
	assert.Equal(t, phaseFinishing, m.(pairTUI).phase)
	require.NotNil(t, cmd)

	m, _ = m.Update(cmd())
	assert.Equal(t, phaseDone, m.(pairTUI).phase)
	assert.False(t, canceled)
}

func TestPairTUIRejectedSASCancels(t *testing.T) {
	var canceled bool
	var m tea.Model = newPairTUI(testPairOpts(true, &canceled))

	m, _ = m.Update(pairWaitedMsg{})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("n")})

	assert.Equal(t, phaseFailed, m.(pairTUI).phase)
	assert.ErrorIs(t, m.(pairTUI).err, errSASMismatch)
	assert.True(t, canceled)
}

func TestPairTUIClaimerFinishesWithoutPrompt(t *testing.T) {
	var canceled bool
	var m tea.Model = newPairTUI(testPairOpts(false, &canceled))

	m, cmd := m.Update(pairWaitedMsg{})
	assert.Equal(t, phaseFinishing, m.(pairTUI).phase)
	require.NotNil(t, cmd)

	m, _ = m.Update(pairFinishedMsg{err: errors.New("bundle rejected")})
	assert.Equal(t, phaseFailed, m.(pairTUI).phase)
	assert.Contains(t, stripANSI(m.View()), "bundle rejected")
}

func TestDevicesTable(t *testing.T) {
	out := ansiRE.ReplaceAllString(devicesTable([]trust.DeviceInfo{
		{DeviceID: "dev-a", Name: "laptop", Platform: "linux", Local: true, TrustState: "trusted", KeyVersion: 2},
		{DeviceID: "dev-b", Name: "phone", TrustState: "revoked", KeyVersion: 1},
	}), "")

	assert.Contains(t, out, "DEVICE")
	assert.Contains(t, out, "laptop (this device)")
	assert.Contains(t, out, "revoked")
	assert.NotContains(t, out, "phone (this device)")
}
