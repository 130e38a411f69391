package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	def := DefaultConfig()
	assert.Equal(t, def.Dedup, cfg.Dedup)
	assert.Equal(t, def.Fallback, cfg.Fallback)
	assert.Equal(t, def.Storage.QuotaBytes, cfg.Storage.QuotaBytes)
	assert.False(t, cfg.Storage.LegacyMirror)
	assert.False(t, cfg.IsSignedIn())
	assert.False(t, cfg.RemoteEnabled())
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	yaml := `
storage:
  quota_bytes: 2048
  legacy_mirror: true
remote:
  dsn: memory://
  timeout: 3s
account:
  uid: alice
dedup:
  window: 750ms
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, int64(2048), cfg.Storage.QuotaBytes)
	assert.True(t, cfg.Storage.LegacyMirror)
	assert.Equal(t, "memory://", cfg.Remote.DSN)
	assert.Equal(t, 3*time.Second, cfg.Remote.Timeout)
	assert.Equal(t, "alice", cfg.Account.UID)
	assert.Equal(t, 750*time.Millisecond, cfg.Dedup.Window)
	// unset keys keep their defaults
	assert.Equal(t, 650*time.Millisecond, cfg.Dedup.Busy)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("account:\n  uid: alice\n"), 0644))
	t.Setenv("SHELF_ACCOUNT_UID", "bob")
	t.Setenv("SHELF_FALLBACK_ATTEMPTS", "5")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "bob", cfg.Account.UID)
	assert.Equal(t, 5, cfg.Fallback.Attempts)
}

func TestSaveConfigRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Remote.DSN = "https://sync.example.com"
	cfg.Remote.Token = "secret"
	cfg.Dedup.Window = time.Second
	cfg.Metadata.TMDbAPIKey = "k"

	require.NoError(t, SaveConfig(cfg, dir))
	require.FileExists(t, filepath.Join(dir, "config.yaml"))

	loaded, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, cfg.Remote, loaded.Remote)
	assert.Equal(t, time.Second, loaded.Dedup.Window)
	assert.Equal(t, "k", loaded.Metadata.TMDbAPIKey)
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("fallback:\n  attempts: 0\n"), 0644))

	_, err := LoadConfig(dir)
	assert.ErrorContains(t, err, "fallback.attempts")
}

func TestLoadConfigRejectsMalformedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("storage: [\n"), 0644))

	_, err := LoadConfig(dir)
	assert.ErrorContains(t, err, "error reading config file")
}
