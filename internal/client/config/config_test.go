package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)

	assert.Empty(t, cfg.ServerURL)
	assert.NotEmpty(t, cfg.DataDir)
	assert.Equal(t, time.Hour, cfg.SyncInterval.Std())
	assert.NotEmpty(t, cfg.Device.Name)
	assert.Equal(t, "HiveCache CLI", cfg.Device.ClientName)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)

	cfg.ServerURL = "https://hive.example.com"
	cfg.SyncInterval = Duration(15 * time.Minute)
	cfg.Auth = Credentials{
		Email:        "user@example.com",
		RefreshToken: "rt-secret",
		SessionID:    "ses-1",
	}
	require.NoError(t, cfg.Save())

	// Token-bearing file must not be world readable.
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://hive.example.com", loaded.ServerURL)
	assert.Equal(t, 15*time.Minute, loaded.SyncInterval.Std())
	assert.Equal(t, "rt-secret", loaded.Auth.RefreshToken)
	assert.Equal(t, "ses-1", loaded.Auth.SessionID)
}

func TestValidate_RequiresServerURL(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)

	assert.Error(t, cfg.Validate())

	cfg.ServerURL = "https://hive.example.com"
	assert.NoError(t, cfg.Validate())
}
