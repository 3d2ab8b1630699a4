package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saiset-co/sai-request/types"
)

const sampleConfig = `
name: admin-console
version: 1.0.0
client:
  base_url: http://api.local
  timeout: 5s
  retry_count: 2
guard:
  login_path: /signin
`

func TestLoadFromBytesAppliesDefaults(t *testing.T) {
	loader, err := NewLoader()
	require.NoError(t, err)

	cfg, raw, err := loader.LoadFromBytes([]byte(sampleConfig))
	require.NoError(t, err)
	require.NotNil(t, raw)

	assert.Equal(t, "admin-console", cfg.Name)
	assert.Equal(t, 5*time.Second, cfg.Client.Timeout)
	assert.Equal(t, 2, cfg.Client.RetryCount)
	assert.Equal(t, types.DefaultRetryDelay, cfg.Client.RetryDelay)
	assert.Equal(t, types.DefaultCacheTime, cfg.Client.CacheTime)
	assert.Equal(t, "/signin", cfg.Guard.LoginPath)
	assert.Equal(t, "/403", cfg.Guard.ForbiddenPath)
	assert.Equal(t, "memory", cfg.Storage.Type)
}

func TestLoadFromBytesValidates(t *testing.T) {
	loader, err := NewLoader()
	require.NoError(t, err)

	_, _, err = loader.LoadFromBytes([]byte("version: 1.0.0\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrConfigValidateFailed)

	_, _, err = loader.LoadFromBytes([]byte("name: [unterminated"))
	assert.ErrorIs(t, err, types.ErrConfigParseFailed)
}

func TestConfigurationManagerFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o600))

	cm, err := NewConfigurationManager(context.Background(), path)
	require.NoError(t, err)

	require.NoError(t, cm.Start())
	assert.True(t, cm.IsRunning())

	assert.Equal(t, "http://api.local", cm.GetValue("client.base_url", ""))
	assert.Equal(t, "fallback", cm.GetValue("client.missing", "fallback"))

	var guard types.GuardConfig
	require.NoError(t, cm.GetAs("guard", &guard))
	assert.Equal(t, "/signin", guard.LoginPath)

	paths, err := cm.GetAllPaths()
	require.NoError(t, err)
	assert.Contains(t, paths, "client.retry_count")

	require.NoError(t, cm.Stop())
	assert.False(t, cm.IsRunning())
	assert.Nil(t, cm.GetConfig())
}

func TestConfigurationManagerMissingFile(t *testing.T) {
	_, err := NewConfigurationManager(context.Background(), filepath.Join(t.TempDir(), "absent.yml"))
	assert.ErrorIs(t, err, types.ErrConfigInvalidPath)
}

func TestStaticManagerFillsSections(t *testing.T) {
	cm, err := NewStaticManager(context.Background(), &types.ServiceConfig{
		Name:    "static",
		Version: "0.1.0",
		Client:  &types.ClientConfig{RetryCount: 1},
	})
	require.NoError(t, err)

	cfg := cm.GetConfig()
	assert.Equal(t, 1, cfg.Client.RetryCount)
	assert.Equal(t, "/login", cfg.Guard.LoginPath)
	assert.Equal(t, "memory", cfg.Cache.Type)
}
