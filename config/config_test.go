package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("PLAYGROUND_TEST", "")
	require.NoError(t, err)

	assert.Equal(t, "playground", cfg.Service.Name)
	assert.Equal(t, 8090, cfg.Server.Port)
	assert.Equal(t, "unix:///var/run/docker.sock", cfg.Docker.Socket)
	assert.Equal(t, "memory", cfg.Operations.Backend)
	assert.Equal(t, 150, cfg.Poller.MaxAttempts)
	assert.False(t, cfg.Events.Enabled)
}

func TestLoadConfig_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
server:
  port: 9999
  debug: true
operations:
  backend: redis
  redis_url: redis://localhost:6400/1
poller:
  interval: 500ms
  max_attempts: 10
`)
	require.NoError(t, os.WriteFile(path, content, 0644))

	cfg, err := LoadConfig("PLAYGROUND_TEST", path)
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.True(t, cfg.Server.Debug)
	assert.Equal(t, "redis", cfg.Operations.Backend)
	assert.Equal(t, "redis://localhost:6400/1", cfg.Operations.RedisURL)
	assert.Equal(t, 10, cfg.Poller.MaxAttempts)
}

func TestValidateConfig_InvalidPort(t *testing.T) {
	cfg, err := LoadConfig("PLAYGROUND_TEST", "")
	require.NoError(t, err)

	cfg.Server.Port = 0
	err = ValidateConfig(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid server port")
}

func TestValidateConfig_InvalidBackend(t *testing.T) {
	cfg, err := LoadConfig("PLAYGROUND_TEST", "")
	require.NoError(t, err)

	cfg.Operations.Backend = "couchdb"
	err = ValidateConfig(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid operations backend")
}

func TestValidateConfig_RedisURLRequired(t *testing.T) {
	cfg, err := LoadConfig("PLAYGROUND_TEST", "")
	require.NoError(t, err)

	cfg.Operations.Backend = "redis"
	cfg.Operations.RedisURL = ""
	err = ValidateConfig(cfg)
	require.Error(t, err)
}
