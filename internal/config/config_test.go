package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_DSN", "postgres://u:p@localhost:5432/sync")
	t.Setenv("UPSTREAM_API_KEY", "smk-test")
}

func writeYAML(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_EnvDefaults(t *testing.T) {
	validEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://api.servicem8.com/api_1.0", cfg.Upstream.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Upstream.Timeout)
	assert.Equal(t, 3, cfg.Upstream.MaxRetries)
	assert.Equal(t, time.Second, cfg.Upstream.RetryBaseDelay)
	assert.Equal(t, 5*time.Minute, cfg.Upstream.CacheTTL)
	assert.Equal(t, 3, cfg.Webhook.MaxRetries)
	assert.True(t, cfg.Webhook.NotFoundTerminal)
	assert.Equal(t, 15*time.Minute, cfg.Reconciliation.IncrementalInterval)
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoad_YAMLWithEnvOverride(t *testing.T) {
	validEnv(t)
	path := writeYAML(t, `
upstream:
  base_url: "https://upstream.example.test/api"
  api_key: "from-yaml"
  max_retries: 5
webhook:
  max_retries: 4
database:
  dsn: "postgres://yaml/sync"
`)
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("WEBHOOK_MAX_RETRIES", "6")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://upstream.example.test/api", cfg.Upstream.BaseURL)
	assert.Equal(t, 5, cfg.Upstream.MaxRetries)
	assert.Equal(t, 6, cfg.Webhook.MaxRetries)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	validEnv(t)
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "nope.yaml"))

	_, err := Load()
	require.Error(t, err)
}

func TestValidate_AuthExactlyOne(t *testing.T) {
	validEnv(t)
	t.Setenv("UPSTREAM_BEARER_TOKEN", "token")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly one of")
}

func TestValidate_NoAuth(t *testing.T) {
	t.Setenv("DATABASE_DSN", "postgres://u:p@localhost:5432/sync")

	_, err := Load()
	require.Error(t, err)
}

func TestValidate_BadValues(t *testing.T) {
	validEnv(t)
	t.Setenv("WEBHOOK_MAX_RETRIES", "0")
	t.Setenv("LOG_LEVEL", "verbose")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "webhook: max_retries")
	assert.Contains(t, err.Error(), "unknown log level")
}
