package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOverridesDefaults(t *testing.T) {
	t.Setenv("ODDSBOARD_KEY", "secret-key")
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen_addr: ":9090"
api_key: "abc"
log_level: debug
fetch:
  default_timeout_seconds: 45
engine:
  max_concurrent_requests: 8
sources:
  oddsboard:
    enabled: true
    base_url: "https://feed.example"
    api_key: "${ODDSBOARD_KEY}"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.ListenAddr)
	assert.Equal(t, "abc", cfg.APIKey)
	assert.Equal(t, 45*time.Second, cfg.Fetch.Timeout())
	assert.Equal(t, 8, cfg.Engine.MaxConcurrent)
	assert.Equal(t, "secret-key", cfg.Sources.Oddsboard.APIKey, "env vars expand into the config")

	// Untouched values keep their defaults.
	assert.Equal(t, 100, cfg.Fetch.PoolConnections)
	assert.Equal(t, 0.7, cfg.Analyzer.TrustworthyRatioMin)
	assert.Equal(t, "jsonl", cfg.Store.Backend)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidateStoreBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
store:
  backend: postgres
`), 0o644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "store.dsn")
}
