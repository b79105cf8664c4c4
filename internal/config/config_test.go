package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "https://api.ebird.org/v2", cfg.EBird.BaseURL)
	assert.InDelta(t, 5.0, cfg.EBird.RateLimit, 0.001)
	assert.Equal(t, 15, cfg.EBird.CacheTTLMinutes)
	assert.Equal(t, "https://mobile-rarity-mapper.pages.dev", cfg.Boundary.PagesBaseURL)
	assert.Equal(t, 24, cfg.Boundary.CacheTTLHours)
	assert.Equal(t, "data/county_index.json", cfg.Spatial.IndexPath)
	assert.Equal(t, "data/rarity_codes.yaml", cfg.Rarity.TablePath)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
log:
  level: debug
  format: console
server:
  port: 9090
ebird:
  api_key: test-key
  cache_ttl_minutes: 5
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "test-key", cfg.EBird.APIKey)
	assert.Equal(t, 5, cfg.EBird.CacheTTLMinutes)
	// Defaults still apply for unset values
	assert.Equal(t, 24, cfg.Boundary.CacheTTLHours)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
log:
  level: debug
ebird:
  api_key: file-key
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("RARITY_EBIRD_API_KEY", "env-key")
	t.Setenv("RARITY_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "env-key", cfg.EBird.APIKey)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("RARITY_SERVER_PORT", "3000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func validDefaults() *Config {
	cfg := &Config{}
	cfg.Server.Port = 8080
	cfg.EBird.APIKey = "test-key"
	cfg.EBird.RateLimit = 5
	cfg.Spatial.IndexPath = "data/county_index.json"
	return cfg
}

func TestValidateServe_AllPresent(t *testing.T) {
	assert.NoError(t, validDefaults().Validate("serve"))
}

func TestValidateServe_MissingFields(t *testing.T) {
	cfg := validDefaults()
	cfg.EBird.APIKey = ""
	cfg.Spatial.IndexPath = ""

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "ebird.api_key is required")
	assert.Contains(t, err.Error(), "spatial.index_path is required")
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateQuery(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("query"))

	cfg.EBird.APIKey = ""
	err := cfg.Validate("query")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "ebird.api_key is required")
}

func TestValidateIndexbuild_NoCredentialsNeeded(t *testing.T) {
	cfg := &Config{}
	assert.NoError(t, cfg.Validate("indexbuild"))
}

func TestValidateUnknownMode(t *testing.T) {
	err := validDefaults().Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestValidateNegativeBounds(t *testing.T) {
	cfg := validDefaults()
	cfg.EBird.RateLimit = -1
	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "ebird.rate_limit must be >= 0")

	cfg = validDefaults()
	cfg.Boundary.CacheTTLHours = -1
	err = cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "boundary.cache_ttl_hours")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}
