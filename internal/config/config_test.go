package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	// Run from a directory with no config file so defaults apply.
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "sqlite", cfg.Cache.Backend)
	assert.Equal(t, 7, cfg.Cache.VolatileDays)
	assert.Equal(t, 30, cfg.Cache.LongLivedDays)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "sonar-pro", cfg.Perplexity.Model)
	assert.Equal(t, 20, cfg.Enrich.ProviderTimeoutSecs)
	assert.Equal(t, 90, cfg.Enrich.AttemptTimeoutSecs)
	assert.Equal(t, 0.05, cfg.Meter.BaseCostUSD)
	assert.Equal(t, 0.10, cfg.Meter.PremiumCostUSD)
}

func TestLoad_FileOverrides(t *testing.T) {
	dir := t.TempDir()
	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/nb
cache:
  backend: redis
  redis_addr: localhost:6379
log:
  level: debug
  format: console
meter:
  base_cost_usd: 0.02
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/nb", cfg.Store.DatabaseURL)
	assert.Equal(t, "redis", cfg.Cache.Backend)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 0.02, cfg.Meter.BaseCostUSD)
	// Untouched keys keep defaults.
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestInitLogger_BadLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "nope", Format: "json"})
	assert.Error(t, err)
}

func TestInitLogger_Console(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	assert.NoError(t, err)
}
