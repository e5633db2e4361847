package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "config.yaml", `
provider:
  api_key: test-key
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.App.Env)
	assert.Equal(t, "info", cfg.App.LogLevel)
	assert.Equal(t, ":8087", cfg.App.HTTPAddr)
	assert.Equal(t, "polygon", cfg.Provider.Name)
	assert.Equal(t, "test-key", cfg.Provider.APIKey)
	assert.Equal(t, 30, cfg.Provider.TimeoutSeconds)
	assert.Equal(t, 5, cfg.Provider.RequestsPerMinute)
	assert.True(t, cfg.Provider.Adjusted)
	assert.Equal(t, "AAPL", cfg.Provider.CanarySymbol)
	assert.Equal(t, "1d", cfg.Ingestion.Granularity)
	assert.Equal(t, 365, cfg.Ingestion.LookbackDays)
	assert.True(t, cfg.Ingestion.Incremental)
	assert.True(t, cfg.Ingestion.DelistingDetection)
	assert.Equal(t, 7, cfg.Ingestion.MaxGapDays)
	assert.Equal(t, 30, cfg.Ingestion.MaxBackfillDays)
	assert.Equal(t, "data/marketsync.db", cfg.Database.Path)
	assert.Equal(t, "24h", cfg.Schedule.Interval)
	assert.Equal(t, 3600, cfg.Schedule.OffsetSeconds)
}

func TestLoadKeepsExplicitZeroValues(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "config.yaml", `
provider:
  requests_per_minute: 0
ingestion:
  incremental: false
  delisting_detection: false
  max_gap_days: 0
schedule:
  offset_seconds: 0
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Zero(t, cfg.Provider.RequestsPerMinute, "explicit zero must survive defaulting")
	assert.False(t, cfg.Ingestion.Incremental)
	assert.False(t, cfg.Ingestion.DelistingDetection)
	assert.Zero(t, cfg.Ingestion.MaxGapDays)
	assert.Zero(t, cfg.Schedule.OffsetSeconds)
}

func TestLoadMergesIncludes(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "base.yaml", `
app:
  log_level: debug
provider:
  name: binance
`)
	path := writeConfig(t, dir, "config.yaml", `
include:
  - base.yaml
provider:
  name: polygon
  api_key: k
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	// The including file wins on conflicts, the included file fills gaps.
	assert.Equal(t, "polygon", cfg.Provider.Name)
	assert.Equal(t, "debug", cfg.App.LogLevel)
}

func TestLoadRejectsIncludeCycle(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "a.yaml", "include: [b.yaml]\n")
	path := writeConfig(t, dir, "b.yaml", "include: [a.yaml]\n")

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadExpandsEnvironment(t *testing.T) {
	t.Setenv("MARKETSYNC_TEST_KEY", "secret-from-env")
	dir := t.TempDir()
	path := writeConfig(t, dir, "config.yaml", `
provider:
  api_key: ${MARKETSYNC_TEST_KEY}
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "secret-from-env", cfg.Provider.APIKey)
}

func TestLoadValidation(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"bad provider", "provider:\n  name: alpaca\n"},
		{"bad granularity", "ingestion:\n  granularity: daily\n"},
		{"negative rpm", "provider:\n  requests_per_minute: -1\n"},
		{"bad interval", "schedule:\n  interval: nightly\n"},
		{"zero lookback", "ingestion:\n  lookback_days: 0\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			path := writeConfig(t, dir, "config.yaml", tc.content)
			_, err := Load(path)
			require.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
