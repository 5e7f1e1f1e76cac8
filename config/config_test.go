package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZeroValueDefaults(t *testing.T) {
	var cfg Config

	archive := cfg.GetArchiveConfig()
	assert.Equal(t, 30, archive.CompressionThresholdDays)
	assert.Equal(t, 90, archive.ShortTermRetentionDays)
	assert.Equal(t, 730, archive.LongTermRetentionDays)
	assert.Equal(t, 256, archive.MaxGroupsPerRun)

	assert.Equal(t, 3600, cfg.GetCacheConfig().TTLSeconds)
	assert.Equal(t, 500, cfg.GetSnapshotConfig().BatchSize)
	assert.Equal(t, "cairn.db", cfg.GetDatabasePath())

	sched := cfg.GetSchedulerConfig()
	assert.Equal(t, 1, sched.TickerIntervalSeconds)
	assert.Equal(t, 3600, sched.ArchivalIntervalSeconds)
	assert.Equal(t, 86400, sched.SnapshotIntervalSeconds)
}

func TestExplicitValuesWin(t *testing.T) {
	var cfg Config
	cfg.Archive.CompressionThresholdDays = 7
	cfg.Cache.TTLSeconds = 60

	assert.Equal(t, 7, cfg.GetArchiveConfig().CompressionThresholdDays)
	assert.Equal(t, 60, cfg.GetCacheConfig().TTLSeconds)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cairn.toml")
	content := `
[database]
path = "/tmp/cairn-test.db"

[archive]
compression_threshold_days = 14
compression_level = 6

[cache]
ttl_seconds = 120
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/cairn-test.db", cfg.GetDatabasePath())
	assert.Equal(t, 14, cfg.GetArchiveConfig().CompressionThresholdDays)
	assert.Equal(t, 6, cfg.GetArchiveConfig().CompressionLevel)
	assert.Equal(t, 120, cfg.GetCacheConfig().TTLSeconds)

	// Sections absent from the file still get defaults.
	assert.Equal(t, 90, cfg.GetArchiveConfig().ShortTermRetentionDays)
	assert.Equal(t, 500, cfg.GetSnapshotConfig().BatchSize)
}

func TestLoadFromFileMissing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)
}
