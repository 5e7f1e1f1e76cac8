// Package config loads the cairn configuration from a TOML file with
// viper, applying defaults and environment overrides, and can watch
// the file for changes.
package config

// Config represents the core cairn configuration.
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Snapshot  SnapshotConfig  `mapstructure:"snapshot"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

// DatabaseConfig configures the SQLite database.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// ArchiveConfig configures archival and retention.
// Values <= 0 fall back to: threshold 30 days, short-term retention
// 90 days, long-term retention 730 days.
type ArchiveConfig struct {
	CompressionThresholdDays int `mapstructure:"compression_threshold_days"` // age before archival (default: 30)
	ShortTermRetentionDays   int `mapstructure:"short_term_retention_days"`  // snapshot retention (default: 90)
	LongTermRetentionDays    int `mapstructure:"long_term_retention_days"`   // archive retention (default: 730)
	MaxGroupsPerRun          int `mapstructure:"max_groups_per_run"`         // bound per archival pass (default: 256)
	CompressionLevel         int `mapstructure:"compression_level"`          // gzip level, 0 = best compression
}

// CacheConfig configures the query-result cache.
type CacheConfig struct {
	TTLSeconds int `mapstructure:"ttl_seconds"` // entry lifetime (default: 3600)
}

// SnapshotConfig configures the snapshotter.
type SnapshotConfig struct {
	BatchSize int `mapstructure:"batch_size"` // entities read per page (default: 500)
}

// SchedulerConfig configures the background job intervals.
type SchedulerConfig struct {
	TickerIntervalSeconds   int `mapstructure:"ticker_interval_seconds"`   // due-job check cadence (default: 1)
	ArchivalIntervalSeconds int `mapstructure:"archival_interval_seconds"` // archival pass (default: 3600)
	SnapshotIntervalSeconds int `mapstructure:"snapshot_interval_seconds"` // scheduled snapshot (default: 86400)
	SweepIntervalSeconds    int `mapstructure:"sweep_interval_seconds"`    // cache sweep (default: 300)
	CleanupIntervalSeconds  int `mapstructure:"cleanup_interval_seconds"`  // retention cleanup (default: 86400)
}

// GetDatabasePath returns the configured database path.
func (c *Config) GetDatabasePath() string {
	if c.Database.Path == "" {
		return "cairn.db"
	}
	return c.Database.Path
}

// GetArchiveConfig returns the archive configuration with defaults
// applied for zero values.
func (c *Config) GetArchiveConfig() ArchiveConfig {
	cfg := c.Archive
	if cfg.CompressionThresholdDays <= 0 {
		cfg.CompressionThresholdDays = 30
	}
	if cfg.ShortTermRetentionDays <= 0 {
		cfg.ShortTermRetentionDays = 90
	}
	if cfg.LongTermRetentionDays <= 0 {
		cfg.LongTermRetentionDays = 730
	}
	if cfg.MaxGroupsPerRun <= 0 {
		cfg.MaxGroupsPerRun = 256
	}
	return cfg
}

// GetCacheConfig returns the cache configuration with defaults applied.
func (c *Config) GetCacheConfig() CacheConfig {
	cfg := c.Cache
	if cfg.TTLSeconds <= 0 {
		cfg.TTLSeconds = 3600
	}
	return cfg
}

// GetSnapshotConfig returns the snapshot configuration with defaults applied.
func (c *Config) GetSnapshotConfig() SnapshotConfig {
	cfg := c.Snapshot
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	return cfg
}

// GetSchedulerConfig returns the scheduler configuration with defaults applied.
func (c *Config) GetSchedulerConfig() SchedulerConfig {
	cfg := c.Scheduler
	if cfg.TickerIntervalSeconds <= 0 {
		cfg.TickerIntervalSeconds = 1
	}
	if cfg.ArchivalIntervalSeconds <= 0 {
		cfg.ArchivalIntervalSeconds = 3600
	}
	if cfg.SnapshotIntervalSeconds <= 0 {
		cfg.SnapshotIntervalSeconds = 86400
	}
	if cfg.SweepIntervalSeconds <= 0 {
		cfg.SweepIntervalSeconds = 300
	}
	if cfg.CleanupIntervalSeconds <= 0 {
		cfg.CleanupIntervalSeconds = 86400
	}
	return cfg
}
