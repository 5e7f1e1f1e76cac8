package config

import "github.com/spf13/viper"

// SetDefaults configures default values for all configuration options.
func SetDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.path", "cairn.db")

	// Archive defaults
	v.SetDefault("archive.compression_threshold_days", 30) // age before change records are archived
	v.SetDefault("archive.short_term_retention_days", 90)  // snapshot retention window
	v.SetDefault("archive.long_term_retention_days", 730)  // archive retention window
	v.SetDefault("archive.max_groups_per_run", 256)
	v.SetDefault("archive.compression_level", 0) // 0 = best compression

	// Cache defaults
	v.SetDefault("cache.ttl_seconds", 3600)

	// Snapshot defaults
	v.SetDefault("snapshot.batch_size", 500)

	// Scheduler defaults
	v.SetDefault("scheduler.ticker_interval_seconds", 1)
	v.SetDefault("scheduler.archival_interval_seconds", 3600)
	v.SetDefault("scheduler.snapshot_interval_seconds", 86400)
	v.SetDefault("scheduler.sweep_interval_seconds", 300)
	v.SetDefault("scheduler.cleanup_interval_seconds", 86400)
}

// BindEnvVars explicitly binds configuration to environment variables.
func BindEnvVars(v *viper.Viper) {
	v.BindEnv("database.path", "CAIRN_DATABASE_PATH")
	v.BindEnv("archive.compression_threshold_days", "CAIRN_COMPRESSION_THRESHOLD_DAYS")
	v.BindEnv("cache.ttl_seconds", "CAIRN_CACHE_TTL_SECONDS")
}
