package config

import "github.com/spf13/viper"

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.path", "veod.db")

	// Server defaults
	v.SetDefault("server.port", 5080)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:5080"})

	// Backend defaults
	v.SetDefault("backend.base_url", "")
	v.SetDefault("backend.bootstrap_url", "")
	v.SetDefault("backend.model", "veo-3.0-fast-generate-preview")
	v.SetDefault("backend.storage_uri", "")
	v.SetDefault("backend.request_timeout_seconds", 60) // per-call; nested inside the attempt budget
	v.SetDefault("backend.submits_per_minute", 10)

	// Poll defaults: 150 attempts at 2s is the ~5 minute attempt budget
	v.SetDefault("poll.interval_seconds", 2)
	v.SetDefault("poll.max_attempts", 150)
	v.SetDefault("poll.progress_interval_ms", 500)
	v.SetDefault("poll.assumed_duration_seconds", 120)

	// Media defaults
	v.SetDefault("media.dir", "media")

	// Credits defaults
	v.SetDefault("credits.initial_balance", 3)
	v.SetDefault("credits.cost_per_video", 1)
}
