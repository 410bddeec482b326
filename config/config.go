// Package config manages veod configuration: defaults, the veod.toml file,
// and VEOD_* environment overrides, loaded through Viper.
package config

import "time"

// Config represents the veod daemon configuration
type Config struct {
	Database DatabaseConfig `mapstructure:"database" toml:"database"`
	Server   ServerConfig   `mapstructure:"server" toml:"server"`
	Backend  BackendConfig  `mapstructure:"backend" toml:"backend"`
	Poll     PollConfig     `mapstructure:"poll" toml:"poll"`
	Media    MediaConfig    `mapstructure:"media" toml:"media"`
	Credits  CreditsConfig  `mapstructure:"credits" toml:"credits"`
}

// DatabaseConfig configures the SQLite database
type DatabaseConfig struct {
	Path string `mapstructure:"path" toml:"path"`
}

// ServerConfig configures the veod HTTP/WebSocket server
type ServerConfig struct {
	Port           int      `mapstructure:"port" toml:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins" toml:"allowed_origins"`
}

// BackendConfig configures the remote video-synthesis backend.
//
// BaseURL may be left empty and resolved at runtime from BootstrapURL;
// submissions fail fast until one of the two yields a target.
type BackendConfig struct {
	BaseURL               string `mapstructure:"base_url" toml:"base_url"`
	BootstrapURL          string `mapstructure:"bootstrap_url" toml:"bootstrap_url"`
	Model                 string `mapstructure:"model" toml:"model"`
	StorageURI            string `mapstructure:"storage_uri" toml:"storage_uri"`
	RequestTimeoutSeconds int    `mapstructure:"request_timeout_seconds" toml:"request_timeout_seconds"`
	SubmitsPerMinute      int    `mapstructure:"submits_per_minute" toml:"submits_per_minute"`
}

// RequestTimeout returns the per-call HTTP timeout
func (b BackendConfig) RequestTimeout() time.Duration {
	return time.Duration(b.RequestTimeoutSeconds) * time.Second
}

// PollConfig configures the polling engine and progress estimator
type PollConfig struct {
	IntervalSeconds        int `mapstructure:"interval_seconds" toml:"interval_seconds"`
	MaxAttempts            int `mapstructure:"max_attempts" toml:"max_attempts"`
	ProgressIntervalMs     int `mapstructure:"progress_interval_ms" toml:"progress_interval_ms"`
	AssumedDurationSeconds int `mapstructure:"assumed_duration_seconds" toml:"assumed_duration_seconds"`
}

// Interval returns the status-poll cadence
func (p PollConfig) Interval() time.Duration {
	return time.Duration(p.IntervalSeconds) * time.Second
}

// ProgressInterval returns the progress estimator tick cadence
func (p PollConfig) ProgressInterval() time.Duration {
	return time.Duration(p.ProgressIntervalMs) * time.Millisecond
}

// AssumedDuration returns the assumed total generation time used for
// time-based progress estimation
func (p PollConfig) AssumedDuration() time.Duration {
	return time.Duration(p.AssumedDurationSeconds) * time.Second
}

// MediaConfig configures local artifact storage
type MediaConfig struct {
	Dir string `mapstructure:"dir" toml:"dir"`
}

// CreditsConfig configures the local credit ledger
type CreditsConfig struct {
	InitialBalance int `mapstructure:"initial_balance" toml:"initial_balance"`
	CostPerVideo   int `mapstructure:"cost_per_video" toml:"cost_per_video"`
}
