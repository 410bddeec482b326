package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/dreamtide/veod/errors"
)

// Load reads the veod configuration using Viper.
//
// Precedence, lowest to highest: built-in defaults, ~/.veod/veod.toml,
// ./veod.toml, then VEOD_* environment variables.
func Load() (*Config, error) {
	v := NewViper()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}

	if err := Validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")
	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "failed to read config file %s", configPath)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal config from %s", configPath)
	}

	if err := Validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// NewViper builds a Viper instance with defaults, config file search paths,
// and environment binding applied.
func NewViper() *viper.Viper {
	v := viper.New()

	v.SetEnvPrefix("VEOD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	v.SetConfigName("veod")
	v.SetConfigType("toml")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".veod"))
	}
	v.AddConfigPath(".")

	// Missing config file is fine; defaults and env vars carry the day
	_ = v.ReadInConfig()

	return v
}

// Validate checks configuration invariants that would otherwise surface as
// confusing runtime behavior.
func Validate(c *Config) error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.Newf("server.port %d out of range", c.Server.Port)
	}
	if c.Poll.IntervalSeconds <= 0 {
		return errors.New("poll.interval_seconds must be positive")
	}
	if c.Poll.MaxAttempts <= 0 {
		return errors.New("poll.max_attempts must be positive")
	}
	if c.Poll.ProgressIntervalMs <= 0 {
		return errors.New("poll.progress_interval_ms must be positive")
	}
	if c.Poll.AssumedDurationSeconds <= 0 {
		return errors.New("poll.assumed_duration_seconds must be positive")
	}
	if c.Backend.RequestTimeoutSeconds <= 0 {
		return errors.New("backend.request_timeout_seconds must be positive")
	}
	if c.Credits.CostPerVideo < 0 {
		return errors.New("credits.cost_per_video must not be negative")
	}
	return nil
}
