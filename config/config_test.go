package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamtide/veod/errors"
)

func defaultConfig(t *testing.T) *Config {
	t.Helper()
	v := NewViper()
	var cfg Config
	require.NoError(t, v.Unmarshal(&cfg))
	return &cfg
}

func TestDefaults(t *testing.T) {
	cfg := defaultConfig(t)

	assert.Equal(t, "veod.db", cfg.Database.Path)
	assert.Equal(t, 5080, cfg.Server.Port)
	assert.Equal(t, "veo-3.0-fast-generate-preview", cfg.Backend.Model)
	assert.Equal(t, 2, cfg.Poll.IntervalSeconds)
	assert.Equal(t, 150, cfg.Poll.MaxAttempts)
	assert.Equal(t, 500, cfg.Poll.ProgressIntervalMs)
	assert.Equal(t, 120, cfg.Poll.AssumedDurationSeconds)
	assert.Equal(t, 3, cfg.Credits.InitialBalance)
	assert.Equal(t, 1, cfg.Credits.CostPerVideo)

	require.NoError(t, Validate(cfg))
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("VEOD_BACKEND_MODEL", "veo-custom")
	t.Setenv("VEOD_POLL_MAX_ATTEMPTS", "10")

	cfg := defaultConfig(t)
	assert.Equal(t, "veo-custom", cfg.Backend.Model)
	assert.Equal(t, 10, cfg.Poll.MaxAttempts)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"bad poll interval", func(c *Config) { c.Poll.IntervalSeconds = 0 }},
		{"bad max attempts", func(c *Config) { c.Poll.MaxAttempts = -1 }},
		{"bad progress interval", func(c *Config) { c.Poll.ProgressIntervalMs = 0 }},
		{"bad assumed duration", func(c *Config) { c.Poll.AssumedDurationSeconds = 0 }},
		{"bad request timeout", func(c *Config) { c.Backend.RequestTimeoutSeconds = 0 }},
		{"negative cost", func(c *Config) { c.Credits.CostPerVideo = -1 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := defaultConfig(t)
			tc.mutate(cfg)
			assert.Error(t, Validate(cfg))
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "veod.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[server]
port = 6000

[backend]
base_url = "http://backend.internal:9000"
`), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 6000, cfg.Server.Port)
	assert.Equal(t, "http://backend.internal:9000", cfg.Backend.BaseURL)
	// Unset values fall back to defaults
	assert.Equal(t, 150, cfg.Poll.MaxAttempts)
}

func TestWriteDefaultRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "veod.toml")

	require.NoError(t, WriteDefault(path))

	// The file round-trips through the loader
	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 5080, cfg.Server.Port)

	err = WriteDefault(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConflict))
}
