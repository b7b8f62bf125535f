package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "accumulator.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
}

func TestReadConfig(t *testing.T) {
	path := writeConfig(t, `
[server]
address = "127.0.0.1:4000"
api_key = "from-file"

[store]
backend = "redis"
redis_url = "redis://localhost:6379/3"
ttl_seconds = 90

[accumulator]
duplicate_policy = "ignore"
`)

	cfg, err := ReadConfig(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "127.0.0.1:4000", cfg.Server.Address)
	assert.Equal(t, "from-file", cfg.Server.APIKey)
	assert.Equal(t, "redis", cfg.Store.Backend)
	assert.Equal(t, 90*time.Second, cfg.Store.TTL())
	assert.Equal(t, "ignore", cfg.Accumulator.DuplicatePolicy)

	// untouched keys keep defaults
	assert.Equal(t, Default().Server.MetricsAddress, cfg.Server.MetricsAddress)
	assert.Equal(t, Default().Accumulator.MaxHandles, cfg.Accumulator.MaxHandles)
}

func TestReadConfigErrors(t *testing.T) {
	_, err := ReadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = ReadConfig(writeConfig(t, "[server\naddress = 1"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no address", func(c *Config) { c.Server.Address = "" }},
		{"unknown backend", func(c *Config) { c.Store.Backend = "etcd" }},
		{"redis without url", func(c *Config) { c.Store.Backend = "redis" }},
		{"leveldb without dir", func(c *Config) { c.Store.Backend = "leveldb" }},
		{"negative ttl", func(c *Config) { c.Store.TTLSeconds = -1 }},
		{"unknown policy", func(c *Config) { c.Accumulator.DuplicatePolicy = "merge" }},
		{"no handles", func(c *Config) { c.Accumulator.MaxHandles = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(APIKeyEnv, "from-env")
	cfg := Default()
	cfg.Server.APIKey = "from-file"
	cfg.ApplyEnv()
	assert.Equal(t, "from-env", cfg.Server.APIKey)
}
