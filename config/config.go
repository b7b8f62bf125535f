package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// APIKeyEnv overrides server.api_key when set.
const APIKeyEnv = "ACCUMULATOR_API_KEY"

type Config struct {
	Server      ServerConfig      `toml:"server"`
	Store       StoreConfig       `toml:"store"`
	Accumulator AccumulatorConfig `toml:"accumulator"`
	Log         LogConfig         `toml:"log"`
}

type ServerConfig struct {
	Address        string `toml:"address"`
	MetricsAddress string `toml:"metrics_address"`
	APIKey         string `toml:"api_key"`
	MaxBodyBytes   int64  `toml:"max_body_bytes"`
}

type StoreConfig struct {
	// Backend is one of "memory", "redis", "leveldb" or "none".
	Backend    string `toml:"backend"`
	RedisURL   string `toml:"redis_url"`
	LevelDBDir string `toml:"leveldb_dir"`
	TTLSeconds int    `toml:"ttl_seconds"`
}

type AccumulatorConfig struct {
	// DuplicatePolicy is "reject" or "ignore".
	DuplicatePolicy string `toml:"duplicate_policy"`
	MaxHandles      int    `toml:"max_handles"`
}

type LogConfig struct {
	Level string `toml:"level"`
	JSON  bool   `toml:"json"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{
			Address:        "0.0.0.0:3011",
			MetricsAddress: "0.0.0.0:9998",
			MaxBodyBytes:   1 << 16,
		},
		Store: StoreConfig{
			Backend: "memory",
		},
		Accumulator: AccumulatorConfig{
			DuplicatePolicy: "reject",
			MaxHandles:      1024,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// ReadConfig loads file over the defaults. Keys missing from the file keep
// their default value.
func ReadConfig(file string) (Config, error) {
	cfg := Default()
	configFileData, err := os.ReadFile(file)
	if err != nil {
		return cfg, err
	}
	err = toml.Unmarshal(configFileData, &cfg)
	if err != nil {
		return cfg, fmt.Errorf("parse %s: %w", file, err)
	}
	return cfg, nil
}

// ApplyEnv applies environment overrides.
func (cfg *Config) ApplyEnv() {
	if key, ok := os.LookupEnv(APIKeyEnv); ok {
		cfg.Server.APIKey = key
	}
}

func (cfg *Config) Validate() error {
	var errs []error
	if cfg.Server.Address == "" {
		errs = append(errs, errors.New("server.address is required"))
	}
	if cfg.Server.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("server.max_body_bytes must be positive"))
	}
	switch cfg.Store.Backend {
	case "none", "memory":
	case "redis":
		if cfg.Store.RedisURL == "" {
			errs = append(errs, errors.New("store.redis_url is required for the redis backend"))
		}
	case "leveldb":
		if cfg.Store.LevelDBDir == "" {
			errs = append(errs, errors.New("store.leveldb_dir is required for the leveldb backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store.backend %q", cfg.Store.Backend))
	}
	if cfg.Store.TTLSeconds < 0 {
		errs = append(errs, errors.New("store.ttl_seconds must not be negative"))
	}
	switch cfg.Accumulator.DuplicatePolicy {
	case "", "reject", "ignore":
	default:
		errs = append(errs, fmt.Errorf("unknown accumulator.duplicate_policy %q", cfg.Accumulator.DuplicatePolicy))
	}
	if cfg.Accumulator.MaxHandles <= 0 {
		errs = append(errs, errors.New("accumulator.max_handles must be positive"))
	}
	return errors.Join(errs...)
}

func (cfg *StoreConfig) TTL() time.Duration {
	return time.Duration(cfg.TTLSeconds) * time.Second
}
