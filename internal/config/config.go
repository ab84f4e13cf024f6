// Package config loads the vecraft daemon configuration from a YAML file
// and VECRAFT_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/vecraft/wal"
)

// Environment variables that override file values.
const (
	EnvListenAddr     = "VECRAFT_LISTEN_ADDR"
	EnvEnableWAL      = "VECRAFT_ENABLE_WAL"
	EnvWALPath        = "VECRAFT_WAL_PATH"
	EnvMetricsEnabled = "VECRAFT_METRICS_ENABLED"
	EnvMetricsAddr    = "VECRAFT_METRICS_ADDR"
	EnvLogLevel       = "VECRAFT_LOG_LEVEL"
)

// ErrInvalidConfig is wrapped by every validation error.
var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	ListenAddr string        `yaml:"listen_addr"`
	Log        LogConfig     `yaml:"log"`
	WAL        WALConfig     `yaml:"wal"`
	Metrics    MetricsConfig `yaml:"metrics"`
	Query      QueryConfig   `yaml:"query"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type WALConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
	// Durability is "sync" or "async".
	Durability string `yaml:"durability"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

type QueryConfig struct {
	Timeout          time.Duration `yaml:"timeout"`
	MaxConcurrent    int64         `yaml:"max_concurrent"`
	QueriesPerSecond float64       `yaml:"queries_per_second"`
	Burst            int           `yaml:"burst"`
	MemoryLimitBytes int64         `yaml:"memory_limit_bytes"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		ListenAddr: "127.0.0.1:50051",
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		WAL: WALConfig{
			Enabled:    true,
			Path:       "data/wal.log",
			Durability: "sync",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    "127.0.0.1:9090",
		},
	}
}

// Load reads the file at path over the defaults, applies environment
// overrides and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from the environment. lookup is usually
// os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvListenAddr); ok && v != "" {
		c.ListenAddr = v
	}
	if v, ok := lookup(EnvEnableWAL); ok && v != "" {
		b, err := ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidConfig, EnvEnableWAL, err)
		}
		c.WAL.Enabled = b
	}
	if v, ok := lookup(EnvWALPath); ok && v != "" {
		c.WAL.Path = v
	}
	if v, ok := lookup(EnvMetricsEnabled); ok && v != "" {
		b, err := ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidConfig, EnvMetricsEnabled, err)
		}
		c.Metrics.Enabled = b
	}
	if v, ok := lookup(EnvMetricsAddr); ok && v != "" {
		c.Metrics.Addr = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Log.Level = v
	}
	return nil
}

// Validate checks field values.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("%w: listen_addr is empty", ErrInvalidConfig)
	}
	if c.WAL.Enabled && c.WAL.Path == "" {
		return fmt.Errorf("%w: wal.path is empty", ErrInvalidConfig)
	}
	if _, err := c.WALDurability(); err != nil {
		return err
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return fmt.Errorf("%w: metrics.addr is empty", ErrInvalidConfig)
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log.format must be text or json, got %q", ErrInvalidConfig, c.Log.Format)
	}
	if c.Query.Timeout < 0 {
		return fmt.Errorf("%w: query.timeout is negative", ErrInvalidConfig)
	}
	return nil
}

// WALDurability returns the parsed wal.durability value.
func (c *Config) WALDurability() (wal.Durability, error) {
	switch strings.ToLower(c.WAL.Durability) {
	case "", "sync":
		return wal.DurabilitySync, nil
	case "async":
		return wal.DurabilityAsync, nil
	default:
		return 0, fmt.Errorf("%w: wal.durability must be sync or async, got %q", ErrInvalidConfig, c.WAL.Durability)
	}
}

// LogLevel returns the parsed log.level value.
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("%w: log.level: %w", ErrInvalidConfig, err)
	}
	return level, nil
}

// ParseBool accepts 1/true/yes/on and 0/false/no/off in any case.
func ParseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on", "y", "t":
		return true, nil
	case "0", "false", "no", "off", "n", "f":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean %s", strconv.Quote(s))
	}
}
