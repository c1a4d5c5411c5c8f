// Package config loads run configuration from YAML, applies defaults on
// zero values, and validates the tuning envelope.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/quantyard/trendrank/internal/oracle"
	"github.com/quantyard/trendrank/internal/retry"
)

// Config is the full run configuration.
type Config struct {
	Params  oracle.Params `yaml:"params"`
	Oracle  OracleConfig  `yaml:"oracle"`
	Engine  EngineConfig  `yaml:"engine"`
	Cache   CacheConfig   `yaml:"cache"`
	Store   StoreConfig   `yaml:"store"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// OracleConfig configures the HTTP oracle binding.
type OracleConfig struct {
	BaseURL          string  `yaml:"base_url"`
	Token            string  `yaml:"token"`
	Proxy            string  `yaml:"proxy"`
	RequestTimeoutMS int     `yaml:"request_timeout_ms"`
	RateLimitRPS     float64 `yaml:"rate_limit_rps"`
	RateLimitBurst   int     `yaml:"rate_limit_burst"`
}

// EngineConfig carries the rank-reconstruction tuning knobs.
type EngineConfig struct {
	BucketCount     int     `yaml:"bucket_count"`
	GroupWidth      int     `yaml:"group_width"`
	RefineThreshold float64 `yaml:"refine_threshold"`
	Retries         int     `yaml:"retries"`
	BackoffMS       int     `yaml:"backoff_ms"`
}

// CacheConfig selects the query cache backend: a YAML snapshot file by
// default, Redis when an address is set.
type CacheConfig struct {
	Path          string `yaml:"path"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
}

// StoreConfig optionally persists run results to Postgres.
type StoreConfig struct {
	DSN string `yaml:"dsn"`
}

// MetricsConfig optionally serves a Prometheus scrape endpoint.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the configuration used when no file is supplied.
func Default() Config {
	return Config{
		Params: oracle.Params{
			Timeframe: "all",
			Category:  16, // news
			Property:  "news",
		},
		Engine: EngineConfig{
			BucketCount:     200,
			GroupWidth:      oracle.MaxGroupSize,
			RefineThreshold: 95,
			Retries:         3,
			BackoffMS:       2000,
		},
		Cache: CacheConfig{Path: "cache.yaml"},
	}
}

// Load reads the YAML file at path over the defaults. An empty path returns
// the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	def := Default()
	if c.Params.Timeframe == "" {
		c.Params.Timeframe = def.Params.Timeframe
	}
	if c.Engine.BucketCount == 0 {
		c.Engine.BucketCount = def.Engine.BucketCount
	}
	if c.Engine.GroupWidth == 0 {
		c.Engine.GroupWidth = def.Engine.GroupWidth
	}
	if c.Engine.RefineThreshold == 0 {
		c.Engine.RefineThreshold = def.Engine.RefineThreshold
	}
	if c.Engine.BackoffMS == 0 {
		c.Engine.BackoffMS = def.Engine.BackoffMS
	}
	if c.Cache.Path == "" && c.Cache.RedisAddr == "" {
		c.Cache.Path = def.Cache.Path
	}
}

// Validate rejects out-of-envelope tuning.
func (c *Config) Validate() error {
	if c.Engine.GroupWidth < 2 || c.Engine.GroupWidth > oracle.MaxGroupSize {
		return fmt.Errorf("config: group_width %d out of range [2,%d]", c.Engine.GroupWidth, oracle.MaxGroupSize)
	}
	if c.Engine.BucketCount < 2 {
		return fmt.Errorf("config: bucket_count %d, need at least 2", c.Engine.BucketCount)
	}
	if c.Engine.RefineThreshold <= 0 || c.Engine.RefineThreshold > 100 {
		return fmt.Errorf("config: refine_threshold %.1f out of range (0,100]", c.Engine.RefineThreshold)
	}
	if c.Engine.Retries < 0 || c.Engine.Retries > retry.MaxRetries {
		return fmt.Errorf("config: retries %d out of range [0,%d]", c.Engine.Retries, retry.MaxRetries)
	}
	return nil
}
