// Package poolconfig loads the scheduling knobs recognized by the
// Registry: initial/max/min pools per node, capacity, the maintenance
// loop intervals, readiness tuning, and cluster-mode seed nodes.
package poolconfig

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// Config is the explicit configuration record the Registry is
// constructed with. PoolArgs is the single opaque pass-through field
// forwarded verbatim to the underlying client library for forward
// compatibility (per the Design Notes' re-architecture of the source's
// open mapping).
type Config struct {
	InitialPoolsPerNode int                    `yaml:"initial_pools_per_node"`
	MaxPoolsPerNode     int                    `yaml:"max_pools_per_node"`
	MinPoolsPerNode     int                    `yaml:"min_pools_per_node"`
	MaxConnectionSize   int                    `yaml:"max_connection_size"`
	HealthCheckInterval time.Duration          `yaml:"health_check_interval"`
	CleanupInterval     time.Duration          `yaml:"cleanup_interval"`
	MaxIdleTime         time.Duration          `yaml:"max_idle_time"`
	ReadinessTimeout    time.Duration          `yaml:"readiness_timeout"`
	ReadinessStep       time.Duration          `yaml:"readiness_step"`
	ReadinessMaxRetries int                    `yaml:"readiness_max_retries"`
	UseCluster          bool                   `yaml:"use_cluster"`
	StartupNodes        []string               `yaml:"startup_nodes"`
	PoolArgs            map[string]interface{} `yaml:"pool_args"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Default returns a Config with the defaults named in spec §6.
func Default() Config {
	return Config{
		InitialPoolsPerNode: 1,
		MaxPoolsPerNode:     4,
		MinPoolsPerNode:     1,
		MaxConnectionSize:   10,
		HealthCheckInterval: 30 * time.Second,
		CleanupInterval:     1 * time.Minute,
		MaxIdleTime:         10 * time.Minute,
		ReadinessTimeout:    10 * time.Second,
		ReadinessStep:       250 * time.Millisecond,
		ReadinessMaxRetries: 20,
		LogLevel:            "info",
		LogFormat:           "text",
	}
}

// Load reads configFile (if non-empty) as YAML over the defaults, then
// applies POOLMGR_* environment overrides, then validates the result.
func Load(configFile string) (Config, error) {
	cfg := Default()

	if configFile != "" {
		data, err := os.ReadFile(configFile)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvironmentOverrides(&cfg)

	if err := Validate(cfg); err != nil {
		return Config{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate enforces the invariants named in spec §6: initial >= 1,
// max >= initial, min <= initial.
func Validate(cfg Config) error {
	if cfg.InitialPoolsPerNode < 1 {
		return fmt.Errorf("initial_pools_per_node must be >= 1, got %d", cfg.InitialPoolsPerNode)
	}
	if cfg.MaxPoolsPerNode < cfg.InitialPoolsPerNode {
		return fmt.Errorf("max_pools_per_node (%d) must be >= initial_pools_per_node (%d)", cfg.MaxPoolsPerNode, cfg.InitialPoolsPerNode)
	}
	if cfg.MinPoolsPerNode > cfg.InitialPoolsPerNode {
		return fmt.Errorf("min_pools_per_node (%d) must be <= initial_pools_per_node (%d)", cfg.MinPoolsPerNode, cfg.InitialPoolsPerNode)
	}
	if cfg.MinPoolsPerNode < 0 {
		return fmt.Errorf("min_pools_per_node must be >= 0, got %d", cfg.MinPoolsPerNode)
	}
	if cfg.MaxConnectionSize < 1 {
		return fmt.Errorf("max_connection_size must be >= 1, got %d", cfg.MaxConnectionSize)
	}
	if cfg.UseCluster && len(cfg.StartupNodes) == 0 {
		return fmt.Errorf("use_cluster requires at least one entry in startup_nodes")
	}
	return nil
}

func applyEnvironmentOverrides(cfg *Config) {
	cfg.InitialPoolsPerNode = getEnvInt("POOLMGR_INITIAL_POOLS_PER_NODE", cfg.InitialPoolsPerNode)
	cfg.MaxPoolsPerNode = getEnvInt("POOLMGR_MAX_POOLS_PER_NODE", cfg.MaxPoolsPerNode)
	cfg.MinPoolsPerNode = getEnvInt("POOLMGR_MIN_POOLS_PER_NODE", cfg.MinPoolsPerNode)
	cfg.MaxConnectionSize = getEnvInt("POOLMGR_MAX_CONNECTION_SIZE", cfg.MaxConnectionSize)
	cfg.HealthCheckInterval = getEnvDuration("POOLMGR_HEALTH_CHECK_INTERVAL", cfg.HealthCheckInterval)
	cfg.CleanupInterval = getEnvDuration("POOLMGR_CLEANUP_INTERVAL", cfg.CleanupInterval)
	cfg.MaxIdleTime = getEnvDuration("POOLMGR_MAX_IDLE_TIME", cfg.MaxIdleTime)
	cfg.ReadinessTimeout = getEnvDuration("POOLMGR_READINESS_TIMEOUT", cfg.ReadinessTimeout)
	cfg.ReadinessStep = getEnvDuration("POOLMGR_READINESS_STEP", cfg.ReadinessStep)
	cfg.ReadinessMaxRetries = getEnvInt("POOLMGR_READINESS_MAX_RETRIES", cfg.ReadinessMaxRetries)
	cfg.UseCluster = getEnvBool("POOLMGR_USE_CLUSTER", cfg.UseCluster)
	cfg.StartupNodes = getEnvStringSlice("POOLMGR_STARTUP_NODES", cfg.StartupNodes)
	cfg.LogLevel = getEnvString("POOLMGR_LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnvString("POOLMGR_LOG_FORMAT", cfg.LogFormat)
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}
