// Package config provides configuration management for the cache engine.
// It handles loading configuration from environment variables with sensible
// defaults and validates the configuration to ensure the engine starts safely.
//
// Environment Variables:
//
// Application Settings:
//   - PORT: Admin server port (default: 8080)
//   - LOG_LEVEL: Logging level (default: info)
//   - LOG_FILE: Log file path (default: stdout)
//
// Redis Configuration (the L2 backing store):
//   - REDIS_ADDRESS: Redis server address (required)
//   - REDIS_PASSWORD: Redis password
//   - REDIS_DB: Redis logical database number 0-15 (default: 0)
//   - REDIS_POOL_SIZE: Redis connection pool size (default: 10)
//   - CACHE_KEY_PREFIX: Namespace prefix for every key this engine writes
//     (default: hvac:cache)
//
// Cache Tiers:
//   - L1_MAX_SIZE_MB: In-process store memory budget in MB (default: 64)
//   - L1_MAX_ENTRIES: In-process store entry limit (default: 1000)
//   - L2_DEFAULT_TTL: Default TTL for L2 writes (default: 30m)
//   - L3_DEFAULT_TTL: Default TTL for L3-targeted writes (default: 24h)
//   - COMPRESSION_THRESHOLD_BYTES: Entries larger than this are flagged for
//     compression (default: 10240)
//
// Schedulers:
//   - CACHE_WARMUP_ENABLED: Run warmup tasks at startup (default: true)
//   - CACHE_INVALIDATION_STRATEGY: "time", "event" or "manual" (default: time)
//   - CLEANUP_INTERVAL: L1 expired-entry sweep interval (default: 60s)
//
// Example usage:
//
//	cfg := config.Load()
//	if err := cfg.Validate(); err != nil {
//		log.Fatalf("Invalid configuration: %v", err)
//	}
package config

import (
	"os"
	"strconv"
	"time"

	"hvac-cache/internal/common/errors"
)

// Config holds all configuration values for the cache engine.
// All fields correspond to environment variables that can be set to
// override the default values.
//
// The configuration is loaded using the Load() function and should be
// validated using the Validate() method before use.
type Config struct {
	// Application settings
	Port     string // Admin server port number
	LogLevel string // Logging level (debug, info, warn, error)

	// Redis configuration for the L2 shared store
	RedisAddress  string // Redis server address (host:port), required
	RedisPassword string // Redis authentication password
	RedisDB       string // Redis logical database number (0-15)
	RedisPoolSize string // Redis connection pool size
	KeyPrefix     string // Namespace prefix for all engine keys

	// Tier sizing and TTLs
	L1MaxSizeMB          string // L1 memory budget in MB
	L1MaxEntries         string // L1 entry count limit
	L2DefaultTTL         string // Default TTL for L2 writes (duration string)
	L3DefaultTTL         string // Default TTL for L3-targeted writes
	CompressionThreshold string // Compression eligibility threshold in bytes

	// Scheduler configuration
	WarmupEnabled        bool   // Whether startup warmup runs
	InvalidationStrategy string // "time", "event" or "manual"
	CleanupInterval      string // L1 sweep interval (duration string)
}

// Load creates a new Config instance with values loaded from environment variables.
// If an environment variable is not set, the corresponding default value is used.
//
// This function does not validate the configuration - call Validate() on the
// returned Config to ensure all required values are properly set and valid.
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		RedisAddress:  getEnv("REDIS_ADDRESS", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnv("REDIS_DB", "0"),
		RedisPoolSize: getEnv("REDIS_POOL_SIZE", "10"),
		KeyPrefix:     getEnv("CACHE_KEY_PREFIX", "hvac:cache"),

		L1MaxSizeMB:          getEnv("L1_MAX_SIZE_MB", "64"),
		L1MaxEntries:         getEnv("L1_MAX_ENTRIES", "1000"),
		L2DefaultTTL:         getEnv("L2_DEFAULT_TTL", "30m"),
		L3DefaultTTL:         getEnv("L3_DEFAULT_TTL", "24h"),
		CompressionThreshold: getEnv("COMPRESSION_THRESHOLD_BYTES", "10240"),

		WarmupEnabled:        getBoolEnv("CACHE_WARMUP_ENABLED", true),
		InvalidationStrategy: getEnv("CACHE_INVALIDATION_STRATEGY", "time"),
		CleanupInterval:      getEnv("CLEANUP_INTERVAL", "60s"),
	}
}

// getEnv retrieves an environment variable value or returns a default value if not set.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getBoolEnv retrieves a boolean environment variable value or returns a default value.
func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// Validate performs comprehensive validation on the configuration to ensure
// all required fields are present and all values are valid.
//
// The engine must refuse to initialize on validation failure rather than run
// in a degraded, silently-broken state, so callers should treat any returned
// error as fatal at startup.
func (c *Config) Validate() error {
	if c.RedisAddress == "" {
		return errors.ConfigError("REDIS_ADDRESS environment variable is required")
	}

	if port, err := strconv.Atoi(c.Port); err != nil || port < 1 || port > 65535 {
		return errors.ConfigError("PORT must be a valid port number between 1 and 65535")
	}

	if db, err := strconv.Atoi(c.RedisDB); err != nil || db < 0 || db > 15 {
		return errors.ConfigError("REDIS_DB must be a number between 0 and 15")
	}

	if poolSize, err := strconv.Atoi(c.RedisPoolSize); err != nil || poolSize < 1 {
		return errors.ConfigError("REDIS_POOL_SIZE must be a positive number")
	}

	if sizeMB, err := strconv.Atoi(c.L1MaxSizeMB); err != nil || sizeMB < 1 {
		return errors.ConfigError("L1_MAX_SIZE_MB must be a positive number")
	}

	if entries, err := strconv.Atoi(c.L1MaxEntries); err != nil || entries < 1 {
		return errors.ConfigError("L1_MAX_ENTRIES must be a positive number")
	}

	if _, err := time.ParseDuration(c.L2DefaultTTL); err != nil {
		return errors.ConfigError("L2_DEFAULT_TTL must be a valid duration (e.g. '30m', '1h')")
	}

	if _, err := time.ParseDuration(c.L3DefaultTTL); err != nil {
		return errors.ConfigError("L3_DEFAULT_TTL must be a valid duration (e.g. '24h')")
	}

	if threshold, err := strconv.Atoi(c.CompressionThreshold); err != nil || threshold < 0 {
		return errors.ConfigError("COMPRESSION_THRESHOLD_BYTES must be a non-negative number")
	}

	switch c.InvalidationStrategy {
	case "time", "event", "manual":
		// Valid strategies
	default:
		return errors.ConfigError("CACHE_INVALIDATION_STRATEGY must be 'time', 'event' or 'manual'")
	}

	if interval, err := time.ParseDuration(c.CleanupInterval); err != nil || interval < time.Second {
		return errors.ConfigError("CLEANUP_INTERVAL must be a duration of at least 1s")
	}

	return nil
}

// L1MaxBytes returns the L1 memory budget in bytes.
func (c *Config) L1MaxBytes() int64 {
	sizeMB, _ := strconv.Atoi(c.L1MaxSizeMB)
	return int64(sizeMB) * 1024 * 1024
}

// L1EntryLimit returns the L1 entry count limit.
func (c *Config) L1EntryLimit() int {
	entries, _ := strconv.Atoi(c.L1MaxEntries)
	return entries
}

// L2TTL returns the default TTL for L2 writes.
func (c *Config) L2TTL() time.Duration {
	d, _ := time.ParseDuration(c.L2DefaultTTL)
	return d
}

// L3TTL returns the default TTL for L3-targeted writes.
func (c *Config) L3TTL() time.Duration {
	d, _ := time.ParseDuration(c.L3DefaultTTL)
	return d
}

// CompressionThresholdBytes returns the compression eligibility threshold.
func (c *Config) CompressionThresholdBytes() int {
	threshold, _ := strconv.Atoi(c.CompressionThreshold)
	return threshold
}

// SweepInterval returns the L1 cleanup sweep interval.
func (c *Config) SweepInterval() time.Duration {
	d, _ := time.ParseDuration(c.CleanupInterval)
	return d
}

// RedisDatabase returns the Redis logical database number.
func (c *Config) RedisDatabase() int {
	db, _ := strconv.Atoi(c.RedisDB)
	return db
}

// RedisConnections returns the Redis connection pool size.
func (c *Config) RedisConnections() int {
	poolSize, _ := strconv.Atoi(c.RedisPoolSize)
	return poolSize
}
