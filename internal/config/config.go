// Package config loads daemon configuration from an optional YAML file
// layered under environment variables. Environment always wins.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/groupkit/autopost/internal/logger"
)

// Storage backends
const (
	BackendBadger = "badger"
	BackendRedis  = "redis"
)

// Config holds all configuration for the autopost daemon
type Config struct {
	// StorageBackend selects where the persisted documents live: "badger"
	// (embedded, default) or "redis"
	StorageBackend string `yaml:"storage_backend"`
	// RedisURL is the connection URL when the redis backend is selected
	RedisURL string `yaml:"redis_url"`
	// DataDir is the badger data directory when the badger backend is selected
	DataDir string `yaml:"data_dir"`
	// EventEndpoint is the URL events are POSTed to on publish
	EventEndpoint string `yaml:"event_endpoint"`
	// MonthsAhead bounds how far occurrences are generated
	MonthsAhead int `yaml:"months_ahead"`
	// MaxPerRecalc caps new pending events per recalculation
	MaxPerRecalc int `yaml:"max_per_recalc"`
	// RetryDelay is the wait between publish attempts after a failure
	RetryDelay time.Duration `yaml:"retry_delay"`
	// RecheckDelay is the coarse re-check interval for long horizons
	RecheckDelay time.Duration `yaml:"recheck_delay"`
	// ExactHorizon is the longest delay armed as a single exact timer
	ExactHorizon time.Duration `yaml:"exact_horizon"`
	// Logging configuration
	Logging *logger.Config `yaml:"logging"`
}

// LoadConfig loads configuration with sensible defaults. If AUTOPOST_CONFIG
// names a YAML file it is applied first; environment variables override it.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		StorageBackend: BackendBadger,
		RedisURL:       "redis://localhost:6379",
		DataDir:        "data",
		MonthsAhead:    3,
		MaxPerRecalc:   10,
		RetryDelay:     15 * time.Minute,
		RecheckDelay:   time.Hour,
		ExactHorizon:   24 * time.Hour,
		Logging:        logger.DefaultConfig(),
	}

	if path := os.Getenv("AUTOPOST_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if cfg.Logging == nil {
		cfg.Logging = logger.DefaultConfig()
	}

	cfg.StorageBackend = getEnv("AUTOPOST_STORAGE_BACKEND", cfg.StorageBackend)
	cfg.RedisURL = getEnv("REDIS_URL", cfg.RedisURL)
	cfg.DataDir = getEnv("AUTOPOST_DATA_DIR", cfg.DataDir)
	cfg.EventEndpoint = getEnv("AUTOPOST_EVENT_ENDPOINT", cfg.EventEndpoint)
	cfg.MonthsAhead = getEnvAsInt("AUTOPOST_MONTHS_AHEAD", cfg.MonthsAhead)
	cfg.MaxPerRecalc = getEnvAsInt("AUTOPOST_MAX_PER_RECALC", cfg.MaxPerRecalc)
	cfg.RetryDelay = getEnvAsDuration("AUTOPOST_RETRY_DELAY", cfg.RetryDelay)
	cfg.RecheckDelay = getEnvAsDuration("AUTOPOST_RECHECK_DELAY", cfg.RecheckDelay)
	cfg.ExactHorizon = getEnvAsDuration("AUTOPOST_EXACT_HORIZON", cfg.ExactHorizon)
	applyLoggingEnv(cfg.Logging)

	// Validate required fields
	switch cfg.StorageBackend {
	case BackendBadger:
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("AUTOPOST_DATA_DIR cannot be empty with the badger backend")
		}
	case BackendRedis:
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("REDIS_URL cannot be empty with the redis backend")
		}
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.StorageBackend)
	}
	if cfg.MonthsAhead < 1 {
		return nil, fmt.Errorf("AUTOPOST_MONTHS_AHEAD must be at least 1")
	}
	if cfg.MaxPerRecalc < 1 {
		return nil, fmt.Errorf("AUTOPOST_MAX_PER_RECALC must be at least 1")
	}
	if cfg.RetryDelay <= 0 || cfg.RecheckDelay <= 0 || cfg.ExactHorizon <= 0 {
		return nil, fmt.Errorf("timer delays must be positive")
	}

	// Validate logging config
	if err := cfg.Logging.Validate(); err != nil {
		return nil, fmt.Errorf("invalid logging config: %w", err)
	}

	return cfg, nil
}

// applyLoggingEnv overrides logging settings from the environment
func applyLoggingEnv(lc *logger.Config) {
	lc.Level = logger.LogLevel(getEnv("LOG_LEVEL", string(lc.Level)))
	lc.Format = logger.LogFormat(getEnv("LOG_FORMAT", string(lc.Format)))
	lc.Console.Enabled = getEnvAsBool("LOG_CONSOLE_ENABLED", lc.Console.Enabled)
	lc.Console.Color = getEnvAsBool("LOG_CONSOLE_COLOR", lc.Console.Color)
	lc.File.Enabled = getEnvAsBool("LOG_FILE_ENABLED", lc.File.Enabled)
	lc.File.Path = getEnv("LOG_FILE_PATH", lc.File.Path)
	lc.File.MaxSizeMB = getEnvAsInt("LOG_FILE_MAX_SIZE_MB", lc.File.MaxSizeMB)
	lc.File.MaxBackups = getEnvAsInt("LOG_FILE_MAX_BACKUPS", lc.File.MaxBackups)
	lc.File.MaxAgeDays = getEnvAsInt("LOG_FILE_MAX_AGE_DAYS", lc.File.MaxAgeDays)
	lc.File.Compress = getEnvAsBool("LOG_FILE_COMPRESS", lc.File.Compress)
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration retrieves an environment variable as a duration or returns a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
