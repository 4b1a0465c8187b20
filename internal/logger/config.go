package logger

import (
	"fmt"
	"log/slog"
)

// LogLevel represents the severity level of a log entry
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// LogFormat represents the output format for logs
type LogFormat string

const (
	FormatJSON LogFormat = "json"
	FormatText LogFormat = "text"
)

// Component identifies which part of the system generated the log
type Component string

const (
	ComponentEngine     Component = "engine"
	ComponentScheduler  Component = "scheduler"
	ComponentStore      Component = "store"
	ComponentStorage    Component = "storage"
	ComponentRecurrence Component = "recurrence"
	ComponentConfig     Component = "config"
	ComponentLogger     Component = "logger"
)

// Config holds the complete logging configuration for both tiers
type Config struct {
	// Global settings
	Level  LogLevel  `json:"level" yaml:"level"`
	Format LogFormat `json:"format" yaml:"format"`

	// Tier 1: Console (always enabled in practice)
	Console ConsoleConfig `json:"console" yaml:"console"`

	// Tier 2: File (optional)
	File FileConfig `json:"file" yaml:"file"`
}

// ConsoleConfig configures console/terminal logging (Tier 1)
type ConsoleConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
	Color   bool `json:"color" yaml:"color"` // Colored level tags (text mode only)
}

// FileConfig configures rotated file logging (Tier 2)
type FileConfig struct {
	Enabled    bool   `json:"enabled" yaml:"enabled"`
	Path       string `json:"path" yaml:"path"`                 // Log file path
	MaxSizeMB  int    `json:"max_size_mb" yaml:"max_size_mb"`   // Max size before rotation
	MaxBackups int    `json:"max_backups" yaml:"max_backups"`   // Max number of old log files
	MaxAgeDays int    `json:"max_age_days" yaml:"max_age_days"` // Max age in days
	Compress   bool   `json:"compress" yaml:"compress"`         // Compress rotated files
}

// DefaultConfig returns the default logging configuration
func DefaultConfig() *Config {
	return &Config{
		Level:  LevelInfo,
		Format: FormatText,
		Console: ConsoleConfig{
			Enabled: true,
			Color:   true,
		},
		File: FileConfig{
			Enabled:    false,
			Path:       "autopost.log",
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 30,
			Compress:   true,
		},
	}
}

// Validate checks the configuration for invalid values
func (c *Config) Validate() error {
	switch c.Level {
	case LevelDebug, LevelInfo, LevelWarn, LevelError:
	default:
		return fmt.Errorf("invalid log level: %s", c.Level)
	}

	switch c.Format {
	case FormatJSON, FormatText:
	default:
		return fmt.Errorf("invalid log format: %s", c.Format)
	}

	if c.File.Enabled && c.File.Path == "" {
		return fmt.Errorf("file logging enabled but no path configured")
	}

	return nil
}

// slogLevel maps a LogLevel to the corresponding slog.Level
func (l LogLevel) slogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
