package store

import (
	"fmt"
	"time"
)

// Config holds job history database settings.
type Config struct {
	// Enabled controls whether finished jobs are recorded.
	Enabled bool `mapstructure:"enabled" json:"enabled"`

	// DSN is the SQLite database file (or a file: URI).
	DSN string `mapstructure:"dsn" json:"dsn"`

	// MaxRetries is the number of connection attempts before giving up.
	MaxRetries int `mapstructure:"max_retries" json:"max_retries"`

	// SlowQueryThreshold is the duration above which queries are logged as slow.
	SlowQueryThreshold time.Duration `mapstructure:"slow_query_threshold" json:"slow_query_threshold"`

	// LogLevel is the GORM log level: silent, error, warn or info.
	LogLevel string `mapstructure:"log_level" json:"log_level"`
}

// ApplyDefaults sets sensible defaults for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.DSN == "" {
		c.DSN = "mediascribe.db"
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.SlowQueryThreshold <= 0 {
		c.SlowQueryThreshold = 200 * time.Millisecond
	}
	if c.LogLevel == "" {
		c.LogLevel = "warn"
	}
}

// Validate checks that required fields are present.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.DSN == "" {
		return fmt.Errorf("store: dsn is required")
	}
	if c.MaxRetries <= 0 {
		return fmt.Errorf("store: max_retries must be > 0")
	}
	switch c.LogLevel {
	case "silent", "error", "warn", "info":
	default:
		return fmt.Errorf("store: log_level must be one of silent, error, warn, info (got: %s)", c.LogLevel)
	}
	return nil
}
