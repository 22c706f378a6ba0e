package server

import (
	"fmt"

	"github.com/kbukum/mediascribe/server/middleware"
)

// Config holds HTTP server configuration.
type Config struct {
	Host         string `mapstructure:"host" json:"host"`
	Port         int    `mapstructure:"port" json:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout" json:"read_timeout"`   // seconds
	WriteTimeout int    `mapstructure:"write_timeout" json:"write_timeout"` // seconds, event streams are exempt
	IdleTimeout  int    `mapstructure:"idle_timeout" json:"idle_timeout"`   // seconds
	// ShutdownTimeout bounds graceful shutdown, in seconds.
	ShutdownTimeout int                        `mapstructure:"shutdown_timeout" json:"shutdown_timeout"`
	MaxBodySize     string                     `mapstructure:"max_body_size" json:"max_body_size"`
	CORS            middleware.CORSConfig      `mapstructure:"cors" json:"cors"`
	SubmitLimit     middleware.RateLimitConfig `mapstructure:"submit_limit" json:"submit_limit"`
	// MaxStreams caps concurrent SSE connections. Zero removes the cap.
	MaxStreams int `mapstructure:"max_streams" json:"max_streams"`
}

// ApplyDefaults sets sensible default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "127.0.0.1"
	}
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 15
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 30
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 120
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 10
	}
	if c.MaxStreams == 0 {
		c.MaxStreams = 64
	}
	if c.MaxBodySize == "" {
		c.MaxBodySize = "1MB"
	}
	if len(c.CORS.AllowedMethods) == 0 {
		c.CORS.AllowedMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	}
	if len(c.CORS.AllowedHeaders) == 0 {
		c.CORS.AllowedHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "Last-Event-ID"}
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("server.port must be between 0 and 65535 (got: %d)", c.Port)
	}
	if c.ReadTimeout < 0 {
		return fmt.Errorf("server.read_timeout must be non-negative (got: %d)", c.ReadTimeout)
	}
	if c.WriteTimeout < 0 {
		return fmt.Errorf("server.write_timeout must be non-negative (got: %d)", c.WriteTimeout)
	}
	if c.IdleTimeout < 0 {
		return fmt.Errorf("server.idle_timeout must be non-negative (got: %d)", c.IdleTimeout)
	}
	if c.SubmitLimit.PerMinute < 0 {
		return fmt.Errorf("server.submit_limit.per_minute must be non-negative (got: %d)", c.SubmitLimit.PerMinute)
	}
	if c.MaxStreams < 0 {
		return fmt.Errorf("server.max_streams must be non-negative (got: %d)", c.MaxStreams)
	}
	return nil
}
