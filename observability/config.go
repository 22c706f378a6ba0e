package observability

import (
	"fmt"
	"time"
)

// Config configures tracing and metrics export. Both are disabled by
// default; instruments then record into the otel no-op providers.
type Config struct {
	Enabled        bool   `mapstructure:"enabled" json:"enabled"`
	ServiceName    string `mapstructure:"service_name" json:"service_name"`
	ServiceVersion string `mapstructure:"service_version" json:"service_version"`
	Environment    string `mapstructure:"environment" json:"environment"`
	// Endpoint is the OTLP HTTP endpoint host:port.
	Endpoint       string        `mapstructure:"endpoint" json:"endpoint"`
	Insecure       bool          `mapstructure:"insecure" json:"insecure"`
	SampleRate     float64       `mapstructure:"sample_rate" json:"sample_rate"`
	MetricInterval time.Duration `mapstructure:"metric_interval" json:"metric_interval"`
}

// ApplyDefaults fills in zero-valued fields with development defaults.
func (c *Config) ApplyDefaults() {
	if c.ServiceName == "" {
		c.ServiceName = "mediascribe"
	}
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Endpoint == "" {
		c.Endpoint = "localhost:4318"
	}
	if c.SampleRate == 0 {
		c.SampleRate = 1.0
	}
	if c.MetricInterval == 0 {
		c.MetricInterval = 15 * time.Second
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.SampleRate < 0 || c.SampleRate > 1 {
		return fmt.Errorf("observability: sample_rate must be between 0 and 1")
	}
	if c.Enabled && c.Endpoint == "" {
		return fmt.Errorf("observability: endpoint is required when enabled")
	}
	return nil
}
