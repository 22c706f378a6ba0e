package config

import (
	"fmt"
	"slices"
)

// Environments lists the accepted service environments.
var Environments = []string{"development", "staging", "production"}

// ServiceConfig identifies the running service.
type ServiceConfig struct {
	Name        string `yaml:"name" mapstructure:"name"`
	Environment string `yaml:"environment" mapstructure:"environment"`
	Debug       bool   `yaml:"debug" mapstructure:"debug"`
}

// ApplyDefaults applies default values to the service configuration.
func (c *ServiceConfig) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "mediascribe"
	}
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Environment == "development" {
		c.Debug = true
	}
}

// Validate validates the service configuration.
func (c *ServiceConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("service.name is required")
	}
	if !slices.Contains(Environments, c.Environment) {
		return fmt.Errorf("service.environment must be one of %v (got: %s)", Environments, c.Environment)
	}
	return nil
}
