package auth

import (
	"errors"
	"time"
)

// Config configures API token signing and verification.
type Config struct {
	// Enabled requires a bearer token on the job API.
	Enabled bool `mapstructure:"enabled" json:"enabled"`

	// Secret is the HMAC signing key.
	Secret string `mapstructure:"secret" json:"-"`

	// Method is HS256, HS384 or HS512.
	Method string `mapstructure:"method" json:"method"`

	// Issuer is written to and checked against the "iss" claim when set.
	Issuer string `mapstructure:"issuer" json:"issuer,omitempty"`

	// TokenTTL is the lifetime of issued tokens.
	TokenTTL time.Duration `mapstructure:"token_ttl" json:"token_ttl"`
}

// ApplyDefaults fills zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Method == "" {
		c.Method = "HS256"
	}
	if c.Issuer == "" {
		c.Issuer = "mediascribe"
	}
	if c.TokenTTL <= 0 {
		c.TokenTTL = 24 * time.Hour
	}
}

// Validate checks the signing settings. A disabled config is always valid.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if len(c.Secret) < 16 {
		return errors.New("auth: secret must be at least 16 characters")
	}
	switch c.Method {
	case "HS256", "HS384", "HS512":
	default:
		return errors.New("auth: unsupported signing method: " + c.Method)
	}
	return nil
}
