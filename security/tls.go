package security

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"os"
	"time"
)

// TLSConfig describes how a client verifies a server and, for mutual TLS,
// which certificate it presents.
type TLSConfig struct {
	// SkipVerify disables server certificate verification.
	SkipVerify bool   `yaml:"skip_verify" mapstructure:"skip_verify" json:"skip_verify"`
	CAFile     string `yaml:"ca_file" mapstructure:"ca_file" json:"ca_file,omitempty"`
	CertFile   string `yaml:"cert_file" mapstructure:"cert_file" json:"cert_file,omitempty"`
	KeyFile    string `yaml:"key_file" mapstructure:"key_file" json:"-"`
	ServerName string `yaml:"server_name" mapstructure:"server_name" json:"server_name,omitempty"`
}

// Enabled reports whether any setting differs from the system defaults.
func (c TLSConfig) Enabled() bool {
	return c.SkipVerify || c.CAFile != "" || c.CertFile != "" || c.ServerName != ""
}

// Validate requires cert_file and key_file to be set together.
func (c TLSConfig) Validate() error {
	if (c.CertFile != "") != (c.KeyFile != "") {
		return fmt.Errorf("tls: cert_file and key_file must be set together")
	}
	return nil
}

// Build returns the tls.Config for the settings, or nil when none are set.
func (c TLSConfig) Build() (*tls.Config, error) {
	if !c.Enabled() {
		return nil, nil
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	out := &tls.Config{
		InsecureSkipVerify: c.SkipVerify, //nolint:gosec // opt-in for self-signed test servers
		ServerName:         c.ServerName,
		MinVersion:         tls.VersionTLS12,
	}
	if c.CAFile != "" {
		pem, err := os.ReadFile(c.CAFile)
		if err != nil {
			return nil, fmt.Errorf("tls: read ca_file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("tls: no certificates in %s", c.CAFile)
		}
		out.RootCAs = pool
	}
	if c.CertFile != "" {
		cert, err := tls.LoadX509KeyPair(c.CertFile, c.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("tls: load client certificate: %w", err)
		}
		out.Certificates = []tls.Certificate{cert}
	}
	return out, nil
}

// HTTPClient returns a client with the given timeout whose transport uses
// the TLS settings. Without settings the default transport is cloned.
func (c TLSConfig) HTTPClient(timeout time.Duration) (*http.Client, error) {
	tlsCfg, err := c.Build()
	if err != nil {
		return nil, err
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if tlsCfg != nil {
		transport.TLSClientConfig = tlsCfg
	}
	return &http.Client{Timeout: timeout, Transport: transport}, nil
}
