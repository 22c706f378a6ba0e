package config

import (
	"fmt"
	"os"
	"slices"

	"github.com/kbukum/mediascribe/auth"
	"github.com/kbukum/mediascribe/engine"
	"github.com/kbukum/mediascribe/engine/fasterwhisper"
	"github.com/kbukum/mediascribe/engine/remote"
	"github.com/kbukum/mediascribe/engine/sherpa"
	"github.com/kbukum/mediascribe/engine/whispercli"
	"github.com/kbukum/mediascribe/jobs"
	"github.com/kbukum/mediascribe/logger"
	"github.com/kbukum/mediascribe/media"
	"github.com/kbukum/mediascribe/observability"
	"github.com/kbukum/mediascribe/server"
	"github.com/kbukum/mediascribe/store"
	"github.com/kbukum/mediascribe/version"
	"github.com/kbukum/mediascribe/workspace"
)

// Config is the complete mediascribe configuration.
type Config struct {
	Service   ServiceConfig        `yaml:"service" mapstructure:"service"`
	Logging   logger.Config        `yaml:"logging" mapstructure:"logging"`
	Pipeline  jobs.Options         `yaml:"pipeline" mapstructure:"pipeline"`
	Jobs      JobsConfig           `yaml:"jobs" mapstructure:"jobs"`
	Media     media.Config         `yaml:"media" mapstructure:"media"`
	Workspace workspace.Config     `yaml:"workspace" mapstructure:"workspace"`
	Engines   EnginesConfig        `yaml:"engines" mapstructure:"engines"`
	Server    server.Config        `yaml:"server" mapstructure:"server"`
	Store     store.Config         `yaml:"store" mapstructure:"store"`
	Telemetry observability.Config `yaml:"telemetry" mapstructure:"telemetry"`
	Auth      auth.Config          `yaml:"auth" mapstructure:"auth"`

	// Files are the config and env files that were read.
	Files ResolvedFiles `yaml:"-" mapstructure:"-"`
}

// JobsConfig sizes the job controller.
type JobsConfig struct {
	// EventBuffer is the number of events retained per job for replay.
	EventBuffer int `yaml:"event_buffer" mapstructure:"event_buffer"`
	// Retain is the number of finished jobs kept in memory.
	Retain int `yaml:"retain" mapstructure:"retain"`
}

// ApplyDefaults fills zero-valued fields.
func (c *JobsConfig) ApplyDefaults() {
	if c.EventBuffer <= 0 {
		c.EventBuffer = 512
	}
	if c.Retain <= 0 {
		c.Retain = 100
	}
}

// EnginesConfig selects and configures the transcription engines.
type EnginesConfig struct {
	// Preferred is tried first when a job names no engine.
	Preferred string `yaml:"preferred" mapstructure:"preferred"`
	// Fallback is the order tried after the preferred engine.
	Fallback []string `yaml:"fallback" mapstructure:"fallback"`

	Whisper       whispercli.Config    `yaml:"whisper" mapstructure:"whisper"`
	FasterWhisper fasterwhisper.Config `yaml:"faster_whisper" mapstructure:"faster_whisper"`
	Sherpa        sherpa.Config        `yaml:"sherpa" mapstructure:"sherpa"`
	Remote        remote.Config        `yaml:"remote" mapstructure:"remote"`
}

// ApplyDefaults fills zero-valued fields, including every engine block.
func (c *EnginesConfig) ApplyDefaults() {
	if len(c.Fallback) == 0 {
		c.Fallback = slices.Clone(engine.DefaultFallback)
	}
	c.Whisper.ApplyDefaults()
	c.FasterWhisper.ApplyDefaults()
	c.Sherpa.ApplyDefaults()
	c.Remote.ApplyDefaults()
}

// Validate rejects unknown engine names.
func (c *EnginesConfig) Validate() error {
	if c.Preferred != "" && !slices.Contains(engine.DefaultFallback, c.Preferred) {
		return fmt.Errorf("engines.preferred: unknown engine %q", c.Preferred)
	}
	for _, name := range c.Fallback {
		if !slices.Contains(engine.DefaultFallback, name) {
			return fmt.Errorf("engines.fallback: unknown engine %q", name)
		}
	}
	if err := c.Remote.TLS.Validate(); err != nil {
		return fmt.Errorf("engines.remote.%w", err)
	}
	return nil
}

// Default returns the configuration before any source is applied. Only
// values that ApplyDefaults cannot infer from a zero value are set here.
func Default() *Config {
	return &Config{
		Pipeline: jobs.DefaultOptions(),
		Store:    store.Config{Enabled: true},
	}
}

// ApplyDefaults fills zero-valued fields of every section.
func (c *Config) ApplyDefaults() {
	c.Service.ApplyDefaults()
	if c.Logging.ServiceName == "" {
		c.Logging.ServiceName = c.Service.Name
	}
	c.Logging.ApplyDefaults()
	c.Jobs.ApplyDefaults()
	c.Media.ApplyDefaults()
	c.Workspace.ApplyDefaults()
	c.Engines.ApplyDefaults()
	if c.Pipeline.Engine == "" {
		c.Pipeline.Engine = c.Engines.Preferred
	}
	c.Server.ApplyDefaults()
	c.Store.ApplyDefaults()
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = c.Service.Name
	}
	if c.Telemetry.ServiceVersion == "" {
		c.Telemetry.ServiceVersion = version.Version
	}
	if c.Telemetry.Environment == "" {
		c.Telemetry.Environment = c.Service.Environment
	}
	c.Telemetry.ApplyDefaults()
	c.Auth.ApplyDefaults()
}

// Validate checks every section and reports the first problem.
func (c *Config) Validate() error {
	checks := []struct {
		section string
		fn      func() error
	}{
		{"service", c.Service.Validate},
		{"logging", c.Logging.Validate},
		{"pipeline", c.Pipeline.Validate},
		{"media", c.Media.Validate},
		{"workspace", c.Workspace.Validate},
		{"engines", c.Engines.Validate},
		{"server", c.Server.Validate},
		{"store", c.Store.Validate},
		{"telemetry", c.Telemetry.Validate},
		{"auth", c.Auth.Validate},
	}
	for _, check := range checks {
		if err := check.fn(); err != nil {
			return fmt.Errorf("config %s: %w", check.section, err)
		}
	}
	return nil
}

// Load builds the configuration from defaults, the config file, .env, the
// environment and flags, then applies defaults and validates it.
func Load(opts ...LoaderOption) (*Config, error) {
	var lc LoaderConfig
	for _, opt := range opts {
		opt(&lc)
	}
	if lc.FileSystem == nil {
		lc.FileSystem = RealFileSystem{}
	}
	if lc.Environ == nil {
		lc.Environ = os.Environ
	}
	if lc.Flags != nil {
		configFile, envFile := filesFromFlags(lc.Flags)
		if configFile != "" {
			lc.ConfigFile = configFile
		}
		if envFile != "" {
			lc.EnvFile = envFile
		}
	}

	cfg := Default()
	files, err := readInto(cfg, lc)
	if err != nil {
		return nil, err
	}
	cfg.Files = files
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
