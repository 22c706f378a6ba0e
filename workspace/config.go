package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config holds job workspace configuration.
type Config struct {
	// Root is the directory under which each job gets its private directory.
	Root string `mapstructure:"root" json:"root"`
	// StaleAfter is the age after which leftover job directories are swept.
	// Zero disables sweeping.
	StaleAfter time.Duration `mapstructure:"stale_after" json:"stale_after"`
}

// ApplyDefaults fills in zero-valued fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Root == "" {
		c.Root = filepath.Join(os.TempDir(), "mediascribe")
	}
}

// Validate checks that the workspace configuration is valid.
func (c *Config) Validate() error {
	if c.Root == "" {
		return fmt.Errorf("workspace: root is required")
	}
	if c.StaleAfter < 0 {
		return fmt.Errorf("workspace: stale_after must not be negative")
	}
	return nil
}
