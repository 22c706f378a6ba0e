package media

import (
	"fmt"
	"strings"
)

// DefaultExtensions are the source file extensions accepted by default.
var DefaultExtensions = []string{
	".mp4", ".avi", ".mov", ".mkv", ".wmv", ".flv", ".webm", ".m4v",
	".mp3", ".wav", ".m4a", ".flac", ".ogg", ".aac",
}

// Config holds ffmpeg/ffprobe settings and source limits.
type Config struct {
	FFmpeg  string `mapstructure:"ffmpeg" json:"ffmpeg"`
	FFprobe string `mapstructure:"ffprobe" json:"ffprobe"`

	// MaxFileSizeGB rejects larger sources before planning. Zero disables the check.
	MaxFileSizeGB float64 `mapstructure:"max_file_size_gb" json:"max_file_size_gb"`
	// MinArtifactBytes is the smallest extracted artifact accepted as real audio.
	MinArtifactBytes int64 `mapstructure:"min_artifact_bytes" json:"min_artifact_bytes"`
	// AllowedExtensions lists accepted source extensions, with leading dot.
	AllowedExtensions []string `mapstructure:"allowed_extensions" json:"allowed_extensions"`
}

// ApplyDefaults fills in zero-valued fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.FFmpeg == "" {
		c.FFmpeg = "ffmpeg"
	}
	if c.FFprobe == "" {
		c.FFprobe = "ffprobe"
	}
	if c.MaxFileSizeGB == 0 {
		c.MaxFileSizeGB = 10
	}
	if c.MinArtifactBytes == 0 {
		c.MinArtifactBytes = 1024
	}
	if len(c.AllowedExtensions) == 0 {
		c.AllowedExtensions = append([]string(nil), DefaultExtensions...)
	}
}

// Validate checks that the media configuration is valid.
func (c *Config) Validate() error {
	if c.FFmpeg == "" || c.FFprobe == "" {
		return fmt.Errorf("media: ffmpeg and ffprobe binaries are required")
	}
	if c.MaxFileSizeGB < 0 {
		return fmt.Errorf("media: max_file_size_gb must not be negative")
	}
	if c.MinArtifactBytes < 0 {
		return fmt.Errorf("media: min_artifact_bytes must not be negative")
	}
	for _, ext := range c.AllowedExtensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("media: allowed extension %q must start with a dot", ext)
		}
	}
	return nil
}

// MaxFileBytes returns the size limit in bytes, or 0 when unlimited.
func (c *Config) MaxFileBytes() int64 {
	return int64(c.MaxFileSizeGB * (1 << 30))
}
