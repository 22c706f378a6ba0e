package jobs

import (
	"github.com/kbukum/mediascribe/engine"
	"github.com/kbukum/mediascribe/media"
	"github.com/kbukum/mediascribe/validation"
)

// Options control one job. The embedded engine options are passed to the
// selected engine unchanged.
type Options struct {
	engine.Options `mapstructure:",squash"`

	// Engine is the preferred engine. Empty means the first available one
	// in the fallback order.
	Engine   string   `mapstructure:"engine" json:"engine,omitempty"`
	Fallback []string `mapstructure:"fallback" json:"fallback,omitempty" validate:"unique"`
	Quality  string   `mapstructure:"quality" json:"quality" validate:"oneof=low medium high"`

	ShowTimestamps  bool    `mapstructure:"show_timestamps" json:"show_timestamps"`
	SizeThresholdGB float64 `mapstructure:"size_threshold_gb" json:"size_threshold_gb" validate:"gt=0"`
}

// DefaultOptions returns the defaults used when a caller sets nothing.
func DefaultOptions() Options {
	return Options{
		Options:         engine.DefaultOptions(),
		Quality:         string(media.QualityMedium),
		SizeThresholdGB: 3,
	}
}

// Validate checks the options and returns an INVALID_INPUT AppError listing
// every bad field.
func (o Options) Validate() error {
	return validation.Validate(o)
}

// AudioQuality returns the extraction quality tier.
func (o Options) AudioQuality() media.Quality {
	return media.Quality(o.Quality)
}
