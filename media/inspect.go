package media

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/kbukum/mediascribe/errors"
	"github.com/kbukum/mediascribe/process"
)

// Runner executes ffmpeg/ffprobe. process.Run in production.
type Runner = process.RunFunc

// DurationEstimator reports media duration and audio presence.
type DurationEstimator interface {
	Duration(ctx context.Context, path string) (float64, error)
	HasAudio(ctx context.Context, path string) (bool, error)
}

// Inspector implements DurationEstimator with ffprobe.
type Inspector struct {
	binary string
	run    Runner
}

// NewInspector creates an ffprobe-backed inspector. A nil run uses process.Run.
func NewInspector(binary string, run Runner) *Inspector {
	if run == nil {
		run = process.Run
	}
	return &Inspector{binary: binary, run: run}
}

// Duration returns the container duration in seconds. Any failure, including
// a missing or non-positive value, is DURATION_UNAVAILABLE.
func (i *Inspector) Duration(ctx context.Context, path string) (float64, error) {
	res, err := i.run(ctx, process.Command{
		Binary: i.binary,
		Args: []string{
			"-v", "error",
			"-show_entries", "format=duration",
			"-of", "default=noprint_wrappers=1:nokey=1",
			path,
		},
	})
	if err != nil {
		return 0, errors.DurationUnavailable(path, err)
	}
	raw := strings.TrimSpace(string(res.Stdout))
	d, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, errors.DurationUnavailable(path, fmt.Errorf("parse ffprobe output %q: %w", raw, err))
	}
	if d <= 0 || math.IsNaN(d) || math.IsInf(d, 0) {
		return 0, errors.DurationUnavailable(path, fmt.Errorf("invalid duration %v", d))
	}
	return d, nil
}

// HasAudio reports whether path has at least one audio stream.
func (i *Inspector) HasAudio(ctx context.Context, path string) (bool, error) {
	res, err := i.run(ctx, process.Command{
		Binary: i.binary,
		Args: []string{
			"-v", "error",
			"-select_streams", "a",
			"-show_entries", "stream=index",
			"-of", "csv=p=0",
			path,
		},
	})
	if err != nil {
		return false, fmt.Errorf("media: list audio streams: %w", err)
	}
	return strings.TrimSpace(string(res.Stdout)) != "", nil
}

var _ DurationEstimator = (*Inspector)(nil)
