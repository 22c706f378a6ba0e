// Package plan splits oversized media into uniform time segments.
package plan

import (
	"fmt"
	"math"

	"github.com/kbukum/mediascribe/errors"
)

const bytesPerGB = 1 << 30

// Segment is one time interval [Start, End) of the source, in seconds.
type Segment struct {
	Index int     `json:"index"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Duration returns End - Start.
func (s Segment) Duration() float64 { return s.End - s.Start }

// Plan is an ordered partition of [0, Duration).
type Plan struct {
	SizeGB          float64   `json:"size_gb"`
	Duration        float64   `json:"duration"`
	NeedsSplit      bool      `json:"needs_split"`
	SegmentDuration float64   `json:"segment_duration"`
	Segments        []Segment `json:"segments"`
}

// Count returns the number of segments.
func (p *Plan) Count() int { return len(p.Segments) }

// New plans a source of sizeBytes and duration seconds against thresholdGB.
//
// Sources larger than the threshold are split into floor(sizeGB/threshold)+1
// segments of equal duration. The last segment ends exactly at duration.
func New(sizeBytes int64, thresholdGB, duration float64) (*Plan, error) {
	if duration <= 0 || math.IsNaN(duration) || math.IsInf(duration, 0) {
		return nil, errors.DurationUnavailable("", fmt.Errorf("invalid duration %v", duration))
	}
	if thresholdGB <= 0 || math.IsNaN(thresholdGB) || math.IsInf(thresholdGB, 0) {
		return nil, errors.InvalidInput("size_threshold_gb", "size threshold must be positive")
	}
	if sizeBytes < 0 {
		return nil, errors.InvalidInput("size", "file size must not be negative")
	}

	sizeGB := float64(sizeBytes) / bytesPerGB
	p := &Plan{SizeGB: sizeGB, Duration: duration}

	count := 1
	if sizeGB > thresholdGB {
		p.NeedsSplit = true
		count = int(math.Floor(sizeGB/thresholdGB)) + 1
	}
	p.SegmentDuration = duration / float64(count)

	p.Segments = make([]Segment, count)
	start := 0.0
	for i := range count {
		end := float64(i+1) * p.SegmentDuration
		if i == count-1 {
			end = duration
		}
		p.Segments[i] = Segment{Index: i, Start: start, End: end}
		start = end
	}
	return p, nil
}
