// Package engine defines the speech-to-text capability interface, the
// registry of available engines, and the fallback selector.
//
// Variants live in sub-packages: whispercli, fasterwhisper, sherpa and
// remote. Each exposes a Factory and an availability check; the binary wires
// them into a Registry once at startup.
package engine

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/kbukum/mediascribe/transcript"
)

// Kind distinguishes in-process/subprocess engines from network engines.
type Kind string

const (
	KindLocal  Kind = "local"
	KindRemote Kind = "remote"
)

// ProgressFunc receives a percentage in [0,100].
type ProgressFunc func(percent int)

// StatusFunc receives a human-readable status line.
type StatusFunc func(msg string)

// Engine converts audio files to text.
//
// Load is called once per job and the instance is reused for every segment.
// Cleanup releases the model and is called on every exit path.
type Engine interface {
	Name() string
	Kind() Kind
	Load(ctx context.Context, progress ProgressFunc, status StatusFunc) error
	Transcribe(ctx context.Context, req Request) (*Result, error)
	Cleanup() error
}

// Request is one transcription call.
type Request struct {
	AudioPath string
	Options   Options
	Progress  ProgressFunc
}

// Span is a timed piece of engine output, in seconds relative to the audio.
type Span struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Result is the output of one transcription call.
type Result struct {
	Text     string  `json:"text"`
	Spans    []Span  `json:"spans,omitempty"`
	Language string  `json:"language,omitempty"`
	Duration float64 `json:"duration,omitempty"`
	// Placeholder marks output that did not come from a real recognizer.
	// Only engine code sets it.
	Placeholder bool `json:"placeholder,omitempty"`
}

// PlaceholderTag prefixes placeholder text.
const PlaceholderTag = "[placeholder]"

// Shift returns a copy of r with every span moved by offset seconds.
func (r *Result) Shift(offset float64) *Result {
	out := *r
	out.Spans = make([]Span, len(r.Spans))
	for i, s := range r.Spans {
		out.Spans[i] = Span{Start: s.Start + offset, End: s.End + offset, Text: s.Text}
	}
	return &out
}

// Render returns the text to assemble. With timestamps and spans it returns
// "[start - end] text" lines ordered by start; otherwise the trimmed text.
func (r *Result) Render(timestamps bool) string {
	if !timestamps || len(r.Spans) == 0 {
		return strings.TrimSpace(r.Text)
	}
	spans := slices.Clone(r.Spans)
	slices.SortStableFunc(spans, func(a, b Span) int {
		switch {
		case a.Start < b.Start:
			return -1
		case a.Start > b.Start:
			return 1
		}
		return 0
	})
	lines := make([]string, 0, len(spans))
	for _, s := range spans {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("[%s - %s] %s", transcript.Clock(s.Start), transcript.Clock(s.End), text))
	}
	return strings.Join(lines, "\n")
}

// JoinSpans concatenates span texts with single spaces.
func JoinSpans(spans []Span) string {
	parts := make([]string, 0, len(spans))
	for _, s := range spans {
		if t := strings.TrimSpace(s.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}
