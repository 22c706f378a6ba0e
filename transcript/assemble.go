// Package transcript joins per-segment text into the final transcript.
package transcript

import (
	"fmt"
	"slices"
	"strings"

	"github.com/kbukum/mediascribe/errors"
)

// Segment is the text an engine produced for one planned segment.
type Segment struct {
	Index int     `json:"index"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Marker renders the time marker of s. Numbering is 1-based.
func (s Segment) Marker() string {
	return fmt.Sprintf("[Segment %d: %s - %s]", s.Index+1, Clock(s.Start), Clock(s.End))
}

// Assemble joins segments in index order regardless of input order.
//
// With markers, every segment contributes its marker line and, when its
// text is non-empty, the text on the following line. Without markers the
// trimmed texts are joined by newlines. If no segment carries text the
// result is EMPTY_TRANSCRIPT.
func Assemble(segments []Segment, markers bool) (string, error) {
	ordered := slices.Clone(segments)
	slices.SortStableFunc(ordered, func(a, b Segment) int { return a.Index - b.Index })

	var lines []string
	withText := 0
	for _, s := range ordered {
		text := strings.TrimSpace(s.Text)
		if text != "" {
			withText++
		}
		if markers {
			lines = append(lines, s.Marker())
		}
		if text != "" {
			lines = append(lines, text)
		}
	}

	if withText == 0 {
		return "", errors.EmptyTranscript(len(segments), 0)
	}
	return strings.Join(lines, "\n"), nil
}
