package transcript

import (
	"fmt"
	"math"
)

// Clock formats seconds as mm:ss, or hh:mm:ss once hours are non-zero.
// Fractions are truncated and negative values clamp to zero.
func Clock(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	total := int64(seconds)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
