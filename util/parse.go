package util

import (
	"strconv"
	"strings"
)

var sizeUnits = []struct {
	suffix string
	scale  int64
}{
	{"GB", 1 << 30},
	{"MB", 1 << 20},
	{"KB", 1 << 10},
	{"B", 1},
}

// ParseSize converts a size such as "10MB", "512KB" or "2048" to bytes.
// Empty, malformed and non-positive values yield fallback.
func ParseSize(s string, fallback int64) int64 {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return fallback
	}
	scale := int64(1)
	for _, u := range sizeUnits {
		if trimmed, ok := strings.CutSuffix(s, u.suffix); ok {
			s, scale = strings.TrimSpace(trimmed), u.scale
			break
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return fallback
	}
	return n * scale
}
