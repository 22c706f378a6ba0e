package process

import (
	"bytes"
	"strings"
	"time"
)

// Result holds the output and status of a completed subprocess.
type Result struct {
	// Stdout is the captured standard output.
	Stdout []byte
	// Stderr is the captured standard error.
	Stderr []byte
	// ExitCode is the process exit code. -1 if the process was killed.
	ExitCode int
	// Duration is how long the process ran.
	Duration time.Duration
}

// StderrTail returns the last n non-empty lines of stderr, joined by "; ".
// ffmpeg and python print the useful diagnosis last.
func (r *Result) StderrTail(n int) string {
	if r == nil || len(r.Stderr) == 0 {
		return ""
	}
	var lines []string
	for _, line := range bytes.Split(r.Stderr, []byte("\n")) {
		if s := strings.TrimSpace(string(line)); s != "" {
			lines = append(lines, s)
		}
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "; ")
}
