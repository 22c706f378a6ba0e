package process

import (
	"context"
	"io"
	"strings"
	"time"
)

// Command is one invocation of an external tool such as ffmpeg, ffprobe or
// a python helper.
type Command struct {
	// Binary is an executable path or a name resolved through PATH.
	Binary string
	Args   []string
	// Dir is the working directory; empty means the current one.
	Dir string
	// Env entries (KEY=value) are appended to the parent environment.
	Env   []string
	Stdin io.Reader
	// GracePeriod separates SIGTERM from SIGKILL on cancellation. Zero
	// means 5s.
	GracePeriod time.Duration
}

// String renders the command line with arguments quoted where a shell
// would need it, for logs.
func (c Command) String() string {
	parts := make([]string, 0, len(c.Args)+1)
	parts = append(parts, quote(c.Binary))
	for _, a := range c.Args {
		parts = append(parts, quote(a))
	}
	return strings.Join(parts, " ")
}

func quote(s string) string {
	if s != "" && !strings.ContainsAny(s, " \t\n'\"\\$`*?[]{}()<>|&;#~") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// RunFunc executes a Command. Run is the production implementation; tests
// substitute fakes that write the files a real binary would produce.
type RunFunc func(ctx context.Context, cmd Command) (*Result, error)
