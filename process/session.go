package process

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// Session is a long-running subprocess driven over its stdin and stdout.
type Session struct {
	Stdin  io.WriteCloser
	Stdout io.Reader

	stdout *os.File
	cmd    *exec.Cmd
	grace  time.Duration
	stderr *lockedBuffer
	done   chan struct{}
	err    error
	once   sync.Once
}

// Start launches cmd without waiting for it. cmd.Stdin is ignored; write to
// Session.Stdin instead.
func Start(cmd Command) (*Session, error) {
	if cmd.Binary == "" {
		return nil, fmt.Errorf("process: binary is required")
	}
	grace := cmd.GracePeriod
	if grace == 0 {
		grace = 5 * time.Second
	}

	c := exec.Command(cmd.Binary, cmd.Args...) //nolint:gosec // callers build argv from validated config
	c.Dir = cmd.Dir
	c.Env = mergeEnv(cmd.Env)
	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stderr := &lockedBuffer{}
	c.Stderr = stderr
	stdin, err := c.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("process: stdin pipe: %w", err)
	}
	// An os.Pipe keeps stdout readable after Wait returns.
	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("process: stdout pipe: %w", err)
	}
	c.Stdout = pw
	if err := c.Start(); err != nil {
		_ = pr.Close()
		_ = pw.Close()
		return nil, fmt.Errorf("process: start %s: %w", cmd.Binary, err)
	}
	_ = pw.Close()

	s := &Session{Stdin: stdin, Stdout: pr, stdout: pr, cmd: c, grace: grace, stderr: stderr, done: make(chan struct{})}
	go func() {
		s.err = c.Wait()
		close(s.done)
	}()
	return s, nil
}

// Done is closed when the process exits.
func (s *Session) Done() <-chan struct{} { return s.done }

// StderrTail returns the last n non-empty stderr lines.
func (s *Session) StderrTail(n int) string {
	return (&Result{Stderr: s.stderr.Bytes()}).StderrTail(n)
}

// Stop closes stdin, then signals the process group with SIGTERM and, after
// the grace period, SIGKILL. It is idempotent and returns the exit error.
func (s *Session) Stop() error {
	s.once.Do(func() {
		_ = s.Stdin.Close()
		select {
		case <-s.done:
			return
		case <-time.After(s.grace / 5):
		}
		_ = syscall.Kill(-s.cmd.Process.Pid, syscall.SIGTERM)
		select {
		case <-s.done:
		case <-time.After(s.grace):
			_ = syscall.Kill(-s.cmd.Process.Pid, syscall.SIGKILL)
			<-s.done
		}
	})
	<-s.done
	_ = s.stdout.Close()
	return s.err
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return bytes.Clone(b.buf.Bytes())
}
