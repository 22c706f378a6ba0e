// Package workspace owns the private working directory of each job and
// guarantees its removal.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/kbukum/mediascribe/logger"
)

const dirPrefix = "job-"

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// Manager hands out one scoped directory per job under a shared root.
type Manager struct {
	root string
	log  *logger.Logger
}

// NewManager creates a manager rooted at root, creating it if needed.
func NewManager(root string, log *logger.Logger) (*Manager, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("workspace: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("workspace: create root: %w", err)
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Manager{root: abs, log: log.WithComponent("workspace")}, nil
}

// Root returns the absolute root directory.
func (m *Manager) Root() string { return m.root }

// Acquire creates a private (0700) directory for jobID.
func (m *Manager) Acquire(jobID string) (*Scope, error) {
	pattern := dirPrefix + unsafeChars.ReplaceAllString(jobID, "_") + "-"
	dir, err := os.MkdirTemp(m.root, pattern)
	if err != nil {
		return nil, fmt.Errorf("workspace: create job directory: %w", err)
	}
	m.log.Debug("workspace acquired", logger.Fields(logger.FieldJobID, jobID, "dir", dir))
	return &Scope{dir: dir, jobID: jobID, log: m.log}, nil
}

// Sweep removes job directories under the root last modified before
// now-maxAge. They are leftovers of processes that died without cleanup.
func (m *Manager) Sweep(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		return 0, fmt.Errorf("workspace: read root: %w", err)
	}
	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), dirPrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(m.root, e.Name())
		if err := os.RemoveAll(path); err != nil {
			m.log.Warn("sweep failed", logger.Fields("dir", path, logger.FieldError, err.Error()))
			continue
		}
		removed++
	}
	return removed, nil
}

// Scope is one job's working directory. It is owned by a single job and is
// not safe for concurrent registration.
type Scope struct {
	dir   string
	jobID string
	log   *logger.Logger
	files []string
	once  sync.Once
}

// Dir returns the absolute directory of the scope.
func (s *Scope) Dir() string { return s.dir }

// Path returns a registered path for name inside the scope. name must be a
// plain file name.
func (s *Scope) Path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return "", fmt.Errorf("workspace: invalid artifact name %q", name)
	}
	p := filepath.Join(s.dir, name)
	return p, s.Register(p)
}

// Register records path for cleanup. Paths outside the scope are rejected.
func (s *Scope) Register(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("workspace: resolve path: %w", err)
	}
	rel, err := filepath.Rel(s.dir, abs)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("workspace: %s is outside %s", path, s.dir)
	}
	if !slices.Contains(s.files, abs) {
		s.files = append(s.files, abs)
	}
	return nil
}

// Files returns the registered artifact paths in registration order.
func (s *Scope) Files() []string { return slices.Clone(s.files) }

// Remove deletes a single registered artifact before the scope is released.
// A missing file is not an error.
func (s *Scope) Remove(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("workspace: resolve path: %w", err)
	}
	idx := slices.Index(s.files, abs)
	if idx < 0 {
		return fmt.Errorf("workspace: %s is not registered", path)
	}
	s.files = slices.Delete(s.files, idx, idx+1)
	if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("workspace: remove artifact: %w", err)
	}
	return nil
}

// Release recursively removes the scope directory. It is idempotent and
// only logs removal errors.
func (s *Scope) Release() {
	s.once.Do(func() {
		if err := os.RemoveAll(s.dir); err != nil {
			s.log.Warn("workspace cleanup failed", logger.Fields(
				logger.FieldJobID, s.jobID, "dir", s.dir, logger.FieldError, err.Error()))
			return
		}
		s.files = nil
		s.log.Debug("workspace released", logger.Fields(logger.FieldJobID, s.jobID))
	})
}
