package workspace_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kbukum/mediascribe/logger"
	"github.com/kbukum/mediascribe/workspace"
)

func newManager(t *testing.T) *workspace.Manager {
	t.Helper()
	m, err := workspace.NewManager(t.TempDir(), logger.Nop())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

func TestAcquireCreatesPrivateDir(t *testing.T) {
	m := newManager(t)
	s, err := m.Acquire("job/1")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer s.Release()

	info, err := os.Stat(s.Dir())
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if !info.IsDir() {
		t.Fatal("scope dir is not a directory")
	}
	if perm := info.Mode().Perm(); perm != 0o700 {
		t.Errorf("expected 0700, got %o", perm)
	}
	if filepath.Dir(s.Dir()) != m.Root() {
		t.Errorf("scope %s not directly under root %s", s.Dir(), m.Root())
	}
}

func TestScopesAreDistinct(t *testing.T) {
	m := newManager(t)
	a, _ := m.Acquire("same")
	b, _ := m.Acquire("same")
	defer a.Release()
	defer b.Release()
	if a.Dir() == b.Dir() {
		t.Error("two acquisitions share a directory")
	}
}

func TestPathRegistersArtifact(t *testing.T) {
	m := newManager(t)
	s, _ := m.Acquire("j")
	defer s.Release()

	p, err := s.Path("segment_000.wav")
	if err != nil {
		t.Fatalf("Path: %v", err)
	}
	if filepath.Dir(p) != s.Dir() {
		t.Errorf("artifact %s outside scope", p)
	}
	if files := s.Files(); len(files) != 1 || files[0] != p {
		t.Errorf("unexpected registrations %v", files)
	}

	for _, bad := range []string{"", "..", "../x.wav", "a/b.wav"} {
		if _, err := s.Path(bad); err == nil {
			t.Errorf("expected error for name %q", bad)
		}
	}
}

func TestRegisterRejectsOutside(t *testing.T) {
	m := newManager(t)
	s, _ := m.Acquire("j")
	defer s.Release()

	if err := s.Register(filepath.Join(m.Root(), "elsewhere.wav")); err == nil {
		t.Error("expected error for path outside scope")
	}
	if err := s.Register(s.Dir()); err == nil {
		t.Error("expected error for the scope dir itself")
	}
}

func TestRemoveArtifact(t *testing.T) {
	m := newManager(t)
	s, _ := m.Acquire("j")
	defer s.Release()

	p, _ := s.Path("a.wav")
	if err := os.WriteFile(p, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := s.Remove(p); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(p); !os.IsNotExist(err) {
		t.Error("artifact still exists")
	}
	if len(s.Files()) != 0 {
		t.Error("artifact still registered")
	}
	if err := s.Remove(p); err == nil {
		t.Error("expected error removing unregistered path")
	}
}

func TestReleaseRemovesTreeAndIsIdempotent(t *testing.T) {
	m := newManager(t)
	s, _ := m.Acquire("j")
	p, _ := s.Path("a.wav")
	if err := os.WriteFile(p, []byte("data"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(s.Dir(), "nested", "deeper"), 0o700); err != nil {
		t.Fatal(err)
	}

	s.Release()
	s.Release()

	if _, err := os.Stat(s.Dir()); !os.IsNotExist(err) {
		t.Errorf("scope dir still exists after Release: %v", err)
	}
}

func TestSweepRemovesStaleJobDirs(t *testing.T) {
	m := newManager(t)
	stale, _ := m.Acquire("old")
	fresh, _ := m.Acquire("new")
	defer fresh.Release()

	old := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(stale.Dir(), old, old); err != nil {
		t.Fatal(err)
	}
	other := filepath.Join(m.Root(), "not-a-job")
	if err := os.Mkdir(other, 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(other, old, old); err != nil {
		t.Fatal(err)
	}

	n, err := m.Sweep(time.Hour)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 removed, got %d", n)
	}
	if _, err := os.Stat(stale.Dir()); !os.IsNotExist(err) {
		t.Error("stale dir not removed")
	}
	if _, err := os.Stat(fresh.Dir()); err != nil {
		t.Error("fresh dir removed")
	}
	if _, err := os.Stat(other); err != nil {
		t.Error("non-job dir removed")
	}
}

func TestConfigDefaults(t *testing.T) {
	var c workspace.Config
	c.ApplyDefaults()
	if c.Root == "" {
		t.Fatal("expected default root")
	}
	if err := c.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
	c.StaleAfter = -1
	if err := c.Validate(); err == nil {
		t.Error("expected error for negative stale_after")
	}
}
