package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/kbukum/mediascribe/media"
)

// Estimator is a fixed media.DurationEstimator.
type Estimator struct {
	Seconds  float64
	Err      error
	NoAudio  bool
	AudioErr error
}

func (e *Estimator) Duration(context.Context, string) (float64, error) {
	return e.Seconds, e.Err
}

func (e *Estimator) HasAudio(context.Context, string) (bool, error) {
	return !e.NoAudio, e.AudioErr
}

// Extractor writes a small artifact into the scope for each call unless
// Fail returns an error for that call.
type Extractor struct {
	// Fail is consulted with the 0-based call number.
	Fail func(call int) error
	// BeforeExtract runs at the start of each call.
	BeforeExtract func(call int)

	mu     sync.Mutex
	calls  int
	ranges []*media.TimeRange
}

func (x *Extractor) Extract(_ context.Context, scope media.Scope, _ string, rng *media.TimeRange, q media.Quality) (*media.Artifact, error) {
	x.mu.Lock()
	call := x.calls
	x.calls++
	x.ranges = append(x.ranges, rng)
	x.mu.Unlock()

	if x.BeforeExtract != nil {
		x.BeforeExtract(call)
	}
	if x.Fail != nil {
		if err := x.Fail(call); err != nil {
			return nil, err
		}
	}
	path, err := scope.Path(fmt.Sprintf("artifact_%03d.wav", call))
	if err != nil {
		return nil, err
	}
	data := make([]byte, 2048)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return nil, err
	}
	return &media.Artifact{Path: path, Dir: scope.Dir(), Format: "wav", SampleRate: q.SampleRate(), Size: int64(len(data))}, nil
}

// Calls returns how many times Extract was called.
func (x *Extractor) Calls() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.calls
}

// Ranges returns the requested ranges in call order.
func (x *Extractor) Ranges() []*media.TimeRange {
	x.mu.Lock()
	defer x.mu.Unlock()
	return append([]*media.TimeRange(nil), x.ranges...)
}

// SparseFile creates name in dir with an apparent size of size bytes without
// writing them, so multi-gigabyte sources cost nothing.
func SparseFile(t testing.TB, dir, name string, size int64) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	if err := f.Truncate(size); err != nil {
		t.Fatalf("truncate %s: %v", path, err)
	}
	return path
}
