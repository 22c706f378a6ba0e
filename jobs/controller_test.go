package jobs_test

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kbukum/mediascribe/engine"
	"github.com/kbukum/mediascribe/errors"
	"github.com/kbukum/mediascribe/jobs"
	"github.com/kbukum/mediascribe/logger"
	"github.com/kbukum/mediascribe/testutil"
	"github.com/kbukum/mediascribe/workspace"
)

type recorder struct {
	mu     sync.Mutex
	events []jobs.Event
	hook   func(jobs.Event)
}

func (r *recorder) OnEvent(e jobs.Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	hook := r.hook
	r.mu.Unlock()
	if hook != nil {
		hook(e)
	}
}

func (r *recorder) ofType(t jobs.EventType) []jobs.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []jobs.Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func (r *recorder) all() []jobs.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]jobs.Event(nil), r.events...)
}

type fixture struct {
	ctrl      *jobs.Controller
	root      string
	dir       string
	rec       *recorder
	estimator *testutil.Estimator
	extractor *testutil.Extractor
	registry  *engine.Registry
}

// newFixture builds a controller over fakes. Every engine is registered as
// available and the fallback order follows the argument order.
func newFixture(t *testing.T, engines ...*testutil.Engine) *fixture {
	t.Helper()
	return newFixtureConfig(t, nil, engines...)
}

// newFixtureConfig is newFixture with a hook to adjust the controller config.
func newFixtureConfig(t *testing.T, tweak func(*jobs.Config), engines ...*testutil.Engine) *fixture {
	t.Helper()
	f := &fixture{
		root:      t.TempDir(),
		dir:       t.TempDir(),
		rec:       &recorder{},
		estimator: &testutil.Estimator{Seconds: 90},
		extractor: &testutil.Extractor{},
		registry:  engine.NewRegistry(),
	}
	var order []string
	for _, e := range engines {
		f.registry.Register(e.EngineName, e.Factory(), true)
		order = append(order, e.EngineName)
	}

	ws, err := workspace.NewManager(f.root, logger.Nop())
	if err != nil {
		t.Fatalf("workspace: %v", err)
	}
	cfg := jobs.Config{
		Estimator: f.estimator,
		Extractor: f.extractor,
		Selector:  engine.NewSelector(f.registry, order, logger.Nop()),
		Workspace: ws,
		Observer:  f.rec,
		Logger:    logger.Nop(),
	}
	if tweak != nil {
		tweak(&cfg)
	}
	f.ctrl, err = jobs.NewController(cfg)
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = f.ctrl.Close(ctx)
	})
	return f
}

func (f *fixture) source(t *testing.T, size int64) string {
	return testutil.SparseFile(t, f.dir, "talk.mp4", size)
}

func (f *fixture) run(t *testing.T, size int64, opts jobs.Options) (*jobs.Handle, *jobs.Outcome, error) {
	t.Helper()
	h, err := f.ctrl.Submit(f.source(t, size), opts)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	out, err := h.Wait(ctx)
	if ctx.Err() != nil {
		t.Fatalf("job did not finish: state %s", h.State())
	}
	return h, out, err
}

// assertNoWorkspace fails when any job directory is left under the root.
func (f *fixture) assertNoWorkspace(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(f.root)
	if err != nil {
		t.Fatalf("read root: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty workspace root, found %d entries", len(entries))
	}
}

// splitOptions makes a 3 MiB source split into three segments.
func splitOptions() jobs.Options {
	opts := jobs.DefaultOptions()
	opts.SizeThresholdGB = 0.001
	return opts
}

const (
	small = 1 << 20
	large = 3 << 20
)

func TestScenarioSmallFileSingleEngine(t *testing.T) {
	eng := testutil.NewEngine("primary", "  hello world \n")
	f := newFixture(t, eng)

	h, out, err := f.run(t, small, jobs.DefaultOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Text != "hello world" {
		t.Errorf("expected trimmed engine output, got %q", out.Text)
	}
	if strings.Contains(out.Text, "[Segment") {
		t.Error("single-segment transcript must not contain markers")
	}
	if out.Partial || out.Placeholder || out.Engine != "primary" {
		t.Errorf("unexpected outcome %+v", out)
	}
	if h.State() != jobs.StateCompleted || h.Progress() != 100 {
		t.Errorf("unexpected final state %s / %d", h.State(), h.Progress())
	}
	if r := f.extractor.Ranges(); len(r) != 1 || r[0] != nil {
		t.Errorf("expected one whole-file extraction, got %v", r)
	}
	if eng.Loads() != 1 || eng.Cleanups() != 1 {
		t.Errorf("expected one load and one cleanup, got %d/%d", eng.Loads(), eng.Cleanups())
	}
	if n := len(f.rec.ofType(jobs.EventResult)); n != 1 {
		t.Errorf("expected exactly one result event, got %d", n)
	}
	f.assertNoWorkspace(t)
}

func TestScenarioSplitIntoThreeSegments(t *testing.T) {
	eng := testutil.NewEngine("primary", "one", "two", "three")
	f := newFixture(t, eng)

	_, out, err := f.run(t, large, splitOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := strings.Join([]string{
		"[Segment 1: 00:00 - 00:30]", "one",
		"[Segment 2: 00:30 - 01:00]", "two",
		"[Segment 3: 01:00 - 01:30]", "three",
	}, "\n")
	if out.Text != want {
		t.Errorf("got\n%s\nwant\n%s", out.Text, want)
	}
	if out.Segments != 3 || out.Skipped != 0 {
		t.Errorf("unexpected counts %+v", out)
	}

	ranges := f.extractor.Ranges()
	if len(ranges) != 3 {
		t.Fatalf("expected 3 extractions, got %d", len(ranges))
	}
	for i, r := range ranges {
		if r == nil || r.Start != float64(i*30) || r.End != float64((i+1)*30) {
			t.Errorf("segment %d: unexpected range %+v", i, r)
		}
	}
	if eng.Loads() != 1 {
		t.Errorf("engine must be loaded once per job, got %d", eng.Loads())
	}

	segs := f.rec.ofType(jobs.EventSegmentProgress)
	if len(segs) != 6 {
		t.Errorf("expected 6 segment_progress events, got %d", len(segs))
	}
	if last := segs[len(segs)-1].Segment; last.Index != 3 || last.Total != 3 {
		t.Errorf("unexpected last segment progress %+v", last)
	}
	f.assertNoWorkspace(t)
}

func TestProgressIsMonotonicWithCheckpoints(t *testing.T) {
	f := newFixture(t, testutil.NewEngine("primary", "a", "b", "c"))
	if _, _, err := f.run(t, large, splitOptions()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	progress := f.rec.ofType(jobs.EventProgress)
	if progress[0].Progress != 0 || progress[len(progress)-1].Progress != 100 {
		t.Errorf("progress must start at 0 and end at 100, got %d..%d",
			progress[0].Progress, progress[len(progress)-1].Progress)
	}
	seen := map[int]bool{}
	for i, e := range progress {
		seen[e.Progress] = true
		if i > 0 && e.Progress <= progress[i-1].Progress {
			t.Errorf("progress not increasing at %d: %d after %d", i, e.Progress, progress[i-1].Progress)
		}
	}
	for _, checkpoint := range []int{0, 10, 30, 50, 70, 90, 100} {
		if !seen[checkpoint] {
			t.Errorf("missing progress checkpoint %d", checkpoint)
		}
	}

	events := f.rec.all()
	for i, e := range events {
		if e.Seq != int64(i+1) {
			t.Fatalf("event %d has seq %d", i, e.Seq)
		}
		if e.JobID == "" || e.Timestamp.IsZero() {
			t.Fatalf("event %d missing identity: %+v", i, e)
		}
	}
	if !events[len(events)-1].Terminal() {
		t.Error("last event must be the terminal state change")
	}
}

func TestScenarioFallbackToSecondEngine(t *testing.T) {
	primary := testutil.NewEngine("primary", "never")
	backup := testutil.NewEngine("backup", "from backup")
	f := newFixture(t, primary, backup)
	if err := f.registry.SetAvailable("primary", false, "not installed"); err != nil {
		t.Fatal(err)
	}

	opts := jobs.DefaultOptions()
	opts.Engine = "primary"
	_, out, err := f.run(t, small, opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Engine != "backup" || out.Text != "from backup" {
		t.Errorf("unexpected outcome %+v", out)
	}
	if primary.Loads() != 0 {
		t.Error("unavailable engine must not be loaded")
	}

	var notice *jobs.Event
	for _, e := range f.rec.ofType(jobs.EventStatus) {
		if e.Message == "primary unavailable, falling back to backup" {
			notice = &e
			break
		}
	}
	if notice == nil {
		t.Fatal("expected a fallback status notice")
	}
	for _, e := range f.rec.ofType(jobs.EventSegmentProgress) {
		if e.Segment.Label == "transcribing" && e.Seq < notice.Seq {
			t.Error("fallback notice must precede transcription")
		}
	}
}

func TestScenarioAllExtractionsFail(t *testing.T) {
	eng := testutil.NewEngine("primary", "unused")
	f := newFixture(t, eng)
	f.extractor.Fail = func(int) error {
		return errors.ExtractionFailed("talk.mp4", []error{fmt.Errorf("decoder exploded")})
	}

	h, out, err := f.run(t, large, splitOptions())
	if out != nil {
		t.Errorf("expected no outcome, got %+v", out)
	}
	if !errors.IsCode(err, errors.ErrCodeEmptyTranscript) {
		t.Fatalf("expected EMPTY_TRANSCRIPT, got %v", err)
	}
	if appErr := h.Err(); appErr.Details["skipped"] != 3 {
		t.Errorf("expected 3 skipped segments in details, got %v", appErr.Details)
	}
	if h.State() != jobs.StateFailed {
		t.Errorf("expected failed, got %s", h.State())
	}
	if eng.Calls() != 0 {
		t.Errorf("engine must not be called, got %d calls", eng.Calls())
	}
	if n := len(f.rec.ofType(jobs.EventResult)); n != 0 {
		t.Errorf("expected no result event, got %d", n)
	}
	if n := len(f.rec.ofType(jobs.EventDetail)); n != 3 {
		t.Errorf("expected 3 detail events, got %d", n)
	}
	errs := f.rec.ofType(jobs.EventError)
	if len(errs) != 1 || errs[0].Code != errors.ErrCodeEmptyTranscript || errs[0].Detail == "" {
		t.Errorf("expected one EMPTY_TRANSCRIPT error event, got %+v", errs)
	}
	if eng.Cleanups() != 1 {
		t.Errorf("engine must be cleaned up, got %d", eng.Cleanups())
	}
	f.assertNoWorkspace(t)
}

func TestScenarioCancelBetweenSegments(t *testing.T) {
	eng := testutil.NewEngine("primary", "one", "two", "three")
	f := newFixture(t, eng)
	// Segment 1 of 3 ends at progress 50.
	f.rec.hook = func(e jobs.Event) {
		if e.Type == jobs.EventProgress && e.Progress == 50 {
			_ = f.ctrl.Cancel(e.JobID)
		}
	}

	h, out, err := f.run(t, large, splitOptions())
	if !errors.Is(err, jobs.ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	if out != nil {
		t.Error("cancelled job must not return an outcome")
	}
	if h.State() != jobs.StateCancelled {
		t.Errorf("expected cancelled, got %s", h.State())
	}
	if f.extractor.Calls() != 1 || eng.Calls() != 1 {
		t.Errorf("expected exactly one segment processed, got %d extractions / %d transcriptions",
			f.extractor.Calls(), eng.Calls())
	}
	if n := len(f.rec.ofType(jobs.EventResult)); n != 0 {
		t.Errorf("expected no result event, got %d", n)
	}
	if n := len(f.rec.ofType(jobs.EventError)); n != 0 {
		t.Errorf("cancellation is not an error, got %d error events", n)
	}
	if eng.Cleanups() != 1 {
		t.Errorf("engine must be cleaned up, got %d", eng.Cleanups())
	}
	f.assertNoWorkspace(t)
}

func TestCancelIsIdempotent(t *testing.T) {
	f := newFixture(t, testutil.NewEngine("primary", "text"))
	h, _, err := f.run(t, small, jobs.DefaultOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	h.Cancel()
	h.Cancel()
	if err := f.ctrl.Cancel(h.ID()); err != nil {
		t.Errorf("cancel after completion must not fail: %v", err)
	}
	if h.State() != jobs.StateCompleted {
		t.Errorf("cancel after completion changed state to %s", h.State())
	}
	if err := f.ctrl.Cancel("missing"); !errors.IsCode(err, errors.ErrCodeNotFound) {
		t.Errorf("expected NOT_FOUND for unknown job, got %v", err)
	}
}

func TestCancelBeforeStart(t *testing.T) {
	eng := testutil.NewEngine("primary", "text")
	f := newFixture(t, eng)
	block := make(chan struct{})
	eng.BeforeTranscribe = func(int, engine.Request) { <-block }

	first, err := f.ctrl.Submit(f.source(t, small), jobs.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	second, err := f.ctrl.Submit(testutil.SparseFile(t, f.dir, "other.wav", small), jobs.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	second.Cancel()
	close(block)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := first.Wait(ctx); err != nil {
		t.Errorf("first job: %v", err)
	}
	if _, err := second.Wait(ctx); !errors.Is(err, jobs.ErrCancelled) {
		t.Errorf("second job: expected ErrCancelled, got %v", err)
	}
	if eng.Calls() != 1 {
		t.Errorf("cancelled job must not reach the engine, got %d calls", eng.Calls())
	}
	f.assertNoWorkspace(t)
}

func TestSubmitRejectsInvalidOptions(t *testing.T) {
	f := newFixture(t, testutil.NewEngine("primary"))
	opts := jobs.DefaultOptions()
	opts.Language = "xx"
	opts.BeamSize = 0
	opts.Quality = "ultra"

	h, err := f.ctrl.Submit(f.source(t, small), opts)
	if h != nil {
		t.Error("no job may be created for invalid options")
	}
	if !errors.IsCode(err, errors.ErrCodeInvalidInput) {
		t.Fatalf("expected INVALID_INPUT, got %v", err)
	}
	for _, field := range []string{"language", "beam_size", "quality"} {
		if !strings.Contains(err.Error(), field) {
			t.Errorf("error %q does not mention %s", err.Error(), field)
		}
	}
	if len(f.ctrl.List()) != 0 {
		t.Error("List must stay empty")
	}
}

func TestFatalErrors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, f *fixture) string
		code  errors.ErrorCode
	}{
		{
			name: "missing source",
			setup: func(t *testing.T, f *fixture) string {
				return f.dir + "/missing.mp4"
			},
			code: errors.ErrCodeInvalidInput,
		},
		{
			name: "unsupported extension",
			setup: func(t *testing.T, f *fixture) string {
				return testutil.SparseFile(t, f.dir, "notes.txt", small)
			},
			code: errors.ErrCodeInvalidInput,
		},
		{
			name: "duration unavailable",
			setup: func(t *testing.T, f *fixture) string {
				f.estimator.Err = fmt.Errorf("ffprobe: invalid data")
				return testutil.SparseFile(t, f.dir, "a.mp4", small)
			},
			code: errors.ErrCodeDurationUnavailable,
		},
		{
			name: "zero duration",
			setup: func(t *testing.T, f *fixture) string {
				f.estimator.Seconds = 0
				return testutil.SparseFile(t, f.dir, "a.mp4", small)
			},
			code: errors.ErrCodeDurationUnavailable,
		},
		{
			name: "no audio track",
			setup: func(t *testing.T, f *fixture) string {
				f.estimator.NoAudio = true
				return testutil.SparseFile(t, f.dir, "a.mp4", small)
			},
			code: errors.ErrCodeNoAudioTrack,
		},
		{
			name: "no audio reported by extractor",
			setup: func(t *testing.T, f *fixture) string {
				f.extractor.Fail = func(int) error { return errors.NoAudioTrack("a.mp4") }
				return testutil.SparseFile(t, f.dir, "a.mp4", small)
			},
			code: errors.ErrCodeNoAudioTrack,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, testutil.NewEngine("primary", "text"))
			h, err := f.ctrl.Submit(tc.setup(t, f), jobs.DefaultOptions())
			if err != nil {
				t.Fatalf("Submit: %v", err)
			}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_, err = h.Wait(ctx)
			if !errors.IsCode(err, tc.code) {
				t.Fatalf("expected %s, got %v", tc.code, err)
			}
			if h.State() != jobs.StateFailed {
				t.Errorf("expected failed, got %s", h.State())
			}
			if n := len(f.rec.ofType(jobs.EventError)); n != 1 {
				t.Errorf("expected exactly one error event, got %d", n)
			}
			info := h.Info()
			if info.Error == nil || info.Error.Code != tc.code || info.FinishedAt == nil {
				t.Errorf("unexpected info %+v", info)
			}
			f.assertNoWorkspace(t)
		})
	}
}

func TestNoEngineAvailable(t *testing.T) {
	a := testutil.NewEngine("a")
	a.LoadErr = fmt.Errorf("model missing")
	b := testutil.NewEngine("b")
	f := newFixture(t, a, b)
	if err := f.registry.SetAvailable("b", false, "python not found"); err != nil {
		t.Fatal(err)
	}

	_, _, err := f.run(t, small, jobs.DefaultOptions())
	if !errors.IsCode(err, errors.ErrCodeNoEngineAvailable) {
		t.Fatalf("expected NO_ENGINE_AVAILABLE, got %v", err)
	}
	if a.Cleanups() != 1 {
		t.Errorf("engine that failed to load must be cleaned up, got %d", a.Cleanups())
	}
	if f.extractor.Calls() != 0 {
		t.Error("no extraction may run without an engine")
	}
	f.assertNoWorkspace(t)
}

func TestExtractionFailureSkipsOneSegment(t *testing.T) {
	eng := testutil.NewEngine("primary", "one", "three")
	f := newFixture(t, eng)
	f.extractor.Fail = func(call int) error {
		if call == 1 {
			return errors.ExtractionFailed("talk.mp4", []error{fmt.Errorf("invalid data found when processing input")})
		}
		return nil
	}

	h, out, err := f.run(t, large, splitOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.State() != jobs.StateCompleted {
		t.Errorf("expected completed, got %s", h.State())
	}
	if !out.Partial || out.Segments != 3 || out.Skipped != 1 {
		t.Errorf("expected partial outcome with one skipped segment, got %+v", out)
	}
	if out.Note != "1 of 3 segments could not be transcribed" {
		t.Errorf("unexpected note %q", out.Note)
	}
	want := strings.Join([]string{
		"[Segment 1: 00:00 - 00:30]", "one",
		"[Segment 3: 01:00 - 01:30]", "three",
	}, "\n")
	if out.Text != want {
		t.Errorf("got\n%s\nwant\n%s", out.Text, want)
	}
	if eng.Calls() != 2 {
		t.Errorf("engine must only see the extracted segments, got %d calls", eng.Calls())
	}

	details := f.rec.ofType(jobs.EventDetail)
	if len(details) != 1 {
		t.Fatalf("expected one detail event, got %+v", details)
	}
	d := details[0]
	if d.Code != errors.ErrCodeExtractionFailed || !strings.Contains(d.Message, "segment 2 of 3") {
		t.Errorf("unexpected detail event %+v", d)
	}
	if !strings.Contains(d.Detail, "invalid data found") {
		t.Errorf("detail lacks the attempt error: %q", d.Detail)
	}
	results := f.rec.ofType(jobs.EventResult)
	if len(results) != 1 || !results[0].Result.Partial {
		t.Errorf("expected one partial result event, got %+v", results)
	}
	f.assertNoWorkspace(t)
}

func TestTranscribeErrorSkipsSegment(t *testing.T) {
	eng := testutil.NewEngine("primary", "one", "two", "three")
	eng.Errs = map[int]error{1: fmt.Errorf("cuda out of memory")}
	f := newFixture(t, eng)

	_, out, err := f.run(t, large, splitOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.Partial || out.Skipped != 1 || out.Note == "" {
		t.Errorf("expected partial outcome, got %+v", out)
	}
	if strings.Contains(out.Text, "two") || !strings.Contains(out.Text, "[Segment 3: 01:00 - 01:30]\nthree") {
		t.Errorf("unexpected text %q", out.Text)
	}
	details := f.rec.ofType(jobs.EventDetail)
	if len(details) != 1 || details[0].Code != errors.ErrCodeTranscribe {
		t.Errorf("expected one TRANSCRIBE_ERROR detail, got %+v", details)
	}
}

func TestPlaceholderOutputIsFlagged(t *testing.T) {
	eng := testutil.NewEngine("remote", engine.PlaceholderTag+" no API key configured")
	eng.Placeholder = true
	f := newFixture(t, eng)

	_, out, err := f.run(t, small, jobs.DefaultOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.Placeholder {
		t.Error("expected Placeholder outcome")
	}
	found := false
	for _, e := range f.rec.ofType(jobs.EventStatus) {
		if strings.Contains(e.Message, "placeholder") {
			found = true
		}
	}
	if !found {
		t.Error("expected a placeholder status notice")
	}
}

func TestTimestampsAreShiftedToSourceTime(t *testing.T) {
	eng := testutil.NewEngine("primary", "x", "y", "z")
	eng.Spans = [][]engine.Span{
		{{Start: 0, End: 2, Text: "first"}},
		{{Start: 5, End: 7, Text: "second"}},
		{{Start: 1, End: 3, Text: "third"}},
	}
	f := newFixture(t, eng)
	opts := splitOptions()
	opts.ShowTimestamps = true

	_, out, err := f.run(t, large, opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"[00:00 - 00:02] first", "[00:35 - 00:37] second", "[01:01 - 01:03] third"} {
		if !strings.Contains(out.Text, want) {
			t.Errorf("missing %q in\n%s", want, out.Text)
		}
	}
}

func TestEnginePanicBecomesInternalError(t *testing.T) {
	eng := testutil.NewEngine("primary", "x")
	eng.BeforeTranscribe = func(int, engine.Request) { panic("boom") }
	f := newFixture(t, eng)

	_, _, err := f.run(t, small, jobs.DefaultOptions())
	if !errors.IsCode(err, errors.ErrCodeInternal) {
		t.Fatalf("expected INTERNAL_ERROR, got %v", err)
	}
	if eng.Cleanups() != 1 {
		t.Errorf("engine must be cleaned up after a panic, got %d", eng.Cleanups())
	}
	f.assertNoWorkspace(t)
}

func TestGetAndList(t *testing.T) {
	f := newFixture(t, testutil.NewEngine("primary", "text"))
	h, _, err := f.run(t, small, jobs.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	got, err := f.ctrl.Get(h.ID())
	if err != nil || got != h {
		t.Errorf("Get returned %v, %v", got, err)
	}
	if _, err := f.ctrl.Get("nope"); !errors.IsCode(err, errors.ErrCodeNotFound) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
	if list := f.ctrl.List(); len(list) != 1 || list[0] != h {
		t.Errorf("unexpected list %v", list)
	}
	if evs := h.Events(0); len(evs) == 0 || !evs[len(evs)-1].Terminal() {
		t.Error("handle must retain its events")
	}
}

func TestCancelAfterRetentionPrune(t *testing.T) {
	f := newFixtureConfig(t, func(cfg *jobs.Config) { cfg.Retain = 1 }, testutil.NewEngine("primary", "text"))
	first, _, err := f.run(t, small, jobs.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	second, _, err := f.run(t, small, jobs.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}

	if _, err := f.ctrl.Get(first.ID()); !errors.IsCode(err, errors.ErrCodeNotFound) {
		t.Fatalf("first job should have been pruned, got %v", err)
	}
	if err := f.ctrl.Cancel(first.ID()); err != nil {
		t.Errorf("cancelling a pruned finished job must be a no-op, got %v", err)
	}
	if err := f.ctrl.Cancel(second.ID()); err != nil {
		t.Errorf("cancelling a retained finished job: %v", err)
	}
	if second.State() != jobs.StateCompleted {
		t.Errorf("cancel after completion changed the state to %s", second.State())
	}
	if err := f.ctrl.Cancel("never-issued"); !errors.IsCode(err, errors.ErrCodeNotFound) {
		t.Errorf("expected NOT_FOUND for an unknown id, got %v", err)
	}
}

func TestSubmitAfterClose(t *testing.T) {
	f := newFixture(t, testutil.NewEngine("primary", "text"))
	if err := f.ctrl.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := f.ctrl.Submit(f.source(t, small), jobs.DefaultOptions()); err == nil {
		t.Error("expected error after Close")
	}
}
