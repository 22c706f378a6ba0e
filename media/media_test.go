package media_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	apperrors "github.com/kbukum/mediascribe/errors"
	"github.com/kbukum/mediascribe/logger"
	"github.com/kbukum/mediascribe/media"
	"github.com/kbukum/mediascribe/process"
	"github.com/kbukum/mediascribe/workspace"
)

func stdoutRunner(out string, err error) media.Runner {
	return func(context.Context, process.Command) (*process.Result, error) {
		return &process.Result{Stdout: []byte(out)}, err
	}
}

func TestInspectorDuration(t *testing.T) {
	p := media.NewInspector("ffprobe", stdoutRunner("123.456000\n", nil))
	d, err := p.Duration(context.Background(), "in.mp4")
	if err != nil {
		t.Fatalf("Duration: %v", err)
	}
	if d != 123.456 {
		t.Errorf("expected 123.456, got %v", d)
	}
}

func TestInspectorDurationUnavailable(t *testing.T) {
	tests := []struct {
		name string
		run  media.Runner
	}{
		{"ffprobe fails", stdoutRunner("", errors.New("exit 1"))},
		{"not a number", stdoutRunner("N/A\n", nil)},
		{"zero", stdoutRunner("0.000\n", nil)},
		{"negative", stdoutRunner("-4\n", nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := media.NewInspector("ffprobe", tt.run).Duration(context.Background(), "in.mp4")
			if !apperrors.IsCode(err, apperrors.ErrCodeDurationUnavailable) {
				t.Errorf("expected DURATION_UNAVAILABLE, got %v", err)
			}
		})
	}
}

func TestInspectorHasAudio(t *testing.T) {
	ok, err := media.NewInspector("ffprobe", stdoutRunner("1\n", nil)).HasAudio(context.Background(), "in.mp4")
	if err != nil || !ok {
		t.Errorf("expected audio, got %v %v", ok, err)
	}
	ok, err = media.NewInspector("ffprobe", stdoutRunner("\n", nil)).HasAudio(context.Background(), "in.mp4")
	if err != nil || ok {
		t.Errorf("expected no audio, got %v %v", ok, err)
	}
}

func TestQualitySampleRate(t *testing.T) {
	tests := map[media.Quality]int{
		media.QualityLow:    8000,
		media.QualityMedium: 16000,
		media.QualityHigh:   44100,
		"bogus":             16000,
	}
	for q, want := range tests {
		if got := q.SampleRate(); got != want {
			t.Errorf("%s: expected %d, got %d", q, want, got)
		}
	}
}

// ffmpegFake writes size bytes to the output path (the last argument) unless
// fail reports that the attempt should fail.
type ffmpegFake struct {
	size  int
	fail  func(args []string) (stderr string, failed bool)
	calls [][]string
}

func (f *ffmpegFake) run(_ context.Context, cmd process.Command) (*process.Result, error) {
	f.calls = append(f.calls, cmd.Args)
	if f.fail != nil {
		if stderr, failed := f.fail(cmd.Args); failed {
			res := &process.Result{Stderr: []byte(stderr), ExitCode: 1}
			return res, &process.ExitError{Binary: cmd.Binary, ExitCode: 1, Stderr: res.StderrTail(5), Err: errors.New("exit status 1")}
		}
	}
	out := cmd.Args[len(cmd.Args)-1]
	if err := os.WriteFile(out, make([]byte, f.size), 0o600); err != nil {
		return nil, err
	}
	return &process.Result{}, nil
}

func newScope(t *testing.T) *workspace.Scope {
	t.Helper()
	m, err := workspace.NewManager(t.TempDir(), logger.Nop())
	if err != nil {
		t.Fatal(err)
	}
	s, err := m.Acquire("test")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(s.Release)
	return s
}

func newExtractor(f *ffmpegFake) *media.Extractor {
	cfg := media.Config{}
	cfg.ApplyDefaults()
	return media.NewExtractor(cfg, f.run, logger.Nop())
}

func TestExtractConfiguredAttempt(t *testing.T) {
	scope := newScope(t)
	f := &ffmpegFake{size: 4096}
	art, err := newExtractor(f).Extract(context.Background(), scope, "in.mp4", nil, media.QualityHigh)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if art.Format != "wav" || art.SampleRate != 44100 || art.Size != 4096 {
		t.Errorf("unexpected artifact %+v", art)
	}
	if art.Dir != scope.Dir() || filepath.Dir(art.Path) != art.Dir {
		t.Errorf("artifact outside scope: dir %s path %s", art.Dir, art.Path)
	}
	if !slices.Contains(scope.Files(), art.Path) {
		t.Error("artifact not registered with scope")
	}
	if len(f.calls) != 1 || !slices.Contains(f.calls[0], "pcm_s16le") || !slices.Contains(f.calls[0], "44100") {
		t.Errorf("unexpected ffmpeg calls %v", f.calls)
	}
}

func TestExtractRangeArgs(t *testing.T) {
	f := &ffmpegFake{size: 4096}
	_, err := newExtractor(f).Extract(context.Background(), newScope(t), "in.mp4",
		&media.TimeRange{Start: 60, End: 90}, media.QualityMedium)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	args := strings.Join(f.calls[0], " ")
	if !strings.Contains(args, "-ss 60.000 -t 30.000 -i in.mp4") {
		t.Errorf("range not passed before input: %s", args)
	}
}

func TestExtractFallsBackToLossy(t *testing.T) {
	f := &ffmpegFake{size: 4096, fail: func(args []string) (string, bool) {
		return "Unknown encoder", !slices.Contains(args, "libmp3lame")
	}}
	art, err := newExtractor(f).Extract(context.Background(), newScope(t), "in.mp4", nil, media.QualityMedium)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if art.Format != "mp3" || len(f.calls) != 3 {
		t.Errorf("expected mp3 after 3 calls, got %+v after %d", art, len(f.calls))
	}
}

func TestExtractAggregatesFailures(t *testing.T) {
	scope := newScope(t)
	f := &ffmpegFake{size: 4096, fail: func([]string) (string, bool) { return "Invalid data found", true }}
	_, err := newExtractor(f).Extract(context.Background(), scope, "in.mp4", nil, media.QualityMedium)
	appErr, ok := apperrors.AsAppError(err)
	if !ok || appErr.Code != apperrors.ErrCodeExtractionFailed {
		t.Fatalf("expected EXTRACTION_FAILED, got %v", err)
	}
	attempts := appErr.Details["attempts"].([]string)
	if len(attempts) != 3 {
		t.Errorf("expected 3 aggregated attempts, got %v", attempts)
	}
	if len(scope.Files()) != 0 {
		t.Errorf("failed artifacts left registered: %v", scope.Files())
	}
}

func TestExtractNoAudioIsFatal(t *testing.T) {
	f := &ffmpegFake{fail: func([]string) (string, bool) {
		return "Output file #0 does not contain any stream", true
	}}
	_, err := newExtractor(f).Extract(context.Background(), newScope(t), "in.mp4", nil, media.QualityMedium)
	if !apperrors.IsCode(err, apperrors.ErrCodeNoAudioTrack) {
		t.Fatalf("expected NO_AUDIO_TRACK, got %v", err)
	}
	if len(f.calls) != 1 {
		t.Errorf("no-audio must not be retried, got %d calls", len(f.calls))
	}
}

func TestExtractRejectsTinyArtifact(t *testing.T) {
	f := &ffmpegFake{size: 100}
	_, err := newExtractor(f).Extract(context.Background(), newScope(t), "in.mp4", nil, media.QualityMedium)
	if !apperrors.IsCode(err, apperrors.ErrCodeExtractionFailed) {
		t.Fatalf("expected EXTRACTION_FAILED, got %v", err)
	}
}

func TestCheckSource(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "talk.mp4")
	if err := os.WriteFile(good, []byte("data"), 0o600); err != nil {
		t.Fatal(err)
	}
	bad := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(bad, []byte("data"), 0o600); err != nil {
		t.Fatal(err)
	}
	empty := filepath.Join(dir, "empty.wav")
	if err := os.WriteFile(empty, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	cfg := media.Config{}
	cfg.ApplyDefaults()

	size, err := media.CheckSource(good, cfg)
	if err != nil || size != 4 {
		t.Errorf("expected size 4, got %d %v", size, err)
	}
	for _, p := range []string{bad, empty, filepath.Join(dir, "missing.mp4"), dir} {
		if _, err := media.CheckSource(p, cfg); !apperrors.IsCode(err, apperrors.ErrCodeInvalidInput) {
			t.Errorf("%s: expected INVALID_INPUT, got %v", p, err)
		}
	}

	cfg.MaxFileSizeGB = 1e-9
	if _, err := media.CheckSource(good, cfg); !apperrors.IsCode(err, apperrors.ErrCodeInvalidInput) {
		t.Errorf("expected size limit error, got %v", err)
	}
}

func TestTranscriptName(t *testing.T) {
	tests := map[string]string{
		"/videos/meeting.mp4":      "meeting_transcript.txt",
		"/videos/a:b?c.mkv":        "a_b_c_transcript.txt",
		"/videos/.hidden.mp3":      "hidden_transcript.txt",
		"/videos/report.final.m4a": "report.final_transcript.txt",
	}
	for in, want := range tests {
		if got := media.TranscriptName(in); got != want {
			t.Errorf("%s: expected %s, got %s", in, want, got)
		}
	}
	if media.SafeFilename("...") != "untitled" {
		t.Error("expected untitled for dots-only name")
	}
}
