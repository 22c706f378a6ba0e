package media

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/kbukum/mediascribe/errors"
	"github.com/kbukum/mediascribe/logger"
	"github.com/kbukum/mediascribe/process"
	"github.com/kbukum/mediascribe/resilience"
)

// Scope is the part of a job workspace the extractor needs.
type Scope interface {
	Dir() string
	Path(name string) (string, error)
	Remove(path string) error
}

// TimeRange bounds an extraction to [Start, End) seconds.
type TimeRange struct {
	Start float64
	End   float64
}

// Duration returns End - Start.
func (r TimeRange) Duration() float64 { return r.End - r.Start }

// Artifact is a decoded audio file inside a job workspace.
type Artifact struct {
	Path string
	// Dir is the job workspace directory that owns Path.
	Dir        string
	Format     string
	SampleRate int
	Size       int64
}

// noAudioPatterns are ffmpeg stderr fragments reported for inputs without an audio stream.
var noAudioPatterns = []string{
	"does not contain any stream",
	"matches no streams",
}

// Extractor decodes audio with ffmpeg, falling back through simpler
// parameter sets when the configured one fails.
type Extractor struct {
	binary   string
	minBytes int64
	run      Runner
	log      *logger.Logger
}

// NewExtractor creates an ffmpeg-backed extractor. A nil run uses process.Run.
func NewExtractor(cfg Config, run Runner, log *logger.Logger) *Extractor {
	if run == nil {
		run = process.Run
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Extractor{
		binary:   cfg.FFmpeg,
		minBytes: cfg.MinArtifactBytes,
		run:      run,
		log:      log.WithComponent("extractor"),
	}
}

type attempt struct {
	name   string
	suffix string
	format string
	rate   int
	args   []string
}

// Extract decodes the audio of source, or of rng when non-nil, into scope.
//
// Attempts run in order: the configured PCM WAV at the quality's rate, WAV at
// 16 kHz with ffmpeg's default codec, then MP3. The first success wins. A
// missing audio stream fails immediately with NO_AUDIO_TRACK; otherwise all
// attempt errors are aggregated into EXTRACTION_FAILED.
func (e *Extractor) Extract(ctx context.Context, scope Scope, source string, rng *TimeRange, quality Quality) (*Artifact, error) {
	base := "audio"
	if rng != nil {
		if rng.Duration() <= 0 {
			return nil, errors.InvalidInput("range", fmt.Sprintf("empty time range %v-%v", rng.Start, rng.End))
		}
		base = fmt.Sprintf("audio_%d_%d", int64(rng.Start*1000), int64(rng.End*1000))
	}

	attempts := []attempt{
		{
			name: "configured", suffix: ".wav", format: "wav", rate: quality.SampleRate(),
			args: []string{"-acodec", "pcm_s16le", "-ar", strconv.Itoa(quality.SampleRate()), "-f", "wav"},
		},
		{
			name: "defaults", suffix: "_default.wav", format: "wav", rate: DefaultSampleRate,
			args: []string{"-ar", strconv.Itoa(DefaultSampleRate), "-f", "wav"},
		},
		{
			name: "lossy", suffix: ".mp3", format: "mp3", rate: DefaultSampleRate,
			args: []string{"-acodec", "libmp3lame", "-q:a", "4", "-ar", strconv.Itoa(DefaultSampleRate), "-f", "mp3"},
		},
	}

	steps := make([]resilience.Step[*Artifact], 0, len(attempts))
	for _, a := range attempts {
		steps = append(steps, resilience.Step[*Artifact]{
			Name: a.name,
			Run: func(ctx context.Context) (*Artifact, error) {
				return e.try(ctx, scope, source, rng, base, a)
			},
		})
	}

	art, err := resilience.Ladder(ctx, resilience.LadderConfig{
		Stop: func(err error) bool {
			return errors.IsCode(err, errors.ErrCodeNoAudioTrack) || ctx.Err() != nil
		},
		OnFailure: func(step string, err error) {
			e.log.Warn("extraction attempt failed", logger.Fields(
				logger.FieldSource, source, "attempt", step, logger.FieldError, err.Error()))
		},
	}, steps...)
	if err == nil {
		return art, nil
	}
	var ladderErr *resilience.LadderError
	if stderrors.As(err, &ladderErr) {
		return nil, errors.ExtractionFailed(source, ladderErr.Errors)
	}
	return nil, err
}

func (e *Extractor) try(ctx context.Context, scope Scope, source string, rng *TimeRange, base string, a attempt) (*Artifact, error) {
	out, err := scope.Path(base + a.suffix)
	if err != nil {
		return nil, err
	}

	args := []string{"-hide_banner", "-nostdin", "-y", "-loglevel", "error"}
	if rng != nil {
		args = append(args, "-ss", formatSeconds(rng.Start), "-t", formatSeconds(rng.Duration()))
	}
	args = append(args, "-i", source, "-vn", "-ac", "1")
	args = append(args, a.args...)
	args = append(args, out)

	cmd := process.Command{Binary: e.binary, Args: args}
	e.log.Debug("running ffmpeg", logger.Fields("attempt", a.name, "command", cmd.String()))
	res, runErr := e.run(ctx, cmd)
	if runErr != nil {
		_ = scope.Remove(out)
		if isNoAudio(res, runErr) {
			return nil, errors.NoAudioTrack(source)
		}
		return nil, runErr
	}

	info, err := os.Stat(out)
	if err != nil {
		_ = scope.Remove(out)
		return nil, fmt.Errorf("artifact missing after ffmpeg: %w", err)
	}
	if info.Size() < e.minBytes {
		_ = scope.Remove(out)
		return nil, fmt.Errorf("artifact too small: %d bytes (minimum %d)", info.Size(), e.minBytes)
	}

	e.log.Debug("audio extracted", logger.Fields(
		logger.FieldSource, source, "attempt", a.name, "bytes", info.Size()))
	return &Artifact{Path: out, Dir: scope.Dir(), Format: a.format, SampleRate: a.rate, Size: info.Size()}, nil
}

func isNoAudio(res *process.Result, err error) bool {
	text := err.Error()
	if res != nil {
		text += "\n" + string(res.Stderr)
	}
	for _, p := range noAudioPatterns {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64)
}
