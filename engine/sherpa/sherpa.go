// Package sherpa runs a Whisper model in-process through sherpa-onnx.
package sherpa

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	sherpa "github.com/k2-fsa/sherpa-onnx-go/sherpa_onnx"

	"github.com/kbukum/mediascribe/engine"
	"github.com/kbukum/mediascribe/logger"
)

// Name is the registry name of this engine.
const Name = "sherpa"

// chunkSeconds is the longest window Whisper decodes natively.
const chunkSeconds = 30

var (
	encoderCandidates = []string{
		"encoder.int8.onnx", "encoder.onnx",
		"large-v3-encoder.int8.onnx", "large-v3-encoder.onnx",
		"turbo-encoder.int8.onnx", "turbo-encoder.onnx",
	}
	decoderCandidates = []string{
		"decoder.int8.onnx", "decoder.onnx",
		"large-v3-decoder.int8.onnx", "large-v3-decoder.onnx",
		"turbo-decoder.int8.onnx", "turbo-decoder.onnx",
	}
	tokensCandidates = []string{"tokens.txt", "large-v3-tokens.txt"}
)

// Config holds sherpa-onnx settings.
type Config struct {
	// ModelDir holds one directory per model name, or the model files directly.
	ModelDir   string `mapstructure:"model_dir" json:"model_dir"`
	NumThreads int    `mapstructure:"num_threads" json:"num_threads"`
	Provider   string `mapstructure:"provider" json:"provider"`
}

// ApplyDefaults fills in zero-valued fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.NumThreads == 0 {
		c.NumThreads = min(runtime.NumCPU(), 4)
	}
	if c.Provider == "" {
		c.Provider = "cpu"
	}
}

// Available reports whether a model directory is configured and exists.
func Available(cfg Config) (bool, string) {
	if cfg.ModelDir == "" {
		return false, "model_dir not configured"
	}
	if info, err := os.Stat(cfg.ModelDir); err != nil || !info.IsDir() {
		return false, fmt.Sprintf("model_dir %s not found", cfg.ModelDir)
	}
	return true, ""
}

// Factory returns an engine.Factory for sherpa-onnx.
func Factory(cfg Config, log *logger.Logger) engine.Factory {
	return func(opts engine.Options) (engine.Engine, error) {
		return New(cfg, opts, log), nil
	}
}

// Engine holds one sherpa-onnx offline recognizer for the whole job.
type Engine struct {
	cfg  Config
	opts engine.Options
	log  *logger.Logger

	mu         sync.Mutex
	recognizer *sherpa.OfflineRecognizer
}

// New creates the engine.
func New(cfg Config, opts engine.Options, log *logger.Logger) *Engine {
	cfg.ApplyDefaults()
	if log == nil {
		log = logger.Nop()
	}
	return &Engine{cfg: cfg, opts: opts, log: log.WithComponent(Name)}
}

func (e *Engine) Name() string      { return Name }
func (e *Engine) Kind() engine.Kind { return engine.KindLocal }

// ModelFiles locates the encoder, decoder and tokens of the configured model.
func (e *Engine) ModelFiles() (encoder, decoder, tokens string, err error) {
	dirs := []string{filepath.Join(e.cfg.ModelDir, e.opts.Model), e.cfg.ModelDir}
	for _, dir := range dirs {
		encoder = findFile(dir, encoderCandidates)
		decoder = findFile(dir, decoderCandidates)
		tokens = findFile(dir, tokensCandidates)
		if encoder != "" && decoder != "" && tokens != "" {
			return encoder, decoder, tokens, nil
		}
	}
	return "", "", "", fmt.Errorf("sherpa: whisper model %q not found under %s", e.opts.Model, e.cfg.ModelDir)
}

// Load creates the recognizer. It is reused for every segment.
func (e *Engine) Load(_ context.Context, progress engine.ProgressFunc, status engine.StatusFunc) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	p := engine.NewProgress(progress)
	p.Report(20)
	encoder, decoder, tokens, err := e.ModelFiles()
	if err != nil {
		return err
	}
	status.Notify(fmt.Sprintf("loading sherpa-onnx whisper model from %s", filepath.Dir(encoder)))

	cfg := sherpa.OfflineRecognizerConfig{
		FeatConfig: sherpa.FeatureConfig{SampleRate: 16000, FeatureDim: 80},
		ModelConfig: sherpa.OfflineModelConfig{
			Whisper: sherpa.OfflineWhisperModelConfig{
				Encoder:  encoder,
				Decoder:  decoder,
				Language: e.opts.LanguageHint(),
				Task:     "transcribe",
			},
			Tokens:     tokens,
			NumThreads: e.cfg.NumThreads,
			Provider:   e.cfg.Provider,
		},
		DecodingMethod: "greedy_search",
	}
	rec := sherpa.NewOfflineRecognizer(&cfg)
	if rec == nil {
		return fmt.Errorf("sherpa: failed to create recognizer from %s", filepath.Dir(encoder))
	}
	e.recognizer = rec
	p.Report(100)
	return nil
}

// Transcribe decodes a WAV artifact in 30 second windows. Each window becomes
// one span.
func (e *Engine) Transcribe(ctx context.Context, req engine.Request) (*engine.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.recognizer == nil {
		return nil, fmt.Errorf("sherpa: engine not loaded")
	}

	p := engine.NewProgress(req.Progress)
	p.Report(10)
	wave := sherpa.ReadWave(req.AudioPath)
	if wave == nil || len(wave.Samples) == 0 {
		return nil, fmt.Errorf("sherpa: cannot read %s as WAV", filepath.Base(req.AudioPath))
	}

	windows := Windows(len(wave.Samples), wave.SampleRate, chunkSeconds)
	res := &engine.Result{
		Language: e.opts.LanguageHint(),
		Duration: float64(len(wave.Samples)) / float64(wave.SampleRate),
	}
	for i, w := range windows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text := e.decode(wave.SampleRate, wave.Samples[w.From:w.To])
		if text != "" {
			res.Spans = append(res.Spans, engine.Span{
				Start: float64(w.From) / float64(wave.SampleRate),
				End:   float64(w.To) / float64(wave.SampleRate),
				Text:  text,
			})
		}
		p.Report(10 + (i+1)*80/len(windows))
	}
	res.Text = engine.JoinSpans(res.Spans)
	p.Report(100)
	return res, nil
}

func (e *Engine) decode(sampleRate int, samples []float32) string {
	stream := sherpa.NewOfflineStream(e.recognizer)
	defer sherpa.DeleteOfflineStream(stream)
	stream.AcceptWaveform(sampleRate, samples)
	e.recognizer.Decode(stream)
	result := stream.GetResult()
	if result == nil {
		return ""
	}
	return strings.TrimSpace(result.Text)
}

// Cleanup frees the recognizer.
func (e *Engine) Cleanup() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.recognizer != nil {
		sherpa.DeleteOfflineRecognizer(e.recognizer)
		e.recognizer = nil
	}
	return nil
}

// Window is a half-open sample range [From, To).
type Window struct {
	From int
	To   int
}

// Windows splits n samples into windows of at most seconds each.
func Windows(n, sampleRate, seconds int) []Window {
	size := sampleRate * seconds
	if n <= 0 || size <= 0 {
		return nil
	}
	windows := make([]Window, 0, (n+size-1)/size)
	for from := 0; from < n; from += size {
		windows = append(windows, Window{From: from, To: min(from+size, n)})
	}
	return windows
}

func findFile(dir string, candidates []string) string {
	for _, name := range candidates {
		p := filepath.Join(dir, name)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	return ""
}

var _ engine.Engine = (*Engine)(nil)
