// Package whispercli runs openai-whisper as an engine. A python helper
// loads the model once per job and transcribes every segment with it.
package whispercli

import (
	"context"
	_ "embed"
	"fmt"
	"sync"

	"github.com/kbukum/mediascribe/engine"
	"github.com/kbukum/mediascribe/engine/pyhelper"
	"github.com/kbukum/mediascribe/logger"
	"github.com/kbukum/mediascribe/process"
)

// Name is the registry name of this engine.
const Name = "whisper"

//go:embed helper.py
var helperScript []byte

// Config holds openai-whisper settings.
type Config struct {
	Python string `mapstructure:"python" json:"python"`
	Device string `mapstructure:"device" json:"device"`
	// ModelDir overrides whisper's model download directory.
	ModelDir string `mapstructure:"model_dir" json:"model_dir"`
	// Script overrides the embedded helper.
	Script string `mapstructure:"script" json:"script"`
}

// ApplyDefaults fills in zero-valued fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Python == "" {
		c.Python = "python3"
	}
	if c.Device == "" {
		c.Device = "cpu"
	}
}

// Available reports whether the python interpreter is on PATH.
func Available(cfg Config) (bool, string) {
	if !process.Available(cfg.Python) {
		return false, fmt.Sprintf("%s not found", cfg.Python)
	}
	return true, ""
}

// Factory returns an engine.Factory for openai-whisper. A nil start uses
// pyhelper.StartProcess.
func Factory(cfg Config, start pyhelper.StartFunc, log *logger.Logger) engine.Factory {
	return func(opts engine.Options) (engine.Engine, error) {
		return New(cfg, opts, start, log), nil
	}
}

// Engine holds one helper process for the lifetime of a job.
type Engine struct {
	cfg   Config
	opts  engine.Options
	start pyhelper.StartFunc
	log   *logger.Logger

	mu           sync.Mutex
	client       *pyhelper.Client
	removeScript func()
}

// New creates the engine.
func New(cfg Config, opts engine.Options, start pyhelper.StartFunc, log *logger.Logger) *Engine {
	cfg.ApplyDefaults()
	if start == nil {
		start = pyhelper.StartProcess
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Engine{cfg: cfg, opts: opts, start: start, log: log.WithComponent(Name)}
}

func (e *Engine) Name() string      { return Name }
func (e *Engine) Kind() engine.Kind { return engine.KindLocal }

// Load starts the helper, which imports whisper and loads the model.
func (e *Engine) Load(ctx context.Context, progress engine.ProgressFunc, status engine.StatusFunc) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	script := e.cfg.Script
	if script == "" {
		path, remove, err := pyhelper.WriteScript(e.opts.WorkDir, "whisper_helper.py", helperScript)
		if err != nil {
			return fmt.Errorf("whisper: %w", err)
		}
		script, e.removeScript = path, remove
	}
	args := []string{script, "--model", e.opts.Model, "--device", e.cfg.Device}
	if e.cfg.ModelDir != "" {
		args = append(args, "--download-root", e.cfg.ModelDir)
	}
	status.Notify(fmt.Sprintf("loading whisper model %s", e.opts.Model))

	client, err := pyhelper.Start(ctx, Name, e.start, process.Command{Binary: e.cfg.Python, Args: args}, progress, e.log)
	if err != nil {
		return fmt.Errorf("load whisper model %s: %w", e.opts.Model, err)
	}
	e.client = client
	return nil
}

// Transcribe runs one artifact through the loaded model.
func (e *Engine) Transcribe(ctx context.Context, req engine.Request) (*engine.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client == nil {
		return nil, fmt.Errorf("whisper: engine not loaded")
	}
	return e.client.Call(ctx, pyhelper.NewRequest(req.AudioPath, req.Options), req.Progress)
}

// Cleanup stops the helper and removes its script.
func (e *Engine) Cleanup() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	var err error
	if e.client != nil {
		err = e.client.Close()
		e.client = nil
	}
	if e.removeScript != nil {
		e.removeScript()
		e.removeScript = nil
	}
	if err != nil {
		e.log.Debug("helper exited", logger.Fields(logger.FieldError, err.Error()))
	}
	return nil
}

var _ engine.Engine = (*Engine)(nil)
