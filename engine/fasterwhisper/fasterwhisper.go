// Package fasterwhisper drives a faster-whisper model through a long-lived
// python helper, so the model is loaded once and reused for every segment.
package fasterwhisper

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
const Name = "faster-whisper"

//go:embed helper.py
var helperScript []byte

// Config holds faster-whisper settings.
type Config struct {
	Python      string `mapstructure:"python" json:"python"`
	Device      string `mapstructure:"device" json:"device"`
	ComputeType string `mapstructure:"compute_type" json:"compute_type"`
	ModelDir    string `mapstructure:"model_dir" json:"model_dir"`
	// Script overrides the embedded helper.
	Script string `mapstructure:"script" json:"script"`
}

// ApplyDefaults fills in zero-valued fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Python == "" {
		c.Python = "python3"
	}
	if c.Device == "" {
		c.Device = "auto"
	}
	if c.ComputeType == "" {
		c.ComputeType = "default"
	}
}

// Available reports whether the python interpreter is on PATH.
func Available(cfg Config) (bool, string) {
	if !process.Available(cfg.Python) {
		return false, fmt.Sprintf("%s not found", cfg.Python)
	}
	return true, ""
}

// Factory returns an engine.Factory for faster-whisper.
func Factory(cfg Config, log *logger.Logger) engine.Factory {
	return func(opts engine.Options) (engine.Engine, error) {
		return New(cfg, opts, log), nil
	}
}

// Engine is a faster-whisper engine backed by one helper process.
type Engine struct {
	cfg   Config
	opts  engine.Options
	log   *logger.Logger
	start pyhelper.StartFunc

	mu           sync.Mutex
	client       *pyhelper.Client
	removeScript func()
}

// New creates the engine.
func New(cfg Config, opts engine.Options, log *logger.Logger) *Engine {
	cfg.ApplyDefaults()
	if log == nil {
		log = logger.Nop()
	}
	return &Engine{cfg: cfg, opts: opts, log: log.WithComponent(Name), start: pyhelper.StartProcess}
}

func (e *Engine) Name() string      { return Name }
func (e *Engine) Kind() engine.Kind { return engine.KindLocal }

// Load starts the helper and waits until it reports the model ready.
func (e *Engine) Load(ctx context.Context, progress engine.ProgressFunc, status engine.StatusFunc) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	script, err := e.scriptPath()
	if err != nil {
		return err
	}
	args := []string{script, "--model", e.opts.Model, "--device", e.cfg.Device, "--compute-type", e.cfg.ComputeType}
	if e.cfg.ModelDir != "" {
		args = append(args, "--download-root", e.cfg.ModelDir)
	}
	status.Notify(fmt.Sprintf("loading faster-whisper model %s", e.opts.Model))

	client, err := pyhelper.Start(ctx, Name, e.start, process.Command{Binary: e.cfg.Python, Args: args}, progress, e.log)
	if err != nil {
		return err
	}
	e.client = client
	return nil
}

// Transcribe sends one request to the helper and waits for its result.
func (e *Engine) Transcribe(ctx context.Context, req engine.Request) (*engine.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client == nil {
		return nil, fmt.Errorf("faster-whisper: engine not loaded")
	}
	return e.client.Call(ctx, pyhelper.NewRequest(req.AudioPath, req.Options), req.Progress)
}

// Cleanup stops the helper and removes the extracted script.
func (e *Engine) Cleanup() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client != nil {
		if err := e.client.Close(); err != nil {
			e.log.Debug("helper exited", logger.Fields(logger.FieldError, err.Error()))
		}
		e.client = nil
	}
	if e.removeScript != nil {
		e.removeScript()
		e.removeScript = nil
	}
	return nil
}

// scriptPath returns the configured script or writes the embedded one into
// the job's work directory.
func (e *Engine) scriptPath() (string, error) {
	if e.cfg.Script != "" {
		return e.cfg.Script, nil
	}
	path, remove, err := pyhelper.WriteScript(e.opts.WorkDir, "faster_whisper_helper.py", helperScript)
	if err != nil {
		return "", fmt.Errorf("faster-whisper: %w", err)
	}
	if e.removeScript != nil {
		e.removeScript()
	}
	e.removeScript = remove
	return path, nil
}

var _ engine.Engine = (*Engine)(nil)
