package main

import (
	"context"

	"github.com/kbukum/mediascribe/config"
	"github.com/kbukum/mediascribe/engine"
	"github.com/kbukum/mediascribe/engine/fasterwhisper"
	"github.com/kbukum/mediascribe/engine/remote"
	"github.com/kbukum/mediascribe/engine/sherpa"
	"github.com/kbukum/mediascribe/engine/whispercli"
	"github.com/kbukum/mediascribe/jobs"
	"github.com/kbukum/mediascribe/logger"
	"github.com/kbukum/mediascribe/media"
	"github.com/kbukum/mediascribe/observability"
	"github.com/kbukum/mediascribe/process"
	"github.com/kbukum/mediascribe/workspace"
)

// pipeline is the job machinery shared by transcribe and serve.
type pipeline struct {
	registry   *engine.Registry
	workspace  *workspace.Manager
	controller *jobs.Controller
}

// buildRegistry registers every engine with the availability its check
// reports.
func buildRegistry(cfg config.EnginesConfig, log *logger.Logger) *engine.Registry {
	reg := engine.NewRegistry()
	register := func(name string, factory engine.Factory, available bool, reason string) {
		reg.Register(name, factory, available)
		if !available && reason != "" {
			_ = reg.SetAvailable(name, false, reason)
		}
		log.Debug("engine registered", logger.Fields(logger.FieldEngine, name, "available", available, "reason", reason))
	}

	ok, reason := fasterwhisper.Available(cfg.FasterWhisper)
	register(fasterwhisper.Name, fasterwhisper.Factory(cfg.FasterWhisper, log), ok, reason)

	ok, reason = whispercli.Available(cfg.Whisper)
	register(whispercli.Name, whispercli.Factory(cfg.Whisper, nil, log), ok, reason)

	ok, reason = sherpa.Available(cfg.Sherpa)
	register(sherpa.Name, sherpa.Factory(cfg.Sherpa, log), ok, reason)

	ok, reason = remote.Available(cfg.Remote)
	client, err := remote.NewHTTPClient(cfg.Remote)
	if err != nil {
		ok, reason = false, err.Error()
	}
	register(remote.Name, remote.Factory(cfg.Remote, client, log), ok, reason)

	return reg
}

// newPipeline wires the pipeline. metrics may be nil.
func newPipeline(cfg *config.Config, log *logger.Logger, metrics *observability.PipelineMetrics) (*pipeline, error) {
	reg := buildRegistry(cfg.Engines, log)

	ws, err := workspace.NewManager(cfg.Workspace.Root, log)
	if err != nil {
		return nil, err
	}
	if cfg.Workspace.StaleAfter > 0 {
		if n, err := ws.Sweep(cfg.Workspace.StaleAfter); err != nil {
			log.Warn("workspace sweep failed", logger.Fields(logger.FieldError, err.Error()))
		} else if n > 0 {
			log.Info("removed stale job directories", logger.Fields("count", n, "root", ws.Root()))
		}
	}

	ctrl, err := jobs.NewController(jobs.Config{
		Estimator:   media.NewInspector(cfg.Media.FFprobe, process.Run),
		Extractor:   media.NewExtractor(cfg.Media, process.Run, log),
		Selector:    engine.NewSelector(reg, cfg.Engines.Fallback, log),
		Workspace:   ws,
		Media:       cfg.Media,
		Metrics:     metrics,
		Logger:      log,
		EventBuffer: cfg.Jobs.EventBuffer,
		Retain:      cfg.Jobs.Retain,
	})
	if err != nil {
		return nil, err
	}
	return &pipeline{registry: reg, workspace: ws, controller: ctrl}, nil
}

// Close cancels outstanding jobs and waits for the worker.
func (r *pipeline) Close(ctx context.Context) error {
	return r.controller.Close(ctx)
}
