package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/kbukum/mediascribe/auth"
	"github.com/kbukum/mediascribe/bootstrap"
	"github.com/kbukum/mediascribe/config"
	"github.com/kbukum/mediascribe/jobs"
	"github.com/kbukum/mediascribe/logger"
	"github.com/kbukum/mediascribe/observability"
	"github.com/kbukum/mediascribe/server"
	"github.com/kbukum/mediascribe/sse"
	"github.com/kbukum/mediascribe/store"
	"github.com/kbukum/mediascribe/version"
)

func runServe(args []string, _, stderr io.Writer) int {
	fs := newFlagSet("serve", stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: mediascribe serve [flags]\n\nFlags:\n%s", fs.FlagUsages())
	}
	if code, ok := parse(fs, args); !ok {
		return code
	}
	cfg, log, ok := load(fs, stderr)
	if !ok {
		return exitFailure
	}
	if err := serve(context.Background(), cfg, log, stderr); err != nil {
		log.Error("server exited with error", logger.Fields(logger.FieldError, err.Error()))
		return exitFailure
	}
	return exitOK
}

// serve wires the job API and blocks until a shutdown signal.
func serve(ctx context.Context, cfg *config.Config, log *logger.Logger, summaryOut io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var tokens *auth.Service
	if cfg.Auth.Enabled {
		var err error
		if tokens, err = auth.NewService(cfg.Auth); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
	} else if cfg.Service.Environment == "production" {
		log.Warn("job API is open: auth.enabled is false")
	}

	shutdownTelemetry, err := observability.Setup(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	metrics, err := observability.NewPipelineMetrics(observability.Meter(cfg.Service.Name))
	if err != nil {
		_ = shutdownTelemetry(ctx)
		return fmt.Errorf("metrics: %w", err)
	}

	p, err := newPipeline(cfg, log, metrics)
	if err != nil {
		_ = shutdownTelemetry(ctx)
		return err
	}
	p.controller.Subscribe(jobs.NewLogObserver(log.WithComponent("events")))

	hub := sse.NewHub(log)
	go hub.Run()
	p.controller.Subscribe(sse.NewBroadcaster(hub, log))

	app := bootstrap.NewApp(cfg.Service.Name, version.Version,
		bootstrap.WithLogger(log),
		bootstrap.WithSummary(summaryOut),
		bootstrap.WithGracefulTimeout(time.Duration(cfg.Server.ShutdownTimeout)*time.Second+5*time.Second),
	)

	api := server.APIConfig{
		Service:     cfg.Service.Name,
		Jobs:        p.controller,
		Hub:         hub,
		Defaults:    cfg.Pipeline,
		SubmitLimit: cfg.Server.SubmitLimit,
		MaxStreams:  cfg.Server.MaxStreams,
		Checkers:    []observability.HealthChecker{p.registry},
		Logger:      log,
	}

	var history *store.Store
	if cfg.Store.Enabled {
		history, err = store.Open(ctx, cfg.Store, log)
		if err != nil {
			_ = p.Close(ctx)
			hub.Stop()
			_ = shutdownTelemetry(ctx)
			return err
		}
		p.controller.Subscribe(store.NewRecorder(history, p.controller, log))
		api.History = history
		api.Checkers = append(api.Checkers, history)
		app.Summary.TrackInfrastructure("history", "database", "connected", cfg.Store.DSN, 0, true)
	} else {
		app.Summary.TrackInfrastructure("history", "database", "disabled", "job history not recorded", 0, true)
	}

	if tokens != nil {
		api.Auth = tokens
	}

	srv := server.New(cfg.Server, metrics, log)
	srv.Mount(ctx, api)

	for _, st := range p.registry.Statuses() {
		app.Summary.TrackEngine(st.Name, st.Available, st.Reason)
	}
	for _, r := range srv.Engine().Routes() {
		app.Summary.TrackRoute(r.Method, r.Path, r.Handler)
	}
	telemetryStatus := "disabled"
	if cfg.Telemetry.Enabled {
		telemetryStatus = "exporting"
	}
	app.Summary.TrackInfrastructure("telemetry", "telemetry", telemetryStatus, cfg.Telemetry.Endpoint, 0, true)
	app.AddChecker(api.Checkers...)

	app.OnStart(func(ctx context.Context) error {
		if err := srv.Start(ctx); err != nil {
			return err
		}
		app.Summary.TrackInfrastructure("http", "server", "listening", srv.Addr(), 0, true)
		return nil
	})
	app.OnStop(
		func(context.Context) error { hub.Stop(); return nil },
		srv.Stop,
		p.Close,
		func(context.Context) error {
			cancel()
			if history != nil {
				return history.Close()
			}
			return nil
		},
		bootstrap.Hook(shutdownTelemetry),
	)
	return app.Run(ctx)
}
