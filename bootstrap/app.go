package bootstrap

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kbukum/mediascribe/logger"
	"github.com/kbukum/mediascribe/observability"
)

// App runs the lifecycle of a mediascribe command: start hooks, readiness
// check, summary, then either a finite task or a wait for a shutdown signal,
// and finally the stop hooks.
//
//	app := bootstrap.NewApp("mediascribe", version.Version, bootstrap.WithLogger(log))
//	app.OnStop(func(ctx context.Context) error { return srv.Stop(ctx) })
//	app.Run(ctx)
type App struct {
	Name    string
	Version string
	Logger  *logger.Logger
	Summary *Summary

	gracefulTimeout time.Duration
	summaryOut      io.Writer
	signals         []os.Signal
	checkers        []observability.HealthChecker

	onStart []Hook
	onReady []Hook
	onStop  []Hook
}

// NewApp creates an application. Without WithLogger it uses the global
// logger.
func NewApp(name, version string, opts ...Option) *App {
	o := resolveOptions(opts)
	app := &App{
		Name:            name,
		Version:         version,
		Logger:          o.logger,
		Summary:         NewSummary(name, version),
		gracefulTimeout: 15 * time.Second,
		summaryOut:      o.summaryOut,
		signals:         []os.Signal{syscall.SIGINT, syscall.SIGTERM},
	}
	if app.Logger == nil {
		app.Logger = logger.GetGlobalLogger()
	}
	if o.gracefulTimeout != nil {
		app.gracefulTimeout = *o.gracefulTimeout
	}
	return app
}

// AddChecker registers a component for the readiness check and the summary.
func (a *App) AddChecker(checkers ...observability.HealthChecker) {
	a.checkers = append(a.checkers, checkers...)
}

// ReadyCheck reports the components that are down.
func (a *App) ReadyCheck(ctx context.Context) error {
	sh := observability.Check(ctx, a.Name, a.Version, a.checkers...)
	var down []string
	for _, h := range sh.Components {
		if h.Status == observability.HealthStatusDown {
			detail := h.Name
			if h.Message != "" {
				detail += "(" + h.Message + ")"
			}
			down = append(down, detail)
		}
	}
	if len(down) > 0 {
		return fmt.Errorf("components down: %v", down)
	}
	return nil
}

// Run starts the application and blocks until a shutdown signal arrives or
// ctx ends, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	if err := a.startup(ctx); err != nil {
		_ = a.stop()
		return err
	}

	a.Logger.Info("application ready, waiting for shutdown signal")
	a.WaitForSignal(ctx)

	return a.stop()
}

// RunTask starts the application, runs task with a context cancelled by
// SIGINT/SIGTERM, and shuts down when the task returns. The task error wins
// over a shutdown error.
func (a *App) RunTask(ctx context.Context, task func(ctx context.Context) error) error {
	if err := a.startup(ctx); err != nil {
		_ = a.stop()
		return err
	}

	taskCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, a.signals...)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case sig := <-sigCh:
			a.Logger.Info("received signal, cancelling task", logger.Fields("signal", sig.String()))
			cancel()
		case <-taskCtx.Done():
		}
	}()

	taskErr := task(taskCtx)

	if stopErr := a.stop(); stopErr != nil && taskErr == nil {
		return stopErr
	}
	return taskErr
}

func (a *App) startup(ctx context.Context) error {
	start := time.Now()
	a.Logger.Debug("starting application", logger.Fields("name", a.Name, "version", a.Version))

	if err := runHooks(ctx, a.onStart); err != nil {
		return fmt.Errorf("start hook: %w", err)
	}
	if err := a.ReadyCheck(ctx); err != nil {
		a.Logger.Warn("ready check reported issues", logger.Fields(logger.FieldError, err.Error()))
	}
	if err := runHooks(ctx, a.onReady); err != nil {
		return fmt.Errorf("ready hook: %w", err)
	}

	a.Summary.SetStartupDuration(time.Since(start))
	if a.summaryOut != nil {
		a.Summary.Display(ctx, a.summaryOut, a.checkers...)
	}
	return nil
}

// WaitForSignal blocks until SIGINT/SIGTERM or ctx cancellation.
func (a *App) WaitForSignal(ctx context.Context) os.Signal {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, a.signals...)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		a.Logger.Info("received shutdown signal, graceful shutdown starting", logger.Fields("signal", sig.String()))
		return sig
	case <-ctx.Done():
		a.Logger.Info("context cancelled, shutting down")
		return nil
	}
}

// stop runs the stop hooks within the graceful timeout. Every hook runs even
// when an earlier one fails.
func (a *App) stop() error {
	a.Logger.Debug("shutting down application", logger.Fields("timeout", a.gracefulTimeout.String()))

	ctx, cancel := context.WithTimeout(context.Background(), a.gracefulTimeout)
	defer cancel()

	err := runAllHooks(ctx, a.onStop)
	if err != nil {
		a.Logger.Error("shutdown completed with errors", logger.Fields(logger.FieldError, err.Error()))
		return err
	}
	a.Logger.Debug("application shutdown complete")
	return nil
}
