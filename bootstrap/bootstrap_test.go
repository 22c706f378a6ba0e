package bootstrap

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/kbukum/mediascribe/logger"
	"github.com/kbukum/mediascribe/observability"
)

func newTestApp(opts ...Option) *App {
	return NewApp("mediascribe", "1.2.3", append([]Option{WithLogger(logger.Nop())}, opts...)...)
}

func checker(name string, status observability.HealthStatus) observability.HealthChecker {
	return observability.HealthCheckerFunc(func(context.Context) observability.Health {
		return observability.Health{Name: name, Status: status}
	})
}

func TestRunTaskHookOrder(t *testing.T) {
	app := newTestApp()
	var order []string
	mark := func(name string) Hook {
		return func(context.Context) error {
			order = append(order, name)
			return nil
		}
	}
	app.OnStart(mark("start"))
	app.OnReady(mark("ready"))
	app.OnStop(mark("stop1"), mark("stop2"))

	err := app.RunTask(context.Background(), func(context.Context) error {
		order = append(order, "task")
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(order, ","); got != "start,ready,task,stop1,stop2" {
		t.Errorf("order = %s", got)
	}
}

func TestRunTaskErrorWins(t *testing.T) {
	app := newTestApp()
	taskErr := errors.New("task failed")
	app.OnStop(func(context.Context) error { return errors.New("stop failed") })

	if err := app.RunTask(context.Background(), func(context.Context) error { return taskErr }); !errors.Is(err, taskErr) {
		t.Errorf("err = %v", err)
	}
}

func TestStopRunsEveryHook(t *testing.T) {
	app := newTestApp()
	ran := 0
	app.OnStop(
		func(context.Context) error { ran++; return errors.New("first") },
		func(context.Context) error { ran++; return nil },
	)
	err := app.RunTask(context.Background(), func(context.Context) error { return nil })
	if err == nil || !strings.Contains(err.Error(), "first") {
		t.Errorf("err = %v", err)
	}
	if ran != 2 {
		t.Errorf("ran %d stop hooks", ran)
	}
}

func TestStartHookFailureStillStops(t *testing.T) {
	app := newTestApp()
	stopped := false
	app.OnStart(func(context.Context) error { return errors.New("no store") })
	app.OnStop(func(context.Context) error { stopped = true; return nil })

	err := app.RunTask(context.Background(), func(context.Context) error {
		t.Error("task ran after a failed start hook")
		return nil
	})
	if err == nil || !strings.Contains(err.Error(), "no store") {
		t.Errorf("err = %v", err)
	}
	if !stopped {
		t.Error("stop hooks did not run")
	}
}

func TestRunTaskCancelledBySignal(t *testing.T) {
	app := newTestApp()
	app.signals = []os.Signal{syscall.SIGUSR1}

	err := app.RunTask(context.Background(), func(ctx context.Context) error {
		if err := syscall.Kill(syscall.Getpid(), syscall.SIGUSR1); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
			return errors.New("task context was not cancelled")
		}
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v", err)
	}
}

func TestRunReturnsOnContextCancel(t *testing.T) {
	app := newTestApp()
	stopped := make(chan struct{})
	app.OnStop(func(context.Context) error { close(stopped); return nil })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
	select {
	case <-stopped:
	default:
		t.Error("stop hook did not run")
	}
}

func TestReadyCheck(t *testing.T) {
	app := newTestApp()
	app.AddChecker(checker("store", observability.HealthStatusUp), checker("engines", observability.HealthStatusDown))
	err := app.ReadyCheck(context.Background())
	if err == nil || !strings.Contains(err.Error(), "engines") {
		t.Errorf("err = %v", err)
	}
}

func TestSummaryDisplay(t *testing.T) {
	var buf bytes.Buffer
	app := newTestApp(WithSummary(&buf))
	app.Summary.TrackInfrastructure("http", "server", "listening", "127.0.0.1", 8080, true)
	app.Summary.TrackEngine("whisper", true, "")
	app.Summary.TrackEngine("sherpa", false, "model directory not found")
	app.Summary.TrackRoute("POST", "/api/v1/jobs", "submit")
	app.AddChecker(checker("store", observability.HealthStatusUp))

	if err := app.RunTask(context.Background(), func(context.Context) error { return nil }); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"mediascribe 1.2.3", "127.0.0.1 (:8080)", "sherpa - model directory not found", "/api/v1/jobs", "Health: up"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "no engine available") {
		t.Error("warning printed although an engine is available")
	}
}
