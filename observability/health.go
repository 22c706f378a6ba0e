package observability

import (
	"context"
	"sync"
	"time"
)

// HealthStatus is the health state of a component or of the service.
type HealthStatus string

const (
	HealthStatusUp       HealthStatus = "up"
	HealthStatusDegraded HealthStatus = "degraded"
	HealthStatusDown     HealthStatus = "down"
)

func (s HealthStatus) rank() int {
	switch s {
	case HealthStatusDown:
		return 2
	case HealthStatusDegraded:
		return 1
	default:
		return 0
	}
}

// CheckTimeout bounds a single component check.
const CheckTimeout = 3 * time.Second

// Health describes one component, such as the job store or an engine.
type Health struct {
	Name    string            `json:"name"`
	Status  HealthStatus      `json:"status"`
	Message string            `json:"message,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// ServiceHealth is the body of the /health endpoint. Status is the worst
// component status.
type ServiceHealth struct {
	Service    string       `json:"service"`
	Status     HealthStatus `json:"status"`
	Version    string       `json:"version,omitempty"`
	Components []Health     `json:"components,omitempty"`
}

// HealthChecker is implemented by components that can report their health.
type HealthChecker interface {
	CheckHealth(ctx context.Context) Health
}

// HealthCheckerFunc adapts a function to HealthChecker.
type HealthCheckerFunc func(ctx context.Context) Health

func (f HealthCheckerFunc) CheckHealth(ctx context.Context) Health { return f(ctx) }

// Check runs the non-nil checkers concurrently, each bounded by
// CheckTimeout, and aggregates the results in argument order. A checker that
// does not answer in time is reported down.
func Check(ctx context.Context, service, version string, checkers ...HealthChecker) *ServiceHealth {
	active := make([]HealthChecker, 0, len(checkers))
	for _, c := range checkers {
		if c != nil {
			active = append(active, c)
		}
	}

	results := make([]Health, len(active))
	var wg sync.WaitGroup
	for i, c := range active {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = checkOne(ctx, c)
		}()
	}
	wg.Wait()

	sh := &ServiceHealth{Service: service, Status: HealthStatusUp, Version: version, Components: results}
	for _, h := range results {
		if h.Status.rank() > sh.Status.rank() {
			sh.Status = h.Status
		}
	}
	return sh
}

func checkOne(ctx context.Context, c HealthChecker) Health {
	ctx, cancel := context.WithTimeout(ctx, CheckTimeout)
	defer cancel()

	done := make(chan Health, 1)
	go func() { done <- c.CheckHealth(ctx) }()
	select {
	case h := <-done:
		return h
	case <-ctx.Done():
		return Health{Name: "unknown", Status: HealthStatusDown, Message: "health check timed out"}
	}
}
