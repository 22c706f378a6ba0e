package bootstrap

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/kbukum/mediascribe/observability"
)

// EngineInfo is the availability of one transcription engine.
type EngineInfo struct {
	Name      string
	Available bool
	Reason    string
}

// InfrastructureInfo describes a supporting component such as the HTTP
// server or the job store.
type InfrastructureInfo struct {
	Name    string
	Type    string // "server", "database", "telemetry"
	Status  string
	Details string
	Port    int
	Healthy bool
}

// RouteInfo is a registered HTTP route.
type RouteInfo struct {
	Method  string
	Path    string
	Handler string
}

// Summary collects what was started and prints it once the application is
// ready.
type Summary struct {
	serviceName     string
	version         string
	startupDuration time.Duration
	engines         []EngineInfo
	infrastructure  []InfrastructureInfo
	routes          []RouteInfo
}

// NewSummary creates a summary tracker.
func NewSummary(serviceName, version string) *Summary {
	return &Summary{serviceName: serviceName, version: version}
}

// SetStartupDuration records the total startup time.
func (s *Summary) SetStartupDuration(d time.Duration) {
	s.startupDuration = d
}

// TrackEngine records the availability of an engine.
func (s *Summary) TrackEngine(name string, available bool, reason string) {
	s.engines = append(s.engines, EngineInfo{Name: name, Available: available, Reason: reason})
}

// TrackInfrastructure records a supporting component.
func (s *Summary) TrackInfrastructure(name, componentType, status, details string, port int, healthy bool) {
	s.infrastructure = append(s.infrastructure, InfrastructureInfo{
		Name:    name,
		Type:    componentType,
		Status:  status,
		Details: details,
		Port:    port,
		Healthy: healthy,
	})
}

// TrackRoute records an HTTP route.
func (s *Summary) TrackRoute(method, path, handler string) {
	s.routes = append(s.routes, RouteInfo{Method: method, Path: path, Handler: handler})
}

// Display writes the summary to w, followed by a live check of checkers.
func (s *Summary) Display(ctx context.Context, w io.Writer, checkers ...observability.HealthChecker) {
	fmt.Fprintf(w, "\n%s %s started in %.2fs\n", s.serviceName, s.version, s.startupDuration.Seconds())

	if len(s.infrastructure) > 0 {
		fmt.Fprintf(w, "\nInfrastructure\n")
		for i, inf := range s.infrastructure {
			details := inf.Details
			if inf.Port > 0 {
				details = fmt.Sprintf("%s (:%d)", details, inf.Port)
			}
			fmt.Fprintf(w, "   %s %s %s [%s]: %s\n", branch(i, len(s.infrastructure)), statusIcon(inf.Status, inf.Healthy), inf.Name, inf.Type, details)
		}
	}

	if len(s.engines) > 0 {
		available := 0
		fmt.Fprintf(w, "\nEngines\n")
		for i, e := range s.engines {
			line := e.Name
			if e.Available {
				available++
			} else if e.Reason != "" {
				line += " - " + e.Reason
			}
			fmt.Fprintf(w, "   %s %s %s\n", branch(i, len(s.engines)), statusIcon("", e.Available), line)
		}
		if available == 0 {
			fmt.Fprintf(w, "   no engine available, jobs will fail with NO_ENGINE_AVAILABLE\n")
		}
	}

	if len(s.routes) > 0 {
		fmt.Fprintf(w, "\nRoutes (%d)\n", len(s.routes))
		for i, r := range s.routes {
			fmt.Fprintf(w, "   %s %-7s %s\n", branch(i, len(s.routes)), r.Method, r.Path)
		}
	}

	if len(checkers) > 0 {
		sh := observability.Check(ctx, s.serviceName, s.version, checkers...)
		fmt.Fprintf(w, "\nHealth: %s\n", sh.Status)
		for i, h := range sh.Components {
			msg := ""
			if h.Message != "" {
				msg = " (" + h.Message + ")"
			}
			fmt.Fprintf(w, "   %s %s %s: %s%s\n", branch(i, len(sh.Components)), healthIcon(h.Status), h.Name, h.Status, msg)
		}
	}
	fmt.Fprintln(w)
}

func branch(i, n int) string {
	if i == n-1 {
		return "└──"
	}
	return "├──"
}

func statusIcon(status string, healthy bool) string {
	if !healthy {
		return "✗"
	}
	switch status {
	case "disabled":
		return "-"
	default:
		return "✓"
	}
}

func healthIcon(status observability.HealthStatus) string {
	switch status {
	case observability.HealthStatusUp:
		return "✓"
	case observability.HealthStatusDegraded:
		return "!"
	default:
		return "✗"
	}
}
