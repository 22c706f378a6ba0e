package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kbukum/mediascribe/observability"
)

// Factory creates an engine instance for one job.
type Factory func(opts Options) (Engine, error)

// Status reports whether a registered engine can be used.
type Status struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

type entry struct {
	factory   Factory
	available bool
	reason    string
}

// Registry holds engine factories with their availability. It is built once
// at startup; availability is data supplied by the caller, not detected here.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Register adds or replaces a named engine.
func (r *Registry) Register(name string, factory Factory, available bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := &entry{factory: factory, available: available}
	if !available {
		e.reason = "not available"
	}
	r.entries[name] = e
}

// SetAvailable updates the availability of a registered engine.
func (r *Registry) SetAvailable(name string, available bool, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[name]
	if !ok {
		return fmt.Errorf("engine %q not registered", name)
	}
	e.available = available
	e.reason = reason
	if available {
		e.reason = ""
	}
	return nil
}

// Status returns the availability of name. Unregistered names report
// unavailable with a reason.
func (r *Registry) Status(name string) Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return Status{Name: name, Reason: "not registered"}
	}
	return Status{Name: name, Available: e.available, Reason: e.reason}
}

// Statuses returns the status of every registered engine, sorted by name.
func (r *Registry) Statuses() []Status {
	out := make([]Status, 0, len(r.Names()))
	for _, name := range r.Names() {
		out = append(out, r.Status(name))
	}
	return out
}

// Names returns sorted names of all registered engines.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Create instantiates the named engine.
func (r *Registry) Create(name string, opts Options) (Engine, error) {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("engine %q not registered", name)
	}
	return e.factory(opts)
}

// CheckHealth reports the registry as up while at least one engine is
// available. Details list every engine's availability.
func (r *Registry) CheckHealth(context.Context) observability.Health {
	h := observability.Health{Name: "engines", Status: observability.HealthStatusDown, Details: map[string]string{}}
	for _, st := range r.Statuses() {
		if st.Available {
			h.Status = observability.HealthStatusUp
			h.Details[st.Name] = "available"
			continue
		}
		h.Details[st.Name] = st.Reason
	}
	if h.Status == observability.HealthStatusDown {
		h.Message = "no transcription engine available"
	}
	return h
}
