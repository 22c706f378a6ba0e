package engine

import (
	"context"
	"fmt"

	"github.com/kbukum/mediascribe/errors"
	"github.com/kbukum/mediascribe/logger"
)

// DefaultFallback is the engine priority used when none is configured.
var DefaultFallback = []string{"faster-whisper", "whisper", "sherpa", "remote"}

// Selection is a loaded engine chosen by a Selector.
type Selection struct {
	Engine Engine
	// Skipped maps each engine tried before Engine to why it was passed over.
	Skipped map[string]string
}

// Fallback reports whether an engine other than the first candidate was chosen.
func (s *Selection) Fallback() bool { return len(s.Skipped) > 0 }

// Selector walks the preferred engine followed by a fixed fallback order and
// loads the first engine that is available and loads successfully.
type Selector struct {
	registry *Registry
	fallback []string
	log      *logger.Logger
}

// NewSelector creates a selector. An empty fallback uses DefaultFallback.
func NewSelector(registry *Registry, fallback []string, log *logger.Logger) *Selector {
	if len(fallback) == 0 {
		fallback = DefaultFallback
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Selector{registry: registry, fallback: fallback, log: log.WithComponent("selector")}
}

// Order returns the deduplicated candidate list for preferred.
func (s *Selector) Order(preferred string, fallback []string) []string {
	if len(fallback) == 0 {
		fallback = s.fallback
	}
	seen := make(map[string]bool, len(fallback)+1)
	var order []string
	for _, name := range append([]string{preferred}, fallback...) {
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		order = append(order, name)
	}
	return order
}

// Select creates and loads the first usable engine among preferred and the
// fallback order (the selector's own when fallback is empty). A status
// notice is emitted for every engine passed over. Load progress is forwarded
// per attempt. When the list is exhausted the error is NO_ENGINE_AVAILABLE.
func (s *Selector) Select(ctx context.Context, preferred string, fallback []string, opts Options, progress ProgressFunc, status StatusFunc) (*Selection, error) {
	order := s.Order(preferred, fallback)
	skipped := make(map[string]string)

	for i, name := range order {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		eng, reason := s.try(ctx, name, opts, progress, status)
		if eng != nil {
			if len(skipped) > 0 {
				status.Notify(fmt.Sprintf("using %s engine", name))
			}
			s.log.Info("engine selected", logger.Fields(logger.FieldEngine, name, "skipped", len(skipped)))
			return &Selection{Engine: eng, Skipped: skipped}, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		skipped[name] = reason
		s.log.Warn("engine skipped", logger.Fields(logger.FieldEngine, name, "reason", reason))
		if i+1 < len(order) {
			status.Notify(fmt.Sprintf("%s unavailable, falling back to %s", name, order[i+1]))
		} else {
			status.Notify(fmt.Sprintf("%s unavailable, no engines left", name))
		}
	}
	return nil, errors.NoEngineAvailable(skipped)
}

func (s *Selector) try(ctx context.Context, name string, opts Options, progress ProgressFunc, status StatusFunc) (Engine, string) {
	st := s.registry.Status(name)
	if !st.Available {
		return nil, st.Reason
	}
	eng, err := s.registry.Create(name, opts)
	if err != nil {
		return nil, fmt.Sprintf("create failed: %v", err)
	}
	if err := eng.Load(ctx, NewProgress(progress).Func(), status); err != nil {
		if cerr := eng.Cleanup(); cerr != nil {
			s.log.Warn("engine cleanup failed", logger.Fields(logger.FieldEngine, name, logger.FieldError, cerr.Error()))
		}
		return nil, fmt.Sprintf("%s: %v", errors.ErrCodeEngineLoadFailed, err)
	}
	return eng, ""
}
