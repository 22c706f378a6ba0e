package resilience

import (
	"context"
	"fmt"
)

// Step is one rung of a Ladder.
type Step[T any] struct {
	// Name labels the step in errors and callbacks.
	Name string
	// Run performs the attempt.
	Run func(ctx context.Context) (T, error)
}

// LadderConfig configures a Ladder run.
type LadderConfig struct {
	// Stop aborts the ladder when it returns true for a step error. The error
	// is returned as-is, without aggregation.
	Stop func(error) bool
	// OnFailure is called after each failed step that does not stop the ladder.
	OnFailure func(step string, err error)
}

// LadderError aggregates the failures of every step.
type LadderError struct {
	Steps  []string
	Errors []error
}

func (e *LadderError) Error() string {
	return fmt.Sprintf("all %d attempts failed, last (%s): %v",
		len(e.Errors), e.Steps[len(e.Steps)-1], e.Errors[len(e.Errors)-1])
}

// Unwrap exposes every step error to errors.Is / errors.As.
func (e *LadderError) Unwrap() []error { return e.Errors }

// Ladder runs steps in order and returns the first success. When every step
// fails it returns a *LadderError holding all step errors in order.
func Ladder[T any](ctx context.Context, cfg LadderConfig, steps ...Step[T]) (T, error) {
	var zero T
	if len(steps) == 0 {
		return zero, fmt.Errorf("resilience: ladder has no steps")
	}

	agg := &LadderError{}
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		result, err := step.Run(ctx)
		if err == nil {
			return result, nil
		}
		if cfg.Stop != nil && cfg.Stop(err) {
			return zero, err
		}
		agg.Steps = append(agg.Steps, step.Name)
		agg.Errors = append(agg.Errors, fmt.Errorf("%s: %w", step.Name, err))
		if cfg.OnFailure != nil {
			cfg.OnFailure(step.Name, err)
		}
	}
	return zero, agg
}
