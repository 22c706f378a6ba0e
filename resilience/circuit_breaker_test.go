package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "github.com/kbukum/mediascribe/errors"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(maxFailures int, timeout time.Duration) (*CircuitBreaker, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	cb := NewCircuitBreaker(CircuitBreakerConfig{Name: "test", MaxFailures: maxFailures, Timeout: timeout})
	cb.now = clock.now
	return cb, clock
}

func TestCircuitBreaker_StartsClosed(t *testing.T) {
	cb := NewCircuitBreaker(DefaultCircuitBreakerConfig("test"))
	if cb.State() != StateClosed {
		t.Errorf("expected StateClosed, got %s", cb.State())
	}
	var called bool
	if err := cb.Execute(func() error { called = true; return nil }); err != nil || !called {
		t.Errorf("expected call to pass, called=%v err=%v", called, err)
	}
}

func TestCircuitBreaker_OpensAfterMaxFailures(t *testing.T) {
	cb, _ := newTestBreaker(3, time.Minute)
	testErr := errors.New("upstream down")

	for i := 0; i < 3; i++ {
		if err := cb.Execute(func() error { return testErr }); !errors.Is(err, testErr) {
			t.Fatalf("attempt %d: expected upstream error, got %v", i+1, err)
		}
	}
	if cb.State() != StateOpen {
		t.Fatalf("expected StateOpen, got %s", cb.State())
	}

	err := cb.Execute(func() error {
		t.Error("function should not have been called")
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb, _ := newTestBreaker(2, time.Minute)
	_ = cb.Execute(func() error { return errors.New("fail") })
	_ = cb.Execute(func() error { return nil })
	_ = cb.Execute(func() error { return errors.New("fail") })

	if cb.State() != StateClosed {
		t.Errorf("non-consecutive failures must not open the circuit, got %s", cb.State())
	}
	if cb.Failures() != 1 {
		t.Errorf("expected 1 failure, got %d", cb.Failures())
	}
}

func TestCircuitBreaker_IgnoresNonRetryableErrors(t *testing.T) {
	cb, _ := newTestBreaker(1, time.Minute)
	badRequest := apperrors.InvalidInput("model", "unknown model")

	for i := 0; i < 3; i++ {
		_ = cb.Execute(func() error { return badRequest })
	}
	_ = cb.Execute(func() error { return context.Canceled })

	if cb.State() != StateClosed {
		t.Errorf("expected StateClosed, got %s", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	cb, clock := newTestBreaker(1, time.Minute)
	var transitions []string
	cb.config.OnStateChange = func(name string, from, to State) {
		transitions = append(transitions, from.String()+">"+to.String())
	}

	_ = cb.Execute(func() error { return errors.New("fail") })
	clock.advance(30 * time.Second)
	if cb.State() != StateOpen {
		t.Fatalf("expected StateOpen before the timeout, got %s", cb.State())
	}

	clock.advance(30 * time.Second)
	if cb.State() != StateHalfOpen {
		t.Fatalf("expected StateHalfOpen after the timeout, got %s", cb.State())
	}
	if err := cb.Execute(func() error { return nil }); err != nil {
		t.Fatalf("trial call: %v", err)
	}
	if cb.State() != StateClosed {
		t.Errorf("expected StateClosed after a successful trial, got %s", cb.State())
	}

	want := []string{"closed>open", "open>half-open", "half-open>closed"}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transition %d = %s, want %s", i, transitions[i], want[i])
		}
	}
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb, clock := newTestBreaker(1, time.Minute)
	_ = cb.Execute(func() error { return errors.New("fail") })
	clock.advance(time.Minute)

	_ = cb.Execute(func() error { return errors.New("still failing") })
	if cb.State() != StateOpen {
		t.Errorf("expected StateOpen, got %s", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenLimitsTrialCalls(t *testing.T) {
	cb, clock := newTestBreaker(1, time.Minute)
	_ = cb.Execute(func() error { return errors.New("fail") })
	clock.advance(time.Minute)

	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- cb.Execute(func() error { <-release; return nil })
	}()
	// Wait until the trial call holds the only half-open slot.
	for i := 0; i < 1000; i++ {
		cb.mu.Lock()
		taken := cb.halfOpenCalls
		cb.mu.Unlock()
		if taken == 1 {
			break
		}
		time.Sleep(time.Millisecond)
	}

	if err := cb.Execute(func() error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("second trial call should be rejected, got %v", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Errorf("trial call: %v", err)
	}
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb, _ := newTestBreaker(1, time.Hour)
	_ = cb.Execute(func() error { return errors.New("fail") })
	cb.Reset()
	if cb.State() != StateClosed || cb.Failures() != 0 {
		t.Errorf("expected a clean closed breaker, got %s with %d failures", cb.State(), cb.Failures())
	}
}
