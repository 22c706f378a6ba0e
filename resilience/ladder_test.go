package resilience

import (
	"context"
	"errors"
	"testing"
)

func step(name string, val int, err error, calls *[]string) Step[int] {
	return Step[int]{Name: name, Run: func(context.Context) (int, error) {
		*calls = append(*calls, name)
		return val, err
	}}
}

func TestLadder_FirstSuccessWins(t *testing.T) {
	var calls []string
	got, err := Ladder(context.Background(), LadderConfig{},
		step("configured", 0, errors.New("bad codec"), &calls),
		step("defaults", 2, nil, &calls),
		step("lossy", 3, nil, &calls),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 2 {
		t.Errorf("expected result of second step, got %d", got)
	}
	if len(calls) != 2 {
		t.Errorf("third step should not run, calls=%v", calls)
	}
}

func TestLadder_AggregatesAllFailures(t *testing.T) {
	var calls []string
	e1, e2 := errors.New("one"), errors.New("two")
	var failures []string
	_, err := Ladder(context.Background(), LadderConfig{
		OnFailure: func(s string, _ error) { failures = append(failures, s) },
	},
		step("a", 0, e1, &calls),
		step("b", 0, e2, &calls),
	)
	var lerr *LadderError
	if !errors.As(err, &lerr) {
		t.Fatalf("expected *LadderError, got %T", err)
	}
	if len(lerr.Errors) != 2 || lerr.Steps[0] != "a" || lerr.Steps[1] != "b" {
		t.Errorf("unexpected aggregation %+v", lerr)
	}
	if !errors.Is(err, e1) || !errors.Is(err, e2) {
		t.Error("every step error should be reachable with errors.Is")
	}
	if len(failures) != 2 {
		t.Errorf("expected 2 OnFailure calls, got %v", failures)
	}
}

func TestLadder_StopAbortsImmediately(t *testing.T) {
	var calls []string
	fatal := errors.New("no audio stream")
	_, err := Ladder(context.Background(), LadderConfig{
		Stop: func(err error) bool { return errors.Is(err, fatal) },
	},
		step("a", 0, fatal, &calls),
		step("b", 1, nil, &calls),
	)
	if err != fatal {
		t.Errorf("expected the stop error itself, got %v", err)
	}
	if len(calls) != 1 {
		t.Errorf("ladder should stop after first step, calls=%v", calls)
	}
}

func TestLadder_NoSteps(t *testing.T) {
	if _, err := Ladder[int](context.Background(), LadderConfig{}); err == nil {
		t.Error("expected error for empty ladder")
	}
}
