package jobs

import "fmt"

// State is the pipeline state of a job.
type State string

const (
	StateIdle         State = "idle"
	StatePlanning     State = "planning"
	StateExtracting   State = "extracting"
	StateTranscribing State = "transcribing"
	StateAssembling   State = "assembling"
	StateCompleted    State = "completed"
	StateCancelled    State = "cancelled"
	StateFailed       State = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateCancelled, StateFailed:
		return true
	default:
		return false
	}
}

// Running reports whether the job is past idle and not yet terminal.
func (s State) Running() bool {
	return s != StateIdle && !s.Terminal()
}

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	_, ok := transitions[s]
	return ok || s.Terminal()
}

func (s State) String() string { return string(s) }

// transitions lists the allowed edges. States only move forward, except for
// the per-segment extracting/transcribing loop. Extracting may follow
// itself when a segment is skipped.
var transitions = map[State][]State{
	StateIdle:         {StatePlanning, StateCancelled, StateFailed},
	StatePlanning:     {StateExtracting, StateCancelled, StateFailed},
	StateExtracting:   {StateExtracting, StateTranscribing, StateAssembling, StateCancelled, StateFailed},
	StateTranscribing: {StateExtracting, StateAssembling, StateCancelled, StateFailed},
	StateAssembling:   {StateCompleted, StateFailed},
}

// isValidTransition enforces the job state machine edges.
func isValidTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func checkTransition(from, to State) error {
	if !isValidTransition(from, to) {
		return fmt.Errorf("invalid transition: %s -> %s", from, to)
	}
	return nil
}
