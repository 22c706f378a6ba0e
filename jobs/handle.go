package jobs

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kbukum/mediascribe/errors"
)

// ErrCancelled is returned by Handle.Wait for a cancelled job.
var ErrCancelled = stderrors.New("jobs: job cancelled")

// Job is one submitted transcription request.
type Job struct {
	ID          string    `json:"id"`
	Source      string    `json:"source"`
	Options     Options   `json:"options"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Outcome is the result of a completed job.
type Outcome struct {
	Text   string `json:"text"`
	Engine string `json:"engine"`
	// Partial is set when at least one segment was skipped.
	Partial bool   `json:"partial"`
	Note    string `json:"note,omitempty"`
	// Placeholder is set when any segment came back as placeholder output.
	Placeholder bool          `json:"placeholder"`
	Segments    int           `json:"segments"`
	Skipped     int           `json:"skipped"`
	Duration    float64       `json:"duration"`
	Elapsed     time.Duration `json:"elapsed"`
}

// Info is a point-in-time snapshot of a job.
type Info struct {
	Job
	State      State             `json:"state"`
	Progress   int               `json:"progress"`
	Engine     string            `json:"engine,omitempty"`
	Duration   float64           `json:"duration,omitempty"`
	Segments   int               `json:"segments,omitempty"`
	StartedAt  *time.Time        `json:"started_at,omitempty"`
	FinishedAt *time.Time        `json:"finished_at,omitempty"`
	Error      *errors.ErrorBody `json:"error,omitempty"`
	Result     *Outcome          `json:"result,omitempty"`
}

// Handle tracks a submitted job. It is safe for concurrent use.
type Handle struct {
	job       Job
	cancelled atomic.Bool
	events    *EventLog
	done      chan struct{}

	mu         sync.RWMutex
	state      State
	progress   int
	engine     string
	duration   float64
	segments   int
	startedAt  time.Time
	finishedAt time.Time
	outcome    *Outcome
	err        *errors.AppError
}

func newHandle(job Job, maxEvents int) *Handle {
	return &Handle{
		job:    job,
		events: NewEventLog(maxEvents),
		done:   make(chan struct{}),
		state:  StateIdle,
	}
}

// ID returns the job id.
func (h *Handle) ID() string { return h.job.ID }

// Job returns the submitted job.
func (h *Handle) Job() Job { return h.job }

// Cancel requests cooperative cancellation. The running job stops at the
// next segment boundary. Calling Cancel again, or after the job finished,
// has no effect.
func (h *Handle) Cancel() {
	h.cancelled.Store(true)
}

// CancelRequested reports whether Cancel was called.
func (h *Handle) CancelRequested() bool { return h.cancelled.Load() }

// State returns the current state.
func (h *Handle) State() State {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state
}

// Progress returns the last reported progress percentage.
func (h *Handle) Progress() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.progress
}

// Done is closed once the job reached a terminal state and its resources
// were released.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the job finishes or ctx is done. A failed job returns its
// *errors.AppError; a cancelled job returns ErrCancelled.
func (h *Handle) Wait(ctx context.Context) (*Outcome, error) {
	select {
	case <-h.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	switch h.state {
	case StateCompleted:
		return h.outcome, nil
	case StateCancelled:
		return nil, ErrCancelled
	default:
		return nil, h.err
	}
}

// Events returns retained events with a sequence number greater than since.
func (h *Handle) Events(since int64) []Event { return h.events.Since(since) }

// Info returns a snapshot of the job.
func (h *Handle) Info() Info {
	h.mu.RLock()
	defer h.mu.RUnlock()

	info := Info{
		Job:      h.job,
		State:    h.state,
		Progress: h.progress,
		Engine:   h.engine,
		Duration: h.duration,
		Segments: h.segments,
		Result:   h.outcome,
	}
	if !h.startedAt.IsZero() {
		t := h.startedAt
		info.StartedAt = &t
	}
	if !h.finishedAt.IsZero() {
		t := h.finishedAt
		info.FinishedAt = &t
	}
	if h.err != nil {
		body := h.err.ToResponse().Error
		info.Error = &body
	}
	return info
}

// Err returns the failure of a failed job.
func (h *Handle) Err() *errors.AppError {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.err
}

// transition moves the handle to state to.
func (h *Handle) transition(to State) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := checkTransition(h.state, to); err != nil {
		return errors.Internal(err)
	}
	h.state = to
	now := time.Now().UTC()
	if to == StatePlanning {
		h.startedAt = now
	}
	if to.Terminal() {
		h.finishedAt = now
	}
	return nil
}

// setProgress records p and reports whether it changed.
func (h *Handle) setProgress(p int, first bool) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !first && p <= h.progress {
		return false
	}
	h.progress = p
	return true
}

func (h *Handle) snapshot() (State, int) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state, h.progress
}

func (h *Handle) update(fn func(h *Handle)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fn(h)
}
