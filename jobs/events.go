package jobs

import (
	"sync"
	"time"

	"github.com/kbukum/mediascribe/errors"
)

// EventType classifies messages emitted during job execution.
type EventType string

const (
	EventProgress        EventType = "progress"
	EventStatus          EventType = "status"
	EventSegmentProgress EventType = "segment_progress"
	EventDetail          EventType = "detail"
	EventState           EventType = "state"
	EventResult          EventType = "result"
	EventError           EventType = "error"
)

// Event is a sequenced job notification. Every event carries the job's
// progress at the time it was published.
type Event struct {
	Seq       int64            `json:"seq"`
	Timestamp time.Time        `json:"timestamp"`
	JobID     string           `json:"job_id"`
	Type      EventType        `json:"type"`
	State     State            `json:"state"`
	Progress  int              `json:"progress"`
	Message   string           `json:"message,omitempty"`
	Detail    string           `json:"detail,omitempty"`
	Code      errors.ErrorCode `json:"code,omitempty"`
	Segment   *SegmentProgress `json:"segment,omitempty"`
	Result    *Outcome         `json:"result,omitempty"`
}

// SegmentProgress identifies the segment being worked on. Index is 1-based.
type SegmentProgress struct {
	Index int    `json:"index"`
	Total int    `json:"total"`
	Label string `json:"label"`
}

// Terminal reports whether the event is the last one of its job.
func (e Event) Terminal() bool {
	return e.Type == EventState && e.State.Terminal()
}

// Observer receives job events. OnEvent is called from the worker goroutine
// and must not block for long.
type Observer interface {
	OnEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) OnEvent(e Event) { f(e) }

// Observers fans one event out to several observers in order.
type Observers []Observer

func (o Observers) OnEvent(e Event) {
	for _, obs := range o {
		if obs != nil {
			obs.OnEvent(e)
		}
	}
}

// EventLog stores recent events of one job and supports incremental reads.
type EventLog struct {
	mu        sync.RWMutex
	nextSeq   int64
	maxEvents int
	events    []Event
}

// NewEventLog creates a bounded in-memory event buffer.
func NewEventLog(maxEvents int) *EventLog {
	if maxEvents <= 0 {
		maxEvents = 500
	}
	return &EventLog{
		maxEvents: maxEvents,
		events:    make([]Event, 0, min(maxEvents, 64)),
	}
}

// Publish appends one event and assigns its sequence number and timestamp.
func (l *EventLog) Publish(event Event) Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.nextSeq++
	event.Seq = l.nextSeq
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	l.events = append(l.events, event)
	if len(l.events) > l.maxEvents {
		trim := len(l.events) - l.maxEvents
		l.events = append([]Event(nil), l.events[trim:]...)
	}
	return event
}

// Since returns retained events with a sequence number greater than seq.
func (l *EventLog) Since(seq int64) []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Event, 0, len(l.events))
	for _, e := range l.events {
		if e.Seq > seq {
			out = append(out, e)
		}
	}
	return out
}

// LastSeq returns the sequence number of the newest event.
func (l *EventLog) LastSeq() int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.nextSeq
}
