package sse

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/kbukum/mediascribe/jobs"
	"github.com/kbukum/mediascribe/logger"
)

// JobClientID names a client following one job.
func JobClientID(jobID string) string { return "job:" + jobID + ":" + uuid.NewString() }

// FeedClientID names a client following every job.
func FeedClientID() string { return "feed:" + uuid.NewString() }

// JobFrame encodes a job event. Terminal state events end the stream.
func JobFrame(e jobs.Event) (Frame, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return Frame{}, fmt.Errorf("sse: encode event %d of job %s: %w", e.Seq, e.JobID, err)
	}
	return Frame{ID: e.Seq, Event: string(e.Type), Data: data, Final: e.Terminal()}, nil
}

// Broadcaster is a jobs.Observer that forwards events to the hub.
type Broadcaster struct {
	hub *Hub
	log *logger.Logger
}

// NewBroadcaster creates a Broadcaster for hub.
func NewBroadcaster(hub *Hub, log *logger.Logger) *Broadcaster {
	if log == nil {
		log = logger.Nop()
	}
	return &Broadcaster{hub: hub, log: log.WithComponent("sse")}
}

func (b *Broadcaster) OnEvent(e jobs.Event) {
	f, err := JobFrame(e)
	if err != nil {
		b.log.Error("dropping event", logger.Fields(logger.FieldJobID, e.JobID, logger.FieldError, err.Error()))
		return
	}
	b.hub.Broadcast("job:"+e.JobID+":*", f)

	// Feed frames carry per-job sequence numbers, so the id is dropped and
	// the stream never ends on one job's terminal event.
	f.ID, f.Final = 0, false
	b.hub.Broadcast("feed:*", f)
}

// ServeJob streams the events of h, replaying retained events after the
// client's last seen id first.
func ServeJob(hub *Hub, w http.ResponseWriter, r *http.Request, h *jobs.Handle, log *logger.Logger) {
	Serve(hub, w, r, Stream{
		Client: NewClient(JobClientID(h.ID())),
		Backlog: func(lastID int64) []Frame {
			events := h.Events(lastID)
			frames := make([]Frame, 0, len(events))
			for _, e := range events {
				if f, err := JobFrame(e); err == nil {
					frames = append(frames, f)
				}
			}
			return frames
		},
		Finished: h.Done(),
		Log:      log,
	})
}

// ServeFeed streams live events of every job.
func ServeFeed(hub *Hub, w http.ResponseWriter, r *http.Request, log *logger.Logger) {
	Serve(hub, w, r, Stream{Client: NewClient(FeedClientID()), Finished: hub.Done(), Log: log})
}

var _ jobs.Observer = (*Broadcaster)(nil)
