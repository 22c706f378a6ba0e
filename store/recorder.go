package store

import (
	"context"
	"time"

	"github.com/kbukum/mediascribe/jobs"
	"github.com/kbukum/mediascribe/logger"
)

// JobSource looks up live jobs.
type JobSource interface {
	Get(id string) (*jobs.Handle, error)
}

// Recorder is a jobs.Observer that saves every job when it reaches a
// terminal state.
type Recorder struct {
	store   *Store
	source  JobSource
	log     *logger.Logger
	timeout time.Duration
}

// NewRecorder creates a Recorder reading job snapshots from source.
func NewRecorder(s *Store, source JobSource, log *logger.Logger) *Recorder {
	if log == nil {
		log = logger.Nop()
	}
	return &Recorder{store: s, source: source, log: log.WithComponent("recorder"), timeout: 5 * time.Second}
}

func (r *Recorder) OnEvent(e jobs.Event) {
	if !e.Terminal() {
		return
	}
	h, err := r.source.Get(e.JobID)
	if err != nil {
		r.log.Warn("finished job not found", logger.Fields(logger.FieldJobID, e.JobID))
		return
	}
	r.Record(h.Info())
}

// Record saves a job snapshot. Failures are logged.
func (r *Recorder) Record(info jobs.Info) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if err := r.store.Save(ctx, FromInfo(info)); err != nil {
		r.log.Error("failed to record job", logger.Fields(logger.FieldJobID, info.ID, logger.FieldError, err.Error()))
		return
	}
	r.log.Debug("job recorded", logger.Fields(logger.FieldJobID, info.ID, logger.FieldState, string(info.State)))
}

var _ jobs.Observer = (*Recorder)(nil)
