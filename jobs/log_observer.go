package jobs

import (
	"github.com/kbukum/mediascribe/logger"
)

// LogObserver writes job events to a logger. Progress events are logged at
// debug level, everything else at info, errors at error.
type LogObserver struct {
	log *logger.Logger
}

// NewLogObserver creates a LogObserver. A nil logger uses the global one.
func NewLogObserver(log *logger.Logger) *LogObserver {
	if log == nil {
		log = logger.WithComponent("events")
	}
	return &LogObserver{log: log}
}

func (o *LogObserver) OnEvent(e Event) {
	fields := logger.Fields(
		logger.FieldJobID, e.JobID,
		logger.FieldState, string(e.State),
		"seq", e.Seq,
		"progress", e.Progress,
	)
	switch e.Type {
	case EventProgress:
		o.log.Debug("job progress", fields)
	case EventSegmentProgress:
		fields[logger.FieldSegment] = e.Segment.Index
		fields["total"] = e.Segment.Total
		o.log.Debug(e.Segment.Label, fields)
	case EventStatus, EventDetail:
		o.log.Info(e.Message, fields)
	case EventState:
		o.log.Info("job state changed", fields)
	case EventResult:
		fields[logger.FieldEngine] = e.Result.Engine
		fields["partial"] = e.Result.Partial
		fields["placeholder"] = e.Result.Placeholder
		o.log.Info("job result ready", fields)
	case EventError:
		fields["code"] = string(e.Code)
		fields["detail"] = e.Detail
		o.log.Error(e.Message, fields)
	}
}

var _ Observer = (*LogObserver)(nil)
