package jobs

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/mediascribe/engine"
	"github.com/kbukum/mediascribe/errors"
	"github.com/kbukum/mediascribe/logger"
	"github.com/kbukum/mediascribe/media"
	"github.com/kbukum/mediascribe/observability"
	"github.com/kbukum/mediascribe/plan"
	"github.com/kbukum/mediascribe/transcript"
	"github.com/kbukum/mediascribe/workspace"
)

// Progress checkpoints of a job.
const (
	progressStart       = 0
	progressPlanned     = 10
	progressEngineReady = 30
	progressAssembling  = 90
	progressDone        = 100
)

// run is the state of one job execution. It is owned by the worker goroutine.
type run struct {
	c       *Controller
	h       *Handle
	job     Job
	log     *logger.Logger
	ctx     context.Context
	span    trace.Span
	started time.Time
	sent    bool
	engine  string
}

func newRun(c *Controller, h *Handle) *run {
	ctx, span := observability.StartSpan(c.ctx, observability.SpanJob,
		trace.WithAttributes(attribute.String(observability.AttrJobID, h.ID())))
	return &run{
		c:       c,
		h:       h,
		job:     h.Job(),
		log:     c.log.WithJob(h.ID()),
		ctx:     ctx,
		span:    span,
		started: time.Now(),
	}
}

// publish stamps e with the job's identity and current state and delivers it.
func (r *run) publish(e Event) {
	e.JobID = r.job.ID
	e.State, e.Progress = r.h.snapshot()
	e = r.h.events.Publish(e)
	for _, o := range r.c.observers() {
		r.deliver(o, e)
	}
}

func (r *run) deliver(o Observer, e Event) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("observer panicked", logger.Fields("panic", fmt.Sprint(rec)))
		}
	}()
	o.OnEvent(e)
}

// progress publishes p when it is higher than the last published value.
// The first report is always published.
func (r *run) progress(p int) {
	p = max(0, min(100, p))
	if !r.h.setProgress(p, !r.sent) {
		return
	}
	r.sent = true
	r.publish(Event{Type: EventProgress})
}

func (r *run) status(msg string) {
	r.log.Info(msg)
	r.publish(Event{Type: EventStatus, Message: msg})
}

func (r *run) transition(to State) error {
	if err := r.h.transition(to); err != nil {
		return err
	}
	r.span.AddEvent(string(to))
	r.publish(Event{Type: EventState})
	return nil
}

func (r *run) cancelRequested() bool {
	return r.h.CancelRequested() || r.ctx.Err() != nil
}

// safeExecute runs the pipeline, converting a panic into an INTERNAL error.
func (r *run) safeExecute() (outcome *Outcome, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("job panicked", logger.Fields("panic", fmt.Sprint(rec)))
			outcome, err = nil, errors.Internal(fmt.Errorf("panic: %v", rec))
		}
	}()
	r.c.cfg.Metrics.RecordJobStart(r.ctx)
	return r.execute()
}

func (r *run) execute() (*Outcome, error) {
	if err := r.transition(StatePlanning); err != nil {
		return nil, err
	}
	r.progress(progressStart)
	r.log.Info("job started", logger.Fields(logger.FieldSource, r.job.Source))
	if r.cancelRequested() {
		return nil, ErrCancelled
	}

	size, err := media.CheckSource(r.job.Source, r.c.cfg.Media)
	if err != nil {
		return nil, err
	}

	scope, err := r.c.cfg.Workspace.Acquire(r.job.ID)
	if err != nil {
		return nil, errors.Internal(err)
	}
	defer scope.Release()

	p, err := r.plan(size)
	if err != nil {
		return nil, err
	}
	r.progress(progressPlanned)

	sel, err := r.selectEngine(scope.Dir())
	if err != nil {
		return nil, err
	}
	eng := sel.Engine
	defer func() {
		if cerr := eng.Cleanup(); cerr != nil {
			r.log.Warn("engine cleanup failed", logger.Fields(logger.FieldEngine, eng.Name(), logger.FieldError, cerr.Error()))
		}
	}()
	r.progress(progressEngineReady)

	segments, stats, err := r.transcribeAll(scope, p, eng)
	if err != nil {
		return nil, err
	}

	if err := r.transition(StateAssembling); err != nil {
		return nil, err
	}
	r.progress(progressAssembling)
	_, span := observability.StartSpan(r.ctx, observability.SpanAssemble)
	text, err := transcript.Assemble(segments, p.NeedsSplit)
	observability.EndSpan(span, err)
	if err != nil {
		if errors.IsCode(err, errors.ErrCodeEmptyTranscript) {
			return nil, errors.EmptyTranscript(p.Count(), stats.skipped)
		}
		return nil, err
	}

	outcome := &Outcome{
		Text:        text,
		Engine:      eng.Name(),
		Partial:     stats.skipped > 0,
		Placeholder: stats.placeholder,
		Segments:    p.Count(),
		Skipped:     stats.skipped,
		Duration:    p.Duration,
	}
	if outcome.Partial {
		outcome.Note = fmt.Sprintf("%d of %d segments could not be transcribed", stats.skipped, p.Count())
	}
	if outcome.Placeholder {
		r.status("the transcript contains placeholder output, not recognized speech")
	}
	return outcome, nil
}

// plan inspects the source and splits it into segments.
func (r *run) plan(size int64) (*plan.Plan, error) {
	ctx, span := observability.StartSpan(r.ctx, observability.SpanPlan)
	p, err := r.inspectAndPlan(ctx, size)
	observability.EndSpan(span, err)
	return p, err
}

func (r *run) inspectAndPlan(ctx context.Context, size int64) (*plan.Plan, error) {
	source := r.job.Source
	duration, err := r.c.cfg.Estimator.Duration(ctx, source)
	if err != nil {
		if !errors.IsCode(err, errors.ErrCodeDurationUnavailable) {
			err = errors.DurationUnavailable(source, err)
		}
		return nil, err
	}

	hasAudio, err := r.c.cfg.Estimator.HasAudio(ctx, source)
	switch {
	case err != nil:
		r.log.Warn("audio stream check failed, relying on extraction", logger.Fields(logger.FieldError, err.Error()))
	case !hasAudio:
		return nil, errors.NoAudioTrack(source)
	}

	p, err := plan.New(size, r.job.Options.SizeThresholdGB, duration)
	if err != nil {
		if appErr, ok := errors.AsAppError(err); ok && appErr.Code == errors.ErrCodeDurationUnavailable {
			appErr.WithDetail("source", source)
		}
		return nil, err
	}

	r.h.update(func(h *Handle) {
		h.duration = p.Duration
		h.segments = p.Count()
	})
	r.span.SetAttributes(attribute.Int(observability.AttrSegments, p.Count()))
	r.log.Info("job planned", logger.Fields(
		"size_gb", p.SizeGB,
		"duration", p.Duration,
		"segments", p.Count(),
	))
	if p.NeedsSplit {
		r.status(fmt.Sprintf("file is %.2f GB, splitting into %d segments of %s",
			p.SizeGB, p.Count(), transcript.Clock(p.SegmentDuration)))
	}
	return p, nil
}

// selectEngine loads the preferred engine or the first usable fallback.
// Load progress is mapped into 10..30. Engines keep helper files in workDir.
func (r *run) selectEngine(workDir string) (*engine.Selection, error) {
	ctx, span := observability.StartSpan(r.ctx, observability.SpanSelectEngine)
	opts := r.job.Options
	engineOpts := opts.Options
	engineOpts.WorkDir = workDir
	sel, err := r.c.cfg.Selector.Select(ctx, opts.Engine, opts.Fallback, engineOpts,
		engine.Scale(r.progress, progressPlanned, progressEngineReady), r.status)
	if err == nil {
		span.SetAttributes(attribute.String(observability.AttrEngine, sel.Engine.Name()))
		for name := range sel.Skipped {
			r.c.cfg.Metrics.RecordFallback(ctx, name)
		}
	}
	observability.EndSpan(span, err)
	if err != nil {
		if r.ctx.Err() != nil {
			return nil, ErrCancelled
		}
		return nil, err
	}

	r.engine = sel.Engine.Name()
	r.h.update(func(h *Handle) { h.engine = r.engine })
	r.span.SetAttributes(attribute.String(observability.AttrEngine, r.engine))
	return sel, nil
}

type segmentStats struct {
	skipped     int
	placeholder bool
}

// transcribeAll extracts and transcribes every segment in index order.
// Per-segment extraction and engine failures skip the segment.
func (r *run) transcribeAll(scope *workspace.Scope, p *plan.Plan, eng engine.Engine) ([]transcript.Segment, segmentStats, error) {
	var (
		stats    segmentStats
		segments = make([]transcript.Segment, 0, p.Count())
		opts     = r.job.Options
		n        = float64(p.Count())
	)

	for i, seg := range p.Segments {
		lo := progressEngineReady + (progressAssembling-progressEngineReady)*float64(i)/n
		hi := progressEngineReady + (progressAssembling-progressEngineReady)*float64(i+1)/n
		log := r.log.WithFields(logger.Fields(logger.FieldSegment, seg.Index+1))

		if r.cancelRequested() {
			return nil, stats, ErrCancelled
		}
		if err := r.transition(StateExtracting); err != nil {
			return nil, stats, err
		}
		r.segmentProgress(seg.Index+1, p.Count(), "extracting audio")

		var rng *media.TimeRange
		if p.NeedsSplit {
			rng = &media.TimeRange{Start: seg.Start, End: seg.End}
		}
		artifact, err := r.extract(scope, rng, seg.Index)
		if err != nil {
			if errors.IsCode(err, errors.ErrCodeNoAudioTrack) {
				return nil, stats, err
			}
			if r.ctx.Err() != nil {
				return nil, stats, ErrCancelled
			}
			if !errors.IsCode(err, errors.ErrCodeExtractionFailed) {
				err = errors.ExtractionFailed(r.job.Source, []error{err})
			}
			r.skip(log, seg, p.Count(), err)
			stats.skipped++
			r.progress(int(hi))
			continue
		}

		if r.cancelRequested() {
			return nil, stats, ErrCancelled
		}
		if err := r.transition(StateTranscribing); err != nil {
			return nil, stats, err
		}
		r.segmentProgress(seg.Index+1, p.Count(), "transcribing")

		res, err := r.transcribe(eng, engine.Request{
			AudioPath: artifact.Path,
			Options:   opts.Options,
			Progress:  engine.Scale(r.progress, lo, hi),
		}, seg.Index)
		if rerr := scope.Remove(artifact.Path); rerr != nil {
			log.Warn("artifact removal failed", logger.Fields(logger.FieldError, rerr.Error()))
		}
		if err != nil {
			if r.ctx.Err() != nil {
				return nil, stats, ErrCancelled
			}
			if !errors.IsCode(err, errors.ErrCodeTranscribe) {
				err = errors.TranscribeError(eng.Name(), err)
			}
			r.skip(log, seg, p.Count(), err)
			stats.skipped++
			r.progress(int(hi))
			continue
		}

		if res.Placeholder {
			stats.placeholder = true
		}
		segments = append(segments, transcript.Segment{
			Index: seg.Index,
			Start: seg.Start,
			End:   seg.End,
			Text:  res.Shift(seg.Start).Render(opts.ShowTimestamps),
		})
		r.c.cfg.Metrics.RecordSegment(r.ctx, r.engine, "ok")
		log.Debug("segment transcribed", logger.Fields("chars", len(res.Text)))
		r.progress(int(hi))
	}
	return segments, stats, nil
}

func (r *run) extract(scope *workspace.Scope, rng *media.TimeRange, index int) (*media.Artifact, error) {
	ctx, span := observability.StartSegmentSpan(r.ctx, observability.SpanExtract, index)
	artifact, err := r.c.cfg.Extractor.Extract(ctx, scope, r.job.Source, rng, r.job.Options.AudioQuality())
	observability.EndSpan(span, err)
	return artifact, err
}

func (r *run) transcribe(eng engine.Engine, req engine.Request, index int) (*engine.Result, error) {
	ctx, span := observability.StartSegmentSpan(r.ctx, observability.SpanTranscribe, index)
	res, err := eng.Transcribe(ctx, req)
	if err == nil && res == nil {
		err = fmt.Errorf("engine returned no result")
	}
	observability.EndSpan(span, err)
	return res, err
}

func (r *run) segmentProgress(index, total int, label string) {
	r.publish(Event{
		Type:    EventSegmentProgress,
		Segment: &SegmentProgress{Index: index, Total: total, Label: label},
	})
}

// skip records a segment that produced no text.
func (r *run) skip(log *logger.Logger, seg plan.Segment, total int, err error) {
	code := errors.CodeOf(err)
	log.Warn("segment skipped", logger.Fields("code", string(code), logger.FieldError, err.Error()))
	r.c.cfg.Metrics.RecordSegment(r.ctx, r.engine, string(code))
	r.publish(Event{
		Type:    EventDetail,
		Code:    code,
		Message: fmt.Sprintf("segment %d of %d skipped: %s", seg.Index+1, total, errors.Wrap(err).Message),
		Detail:  errors.Detail(err),
	})
}

// finish moves the job to its terminal state and publishes the closing
// events: a result on success, an error on failure, nothing on cancellation.
func (r *run) finish(outcome *Outcome, err error) {
	var state State
	switch {
	case err == nil:
		outcome.Elapsed = time.Since(r.started)
		r.h.update(func(h *Handle) { h.outcome = outcome })
		r.progress(progressDone)
		r.publish(Event{Type: EventResult, Result: outcome})
		state = StateCompleted
		r.log.Info("job completed", logger.Fields(
			logger.FieldEngine, outcome.Engine,
			"segments", outcome.Segments,
			"skipped", outcome.Skipped,
			"elapsed", outcome.Elapsed.String(),
		))
	case errors.Is(err, ErrCancelled):
		state = StateCancelled
		r.log.Info("job cancelled")
	default:
		appErr := errors.Wrap(err)
		r.h.update(func(h *Handle) { h.err = appErr })
		r.publish(Event{
			Type:    EventError,
			Code:    appErr.Code,
			Message: appErr.Message,
			Detail:  errors.Detail(appErr),
		})
		state = StateFailed
		r.span.SetAttributes(attribute.String(observability.AttrErrorCode, string(appErr.Code)))
		r.log.Error("job failed", logger.Fields("code", string(appErr.Code), logger.FieldError, appErr.Error()))
	}

	if terr := r.h.transition(state); terr != nil {
		r.log.Error("terminal transition rejected", logger.Fields(logger.FieldError, terr.Error()))
		r.h.update(func(h *Handle) {
			h.state = state
			h.finishedAt = time.Now().UTC()
		})
	}
	r.publish(Event{Type: EventState})

	r.span.SetAttributes(attribute.String(observability.AttrState, string(state)))
	if state == StateFailed {
		observability.EndSpan(r.span, err)
	} else {
		r.span.End()
	}
	r.c.cfg.Metrics.RecordJobEnd(r.ctx, r.engine, string(state), time.Since(r.started))
	close(r.h.done)
}
