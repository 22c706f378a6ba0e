package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kbukum/mediascribe/engine"
	"github.com/kbukum/mediascribe/errors"
	"github.com/kbukum/mediascribe/logger"
	"github.com/kbukum/mediascribe/media"
	"github.com/kbukum/mediascribe/observability"
	"github.com/kbukum/mediascribe/workspace"
)

// AudioExtractor produces an audio artifact for a time range of a source.
// A nil range extracts the whole source.
type AudioExtractor interface {
	Extract(ctx context.Context, scope media.Scope, source string, rng *media.TimeRange, quality media.Quality) (*media.Artifact, error)
}

// Config wires a Controller to its collaborators.
type Config struct {
	Estimator media.DurationEstimator
	Extractor AudioExtractor
	Selector  *engine.Selector
	Workspace *workspace.Manager
	Media     media.Config
	// Observer receives every event of every job.
	Observer Observer
	// Metrics may be nil.
	Metrics *observability.PipelineMetrics
	Logger  *logger.Logger
	// EventBuffer is the number of events retained per job.
	EventBuffer int
	// Retain is the number of finished jobs kept for Get and List.
	Retain int
}

// Controller runs submitted jobs one at a time on a single worker goroutine.
type Controller struct {
	cfg Config
	log *logger.Logger

	mu     sync.RWMutex
	jobs   map[string]*Handle
	order  []string
	queue  []*Handle
	closed bool
	subs   []Observer
	// pruned remembers ids of finished jobs dropped by retention, oldest
	// first, so a late Cancel stays a no-op.
	pruned    map[string]struct{}
	prunedIDs []string

	wake   chan struct{}
	ctx    context.Context
	stop   context.CancelFunc
	exited chan struct{}
}

// NewController validates cfg and starts the worker.
func NewController(cfg Config) (*Controller, error) {
	switch {
	case cfg.Estimator == nil:
		return nil, fmt.Errorf("jobs: duration estimator is required")
	case cfg.Extractor == nil:
		return nil, fmt.Errorf("jobs: extractor is required")
	case cfg.Selector == nil:
		return nil, fmt.Errorf("jobs: engine selector is required")
	case cfg.Workspace == nil:
		return nil, fmt.Errorf("jobs: workspace is required")
	}
	cfg.Media.ApplyDefaults()
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	if cfg.Retain <= 0 {
		cfg.Retain = 100
	}

	ctx, stop := context.WithCancel(context.Background())
	c := &Controller{
		cfg:    cfg,
		log:    cfg.Logger.WithComponent("jobs"),
		jobs:   make(map[string]*Handle),
		pruned: make(map[string]struct{}),
		wake:   make(chan struct{}, 1),
		ctx:    ctx,
		stop:   stop,
		exited: make(chan struct{}),
	}
	if cfg.Observer != nil {
		c.subs = append(c.subs, cfg.Observer)
	}
	go c.worker()
	return c, nil
}

// Submit validates opts, enqueues a job for source and returns immediately.
// Invalid options return an INVALID_INPUT error and create no job.
func (c *Controller) Submit(source string, opts Options) (*Handle, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if source == "" {
		return nil, errors.InvalidInput("source", "source is required")
	}

	h := newHandle(Job{
		ID:          uuid.NewString(),
		Source:      source,
		Options:     opts,
		SubmittedAt: time.Now().UTC(),
	}, c.cfg.EventBuffer)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, errors.Internal(fmt.Errorf("jobs: controller is closed"))
	}
	c.jobs[h.ID()] = h
	c.order = append(c.order, h.ID())
	c.queue = append(c.queue, h)
	c.pruneLocked()
	c.mu.Unlock()

	c.log.Info("job submitted", logger.Fields(logger.FieldJobID, h.ID(), logger.FieldSource, source))
	select {
	case c.wake <- struct{}{}:
	default:
	}
	return h, nil
}

// Subscribe adds an observer that receives every event published after the
// call. A panicking observer is logged and does not affect the job.
func (c *Controller) Subscribe(o Observer) {
	if o == nil {
		return
	}
	c.mu.Lock()
	c.subs = append(c.subs, o)
	c.mu.Unlock()
}

func (c *Controller) observers() []Observer {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.subs[:len(c.subs):len(c.subs)]
}

// Get returns the handle of a known job.
func (c *Controller) Get(id string) (*Handle, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	h, ok := c.jobs[id]
	if !ok {
		return nil, errors.NotFound("job", id)
	}
	return h, nil
}

// Cancel requests cancellation of job id. It is idempotent and never fails
// for a job that has finished, including one already dropped by retention.
// Only ids the controller never issued return NOT_FOUND.
func (c *Controller) Cancel(id string) error {
	c.mu.RLock()
	h, ok := c.jobs[id]
	_, pruned := c.pruned[id]
	c.mu.RUnlock()
	if !ok {
		if pruned {
			return nil
		}
		return errors.NotFound("job", id)
	}
	h.Cancel()
	c.log.Info("job cancel requested", logger.Fields(logger.FieldJobID, id))
	return nil
}

// List returns the retained jobs in submission order.
func (c *Controller) List() []*Handle {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Handle, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.jobs[id])
	}
	return out
}

// Close stops accepting jobs, cancels queued and running ones, and waits for
// the worker to exit or ctx to end.
func (c *Controller) Close(ctx context.Context) error {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		for _, h := range c.queue {
			h.Cancel()
		}
	}
	c.mu.Unlock()
	c.stop()

	select {
	case <-c.exited:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// pruneLocked drops the oldest finished jobs beyond the retention limit.
func (c *Controller) pruneLocked() {
	excess := len(c.order) - c.cfg.Retain
	if excess <= 0 {
		return
	}
	kept := c.order[:0]
	for _, id := range c.order {
		if excess > 0 && c.jobs[id].State().Terminal() {
			delete(c.jobs, id)
			c.rememberPrunedLocked(id)
			excess--
			continue
		}
		kept = append(kept, id)
	}
	c.order = kept
}

// prunedMemory bounds how many pruned ids Cancel still recognizes.
const prunedMemory = 4096

func (c *Controller) rememberPrunedLocked(id string) {
	c.pruned[id] = struct{}{}
	c.prunedIDs = append(c.prunedIDs, id)
	if len(c.prunedIDs) > prunedMemory {
		delete(c.pruned, c.prunedIDs[0])
		c.prunedIDs[0] = ""
		c.prunedIDs = c.prunedIDs[1:]
	}
}

func (c *Controller) next() (*Handle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) == 0 {
		return nil, false
	}
	h := c.queue[0]
	c.queue[0] = nil
	c.queue = c.queue[1:]
	return h, true
}

func (c *Controller) worker() {
	defer close(c.exited)
	for {
		if h, ok := c.next(); ok {
			c.process(h)
			continue
		}
		c.mu.RLock()
		closed := c.closed
		c.mu.RUnlock()
		if closed {
			return
		}
		select {
		case <-c.wake:
		case <-c.ctx.Done():
		}
	}
}

// process runs one job to a terminal state. Resources held by the run are
// released before the terminal event is published.
func (c *Controller) process(h *Handle) {
	r := newRun(c, h)
	outcome, err := r.safeExecute()
	r.finish(outcome, err)
}
