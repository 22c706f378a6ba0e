package server

import (
	"context"
	"encoding/json"
	"io"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/mediascribe/auth"
	"github.com/kbukum/mediascribe/errors"
	"github.com/kbukum/mediascribe/jobs"
	"github.com/kbukum/mediascribe/logger"
	"github.com/kbukum/mediascribe/observability"
	"github.com/kbukum/mediascribe/resilience"
	"github.com/kbukum/mediascribe/server/endpoint"
	"github.com/kbukum/mediascribe/server/middleware"
	"github.com/kbukum/mediascribe/sse"
	"github.com/kbukum/mediascribe/store"
	"github.com/kbukum/mediascribe/util"
	"github.com/kbukum/mediascribe/validation"
)

// JobController is the part of jobs.Controller the API drives.
type JobController interface {
	Submit(source string, opts jobs.Options) (*jobs.Handle, error)
	Get(id string) (*jobs.Handle, error)
	Cancel(id string) error
	List() []*jobs.Handle
}

// History looks up finished jobs no longer held in memory.
type History interface {
	Get(ctx context.Context, id string) (*store.JobRecord, error)
	List(ctx context.Context, q store.ListQuery) ([]store.JobRecord, int64, error)
}

// APIConfig wires the job API.
type APIConfig struct {
	Service string
	Jobs    JobController
	// History may be nil when the store is disabled.
	History History
	Hub     *sse.Hub
	// Defaults are the options a submission starts from.
	Defaults jobs.Options
	// Auth may be nil, which leaves the API open.
	Auth        middleware.TokenParser
	SubmitLimit middleware.RateLimitConfig
	// MaxStreams caps open event streams across both stream routes.
	// Zero leaves them uncapped.
	MaxStreams int
	Checkers   []observability.HealthChecker
	Logger     *logger.Logger
}

// SubmitRequest is the body of POST /api/v1/jobs. Options fields that are
// omitted keep their configured defaults.
type SubmitRequest struct {
	Source  string       `json:"source" validate:"required"`
	Options jobs.Options `json:"options"`
}

type api struct {
	cfg APIConfig
	log *logger.Logger
}

// Mount registers the health endpoints and the job API. ctx bounds
// background work of the middleware.
func (s *Server) Mount(ctx context.Context, cfg APIConfig) {
	if cfg.Logger == nil {
		cfg.Logger = s.log
	}
	a := &api{cfg: cfg, log: cfg.Logger.WithComponent("api")}

	e := s.engine
	e.GET("/health", endpoint.Health(cfg.Service, cfg.Checkers...))
	e.GET("/health/live", endpoint.Liveness(cfg.Service))
	e.GET("/version", endpoint.Version())

	read, write := open, open
	if cfg.Auth != nil {
		read = middleware.Auth(cfg.Auth, auth.ScopeRead)
		write = middleware.Auth(cfg.Auth, auth.ScopeWrite)
	}

	var streams *resilience.Bulkhead
	if cfg.MaxStreams > 0 {
		streams = resilience.NewBulkhead(resilience.BulkheadConfig{
			Name:          "event streams",
			MaxConcurrent: cfg.MaxStreams,
			OnReject: func(name string) {
				a.log.Warn("stream limit reached", logger.Fields("max_streams", cfg.MaxStreams))
			},
		})
	}
	streamLimit := middleware.StreamLimit(streams)

	v1 := e.Group("/api/v1")
	v1.POST("/jobs", write, middleware.RateLimit(ctx, cfg.SubmitLimit), a.submit)
	v1.GET("/jobs", read, a.list)
	v1.GET("/jobs/:id", read, a.get)
	v1.DELETE("/jobs/:id", write, a.cancel)
	v1.GET("/jobs/:id/events", read, streamLimit, a.events)
	v1.GET("/events", read, streamLimit, a.feed)
}

func open(c *gin.Context) { c.Next() }

func (a *api) submit(c *gin.Context) {
	req := SubmitRequest{Options: a.cfg.Defaults}
	dec := json.NewDecoder(c.Request.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		RespondWithError(c, errors.InvalidInput("body", err.Error()))
		return
	}
	req.Source = strings.TrimSpace(req.Source)
	if err := validation.Validate(req); err != nil {
		RespondWithError(c, err)
		return
	}

	h, err := a.cfg.Jobs.Submit(req.Source, req.Options)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	c.Header("Location", "/api/v1/jobs/"+h.ID())
	RespondAccepted(c, h.Info())
}

func (a *api) list(c *gin.Context) {
	state := c.Query("state")
	if state != "" && !jobs.State(state).Valid() {
		RespondWithError(c, errors.InvalidInput("state", "unknown state "+strconv.Quote(state)))
		return
	}
	limit, err := queryInt(c, "limit", 50)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		RespondWithError(c, err)
		return
	}

	if c.Query("history") == "true" {
		if a.cfg.History == nil {
			RespondWithError(c, errors.NotFound("job history", ""))
			return
		}
		recs, total, err := a.cfg.History.List(c.Request.Context(), store.ListQuery{State: state, Limit: limit, Offset: offset})
		if err != nil {
			RespondWithError(c, err)
			return
		}
		RespondOKWithMeta(c, recs, &Meta{Total: total, Limit: limit, Offset: offset})
		return
	}

	infos := make([]jobs.Info, 0)
	for _, h := range a.cfg.Jobs.List() {
		info := h.Info()
		if state == "" || info.State == jobs.State(state) {
			infos = append(infos, info)
		}
	}
	total := int64(len(infos))
	infos = infos[min(offset, len(infos)):]
	infos = infos[:min(limit, len(infos))]
	RespondOKWithMeta(c, infos, &Meta{Total: total, Limit: limit, Offset: offset})
}

func (a *api) get(c *gin.Context) {
	id, ok := jobID(c)
	if !ok {
		return
	}
	if h, err := a.cfg.Jobs.Get(id); err == nil {
		RespondOK(c, h.Info())
		return
	}
	rec, err := a.fromHistory(c.Request.Context(), id)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	RespondOK(c, rec)
}

// cancel is idempotent: cancelling a finished job returns it unchanged.
func (a *api) cancel(c *gin.Context) {
	id, ok := jobID(c)
	if !ok {
		return
	}
	if h, err := a.cfg.Jobs.Get(id); err == nil {
		if !h.State().Terminal() {
			if err := a.cfg.Jobs.Cancel(id); err != nil {
				RespondWithError(c, err)
				return
			}
			RespondAccepted(c, h.Info())
			return
		}
		RespondOK(c, h.Info())
		return
	}
	rec, err := a.fromHistory(c.Request.Context(), id)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	RespondOK(c, rec)
}

func (a *api) events(c *gin.Context) {
	id, ok := jobID(c)
	if !ok {
		return
	}
	h, err := a.cfg.Jobs.Get(id)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	sse.ServeJob(a.cfg.Hub, c.Writer, c.Request, h, a.log)
}

func (a *api) feed(c *gin.Context) {
	sse.ServeFeed(a.cfg.Hub, c.Writer, c.Request, a.log)
}

func (a *api) fromHistory(ctx context.Context, id string) (*store.JobRecord, error) {
	if a.cfg.History == nil {
		return nil, errors.NotFound("job", id)
	}
	return a.cfg.History.Get(ctx, id)
}

func jobID(c *gin.Context) (string, bool) {
	id, err := util.ValidateUUID("id", c.Param("id"))
	if err != nil {
		RespondWithError(c, errors.InvalidInput("id", err.Error()))
		return "", false
	}
	return id.String(), true
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	v := c.Query(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, errors.InvalidInput(key, key+" must be a non-negative integer")
	}
	return n, nil
}
