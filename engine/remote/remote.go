// Package remote transcribes through an asynchronous HTTP speech API: the
// artifact is uploaded as multipart form data, then the task is polled until
// it finishes.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kbukum/mediascribe/engine"
	"github.com/kbukum/mediascribe/errors"
	"github.com/kbukum/mediascribe/logger"
	"github.com/kbukum/mediascribe/resilience"
	"github.com/kbukum/mediascribe/security"
	"github.com/kbukum/mediascribe/version"
)

// Name is the registry name of this engine.
const Name = "remote"

// Config holds remote API settings.
type Config struct {
	BaseURL string `mapstructure:"base_url" json:"base_url"`
	APIKey  string `mapstructure:"api_key" json:"-"`
	Model   string `mapstructure:"model" json:"model"`
	// RequireCredentials makes a missing API key a load failure instead of
	// producing placeholder results.
	RequireCredentials bool                   `mapstructure:"require_credentials" json:"require_credentials"`
	PollInterval       time.Duration          `mapstructure:"poll_interval" json:"poll_interval"`
	Timeout            time.Duration          `mapstructure:"timeout" json:"timeout"`
	Retry              resilience.RetryConfig `mapstructure:"retry" json:"-"`
	// Breaker stops calling the service after repeated upstream failures,
	// so the remaining segments of a job fail at once.
	Breaker resilience.CircuitBreakerConfig `mapstructure:"breaker" json:"-"`
	// RateLimit caps requests per second to the service, polls included.
	// A zero rate leaves requests unthrottled.
	RateLimit resilience.RateLimiterConfig `mapstructure:"rate_limit" json:"rate_limit"`
	TLS       security.TLSConfig           `mapstructure:"tls" json:"tls"`
}

// ApplyDefaults fills in zero-valued fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:8387"
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.PollInterval == 0 {
		c.PollInterval = 2 * time.Second
	}
	if c.Timeout == 0 {
		c.Timeout = 120 * time.Second
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry = resilience.DefaultRetryConfig()
	}
	if c.Breaker.MaxFailures == 0 {
		c.Breaker = resilience.DefaultCircuitBreakerConfig(Name)
	}
}

// Available reports the engine available whenever a base URL is set. Missing
// credentials are handled at load time.
func Available(cfg Config) (bool, string) {
	if cfg.BaseURL == "" {
		return false, "base_url not configured"
	}
	return true, ""
}

// NewHTTPClient returns a client with the configured timeout and TLS
// settings.
func NewHTTPClient(cfg Config) (*http.Client, error) {
	cfg.ApplyDefaults()
	return cfg.TLS.HTTPClient(cfg.Timeout)
}

// Factory returns an engine.Factory for the remote API.
func Factory(cfg Config, client *http.Client, log *logger.Logger) engine.Factory {
	return func(opts engine.Options) (engine.Engine, error) {
		return New(cfg, opts, client, log), nil
	}
}

// Engine is an HTTP client for the remote API.
type Engine struct {
	cfg     Config
	opts    engine.Options
	client  *http.Client
	breaker *resilience.CircuitBreaker
	limiter *resilience.RateLimiter
	log     *logger.Logger
}

// New creates the engine. A nil client gets one with the configured timeout.
func New(cfg Config, opts engine.Options, client *http.Client, log *logger.Logger) *Engine {
	cfg.ApplyDefaults()
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if log == nil {
		log = logger.Nop()
	}
	e := &Engine{cfg: cfg, opts: opts, client: client, log: log.WithComponent(Name)}
	breakerCfg := cfg.Breaker
	breakerCfg.Name = Name
	breakerCfg.OnStateChange = func(name string, from, to resilience.State) {
		e.log.Warn("remote circuit breaker", logger.Fields("from", from.String(), "to", to.String()))
	}
	e.breaker = resilience.NewCircuitBreaker(breakerCfg)
	if cfg.RateLimit.Enabled() {
		e.limiter = resilience.NewRateLimiter(cfg.RateLimit)
	}
	return e
}

func (e *Engine) Name() string      { return Name }
func (e *Engine) Kind() engine.Kind { return engine.KindRemote }

// Placeholder reports whether results will be placeholders.
func (e *Engine) Placeholder() bool { return e.cfg.APIKey == "" }

// Load checks credentials and service health.
func (e *Engine) Load(ctx context.Context, progress engine.ProgressFunc, status engine.StatusFunc) error {
	p := engine.NewProgress(progress)
	p.Report(20)
	if e.Placeholder() {
		if e.cfg.RequireCredentials {
			return fmt.Errorf("remote: api key is required")
		}
		status.Notify("remote engine has no API key; results will be placeholders")
		p.Report(100)
		return nil
	}
	err := resilience.RetryFunc(ctx, e.retryConfig(), func() error {
		return e.do(ctx, http.MethodGet, "/health", nil, "", nil)
	})
	if err != nil {
		return fmt.Errorf("remote: health check: %w", err)
	}
	p.Report(100)
	return nil
}

// Transcribe uploads the artifact and polls the task until it completes.
func (e *Engine) Transcribe(ctx context.Context, req engine.Request) (*engine.Result, error) {
	p := engine.NewProgress(req.Progress)
	p.Report(10)
	if e.Placeholder() {
		res := placeholder(req.AudioPath)
		p.Report(100)
		return res, nil
	}

	body, contentType, err := e.form(req)
	if err != nil {
		return nil, err
	}
	var created task
	err = resilience.RetryFunc(ctx, e.retryConfig(), func() error {
		return e.do(ctx, http.MethodPost, "/v1/transcriptions", bytes.NewReader(body), contentType, &created)
	})
	if err != nil {
		return nil, err
	}
	if created.ID == "" {
		return nil, errors.ExternalServiceError(Name, fmt.Errorf("upload response has no task id"))
	}
	e.log.Debug("task created", logger.Fields("task", created.ID))

	for {
		var t task
		err := resilience.RetryFunc(ctx, e.retryConfig(), func() error {
			return e.do(ctx, http.MethodGet, "/v1/transcriptions/"+created.ID, nil, "", &t)
		})
		if err != nil {
			return nil, err
		}
		switch t.Status {
		case statusSucceeded:
			res := t.result()
			p.Report(100)
			return res, nil
		case statusFailed:
			return nil, errors.ExternalServiceError(Name, fmt.Errorf("task %s failed: %s", created.ID, t.Error))
		}
		p.Report(10 + t.Progress*80/100)
		if err := resilience.Sleep(ctx, e.cfg.PollInterval); err != nil {
			return nil, err
		}
	}
}

func (e *Engine) Cleanup() error {
	e.client.CloseIdleConnections()
	return nil
}

const (
	statusSucceeded = "succeeded"
	statusFailed    = "failed"
)

type task struct {
	ID       string  `json:"id"`
	Status   string  `json:"status"`
	Progress int     `json:"progress"`
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
	Error    string  `json:"error"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

func (t *task) result() *engine.Result {
	res := &engine.Result{Text: strings.TrimSpace(t.Text), Language: t.Language, Duration: t.Duration}
	for _, s := range t.Segments {
		res.Spans = append(res.Spans, engine.Span{Start: s.Start, End: s.End, Text: strings.TrimSpace(s.Text)})
	}
	if res.Text == "" {
		res.Text = engine.JoinSpans(res.Spans)
	}
	return res
}

func (e *Engine) form(req engine.Request) ([]byte, string, error) {
	f, err := os.Open(req.AudioPath)
	if err != nil {
		return nil, "", fmt.Errorf("remote: open artifact: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filepath.Base(req.AudioPath))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("remote: read artifact: %w", err)
	}
	model := e.cfg.Model
	if model == "" {
		model = req.Options.Model
	}
	_ = w.WriteField("model", model)
	if lang := req.Options.LanguageHint(); lang != "" {
		_ = w.WriteField("language", lang)
	}
	_ = w.WriteField("temperature", fmt.Sprint(req.Options.Temperature))
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

// do performs one request through the rate limiter and the circuit breaker.
// Network failures, 429 and 5xx are retryable EXTERNAL_SERVICE_ERRORs and
// count against the breaker; other non-2xx statuses are not retried. While
// the breaker is open do fails at once with a non-retryable
// EXTERNAL_SERVICE_ERROR.
func (e *Engine) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	err := e.breaker.Execute(func() error {
		return e.send(ctx, method, path, body, contentType, out)
	})
	if stderrors.Is(err, resilience.ErrCircuitOpen) {
		appErr := errors.ExternalServiceError(Name, fmt.Errorf("%s %s: %w", method, path, err))
		appErr.Retryable = false
		return appErr
	}
	return err
}

func (e *Engine) send(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, e.cfg.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", version.UserAgent())
	if e.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.ExternalServiceError(Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		appErr := errors.ExternalServiceError(Name, fmt.Errorf("%s %s: status %d: %s",
			method, path, resp.StatusCode, strings.TrimSpace(string(msg))))
		appErr.Retryable = resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return appErr.WithDetail("status", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.ExternalServiceError(Name, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func (e *Engine) retryConfig() resilience.RetryConfig {
	cfg := e.cfg.Retry
	cfg.OnRetry = func(attempt int, err error, backoff time.Duration) {
		e.log.Warn("remote request retry", logger.Fields("attempt", attempt, "backoff", backoff.String(), logger.FieldError, err.Error()))
	}
	return cfg
}

// placeholder builds a result that is visibly not a transcript.
func placeholder(audioPath string) *engine.Result {
	return &engine.Result{
		Text: fmt.Sprintf("%s no API key configured for the remote engine; %s was not transcribed",
			engine.PlaceholderTag, filepath.Base(audioPath)),
		Placeholder: true,
	}
}

var _ engine.Engine = (*Engine)(nil)
