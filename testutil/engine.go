package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/kbukum/mediascribe/engine"
)

// Engine is a scripted engine.Engine. Transcribe returns Texts in call order
// (the last one repeats) unless Errs holds an error for that call.
type Engine struct {
	EngineName string
	EngineKind engine.Kind
	Texts      []string
	Spans      [][]engine.Span
	Errs       map[int]error
	LoadErr    error
	// Placeholder marks every result as placeholder output.
	Placeholder bool
	// BeforeTranscribe runs at the start of each call, with the 0-based call number.
	BeforeTranscribe func(call int, req engine.Request)

	mu       sync.Mutex
	loads    int
	calls    int
	cleanups int
	requests []engine.Request
}

// NewEngine creates a local scripted engine returning texts in order.
func NewEngine(name string, texts ...string) *Engine {
	return &Engine{EngineName: name, EngineKind: engine.KindLocal, Texts: texts}
}

// Factory returns a factory that always yields e.
func (e *Engine) Factory() engine.Factory {
	return func(engine.Options) (engine.Engine, error) { return e, nil }
}

func (e *Engine) Name() string      { return e.EngineName }
func (e *Engine) Kind() engine.Kind { return e.EngineKind }

func (e *Engine) Load(_ context.Context, progress engine.ProgressFunc, status engine.StatusFunc) error {
	e.mu.Lock()
	e.loads++
	e.mu.Unlock()
	if progress != nil {
		progress(50)
	}
	if e.LoadErr != nil {
		return e.LoadErr
	}
	status.Notify(fmt.Sprintf("%s loaded", e.EngineName))
	if progress != nil {
		progress(100)
	}
	return nil
}

func (e *Engine) Transcribe(_ context.Context, req engine.Request) (*engine.Result, error) {
	e.mu.Lock()
	call := e.calls
	e.calls++
	e.requests = append(e.requests, req)
	hook := e.BeforeTranscribe
	e.mu.Unlock()

	if hook != nil {
		hook(call, req)
	}
	if req.Progress != nil {
		req.Progress(50)
	}
	if err, ok := e.Errs[call]; ok {
		return nil, err
	}
	res := &engine.Result{Placeholder: e.Placeholder}
	if len(e.Texts) > 0 {
		res.Text = e.Texts[min(call, len(e.Texts)-1)]
	}
	if call < len(e.Spans) {
		res.Spans = e.Spans[call]
	}
	if req.Progress != nil {
		req.Progress(100)
	}
	return res, nil
}

func (e *Engine) Cleanup() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cleanups++
	return nil
}

// Loads returns how many times Load was called.
func (e *Engine) Loads() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loads
}

// Calls returns how many times Transcribe was called.
func (e *Engine) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// Cleanups returns how many times Cleanup was called.
func (e *Engine) Cleanups() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cleanups
}

// Requests returns every Transcribe request in call order.
func (e *Engine) Requests() []engine.Request {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]engine.Request(nil), e.requests...)
}

var _ engine.Engine = (*Engine)(nil)
