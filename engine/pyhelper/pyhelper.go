// Package pyhelper drives a long-lived python helper that loads a speech
// model once and then answers one JSON request per stdin line.
//
// Every stdout line of the helper is a JSON event: "progress" (value
// 0..100), "ready" once the model is loaded, "result" with the recognized
// segments, or "error". Lines that are not JSON are logged and skipped.
package pyhelper

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/kbukum/mediascribe/engine"
	"github.com/kbukum/mediascribe/logger"
	"github.com/kbukum/mediascribe/process"
)

// Event is one line written by the helper.
type Event struct {
	Event    string    `json:"event"`
	Value    int       `json:"value"`
	Message  string    `json:"message"`
	Language string    `json:"language"`
	Duration float64   `json:"duration"`
	Segments []Segment `json:"segments"`
}

// Segment is one timed piece of a result event.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Request is one transcription request line.
type Request struct {
	Audio                     string  `json:"audio"`
	Language                  string  `json:"language,omitempty"`
	BeamSize                  int     `json:"beam_size"`
	Temperature               float64 `json:"temperature"`
	NoSpeechThreshold         float64 `json:"no_speech_threshold"`
	CompressionRatioThreshold float64 `json:"compression_ratio_threshold"`
	LogprobThreshold          float64 `json:"logprob_threshold"`
	ConditionOnPreviousText   bool    `json:"condition_on_previous_text"`
	WordTimestamps            bool    `json:"word_timestamps"`
}

// NewRequest builds the request for one artifact.
func NewRequest(audio string, o engine.Options) Request {
	return Request{
		Audio:                     audio,
		Language:                  o.LanguageHint(),
		BeamSize:                  o.BeamSize,
		Temperature:               o.Temperature,
		NoSpeechThreshold:         o.NoSpeechThreshold,
		CompressionRatioThreshold: o.CompressionRatioThreshold,
		LogprobThreshold:          o.LogprobThreshold,
		ConditionOnPreviousText:   o.ConditionOnPreviousText,
		WordTimestamps:            o.WordTimestamps,
	}
}

// Conn is a running helper process.
type Conn struct {
	In   io.WriteCloser
	Out  io.Reader
	Done <-chan struct{}
	// Tail returns the last n stderr lines.
	Tail func(n int) string
	// Stop ends the process. It must be idempotent.
	Stop func() error
}

// StartFunc launches a helper process.
type StartFunc func(cmd process.Command) (*Conn, error)

// StartProcess launches cmd as a process.Session.
func StartProcess(cmd process.Command) (*Conn, error) {
	s, err := process.Start(cmd)
	if err != nil {
		return nil, err
	}
	return &Conn{In: s.Stdin, Out: s.Stdout, Done: s.Done(), Tail: s.StderrTail, Stop: s.Stop}, nil
}

// Client talks to one helper. Calls are serialized.
type Client struct {
	name string
	log  *logger.Logger

	mu     sync.Mutex
	conn   *Conn
	events chan Event
	quit   chan struct{}
	closed bool
}

// Start launches the helper and waits for its "ready" event, forwarding
// load progress. On failure the process is stopped.
func Start(ctx context.Context, name string, start StartFunc, cmd process.Command, progress engine.ProgressFunc, log *logger.Logger) (*Client, error) {
	if start == nil {
		start = StartProcess
	}
	if log == nil {
		log = logger.Nop()
	}
	conn, err := start(cmd)
	if err != nil {
		return nil, fmt.Errorf("%s: start helper: %w", name, err)
	}
	c := &Client{
		name:   name,
		log:    log,
		conn:   conn,
		events: make(chan Event, 16),
		quit:   make(chan struct{}),
	}
	go c.read()

	p := engine.NewProgress(progress)
	for {
		ev, err := c.next(ctx)
		if err == nil && ev.Event == "error" {
			err = fmt.Errorf("%s: %s", name, ev.Message)
		}
		if err != nil {
			_ = c.Close()
			return nil, err
		}
		switch ev.Event {
		case "progress":
			p.Report(ev.Value)
		case "ready":
			p.Report(100)
			return c, nil
		}
	}
}

// Call sends req and waits for its result. Helper progress is mapped into
// 10..90 of progress.
func (c *Client) Call(ctx context.Context, req any, progress engine.ProgressFunc) (*engine.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, fmt.Errorf("%s: helper is closed", c.name)
	}

	line, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	if _, err := c.conn.In.Write(append(line, '\n')); err != nil {
		return nil, fmt.Errorf("%s: send request: %w", c.name, err)
	}

	p := engine.NewProgress(progress)
	p.Report(10)
	for {
		ev, err := c.next(ctx)
		if err != nil {
			return nil, err
		}
		switch ev.Event {
		case "progress":
			p.Report(10 + ev.Value*80/100)
		case "error":
			return nil, fmt.Errorf("%s: %s", c.name, ev.Message)
		case "result":
			res := &engine.Result{Language: ev.Language, Duration: ev.Duration}
			for _, s := range ev.Segments {
				res.Spans = append(res.Spans, engine.Span{Start: s.Start, End: s.End, Text: strings.TrimSpace(s.Text)})
			}
			if res.Duration == 0 && len(res.Spans) > 0 {
				res.Duration = res.Spans[len(res.Spans)-1].End
			}
			res.Text = engine.JoinSpans(res.Spans)
			p.Report(100)
			return res, nil
		}
	}
}

// Close stops the helper. It is idempotent.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.quit)
	return c.conn.Stop()
}

// next returns the next event. A cancelled ctx stops the helper, since a
// request in flight cannot be withdrawn.
func (c *Client) next(ctx context.Context) (Event, error) {
	select {
	case <-ctx.Done():
		_ = c.conn.Stop()
		return Event{}, ctx.Err()
	case ev, ok := <-c.events:
		if !ok {
			select {
			case <-c.conn.Done:
			case <-ctx.Done():
			}
			return Event{}, fmt.Errorf("%s: helper exited: %s", c.name, c.conn.Tail(5))
		}
		return ev, nil
	}
}

func (c *Client) read() {
	defer close(c.events)
	scanner := bufio.NewScanner(c.conn.Out)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		var ev Event
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			c.log.Debug("helper output", logger.Fields("line", scanner.Text()))
			continue
		}
		select {
		case c.events <- ev:
		case <-c.quit:
			return
		}
	}
}

// WriteScript writes an embedded helper into dir and returns its path and a
// function that removes it. An empty dir gets a private temp directory,
// removed as a whole.
func WriteScript(dir, name string, data []byte) (string, func(), error) {
	remove := func(path string) func() { return func() { _ = os.RemoveAll(path) } }
	owned := dir == ""
	if owned {
		tmp, err := os.MkdirTemp("", "mediascribe-helper-")
		if err != nil {
			return "", nil, fmt.Errorf("create helper dir: %w", err)
		}
		dir = tmp
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		if owned {
			_ = os.RemoveAll(dir)
		}
		return "", nil, fmt.Errorf("write helper: %w", err)
	}
	if owned {
		return path, remove(dir), nil
	}
	return path, remove(path), nil
}
