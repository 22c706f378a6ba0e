package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/kbukum/mediascribe/bootstrap"
	"github.com/kbukum/mediascribe/errors"
	"github.com/kbukum/mediascribe/jobs"
	"github.com/kbukum/mediascribe/logger"
	"github.com/kbukum/mediascribe/media"
	"github.com/kbukum/mediascribe/version"
)

func runTranscribe(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("transcribe", stderr)
	output := fs.StringP("output", "o", "", `transcript file, "-" for stdout (default: <source>_transcript.txt next to the source)`)
	quiet := fs.Bool("quiet", false, "do not print progress")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: mediascribe transcribe [flags] <file>\n\nFlags:\n%s", fs.FlagUsages())
	}
	if code, ok := parse(fs, args); !ok {
		return code
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return exitUsage
	}
	source := fs.Arg(0)

	cfg, log, ok := load(fs, stderr)
	if !ok {
		return exitFailure
	}
	p, err := newPipeline(cfg, log, nil)
	if err != nil {
		fmt.Fprintf(stderr, "mediascribe: %v\n", err)
		return exitFailure
	}
	if !*quiet {
		p.controller.Subscribe(newProgressPrinter(stderr))
	}

	dest := *output
	if dest == "" {
		dest = filepath.Join(filepath.Dir(source), media.TranscriptName(source))
	}

	app := bootstrap.NewApp(cfg.Service.Name, version.Version, bootstrap.WithLogger(log))
	app.OnStop(p.Close)

	var outcome *jobs.Outcome
	err = app.RunTask(context.Background(), func(ctx context.Context) error {
		h, err := p.controller.Submit(source, cfg.Pipeline)
		if err != nil {
			return err
		}
		stop := context.AfterFunc(ctx, h.Cancel)
		defer stop()
		outcome, err = h.Wait(context.Background())
		return err
	})

	switch {
	case stderrors.Is(err, jobs.ErrCancelled):
		fmt.Fprintln(stderr, "transcription cancelled")
		return exitCancelled
	case err != nil:
		reportError(stderr, err)
		return exitFailure
	}

	if err := writeTranscript(dest, outcome.Text, stdout); err != nil {
		fmt.Fprintf(stderr, "mediascribe: write transcript: %v\n", err)
		return exitFailure
	}
	if outcome.Partial {
		fmt.Fprintf(stderr, "warning: %d of %d segments were skipped: %s\n", outcome.Skipped, outcome.Segments, outcome.Note)
	}
	if outcome.Placeholder {
		fmt.Fprintf(stderr, "warning: %s returned placeholder text, the transcript is not real speech recognition output\n", outcome.Engine)
	}
	if dest != "-" {
		log.Info("transcript written", logger.Fields("path", dest, logger.FieldEngine, outcome.Engine, "elapsed", outcome.Elapsed.String()))
	}
	return exitOK
}

func writeTranscript(dest, text string, stdout io.Writer) error {
	if dest == "-" {
		_, err := fmt.Fprintln(stdout, text)
		return err
	}
	return os.WriteFile(dest, []byte(text+"\n"), 0o644)
}

func reportError(w io.Writer, err error) {
	if appErr, ok := errors.AsAppError(err); ok {
		fmt.Fprintf(w, "error [%s]: %s\n", appErr.Code, appErr.Message)
		if detail := errors.Detail(appErr); detail != "" && detail != appErr.Message {
			fmt.Fprintf(w, "  %s\n", detail)
		}
		return
	}
	fmt.Fprintf(w, "error: %v\n", err)
}

// progressPrinter renders job events as plain progress lines.
type progressPrinter struct {
	mu   sync.Mutex
	w    io.Writer
	last int
}

func newProgressPrinter(w io.Writer) *progressPrinter {
	return &progressPrinter{w: w, last: -10}
}

func (p *progressPrinter) OnEvent(e jobs.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch e.Type {
	case jobs.EventProgress:
		if e.Progress/10 == p.last/10 && e.Progress != 100 {
			return
		}
		p.last = e.Progress
		fmt.Fprintf(p.w, "[%3d%%]\n", e.Progress)
	case jobs.EventStatus, jobs.EventDetail:
		fmt.Fprintf(p.w, "[%3d%%] %s\n", e.Progress, e.Message)
	case jobs.EventSegmentProgress:
		fmt.Fprintf(p.w, "[%3d%%] segment %d/%d %s\n", e.Progress, e.Segment.Index, e.Segment.Total, e.Segment.Label)
	}
}

var _ jobs.Observer = (*progressPrinter)(nil)
