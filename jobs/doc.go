// Package jobs runs transcription jobs: it validates the source, plans
// segments, selects and loads an engine, extracts and transcribes each
// segment in order, and assembles the transcript.
//
// A Controller owns one worker goroutine and runs one job at a time. Callers
// follow a job through its Handle or an Observer:
//
//	h, err := ctrl.Submit("/media/talk.mp4", jobs.DefaultOptions())
//	if err != nil { ... }     // INVALID_INPUT, no job created
//	out, err := h.Wait(ctx)   // *Outcome, *errors.AppError or ErrCancelled
//
// Cancellation is cooperative. Handle.Cancel sets a flag that the worker
// checks before each extraction and each transcription; calls already in
// flight run to completion. The job's working directory and the loaded
// engine are released on every exit path before Done is closed.
package jobs
