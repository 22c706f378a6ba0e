// Package media probes and decodes source media through ffprobe and ffmpeg.
//
// The Inspector reports duration and audio presence. The Extractor produces an
// audio Artifact inside a job workspace, for the whole file or a time range,
// trying progressively simpler ffmpeg parameter sets until one succeeds.
package media
