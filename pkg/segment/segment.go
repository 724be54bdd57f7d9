// Package segment turns a stream of audio chunks and per-chunk speech
// evidence into discrete speech segments.
//
// Three pieces cooperate:
//
//   - [Gate] corroborates backend evidence with signal energy so quiet
//     broadband noise that a VAD model mistakes for speech is ignored.
//   - [Segmenter] is the Idle/Speaking state machine. It keeps a hysteresis
//     countdown so short pauses do not split a span, accumulates samples
//     while speaking (including the silent tail), and finalizes the span once
//     silence outlasts the timeout. Spans shorter than the minimum speech
//     length are discarded.
//   - [Session] drives both once per tick: it classifies the chunk, gates the
//     evidence, steps the state machine, and hands finalized segments to an
//     [Exporter].
//
// Only vad.InitError stops a session from starting. Classification and export
// failures are reported from [Session.Tick] and the session carries on.
package segment

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrClassify wraps a backend failure on a single chunk. The chunk was
	// treated as containing no speech.
	ErrClassify = errors.New("segment: classify failed")

	// ErrExport wraps an exporter failure. The segment was dropped.
	ErrExport = errors.New("segment: export failed")

	// ErrStopped is returned by Tick after Stop.
	ErrStopped = errors.New("segment: session stopped")

	// ErrSampleRate is returned when a chunk's sample rate differs from the
	// session's. The chunk is ignored apart from advancing the timer.
	ErrSampleRate = errors.New("segment: sample rate mismatch")
)

// Segment is a finalized span of speech.
type Segment struct {
	// ID uniquely identifies the segment.
	ID string

	// Samples are the accumulated normalised samples. The slice is owned by
	// the segment; it never aliases the accumulator.
	Samples []float32

	// SampleRate in Hz.
	SampleRate int

	// Start is when the span began (session clock).
	Start time.Time

	// End is when the span was finalized (session clock).
	End time.Time

	// Forced is set when the span was cut because it reached the maximum
	// segment length while speech was still ongoing.
	Forced bool

	// Flushed is set when the span was emitted by Stop rather than by the
	// hysteresis timeout.
	Flushed bool
}

// Len returns the number of samples.
func (s Segment) Len() int { return len(s.Samples) }

// Duration returns the audio length of the segment.
func (s Segment) Duration() time.Duration {
	if s.SampleRate <= 0 {
		return 0
	}
	return time.Duration(int64(len(s.Samples)) * int64(time.Second) / int64(s.SampleRate))
}

// Exporter persists or forwards finalized segments. A failed export is
// reported and the segment is dropped; exporters must not retry
// indefinitely.
type Exporter interface {
	Export(ctx context.Context, seg Segment) error
}
