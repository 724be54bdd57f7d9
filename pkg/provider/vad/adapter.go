package vad

import (
	"context"
	"sync"

	"github.com/MrWong99/vadseg/pkg/audio"
)

// FrameAdapter lifts a [FrameClassifier] into a [Classifier]. Each chunk is
// split into whole frames of FrameSize samples; a trailing partial frame is
// carried over and prefixed to the next chunk so the backend never sees a
// frame of the wrong size. Every positive frame contributes one [Range].
//
// A FrameAdapter is not safe for concurrent use.
type FrameAdapter struct {
	fc        FrameClassifier
	remainder []float32
	scratch   []float32

	closeOnce sync.Once
	closeErr  error
	closed    bool
}

var _ Classifier = (*FrameAdapter)(nil)

// NewFrameAdapter wraps fc.
func NewFrameAdapter(fc FrameClassifier) *FrameAdapter {
	return &FrameAdapter{fc: fc}
}

// Pending returns the number of carried-over samples waiting for the next
// chunk.
func (a *FrameAdapter) Pending() int { return len(a.remainder) }

// Classify implements [Classifier]. Ranges are relative to chunk; a frame
// that began in the carried-over remainder is clipped to start at 0.
func (a *FrameAdapter) Classify(ctx context.Context, chunk audio.Chunk) (Evidence, error) {
	if a.closed {
		return Evidence{}, ErrClosed
	}
	if chunk.Empty() {
		return Evidence{}, nil
	}

	size := a.fc.FrameSize()
	if size <= 0 {
		return Evidence{}, ErrInvalidFrameSize
	}

	data := chunk.Samples
	carried := len(a.remainder)
	if carried > 0 {
		a.scratch = append(append(a.scratch[:0], a.remainder...), chunk.Samples...)
		data = a.scratch
	}

	var ev Evidence
	i := 0
	for ; i+size <= len(data); i += size {
		if err := ctx.Err(); err != nil {
			a.remainder = a.remainder[:0]
			return Evidence{}, err
		}
		speech, err := a.fc.ClassifyFrame(data[i : i+size])
		if err != nil {
			a.remainder = a.remainder[:0]
			return Evidence{}, err
		}
		if !speech {
			continue
		}
		ev.HasSpeech = true
		ev.Ranges = append(ev.Ranges, Range{
			Start: max(i-carried, 0),
			End:   i + size - carried,
		})
	}
	a.remainder = append(a.remainder[:0], data[i:]...)
	return ev, nil
}

// Close closes the wrapped backend once.
func (a *FrameAdapter) Close() error {
	a.closeOnce.Do(func() {
		a.closed = true
		a.remainder = nil
		a.closeErr = a.fc.Close()
	})
	return a.closeErr
}

// RangeAdapter lifts a [RangeClassifier] into a [Classifier]. The transient
// [RangeResult] returned by the backend is released on every exit path,
// including errors; ranges are copied out before release.
//
// A RangeAdapter is not safe for concurrent use.
type RangeAdapter struct {
	rc RangeClassifier

	closeOnce sync.Once
	closeErr  error
	closed    bool
}

var _ Classifier = (*RangeAdapter)(nil)

// NewRangeAdapter wraps rc.
func NewRangeAdapter(rc RangeClassifier) *RangeAdapter {
	return &RangeAdapter{rc: rc}
}

// Classify implements [Classifier].
func (a *RangeAdapter) Classify(ctx context.Context, chunk audio.Chunk) (Evidence, error) {
	if a.closed {
		return Evidence{}, ErrClosed
	}
	if chunk.Empty() {
		return Evidence{}, nil
	}
	if err := ctx.Err(); err != nil {
		return Evidence{}, err
	}

	res, err := a.rc.DetectRanges(chunk.Samples)
	if res != nil {
		defer res.Release()
	}
	if err != nil {
		return Evidence{}, err
	}
	if res == nil {
		return Evidence{}, nil
	}

	n := chunk.Len()
	var ev Evidence
	for _, r := range res.Ranges() {
		r.Start = max(r.Start, 0)
		r.End = min(r.End, n)
		if r.End <= r.Start {
			continue
		}
		ev.Ranges = append(ev.Ranges, r)
	}
	ev.HasSpeech = len(ev.Ranges) > 0
	return ev, nil
}

// Close closes the wrapped backend once.
func (a *RangeAdapter) Close() error {
	a.closeOnce.Do(func() {
		a.closed = true
		a.closeErr = a.rc.Close()
	})
	return a.closeErr
}
