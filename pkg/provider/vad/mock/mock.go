// Package mock provides test doubles for the vad package interfaces.
//
// Use FrameClassifier and RangeClassifier to drive the adapters with scripted
// backend answers, and Classifier to feed evidence straight into the
// segmentation core.
//
// Example:
//
//	c := &mock.Classifier{
//	    Script: []vad.Evidence{{HasSpeech: true}, {}},
//	}
//	ev, _ := c.Classify(ctx, chunk) // HasSpeech == true
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/vadseg/pkg/audio"
	"github.com/MrWong99/vadseg/pkg/provider/vad"
)

// FrameClassifier is a mock implementation of vad.FrameClassifier.
type FrameClassifier struct {
	mu sync.Mutex

	// Size is returned by FrameSize.
	Size int

	// Script holds answers for consecutive ClassifyFrame calls. Once
	// exhausted, Default is returned.
	Script []bool

	// Default is returned when Script is exhausted.
	Default bool

	// ClassifyErr, if non-nil, is returned by every ClassifyFrame call with a
	// correctly sized frame.
	ClassifyErr error

	// CloseErr, if non-nil, is returned by Close.
	CloseErr error

	// --- Call records ---

	// Frames records a copy of every frame passed to ClassifyFrame.
	Frames [][]float32

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int
}

// FrameSize returns Size.
func (f *FrameClassifier) FrameSize() int { return f.Size }

// ClassifyFrame records the frame and returns the next scripted answer.
func (f *FrameClassifier) ClassifyFrame(frame []float32) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(frame) != f.Size {
		return false, vad.ErrInvalidFrameSize
	}
	f.Frames = append(f.Frames, append([]float32(nil), frame...))
	if f.ClassifyErr != nil {
		return false, f.ClassifyErr
	}
	i := len(f.Frames) - 1
	if i < len(f.Script) {
		return f.Script[i], nil
	}
	return f.Default, nil
}

// Close records the call and returns CloseErr.
func (f *FrameClassifier) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CloseCallCount++
	return f.CloseErr
}

// Ensure FrameClassifier implements vad.FrameClassifier at compile time.
var _ vad.FrameClassifier = (*FrameClassifier)(nil)

// RangeClassifier is a mock implementation of vad.RangeClassifier.
type RangeClassifier struct {
	mu sync.Mutex

	// Ranges is copied into every returned result.
	Ranges []vad.Range

	// DetectErr, if non-nil, is returned by DetectRanges. A result is still
	// returned alongside it so that release-on-error can be verified.
	DetectErr error

	// CloseErr, if non-nil, is returned by Close.
	CloseErr error

	// --- Call records ---

	// Results holds every result handed out, in order.
	Results []*vad.RangeResult

	// Inputs records the length of every buffer passed to DetectRanges.
	Inputs []int

	// ReleaseCount is the number of result release hooks that ran.
	ReleaseCount int

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int
}

// DetectRanges records the call and returns a pooled result holding Ranges.
func (r *RangeClassifier) DetectRanges(samples []float32) (*vad.RangeResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Inputs = append(r.Inputs, len(samples))
	res := vad.AcquireRangeResult(func() {
		r.mu.Lock()
		r.ReleaseCount++
		r.mu.Unlock()
	})
	for _, rg := range r.Ranges {
		res.Append(rg)
	}
	r.Results = append(r.Results, res)
	return res, r.DetectErr
}

// Close records the call and returns CloseErr.
func (r *RangeClassifier) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.CloseCallCount++
	return r.CloseErr
}

// Released returns the number of results that have been released.
func (r *RangeClassifier) Released() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ReleaseCount
}

// Ensure RangeClassifier implements vad.RangeClassifier at compile time.
var _ vad.RangeClassifier = (*RangeClassifier)(nil)

// Classifier is a mock implementation of vad.Classifier.
type Classifier struct {
	mu sync.Mutex

	// Script holds evidence for consecutive Classify calls. Once exhausted,
	// Default is returned.
	Script []vad.Evidence

	// Default is returned when Script is exhausted.
	Default vad.Evidence

	// Errs holds per-call errors aligned with the call index. A nil entry
	// (or an index past the end) means no error.
	Errs []error

	// Block, if non-nil, is received from before Classify returns. Use it to
	// simulate a stalled backend.
	Block chan struct{}

	// CloseErr, if non-nil, is returned by Close.
	CloseErr error

	// --- Call records ---

	// Chunks records the length of every chunk passed to Classify.
	Chunks []int

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int
}

// Classify records the call and returns the next scripted evidence.
func (c *Classifier) Classify(_ context.Context, chunk audio.Chunk) (vad.Evidence, error) {
	c.mu.Lock()
	i := len(c.Chunks)
	c.Chunks = append(c.Chunks, chunk.Len())
	block := c.Block
	var err error
	if i < len(c.Errs) {
		err = c.Errs[i]
	}
	ev := c.Default
	if i < len(c.Script) {
		ev = c.Script[i]
	}
	c.mu.Unlock()

	if block != nil {
		<-block
	}
	if err != nil {
		return vad.Evidence{}, err
	}
	return ev, nil
}

// Close records the call and returns CloseErr.
func (c *Classifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CloseCallCount++
	return c.CloseErr
}

// Calls returns the number of Classify calls so far.
func (c *Classifier) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Chunks)
}

// Closes returns the number of Close calls so far.
func (c *Classifier) Closes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.CloseCallCount
}

// Ensure Classifier implements vad.Classifier at compile time.
var _ vad.Classifier = (*Classifier)(nil)
