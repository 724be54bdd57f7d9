// Package mock provides a scripted capture.Source for tests.
package mock

import (
	"io"
	"sync"

	"github.com/MrWong99/vadseg/pkg/audio"
	"github.com/MrWong99/vadseg/pkg/capture"
)

var _ capture.Source = (*Source)(nil)

// Source returns queued sample blocks, one per Poll. When the queue is empty
// Poll returns an empty chunk, or io.EOF if EOF is set.
type Source struct {
	mu sync.Mutex

	// Rate is returned by SampleRate. Defaults to 16000.
	Rate int

	// EOF makes Poll return io.EOF once the queue is drained.
	EOF bool

	// PollErr, if set, is returned by every Poll.
	PollErr error

	// CloseErr is returned by Close.
	CloseErr error

	queue          [][]float32
	polls          int
	closeCallCount int
}

// New returns a source at rate with blocks queued.
func New(rate int, blocks ...[]float32) *Source {
	return &Source{Rate: rate, queue: blocks}
}

// Push appends a block to the queue.
func (s *Source) Push(samples []float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, samples)
}

// SampleRate implements capture.Source.
func (s *Source) SampleRate() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Rate == 0 {
		return 16000
	}
	return s.Rate
}

// Available implements capture.Source.
func (s *Source) Available() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return 0
	}
	return len(s.queue[0])
}

// Poll implements capture.Source.
func (s *Source) Poll() (audio.Chunk, error) {
	rate := s.SampleRate()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.polls++
	if s.closeCallCount > 0 {
		return audio.Chunk{}, capture.ErrClosed
	}
	if s.PollErr != nil {
		return audio.Chunk{}, s.PollErr
	}
	if len(s.queue) == 0 {
		if s.EOF {
			return audio.Chunk{}, io.EOF
		}
		return audio.Chunk{SampleRate: rate}, nil
	}
	next := s.queue[0]
	s.queue = s.queue[1:]
	return audio.Chunk{Samples: next, SampleRate: rate}, nil
}

// Close implements capture.Source.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeCallCount++
	return s.CloseErr
}

// Offline reports whether EOF is set, so scripted finite sources are
// drained like files.
func (s *Source) Offline() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.EOF
}

// Polls returns the number of Poll calls.
func (s *Source) Polls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.polls
}

// CloseCallCount returns the number of Close calls.
func (s *Source) CloseCallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeCallCount
}
