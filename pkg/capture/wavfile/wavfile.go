// Package wavfile is an offline capture source that replays a WAV file.
package wavfile

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	gowav "github.com/go-audio/wav"

	"github.com/MrWong99/vadseg/pkg/audio"
	"github.com/MrWong99/vadseg/pkg/capture"
)

// DefaultChunk is the chunk duration used when none is given.
const DefaultChunk = 30 * time.Millisecond

var _ capture.Source = (*Source)(nil)

// Source yields a decoded WAV file as mono chunks at the target rate. Each
// Poll returns one chunk; the last chunk may be short. Poll returns io.EOF
// after the last chunk.
type Source struct {
	mu      sync.Mutex
	samples []float32
	rate    int
	chunk   int
	pos     int
	closed  bool
}

// Open decodes the file at path. A rate of 0 keeps the file's own rate.
func Open(path string, rate int, chunk time.Duration) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("wavfile: %w", err)
	}
	defer f.Close()
	return New(f, rate, chunk)
}

// New decodes a WAV stream from r.
func New(r io.ReadSeeker, rate int, chunk time.Duration) (*Source, error) {
	d := gowav.NewDecoder(r)
	if !d.IsValidFile() {
		return nil, errors.New("wavfile: not a valid WAV stream")
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("wavfile: decode: %w", err)
	}
	srcRate := int(d.SampleRate)
	channels := int(d.NumChans)
	depth := int(d.BitDepth)
	if srcRate <= 0 || channels <= 0 || depth <= 0 {
		return nil, fmt.Errorf("wavfile: unsupported format (%d Hz, %d ch, %d bit)", srcRate, channels, depth)
	}

	scale := float32(int64(1) << (depth - 1))
	pcm := make([]float32, len(buf.Data))
	for i, v := range buf.Data {
		pcm[i] = float32(v) / scale
	}
	mono := audio.Downmix(pcm, channels)

	if rate <= 0 {
		rate = srcRate
	}
	rs, err := audio.NewResampler(srcRate, rate)
	if err != nil {
		return nil, fmt.Errorf("wavfile: %w", err)
	}
	mono, err = rs.Process(mono)
	if err != nil {
		return nil, fmt.Errorf("wavfile: %w", err)
	}

	if chunk <= 0 {
		chunk = DefaultChunk
	}
	n := audio.DurationToSamples(chunk, rate)
	if n < 1 {
		n = 1
	}
	return &Source{samples: mono, rate: rate, chunk: n}, nil
}

// SampleRate implements capture.Source.
func (s *Source) SampleRate() int { return s.rate }

// Offline reports true: a file is read faster than real time.
func (s *Source) Offline() bool { return true }

// Len returns the total number of decoded samples.
func (s *Source) Len() int { return len(s.samples) }

// Available implements capture.Source.
func (s *Source) Available() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return min(s.chunk, len(s.samples)-s.pos)
}

// Poll implements capture.Source.
func (s *Source) Poll() (audio.Chunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return audio.Chunk{}, capture.ErrClosed
	}
	if s.pos >= len(s.samples) {
		return audio.Chunk{}, io.EOF
	}
	end := min(s.pos+s.chunk, len(s.samples))
	c := audio.Chunk{
		Samples:    s.samples[s.pos:end:end],
		SampleRate: s.rate,
		Timestamp:  audio.SamplesToDuration(s.pos, s.rate),
	}
	s.pos = end
	return c, nil
}

// Close implements capture.Source.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
