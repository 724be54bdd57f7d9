// Package audio holds the sample-level building blocks shared by capture,
// classification and export: the [Chunk] type that flows through the
// segmentation loop, PCM conversion and quantisation helpers, signal energy,
// a lock-protected ring buffer for callback-driven capture, and a resampler.
//
// All samples inside this package are mono float32 values normalised to
// [-1, 1]. Multi-channel input is down-mixed at the capture edge with
// [Downmix] before it reaches any other component.
package audio

import "time"

// Chunk is a contiguous run of mono samples delivered by a capture source in
// a single poll. Chunks are immutable once produced; consumers that need to
// retain samples past the current tick must copy them.
type Chunk struct {
	// Samples are normalised float32 values in [-1, 1]. May be empty when a
	// poll found no new audio.
	Samples []float32

	// SampleRate in Hz (e.g., 16000 for most VAD models).
	SampleRate int

	// Timestamp is the offset of the first sample from the start of the stream.
	Timestamp time.Duration
}

// Len returns the number of samples in the chunk.
func (c Chunk) Len() int { return len(c.Samples) }

// Empty reports whether the chunk carries no samples.
func (c Chunk) Empty() bool { return len(c.Samples) == 0 }

// Duration returns the wall-clock length of the chunk. It is zero when the
// sample rate is unknown.
func (c Chunk) Duration() time.Duration {
	return SamplesToDuration(len(c.Samples), c.SampleRate)
}

// SamplesToDuration converts a sample count at sampleRate into a duration.
func SamplesToDuration(n, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(int64(n) * int64(time.Second) / int64(sampleRate))
}

// DurationToSamples converts d into a whole number of samples at sampleRate,
// truncating any fractional sample.
func DurationToSamples(d time.Duration, sampleRate int) int {
	if sampleRate <= 0 || d <= 0 {
		return 0
	}
	return int(int64(d) * int64(sampleRate) / int64(time.Second))
}
