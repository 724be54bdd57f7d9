// Package vad defines the contract between the segmentation core and Voice
// Activity Detection backends.
//
// Backends come in two shapes:
//
//   - [FrameClassifier]: answers "is this fixed-size frame speech?" (e.g.,
//     WebRTC VAD, a plain energy threshold).
//   - [RangeClassifier]: scans a whole buffer and returns the sample ranges
//     that contain speech (e.g., Silero via ONNX Runtime). Results live in a
//     transient buffer that must be released after every call.
//
// The core never sees either shape directly. It consumes a single
// [Classifier] capability that turns one [audio.Chunk] into [Evidence]. Use
// [NewFrameAdapter] and [NewRangeAdapter] to lift a backend into a
// Classifier, and [Guard] to bound the time a backend may spend on a chunk.
//
// Backends are selected at startup; a backend that fails to initialise
// returns an [InitError] and there is no fallback to another backend.
package vad

import (
	"context"

	"github.com/MrWong99/vadseg/pkg/audio"
)

// Config holds the parameters shared by all VAD backends. Fields that a
// backend does not use are ignored. Zero values are replaced with the
// defaults from [DefaultConfig] by [Config.WithDefaults].
type Config struct {
	// SampleRate is the audio sample rate in Hz. Must match the rate of the
	// chunks passed to Classify. Common values: 8000, 16000, 48000.
	SampleRate int

	// FrameSizeMs is the frame duration for frame classifiers. WebRTC VAD
	// accepts 10, 20 or 30 ms.
	FrameSizeMs int

	// Mode is the WebRTC aggressiveness (0 = least aggressive, 3 = most).
	Mode int

	// Threshold is the speech probability threshold for probabilistic
	// backends, or the RMS threshold for the energy backend.
	Threshold float64

	// NegThreshold is the probability below which an active range is
	// considered to have ended. A negative value selects
	// max(Threshold-0.15, 0.01).
	NegThreshold float64

	// MinSpeechMs discards detected ranges shorter than this.
	MinSpeechMs int

	// MaxSpeechS force-splits ranges longer than this many seconds.
	MaxSpeechS float64

	// MinSilenceMs is the silence needed before a range is closed.
	MinSilenceMs int

	// PadMs widens every range on both sides.
	PadMs int

	// ModelPath is the filesystem path of a model file (Silero ONNX).
	ModelPath string

	// LibraryPath is the path of a native shared library required by the
	// backend (e.g., onnxruntime). Empty uses the platform default.
	LibraryPath string
}

// DefaultConfig returns the parameters used when none are configured.
func DefaultConfig() Config {
	return Config{
		SampleRate:   16000,
		FrameSizeMs:  30,
		Mode:         3,
		Threshold:    0.1,
		NegThreshold: -1,
		MinSpeechMs:  150,
		MaxSpeechS:   10,
		MinSilenceMs: 1000,
		PadMs:        30,
	}
}

// WithDefaults returns a copy of c with zero-valued fields filled from
// [DefaultConfig]. Mode, NegThreshold and PadMs have meaningful zero
// values and are left untouched.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.SampleRate == 0 {
		c.SampleRate = d.SampleRate
	}
	if c.FrameSizeMs == 0 {
		c.FrameSizeMs = d.FrameSizeMs
	}
	if c.Threshold == 0 {
		c.Threshold = d.Threshold
	}
	if c.MinSpeechMs == 0 {
		c.MinSpeechMs = d.MinSpeechMs
	}
	if c.MaxSpeechS == 0 {
		c.MaxSpeechS = d.MaxSpeechS
	}
	if c.MinSilenceMs == 0 {
		c.MinSilenceMs = d.MinSilenceMs
	}
	return c
}

// Range is a half-open interval [Start, End) of sample offsets relative to
// the buffer that was classified.
type Range struct {
	Start int
	End   int
}

// Len returns the number of samples covered by the range.
func (r Range) Len() int { return r.End - r.Start }

// Evidence is the per-chunk outcome of classification. It is ephemeral:
// valid for one tick only.
type Evidence struct {
	// HasSpeech reports whether the backend found speech anywhere in the chunk.
	HasSpeech bool

	// Ranges lists where speech was found. Frame-based backends report one
	// range per positive frame. Empty when HasSpeech is false.
	Ranges []Range
}

// FrameClassifier classifies fixed-size frames. Implementations are not
// required to be safe for concurrent use.
type FrameClassifier interface {
	// FrameSize returns the number of samples ClassifyFrame expects.
	FrameSize() int

	// ClassifyFrame reports whether frame contains speech. A frame whose
	// length differs from FrameSize fails with [ErrInvalidFrameSize].
	ClassifyFrame(frame []float32) (bool, error)

	// Close releases native resources. Calling Close more than once is safe
	// and returns nil.
	Close() error
}

// RangeClassifier scans a buffer for speech ranges. Implementations are not
// required to be safe for concurrent use.
type RangeClassifier interface {
	// DetectRanges scans samples and returns the detected ranges. The
	// returned result must be released with [RangeResult.Release] on every
	// path, including when an error is returned alongside it.
	DetectRanges(samples []float32) (*RangeResult, error)

	// Close releases native resources. Calling Close more than once is safe
	// and returns nil.
	Close() error
}

// Classifier is the single capability consumed by the segmentation core:
// it maps an audio chunk to speech evidence.
type Classifier interface {
	// Classify inspects chunk and returns the evidence found in it. An empty
	// chunk yields zero Evidence and no error.
	Classify(ctx context.Context, chunk audio.Chunk) (Evidence, error)

	// Close releases the backend. Calling Close more than once is safe and
	// returns nil.
	Close() error
}
