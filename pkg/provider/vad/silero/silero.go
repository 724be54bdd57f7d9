//go:build cgo

// Package silero provides a [vad.RangeClassifier] built on the Silero VAD
// model.
//
// The detector slices each buffer into model windows (512 samples at
// 16 kHz, 256 at 8 kHz; multiples of 16 kHz are decimated first), scores
// every window with the model, and turns the probability sequence into
// speech ranges with [vad.SpeechTimestamps]. The model's recurrent state is
// carried from one buffer to the next so consecutive polls of a live stream
// are scored in context.
//
// The default model runs on ONNX Runtime through
// github.com/yalue/onnxruntime_go; see [OpenONNX]. Any [Model] can be
// supplied with [NewWithModel].
package silero

import (
	"errors"
	"fmt"
	"sync"

	"github.com/MrWong99/vadseg/pkg/provider/vad"
)

// backendName is used in InitError values.
const backendName = "silero"

// Model scores one window of audio.
type Model interface {
	// Probability returns the speech probability of window, which holds
	// exactly the window size for the model's sample rate.
	Probability(window []float32) (float32, error)

	// ResetState clears the recurrent state.
	ResetState()

	// Close releases the model. Calling Close more than once is safe.
	Close() error
}

// Detector implements [vad.RangeClassifier] on top of a [Model].
type Detector struct {
	mu     sync.Mutex
	model  Model
	params vad.RangeParams
	window int
	step   int
	buf    []float32
	probs  []float32

	closeOnce sync.Once
	closeErr  error
	closed    bool
}

var _ vad.RangeClassifier = (*Detector)(nil)

// New opens the ONNX model at cfg.ModelPath and returns a detector. Failures
// are reported as [vad.InitError].
func New(cfg vad.Config) (*Detector, error) {
	cfg = cfg.WithDefaults()
	if err := validate(cfg); err != nil {
		return nil, err
	}
	_, _, modelRate := vad.Windowing(cfg.SampleRate)
	m, err := OpenONNX(cfg.ModelPath, cfg.LibraryPath, modelRate)
	if err != nil {
		return nil, vad.NewInitError(backendName, err)
	}
	return newDetector(m, cfg), nil
}

// NewWithModel returns a detector that scores windows with m.
func NewWithModel(m Model, cfg vad.Config) (*Detector, error) {
	cfg = cfg.WithDefaults()
	if err := validate(cfg); err != nil {
		return nil, err
	}
	if m == nil {
		return nil, vad.NewInitError(backendName, errors.New("nil model"))
	}
	return newDetector(m, cfg), nil
}

func validate(cfg vad.Config) error {
	if cfg.SampleRate != 8000 && cfg.SampleRate%16000 != 0 {
		return vad.NewInitError(backendName, fmt.Errorf("unsupported sample rate %d (want 8000 or a multiple of 16000)", cfg.SampleRate))
	}
	if cfg.Threshold <= 0 || cfg.Threshold >= 1 {
		return vad.NewInitError(backendName, fmt.Errorf("threshold %v out of range (0, 1)", cfg.Threshold))
	}
	return nil
}

func newDetector(m Model, cfg vad.Config) *Detector {
	window, step, _ := vad.Windowing(cfg.SampleRate)
	return &Detector{
		model:  m,
		params: vad.RangeParamsFrom(cfg),
		window: window,
		step:   step,
		buf:    make([]float32, window),
	}
}

// WindowSize returns the model window in (decimated) samples.
func (d *Detector) WindowSize() int { return d.window }

// DetectRanges implements [vad.RangeClassifier]. The returned result is
// non-nil even when an error is returned and must be released by the
// caller.
func (d *Detector) DetectRanges(samples []float32) (*vad.RangeResult, error) {
	res := vad.AcquireRangeResult(nil)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return res, vad.ErrClosed
	}

	n := len(samples) / d.step
	d.probs = d.probs[:0]
	for start := 0; start < n; start += d.window {
		clear(d.buf)
		for j := 0; j < d.window && start+j < n; j++ {
			d.buf[j] = samples[(start+j)*d.step]
		}
		p, err := d.model.Probability(d.buf)
		if err != nil {
			return res, fmt.Errorf("silero: score window at %d: %w", start, err)
		}
		d.probs = append(d.probs, p)
	}

	for _, r := range vad.SpeechTimestamps(d.probs, len(samples), d.params) {
		res.Append(r)
	}
	return res, nil
}

// Reset clears the model's recurrent state.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.closed {
		d.model.ResetState()
	}
}

// Close implements [vad.RangeClassifier].
func (d *Detector) Close() error {
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		d.mu.Unlock()
		d.closeErr = d.model.Close()
	})
	return d.closeErr
}
