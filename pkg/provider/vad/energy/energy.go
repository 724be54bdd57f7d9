// Package energy provides a dependency-free [vad.FrameClassifier] that calls
// a frame speech when its RMS energy reaches a threshold.
//
// It does not distinguish speech from any other loud sound. Use it where no
// native VAD library is available, or as a baseline in tests.
package energy

import (
	"fmt"

	"github.com/MrWong99/vadseg/pkg/audio"
	"github.com/MrWong99/vadseg/pkg/provider/vad"
)

// Classifier classifies frames by RMS energy.
type Classifier struct {
	size      int
	threshold float64
}

var _ vad.FrameClassifier = (*Classifier)(nil)

// New creates an energy classifier. cfg.Threshold is the RMS level at or
// above which a frame counts as speech; cfg.FrameSizeMs must be 10, 20 or
// 30.
func New(cfg vad.Config) (*Classifier, error) {
	cfg = cfg.WithDefaults()
	size, err := vad.FrameSizeFor(cfg.SampleRate, cfg.FrameSizeMs)
	if err != nil {
		return nil, vad.NewInitError("energy", err)
	}
	if cfg.Threshold <= 0 || cfg.Threshold > 1 {
		return nil, vad.NewInitError("energy", fmt.Errorf("threshold %v out of range (0, 1]", cfg.Threshold))
	}
	return &Classifier{size: size, threshold: cfg.Threshold}, nil
}

// FrameSize implements [vad.FrameClassifier].
func (c *Classifier) FrameSize() int { return c.size }

// ClassifyFrame implements [vad.FrameClassifier].
func (c *Classifier) ClassifyFrame(frame []float32) (bool, error) {
	if len(frame) != c.size {
		return false, fmt.Errorf("%w: got %d samples, want %d", vad.ErrInvalidFrameSize, len(frame), c.size)
	}
	return audio.RMS(frame) >= c.threshold, nil
}

// Close implements [vad.FrameClassifier]. It holds no resources.
func (c *Classifier) Close() error { return nil }
