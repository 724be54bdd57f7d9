//go:build silerovad

// Package silerogo provides a [vad.RangeClassifier] backed by
// github.com/streamer45/silero-vad-go, which links ONNX Runtime through cgo
// and therefore needs its headers at build time. Build with
// -tags silerovad to include it.
package silerogo

import (
	"fmt"
	"math"
	"sync"

	"github.com/streamer45/silero-vad-go/speech"

	"github.com/MrWong99/vadseg/pkg/provider/vad"
)

const backendName = "silero-go"

// Detector wraps a speech.Detector.
type Detector struct {
	mu        sync.Mutex
	det       *speech.Detector
	rate      int
	minSpeech int

	closeOnce sync.Once
	closeErr  error
	closed    bool
}

var _ vad.RangeClassifier = (*Detector)(nil)

// New loads the model at cfg.ModelPath.
func New(cfg vad.Config) (*Detector, error) {
	cfg = cfg.WithDefaults()
	if cfg.SampleRate != 8000 && cfg.SampleRate != 16000 {
		return nil, vad.NewInitError(backendName, fmt.Errorf("unsupported sample rate %d", cfg.SampleRate))
	}
	det, err := speech.NewDetector(speech.DetectorConfig{
		ModelPath:            cfg.ModelPath,
		SampleRate:           cfg.SampleRate,
		Threshold:            float32(cfg.Threshold),
		MinSilenceDurationMs: cfg.MinSilenceMs,
		SpeechPadMs:          cfg.PadMs,
	})
	if err != nil {
		return nil, vad.NewInitError(backendName, err)
	}
	return &Detector{
		det:       det,
		rate:      cfg.SampleRate,
		minSpeech: cfg.SampleRate * cfg.MinSpeechMs / 1000,
	}, nil
}

// DetectRanges implements [vad.RangeClassifier]. A segment that is still
// open at the end of the buffer extends to its last sample.
func (d *Detector) DetectRanges(samples []float32) (*vad.RangeResult, error) {
	res := vad.AcquireRangeResult(nil)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return res, vad.ErrClosed
	}

	segments, err := d.det.Detect(samples)
	if err != nil {
		return res, fmt.Errorf("silero-go: detect: %w", err)
	}
	for _, s := range segments {
		r := vad.Range{Start: d.offset(s.SpeechStartAt), End: len(samples)}
		if s.SpeechEndAt > 0 {
			r.End = min(d.offset(s.SpeechEndAt), len(samples))
		}
		if r.Len() <= d.minSpeech {
			continue
		}
		res.Append(r)
	}
	return res, nil
}

func (d *Detector) offset(seconds float64) int {
	return int(math.Round(seconds * float64(d.rate)))
}

// Close implements [vad.RangeClassifier].
func (d *Detector) Close() error {
	d.closeOnce.Do(func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.closed = true
		d.closeErr = d.det.Destroy()
	})
	return d.closeErr
}
