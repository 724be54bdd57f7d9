//go:build cgo

// Package webrtc provides a [vad.FrameClassifier] backed by the WebRTC voice
// activity detector (github.com/maxhawkins/go-webrtcvad).
//
// WebRTC VAD accepts 16-bit PCM frames of exactly 10, 20 or 30 ms at 8, 16,
// 32 or 48 kHz. Frames arrive as normalised float32 and are quantised before
// they are handed to the detector.
package webrtc

import (
	"fmt"
	"sync"

	webrtcvad "github.com/maxhawkins/go-webrtcvad"

	"github.com/MrWong99/vadseg/pkg/audio"
	"github.com/MrWong99/vadseg/pkg/provider/vad"
)

// backendName is used in InitError values.
const backendName = "webrtc"

// Classifier wraps a WebRTC VAD instance.
type Classifier struct {
	mu     sync.Mutex
	vad    *webrtcvad.VAD
	rate   int
	size   int
	pcm    []byte
	closed bool
}

var _ vad.FrameClassifier = (*Classifier)(nil)

// New creates a WebRTC classifier. cfg.Mode selects the aggressiveness
// (0–3) and cfg.FrameSizeMs the frame duration (10, 20 or 30).
func New(cfg vad.Config) (*Classifier, error) {
	cfg = cfg.WithDefaults()
	switch cfg.SampleRate {
	case 8000, 16000, 32000, 48000:
	default:
		return nil, vad.NewInitError(backendName, fmt.Errorf("unsupported sample rate %d", cfg.SampleRate))
	}
	size, err := vad.FrameSizeFor(cfg.SampleRate, cfg.FrameSizeMs)
	if err != nil {
		return nil, vad.NewInitError(backendName, err)
	}
	if cfg.Mode < 0 || cfg.Mode > 3 {
		return nil, vad.NewInitError(backendName, fmt.Errorf("mode %d out of range [0, 3]", cfg.Mode))
	}

	v, err := webrtcvad.New()
	if err != nil {
		return nil, vad.NewInitError(backendName, err)
	}
	if err := v.SetMode(cfg.Mode); err != nil {
		return nil, vad.NewInitError(backendName, fmt.Errorf("set mode %d: %w", cfg.Mode, err))
	}
	return &Classifier{
		vad:  v,
		rate: cfg.SampleRate,
		size: size,
		pcm:  make([]byte, 0, size*2),
	}, nil
}

// FrameSize implements [vad.FrameClassifier].
func (c *Classifier) FrameSize() int { return c.size }

// ClassifyFrame implements [vad.FrameClassifier].
func (c *Classifier) ClassifyFrame(frame []float32) (bool, error) {
	if len(frame) != c.size {
		return false, fmt.Errorf("%w: got %d samples, want %d", vad.ErrInvalidFrameSize, len(frame), c.size)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false, vad.ErrClosed
	}
	c.pcm = audio.AppendPCM16(c.pcm[:0], frame)
	active, err := c.vad.Process(c.rate, c.pcm)
	if err != nil {
		return false, fmt.Errorf("webrtc: process frame: %w", err)
	}
	return active, nil
}

// Close implements [vad.FrameClassifier]. The detector's native memory is
// owned by the library; Close only marks the classifier unusable.
func (c *Classifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.vad = nil
	return nil
}
