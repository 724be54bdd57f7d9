//go:build cgo

package webrtc_test

import (
	"errors"
	"testing"

	"github.com/MrWong99/vadseg/pkg/provider/vad"
	"github.com/MrWong99/vadseg/pkg/provider/vad/webrtc"
)

func TestNew_RejectsBadConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  vad.Config
	}{
		{"rate", vad.Config{SampleRate: 44100, FrameSizeMs: 30}},
		{"frame", vad.Config{SampleRate: 16000, FrameSizeMs: 25}},
		{"mode", vad.Config{SampleRate: 16000, FrameSizeMs: 30, Mode: 7}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := webrtc.New(tt.cfg); !vad.IsInitError(err) {
				t.Errorf("err = %v, want InitError", err)
			}
		})
	}
}

func TestClassifier_SilenceAndFrameSize(t *testing.T) {
	t.Parallel()

	c, err := webrtc.New(vad.Config{SampleRate: 16000, FrameSizeMs: 30, Mode: 3})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.FrameSize() != 480 {
		t.Fatalf("FrameSize = %d, want 480", c.FrameSize())
	}

	speech, err := c.ClassifyFrame(make([]float32, 480))
	if err != nil {
		t.Fatalf("ClassifyFrame: %v", err)
	}
	if speech {
		t.Error("digital silence classified as speech")
	}

	if _, err := c.ClassifyFrame(make([]float32, 479)); !errors.Is(err, vad.ErrInvalidFrameSize) {
		t.Errorf("err = %v, want ErrInvalidFrameSize", err)
	}

	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if _, err := c.ClassifyFrame(make([]float32, 480)); !errors.Is(err, vad.ErrClosed) {
		t.Errorf("after Close: err = %v, want ErrClosed", err)
	}
}
