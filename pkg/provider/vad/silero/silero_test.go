//go:build cgo

package silero_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/MrWong99/vadseg/pkg/audio"
	"github.com/MrWong99/vadseg/pkg/provider/vad"
	"github.com/MrWong99/vadseg/pkg/provider/vad/silero"
)

// loudModel scores a window by its mean absolute amplitude, which makes the
// probability sequence easy to script through the input samples.
type loudModel struct {
	windows int
	resets  int
	closes  int
	failAt  int
}

func (m *loudModel) Probability(window []float32) (float32, error) {
	m.windows++
	if m.failAt > 0 && m.windows == m.failAt {
		return 0, errors.New("inference failed")
	}
	var sum float32
	for _, s := range window {
		if s < 0 {
			s = -s
		}
		sum += s
	}
	return sum / float32(len(window)), nil
}

func (m *loudModel) ResetState() { m.resets++ }
func (m *loudModel) Close() error { m.closes++; return nil }

// signal builds a buffer of windows, each filled with the given amplitude.
func signal(window int, levels ...float32) []float32 {
	out := make([]float32, 0, window*len(levels))
	for _, l := range levels {
		for range window {
			out = append(out, l)
		}
	}
	return out
}

func testConfig() vad.Config {
	return vad.Config{
		SampleRate:   16000,
		Threshold:    0.5,
		NegThreshold: -1,
		MinSpeechMs:  150,
		MaxSpeechS:   10,
		MinSilenceMs: 100,
		PadMs:        30,
	}
}

func TestDetector_DetectsRange(t *testing.T) {
	t.Parallel()

	m := &loudModel{}
	d, err := silero.NewWithModel(m, testConfig())
	if err != nil {
		t.Fatalf("NewWithModel: %v", err)
	}
	levels := make([]float32, 0, 23)
	for i := range 23 {
		if i >= 3 && i < 13 {
			levels = append(levels, 0.9)
		} else {
			levels = append(levels, 0)
		}
	}
	samples := signal(d.WindowSize(), levels...)

	res, err := d.DetectRanges(samples)
	if res == nil {
		t.Fatal("nil result")
	}
	defer res.Release()
	if err != nil {
		t.Fatalf("DetectRanges: %v", err)
	}
	if m.windows != 23 {
		t.Errorf("scored %d windows, want 23", m.windows)
	}
	got := res.Ranges()
	if len(got) != 1 || got[0] != (vad.Range{Start: 1056, End: 7136}) {
		t.Errorf("ranges = %v, want [{1056 7136}]", got)
	}
}

func TestDetector_PartialWindowIsZeroPadded(t *testing.T) {
	t.Parallel()

	m := &loudModel{}
	d, err := silero.NewWithModel(m, testConfig())
	if err != nil {
		t.Fatalf("NewWithModel: %v", err)
	}
	res, err := d.DetectRanges(make([]float32, 700))
	if err != nil {
		t.Fatalf("DetectRanges: %v", err)
	}
	res.Release()
	if m.windows != 2 {
		t.Errorf("scored %d windows, want 2", m.windows)
	}
}

func TestDetector_ErrorStillReturnsReleasableResult(t *testing.T) {
	t.Parallel()

	m := &loudModel{failAt: 2}
	d, err := silero.NewWithModel(m, testConfig())
	if err != nil {
		t.Fatalf("NewWithModel: %v", err)
	}
	res, err := d.DetectRanges(make([]float32, 2048))
	if err == nil {
		t.Fatal("expected error")
	}
	if res == nil {
		t.Fatal("result must be non-nil on error")
	}
	res.Release()
	res.Release()
}

func TestDetector_ThroughRangeAdapter(t *testing.T) {
	t.Parallel()

	d, err := silero.NewWithModel(&loudModel{}, testConfig())
	if err != nil {
		t.Fatalf("NewWithModel: %v", err)
	}
	c := vad.NewRangeAdapter(d)
	defer c.Close()

	ev, err := c.Classify(context.Background(), audio.Chunk{
		Samples:    signal(512, 0, 0.9, 0.9, 0.9, 0.9, 0.9, 0.9, 0.9, 0, 0, 0, 0, 0, 0),
		SampleRate: 16000,
	})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if !ev.HasSpeech || len(ev.Ranges) != 1 {
		t.Errorf("evidence = %+v, want one speech range", ev)
	}
}

func TestDetector_ResetAndClose(t *testing.T) {
	t.Parallel()

	m := &loudModel{}
	d, err := silero.NewWithModel(m, testConfig())
	if err != nil {
		t.Fatalf("NewWithModel: %v", err)
	}
	d.Reset()
	if m.resets != 1 {
		t.Errorf("resets = %d, want 1", m.resets)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if m.closes != 1 {
		t.Errorf("model closed %d times, want 1", m.closes)
	}
	res, err := d.DetectRanges(make([]float32, 512))
	res.Release()
	if !errors.Is(err, vad.ErrClosed) {
		t.Errorf("after Close: err = %v, want ErrClosed", err)
	}
}

func TestNew_InitErrors(t *testing.T) {
	t.Parallel()

	missing := filepath.Join(t.TempDir(), "missing.onnx")
	tests := []struct {
		name string
		cfg  vad.Config
	}{
		{"missing model", vad.Config{SampleRate: 16000, ModelPath: missing}},
		{"empty model path", vad.Config{SampleRate: 16000}},
		{"bad rate", vad.Config{SampleRate: 44100, ModelPath: missing}},
		{"bad threshold", vad.Config{SampleRate: 16000, Threshold: 1.5, ModelPath: missing}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := silero.New(tt.cfg); !vad.IsInitError(err) {
				t.Errorf("err = %v, want InitError", err)
			}
		})
	}
	if _, err := silero.NewWithModel(nil, testConfig()); !vad.IsInitError(err) {
		t.Errorf("nil model: err = %v, want InitError", err)
	}
}
