package vad_test

import (
	"context"
	"errors"
	"testing"

	"github.com/MrWong99/vadseg/pkg/audio"
	"github.com/MrWong99/vadseg/pkg/provider/vad"
	"github.com/MrWong99/vadseg/pkg/provider/vad/mock"
)

func chunkOf(n int) audio.Chunk {
	return audio.Chunk{Samples: make([]float32, n), SampleRate: 16000}
}

func TestFrameAdapter_SplitsIntoFrames(t *testing.T) {
	t.Parallel()

	fc := &mock.FrameClassifier{Size: 160, Script: []bool{false, true, false}}
	a := vad.NewFrameAdapter(fc)

	ev, err := a.Classify(context.Background(), chunkOf(480))
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if len(fc.Frames) != 3 {
		t.Fatalf("frames classified = %d, want 3", len(fc.Frames))
	}
	if !ev.HasSpeech {
		t.Fatal("expected HasSpeech")
	}
	if len(ev.Ranges) != 1 || ev.Ranges[0] != (vad.Range{Start: 160, End: 320}) {
		t.Errorf("Ranges = %v, want [{160 320}]", ev.Ranges)
	}
}

func TestFrameAdapter_CarriesRemainder(t *testing.T) {
	t.Parallel()

	fc := &mock.FrameClassifier{Size: 160, Default: true}
	a := vad.NewFrameAdapter(fc)
	ctx := context.Background()

	ev, err := a.Classify(ctx, chunkOf(100))
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if ev.HasSpeech || len(fc.Frames) != 0 {
		t.Fatalf("sub-frame chunk should not be classified, got %d frames", len(fc.Frames))
	}
	if a.Pending() != 100 {
		t.Fatalf("Pending = %d, want 100", a.Pending())
	}

	ev, err = a.Classify(ctx, chunkOf(250))
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	// 100 carried + 250 new = 350 → two frames, 30 left over.
	if len(fc.Frames) != 2 {
		t.Fatalf("frames classified = %d, want 2", len(fc.Frames))
	}
	if a.Pending() != 30 {
		t.Errorf("Pending = %d, want 30", a.Pending())
	}
	want := []vad.Range{{Start: 0, End: 60}, {Start: 60, End: 220}}
	if len(ev.Ranges) != len(want) {
		t.Fatalf("Ranges = %v, want %v", ev.Ranges, want)
	}
	for i := range want {
		if ev.Ranges[i] != want[i] {
			t.Errorf("range %d = %v, want %v", i, ev.Ranges[i], want[i])
		}
	}
	for i, f := range fc.Frames {
		if len(f) != 160 {
			t.Errorf("frame %d has %d samples, want 160", i, len(f))
		}
	}
}

func TestFrameAdapter_EmptyChunk(t *testing.T) {
	t.Parallel()

	fc := &mock.FrameClassifier{Size: 160, Default: true}
	a := vad.NewFrameAdapter(fc)
	ev, err := a.Classify(context.Background(), audio.Chunk{SampleRate: 16000})
	if err != nil || ev.HasSpeech {
		t.Errorf("empty chunk: ev=%+v err=%v, want no evidence", ev, err)
	}
}

func TestFrameAdapter_BackendError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	fc := &mock.FrameClassifier{Size: 160, ClassifyErr: boom}
	a := vad.NewFrameAdapter(fc)
	ev, err := a.Classify(context.Background(), chunkOf(200))
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if ev.HasSpeech {
		t.Error("evidence should be empty on error")
	}
	if a.Pending() != 0 {
		t.Errorf("Pending after error = %d, want 0", a.Pending())
	}
}

func TestFrameAdapter_CloseIdempotent(t *testing.T) {
	t.Parallel()

	fc := &mock.FrameClassifier{Size: 160}
	a := vad.NewFrameAdapter(fc)
	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if fc.CloseCallCount != 1 {
		t.Errorf("backend Close called %d times, want 1", fc.CloseCallCount)
	}
	if _, err := a.Classify(context.Background(), chunkOf(160)); !errors.Is(err, vad.ErrClosed) {
		t.Errorf("Classify after Close: err = %v, want ErrClosed", err)
	}
}

func TestRangeAdapter_ReleasesOnEveryPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		ranges    []vad.Range
		detectErr error
		wantErr   bool
		wantSpch  bool
	}{
		{name: "speech", ranges: []vad.Range{{Start: 10, End: 200}}, wantSpch: true},
		{name: "no speech"},
		{name: "error", ranges: []vad.Range{{Start: 0, End: 10}}, detectErr: errors.New("ort failure"), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rc := &mock.RangeClassifier{Ranges: tt.ranges, DetectErr: tt.detectErr}
			a := vad.NewRangeAdapter(rc)
			ev, err := a.Classify(context.Background(), chunkOf(1000))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if ev.HasSpeech != tt.wantSpch {
				t.Errorf("HasSpeech = %v, want %v", ev.HasSpeech, tt.wantSpch)
			}
			if rc.Released() != 1 {
				t.Errorf("released %d results, want 1", rc.Released())
			}
			if !rc.Results[0].Released() {
				t.Error("result not marked released")
			}
		})
	}
}

func TestRangeAdapter_ClipsRangesAndCopies(t *testing.T) {
	t.Parallel()

	rc := &mock.RangeClassifier{Ranges: []vad.Range{{Start: -5, End: 50}, {Start: 900, End: 1200}, {Start: 1300, End: 1400}}}
	a := vad.NewRangeAdapter(rc)
	ev, err := a.Classify(context.Background(), chunkOf(1000))
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	want := []vad.Range{{Start: 0, End: 50}, {Start: 900, End: 1000}}
	if len(ev.Ranges) != len(want) {
		t.Fatalf("Ranges = %v, want %v", ev.Ranges, want)
	}
	for i := range want {
		if ev.Ranges[i] != want[i] {
			t.Errorf("range %d = %v, want %v", i, ev.Ranges[i], want[i])
		}
	}
}

func TestRangeAdapter_EmptyChunkSkipsBackend(t *testing.T) {
	t.Parallel()

	rc := &mock.RangeClassifier{}
	a := vad.NewRangeAdapter(rc)
	if _, err := a.Classify(context.Background(), audio.Chunk{}); err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if len(rc.Inputs) != 0 {
		t.Errorf("backend called %d times for empty chunk", len(rc.Inputs))
	}
	_ = a.Close()
	_ = a.Close()
	if rc.CloseCallCount != 1 {
		t.Errorf("backend Close called %d times, want 1", rc.CloseCallCount)
	}
}

func TestRangeResult_ReleaseTwice(t *testing.T) {
	t.Parallel()

	hooks := 0
	res := vad.AcquireRangeResult(func() { hooks++ })
	res.Append(vad.Range{Start: 1, End: 2})
	if res.Len() != 1 {
		t.Fatalf("Len = %d, want 1", res.Len())
	}
	res.Release()
	res.Release()
	if hooks != 1 {
		t.Errorf("release hook ran %d times, want 1", hooks)
	}
	if res.Ranges() != nil {
		t.Error("Ranges after Release should be nil")
	}
	res.Append(vad.Range{Start: 3, End: 4})
	if res.Len() != 0 {
		t.Error("Append after Release should be a no-op")
	}
}

func TestFrameSizeFor(t *testing.T) {
	t.Parallel()

	for _, ms := range []int{10, 20, 30} {
		n, err := vad.FrameSizeFor(16000, ms)
		if err != nil {
			t.Errorf("FrameSizeFor(16000, %d): %v", ms, err)
		}
		if n != 16*ms {
			t.Errorf("FrameSizeFor(16000, %d) = %d, want %d", ms, n, 16*ms)
		}
	}
	if _, err := vad.FrameSizeFor(16000, 25); !errors.Is(err, vad.ErrInvalidFrameSize) {
		t.Errorf("FrameSizeFor(16000, 25) err = %v, want ErrInvalidFrameSize", err)
	}
	if got := vad.ValidFrameSizes(16000); got[0] != 160 || got[1] != 320 || got[2] != 480 {
		t.Errorf("ValidFrameSizes(16000) = %v", got)
	}
}

func TestInitError(t *testing.T) {
	t.Parallel()

	cause := errors.New("model not found")
	err := vad.NewInitError("silero", cause)
	if !vad.IsInitError(err) {
		t.Fatal("IsInitError = false")
	}
	if !errors.Is(err, cause) {
		t.Error("InitError should unwrap to its cause")
	}
	if vad.IsInitError(cause) {
		t.Error("plain error reported as InitError")
	}
}
