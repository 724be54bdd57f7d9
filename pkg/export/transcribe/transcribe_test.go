package transcribe_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/MrWong99/vadseg/pkg/export/transcribe"
	"github.com/MrWong99/vadseg/pkg/export/wav"
	"github.com/MrWong99/vadseg/pkg/segment"
)

type fakeEngine struct {
	mu    sync.Mutex
	text  string
	err   error
	calls [][]float32
}

func (f *fakeEngine) Transcribe(_ context.Context, samples []float32) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, samples)
	return f.text, f.err
}

func seg(n, rate int) segment.Segment {
	return segment.Segment{ID: "seg-1", Samples: make([]float32, n), SampleRate: rate}
}

func TestExporter_DeliversText(t *testing.T) {
	t.Parallel()

	eng := &fakeEngine{text: "  hello there \n"}
	var got []transcribe.Transcript
	e, err := transcribe.New(eng, func(tr transcribe.Transcript) { got = append(got, tr) })
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Export(context.Background(), seg(1600, 16000)); err != nil {
		t.Fatalf("Export: %v", err)
	}
	if len(got) != 1 || got[0].Text != "hello there" || got[0].SegmentID != "seg-1" {
		t.Errorf("transcripts = %+v", got)
	}
	if len(eng.calls[0]) != 1600 {
		t.Errorf("engine got %d samples, want 1600 (no resampling at 16 kHz)", len(eng.calls[0]))
	}
}

func TestExporter_SkipsBlankText(t *testing.T) {
	t.Parallel()

	called := false
	e, _ := transcribe.New(&fakeEngine{text: "   "}, func(transcribe.Transcript) { called = true })
	if err := e.Export(context.Background(), seg(160, 16000)); err != nil {
		t.Fatal(err)
	}
	if called {
		t.Error("blank transcript should not be delivered")
	}
}

func TestExporter_PropagatesEngineError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	e, _ := transcribe.New(&fakeEngine{err: boom}, nil)
	if err := e.Export(context.Background(), seg(160, 16000)); !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
}

func TestExporter_ResamplesOtherRates(t *testing.T) {
	t.Parallel()

	eng := &fakeEngine{text: "x"}
	e, _ := transcribe.New(eng, func(transcribe.Transcript) {})
	if err := e.Export(context.Background(), seg(48000, 48000)); err != nil {
		t.Fatalf("Export: %v", err)
	}
	if n := len(eng.calls[0]); n >= 48000 {
		t.Errorf("engine got %d samples, expected downsampled audio", n)
	}
}

func TestNew_RequiresEngine(t *testing.T) {
	t.Parallel()

	if _, err := transcribe.New(nil, nil); err == nil {
		t.Error("expected error")
	}
}

func newInferenceServer(t *testing.T, text string, calls *atomic.Int32, bodies chan<- []byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/inference" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		calls.Add(1)
		f, _, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		data, _ := io.ReadAll(f)
		if bodies != nil {
			bodies <- data
		}
		if r.FormValue("language") != "de" {
			http.Error(w, "missing language", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"text": text})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestServer_PostsWAV(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	bodies := make(chan []byte, 1)
	srv := newInferenceServer(t, "guten tag", &calls, bodies)

	eng, err := transcribe.NewServer(srv.URL+"/", transcribe.WithLanguage("de"))
	if err != nil {
		t.Fatal(err)
	}
	text, err := eng.Transcribe(context.Background(), make([]float32, 320))
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "guten tag" {
		t.Errorf("text = %q", text)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
	body := <-bodies
	if len(body) != wav.HeaderSize+2*320 || string(body[:4]) != "RIFF" {
		t.Errorf("uploaded %d bytes starting %q", len(body), body[:4])
	}
}

func TestServer_HTTPError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	eng, _ := transcribe.NewServer(srv.URL)
	if _, err := eng.Transcribe(context.Background(), make([]float32, 16)); err == nil {
		t.Error("expected error for HTTP 503")
	}
}

func TestNewServer_EmptyURL(t *testing.T) {
	t.Parallel()

	if _, err := transcribe.NewServer(""); err == nil {
		t.Error("expected error")
	}
}
