package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/MrWong99/vadseg/internal/config"
	"github.com/MrWong99/vadseg/internal/observe"
	"github.com/MrWong99/vadseg/internal/resilience"
	"github.com/MrWong99/vadseg/pkg/capture"
	"github.com/MrWong99/vadseg/pkg/capture/wavfile"
	"github.com/MrWong99/vadseg/pkg/export/transcribe"
	"github.com/MrWong99/vadseg/pkg/export/wav"
	"github.com/MrWong99/vadseg/pkg/provider/vad"
	"github.com/MrWong99/vadseg/pkg/provider/vad/energy"
	"github.com/MrWong99/vadseg/pkg/segment"
)

// optional registers backends that need native libraries. Files guarded by
// build tags append to it from init.
var optional []func(reg *config.Registry, m *observe.Metrics)

// deviceLister lists capture devices. Set when built with portaudio.
var deviceLister func() ([]capture.Device, error)

// nativeEngine loads an in-process whisper model. Set when built with the
// whisper tag.
var nativeEngine func(modelPath, language string) (transcribeCloser, error)

// transcribeCloser is a transcription engine holding native resources.
type transcribeCloser interface {
	transcribe.Engine
	Close() error
}

// closingExporter pairs a sink with the engine it must release.
type closingExporter struct {
	segment.Exporter
	closer interface{ Close() error }
}

func (c closingExporter) Close() error { return c.closer.Close() }

// registerBuiltin wires every backend compiled into this binary into reg.
func registerBuiltin(reg *config.Registry, m *observe.Metrics) {
	// ── Capture ───────────────────────────────────────────────────────────────
	reg.RegisterCapture("wavfile", func(cfg *config.Config) (capture.Source, error) {
		chunk := time.Duration(cfg.Capture.ChunkMs) * time.Millisecond
		src, err := wavfile.Open(cfg.Capture.File, cfg.Capture.SampleRate, chunk)
		if err != nil {
			return nil, err
		}
		return src, nil
	})

	// ── VAD ───────────────────────────────────────────────────────────────────
	reg.RegisterVAD("energy", func(cfg *config.Config) (vad.Classifier, error) {
		c, err := energy.New(cfg.VADParams())
		if err != nil {
			return nil, err
		}
		return vad.NewFrameAdapter(c), nil
	})

	// ── Export ────────────────────────────────────────────────────────────────
	reg.RegisterExporter("wav", func(cfg *config.Config) (segment.Exporter, error) {
		e, err := wav.NewExporter(cfg.Export.Dir, wav.WithPrefix(cfg.Export.Prefix))
		if err != nil {
			return nil, err
		}
		return e, nil
	})
	reg.RegisterExporter("transcribe", newTranscribeExporter)

	for _, register := range optional {
		register(reg, m)
	}
}

// newTranscribeExporter builds the whisper.cpp server sink. When the binary
// has the in-process engine and a model path is configured, the model serves
// as a fallback for the server.
func newTranscribeExporter(cfg *config.Config) (segment.Exporter, error) {
	tc := cfg.Export.Transcribe
	server, err := transcribe.NewServer(tc.ServerURL, transcribe.WithLanguage(tc.Language))
	if err != nil {
		return nil, err
	}
	if tc.ModelPath == "" || nativeEngine == nil {
		e, err := transcribe.New(server, nil)
		if err != nil {
			return nil, err
		}
		return e, nil
	}

	native, err := nativeEngine(tc.ModelPath, tc.Language)
	if err != nil {
		return nil, fmt.Errorf("load fallback model: %w", err)
	}
	engine := resilience.NewEngineFallback(server, "server", resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{
			MaxFailures:  cfg.Resilience.MaxFailures,
			ResetTimeout: time.Duration(cfg.Resilience.ResetTimeoutMs) * time.Millisecond,
		},
	})
	engine.AddFallback("native", native)
	e, err := transcribe.New(engine, nil)
	if err != nil {
		_ = native.Close()
		return nil, err
	}
	return closingExporter{Exporter: e, closer: native}, nil
}

// printDevices lists the capture devices for -devices.
func printDevices() int {
	if deviceLister == nil {
		fmt.Fprintln(os.Stderr, "vadseg: built without portaudio support (rebuild with -tags portaudio)")
		return 1
	}
	devices, err := deviceLister()
	if err != nil {
		fmt.Fprintf(os.Stderr, "vadseg: %v\n", err)
		return 1
	}
	for _, d := range devices {
		if !d.CanCapture() {
			continue
		}
		fmt.Printf("%-40s  %d ch  %.0f Hz\n", d.Name, d.MaxInputChannels, d.DefaultSampleRate)
	}
	return 0
}

// overrunRecorder reports capture overruns as a metric.
func overrunRecorder(m *observe.Metrics) func(lost int64) {
	return func(lost int64) {
		m.RecordOverrun(context.Background(), lost)
	}
}
