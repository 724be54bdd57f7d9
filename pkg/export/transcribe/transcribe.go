// Package transcribe turns finalized speech segments into text by handing
// them to a whisper.cpp engine, either in-process (build tag "whisper") or
// through a whisper.cpp server's /inference endpoint.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MrWong99/vadseg/pkg/audio"
	"github.com/MrWong99/vadseg/pkg/segment"
)

// SampleRate is the rate whisper models expect. Segments at other rates are
// resampled before transcription.
const SampleRate = 16000

// Engine transcribes mono audio at [SampleRate].
type Engine interface {
	Transcribe(ctx context.Context, samples []float32) (string, error)
}

// Transcript is the text recognised for one segment.
type Transcript struct {
	SegmentID string
	Text      string
	Start     time.Time
	End       time.Time

	// Latency is the time the engine took.
	Latency time.Duration
}

// TextFunc receives every non-empty transcript.
type TextFunc func(Transcript)

// Exporter is a [segment.Exporter] that transcribes each segment.
type Exporter struct {
	engine Engine
	onText TextFunc
}

var _ segment.Exporter = (*Exporter)(nil)

// New returns an exporter that passes each transcript to onText. A nil
// onText logs transcripts at info level.
func New(engine Engine, onText TextFunc) (*Exporter, error) {
	if engine == nil {
		return nil, errors.New("transcribe: engine is required")
	}
	if onText == nil {
		onText = func(tr Transcript) {
			slog.Info("transcript", "segment", tr.SegmentID, "text", tr.Text, "latency", tr.Latency)
		}
	}
	return &Exporter{engine: engine, onText: onText}, nil
}

// Export implements [segment.Exporter].
func (e *Exporter) Export(ctx context.Context, seg segment.Segment) error {
	samples, err := toModelRate(seg.Samples, seg.SampleRate)
	if err != nil {
		return err
	}
	start := time.Now()
	text, err := e.engine.Transcribe(ctx, samples)
	if err != nil {
		return fmt.Errorf("transcribe: segment %s: %w", seg.ID, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	e.onText(Transcript{
		SegmentID: seg.ID,
		Text:      text,
		Start:     seg.Start,
		End:       seg.End,
		Latency:   time.Since(start),
	})
	return nil
}

func toModelRate(samples []float32, rate int) ([]float32, error) {
	if rate == SampleRate {
		return samples, nil
	}
	rs, err := audio.NewResampler(rate, SampleRate)
	if err != nil {
		return nil, fmt.Errorf("transcribe: %w", err)
	}
	return rs.Process(samples)
}
