//go:build whisper

// The in-process engine links whisper.cpp through CGO. libwhisper.a and
// whisper.h must be reachable via LIBRARY_PATH and C_INCLUDE_PATH.

package transcribe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

// Native is an [Engine] running a whisper.cpp model in-process. The model is
// loaded once; each call creates its own context so calls may overlap.
type Native struct {
	model    whisperlib.Model
	language string

	closeOnce sync.Once
	closeErr  error
}

var _ Engine = (*Native)(nil)

// NewNative loads the model at modelPath.
func NewNative(modelPath, language string) (*Native, error) {
	if modelPath == "" {
		return nil, errors.New("transcribe: model path must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("transcribe: load model %q: %w", modelPath, err)
	}
	if language == "" {
		language = "en"
	}
	return &Native{model: model, language: language}, nil
}

// Transcribe implements [Engine].
func (n *Native) Transcribe(ctx context.Context, samples []float32) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	wctx, err := n.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("transcribe: create context: %w", err)
	}
	if err := wctx.SetLanguage(n.language); err != nil {
		slog.Warn("transcribe: failed to set language, using auto-detect", "language", n.language, "err", err)
	}
	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("transcribe: process: %w", err)
	}

	var sb strings.Builder
	for {
		seg, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("transcribe: next segment: %w", err)
		}
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(strings.TrimSpace(seg.Text))
	}
	return sb.String(), nil
}

// Close releases the model. Safe to call more than once.
func (n *Native) Close() error {
	n.closeOnce.Do(func() { n.closeErr = n.model.Close() })
	return n.closeErr
}
