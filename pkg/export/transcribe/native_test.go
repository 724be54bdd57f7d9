//go:build whisper

package transcribe_test

import (
	"context"
	"os"
	"testing"

	"github.com/MrWong99/vadseg/pkg/export/transcribe"
)

func modelPath(t *testing.T) string {
	t.Helper()
	p := os.Getenv("WHISPER_MODEL_PATH")
	if p == "" {
		t.Skip("WHISPER_MODEL_PATH not set")
	}
	return p
}

func TestNewNative_EmptyPath(t *testing.T) {
	t.Parallel()

	if _, err := transcribe.NewNative("", "en"); err == nil {
		t.Error("expected error")
	}
}

func TestNative_SilenceTranscribes(t *testing.T) {
	n, err := transcribe.NewNative(modelPath(t), "en")
	if err != nil {
		t.Fatalf("NewNative: %v", err)
	}
	defer n.Close()

	if _, err := n.Transcribe(context.Background(), make([]float32, transcribe.SampleRate)); err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if err := n.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}
