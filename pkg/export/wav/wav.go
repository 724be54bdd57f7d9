// Package wav writes speech segments as 16-bit mono PCM WAV files.
//
// The file layout is the canonical 44-byte RIFF header followed by
// little-endian samples quantised with audio.Quantize. Encoding is delegated
// to github.com/go-audio/wav.
package wav

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	goaudio "github.com/go-audio/audio"
	gowav "github.com/go-audio/wav"

	"github.com/MrWong99/vadseg/pkg/audio"
	"github.com/MrWong99/vadseg/pkg/segment"
)

const (
	bitDepth  = 16
	channels  = 1
	pcmFormat = 1

	// HeaderSize is the size of the RIFF/WAVE header preceding the samples.
	HeaderSize = 44

	// DefaultPrefix is the file name prefix used when none is configured.
	DefaultPrefix = "speech"
)

// Encode writes samples as a 16-bit mono PCM WAV stream to w.
func Encode(w io.WriteSeeker, samples []float32, sampleRate int) error {
	if sampleRate <= 0 {
		return fmt.Errorf("wav: invalid sample rate %d", sampleRate)
	}
	enc := gowav.NewEncoder(w, sampleRate, bitDepth, channels, pcmFormat)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           audio.QuantizeInto(make([]int, len(samples)), samples),
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("wav: write samples: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("wav: finalize header: %w", err)
	}
	return nil
}

// WriteFile encodes samples to path. The data is written to a temporary file
// in the same directory and renamed into place, so readers never observe a
// partially written file.
func WriteFile(path string, samples []float32, sampleRate int) (err error) {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("wav: create temp file: %w", err)
	}
	tmp := f.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmp)
		}
	}()

	if err = Encode(f, samples, sampleRate); err != nil {
		_ = f.Close()
		return err
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("wav: close %s: %w", tmp, err)
	}
	if err = os.Rename(tmp, path); err != nil {
		return fmt.Errorf("wav: rename into place: %w", err)
	}
	return nil
}

// Exporter writes each segment to its own file under a directory.
type Exporter struct {
	dir    string
	prefix string
}

var _ segment.Exporter = (*Exporter)(nil)

// Option configures an Exporter.
type Option func(*Exporter)

// WithPrefix sets the file name prefix.
func WithPrefix(p string) Option {
	return func(e *Exporter) {
		if p != "" {
			e.prefix = p
		}
	}
}

// NewExporter creates dir if needed and returns an exporter writing into it.
func NewExporter(dir string, opts ...Option) (*Exporter, error) {
	if dir == "" {
		return nil, errors.New("wav: output directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("wav: create output directory: %w", err)
	}
	e := &Exporter{dir: dir, prefix: DefaultPrefix}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// Path returns the file the exporter writes seg to:
// <dir>/<prefix>_<end time>_<first 8 characters of the ID>.wav.
func (e *Exporter) Path(seg segment.Segment) string {
	id := strings.ReplaceAll(seg.ID, "-", "")
	if len(id) > 8 {
		id = id[:8]
	}
	stamp := seg.End.UTC().Format("20060102T150405.000")
	stamp = strings.ReplaceAll(stamp, ".", "")
	name := e.prefix + "_" + stamp
	if id != "" {
		name += "_" + id
	}
	return filepath.Join(e.dir, name+".wav")
}

// Export implements [segment.Exporter].
func (e *Exporter) Export(ctx context.Context, seg segment.Segment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return WriteFile(e.Path(seg), seg.Samples, seg.SampleRate)
}
