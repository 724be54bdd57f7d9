package wav

import (
	"errors"
	"io"
)

// Bytes encodes samples as a complete WAV file in memory.
func Bytes(samples []float32, sampleRate int) ([]byte, error) {
	var b seekBuffer
	if err := Encode(&b, samples, sampleRate); err != nil {
		return nil, err
	}
	return b.buf, nil
}

// seekBuffer is an in-memory io.WriteSeeker. The encoder seeks back to patch
// the RIFF and data sizes once all samples are written.
type seekBuffer struct {
	buf []byte
	pos int
}

func (b *seekBuffer) Write(p []byte) (int, error) {
	if end := b.pos + len(p); end > len(b.buf) {
		if end > cap(b.buf) {
			grown := make([]byte, end, 2*end)
			copy(grown, b.buf)
			b.buf = grown
		} else {
			b.buf = b.buf[:end]
		}
	}
	n := copy(b.buf[b.pos:], p)
	b.pos += n
	return n, nil
}

func (b *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(b.pos) + offset
	case io.SeekEnd:
		abs = int64(len(b.buf)) + offset
	default:
		return 0, errors.New("wav: invalid whence")
	}
	if abs < 0 {
		return 0, errors.New("wav: negative position")
	}
	b.pos = int(abs)
	return abs, nil
}
