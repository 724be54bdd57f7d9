// Package capture defines where audio comes from.
//
// A [Source] is polled once per tick and returns everything captured since
// the previous poll. Live sources (microphone) fill a ring buffer from a
// driver callback; offline sources (WAV files) return fixed-duration chunks
// and io.EOF at the end of the input.
package capture

import (
	"errors"
	"strings"

	"github.com/MrWong99/vadseg/pkg/audio"
)

// ErrNoDeviceFound is returned by [SelectDevice] when no device can capture
// audio.
var ErrNoDeviceFound = errors.New("capture: no input device found")

// ErrClosed is returned by Poll after Close.
var ErrClosed = errors.New("capture: source closed")

// Source delivers mono float32 audio.
type Source interface {
	// SampleRate is the rate of every chunk returned by Poll.
	SampleRate() int

	// Available returns the number of samples a Poll would return now.
	Available() int

	// Poll returns all samples captured since the last call. The chunk may
	// be empty. Offline sources return io.EOF once exhausted.
	Poll() (audio.Chunk, error)

	// Close releases the device. Safe to call more than once.
	Close() error
}

// IsOffline reports whether src is a pre-recorded source that should be
// drained as fast as possible rather than polled in real time. Sources opt
// in by implementing Offline() bool.
func IsOffline(src Source) bool {
	o, ok := src.(interface{ Offline() bool })
	return ok && o.Offline()
}

// Device describes a capture device as reported by the audio driver.
type Device struct {
	Name              string
	MaxInputChannels  int
	DefaultSampleRate float64
}

// CanCapture reports whether the device has at least one input channel.
func (d Device) CanCapture() bool { return d.MaxInputChannels > 0 }

// SelectDevice picks the capture device to open. Output-only devices are
// ignored. A device named exactly preferred wins; otherwise the first device
// whose name contains preferred (case-insensitive); otherwise the first input
// device. An empty preferred selects the first input device.
func SelectDevice(devices []Device, preferred string) (Device, error) {
	inputs := make([]Device, 0, len(devices))
	for _, d := range devices {
		if d.CanCapture() {
			inputs = append(inputs, d)
		}
	}
	if len(inputs) == 0 {
		return Device{}, ErrNoDeviceFound
	}
	if preferred == "" {
		return inputs[0], nil
	}
	for _, d := range inputs {
		if d.Name == preferred {
			return d, nil
		}
	}
	want := strings.ToLower(preferred)
	for _, d := range inputs {
		if strings.Contains(strings.ToLower(d.Name), want) {
			return d, nil
		}
	}
	return inputs[0], nil
}
