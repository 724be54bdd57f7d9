//go:build portaudio

// Package portaudio captures microphone audio through PortAudio. The driver
// callback writes into a ring buffer; Poll drains it.
package portaudio

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	pa "github.com/gordonklaus/portaudio"

	"github.com/MrWong99/vadseg/pkg/audio"
	"github.com/MrWong99/vadseg/pkg/capture"
)

// Config selects and sizes the capture stream.
type Config struct {
	// Device is the preferred device name; see capture.SelectDevice.
	Device string

	// SampleRate in Hz. Zero uses the device default.
	SampleRate int

	// FramesPerBuffer is the driver callback size. Zero lets PortAudio
	// choose.
	FramesPerBuffer int

	// Buffer is how much audio the ring holds between polls.
	Buffer time.Duration
}

var _ capture.Source = (*Source)(nil)

// Source is a live microphone source.
type Source struct {
	stream *pa.Stream
	ring   *audio.Ring
	rate   int
	device string

	mu        sync.Mutex
	lastOver  int64
	onOverrun func(lost int64)

	closeOnce sync.Once
	closeErr  error
}

// Option configures a Source.
type Option func(*Source)

// WithOverrunFunc is called from Poll with the number of samples lost since
// the previous poll whenever the ring buffer overflowed.
func WithOverrunFunc(fn func(lost int64)) Option {
	return func(s *Source) { s.onOverrun = fn }
}

// Devices lists the capture devices PortAudio reports. PortAudio must be
// initialised; Devices initialises and terminates it around the query.
func Devices() ([]capture.Device, error) {
	if err := pa.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio: initialize: %w", err)
	}
	defer pa.Terminate()
	return devices()
}

func devices() ([]capture.Device, error) {
	infos, err := pa.Devices()
	if err != nil {
		return nil, fmt.Errorf("portaudio: list devices: %w", err)
	}
	out := make([]capture.Device, 0, len(infos))
	for _, info := range infos {
		out = append(out, capture.Device{
			Name:              info.Name,
			MaxInputChannels:  info.MaxInputChannels,
			DefaultSampleRate: info.DefaultSampleRate,
		})
	}
	return out, nil
}

// Open initialises PortAudio, selects a device and starts a mono float32
// input stream.
func Open(cfg Config, opts ...Option) (*Source, error) {
	if err := pa.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio: initialize: %w", err)
	}
	s, err := open(cfg, opts...)
	if err != nil {
		_ = pa.Terminate()
		return nil, err
	}
	return s, nil
}

func open(cfg Config, opts ...Option) (*Source, error) {
	infos, err := pa.Devices()
	if err != nil {
		return nil, fmt.Errorf("portaudio: list devices: %w", err)
	}
	devs, err := devices()
	if err != nil {
		return nil, err
	}
	chosen, err := capture.SelectDevice(devs, cfg.Device)
	if err != nil {
		return nil, err
	}
	var info *pa.DeviceInfo
	for _, i := range infos {
		if i.Name == chosen.Name && i.MaxInputChannels > 0 {
			info = i
			break
		}
	}
	if info == nil {
		return nil, capture.ErrNoDeviceFound
	}

	rate := cfg.SampleRate
	if rate <= 0 {
		rate = int(info.DefaultSampleRate)
	}
	buffer := cfg.Buffer
	if buffer <= 0 {
		buffer = time.Second
	}

	s := &Source{
		ring:   audio.NewRing(audio.DurationToSamples(buffer, rate)),
		rate:   rate,
		device: info.Name,
	}
	for _, o := range opts {
		o(s)
	}

	params := pa.StreamParameters{
		Input: pa.StreamDeviceParameters{
			Device:   info,
			Channels: 1,
			Latency:  info.DefaultLowInputLatency,
		},
		SampleRate:      float64(rate),
		FramesPerBuffer: cfg.FramesPerBuffer,
	}
	stream, err := pa.OpenStream(params, s.ring.Write)
	if err != nil {
		return nil, fmt.Errorf("portaudio: open stream on %q: %w", info.Name, err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return nil, fmt.Errorf("portaudio: start stream: %w", err)
	}
	s.stream = stream
	slog.Info("capture started", "device", info.Name, "sample_rate", rate, "buffer", buffer)
	return s, nil
}

// Device returns the name of the opened device.
func (s *Source) Device() string { return s.device }

// SampleRate implements capture.Source.
func (s *Source) SampleRate() int { return s.rate }

// Available implements capture.Source.
func (s *Source) Available() int { return s.ring.Len() }

// Overruns returns the total number of samples overwritten before they were
// polled.
func (s *Source) Overruns() int64 { return s.ring.Overruns() }

// Poll implements capture.Source.
func (s *Source) Poll() (audio.Chunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream == nil {
		return audio.Chunk{}, capture.ErrClosed
	}
	samples, at := s.ring.DrainAt()
	c := audio.Chunk{
		Samples:    samples,
		SampleRate: s.rate,
		Timestamp:  audio.SamplesToDuration(int(at), s.rate),
	}

	if over := s.ring.Overruns(); over > s.lastOver {
		lost := over - s.lastOver
		s.lastOver = over
		slog.Warn("capture overrun", "device", s.device, "lost_samples", lost)
		if s.onOverrun != nil {
			s.onOverrun(lost)
		}
	}
	return c, nil
}

// Close stops the stream and terminates PortAudio.
func (s *Source) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.stream == nil {
			return
		}
		if err := s.stream.Stop(); err != nil {
			s.closeErr = fmt.Errorf("portaudio: stop stream: %w", err)
		}
		if err := s.stream.Close(); err != nil && s.closeErr == nil {
			s.closeErr = fmt.Errorf("portaudio: close stream: %w", err)
		}
		s.stream = nil
		if err := pa.Terminate(); err != nil && s.closeErr == nil {
			s.closeErr = fmt.Errorf("portaudio: terminate: %w", err)
		}
	})
	return s.closeErr
}
