package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/vadseg/pkg/audio"
	"github.com/MrWong99/vadseg/pkg/provider/vad"
	"github.com/MrWong99/vadseg/pkg/segment"
)

// KnownBackends lists the backend names shipped with vadseg per kind. Some
// are only registered when the binary is built with the matching tag.
// Used by [Validate] to warn about unrecognised names.
var KnownBackends = map[string][]string{
	"capture": {"wavfile", "portaudio"},
	"vad":     {"energy", "webrtc", "silero", "silero-go"},
	"export":  {"wav", "transcribe", "whisper"},
}

// RangeBackends lists the VAD backends that scan whole buffers. They only
// report ranges longer than vad.min_speech_ms, so every chunk they see must
// be longer than that.
var RangeBackends = []string{"silero", "silero-go"}

// rangeChunkMs is the chunk length used with range backends when none is
// configured.
const rangeChunkMs = 500

// defaultClassifyTimeoutMs bounds a single classification when vad.timeout_ms
// is unset.
const defaultClassifyTimeoutMs = 250

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied. override, when non-nil, adjusts the config
// before validation.
func Load(path string, override func(*Config)) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := parse(f, override)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and
// validates the result. An empty document yields the default configuration.
func LoadFromReader(r io.Reader) (*Config, error) {
	return parse(r, nil)
}

// parse decodes r and applies defaults, then override (if any), then
// validation.
func parse(r io.Reader, override func(*Config)) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if override != nil {
		override(cfg)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills unset fields.
func ApplyDefaults(cfg *Config) {
	vd := vad.DefaultConfig()
	sd := segment.DefaultConfig()

	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}

	v := &cfg.VAD
	if v.Backend == "" {
		v.Backend = "webrtc"
	}
	minPollMs, chunkMs := 10, 30
	if cfg.RangeMode() {
		minPollMs, chunkMs = rangeChunkMs, rangeChunkMs
	}

	c := &cfg.Capture
	if c.Backend == "" {
		if c.File != "" {
			c.Backend = "wavfile"
		} else {
			c.Backend = "portaudio"
		}
	}
	if c.SampleRate == 0 {
		c.SampleRate = vd.SampleRate
	}
	if c.PollIntervalMs == 0 {
		c.PollIntervalMs = 30
	}
	if c.MinPollMs == 0 {
		c.MinPollMs = minPollMs
	}
	if c.BufferMs == 0 {
		c.BufferMs = 2000
	}
	if c.ChunkMs == 0 {
		c.ChunkMs = chunkMs
	}

	if v.FrameMs == 0 {
		v.FrameMs = vd.FrameSizeMs
	}
	if v.Mode == nil {
		v.Mode = &vd.Mode
	}
	if v.Threshold == 0 {
		v.Threshold = vd.Threshold
	}
	if v.NegThreshold == nil {
		v.NegThreshold = &vd.NegThreshold
	}
	if v.MinSpeechMs == 0 {
		v.MinSpeechMs = vd.MinSpeechMs
	}
	if v.MaxSpeechS == 0 {
		v.MaxSpeechS = vd.MaxSpeechS
	}
	if v.MinSilenceMs == 0 {
		v.MinSilenceMs = vd.MinSilenceMs
	}
	if v.PadMs == nil {
		v.PadMs = &vd.PadMs
	}
	if v.TimeoutMs == 0 {
		v.TimeoutMs = defaultClassifyTimeoutMs
	}

	s := &cfg.Segmenter
	if s.EnergyFloor == nil {
		s.EnergyFloor = &sd.Gate.Floor
	}
	if s.MinSpeechMs == 0 {
		s.MinSpeechMs = int(sd.MinSpeech / time.Millisecond)
	}
	if s.HysteresisMs == 0 {
		s.HysteresisMs = int(sd.Hysteresis / time.Millisecond)
	}

	e := &cfg.Export
	if len(e.Sinks) == 0 {
		e.Sinks = []string{"wav"}
	}
	if e.Dir == "" {
		e.Dir = "segments"
	}
	if e.QueueSize == 0 {
		e.QueueSize = 16
	}
	if e.TimeoutMs == 0 {
		e.TimeoutMs = 30000
	}
	if e.Transcribe.Language == "" {
		e.Transcribe.Language = "en"
	}

	r := &cfg.Resilience
	if r.MaxFailures == 0 {
		r.MaxFailures = 5
	}
	if r.ResetTimeoutMs == 0 {
		r.ResetTimeoutMs = 30000
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	warnUnknownBackend("capture", cfg.Capture.Backend)
	warnUnknownBackend("vad", cfg.VAD.Backend)
	for _, sink := range cfg.Export.Sinks {
		warnUnknownBackend("export", sink)
	}

	c := cfg.Capture
	if c.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("capture.sample_rate %d must be positive", c.SampleRate))
	}
	if c.Backend == "wavfile" && c.File == "" {
		errs = append(errs, errors.New("capture.file is required when capture.backend is wavfile"))
	}
	if c.PollIntervalMs < 0 || c.MinPollMs < 0 || c.BufferMs < 0 || c.ChunkMs < 0 {
		errs = append(errs, errors.New("capture durations must not be negative"))
	}
	if c.BufferMs > 0 && c.PollIntervalMs > c.BufferMs {
		errs = append(errs, fmt.Errorf("capture.buffer_ms %d is shorter than poll_interval_ms %d", c.BufferMs, c.PollIntervalMs))
	}

	v := cfg.VAD
	if v.Mode != nil && (*v.Mode < 0 || *v.Mode > 3) {
		errs = append(errs, fmt.Errorf("vad.mode %d is out of range [0, 3]", *v.Mode))
	}
	if v.Threshold < 0 || v.Threshold > 1 {
		errs = append(errs, fmt.Errorf("vad.threshold %.3f is out of range [0, 1]", v.Threshold))
	}
	if v.NegThreshold != nil && *v.NegThreshold > v.Threshold {
		errs = append(errs, fmt.Errorf("vad.neg_threshold %.3f exceeds vad.threshold %.3f", *v.NegThreshold, v.Threshold))
	}
	if v.MinSpeechMs < 0 || v.MinSilenceMs < 0 || v.TimeoutMs < 0 || v.MaxSpeechS < 0 {
		errs = append(errs, errors.New("vad durations must not be negative"))
	}
	if v.PadMs != nil && *v.PadMs < 0 {
		errs = append(errs, fmt.Errorf("vad.pad_ms %d must not be negative", *v.PadMs))
	}
	if cfg.RangeMode() {
		if v.ModelPath == "" {
			errs = append(errs, fmt.Errorf("vad.model_path is required for backend %q", v.Backend))
		}
		if least := cfg.MinRangeChunkMs(); c.MinPollMs <= least || c.ChunkMs <= least {
			errs = append(errs, fmt.Errorf("capture.min_poll_ms %d and capture.chunk_ms %d must exceed %d ms (vad.min_speech_ms plus one window) for backend %q",
				c.MinPollMs, c.ChunkMs, least, v.Backend))
		}
	}

	if err := cfg.SessionConfig().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("segmenter: %w", err))
	}

	e := cfg.Export
	if e.QueueSize < 0 {
		errs = append(errs, fmt.Errorf("export.queue_size %d must not be negative", e.QueueSize))
	}
	for _, sink := range e.Sinks {
		switch sink {
		case "transcribe":
			if e.Transcribe.ServerURL == "" {
				errs = append(errs, errors.New("export.transcribe.server_url is required for sink transcribe"))
			}
		case "whisper":
			if e.Transcribe.ModelPath == "" {
				errs = append(errs, errors.New("export.transcribe.model_path is required for sink whisper"))
			}
		}
	}

	if cfg.Resilience.MaxFailures < 0 || cfg.Resilience.ResetTimeoutMs < 0 {
		errs = append(errs, errors.New("resilience values must not be negative"))
	}

	return errors.Join(errs...)
}

// VADParams converts the vad section into backend parameters.
func (c *Config) VADParams() vad.Config {
	v := c.VAD
	out := vad.Config{
		SampleRate:   c.Capture.SampleRate,
		FrameSizeMs:  v.FrameMs,
		Threshold:    v.Threshold,
		NegThreshold: -1,
		MinSpeechMs:  v.MinSpeechMs,
		MaxSpeechS:   v.MaxSpeechS,
		MinSilenceMs: v.MinSilenceMs,
		ModelPath:    v.ModelPath,
		LibraryPath:  v.LibraryPath,
	}
	if v.Mode != nil {
		out.Mode = *v.Mode
	}
	if v.NegThreshold != nil {
		out.NegThreshold = *v.NegThreshold
	}
	if v.PadMs != nil {
		out.PadMs = *v.PadMs
	}
	return out.WithDefaults()
}

// SessionConfig converts the segmenter section into session parameters.
func (c *Config) SessionConfig() segment.Config {
	s := c.Segmenter
	out := segment.Config{
		SampleRate: c.Capture.SampleRate,
		MinSpeech:  time.Duration(s.MinSpeechMs) * time.Millisecond,
		Hysteresis: time.Duration(s.HysteresisMs) * time.Millisecond,
		MaxSegment: time.Duration(s.MaxSegmentS * float64(time.Second)),
		Gate:       segment.Gate{Floor: segment.DefaultEnergyFloor, PerRange: s.GateRanges},
	}
	if s.EnergyFloor != nil {
		out.Gate.Floor = *s.EnergyFloor
	}
	return out
}

// RangeMode reports whether the configured VAD backend scans whole buffers.
func (c *Config) RangeMode() bool {
	return slices.Contains(RangeBackends, c.VAD.Backend)
}

// MinRangeChunkMs is the chunk length, in milliseconds, that a range backend
// needs to exceed before it can report any speech: the minimum speech
// duration plus one model window.
func (c *Config) MinRangeChunkMs() int {
	minSpeech := c.VAD.MinSpeechMs
	if minSpeech == 0 {
		minSpeech = vad.DefaultConfig().MinSpeechMs
	}
	window, _, modelRate := vad.Windowing(c.Capture.SampleRate)
	if modelRate <= 0 {
		return minSpeech
	}
	return minSpeech + window*1000/modelRate
}

// ClassifyTimeout returns the per-chunk classification bound.
func (c *Config) ClassifyTimeout() time.Duration {
	return time.Duration(c.VAD.TimeoutMs) * time.Millisecond
}

// MinPollSamples returns the least number of samples processed per tick.
func (c *Config) MinPollSamples() int {
	return audio.DurationToSamples(time.Duration(c.Capture.MinPollMs)*time.Millisecond, c.Capture.SampleRate)
}

// warnUnknownBackend logs a warning if name is non-empty and not found in
// the [KnownBackends] list for kind.
func warnUnknownBackend(kind, name string) {
	if name == "" {
		return
	}
	known, ok := KnownBackends[kind]
	if !ok || slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown backend name, may be a typo or a custom registration",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
