// Package config provides the configuration schema, loader, hot-reload
// watcher and backend registry for the vadseg daemon.
package config

import (
	"log/slog"
	"time"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Level maps l to a slog level. Unknown values map to info.
func (l LogLevel) Level() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Config is the root configuration structure.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Capture    CaptureConfig    `yaml:"capture"`
	VAD        VADConfig        `yaml:"vad"`
	Segmenter  SegmenterConfig  `yaml:"segmenter"`
	Export     ExportConfig     `yaml:"export"`
	Resilience ResilienceConfig `yaml:"resilience"`
}

// ServerConfig holds the HTTP listener (metrics and health) and logging.
type ServerConfig struct {
	// ListenAddr serves /metrics, /healthz and /readyz. Empty disables the
	// HTTP server.
	ListenAddr string `yaml:"listen_addr"`

	LogLevel LogLevel `yaml:"log_level"`
}

// CaptureConfig selects the audio source.
type CaptureConfig struct {
	// Backend is "portaudio" (microphone) or "wavfile".
	Backend string `yaml:"backend"`

	// Device is the preferred input device name for live capture.
	Device string `yaml:"device"`

	// File is the WAV file replayed by the wavfile backend.
	File string `yaml:"file"`

	// SampleRate is the rate audio is captured or resampled to.
	SampleRate int `yaml:"sample_rate"`

	// PollIntervalMs is the tick period of the live loop.
	PollIntervalMs int `yaml:"poll_interval_ms"`

	// MinPollMs is the least amount of buffered audio processed per tick.
	// Smaller polls are left in the buffer for the next tick. Defaults to
	// 10 ms, or 500 ms when vad.backend is a range backend.
	MinPollMs int `yaml:"min_poll_ms"`

	// BufferMs sizes the capture ring buffer.
	BufferMs int `yaml:"buffer_ms"`

	// ChunkMs is the chunk length produced by the wavfile backend. Defaults
	// follow MinPollMs.
	ChunkMs int `yaml:"chunk_ms"`
}

// PollInterval returns PollIntervalMs as a duration.
func (c CaptureConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// VADConfig selects and tunes the voice activity detector.
type VADConfig struct {
	// Backend is one of "energy", "webrtc", "silero", "silero-go".
	Backend string `yaml:"backend"`

	FrameMs     int    `yaml:"frame_ms"`
	Mode        *int   `yaml:"mode"`
	ModelPath   string `yaml:"model_path"`
	LibraryPath string `yaml:"library_path"`

	Threshold    float64  `yaml:"threshold"`
	NegThreshold *float64 `yaml:"neg_threshold"`
	MinSpeechMs  int      `yaml:"min_speech_ms"`
	MaxSpeechS   float64  `yaml:"max_speech_s"`
	MinSilenceMs int      `yaml:"min_silence_ms"`
	PadMs        *int     `yaml:"pad_ms"`

	// TimeoutMs bounds a single classification. Defaults to 250 ms.
	TimeoutMs int `yaml:"timeout_ms"`
}

// SegmenterConfig tunes gating and segmentation.
type SegmenterConfig struct {
	EnergyFloor  *float64 `yaml:"energy_floor"`
	GateRanges   bool     `yaml:"gate_ranges"`
	MinSpeechMs  int      `yaml:"min_speech_ms"`
	HysteresisMs int      `yaml:"hysteresis_ms"`
	MaxSegmentS  float64  `yaml:"max_segment_s"`
}

// ExportConfig selects where finalized segments go.
type ExportConfig struct {
	// Sinks lists the exporters segments are handed to: "wav",
	// "transcribe" (whisper.cpp server) or "whisper" (in-process).
	Sinks []string `yaml:"sinks"`

	Dir    string `yaml:"dir"`
	Prefix string `yaml:"prefix"`

	// QueueSize bounds the asynchronous export queue.
	QueueSize int `yaml:"queue_size"`

	// TimeoutMs bounds a single export.
	TimeoutMs int `yaml:"timeout_ms"`

	Transcribe TranscribeConfig `yaml:"transcribe"`
}

// TranscribeConfig configures the speech-to-text sinks.
type TranscribeConfig struct {
	ServerURL string `yaml:"server_url"`
	ModelPath string `yaml:"model_path"`
	Language  string `yaml:"language"`
}

// ResilienceConfig configures the circuit breakers around the classifier and
// the exporter.
type ResilienceConfig struct {
	MaxFailures    int `yaml:"max_failures"`
	ResetTimeoutMs int `yaml:"reset_timeout_ms"`
}
