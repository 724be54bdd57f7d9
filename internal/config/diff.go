package config

import "slices"

// ConfigDiff describes what changed between two configs.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// SegmenterChanged is set when gating or segmentation thresholds
	// changed. These apply to a running session without restart.
	SegmenterChanged bool

	// RestartRequired lists the sections that changed but only take effect
	// after a restart (capture, vad, export, resilience, server address).
	RestartRequired []string
}

// Changed reports whether anything differs.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || d.SegmenterChanged || len(d.RestartRequired) > 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if old.SessionConfig() != new.SessionConfig() {
		d.SegmenterChanged = true
	}

	if old.Server.ListenAddr != new.Server.ListenAddr {
		d.RestartRequired = append(d.RestartRequired, "server.listen_addr")
	}
	if old.Capture != new.Capture {
		d.RestartRequired = append(d.RestartRequired, "capture")
	}
	if old.VADParams() != new.VADParams() || old.VAD.Backend != new.VAD.Backend || old.VAD.TimeoutMs != new.VAD.TimeoutMs {
		d.RestartRequired = append(d.RestartRequired, "vad")
	}
	if !exportEqual(old.Export, new.Export) {
		d.RestartRequired = append(d.RestartRequired, "export")
	}
	if old.Resilience != new.Resilience {
		d.RestartRequired = append(d.RestartRequired, "resilience")
	}
	return d
}

func exportEqual(a, b ExportConfig) bool {
	return slices.Equal(a.Sinks, b.Sinks) &&
		a.Dir == b.Dir &&
		a.Prefix == b.Prefix &&
		a.QueueSize == b.QueueSize &&
		a.TimeoutMs == b.TimeoutMs &&
		a.Transcribe == b.Transcribe
}
