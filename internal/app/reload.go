package app

import (
	"log/slog"

	"github.com/MrWong99/vadseg/internal/config"
)

// Reload applies the parts of a changed config that take effect without a
// restart: the log level and the segmentation thresholds. Other changes are
// logged. It has the signature expected by [config.NewWatcher].
func (a *App) Reload(old, new *config.Config) {
	d := config.Diff(old, new)
	if !d.Changed() {
		return
	}
	if d.LogLevelChanged && a.level != nil {
		a.level.Set(d.NewLogLevel.Level())
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.SegmenterChanged {
		if err := a.session.Reconfigure(new.SessionConfig()); err != nil {
			slog.Warn("segmenter reconfigure rejected", "err", err)
		} else {
			slog.Info("segmenter reconfigured",
				"min_speech_ms", new.Segmenter.MinSpeechMs,
				"hysteresis_ms", new.Segmenter.HysteresisMs)
		}
	}
	if len(d.RestartRequired) > 0 {
		slog.Warn("config change requires restart", "sections", d.RestartRequired)
	}
}
