package config_test

import (
	"slices"
	"testing"

	"github.com/MrWong99/vadseg/internal/config"
)

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()

	if d := config.Diff(config.Default(), config.Default()); d.Changed() {
		t.Errorf("Diff of identical configs = %+v", d)
	}
}

func TestDiff_HotReloadable(t *testing.T) {
	t.Parallel()

	old, cur := config.Default(), config.Default()
	cur.Server.LogLevel = config.LogWarn
	cur.Segmenter.HysteresisMs = 400
	floor := 0.05
	cur.Segmenter.EnergyFloor = &floor

	d := config.Diff(old, cur)
	if !d.LogLevelChanged || d.NewLogLevel != config.LogWarn {
		t.Errorf("log level diff = %+v", d)
	}
	if !d.SegmenterChanged {
		t.Error("segmenter change not detected")
	}
	if len(d.RestartRequired) != 0 {
		t.Errorf("RestartRequired = %v, want none", d.RestartRequired)
	}
}

func TestDiff_RestartRequired(t *testing.T) {
	t.Parallel()

	old, cur := config.Default(), config.Default()
	cur.Capture.Device = "other"
	mode := 1
	cur.VAD.Mode = &mode
	cur.Export.Sinks = []string{"wav", "transcribe"}
	cur.Resilience.MaxFailures = 9

	d := config.Diff(old, cur)
	for _, want := range []string{"capture", "vad", "export", "resilience"} {
		if !slices.Contains(d.RestartRequired, want) {
			t.Errorf("RestartRequired = %v, missing %q", d.RestartRequired, want)
		}
	}
	if d.SegmenterChanged || d.LogLevelChanged {
		t.Errorf("unexpected hot changes: %+v", d)
	}
}
