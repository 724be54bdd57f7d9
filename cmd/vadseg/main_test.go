package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/MrWong99/vadseg/internal/config"
	"github.com/MrWong99/vadseg/internal/observe"
)

func TestLoadConfig_InputOverride(t *testing.T) {
	t.Parallel()

	cfg, err := loadConfig("", "meeting.wav")
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Capture.Backend != "wavfile" || cfg.Capture.File != "meeting.wav" {
		t.Errorf("capture = %+v", cfg.Capture)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	t.Parallel()

	if _, err := loadConfig(filepath.Join(t.TempDir(), "nope.yaml"), ""); err == nil {
		t.Fatal("expected error")
	}
}

func TestLoadConfig_FileAndOverride(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "vadseg.yaml")
	yaml := "capture:\n  backend: portaudio\nvad:\n  backend: energy\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := loadConfig(path, "in.wav")
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Capture.Backend != "wavfile" || cfg.VAD.Backend != "energy" {
		t.Errorf("capture=%s vad=%s", cfg.Capture.Backend, cfg.VAD.Backend)
	}
}

func TestLoadConfig_OverrideSatisfiesValidation(t *testing.T) {
	t.Parallel()

	// capture.file is required for wavfile; -input supplies it.
	path := filepath.Join(t.TempDir(), "vadseg.yaml")
	if err := os.WriteFile(path, []byte("capture:\n  backend: wavfile\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := loadConfig(path, ""); err == nil {
		t.Fatal("expected validation error without -input")
	}
	cfg, err := loadConfig(path, "in.wav")
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Capture.File != "in.wav" {
		t.Errorf("capture.file = %q, want in.wav", cfg.Capture.File)
	}
}

func TestRegisterBuiltin(t *testing.T) {
	t.Parallel()

	reg := config.NewRegistry()
	registerBuiltin(reg, observe.DefaultMetrics())

	cfg := config.Default()
	cfg.VAD.Backend = "energy"
	c, err := reg.CreateVAD(cfg)
	if err != nil {
		t.Fatalf("CreateVAD(energy): %v", err)
	}
	_ = c.Close()

	cfg.Export.Dir = t.TempDir()
	if _, err := reg.CreateExporter("wav", cfg); err != nil {
		t.Errorf("CreateExporter(wav): %v", err)
	}

	cfg.Export.Transcribe.ServerURL = "http://127.0.0.1:8080"
	if _, err := reg.CreateExporter("transcribe", cfg); err != nil {
		t.Errorf("CreateExporter(transcribe): %v", err)
	}
}
