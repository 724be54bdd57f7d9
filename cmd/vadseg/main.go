// Command vadseg segments live or recorded audio into utterances using a
// voice activity detector and writes each utterance to the configured sinks.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrWong99/vadseg/internal/app"
	"github.com/MrWong99/vadseg/internal/config"
	"github.com/MrWong99/vadseg/internal/observe"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "", "path to the YAML configuration file (defaults apply when empty)")
	input := flag.String("input", "", "segment this WAV file instead of capturing from a device")
	listDevices := flag.Bool("devices", false, "list capture devices and exit")
	flag.Parse()

	if *listDevices {
		return printDevices()
	}

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := loadConfig(*configPath, *input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vadseg: %v\n", err)
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	var level slog.LevelVar
	level.Set(cfg.Server.LogLevel.Level())
	slog.SetDefault(newLogger(&level))

	slog.Info("vadseg starting",
		"config", *configPath,
		"capture", cfg.Capture.Backend,
		"vad", cfg.VAD.Backend,
		"sinks", cfg.Export.Sinks,
		"listen_addr", cfg.Server.ListenAddr,
	)

	// ── Telemetry ─────────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName: "vadseg",
		Pipeline: observe.Pipeline{
			Capture:    cfg.Capture.Backend,
			VAD:        cfg.VAD.Backend,
			Sinks:      cfg.Export.Sinks,
			SampleRate: cfg.Capture.SampleRate,
		},
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(sctx)
	}()
	metrics := observe.DefaultMetrics()

	// ── Backend registry ──────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltin(reg, metrics)
	for _, kind := range []string{"capture", "vad", "export"} {
		slog.Debug("registered backends", "kind", kind, "names", reg.Names(kind))
	}

	application, err := app.New(cfg,
		app.WithRegistry(reg),
		app.WithMetrics(metrics),
		app.WithLevelVar(&level),
	)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	// ── Hot reload ────────────────────────────────────────────────────────────
	if *configPath != "" {
		w, err := config.NewWatcher(*configPath, application.Reload,
			config.WithOverride(func(c *config.Config) { applyOverrides(c, *input) }),
		)
		if err != nil {
			slog.Warn("config hot reload disabled", "err", err)
		} else {
			defer w.Stop()
		}
	}

	slog.Info("ready, press Ctrl+C to stop")

	runErr := application.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		slog.Error("run error", "err", runErr)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// loadConfig reads path (or the defaults when path is empty) and applies
// the command-line overrides.
func loadConfig(path, input string) (*config.Config, error) {
	if path == "" {
		cfg := config.Default()
		applyOverrides(cfg, input)
		if err := config.Validate(cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	cfg, err := config.Load(path, func(c *config.Config) { applyOverrides(c, input) })
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config file %q not found", path)
	}
	return cfg, err
}

// applyOverrides points capture at input when set.
func applyOverrides(cfg *config.Config, input string) {
	if input == "" {
		return
	}
	cfg.Capture.Backend = "wavfile"
	cfg.Capture.File = input
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level slog.Leveler) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
