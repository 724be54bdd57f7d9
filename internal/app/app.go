// Package app wires capture, classification, segmentation and export into a
// running vadseg process.
//
// The App struct owns the full lifecycle: New opens the capture source,
// builds the VAD backend and the export sinks and connects them through a
// [segment.Session]; Run drives the tick loop together with the HTTP server
// and the export worker; Shutdown flushes the open span and tears everything
// down in order.
//
// For testing, inject doubles via functional options (WithSource,
// WithClassifier, WithExporter). When an option is not provided, New creates
// the component from the config through a [config.Registry].
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/vadseg/internal/config"
	"github.com/MrWong99/vadseg/internal/health"
	"github.com/MrWong99/vadseg/internal/observe"
	"github.com/MrWong99/vadseg/internal/resilience"
	"github.com/MrWong99/vadseg/pkg/capture"
	"github.com/MrWong99/vadseg/pkg/export"
	"github.com/MrWong99/vadseg/pkg/provider/vad"
	"github.com/MrWong99/vadseg/pkg/segment"
)

// App owns all component lifetimes.
type App struct {
	cfg      *config.Config
	registry *config.Registry
	metrics  *observe.Metrics
	level    *slog.LevelVar

	source     capture.Source
	classifier vad.Classifier
	sink       segment.Exporter
	async      *export.Async
	session    *segment.Session
	clock      segment.Clock
	manual     *segment.ManualClock
	offline    bool

	vadBreaker  *resilience.CircuitBreaker
	health      *health.Handler
	server      *http.Server
	extraObs    []segment.Observer
	closers     []io.Closer
	captureOpen atomic.Bool
	worker      atomic.Bool

	stopOnce sync.Once
	stopErr  error
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithRegistry sets the registry used to build components that were not
// injected.
func WithRegistry(r *config.Registry) Option {
	return func(a *App) { a.registry = r }
}

// WithSource injects a capture source instead of creating one from config.
func WithSource(s capture.Source) Option {
	return func(a *App) { a.source = s }
}

// WithClassifier injects a VAD classifier instead of creating one from
// config. The app still applies the timeout guard and circuit breaker.
func WithClassifier(c vad.Classifier) Option {
	return func(a *App) { a.classifier = c }
}

// WithExporter injects the exporter that replaces the configured sinks. It
// still runs behind the asynchronous queue.
func WithExporter(e segment.Exporter) Option {
	return func(a *App) { a.sink = e }
}

// WithMetrics sets the metric instruments. Defaults to
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithLevelVar lets [App.Reload] change the log level of the handler that
// was built around v.
func WithLevelVar(v *slog.LevelVar) Option {
	return func(a *App) { a.level = v }
}

// WithObserver registers an additional session observer.
func WithObserver(o segment.Observer) Option {
	return func(a *App) { a.extraObs = append(a.extraObs, o) }
}

// New builds every component from cfg. On error, components created so far
// are released.
func New(cfg *config.Config, opts ...Option) (_ *App, err error) {
	a := &App{cfg: cfg}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	var cleanup []func() error
	defer func() {
		if err == nil {
			return
		}
		for i := len(cleanup) - 1; i >= 0; i-- {
			if cerr := cleanup[i](); cerr != nil {
				slog.Warn("cleanup after failed start", "err", cerr)
			}
		}
	}()

	// ── 1. Capture ───────────────────────────────────────────────────────
	if err := a.initCapture(); err != nil {
		return nil, fmt.Errorf("app: init capture: %w", err)
	}
	cleanup = append(cleanup, a.source.Close)

	// ── 2. VAD backend ───────────────────────────────────────────────────
	if err := a.initClassifier(); err != nil {
		return nil, fmt.Errorf("app: init vad: %w", err)
	}
	cleanup = append(cleanup, a.classifier.Close)

	// ── 3. Export sinks ──────────────────────────────────────────────────
	if err := a.initExport(); err != nil {
		return nil, fmt.Errorf("app: init export: %w", err)
	}
	cleanup = append(cleanup, func() error { a.closeSinks(); return nil })

	// ── 4. Session ───────────────────────────────────────────────────────
	if err := a.initSession(); err != nil {
		return nil, fmt.Errorf("app: init session: %w", err)
	}

	// ── 5. HTTP ──────────────────────────────────────────────────────────
	a.initHTTP()

	return a, nil
}

func (a *App) create(kind string) error {
	if a.registry == nil {
		return fmt.Errorf("no %s injected and no registry configured", kind)
	}
	return nil
}

// initCapture opens the configured source or uses the injected one.
func (a *App) initCapture() error {
	if a.source == nil {
		if err := a.create("capture source"); err != nil {
			return err
		}
		src, err := a.registry.CreateCapture(a.cfg)
		if err != nil {
			return err
		}
		a.source = src
	}
	if got, want := a.source.SampleRate(), a.cfg.Capture.SampleRate; got != want {
		_ = a.source.Close()
		return fmt.Errorf("source delivers %d Hz, configured %d Hz", got, want)
	}
	a.captureOpen.Store(true)
	a.offline = capture.IsOffline(a.source)
	if a.offline {
		a.manual = segment.NewManualClock(time.Now())
		a.clock = a.manual
	} else {
		a.clock = segment.SystemClock{}
	}
	slog.Info("capture source ready",
		"backend", a.cfg.Capture.Backend,
		"sample_rate", a.source.SampleRate(),
		"offline", a.offline)
	return nil
}

// initClassifier builds the VAD backend and wraps it with the timeout guard
// and the circuit breaker.
func (a *App) initClassifier() error {
	if a.classifier == nil {
		if err := a.create("classifier"); err != nil {
			return err
		}
		c, err := a.registry.CreateVAD(a.cfg)
		if err != nil {
			return err
		}
		a.classifier = c
	}
	a.vadBreaker = a.newBreaker("vad")
	a.classifier = resilience.Classifier(vad.Guard(a.classifier, a.cfg.ClassifyTimeout()), a.vadBreaker)
	slog.Info("vad backend ready", "backend", a.cfg.VAD.Backend, "timeout", a.cfg.ClassifyTimeout())
	return nil
}

// initExport builds one traced, breaker-guarded exporter per configured sink
// and puts them behind the asynchronous queue.
func (a *App) initExport() error {
	if a.sink == nil {
		if err := a.create("exporter"); err != nil {
			return err
		}
		var sinks export.Multi
		for _, name := range a.cfg.Export.Sinks {
			e, err := a.registry.CreateExporter(name, a.cfg)
			if err != nil {
				a.closeSinks()
				return fmt.Errorf("sink %q: %w", name, err)
			}
			if c, ok := e.(io.Closer); ok {
				a.closers = append(a.closers, c)
			}
			traced := observe.TraceExporter(e, name, a.metrics)
			sinks = append(sinks, resilience.Exporter(traced, a.newBreaker("export "+name)))
			slog.Info("export sink ready", "sink", name)
		}
		a.sink = sinks
	}
	a.async = export.NewAsync(a.sink, a.cfg.Export.QueueSize,
		export.WithTimeout(time.Duration(a.cfg.Export.TimeoutMs)*time.Millisecond),
		export.WithResult(func(seg segment.Segment, d time.Duration, err error) {
			if errors.Is(err, resilience.ErrCircuitOpen) {
				slog.Debug("segment dropped, sink circuit open", "segment", seg.ID)
				return
			}
			if err == nil {
				slog.Debug("segment delivered", "segment", seg.ID, "duration", seg.Duration(), "took", d)
			}
		}),
	)
	return nil
}

func (a *App) initSession() error {
	obs := []segment.Observer{observe.NewSessionObserver(a.metrics), newIndicator()}
	obs = append(obs, a.extraObs...)
	sess, err := segment.NewSession(a.classifier, a.async, a.cfg.SessionConfig(),
		segment.WithClock(a.clock),
		segment.WithObserver(segment.Observers(obs...)),
	)
	if err != nil {
		return err
	}
	a.session = sess
	return nil
}

func (a *App) initHTTP() {
	a.health = health.New(
		health.Flag("vad", func() bool { return a.vadBreaker.State() != resilience.StateOpen }, "vad circuit open"),
		health.Flag("capture", a.captureOpen.Load, "capture source closed"),
		health.Flag("session", func() bool { return !a.session.Stopped() }, "session stopped"),
	)
	if a.cfg.Server.ListenAddr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	a.health.Register(mux)
	a.server = &http.Server{
		Addr:              a.cfg.Server.ListenAddr,
		Handler:           observe.Middleware(a.metrics, "/metrics", "/healthz", "/readyz")(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func (a *App) newBreaker(name string) *resilience.CircuitBreaker {
	return resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:         name,
		MaxFailures:  a.cfg.Resilience.MaxFailures,
		ResetTimeout: time.Duration(a.cfg.Resilience.ResetTimeoutMs) * time.Millisecond,
		OnStateChange: func(name string, from, to resilience.State) {
			slog.Info("circuit state changed", "name", name, "from", from, "to", to)
		},
	})
}

func (a *App) closeSinks() {
	for _, c := range a.closers {
		_ = c.Close()
	}
	a.closers = nil
}

// claimWorker reports whether the caller is the one to start the export
// worker.
func (a *App) claimWorker() bool { return a.worker.CompareAndSwap(false, true) }

// Session returns the segmentation session.
func (a *App) Session() *segment.Session { return a.session }

// Health returns the readiness handler.
func (a *App) Health() *health.Handler { return a.health }

// Shutdown stops the session (flushing an open span and releasing the
// backend), drains the export queue within ctx and closes the capture
// source. It is idempotent; every call returns the first call's error.
func (a *App) Shutdown(ctx context.Context) error {
	a.stopOnce.Do(func() {
		slog.Info("shutting down")
		var errs []error
		if err := a.session.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop session: %w", err))
		}
		if a.claimWorker() {
			go func() { _ = a.async.Run(context.Background()) }()
		}
		if err := a.async.Close(ctx); err != nil {
			slog.Warn("export queue not drained", "pending", a.async.Pending(), "err", err)
			errs = append(errs, fmt.Errorf("drain export queue: %w", err))
		}
		for _, c := range a.closers {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close sink: %w", err))
			}
		}
		a.captureOpen.Store(false)
		if err := a.source.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close capture: %w", err))
		}
		a.stopErr = errors.Join(errs...)
		slog.Info("shutdown complete")
	})
	return a.stopErr
}
