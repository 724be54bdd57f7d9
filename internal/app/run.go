package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/vadseg/internal/observe"
	"github.com/MrWong99/vadseg/internal/resilience"
	"github.com/MrWong99/vadseg/pkg/audio"
	"github.com/MrWong99/vadseg/pkg/segment"
)

// shutdownTimeout bounds the flush performed when the loop ends.
const shutdownTimeout = 15 * time.Second

// Run drives the tick loop until ctx is cancelled, an offline source is
// exhausted, or the HTTP server fails. The export worker and the HTTP server
// run alongside the loop; when the loop ends Run calls [App.Shutdown] so the
// open span is flushed and queued segments are written before it returns.
func (a *App) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	if a.claimWorker() {
		g.Go(func() error { return a.async.Run(gctx) })
	}

	if a.server != nil {
		g.Go(func() error {
			slog.Info("http server listening", "addr", a.server.Addr)
			if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("app: http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, scancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer scancel()
			return a.server.Shutdown(sctx)
		})
	}

	g.Go(func() error {
		defer cancel()
		var err error
		if a.offline {
			err = a.drain(gctx)
		} else {
			err = a.poll(gctx)
		}
		sctx, scancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer scancel()
		return errors.Join(err, a.Shutdown(sctx))
	})

	slog.Info("segmentation running",
		"poll_interval", a.cfg.Capture.PollInterval(),
		"min_poll_samples", a.cfg.MinPollSamples(),
		"offline", a.offline)
	return g.Wait()
}

// poll ticks at the configured interval. Each tick that finds at least the
// minimum amount of buffered audio processes everything buffered as one
// chunk, so a late tick catches up without dropping samples.
func (a *App) poll(ctx context.Context) error {
	minSamples := a.cfg.MinPollSamples()
	ticker := time.NewTicker(a.cfg.Capture.PollInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		if a.source.Available() < minSamples {
			continue
		}
		chunk, err := a.source.Poll()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("app: poll capture: %w", err)
		}
		if a.tick(ctx, chunk) {
			return nil
		}
	}
}

// drain feeds an offline source as fast as possible. The session clock is
// advanced by each chunk's duration so hysteresis behaves as in real time.
func (a *App) drain(ctx context.Context) error {
	for ctx.Err() == nil {
		chunk, err := a.source.Poll()
		if errors.Is(err, io.EOF) {
			slog.Info("capture source exhausted")
			return nil
		}
		if err != nil {
			return fmt.Errorf("app: read capture: %w", err)
		}
		a.manual.Advance(chunk.Duration())
		if a.tick(ctx, chunk) {
			return nil
		}
	}
	return nil
}

// tick runs one chunk through the session and reports whether the session
// has been stopped.
func (a *App) tick(ctx context.Context, chunk audio.Chunk) bool {
	res, err := a.session.Tick(ctx, chunk)
	switch {
	case errors.Is(err, segment.ErrStopped):
		return true
	case errors.Is(err, resilience.ErrCircuitOpen):
		slog.Debug("tick short-circuited", "err", err)
	case err != nil:
		observe.Logger(ctx).Warn("tick failed", "state", res.State, "err", err)
	}
	if res.Segment != nil {
		slog.Info("segment finalized",
			"segment", res.Segment.ID,
			"duration", res.Segment.Duration(),
			"forced", res.Segment.Forced)
	}
	return false
}
