package vad

import (
	"context"
	"sync"
	"time"

	"github.com/MrWong99/vadseg/pkg/audio"
)

// guard bounds the time a Classifier may spend on one chunk. See [Guard].
type guard struct {
	inner   Classifier
	timeout time.Duration

	mu         sync.Mutex
	running    bool
	closed     bool
	closeAfter bool
}

// Guard wraps c so that a single Classify call returns [ErrStalled] when the
// backend has not answered within timeout. The stalled call keeps running in
// the background; until it finishes, further calls return [ErrBusy] without
// touching the backend, so the backend never sees concurrent calls. Close
// during a stalled call is deferred until that call returns.
//
// A timeout ≤ 0 returns c unchanged.
func Guard(c Classifier, timeout time.Duration) Classifier {
	if timeout <= 0 {
		return c
	}
	return &guard{inner: c, timeout: timeout}
}

type classifyResult struct {
	ev  Evidence
	err error
}

// Classify implements [Classifier].
func (g *guard) Classify(ctx context.Context, chunk audio.Chunk) (Evidence, error) {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return Evidence{}, ErrClosed
	}
	if g.running {
		g.mu.Unlock()
		return Evidence{}, ErrBusy
	}
	g.running = true
	g.mu.Unlock()

	done := make(chan classifyResult, 1)
	go func() {
		ev, err := g.inner.Classify(ctx, chunk)
		g.finish()
		done <- classifyResult{ev: ev, err: err}
	}()

	timer := time.NewTimer(g.timeout)
	defer timer.Stop()

	select {
	case r := <-done:
		return r.ev, r.err
	case <-timer.C:
		return Evidence{}, ErrStalled
	case <-ctx.Done():
		return Evidence{}, ctx.Err()
	}
}

// finish clears the in-flight flag and performs a deferred Close.
func (g *guard) finish() {
	g.mu.Lock()
	g.running = false
	closeNow := g.closeAfter
	g.closeAfter = false
	g.mu.Unlock()
	if closeNow {
		_ = g.inner.Close()
	}
}

// Close implements [Classifier].
func (g *guard) Close() error {
	g.mu.Lock()
	g.closed = true
	if g.running {
		g.closeAfter = true
		g.mu.Unlock()
		return nil
	}
	g.mu.Unlock()
	return g.inner.Close()
}
