package export

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/MrWong99/vadseg/pkg/segment"
)

var (
	// ErrQueueFull is returned by Async.Export when the queue has no room.
	// The segment is dropped.
	ErrQueueFull = errors.New("export: queue full")

	// ErrClosed is returned by Async.Export after Close.
	ErrClosed = errors.New("export: exporter closed")
)

// ResultFunc is called by the Async worker after each delivery attempt.
type ResultFunc func(seg segment.Segment, d time.Duration, err error)

// AsyncOption configures an Async exporter.
type AsyncOption func(*Async)

// WithTimeout bounds each delivery to the wrapped exporter. Zero means no
// limit.
func WithTimeout(d time.Duration) AsyncOption {
	return func(a *Async) { a.timeout = d }
}

// WithResult registers a callback for delivery outcomes.
func WithResult(fn ResultFunc) AsyncOption {
	return func(a *Async) { a.onResult = fn }
}

// Async decouples a slow exporter from the tick loop. Export enqueues and
// returns immediately; a single worker started with Run delivers segments in
// order. When the queue is full the segment is dropped with [ErrQueueFull]
// rather than blocking the caller.
type Async struct {
	next     segment.Exporter
	queue    chan segment.Segment
	timeout  time.Duration
	onResult ResultFunc

	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
	done      chan struct{}
}

var _ segment.Exporter = (*Async)(nil)

// NewAsync wraps next with a queue of size entries. A size below 1 is
// treated as 1.
func NewAsync(next segment.Exporter, size int, opts ...AsyncOption) *Async {
	if size < 1 {
		size = 1
	}
	a := &Async{
		next:  next,
		queue: make(chan segment.Segment, size),
		done:  make(chan struct{}),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Export enqueues seg.
func (a *Async) Export(_ context.Context, seg segment.Segment) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrClosed
	}
	select {
	case a.queue <- seg:
		return nil
	default:
		return ErrQueueFull
	}
}

// Pending returns the number of queued segments.
func (a *Async) Pending() int { return len(a.queue) }

// Run delivers queued segments until Close is called and the queue has been
// drained. Cancelling ctx does not stop the worker; it only detaches the
// per-delivery context so that segments flushed during shutdown are still
// written. Run must be called at most once.
func (a *Async) Run(ctx context.Context) error {
	defer close(a.done)
	base := context.WithoutCancel(ctx)
	for seg := range a.queue {
		a.deliver(base, seg)
	}
	return nil
}

func (a *Async) deliver(ctx context.Context, seg segment.Segment) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	start := time.Now()
	err := a.next.Export(ctx, seg)
	if a.onResult != nil {
		a.onResult(seg, time.Since(start), err)
	}
}

// Close stops accepting segments and waits until the worker has drained the
// queue or ctx is done. Close is idempotent.
func (a *Async) Close(ctx context.Context) error {
	a.closeOnce.Do(func() {
		a.mu.Lock()
		a.closed = true
		close(a.queue)
		a.mu.Unlock()
	})
	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
