package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrAllFailed is returned when every entry in a [FallbackGroup] failed or
// had an open breaker.
var ErrAllFailed = errors.New("resilience: all backends failed")

// FallbackConfig configures the breaker created for each entry.
type FallbackConfig struct {
	CircuitBreaker CircuitBreakerConfig
}

type fallbackEntry[T any] struct {
	name    string
	value   T
	breaker *CircuitBreaker
}

// FallbackGroup holds equivalent backends in preference order, each behind
// its own [CircuitBreaker]. A call goes to the first entry whose breaker is
// closed and moves on when that entry fails.
//
// A segment export runs under a deadline. Once the call's context is done
// the group stops instead of handing a dead context to the next entry, and
// a cancelled call is not held against the entry's breaker.
//
// Register all entries before the first call; calls are then safe for
// concurrent use.
type FallbackGroup[T any] struct {
	entries []fallbackEntry[T]
	cfg     FallbackConfig

	mu     sync.Mutex
	served string
}

// NewFallbackGroup creates a group with primary as the preferred entry.
func NewFallbackGroup[T any](primary T, primaryName string, cfg FallbackConfig) *FallbackGroup[T] {
	fg := &FallbackGroup[T]{cfg: cfg}
	fg.AddFallback(primaryName, primary)
	return fg
}

// AddFallback appends an entry tried after those already registered.
func (fg *FallbackGroup[T]) AddFallback(name string, value T) {
	cb := fg.cfg.CircuitBreaker
	cb.Name = name
	fg.entries = append(fg.entries, fallbackEntry[T]{name: name, value: value, breaker: NewCircuitBreaker(cb)})
}

// Names returns the entry names in the order they are tried.
func (fg *FallbackGroup[T]) Names() []string {
	names := make([]string, len(fg.entries))
	for i, e := range fg.entries {
		names[i] = e.name
	}
	return names
}

// Served returns the name of the entry that answered the last successful
// call, or "" before the first one.
func (fg *FallbackGroup[T]) Served() string {
	fg.mu.Lock()
	defer fg.mu.Unlock()
	return fg.served
}

// Execute runs fn against the entries in order until one succeeds.
func (fg *FallbackGroup[T]) Execute(ctx context.Context, fn func(context.Context, T) error) error {
	_, err := ExecuteWithResult(ctx, fg, func(ctx context.Context, v T) (struct{}, error) {
		return struct{}{}, fn(ctx, v)
	})
	return err
}

// ExecuteWithResult runs fn against the entries of fg in order and returns
// the first successful result. When every entry fails the error wraps
// [ErrAllFailed]; when ctx ends first it is ctx's error.
func ExecuteWithResult[T, R any](ctx context.Context, fg *FallbackGroup[T], fn func(context.Context, T) (R, error)) (R, error) {
	var (
		zero    R
		lastErr error
	)
	for i := range fg.entries {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		entry := &fg.entries[i]

		var (
			result   R
			innerErr error
		)
		err := entry.breaker.Execute(func() error {
			result, innerErr = fn(ctx, entry.value)
			if isCancel(innerErr) {
				return nil
			}
			return innerErr
		})
		if err == nil {
			err = innerErr
		}
		if err == nil {
			fg.markServed(entry.name)
			return result, nil
		}
		if isCancel(err) {
			return zero, err
		}

		lastErr = err
		if errors.Is(err, ErrCircuitOpen) {
			slog.Debug("backend skipped, circuit open", "backend", entry.name)
			continue
		}
		if i < len(fg.entries)-1 {
			slog.Warn("backend failed, trying next", "backend", entry.name, "next", fg.entries[i+1].name, "err", err)
		}
	}
	return zero, fmt.Errorf("%w: %w", ErrAllFailed, lastErr)
}

// markServed records name and logs when the answering entry changes, so a
// failover (or the recovery of the primary) shows up once rather than per
// segment.
func (fg *FallbackGroup[T]) markServed(name string) {
	fg.mu.Lock()
	prev := fg.served
	fg.served = name
	fg.mu.Unlock()
	if prev != "" && prev != name {
		slog.Info("backend switched", "from", prev, "to", name)
	}
}
