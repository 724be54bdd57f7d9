// Package export provides combinators around [segment.Exporter]: adapting
// plain functions, fanning out to several exporters, and decoupling slow
// exporters from the tick loop with a bounded queue.
//
// Concrete sinks live in sub-packages (export/wav writes WAV files,
// export/transcribe runs whisper.cpp).
package export

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrWong99/vadseg/pkg/segment"
)

// Func adapts an ordinary function to [segment.Exporter].
type Func func(ctx context.Context, seg segment.Segment) error

// Export calls f.
func (f Func) Export(ctx context.Context, seg segment.Segment) error {
	return f(ctx, seg)
}

var _ segment.Exporter = Func(nil)

// Multi hands every segment to each exporter in order. All exporters run
// even when an earlier one fails; the failures are joined.
type Multi []segment.Exporter

var _ segment.Exporter = Multi(nil)

// Export implements [segment.Exporter].
func (m Multi) Export(ctx context.Context, seg segment.Segment) error {
	var errs []error
	for i, e := range m {
		if err := e.Export(ctx, seg); err != nil {
			errs = append(errs, fmt.Errorf("export: sink %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// Discard accepts and drops every segment.
var Discard segment.Exporter = Func(func(context.Context, segment.Segment) error { return nil })
