package resilience

import (
	"context"
	"errors"

	"github.com/MrWong99/vadseg/pkg/audio"
	"github.com/MrWong99/vadseg/pkg/provider/vad"
	"github.com/MrWong99/vadseg/pkg/segment"
)

// breakerClassifier short-circuits a failing VAD backend.
type breakerClassifier struct {
	inner vad.Classifier
	cb    *CircuitBreaker
}

// Classifier wraps c with cb. While the breaker is open Classify returns
// [ErrCircuitOpen] without touching the backend; the session treats that as
// negative evidence for the tick. Cancellation of ctx and the stall answers
// of [vad.Guard] ([vad.ErrStalled], [vad.ErrBusy]) are not counted as
// backend failures: they yield negative evidence for that chunk only, and
// the guard already keeps a stuck backend from being called again.
func Classifier(c vad.Classifier, cb *CircuitBreaker) vad.Classifier {
	return &breakerClassifier{inner: c, cb: cb}
}

func (b *breakerClassifier) Classify(ctx context.Context, chunk audio.Chunk) (vad.Evidence, error) {
	var (
		ev       vad.Evidence
		innerErr error
	)
	err := b.cb.Execute(func() error {
		ev, innerErr = b.inner.Classify(ctx, chunk)
		if isCancel(innerErr) || isStall(innerErr) {
			return nil
		}
		return innerErr
	})
	if err != nil {
		return vad.Evidence{}, err
	}
	return ev, innerErr
}

func (b *breakerClassifier) Close() error { return b.inner.Close() }

// breakerExporter short-circuits a failing sink.
type breakerExporter struct {
	next segment.Exporter
	cb   *CircuitBreaker
}

// Exporter wraps next with cb. While the breaker is open the segment is
// dropped and Export returns [ErrCircuitOpen].
func Exporter(next segment.Exporter, cb *CircuitBreaker) segment.Exporter {
	return &breakerExporter{next: next, cb: cb}
}

func (b *breakerExporter) Export(ctx context.Context, seg segment.Segment) error {
	var innerErr error
	err := b.cb.Execute(func() error {
		innerErr = b.next.Export(ctx, seg)
		if isCancel(innerErr) {
			return nil
		}
		return innerErr
	})
	if err != nil {
		return err
	}
	return innerErr
}

func isCancel(err error) bool {
	return errors.Is(err, context.Canceled)
}

func isStall(err error) bool {
	return errors.Is(err, vad.ErrStalled) || errors.Is(err, vad.ErrBusy)
}
