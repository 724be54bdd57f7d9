package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/vadseg/pkg/segment"
)

// SessionObserver records segmentation events as metrics. It implements
// [segment.Observer].
type SessionObserver struct {
	m *Metrics
}

var _ segment.Observer = (*SessionObserver)(nil)

// NewSessionObserver returns an observer recording into m.
func NewSessionObserver(m *Metrics) *SessionObserver {
	return &SessionObserver{m: m}
}

// Transition implements [segment.Observer].
func (o *SessionObserver) Transition(from, to segment.State, _ time.Time) {
	ctx := context.Background()
	o.m.Transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", from.String()),
		attribute.String("to", to.String()),
	))
	switch {
	case to == segment.Speaking && from != segment.Speaking:
		o.m.Speaking.Add(ctx, 1)
	case from == segment.Speaking && to != segment.Speaking:
		o.m.Speaking.Add(ctx, -1)
	}
}

// Classified implements [segment.Observer].
func (o *SessionObserver) Classified(d time.Duration, err error, _ int) {
	ctx := context.Background()
	o.m.ClassifyDuration.Record(ctx, d.Seconds())
	if err != nil {
		o.m.ClassifyErrors.Add(ctx, 1)
	}
}

// Exported implements [segment.Observer]. With an asynchronous exporter the
// error reflects the enqueue step only.
func (o *SessionObserver) Exported(seg segment.Segment, _ time.Duration, err error) {
	ctx := context.Background()
	o.m.SegmentLength.Record(ctx, seg.Duration().Seconds())
	if err != nil {
		o.m.RecordExportError(ctx, "enqueue")
	}
}

// Discarded implements [segment.Observer].
func (o *SessionObserver) Discarded(int) {
	o.m.SegmentsDiscarded.Add(context.Background(), 1)
}

// tracedExporter wraps a sink with a span and sink-level metrics.
type tracedExporter struct {
	next segment.Exporter
	name string
	m    *Metrics
}

// TraceExporter wraps next so that every export runs in a span named
// "export <name>" and is recorded in [Metrics.ExportDuration],
// [Metrics.SegmentsExported] and [Metrics.ExportErrors]. The context passed
// to next carries the segment (see [WithSegment]).
func TraceExporter(next segment.Exporter, name string, m *Metrics) segment.Exporter {
	return &tracedExporter{next: next, name: name, m: m}
}

func (e *tracedExporter) Export(ctx context.Context, seg segment.Segment) error {
	ctx, span := StartSpan(WithSegment(ctx, seg), "export "+e.name,
		trace.WithAttributes(segmentAttributes(seg)...),
		trace.WithAttributes(attribute.String("sink", e.name)),
	)
	defer span.End()

	start := time.Now()
	err := e.next.Export(ctx, seg)
	status := "ok"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.m.RecordExportError(ctx, "sink")
		Logger(ctx).Warn("segment export failed", "sink", e.name, "err", err)
	} else {
		e.m.SegmentsExported.Add(ctx, 1, metric.WithAttributes(attribute.String("sink", e.name)))
	}
	e.m.ExportDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("status", status), attribute.String("sink", e.name)))
	return err
}
