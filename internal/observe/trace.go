package observe

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/vadseg/pkg/segment"
)

// tracerName is the instrumentation scope name for the vadseg tracer.
const tracerName = "github.com/MrWong99/vadseg"

// Tracer returns the vadseg tracer from the global [trace.TracerProvider].
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartSpan starts a span on [Tracer]. The caller must end it.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, opts...)
}

type segmentKey struct{}

// WithSegment returns a copy of ctx that carries seg's identity. [Logger]
// adds it to every record logged with that context, so sink and loop logs
// about the same utterance can be joined.
func WithSegment(ctx context.Context, seg segment.Segment) context.Context {
	return context.WithValue(ctx, segmentKey{}, seg)
}

// SegmentFrom returns the segment stored by [WithSegment].
func SegmentFrom(ctx context.Context) (segment.Segment, bool) {
	seg, ok := ctx.Value(segmentKey{}).(segment.Segment)
	return seg, ok
}

// segmentAttributes describes seg on spans.
func segmentAttributes(seg segment.Segment) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("segment.id", seg.ID),
		attribute.Int("segment.samples", seg.Len()),
		attribute.Int("segment.sample_rate", seg.SampleRate),
		attribute.Float64("segment.duration_s", seg.Duration().Seconds()),
		attribute.Bool("segment.forced", seg.Forced),
		attribute.Bool("segment.flushed", seg.Flushed),
	}
}

// Logger returns the default logger enriched from ctx: trace_id and span_id
// of the active span, and the segment id, duration and end reason when ctx
// carries a segment (see [WithSegment]).
func Logger(ctx context.Context) *slog.Logger {
	l := slog.Default()
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		l = l.With(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	if seg, ok := SegmentFrom(ctx); ok {
		l = l.With(slog.Group("segment",
			slog.String("id", seg.ID),
			slog.Duration("duration", seg.Duration()),
			slog.String("end", endReason(seg)),
		))
	}
	return l
}

// endReason names why a segment was emitted.
func endReason(seg segment.Segment) string {
	switch {
	case seg.Forced:
		return "max_length"
	case seg.Flushed:
		return "stop"
	default:
		return "silence"
	}
}
