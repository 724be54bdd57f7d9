// Package observe provides application-wide observability primitives for
// vadseg: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all vadseg metrics.
const meterName = "github.com/MrWong99/vadseg"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// --- Latency histograms ---

	// ClassifyDuration tracks the time the VAD backend spends per chunk.
	ClassifyDuration metric.Float64Histogram

	// ExportDuration tracks the time a sink spends writing one segment.
	// Use with attribute.String("status", ...).
	ExportDuration metric.Float64Histogram

	// SegmentLength tracks the audio length of finalized segments.
	SegmentLength metric.Float64Histogram

	// --- Counters ---

	// Transitions counts state changes. Use with attributes:
	//   attribute.String("from", ...), attribute.String("to", ...)
	Transitions metric.Int64Counter

	// SegmentsExported counts segments written by the sinks.
	SegmentsExported metric.Int64Counter

	// SegmentsDiscarded counts spans dropped for being shorter than the
	// minimum speech length.
	SegmentsDiscarded metric.Int64Counter

	// CaptureOverruns counts samples overwritten in the capture buffer
	// before they were polled.
	CaptureOverruns metric.Int64Counter

	// --- Error counters ---

	// ClassifyErrors counts chunks the backend failed to classify.
	ClassifyErrors metric.Int64Counter

	// ExportErrors counts failed exports. Use with attribute:
	//   attribute.String("stage", "enqueue"|"sink")
	ExportErrors metric.Int64Counter

	// --- Gauges ---

	// Speaking is 1 while a span is open and 0 otherwise.
	Speaking metric.Int64UpDownCounter

	// --- Status server ---

	// HTTPRequestDuration tracks /metrics, /healthz and /readyz latency. Use
	// with attributes:
	//   attribute.String("route", ...), attribute.Int("status", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) for
// per-chunk classification and per-segment export.
var latencyBuckets = []float64{
	0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5,
}

// lengthBuckets defines bucket boundaries (in seconds) for segment lengths.
var lengthBuckets = []float64{
	0.25, 0.5, 1, 2, 3, 5, 10, 20, 30, 60,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.ClassifyDuration, err = m.Float64Histogram("vadseg.classify.duration",
		metric.WithDescription("Time the VAD backend spent classifying one chunk."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ExportDuration, err = m.Float64Histogram("vadseg.export.duration",
		metric.WithDescription("Time a sink spent exporting one segment."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SegmentLength, err = m.Float64Histogram("vadseg.segment.length",
		metric.WithDescription("Audio length of finalized speech segments."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(lengthBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.Transitions, err = m.Int64Counter("vadseg.transitions",
		metric.WithDescription("Segmentation state changes by from and to state."),
	); err != nil {
		return nil, err
	}
	if met.SegmentsExported, err = m.Int64Counter("vadseg.segments.exported",
		metric.WithDescription("Speech segments written by the sinks."),
	); err != nil {
		return nil, err
	}
	if met.SegmentsDiscarded, err = m.Int64Counter("vadseg.segments.discarded",
		metric.WithDescription("Speech spans dropped for being too short."),
	); err != nil {
		return nil, err
	}
	if met.CaptureOverruns, err = m.Int64Counter("vadseg.capture.overruns",
		metric.WithDescription("Captured samples overwritten before they were processed."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.ClassifyErrors, err = m.Int64Counter("vadseg.classify.errors",
		metric.WithDescription("Chunks the VAD backend failed to classify."),
	); err != nil {
		return nil, err
	}
	if met.ExportErrors, err = m.Int64Counter("vadseg.export.errors",
		metric.WithDescription("Failed segment exports by stage."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.Speaking, err = m.Int64UpDownCounter("vadseg.speaking",
		metric.WithDescription("1 while a speech span is open."),
	); err != nil {
		return nil, err
	}

	// Status server histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("vadseg.http.request.duration",
		metric.WithDescription("Status server request latency by route and status code."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordExportError records a failed export at stage ("enqueue" when the
// queue rejected the segment, "sink" when the sink failed).
func (m *Metrics) RecordExportError(ctx context.Context, stage string) {
	m.ExportErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", stage)))
}

// RecordOverrun records n lost capture samples.
func (m *Metrics) RecordOverrun(ctx context.Context, n int64) {
	if n > 0 {
		m.CaptureOverruns.Add(ctx, n)
	}
}
