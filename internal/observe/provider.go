package observe

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"
)

// ProviderConfig configures the OpenTelemetry SDK providers.
type ProviderConfig struct {
	// ServiceName is reported in telemetry. Default: "vadseg".
	ServiceName string

	// ServiceVersion is reported in telemetry.
	ServiceVersion string

	// Pipeline describes the running segmenter. Its fields become resource
	// attributes, so every metric series and span says which backends and
	// sample rate produced it.
	Pipeline Pipeline

	// TraceExporter receives finished spans. When nil, spans are recorded
	// but not exported.
	TraceExporter sdktrace.SpanExporter

	// Reader replaces the Prometheus reader. Tests pass a ManualReader.
	Reader sdkmetric.Reader
}

// Pipeline names the backends a vadseg process was started with.
type Pipeline struct {
	Capture    string
	VAD        string
	Sinks      []string
	SampleRate int
}

func (p Pipeline) attributes() []attribute.KeyValue {
	var kv []attribute.KeyValue
	if p.Capture != "" {
		kv = append(kv, attribute.String("vadseg.capture.backend", p.Capture))
	}
	if p.VAD != "" {
		kv = append(kv, attribute.String("vadseg.vad.backend", p.VAD))
	}
	if len(p.Sinks) > 0 {
		kv = append(kv, attribute.StringSlice("vadseg.export.sinks", p.Sinks))
	}
	if p.SampleRate > 0 {
		kv = append(kv, attribute.Int("vadseg.sample_rate", p.SampleRate))
	}
	return kv
}

// InitProvider installs global meter and tracer providers plus the W3C trace
// context propagator. Metrics are read by the Prometheus bridge unless
// cfg.Reader is set, so /metrics serves them.
//
// The returned function flushes and closes both providers; call it once on
// the way out of main.
func InitProvider(ctx context.Context, cfg ProviderConfig) (shutdown func(context.Context) error, err error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "vadseg"
	}

	attrs := append([]attribute.KeyValue{
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
	}, cfg.Pipeline.attributes()...)
	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(semconv.SchemaURL, attrs...))
	if err != nil {
		return nil, err
	}

	reader := cfg.Reader
	if reader == nil {
		if reader, err = promexporter.New(); err != nil {
			return nil, err
		}
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)

	tpOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if cfg.TraceExporter != nil {
		tpOpts = append(tpOpts, sdktrace.WithBatcher(cfg.TraceExporter))
	}
	tp := sdktrace.NewTracerProvider(tpOpts...)

	otel.SetMeterProvider(mp)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	// Spans first, so exports finishing during shutdown are still counted.
	return func(ctx context.Context) error {
		return errors.Join(tp.Shutdown(ctx), mp.Shutdown(ctx))
	}, nil
}
