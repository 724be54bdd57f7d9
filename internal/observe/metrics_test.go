package observe

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader for
// programmatic metric inspection.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

// collect gathers all metric data from the reader.
func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

// findMetric searches for a metric by name across all scope metrics.
func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// sumValue returns the value of the data point of a Sum metric whose
// attributes include key=value, or the first data point when key is empty.
func sumValue(t *testing.T, rm metricdata.ResourceMetrics, name, key, value string) int64 {
	t.Helper()
	met := findMetric(rm, name)
	if met == nil {
		t.Fatalf("metric %q not found", name)
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %q is not a sum", name)
	}
	for _, dp := range sum.DataPoints {
		if key == "" {
			return dp.Value
		}
		if v, ok := dp.Attributes.Value(attribute.Key(key)); ok && v.AsString() == value {
			return dp.Value
		}
	}
	t.Fatalf("metric %q: no data point with %s=%s", name, key, value)
	return 0
}

func TestHistogramObservation(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	histograms := []struct {
		name string
		h    metric.Float64Histogram
	}{
		{"vadseg.classify.duration", m.ClassifyDuration},
		{"vadseg.export.duration", m.ExportDuration},
		{"vadseg.segment.length", m.SegmentLength},
	}

	for _, tc := range histograms {
		tc.h.Record(ctx, 0.003)
		tc.h.Record(ctx, 1.5)
	}

	rm := collect(t, reader)

	for _, tc := range histograms {
		t.Run(tc.name, func(t *testing.T) {
			met := findMetric(rm, tc.name)
			if met == nil {
				t.Fatalf("metric %q not found", tc.name)
			}
			hist, ok := met.Data.(metricdata.Histogram[float64])
			if !ok {
				t.Fatalf("metric %q is not a histogram", tc.name)
			}
			if len(hist.DataPoints) == 0 {
				t.Fatalf("metric %q has no data points", tc.name)
			}
			if got := hist.DataPoints[0].Count; got != 2 {
				t.Errorf("sample count = %d, want 2", got)
			}
		})
	}
}

func TestExportErrorsByStage(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordExportError(ctx, "enqueue")
	m.RecordExportError(ctx, "sink")
	m.RecordExportError(ctx, "sink")

	rm := collect(t, reader)
	if got := sumValue(t, rm, "vadseg.export.errors", "stage", "sink"); got != 2 {
		t.Errorf("sink errors = %d, want 2", got)
	}
	if got := sumValue(t, rm, "vadseg.export.errors", "stage", "enqueue"); got != 1 {
		t.Errorf("enqueue errors = %d, want 1", got)
	}
}

func TestRecordOverrun(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordOverrun(ctx, 0)
	m.RecordOverrun(ctx, 480)
	m.RecordOverrun(ctx, 20)

	rm := collect(t, reader)
	if got := sumValue(t, rm, "vadseg.capture.overruns", "", ""); got != 500 {
		t.Errorf("overruns = %d, want 500", got)
	}
}

func TestSegmentLengthBuckets(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	// A 150 ms blip never gets here; a 1.2 s utterance and a 45 s monologue do.
	m.SegmentLength.Record(ctx, 1.2)
	m.SegmentLength.Record(ctx, 45)

	met := findMetric(collect(t, reader), "vadseg.segment.length")
	if met == nil {
		t.Fatal("vadseg.segment.length not found")
	}
	dp := met.Data.(metricdata.Histogram[float64]).DataPoints[0]
	if len(dp.Bounds) != len(lengthBuckets) {
		t.Fatalf("bounds = %v, want %v", dp.Bounds, lengthBuckets)
	}
	// Bucket i counts values in (Bounds[i-1], Bounds[i]].
	for i, want := range map[int]uint64{3: 1, 9: 1} {
		if dp.BucketCounts[i] != want {
			t.Errorf("bucket %d (<= %gs) = %d, want %d", i, dp.Bounds[i], dp.BucketCounts[i], want)
		}
	}
}

func TestDefaultMetrics_ReturnsSameInstance(t *testing.T) {
	// DefaultMetrics uses the global OTel provider so we just check
	// that repeated calls return the same pointer.
	a := DefaultMetrics()
	b := DefaultMetrics()
	if a != b {
		t.Error("DefaultMetrics returned different pointers")
	}
}
