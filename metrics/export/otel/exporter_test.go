package otel

import (
	"context"
	"sync"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/civicpulse/authcore"
)

type fakeSource struct {
	mu       sync.RWMutex
	counters map[authcore.MetricID]uint64
	latency  authcore.HistogramSnapshot
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() authcore.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := authcore.MetricsSnapshot{
		Counters:   make(map[authcore.MetricID]uint64, len(f.counters)),
		Histograms: map[authcore.MetricID]authcore.HistogramSnapshot{},
	}
	for k, v := range f.counters {
		out.Counters[k] = v
	}
	if f.latency.Buckets != nil {
		b := make([]uint64, len(f.latency.Buckets))
		copy(b, f.latency.Buckets)
		out.Histograms[authcore.MetricIssueLatency] = authcore.HistogramSnapshot{Buckets: b, Sum: f.latency.Sum}
	}
	return out
}

func (f *fakeSource) AuditDropped() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	out := map[string]metricdata.Metrics{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestExporterPublishesCountersAndHistograms(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	meter := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("authcore-test")

	src := &fakeSource{
		counters: map[authcore.MetricID]uint64{authcore.MetricCodeVerified: 4},
		latency:  authcore.HistogramSnapshot{Buckets: []uint64{1, 1, 0, 0, 0, 0, 0, 0}, Sum: 12 * time.Millisecond},
		dropped:  1,
	}
	exp, err := NewExporterFromSource(meter, src)
	if err != nil {
		t.Fatalf("NewExporterFromSource: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}()

	got := collect(t, reader)

	verified, ok := got["authcore_code_verified_total"].Data.(metricdata.Sum[int64])
	if !ok || len(verified.DataPoints) != 1 || verified.DataPoints[0].Value != 4 {
		t.Fatalf("code_verified_total = %+v", got["authcore_code_verified_total"].Data)
	}
	count, ok := got["authcore_issue_latency_seconds_count"].Data.(metricdata.Gauge[int64])
	if !ok || len(count.DataPoints) != 1 || count.DataPoints[0].Value != 2 {
		t.Fatalf("issue latency count = %+v", got["authcore_issue_latency_seconds_count"].Data)
	}
	sum, ok := got["authcore_issue_latency_seconds_sum"].Data.(metricdata.Gauge[float64])
	if !ok || len(sum.DataPoints) != 1 || sum.DataPoints[0].Value != 0.012 {
		t.Fatalf("issue latency sum = %+v", got["authcore_issue_latency_seconds_sum"].Data)
	}
	if _, ok := got["authcore_audit_dropped_total"]; !ok {
		t.Fatal("missing audit dropped counter")
	}
}

func TestExporterRejectsNilInputs(t *testing.T) {
	meter := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewManualReader())).Meter("authcore-test")
	if _, err := NewExporterFromSource(meter, nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource, got %v", err)
	}
	if _, err := NewExporterFromSource(nil, &fakeSource{}); err != ErrNilMeter {
		t.Fatalf("expected ErrNilMeter, got %v", err)
	}
	if _, err := NewExporter(meter, nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource for nil engine, got %v", err)
	}
}

func TestExporterConcurrentCollectNoPanic(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	meter := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("authcore-test")
	src := &fakeSource{counters: map[authcore.MetricID]uint64{authcore.MetricLoginSuccess: 1}}

	exp, err := NewExporterFromSource(meter, src)
	if err != nil {
		t.Fatalf("NewExporterFromSource: %v", err)
	}
	defer exp.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.counters[authcore.MetricLoginSuccess] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}
