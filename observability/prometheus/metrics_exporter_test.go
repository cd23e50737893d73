package prometheus

import (
	"context"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"

	"github.com/Swind/go-dispatcher/core"
)

func TestMetricsExporter_RecordMethods(t *testing.T) {
	reg := prom.NewRegistry()
	exporter, err := NewMetricsExporter("dispatcher", reg, ExporterOptions{})
	if err != nil {
		t.Fatalf("NewMetricsExporter failed: %v", err)
	}

	exporter.RecordJobDuration("ui", core.PriorityRender, 250*time.Millisecond)
	exporter.RecordJobPanic("ui", core.PriorityInput, "panic")
	exporter.RecordQueueDepth("ui", core.PriorityNormal, 7)
	exporter.RecordJobRejected("ui", "disposed", 3)
	exporter.RecordJobRejected("ui", "disposed", 0)

	panicTotal := testutil.ToFloat64(exporter.jobPanicTotal.WithLabelValues("ui", "input"))
	if panicTotal != 1 {
		t.Fatalf("panic total = %v, want 1", panicTotal)
	}

	queueDepth := testutil.ToFloat64(exporter.queueDepth.WithLabelValues("ui", "normal"))
	if queueDepth != 7 {
		t.Fatalf("queue depth = %v, want 7", queueDepth)
	}

	rejected := testutil.ToFloat64(exporter.jobRejectedTotal.WithLabelValues("ui", "disposed"))
	if rejected != 3 {
		t.Fatalf("rejected total = %v, want 3", rejected)
	}

	histCount, err := histogramSampleCount(exporter.jobDurationSeconds.WithLabelValues("ui", "render"))
	if err != nil {
		t.Fatalf("histogramSampleCount failed: %v", err)
	}
	if histCount != 1 {
		t.Fatalf("duration sample count = %d, want 1", histCount)
	}
}

func TestMetricsExporter_EmptyLabels(t *testing.T) {
	reg := prom.NewRegistry()
	exporter, err := NewMetricsExporter("", reg, ExporterOptions{})
	if err != nil {
		t.Fatalf("NewMetricsExporter failed: %v", err)
	}

	exporter.RecordJobPanic("", core.Priority(42), nil)

	got := testutil.ToFloat64(exporter.jobPanicTotal.WithLabelValues("unknown", "unknown"))
	if got != 1 {
		t.Fatalf("panic total = %v, want 1", got)
	}
}

func TestMetricsExporter_AlreadyRegisteredReuse(t *testing.T) {
	reg := prom.NewRegistry()
	first, err := NewMetricsExporter("dispatcher", reg, ExporterOptions{})
	if err != nil {
		t.Fatalf("first NewMetricsExporter failed: %v", err)
	}
	second, err := NewMetricsExporter("dispatcher", reg, ExporterOptions{})
	if err != nil {
		t.Fatalf("second NewMetricsExporter failed: %v", err)
	}

	first.RecordJobPanic("ui", core.PriorityNormal, nil)
	second.RecordJobPanic("ui", core.PriorityNormal, nil)

	got := testutil.ToFloat64(first.jobPanicTotal.WithLabelValues("ui", "normal"))
	if got != 2 {
		t.Fatalf("shared panic counter = %v, want 2", got)
	}
}

// TestMetricsExporter_DispatcherIntegration verifies a dispatcher reports through the exporter
func TestMetricsExporter_DispatcherIntegration(t *testing.T) {
	reg := prom.NewRegistry()
	exporter, err := NewMetricsExporter("dispatcher", reg, ExporterOptions{})
	if err != nil {
		t.Fatalf("NewMetricsExporter failed: %v", err)
	}

	cfg := core.DefaultConfig()
	cfg.Name = "metrics"
	cfg.Metrics = exporter
	d, err := core.NewDispatcher(nil, cfg)
	if err != nil {
		t.Fatalf("NewDispatcher failed: %v", err)
	}

	if err := d.Post(func(context.Context) {}, core.PriorityBackground); err != nil {
		t.Fatalf("Post failed: %v", err)
	}
	d.RunJobs()
	d.Dispose()
	_ = d.Post(func(context.Context) {}, core.PriorityBackground)

	histCount, err := histogramSampleCount(exporter.jobDurationSeconds.WithLabelValues("metrics", "background"))
	if err != nil {
		t.Fatalf("histogramSampleCount failed: %v", err)
	}
	if histCount != 1 {
		t.Fatalf("duration sample count = %d, want 1", histCount)
	}
	if got := testutil.ToFloat64(exporter.jobRejectedTotal.WithLabelValues("metrics", "disposed")); got != 1 {
		t.Fatalf("rejected total = %v, want 1", got)
	}
}

func histogramSampleCount(observer prom.Observer) (uint64, error) {
	collector, ok := observer.(prom.Collector)
	if !ok {
		return 0, nil
	}

	metricCh := make(chan prom.Metric, 1)
	collector.Collect(metricCh)
	close(metricCh)
	for metric := range metricCh {
		msg := &dto.Metric{}
		if err := metric.Write(msg); err != nil {
			return 0, err
		}
		if msg.Histogram != nil {
			return msg.Histogram.GetSampleCount(), nil
		}
	}
	return 0, nil
}
