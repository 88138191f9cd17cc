package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/lumen-ed/compass/pkg/skills"
)

func collectNames(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	byName := make(map[string]metricdata.Metrics)
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			byName[m.Name] = m
		}
	}
	return byName
}

func newTestRecorder(t *testing.T) (*otelMetrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	recorder, err := newRecorder(mp.Meter(meterName))
	if err != nil {
		t.Fatalf("newRecorder: %v", err)
	}
	return recorder, reader
}

func TestRecorderInference(t *testing.T) {
	recorder, reader := newTestRecorder(t)
	ctx := context.Background()

	recorder.RecordInference(ctx, "empathy", 40*time.Millisecond, "")
	recorder.RecordInference(ctx, "empathy", 60*time.Millisecond, skills.CategoryUpstreamUnavailable)

	metrics := collectNames(t, reader)

	total, ok := metrics["compass_inference_total"].Data.(metricdata.Sum[int64])
	if !ok || len(total.DataPoints) == 0 {
		t.Fatal("inference counter missing")
	}
	if got := total.DataPoints[0].Value; got != 2 {
		t.Errorf("inference total = %d, want 2", got)
	}

	errCount, ok := metrics["compass_inference_errors_total"].Data.(metricdata.Sum[int64])
	if !ok || len(errCount.DataPoints) == 0 {
		t.Fatal("error counter missing")
	}
	if got := errCount.DataPoints[0].Value; got != 1 {
		t.Errorf("inference errors = %d, want 1", got)
	}

	hist, ok := metrics["compass_inference_duration_seconds"].Data.(metricdata.Histogram[float64])
	if !ok || len(hist.DataPoints) == 0 {
		t.Fatal("duration histogram missing")
	}
	if got := hist.DataPoints[0].Count; got != 2 {
		t.Errorf("histogram count = %d, want 2", got)
	}
}

func TestRecorderFusionAndLLM(t *testing.T) {
	recorder, reader := newTestRecorder(t)
	ctx := context.Background()

	recorder.RecordFusion(ctx, "resilience", 5*time.Millisecond, false)
	recorder.RecordFusion(ctx, "resilience", 5*time.Millisecond, true)
	recorder.RecordLLMCall(ctx, "gpt-4o", 900*time.Millisecond, 210, nil)
	recorder.RecordLLMCall(ctx, "gpt-4o", 100*time.Millisecond, 0, errors.New("boom"))
	recorder.RecordBatch(ctx, 10, 2*time.Second)

	metrics := collectNames(t, reader)

	degraded, ok := metrics["compass_fusion_degraded_total"].Data.(metricdata.Sum[int64])
	if !ok || len(degraded.DataPoints) == 0 || degraded.DataPoints[0].Value != 1 {
		t.Errorf("degraded counter = %+v, want 1", metrics["compass_fusion_degraded_total"])
	}

	tokens, ok := metrics["compass_llm_tokens_total"].Data.(metricdata.Sum[int64])
	if !ok || len(tokens.DataPoints) == 0 || tokens.DataPoints[0].Value != 210 {
		t.Errorf("token counter = %+v, want 210", metrics["compass_llm_tokens_total"])
	}

	llmErrs, ok := metrics["compass_llm_errors_total"].Data.(metricdata.Sum[int64])
	if !ok || len(llmErrs.DataPoints) == 0 || llmErrs.DataPoints[0].Value != 1 {
		t.Errorf("llm error counter = %+v, want 1", metrics["compass_llm_errors_total"])
	}

	students, ok := metrics["compass_batch_students_total"].Data.(metricdata.Sum[int64])
	if !ok || len(students.DataPoints) == 0 || students.DataPoints[0].Value != 10 {
		t.Errorf("batch students = %+v, want 10", metrics["compass_batch_students_total"])
	}
}

func TestGlobalRecorder(t *testing.T) {
	// The uninitialized global must be callable.
	Global().RecordInference(context.Background(), "empathy", time.Millisecond, "")

	recorder, _ := newTestRecorder(t)
	SetGlobal(recorder)
	defer SetGlobal(nil)

	if Global() != Metrics(recorder) {
		t.Error("global recorder was not installed")
	}

	SetGlobal(nil)
	if _, ok := Global().(noopMetrics); !ok {
		t.Errorf("reset global = %T, want noop", Global())
	}
}

func TestInitDisabled(t *testing.T) {
	enabled := false
	p, err := Init(Config{Enabled: &enabled})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if _, ok := Global().(noopMetrics); !ok {
		t.Errorf("disabled init installed %T", Global())
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}
	cfg.SetDefaults()
	if cfg.Enabled == nil || !*cfg.Enabled {
		t.Error("enabled should default to true")
	}
	if cfg.ServiceName != "compass" {
		t.Errorf("service name = %q", cfg.ServiceName)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}
