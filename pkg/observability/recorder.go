package observability

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/lumen-ed/compass/pkg/skills"
)

// Metrics is what the pipeline stages report into. An empty category means
// the inference succeeded.
type Metrics interface {
	RecordInference(ctx context.Context, skill string, duration time.Duration, category skills.ErrorCategory)
	RecordFusion(ctx context.Context, skill string, duration time.Duration, degraded bool)
	RecordLLMCall(ctx context.Context, model string, duration time.Duration, tokens int, err error)
	RecordBatch(ctx context.Context, students int, duration time.Duration)
}

var (
	globalMu sync.RWMutex
	global   Metrics = noopMetrics{}
)

// SetGlobal installs the process-wide recorder. Passing nil resets to the
// no-op recorder.
func SetGlobal(m Metrics) {
	globalMu.Lock()
	defer globalMu.Unlock()
	if m == nil {
		m = noopMetrics{}
	}
	global = m
}

// Global returns the process-wide recorder. Never nil.
func Global() Metrics {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return global
}

type noopMetrics struct{}

func (noopMetrics) RecordInference(context.Context, string, time.Duration, skills.ErrorCategory) {}
func (noopMetrics) RecordFusion(context.Context, string, time.Duration, bool)                    {}
func (noopMetrics) RecordLLMCall(context.Context, string, time.Duration, int, error)             {}
func (noopMetrics) RecordBatch(context.Context, int, time.Duration)                              {}

// otelMetrics implements Metrics on OpenTelemetry instruments.
type otelMetrics struct {
	inferenceDuration metric.Float64Histogram
	inferenceTotal    metric.Int64Counter
	inferenceErrors   metric.Int64Counter

	fusionDuration metric.Float64Histogram
	fusionDegraded metric.Int64Counter

	llmDuration metric.Float64Histogram
	llmTokens   metric.Int64Counter
	llmErrors   metric.Int64Counter

	batchDuration metric.Float64Histogram
	batchStudents metric.Int64Counter
}

func newRecorder(meter metric.Meter) (*otelMetrics, error) {
	m := &otelMetrics{}
	var err error

	if m.inferenceDuration, err = meter.Float64Histogram(
		"compass_inference_duration_seconds",
		metric.WithDescription("Per-skill inference latency in seconds"),
	); err != nil {
		return nil, instrumentError("inference duration", err)
	}
	if m.inferenceTotal, err = meter.Int64Counter(
		"compass_inference_total",
		metric.WithDescription("Total inference calls"),
	); err != nil {
		return nil, instrumentError("inference counter", err)
	}
	if m.inferenceErrors, err = meter.Int64Counter(
		"compass_inference_errors_total",
		metric.WithDescription("Failed inference calls by category"),
	); err != nil {
		return nil, instrumentError("inference errors counter", err)
	}

	if m.fusionDuration, err = meter.Float64Histogram(
		"compass_fusion_duration_seconds",
		metric.WithDescription("Evidence fusion latency in seconds"),
	); err != nil {
		return nil, instrumentError("fusion duration", err)
	}
	if m.fusionDegraded, err = meter.Int64Counter(
		"compass_fusion_degraded_total",
		metric.WithDescription("Fusions that fell back to the bare prediction"),
	); err != nil {
		return nil, instrumentError("fusion degraded counter", err)
	}

	if m.llmDuration, err = meter.Float64Histogram(
		"compass_llm_request_duration_seconds",
		metric.WithDescription("LLM request latency in seconds"),
	); err != nil {
		return nil, instrumentError("llm duration", err)
	}
	if m.llmTokens, err = meter.Int64Counter(
		"compass_llm_tokens_total",
		metric.WithDescription("Total tokens consumed by rationale generation"),
	); err != nil {
		return nil, instrumentError("llm tokens counter", err)
	}
	if m.llmErrors, err = meter.Int64Counter(
		"compass_llm_errors_total",
		metric.WithDescription("Failed LLM requests"),
	); err != nil {
		return nil, instrumentError("llm errors counter", err)
	}

	if m.batchDuration, err = meter.Float64Histogram(
		"compass_batch_duration_seconds",
		metric.WithDescription("Batch wall-clock duration in seconds"),
	); err != nil {
		return nil, instrumentError("batch duration", err)
	}
	if m.batchStudents, err = meter.Int64Counter(
		"compass_batch_students_total",
		metric.WithDescription("Students dispatched through batches"),
	); err != nil {
		return nil, instrumentError("batch students counter", err)
	}

	return m, nil
}

func (m *otelMetrics) RecordInference(ctx context.Context, skill string, duration time.Duration, category skills.ErrorCategory) {
	attrs := metric.WithAttributes(attribute.String("skill", skill))
	m.inferenceDuration.Record(ctx, duration.Seconds(), attrs)
	m.inferenceTotal.Add(ctx, 1, attrs)
	if category != "" {
		m.inferenceErrors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("skill", skill),
			attribute.String("category", string(category)),
		))
	}
}

func (m *otelMetrics) RecordFusion(ctx context.Context, skill string, duration time.Duration, degraded bool) {
	attrs := metric.WithAttributes(attribute.String("skill", skill))
	m.fusionDuration.Record(ctx, duration.Seconds(), attrs)
	if degraded {
		m.fusionDegraded.Add(ctx, 1, attrs)
	}
}

func (m *otelMetrics) RecordLLMCall(ctx context.Context, model string, duration time.Duration, tokens int, err error) {
	attrs := metric.WithAttributes(attribute.String("model", model))
	m.llmDuration.Record(ctx, duration.Seconds(), attrs)
	if tokens > 0 {
		m.llmTokens.Add(ctx, int64(tokens), attrs)
	}
	if err != nil {
		m.llmErrors.Add(ctx, 1, attrs)
	}
}

func (m *otelMetrics) RecordBatch(ctx context.Context, students int, duration time.Duration) {
	m.batchDuration.Record(ctx, duration.Seconds())
	m.batchStudents.Add(ctx, int64(students))
}

func instrumentError(name string, err error) error {
	return fmt.Errorf("create %s instrument: %w", name, err)
}
