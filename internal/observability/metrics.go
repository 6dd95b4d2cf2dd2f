package observability

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records provider-call and pipeline-stage telemetry through the
// OpenTelemetry metric API. Exporter wiring is left to the deployment.
type Metrics struct {
	providerRequests metric.Int64Counter
	providerLatency  metric.Float64Histogram
	stageLatency     metric.Float64Histogram
	runsTotal        metric.Int64Counter
}

var (
	initOnce sync.Once
	current  *Metrics
)

// Current returns the process-wide metrics sink, or nil before Init.
func Current() *Metrics {
	return current
}

func Init() *Metrics {
	initOnce.Do(func() {
		meter := otel.Meter("storyreel")
		m := &Metrics{}
		m.providerRequests, _ = meter.Int64Counter("storyreel.provider.requests",
			metric.WithDescription("Provider HTTP requests by kind and status"))
		m.providerLatency, _ = meter.Float64Histogram("storyreel.provider.latency",
			metric.WithDescription("Provider request latency in seconds"),
			metric.WithUnit("s"))
		m.stageLatency, _ = meter.Float64Histogram("storyreel.pipeline.stage.latency",
			metric.WithDescription("Pipeline stage latency in seconds"),
			metric.WithUnit("s"))
		m.runsTotal, _ = meter.Int64Counter("storyreel.pipeline.runs",
			metric.WithDescription("Pipeline runs by outcome"))
		current = m
	})
	return current
}

func (m *Metrics) ObserveProviderRequest(kind, path, status string, dur time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("path", path),
		attribute.String("status", status),
	)
	ctx := context.Background()
	m.providerRequests.Add(ctx, 1, attrs)
	m.providerLatency.Record(ctx, dur.Seconds(), attrs)
}

func (m *Metrics) ObservePipelineStage(stage string, dur time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.stageLatency.Record(context.Background(), dur.Seconds(), metric.WithAttributes(
		attribute.String("stage", stage),
		attribute.String("outcome", outcome),
	))
}

func (m *Metrics) ObserveRun(outcome string) {
	if m == nil {
		return
	}
	m.runsTotal.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
	))
}
