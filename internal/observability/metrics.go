package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const (
	metricOperationsTotal  = "gcodeslots.operations.total"
	metricOperationSeconds = "gcodeslots.operation.duration.seconds"
	metricErrorsTotal      = "gcodeslots.errors.total"
	metricCacheHitsTotal   = "gcodeslots.cache.hits.total"
	metricCacheMissesTotal = "gcodeslots.cache.misses.total"

	attrOp     = "op"
	attrStatus = "status"

	// StatusOK and StatusError are the two values RecordOperation accepts
	// for the "status" attribute.
	StatusOK    = "ok"
	StatusError = "error"
)

// durationBucketBoundaries covers 1ms to 120s: single-layer parses finish in
// low milliseconds, multi-megabyte multi-material files can take a couple
// of minutes under the worker-parallel variant on a loaded machine.
var durationBucketBoundaries = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 120}

// Metrics holds the RED (Rate, Errors, Duration) instruments plus cache
// hit/miss counters for gcodeslots' analyze/optimize/merge operations.
type Metrics struct {
	operationsTotal  metric.Int64Counter
	operationSeconds metric.Float64Histogram
	errorsTotal      metric.Int64Counter
	cacheHits        metric.Int64Counter
	cacheMisses      metric.Int64Counter
}

// Registry bundles a Metrics instance with the Prometheus exporter that
// serves its registered instruments.
type Registry struct {
	Metrics  *Metrics
	provider *sdkmetric.MeterProvider
}

// NewRegistry creates a MeterProvider backed by a Prometheus exporter (no
// push gateway, no OTLP) and derives the RED instruments from it.
func NewRegistry() (*Registry, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))

	meter := provider.Meter("gcodeslots")

	m, err := newMetrics(meter)
	if err != nil {
		return nil, err
	}

	return &Registry{Metrics: m, provider: provider}, nil
}

func newMetrics(meter metric.Meter) (*Metrics, error) {
	opsTotal, err := meter.Int64Counter(metricOperationsTotal,
		metric.WithDescription("Total number of gcodeslots operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricOperationsTotal, err)
	}

	opsSeconds, err := meter.Float64Histogram(metricOperationSeconds,
		metric.WithDescription("Operation duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricOperationSeconds, err)
	}

	errTotal, err := meter.Int64Counter(metricErrorsTotal,
		metric.WithDescription("Total number of operation errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricErrorsTotal, err)
	}

	cacheHits, err := meter.Int64Counter(metricCacheHitsTotal,
		metric.WithDescription("Total number of result cache hits"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricCacheHitsTotal, err)
	}

	cacheMisses, err := meter.Int64Counter(metricCacheMissesTotal,
		metric.WithDescription("Total number of result cache misses"),
		metric.WithUnit("{miss}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricCacheMissesTotal, err)
	}

	return &Metrics{
		operationsTotal:  opsTotal,
		operationSeconds: opsSeconds,
		errorsTotal:      errTotal,
		cacheHits:        cacheHits,
		cacheMisses:      cacheMisses,
	}, nil
}

// RecordOperation records a completed analyze/optimize/merge call.
func (m *Metrics) RecordOperation(ctx context.Context, op, status string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String(attrOp, op),
		attribute.String(attrStatus, status),
	)

	m.operationsTotal.Add(ctx, 1, attrs)
	m.operationSeconds.Record(ctx, duration.Seconds(), attrs)

	if status == StatusError {
		m.errorsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrOp, op)))
	}
}

// RecordCacheHit increments the cache hit counter.
func (m *Metrics) RecordCacheHit(ctx context.Context) {
	m.cacheHits.Add(ctx, 1)
}

// RecordCacheMiss increments the cache miss counter.
func (m *Metrics) RecordCacheMiss(ctx context.Context) {
	m.cacheMisses.Add(ctx, 1)
}

// Shutdown flushes and releases the meter provider.
func (r *Registry) Shutdown(ctx context.Context) error {
	return r.provider.Shutdown(ctx)
}
