// Package observe provides application-wide observability primitives for
// vigil: OpenTelemetry metrics, distributed tracing, structured logging, and
// HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still
// be scraped via the standard /metrics endpoint. A package-level default
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

// meterName is the instrumentation scope name used for all vigil metrics.
const meterName = "github.com/carelink-ai/vigil"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// GuardDuration tracks rules-engine triage latency.
	GuardDuration metric.Float64Histogram

	// ParseDuration tracks LLM intent-parsing latency.
	ParseDuration metric.Float64Histogram

	// AdapterDuration tracks downstream adapter call latency.
	AdapterDuration metric.Float64Histogram

	// PipelineDuration tracks end-to-end utterance processing latency.
	PipelineDuration metric.Float64Histogram

	// --- Counters ---

	// PipelineRequests counts processed utterances. Use with attributes:
	//   attribute.String("path", ...), attribute.String("verdict", ...)
	PipelineRequests metric.Int64Counter

	// EmergencyDispatches counts triggered emergency dispatches. Use with
	// attribute: attribute.String("source", ...) (sos, intent, geofence)
	EmergencyDispatches metric.Int64Counter

	// SegmentsDropped counts speech segments discarded from a full queue.
	SegmentsDropped metric.Int64Counter

	// ParseErrors counts intent-parse failures. Use with attributes:
	//   attribute.String("backend", ...), attribute.String("reason", ...)
	ParseErrors metric.Int64Counter

	// --- Gauges ---

	// InFlight tracks utterances currently inside the pipeline.
	InFlight metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with
	// attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for the speech pipeline's sub-second stages.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.GuardDuration, err = m.Float64Histogram("vigil.guard.duration",
		metric.WithDescription("Latency of rules-engine triage."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ParseDuration, err = m.Float64Histogram("vigil.parse.duration",
		metric.WithDescription("Latency of LLM intent parsing."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.AdapterDuration, err = m.Float64Histogram("vigil.adapter.duration",
		metric.WithDescription("Latency of downstream adapter calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.PipelineDuration, err = m.Float64Histogram("vigil.pipeline.duration",
		metric.WithDescription("End-to-end utterance processing latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.PipelineRequests, err = m.Int64Counter("vigil.pipeline.requests",
		metric.WithDescription("Total processed utterances by path and verdict."),
	); err != nil {
		return nil, err
	}
	if met.EmergencyDispatches, err = m.Int64Counter("vigil.emergency.dispatches",
		metric.WithDescription("Total emergency dispatches by source."),
	); err != nil {
		return nil, err
	}
	if met.SegmentsDropped, err = m.Int64Counter("vigil.segments.dropped",
		metric.WithDescription("Speech segments discarded from a full queue."),
	); err != nil {
		return nil, err
	}
	if met.ParseErrors, err = m.Int64Counter("vigil.parse.errors",
		metric.WithDescription("Intent-parse failures by backend and reason."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.InFlight, err = m.Int64UpDownCounter("vigil.pipeline.in_flight",
		metric.WithDescription("Utterances currently inside the pipeline."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("vigil.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
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

// DefaultMetrics returns the package-level [Metrics] instance, creating it
// on first call using [otel.GetMeterProvider]. Subsequent calls return the
// same pointer. Panics if instrument creation fails (should not happen with
// the global provider).
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

// RecordRequest records one processed utterance with the standard attribute
// set.
func (m *Metrics) RecordRequest(ctx context.Context, path, verdict string) {
	m.PipelineRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("path", path),
			attribute.String("verdict", verdict),
		),
	)
}

// RecordEmergency records one emergency dispatch by source.
func (m *Metrics) RecordEmergency(ctx context.Context, source string) {
	m.EmergencyDispatches.Add(ctx, 1,
		metric.WithAttributes(attribute.String("source", source)),
	)
}

// RecordParseError records one intent-parse failure.
func (m *Metrics) RecordParseError(ctx context.Context, backend, reason string) {
	m.ParseErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("backend", backend),
			attribute.String("reason", reason),
		),
	)
}
