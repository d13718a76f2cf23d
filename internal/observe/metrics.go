// Package observe provides application-wide observability primitives for
// Katha: OpenTelemetry metrics, distributed tracing, structured logging, and
// HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is wired by [SetupTelemetry] so that metrics can still be
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

// meterName is the instrumentation scope name used for all Katha metrics.
const meterName = "github.com/katha-archive/katha"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// LLMDuration tracks LLM completion latency (chunking, entity and
	// biographical extraction calls).
	LLMDuration metric.Float64Histogram

	// EmbeddingDuration tracks embedding provider latency per batch.
	EmbeddingDuration metric.Float64Histogram

	// StoreDuration tracks vector store round-trip latency.
	StoreDuration metric.Float64Histogram

	// IngestDuration tracks end-to-end transcript ingestion latency, from
	// parse through upsert.
	IngestDuration metric.Float64Histogram

	// --- Counters ---

	// TranscriptsIngested counts completed transcript ingestions. Use with
	// attribute: attribute.String("status", ...)
	TranscriptsIngested metric.Int64Counter

	// ChunksStored counts chunks written to the vector store.
	ChunksStored metric.Int64Counter

	// ValidationFailures counts coverage validation failures. Use with
	// attribute: attribute.String("check", ...)
	ValidationFailures metric.Int64Counter

	// ChunkerFallbacks counts ingestions that fell back to the window
	// splitter after an LLM chunking failure.
	ChunkerFallbacks metric.Int64Counter

	// --- Error counters ---

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveIngestions tracks the number of transcript ingestions currently
	// in flight.
	ActiveIngestions metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds). The upper
// buckets are generous because LLM chunking of a long transcript can run for
// tens of seconds.
var latencyBuckets = []float64{
	0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.LLMDuration, err = m.Float64Histogram("katha.llm.duration",
		metric.WithDescription("Latency of LLM completion calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.EmbeddingDuration, err = m.Float64Histogram("katha.embedding.duration",
		metric.WithDescription("Latency of embedding batches."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.StoreDuration, err = m.Float64Histogram("katha.store.duration",
		metric.WithDescription("Latency of vector store operations."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.IngestDuration, err = m.Float64Histogram("katha.ingest.duration",
		metric.WithDescription("End-to-end transcript ingestion latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.TranscriptsIngested, err = m.Int64Counter("katha.transcripts.ingested",
		metric.WithDescription("Total transcript ingestions by status."),
	); err != nil {
		return nil, err
	}
	if met.ChunksStored, err = m.Int64Counter("katha.chunks.stored",
		metric.WithDescription("Total chunks written to the vector store."),
	); err != nil {
		return nil, err
	}
	if met.ValidationFailures, err = m.Int64Counter("katha.validation.failures",
		metric.WithDescription("Total coverage validation failures by check."),
	); err != nil {
		return nil, err
	}
	if met.ChunkerFallbacks, err = m.Int64Counter("katha.chunker.fallbacks",
		metric.WithDescription("Total ingestions that fell back to the window splitter."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.ProviderErrors, err = m.Int64Counter("katha.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveIngestions, err = m.Int64UpDownCounter("katha.active_ingestions",
		metric.WithDescription("Number of transcript ingestions currently in flight."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("katha.http.request.duration",
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

// RecordIngestion records a completed transcript ingestion with the given
// status ("ok", "rejected", "error").
func (m *Metrics) RecordIngestion(ctx context.Context, status string) {
	m.TranscriptsIngested.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
}

// RecordValidationFailure records a failed coverage check by name.
func (m *Metrics) RecordValidationFailure(ctx context.Context, check string) {
	m.ValidationFailures.Add(ctx, 1,
		metric.WithAttributes(attribute.String("check", check)),
	)
}

// RecordProviderError records a provider error counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}
