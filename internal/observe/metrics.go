// Package observe provides application-wide observability primitives for
// retime: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
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

// meterName is the instrumentation scope name used for all retime metrics.
const meterName = "github.com/skein-media/retime"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// AlignDuration tracks word realignment latency.
	AlignDuration metric.Float64Histogram

	// ReshapeDuration tracks sentence reshaping latency.
	ReshapeDuration metric.Float64Histogram

	// TranscribeDuration tracks speech-to-text transcription latency.
	TranscribeDuration metric.Float64Histogram

	// RewriteDuration tracks LLM rewrite latency.
	RewriteDuration metric.Float64Histogram

	// --- Counters ---

	// WordsReplaced counts words whose text was replaced during alignment.
	WordsReplaced metric.Int64Counter

	// WordsKept counts words kept unchanged during alignment.
	WordsKept metric.Int64Counter

	// TokensSkipped counts corrected tokens with no original word to carry
	// timing for them.
	TokensSkipped metric.Int64Counter

	// SentencesSplit counts sentences broken into smaller chunks during
	// reshaping.
	SentencesSplit metric.Int64Counter

	// SentencesMerged counts sentences absorbed into a neighbour during
	// reshaping.
	SentencesMerged metric.Int64Counter

	// ProviderRequests counts provider API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// --- Error counters ---

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveJobs tracks the number of realignment jobs currently in flight.
	ActiveJobs metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for alignment and provider latencies.
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
	if met.AlignDuration, err = m.Float64Histogram("retime.align.duration",
		metric.WithDescription("Latency of word realignment."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ReshapeDuration, err = m.Float64Histogram("retime.reshape.duration",
		metric.WithDescription("Latency of sentence reshaping."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TranscribeDuration, err = m.Float64Histogram("retime.transcribe.duration",
		metric.WithDescription("Latency of speech-to-text transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.RewriteDuration, err = m.Float64Histogram("retime.rewrite.duration",
		metric.WithDescription("Latency of LLM caption rewrite."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.WordsReplaced, err = m.Int64Counter("retime.align.words_replaced",
		metric.WithDescription("Total words replaced during alignment."),
	); err != nil {
		return nil, err
	}
	if met.WordsKept, err = m.Int64Counter("retime.align.words_kept",
		metric.WithDescription("Total words kept unchanged during alignment."),
	); err != nil {
		return nil, err
	}
	if met.TokensSkipped, err = m.Int64Counter("retime.align.tokens_skipped",
		metric.WithDescription("Total corrected tokens with no original word available."),
	); err != nil {
		return nil, err
	}
	if met.SentencesSplit, err = m.Int64Counter("retime.segment.sentences_split",
		metric.WithDescription("Total sentences split during reshaping."),
	); err != nil {
		return nil, err
	}
	if met.SentencesMerged, err = m.Int64Counter("retime.segment.sentences_merged",
		metric.WithDescription("Total sentences merged away during reshaping."),
	); err != nil {
		return nil, err
	}
	if met.ProviderRequests, err = m.Int64Counter("retime.provider.requests",
		metric.WithDescription("Total provider API requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.ProviderErrors, err = m.Int64Counter("retime.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveJobs, err = m.Int64UpDownCounter("retime.active_jobs",
		metric.WithDescription("Number of realignment jobs currently in flight."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("retime.http.request.duration",
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

// RecordProviderRequest is a convenience method that records a provider
// request counter increment with the standard attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError is a convenience method that records a provider error
// counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// RecordAlignment records the per-word outcome counters of one alignment run.
func (m *Metrics) RecordAlignment(ctx context.Context, replaced, kept, skipped int) {
	m.WordsReplaced.Add(ctx, int64(replaced))
	m.WordsKept.Add(ctx, int64(kept))
	m.TokensSkipped.Add(ctx, int64(skipped))
}

// RecordReshape records the split/merge counters of one reshaping run.
func (m *Metrics) RecordReshape(ctx context.Context, split, merged int) {
	m.SentencesSplit.Add(ctx, int64(split))
	m.SentencesMerged.Add(ctx, int64(merged))
}
