// Package observe provides application-wide observability primitives for
// vocalswap: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
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

// meterName is the instrumentation scope name used for all vocalswap metrics.
const meterName = "github.com/MrWong99/vocalswap"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// ClipDecodeDuration tracks how long decoding a single audio clip takes.
	ClipDecodeDuration metric.Float64Histogram

	// BankBuildDuration tracks how long building a replacement bank takes,
	// including clip loads. Use with attribute.String("kind", ...).
	BankBuildDuration metric.Float64Histogram

	// --- Counters ---

	// ClipLoads counts clip decode attempts. Use with attribute:
	//   attribute.String("status", "ok"|"error")
	ClipLoads metric.Int64Counter

	// ClipCacheHits counts clip lookups served from the clip cache.
	ClipCacheHits metric.Int64Counter

	// BankBuilds counts replacement banks built. Use with attribute:
	//   attribute.String("kind", ...)
	BankBuilds metric.Int64Counter

	// BankCacheHits counts bank requests served from the bank cache.
	BankCacheHits metric.Int64Counter

	// BankInstalls counts banks installed into the host. Use with attributes:
	//   attribute.String("kind", ...), attribute.String("result", "swapped"|"original"|"error")
	BankInstalls metric.Int64Counter

	// BankInvalidations counts bank cache evictions by kind.
	BankInvalidations metric.Int64Counter

	// ConfigParseErrors counts configuration files skipped as malformed.
	ConfigParseErrors metric.Int64Counter

	// DirectoriesRegistered counts scanned mod directories.
	DirectoriesRegistered metric.Int64Counter

	// --- Gauges ---

	// CachedClips tracks the number of decoded clips held by the clip cache.
	CachedClips metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks control API request time by mux route
	// pattern and status code.
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) for clip
// decodes and bank builds, which range from sub-millisecond cache-warm builds
// to multi-second cold loads of large clip sets.
var latencyBuckets = []float64{
	0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.ClipDecodeDuration, err = m.Float64Histogram("vocalswap.clip.decode.duration",
		metric.WithDescription("Latency of decoding a single audio clip."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.BankBuildDuration, err = m.Float64Histogram("vocalswap.bank.build.duration",
		metric.WithDescription("Latency of building a replacement vocal bank."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.ClipLoads, err = m.Int64Counter("vocalswap.clip.loads",
		metric.WithDescription("Total clip decode attempts by status."),
	); err != nil {
		return nil, err
	}
	if met.ClipCacheHits, err = m.Int64Counter("vocalswap.clip.cache_hits",
		metric.WithDescription("Total clip lookups served from the clip cache."),
	); err != nil {
		return nil, err
	}
	if met.BankBuilds, err = m.Int64Counter("vocalswap.bank.builds",
		metric.WithDescription("Total replacement banks built by kind."),
	); err != nil {
		return nil, err
	}
	if met.BankCacheHits, err = m.Int64Counter("vocalswap.bank.cache_hits",
		metric.WithDescription("Total bank requests served from the bank cache by kind."),
	); err != nil {
		return nil, err
	}
	if met.BankInstalls, err = m.Int64Counter("vocalswap.bank.installs",
		metric.WithDescription("Total banks installed into the host by kind and result."),
	); err != nil {
		return nil, err
	}
	if met.BankInvalidations, err = m.Int64Counter("vocalswap.bank.invalidations",
		metric.WithDescription("Total bank cache evictions by kind."),
	); err != nil {
		return nil, err
	}
	if met.ConfigParseErrors, err = m.Int64Counter("vocalswap.config.parse_errors",
		metric.WithDescription("Total configuration files skipped because they could not be parsed."),
	); err != nil {
		return nil, err
	}
	if met.DirectoriesRegistered, err = m.Int64Counter("vocalswap.directories.registered",
		metric.WithDescription("Total mod directories scanned."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.CachedClips, err = m.Int64UpDownCounter("vocalswap.clip.cached",
		metric.WithDescription("Number of decoded clips held by the clip cache."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("vocalswap.http.request.duration",
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

// RecordClipLoad records one clip decode attempt and its latency.
func (m *Metrics) RecordClipLoad(ctx context.Context, status string, seconds float64) {
	m.ClipLoads.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	m.ClipDecodeDuration.Record(ctx, seconds)
}

// RecordBankBuild records one bank build and its latency.
func (m *Metrics) RecordBankBuild(ctx context.Context, kind string, seconds float64) {
	attrs := metric.WithAttributes(attribute.String("kind", kind))
	m.BankBuilds.Add(ctx, 1, attrs)
	m.BankBuildDuration.Record(ctx, seconds, attrs)
}

// RecordBankCacheHit records a bank request served from the cache.
func (m *Metrics) RecordBankCacheHit(ctx context.Context, kind string) {
	m.BankCacheHits.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordBankInstall records a bank install with its outcome.
func (m *Metrics) RecordBankInstall(ctx context.Context, kind, result string) {
	m.BankInstalls.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("kind", kind),
			attribute.String("result", result),
		),
	)
}

// RecordBankInvalidation records a bank cache eviction.
func (m *Metrics) RecordBankInvalidation(ctx context.Context, kind string) {
	m.BankInvalidations.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}
