// Package observe provides application-wide observability primitives for the
// entry panel: OpenTelemetry metrics and the Prometheus exporter bridge.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter is wired in via [InitProvider] so the panel's /metrics endpoint
// can be scraped as usual. A package-level default [Metrics] instance
// ([DefaultMetrics]) is provided for convenience; tests should use
// [NewMetrics] with a custom [metric.MeterProvider] to avoid cross-test
// pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all panel metrics.
const meterName = "github.com/MrWong99/entryhub"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Voice pipeline ---

	// WakeTriggers counts reported wake triggers. Use with attribute:
	//   attribute.String("source", "threshold"|"manual")
	WakeTriggers metric.Int64Counter

	// Rejections counts recording cycles that ended without transcription.
	// Use with attribute:
	//   attribute.String("reason", "no_speech"|"too_quiet"|"too_short")
	Rejections metric.Int64Counter

	// RecordingDuration tracks the audio length of finalized recordings.
	RecordingDuration metric.Float64Histogram

	// TranscribeDuration tracks transcription round-trip latency.
	TranscribeDuration metric.Float64Histogram

	// TranscribeErrors counts failed transcription requests. Use with
	// attribute: attribute.String("provider", ...)
	TranscribeErrors metric.Int64Counter

	// --- Command dispatch ---

	// CommandMatches counts interpreted transcripts. Use with attributes:
	//   attribute.String("category", ...), attribute.String("status", "matched"|"unmatched")
	CommandMatches metric.Int64Counter

	// ActuationErrors counts failed home-automation service calls.
	ActuationErrors metric.Int64Counter

	// --- Ambient ---

	// BaselineLevel reports the current adaptive ambient-noise baseline in
	// scaled units.
	BaselineLevel metric.Int64Gauge

	// AudioBlocksRead counts non-empty blocks drained from the source.
	AudioBlocksRead metric.Int64Counter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) covering
// both sub-second recordings and multi-second transcription round trips.
var latencyBuckets = []float64{
	0.1, 0.25, 0.5, 1, 2, 3, 5, 7.5, 10, 15,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.WakeTriggers, err = m.Int64Counter("entryhub.wake.triggers",
		metric.WithDescription("Total wake triggers by source."),
	); err != nil {
		return nil, err
	}
	if met.Rejections, err = m.Int64Counter("entryhub.recording.rejections",
		metric.WithDescription("Recording cycles rejected before transcription, by reason."),
	); err != nil {
		return nil, err
	}
	if met.RecordingDuration, err = m.Float64Histogram("entryhub.recording.duration",
		metric.WithDescription("Audio length of finalized recordings."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TranscribeDuration, err = m.Float64Histogram("entryhub.transcribe.duration",
		metric.WithDescription("Transcription round-trip latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TranscribeErrors, err = m.Int64Counter("entryhub.transcribe.errors",
		metric.WithDescription("Failed transcription requests by provider."),
	); err != nil {
		return nil, err
	}
	if met.CommandMatches, err = m.Int64Counter("entryhub.command.matches",
		metric.WithDescription("Interpreted transcripts by category and status."),
	); err != nil {
		return nil, err
	}
	if met.ActuationErrors, err = m.Int64Counter("entryhub.actuation.errors",
		metric.WithDescription("Failed home-automation service calls."),
	); err != nil {
		return nil, err
	}
	if met.BaselineLevel, err = m.Int64Gauge("entryhub.wake.baseline",
		metric.WithDescription("Current adaptive ambient-noise baseline (scaled units)."),
	); err != nil {
		return nil, err
	}
	if met.AudioBlocksRead, err = m.Int64Counter("entryhub.audio.blocks",
		metric.WithDescription("Non-empty audio blocks drained from the source."),
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

// RecordRejection records a rejected recording cycle with the standard
// attribute set.
func (m *Metrics) RecordRejection(ctx context.Context, reason string) {
	m.Rejections.Add(ctx, 1, metric.WithAttributes(Attr("reason", reason)))
}

// RecordTrigger records a wake trigger from the given source.
func (m *Metrics) RecordTrigger(ctx context.Context, source string) {
	m.WakeTriggers.Add(ctx, 1, metric.WithAttributes(Attr("source", source)))
}
