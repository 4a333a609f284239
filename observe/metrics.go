// Package observe provides the application's observability primitives:
// OpenTelemetry metric instruments for the analysis pipeline and a
// Prometheus exporter bridge.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A package
// level default [Metrics] instance ([DefaultMetrics]) is provided for
// convenience; tests should use [NewMetrics] with a custom
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all metrics.
const meterName = "github.com/pitchfolk/tonic"

// Metrics holds all OpenTelemetry metric instruments for the analysis
// pipeline. All fields are safe for concurrent use; the underlying OTel
// types handle their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// FrameDuration tracks per-frame classic analysis latency. Use with
	// attribute:
	//   attribute.String("method", ...)
	FrameDuration metric.Float64Histogram

	// MelDuration tracks log-mel spectrogram extraction latency.
	MelDuration metric.Float64Histogram

	// InferenceDuration tracks classifier inference latency. Use with
	// attribute:
	//   attribute.String("status", ...)
	InferenceDuration metric.Float64Histogram

	// --- Counters ---

	// ChunksProcessed counts chunks that completed a full analysis cycle.
	ChunksProcessed metric.Int64Counter

	// ChunksDropped counts chunks discarded before analysis. Use with
	// attribute:
	//   attribute.String("reason", ...), one of "busy", "throttled", "stale" or "short"
	ChunksDropped metric.Int64Counter

	// ChunksMalformed counts chunks whose payload failed to decode.
	ChunksMalformed metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of live analysis sessions.
	ActiveSessions metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized
// for real-time audio analysis stages.
var latencyBuckets = []float64{
	0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.FrameDuration, err = m.Float64Histogram("tonic.frame.duration",
		metric.WithDescription("Latency of one classic pitch analysis frame."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.MelDuration, err = m.Float64Histogram("tonic.mel.duration",
		metric.WithDescription("Latency of log-mel spectrogram extraction."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.InferenceDuration, err = m.Float64Histogram("tonic.inference.duration",
		metric.WithDescription("Latency of note classifier inference by status."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.ChunksProcessed, err = m.Int64Counter("tonic.chunks.processed",
		metric.WithDescription("Total chunks that completed an analysis cycle."),
	); err != nil {
		return nil, err
	}
	if met.ChunksDropped, err = m.Int64Counter("tonic.chunks.dropped",
		metric.WithDescription("Total chunks discarded before analysis by reason."),
	); err != nil {
		return nil, err
	}
	if met.ChunksMalformed, err = m.Int64Counter("tonic.chunks.malformed",
		metric.WithDescription("Total chunks whose payload failed to decode."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("tonic.active_sessions",
		metric.WithDescription("Number of live analysis sessions."),
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

// RecordFrame records one classic analysis frame with the detection method
// that produced its estimate ("none" when no pitch was found).
func (m *Metrics) RecordFrame(ctx context.Context, d time.Duration, method string) {
	m.FrameDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(attribute.String("method", method)),
	)
}

// RecordMel records one spectrogram extraction.
func (m *Metrics) RecordMel(ctx context.Context, d time.Duration) {
	m.MelDuration.Record(ctx, d.Seconds())
}

// RecordInference records one classifier inference attempt by status
// ("ok", "error" or "unavailable").
func (m *Metrics) RecordInference(ctx context.Context, d time.Duration, status string) {
	m.InferenceDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(attribute.String("status", status)),
	)
}

// RecordDrop records one discarded chunk by reason.
func (m *Metrics) RecordDrop(ctx context.Context, reason string) {
	m.ChunksDropped.Add(ctx, 1,
		metric.WithAttributes(attribute.String("reason", reason)),
	)
}

// RecordChunk records one chunk that completed a full analysis cycle.
func (m *Metrics) RecordChunk(ctx context.Context) {
	m.ChunksProcessed.Add(ctx, 1)
}

// RecordMalformed records one chunk whose payload failed to decode.
func (m *Metrics) RecordMalformed(ctx context.Context) {
	m.ChunksMalformed.Add(ctx, 1)
}

// SessionStarted increments the live session gauge.
func (m *Metrics) SessionStarted(ctx context.Context) {
	m.ActiveSessions.Add(ctx, 1)
}

// SessionEnded decrements the live session gauge.
func (m *Metrics) SessionEnded(ctx context.Context) {
	m.ActiveSessions.Add(ctx, -1)
}
